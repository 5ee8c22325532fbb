package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/muesli/termenv"

	"github.com/surge-downloader/m3u8dl/internal/engine"
	"github.com/surge-downloader/m3u8dl/internal/engine/events"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

// Headless prints run events as plain console lines, for --no-tui and non-terminal output
type Headless struct {
	out   *termenv.Output
	total int
	done  int
	err   error
}

// NewHeadless writes to w, colouring output only when w supports it
func NewHeadless(w io.Writer, opts ...termenv.OutputOption) *Headless {
	return &Headless{out: termenv.NewOutput(w, opts...)}
}

// Consume handles events until ch is closed
func (h *Headless) Consume(ch <-chan any) {
	for msg := range ch {
		h.Handle(msg)
	}
}

// Err returns the error reported by the run, if any
func (h *Headless) Err() error {
	return h.err
}

func (h *Headless) colored(s, hex string) string {
	return h.out.String(s).Foreground(h.out.Color(hex)).String()
}

func (h *Headless) println(s string) {
	_, _ = fmt.Fprintln(h.out, s)
}

// Handle prints one event
func (h *Headless) Handle(msg any) {
	switch msg := msg.(type) {
	case events.VariantsMsg:
		for i, v := range msg.Variants {
			h.println(fmt.Sprintf("  %d: %s", i, engine.DescribeVariant(v)))
		}

	case events.RunStartedMsg:
		h.total = msg.Segments
		h.println("Cache in " + msg.CacheDir)

	case events.SegmentDoneMsg:
		h.done++
		if msg.Cached {
			h.println(h.colored("Pass "+msg.Name, "#6272a4"))
			return
		}
		h.println(fmt.Sprintf("[%d/%d] %s %s", h.done, h.total, msg.Name, utils.ConvertBytesToHumanReadable(msg.Bytes)))

	case events.MergeStartedMsg:
		h.println(fmt.Sprintf("Merging %d segments into %s", msg.Segments, msg.OutputPath))

	case events.TranscodeStartedMsg:
		h.println("Transcoding " + msg.Input)

	case events.TranscodeCompleteMsg:
		if msg.Err != nil {
			h.println(h.colored("Transcode failed: "+msg.Err.Error(), "#ffb86c"))
			return
		}
		h.println("Transcoded " + msg.Output)

	case events.RunCompleteMsg:
		h.println(h.colored(fmt.Sprintf("Saved %s (%s, %d fetched, %d cached) in %s",
			msg.OutputPath, utils.ConvertBytesToHumanReadable(msg.Bytes), msg.Fetched, msg.Skipped,
			msg.Elapsed.Round(time.Millisecond)), "#50fa7b"))

	case events.RunErrorMsg:
		h.err = msg.Err
		if msg.Err != nil {
			h.println(h.colored("Error: "+msg.Err.Error(), "#ff5555"))
		}
	}
}
