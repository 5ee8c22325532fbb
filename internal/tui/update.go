package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/surge-downloader/m3u8dl/internal/engine"
	"github.com/surge-downloader/m3u8dl/internal/engine/events"
	"github.com/surge-downloader/m3u8dl/internal/tui/components"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

// Update handles messages and updates the model
func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case events.VariantsMsg:
		for i, v := range msg.Variants {
			m.addLog(fmt.Sprintf("variant %d: %s", i, engine.DescribeVariant(v)))
		}
		return m, listenForActivity(m.events)

	case events.RunStartedMsg:
		m.phase = PhaseFetching
		m.URL = msg.URL
		m.CacheDir = msg.CacheDir
		m.Output = msg.OutputPath
		m.state = msg.State
		m.segments = make([]components.SegmentStatus, msg.Segments)
		m.addLog("Cache in " + msg.CacheDir)
		return m, listenForActivity(m.events)

	case events.SegmentDoneMsg:
		if msg.Index >= 0 && msg.Index < len(m.segments) {
			if msg.Cached {
				m.segments[msg.Index] = components.SegmentCached
			} else {
				m.segments[msg.Index] = components.SegmentFetched
			}
		}
		return m, listenForActivity(m.events)

	case events.MergeStartedMsg:
		m.phase = PhaseMerging
		return m, listenForActivity(m.events)

	case events.TranscodeStartedMsg:
		m.phase = PhaseTranscoding
		return m, listenForActivity(m.events)

	case events.TranscodeCompleteMsg:
		m.transcoded = msg.Output
		m.transcodeErr = msg.Err
		if msg.Err != nil {
			m.addLog("transcode failed: " + msg.Err.Error())
		}
		return m, listenForActivity(m.events)

	case events.RunCompleteMsg:
		m.phase = PhaseDone
		m.result = &msg
		m.addLog(fmt.Sprintf("Saved %s (%s)", msg.OutputPath, utils.ConvertBytesToHumanReadable(msg.Bytes)))
		return m, tea.Quit

	case events.RunErrorMsg:
		m.phase = PhaseFailed
		m.err = msg.Err
		return m, tea.Quit

	case channelClosedMsg:
		if m.phase != PhaseDone && m.phase != PhaseFailed {
			m.phase = PhaseFailed
		}
		return m, tea.Quit

	case tickMsg:
		if m.phase == PhaseDone || m.phase == PhaseFailed {
			return m, nil
		}
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - ProgressBarWidthOffset*2
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	}

	return m, nil
}
