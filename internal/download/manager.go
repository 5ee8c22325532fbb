// Package download runs one playlist download end to end.
package download

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/surge-downloader/m3u8dl/internal/engine"
	"github.com/surge-downloader/m3u8dl/internal/engine/cache"
	"github.com/surge-downloader/m3u8dl/internal/engine/concurrent"
	"github.com/surge-downloader/m3u8dl/internal/engine/events"
	"github.com/surge-downloader/m3u8dl/internal/engine/fetch"
	"github.com/surge-downloader/m3u8dl/internal/engine/keys"
	"github.com/surge-downloader/m3u8dl/internal/engine/state"
	"github.com/surge-downloader/m3u8dl/internal/engine/types"
	"github.com/surge-downloader/m3u8dl/internal/transcode"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

// Result describes a finished run
type Result struct {
	RunID          string
	MediaURL       string // Media playlist actually downloaded (differs from the input for master playlists)
	CacheDir       string
	OutputPath     string
	Segments       int
	Fetched        int
	Skipped        int
	Bytes          int64
	MIME           string
	Elapsed        time.Duration
	TranscodedPath string
	TranscodeErr   error // Set when the optional remux failed; the merged output is still valid
}

// Run loads the playlist, fills the resume cache, merges the output and optionally transcodes it.
func Run(ctx context.Context, cfg *types.JobConfig) (*Result, error) {
	runID := uuid.New().String()
	if cfg.State != nil && cfg.State.ID != "" {
		runID = cfg.State.ID
	}
	log := utils.Logger("download").With().Str("run", runID).Logger()
	start := time.Now()

	res, err := run(ctx, cfg, runID, start)
	if err != nil {
		log.Error().Err(err).Str("url", cfg.URL).Msg("run failed")
		if cfg.State != nil {
			cfg.State.SetError(err)
		}
		emit(ctx, cfg.ProgressCh, events.RunErrorMsg{RunID: runID, URL: cfg.URL, Err: err})
		return nil, err
	}
	log.Info().Str("output", res.OutputPath).Int("fetched", res.Fetched).Int("skipped", res.Skipped).Msg("run complete")
	return res, nil
}

func run(ctx context.Context, cfg *types.JobConfig, runID string, start time.Time) (*Result, error) {
	ffmpeg := cfg.FFmpegPath
	if cfg.Transcode && ffmpeg == "" {
		p, err := transcode.FindFFmpeg()
		if err != nil {
			return nil, err
		}
		ffmpeg = p
	}

	fetcher := fetch.NewHTTPFetcher(cfg.Runtime)
	media, _, err := engine.LoadMedia(ctx, fetcher, cfg.URL, chooser(ctx, cfg, runID))
	if err != nil {
		return nil, err
	}

	store := cache.NewStore(cfg.CacheDir, cfg.Runtime.GetCacheNamespace(), cfg.ForceReload)
	dir, unlock, err := store.Prepare(media.URL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	resolver, err := keys.NewResolver(fetcher, media.URL)
	if err != nil {
		return nil, err
	}

	limit := concurrent.Limit(media, cfg.MaxSegments)
	progress := cfg.State
	if progress == nil {
		progress = types.NewProgressState(runID, limit)
	}
	progress.Total.Store(int64(limit))

	output := cfg.OutputPath()
	entry := types.RunEntry{
		ID:        runID,
		URL:       cfg.URL,
		Output:    output,
		CacheDir:  dir,
		Status:    types.RunStatusRunning,
		Segments:  limit,
		StartedAt: start.Unix(),
	}
	if err := state.AddRun(entry); err != nil {
		utils.Debug("History: add run: %v", err)
	}

	emit(ctx, cfg.ProgressCh, events.RunStartedMsg{
		RunID:      runID,
		URL:        media.URL,
		CacheDir:   dir,
		OutputPath: output,
		Segments:   limit,
		State:      progress,
	})

	sched := &concurrent.Scheduler{
		RunID:      runID,
		Fetcher:    fetcher,
		Keys:       resolver,
		Cache:      store,
		Runtime:    cfg.Runtime,
		State:      progress,
		ProgressCh: cfg.ProgressCh,
	}
	cm, err := sched.Run(ctx, media, cfg.MaxSegments)
	if err != nil {
		finishHistory(entry, progress, "", err)
		return nil, err
	}

	emit(ctx, cfg.ProgressCh, events.MergeStartedMsg{RunID: runID, OutputPath: output, Segments: cm.Size()})
	written, err := concurrent.Merge(cm, output)
	if err != nil {
		finishHistory(entry, progress, "", err)
		return nil, err
	}

	res := &Result{
		RunID:      runID,
		MediaURL:   media.URL,
		CacheDir:   dir,
		OutputPath: output,
		Segments:   limit,
		Fetched:    int(progress.Fetched.Load()),
		Skipped:    int(progress.Skipped.Load()),
		Bytes:      written,
		MIME:       SniffMIME(output),
	}
	progress.Done.Store(true)

	if cfg.Transcode {
		emit(ctx, cfg.ProgressCh, events.TranscodeStartedMsg{RunID: runID, Input: output})
		res.TranscodedPath, res.TranscodeErr = transcode.Remux(ctx, ffmpeg, output)
		emit(ctx, cfg.ProgressCh, events.TranscodeCompleteMsg{RunID: runID, Output: res.TranscodedPath, Err: res.TranscodeErr})
	}

	res.Elapsed = time.Since(start)
	finishHistory(entry, progress, res.MIME, nil)

	emit(ctx, cfg.ProgressCh, events.RunCompleteMsg{
		RunID:      runID,
		OutputPath: output,
		Elapsed:    res.Elapsed,
		Bytes:      written,
		Fetched:    res.Fetched,
		Skipped:    res.Skipped,
	})
	return res, nil
}

// chooser wraps the configured variant picker so listeners see the offered variants first
func chooser(ctx context.Context, cfg *types.JobConfig, runID string) engine.VariantChooser {
	return func(variants []types.Variant) (int, error) {
		emit(ctx, cfg.ProgressCh, events.VariantsMsg{RunID: runID, URL: cfg.URL, Variants: variants})
		if cfg.SelectVariant == nil {
			return engine.BestVariant(variants), nil
		}
		return cfg.SelectVariant(variants)
	}
}

func finishHistory(entry types.RunEntry, progress *types.ProgressState, mime string, runErr error) {
	entry.Status = types.RunStatusCompleted
	if runErr != nil {
		entry.Status = types.RunStatusError
		entry.Error = runErr.Error()
	}
	entry.Fetched = int(progress.Fetched.Load())
	entry.Skipped = int(progress.Skipped.Load())
	entry.Bytes = progress.Bytes.Load()
	entry.MIME = mime
	if err := state.FinishRun(entry); err != nil {
		utils.Debug("History: finish run: %v", err)
	}
}

func emit(ctx context.Context, ch chan<- any, msg any) {
	if ch == nil {
		return
	}
	select {
	case ch <- msg:
	case <-ctx.Done():
	}
}

var (
	registerTS sync.Once
	tsType     = filetype.NewType("ts", "video/mp2t")
)

const tsPacketSize = 188

// isTransportStream matches two consecutive MPEG-TS sync bytes
func isTransportStream(buf []byte) bool {
	return len(buf) > tsPacketSize && buf[0] == 0x47 && buf[tsPacketSize] == 0x47
}

// SniffMIME returns the container MIME type of a file, based on its first bytes
func SniffMIME(path string) string {
	registerTS.Do(func() {
		filetype.AddMatcher(tsType, isTransportStream)
	})

	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 8192)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return ""
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}
