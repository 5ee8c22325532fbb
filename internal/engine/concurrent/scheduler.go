// Package concurrent fetches the segments of a media playlist into the resume
// cache with bounded concurrency and merges them in playlist order.
package concurrent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/google/renameio/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/surge-downloader/m3u8dl/internal/engine/cache"
	"github.com/surge-downloader/m3u8dl/internal/engine/events"
	"github.com/surge-downloader/m3u8dl/internal/engine/fetch"
	"github.com/surge-downloader/m3u8dl/internal/engine/keys"
	"github.com/surge-downloader/m3u8dl/internal/engine/types"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

// Scheduler walks a media playlist and dispatches one task per segment that is not cached.
type Scheduler struct {
	RunID      string
	Fetcher    fetch.Fetcher
	Keys       *keys.Resolver
	Cache      *cache.Store
	Runtime    *types.RuntimeConfig
	State      *types.ProgressState // Optional shared counters for progress rendering
	ProgressCh chan<- any           // Optional event channel
}

// task is everything a dispatched segment needs; nothing in it changes after dispatch.
type task struct {
	index int
	name  string
	url   string
	path  string
	seq   uint64
	key   *types.ResolvedKey
}

// Limit returns how many segments of pl a run with maxSegments walks. 0 means all.
func Limit(pl *types.MediaPlaylist, maxSegments int) int {
	n := len(pl.Segments)
	if maxSegments > 0 && maxSegments < n {
		return maxSegments
	}
	return n
}

// Run fetches every walked segment into the cache and returns where each one landed.
// The first failing task cancels the rest; Run returns only after all task goroutines exit.
func (s *Scheduler) Run(ctx context.Context, pl *types.MediaPlaylist, maxSegments int) (*CompletionMap, error) {
	base, err := url.Parse(pl.URL)
	if err != nil {
		return nil, &types.InvalidPlaylistError{URL: pl.URL, Reason: "bad playlist url", Err: err}
	}

	dir := s.Cache.Dir(pl.URL)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.FileIOError{Op: "mkdir", Path: dir, Err: err}
	}

	limit := Limit(pl, maxSegments)
	names := cache.SegmentNames(pl.Segments[:limit])
	cm := NewCompletionMap(limit)
	if s.State != nil {
		s.State.Total.Store(int64(limit))
	}

	conns := s.Runtime.GetConcurrency()
	gate := semaphore.NewWeighted(int64(conns))
	utils.Debug("Scheduler: %d segments, %d concurrent", limit, conns)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	// abort stops dispatching, drains what is in flight and reports the first real failure.
	abort := func(walkErr error) (*CompletionMap, error) {
		cancel()
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, walkErr
	}

	for i := 0; i < limit; i++ {
		seg := pl.Segments[i]

		// Key state must advance even for cached segments.
		if seg.Key != nil {
			if err := s.Keys.Observe(gctx, seg.Key); err != nil {
				return abort(err)
			}
		}

		path := s.Cache.PathFor(pl.URL, names[i])
		if s.Cache.ShouldSkip(path) {
			cm.Set(i, path)
			s.recordSkip(gctx, i, names[i], path)
			continue
		}

		if gctx.Err() != nil {
			break
		}

		segURL, err := utils.ResolveURL(base, seg.URI)
		if err != nil {
			return abort(&types.InvalidPlaylistError{URL: pl.URL, Reason: "bad segment uri " + seg.URI, Err: err})
		}

		t := task{
			index: i,
			name:  names[i],
			url:   segURL.String(),
			path:  path,
			seq:   pl.MediaSequence + uint64(i),
			key:   s.Keys.Current(),
		}
		g.Go(func() error {
			return s.runTask(gctx, gate, cm, t)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cm, nil
}

func (s *Scheduler) runTask(ctx context.Context, gate *semaphore.Weighted, cm *CompletionMap, t task) error {
	if err := gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer gate.Release(1)

	start := time.Now()
	data, err := s.Fetcher.Fetch(ctx, t.url)
	if err != nil {
		return err
	}

	if !t.key.IsNone() {
		data, err = keys.Decrypt(t.key, t.seq, data)
		if err != nil {
			return fmt.Errorf("decrypt %s: %w", t.name, err)
		}
	}

	if err := renameio.WriteFile(t.path, data, 0o644); err != nil {
		return &types.FileIOError{Op: "write", Path: t.path, Err: err}
	}

	cm.Set(t.index, t.path)
	if s.State != nil {
		s.State.Fetched.Add(1)
		s.State.Bytes.Add(int64(len(data)))
	}
	utils.Debug("Scheduler: %s (%s) in %s", t.name, utils.ConvertBytesToHumanReadable(int64(len(data))), time.Since(start).Round(time.Millisecond))

	s.emit(ctx, events.SegmentDoneMsg{
		RunID: s.RunID,
		Index: t.index,
		Name:  t.name,
		Bytes: int64(len(data)),
	})
	return nil
}

func (s *Scheduler) recordSkip(ctx context.Context, index int, name, path string) {
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	if s.State != nil {
		s.State.Skipped.Add(1)
		s.State.Bytes.Add(size)
	}
	utils.Debug("Scheduler: pass %s", name)
	s.emit(ctx, events.SegmentDoneMsg{
		RunID:  s.RunID,
		Index:  index,
		Name:   name,
		Bytes:  size,
		Cached: true,
	})
}

func (s *Scheduler) emit(ctx context.Context, msg any) {
	if s.ProgressCh == nil {
		return
	}
	select {
	case s.ProgressCh <- msg:
	case <-ctx.Done():
	}
}
