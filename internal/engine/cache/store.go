// Package cache maps playlist segments to files in the on-disk resume cache.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/surge-downloader/m3u8dl/internal/engine/types"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

// ErrLocked is returned when another process is already downloading into the same cache directory.
var ErrLocked = errors.New("cache directory is in use by another download")

// Store resolves resume cache paths of the form <Root>/<Namespace>/<hash(url)>/<basename>.
type Store struct {
	Root        string
	Namespace   string
	ForceReload bool
}

// NewStore creates a store rooted at root. An empty namespace uses the default.
func NewStore(root, namespace string, forceReload bool) *Store {
	if root == "" {
		root = os.TempDir()
	}
	if namespace == "" {
		namespace = types.CacheNamespace
	}
	return &Store{Root: root, Namespace: namespace, ForceReload: forceReload}
}

// URLHash returns a short stable identity for a playlist URL.
func URLHash(playlistURL string) string {
	sum := sha256.Sum256([]byte(playlistURL))
	return hex.EncodeToString(sum[:8])
}

// Dir returns the cache directory for a playlist.
func (s *Store) Dir(playlistURL string) string {
	return filepath.Join(s.Root, s.Namespace, URLHash(playlistURL))
}

// PathFor returns the cache file of a segment given its basename. Pure and deterministic.
func (s *Store) PathFor(playlistURL, name string) string {
	return filepath.Join(s.Dir(playlistURL), name)
}

// IsCached reports whether path exists and is non-empty.
// A zero-length file left behind by an interrupted write counts as missing.
func IsCached(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// ShouldSkip reports whether the segment at path can be taken from the cache.
func (s *Store) ShouldSkip(path string) bool {
	if s.ForceReload {
		return false
	}
	return IsCached(path)
}

// Prepare creates the playlist's cache directory and takes its lock.
// The returned unlock func must be called when the run ends.
func (s *Store) Prepare(playlistURL string) (string, func(), error) {
	dir := s.Dir(playlistURL)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, &types.FileIOError{Op: "mkdir", Path: dir, Err: err}
	}
	unlock, err := Lock(dir)
	if err != nil {
		return "", nil, err
	}
	return dir, unlock, nil
}

// Lock takes an exclusive non-blocking lock on dir via a sibling "<dir>.lock" file.
func Lock(dir string) (func(), error) {
	lockPath := dir + ".lock"
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, &types.FileIOError{Op: "lock", Path: lockPath, Err: err}
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", dir, ErrLocked)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			utils.Debug("Cache: unlock %s: %v", lockPath, err)
		}
	}, nil
}

// Clean removes the cache directory of a playlist. It refuses while a run holds the lock.
func (s *Store) Clean(playlistURL string) error {
	dir := s.Dir(playlistURL)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	unlock, err := Lock(dir)
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.RemoveAll(dir); err != nil {
		return &types.FileIOError{Op: "remove", Path: dir, Err: err}
	}
	return nil
}

// Size returns the number of files and total bytes cached for a playlist.
func (s *Store) Size(playlistURL string) (files int, bytes int64, err error) {
	entries, err := os.ReadDir(s.Dir(playlistURL))
	if errors.Is(err, os.ErrNotExist) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files++
		bytes += info.Size()
	}
	return files, bytes, nil
}

// SegmentNames returns the cache basename of every segment, in order.
// Basenames come from the segment URI; collisions and URIs without a usable
// basename are prefixed with the zero-padded segment index.
func SegmentNames(segments []types.Segment) []string {
	counts := make(map[string]int, len(segments))
	bases := make([]string, len(segments))
	for i, seg := range segments {
		bases[i] = utils.SegmentBasename(seg.URI)
		counts[bases[i]]++
	}

	width := len(fmt.Sprint(len(segments)))
	names := make([]string, len(segments))
	for i, base := range bases {
		switch {
		case base == "":
			names[i] = fmt.Sprintf("%0*d.ts", width, i)
		case counts[base] > 1:
			names[i] = fmt.Sprintf("%0*d_%s", width, i, base)
		default:
			names[i] = base
		}
	}
	return names
}
