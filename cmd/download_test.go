package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/surge-downloader/m3u8dl/internal/engine/cache"
	"github.com/surge-downloader/m3u8dl/internal/engine/types"
	"github.com/surge-downloader/m3u8dl/internal/testutil"
)

// =============================================================================
// Root command end to end (headless, since tests never run on a terminal)
// =============================================================================

func TestRootCmd_DownloadsPlaylist(t *testing.T) {
	setupIsolatedCmdState(t)
	origin := testutil.NewOriginT(t, testutil.WithSegments(5, 1024))
	work := t.TempDir()
	output := filepath.Join(work, "clip")

	out, err := executeCommand(t, "--no-tui", "--cache-dir", work, "-o", output, "-l", "2", origin.PlaylistURL())
	if err != nil {
		t.Fatalf("root command failed: %v\n%s", err, out)
	}

	got, err := os.ReadFile(output + ".ts")
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !bytes.Equal(got, origin.Expected()) {
		t.Errorf("merged output differs: got %d bytes, want %d", len(got), len(origin.Expected()))
	}

	store := cache.NewStore(work, types.CacheNamespace, false)
	if !strings.Contains(out, "Cache in "+store.Dir(origin.PlaylistURL())) {
		t.Errorf("output missing cache line:\n%s", out)
	}
	if !strings.Contains(out, "Saved "+output+".ts") {
		t.Errorf("output missing saved line:\n%s", out)
	}
}

func TestRootCmd_ResumeAndHistory(t *testing.T) {
	setupIsolatedCmdState(t)
	origin := testutil.NewOriginT(t, testutil.WithSegments(3, 256))
	work := t.TempDir()
	output := filepath.Join(work, "resume")

	if out, err := executeCommand(t, "--no-tui", "--cache-dir", work, "-o", output, origin.PlaylistURL()); err != nil {
		t.Fatalf("first run failed: %v\n%s", err, out)
	}
	out, err := executeCommand(t, "--no-tui", "--cache-dir", work, "-o", output, origin.PlaylistURL())
	if err != nil {
		t.Fatalf("second run failed: %v\n%s", err, out)
	}
	for i := 0; i < 3; i++ {
		if !strings.Contains(out, "Pass "+testutil.SegmentName(i)) {
			t.Errorf("second run should pass cached %s:\n%s", testutil.SegmentName(i), out)
		}
		if hits := origin.Hits(i); hits != 1 {
			t.Errorf("segment %d fetched %d times, want 1", i, hits)
		}
	}

	hist, err := executeCommand(t, "history", "--json")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var runs []types.RunEntry
	if err := json.Unmarshal([]byte(hist), &runs); err != nil {
		t.Fatalf("history --json not decodable: %v (%q)", err, hist)
	}
	if len(runs) != 2 {
		t.Fatalf("history has %d runs, want 2", len(runs))
	}
	for _, r := range runs {
		if r.Status != types.RunStatusCompleted {
			t.Errorf("run %s status = %q, want completed", r.ID, r.Status)
		}
	}
	if runs[0].Skipped != 3 || runs[1].Fetched != 3 {
		t.Errorf("unexpected counters, newest first: %+v", runs)
	}
}

func TestRootCmd_RemoteFailureExitsWithError(t *testing.T) {
	setupIsolatedCmdState(t)
	origin := testutil.NewOriginT(t, testutil.WithSegments(3, 64), testutil.WithFailSegment(1, http.StatusNotFound))
	work := t.TempDir()

	out, err := executeCommand(t, "--no-tui", "--cache-dir", work, "-o", filepath.Join(work, "broken"), origin.PlaylistURL())
	if err == nil {
		t.Fatalf("expected an error, output:\n%s", out)
	}
	if _, ok := err.(reportedError); !ok {
		t.Errorf("headless failures should be marked as reported, got %T", err)
	}
	if !strings.Contains(out, "Error:") {
		t.Errorf("headless output should show the error:\n%s", out)
	}
	if _, statErr := os.Stat(filepath.Join(work, "broken.ts")); !os.IsNotExist(statErr) {
		t.Error("no output should be written when a segment fails")
	}
}

func TestRootCmd_NumLimitsSegments(t *testing.T) {
	setupIsolatedCmdState(t)
	origin := testutil.NewOriginT(t, testutil.WithSegments(5, 100))
	work := t.TempDir()
	output := filepath.Join(work, "first-two")

	if out, err := executeCommand(t, "--no-tui", "--num", "2", "--cache-dir", work, "-o", output, origin.PlaylistURL()); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	got, err := os.ReadFile(output + ".ts")
	if err != nil {
		t.Fatal(err)
	}
	want := append(append([]byte{}, origin.Segments[0]...), origin.Segments[1]...)
	if !bytes.Equal(got, want) {
		t.Errorf("output has %d bytes, want the first two segments (%d bytes)", len(got), len(want))
	}
	for i := 2; i < 5; i++ {
		if origin.Hits(i) != 0 {
			t.Errorf("segment %d should never be fetched", i)
		}
	}
}

func TestRootCmd_MasterPlaylistPicksVariant(t *testing.T) {
	setupIsolatedCmdState(t)
	origin := testutil.NewOriginT(t, testutil.WithSegments(2, 128), testutil.WithVariants(800000, 2400000))
	work := t.TempDir()
	output := filepath.Join(work, "master")

	out, err := executeCommand(t, "--no-tui", "--variant", "0", "--cache-dir", work, "-o", output, origin.MasterURL())
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "0: 800 kbps") || !strings.Contains(out, "1: 2400 kbps") {
		t.Errorf("variants not listed:\n%s", out)
	}
	store := cache.NewStore(work, types.CacheNamespace, false)
	if !strings.Contains(out, store.Dir(origin.URL()+"/800000/index.m3u8")) {
		t.Errorf("variant 0 should be cached under its media url:\n%s", out)
	}
}
