package state

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/surge-downloader/m3u8dl/internal/engine/types"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	Configure(filepath.Join(t.TempDir(), "history.db"))
	t.Cleanup(CloseDB)
}

func TestGetDB_NotConfigured(t *testing.T) {
	Configure("")
	defer CloseDB()
	if _, err := GetDB(); err == nil {
		t.Error("GetDB should fail without a configured path")
	}
}

func TestAddAndFinishRun(t *testing.T) {
	setupTestDB(t)

	entry := types.RunEntry{
		ID:       "11111111-aaaa-bbbb-cccc-000000000001",
		URL:      "https://cdn.example.com/live/index.m3u8",
		Output:   "output.ts",
		CacheDir: "/tmp/m3u8-dl/abcd",
		Segments: 10,
	}
	if err := AddRun(entry); err != nil {
		t.Fatalf("AddRun failed: %v", err)
	}

	got, err := GetRun(entry.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != types.RunStatusRunning {
		t.Errorf("Status = %q, want %q", got.Status, types.RunStatusRunning)
	}
	if got.StartedAt == 0 {
		t.Error("StartedAt should be set")
	}

	entry.Status = types.RunStatusCompleted
	entry.Fetched = 7
	entry.Skipped = 3
	entry.Bytes = 4096
	entry.MIME = "video/mp2t"
	if err := FinishRun(entry); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err = GetRun(entry.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != types.RunStatusCompleted || got.Fetched != 7 || got.Skipped != 3 || got.Bytes != 4096 {
		t.Errorf("unexpected finished run: %+v", got)
	}
	if got.MIME != "video/mp2t" {
		t.Errorf("MIME = %q, want %q", got.MIME, "video/mp2t")
	}
	if got.FinishedAt == 0 {
		t.Error("FinishedAt should be set")
	}
}

func TestFinishRun_Unknown(t *testing.T) {
	setupTestDB(t)
	err := FinishRun(types.RunEntry{ID: "missing", Status: types.RunStatusError})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FinishRun error = %v, want ErrNotFound", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	setupTestDB(t)

	for i, id := range []string{"a-old", "b-mid", "c-new"} {
		if err := AddRun(types.RunEntry{ID: id, URL: "u", StartedAt: int64(1000 + i)}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if strings.Join(ids, ",") != "c-new,b-mid,a-old" {
		t.Errorf("order = %v, want newest first", ids)
	}

	runs, err = ListRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("ListRuns(2) returned %d rows", len(runs))
	}
}

func TestListRuns_Empty(t *testing.T) {
	setupTestDB(t)
	runs, err := ListRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("ListRuns on empty db = %#v, want empty non-nil slice", runs)
	}
}

func TestResolveRunID(t *testing.T) {
	setupTestDB(t)
	for _, id := range []string{"12345678-aaaa", "12349999-bbbb", "abc_def"} {
		if err := AddRun(types.RunEntry{ID: id, URL: "u"}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		prefix  string
		want    string
		wantErr bool
	}{
		{"12345", "12345678-aaaa", false},
		{"1234", "", true},
		{"abc_", "abc_def", false},
		{"abc%", "", true},
		{"zzz", "", true},
	}
	for _, tt := range tests {
		got, err := ResolveRunID(tt.prefix)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolveRunID(%q) error = %v, wantErr %v", tt.prefix, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveRunID(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}
