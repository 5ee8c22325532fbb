package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/surge-downloader/m3u8dl/internal/config"
	"github.com/surge-downloader/m3u8dl/internal/engine/types"
)

// =============================================================================
// Command tree
// =============================================================================

func TestRootCmd_Use(t *testing.T) {
	if !strings.HasPrefix(rootCmd.Use, "m3u8dl") {
		t.Errorf("rootCmd.Use = %q, want m3u8dl prefix", rootCmd.Use)
	}
	if rootCmd.Version != Version {
		t.Errorf("rootCmd.Version = %q, want %q", rootCmd.Version, Version)
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	want := map[string]bool{"history": false, "cache": false, "config": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestRootCmd_Flags(t *testing.T) {
	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"num", "", "0"},
		{"limit", "l", "0"},
		{"reload", "", "false"},
		{"transcode", "t", "false"},
		{"output", "o", ""},
		{"cache-dir", "", ""},
		{"variant", "", "-1"},
		{"best", "", "false"},
		{"header", "", "[]"},
		{"rate", "", "0"},
		{"no-tui", "", "false"},
		{"clipboard", "", "false"},
	}
	for _, tt := range tests {
		f := rootCmd.Flags().Lookup(tt.name)
		if f == nil {
			t.Errorf("flag --%s not registered", tt.name)
			continue
		}
		if f.Shorthand != tt.shorthand {
			t.Errorf("--%s shorthand = %q, want %q", tt.name, f.Shorthand, tt.shorthand)
		}
		if f.DefValue != tt.def {
			t.Errorf("--%s default = %q, want %q", tt.name, f.DefValue, tt.def)
		}
	}
	if rootCmd.PersistentFlags().Lookup("verbose") == nil {
		t.Error("--verbose should be a persistent flag")
	}
}

func TestRootCmd_VariantAndBestExclusive(t *testing.T) {
	setupIsolatedCmdState(t)
	_, err := executeCommand(t, "--variant", "1", "--best", "--no-tui", "http://127.0.0.1:1/index.m3u8")
	if err == nil || !strings.Contains(err.Error(), "none of the others can be") {
		t.Errorf("expected mutual exclusion error, got %v", err)
	}
}

// =============================================================================
// Flag handling
// =============================================================================

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "http", args: []string{"http://example.com/live/index.m3u8"}, want: "http://example.com/live/index.m3u8"},
		{name: "trimmed", args: []string{"  https://example.com/a.m3u8\n"}, want: "https://example.com/a.m3u8"},
		{name: "missing", args: nil, wantErr: true},
		{name: "file scheme", args: []string{"file:///tmp/a.m3u8"}, wantErr: true},
		{name: "no host", args: []string{"http:///a.m3u8"}, wantErr: true},
		{name: "garbage", args: []string{"not a url"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveTarget(tt.args, false)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("resolveTarget(%v) = %q, want error", tt.args, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveTarget(%v) error: %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("resolveTarget(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseHeaders(t *testing.T) {
	got, err := parseHeaders([]string{"Referer: https://example.com/", "X-Token:abc", "Empty:"})
	if err != nil {
		t.Fatalf("parseHeaders error: %v", err)
	}
	want := map[string]string{"Referer": "https://example.com/", "X-Token": "abc", "Empty": ""}
	if len(got) != len(want) {
		t.Fatalf("parseHeaders = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("header %q = %q, want %q", k, got[k], v)
		}
	}

	for _, bad := range []string{"no colon", ": value"} {
		if _, err := parseHeaders([]string{bad}); err == nil {
			t.Errorf("parseHeaders(%q) should fail", bad)
		}
	}
}

func TestBuildJob_FlagsOverrideSettings(t *testing.T) {
	settings := config.DefaultSettings()
	settings.General.DefaultOutputName = "from-settings"
	settings.General.Transcode = true
	settings.Connections.Concurrency = 3
	settings.Connections.Headers = map[string]string{"Referer": "a", "Cookie": "c"}
	settings.Cache.Dir = "/settings/cache"

	job, err := buildJob(settings, rootOptions{
		num:      5,
		limit:    7,
		reload:   true,
		output:   "clip.ts",
		cacheDir: "/flag/cache",
		variant:  -1,
		headers:  []string{"Referer: b"},
		rate:     4,
	}, "http://example.com/index.m3u8")
	if err != nil {
		t.Fatalf("buildJob error: %v", err)
	}

	if job.OutputPath() != "clip.ts" {
		t.Errorf("OutputPath() = %q, want clip.ts", job.OutputPath())
	}
	if job.CacheDir != "/flag/cache" {
		t.Errorf("CacheDir = %q", job.CacheDir)
	}
	if job.MaxSegments != 5 || !job.ForceReload || !job.Transcode {
		t.Errorf("job = %+v", job)
	}
	if got := job.Runtime.GetConcurrency(); got != 7 {
		t.Errorf("concurrency = %d, want 7", got)
	}
	if job.Runtime.RequestsPerSecond != 4 {
		t.Errorf("rate = %v, want 4", job.Runtime.RequestsPerSecond)
	}
	if job.Runtime.Headers["Referer"] != "b" || job.Runtime.Headers["Cookie"] != "c" {
		t.Errorf("headers = %v", job.Runtime.Headers)
	}
	if settings.Connections.Headers["Referer"] != "a" {
		t.Error("buildJob must not mutate the loaded settings")
	}
}

func TestBuildJob_Defaults(t *testing.T) {
	settings := config.DefaultSettings()
	job, err := buildJob(settings, rootOptions{variant: -1}, "http://example.com/index.m3u8")
	if err != nil {
		t.Fatalf("buildJob error: %v", err)
	}
	if job.OutputPath() != types.DefaultOutputName+".ts" {
		t.Errorf("OutputPath() = %q", job.OutputPath())
	}
	if job.CacheDir != settings.Cache.Dir {
		t.Errorf("CacheDir = %q, want %q", job.CacheDir, settings.Cache.Dir)
	}
	if job.Runtime.GetConcurrency() != types.DefaultConcurrency {
		t.Errorf("concurrency = %d", job.Runtime.GetConcurrency())
	}
	if job.MaxSegments != 0 || job.ForceReload || job.Transcode {
		t.Errorf("unexpected job defaults %+v", job)
	}
}

func TestBuildJob_RejectsNegative(t *testing.T) {
	settings := config.DefaultSettings()
	if _, err := buildJob(settings, rootOptions{num: -1}, "http://x/a.m3u8"); err == nil {
		t.Error("negative --num should fail")
	}
	if _, err := buildJob(settings, rootOptions{limit: -2}, "http://x/a.m3u8"); err == nil {
		t.Error("negative --limit should fail")
	}
	if _, err := buildJob(settings, rootOptions{rate: -1}, "http://x/a.m3u8"); err == nil {
		t.Error("negative --rate should fail")
	}
}

func TestVariantSelector(t *testing.T) {
	variants := []types.Variant{
		{URI: "low.m3u8", Bandwidth: 100},
		{URI: "high.m3u8", Bandwidth: 900},
	}
	settings := config.DefaultSettings()

	fixed := variantSelector(rootOptions{variant: 0}, settings, true)
	if got, err := fixed(variants); err != nil || got != 0 {
		t.Errorf("--variant 0 = %d, %v", got, err)
	}
	outOfRange := variantSelector(rootOptions{variant: 5}, settings, true)
	if _, err := outOfRange(variants); err == nil {
		t.Error("--variant 5 should fail on a 2-variant playlist")
	}

	best := variantSelector(rootOptions{variant: -1, best: true}, settings, true)
	if got, _ := best(variants); got != 1 {
		t.Errorf("--best = %d, want 1", got)
	}

	headless := variantSelector(rootOptions{variant: -1}, settings, false)
	if got, _ := headless(variants); got != 1 {
		t.Errorf("non-interactive default = %d, want 1", got)
	}
}

func TestReportedError_Unwraps(t *testing.T) {
	base := errors.New("boom")
	var err error = reportedError{err: base}
	if !errors.Is(err, base) {
		t.Error("reportedError should unwrap to the run error")
	}
	if err.Error() != "boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}
