package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/surge-downloader/m3u8dl/internal/config"
	"github.com/surge-downloader/m3u8dl/internal/download"
	"github.com/surge-downloader/m3u8dl/internal/engine"
	"github.com/surge-downloader/m3u8dl/internal/engine/events"
	"github.com/surge-downloader/m3u8dl/internal/engine/state"
	"github.com/surge-downloader/m3u8dl/internal/engine/types"
	"github.com/surge-downloader/m3u8dl/internal/tui"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// reportedError marks an error the event consumer already showed to the user
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "m3u8dl [url]",
	Short: "Download an HLS stream into a single file",
	Long: `m3u8dl fetches every segment of an HLS (m3u8) playlist concurrently,
decrypts AES-128 segments, keeps them in a resume cache and merges them in
playlist order into one transport stream.`,
	Version:       Version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		return initializeGlobalState(verbose)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		state.CloseDB()
		utils.CloseLogging()
	},
	RunE: runRoot,
}

// rootOptions are the flag values of the root command
type rootOptions struct {
	num       int
	limit     int
	reload    bool
	transcode bool
	output    string
	cacheDir  string
	variant   int
	best      bool
	headers   []string
	rate      float64
	noTUI     bool
	clipboard bool
}

func readOptions(cmd *cobra.Command) rootOptions {
	var o rootOptions
	f := cmd.Flags()
	o.num, _ = f.GetInt("num")
	o.limit, _ = f.GetInt("limit")
	o.reload, _ = f.GetBool("reload")
	o.transcode, _ = f.GetBool("transcode")
	o.output, _ = f.GetString("output")
	o.cacheDir, _ = f.GetString("cache-dir")
	o.variant, _ = f.GetInt("variant")
	o.best, _ = f.GetBool("best")
	o.headers, _ = f.GetStringArray("header")
	o.rate, _ = f.GetFloat64("rate")
	o.noTUI, _ = f.GetBool("no-tui")
	o.clipboard, _ = f.GetBool("clipboard")
	return o
}

func runRoot(cmd *cobra.Command, args []string) error {
	o := readOptions(cmd)

	settings, err := config.LoadSettings()
	if err != nil {
		utils.Debug("Settings: %v, using defaults", err)
		settings = config.DefaultSettings()
	}

	target, err := resolveTarget(args, o.clipboard)
	if err != nil {
		return err
	}

	job, err := buildJob(settings, o, target)
	if err != nil {
		return err
	}

	interactive := !o.noTUI && !settings.General.DisableTUI && isTerminal()
	job.SelectVariant = variantSelector(o, settings, interactive)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ch := make(chan any, types.ProgressChannelBuffer)
	job.ProgressCh = ch

	done := make(chan error, 1)
	go func() {
		defer close(ch)
		_, err := download.Run(ctx, job)
		done <- err
	}()

	if interactive {
		if err := runTUI(target, ch, cancel); err != nil {
			cancel()
			for range ch {
			}
			<-done
			return err
		}
		// The view stops listening after the final event
		go func() {
			for range ch {
			}
		}()
	} else {
		tui.NewHeadless(cmd.OutOrStdout()).Consume(ch)
	}

	if err := <-done; err != nil {
		if interactive {
			return err
		}
		return reportedError{err: err}
	}
	return nil
}

// runTUI waits until the run has started, so an interactive variant picker
// owns the terminal alone, then renders progress until the run ends.
func runTUI(target string, ch <-chan any, cancel context.CancelFunc) error {
	var first any
wait:
	for msg := range ch {
		switch msg.(type) {
		case events.RunStartedMsg, events.RunErrorMsg:
			first = msg
			break wait
		}
	}
	if first == nil {
		return nil
	}
	if _, failed := first.(events.RunErrorMsg); failed {
		return nil
	}

	m, _ := tui.NewRunModel(target, ch, cancel).Update(first)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// resolveTarget returns the playlist URL from the arguments or the clipboard
func resolveTarget(args []string, fromClipboard bool) (string, error) {
	var raw string
	switch {
	case len(args) > 0:
		raw = args[0]
	case fromClipboard:
		text, err := clipboard.ReadAll()
		if err != nil {
			return "", fmt.Errorf("failed to read clipboard: %w", err)
		}
		raw = text
	default:
		return "", errors.New("missing playlist url (pass it as an argument or use --clipboard)")
	}

	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("not an http(s) url: %q", raw)
	}
	return raw, nil
}

// buildJob merges settings and flags into a job. Flags win.
func buildJob(settings *config.Settings, o rootOptions, target string) (*types.JobConfig, error) {
	if o.num < 0 {
		return nil, fmt.Errorf("--num must not be negative, got %d", o.num)
	}
	if o.limit < 0 {
		return nil, fmt.Errorf("--limit must not be negative, got %d", o.limit)
	}
	if o.rate < 0 {
		return nil, fmt.Errorf("--rate must not be negative, got %v", o.rate)
	}

	runtime := types.ConvertRuntimeConfig(settings.ToRuntimeConfig())
	if o.limit > 0 {
		runtime.Concurrency = o.limit
	}
	if o.rate > 0 {
		runtime.RequestsPerSecond = o.rate
	}
	headers, err := parseHeaders(o.headers)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		runtime.Headers[k] = v
	}

	output := o.output
	if output == "" {
		output = settings.General.DefaultOutputName
	}
	output = strings.TrimSuffix(output, "."+types.OutputExtension)

	cacheDir := o.cacheDir
	if cacheDir == "" {
		cacheDir = settings.Cache.Dir
	}
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}

	return &types.JobConfig{
		URL:         target,
		OutputName:  output,
		CacheDir:    cacheDir,
		MaxSegments: o.num,
		ForceReload: o.reload,
		Transcode:   o.transcode || settings.General.Transcode,
		Runtime:     runtime,
	}, nil
}

// parseHeaders parses repeated "Name: value" flags
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Name: value\"", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// variantSelector decides how a master playlist variant is chosen.
// A nil selector means highest bandwidth.
func variantSelector(o rootOptions, settings *config.Settings, interactive bool) func([]types.Variant) (int, error) {
	switch {
	case o.variant >= 0:
		want := o.variant
		return func(variants []types.Variant) (int, error) {
			if want >= len(variants) {
				return -1, fmt.Errorf("--variant %d out of range, playlist has %d variants", want, len(variants))
			}
			return want, nil
		}
	case o.best || settings.General.AutoSelectBest || !interactive:
		return func(variants []types.Variant) (int, error) {
			return engine.BestVariant(variants), nil
		}
	default:
		return tui.PickVariant
	}
}

func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// initializeGlobalState sets up the application directories, logging and the run history
func initializeGlobalState(verbose bool) error {
	if err := config.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create application directories: %w", err)
	}
	if err := utils.ConfigureLogging(config.GetLogsDir(), verbose); err != nil {
		return err
	}
	state.Configure(config.GetHistoryDBPath())
	utils.Debug("m3u8dl %s (built %s) starting", Version, BuildTime)
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Also write debug logs to stderr")

	rootCmd.Flags().Int("num", 0, "Only download the first N segments (0 = all)")
	rootCmd.Flags().IntP("limit", "l", 0, "Maximum concurrent segment fetches (default from settings, 10)")
	rootCmd.Flags().Bool("reload", false, "Ignore cached segments and fetch everything again")
	rootCmd.Flags().BoolP("transcode", "t", false, "Remux the merged file to mp4 with ffmpeg")
	rootCmd.Flags().StringP("output", "o", "", "Output base name; .ts is appended")
	rootCmd.Flags().String("cache-dir", "", "Root of the resume cache (default: system temp dir)")
	rootCmd.Flags().Int("variant", -1, "Variant index to download from a master playlist")
	rootCmd.Flags().Bool("best", false, "Pick the highest bandwidth variant without asking")
	rootCmd.Flags().StringArray("header", nil, "Extra request header \"Name: value\" (repeatable)")
	rootCmd.Flags().Float64("rate", 0, "Maximum HTTP requests per second (0 = unlimited)")
	rootCmd.Flags().Bool("no-tui", false, "Print plain progress lines instead of the interactive view")
	rootCmd.Flags().Bool("clipboard", false, "Read the playlist url from the clipboard")
	rootCmd.MarkFlagsMutuallyExclusive("variant", "best")

	rootCmd.SetVersionTemplate("m3u8dl version {{.Version}}\n")
}
