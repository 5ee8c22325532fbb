package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/surge-downloader/m3u8dl/internal/engine/state"
	"github.com/surge-downloader/m3u8dl/internal/engine/types"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

var historyCmd = &cobra.Command{
	Use:     "history [id]",
	Aliases: []string{"ls"},
	Short:   "List previous runs, or show one run in detail",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		limit, _ := cmd.Flags().GetInt("limit")
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			entry, err := state.GetRun(args[0])
			if err != nil {
				return err
			}
			return printRunDetail(out, *entry, jsonOutput)
		}

		runs, err := state.ListRuns(limit)
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		return printRuns(out, runs, jsonOutput)
	},
}

func printRuns(w io.Writer, runs []types.RunEntry, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs yet.")
		return err
	}

	_, _ = fmt.Fprintf(w, "%-10s %-10s %-9s %-10s %-19s %s\n", "ID", "STATUS", "SEGMENTS", "SIZE", "STARTED", "URL")
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		_, _ = fmt.Fprintf(w, "%-10s %-10s %-9s %-10s %-19s %s\n",
			id,
			r.Status,
			fmt.Sprintf("%d/%d", r.Fetched+r.Skipped, r.Segments),
			utils.ConvertBytesToHumanReadable(r.Bytes),
			formatUnix(r.StartedAt),
			truncateURL(r.URL, 60),
		)
	}
	return nil
}

func printRunDetail(w io.Writer, r types.RunEntry, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	_, _ = fmt.Fprintf(w, "ID:         %s\n", r.ID)
	_, _ = fmt.Fprintf(w, "URL:        %s\n", r.URL)
	_, _ = fmt.Fprintf(w, "Status:     %s\n", r.Status)
	_, _ = fmt.Fprintf(w, "Output:     %s\n", r.Output)
	_, _ = fmt.Fprintf(w, "Cache:      %s\n", r.CacheDir)
	_, _ = fmt.Fprintf(w, "Segments:   %d (%d fetched, %d cached)\n", r.Segments, r.Fetched, r.Skipped)
	_, _ = fmt.Fprintf(w, "Size:       %s\n", utils.ConvertBytesToHumanReadable(r.Bytes))
	if r.MIME != "" {
		_, _ = fmt.Fprintf(w, "Type:       %s\n", r.MIME)
	}
	_, _ = fmt.Fprintf(w, "Started:    %s\n", formatUnix(r.StartedAt))
	if r.FinishedAt > 0 {
		_, _ = fmt.Fprintf(w, "Finished:   %s\n", formatUnix(r.FinishedAt))
	}
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:      %s\n", r.Error)
	}
	return nil
}

func formatUnix(ts int64) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).Format("2006-01-02 15:04:05")
}

func truncateURL(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Bool("json", false, "Output in JSON format")
	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to list (0 = all)")
}
