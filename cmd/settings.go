package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/surge-downloader/m3u8dl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the settings file and its values",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), config.GetSettingsPath())
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := "text"
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			format = "json"
		}
		if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
			format = "yaml"
		}
		settings, err := config.LoadSettings()
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", config.GetSettingsPath(), err)
		}
		return printSettings(cmd.OutOrStdout(), settings, format)
	},
}

// categoryKeys maps display categories to their JSON object in the settings file
var categoryKeys = map[string]string{
	"General": "general",
	"Network": "connections",
	"Cache":   "cache",
}

// printSettings writes s as "text", "json" or "yaml"
func printSettings(w io.Writer, s *config.Settings, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if format == "json" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var values map[string]map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}

	meta := config.GetSettingsMetadata()
	for i, category := range config.CategoryOrder() {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "[%s]\n", category)
		section := values[categoryKeys[category]]
		for _, m := range meta[category] {
			_, _ = fmt.Fprintf(w, "  %-22s %s\n", m.Label+":", formatSetting(section[m.Key]))
		}
	}
	return nil
}

func formatSetting(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case string:
		if v == "" {
			return "(default)"
		}
		return v
	case map[string]any:
		if len(v) == 0 {
			return "-"
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := ""
		for i, k := range keys {
			if i > 0 {
				out += ", "
			}
			out += fmt.Sprintf("%s=%v", k, v[k])
		}
		return out
	default:
		return fmt.Sprint(v)
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd, configShowCmd)
	configShowCmd.Flags().Bool("json", false, "Output in JSON format")
	configShowCmd.Flags().Bool("yaml", false, "Output in YAML format")
	configShowCmd.MarkFlagsMutuallyExclusive("json", "yaml")
}
