package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/surge-downloader/m3u8dl/internal/config"
	"github.com/surge-downloader/m3u8dl/internal/engine/cache"
	"github.com/surge-downloader/m3u8dl/internal/engine/types"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or remove the resume cache of a media playlist",
	Long: `Segments are cached per media playlist url. For a master playlist pass the
url of the chosen variant, as printed by "m3u8dl history".`,
}

var cachePathCmd = &cobra.Command{
	Use:   "path <url>",
	Short: "Print the cache directory of a playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := cacheStore(cmd)
		dir := store.Dir(args[0])
		out := cmd.OutOrStdout()

		files, size, err := store.Size(args[0])
		if err != nil {
			return err
		}
		if files == 0 {
			_, _ = fmt.Fprintf(out, "%s (empty)\n", dir)
			return nil
		}
		_, _ = fmt.Fprintf(out, "%s (%d segments, %s)\n", dir, files, utils.ConvertBytesToHumanReadable(size))
		return nil
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean <url>",
	Short: "Delete the cached segments of a playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := cacheStore(cmd)
		dir := store.Dir(args[0])
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Nothing cached for %s\n", args[0])
			return nil
		}
		if err := store.Clean(args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", dir)
		return nil
	},
}

func cacheStore(cmd *cobra.Command) *cache.Store {
	settings, err := config.LoadSettings()
	if err != nil {
		settings = config.DefaultSettings()
	}
	root, _ := cmd.Flags().GetString("cache-dir")
	if root == "" {
		root = settings.Cache.Dir
	}
	if root == "" {
		root = os.TempDir()
	}
	runtime := types.ConvertRuntimeConfig(settings.ToRuntimeConfig())
	return cache.NewStore(root, runtime.GetCacheNamespace(), false)
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePathCmd, cacheCleanCmd)
	cacheCmd.PersistentFlags().String("cache-dir", "", "Root of the resume cache (default from settings)")
}
