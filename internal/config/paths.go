package config

import (
	"os"
	"path/filepath"
)

const appName = "m3u8dl"

// GetAppDir returns the directory holding settings, logs and run history.
// $XDG_CONFIG_HOME/m3u8dl when set, ~/.m3u8dl otherwise.
func GetAppDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "."+appName)
	}
	return filepath.Join(home, "."+appName)
}

// GetLogsDir returns the directory for debug logs
func GetLogsDir() string {
	return filepath.Join(GetAppDir(), "logs")
}

// GetHistoryDBPath returns the sqlite run history path
func GetHistoryDBPath() string {
	return filepath.Join(GetAppDir(), "history.db")
}

// EnsureDirs creates the application directories
func EnsureDirs() error {
	for _, dir := range []string{GetAppDir(), GetLogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
