package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// Settings holds all user-configurable application settings organized by category.
type Settings struct {
	General     GeneralSettings    `json:"general" yaml:"general"`
	Connections ConnectionSettings `json:"connections" yaml:"connections"`
	Cache       CacheSettings      `json:"cache" yaml:"cache"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	DefaultOutputName string `json:"default_output_name" yaml:"default_output_name"`
	Transcode         bool   `json:"transcode" yaml:"transcode"`
	AutoSelectBest    bool   `json:"auto_select_best" yaml:"auto_select_best"`
	DisableTUI        bool   `json:"disable_tui" yaml:"disable_tui"`
}

// ConnectionSettings contains network connection parameters.
type ConnectionSettings struct {
	Concurrency         int               `json:"concurrency" yaml:"concurrency"`
	UserAgent           string            `json:"user_agent" yaml:"user_agent"`
	ProxyURL            string            `json:"proxy_url" yaml:"proxy_url"`
	Headers             map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	SkipTLSVerification bool              `json:"skip_tls_verification" yaml:"skip_tls_verification"`
	RequestsPerSecond   float64           `json:"requests_per_second" yaml:"requests_per_second"`
}

// CacheSettings contains resume cache configuration.
type CacheSettings struct {
	Dir       string `json:"dir" yaml:"dir"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// SettingMeta provides metadata for a single setting (for `config show`).
type SettingMeta struct {
	Key         string // JSON key name
	Label       string // Human-readable label
	Description string
	Type        string // "string", "int", "float", "bool", "map"
}

// GetSettingsMetadata returns metadata for all settings organized by category.
func GetSettingsMetadata() map[string][]SettingMeta {
	return map[string][]SettingMeta{
		"General": {
			{Key: "default_output_name", Label: "Output Name", Description: "Base name of the merged file. The .ts extension is appended.", Type: "string"},
			{Key: "transcode", Label: "Transcode", Description: "Remux the merged file to mp4 with ffmpeg after every run.", Type: "bool"},
			{Key: "auto_select_best", Label: "Auto Select Best", Description: "Pick the highest bandwidth variant of a master playlist without asking.", Type: "bool"},
			{Key: "disable_tui", Label: "Disable TUI", Description: "Print plain progress lines instead of the interactive view.", Type: "bool"},
		},
		"Network": {
			{Key: "concurrency", Label: "Concurrency", Description: "Maximum number of segments fetched at once.", Type: "int"},
			{Key: "user_agent", Label: "User Agent", Description: "Custom User-Agent string for HTTP requests. Leave empty for default.", Type: "string"},
			{Key: "proxy_url", Label: "Proxy URL", Description: "HTTP/HTTPS or socks5 proxy URL. Leave empty to use system default.", Type: "string"},
			{Key: "headers", Label: "Headers", Description: "Extra request headers sent with every fetch.", Type: "map"},
			{Key: "skip_tls_verification", Label: "Skip TLS Verification", Description: "Accept invalid TLS certificates.", Type: "bool"},
			{Key: "requests_per_second", Label: "Request Rate", Description: "Upper bound on HTTP requests per second across all segments (0 = unlimited).", Type: "float"},
		},
		"Cache": {
			{Key: "dir", Label: "Cache Dir", Description: "Root of the resume cache. Defaults to the system temp directory.", Type: "string"},
			{Key: "namespace", Label: "Namespace", Description: "Sub-directory of the cache root owned by this tool.", Type: "string"},
		},
	}
}

// CategoryOrder returns the order of categories for display.
func CategoryOrder() []string {
	return []string{"General", "Network", "Cache"}
}

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	return &Settings{
		General: GeneralSettings{
			DefaultOutputName: "output",
			Transcode:         false,
			AutoSelectBest:    false,
			DisableTUI:        false,
		},
		Connections: ConnectionSettings{
			Concurrency: 10,
			UserAgent:   "", // Empty means use default UA
		},
		Cache: CacheSettings{
			Dir:       os.TempDir(),
			Namespace: "m3u8-dl",
		},
	}
}

// GetSettingsPath returns the path to the settings JSON file.
func GetSettingsPath() string {
	return filepath.Join(GetAppDir(), "settings.json")
}

// LoadSettings loads settings from disk. Returns defaults if file doesn't exist.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads settings from an explicit path over the defaults.
func LoadSettingsFrom(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings() // Start with defaults to fill any missing fields
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// SaveSettings saves settings to disk atomically.
func SaveSettings(s *Settings) error {
	return SaveSettingsTo(GetSettingsPath(), s)
}

// SaveSettingsTo saves settings to an explicit path atomically.
func SaveSettingsTo(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return renameio.WriteFile(path, data, 0644)
}

// RuntimeConfig is the subset of Settings the engine consumes.
type RuntimeConfig struct {
	Concurrency         int
	UserAgent           string
	ProxyURL            string
	Headers             map[string]string
	SkipTLSVerification bool
	RequestsPerSecond   float64
	CacheNamespace      string
}

// ToRuntimeConfig creates a RuntimeConfig from user Settings
func (s *Settings) ToRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Concurrency:         s.Connections.Concurrency,
		UserAgent:           s.Connections.UserAgent,
		ProxyURL:            s.Connections.ProxyURL,
		Headers:             s.Connections.Headers,
		SkipTLSVerification: s.Connections.SkipTLSVerification,
		RequestsPerSecond:   s.Connections.RequestsPerSecond,
		CacheNamespace:      s.Cache.Namespace,
	}
}
