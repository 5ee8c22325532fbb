package types

import (
	"time"
)

// Size constants
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
)

// Defaults shared by the CLI and the engine
const (
	DefaultConcurrency = 10
	DefaultOutputName  = "output"
	OutputExtension    = "ts"
	TranscodeExtension = "mp4"
	CacheNamespace     = "m3u8-dl"
)

// HTTP Client Tuning
const (
	DefaultMaxIdleConns        = 100
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second
	DialTimeout                = 10 * time.Second
	KeepAliveDuration          = 30 * time.Second
)

// Channel buffer sizes
const (
	ProgressChannelBuffer = 100
)

// JobConfig contains all parameters needed to run one playlist download
type JobConfig struct {
	URL         string
	OutputName  string // Base name without extension
	CacheDir    string // Root of the resume cache
	MaxSegments int    // 0 means no limit
	ForceReload bool
	Transcode   bool
	FFmpegPath  string // Resolved before the run when Transcode is set
	ProgressCh  chan<- any
	State       *ProgressState
	Runtime     *RuntimeConfig

	// SelectVariant is consulted when URL points at a master playlist.
	SelectVariant func(variants []Variant) (int, error)
}

// OutputPath returns the merged output file path
func (c *JobConfig) OutputPath() string {
	name := c.OutputName
	if name == "" {
		name = DefaultOutputName
	}
	return name + "." + OutputExtension
}

// RuntimeConfig holds dynamic settings that can override defaults
type RuntimeConfig struct {
	Concurrency         int
	UserAgent           string
	ProxyURL            string
	Headers             map[string]string
	SkipTLSVerification bool
	RequestsPerSecond   float64 // 0 means unlimited
	CacheNamespace      string
}

// GetUserAgent returns the configured user agent or the default
func (r *RuntimeConfig) GetUserAgent() string {
	if r == nil || r.UserAgent == "" {
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return r.UserAgent
}

// GetConcurrency returns the admission gate size
func (r *RuntimeConfig) GetConcurrency() int {
	if r == nil || r.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return r.Concurrency
}

// GetCacheNamespace returns configured value or default
func (r *RuntimeConfig) GetCacheNamespace() string {
	if r == nil || r.CacheNamespace == "" {
		return CacheNamespace
	}
	return r.CacheNamespace
}
