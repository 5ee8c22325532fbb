package types

import "github.com/surge-downloader/m3u8dl/internal/config"

// ConvertRuntimeConfig converts the app-level RuntimeConfig to the engine-level RuntimeConfig.
func ConvertRuntimeConfig(rc *config.RuntimeConfig) *RuntimeConfig {
	if rc == nil {
		return &RuntimeConfig{}
	}
	headers := make(map[string]string, len(rc.Headers))
	for k, v := range rc.Headers {
		headers[k] = v
	}
	return &RuntimeConfig{
		Concurrency:         rc.Concurrency,
		UserAgent:           rc.UserAgent,
		ProxyURL:            rc.ProxyURL,
		Headers:             headers,
		SkipTLSVerification: rc.SkipTLSVerification,
		RequestsPerSecond:   rc.RequestsPerSecond,
		CacheNamespace:      rc.CacheNamespace,
	}
}
