package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/vfaronov/httpheader"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/surge-downloader/m3u8dl/internal/engine/types"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

// Fetcher retrieves the raw bytes behind a URL
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTPFetcher fetches whole resources with a single GET.
// There is no per-request timeout; callers bound work through the context.
type HTTPFetcher struct {
	Client  *http.Client
	Headers map[string]string // Custom HTTP headers (cookies, referer, auth, etc.)
	Runtime *types.RuntimeConfig
	Limiter *rate.Limiter // nil = unlimited
}

// NewHTTPFetcher creates a fetcher with a transport sized for concurrent segment fetches
func NewHTTPFetcher(runtime *types.RuntimeConfig) *HTTPFetcher {
	conns := runtime.GetConcurrency()
	transport := &http.Transport{
		MaxIdleConns:        types.DefaultMaxIdleConns,
		MaxIdleConnsPerHost: conns + 2,
		IdleConnTimeout:     types.DefaultIdleConnTimeout,
		TLSHandshakeTimeout: types.DefaultTLSHandshakeTimeout,
		DialContext: (&net.Dialer{
			Timeout:   types.DialTimeout,
			KeepAlive: types.KeepAliveDuration,
		}).DialContext,
	}

	if runtime != nil && runtime.ProxyURL != "" {
		parsedURL, err := url.Parse(runtime.ProxyURL)
		if err != nil {
			utils.Debug("Fetcher: Invalid proxy URL %s: %v", runtime.ProxyURL, err)
			transport.Proxy = http.ProxyFromEnvironment
		} else if strings.HasPrefix(parsedURL.Scheme, "socks5") {
			utils.Debug("Fetcher: Using SOCKS5 proxy: %s", runtime.ProxyURL)
			dialer, dialErr := proxy.SOCKS5("tcp", parsedURL.Host, nil, proxy.Direct)
			if dialErr != nil {
				utils.Debug("Fetcher: Failed to create SOCKS5 dialer: %v", dialErr)
				transport.Proxy = http.ProxyFromEnvironment
			} else {
				transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
					if cd, ok := dialer.(proxy.ContextDialer); ok {
						return cd.DialContext(ctx, network, addr)
					}
					return dialer.Dial(network, addr)
				}
			}
		} else {
			transport.Proxy = http.ProxyURL(parsedURL)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	if runtime != nil && runtime.SkipTLSVerification {
		utils.Debug("Fetcher: TLS verification disabled")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	var headers map[string]string
	if runtime != nil {
		headers = runtime.Headers
	}

	return &HTTPFetcher{
		Client:  &http.Client{Timeout: 0, Transport: transport},
		Headers: headers,
		Runtime: runtime,
		Limiter: newLimiter(runtime),
	}
}

func newLimiter(runtime *types.RuntimeConfig) *rate.Limiter {
	if runtime == nil || runtime.RequestsPerSecond <= 0 {
		return nil
	}
	burst := int(runtime.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	utils.Debug("Fetcher: limiting to %.2f requests/s", runtime.RequestsPerSecond)
	return rate.NewLimiter(rate.Limit(runtime.RequestsPerSecond), burst)
}

// Fetch downloads rawURL into memory.
// Non-2xx responses return *types.RemoteError, network failures *types.TransportError.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, &types.TransportError{URL: rawURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &types.TransportError{URL: rawURL, Err: err}
	}

	for key, val := range f.Headers {
		req.Header.Set(key, val)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", f.Runtime.GetUserAgent())
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &types.TransportError{URL: rawURL, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			utils.Debug("Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &types.RemoteError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			RetryAfter: httpheader.RetryAfter(resp.Header),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.TransportError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}
