package utils

import (
	"net/url"
	"path"
	"strings"
)

// ResolveURL resolves a playlist reference against the playlist URL.
//
//	https://h.example/live/index.m3u8 + seg001.ts              -> https://h.example/live/seg001.ts
//	https://h.example/live/index.m3u8 + /abs/seg.ts            -> https://h.example/abs/seg.ts
//	https://h.example/live/index.m3u8 + https://other/x.ts     -> https://other/x.ts
//
// The playlist query string is carried over when the reference has none of its own.
func ResolveURL(base *url.URL, ref string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	if parsed.IsAbs() {
		return parsed, nil
	}
	if parsed.Host != "" {
		// scheme-relative
		return base.ResolveReference(parsed), nil
	}

	resolved := *base
	resolved.RawPath = ""
	resolved.Fragment = ""
	resolved.RawFragment = ""

	if strings.HasPrefix(parsed.Path, "/") {
		resolved.Path = parsed.Path
	} else {
		dir := path.Dir(base.Path)
		if strings.HasSuffix(base.Path, "/") {
			dir = strings.TrimSuffix(base.Path, "/")
		}
		if dir == "." || dir == "" {
			dir = "/"
		}
		resolved.Path = path.Join(dir, parsed.Path)
	}
	if parsed.RawQuery != "" {
		resolved.RawQuery = parsed.RawQuery
	}
	return &resolved, nil
}

// ResolveURLString is ResolveURL for string inputs
func ResolveURLString(baseURL, ref string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	u, err := ResolveURL(base, ref)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// SegmentBasename returns the file name part of a segment URI without its query
// Example: https://example.com/a/b/seg001.ts?token=1 -> seg001.ts
func SegmentBasename(rawURI string) string {
	p := rawURI
	if u, err := url.Parse(rawURI); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
