package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	m3u8 "github.com/Eyevinn/hls-m3u8/m3u8"

	"github.com/surge-downloader/m3u8dl/internal/engine/fetch"
	"github.com/surge-downloader/m3u8dl/internal/engine/types"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

// VariantChooser picks one of the variants of a master playlist and returns its index
type VariantChooser func(variants []types.Variant) (int, error)

// LoadPlaylist fetches and parses the playlist at rawURL
func LoadPlaylist(ctx context.Context, f fetch.Fetcher, rawURL string) (*types.Playlist, error) {
	utils.Debug("Loading playlist: %s", rawURL)
	data, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return ParsePlaylist(rawURL, data)
}

// ParsePlaylist decodes a master or media playlist
func ParsePlaylist(rawURL string, data []byte) (*types.Playlist, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\ufeff \t\r\n"), []byte("#EXTM3U")) {
		return nil, &types.InvalidPlaylistError{URL: rawURL, Reason: "missing #EXTM3U header"}
	}

	pl, listType, err := m3u8.DecodeFrom(bytes.NewReader(data), false)
	if err != nil {
		return nil, &types.InvalidPlaylistError{URL: rawURL, Err: err}
	}

	switch listType {
	case m3u8.MASTER:
		master, ok := pl.(*m3u8.MasterPlaylist)
		if !ok {
			return nil, &types.InvalidPlaylistError{URL: rawURL, Reason: "unexpected master playlist type"}
		}
		out := &types.Playlist{URL: rawURL}
		for _, v := range master.Variants {
			if v == nil || v.URI == "" {
				continue
			}
			out.Variants = append(out.Variants, types.Variant{
				URI:        v.URI,
				Bandwidth:  v.Bandwidth,
				Resolution: v.Resolution,
				Codecs:     v.Codecs,
				Name:       v.Name,
				FrameRate:  v.FrameRate,
			})
		}
		if len(out.Variants) == 0 {
			return nil, &types.InvalidPlaylistError{URL: rawURL, Reason: "master playlist has no variants"}
		}
		return out, nil

	case m3u8.MEDIA:
		media, ok := pl.(*m3u8.MediaPlaylist)
		if !ok {
			return nil, &types.InvalidPlaylistError{URL: rawURL, Reason: "unexpected media playlist type"}
		}
		mp := &types.MediaPlaylist{
			URL:           rawURL,
			MediaSequence: media.SeqNo,
			Closed:        media.Closed,
		}
		for _, seg := range media.Segments {
			if seg == nil {
				break
			}
			mp.Segments = append(mp.Segments, types.Segment{
				Index:    len(mp.Segments),
				URI:      seg.URI,
				Duration: seg.Duration,
			})
		}

		keyRefs, err := scanKeyTags(data)
		if err != nil {
			return nil, &types.InvalidPlaylistError{URL: rawURL, Err: err}
		}
		for idx, ref := range keyRefs {
			if idx < len(mp.Segments) {
				mp.Segments[idx].Key = ref
			}
		}
		return &types.Playlist{URL: rawURL, Media: mp}, nil
	}

	return nil, &types.InvalidPlaylistError{URL: rawURL, Reason: "unknown playlist type"}
}

// scanKeyTags maps segment index to the EXT-X-KEY tag that precedes it.
// Only the segment directly after a tag gets the reference; later segments inherit it while walking.
func scanKeyTags(data []byte) (map[int]*types.KeyRef, error) {
	refs := make(map[int]*types.KeyRef)
	var pending *types.KeyRef
	idx := 0
	inf := false

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*types.KB), 4*types.MB)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "#EXT-X-KEY:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-KEY:"))
			// DRM key systems ride alongside the identity key; only the latter is usable here.
			if f, ok := attrs["KEYFORMAT"]; ok && !strings.EqualFold(f, "identity") {
				continue
			}
			pending = &types.KeyRef{
				Method: attrs["METHOD"],
				URI:    attrs["URI"],
				IV:     attrs["IV"],
			}
		case strings.HasPrefix(line, "#EXTINF:"):
			inf = true
		case strings.HasPrefix(line, "#"):
		case inf:
			if pending != nil {
				refs[idx] = pending
				pending = nil
			}
			idx++
			inf = false
		}
	}
	return refs, sc.Err()
}

// parseAttributes splits an HLS attribute list, honouring quoted values
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		name := strings.TrimSpace(s[:eq])
		s = s[eq+1:]

		var value string
		if strings.HasPrefix(s, `"`) {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				value, s = s[1:], ""
			} else {
				value, s = s[1:end+1], s[end+2:]
			}
			if comma := strings.IndexByte(s, ','); comma >= 0 {
				s = s[comma+1:]
			} else {
				s = ""
			}
		} else if comma := strings.IndexByte(s, ','); comma >= 0 {
			value, s = s[:comma], s[comma+1:]
		} else {
			value, s = s, ""
		}
		attrs[strings.ToUpper(name)] = strings.TrimSpace(value)
	}
	return attrs
}

// ResolveVariant returns the absolute media playlist URL of a variant
func ResolveVariant(masterURL string, v types.Variant) (string, error) {
	u, err := utils.ResolveURLString(masterURL, v.URI)
	if err != nil {
		return "", &types.InvalidPlaylistError{URL: masterURL, Reason: "bad variant uri " + v.URI, Err: err}
	}
	return u, nil
}

// BestVariant returns the index of the highest bandwidth variant, or -1 when there are none
func BestVariant(variants []types.Variant) int {
	best := -1
	for i, v := range variants {
		if best < 0 || v.Bandwidth > variants[best].Bandwidth {
			best = i
		}
	}
	return best
}

// SortedByBandwidth returns variant indices ordered from highest to lowest bandwidth
func SortedByBandwidth(variants []types.Variant) []int {
	idx := make([]int, len(variants))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return variants[idx[a]].Bandwidth > variants[idx[b]].Bandwidth
	})
	return idx
}

// DescribeVariant renders a one line summary for pickers and logs
func DescribeVariant(v types.Variant) string {
	var parts []string
	if v.Bandwidth > 0 {
		parts = append(parts, fmt.Sprintf("%d kbps", v.Bandwidth/1000))
	}
	if v.Resolution != "" {
		parts = append(parts, v.Resolution)
	}
	if v.FrameRate > 0 {
		parts = append(parts, fmt.Sprintf("%.3gfps", v.FrameRate))
	}
	if v.Codecs != "" {
		parts = append(parts, v.Codecs)
	}
	if v.Name != "" {
		parts = append(parts, v.Name)
	}
	if len(parts) == 0 {
		return v.URI
	}
	return strings.Join(parts, " | ")
}

// LoadMedia loads rawURL and, when it is a master playlist, follows the variant picked by choose.
// It returns the media playlist plus the variants that were offered (nil for a direct media playlist).
func LoadMedia(ctx context.Context, f fetch.Fetcher, rawURL string, choose VariantChooser) (*types.MediaPlaylist, []types.Variant, error) {
	pl, err := LoadPlaylist(ctx, f, rawURL)
	if err != nil {
		return nil, nil, err
	}
	if !pl.IsMaster() {
		return pl.Media, nil, nil
	}

	if choose == nil {
		choose = func(vs []types.Variant) (int, error) { return BestVariant(vs), nil }
	}
	i, err := choose(pl.Variants)
	if err != nil {
		return nil, pl.Variants, err
	}
	if i < 0 || i >= len(pl.Variants) {
		return nil, pl.Variants, fmt.Errorf("variant %d out of range (have %d)", i, len(pl.Variants))
	}

	mediaURL, err := ResolveVariant(rawURL, pl.Variants[i])
	if err != nil {
		return nil, pl.Variants, err
	}
	utils.Debug("Selected variant %d: %s", i, mediaURL)

	media, err := LoadPlaylist(ctx, f, mediaURL)
	if err != nil {
		return nil, pl.Variants, err
	}
	if media.IsMaster() {
		return nil, pl.Variants, &types.InvalidPlaylistError{URL: mediaURL, Reason: "variant points at another master playlist"}
	}
	return media.Media, pl.Variants, nil
}
