// Package testutil provides an in-process HLS origin for engine and CLI tests.
package testutil

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Origin serves a generated media playlist, its segments, keys and optionally a master playlist.
//
// Routes (any directory prefix is accepted so variant playlists can live under sub paths):
//
//	/master.m3u8        master playlist listing one variant per bandwidth
//	.../index.m3u8      media playlist
//	.../seg/segNNN.ts   segment NNN
//	/key.bin, /key2.bin key material
type Origin struct {
	Server *httptest.Server

	// Configuration
	Segments      [][]byte      // Plaintext segment bodies
	MediaSequence uint64        // EXT-X-MEDIA-SEQUENCE
	Key           []byte        // AES-128 key for segments, nil for clear
	IV            []byte        // Explicit IV, nil to derive from the sequence number
	RotateAt      int           // Index of the first segment under Key2 (0 = no rotation)
	Key2          []byte        // Second key after RotateAt
	Latency       time.Duration // Artificial latency per segment request
	FailSegments  map[int]int   // Segment index -> HTTP status to answer with
	Bandwidths    []uint32      // Variants in the master playlist
	KeyMethod     string        // Overrides the METHOD attribute, e.g. SAMPLE-AES
	Query         string        // Appended to the playlist URL returned by PlaylistURL

	// Tracking
	RequestCount    atomic.Int64
	SegmentRequests atomic.Int64
	KeyRequests     atomic.Int64
	ActiveSegments  atomic.Int64
	MaxActive       atomic.Int64
	FailedRequests  atomic.Int64

	hitsMu sync.Mutex
	hits   map[int]int

	// Internal
	CustomHandler http.HandlerFunc
}

// OriginOption configures an Origin.
type OriginOption func(*Origin)

// WithHandler replaces all routing with h.
func WithHandler(h http.HandlerFunc) OriginOption {
	return func(o *Origin) {
		o.CustomHandler = h
	}
}

// WithSegments generates n segments of size bytes each. Segment i is filled with byte i.
func WithSegments(n, size int) OriginOption {
	return func(o *Origin) {
		o.Segments = make([][]byte, n)
		for i := range o.Segments {
			o.Segments[i] = bytes.Repeat([]byte{byte(i)}, size)
		}
	}
}

// WithSegmentData serves the given bodies verbatim.
func WithSegmentData(data [][]byte) OriginOption {
	return func(o *Origin) {
		o.Segments = data
	}
}

// WithMediaSequence sets EXT-X-MEDIA-SEQUENCE.
func WithMediaSequence(seq uint64) OriginOption {
	return func(o *Origin) {
		o.MediaSequence = seq
	}
}

// WithEncryption encrypts every segment with AES-128. A nil iv uses the media sequence number.
func WithEncryption(key, iv []byte) OriginOption {
	return func(o *Origin) {
		o.Key = key
		o.IV = iv
	}
}

// WithKeyRotation switches to key2 from segment index at onwards.
func WithKeyRotation(at int, key2 []byte) OriginOption {
	return func(o *Origin) {
		o.RotateAt = at
		o.Key2 = key2
	}
}

// WithKeyMethod overrides the METHOD attribute written into EXT-X-KEY.
func WithKeyMethod(method string) OriginOption {
	return func(o *Origin) {
		o.KeyMethod = method
	}
}

// WithLatency adds artificial latency to segment requests.
func WithLatency(d time.Duration) OriginOption {
	return func(o *Origin) {
		o.Latency = d
	}
}

// WithFailSegment makes segment index answer with status.
func WithFailSegment(index, status int) OriginOption {
	return func(o *Origin) {
		if o.FailSegments == nil {
			o.FailSegments = make(map[int]int)
		}
		o.FailSegments[index] = status
	}
}

// WithVariants publishes a master playlist with one variant per bandwidth.
func WithVariants(bandwidths ...uint32) OriginOption {
	return func(o *Origin) {
		o.Bandwidths = bandwidths
	}
}

// WithQuery appends a query string to the playlist URL.
func WithQuery(q string) OriginOption {
	return func(o *Origin) {
		o.Query = q
	}
}

// NewOriginT starts an origin bound to IPv4 and skips the test if binding fails.
func NewOriginT(t *testing.T, opts ...OriginOption) *Origin {
	t.Helper()
	o := &Origin{hits: make(map[int]int)}
	for _, opt := range opts {
		opt(o)
	}
	o.Server = NewHTTPServerT(t, http.HandlerFunc(o.handleRequest))
	t.Cleanup(o.Close)
	return o
}

// NewHTTPServerT starts an httptest server bound to IPv4 and skips the test if binding fails.
// Sandboxed CI runners often lack an IPv6 loopback.
func NewHTTPServerT(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("tcp4 listener unavailable: %v", err)
		return nil
	}

	srv := &httptest.Server{
		Listener: ln,
		Config:   &http.Server{Handler: handler},
	}
	srv.Start()
	return srv
}

// URL returns the server's base URL.
func (o *Origin) URL() string {
	return o.Server.URL
}

// PlaylistURL returns the media playlist URL including any configured query.
func (o *Origin) PlaylistURL() string {
	u := o.Server.URL + "/live/index.m3u8"
	if o.Query != "" {
		u += "?" + o.Query
	}
	return u
}

// MasterURL returns the master playlist URL.
func (o *Origin) MasterURL() string {
	return o.Server.URL + "/master.m3u8"
}

// Close shuts down the origin.
func (o *Origin) Close() {
	if o.Server != nil {
		o.Server.Close()
	}
}

// SegmentName is the basename under which segment i is published.
func SegmentName(i int) string {
	return fmt.Sprintf("seg%03d.ts", i)
}

// Hits returns how often segment i was requested.
func (o *Origin) Hits(i int) int {
	o.hitsMu.Lock()
	defer o.hitsMu.Unlock()
	return o.hits[i]
}

// Expected returns the plaintext concatenation of all segments.
func (o *Origin) Expected() []byte {
	var buf bytes.Buffer
	for _, s := range o.Segments {
		buf.Write(s)
	}
	return buf.Bytes()
}

// MediaPlaylist renders the media playlist body.
func (o *Origin) MediaPlaylist() string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:4\n")
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", o.MediaSequence)
	for i := range o.Segments {
		switch {
		case i == 0 && o.Key != nil:
			b.WriteString(o.keyTag("/key.bin"))
		case o.RotateAt > 0 && i == o.RotateAt && o.Key2 != nil:
			b.WriteString(o.keyTag("/key2.bin"))
		}
		fmt.Fprintf(&b, "#EXTINF:4.000,\nseg/%s\n", SegmentName(i))
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

func (o *Origin) keyTag(uri string) string {
	method := "AES-128"
	if o.KeyMethod != "" {
		method = o.KeyMethod
	}
	tag := fmt.Sprintf(`#EXT-X-KEY:METHOD=%s,URI="%s"`, method, uri)
	if o.IV != nil {
		tag += ",IV=0x" + hex.EncodeToString(o.IV)
	}
	return tag + "\n"
}

// MasterPlaylist renders the master playlist body.
func (o *Origin) MasterPlaylist() string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, bw := range o.Bandwidths {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n%d/index.m3u8\n", bw, resolutionFor(bw), bw)
	}
	return b.String()
}

func resolutionFor(bw uint32) string {
	switch {
	case bw >= 3000000:
		return "1920x1080"
	case bw >= 1000000:
		return "1280x720"
	default:
		return "640x360"
	}
}

func (o *Origin) handleRequest(w http.ResponseWriter, r *http.Request) {
	if o.CustomHandler != nil {
		o.CustomHandler(w, r)
		return
	}
	o.RequestCount.Add(1)

	p := r.URL.Path
	switch {
	case p == "/master.m3u8" && len(o.Bandwidths) > 0:
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte(o.MasterPlaylist()))
	case strings.HasSuffix(p, "/index.m3u8"):
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte(o.MediaPlaylist()))
	case p == "/key.bin" && o.Key != nil:
		o.KeyRequests.Add(1)
		_, _ = w.Write(o.Key)
	case p == "/key2.bin" && o.Key2 != nil:
		o.KeyRequests.Add(1)
		_, _ = w.Write(o.Key2)
	case strings.Contains(p, "/seg/"):
		o.serveSegment(w, p)
	default:
		http.NotFound(w, r)
	}
}

func (o *Origin) serveSegment(w http.ResponseWriter, p string) {
	var idx int
	if _, err := fmt.Sscanf(p[strings.LastIndex(p, "/")+1:], "seg%03d.ts", &idx); err != nil || idx < 0 || idx >= len(o.Segments) {
		http.Error(w, "no such segment", http.StatusNotFound)
		return
	}

	o.SegmentRequests.Add(1)
	o.hitsMu.Lock()
	o.hits[idx]++
	o.hitsMu.Unlock()

	active := o.ActiveSegments.Add(1)
	defer o.ActiveSegments.Add(-1)
	for {
		peak := o.MaxActive.Load()
		if active <= peak || o.MaxActive.CompareAndSwap(peak, active) {
			break
		}
	}

	if status, ok := o.FailSegments[idx]; ok {
		o.FailedRequests.Add(1)
		http.Error(w, "simulated failure", status)
		return
	}

	if o.Latency > 0 {
		time.Sleep(o.Latency)
	}

	body := o.Segments[idx]
	if key := o.keyFor(idx); key != nil {
		iv := o.IV
		if iv == nil {
			iv = SequenceIV(o.MediaSequence + uint64(idx))
		}
		body = Encrypt(key, iv, body)
	}
	w.Header().Set("Content-Type", "video/mp2t")
	_, _ = w.Write(body)
}

func (o *Origin) keyFor(idx int) []byte {
	if o.Key2 != nil && o.RotateAt > 0 && idx >= o.RotateAt {
		return o.Key2
	}
	return o.Key
}

// SequenceIV encodes a media sequence number as a 16-byte big-endian IV.
func SequenceIV(seq uint64) []byte {
	iv := make([]byte, aes.BlockSize)
	binary.BigEndian.PutUint64(iv[8:], seq)
	return iv
}

// Encrypt applies AES-128-CBC with PKCS#7 padding. It panics on a bad key size.
func Encrypt(key, iv, plain []byte) []byte {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	buf := make([]byte, len(plain)+pad)
	copy(buf, plain)
	for i := len(plain); i < len(buf); i++ {
		buf[i] = byte(pad)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(buf, buf)
	return buf
}
