// Package keys tracks the active EXT-X-KEY while a media playlist is walked and decrypts segments.
package keys

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/surge-downloader/m3u8dl/internal/engine/fetch"
	"github.com/surge-downloader/m3u8dl/internal/engine/types"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

// ErrCiphertext is returned when a segment body cannot be AES-128-CBC decrypted.
var ErrCiphertext = errors.New("malformed ciphertext")

// Resolver holds the active key for the segment being walked.
// It is owned by the single walking goroutine and is not safe for concurrent use.
// Keys it hands out are never mutated afterwards.
type Resolver struct {
	fetcher fetch.Fetcher
	base    *url.URL
	current *types.ResolvedKey
	cache   map[string][]byte // key URL -> key bytes
}

// NewResolver creates a resolver whose relative key URIs resolve against playlistURL.
func NewResolver(f fetch.Fetcher, playlistURL string) (*Resolver, error) {
	base, err := url.Parse(playlistURL)
	if err != nil {
		return nil, &types.InvalidPlaylistError{URL: playlistURL, Reason: "bad playlist url", Err: err}
	}
	return &Resolver{
		fetcher: f,
		base:    base,
		current: types.NoKey,
		cache:   make(map[string][]byte),
	}, nil
}

// Current returns the key in effect for the segment currently being walked.
func (r *Resolver) Current() *types.ResolvedKey {
	return r.current
}

// Observe replaces the active key with the one described by ref.
// Key bytes are fetched synchronously; repeated references to the same URI reuse the first fetch.
func (r *Resolver) Observe(ctx context.Context, ref *types.KeyRef) error {
	if ref == nil {
		return nil
	}

	switch types.KeyMethod(strings.ToUpper(ref.Method)) {
	case types.KeyMethodNone, "":
		r.current = types.NoKey
		return nil
	case types.KeyMethodAES128:
	default:
		return &types.UnsupportedKeyMethodError{Method: ref.Method}
	}

	if ref.URI == "" {
		return &types.InvalidPlaylistError{URL: r.base.String(), Reason: "AES-128 key without URI"}
	}

	iv, err := ParseIV(ref.IV)
	if err != nil {
		return &types.InvalidPlaylistError{URL: r.base.String(), Reason: "bad IV " + ref.IV, Err: err}
	}

	keyURL, err := utils.ResolveURL(r.base, ref.URI)
	if err != nil {
		return &types.InvalidPlaylistError{URL: r.base.String(), Reason: "bad key uri", Err: err}
	}
	u := keyURL.String()

	key, ok := r.cache[u]
	if !ok {
		utils.Debug("Keys: fetching %s", u)
		key, err = r.fetcher.Fetch(ctx, u)
		if err != nil {
			return fmt.Errorf("fetch key: %w", err)
		}
		if len(key) != aes.BlockSize {
			return &types.InvalidPlaylistError{URL: u, Reason: fmt.Sprintf("key is %d bytes, want %d", len(key), aes.BlockSize)}
		}
		r.cache[u] = key
	}

	r.current = &types.ResolvedKey{Method: types.KeyMethodAES128, IV: iv, Key: key}
	return nil
}

// ParseIV decodes an EXT-X-KEY IV attribute. An empty string yields a nil IV.
func ParseIV(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(trimmed) < 2*aes.BlockSize {
		trimmed = strings.Repeat("0", 2*aes.BlockSize-len(trimmed)) + trimmed
	}
	iv, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, err
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv is %d bytes, want %d", len(iv), aes.BlockSize)
	}
	return iv, nil
}

// SequenceIV is the implicit IV of a segment: its media sequence number as a 128-bit big-endian integer.
func SequenceIV(seq uint64) []byte {
	iv := make([]byte, aes.BlockSize)
	binary.BigEndian.PutUint64(iv[8:], seq)
	return iv
}

// Decrypt decodes data under key. Clear keys return data unchanged.
// seq is the segment's media sequence number, used when the key has no explicit IV.
func Decrypt(key *types.ResolvedKey, seq uint64, data []byte) ([]byte, error) {
	if key.IsNone() {
		return data, nil
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrCiphertext, len(data))
	}

	block, err := aes.NewCipher(key.Key)
	if err != nil {
		return nil, err
	}
	iv := key.IV
	if iv == nil {
		iv = SequenceIV(seq)
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return unpad(out)
}

func unpad(b []byte) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrCiphertext)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrCiphertext)
		}
	}
	return b[:len(b)-n], nil
}
