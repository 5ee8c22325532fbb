package types

// KeyMethod is the METHOD attribute of an EXT-X-KEY tag
type KeyMethod string

const (
	KeyMethodNone   KeyMethod = "NONE"
	KeyMethodAES128 KeyMethod = "AES-128"
)

// KeyRef is a key reference attached to a segment in the playlist
type KeyRef struct {
	Method string `json:"method"`
	URI    string `json:"uri,omitempty"`
	IV     string `json:"iv,omitempty"`
}

// ResolvedKey is the key material in effect for a run of segments.
// Once handed to a task it is never mutated.
type ResolvedKey struct {
	Method KeyMethod
	IV     []byte // nil when the playlist gave no IV
	Key    []byte
}

// NoKey is the active key before any key reference is seen
var NoKey = &ResolvedKey{Method: KeyMethodNone}

// IsNone reports whether segments under this key are stored in the clear
func (k *ResolvedKey) IsNone() bool {
	return k == nil || k.Method == KeyMethodNone
}

// Segment is one entry of a media playlist
type Segment struct {
	Index    int     `json:"index"`
	URI      string  `json:"uri"`
	Duration float64 `json:"duration"`
	Key      *KeyRef `json:"key,omitempty"`
}

// MediaPlaylist is a parsed media playlist
type MediaPlaylist struct {
	URL           string    `json:"url"`
	MediaSequence uint64    `json:"media_sequence"`
	Closed        bool      `json:"closed"`
	Segments      []Segment `json:"segments"`
}

// Variant is one stream of a master playlist
type Variant struct {
	URI        string  `json:"uri"`
	Bandwidth  uint32  `json:"bandwidth"`
	Resolution string  `json:"resolution,omitempty"`
	Codecs     string  `json:"codecs,omitempty"`
	Name       string  `json:"name,omitempty"`
	FrameRate  float64 `json:"frame_rate,omitempty"`
}

// Playlist is either a master playlist (Variants set) or a media playlist (Media set)
type Playlist struct {
	URL      string
	Variants []Variant
	Media    *MediaPlaylist
}

// IsMaster reports whether the playlist lists variant streams
func (p *Playlist) IsMaster() bool {
	return p != nil && p.Media == nil
}

// RunEntry represents a run in the history database
type RunEntry struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Output     string `json:"output"`
	CacheDir   string `json:"cache_dir"`
	Status     string `json:"status"` // "running", "completed", "error"
	Segments   int    `json:"segments"`
	Fetched    int    `json:"fetched"`
	Skipped    int    `json:"skipped"`
	Bytes      int64  `json:"bytes"`
	MIME       string `json:"mime,omitempty"`
	Error      string `json:"error,omitempty"`
	StartedAt  int64  `json:"started_at"`  // Unix timestamp
	FinishedAt int64  `json:"finished_at"` // Unix timestamp, 0 while running
}

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusError     = "error"
)
