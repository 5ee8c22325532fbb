package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/surge-downloader/m3u8dl/internal/engine/types"
)

// VariantsMsg lists the streams of a master playlist before one is chosen
type VariantsMsg struct {
	RunID    string
	URL      string
	Variants []types.Variant
}

// RunStartedMsg is sent once the media playlist is loaded and the cache is locked
type RunStartedMsg struct {
	RunID      string
	URL        string
	CacheDir   string
	OutputPath string
	Segments   int // Segments that will be merged, after the --num limit
	State      *types.ProgressState `json:"-"`
}

// SegmentDoneMsg reports one segment present in the cache, fetched or skipped
type SegmentDoneMsg struct {
	RunID  string
	Index  int
	Name   string
	Bytes  int64
	Cached bool // Taken from the resume cache without a fetch
}

// MergeStartedMsg is sent after every segment is on disk
type MergeStartedMsg struct {
	RunID      string
	OutputPath string
	Segments   int
}

// TranscodeStartedMsg is sent before the external transcoder runs
type TranscodeStartedMsg struct {
	RunID string
	Input string
}

// TranscodeCompleteMsg reports the transcoder result. Err never invalidates the merged output.
type TranscodeCompleteMsg struct {
	RunID  string
	Output string
	Err    error `json:"-"`
}

// RunCompleteMsg signals that the merged output is durably written
type RunCompleteMsg struct {
	RunID      string
	OutputPath string
	Elapsed    time.Duration
	Bytes      int64
	Fetched    int
	Skipped    int
}

// RunErrorMsg signals that the run failed
type RunErrorMsg struct {
	RunID string
	URL   string
	Err   error
}

func (m RunErrorMsg) MarshalJSON() ([]byte, error) {
	type encoded struct {
		RunID string `json:"RunID"`
		URL   string `json:"URL,omitempty"`
		Err   string `json:"Err,omitempty"`
	}

	out := encoded{
		RunID: m.RunID,
		URL:   m.URL,
	}
	if m.Err != nil {
		out.Err = m.Err.Error()
	}

	return json.Marshal(out)
}

func (m *RunErrorMsg) UnmarshalJSON(data []byte) error {
	var aux struct {
		RunID string          `json:"RunID"`
		URL   string          `json:"URL"`
		Err   json.RawMessage `json:"Err"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.RunID = aux.RunID
	m.URL = aux.URL
	m.Err = nil

	if len(aux.Err) == 0 {
		return nil
	}

	var errStr string
	if err := json.Unmarshal(aux.Err, &errStr); err == nil {
		if errStr != "" {
			m.Err = errors.New(errStr)
		}
		return nil
	}

	// Accept non-string payloads (e.g. {}).
	raw := string(aux.Err)
	if raw != "" && raw != "null" {
		m.Err = errors.New(raw)
	}
	return nil
}
