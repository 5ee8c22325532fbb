package types

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// TransportError is a network level failure talking to the origin
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is a non-success HTTP response
type RemoteError struct {
	URL        string
	StatusCode int
	RetryAfter time.Time // zero unless the origin sent Retry-After
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s download failed. http code: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if !e.RetryAfter.IsZero() {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter.Format(time.RFC3339))
	}
	return msg
}

// UnsupportedKeyMethodError aborts a run on an EXT-X-KEY method other than NONE or AES-128
type UnsupportedKeyMethodError struct {
	Method string
}

func (e *UnsupportedKeyMethodError) Error() string {
	return fmt.Sprintf("unsupported key method: %s", e.Method)
}

// FileIOError is a local read or write failure
type FileIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileIOError) Unwrap() error { return e.Err }

// InvalidPlaylistError is a playlist that cannot be parsed or used
type InvalidPlaylistError struct {
	URL    string
	Reason string
	Err    error
}

func (e *InvalidPlaylistError) Error() string {
	msg := "invalid playlist"
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidPlaylistError) Unwrap() error { return e.Err }

// TranscodeError is a failure of the external transcoder. It never invalidates the merged output.
type TranscodeError struct {
	Path   string // transcoder executable
	Stderr string
	Err    error
}

func (e *TranscodeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("transcode with %s failed: %v: %s", e.Path, e.Err, e.Stderr)
	}
	return fmt.Sprintf("transcode with %s failed: %v", e.Path, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// ErrTranscoderNotFound is returned when no transcoder executable can be located
var ErrTranscoderNotFound = errors.New("cannot find ffmpeg executable file, please set the FFMPEG_PATH environment variable")
