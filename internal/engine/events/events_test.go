package events

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/surge-downloader/m3u8dl/internal/engine/types"
)

func TestRunErrorMsg_MarshalJSON(t *testing.T) {
	msg := RunErrorMsg{
		RunID: "run-1",
		URL:   "https://cdn.example.com/index.m3u8",
		Err:   errors.New("seg003.ts download failed. http code: 404 Not Found"),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if !strings.Contains(string(data), `"Err":"seg003.ts download failed. http code: 404 Not Found"`) {
		t.Errorf("error not encoded as string: %s", data)
	}
}

func TestRunErrorMsg_NilErrOmitted(t *testing.T) {
	data, err := json.Marshal(RunErrorMsg{RunID: "run-2"})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if strings.Contains(string(data), "Err") {
		t.Errorf("nil error should be omitted: %s", data)
	}
}

func TestRunErrorMsg_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"string error", `{"RunID":"a","Err":"boom"}`, "boom"},
		{"empty string", `{"RunID":"a","Err":""}`, ""},
		{"missing", `{"RunID":"a"}`, ""},
		{"null", `{"RunID":"a","Err":null}`, ""},
		{"object payload", `{"RunID":"a","Err":{}}`, "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg RunErrorMsg
			if err := json.Unmarshal([]byte(tt.input), &msg); err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}
			if msg.RunID != "a" {
				t.Errorf("RunID = %q, want %q", msg.RunID, "a")
			}
			got := ""
			if msg.Err != nil {
				got = msg.Err.Error()
			}
			if got != tt.wantErr {
				t.Errorf("Err = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestRunStartedMsg_StateNotSerialized(t *testing.T) {
	msg := RunStartedMsg{
		RunID:    "run-3",
		Segments: 4,
		State:    types.NewProgressState("run-3", 4),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if strings.Contains(string(data), "State") {
		t.Errorf("State should not be serialized: %s", data)
	}
}
