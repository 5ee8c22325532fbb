package utils

import "testing"

func TestConvertBytesToHumanReadable(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{name: "zero", bytes: 0, want: "0 B"},
		{name: "bytes", bytes: 512, want: "512 B"},
		{name: "kb", bytes: 1024, want: "1.0 KB"},
		{name: "kb-fraction", bytes: 1536, want: "1.5 KB"},
		{name: "mb", bytes: 1024 * 1024, want: "1.0 MB"},
		{name: "gb", bytes: 3 * 1024 * 1024 * 1024, want: "3.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertBytesToHumanReadable(tt.bytes); got != tt.want {
				t.Fatalf("ConvertBytesToHumanReadable(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}
