package docstore

import (
	"testing"
	"time"
)

func TestNextSequence(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	tests := []struct {
		name     string
		previous int64
		want     int64
	}{
		{"fresh document", 0, 1_700_000_000_000},
		{"clock ahead of previous", 1_600_000_000_000, 1_700_000_000_000},
		{"same millisecond", 1_700_000_000_000, 1_700_000_000_001},
		{"clock behind previous", 1_700_000_000_500, 1_700_000_000_501},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextSequence(now, tt.previous); got != tt.want {
				t.Errorf("nextSequence(%v, %d) = %d, want %d", now, tt.previous, got, tt.want)
			}
			if got := nextSequence(now, tt.previous); got <= tt.previous {
				t.Errorf("sequence %d did not advance past %d", got, tt.previous)
			}
		})
	}
}

func TestValidFileName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"plain", "report.txt", true},
		{"empty is exempt", "", true},
		{"spaces", "my report.txt", true},
		{"forward slash", "a/b.txt", false},
		{"backslash", `a\b.txt`, false},
		{"nul byte", "a\x00b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validFileName(tt.input)
			if tt.ok && err != nil {
				t.Errorf("validFileName(%q) = %v, want nil", tt.input, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("validFileName(%q) = nil, want error", tt.input)
			}
		})
	}
}
