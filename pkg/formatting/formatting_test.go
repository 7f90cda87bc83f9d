package formatting_test

import (
	"errors"
	"testing"

	"github.com/JaimeStill/triage/pkg/formatting"
)

type draft struct {
	Zone       string  `json:"zone"`
	Confidence float64 `json:"confidence"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		zone    string
	}{
		{"plain", `{"zone":"TODAY","confidence":0.7}`, "TODAY"},
		{"padded", "  \n{\"zone\":\"STAT\"}\n ", "STAT"},
		{"json fence", "Here you go:\n```json\n{\"zone\":\"LATER\"}\n```", "LATER"},
		{"bare fence", "```\n{\"zone\":\"THIS_WEEK\"}\n```", "THIS_WEEK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.Parse[draft](tt.content)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if got.Zone != tt.zone {
				t.Errorf("Zone = %q, want %q", got.Zone, tt.zone)
			}
		})
	}
}

func TestParseFailure(t *testing.T) {
	for _, content := range []string{"no json here", "```json\nnot json\n```"} {
		_, err := formatting.Parse[draft](content)
		if !errors.Is(err, formatting.ErrParseFailed) {
			t.Errorf("Parse(%q) error = %v, want ErrParseFailed", content, err)
		}
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"512", 512},
		{"1KB", 1024},
		{"1 mb", 1024 * 1024},
		{"1.5KB", 1536},
		{"2GB", 2 * 1024 * 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.input)
			if err != nil {
				t.Fatalf("ParseBytes(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseBytesInvalid(t *testing.T) {
	for _, input := range []string{"", "MB", "-1KB", "10XB"} {
		if _, err := formatting.ParseBytes(input); err == nil {
			t.Errorf("ParseBytes(%q) should fail", input)
		}
	}
}
