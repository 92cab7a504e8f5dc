package sanitize

import (
	"strings"
	"testing"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain package id unchanged",
			input:    "Discord.Discord",
			expected: "Discord.Discord",
		},
		{
			name:     "invalid characters stripped",
			input:    "Name/With:Invalid*Chars",
			expected: "NameWithInvalidChars",
		},
		{
			name:     "spaces removed",
			input:    "Microsoft Edge WebView2 Runtime",
			expected: "MicrosoftEdgeWebView2Runtime",
		},
		{
			name:     "reserved device name gets underscore",
			input:    "CON",
			expected: "_CON",
		},
		{
			name:     "reserved name check is case-insensitive",
			input:    "nul",
			expected: "_nul",
		},
		{
			name:     "reserved lpt device",
			input:    "LPT1",
			expected: "_LPT1",
		},
		{
			name:     "empty input becomes underscore",
			input:    "///",
			expected: "_",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FileName(tt.input)
			if got != tt.expected {
				t.Errorf("FileName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFileNameTruncation(t *testing.T) {
	long := strings.Repeat("a", 200)
	got := FileName(long)

	if len(got) != maxNameLength {
		t.Errorf("expected truncated name of length %d, got %d", maxNameLength, len(got))
	}

	// Deterministic: same input always yields the same name.
	if again := FileName(long); again != got {
		t.Errorf("truncation is not deterministic: %q vs %q", got, again)
	}

	// Distinct long inputs must not collide.
	other := FileName(strings.Repeat("a", 199) + "b")
	if other == got {
		t.Errorf("distinct long inputs collided on %q", got)
	}

	if !strings.Contains(got, "-") {
		t.Errorf("expected hash suffix separator in %q", got)
	}
}
