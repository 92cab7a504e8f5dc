package execx

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty output yields empty slice",
			input:    "",
			expected: []string{},
		},
		{
			name:     "single line without newline",
			input:    "one line",
			expected: []string{"one line"},
		},
		{
			name:     "single line with trailing newline",
			input:    "one line\n",
			expected: []string{"one line"},
		},
		{
			name:     "crlf normalized",
			input:    "first\r\nsecond\r\n",
			expected: []string{"first", "second"},
		},
		{
			name:     "interior blank lines preserved",
			input:    "a\n\nb\n",
			expected: []string{"a", "", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitLines(tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("SplitLines(%q) = %v, want %v", tt.input, got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("line %d: got %q, want %q", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestRunLaunchFailure(t *testing.T) {
	e := New(false, zerolog.Nop())

	res := e.Run(context.Background(), "definitely-not-a-real-command-xyz")

	if res.ExitCode == 0 {
		t.Error("expected non-zero exit code for missing binary")
	}
	if len(res.Lines) != 1 || !strings.HasPrefix(res.Lines[0], "EXCEPTION: ") {
		t.Errorf("expected single EXCEPTION line, got %v", res.Lines)
	}
}

func TestExists(t *testing.T) {
	e := New(false, zerolog.Nop())

	if e.Exists("definitely-not-a-real-command-xyz") {
		t.Error("expected missing command to not exist")
	}
}

func TestRunMutatingDryRun(t *testing.T) {
	e := New(true, zerolog.Nop())

	res := e.RunMutating(context.Background(), "winget", "upgrade", "--all")

	if res.ExitCode != 0 {
		t.Errorf("dry-run must report success, got exit code %d", res.ExitCode)
	}
	if len(res.Lines) != 1 || !strings.Contains(res.Lines[0], "would execute winget upgrade --all") {
		t.Errorf("expected dry-run marker line, got %v", res.Lines)
	}
}

func TestScriptRunner(t *testing.T) {
	s := NewScriptRunner()
	s.Script("npm update -g", 0, "updated 3 packages")
	s.MarkMissing("scoop")

	res := s.Run(context.Background(), "npm", "update", "-g")
	if res.ExitCode != 0 || len(res.Lines) != 1 {
		t.Fatalf("unexpected scripted result: %+v", res)
	}
	if s.Exists("scoop") {
		t.Error("scoop should be marked missing")
	}
	if s.CallCount("npm update -g") != 1 {
		t.Errorf("expected 1 call, got %d", s.CallCount("npm update -g"))
	}
}
