// Package report defines the run summary document, the hand-off artifact
// consumed by reporting collaborators. Collaborators receive it read-only.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/updrift/updrift/internal/step"
)

// summaryTimeLayout embeds a sortable timestamp in summary filenames.
const summaryTimeLayout = "20060102-150405"

// Summary wraps one run's results.
type Summary struct {
	RunID                string        `json:"runId"`
	RunAt                time.Time     `json:"runAt"`
	LogFilePath          string        `json:"logFilePath"`
	TotalDurationSeconds float64       `json:"totalDurationSeconds"`
	Results              []step.Result `json:"results"`
}

// FailedSections counts results with terminal status FAIL.
func (s *Summary) FailedSections() int {
	n := 0
	for _, r := range s.Results {
		if r.Status == step.StatusFail {
			n++
		}
	}
	return n
}

// ExitCode is the process exit code the run communicates to calling scripts:
// 0 if no section failed, 1 otherwise. Skip and Ok are both non-failing.
func (s *Summary) ExitCode() int {
	if s.FailedSections() > 0 {
		return 1
	}
	return 0
}

// Write persists the summary as JSON under dir and returns the path.
func Write(dir string, s *Summary) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create summary directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("run-%s.json", s.RunAt.Format(summaryTimeLayout)))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write summary file: %w", err)
	}
	return path, nil
}

// Load reads a summary document back from disk.
func Load(path string) (*Summary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary %s: %w", path, err)
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse summary %s: %w", path, err)
	}
	return &s, nil
}

// Comparison describes how total duration moved between two runs.
type Comparison struct {
	BeforeSeconds float64 `json:"beforeSeconds"`
	AfterSeconds  float64 `json:"afterSeconds"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percentChange"`
}

// CompareDurations compares two total durations. PercentChange is relative
// to the before value and 0 when before is 0.
func CompareDurations(before, after float64) Comparison {
	c := Comparison{
		BeforeSeconds: before,
		AfterSeconds:  after,
		Change:        round1(after - before),
	}
	if before != 0 {
		c.PercentChange = round1((after - before) / before * 100)
	}
	return c
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
