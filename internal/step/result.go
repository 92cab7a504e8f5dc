// Package step provides the execution wrapper for update sections: timing,
// status classification, failure isolation, and hook dispatch.
package step

import (
	"fmt"
	"math"
	"time"
)

// Status is the terminal classification of a section. Pending is transient
// and never observed outside the runner.
type Status int

const (
	StatusPending Status = iota
	StatusOk
	StatusFail
	StatusSkip
)

// String returns the display form of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusOk:
		return "OK"
	case StatusFail:
		return "FAIL"
	case StatusSkip:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// MarshalText makes Status render as its display form in summary JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the display form back into a Status.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "PENDING":
		*s = StatusPending
	case "OK":
		*s = StatusOk
	case "FAIL":
		*s = StatusFail
	case "SKIP":
		*s = StatusSkip
	default:
		return fmt.Errorf("unknown step status %q", string(text))
	}
	return nil
}

// PackageStatus classifies the outcome for one package within a section.
type PackageStatus int

const (
	PackageUpdated PackageStatus = iota
	PackageFailed
	PackageSkipped
	PackageNoChange
)

func (s PackageStatus) String() string {
	switch s {
	case PackageUpdated:
		return "updated"
	case PackageFailed:
		return "failed"
	case PackageSkipped:
		return "skipped"
	case PackageNoChange:
		return "nochange"
	default:
		return "unknown"
	}
}

// MarshalText makes PackageStatus render as its display form in JSON.
func (s PackageStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the display form back into a PackageStatus.
func (s *PackageStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "updated":
		*s = PackageUpdated
	case "failed":
		*s = PackageFailed
	case "skipped":
		*s = PackageSkipped
	case "nochange":
		*s = PackageNoChange
	default:
		return fmt.Errorf("unknown package status %q", string(text))
	}
	return nil
}

// PackageRecord is one package observed during a section's execution.
// Records are never mutated after creation: a retried package gets a second
// record so the original attempt's evidence survives.
type PackageRecord struct {
	Name          string        `json:"name"`
	VersionBefore string        `json:"versionBefore,omitempty"`
	VersionAfter  string        `json:"versionAfter,omitempty"`
	Status        PackageStatus `json:"status"`
}

// Counts aggregates per-section package totals. They are tracked
// independently of the Packages list because some ecosystems only report
// aggregate success, not line items.
type Counts struct {
	Installed int `json:"installed"`
	Available int `json:"available"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Result is the outcome of one update section. Instances are owned by the
// orchestrator for the run's lifetime; reporting collaborators receive them
// read-only.
type Result struct {
	Name            string            `json:"name"`
	Status          Status            `json:"status"`
	Start           time.Time         `json:"start"`
	End             time.Time         `json:"end"`
	DurationSeconds float64           `json:"durationSeconds"`
	ExitCode        int               `json:"exitCode"`
	Counts          Counts            `json:"counts"`
	Packages        []PackageRecord   `json:"packages"`
	Notes           []string          `json:"notes"`
	Actions         []string          `json:"actions"`
	Failures        []string          `json:"failures"`
	Artifacts       map[string]string `json:"artifacts"`
}

// NewResult creates a pending result for the named section.
func NewResult(name string) *Result {
	return &Result{
		Name:      name,
		Status:    StatusPending,
		Packages:  []PackageRecord{},
		Notes:     []string{},
		Actions:   []string{},
		Failures:  []string{},
		Artifacts: map[string]string{},
	}
}

// AddNote appends a human-readable note.
func (r *Result) AddNote(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// AddAction appends a description of an action taken.
func (r *Result) AddAction(format string, args ...any) {
	r.Actions = append(r.Actions, fmt.Sprintf(format, args...))
}

// AddFailure appends a failure message. Failure messages force the section
// to FAIL at classification time.
func (r *Result) AddFailure(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// AddPackage appends a package record and bumps the matching count.
func (r *Result) AddPackage(rec PackageRecord) {
	r.Packages = append(r.Packages, rec)
	switch rec.Status {
	case PackageUpdated:
		r.Counts.Updated++
	case PackageFailed:
		r.Counts.Failed++
	case PackageSkipped:
		r.Counts.Skipped++
	}
}

// AddArtifact records a logical artifact name with its filesystem path, or a
// placeholder when the path could not be created.
func (r *Result) AddArtifact(name, path string) {
	r.Artifacts[name] = path
}

// RecordExit captures a sub-operation exit code. The first non-zero code
// wins; later failures never overwrite it.
func (r *Result) RecordExit(code int) {
	if code != 0 && r.ExitCode == 0 {
		r.ExitCode = code
	}
}

// Skip marks the section skipped with an explanatory note.
func (r *Result) Skip(reason string) {
	r.Status = StatusSkip
	if reason != "" {
		r.AddNote("%s", reason)
	}
}

// finish stamps timing and applies the default classification: FAIL iff
// failures were recorded or failed counts are non-zero, otherwise OK, unless
// the body already set a terminal status.
func (r *Result) finish(start, end time.Time) {
	r.Start = start
	r.End = end
	r.DurationSeconds = roundDuration(end.Sub(start))

	if r.Status != StatusPending {
		return
	}
	if len(r.Failures) > 0 || r.Counts.Failed > 0 {
		r.Status = StatusFail
		if r.ExitCode == 0 {
			r.ExitCode = 1
		}
		return
	}
	r.Status = StatusOk
}

// roundDuration converts a duration to seconds rounded to 1 decimal.
func roundDuration(d time.Duration) float64 {
	return math.Round(d.Seconds()*10) / 10
}
