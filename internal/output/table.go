// Package output renders terminal output for updrift: status-colored section
// summary lines, compact package tables with before→after version deltas, and
// the final per-section run table.
//
// All rendering uses ASCII characters and ANSI color codes.
package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/updrift/updrift/internal/step"
)

// ANSI color codes for status display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

func statusColor(s step.Status) string {
	switch s {
	case step.StatusOk:
		return colorGreen
	case step.StatusFail:
		return colorRed
	case step.StatusSkip:
		return colorGray
	default:
		return colorYellow
	}
}

// RenderSectionSummary renders the one-line status summary for a finished
// section.
func RenderSectionSummary(r *step.Result) string {
	status := colorize(statusColor(r.Status), fmt.Sprintf("%-4s", r.Status))
	line := fmt.Sprintf("[%s] %-24s %6.1fs", status, r.Name, r.DurationSeconds)

	details := []string{}
	if r.Counts.Updated > 0 {
		details = append(details, fmt.Sprintf("%d updated", r.Counts.Updated))
	}
	if r.Counts.Skipped > 0 {
		details = append(details, fmt.Sprintf("%d skipped", r.Counts.Skipped))
	}
	if r.Counts.Failed > 0 {
		details = append(details, fmt.Sprintf("%d failed", r.Counts.Failed))
	}
	if len(details) > 0 {
		line += "  " + strings.Join(details, ", ")
	}
	return line + "\n"
}

// RenderPackageTable renders a compact table of the packages a section
// touched, with before→after version deltas.
func RenderPackageTable(packages []step.PackageRecord) string {
	if len(packages) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %-40s %-28s %-8s\n", "Package", "Version", "Status"))
	sb.WriteString("  ")
	sb.WriteString(strings.Repeat("-", 78))
	sb.WriteString("\n")

	for _, pkg := range packages {
		version := versionDelta(pkg)
		sb.WriteString(fmt.Sprintf("  %-40s %-28s %-8s\n",
			truncate(pkg.Name, 40), version, pkg.Status))
	}
	return sb.String()
}

// RenderRunTable renders the final summary: one row per section with status,
// duration, and counts.
func RenderRunTable(results []step.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-24s %-6s %8s %9s %8s %8s %7s\n",
		"Section", "Status", "Duration", "Available", "Updated", "Skipped", "Failed"))
	sb.WriteString(strings.Repeat("-", 78))
	sb.WriteString("\n")

	for _, r := range results {
		status := colorize(statusColor(r.Status), fmt.Sprintf("%-6s", r.Status))
		sb.WriteString(fmt.Sprintf("%-24s %s %7.1fs %9d %8d %8d %7d\n",
			truncate(r.Name, 24), status, r.DurationSeconds,
			r.Counts.Available, r.Counts.Updated, r.Counts.Skipped, r.Counts.Failed))
	}
	return sb.String()
}

// RenderFailureDetails dumps failure messages and related log artifacts for
// every failed section. Returns "" when nothing failed.
func RenderFailureDetails(results []step.Result) string {
	var sb strings.Builder
	for _, r := range results {
		if r.Status != step.StatusFail {
			continue
		}
		sb.WriteString(colorize(colorRed, fmt.Sprintf("%s failed:\n", r.Name)))
		for _, f := range r.Failures {
			sb.WriteString("  - " + f + "\n")
		}
		for name, path := range r.Artifacts {
			sb.WriteString(fmt.Sprintf("  log: %s (%s)\n", path, name))
		}
	}
	return sb.String()
}

func versionDelta(pkg step.PackageRecord) string {
	switch {
	case pkg.VersionBefore != "" && pkg.VersionAfter != "":
		return pkg.VersionBefore + " -> " + pkg.VersionAfter
	case pkg.VersionAfter != "":
		return "-> " + pkg.VersionAfter
	case pkg.VersionBefore != "":
		return pkg.VersionBefore
	default:
		return "-"
	}
}

// truncate shortens a string to maxLen, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
