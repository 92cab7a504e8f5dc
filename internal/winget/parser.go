// Package winget parses the line-oriented text output of the winget CLI.
//
// winget has no stable machine-readable output contract, so parsing is
// regex-based single-pass matching anchored on the trailing fixed-shape
// columns (version, available version, source). The name column may contain
// internal runs of spaces, which makes naive split-by-whitespace ambiguous;
// capturing the name non-greedily and requiring the version columns to start
// with a digit resolves the ambiguity. Lines that do not match the full
// five-field shape are treated as noise (download progress, prompts) and
// dropped: missed packages are preferred over spurious entries.
package winget

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Upgrade is one row of the `winget upgrade` table.
type Upgrade struct {
	Name      string
	ID        string
	Version   string
	Available string
	Source    string
}

// Installed is one row of the `winget list` table. The Available column is
// frequently empty, so only the first three columns are required.
type Installed struct {
	Name    string
	ID      string
	Version string
}

// Blocker is a package whose upgrade was refused because the application is
// currently running.
type Blocker struct {
	Name string
	ID   string
}

var (
	// upgradeRowPattern matches a full five-column upgrade row. Columns are
	// delimited by two or more spaces; version columns must start with a
	// digit (or be "Unknown"), which is what lets the non-greedy name
	// capture backtrack across internal whitespace in the name.
	upgradeRowPattern = regexp.MustCompile(`^(.+?)\s{2,}(\S+)\s{2,}(Unknown|[0-9][A-Za-z0-9.\-]*)\s{2,}([0-9][A-Za-z0-9.\-]*)\s{2,}(\S+)\s*$`)

	// installedRowPattern matches a `winget list` row: name, id, version,
	// optionally followed by available-version and source columns.
	installedRowPattern = regexp.MustCompile(`^(.+?)\s{2,}(\S+)\s{2,}(Unknown|[0-9][A-Za-z0-9.\-]*)(\s{2,}.*)?$`)

	// separatorPattern matches the run of dashes under the table header.
	separatorPattern = regexp.MustCompile(`^-{2,}$`)

	// summaryPattern matches the trailing "<N> upgrades available." line.
	summaryPattern = regexp.MustCompile(`^\d+ upgrade(s)? available\.?$`)

	// progressPattern matches the "(i/n) Found ..." / "(i/n) Downloading ..."
	// markers winget emits once it starts acting on packages. They signal
	// that the table has ended.
	progressPattern = regexp.MustCompile(`^\(\d+/\d+\)\s+(Found|Downloading)`)

	// foundPattern matches "Found <name> [<id>]" lines emitted before each
	// package is acted on, with or without the "(i/n) " progress prefix.
	foundPattern = regexp.MustCompile(`^(?:\(\d+/\d+\)\s+)?Found\s+(.+?)\s+\[([^\]]+)\]`)
)

// explicitTargetingMarker appears on the line introducing the table of
// packages that must be upgraded by exact id rather than via --all.
const explicitTargetingMarker = "require explicit targeting"

// runningApplicationMarker appears when winget refuses an upgrade because
// the target application has a live process.
const runningApplicationMarker = "Application is currently running"

// Parser converts winget transcripts into typed records. The zero value is
// usable; Log only receives debug entries for dropped noise lines.
type Parser struct {
	Log zerolog.Logger
}

// ParseUpgradeList extracts upgrade rows from `winget upgrade` output.
// Header, separator, summary, "No installed package" and explicit-targeting
// marker lines are skipped; anything else that does not match the full
// five-field row shape is silently dropped.
func (p Parser) ParseUpgradeList(lines []string) []Upgrade {
	upgrades := []Upgrade{}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isTableNoise(trimmed) {
			continue
		}

		m := upgradeRowPattern.FindStringSubmatch(trimmed)
		if m == nil {
			p.Log.Debug().Str("line", trimmed).Msg("winget: dropped unparseable line")
			continue
		}

		upgrades = append(upgrades, Upgrade{
			Name:      strings.TrimSpace(m[1]),
			ID:        m[2],
			Version:   m[3],
			Available: m[4],
			Source:    m[5],
		})
	}

	return upgrades
}

// ParseInstalledList extracts rows from `winget list` output, used for
// baseline snapshots. Rows only need the first three columns to parse.
func (p Parser) ParseInstalledList(lines []string) []Installed {
	installed := []Installed{}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isTableNoise(trimmed) {
			continue
		}

		m := installedRowPattern.FindStringSubmatch(trimmed)
		if m == nil {
			p.Log.Debug().Str("line", trimmed).Msg("winget: dropped unparseable line")
			continue
		}

		installed = append(installed, Installed{
			Name:    strings.TrimSpace(m[1]),
			ID:      m[2],
			Version: m[3],
		})
	}

	return installed
}

// ExplicitTargetIDs returns the ids of packages listed under the
// "require explicit targeting" marker. The table ends at the first blank
// line after it visually starts, or at a download-progress marker; trailing
// progress noise must never be mistaken for package rows.
func (p Parser) ExplicitTargetIDs(lines []string) []string {
	ids := []string{}
	seen := map[string]bool{}

	inBlock := false
	tableStarted := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inBlock {
			if strings.Contains(trimmed, explicitTargetingMarker) {
				inBlock = true
			}
			continue
		}

		if trimmed == "" {
			if tableStarted {
				break
			}
			continue
		}
		if progressPattern.MatchString(trimmed) {
			break
		}

		if strings.HasPrefix(trimmed, "Name") || separatorPattern.MatchString(trimmed) {
			tableStarted = true
			continue
		}

		m := upgradeRowPattern.FindStringSubmatch(trimmed)
		if m == nil {
			p.Log.Debug().Str("line", trimmed).Msg("winget: dropped noise in explicit-targeting block")
			continue
		}

		tableStarted = true
		id := m[2]
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	return ids
}

// RunningBlockers returns the packages whose upgrade was refused because the
// application is currently running. winget prints "Found <name> [<id>]"
// before acting on a package; if the running-application message follows, the
// tracked pair is the blocker. Deduplicated by id.
func (p Parser) RunningBlockers(lines []string) []Blocker {
	blockers := []Blocker{}
	seen := map[string]bool{}

	var last *Blocker
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if m := foundPattern.FindStringSubmatch(trimmed); m != nil {
			last = &Blocker{Name: strings.TrimSpace(m[1]), ID: m[2]}
			continue
		}

		if strings.Contains(trimmed, runningApplicationMarker) && last != nil {
			if !seen[last.ID] {
				seen[last.ID] = true
				blockers = append(blockers, *last)
			}
			last = nil
		}
	}

	return blockers
}

// isTableNoise reports whether a non-empty line is one of the known
// non-row lines of a winget table transcript.
func isTableNoise(trimmed string) bool {
	switch {
	case strings.HasPrefix(trimmed, "Name"):
		return true
	case separatorPattern.MatchString(trimmed):
		return true
	case summaryPattern.MatchString(trimmed):
		return true
	case strings.HasPrefix(trimmed, "No installed package"):
		return true
	case strings.Contains(trimmed, explicitTargetingMarker):
		return true
	}
	return false
}
