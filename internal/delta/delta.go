// Package delta persists baselines of installed-package state per ecosystem
// and computes added/removed/updated sets against them, so a run can target
// only the packages that actually changed.
package delta

// PackageState is one installed package as seen by a listing command.
type PackageState struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version"`
}

// Key returns the comparison key: the package id when present, else the name.
func (p PackageState) Key() string {
	if p.ID != "" {
		return p.ID
	}
	return p.Name
}

// State maps a source name ("Winget", "npm", "pip") to its installed packages.
type State map[string][]PackageState

// VersionChange records a package present in both baseline and current state
// with differing version strings. Comparison is exact string equality; no
// semantic version parsing, to avoid ecosystem-specific scheme assumptions.
type VersionChange struct {
	Key        string `json:"key"`
	Name       string `json:"name,omitempty"`
	OldVersion string `json:"oldVersion"`
	NewVersion string `json:"newVersion"`
}

// SourceDiff is the comparison result for one source.
type SourceDiff struct {
	Added   []PackageState  `json:"added"`
	Removed []PackageState  `json:"removed"`
	Updated []VersionChange `json:"updated"`
}

// Diff maps source names to their comparison results.
type Diff map[string]SourceDiff

// CompareState computes, per source, added (in current, not baseline),
// removed (in baseline, not current), and updated (in both, version string
// differs). A source absent from the baseline is treated as an empty set,
// not an error: a first run yields everything as added.
func CompareState(current, baseline State) Diff {
	diff := Diff{}

	for source, pkgs := range current {
		baseIndex := indexByKey(baseline[source])
		sd := SourceDiff{Added: []PackageState{}, Removed: []PackageState{}, Updated: []VersionChange{}}

		currentKeys := map[string]bool{}
		for _, pkg := range pkgs {
			key := pkg.Key()
			currentKeys[key] = true

			base, ok := baseIndex[key]
			if !ok {
				sd.Added = append(sd.Added, pkg)
				continue
			}
			if base.Version != pkg.Version {
				sd.Updated = append(sd.Updated, VersionChange{
					Key:        key,
					Name:       pkg.Name,
					OldVersion: base.Version,
					NewVersion: pkg.Version,
				})
			}
		}

		for _, pkg := range baseline[source] {
			if !currentKeys[pkg.Key()] {
				sd.Removed = append(sd.Removed, pkg)
			}
		}

		diff[source] = sd
	}

	// Sources present only in the baseline: everything was removed.
	for source, pkgs := range baseline {
		if _, ok := current[source]; ok {
			continue
		}
		removed := make([]PackageState, len(pkgs))
		copy(removed, pkgs)
		diff[source] = SourceDiff{Added: []PackageState{}, Removed: removed, Updated: []VersionChange{}}
	}

	return diff
}

// UpdateTargets returns the keys a delta run should target for the source:
// always the updated packages, plus the added ones only when the caller opts
// in — newly installed packages are not implicitly "updated".
func UpdateTargets(diff Diff, source string, includeNew bool) []string {
	sd, ok := diff[source]
	if !ok {
		return []string{}
	}

	targets := []string{}
	for _, change := range sd.Updated {
		targets = append(targets, change.Key)
	}
	if includeNew {
		for _, pkg := range sd.Added {
			targets = append(targets, pkg.Key())
		}
	}
	return targets
}

func indexByKey(pkgs []PackageState) map[string]PackageState {
	index := make(map[string]PackageState, len(pkgs))
	for _, pkg := range pkgs {
		index[pkg.Key()] = pkg
	}
	return index
}
