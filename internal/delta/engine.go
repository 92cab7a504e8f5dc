package delta

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// baselineTimeLayout embeds a sortable timestamp in baseline filenames.
const baselineTimeLayout = "20060102-150405"

// Snapshot is a persisted baseline of installed-package state. Snapshots are
// superseded by the next one, never mutated in place.
type Snapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	ToolVersion string    `json:"toolVersion"`
	State       State     `json:"state"`
}

// Collector lists the installed packages of one ecosystem.
type Collector func(ctx context.Context) ([]PackageState, error)

// Engine owns the baseline directory. Only the engine writes snapshot files.
type Engine struct {
	dir   string
	clock func() time.Time
	log   zerolog.Logger
}

// NewEngine creates an Engine rooted at dir.
func NewEngine(dir string, log zerolog.Logger) *Engine {
	return &Engine{dir: dir, clock: time.Now, log: log}
}

// CollectCurrentState runs every collector and assembles the current state.
// A collector failure yields an empty list plus a warning; it never aborts
// the other sources.
func (e *Engine) CollectCurrentState(ctx context.Context, collectors map[string]Collector) State {
	state := State{}
	for source, collect := range collectors {
		pkgs, err := collect(ctx)
		if err != nil {
			e.log.Warn().Str("source", source).Err(err).Msg("state collection failed, treating as empty")
			state[source] = []PackageState{}
			continue
		}
		if pkgs == nil {
			pkgs = []PackageState{}
		}
		state[source] = pkgs
	}
	return state
}

// SaveBaseline writes a timestamped snapshot file and prunes old snapshots
// beyond keepLast, oldest (by modification time) deleted first.
func (e *Engine) SaveBaseline(state State, toolVersion string, keepLast int) (string, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create baseline directory: %w", err)
	}

	snapshot := Snapshot{
		Timestamp:   e.clock(),
		ToolVersion: toolVersion,
		State:       state,
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal baseline: %w", err)
	}

	filename := fmt.Sprintf("baseline-%s.json", snapshot.Timestamp.Format(baselineTimeLayout))
	path := filepath.Join(e.dir, filename)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write baseline file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to replace baseline file: %w", err)
	}

	if keepLast > 0 {
		if err := e.prune(keepLast); err != nil {
			e.log.Warn().Err(err).Msg("baseline retention cleanup failed")
		}
	}

	return path, nil
}

// LoadLatestBaseline returns the most recent snapshot if it is younger than
// maxAge, else nil: a stale diff is considered unreliable and the caller
// falls back to a full update.
func (e *Engine) LoadLatestBaseline(maxAge time.Duration) (*Snapshot, error) {
	files, err := e.baselineFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	latest := files[0]
	raw, err := os.ReadFile(latest.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline %s: %w", latest.path, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse baseline %s: %w", latest.path, err)
	}

	if maxAge > 0 && e.clock().Sub(snapshot.Timestamp) > maxAge {
		e.log.Info().
			Time("baseline", snapshot.Timestamp).
			Dur("max_age", maxAge).
			Msg("baseline aged out, falling back to full update")
		return nil, nil
	}

	return &snapshot, nil
}

type baselineFile struct {
	path    string
	modTime time.Time
}

// baselineFiles returns snapshot files sorted newest first by mtime.
func (e *Engine) baselineFiles() ([]baselineFile, error) {
	paths, err := filepath.Glob(filepath.Join(e.dir, "baseline-*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list baseline files: %w", err)
	}

	files := make([]baselineFile, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, baselineFile{path: p, modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})
	return files, nil
}

func (e *Engine) prune(keepLast int) error {
	files, err := e.baselineFiles()
	if err != nil {
		return err
	}
	for _, f := range files[min(keepLast, len(files)):] {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete old baseline %s: %w", f.path, err)
		}
		e.log.Debug().Str("file", f.path).Msg("pruned old baseline")
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
