// Package sections defines the ~19 ecosystem update sections and the
// environment they execute in.
package sections

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/updrift/updrift/internal/cache"
	"github.com/updrift/updrift/internal/config"
	"github.com/updrift/updrift/internal/execx"
	"github.com/updrift/updrift/internal/sanitize"
	"github.com/updrift/updrift/internal/step"
)

// Section is one ecosystem-specific update unit.
type Section struct {
	// Name identifies the section in results and policies, e.g. "npm (global)".
	Name string
	// Tool is the binary probed before the body runs; a missing tool
	// degrades the section to SKIP.
	Tool string
	// Parallel marks the section safe for the worker pool. Sections with
	// potential file-lock or daemon-state contention stay sequential.
	Parallel bool
	// Source is the delta engine's source name for this ecosystem, empty
	// when no state collector exists.
	Source string
	// Run is the section body. It accumulates into res and returns an error
	// only for genuinely unexpected failures; expected tool failures are
	// recorded via res.AddFailure and friends.
	Run func(ctx context.Context, env *Env, res *step.Result) error
}

// Env carries the shared infrastructure a section body needs. One Env is
// built per section per run; Targets is section-specific.
type Env struct {
	Exec         execx.Runner
	Cache        *cache.Cache
	Cfg          *config.Config
	Log          zerolog.Logger
	Policy       step.Policy
	ArtifactDir  string
	DeltaActive  bool
	Targets      []string
	ForceRefresh bool
}

// Targeted reports whether a delta run should touch the given package key.
// Outside delta mode every package is in scope.
func (e *Env) Targeted(key string) bool {
	if !e.DeltaActive {
		return true
	}
	for _, t := range e.Targets {
		if t == key {
			return true
		}
	}
	return false
}

// writeArtifact persists command output as a log artifact and records its
// path (or a placeholder when the file could not be created) on the result.
func writeArtifact(env *Env, res *step.Result, name string, lines []string) {
	if env.ArtifactDir == "" {
		res.AddArtifact(name, "(artifact dir not configured)")
		return
	}
	if err := os.MkdirAll(env.ArtifactDir, 0755); err != nil {
		res.AddArtifact(name, "(unavailable)")
		return
	}

	path := filepath.Join(env.ArtifactDir, sanitize.FileName(name)+".log")
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		env.Log.Warn().Str("artifact", name).Err(err).Msg("failed to write artifact")
		res.AddArtifact(name, "(unavailable)")
		return
	}
	res.AddArtifact(name, path)
}

// commandSection builds a section that runs a fixed list of tool commands in
// order, stopping at the first failure. It covers the ecosystems that only
// report aggregate success or failure, not per-package line items.
func commandSection(name, tool string, parallel bool, argSets ...[]string) Section {
	return Section{
		Name:     name,
		Tool:     tool,
		Parallel: parallel,
		Run: func(ctx context.Context, env *Env, res *step.Result) error {
			for _, args := range argSets {
				rendered := fmt.Sprintf("%s %s", tool, strings.Join(args, " "))
				r := env.Exec.RunMutating(ctx, tool, args...)
				if r.Failed() {
					res.RecordExit(r.ExitCode)
					res.AddFailure("%s exited with code %d", rendered, r.ExitCode)
					writeArtifact(env, res, name+"_log", r.Lines)
					return nil
				}
				res.AddAction("ran %s", rendered)
			}
			return nil
		},
	}
}
