// Package orchestrator drives a full update run: section selection, delta
// targeting, parallel scheduling, hook dispatch, and result persistence.
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/updrift/updrift/internal/cache"
	"github.com/updrift/updrift/internal/config"
	"github.com/updrift/updrift/internal/delta"
	"github.com/updrift/updrift/internal/execx"
	"github.com/updrift/updrift/internal/history"
	"github.com/updrift/updrift/internal/report"
	"github.com/updrift/updrift/internal/sections"
	"github.com/updrift/updrift/internal/step"
)

// Options are the per-invocation knobs of a run.
type Options struct {
	// Sections restricts the run to the named sections; empty means all.
	Sections []string
	// Skip names sections excluded on top of the configured skip list.
	Skip []string
	// Delta compares against the latest baseline and only touches changed
	// packages in sections that have a state collector.
	Delta bool
	// IncludeNew extends delta targets to packages absent from the baseline.
	IncludeNew bool
	// Parallel runs parallel-eligible sections through the worker pool.
	Parallel bool
	// DryRun logs mutating commands instead of executing them and disables
	// all persistence.
	DryRun bool
	// ForceRefresh bypasses cached tool transcripts.
	ForceRefresh bool
	// Version is stamped into saved baselines.
	Version string
}

// Orchestrator wires the run-scoped collaborators together. The app layer
// assembles one per invocation.
type Orchestrator struct {
	Cfg     *config.Config
	Log     zerolog.Logger
	LogPath string
	Exec    execx.Runner
	Cache   *cache.Cache
	Deltas  *delta.Engine
	History *history.Store
	// OnResult receives each finished section result, in completion order.
	OnResult func(*step.Result)
}

// Run executes the selected sections and returns the run summary. Section
// failures are captured in the summary, never returned as an error; the error
// return covers setup problems only (unknown section names, unreadable
// baseline).
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*report.Summary, error) {
	selected := sections.Registry()
	if len(opts.Sections) > 0 {
		matched, unknown := sections.ByName(opts.Sections)
		if len(unknown) > 0 {
			return nil, fmt.Errorf("unknown sections: %s", strings.Join(unknown, ", "))
		}
		selected = matched
	}

	skipped := map[string]bool{}
	for _, name := range o.Cfg.Skip {
		skipped[name] = true
	}
	for _, name := range opts.Skip {
		skipped[name] = true
	}

	diff, deltaActive, err := o.prepareDelta(ctx, opts)
	if err != nil {
		return nil, err
	}

	runner := &step.Runner{
		Log:        o.Log,
		Hooks:      o.sectionHooks(ctx, selected),
		Clock:      time.Now,
		OnComplete: o.OnResult,
	}

	start := time.Now()
	o.Log.Info().
		Int("sections", len(selected)).
		Bool("delta", deltaActive).
		Bool("parallel", opts.Parallel).
		Bool("dry_run", opts.DryRun).
		Msg("run started")

	o.runHook("pre-update", o.Cfg.Hooks.PreUpdate)

	results := make([]*step.Result, len(selected))
	var wg sync.WaitGroup
	pool := make(chan struct{}, o.maxConcurrent())

	for i, sec := range selected {
		if opts.Parallel && sec.Parallel && !skipped[sec.Name] {
			wg.Add(1)
			go func(i int, sec sections.Section) {
				defer wg.Done()
				pool <- struct{}{}
				defer func() { <-pool }()
				results[i] = o.runSection(ctx, runner, sec, opts, diff, deltaActive, false)
			}(i, sec)
		}
	}
	wg.Wait()

	// Sequential tail, in declaration order. Skipped sections land here too
	// so their SKIP results are produced deterministically.
	for i, sec := range selected {
		if results[i] != nil {
			continue
		}
		results[i] = o.runSection(ctx, runner, sec, opts, diff, deltaActive, skipped[sec.Name])
	}

	o.runHook("post-update", o.Cfg.Hooks.PostUpdate)

	summary := &report.Summary{
		RunID:                uuid.NewString(),
		RunAt:                start,
		LogFilePath:          o.LogPath,
		TotalDurationSeconds: math.Round(time.Since(start).Seconds()*10) / 10,
	}
	for _, r := range results {
		summary.Results = append(summary.Results, *r)
	}

	if !opts.DryRun {
		o.persist(ctx, opts, summary)
	}

	o.Log.Info().
		Str("run_id", summary.RunID).
		Float64("duration_s", summary.TotalDurationSeconds).
		Int("failed_sections", summary.FailedSections()).
		Msg("run finished")

	return summary, nil
}

// prepareDelta loads the latest baseline and computes per-source diffs. A
// missing or aged-out baseline degrades to a full run, never an error.
func (o *Orchestrator) prepareDelta(ctx context.Context, opts Options) (delta.Diff, bool, error) {
	if !opts.Delta {
		return nil, false, nil
	}

	maxAge := time.Duration(o.Cfg.Baseline.MaxAgeDays) * 24 * time.Hour
	snapshot, err := o.Deltas.LoadLatestBaseline(maxAge)
	if err != nil {
		return nil, false, err
	}
	if snapshot == nil {
		o.Log.Info().Msg("no usable baseline, running full update")
		return nil, false, nil
	}

	current := o.Deltas.CollectCurrentState(ctx, sections.Collectors(o.newEnv(opts, step.Policy{}, false, nil)))
	return delta.CompareState(current, snapshot.State), true, nil
}

// runSection executes one section behind the step runner, degrading to SKIP
// when the section's tool is not installed.
func (o *Orchestrator) runSection(ctx context.Context, runner *step.Runner, sec sections.Section,
	opts Options, diff delta.Diff, deltaActive bool, skip bool) *step.Result {

	policy := step.Policy{}
	if pc, ok := o.Cfg.Policies[sec.Name]; ok {
		policy = step.Policy{IgnoreIDs: pc.Ignore, RetryIDs: pc.Retry}
	}

	// Delta targeting only applies to sections with a state collector; the
	// rest always run full.
	sectionDelta := deltaActive && sec.Source != ""
	var targets []string
	if sectionDelta {
		targets = delta.UpdateTargets(diff, sec.Source, opts.IncludeNew)
	}

	env := o.newEnv(opts, policy, sectionDelta, targets)

	return runner.Run(sec.Name, skip, func(res *step.Result) error {
		if !env.Exec.Exists(sec.Tool) {
			res.Skip(sec.Tool + " is not available")
			return nil
		}
		if sectionDelta && len(targets) == 0 {
			res.Skip("no package changes since baseline")
			return nil
		}
		return sec.Run(ctx, env, res)
	})
}

func (o *Orchestrator) newEnv(opts Options, policy step.Policy, deltaActive bool, targets []string) *sections.Env {
	return &sections.Env{
		Exec:         o.Exec,
		Cache:        o.Cache,
		Cfg:          o.Cfg,
		Log:          o.Log,
		Policy:       policy,
		ArtifactDir:  o.Cfg.ArtifactDir(),
		DeltaActive:  deltaActive,
		Targets:      targets,
		ForceRefresh: opts.ForceRefresh,
	}
}

// persist saves the post-run baseline, the summary JSON, and the history row.
// Persistence failures are warnings; the run outcome stands regardless.
func (o *Orchestrator) persist(ctx context.Context, opts Options, summary *report.Summary) {
	state := o.Deltas.CollectCurrentState(ctx, sections.Collectors(o.newEnv(opts, step.Policy{}, false, nil)))
	if _, err := o.Deltas.SaveBaseline(state, opts.Version, o.Cfg.Baseline.KeepLast); err != nil {
		o.Log.Warn().Err(err).Msg("failed to save baseline")
	}

	path, err := report.Write(o.Cfg.HistoryDir(), summary)
	if err != nil {
		o.Log.Warn().Err(err).Msg("failed to write run summary")
		return
	}

	if o.History != nil {
		if err := o.History.InsertRun(summary, path); err != nil {
			o.Log.Warn().Err(err).Msg("failed to record run history")
		}
	}
}

// sectionHooks translates the configured per-section hook commands into
// runnable hooks. The global pre/post-update hooks are run once per run by
// the orchestrator itself, not per section.
func (o *Orchestrator) sectionHooks(ctx context.Context, selected []sections.Section) step.Hooks {
	hooks := step.Hooks{
		PreSection:  map[string]step.Hook{},
		PostSection: map[string]step.Hook{},
	}
	for _, sec := range selected {
		if cmd, ok := o.Cfg.Hooks.PreSection[sec.Name]; ok {
			hooks.PreSection[sec.Name] = o.commandHook(ctx, cmd)
		}
		if cmd, ok := o.Cfg.Hooks.PostSection[sec.Name]; ok {
			hooks.PostSection[sec.Name] = o.commandHook(ctx, cmd)
		}
	}
	return hooks
}

// commandHook runs a configured hook command line. Hook output is never
// parsed; only the exit code is reported.
func (o *Orchestrator) commandHook(ctx context.Context, command string) step.Hook {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	return func() error {
		r := o.Exec.RunMutating(ctx, fields[0], fields[1:]...)
		if r.Failed() {
			return fmt.Errorf("%s exited with code %d", command, r.ExitCode)
		}
		return nil
	}
}

// runHook executes a global hook command, logging failures as warnings.
func (o *Orchestrator) runHook(label, command string) {
	if strings.TrimSpace(command) == "" {
		return
	}
	hook := o.commandHook(context.Background(), command)
	if err := hook(); err != nil {
		o.Log.Warn().Str("hook", label).Err(err).Msg("hook failed")
	}
}

func (o *Orchestrator) maxConcurrent() int {
	if o.Cfg.Parallel.MaxConcurrent > 0 {
		return o.Cfg.Parallel.MaxConcurrent
	}
	return 1
}
