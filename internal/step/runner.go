package step

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Hook is a zero-argument callable run around sections. Hooks are strictly
// observational: their errors are logged as warnings and never change the
// section's status.
type Hook func() error

// Hooks configures the global pre/post-update hooks plus per-section hooks
// keyed by section name.
type Hooks struct {
	Pre         Hook
	Post        Hook
	PreSection  map[string]Hook
	PostSection map[string]Hook
}

// Runner executes section bodies with timing, hook dispatch, and total
// failure isolation: no panic or error from a body ever aborts the run.
type Runner struct {
	Log   zerolog.Logger
	Hooks Hooks
	Clock func() time.Time
	// OnComplete, when set, receives each finished result. The orchestrator
	// wires this to the interactive summary renderer.
	OnComplete func(*Result)
}

// NewRunner creates a Runner with the real clock.
func NewRunner(log zerolog.Logger, hooks Hooks) *Runner {
	return &Runner{Log: log, Hooks: hooks, Clock: time.Now}
}

// Run executes one section body. If skip is true the body never executes and
// the section is terminal SKIP with ~0 duration. A panic or returned error is
// caught, recorded into Failures with its source location, and forces FAIL
// with exit code 1. A body that sets no terminal status defaults to OK.
func (rn *Runner) Run(name string, skip bool, body func(*Result) error) *Result {
	res := NewResult(name)
	start := rn.now()

	if skip {
		res.Skip("skipped by user")
		res.finish(start, rn.now())
		rn.complete(res)
		return res
	}

	rn.runHook("pre-update", rn.Hooks.Pre)
	rn.runHook("pre-section "+name, rn.Hooks.PreSection[name])

	rn.execute(name, res, body)

	res.finish(start, rn.now())

	rn.runHook("post-section "+name, rn.Hooks.PostSection[name])
	rn.runHook("post-update", rn.Hooks.Post)

	rn.Log.Info().
		Str("section", name).
		Str("status", res.Status.String()).
		Float64("duration_s", res.DurationSeconds).
		Int("updated", res.Counts.Updated).
		Int("failed", res.Counts.Failed).
		Msg("section finished")

	rn.complete(res)
	return res
}

// execute runs the body behind a recover barrier so one section's panic
// never reaches the orchestrator.
func (rn *Runner) execute(name string, res *Result, body func(*Result) error) {
	defer func() {
		if p := recover(); p != nil {
			loc := panicLocation()
			res.AddFailure("panic: %v (%s)", p, loc)
			res.Status = StatusFail
			if res.ExitCode == 0 {
				res.ExitCode = 1
			}
			rn.Log.Error().
				Str("section", name).
				Str("location", loc).
				Msgf("section panicked: %v", p)
		}
	}()

	if err := body(res); err != nil {
		res.AddFailure("%v", err)
		res.Status = StatusFail
		if res.ExitCode == 0 {
			res.ExitCode = 1
		}
		rn.Log.Error().Str("section", name).Err(err).Msg("section failed")
	}
}

func (rn *Runner) runHook(label string, h Hook) {
	if h == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			rn.Log.Warn().Str("hook", label).Msgf("hook panicked: %v", p)
		}
	}()
	if err := h(); err != nil {
		rn.Log.Warn().Str("hook", label).Err(err).Msg("hook failed")
	}
}

func (rn *Runner) complete(res *Result) {
	if rn.OnComplete != nil {
		rn.OnComplete(res)
	}
}

func (rn *Runner) now() time.Time {
	if rn.Clock != nil {
		return rn.Clock()
	}
	return time.Now()
}

// panicLocation walks the stack past the runtime panic machinery and this
// package to find the frame that panicked.
func panicLocation() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" &&
			!strings.HasPrefix(frame.Function, "runtime.") &&
			!strings.Contains(frame.Function, "step.(*Runner)") {
			return fmt.Sprintf("%s:%d", frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return "unknown"
}
