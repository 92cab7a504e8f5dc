// Package execx wraps external tool invocation. All output is modeled as an
// ordered sequence of lines, never a bare string, so callers can never
// depend on the cardinality of a tool's output.
package execx

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// launchFailureExitCode is the synthetic exit code reported when a process
// could not be started at all (binary missing, permission denied).
const launchFailureExitCode = 127

// Result captures one subprocess invocation.
type Result struct {
	Command  string
	Args     []string
	Lines    []string // combined stdout+stderr, split into lines
	ExitCode int
}

// Failed reports whether the invocation ended with a non-zero exit code.
func (r Result) Failed() bool {
	return r.ExitCode != 0
}

// Text joins the captured lines back into a single block, mostly for logs.
func (r Result) Text() string {
	return strings.Join(r.Lines, "\n")
}

// Runner executes external commands. The concrete implementation is Exec;
// tests substitute a ScriptRunner.
type Runner interface {
	// Run executes a read-only command and captures its output.
	Run(ctx context.Context, name string, args ...string) Result
	// RunMutating executes a state-changing command. In dry-run mode it is
	// replaced by a log line and no subprocess runs.
	RunMutating(ctx context.Context, name string, args ...string) Result
	// Exists reports whether a command is available on the search path.
	Exists(name string) bool
}

// Exec is the real Runner backed by os/exec.
type Exec struct {
	DryRun bool
	Log    zerolog.Logger
}

// New creates an Exec runner.
func New(dryRun bool, log zerolog.Logger) *Exec {
	return &Exec{DryRun: dryRun, Log: log}
}

// Run executes the command and captures combined stdout+stderr as lines.
// A launch failure never propagates as an error: the caller gets a synthetic
// non-zero exit code and a single "EXCEPTION: ..." line instead, so a broken
// tool cannot abort the section that invoked it.
func (e *Exec) Run(ctx context.Context, name string, args ...string) Result {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()

	res := Result{
		Command: name,
		Args:    args,
		Lines:   SplitLines(string(output)),
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = launchFailureExitCode
			res.Lines = []string{fmt.Sprintf("EXCEPTION: %v", err)}
		}
	}

	e.Log.Debug().
		Str("command", name).
		Strs("args", args).
		Int("exit_code", res.ExitCode).
		Msg("executed command")

	return res
}

// RunMutating behaves like Run unless dry-run is enabled, in which case the
// command is logged and a successful empty result is returned.
func (e *Exec) RunMutating(ctx context.Context, name string, args ...string) Result {
	if e.DryRun {
		rendered := name
		if len(args) > 0 {
			rendered += " " + strings.Join(args, " ")
		}
		e.Log.Info().Str("command", rendered).Msg("dry-run: would execute")
		return Result{
			Command: name,
			Args:    args,
			Lines:   []string{fmt.Sprintf("DRY-RUN: would execute %s", rendered)},
		}
	}
	return e.Run(ctx, name, args...)
}

// Exists reports whether name resolves on the search path. Sections use this
// as a cheap capability probe so a missing tool degrades to Skip, not Fail.
func (e *Exec) Exists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// SplitLines splits raw command output into lines, normalizing CRLF and
// dropping a single trailing empty line. It always returns a slice, even for
// empty output, so callers can range over it unconditionally.
func SplitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}
