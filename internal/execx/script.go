package execx

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ScriptRunner is a Runner driven by canned responses, keyed by the full
// command line. Section and orchestrator tests use it in place of Exec.
type ScriptRunner struct {
	mu        sync.Mutex
	responses map[string]Result
	missing   map[string]bool
	calls     []string
}

// NewScriptRunner creates an empty ScriptRunner. Commands without a scripted
// response return exit code 0 and no output.
func NewScriptRunner() *ScriptRunner {
	return &ScriptRunner{
		responses: make(map[string]Result),
		missing:   make(map[string]bool),
	}
}

// Script registers the lines and exit code returned for a command line.
func (s *ScriptRunner) Script(commandLine string, exitCode int, lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[commandLine] = Result{Lines: lines, ExitCode: exitCode}
}

// MarkMissing makes Exists return false for the named command.
func (s *ScriptRunner) MarkMissing(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missing[name] = true
}

// Calls returns every command line executed so far, in order.
func (s *ScriptRunner) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times the exact command line was executed.
func (s *ScriptRunner) CallCount(commandLine string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == commandLine {
			n++
		}
	}
	return n
}

func (s *ScriptRunner) Run(_ context.Context, name string, args ...string) Result {
	line := commandLine(name, args)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, line)

	if res, ok := s.responses[line]; ok {
		res.Command = name
		res.Args = args
		if res.Lines == nil {
			res.Lines = []string{}
		}
		return res
	}
	return Result{Command: name, Args: args, Lines: []string{}}
}

func (s *ScriptRunner) RunMutating(ctx context.Context, name string, args ...string) Result {
	return s.Run(ctx, name, args...)
}

func (s *ScriptRunner) Exists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.missing[name]
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return fmt.Sprintf("%s %s", name, strings.Join(args, " "))
}
