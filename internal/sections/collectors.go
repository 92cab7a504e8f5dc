package sections

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/updrift/updrift/internal/delta"
	"github.com/updrift/updrift/internal/winget"
)

// Collectors returns the delta state collectors keyed by source name. Only
// ecosystems with a machine-readable installed-package listing participate in
// baseline snapshots; the rest always run full.
func Collectors(env *Env) map[string]delta.Collector {
	return map[string]delta.Collector{
		"Winget": wingetCollector(env),
		"npm":    npmCollector(env),
		"pip":    pipCollector(env),
	}
}

// wingetCollector lists installed winget packages through the call cache.
// `winget list` is the slowest listing in the registry, so its transcript is
// reused across baseline save and delta comparison within the TTL.
func wingetCollector(env *Env) delta.Collector {
	return func(ctx context.Context) ([]delta.PackageState, error) {
		if !env.Exec.Exists("winget") {
			return nil, fmt.Errorf("winget is not available")
		}

		ttl := time.Duration(env.Cfg.Cache.ListTTLSeconds) * time.Second
		lines, err := env.Cache.GetOrCompute(wingetListCacheKey, ttl, env.ForceRefresh, func() ([]string, error) {
			r := env.Exec.Run(ctx, "winget", "list")
			if r.Failed() {
				return nil, fmt.Errorf("winget list exited with code %d", r.ExitCode)
			}
			return r.Lines, nil
		})
		if err != nil {
			return nil, err
		}

		parser := winget.Parser{Log: env.Log}
		var state []delta.PackageState
		for _, pkg := range parser.ParseInstalledList(lines) {
			state = append(state, delta.PackageState{
				ID:      pkg.ID,
				Name:    pkg.Name,
				Version: pkg.Version,
			})
		}
		return state, nil
	}
}

// npmCollector reads the global dependency tree as JSON.
func npmCollector(env *Env) delta.Collector {
	return func(ctx context.Context) ([]delta.PackageState, error) {
		if !env.Exec.Exists("npm") {
			return nil, fmt.Errorf("npm is not available")
		}

		r := env.Exec.Run(ctx, "npm", "ls", "-g", "--depth=0", "--json")
		// npm exits non-zero on peer-dependency problems while still emitting
		// a complete tree, so the exit code alone is not a failure.
		var tree struct {
			Dependencies map[string]struct {
				Version string `json:"version"`
			} `json:"dependencies"`
		}
		if err := json.Unmarshal([]byte(r.Text()), &tree); err != nil {
			return nil, fmt.Errorf("failed to parse npm ls output: %w", err)
		}

		var state []delta.PackageState
		for name, dep := range tree.Dependencies {
			state = append(state, delta.PackageState{
				ID:      name,
				Name:    name,
				Version: dep.Version,
			})
		}
		return state, nil
	}
}

// pipCollector reads installed packages as JSON. pip normalizes names to
// lowercase already, so no extra key folding is needed.
func pipCollector(env *Env) delta.Collector {
	return func(ctx context.Context) ([]delta.PackageState, error) {
		if !env.Exec.Exists("pip") {
			return nil, fmt.Errorf("pip is not available")
		}

		r := env.Exec.Run(ctx, "pip", "list", "--format=json")
		if r.Failed() {
			return nil, fmt.Errorf("pip list exited with code %d", r.ExitCode)
		}

		var pkgs []struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(r.Text())), &pkgs); err != nil {
			return nil, fmt.Errorf("failed to parse pip list output: %w", err)
		}

		var state []delta.PackageState
		for _, p := range pkgs {
			state = append(state, delta.PackageState{
				ID:      p.Name,
				Name:    p.Name,
				Version: p.Version,
			})
		}
		return state, nil
	}
}
