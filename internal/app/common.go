package app

import (
	"fmt"
	"os"

	"github.com/updrift/updrift/internal/cache"
	"github.com/updrift/updrift/internal/config"
	"github.com/updrift/updrift/internal/delta"
	"github.com/updrift/updrift/internal/execx"
	"github.com/updrift/updrift/internal/history"
	"github.com/updrift/updrift/internal/logging"
	"github.com/updrift/updrift/internal/sections"
)

// runtime bundles the collaborators a command needs: resolved config, the
// per-invocation run log, the executor, and the state-dir backed stores.
type runtime struct {
	cfg    *config.Config
	runLog *logging.RunLog
	exec   *execx.Exec
	cache  *cache.Cache
	deltas *delta.Engine
}

// newRuntime resolves config and opens the run log and caches. Callers must
// Close it.
func newRuntime(dryRun bool) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	runLog, err := logging.Setup(cfg.LogDir(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	c, err := cache.New(cfg.CacheDir(), runLog.Logger)
	if err != nil {
		runLog.Close()
		return nil, err
	}

	return &runtime{
		cfg:    cfg,
		runLog: runLog,
		exec:   execx.New(dryRun, runLog.Logger),
		cache:  c,
		deltas: delta.NewEngine(cfg.BaselineDir(), runLog.Logger),
	}, nil
}

func (rt *runtime) Close() {
	rt.runLog.Close()
}

// env builds a neutral section environment, used by the baseline commands to
// run the state collectors outside an update run.
func (rt *runtime) env() *sections.Env {
	return &sections.Env{
		Exec:        rt.exec,
		Cache:       rt.cache,
		Cfg:         rt.cfg,
		Log:         rt.runLog.Logger,
		ArtifactDir: rt.cfg.ArtifactDir(),
	}
}

// openHistory opens the run-history database, creating the state directory
// when needed.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return history.New(cfg.HistoryDBPath())
}
