package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.ShowPackages)
	assert.Equal(t, 600, cfg.Cache.ListTTLSeconds)
	assert.Equal(t, 300, cfg.Cache.UpgradeTTLSeconds)
	assert.Equal(t, 10, cfg.Baseline.KeepLast)
	assert.Equal(t, 7, cfg.Baseline.MaxAgeDays)
	assert.Equal(t, 4, cfg.Parallel.MaxConcurrent)
	assert.NotEmpty(t, cfg.StateDir)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "updrift.yaml")
	content := `
state_dir: ` + dir + `
log_level: debug
skip:
  - WSL
  - Conda
git_repos:
  - C:/src/dotfiles
policies:
  Winget:
    ignore:
      - Vendor.Flaky
    retry:
      - Discord.Discord
hooks:
  pre_update: powershell -Command Stop-Service foo
  pre_section:
    Docker images: docker system info
parallel:
  max_concurrent: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"WSL", "Conda"}, cfg.Skip)
	assert.Equal(t, []string{"C:/src/dotfiles"}, cfg.GitRepos)
	assert.Equal(t, []string{"Vendor.Flaky"}, cfg.Policies["Winget"].Ignore)
	assert.Equal(t, []string{"Discord.Discord"}, cfg.Policies["Winget"].Retry)
	assert.Equal(t, "powershell -Command Stop-Service foo", cfg.Hooks.PreUpdate)
	assert.Equal(t, "docker system info", cfg.Hooks.PreSection["Docker images"])
	assert.Equal(t, 8, cfg.Parallel.MaxConcurrent)

	assert.Equal(t, filepath.Join(dir, "logs"), cfg.LogDir())
	assert.Equal(t, filepath.Join(dir, "baselines"), cfg.BaselineDir())
	assert.Equal(t, filepath.Join(dir, "cache"), cfg.CacheDir())
}

func TestCacheDirDisabled(t *testing.T) {
	cfg := &Config{StateDir: "/state"}
	cfg.Cache.Disk = false

	assert.Equal(t, "", cfg.CacheDir(), "disk caching off means no cache directory")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(New(), "/does/not/exist/updrift.yaml")
	assert.Error(t, err)
}
