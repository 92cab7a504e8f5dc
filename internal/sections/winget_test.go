package sections

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/updrift/updrift/internal/cache"
	"github.com/updrift/updrift/internal/config"
	"github.com/updrift/updrift/internal/execx"
	"github.com/updrift/updrift/internal/step"
)

const wingetBulkCommand = "winget upgrade --all --silent --accept-package-agreements --accept-source-agreements"

func wingetUpgradeCommand(id string) string {
	return "winget upgrade --id " + id + " --exact --silent --accept-package-agreements --accept-source-agreements"
}

var wingetUpgradeTable = []string{
	"Name                      Id                             Version    Available  Source",
	"--------------------------------------------------------------------------------------",
	"Discord                   Discord.Discord                1.0.9001   1.0.9002   winget",
	"Microsoft Edge WebView2   Microsoft.EdgeWebView2Runtime  119.0.1    120.0.2    winget",
	"2 upgrades available.",
}

func testEnv(t *testing.T, runner execx.Runner) *Env {
	t.Helper()

	c, err := cache.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Cache.ListTTLSeconds = 600
	cfg.Cache.UpgradeTTLSeconds = 300

	return &Env{
		Exec:        runner,
		Cache:       c,
		Cfg:         cfg,
		Log:         zerolog.Nop(),
		ArtifactDir: t.TempDir(),
	}
}

func TestRunWingetBulkSuccess(t *testing.T) {
	script := execx.NewScriptRunner()
	script.Script("winget upgrade --include-unknown", 0, wingetUpgradeTable...)
	script.Script(wingetBulkCommand, 0, "2 packages upgraded.")

	env := testEnv(t, script)
	res := step.NewResult("Winget")

	require.NoError(t, runWinget(context.Background(), env, res))

	assert.Equal(t, 2, res.Counts.Available)
	assert.Equal(t, 2, res.Counts.Updated)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 0, res.ExitCode)

	require.Len(t, res.Packages, 2)
	assert.Equal(t, "Discord.Discord", res.Packages[0].Name)
	assert.Equal(t, "1.0.9001", res.Packages[0].VersionBefore)
	assert.Equal(t, "1.0.9002", res.Packages[0].VersionAfter)
	assert.Equal(t, step.PackageUpdated, res.Packages[0].Status)

	assert.Contains(t, res.Artifacts, "winget_all_log")
	assert.Equal(t, 0, env.Cache.Len(), "cached transcripts must be dropped after upgrades")
}

func TestRunWingetNoUpgrades(t *testing.T) {
	script := execx.NewScriptRunner()
	script.Script("winget upgrade --include-unknown", 0,
		"No installed package found matching input criteria.")

	env := testEnv(t, script)
	res := step.NewResult("Winget")

	require.NoError(t, runWinget(context.Background(), env, res))

	assert.Equal(t, 0, res.Counts.Available)
	assert.Contains(t, res.Notes, "no upgrades available")
	assert.Equal(t, 0, script.CallCount(wingetBulkCommand), "no bulk pass without upgrades")
}

func TestRunWingetDeltaIgnoreListed(t *testing.T) {
	script := execx.NewScriptRunner()
	script.Script("winget upgrade --include-unknown", 0, wingetUpgradeTable...)

	env := testEnv(t, script)
	env.DeltaActive = true
	env.Targets = []string{"Discord.Discord"}
	env.Policy = step.Policy{IgnoreIDs: []string{"Discord.Discord"}}

	res := step.NewResult("Winget")
	require.NoError(t, runWinget(context.Background(), env, res))

	require.Len(t, res.Packages, 1)
	assert.Equal(t, step.PackageSkipped, res.Packages[0].Status)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 0, res.ExitCode, "ignore-listed failures must not surface an exit code")
	assert.Equal(t, 0, script.CallCount(wingetUpgradeCommand("Discord.Discord")))
	assert.Equal(t, 0, script.CallCount(wingetBulkCommand), "delta runs never use the bulk pass")
}

func TestRunWingetRetryKeepsFirstAttemptEvidence(t *testing.T) {
	script := execx.NewScriptRunner()
	script.Script("winget upgrade --include-unknown", 0, wingetUpgradeTable...)
	script.Script(wingetUpgradeCommand("Discord.Discord"), 1, "Installer failed with exit code: 1618")

	env := testEnv(t, script)
	env.DeltaActive = true
	env.Targets = []string{"Discord.Discord"}
	env.Policy = step.Policy{RetryIDs: []string{"Discord.Discord"}}

	res := step.NewResult("Winget")
	require.NoError(t, runWinget(context.Background(), env, res))

	assert.Equal(t, 2, script.CallCount(wingetUpgradeCommand("Discord.Discord")))
	assert.Contains(t, res.Notes, "first attempt of Discord.Discord exited with code 1, retrying")
	assert.Contains(t, res.Artifacts, "winget_Discord.Discord")
	assert.Contains(t, res.Artifacts, "winget_retry_Discord.Discord")

	require.Len(t, res.Packages, 1, "a retried package gets one final classification")
	assert.Equal(t, step.PackageFailed, res.Packages[0].Status)
	assert.Equal(t, 1, res.Counts.Failed)
	assert.Equal(t, 1, res.ExitCode)
}

func TestRunWingetRunningBlockerSkipped(t *testing.T) {
	script := execx.NewScriptRunner()
	script.Script("winget upgrade --include-unknown", 0, wingetUpgradeTable...)
	script.Script(wingetBulkCommand, 1,
		"(1/2) Found Discord [Discord.Discord]",
		"Application is currently running. Close the application and retry.",
	)

	env := testEnv(t, script)
	res := step.NewResult("Winget")

	require.NoError(t, runWinget(context.Background(), env, res))

	assert.Contains(t, res.Notes, "Discord (Discord.Discord): application is currently running, upgrade blocked")
	assert.Empty(t, res.Failures, "a blocked upgrade is not a bulk failure")

	require.Len(t, res.Packages, 1)
	assert.Equal(t, "Discord.Discord", res.Packages[0].Name)
	assert.Equal(t, step.PackageSkipped, res.Packages[0].Status)
}

func TestRunWingetRunningBlockerRetried(t *testing.T) {
	script := execx.NewScriptRunner()
	script.Script("winget upgrade --include-unknown", 0, wingetUpgradeTable...)
	script.Script(wingetBulkCommand, 1,
		"(1/2) Found Discord [Discord.Discord]",
		"Application is currently running. Close the application and retry.",
	)
	script.Script(wingetUpgradeCommand("Discord.Discord"), 0, "Successfully installed")

	env := testEnv(t, script)
	env.Policy = step.Policy{RetryIDs: []string{"Discord.Discord"}}
	res := step.NewResult("Winget")

	require.NoError(t, runWinget(context.Background(), env, res))

	assert.Equal(t, 1, script.CallCount(wingetUpgradeCommand("Discord.Discord")))
	assert.Contains(t, res.Actions, "retry of Discord.Discord succeeded")

	require.Len(t, res.Packages, 1)
	assert.Equal(t, step.PackageUpdated, res.Packages[0].Status)
	assert.Empty(t, res.Failures)
}
