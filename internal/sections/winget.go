package sections

import (
	"context"
	"time"

	"github.com/updrift/updrift/internal/step"
	"github.com/updrift/updrift/internal/winget"
)

// Cache keys for the expensive winget calls. Both carry the "winget-" prefix
// so one prefix invalidation drops every cached winget transcript.
const (
	wingetUpgradeCacheKey = "winget-upgrade"
	wingetListCacheKey    = "winget-list"
)

var wingetUpgradeFlags = []string{"--silent", "--accept-package-agreements", "--accept-source-agreements"}

func wingetSection() Section {
	return Section{
		Name:     "Winget",
		Tool:     "winget",
		Parallel: true,
		Source:   "Winget",
		Run:      runWinget,
	}
}

// runWinget drives the winget ecosystem: source refresh, bulk upgrade,
// explicit-targeting pass, running-application blockers, retry pass.
// Operations are strictly ordered; later steps depend on earlier output.
func runWinget(ctx context.Context, env *Env, res *step.Result) error {
	parser := winget.Parser{Log: env.Log}

	refresh := env.Exec.RunMutating(ctx, "winget", "source", "update")
	res.RecordExit(refresh.ExitCode)
	res.AddAction("refreshed winget sources")
	// A source update changes package state: every cached winget transcript
	// is stale now.
	env.Cache.InvalidatePrefix("winget-")

	ttl := time.Duration(env.Cfg.Cache.UpgradeTTLSeconds) * time.Second
	lines, err := env.Cache.GetOrCompute(wingetUpgradeCacheKey, ttl, env.ForceRefresh, func() ([]string, error) {
		// winget exits non-zero when nothing is upgradable; the parser
		// handles the notice line, so the transcript is still cacheable.
		r := env.Exec.Run(ctx, "winget", "upgrade", "--include-unknown")
		return r.Lines, nil
	})
	if err != nil {
		return err
	}

	upgrades := parser.ParseUpgradeList(lines)
	res.Counts.Available = len(upgrades)

	if len(upgrades) == 0 {
		res.AddNote("no upgrades available")
		return nil
	}

	explicit := parser.ExplicitTargetIDs(lines)
	explicitSet := map[string]bool{}
	for _, id := range explicit {
		explicitSet[id] = true
	}

	byID := map[string]winget.Upgrade{}
	for _, u := range upgrades {
		byID[u.ID] = u
	}

	if env.DeltaActive {
		// Delta run: each changed package is upgraded by exact id.
		for _, u := range upgrades {
			if !env.Targeted(u.ID) {
				continue
			}
			upgradeWingetPackage(ctx, env, res, u)
		}
		env.Cache.InvalidatePrefix("winget-")
		return nil
	}

	// Bulk pass covers everything that does not require explicit targeting.
	bulkArgs := append([]string{"upgrade", "--all"}, wingetUpgradeFlags...)
	bulk := env.Exec.RunMutating(ctx, "winget", bulkArgs...)
	res.RecordExit(bulk.ExitCode)
	writeArtifact(env, res, "winget_all_log", bulk.Lines)

	blockers := parser.RunningBlockers(bulk.Lines)
	blockedSet := map[string]bool{}
	for _, b := range blockers {
		blockedSet[b.ID] = true
		res.AddNote("%s (%s): application is currently running, upgrade blocked", b.Name, b.ID)
	}

	if bulk.Failed() && len(blockers) == 0 {
		res.AddFailure("winget bulk upgrade exited with code %d", bulk.ExitCode)
	}

	if !bulk.Failed() {
		for _, u := range upgrades {
			if explicitSet[u.ID] || blockedSet[u.ID] {
				continue
			}
			res.AddPackage(step.PackageRecord{
				Name:          u.ID,
				VersionBefore: u.Version,
				VersionAfter:  u.Available,
				Status:        step.PackageUpdated,
			})
		}
	}

	// Explicit-targeting pass: these packages are never covered by --all.
	for _, id := range explicit {
		upgradeWingetPackage(ctx, env, res, upgradeInfo(byID, id))
	}

	// Retry pass for packages blocked by a running application.
	for _, b := range blockers {
		u := upgradeInfo(byID, b.ID)
		if !env.Policy.ShouldRetry(b.ID) {
			res.AddPackage(step.PackageRecord{
				Name:          b.ID,
				VersionBefore: u.Version,
				Status:        step.PackageSkipped,
			})
			continue
		}
		retryWingetPackage(ctx, env, res, u)
	}

	// Upgrades changed installed state; cached transcripts are stale.
	env.Cache.InvalidatePrefix("winget-")
	return nil
}

// upgradeWingetPackage upgrades one package by exact id, applying the
// ignore-list and retry-list policies.
func upgradeWingetPackage(ctx context.Context, env *Env, res *step.Result, u winget.Upgrade) {
	if env.Policy.Ignored(u.ID) {
		res.AddNote("%s is ignore-listed, skipping", u.ID)
		res.AddPackage(step.PackageRecord{
			Name:          u.ID,
			VersionBefore: u.Version,
			Status:        step.PackageSkipped,
		})
		return
	}

	args := append([]string{"upgrade", "--id", u.ID, "--exact"}, wingetUpgradeFlags...)
	r := env.Exec.RunMutating(ctx, "winget", args...)
	writeArtifact(env, res, "winget_"+u.ID, r.Lines)

	if !r.Failed() {
		res.AddPackage(step.PackageRecord{
			Name:          u.ID,
			VersionBefore: u.Version,
			VersionAfter:  u.Available,
			Status:        step.PackageUpdated,
		})
		return
	}

	if env.Policy.ShouldRetry(u.ID) {
		// Final classification happens after the retry; the first attempt's
		// evidence survives in its note and log artifact.
		res.AddNote("first attempt of %s exited with code %d, retrying", u.ID, r.ExitCode)
		retryWingetPackage(ctx, env, res, u)
		return
	}

	res.RecordExit(r.ExitCode)
	res.AddFailure("upgrade of %s exited with code %d", u.ID, r.ExitCode)
	res.AddPackage(step.PackageRecord{
		Name:          u.ID,
		VersionBefore: u.Version,
		Status:        step.PackageFailed,
	})
}

// retryWingetPackage gives a package a second attempt with its own log
// artifact before final classification.
func retryWingetPackage(ctx context.Context, env *Env, res *step.Result, u winget.Upgrade) {
	args := append([]string{"upgrade", "--id", u.ID, "--exact"}, wingetUpgradeFlags...)
	r := env.Exec.RunMutating(ctx, "winget", args...)
	writeArtifact(env, res, "winget_retry_"+u.ID, r.Lines)

	if !r.Failed() {
		res.AddAction("retry of %s succeeded", u.ID)
		res.AddPackage(step.PackageRecord{
			Name:          u.ID,
			VersionBefore: u.Version,
			VersionAfter:  u.Available,
			Status:        step.PackageUpdated,
		})
		return
	}

	res.RecordExit(r.ExitCode)
	res.AddFailure("retry of %s exited with code %d", u.ID, r.ExitCode)
	res.AddPackage(step.PackageRecord{
		Name:          u.ID,
		VersionBefore: u.Version,
		Status:        step.PackageFailed,
	})
}

// upgradeInfo looks up the table row for id, falling back to a bare record
// when the id never appeared in the upgrade table.
func upgradeInfo(byID map[string]winget.Upgrade, id string) winget.Upgrade {
	if u, ok := byID[id]; ok {
		return u
	}
	return winget.Upgrade{Name: id, ID: id}
}
