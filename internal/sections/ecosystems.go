package sections

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/updrift/updrift/internal/step"
)

// pipOutdated mirrors one element of `pip list --outdated --format=json`.
type pipOutdated struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	LatestVersion string `json:"latest_version"`
}

func pipSection() Section {
	return Section{
		Name:     "pip",
		Tool:     "pip",
		Parallel: true,
		Source:   "pip",
		Run:      runPip,
	}
}

// runPip lists outdated packages as JSON and upgrades them one by one, so
// each package gets its own record and failures stay attributable.
func runPip(ctx context.Context, env *Env, res *step.Result) error {
	list := env.Exec.Run(ctx, "pip", "list", "--outdated", "--format=json")
	if list.Failed() {
		res.RecordExit(list.ExitCode)
		res.AddFailure("pip list --outdated exited with code %d", list.ExitCode)
		return nil
	}

	var outdated []pipOutdated
	if err := json.Unmarshal([]byte(list.Text()), &outdated); err != nil {
		res.AddFailure("failed to parse pip list output: %v", err)
		return nil
	}

	res.Counts.Available = len(outdated)
	if len(outdated) == 0 {
		res.AddNote("no outdated packages")
		return nil
	}

	for _, pkg := range outdated {
		if !env.Targeted(pkg.Name) {
			continue
		}
		if env.Policy.Ignored(pkg.Name) {
			res.AddNote("%s is ignore-listed, skipping", pkg.Name)
			res.AddPackage(step.PackageRecord{
				Name:          pkg.Name,
				VersionBefore: pkg.Version,
				Status:        step.PackageSkipped,
			})
			continue
		}

		r := env.Exec.RunMutating(ctx, "pip", "install", "--upgrade", pkg.Name)
		if r.Failed() {
			res.RecordExit(r.ExitCode)
			res.AddFailure("upgrade of %s exited with code %d", pkg.Name, r.ExitCode)
			writeArtifact(env, res, "pip_"+pkg.Name, r.Lines)
			res.AddPackage(step.PackageRecord{
				Name:          pkg.Name,
				VersionBefore: pkg.Version,
				Status:        step.PackageFailed,
			})
			continue
		}
		res.AddPackage(step.PackageRecord{
			Name:          pkg.Name,
			VersionBefore: pkg.Version,
			VersionAfter:  pkg.LatestVersion,
			Status:        step.PackageUpdated,
		})
	}
	return nil
}

func dotnetSection() Section {
	return Section{
		Name:     ".NET tools",
		Tool:     "dotnet",
		Parallel: true,
		Run:      runDotnet,
	}
}

// runDotnet parses the global tool table and updates each tool by id.
func runDotnet(ctx context.Context, env *Env, res *step.Result) error {
	list := env.Exec.Run(ctx, "dotnet", "tool", "list", "--global")
	if list.Failed() {
		res.RecordExit(list.ExitCode)
		res.AddFailure("dotnet tool list exited with code %d", list.ExitCode)
		return nil
	}

	type tool struct{ id, version string }
	var tools []tool
	for _, line := range list.Lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "Package Id") || strings.HasPrefix(trimmed, "---") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			continue
		}
		tools = append(tools, tool{id: fields[0], version: fields[1]})
	}

	res.Counts.Installed = len(tools)
	if len(tools) == 0 {
		res.AddNote("no global tools installed")
		return nil
	}

	for _, tl := range tools {
		if !env.Targeted(tl.id) {
			continue
		}
		r := env.Exec.RunMutating(ctx, "dotnet", "tool", "update", "--global", tl.id)
		if r.Failed() {
			res.RecordExit(r.ExitCode)
			res.AddFailure("update of %s exited with code %d", tl.id, r.ExitCode)
			res.AddPackage(step.PackageRecord{Name: tl.id, VersionBefore: tl.version, Status: step.PackageFailed})
			continue
		}
		if strings.Contains(r.Text(), "reinstalled with the latest stable version") ||
			strings.Contains(r.Text(), "was successfully updated") {
			res.AddPackage(step.PackageRecord{Name: tl.id, VersionBefore: tl.version, Status: step.PackageUpdated})
		} else {
			res.AddPackage(step.PackageRecord{Name: tl.id, VersionBefore: tl.version, VersionAfter: tl.version, Status: step.PackageNoChange})
		}
	}
	return nil
}

func vscodeSection() Section {
	return Section{
		Name:     "VS Code extensions",
		Tool:     "code",
		Parallel: true,
		Run: func(ctx context.Context, env *Env, res *step.Result) error {
			list := env.Exec.Run(ctx, "code", "--list-extensions", "--show-versions")
			if !list.Failed() {
				res.Counts.Installed = len(list.Lines)
			}

			r := env.Exec.RunMutating(ctx, "code", "--update-extensions")
			if r.Failed() {
				res.RecordExit(r.ExitCode)
				res.AddFailure("code --update-extensions exited with code %d", r.ExitCode)
				writeArtifact(env, res, "vscode_extensions_log", r.Lines)
				return nil
			}
			res.AddAction("updated VS Code extensions")
			return nil
		},
	}
}

func gitReposSection() Section {
	return Section{
		Name:     "Git repositories",
		Tool:     "git",
		Parallel: false, // working-tree and index locks
		Run: func(ctx context.Context, env *Env, res *step.Result) error {
			if len(env.Cfg.GitRepos) == 0 {
				res.Skip("no git repositories configured")
				return nil
			}

			for _, repo := range env.Cfg.GitRepos {
				r := env.Exec.RunMutating(ctx, "git", "-C", repo, "pull", "--ff-only")
				if r.Failed() {
					res.RecordExit(r.ExitCode)
					res.AddFailure("pull of %s exited with code %d", repo, r.ExitCode)
					writeArtifact(env, res, "git_"+repo, r.Lines)
					res.AddPackage(step.PackageRecord{Name: repo, Status: step.PackageFailed})
					continue
				}
				if strings.Contains(r.Text(), "Already up to date") {
					res.AddPackage(step.PackageRecord{Name: repo, Status: step.PackageNoChange})
					continue
				}
				res.AddAction("pulled %s", repo)
				res.AddPackage(step.PackageRecord{Name: repo, Status: step.PackageUpdated})
			}
			return nil
		},
	}
}

func dockerSection() Section {
	return Section{
		Name:     "Docker images",
		Tool:     "docker",
		Parallel: false, // daemon-state contention
		Run: func(ctx context.Context, env *Env, res *step.Result) error {
			list := env.Exec.Run(ctx, "docker", "images", "--format", "{{.Repository}}:{{.Tag}}")
			if list.Failed() {
				res.RecordExit(list.ExitCode)
				res.AddFailure("docker images exited with code %d", list.ExitCode)
				return nil
			}

			for _, image := range list.Lines {
				image = strings.TrimSpace(image)
				if image == "" || strings.Contains(image, "<none>") {
					continue
				}
				res.Counts.Installed++

				r := env.Exec.RunMutating(ctx, "docker", "pull", image)
				if r.Failed() {
					res.RecordExit(r.ExitCode)
					res.AddFailure("pull of %s exited with code %d", image, r.ExitCode)
					res.AddPackage(step.PackageRecord{Name: image, Status: step.PackageFailed})
					continue
				}
				if strings.Contains(r.Text(), "Image is up to date") {
					res.AddPackage(step.PackageRecord{Name: image, Status: step.PackageNoChange})
					continue
				}
				res.AddPackage(step.PackageRecord{Name: image, Status: step.PackageUpdated})
			}
			return nil
		},
	}
}

func windowsUpdateSection() Section {
	return Section{
		Name:     "Windows Update",
		Tool:     "powershell",
		Parallel: false, // servicing stack takes machine-wide locks
		Run: func(ctx context.Context, env *Env, res *step.Result) error {
			r := env.Exec.RunMutating(ctx, "powershell", "-NoProfile", "-Command",
				"Import-Module PSWindowsUpdate; Install-WindowsUpdate -AcceptAll -IgnoreReboot")
			res.RecordExit(r.ExitCode)
			writeArtifact(env, res, "windows_update_log", r.Lines)
			if r.Failed() {
				res.AddFailure("Windows Update pass exited with code %d", r.ExitCode)
				return nil
			}
			res.AddAction("ran PSWindowsUpdate pass")
			return nil
		},
	}
}

func powershellModulesSection() Section {
	return Section{
		Name:     "PowerShell modules",
		Tool:     "powershell",
		Parallel: true,
		Run: func(ctx context.Context, env *Env, res *step.Result) error {
			r := env.Exec.RunMutating(ctx, "powershell", "-NoProfile", "-Command",
				"Update-Module -Force -ErrorAction Continue")
			if r.Failed() {
				res.RecordExit(r.ExitCode)
				res.AddFailure("Update-Module exited with code %d", r.ExitCode)
				writeArtifact(env, res, "powershell_modules_log", r.Lines)
				return nil
			}
			res.AddAction("updated PowerShell modules")
			return nil
		},
	}
}

func wslSection() Section {
	return Section{
		Name:     "WSL",
		Tool:     "wsl",
		Parallel: false, // VM-state contention
		Run: func(ctx context.Context, env *Env, res *step.Result) error {
			r := env.Exec.RunMutating(ctx, "wsl", "--update")
			res.RecordExit(r.ExitCode)
			if r.Failed() {
				res.AddFailure("wsl --update exited with code %d", r.ExitCode)
				writeArtifact(env, res, "wsl_log", r.Lines)
				return nil
			}
			res.AddAction("updated WSL")
			return nil
		},
	}
}
