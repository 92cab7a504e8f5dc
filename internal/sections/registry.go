package sections

// Registry returns every known section in its canonical execution order.
// Results are always reported in this order, regardless of how the parallel
// pool interleaves execution.
func Registry() []Section {
	return []Section{
		wingetSection(),
		commandSection("Chocolatey", "choco", true,
			[]string{"upgrade", "all", "-y"},
		),
		commandSection("Scoop", "scoop", true,
			[]string{"update"},
			[]string{"update", "*"},
		),
		npmSection(),
		commandSection("pnpm (global)", "pnpm", true,
			[]string{"update", "-g"},
		),
		commandSection("Yarn (global)", "yarn", true,
			[]string{"global", "upgrade"},
		),
		pipSection(),
		commandSection("pipx", "pipx", true,
			[]string{"upgrade-all"},
		),
		commandSection("Conda", "conda", true,
			[]string{"update", "--all", "-y"},
		),
		dotnetSection(),
		commandSection("Rust", "rustup", true,
			[]string{"update"},
		),
		commandSection("Go tools", "gup", true,
			[]string{"update"},
		),
		commandSection("Ruby gems", "gem", true,
			[]string{"update"},
		),
		powershellModulesSection(),
		vscodeSection(),
		windowsUpdateSection(),
		gitReposSection(),
		dockerSection(),
		wslSection(),
	}
}

func npmSection() Section {
	s := commandSection("npm (global)", "npm", true,
		[]string{"update", "-g"},
	)
	s.Source = "npm"
	return s
}

// ByName resolves sections by their display names, preserving registry
// order. Unknown names are returned so the caller can report them.
func ByName(names []string) (matched []Section, unknown []string) {
	all := Registry()
	byName := map[string]Section{}
	for _, s := range all {
		byName[s.Name] = s
	}

	want := map[string]bool{}
	for _, n := range names {
		if _, ok := byName[n]; !ok {
			unknown = append(unknown, n)
			continue
		}
		want[n] = true
	}
	for _, s := range all {
		if want[s.Name] {
			matched = append(matched, s)
		}
	}
	return matched, unknown
}
