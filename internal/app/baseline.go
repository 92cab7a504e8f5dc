package app

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/updrift/updrift/internal/delta"
	"github.com/updrift/updrift/internal/sections"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage installed-package baselines used by delta runs",
}

var baselineSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Snapshot the current installed-package state",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(false)
		if err != nil {
			return err
		}
		defer rt.Close()

		state := rt.deltas.CollectCurrentState(cmd.Context(), sections.Collectors(rt.env()))
		path, err := rt.deltas.SaveBaseline(state, Version, rt.cfg.Baseline.KeepLast)
		if err != nil {
			return err
		}

		fmt.Printf("Baseline saved: %s\n", path)
		printStateCounts(state)
		return nil
	},
}

var baselineShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the latest saved baseline",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(false)
		if err != nil {
			return err
		}
		defer rt.Close()

		snapshot, err := rt.deltas.LoadLatestBaseline(0)
		if err != nil {
			return err
		}
		if snapshot == nil {
			fmt.Println("No baseline saved. Run 'updrift baseline save' first.")
			return nil
		}

		fmt.Printf("Baseline from %s (updrift %s)\n",
			snapshot.Timestamp.Format("2006-01-02 15:04:05"), snapshot.ToolVersion)
		printStateCounts(snapshot.State)
		return nil
	},
}

var baselineDiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare current installed state against the latest baseline",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(false)
		if err != nil {
			return err
		}
		defer rt.Close()

		snapshot, err := rt.deltas.LoadLatestBaseline(0)
		if err != nil {
			return err
		}
		if snapshot == nil {
			fmt.Println("No baseline saved. Run 'updrift baseline save' first.")
			return nil
		}

		current := rt.deltas.CollectCurrentState(cmd.Context(), sections.Collectors(rt.env()))
		diff := delta.CompareState(current, snapshot.State)

		changes := 0
		for _, source := range sortedSources(diff) {
			sd := diff[source]
			if len(sd.Added)+len(sd.Removed)+len(sd.Updated) == 0 {
				continue
			}
			changes++
			fmt.Printf("%s:\n", source)
			for _, pkg := range sd.Added {
				fmt.Printf("  + %s %s\n", pkg.Key(), pkg.Version)
			}
			for _, pkg := range sd.Removed {
				fmt.Printf("  - %s %s\n", pkg.Key(), pkg.Version)
			}
			for _, ch := range sd.Updated {
				fmt.Printf("  ~ %s %s -> %s\n", ch.Key, ch.OldVersion, ch.NewVersion)
			}
		}
		if changes == 0 {
			fmt.Println("No changes since baseline.")
		}
		return nil
	},
}

func init() {
	baselineCmd.AddCommand(baselineSaveCmd)
	baselineCmd.AddCommand(baselineShowCmd)
	baselineCmd.AddCommand(baselineDiffCmd)
}

func printStateCounts(state delta.State) {
	for _, source := range sortedStateSources(state) {
		fmt.Printf("  %-12s %d packages\n", source, len(state[source]))
	}
}

func sortedSources(diff delta.Diff) []string {
	sources := make([]string, 0, len(diff))
	for s := range diff {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

func sortedStateSources(state delta.State) []string {
	sources := make([]string, 0, len(state))
	for s := range state {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}
