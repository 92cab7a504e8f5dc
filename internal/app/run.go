package app

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/updrift/updrift/internal/orchestrator"
	"github.com/updrift/updrift/internal/output"
	"github.com/updrift/updrift/internal/step"
)

var (
	runOnly       []string
	runSkip       []string
	runDelta      bool
	runIncludeNew bool
	runParallel   bool
	runDryRun     bool
	runRefresh    bool

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run an update pass across every ecosystem",
		Long: `Run updates every known ecosystem in order, isolating failures per
section. The run exits non-zero when at least one section failed; skipped
sections (missing tool, skip list) never affect the exit code.`,
		RunE: runUpdate,
	}
)

func init() {
	runCmd.Flags().StringSliceVar(&runOnly, "sections", nil, "run only the named sections (repeatable)")
	runCmd.Flags().StringSliceVar(&runSkip, "skip", nil, "skip the named sections (repeatable)")
	runCmd.Flags().BoolVar(&runDelta, "delta", false, "only touch packages that changed since the last baseline")
	runCmd.Flags().BoolVar(&runIncludeNew, "include-new", false, "with --delta, also update packages absent from the baseline")
	runCmd.Flags().BoolVar(&runParallel, "parallel", false, "run parallel-eligible sections concurrently")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "log mutating commands instead of executing them")
	runCmd.Flags().BoolVar(&runRefresh, "force-refresh", false, "bypass cached tool output")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(runDryRun)
	if err != nil {
		return err
	}
	defer rt.Close()

	store, err := openHistory(rt.cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var mu sync.Mutex
	orch := &orchestrator.Orchestrator{
		Cfg:     rt.cfg,
		Log:     rt.runLog.Logger,
		LogPath: rt.runLog.Path,
		Exec:    rt.exec,
		Cache:   rt.cache,
		Deltas:  rt.deltas,
		History: store,
		OnResult: func(res *step.Result) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Print(output.RenderSectionSummary(res))
			if rt.cfg.ShowPackages {
				fmt.Print(output.RenderPackageTable(res.Packages))
			}
		},
	}

	summary, err := orch.Run(cmd.Context(), orchestrator.Options{
		Sections:     runOnly,
		Skip:         runSkip,
		Delta:        runDelta,
		IncludeNew:   runIncludeNew,
		Parallel:     runParallel,
		DryRun:       runDryRun,
		ForceRefresh: runRefresh,
		Version:      Version,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(output.RenderRunTable(summary.Results))
	if details := output.RenderFailureDetails(summary.Results); details != "" {
		fmt.Println()
		fmt.Print(details)
	}
	fmt.Printf("\nTotal: %.1fs  run: %s  log: %s\n",
		summary.TotalDurationSeconds, summary.RunID, summary.LogFilePath)

	if n := summary.FailedSections(); n > 0 {
		return fmt.Errorf("%d section(s) failed, see %s", n, summary.LogFilePath)
	}
	return nil
}
