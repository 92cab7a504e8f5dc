package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	historyLimit int

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(historyLimit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded yet. Run 'updrift run' first.")
				return nil
			}

			fmt.Printf("%-36s %-20s %10s %8s\n", "Run", "At", "Duration", "Failed")
			fmt.Println(strings.Repeat("-", 78))
			for _, r := range runs {
				fmt.Printf("%-36s %-20s %9.1fs %8d\n",
					r.ID, r.RunAt.Format("2006-01-02 15:04:05"),
					r.TotalDurationSeconds, r.FailedSections)
			}
			return nil
		},
	}
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list")
}
