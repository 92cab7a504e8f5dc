package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare <run-a> <run-b>",
	Short: "Compare the total durations of two recorded runs",
	Args:  cobra.ExactArgs(2),
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

		c, err := store.CompareRuns(args[0], args[1])
		if err != nil {
			return err
		}

		direction := "slower"
		if c.Change < 0 {
			direction = "faster"
		} else if c.Change == 0 {
			direction = "unchanged"
		}

		fmt.Printf("Before: %.1fs\n", c.BeforeSeconds)
		fmt.Printf("After:  %.1fs\n", c.AfterSeconds)
		if direction == "unchanged" {
			fmt.Println("Change: none")
			return nil
		}
		fmt.Printf("Change: %+.1fs (%.1f%%, %s)\n", c.Change, c.PercentChange, direction)
		return nil
	},
}
