package app

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/updrift/updrift/internal/execx"
	"github.com/updrift/updrift/internal/sections"
)

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "List the known update sections and whether their tool is installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		probe := execx.New(false, zerolog.Nop())

		fmt.Printf("%-24s %-12s %-12s %-10s %s\n", "Section", "Tool", "Mode", "Installed", "Delta source")
		fmt.Println(strings.Repeat("-", 74))

		for _, sec := range sections.Registry() {
			mode := "sequential"
			if sec.Parallel {
				mode = "parallel"
			}
			installed := "no"
			if probe.Exists(sec.Tool) {
				installed = "yes"
			}
			source := "-"
			if sec.Source != "" {
				source = sec.Source
			}
			fmt.Printf("%-24s %-12s %-12s %-10s %s\n", sec.Name, sec.Tool, mode, installed, source)
		}
		return nil
	},
}
