// Package app wires the updrift command-line interface.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/updrift/updrift/internal/config"
)

// Version is stamped by the build; baselines record it so a diff can tell
// which updrift produced the snapshot.
var Version = "dev"

var (
	cfgFile string

	// RootCmd is the root command for updrift
	RootCmd = &cobra.Command{
		Use:   "updrift",
		Short: "One command to update every package ecosystem on a Windows dev box",
		Long: `updrift drives winget, chocolatey, scoop, language package managers,
Docker images, WSL, and Windows Update through one orchestrated run with
per-section isolation: a broken ecosystem never aborts the rest.

Examples:
  # Update everything
  updrift run

  # Update only winget and Rust, in parallel
  updrift run --sections Winget --sections Rust --parallel

  # Only touch packages that changed since the last baseline
  updrift run --delta

  # Preview the commands a full run would execute
  updrift run --dry-run

  # Inspect past runs and compare their durations
  updrift history
  updrift compare <run-a> <run-b>`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	RootCmd.Version = Version
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./updrift.yaml, ~/.updrift/updrift.yaml)")
	RootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	RootCmd.PersistentFlags().String("state-dir", "", "state directory (default: ~/.updrift)")

	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(sectionsCmd)
	RootCmd.AddCommand(baselineCmd)
	RootCmd.AddCommand(cacheCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(compareCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig resolves the effective configuration for a command: file and
// environment first, then any explicitly set global flags on top.
func loadConfig() (*config.Config, error) {
	v := config.New()
	bindChangedFlags(v, RootCmd.PersistentFlags())
	return config.Load(v, cfgFile)
}

// bindChangedFlags overlays flags the user actually set. Binding unset flags
// would shadow config-file values with the flag defaults, so only changed
// flags are applied.
func bindChangedFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for key, name := range map[string]string{
		"log_level": "log-level",
		"state_dir": "state-dir",
	} {
		if f := flags.Lookup(name); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}
}
