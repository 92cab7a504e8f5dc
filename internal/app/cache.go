package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cachePrefix string

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Manage cached tool output",
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Drop cached tool output",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if cachePrefix != "" {
				rt.cache.InvalidatePrefix(cachePrefix)
				fmt.Printf("Cleared cache entries with prefix %q\n", cachePrefix)
				return nil
			}
			rt.cache.InvalidateAll()
			fmt.Println("Cache cleared")
			return nil
		},
	}
)

func init() {
	cacheClearCmd.Flags().StringVar(&cachePrefix, "prefix", "", "only clear entries whose key starts with this prefix")
	cacheCmd.AddCommand(cacheClearCmd)
}
