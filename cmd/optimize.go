package cmd

import "github.com/spf13/cobra"

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run one assignment batch",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}
