package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldops/dispatchd/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file without running a batch",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"config ok: strategy=%s threshold=%.2f capacity_ratio=%.2f store=%s\n",
		strategyName(cfg), cfg.Assignment.MinSuccessThreshold,
		cfg.Assignment.MaxCapacityRatio, cfg.Store.Backend)
	return nil
}

func strategyName(cfg *config.Config) string {
	if cfg.Assignment.UseMLAssignment {
		return "ml_exhaustive"
	}
	return "cascading"
}
