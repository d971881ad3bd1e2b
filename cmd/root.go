package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-screener/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "kpi-screener",
	Short: "KPI-based stock screening engine",
	Long:  "Screens stock universes against boolean trees of KPI filters (absolute, relative growth, trend, direction) using Borsdata or Refinitiv data.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
