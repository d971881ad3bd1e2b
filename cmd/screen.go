package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-screener/internal/engine"
	"github.com/sells-group/kpi-screener/internal/screen"
)

var (
	screenRequestFile string
	screenOutputFile  string
	screenAudit       bool
	screenParallelism int
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Run a screening request against the instrument universe",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		req, err := loadRequest(screenRequestFile)
		if err != nil {
			return err
		}
		// The audit sheet needs per-leaf rows even when --audit is not set.
		withAudit := screenAudit || screenOutputFile != ""

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		instruments, err := env.Fetcher.Instruments(ctx)
		if err != nil {
			return err
		}
		universe := screen.FilterUniverse(instruments, req.Universe)

		stockIDs := make([]int, len(universe))
		for i, inst := range universe {
			stockIDs[i] = inst.ID
		}
		data, err := env.Fetcher.Dataset(ctx, stockIDs, req.KPINames(), req.FrequencyFor)
		if err != nil {
			return eris.Wrap(err, "fetch dataset")
		}

		parallelism := screenParallelism
		if parallelism == 0 {
			parallelism = cfg.Screen.Parallelism
		}
		pipeline := screen.New(screen.Options{
			Parallelism:   parallelism,
			ProgressEvery: cfg.Screen.ProgressEvery,
			WithAudit:     withAudit,
		})

		result, err := pipeline.Run(ctx, req, universe, data)
		if err != nil {
			return err
		}

		leaves, _, err := engine.BuildTree(req)
		if err != nil {
			return err
		}
		fmt.Print(screen.FormatReport(result, leaves, instruments))

		if screenOutputFile != "" {
			if err := screen.ExportXLSX(screenOutputFile, result, leaves, instruments); err != nil {
				return err
			}
			zap.L().Info("results exported", zap.String("path", screenOutputFile))
		}
		return nil
	},
}

func init() {
	screenCmd.Flags().StringVar(&screenRequestFile, "request", "", "screening request YAML file (required)")
	screenCmd.Flags().StringVar(&screenOutputFile, "output", "", "write results to an xlsx file")
	screenCmd.Flags().BoolVar(&screenAudit, "audit", false, "include per-leaf audit rows in the report")
	screenCmd.Flags().IntVar(&screenParallelism, "parallelism", 0, "concurrent stock evaluations (default from config)")
	_ = screenCmd.MarkFlagRequired("request")
	rootCmd.AddCommand(screenCmd)
}
