package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var kpisSearch string

var kpisCmd = &cobra.Command{
	Use:   "kpis",
	Short: "List the provider's KPI catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		provider, err := initProvider()
		if err != nil {
			return err
		}

		kpis, err := provider.KPIs(ctx)
		if err != nil {
			return err
		}

		count := 0
		for _, kpi := range kpis {
			if kpisSearch != "" && !strings.Contains(strings.ToLower(kpi.Name), strings.ToLower(kpisSearch)) {
				continue
			}
			fmt.Printf("%-8d %s\n", kpi.ID, kpi.Name)
			count++
		}
		fmt.Printf("\n%d KPIs\n", count)
		return nil
	},
}

func init() {
	kpisCmd.Flags().StringVar(&kpisSearch, "search", "", "filter by KPI name")
	rootCmd.AddCommand(kpisCmd)
}
