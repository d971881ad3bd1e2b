package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/kpi-screener/internal/model"
	"github.com/sells-group/kpi-screener/internal/screen"
)

var (
	universeSearch    string
	universeCountries []int
	universeMarkets   []int
	universeSectors   []int
	universeBranches  []int
)

var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "List screenable instruments",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		instruments, err := env.Fetcher.Instruments(ctx)
		if err != nil {
			return err
		}

		instruments = screen.FilterUniverse(instruments, model.UniverseFilter{
			CountryIDs: universeCountries,
			MarketIDs:  universeMarkets,
			SectorIDs:  universeSectors,
			BranchIDs:  universeBranches,
		})
		if universeSearch != "" {
			instruments = screen.SearchInstruments(instruments, universeSearch)
		}

		for _, inst := range instruments {
			fmt.Printf("%-8d %-14s %s\n", inst.ID, inst.Ticker, inst.Name)
		}
		fmt.Printf("\n%d instruments\n", len(instruments))
		return nil
	},
}

func init() {
	universeCmd.Flags().StringVar(&universeSearch, "search", "", "filter by name or ticker (diacritic-insensitive)")
	universeCmd.Flags().IntSliceVar(&universeCountries, "country", nil, "filter by country id")
	universeCmd.Flags().IntSliceVar(&universeMarkets, "market", nil, "filter by market id")
	universeCmd.Flags().IntSliceVar(&universeSectors, "sector", nil, "filter by sector id")
	universeCmd.Flags().IntSliceVar(&universeBranches, "branch", nil, "filter by branch id")
	rootCmd.AddCommand(universeCmd)
}
