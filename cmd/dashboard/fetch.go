package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"MarketDashboard/internal/calculator"
	"MarketDashboard/internal/market"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <instrument>",
	Short: "Run one instrument's provider chain and print the series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		svc, err := market.New(cfg, market.NewHTTPClient(cfg), market.Options{})
		if err != nil {
			return err
		}

		series, source, err := svc.Refresh(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s: %d points from %s\n", args[0], len(series), source)
		if sum, err := calculator.Summarize(series); err == nil {
			fmt.Fprintf(os.Stderr, "last %.4f, change %+.4f (%+.2f%%)\n", sum.Last, sum.Change, sum.ChangePercent)
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "csv":
			return gocsv.Marshal(&series, os.Stdout)
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(series)
		default:
			return fmt.Errorf("unknown format %q", format)
		}
	},
}

func init() {
	fetchCmd.Flags().String("format", "json", "output format: json or csv")
	fetchCmd.Flags().Bool("offline", false, "use mock data instead of calling providers")
}
