package commands

import (
	"os"

	"caixa-imoveis/internal/components/telemetry"
	"caixa-imoveis/internal/scrapers/caixa"
	"caixa-imoveis/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var citiesState string

func init() {
	citiesCmd.Flags().StringVarP(&citiesState, "state", "e", "SP", "two letter state code")
	rootCmd.AddCommand(citiesCmd)
}

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "Prints the cities the portal lists for a state.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		flush := setupTelemetry(ctx)
		defer flush()

		config, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		scraper := caixa.NewScraper(caixa.Options{
			Config: config,
			Tel:    telemetry.SlogAPI{},
		})
		cities, err := scraper.ListCities(ctx, citiesState)
		if err != nil {
			serviceutil.Fatal("failed to list cities", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Code", "City"})
		for _, c := range cities {
			t.AppendRow(table.Row{c.Code, c.Name})
		}
		t.AppendFooter(table.Row{"", len(cities)})
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
