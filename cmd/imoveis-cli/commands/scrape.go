package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"caixa-imoveis/internal/components/chrono"
	"caixa-imoveis/internal/components/telemetry"
	"caixa-imoveis/internal/output"
	"caixa-imoveis/internal/scrapers/caixa"
	configlibsql "caixa-imoveis/lib/configutil/libsql"
	"caixa-imoveis/lib/timezone"
	"caixa-imoveis/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const sampleCount = 3

var (
	scrapeState   string
	scrapeCities  []string
	scrapeFormat  string
	scrapeOutDir  string
	scrapeDB      string
	scrapeDBUrl   string
	scrapeWorkers int
)

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeState, "state", "e", "SP", "two letter state code")
	scrapeCmd.Flags().StringArrayVarP(&scrapeCities, "city", "c", []string{"SAO PAULO"}, "city to scrape, may be repeated")
	scrapeCmd.Flags().StringVarP(&scrapeFormat, "format", "f", "csv", "output format: csv, json or sqlite")
	scrapeCmd.Flags().StringVarP(&scrapeOutDir, "out", "o", ".", "directory csv and json files are written to")
	scrapeCmd.Flags().StringVar(&scrapeDB, "db", "imoveis.db", "sqlite file used by the sqlite format")
	scrapeCmd.Flags().StringVar(&scrapeDBUrl, "db-url", "", "remote libsql url used by the sqlite format instead of --db")
	scrapeCmd.Flags().IntVarP(&scrapeWorkers, "workers", "w", 2, "cities scraped concurrently")
	rootCmd.AddCommand(scrapeCmd)
}

type cityOutcome struct {
	city   string
	result caixa.Result
	dest   string
	err    error
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrapes every listing of one or more cities and writes them out.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		flush := setupTelemetry(ctx)
		defer flush()

		config, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		format, err := output.ParseFormat(scrapeFormat)
		if err != nil {
			serviceutil.Fatal("invalid format", err)
		}
		writer, closeWriter, err := openWriter(ctx, format)
		if err != nil {
			serviceutil.Fatal("failed to open output", err)
		}
		defer closeWriter()

		outcomes := runCities(ctx, config, writer)
		printSummary(outcomes)

		for _, o := range outcomes {
			if o.err != nil {
				closeWriter()
				flush()
				os.Exit(1)
			}
		}
	},
}

func openWriter(ctx context.Context, format output.Format) (output.Writer, func(), error) {
	switch format {
	case output.FormatSQLite:
		w, err := output.NewSQLiteWriter(ctx, configlibsql.Struct{
			File: scrapeDB,
			Url:  scrapeDBUrl,
		})
		if err != nil {
			return nil, nil, err
		}
		return w, func() { w.Close() }, nil
	}

	err := os.MkdirAll(scrapeOutDir, 0777)
	if err != nil {
		return nil, nil, err
	}
	if format == output.FormatJSON {
		return output.JSONWriter{Dir: scrapeOutDir}, func() {}, nil
	}
	return output.CSVWriter{Dir: scrapeOutDir}, func() {}, nil
}

// runCities runs one job per city on a bounded pool. A failing city is
// logged and does not cancel the others.
func runCities(ctx context.Context, config caixa.Config, writer output.Writer) []cityOutcome {
	gate := caixa.NewRateGate(config.RequestsPerSecond, chrono.StandardImpl{})
	scraper := caixa.NewScraper(caixa.Options{
		Config: config,
		Gate:   gate,
		Tel:    telemetry.SlogAPI{},
	})

	outcomes := make([]cityOutcome, len(scrapeCities))

	group := errgroup.Group{}
	group.SetLimit(max(scrapeWorkers, 1))
	for i, city := range scrapeCities {
		group.Go(func() error {
			outcome := scrapeCity(ctx, scraper, writer, city)
			if outcome.err != nil {
				slog.Error("city failed", "state", scrapeState, "city", city, "err", outcome.err)
			} else {
				slog.Info(
					"city done",
					"state", scrapeState,
					"city", city,
					"records", len(outcome.result.Records),
					"output", outcome.dest,
				)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	group.Wait()

	return outcomes
}

func scrapeCity(ctx context.Context, scraper *caixa.Scraper, writer output.Writer, city string) cityOutcome {
	result, err := scraper.Scrape(ctx, scrapeState, city)
	if err != nil {
		return cityOutcome{city: city, err: err}
	}
	dest, err := writer.Write(ctx, output.Batch{
		RunID:     result.RunID,
		State:     result.State,
		City:      result.City,
		Timestamp: timezone.Now(),
		Parameters: map[string]string{
			"city_code":     result.Navigation.CityCode,
			"total_pages":   fmt.Sprint(result.Navigation.TotalPages),
			"total_records": fmt.Sprint(result.Navigation.TotalRecords),
		},
		Records: result.Records,
	})
	if err != nil {
		return cityOutcome{city: city, result: result, err: fmt.Errorf("write output: %w", err)}
	}
	return cityOutcome{city: city, result: result, dest: dest}
}

func printSummary(outcomes []cityOutcome) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Extraction summary (%s)", scrapeState))
	t.AppendHeader(table.Row{"City", "Pages", "Records", "With price", "With address", "With area", "Output"})

	var samples []caixa.PropertyRecord
	total := 0
	for _, o := range outcomes {
		if o.err != nil {
			t.AppendRow(table.Row{o.city, "-", "-", "-", "-", "-", "error: " + o.err.Error()})
			continue
		}
		summary := output.Summarize(o.result.Records)
		total += summary.Total
		t.AppendRow(table.Row{
			o.city,
			o.result.Pages,
			summary.Total,
			summary.WithPrice,
			summary.WithAddress,
			summary.WithArea,
			o.dest,
		})
		for _, r := range o.result.Records {
			if len(samples) >= sampleCount {
				break
			}
			samples = append(samples, r)
		}
	}
	t.AppendFooter(table.Row{"Total", "", total})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(samples) == 0 {
		return
	}

	s := table.NewWriter()
	s.SetOutputMirror(os.Stdout)
	s.SetTitle("Samples")
	s.AppendHeader(table.Row{"Code", "Title", "Neighborhood", "Type", "Price", "Modality"})
	for _, r := range samples {
		s.AppendRow(table.Row{
			r.Code,
			truncate(r.Title, 48),
			r.Neighborhood,
			r.PropertyType,
			r.Price,
			r.Modality,
		})
	}
	s.SetStyle(table.StyleRounded)
	s.Render()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
