package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"caixa-imoveis/internal/scrapers/caixa"
	"caixa-imoveis/lib/configutil"
	"caixa-imoveis/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	perfStats  bool
	dumpDir    string
)

var rootCmd = &cobra.Command{
	Use:   "imoveis-cli",
	Short: "imoveis-cli scrapes property listings from the CAIXA sales portal.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "scraper.json5", "scraper config file, defaults are used when it does not exist")
	rootCmd.PersistentFlags().StringVar(&dumpDir, "dump-dir", "", "write every raw http exchange under this directory")
	rootCmd.PersistentFlags().BoolVar(&perfStats, "perf-stats", false, "record process statistics while running")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readConfig() (caixa.Config, error) {
	config, err := configutil.ReadConfigWithDefaults(configPath, caixa.DefaultConfig())
	if err != nil {
		return caixa.Config{}, err
	}
	if dumpDir != "" {
		config.DumpDir = dumpDir
	}
	return config, nil
}

// perfStatsWarning explains why --perf-stats cannot record anything, it is
// empty when the gauges will be exported.
func perfStatsWarning(configFound bool, tel telemetry.Telemetry) string {
	switch {
	case !configFound:
		return "--perf-stats needs a telemetry.json5 with a metrics endpoint, no statistics will be recorded"
	case tel.MeterProvider == nil:
		return "--perf-stats is set but telemetry.json5 has no metrics endpoint, no statistics will be recorded"
	default:
		return ""
	}
}

// setupTelemetry installs the otel exporters when a telemetry.json5 is found
// above the working directory, the returned func flushes them.
func setupTelemetry(ctx context.Context) func() {
	tel, err := telemetry.SetupFromEnv(ctx, "imoveis-cli")
	configFound := !errors.Is(err, os.ErrNotExist)
	if err != nil && configFound {
		slog.Warn("failed to setup telemetry", "err", err)
		return func() {}
	}
	if !configFound {
		slog.Debug("no telemetry config found, otel is disabled")
	}
	if perfStats {
		if warning := perfStatsWarning(configFound, tel); warning != "" {
			slog.Warn(warning)
		} else {
			telemetry.InstrumentPerfStats(ctx, 5*time.Second)
		}
	}
	if !configFound {
		return func() {}
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := tel.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	}
}
