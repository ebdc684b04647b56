package commands

import (
	"context"
	"path/filepath"
	"testing"

	"caixa-imoveis/internal/output"
	"caixa-imoveis/lib/telemetry"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
)

func TestTruncate(t *testing.T) {
	require.Equal(t, "SAO PAULO", truncate("  SAO PAULO ", 48))
	require.Equal(t, "APARTAM...", truncate("APARTAMENTO EM SAO PAULO", 10))
	require.Equal(t, "SÃO JO...", truncate("SÃO JOSÉ DOS CAMPOS", 9))
}

func TestOpenWriter(t *testing.T) {
	scrapeOutDir = filepath.Join(t.TempDir(), "out")
	scrapeDB = filepath.Join(t.TempDir(), "imoveis.db")
	scrapeDBUrl = ""

	w, closeWriter, err := openWriter(context.Background(), output.FormatJSON)
	require.NoError(t, err)
	require.Equal(t, output.JSONWriter{Dir: scrapeOutDir}, w)
	closeWriter()

	w, closeWriter, err = openWriter(context.Background(), output.FormatCSV)
	require.NoError(t, err)
	require.Equal(t, output.CSVWriter{Dir: scrapeOutDir}, w)
	closeWriter()

	w, closeWriter, err = openWriter(context.Background(), output.FormatSQLite)
	require.NoError(t, err)
	require.IsType(t, output.SQLiteWriter{}, w)
	closeWriter()
}

func TestPerfStatsWarning(t *testing.T) {
	require.Contains(t, perfStatsWarning(false, telemetry.Telemetry{}), "needs a telemetry.json5")
	require.Contains(t, perfStatsWarning(true, telemetry.Telemetry{}), "no metrics endpoint")
	require.Empty(t, perfStatsWarning(true, telemetry.Telemetry{MeterProvider: metric.NewMeterProvider()}))
}
