package output

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"caixa-imoveis/internal/scrapers/caixa"
	"caixa-imoveis/lib/textutil"
)

type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

var Formats = []Format{FormatCSV, FormatJSON, FormatSQLite}

func ParseFormat(value string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(value, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (expected one of %v)", value, Formats)
}

// Batch is the result of one city, written as a unit.
type Batch struct {
	RunID     string
	State     string
	City      string
	Timestamp time.Time
	// Parameters are echoed into the JSON envelope and the sqlite run row.
	Parameters map[string]string
	Records    []caixa.PropertyRecord
}

// Writer persists a batch and returns where it went (a file path or a table).
type Writer interface {
	Write(ctx context.Context, batch Batch) (string, error)
}

func slug(s string) string {
	s = strings.ToLower(textutil.NormalizeName(s))
	return strings.ReplaceAll(s, " ", "_")
}

// FileName returns imoveis_<uf>_<cidade>_<YYYYmmdd_HHMMSS>.<ext> under dir.
func FileName(dir string, batch Batch, ext string) string {
	name := fmt.Sprintf(
		"imoveis_%s_%s_%s.%s",
		slug(batch.State),
		slug(batch.City),
		batch.Timestamp.Format("20060102_150405"),
		ext,
	)
	return filepath.Join(dir, name)
}

type Summary struct {
	Total       int
	WithPrice   int
	WithAddress int
	WithArea    int
	ByType      map[caixa.PropertyType]int
	ByModality  map[caixa.Modality]int
}

func Summarize(records []caixa.PropertyRecord) Summary {
	summary := Summary{
		Total:      len(records),
		ByType:     map[caixa.PropertyType]int{},
		ByModality: map[caixa.Modality]int{},
	}
	for _, r := range records {
		if r.Price != "" {
			summary.WithPrice++
		}
		if r.Address != "" {
			summary.WithAddress++
		}
		if r.Area != "" {
			summary.WithArea++
		}
		summary.ByType[r.PropertyType]++
		summary.ByModality[r.Modality]++
	}
	return summary
}
