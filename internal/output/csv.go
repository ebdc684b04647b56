package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"caixa-imoveis/internal/scrapers/caixa"
)

type CSVWriter struct {
	Dir string
}

func (w CSVWriter) Write(ctx context.Context, batch Batch) (string, error) {
	path := FileName(w.Dir, batch, "csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	out := csv.NewWriter(f)
	err = out.Write(caixa.RecordColumns)
	if err != nil {
		return "", err
	}
	for _, r := range batch.Records {
		err = out.Write(r.Values())
		if err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return path, f.Close()
}
