package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"caixa-imoveis/internal/scrapers/caixa"
)

type envelope struct {
	Timestamp        string                 `json:"timestamp"`
	TotalProperties  int                    `json:"total_properties"`
	SearchParameters map[string]string      `json:"search_parameters"`
	Properties       []caixa.PropertyRecord `json:"properties"`
}

type JSONWriter struct {
	Dir string
}

func searchParameters(batch Batch) map[string]string {
	params := map[string]string{
		"state":  batch.State,
		"city":   batch.City,
		"run_id": batch.RunID,
	}
	for k, v := range batch.Parameters {
		params[k] = v
	}
	return params
}

func (w JSONWriter) Write(ctx context.Context, batch Batch) (string, error) {
	path := FileName(w.Dir, batch, "json")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create json: %w", err)
	}
	defer f.Close()

	properties := batch.Records
	if properties == nil {
		properties = []caixa.PropertyRecord{}
	}

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	err = encoder.Encode(envelope{
		Timestamp:        batch.Timestamp.Format(time.RFC3339),
		TotalProperties:  len(batch.Records),
		SearchParameters: searchParameters(batch),
		Properties:       properties,
	})
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return path, f.Close()
}
