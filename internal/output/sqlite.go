package output

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	configlibsql "caixa-imoveis/lib/configutil/libsql"
)

//go:embed schema.sql
var Schema string

// SQLiteWriter appends every batch to a database, one scrape_run row per
// batch and one property row per record.
type SQLiteWriter struct {
	db *sql.DB
}

func NewSQLiteWriter(ctx context.Context, config configlibsql.Struct) (SQLiteWriter, error) {
	db, err := config.OpenDB()
	if err != nil {
		return SQLiteWriter{}, fmt.Errorf("open output db: %w", err)
	}
	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err = db.ExecContext(ctx, stmt)
		if err != nil {
			db.Close()
			return SQLiteWriter{}, fmt.Errorf("apply schema: %w", err)
		}
	}
	return SQLiteWriter{db: db}, nil
}

func (w SQLiteWriter) DB() *sql.DB {
	return w.db
}

func (w SQLiteWriter) Close() error {
	return w.db.Close()
}

func (w SQLiteWriter) Write(ctx context.Context, batch Batch) (string, error) {
	params, err := json.Marshal(searchParameters(batch))
	if err != nil {
		return "", err
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		"insert into scrape_run(id, state, city, scraped_at, parameters, total) values (?, ?, ?, ?, ?, ?)",
		batch.RunID, batch.State, batch.City, batch.Timestamp.Unix(), string(params), len(batch.Records),
	)
	if err != nil {
		return "", fmt.Errorf("insert run %s: %w", batch.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `insert into property(
		run_id, position, code, item_number, title, address, neighborhood,
		property_type, area, bedrooms, price, modality
	) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i, r := range batch.Records {
		args := []any{batch.RunID, i}
		for _, v := range r.Values() {
			args = append(args, v)
		}
		_, err = stmt.ExecContext(ctx, args...)
		if err != nil {
			return "", fmt.Errorf("insert property %s: %w", r.Code, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return fmt.Sprintf("scrape_run %s", batch.RunID), nil
}
