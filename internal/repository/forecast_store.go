package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itsgiddd/Horus/internal/domain/models"
	"github.com/itsgiddd/Horus/internal/domain/repository"
)

// ClickHouseForecastStore archives served forecasts in ClickHouse.
// Predicted candles are stored as a JSON column; the queryable fields
// live in their own columns.
type ClickHouseForecastStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseForecastStore creates a forecast archive over an open
// connection.
func NewClickHouseForecastStore(db *sql.DB, table string) repository.ForecastStore {
	if table == "" {
		table = "forecasts"
	}
	return &ClickHouseForecastStore{db: db, table: table}
}

func (s *ClickHouseForecastStore) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		created_at      DateTime,
		symbol          LowCardinality(String),
		timeframe       LowCardinality(String),
		source          LowCardinality(String),
		direction       LowCardinality(String),
		confidence      Float64,
		expected_change Float64,
		candles         String
	) ENGINE = MergeTree
	ORDER BY (symbol, created_at)`, s.table)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create forecast table: %w", err)
	}
	return nil
}

func (s *ClickHouseForecastStore) Store(ctx context.Context, rec models.ForecastRecord) error {
	candles, err := json.Marshal(rec.Candles)
	if err != nil {
		return fmt.Errorf("marshal forecast candles: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	q := fmt.Sprintf(`INSERT INTO %s
		(created_at, symbol, timeframe, source, direction, confidence, expected_change, candles)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	if _, err := s.db.ExecContext(ctx, q,
		createdAt, rec.Symbol, rec.Timeframe, rec.Source, rec.Direction,
		rec.Confidence, rec.ExpectedChange, string(candles),
	); err != nil {
		return fmt.Errorf("insert forecast: %w", err)
	}
	return nil
}

func (s *ClickHouseForecastStore) Recent(ctx context.Context, symbol string, n int) ([]models.ForecastRecord, error) {
	if n <= 0 {
		n = 20
	}

	q := fmt.Sprintf(`SELECT created_at, timeframe, source, direction, confidence, expected_change, candles
		FROM %s WHERE symbol = ?
		ORDER BY created_at DESC LIMIT ?`, s.table)

	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer rows.Close()

	var out []models.ForecastRecord
	for rows.Next() {
		var (
			rec     models.ForecastRecord
			candles string
		)
		if err := rows.Scan(&rec.CreatedAt, &rec.Timeframe, &rec.Source, &rec.Direction,
			&rec.Confidence, &rec.ExpectedChange, &candles); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		if err := json.Unmarshal([]byte(candles), &rec.Candles); err != nil {
			return nil, fmt.Errorf("unmarshal forecast candles: %w", err)
		}
		rec.Symbol = symbol
		out = append(out, rec)
	}
	return out, rows.Err()
}
