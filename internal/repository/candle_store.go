package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/itsgiddd/Horus/internal/domain/models"
	"github.com/itsgiddd/Horus/internal/domain/repository"
)

const candleInsertChunk = 2000

// ClickHouseCandleStore implements CandleStore on ClickHouse.
type ClickHouseCandleStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseCandleStore creates a candle store over an open connection.
func NewClickHouseCandleStore(db *sql.DB, table string) repository.CandleStore {
	if table == "" {
		table = "candles"
	}
	return &ClickHouseCandleStore{db: db, table: table}
}

func (s *ClickHouseCandleStore) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts        DateTime,
		symbol    LowCardinality(String),
		timeframe LowCardinality(String),
		open      Float64,
		high      Float64,
		low       Float64,
		close     Float64,
		volume    Float64
	) ENGINE = ReplacingMergeTree
	ORDER BY (symbol, timeframe, ts)`, s.table)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create candle table: %w", err)
	}
	return nil
}

func (s *ClickHouseCandleStore) StoreBatch(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	for start := 0; start < len(candles); start += candleInsertChunk {
		end := start + candleInsertChunk
		if end > len(candles) {
			end = len(candles)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, c := range candles[start:end] {
			if c.Timestamp.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, c.Timestamp, symbol, timeframe, c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		if len(values) == 0 {
			continue
		}

		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, timeframe, open, high, low, close, volume) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert candles: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseCandleStore) Query(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	q := fmt.Sprintf(`SELECT ts, open, high, low, close, volume FROM %s
		WHERE symbol = ? AND timeframe = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, q, symbol, timeframe, from, to)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows, symbol)
}

func (s *ClickHouseCandleStore) LatestN(ctx context.Context, symbol, timeframe string, n int) ([]models.Candle, error) {
	q := fmt.Sprintf(`SELECT ts, open, high, low, close, volume FROM (
		SELECT ts, open, high, low, close, volume FROM %s
		WHERE symbol = ? AND timeframe = ?
		ORDER BY ts DESC LIMIT ?
	) ORDER BY ts ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, q, symbol, timeframe, n)
	if err != nil {
		return nil, fmt.Errorf("query latest candles: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows, symbol)
}

func (s *ClickHouseCandleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseCandleStore) Close() error {
	// Connection pool lifetime is owned by pkg/clickhouse.
	return nil
}

func scanCandles(rows *sql.Rows, symbol string) ([]models.Candle, error) {
	var out []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Symbol = symbol
		out = append(out, c)
	}
	return out, rows.Err()
}
