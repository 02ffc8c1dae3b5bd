package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"agripulse-api/internal/models"
)

// SQLite persists records to a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database and runs migrations.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for concurrent reads while a refresh writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_records (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp            INTEGER NOT NULL,
			price                REAL NOT NULL,
			unit                 TEXT NOT NULL DEFAULT 'kg',
			trend                TEXT NOT NULL,
			price_change         REAL NOT NULL,
			analysis             TEXT NOT NULL DEFAULT '',
			recommendations      TEXT NOT NULL DEFAULT '[]',
			features             TEXT NOT NULL DEFAULT '[]',
			next_week_projection REAL NOT NULL DEFAULT 0,
			confidence           INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_records_ts ON price_records(timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Insert(ctx context.Context, rec *models.PriceRecord) (string, error) {
	recs, err := json.Marshal(rec.Recommendations)
	if err != nil {
		return "", fmt.Errorf("%w: encode recommendations: %v", ErrStorage, err)
	}
	feats, err := json.Marshal(rec.Features)
	if err != nil {
		return "", fmt.Errorf("%w: encode features: %v", ErrStorage, err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO price_records
		 (timestamp, price, unit, trend, price_change, analysis, recommendations, features, next_week_projection, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UnixMilli(), rec.Price, rec.Unit, string(rec.Trend), rec.PriceChange,
		rec.Analysis, string(recs), string(feats), rec.NextWeekProjection, rec.Confidence,
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert record: %v", ErrStorage, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("%w: last insert id: %v", ErrStorage, err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *SQLite) Latest(ctx context.Context) (*models.PriceRecord, error) {
	recs, err := s.Recent(ctx, 1)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (s *SQLite) Recent(ctx context.Context, limit int) ([]models.PriceRecord, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, price, unit, trend, price_change, analysis, recommendations, features, next_week_projection, confidence
		 FROM price_records ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query records: %v", ErrStorage, err)
	}
	defer rows.Close()

	var out []models.PriceRecord
	for rows.Next() {
		var rec models.PriceRecord
		var id, ts int64
		var trend, recsJSON, featsJSON string
		if err := rows.Scan(&id, &ts, &rec.Price, &rec.Unit, &trend, &rec.PriceChange,
			&rec.Analysis, &recsJSON, &featsJSON, &rec.NextWeekProjection, &rec.Confidence); err != nil {
			return nil, fmt.Errorf("%w: scan record: %v", ErrStorage, err)
		}
		rec.ID = strconv.FormatInt(id, 10)
		rec.Timestamp = time.UnixMilli(ts)
		rec.Trend = models.Trend(trend)
		if err := json.Unmarshal([]byte(recsJSON), &rec.Recommendations); err != nil {
			rec.Recommendations = nil
		}
		if err := json.Unmarshal([]byte(featsJSON), &rec.Features); err != nil {
			rec.Features = nil
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %v", ErrStorage, err)
	}
	return out, nil
}

func (s *SQLite) Close() error { return s.db.Close() }
