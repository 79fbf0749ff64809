package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tradescan/perpsignal/internal/models"
)

// DB is the subset of the pgx pool the repository needs; satisfied by
// pgxpool.Pool and by pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SignalRepository persists emitted signals for audit and the read API.
type SignalRepository struct {
	db DB
}

func NewSignalRepository(db DB) *SignalRepository {
	return &SignalRepository{db: db}
}

const createSignalsTable = `
CREATE TABLE IF NOT EXISTS signals (
	id UUID PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	setup_type TEXT NOT NULL,
	confidence TEXT NOT NULL,
	entry_low DOUBLE PRECISION NOT NULL,
	entry_high DOUBLE PRECISION NOT NULL,
	stop_price DOUBLE PRECISION NOT NULL,
	target1 DOUBLE PRECISION NOT NULL,
	target2 DOUBLE PRECISION NOT NULL,
	rr_ratio DOUBLE PRECISION NOT NULL,
	confluence JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL
)`

// EnsureSchema creates the signals table when missing.
func (r *SignalRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createSignalsTable); err != nil {
		return fmt.Errorf("failed to create signals table: %w", err)
	}
	return nil
}

// SaveSignal inserts one emitted signal.
func (r *SignalRepository) SaveSignal(ctx context.Context, sig *models.Signal) error {
	confluence, err := json.Marshal(sig.Confluence)
	if err != nil {
		return fmt.Errorf("failed to encode confluence factors: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO signals (id, symbol, side, setup_type, confidence,
			entry_low, entry_high, stop_price, target1, target2, rr_ratio,
			confluence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		sig.ID, sig.Symbol, string(sig.Side), string(sig.SetupType), string(sig.Confidence),
		sig.EntryZone.Low, sig.EntryZone.High, sig.Stop, sig.Target1, sig.Target2,
		sig.RRRatio, confluence, sig.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// RecentSignals returns the newest signals up to limit.
func (r *SignalRepository) RecentSignals(ctx context.Context, limit int) ([]models.Signal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, symbol, side, setup_type, confidence,
			entry_low, entry_high, stop_price, target1, target2, rr_ratio,
			confluence, created_at
		FROM signals
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		var sig models.Signal
		var side, setup, confidence string
		var confluence []byte
		var createdAt time.Time
		if err := rows.Scan(&sig.ID, &sig.Symbol, &side, &setup, &confidence,
			&sig.EntryZone.Low, &sig.EntryZone.High, &sig.Stop, &sig.Target1,
			&sig.Target2, &sig.RRRatio, &confluence, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}
		sig.Side = models.Side(side)
		sig.SetupType = models.SetupType(setup)
		sig.Confidence = models.Confidence(confidence)
		sig.CreatedAt = createdAt
		if len(confluence) > 0 {
			if err := json.Unmarshal(confluence, &sig.Confluence); err != nil {
				return nil, fmt.Errorf("failed to decode confluence factors: %w", err)
			}
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// Stats aggregates emitted signal counts by side and setup type.
func (r *SignalRepository) Stats(ctx context.Context) (*models.SignalStats, error) {
	stats := &models.SignalStats{
		BySide:  make(map[string]int),
		BySetup: make(map[string]int),
	}

	rows, err := r.db.Query(ctx, `
		SELECT side, setup_type, COUNT(*)
		FROM signals
		GROUP BY side, setup_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query signal stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var side, setup string
		var count int
		if err := rows.Scan(&side, &setup, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats.BySide[side] += count
		stats.BySetup[setup] += count
		stats.Total += count
	}
	return stats, rows.Err()
}
