package repository

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradescan/perpsignal/internal/models"
)

func testSignal() *models.Signal {
	return &models.Signal{
		ID:         "a4f7d6e2-1c3b-4a5d-9e8f-0b1c2d3e4f5a",
		Symbol:     "BTC/USDT:USDT",
		Side:       models.SideLong,
		SetupType:  models.SetupLiquiditySweep,
		Confidence: models.ConfidenceHigh,
		EntryZone:  models.EntryZone{Low: 100.2, High: 100.5},
		Stop:       99.2,
		Target1:    103.5,
		Target2:    106.0,
		RRRatio:    2.5,
		Confluence: []string{"volume_spike", "rsi_above_50"},
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS signals").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	repo := NewSignalRepository(mock)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSignal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sig := testSignal()
	mock.ExpectExec("INSERT INTO signals").
		WithArgs(sig.ID, sig.Symbol, "long", "Liquidity Sweep", "HIGH",
			100.2, 100.5, 99.2, 103.5, 106.0, 2.5,
			[]byte(`["volume_spike","rsi_above_50"]`), sig.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewSignalRepository(mock)
	require.NoError(t, repo.SaveSignal(context.Background(), sig))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSignalPropagatesError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO signals").
		WillReturnError(assert.AnError)

	repo := NewSignalRepository(mock)
	err = repo.SaveSignal(context.Background(), testSignal())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert signal")
}

func TestRecentSignals(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sig := testSignal()
	rows := pgxmock.NewRows([]string{
		"id", "symbol", "side", "setup_type", "confidence",
		"entry_low", "entry_high", "stop_price", "target1", "target2", "rr_ratio",
		"confluence", "created_at",
	}).AddRow(sig.ID, sig.Symbol, "long", "Liquidity Sweep", "HIGH",
		100.2, 100.5, 99.2, 103.5, 106.0, 2.5,
		[]byte(`["volume_spike","rsi_above_50"]`), sig.CreatedAt)

	mock.ExpectQuery("FROM signals").
		WithArgs(20).
		WillReturnRows(rows)

	repo := NewSignalRepository(mock)
	got, err := repo.RecentSignals(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.SideLong, got[0].Side)
	assert.Equal(t, models.SetupLiquiditySweep, got[0].SetupType)
	assert.Equal(t, models.ConfidenceHigh, got[0].Confidence)
	assert.Equal(t, []string{"volume_spike", "rsi_above_50"}, got[0].Confluence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentSignalsEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM signals").
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "symbol", "side", "setup_type", "confidence",
			"entry_low", "entry_high", "stop_price", "target1", "target2", "rr_ratio",
			"confluence", "created_at",
		}))

	repo := NewSignalRepository(mock)
	got, err := repo.RecentSignals(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"side", "setup_type", "count"}).
		AddRow("long", "Liquidity Sweep", 3).
		AddRow("long", "Trend Continuation", 2).
		AddRow("short", "Breakout Retest", 1)

	mock.ExpectQuery("SELECT side, setup_type, COUNT").
		WillReturnRows(rows)

	repo := NewSignalRepository(mock)
	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 5, stats.BySide["long"])
	assert.Equal(t, 1, stats.BySide["short"])
	assert.Equal(t, 3, stats.BySetup["Liquidity Sweep"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
