package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// setupTestDB creates a migrated database in a temporary directory.
func setupTestDB(t *testing.T, driver string) *Repository {
	t.Helper()

	repo, err := NewRepository(Config{
		Driver: driver,
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

var testNow = time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

func seedPortfolio(t *testing.T, repo *Repository) *domain.Portfolio {
	t.Helper()
	p := domain.NewPortfolio("model-v2", testNow)
	require.NoError(t, repo.CreatePortfolio(context.Background(), p))
	return p
}

func pendingTrade(p *domain.Portfolio, ticker string) *domain.Trade {
	sig := domain.Signal{
		ID:                 "sig-" + ticker,
		PortfolioID:        p.ID,
		Ticker:             ticker,
		DocumentRef:        "0000320193-24-000012",
		PredictedReturnPct: d("3.0"),
		Confidence:         d("0.75"),
		Direction:          domain.Long,
		Metadata:           domain.SignalMetadata{Version: 2, ModelVersion: "v2", Source: "8-K", HorizonDays: 10},
	}
	return domain.NewTradeFromSignal(sig, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), testNow)
}

func TestNewRepository_Drivers(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		wantErr bool
	}{
		{name: "mattn cgo driver", driver: DriverMattn},
		{name: "modernc pure go driver", driver: DriverModernc},
		{name: "unknown driver", driver: "postgres", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, err := NewRepository(Config{
				Driver: tt.driver,
				DBPath: filepath.Join(t.TempDir(), "drivers.db"),
				Logger: &mockLogger{},
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer repo.Close()

			p := seedPortfolio(t, repo)
			got, err := repo.FindPortfolioByID(context.Background(), p.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, p.Name, got.Name)
		})
	}
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_PortfolioRoundTrip(t *testing.T) {
	repo := setupTestDB(t, DriverMattn)
	ctx := context.Background()

	p := seedPortfolio(t, repo)
	got, err := repo.FindPortfolioByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, d("100000").Equal(got.CurrentCash))
	assert.True(t, d("0.10").Equal(got.MaxPositionSize))
	assert.True(t, got.IsActive)
	assert.Equal(t, testNow, got.CreatedAt)

	got.Debit(d("2251"))
	got.RecordResult(d("88"))
	got.Deactivate(testNow.Add(time.Hour))
	require.NoError(t, repo.UpdatePortfolio(ctx, got))

	again, err := repo.FindPortfolioByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, d("97749").Equal(again.CurrentCash), "got %s", again.CurrentCash)
	assert.Equal(t, 1, again.WinningTrades)
	assert.False(t, again.IsActive)

	all, err := repo.FindPortfolios(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	active, err := repo.FindPortfolios(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	missing, err := repo.FindPortfolioByID(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_UpdateMissingPortfolio(t *testing.T) {
	repo := setupTestDB(t, DriverMattn)
	err := repo.UpdatePortfolio(context.Background(), domain.NewPortfolio("ghost", testNow))
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepository_TradeLifecycle(t *testing.T) {
	for _, driver := range []string{DriverMattn, DriverModernc} {
		t.Run(driver, func(t *testing.T) {
			repo := setupTestDB(t, driver)
			ctx := context.Background()
			p := seedPortfolio(t, repo)

			tr := pendingTrade(p, "ACME")
			require.NoError(t, repo.CreateTrade(ctx, tr))

			got, err := repo.FindTradeByID(ctx, tr.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, domain.StatusPending, got.Status)
			assert.Nil(t, got.Entry)
			assert.Nil(t, got.Exit)
			assert.Equal(t, tr.Metadata, got.Metadata)
			assert.True(t, d("0.75").Equal(got.Confidence))

			// Promote through the ledger.
			got.Status = domain.StatusOpen
			got.Entry = &domain.Entry{Date: got.TargetDate, Price: d("50"), Shares: 45, Value: d("2250"), Commission: d("1")}
			p.Debit(d("2251"))
			require.NoError(t, repo.RecordEntry(ctx, p, got, false))

			open, err := repo.FindByStatus(ctx, p.ID, domain.StatusOpen)
			require.NoError(t, err)
			require.Len(t, open, 1)
			require.NotNil(t, open[0].Entry)
			assert.Equal(t, int64(45), open[0].Entry.Shares)
			assert.True(t, d("2250").Equal(open[0].Entry.Value))

			// Close through the ledger.
			closed := open[0]
			closed.Status = domain.StatusClosed
			closed.Exit = &domain.Exit{
				Date: testNow.AddDate(0, 0, 7), Price: d("52"), Value: d("2340"), Commission: d("1"),
				RealizedPnL: d("88"), RealizedPnLPct: d("3.9111"), ActualReturnPct: d("4"),
				Reason: domain.CloseReasonHoldPeriodComplete,
			}
			p.Credit(d("2339"))
			require.NoError(t, repo.RecordExit(ctx, p, closed))

			recent, err := repo.FindRecentClosed(ctx, p.ID, 10)
			require.NoError(t, err)
			require.Len(t, recent, 1)
			assert.Equal(t, domain.CloseReasonHoldPeriodComplete, recent[0].Exit.Reason)
			assert.True(t, d("3.9111").Equal(recent[0].Exit.RealizedPnLPct))

			sum, err := repo.SumRealizedPnL(ctx, p.ID)
			require.NoError(t, err)
			assert.True(t, d("88").Equal(sum))

			stored, err := repo.FindPortfolioByID(ctx, p.ID)
			require.NoError(t, err)
			assert.True(t, d("100088").Equal(stored.CurrentCash), "got %s", stored.CurrentCash)

			active, err := repo.FindActiveByTicker(ctx, p.ID, "ACME")
			require.NoError(t, err)
			assert.Nil(t, active, "closed trades free the ticker slot")
		})
	}
}

func TestRepository_ActiveTickerUniqueness(t *testing.T) {
	repo := setupTestDB(t, DriverMattn)
	ctx := context.Background()
	p := seedPortfolio(t, repo)

	first := pendingTrade(p, "ACME")
	require.NoError(t, repo.CreateTrade(ctx, first))

	err := repo.CreateTrade(ctx, pendingTrade(p, "ACME"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)
	assert.True(t, ports.IsPersistenceFailure(err))

	// Cancelled trades do not hold the slot.
	first.Status = domain.StatusCancelled
	first.CancelReason = domain.ReasonPriceUnavailable
	require.NoError(t, repo.UpdateTrade(ctx, first))
	require.NoError(t, repo.CreateTrade(ctx, pendingTrade(p, "ACME")))

	found, err := repo.FindActiveByTicker(ctx, p.ID, "ACME")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.NotEqual(t, first.ID, found.ID)

	cancelled, err := repo.FindByStatus(ctx, p.ID, domain.StatusCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, domain.ReasonPriceUnavailable, cancelled[0].CancelReason)
}

func TestRepository_RecordEntryRollsBack(t *testing.T) {
	repo := setupTestDB(t, DriverMattn)
	ctx := context.Background()
	p := seedPortfolio(t, repo)
	require.NoError(t, repo.CreateTrade(ctx, pendingTrade(p, "ACME")))

	dup := pendingTrade(p, "ACME")
	dup.Status = domain.StatusOpen
	dup.Entry = &domain.Entry{Date: testNow, Price: d("50"), Shares: 1, Value: d("50"), Commission: d("1")}
	p.Debit(d("51"))

	err := repo.RecordEntry(ctx, p, dup, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrDuplicateEntry))

	stored, err := repo.FindPortfolioByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, d("100000").Equal(stored.CurrentCash), "cash untouched when the trade write fails")
}

func TestRepository_SnapshotUpsert(t *testing.T) {
	repo := setupTestDB(t, DriverMattn)
	ctx := context.Background()
	p := seedPortfolio(t, repo)

	snap := &domain.PortfolioSnapshot{
		PortfolioID: p.ID, Date: testNow, Cash: d("97749"), OpenValue: d("2250"),
		TotalValue: d("99999"), CumulativeReturn: d("-0.001"), CumulativePnL: decimal.Zero,
		OpenPositionCount: 1, UpdatedAt: testNow,
	}
	require.NoError(t, repo.UpsertSnapshot(ctx, snap))

	later := *snap
	later.Date = testNow.Add(3 * time.Hour)
	later.OpenValue = d("2340")
	later.TotalValue = d("100089")
	require.NoError(t, repo.UpsertSnapshot(ctx, &later))

	next := *snap
	next.Date = testNow.AddDate(0, 0, 1)
	require.NoError(t, repo.UpsertSnapshot(ctx, &next))

	all, err := repo.FindSnapshots(ctx, p.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2, "one row per day")
	assert.Equal(t, domain.Day(testNow), all[0].Date)
	assert.True(t, d("100089").Equal(all[0].TotalValue))

	ranged, err := repo.FindSnapshots(ctx, p.ID, testNow.AddDate(0, 0, 1), time.Time{})
	require.NoError(t, err)
	assert.Len(t, ranged, 1)
}
