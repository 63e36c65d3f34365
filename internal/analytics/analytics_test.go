package analytics

import (
	"math"
	"testing"
	"time"

	"paperTrader/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func closedTrade(entry, exit time.Time, pnl, predicted, actual string) *domain.Trade {
	return &domain.Trade{
		Status:             domain.StatusClosed,
		PredictedReturnPct: d(predicted),
		Entry:              &domain.Entry{Date: entry},
		Exit:               &domain.Exit{Date: exit, RealizedPnL: d(pnl), ActualReturnPct: d(actual)},
	}
}

func TestAnalyzePerformance(t *testing.T) {
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	trades := []*domain.Trade{
		// Deliberately out of exit order.
		closedTrade(base.AddDate(0, 0, 2), base.AddDate(0, 0, 9), "-500", "2", "-1"),
		closedTrade(base, base.AddDate(0, 0, 7), "1000", "3", "4"),
		closedTrade(base.AddDate(0, 1, 0), base.AddDate(0, 1, 7), "0", "1.5", "0"),
		{Status: domain.StatusOpen, Entry: &domain.Entry{Date: base}},
	}

	m := AnalyzePerformance(trades, 10000)

	assert.Equal(t, 3, m.TotalTrades)
	assert.Equal(t, 1, m.WinningTrades)
	assert.Equal(t, 2, m.LosingTrades, "zero P&L counts as a loss")
	assert.InDelta(t, 1.0/3, m.WinRate, 1e-9)
	assert.InDelta(t, 500, m.TotalProfit, 1e-9)
	assert.InDelta(t, 10500, m.FinalBalance, 1e-9)
	assert.InDelta(t, 1000, m.AverageWin, 1e-9)
	assert.InDelta(t, -250, m.AverageLoss, 1e-9)
	assert.InDelta(t, 2.0, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 4.0, m.RiskRewardRatio, 1e-9)
	assert.InDelta(t, 500.0/11000, m.MaxDrawdown, 1e-9)
	assert.Equal(t, 2, m.MaxConsecutiveLosses)
	assert.Equal(t, 7*24*time.Hour, m.AverageHoldDuration)

	require.Len(t, m.EquityCurve, 3)
	assert.InDelta(t, 11000, m.EquityCurve[0].Value, 1e-9)

	monthly := m.GetMonthlyReturns()
	require.Len(t, monthly, 2)
	assert.InDelta(t, 500, monthly[0].Return, 1e-9)
}

func TestAnalyzePerformance_Empty(t *testing.T) {
	m := AnalyzePerformance(nil, 100000)
	assert.Equal(t, 0, m.TotalTrades)
	assert.Equal(t, 100000.0, m.FinalBalance)
}

func snap(day int, total string) *domain.PortfolioSnapshot {
	return &domain.PortfolioSnapshot{Date: time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC), TotalValue: d(total)}
}

func TestAnalyzeSnapshots(t *testing.T) {
	stats := AnalyzeSnapshots([]*domain.PortfolioSnapshot{
		snap(4, "100000"), snap(5, "101000"), snap(6, "99990"), snap(7, "100989.9"),
	})

	assert.Equal(t, 4, stats.Days)
	assert.InDelta(t, 1010.0/101000, stats.MaxDrawdown, 1e-9)
	// Daily returns are +1%, -1%, +1%.
	assert.InDelta(t, 0.01/3, stats.MeanDailyReturn, 1e-6)
	assert.Greater(t, stats.DailyVolatility, 0.0)
	assert.InDelta(t, stats.DailyVolatility*math.Sqrt(252), stats.AnnualVolatility, 1e-9)
	assert.InDelta(t, stats.MeanDailyReturn/stats.DailyVolatility*math.Sqrt(252), stats.SharpeRatio, 1e-9)
}

func TestAnalyzeSnapshots_TooShort(t *testing.T) {
	stats := AnalyzeSnapshots([]*domain.PortfolioSnapshot{snap(4, "100000")})
	assert.Zero(t, stats.SharpeRatio)
	assert.Zero(t, stats.DailyVolatility)
}

func TestCalibrateSignals(t *testing.T) {
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	cal := CalibrateSignals([]*domain.Trade{
		closedTrade(base, base, "88", "3", "4"),
		closedTrade(base, base, "-10", "-2", "-1"), // SHORT that moved against the prediction
		{Status: domain.StatusPending},
	})

	assert.Equal(t, 2, cal.Trades)
	assert.InDelta(t, 0.5, cal.DirectionalAccuracy, 1e-9)
	assert.InDelta(t, 2.5, cal.MeanPredictedPct, 1e-9)
	assert.InDelta(t, 1.5, cal.MeanActualPct, 1e-9)
	assert.InDelta(t, 2.0, cal.MeanAbsErrorPct, 1e-9)
	assert.InDelta(t, 1.0, cal.Correlation, 1e-9)
}
