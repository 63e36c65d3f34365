package analytics

import (
	"math"
	"sort"
	"time"

	"paperTrader/internal/domain"
)

// PerformanceMetrics holds trade-level performance metrics for a portfolio.
type PerformanceMetrics struct {
	// Basic Metrics
	TotalTrades        int     `json:"totalTrades"`
	WinningTrades      int     `json:"winningTrades"`
	LosingTrades       int     `json:"losingTrades"`
	WinRate            float64 `json:"winRate"` // 0-1
	TotalProfit        float64 `json:"totalProfit"`
	MaxDrawdown        float64 `json:"maxDrawdown"` // Fraction of peak realized balance
	ProfitFactor       float64 `json:"profitFactor"`
	AverageWin         float64 `json:"averageWin"`
	AverageLoss        float64 `json:"averageLoss"` // Negative or zero
	FinalBalance       float64 `json:"finalBalance"`
	ReturnOnInvestment float64 `json:"returnOnInvestment"`

	// Advanced Metrics
	MaxConsecutiveWins   int                `json:"maxConsecutiveWins"`
	MaxConsecutiveLosses int                `json:"maxConsecutiveLosses"`
	AverageHoldDuration  time.Duration      `json:"averageHoldDuration"`
	RecoveryFactor       float64            `json:"recoveryFactor"`
	Expectancy           float64            `json:"expectancy"`
	RiskRewardRatio      float64            `json:"riskRewardRatio"`
	MonthlyReturns       map[string]float64 `json:"monthlyReturns"`
	EquityCurve          []EquityPoint      `json:"equityCurve"`
}

// EquityPoint represents a point on the realized equity curve
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Value    float64   `json:"value"`
	Drawdown float64   `json:"drawdown"`
}

// AnalyzePerformance calculates metrics from closed trades. Trades without an exit are ignored.
// Zero P&L counts as a loss, matching the portfolio counters.
func AnalyzePerformance(trades []*domain.Trade, initialBalance float64) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		FinalBalance:   initialBalance,
		MonthlyReturns: make(map[string]float64),
		EquityCurve:    make([]EquityPoint, 0),
	}

	closed := make([]*domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Entry != nil && t.Exit != nil {
			closed = append(closed, t)
		}
	}
	if len(closed) == 0 {
		return metrics
	}

	// Realized equity moves in exit order.
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].Exit.Date.Before(closed[j].Exit.Date)
	})

	currentBalance := initialBalance
	peakBalance := initialBalance
	var consecutiveWins, consecutiveLosses int
	var grossProfit, grossLoss float64
	var totalDuration time.Duration

	for _, trade := range closed {
		pnl := trade.Exit.RealizedPnL.InexactFloat64()

		metrics.TotalTrades++
		if pnl > 0 {
			metrics.WinningTrades++
			consecutiveWins++
			consecutiveLosses = 0
			grossProfit += pnl
		} else {
			metrics.LosingTrades++
			consecutiveLosses++
			consecutiveWins = 0
			grossLoss += pnl
		}
		metrics.MaxConsecutiveWins = max(metrics.MaxConsecutiveWins, consecutiveWins)
		metrics.MaxConsecutiveLosses = max(metrics.MaxConsecutiveLosses, consecutiveLosses)

		currentBalance += pnl
		metrics.TotalProfit += pnl
		metrics.FinalBalance = currentBalance
		metrics.MonthlyReturns[trade.Exit.Date.Format("2006-01")] += pnl
		totalDuration += trade.Exit.Date.Sub(trade.Entry.Date)

		if currentBalance > peakBalance {
			peakBalance = currentBalance
		}
		drawdown := 0.0
		if peakBalance > 0 {
			drawdown = (peakBalance - currentBalance) / peakBalance
		}
		metrics.MaxDrawdown = math.Max(metrics.MaxDrawdown, drawdown)

		metrics.EquityCurve = append(metrics.EquityCurve, EquityPoint{
			Time:     trade.Exit.Date,
			Value:    currentBalance,
			Drawdown: drawdown,
		})
	}

	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = grossProfit / float64(metrics.WinningTrades)
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = grossLoss / float64(metrics.LosingTrades)
	}
	if grossLoss != 0 {
		metrics.ProfitFactor = grossProfit / -grossLoss
	}
	if metrics.AverageLoss != 0 {
		metrics.RiskRewardRatio = metrics.AverageWin / -metrics.AverageLoss
	}
	if initialBalance != 0 {
		metrics.ReturnOnInvestment = (metrics.FinalBalance - initialBalance) / initialBalance
	}
	if metrics.MaxDrawdown > 0 && initialBalance != 0 {
		metrics.RecoveryFactor = metrics.TotalProfit / (initialBalance * metrics.MaxDrawdown)
	}
	metrics.AverageHoldDuration = totalDuration / time.Duration(metrics.TotalTrades)
	metrics.Expectancy = (metrics.WinRate * metrics.AverageWin) + ((1 - metrics.WinRate) * metrics.AverageLoss)

	return metrics
}

// GetMonthlyReturns returns the monthly returns as a sorted slice
func (m *PerformanceMetrics) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, profit := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{
			Month:  date,
			Return: profit,
		})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}

// MonthlyReturn represents a monthly realized P&L value
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}
