package analytics

import (
	"math"

	"paperTrader/internal/domain"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear annualizes daily statistics.
const TradingDaysPerYear = 252

// EquityStats summarizes the daily snapshot series of a portfolio.
type EquityStats struct {
	Days             int     `json:"days"`
	MeanDailyReturn  float64 `json:"meanDailyReturn"`
	DailyVolatility  float64 `json:"dailyVolatility"`
	AnnualVolatility float64 `json:"annualVolatility"`
	SharpeRatio      float64 `json:"sharpeRatio"` // Annualized, zero risk-free rate
	MaxDrawdown      float64 `json:"maxDrawdown"` // Fraction of peak total value
}

// AnalyzeSnapshots computes return statistics over snapshots ordered oldest first.
// Fewer than two snapshots, or a flat series, leave the ratios at zero.
func AnalyzeSnapshots(snaps []*domain.PortfolioSnapshot) EquityStats {
	stats := EquityStats{Days: len(snaps)}
	if len(snaps) == 0 {
		return stats
	}

	peak := 0.0
	returns := make([]float64, 0, len(snaps))
	for i, s := range snaps {
		v := s.TotalValue.InexactFloat64()
		if v > peak {
			peak = v
		}
		if peak > 0 {
			stats.MaxDrawdown = math.Max(stats.MaxDrawdown, (peak-v)/peak)
		}
		if i == 0 {
			continue
		}
		prev := snaps[i-1].TotalValue.InexactFloat64()
		if prev > 0 {
			returns = append(returns, v/prev-1)
		}
	}

	if len(returns) < 2 {
		if len(returns) == 1 {
			stats.MeanDailyReturn = returns[0]
		}
		return stats
	}

	mean, std := stat.MeanStdDev(returns, nil)
	stats.MeanDailyReturn = mean
	stats.DailyVolatility = std
	stats.AnnualVolatility = std * math.Sqrt(TradingDaysPerYear)
	if std > 0 {
		stats.SharpeRatio = mean / std * math.Sqrt(TradingDaysPerYear)
	}
	return stats
}

// SignalCalibration compares predicted against realized returns of closed trades.
type SignalCalibration struct {
	Trades              int     `json:"trades"`
	DirectionalAccuracy float64 `json:"directionalAccuracy"` // Share of trades whose actual return had the predicted sign
	MeanPredictedPct    float64 `json:"meanPredictedPct"`
	MeanActualPct       float64 `json:"meanActualPct"`
	MeanAbsErrorPct     float64 `json:"meanAbsErrorPct"`
	Correlation         float64 `json:"correlation"`
}

// CalibrateSignals measures how well predicted returns matched the realized price moves.
// Predicted magnitudes are compared against direction-adjusted actual returns.
func CalibrateSignals(trades []*domain.Trade) SignalCalibration {
	var predicted, actual, absErr []float64
	hits := 0
	for _, t := range trades {
		if t.Exit == nil {
			continue
		}
		p := math.Abs(t.PredictedReturnPct.InexactFloat64())
		a := t.Exit.ActualReturnPct.InexactFloat64()
		predicted = append(predicted, p)
		actual = append(actual, a)
		absErr = append(absErr, math.Abs(p-a))
		if a > 0 {
			hits++
		}
	}

	cal := SignalCalibration{Trades: len(predicted)}
	if cal.Trades == 0 {
		return cal
	}
	cal.DirectionalAccuracy = float64(hits) / float64(cal.Trades)
	cal.MeanPredictedPct = stat.Mean(predicted, nil)
	cal.MeanActualPct = stat.Mean(actual, nil)
	cal.MeanAbsErrorPct = stat.Mean(absErr, nil)
	if cal.Trades > 1 {
		if c := stat.Correlation(predicted, actual, nil); !math.IsNaN(c) {
			cal.Correlation = c
		}
	}
	return cal
}
