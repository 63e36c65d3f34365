package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is the end-of-day state of a portfolio.
// There is exactly one per (PortfolioID, Date); later writes on the same day overwrite it.
type PortfolioSnapshot struct {
	PortfolioID       string
	Date              time.Time // Truncated to the calendar day, UTC
	Cash              decimal.Decimal
	OpenValue         decimal.Decimal
	TotalValue        decimal.Decimal
	CumulativeReturn  decimal.Decimal // Percentage vs starting capital
	CumulativePnL     decimal.Decimal // Sum of realized P&L of closed trades
	OpenPositionCount int
	UpdatedAt         time.Time
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
