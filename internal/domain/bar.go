package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents a single daily candlestick returned by a price provider.
type Bar struct {
	Ticker string
	Date   time.Time // Trading day, UTC midnight
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume float64
}

// Price returns the open or close depending on mode.
func (b Bar) Price(mode PriceMode) decimal.Decimal {
	if mode == AtOpen {
		return b.Open
	}
	return b.Close
}
