package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entry holds the fill details of an opened trade. Immutable once the trade is OPEN.
type Entry struct {
	Date       time.Time
	Price      decimal.Decimal
	Shares     int64
	Value      decimal.Decimal // Shares * Price
	Commission decimal.Decimal
}

// Exit holds the fill details and realized result of a closed trade.
type Exit struct {
	Date            time.Time
	Price           decimal.Decimal
	Value           decimal.Decimal // Shares * Price
	Commission      decimal.Decimal
	RealizedPnL     decimal.Decimal
	RealizedPnLPct  decimal.Decimal
	ActualReturnPct decimal.Decimal // Raw price move, sign-adjusted for direction, no commission
	Reason          CloseReason
}

// Trade is one simulated position tied to a portfolio and its originating signal.
type Trade struct {
	ID                 string
	PortfolioID        string
	SignalID           string
	Ticker             string
	DocumentRef        string
	Direction          Direction
	Status             TradeStatus
	PredictedReturnPct decimal.Decimal
	Confidence         decimal.Decimal
	TargetDate         time.Time // Next trading day after the signal's origin date
	Entry              *Entry    // nil while PENDING or CANCELLED
	Exit               *Exit     // nil until CLOSED
	CancelReason       RejectionReason
	Metadata           SignalMetadata
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewTradeFromSignal creates a trade shell in the PENDING state with no entry fields.
func NewTradeFromSignal(sig Signal, targetDate, now time.Time) *Trade {
	return &Trade{
		ID:                 uuid.NewString(),
		PortfolioID:        sig.PortfolioID,
		SignalID:           sig.ID,
		Ticker:             sig.Ticker,
		DocumentRef:        sig.DocumentRef,
		Direction:          sig.Direction,
		Status:             StatusPending,
		PredictedReturnPct: sig.PredictedReturnPct,
		Confidence:         sig.Confidence,
		TargetDate:         targetDate,
		Metadata:           sig.Metadata,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// MarkValue is the market value of the position at price, shares*price for
// either direction. It is what closing the position at price would credit
// before the exit commission.
func (t *Trade) MarkValue(price decimal.Decimal) decimal.Decimal {
	if t.Entry == nil {
		return decimal.Zero
	}
	return price.Mul(decimal.NewFromInt(t.Entry.Shares))
}

// GrossPnL is the directional result at price before any commission.
// SHORT positions gain when the market value falls below the entry value.
func (t *Trade) GrossPnL(price decimal.Decimal) decimal.Decimal {
	if t.Entry == nil {
		return decimal.Zero
	}
	diff := t.MarkValue(price).Sub(t.Entry.Value)
	if t.Direction == Short {
		return diff.Neg()
	}
	return diff
}

// UnrealizedPnL is the gross result at price net of the entry commission already paid.
func (t *Trade) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	if t.Entry == nil {
		return decimal.Zero
	}
	return t.GrossPnL(price).Sub(t.Entry.Commission)
}

// HoldingPeriod returns how long the trade must stay open before it expires.
func (t *Trade) HoldingPeriod(defaultDays int) int {
	if t.Metadata.HorizonDays > 0 {
		return t.Metadata.HorizonDays
	}
	return defaultDays
}

// ExpiresAt is the first instant the trade is due for a hold-period close.
func (t *Trade) ExpiresAt(defaultDays int) time.Time {
	if t.Entry == nil {
		return time.Time{}
	}
	return t.Entry.Date.AddDate(0, 0, t.HoldingPeriod(defaultDays))
}
