package domain

import (
	"fmt"
	"strings"
)

// Direction represents the side a signal bets on (LONG or SHORT).
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// ParseDirection normalizes user input such as "long" or "Short".
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case Long:
		return Long, nil
	case Short:
		return Short, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// TradeStatus represents the lifecycle state of a simulated trade.
type TradeStatus string

const (
	StatusPending   TradeStatus = "PENDING"   // Admitted, no entry price resolved yet
	StatusOpen      TradeStatus = "OPEN"      // Entry filled, cash debited
	StatusClosed    TradeStatus = "CLOSED"    // Exit filled, cash credited
	StatusCancelled TradeStatus = "CANCELLED" // Could not be filled at promotion time
)

// IsActive reports whether the status occupies the single-position-per-ticker slot.
func (s TradeStatus) IsActive() bool {
	return s == StatusPending || s == StatusOpen
}

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonHoldPeriodComplete CloseReason = "HOLD_PERIOD_COMPLETE"
	CloseReasonManual             CloseReason = "MANUAL"
	CloseReasonStopLoss           CloseReason = "SL"
	CloseReasonTakeProfit         CloseReason = "TP"
	CloseReasonUnknown            CloseReason = "UNKNOWN"
)

// Valid reports whether r is a reason a caller may close a position with.
// HOLD_PERIOD_COMPLETE is reserved for expiry and UNKNOWN for legacy rows.
func (r CloseReason) Valid() bool {
	switch r {
	case CloseReasonManual, CloseReasonStopLoss, CloseReasonTakeProfit:
		return true
	}
	return false
}

// ParseCloseReason normalizes user input such as "tp". Empty input means MANUAL.
func ParseCloseReason(s string) (CloseReason, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return CloseReasonManual, nil
	}
	if r := CloseReason(s); r.Valid() {
		return r, nil
	}
	return "", fmt.Errorf("unknown close reason %q", s)
}

// PriceMode selects which side of a daily bar a price lookup wants.
type PriceMode int

const (
	AtOpen  PriceMode = iota // Entries
	AtClose                  // Exits and mark-to-market
)

// Latest is an alias of AtClose used when valuing positions "now".
const Latest = AtClose

func (m PriceMode) String() string {
	if m == AtOpen {
		return "AT_OPEN"
	}
	return "AT_CLOSE"
}
