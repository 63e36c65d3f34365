package pricing

import (
	"time"

	"paperTrader/internal/domain"
)

// NextTradingDay returns the day after origin, rolled forward to Monday when it lands on a weekend.
// Exchange holidays are not modelled; the price tiers absorb them.
func NextTradingDay(origin time.Time) time.Time {
	next := domain.Day(origin).AddDate(0, 0, 1)
	switch next.Weekday() {
	case time.Saturday:
		next = next.AddDate(0, 0, 2)
	case time.Sunday:
		next = next.AddDate(0, 0, 1)
	}
	return next
}
