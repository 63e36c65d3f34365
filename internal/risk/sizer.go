package risk

import (
	"paperTrader/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Sizing is the bounded allocation computed for one entry.
type Sizing struct {
	KellyFraction decimal.Decimal // confidence * |predictedReturnPct| / 100
	Fraction      decimal.Decimal // KellyFraction capped by the portfolio's MaxPositionSize
	PositionValue decimal.Decimal // Nominal allocation, Fraction * TotalValue
	EntryPrice    decimal.Decimal
	Shares        int64           // floor(PositionValue / EntryPrice)
	EntryValue    decimal.Decimal // Shares * EntryPrice, never above PositionValue
}

// Sizer computes Kelly-style position sizes.
type Sizer struct{}

// NewSizer creates a new position sizer.
func NewSizer() *Sizer {
	return &Sizer{}
}

// Size allocates a fraction of the portfolio's total value and converts it to whole shares.
// Fractional shares are never produced; a non-positive entry price yields zero shares.
func (s *Sizer) Size(confidence, predictedReturnPct decimal.Decimal, p *domain.Portfolio, entryPrice decimal.Decimal) Sizing {
	kelly := confidence.Mul(predictedReturnPct.Abs()).Div(hundred)
	fraction := decimal.Min(kelly, p.MaxPositionSize)
	if fraction.IsNegative() {
		fraction = decimal.Zero
	}
	positionValue := fraction.Mul(p.TotalValue)

	sz := Sizing{
		KellyFraction: kelly,
		Fraction:      fraction,
		PositionValue: positionValue,
		EntryPrice:    entryPrice,
		EntryValue:    decimal.Zero,
	}
	if !entryPrice.IsPositive() {
		return sz
	}
	sz.Shares = positionValue.Div(entryPrice).Floor().IntPart()
	sz.EntryValue = entryPrice.Mul(decimal.NewFromInt(sz.Shares))
	return sz
}
