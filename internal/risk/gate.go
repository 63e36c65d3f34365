package risk

import (
	"context"
	"fmt"
	"strings"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"

	"github.com/shopspring/decimal"
)

// DefaultMinReturnThreshold is the minimum |predicted return| in percentage points.
var DefaultMinReturnThreshold = decimal.NewFromInt(1)

// GateConfig holds configuration for the admission gate.
type GateConfig struct {
	MinReturnThreshold decimal.Decimal            // Percentage points
	ModelThresholds    map[string]decimal.Decimal // Per model version override of MinReturnThreshold
}

// Decision is the outcome of an admission check.
type Decision struct {
	Accepted bool
	Reason   domain.RejectionReason
	Detail   string
}

func accept() Decision {
	return Decision{Accepted: true}
}

func reject(reason domain.RejectionReason, format string, args ...interface{}) Decision {
	return Decision{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Gate decides whether a signal may become a trade.
type Gate struct {
	config GateConfig
	trades ports.TradeRepository
}

// NewGate creates an admission gate backed by the trade store for the duplicate check.
func NewGate(cfg GateConfig, trades ports.TradeRepository) (*Gate, error) {
	if trades == nil {
		return nil, fmt.Errorf("trade repository is required for admission gate")
	}
	if cfg.MinReturnThreshold.IsNegative() {
		return nil, fmt.Errorf("minimum return threshold cannot be negative")
	}
	return &Gate{config: cfg, trades: trades}, nil
}

// ThresholdFor returns the minimum |predicted return| for a model version.
func (g *Gate) ThresholdFor(modelVersion string) decimal.Decimal {
	if t, ok := g.config.ModelThresholds[strings.TrimSpace(modelVersion)]; ok {
		return t
	}
	return g.config.MinReturnThreshold
}

// ValidateSignal checks that a signal is well-formed and normalizes its metadata in place.
// Malformed input is an error, not a policy rejection.
func (g *Gate) ValidateSignal(sig *domain.Signal) error {
	sig.Ticker = strings.ToUpper(strings.TrimSpace(sig.Ticker))
	var problems []string
	if sig.PortfolioID == "" {
		problems = append(problems, "portfolioId is required")
	}
	if sig.Ticker == "" {
		problems = append(problems, "ticker is required")
	}
	if !sig.Direction.Valid() {
		problems = append(problems, fmt.Sprintf("direction must be LONG or SHORT, got %q", sig.Direction))
	}
	if sig.Confidence.IsNegative() || sig.Confidence.GreaterThan(decimal.NewFromInt(1)) {
		problems = append(problems, "confidence must be between 0 and 1")
	}
	if sig.OriginDate.IsZero() {
		problems = append(problems, "originDate is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ports.ErrInvalidRequest, strings.Join(problems, "; "))
	}
	sig.Metadata, _ = NormalizeMetadata(sig.Metadata)
	return nil
}

// Admit applies the admission rules in order; the first failing rule wins.
// Only a store failure during the duplicate check is returned as an error.
func (g *Gate) Admit(ctx context.Context, sig domain.Signal, p *domain.Portfolio) (Decision, error) {
	if !p.IsActive {
		return reject(domain.ReasonPortfolioInactive, "portfolio %s is inactive", p.ID), nil
	}

	if sig.Confidence.LessThan(p.MinConfidence) {
		return reject(domain.ReasonLowConfidence, "confidence %s below minimum %s", sig.Confidence, p.MinConfidence), nil
	}

	existing, err := g.trades.FindActiveByTicker(ctx, p.ID, sig.Ticker)
	if err != nil {
		return Decision{}, fmt.Errorf("duplicate position check for %s: %w", sig.Ticker, err)
	}
	if existing != nil {
		return reject(domain.ReasonDuplicatePosition, "trade %s for %s is already %s", existing.ID, sig.Ticker, existing.Status), nil
	}

	threshold := g.ThresholdFor(sig.Metadata.ModelVersion)
	if sig.PredictedReturnPct.Abs().LessThan(threshold) {
		return reject(domain.ReasonBelowReturnThreshold, "|predicted return| %s below threshold %s", sig.PredictedReturnPct.Abs(), threshold), nil
	}

	return accept(), nil
}

// CheckAllocation rejects sizings that would open a position with no shares.
func (g *Gate) CheckAllocation(sz Sizing) Decision {
	if sz.Shares <= 0 {
		return reject(domain.ReasonZeroShares, "allocation %s buys no shares at %s", sz.PositionValue.StringFixed(2), sz.EntryPrice)
	}
	return accept()
}
