package api

import (
	"fmt"
	"strings"
	"time"

	"paperTrader/internal/app"
	"paperTrader/internal/domain"

	"github.com/shopspring/decimal"
)

// signalRequest is the wire form of an incoming signal.
type signalRequest struct {
	SignalID           string                `json:"signalId"`
	PortfolioID        string                `json:"portfolioId"`
	Ticker             string                `json:"ticker"`
	DocumentRef        string                `json:"documentRef"`
	PredictedReturnPct decimal.Decimal       `json:"predictedReturnPct"`
	Confidence         decimal.Decimal       `json:"confidence"`
	Direction          string                `json:"direction"`
	OriginDate         string                `json:"originDate"` // YYYY-MM-DD or RFC 3339
	Metadata           domain.SignalMetadata `json:"metadata"`
}

func (r signalRequest) toSignal() (domain.Signal, error) {
	dir, err := domain.ParseDirection(r.Direction)
	if err != nil {
		return domain.Signal{}, err
	}
	origin, err := parseDate(r.OriginDate)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("originDate: %w", err)
	}
	return domain.Signal{
		ID:                 r.SignalID,
		PortfolioID:        r.PortfolioID,
		Ticker:             r.Ticker,
		DocumentRef:        r.DocumentRef,
		PredictedReturnPct: r.PredictedReturnPct,
		Confidence:         r.Confidence,
		Direction:          dir,
		OriginDate:         origin,
		Metadata:           r.Metadata,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

type closeRequest struct {
	Reason string `json:"reason"`
}

type portfolioResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	StartingCapital decimal.Decimal `json:"startingCapital"`
	CurrentCash     decimal.Decimal `json:"currentCash"`
	TotalValue      decimal.Decimal `json:"totalValue"`
	TotalReturnPct  decimal.Decimal `json:"totalReturnPct"`
	TotalTrades     int             `json:"totalTrades"`
	WinningTrades   int             `json:"winningTrades"`
	LosingTrades    int             `json:"losingTrades"`
	WinRate         decimal.Decimal `json:"winRate"`
	IsActive        bool            `json:"isActive"`
	MinConfidence   decimal.Decimal `json:"minConfidence"`
	MaxPositionSize decimal.Decimal `json:"maxPositionSize"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func toPortfolioResponse(p *domain.Portfolio) portfolioResponse {
	return portfolioResponse{
		ID:              p.ID,
		Name:            p.Name,
		StartingCapital: p.StartingCapital,
		CurrentCash:     p.CurrentCash,
		TotalValue:      p.TotalValue,
		TotalReturnPct:  p.TotalReturnPct,
		TotalTrades:     p.TotalTrades,
		WinningTrades:   p.WinningTrades,
		LosingTrades:    p.LosingTrades,
		WinRate:         p.WinRate,
		IsActive:        p.IsActive,
		MinConfidence:   p.MinConfidence,
		MaxPositionSize: p.MaxPositionSize,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

type entryResponse struct {
	Date       string          `json:"date"`
	Price      decimal.Decimal `json:"price"`
	Shares     int64           `json:"shares"`
	Value      decimal.Decimal `json:"value"`
	Commission decimal.Decimal `json:"commission"`
}

type exitResponse struct {
	Date            string          `json:"date"`
	Price           decimal.Decimal `json:"price"`
	Value           decimal.Decimal `json:"value"`
	Commission      decimal.Decimal `json:"commission"`
	RealizedPnL     decimal.Decimal `json:"realizedPnl"`
	RealizedPnLPct  decimal.Decimal `json:"realizedPnlPct"`
	ActualReturnPct decimal.Decimal `json:"actualReturnPct"`
	Reason          string          `json:"reason"`
}

type tradeResponse struct {
	ID                 string                `json:"id"`
	PortfolioID        string                `json:"portfolioId"`
	SignalID           string                `json:"signalId"`
	Ticker             string                `json:"ticker"`
	DocumentRef        string                `json:"documentRef,omitempty"`
	Direction          string                `json:"direction"`
	Status             string                `json:"status"`
	PredictedReturnPct decimal.Decimal       `json:"predictedReturnPct"`
	Confidence         decimal.Decimal       `json:"confidence"`
	TargetDate         string                `json:"targetDate"`
	Entry              *entryResponse        `json:"entry"`
	Exit               *exitResponse         `json:"exit"`
	CancelReason       string                `json:"cancelReason,omitempty"`
	Metadata           domain.SignalMetadata `json:"metadata"`
	CreatedAt          time.Time             `json:"createdAt"`
}

func toTradeResponse(t *domain.Trade) *tradeResponse {
	if t == nil {
		return nil
	}
	out := &tradeResponse{
		ID:                 t.ID,
		PortfolioID:        t.PortfolioID,
		SignalID:           t.SignalID,
		Ticker:             t.Ticker,
		DocumentRef:        t.DocumentRef,
		Direction:          string(t.Direction),
		Status:             string(t.Status),
		PredictedReturnPct: t.PredictedReturnPct,
		Confidence:         t.Confidence,
		TargetDate:         t.TargetDate.Format(time.DateOnly),
		CancelReason:       string(t.CancelReason),
		Metadata:           t.Metadata,
		CreatedAt:          t.CreatedAt,
	}
	if e := t.Entry; e != nil {
		out.Entry = &entryResponse{
			Date:       e.Date.Format(time.DateOnly),
			Price:      e.Price,
			Shares:     e.Shares,
			Value:      e.Value,
			Commission: e.Commission,
		}
	}
	if x := t.Exit; x != nil {
		out.Exit = &exitResponse{
			Date:            x.Date.Format(time.DateOnly),
			Price:           x.Price,
			Value:           x.Value,
			Commission:      x.Commission,
			RealizedPnL:     x.RealizedPnL,
			RealizedPnLPct:  x.RealizedPnLPct,
			ActualReturnPct: x.ActualReturnPct,
			Reason:          string(x.Reason),
		}
	}
	return out
}

func toTradeResponses(trades []*domain.Trade) []*tradeResponse {
	out := make([]*tradeResponse, 0, len(trades))
	for _, t := range trades {
		out = append(out, toTradeResponse(t))
	}
	return out
}

type positionResponse struct {
	Trade            *tradeResponse  `json:"trade"`
	MarkPrice        decimal.Decimal `json:"markPrice"`
	MarketValue      decimal.Decimal `json:"marketValue"`
	UnrealizedPnL    decimal.Decimal `json:"unrealizedPnl"`
	UnrealizedPnLPct decimal.Decimal `json:"unrealizedPnlPct"`
	PriceTier        string          `json:"priceTier,omitempty"`
	MarkedAtEntry    bool            `json:"markedAtEntry"`
}

type summaryResponse struct {
	Portfolio     portfolioResponse  `json:"portfolio"`
	OpenPositions []positionResponse `json:"openPositions"`
	PendingTrades []*tradeResponse   `json:"pendingTrades"`
	RecentClosed  []*tradeResponse   `json:"recentClosed"`
	Performance   interface{}        `json:"performance"`
}

func toSummaryResponse(s *app.PortfolioSummary) summaryResponse {
	positions := make([]positionResponse, 0, len(s.OpenPositions))
	for _, v := range s.OpenPositions {
		positions = append(positions, positionResponse{
			Trade:            toTradeResponse(v.Trade),
			MarkPrice:        v.MarkPrice,
			MarketValue:      v.MarketValue,
			UnrealizedPnL:    v.UnrealizedPnL,
			UnrealizedPnLPct: v.UnrealizedPnLPct,
			PriceTier:        string(v.PriceTier),
			MarkedAtEntry:    v.MarkedAtEntry,
		})
	}
	return summaryResponse{
		Portfolio:     toPortfolioResponse(s.Portfolio),
		OpenPositions: positions,
		PendingTrades: toTradeResponses(s.PendingTrades),
		RecentClosed:  toTradeResponses(s.RecentClosed),
		Performance:   s.Performance,
	}
}

type snapshotResponse struct {
	Date              string          `json:"date"`
	Cash              decimal.Decimal `json:"cash"`
	OpenValue         decimal.Decimal `json:"openValue"`
	TotalValue        decimal.Decimal `json:"totalValue"`
	CumulativeReturn  decimal.Decimal `json:"cumulativeReturnPct"`
	CumulativePnL     decimal.Decimal `json:"cumulativePnl"`
	OpenPositionCount int             `json:"openPositionCount"`
}

func toSnapshotResponse(s *domain.PortfolioSnapshot) snapshotResponse {
	return snapshotResponse{
		Date:              s.Date.Format(time.DateOnly),
		Cash:              s.Cash,
		OpenValue:         s.OpenValue,
		TotalValue:        s.TotalValue,
		CumulativeReturn:  s.CumulativeReturn,
		CumulativePnL:     s.CumulativePnL,
		OpenPositionCount: s.OpenPositionCount,
	}
}

type executionResponse struct {
	TradeID   string         `json:"tradeId,omitempty"`
	Status    string         `json:"status,omitempty"`
	Rejected  bool           `json:"rejected"`
	Reason    string         `json:"reason,omitempty"`
	Category  string         `json:"category,omitempty"`
	Detail    string         `json:"detail,omitempty"`
	PriceTier string         `json:"priceTier,omitempty"`
	Trade     *tradeResponse `json:"trade,omitempty"`
}

func toExecutionResponse(r *app.ExecutionResult) executionResponse {
	return executionResponse{
		TradeID:   r.TradeID,
		Status:    string(r.Status),
		Rejected:  r.Rejected(),
		Reason:    string(r.Reason),
		Category:  string(r.Reason.Category()),
		Detail:    r.Detail,
		PriceTier: string(r.PriceTier),
		Trade:     toTradeResponse(r.Trade),
	}
}

type closeResponse struct {
	Closed    bool           `json:"closed"`
	Reason    string         `json:"reason,omitempty"`
	Category  string         `json:"category,omitempty"`
	Detail    string         `json:"detail,omitempty"`
	PriceTier string         `json:"priceTier,omitempty"`
	Trade     *tradeResponse `json:"trade,omitempty"`
}

func toCloseResponse(r *app.CloseResult) closeResponse {
	return closeResponse{
		Closed:    r.Closed,
		Reason:    string(r.Reason),
		Category:  string(r.Reason.Category()),
		Detail:    r.Detail,
		PriceTier: string(r.PriceTier),
		Trade:     toTradeResponse(r.Trade),
	}
}
