package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrentMetadataVersion is the schema version new signal metadata is written with.
const CurrentMetadataVersion = 2

// SignalMetadata is auxiliary information about a signal.
// Version 1 carried only ModelVersion and Source; version 2 added HorizonDays.
type SignalMetadata struct {
	Version      int    `json:"version" msgpack:"version"`
	ModelVersion string `json:"modelVersion,omitempty" msgpack:"model_version"`
	Source       string `json:"source,omitempty" msgpack:"source"`             // e.g. "10-K", "8-K"
	HorizonDays  int    `json:"horizonDays,omitempty" msgpack:"horizon_days"` // 0 means use the configured hold period
}

// Signal is a directional prediction produced by an external analysis pipeline.
type Signal struct {
	ID                 string          `json:"signalId"`
	PortfolioID        string          `json:"portfolioId"`
	Ticker             string          `json:"ticker"`
	DocumentRef        string          `json:"documentRef,omitempty"`
	PredictedReturnPct decimal.Decimal `json:"predictedReturnPct"`
	Confidence         decimal.Decimal `json:"confidence"`
	Direction          Direction       `json:"direction"`
	OriginDate         time.Time       `json:"originDate"`
	Metadata           SignalMetadata  `json:"metadata"`
}
