package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"paperTrader/internal/domain"

	"github.com/shopspring/decimal"
)

// Signal CSV columns that must be present. signal_id, document_ref, model_version,
// source and horizon_days are optional.
var requiredSignalColumns = []string{"ticker", "direction", "origin_date", "confidence", "predicted_return_pct"}

// ReadSignalsFromCSV parses signals from a CSV with a header row. Columns are matched by name.
// Every signal is assigned to portfolioID.
func ReadSignalsFromCSV(r io.Reader, portfolioID string) ([]domain.Signal, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredSignalColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var signals []domain.Signal
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		get := func(col string) string {
			if i, ok := idx[col]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		sig, err := parseSignal(get, portfolioID)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

func parseSignal(get func(string) string, portfolioID string) (domain.Signal, error) {
	dir, err := domain.ParseDirection(get("direction"))
	if err != nil {
		return domain.Signal{}, err
	}
	origin, err := time.Parse(time.DateOnly, get("origin_date"))
	if err != nil {
		return domain.Signal{}, fmt.Errorf("origin_date: %w", err)
	}
	conf, err := decimal.NewFromString(get("confidence"))
	if err != nil {
		return domain.Signal{}, fmt.Errorf("confidence: %w", err)
	}
	pred, err := decimal.NewFromString(get("predicted_return_pct"))
	if err != nil {
		return domain.Signal{}, fmt.Errorf("predicted_return_pct: %w", err)
	}
	meta := domain.SignalMetadata{
		Version:      domain.CurrentMetadataVersion,
		ModelVersion: get("model_version"),
		Source:       get("source"),
	}
	if h := get("horizon_days"); h != "" {
		if meta.HorizonDays, err = strconv.Atoi(h); err != nil {
			return domain.Signal{}, fmt.Errorf("horizon_days: %w", err)
		}
	}
	return domain.Signal{
		ID:                 get("signal_id"),
		PortfolioID:        portfolioID,
		Ticker:             get("ticker"),
		DocumentRef:        get("document_ref"),
		PredictedReturnPct: pred,
		Confidence:         conf,
		Direction:          dir,
		OriginDate:         origin,
		Metadata:           meta,
	}, nil
}

var tradeHeader = []string{
	"id", "signal_id", "ticker", "direction", "status", "target_date",
	"entry_date", "entry_price", "shares", "entry_value", "entry_commission",
	"exit_date", "exit_price", "exit_value", "exit_commission",
	"realized_pnl", "realized_pnl_pct", "actual_return_pct", "predicted_return_pct", "confidence",
	"close_reason", "cancel_reason",
}

// WriteTradesToCSV writes one row per trade. Entry and exit columns are empty until filled.
func WriteTradesToCSV(w io.Writer, trades []*domain.Trade) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		row := make([]string, 0, len(tradeHeader))
		row = append(row, t.ID, t.SignalID, t.Ticker, string(t.Direction), string(t.Status), t.TargetDate.Format(time.DateOnly))
		if e := t.Entry; e != nil {
			row = append(row, e.Date.Format(time.DateOnly), e.Price.String(), strconv.FormatInt(e.Shares, 10), e.Value.String(), e.Commission.String())
		} else {
			row = append(row, "", "", "", "", "")
		}
		if x := t.Exit; x != nil {
			row = append(row, x.Date.Format(time.DateOnly), x.Price.String(), x.Value.String(), x.Commission.String(),
				x.RealizedPnL.String(), x.RealizedPnLPct.String(), x.ActualReturnPct.String())
		} else {
			row = append(row, "", "", "", "", "", "", "")
		}
		row = append(row, t.PredictedReturnPct.String(), t.Confidence.String())
		if t.Exit != nil {
			row = append(row, string(t.Exit.Reason))
		} else {
			row = append(row, "")
		}
		row = append(row, string(t.CancelReason))
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteBarsToCSV writes daily bars, oldest first as given.
func WriteBarsToCSV(w io.Writer, bars []domain.Bar) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"date", "ticker", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		if err := writer.Write([]string{
			b.Date.Format(time.DateOnly),
			b.Ticker,
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile creates filename and hands it to write.
func WriteFile(filename string, write func(io.Writer) error) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
