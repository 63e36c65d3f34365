package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"paperTrader/config"
	"paperTrader/internal/bootstrap"
	"paperTrader/internal/utils"
)

var (
	ticker = flag.String("ticker", "", "ticker to fetch (required)")
	days   = flag.Int("days", 90, "number of calendar days to fetch, ending today")
	outDir = flag.String("out", "data", "output directory")
)

func main() {
	flag.Parse()
	if *ticker == "" || *days <= 0 {
		fmt.Fprintln(os.Stderr, "usage: fetch_bars -ticker ACME [-days 90] [-out data]")
		os.Exit(2)
	}

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := bootstrap.NewLogger(cfg)

	// 3. Initialize the configured price provider. No database is needed.
	provider, err := bootstrap.NewProvider(cfg, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize price provider")
		log.Fatalf("FATAL: Failed to initialize price provider: %v", err)
	}

	symbol := strings.ToUpper(*ticker)
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -*days)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("Fetching daily bars for %s from %s via %s...\n", symbol, start.Format(time.DateOnly), provider.Name())
	bars, err := provider.Historical(ctx, symbol, start, end)
	if err != nil {
		appLogger.Error(ctx, err, "Error fetching bars")
		log.Fatalf("Error fetching bars: %v", err)
	}
	appLogger.Info(ctx, "Fetched bars", map[string]interface{}{"count": len(bars)})

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Error creating %s: %v", *outDir, err)
	}
	filename := filepath.Join(*outDir, fmt.Sprintf("%s_1d_%s_to_%s.csv", symbol, start.Format("20060102"), end.Format("20060102")))
	err = utils.WriteFile(filename, func(w io.Writer) error { return utils.WriteBarsToCSV(w, bars) })
	if err != nil {
		appLogger.Error(ctx, err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": filename})
}
