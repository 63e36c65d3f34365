package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"paperTrader/config"
	"paperTrader/internal/app"
	"paperTrader/internal/bootstrap"
	"paperTrader/internal/utils"
)

var (
	signalsFile = flag.String("file", "", "CSV of signals to execute (required)")
	portfolioID = flag.String("portfolio", "", "ID of the portfolio to trade in")
	createName  = flag.String("create", "", "create a new portfolio with this name instead of using -portfolio")
	promote     = flag.Bool("promote", false, "promote pending trades after the replay")
	expire      = flag.Bool("expire", false, "close expired positions after the replay")
)

func main() {
	flag.Parse()
	if *signalsFile == "" || (*portfolioID == "") == (*createName == "") {
		fmt.Fprintln(os.Stderr, "usage: replay_signals -file signals.csv (-portfolio ID | -create NAME) [-promote] [-expire]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	application, err := bootstrap.New(cfg)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer application.Close()
	engine := application.Engine
	ctx := context.Background()

	id := *portfolioID
	if *createName != "" {
		p, err := engine.CreatePortfolio(ctx, app.CreatePortfolioRequest{Name: *createName})
		if err != nil {
			log.Fatalf("Error creating portfolio: %v", err)
		}
		id = p.ID
		fmt.Printf("Created portfolio %s (%s)\n", p.Name, p.ID)
	}

	file, err := os.Open(*signalsFile)
	if err != nil {
		log.Fatalf("Error opening %s: %v", *signalsFile, err)
	}
	signals, err := utils.ReadSignalsFromCSV(file, id)
	file.Close()
	if err != nil {
		log.Fatalf("Error reading signals from %s: %v", *signalsFile, err)
	}

	// Outcome label -> count, e.g. "OPEN", "PENDING", "rejected:LowConfidence".
	outcomes := make(map[string]int)
	for _, sig := range signals {
		res, err := engine.ExecuteTrade(ctx, sig)
		if err != nil {
			log.Fatalf("Error executing signal %s (%s): %v", sig.ID, sig.Ticker, err)
		}
		if res.Rejected() {
			outcomes["rejected:"+string(res.Reason)]++
			continue
		}
		outcomes[string(res.Status)]++
	}

	if *promote {
		res, err := engine.ExecutePendingTrades(ctx, id)
		if err != nil {
			log.Printf("Promotion finished with errors: %v", err)
		}
		fmt.Printf("Pending trades: %d promoted, %d cancelled, %d still pending, %d failed\n",
			res.Promoted, res.Cancelled, res.StillPending, res.Failed)
	}
	if *expire {
		closed, err := engine.CloseExpiredPositions(ctx, id)
		if err != nil {
			log.Printf("Expiry finished with errors: %v", err)
		}
		fmt.Printf("Closed %d expired positions\n", closed)
	}

	snap, err := engine.RecomputePortfolio(ctx, id)
	if err != nil {
		log.Fatalf("Error recomputing portfolio: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Outcome\tSignals\t")
	labels := make([]string, 0, len(outcomes))
	for label := range outcomes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(w, "%s\t%d\t\n", label, outcomes[label])
	}
	w.Flush()

	fmt.Printf("\nCash %s, open value %s, total %s (%s%%), %d open positions\n",
		snap.Cash.StringFixed(2), snap.OpenValue.StringFixed(2), snap.TotalValue.StringFixed(2),
		snap.CumulativeReturn.StringFixed(2), snap.OpenPositionCount)
}
