package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"paperTrader/config"
	"paperTrader/internal/app"
	"paperTrader/internal/bootstrap"
	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
	"paperTrader/internal/utils"

	"github.com/shopspring/decimal"
)

var (
	portfolioID = flag.String("portfolio", "", "report a single portfolio (default: all)")
	activeOnly  = flag.Bool("active", false, "only report active portfolios")
	outDir      = flag.String("out", "", "directory to export each portfolio's trades as CSV")
	sweep       = flag.Bool("sweep", false, "promote, expire and snapshot all portfolios first")
)

var allStatuses = []domain.TradeStatus{domain.StatusPending, domain.StatusOpen, domain.StatusClosed, domain.StatusCancelled}

func main() {
	flag.Parse()

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

	if *sweep {
		report, err := engine.SweepAll(ctx)
		if err != nil {
			log.Printf("Sweep finished with errors: %v", err)
		}
		fmt.Printf("Swept %d portfolios: %d promoted, %d cancelled, %d closed, %d snapshots, %d failed\n\n",
			report.Portfolios, report.Promoted, report.Cancelled, report.Closed, report.Snapshots, report.Failed)
	}

	var portfolios []*domain.Portfolio
	if *portfolioID != "" {
		p, err := engine.GetPortfolio(ctx, *portfolioID)
		if err != nil {
			log.Fatalf("Error loading portfolio: %v", err)
		}
		portfolios = []*domain.Portfolio{p}
	} else if portfolios, err = engine.ListPortfolios(ctx, *activeOnly); err != nil {
		log.Fatalf("Error listing portfolios: %v", err)
	}
	if len(portfolios) == 0 {
		log.Println("No portfolios found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Portfolio\tActive\tClosed\tWinRate\tTotalPnL\tReturn%\tMaxDD\tSharpe\tAccuracy\t")
	reports := make(map[string]*app.PerformanceReport, len(portfolios))
	for _, p := range portfolios {
		report, err := engine.Performance(ctx, p.ID)
		if err != nil {
			log.Printf("Error analyzing %s: %v", p.Name, err)
			continue
		}
		reports[p.ID] = report
		fmt.Fprintf(w, "%s\t%t\t%d\t%.2f\t%.2f\t%s\t%.2f\t%.2f\t%.2f\t\n",
			p.Name,
			p.IsActive,
			report.Trades.TotalTrades,
			report.Trades.WinRate*100,
			report.Trades.TotalProfit,
			p.TotalReturnPct.StringFixed(2),
			report.Equity.MaxDrawdown*100,
			report.Equity.SharpeRatio,
			report.Calibration.DirectionalAccuracy*100,
		)
	}
	w.Flush()

	for _, p := range portfolios {
		if _, ok := reports[p.ID]; !ok {
			continue
		}
		trades, err := collectTrades(ctx, application.Repo, p.ID)
		if err != nil {
			log.Printf("Error loading trades of %s: %v", p.Name, err)
			continue
		}
		printCloseReasons(p, trades)

		if *outDir != "" {
			filename := filepath.Join(*outDir, fmt.Sprintf("trades_%s.csv", p.ID))
			if err := os.MkdirAll(*outDir, 0755); err != nil {
				log.Fatalf("Error creating %s: %v", *outDir, err)
			}
			if err := utils.WriteFile(filename, func(f io.Writer) error { return utils.WriteTradesToCSV(f, trades) }); err != nil {
				log.Printf("Error writing %s: %v", filename, err)
				continue
			}
			fmt.Printf("Saved %d trades to %s\n", len(trades), filename)
		}
	}
}

func collectTrades(ctx context.Context, repo ports.TradeRepository, portfolioID string) ([]*domain.Trade, error) {
	var out []*domain.Trade
	for _, status := range allStatuses {
		trades, err := repo.FindByStatus(ctx, portfolioID, status)
		if err != nil {
			return nil, err
		}
		out = append(out, trades...)
	}
	return out, nil
}

// printCloseReasons breaks realized P&L down by why positions were closed.
func printCloseReasons(p *domain.Portfolio, trades []*domain.Trade) {
	counts := make(map[domain.CloseReason]int)
	pnl := make(map[domain.CloseReason]decimal.Decimal)
	for _, t := range trades {
		if t.Exit == nil {
			continue
		}
		counts[t.Exit.Reason]++
		pnl[t.Exit.Reason] = pnl[t.Exit.Reason].Add(t.Exit.RealizedPnL)
	}
	if len(counts) == 0 {
		return
	}

	reasons := make([]domain.CloseReason, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	fmt.Printf("\nPortfolio: %s\n", p.Name)
	fmt.Println("Close Reason\tCount\tTotal PnL\tAvg PnL")
	for _, r := range reasons {
		total := pnl[r]
		avg := total.Div(decimal.NewFromInt(int64(counts[r])))
		fmt.Printf("%s\t%d\t%s\t%s\n", r, counts[r], total.StringFixed(2), avg.StringFixed(2))
	}
}
