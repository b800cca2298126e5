package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"mt5-analysis-service/internal/mt5"
)

// ErrNoTrades is returned when the history window holds no completed
// position to analyze.
var ErrNoTrades = errors.New("no trade data found")

// Exporter receives the per-day reports after a successful run.
type Exporter interface {
	ExportDays(ctx context.Context, days []DayReport) error
}

// Analyzer runs the trade analysis against the terminal bridge. The
// terminal holds a single session, so runs are serialized.
type Analyzer struct {
	client        mt5.Client
	exporter      Exporter
	windowDays    int
	initialEquity float64
	log           *zap.Logger

	mu sync.Mutex
}

// NewAnalyzer constructs the analyzer. exporter may be nil.
func NewAnalyzer(client mt5.Client, exporter Exporter, windowDays int, initialEquity float64, log *zap.Logger) *Analyzer {
	if windowDays <= 0 {
		windowDays = 30
	}
	if initialEquity <= 0 {
		initialEquity = 10000
	}
	return &Analyzer{
		client:        client,
		exporter:      exporter,
		windowDays:    windowDays,
		initialEquity: initialEquity,
		log:           log,
	}
}

// Run pulls the configured history window, pairs deals into positions
// and computes the report. Export problems are logged, never returned;
// the report stands on its own.
func (a *Analyzer) Run(ctx context.Context) (*Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -a.windowDays).Truncate(24 * time.Hour)

	deals, err := a.client.HistoryDeals(ctx, from, to)
	if err != nil {
		return nil, err
	}
	orders, err := a.client.HistoryOrders(ctx, from, to)
	if err != nil {
		return nil, err
	}

	positions := BuildPositions(deals, orders)
	if len(positions) == 0 {
		return nil, ErrNoTrades
	}

	var balanceOps []mt5.Deal
	for _, d := range deals {
		if d.IsBalanceChange() {
			balanceOps = append(balanceOps, d)
		}
	}

	report := BuildReport(positions, balanceOps, a.initialEquity, a.windowDays)
	a.log.Info("analysis run finished",
		zap.Int("positions", len(positions)),
		zap.Float64("final_equity", report.FinalEquity),
		zap.Float64("max_drawdown_pct", report.MaxDrawdownPct),
	)

	if a.exporter != nil {
		if err := a.exporter.ExportDays(ctx, report.Days); err != nil {
			a.log.Warn("export daily reports", zap.Error(err))
		}
	}

	return report, nil
}
