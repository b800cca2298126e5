package analysis

import (
	"math"
	"sort"
	"time"

	"mt5-analysis-service/internal/mt5"
)

// SymbolDayStats aggregates one symbol's completed positions on one
// UTC trading day.
type SymbolDayStats struct {
	Date             string  `json:"date"`
	Symbol           string  `json:"symbol"`
	TotalVolume      float64 `json:"total_volume"`
	MaxVolume        float64 `json:"max_volume"`
	MinVolume        float64 `json:"min_volume"`
	TotalProfit      float64 `json:"total_profit"`
	PureProfit       float64 `json:"pure_profit"`
	Commission       float64 `json:"commission"`
	Swap             float64 `json:"swap"`
	BuyCount         int     `json:"buy_count"`
	SellCount        int     `json:"sell_count"`
	WinRate          float64 `json:"win_rate"`
	AvgProfitPoints  float64 `json:"avg_profit_points"`
	AvgLossPoints    float64 `json:"avg_loss_points"`
	ProfitLossRatio  float64 `json:"profit_loss_ratio"`
	AvgHoldingTime   string  `json:"avg_holding_time"`
	MaxHoldingTime   string  `json:"max_holding_time"`
	MinHoldingTime   string  `json:"min_holding_time"`
}

// EquityPoint is one day on the account equity curve.
type EquityPoint struct {
	Date          string  `json:"date"`
	TradingProfit float64 `json:"trading_profit"`
	BalanceChange float64 `json:"balance_change"`
	Equity        float64 `json:"equity"`
	ReturnPct     float64 `json:"return_pct"`
}

// DaySummary rolls one trading day up across symbols; it is the shape
// exported to the per-day report files.
type DaySummary struct {
	Date            string  `json:"date"`
	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	WinRate         float64 `json:"win_rate"`
	ProfitLossRatio float64 `json:"profit_loss_ratio"`
	AvgProfitPoints float64 `json:"avg_profit_points"`
	AvgLossPoints   float64 `json:"avg_loss_points"`
	TotalVolume     float64 `json:"total_volume"`
	TotalProfit     float64 `json:"total_profit"`
	TotalCommission float64 `json:"total_commission"`
	TotalSwap       float64 `json:"total_swap"`
	BuyCount        int     `json:"buy_count"`
	SellCount       int     `json:"sell_count"`
	AvgHoldingTime  string  `json:"avg_holding_time"`
	MaxHoldingTime  string  `json:"max_holding_time"`
	MinHoldingTime  string  `json:"min_holding_time"`
}

// DayReport couples a day's summary with its trade detail.
type DayReport struct {
	Date    string     `json:"date"`
	Trades  []Position `json:"trades"`
	Summary DaySummary `json:"summary"`
}

// Report is the full analysis output handed back as the task result.
type Report struct {
	GeneratedAt    time.Time        `json:"generated_at"`
	WindowDays     int              `json:"window_days"`
	TotalTrades    int              `json:"total_trades"`
	InitialEquity  float64          `json:"initial_equity"`
	FinalEquity    float64          `json:"final_equity"`
	TotalReturnPct float64          `json:"total_return_pct"`
	MaxDrawdownPct float64          `json:"max_drawdown_pct"`
	Daily          []SymbolDayStats `json:"daily"`
	Equity         []EquityPoint    `json:"equity"`
	Days           []DayReport      `json:"days"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatHolding(d time.Duration) string {
	return d.Truncate(time.Second).String()
}

// buildEquityCurve walks every day with activity, applying deposits,
// withdrawals and trading results to the running equity. The drawdown
// peak excludes deposits and is rescaled on withdrawals, matching how
// the account return is judged independently of funding moves.
func buildEquityCurve(positions []Position, balanceOps []mt5.Deal, initialEquity float64) ([]EquityPoint, float64) {
	tradingByDate := make(map[string]float64)
	for _, p := range positions {
		tradingByDate[p.Date()] += p.TotalProfit
	}
	balanceByDate := make(map[string]float64)
	for _, d := range balanceOps {
		balanceByDate[d.At().Format("2006-01-02")] += d.Profit
	}

	dateSet := make(map[string]struct{}, len(tradingByDate)+len(balanceByDate))
	for d := range tradingByDate {
		dateSet[d] = struct{}{}
	}
	for d := range balanceByDate {
		dateSet[d] = struct{}{}
	}
	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	equity := initialEquity
	maxEquity := initialEquity
	maxDrawdown := 0.0
	points := make([]EquityPoint, 0, len(dates))

	for _, date := range dates {
		balanceChange := balanceByDate[date]
		tradingProfit := tradingByDate[date]
		equity += balanceChange + tradingProfit

		if balanceChange >= 0 {
			maxEquity = math.Max(maxEquity, equity-balanceChange)
		} else {
			maxEquity = math.Max(maxEquity*(equity/(equity-balanceChange)), equity)
		}
		drawdown := (maxEquity - equity) / maxEquity * 100
		maxDrawdown = math.Max(maxDrawdown, drawdown)

		points = append(points, EquityPoint{
			Date:          date,
			TradingProfit: round2(tradingProfit),
			BalanceChange: round2(balanceChange),
			Equity:        round2(equity),
			ReturnPct:     round2((equity/initialEquity - 1) * 100),
		})
	}

	return points, round2(maxDrawdown)
}

// pointStats returns the average winning and losing price moves and
// their ratio for a set of positions.
func pointStats(group []Position) (avgProfit, avgLoss, ratio float64) {
	var profitSum, lossSum float64
	var winners, losers int
	for _, p := range group {
		if p.Winner() {
			profitSum += p.PriceChange
			winners++
		} else {
			lossSum += p.PriceChange
			losers++
		}
	}
	if winners > 0 {
		avgProfit = profitSum / float64(winners)
	}
	if losers > 0 {
		avgLoss = lossSum / float64(losers)
	}
	if avgLoss > 0 {
		ratio = avgProfit / avgLoss
	}
	return avgProfit, avgLoss, ratio
}

func holdingStats(group []Position) (avg, max, min time.Duration) {
	if len(group) == 0 {
		return 0, 0, 0
	}
	var total time.Duration
	max, min = group[0].HoldingTime, group[0].HoldingTime
	for _, p := range group {
		total += p.HoldingTime
		if p.HoldingTime > max {
			max = p.HoldingTime
		}
		if p.HoldingTime < min {
			min = p.HoldingTime
		}
	}
	return total / time.Duration(len(group)), max, min
}

func buildDailyStats(positions []Position) []SymbolDayStats {
	type key struct{ date, symbol string }
	groups := make(map[key][]Position)
	for _, p := range positions {
		k := key{p.Date(), p.Symbol}
		groups[k] = append(groups[k], p)
	}

	stats := make([]SymbolDayStats, 0, len(groups))
	for k, group := range groups {
		s := SymbolDayStats{
			Date:      k.date,
			Symbol:    k.symbol,
			MinVolume: group[0].Volume,
		}
		winners := 0
		for _, p := range group {
			s.TotalVolume += p.Volume
			s.MaxVolume = math.Max(s.MaxVolume, p.Volume)
			s.MinVolume = math.Min(s.MinVolume, p.Volume)
			s.TotalProfit += p.TotalProfit
			s.PureProfit += p.Profit
			s.Commission += p.Commission
			s.Swap += p.Swap
			if p.Type == mt5.DealTypeBuy {
				s.BuyCount++
			} else {
				s.SellCount++
			}
			if p.Winner() {
				winners++
			}
		}
		s.WinRate = round2(float64(winners) / float64(len(group)) * 100)

		avgProfit, avgLoss, ratio := pointStats(group)
		s.AvgProfitPoints = round2(avgProfit)
		s.AvgLossPoints = round2(avgLoss)
		s.ProfitLossRatio = round2(ratio)

		avg, max, min := holdingStats(group)
		s.AvgHoldingTime = formatHolding(avg)
		s.MaxHoldingTime = formatHolding(max)
		s.MinHoldingTime = formatHolding(min)

		stats = append(stats, s)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Date != stats[j].Date {
			return stats[i].Date < stats[j].Date
		}
		return stats[i].Symbol < stats[j].Symbol
	})
	return stats
}

func buildDayReports(positions []Position) []DayReport {
	byDate := make(map[string][]Position)
	for _, p := range positions {
		byDate[p.Date()] = append(byDate[p.Date()], p)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	reports := make([]DayReport, 0, len(dates))
	for _, date := range dates {
		group := byDate[date]
		summary := DaySummary{
			Date:        date,
			TotalTrades: len(group),
		}
		for _, p := range group {
			summary.TotalVolume += p.Volume
			summary.TotalProfit += p.TotalProfit
			summary.TotalCommission += p.Commission
			summary.TotalSwap += p.Swap
			if p.Type == mt5.DealTypeBuy {
				summary.BuyCount++
			} else {
				summary.SellCount++
			}
			if p.Winner() {
				summary.WinningTrades++
			} else {
				summary.LosingTrades++
			}
		}
		summary.WinRate = round2(float64(summary.WinningTrades) / float64(len(group)) * 100)

		avgProfit, avgLoss, ratio := pointStats(group)
		summary.AvgProfitPoints = round2(avgProfit)
		summary.AvgLossPoints = round2(avgLoss)
		summary.ProfitLossRatio = round2(ratio)

		avg, max, min := holdingStats(group)
		summary.AvgHoldingTime = formatHolding(avg)
		summary.MaxHoldingTime = formatHolding(max)
		summary.MinHoldingTime = formatHolding(min)

		reports = append(reports, DayReport{Date: date, Trades: group, Summary: summary})
	}
	return reports
}

// BuildReport computes the full analysis over the paired positions and
// the account's balance operations.
func BuildReport(positions []Position, balanceOps []mt5.Deal, initialEquity float64, windowDays int) *Report {
	equity, maxDrawdown := buildEquityCurve(positions, balanceOps, initialEquity)

	finalEquity := initialEquity
	if len(equity) > 0 {
		finalEquity = equity[len(equity)-1].Equity
	}

	return &Report{
		GeneratedAt:    time.Now().UTC(),
		WindowDays:     windowDays,
		TotalTrades:    len(positions),
		InitialEquity:  initialEquity,
		FinalEquity:    finalEquity,
		TotalReturnPct: round2((finalEquity/initialEquity - 1) * 100),
		MaxDrawdownPct: maxDrawdown,
		Daily:          buildDailyStats(positions),
		Equity:         equity,
		Days:           buildDayReports(positions),
	}
}
