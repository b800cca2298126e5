package analysis

import (
	"math"
	"sort"
	"time"

	"mt5-analysis-service/internal/mt5"
)

// Close types recorded on a position.
const (
	CloseBySL     = "sl"
	CloseByTP     = "tp"
	CloseByMarket = "market"
)

// Position is one completed round trip: an entry deal paired with its
// closing deal, with costs summed across every deal of the position.
type Position struct {
	ID          int64         `json:"position_id"`
	Symbol      string        `json:"symbol"`
	Volume      float64       `json:"volume"`
	Type        int           `json:"type"`
	OpenTime    time.Time     `json:"open_time"`
	CloseTime   time.Time     `json:"close_time"`
	OpenPrice   float64       `json:"open_price"`
	ClosePrice  float64       `json:"close_price"`
	SL          float64       `json:"sl,omitempty"`
	TP          float64       `json:"tp,omitempty"`
	SLTPPrice   float64       `json:"sl_tp_price,omitempty"`
	Slippage    float64       `json:"slippage"`
	CloseType   string        `json:"close_type"`
	Profit      float64       `json:"profit"`
	Commission  float64       `json:"commission"`
	Swap        float64       `json:"swap"`
	TotalProfit float64       `json:"total_profit"`
	PriceChange float64       `json:"price_change"`
	HoldingTime time.Duration `json:"-"`
}

// Date returns the UTC day the position was closed.
func (p Position) Date() string {
	return p.CloseTime.UTC().Format("2006-01-02")
}

// Winner reports whether the position closed with a positive raw
// profit, fees excluded.
func (p Position) Winner() bool {
	return p.Profit > 0
}

// stopLevels is the latest non-zero SL/TP seen for a position across
// its order history.
type stopLevels struct {
	sl, tp float64
}

func collectStopLevels(orders []mt5.Order) map[int64]stopLevels {
	levels := make(map[int64]stopLevels, len(orders))
	for _, o := range orders {
		lv, ok := levels[o.PositionID]
		if !ok {
			levels[o.PositionID] = stopLevels{sl: o.SL, tp: o.TP}
			continue
		}
		if o.SL != 0 {
			lv.sl = o.SL
		}
		if o.TP != 0 {
			lv.tp = o.TP
		}
		levels[o.PositionID] = lv
	}
	return levels
}

// BuildPositions pairs raw deal history into completed positions.
// Balance operations are ignored here; a position needs at least one
// entry-in and one entry-out deal, otherwise it is still open and
// skipped.
func BuildPositions(deals []mt5.Deal, orders []mt5.Order) []Position {
	byPosition := make(map[int64][]mt5.Deal)
	for _, d := range deals {
		if d.IsBalanceChange() {
			continue
		}
		byPosition[d.PositionID] = append(byPosition[d.PositionID], d)
	}

	levels := collectStopLevels(orders)

	positions := make([]Position, 0, len(byPosition))
	for id, posDeals := range byPosition {
		sort.Slice(posDeals, func(i, j int) bool { return posDeals[i].Time < posDeals[j].Time })

		var open, last *mt5.Deal
		for i := range posDeals {
			switch posDeals[i].Entry {
			case mt5.DealEntryIn:
				if open == nil {
					open = &posDeals[i]
				}
			case mt5.DealEntryOut:
				last = &posDeals[i]
			}
		}
		if open == nil || last == nil {
			continue
		}

		p := Position{
			ID:         id,
			Symbol:     open.Symbol,
			Volume:     open.Volume,
			Type:       open.Type,
			OpenTime:   posDeals[0].At(),
			CloseTime:  posDeals[len(posDeals)-1].At(),
			OpenPrice:  open.Price,
			ClosePrice: last.Price,
		}
		for _, d := range posDeals {
			p.Profit += d.Profit
			p.Commission += d.Commission
			p.Swap += d.Swap
		}
		p.TotalProfit = p.Profit + p.Commission + p.Swap
		p.PriceChange = math.Abs(p.ClosePrice - p.OpenPrice)
		p.HoldingTime = p.CloseTime.Sub(p.OpenTime)

		// Slippage is measured against the stop level that closed the
		// trade; stop-loss takes precedence when both are set.
		lv := levels[id]
		p.SL, p.TP = lv.sl, lv.tp
		switch {
		case lv.sl != 0:
			p.CloseType = CloseBySL
			p.SLTPPrice = lv.sl
			p.Slippage = math.Abs(last.Price - lv.sl)
		case lv.tp != 0:
			p.CloseType = CloseByTP
			p.SLTPPrice = lv.tp
			p.Slippage = math.Abs(last.Price - lv.tp)
		default:
			p.CloseType = CloseByMarket
		}

		positions = append(positions, p)
	}

	sort.Slice(positions, func(i, j int) bool { return positions[i].CloseTime.Before(positions[j].CloseTime) })
	return positions
}
