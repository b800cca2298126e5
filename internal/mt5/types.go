package mt5

import (
	"time"
)

// Deal entry and type codes as defined by the MetaTrader 5 terminal.
const (
	DealEntryIn  = 0
	DealEntryOut = 1

	DealTypeBuy     = 0
	DealTypeSell    = 1
	DealTypeBalance = 2
	DealTypeCredit  = 3
)

// Deal is one entry from the terminal's deal history. Balance and
// credit deals carry account deposits/withdrawals in Profit.
type Deal struct {
	Ticket     int64   `json:"ticket"`
	Order      int64   `json:"order"`
	Time       int64   `json:"time"`
	TimeMsc    int64   `json:"time_msc"`
	Type       int     `json:"type"`
	Entry      int     `json:"entry"`
	Magic      int64   `json:"magic"`
	PositionID int64   `json:"position_id"`
	Reason     int     `json:"reason"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	Commission float64 `json:"commission"`
	Swap       float64 `json:"swap"`
	Profit     float64 `json:"profit"`
	Fee        float64 `json:"fee"`
	Symbol     string  `json:"symbol"`
	Comment    string  `json:"comment"`
	ExternalID string  `json:"external_id"`
}

// At returns the deal time as UTC.
func (d Deal) At() time.Time {
	return time.Unix(d.Time, 0).UTC()
}

// IsBalanceChange reports whether the deal is a deposit, withdrawal or
// credit operation rather than a trade.
func (d Deal) IsBalanceChange() bool {
	return d.Entry == DealEntryIn && (d.Type == DealTypeBalance || d.Type == DealTypeCredit)
}

// Order is one entry from the terminal's order history; only the
// fields needed to recover stop-loss/take-profit levels are kept.
type Order struct {
	Ticket     int64   `json:"ticket"`
	PositionID int64   `json:"position_id"`
	SL         float64 `json:"sl"`
	TP         float64 `json:"tp"`
}
