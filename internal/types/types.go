package types

import (
	"time"
)

// Side is the direction of a pending limit order or an open position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other direction.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}

	return SideBuy
}

// Direction returns +1 for BUY and -1 for SELL.
func (s Side) Direction() float64 {
	if s == SideBuy {
		return 1
	}

	return -1
}

// CancelReason identifies which reconciliation rule cancelled a pending order.
type CancelReason string

const (
	CancelReasonRisk              CancelReason = "RISK"
	CancelReasonHistoryDuplicate  CancelReason = "HISTORY_DUPLICATE"
	CancelReasonPendingDuplicate  CancelReason = "PENDING_DUPLICATE"
	CancelReasonPositionDuplicate CancelReason = "POSITION_DUPLICATE"
	// CancelReasonMartingale marks a cancel issued only to recreate the order
	// at escalated volume.
	CancelReasonMartingale CancelReason = "MARTINGALE_RESIZE"
)

// ScalingMode selects how take-profit multiples and volumes are managed for
// an account.
type ScalingMode string

const (
	// ScalingModeMartingale doubles volume on a symbol after a realized loss
	// and keeps take-profit at 1R.
	ScalingModeMartingale ScalingMode = "martingale"
	// ScalingModeConsistency keeps a fixed configured reward multiple.
	ScalingModeConsistency ScalingMode = "consistency"
)

// PricePreference decides which duplicate pending order survives
// reconciliation when several share (symbol, side).
type PricePreference string

const (
	PricePreferenceNone       PricePreference = ""
	PricePreferenceAscending  PricePreference = "ascending"
	PricePreferenceDescending PricePreference = "descending"
)

// InstrumentClass groups symbols by the minimum-distance threshold they
// require between pending entry prices and the current market.
type InstrumentClass string

const (
	InstrumentClassStandard  InstrumentClass = "standard"
	InstrumentClassSynthetic InstrumentClass = "synthetic"
)

// SymbolInfo is the contract metadata for one symbol as reported by the venue.
type SymbolInfo struct {
	Symbol        string          `json:"symbol" yaml:"symbol"`
	TickSize      float64         `json:"tick_size" yaml:"tick_size"`
	TickValue     float64         `json:"tick_value" yaml:"tick_value"`
	VolumeStep    float64         `json:"volume_step" yaml:"volume_step"`
	VolumeMin     float64         `json:"volume_min" yaml:"volume_min"`
	VolumeMax     float64         `json:"volume_max" yaml:"volume_max"`
	Digits        int             `json:"digits" yaml:"digits"`
	Point         float64         `json:"point" yaml:"point"`
	QuoteCurrency string          `json:"quote_currency" yaml:"quote_currency"`
	Class         InstrumentClass `json:"class" yaml:"class"`
}

// PipSize returns the price increment of one pip for the symbol. Symbols
// quoted with coarse ticks (JPY pairs, indices) use the point itself.
func (s SymbolInfo) PipSize() float64 {
	if s.Point >= 0.01 {
		return s.Point
	}

	return s.Point * 10
}

// Tick is a bid/ask snapshot for one symbol.
type Tick struct {
	Bid  float64   `json:"bid" yaml:"bid"`
	Ask  float64   `json:"ask" yaml:"ask"`
	Time time.Time `json:"time" yaml:"time"`
}

// Mid returns the bid/ask midpoint.
func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// AccountInfo represents the venue account state at sweep start.
type AccountInfo struct {
	// Balance is the current cash balance (excluding unrealized P&L)
	Balance float64 `json:"balance" yaml:"balance"`
	// Equity is the total account value (balance + unrealized P&L)
	Equity float64 `json:"equity" yaml:"equity"`
	// Currency is the account deposit currency code, e.g. "USD"
	Currency string `json:"currency" yaml:"currency"`
}

// PendingOrder is the engine's snapshot view of an unfilled limit order
// resting on the venue. It is stale the moment it is taken; ticket existence
// must be re-verified before any mutating call.
type PendingOrder struct {
	Ticket     int64     `json:"ticket" yaml:"ticket"`
	Symbol     string    `json:"symbol" yaml:"symbol"`
	Side       Side      `json:"side" yaml:"side"`
	Price      float64   `json:"price" yaml:"price"`
	StopLoss   float64   `json:"stop_loss" yaml:"stop_loss"`
	TakeProfit float64   `json:"take_profit" yaml:"take_profit"`
	Volume     float64   `json:"volume" yaml:"volume"`
	PlacedAt   time.Time `json:"placed_at" yaml:"placed_at"`
}

// Position is the engine's snapshot view of an open position. Same staleness
// caveat as PendingOrder.
type Position struct {
	Ticket     int64     `json:"ticket" yaml:"ticket"`
	Symbol     string    `json:"symbol" yaml:"symbol"`
	Side       Side      `json:"side" yaml:"side"`
	OpenPrice  float64   `json:"open_price" yaml:"open_price"`
	StopLoss   float64   `json:"stop_loss" yaml:"stop_loss"`
	TakeProfit float64   `json:"take_profit" yaml:"take_profit"`
	Volume     float64   `json:"volume" yaml:"volume"`
	OpenedAt   time.Time `json:"opened_at" yaml:"opened_at"`
	// Profit is the floating P&L in account currency.
	Profit float64 `json:"profit" yaml:"profit"`
}

// HistoryDeal is a closed trade record, windowed by lookback duration.
type HistoryDeal struct {
	Ticket   int64     `json:"ticket" yaml:"ticket"`
	Symbol   string    `json:"symbol" yaml:"symbol"`
	Side     Side      `json:"side" yaml:"side"`
	Price    float64   `json:"price" yaml:"price"`
	StopLoss float64   `json:"stop_loss" yaml:"stop_loss"`
	Volume   float64   `json:"volume" yaml:"volume"`
	Profit   float64   `json:"profit" yaml:"profit"`
	ClosedAt time.Time `json:"closed_at" yaml:"closed_at"`
}

// IsLoss reports whether the deal closed with a realized loss.
func (d HistoryDeal) IsLoss() bool {
	return d.Profit < 0
}
