package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stratumlab/tiersweep/pkg/errors"
)

// PlanEntry is one persisted order plan: a pending limit order the engine
// should maintain on the venue, with the risk figures frozen at plan time.
// The validator recomputes risk from live data before anything downstream
// consumes the entry.
type PlanEntry struct {
	Symbol string  `json:"symbol" yaml:"symbol" validate:"required"`
	Side   Side    `json:"side" yaml:"side" validate:"required,oneof=BUY SELL"`
	Entry  float64 `json:"entry" yaml:"entry" validate:"required,gt=0"`
	Stop   float64 `json:"stop" yaml:"stop" validate:"required,gt=0"`
	Target float64 `json:"target" yaml:"target" validate:"required,gt=0"`
	Volume float64 `json:"volume" yaml:"volume" validate:"required,gt=0"`
	// PipSize and PipValue are the values frozen at plan-creation time.
	PipSize  float64 `json:"pip_size" yaml:"pip_size" validate:"required,gt=0"`
	PipValue float64 `json:"pip_value" yaml:"pip_value" validate:"required,gt=0"`
	// RiskAmount and RewardAmount are in account currency.
	RiskAmount   float64 `json:"risk_amount" yaml:"risk_amount" validate:"required,gt=0"`
	RewardAmount float64 `json:"reward_amount" yaml:"reward_amount" validate:"gte=0"`
	// Timeframe is a free-form tag from upstream planning, e.g. "H4".
	Timeframe string `json:"timeframe" yaml:"timeframe"`
}

// Validate validates the PlanEntry struct.
func (e *PlanEntry) Validate() error {
	validate := validator.New()
	if err := validate.Struct(e); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPlanEntry, "invalid plan entry", err)
	}

	return nil
}

// PlanSummary is the counts block rewritten alongside the entry list on
// every read-modify-write of a plan document.
type PlanSummary struct {
	Total    int `json:"total" yaml:"total"`
	Buys     int `json:"buys" yaml:"buys"`
	Sells    int `json:"sells" yaml:"sells"`
	Rejected int `json:"rejected" yaml:"rejected"`
}

// PlanDocument is the on-disk plan for one (broker, risk tier) pair.
type PlanDocument struct {
	SchemaVersion string      `json:"schema_version" yaml:"schema_version"`
	Broker        string      `json:"broker" yaml:"broker"`
	Tier          string      `json:"tier" yaml:"tier"`
	UpdatedAt     time.Time   `json:"updated_at" yaml:"updated_at"`
	Entries       []PlanEntry `json:"entries" yaml:"entries"`
	Summary       PlanSummary `json:"summary" yaml:"summary"`
}

// Summarize recomputes the summary block from the entry list.
func (d *PlanDocument) Summarize() {
	summary := PlanSummary{Total: len(d.Entries), Buys: 0, Sells: 0, Rejected: d.Summary.Rejected}

	for _, entry := range d.Entries {
		if entry.Side == SideBuy {
			summary.Buys++
		} else {
			summary.Sells++
		}
	}

	d.Summary = summary
}

// RejectionRecord is an audit record appended when the validator prunes an
// entry or the placement engine refuses one.
type RejectionRecord struct {
	ID         string    `json:"id" yaml:"id"`
	Symbol     string    `json:"symbol" yaml:"symbol"`
	Side       Side      `json:"side" yaml:"side"`
	Entry      float64   `json:"entry" yaml:"entry"`
	Reason     string    `json:"reason" yaml:"reason"`
	Detail     string    `json:"detail" yaml:"detail"`
	RiskAmount float64   `json:"risk_amount" yaml:"risk_amount"`
	Ceiling    float64   `json:"ceiling" yaml:"ceiling"`
	RejectedAt time.Time `json:"rejected_at" yaml:"rejected_at"`
}

// Rejection reasons recorded by the validator and placement engine.
const (
	RejectReasonRiskExceedsCeiling = "RISK_EXCEEDS_CEILING"
	RejectReasonCrossRateUnavail   = "CROSS_RATE_UNAVAILABLE"
	RejectReasonDistanceTooClose   = "DISTANCE_TOO_CLOSE"
	RejectReasonDataUnavailable    = "DATA_UNAVAILABLE"
	RejectReasonOrderRejected      = "ORDER_REJECTED"
)

// PlacementRecord is appended for every accepted submission.
type PlacementRecord struct {
	ID       string    `json:"id" yaml:"id"`
	Ticket   int64     `json:"ticket" yaml:"ticket"`
	Symbol   string    `json:"symbol" yaml:"symbol"`
	Side     Side      `json:"side" yaml:"side"`
	Price    float64   `json:"price" yaml:"price"`
	Volume   float64   `json:"volume" yaml:"volume"`
	PlacedAt time.Time `json:"placed_at" yaml:"placed_at"`
}
