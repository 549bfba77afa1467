package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/stratumlab/tiersweep/pkg/errors"
)

// OrderSpec is the payload for submitting or modifying a pending limit order.
type OrderSpec struct {
	Symbol     string  `json:"symbol" yaml:"symbol" validate:"required"`
	Side       Side    `json:"side" yaml:"side" validate:"required,oneof=BUY SELL"`
	Price      float64 `json:"price" yaml:"price" validate:"required,gt=0"`
	StopLoss   float64 `json:"stop_loss" yaml:"stop_loss" validate:"gte=0"`
	TakeProfit float64 `json:"take_profit" yaml:"take_profit" validate:"gte=0"`
	Volume     float64 `json:"volume" yaml:"volume" validate:"required,gt=0"`
	// Comment travels to the venue order comment field for audit.
	Comment string `json:"comment" yaml:"comment"`
}

// Validate validates the OrderSpec struct.
func (s *OrderSpec) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrderSpec, "invalid order spec", err)
	}

	return nil
}
