package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/stratumlab/tiersweep/pkg/errors"
)

// RiskTier is one named risk bracket: a monetary ceiling plus the balance
// band [BalanceMin, BalanceMax) gating which accounts may use it.
// Immutable configuration, read-only to the engine.
type RiskTier struct {
	Name       string  `json:"name" yaml:"name" validate:"required"`
	Ceiling    float64 `json:"ceiling" yaml:"ceiling" validate:"required,gt=0"`
	BalanceMin float64 `json:"balance_min" yaml:"balance_min" validate:"gte=0"`
	BalanceMax float64 `json:"balance_max" yaml:"balance_max" validate:"required,gtfield=BalanceMin"`
}

// Accepts reports whether an account at the given balance may trade this
// tier. The band is half-open: [BalanceMin, BalanceMax).
func (t RiskTier) Accepts(balance float64) bool {
	return balance >= t.BalanceMin && balance < t.BalanceMax
}

// Validate validates the RiskTier struct.
func (t *RiskTier) Validate() error {
	validate := validator.New()
	if err := validate.Struct(t); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, "invalid risk tier", err)
	}

	return nil
}
