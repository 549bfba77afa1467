// Package risk converts monetary risk amounts into stop/target prices and
// position sizes using venue contract metadata.
package risk

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/stratumlab/tiersweep/internal/types"
	"github.com/stratumlab/tiersweep/pkg/errors"
)

// Input describes one sizing request.
type Input struct {
	// Risk is the monetary amount to put at risk, in account currency.
	Risk float64
	// Entry is the intended limit entry price.
	Entry float64
	Side  types.Side
	// Multiple is the reward multiple expressing target distance in R.
	Multiple int
	// Volume is the requested position size before step rounding.
	Volume float64
	Symbol types.SymbolInfo
	// AnchorStop pins the stop to an external structural level; the target
	// is then derived to satisfy the reward multiple.
	AnchorStop optional.Option[float64]
	// AnchorTarget pins the target; the stop is derived instead.
	AnchorTarget optional.Option[float64]
}

// Result is the computed order geometry.
type Result struct {
	Stop   float64
	Target float64
	// Volume is the step-rounded, clamped position size.
	Volume float64
	// PipValue is the monetary value of one pip at the rounded volume.
	PipValue float64
	// RiskAmount is recomputed from the rounded stop distance.
	RiskAmount float64
	// RewardAmount is recomputed from the rounded target distance.
	RewardAmount float64
}

// RoundPrice rounds a price to the symbol's native decimal precision.
func RoundPrice(price float64, info types.SymbolInfo) float64 {
	rounded, _ := decimal.NewFromFloat(price).Round(int32(info.Digits)).Float64()

	return rounded
}

// RoundVolume floors a volume to the symbol's volume step and clamps it to
// [VolumeMin, VolumeMax].
func RoundVolume(volume float64, info types.SymbolInfo) float64 {
	if info.VolumeStep > 0 {
		step := decimal.NewFromFloat(info.VolumeStep)
		steps := decimal.NewFromFloat(volume).Div(step).Floor()
		volume, _ = steps.Mul(step).Float64()
	}

	return math.Min(math.Max(volume, info.VolumeMin), info.VolumeMax)
}

// PipValue returns the monetary value of one pip for the given volume.
// A missing or zero tick value yields an error; the caller must reject the
// entry rather than default to an arbitrary price.
func PipValue(info types.SymbolInfo, volume float64) (float64, error) {
	if info.TickValue <= 0 || info.TickSize <= 0 {
		return 0, errors.Newf(errors.ErrCodeTickDataUnavailable, "symbol %s has no usable tick value", info.Symbol)
	}

	return info.TickValue * (info.PipSize() / info.TickSize) * volume, nil
}

// Compute derives stop, target, and size for one entry.
//
// Two price-derivation modes: with no anchors, stop and target are both
// computed from the risk amount and reward multiple; with an anchor, the
// anchored level is kept and the counterpart is derived to satisfy the
// multiple. Output prices are rounded to the symbol precision and the risk
// and reward amounts are recomputed from the rounded geometry.
func Compute(input Input) (Result, error) {
	if input.Risk <= 0 || input.Entry <= 0 || input.Volume <= 0 {
		return Result{}, errors.New(errors.ErrCodeInvalidParameter, "risk, entry, and volume must be positive")
	}

	multiple := input.Multiple
	if multiple < 1 {
		multiple = 1
	}

	volume := RoundVolume(input.Volume, input.Symbol)
	if volume <= 0 {
		return Result{}, errors.Newf(errors.ErrCodeInvalidVolume, "volume %f rounds to zero for symbol %s", input.Volume, input.Symbol.Symbol)
	}

	perPip, err := PipValue(input.Symbol, volume)
	if err != nil {
		return Result{}, err
	}

	pipSize := input.Symbol.PipSize()
	direction := input.Side.Direction()

	var stop, target float64

	switch {
	case input.AnchorStop.IsSome():
		stop = input.AnchorStop.Unwrap()

		distance := math.Abs(input.Entry - stop)
		if distance <= 0 {
			return Result{}, errors.New(errors.ErrCodeStopsTooTight, "anchored stop coincides with entry")
		}

		target = input.Entry + direction*float64(multiple)*distance
	case input.AnchorTarget.IsSome():
		target = input.AnchorTarget.Unwrap()

		distance := math.Abs(target-input.Entry) / float64(multiple)
		if distance <= 0 {
			return Result{}, errors.New(errors.ErrCodeStopsTooTight, "anchored target coincides with entry")
		}

		stop = input.Entry - direction*distance
	default:
		pips := input.Risk / perPip

		distance := pips * pipSize
		stop = input.Entry - direction*distance
		target = input.Entry + direction*float64(multiple)*distance
	}

	stop = RoundPrice(stop, input.Symbol)
	target = RoundPrice(target, input.Symbol)

	stopDistance := math.Abs(input.Entry - stop)
	targetDistance := math.Abs(target - input.Entry)

	return Result{
		Stop:         stop,
		Target:       target,
		Volume:       volume,
		PipValue:     perPip,
		RiskAmount:   stopDistance / pipSize * perPip,
		RewardAmount: targetDistance / pipSize * perPip,
	}, nil
}
