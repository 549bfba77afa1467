package engine

import (
	"context"
	"math"

	"github.com/stratumlab/tiersweep/internal/audit"
	"github.com/stratumlab/tiersweep/internal/risk"
	"github.com/stratumlab/tiersweep/internal/types"
	"go.uber.org/zap"
)

// advanceBreakeven walks every open position through the staged stop
// checkpoints. A checkpoint at fraction f is reached when the favorable
// price has progressed past entry + f*R; the stop then advances to that
// checkpoint price. Checkpoints are evaluated highest-first, so one sweep
// converges to the furthest checkpoint reached even if earlier stages were
// never individually triggered.
//
// No per-ticket state is persisted. The stage is re-derived every sweep from
// the current stop, and the stop only ever tightens: a proposed stop on the
// wrong side of the current one, or within one price-step tolerance of it,
// is not sent.
func (s *sweep) advanceBreakeven(ctx context.Context) {
	for _, position := range s.snapshot.Positions {
		s.advancePositionStop(ctx, position)
	}
}

func (s *sweep) advancePositionStop(ctx context.Context, position types.Position) {
	if position.StopLoss <= 0 {
		// Unprotected position: nothing to stage against.
		return
	}

	info, err := s.symbolInfo(ctx, position.Symbol)
	if err != nil {
		s.log.Warn("skipping breakeven, no symbol metadata",
			zap.Int64("ticket", position.Ticket),
			zap.String("symbol", position.Symbol),
			zap.Error(err))

		return
	}

	tick, err := s.session.Tick(ctx, position.Symbol)
	if err != nil {
		s.log.Warn("skipping breakeven, no live tick",
			zap.Int64("ticket", position.Ticket),
			zap.String("symbol", position.Symbol),
			zap.Error(err))

		return
	}

	unit := s.riskUnit(position)
	if unit <= 0 {
		return
	}

	direction := position.Side.Direction()
	price := favorablePrice(tick, position.Side)
	tolerance := s.priceTolerance(info)
	checkpoints := s.cfg.Tolerances.BreakevenCheckpoints

	for i := len(checkpoints) - 1; i >= 0; i-- {
		stage := position.OpenPrice + direction*checkpoints[i]*unit
		if direction*(price-stage) <= 0 {
			continue
		}

		proposed := risk.RoundPrice(stage, info)
		if direction*(proposed-position.StopLoss) <= tolerance {
			// Already at or beyond this checkpoint.
			return
		}

		if !s.modifyPositionStops(ctx, position, proposed, position.TakeProfit) {
			return
		}

		s.advancedStops[position.Ticket] = proposed
		s.summary.StopsAdvanced++

		s.log.Info("advanced stop to breakeven checkpoint",
			zap.Int64("ticket", position.Ticket),
			zap.String("symbol", position.Symbol),
			zap.Float64("checkpoint", checkpoints[i]),
			zap.Float64("stop", proposed))

		s.record(audit.Record{
			Action: audit.ActionPositionModified,
			Symbol: position.Symbol,
			Side:   string(position.Side),
			Ticket: position.Ticket,
			Price:  proposed,
			Volume: position.Volume,
			Reason: "breakeven",
		})

		return
	}
}

// riskUnit derives one R in price units for a position. While the stop still
// sits on the losing side of entry the original geometry is intact and R is
// the stop distance. Once the stop has advanced into profit the original
// stop is gone, so R is recovered from the target via the account's reward
// multiple.
func (s *sweep) riskUnit(position types.Position) float64 {
	direction := position.Side.Direction()
	if direction*(position.OpenPrice-position.StopLoss) > 0 {
		return math.Abs(position.OpenPrice - position.StopLoss)
	}

	if position.TakeProfit > 0 {
		return math.Abs(position.TakeProfit-position.OpenPrice) / float64(s.account.EffectiveMultiple())
	}

	return 0
}

// modifyPositionStops issues one stop/target rewrite, honoring dry-run.
// Failures are logged and retried on the next sweep.
func (s *sweep) modifyPositionStops(ctx context.Context, position types.Position, stop, target float64) bool {
	if s.dryRun {
		s.log.Info("dry run, would modify position stops",
			zap.Int64("ticket", position.Ticket),
			zap.String("symbol", position.Symbol),
			zap.Float64("stop", stop),
			zap.Float64("target", target))

		return true
	}

	if err := s.session.ModifyPositionStops(ctx, position.Ticket, stop, target); err != nil {
		s.log.Warn("venue rejected position stop modification",
			zap.Int64("ticket", position.Ticket),
			zap.String("symbol", position.Symbol),
			zap.Error(err))

		return false
	}

	return true
}
