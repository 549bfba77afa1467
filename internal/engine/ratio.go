package engine

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/stratumlab/tiersweep/internal/audit"
	"github.com/stratumlab/tiersweep/internal/risk"
	"github.com/stratumlab/tiersweep/internal/types"
	"go.uber.org/zap"
)

// maxEscalations bounds how many recent losing deals trigger volume
// escalation in one sweep.
const maxEscalations = 2

// resyncTargets keeps take-profits aligned to the account's effective reward
// multiple: target = entry + direction * multiple * |entry - stop|. Only
// orders and positions carrying both a stop and a target participate, and a
// modify is issued only when the live target drifts beyond the price-step
// tolerance.
func (s *sweep) resyncTargets(ctx context.Context) {
	multiple := float64(s.account.EffectiveMultiple())

	for _, order := range s.snapshot.Pending {
		if s.cancelled[order.Ticket] || order.StopLoss <= 0 || order.TakeProfit <= 0 {
			continue
		}

		info, err := s.symbolInfo(ctx, order.Symbol)
		if err != nil {
			s.log.Warn("skipping target resync, no symbol metadata",
				zap.Int64("ticket", order.Ticket),
				zap.String("symbol", order.Symbol),
				zap.Error(err))

			continue
		}

		direction := order.Side.Direction()
		want := risk.RoundPrice(order.Price+direction*multiple*math.Abs(order.Price-order.StopLoss), info)

		if math.Abs(want-order.TakeProfit) <= s.priceTolerance(info) {
			continue
		}

		spec := types.OrderSpec{
			Symbol:     order.Symbol,
			Side:       order.Side,
			Price:      order.Price,
			StopLoss:   order.StopLoss,
			TakeProfit: want,
			Volume:     order.Volume,
			Comment:    "tiersweep:" + s.tier.Name,
		}

		if !s.modifyPending(ctx, order, spec) {
			continue
		}

		s.summary.TargetsResynced++

		s.record(audit.Record{
			Action: audit.ActionOrderModified,
			Symbol: order.Symbol,
			Side:   string(order.Side),
			Ticket: order.Ticket,
			Price:  want,
			Volume: order.Volume,
			Reason: "target_resync",
		})
	}

	for _, position := range s.snapshot.Positions {
		if position.StopLoss <= 0 || position.TakeProfit <= 0 {
			continue
		}

		direction := position.Side.Direction()

		// Only while the original geometry is intact: once the stop has
		// advanced into profit, the stop distance no longer measures R and
		// retargeting from it would drag the take-profit toward entry.
		if direction*(position.OpenPrice-position.StopLoss) <= 0 {
			continue
		}

		info, err := s.symbolInfo(ctx, position.Symbol)
		if err != nil {
			s.log.Warn("skipping target resync, no symbol metadata",
				zap.Int64("ticket", position.Ticket),
				zap.String("symbol", position.Symbol),
				zap.Error(err))

			continue
		}

		want := risk.RoundPrice(position.OpenPrice+direction*multiple*math.Abs(position.OpenPrice-position.StopLoss), info)
		if math.Abs(want-position.TakeProfit) <= s.priceTolerance(info) {
			continue
		}

		// Breakeven may have moved the stop after the snapshot was taken.
		currentStop := position.StopLoss
		if advanced, ok := s.advancedStops[position.Ticket]; ok {
			currentStop = advanced
		}

		if !s.modifyPositionStops(ctx, position, currentStop, want) {
			continue
		}

		s.summary.TargetsResynced++

		s.record(audit.Record{
			Action: audit.ActionPositionModified,
			Symbol: position.Symbol,
			Side:   string(position.Side),
			Ticket: position.Ticket,
			Price:  want,
			Volume: position.Volume,
			Reason: "target_resync",
		})
	}
}

// modifyPending issues one full pending-order rewrite, honoring dry-run.
func (s *sweep) modifyPending(ctx context.Context, order types.PendingOrder, spec types.OrderSpec) bool {
	if s.dryRun {
		s.log.Info("dry run, would modify pending order",
			zap.Int64("ticket", order.Ticket),
			zap.String("symbol", order.Symbol),
			zap.Float64("target", spec.TakeProfit))

		return true
	}

	if err := s.session.ModifyPendingOrder(ctx, order.Ticket, spec); err != nil {
		s.log.Warn("venue rejected pending order modification",
			zap.Int64("ticket", order.Ticket),
			zap.String("symbol", order.Symbol),
			zap.Error(err))

		return false
	}

	return true
}

// applyMartingale escalates pending volume after realized losses. For the
// most recent losing deals on allow-listed symbols within the lookback
// window, a pending order still resting on that symbol at less than twice
// the lost volume is cancelled and recreated at double volume with identical
// price, stop, and target. Venues commonly refuse volume changes on modify,
// hence delete plus recreate.
func (s *sweep) applyMartingale(ctx context.Context) {
	if s.account.ScalingMode != types.ScalingModeMartingale {
		return
	}

	cutoff := time.Now().Add(-s.cfg.Tolerances.MartingaleLookback)

	var losses []types.HistoryDeal

	for _, deal := range s.snapshot.History {
		if deal.IsLoss() && deal.ClosedAt.After(cutoff) && s.account.AllowsMartingale(deal.Symbol) {
			losses = append(losses, deal)
		}
	}

	sort.Slice(losses, func(i, j int) bool {
		return losses[i].ClosedAt.After(losses[j].ClosedAt)
	})

	seen := make(map[string]bool)
	inspected := 0

	for _, deal := range losses {
		if inspected >= maxEscalations {
			break
		}

		if seen[deal.Symbol] {
			continue
		}

		seen[deal.Symbol] = true
		inspected++

		s.escalateSymbol(ctx, deal)
	}
}

// escalateSymbol cancels and recreates under-sized pending orders on the
// symbol of one losing deal.
func (s *sweep) escalateSymbol(ctx context.Context, deal types.HistoryDeal) {
	info, err := s.symbolInfo(ctx, deal.Symbol)
	if err != nil {
		s.log.Warn("skipping volume escalation, no symbol metadata",
			zap.String("symbol", deal.Symbol), zap.Error(err))

		return
	}

	doubled := risk.RoundVolume(2*deal.Volume, info)

	orders := make([]types.PendingOrder, 0, 2)
	orders = append(orders, s.snapshot.PendingFor(deal.Symbol, types.SideBuy)...)
	orders = append(orders, s.snapshot.PendingFor(deal.Symbol, types.SideSell)...)

	for _, order := range orders {
		if s.cancelled[order.Ticket] || order.Volume >= 2*deal.Volume {
			continue
		}

		if !s.cancelVerified(ctx, order, types.CancelReasonMartingale) {
			continue
		}

		s.cancelled[order.Ticket] = true

		spec := types.OrderSpec{
			Symbol:     order.Symbol,
			Side:       order.Side,
			Price:      order.Price,
			StopLoss:   order.StopLoss,
			TakeProfit: order.TakeProfit,
			Volume:     doubled,
			Comment:    "tiersweep:martingale",
		}

		ticket, err := s.submit(ctx, spec)
		if err != nil {
			// The plan entry survives, so the next sweep re-places the
			// order, at original volume.
			s.log.Warn("failed to recreate order at escalated volume",
				zap.String("symbol", order.Symbol),
				zap.Float64("volume", doubled),
				zap.Error(err))

			s.record(audit.Record{
				Action: audit.ActionRejected,
				Symbol: order.Symbol,
				Side:   string(order.Side),
				Price:  order.Price,
				Volume: doubled,
				Reason: types.RejectReasonOrderRejected,
				Detail: err.Error(),
			})

			continue
		}

		s.summary.VolumeEscalations++

		s.log.Info("escalated pending volume after loss",
			zap.String("symbol", order.Symbol),
			zap.Float64("lost_volume", deal.Volume),
			zap.Float64("volume", doubled),
			zap.Int64("ticket", ticket))

		s.record(audit.Record{
			Action: audit.ActionPlaced,
			Symbol: order.Symbol,
			Side:   string(order.Side),
			Ticket: ticket,
			Price:  order.Price,
			Volume: doubled,
			Reason: "martingale",
		})
	}
}
