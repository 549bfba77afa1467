package engine

import (
	"context"

	"github.com/stratumlab/tiersweep/internal/risk"
	"github.com/stratumlab/tiersweep/internal/types"
	"go.uber.org/zap"
)

// reconcile cancels pending orders that violate a cancel rule. Rules are
// evaluated in strict priority order and each order is cancelled at most
// once, under the highest-priority reason that applies:
//
//  1. RISK: live recomputed risk exceeds the tier ceiling.
//  2. HISTORY_DUPLICATE: a recently closed deal already traded this setup.
//  3. PENDING_DUPLICATE: another pending order shares (symbol, side).
//  4. POSITION_DUPLICATE: an open position already holds this direction.
//
// The pass restores the uniqueness invariant: afterwards at most one pending
// order exists per (symbol, side) with no same-direction position open.
func (s *sweep) reconcile(ctx context.Context) {
	survivors := s.duplicateSurvivors()

	for _, order := range s.snapshot.Pending {
		reason, violated := s.cancelReason(ctx, order, survivors)
		if !violated {
			continue
		}

		if s.cancelVerified(ctx, order, reason) {
			s.cancelled[order.Ticket] = true
		}
	}
}

// cancelReason returns the highest-priority rule the order violates.
func (s *sweep) cancelReason(ctx context.Context, order types.PendingOrder, survivors map[pendingKey]int64) (types.CancelReason, bool) {
	if s.riskBreached(ctx, order) {
		return types.CancelReasonRisk, true
	}

	// Without symbol metadata the history match degrades to exact prices.
	tolerance := 0.0
	if info, err := s.symbolInfo(ctx, order.Symbol); err == nil {
		tolerance = s.priceTolerance(info)
	}

	if s.snapshot.HistoryMatch(order.Symbol, order.Price, order.StopLoss, tolerance) {
		return types.CancelReasonHistoryDuplicate, true
	}

	key := pendingKey{symbol: order.Symbol, side: order.Side}
	if survivor, ok := survivors[key]; ok && survivor != order.Ticket {
		return types.CancelReasonPendingDuplicate, true
	}

	if s.snapshot.HasPositionFor(order.Symbol, order.Side) {
		return types.CancelReasonPositionDuplicate, true
	}

	return "", false
}

// riskBreached recomputes the order's monetary risk from live data. Missing
// data never triggers a cancel; the check is retried next sweep.
func (s *sweep) riskBreached(ctx context.Context, order types.PendingOrder) bool {
	info, err := s.symbolInfo(ctx, order.Symbol)
	if err != nil {
		s.log.Warn("skipping risk check, no symbol metadata",
			zap.Int64("ticket", order.Ticket),
			zap.String("symbol", order.Symbol),
			zap.Error(err))

		return false
	}

	live, err := risk.LiveRisk(ctx, s.session, info, s.accountInfo.Currency, order.Price, order.StopLoss, order.Volume)
	if err != nil {
		s.log.Warn("skipping risk check, recompute failed",
			zap.Int64("ticket", order.Ticket),
			zap.String("symbol", order.Symbol),
			zap.Error(err))

		return false
	}

	return live > s.tier.Ceiling+s.cfg.Tolerances.CeilingEpsilon
}

// duplicateSurvivors elects one survivor per (symbol, side) that holds more
// than one pending order. Ascending preference keeps the lowest entry price,
// descending the highest; without a preference the oldest ticket survives.
// Price ties fall back to the oldest ticket, which orders first because the
// snapshot sorts tickets ascending.
func (s *sweep) duplicateSurvivors() map[pendingKey]int64 {
	survivors := make(map[pendingKey]int64)

	for key, orders := range s.snapshot.pendingByKey {
		if len(orders) < 2 {
			continue
		}

		best := orders[0]

		for _, candidate := range orders[1:] {
			switch s.account.PricePreference {
			case types.PricePreferenceAscending:
				if candidate.Price < best.Price {
					best = candidate
				}
			case types.PricePreferenceDescending:
				if candidate.Price > best.Price {
					best = candidate
				}
			case types.PricePreferenceNone:
			}
		}

		survivors[key] = best.Ticket
	}

	return survivors
}
