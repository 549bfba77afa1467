package engine

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/stratumlab/tiersweep/internal/audit"
	"github.com/stratumlab/tiersweep/internal/risk"
	"github.com/stratumlab/tiersweep/internal/types"
	"go.uber.org/zap"
)

// placeOrders submits pending limit orders for plan entries that have no
// live counterpart. Placement is idempotent: an entry already represented by
// a pending order on its (symbol, side), or by any open position on its
// symbol, is left alone. Entries whose geometry violates the venue minimum
// distance are pruned from the plan; transient venue rejections keep the
// entry for retry on the next sweep.
func (s *sweep) placeOrders(ctx context.Context, doc *types.PlanDocument) {
	var (
		placements []types.PlacementRecord
		rejections []types.RejectionRecord
	)

	kept := make([]types.PlanEntry, 0, len(doc.Entries))

	for _, entry := range doc.Entries {
		if s.snapshot.HasPositionOn(entry.Symbol) || s.snapshot.HasPendingFor(entry.Symbol, entry.Side) {
			kept = append(kept, entry)

			continue
		}

		info, err := s.symbolInfo(ctx, entry.Symbol)
		if err != nil {
			s.skipEntry(entry, "no symbol metadata", err)

			kept = append(kept, entry)

			continue
		}

		tick, err := s.session.Tick(ctx, entry.Symbol)
		if err != nil {
			s.skipEntry(entry, "no live tick", err)

			kept = append(kept, entry)

			continue
		}

		if reason, ok := s.checkDistances(entry, info, tick); !ok {
			s.log.Info("rejecting plan entry, geometry too close",
				zap.String("symbol", entry.Symbol),
				zap.String("side", string(entry.Side)),
				zap.Float64("entry", entry.Entry),
				zap.String("detail", reason))

			s.summary.Rejected++

			rejections = append(rejections, types.RejectionRecord{
				ID:         uuid.NewString(),
				Symbol:     entry.Symbol,
				Side:       entry.Side,
				Entry:      entry.Entry,
				Reason:     types.RejectReasonDistanceTooClose,
				Detail:     reason,
				RiskAmount: entry.RiskAmount,
				Ceiling:    s.tier.Ceiling,
				RejectedAt: time.Now().UTC(),
			})
			s.record(audit.Record{
				Action: audit.ActionRejected,
				Symbol: entry.Symbol,
				Side:   string(entry.Side),
				Price:  entry.Entry,
				Reason: types.RejectReasonDistanceTooClose,
				Detail: reason,
			})

			continue
		}

		spec := types.OrderSpec{
			Symbol:     entry.Symbol,
			Side:       entry.Side,
			Price:      risk.RoundPrice(entry.Entry, info),
			StopLoss:   risk.RoundPrice(entry.Stop, info),
			TakeProfit: risk.RoundPrice(entry.Target, info),
			Volume:     risk.RoundVolume(entry.Volume, info),
			Comment:    "tiersweep:" + s.tier.Name,
		}

		ticket, err := s.submit(ctx, spec)
		if err != nil {
			// Venue rejections are often transient (spread spikes, session
			// edges); the entry stays in the plan for the next sweep.
			s.log.Warn("venue rejected order submission",
				zap.String("symbol", entry.Symbol),
				zap.String("side", string(entry.Side)),
				zap.Float64("entry", spec.Price),
				zap.Error(err))

			s.record(audit.Record{
				Action: audit.ActionRejected,
				Symbol: entry.Symbol,
				Side:   string(entry.Side),
				Price:  spec.Price,
				Volume: spec.Volume,
				Reason: types.RejectReasonOrderRejected,
				Detail: err.Error(),
			})

			kept = append(kept, entry)

			continue
		}

		s.summary.Placed++

		placements = append(placements, types.PlacementRecord{
			ID:       uuid.NewString(),
			Ticket:   ticket,
			Symbol:   entry.Symbol,
			Side:     entry.Side,
			Price:    spec.Price,
			Volume:   spec.Volume,
			PlacedAt: time.Now().UTC(),
		})
		s.record(audit.Record{
			Action: audit.ActionPlaced,
			Symbol: entry.Symbol,
			Side:   string(entry.Side),
			Ticket: ticket,
			Price:  spec.Price,
			Volume: spec.Volume,
		})

		kept = append(kept, entry)
	}

	removed := len(doc.Entries) - len(kept)
	doc.Entries = kept
	doc.Summary.Rejected += removed

	if s.dryRun {
		return
	}

	if removed > 0 {
		if err := s.plans.Save(doc); err != nil {
			s.log.Warn("failed to persist pruned plan after placement", zap.Error(err))
		}
	}

	if err := s.plans.AppendRejections(s.account.Broker, s.tier.Name, rejections); err != nil {
		s.log.Warn("failed to append rejection report", zap.Error(err))
	}

	if err := s.plans.AppendPlacements(s.account.Broker, s.tier.Name, placements); err != nil {
		s.log.Warn("failed to append placement report", zap.Error(err))
	}
}

// submit validates and sends one order, honoring dry-run.
func (s *sweep) submit(ctx context.Context, spec types.OrderSpec) (int64, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}

	if s.dryRun {
		s.log.Info("dry run, would submit order",
			zap.String("symbol", spec.Symbol),
			zap.String("side", string(spec.Side)),
			zap.Float64("price", spec.Price),
			zap.Float64("volume", spec.Volume))

		return 0, nil
	}

	return s.session.SubmitPendingOrder(ctx, spec)
}

// checkDistances verifies the entry sits far enough from the market and that
// stop and target sit far enough from the entry. Thresholds are per
// instrument class, expressed in pips.
func (s *sweep) checkDistances(entry types.PlanEntry, info types.SymbolInfo, tick types.Tick) (string, bool) {
	minDistance := s.cfg.MinDistanceFor(info.Class) * info.PipSize()
	reference := marketReference(tick, entry.Side)

	switch {
	case math.Abs(entry.Entry-reference) < minDistance:
		return "entry too close to market", false
	case math.Abs(entry.Entry-entry.Stop) < minDistance:
		return "stop too close to entry", false
	case math.Abs(entry.Target-entry.Entry) < minDistance:
		return "target too close to entry", false
	default:
		return "", true
	}
}

// skipEntry records a data-unavailable skip; the entry is retried next sweep.
func (s *sweep) skipEntry(entry types.PlanEntry, why string, err error) {
	s.log.Warn("skipping placement, "+why,
		zap.String("symbol", entry.Symbol),
		zap.String("side", string(entry.Side)),
		zap.Error(err))

	s.summary.Skipped++

	s.record(audit.Record{
		Action: audit.ActionSkipped,
		Symbol: entry.Symbol,
		Side:   string(entry.Side),
		Price:  entry.Entry,
		Reason: types.RejectReasonDataUnavailable,
		Detail: err.Error(),
	})
}
