package plan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stratumlab/tiersweep/internal/logger"
	"github.com/stratumlab/tiersweep/internal/risk"
	"github.com/stratumlab/tiersweep/internal/types"
	"github.com/stratumlab/tiersweep/internal/venue"
	"github.com/stratumlab/tiersweep/pkg/errors"
	"go.uber.org/zap"
)

// Validator revalidates persisted plan entries against live venue data and
// prunes entries that would breach the tier ceiling. Pruning is
// authoritative: downstream components consume the pruned plan, and
// re-running the validator on an already-pruned plan is a no-op.
type Validator struct {
	session venue.Session
	tier    types.RiskTier
	// epsilon absorbs rounding when comparing risk to the ceiling.
	epsilon float64
	log     *logger.Logger
}

// NewValidator creates a validator for one (session, tier) pair.
func NewValidator(session venue.Session, tier types.RiskTier, epsilon float64, log *logger.Logger) *Validator {
	return &Validator{
		session: session,
		tier:    tier,
		epsilon: epsilon,
		log:     log,
	}
}

// PruneResult summarizes one validator pass.
type PruneResult struct {
	Kept    int
	Removed int
	// Skipped entries had no usable live data this sweep; they stay in the
	// plan and are retried on the next sweep.
	Skipped    int
	Rejections []types.RejectionRecord
}

// Prune recomputes each entry's risk from live tick data and removes entries
// exceeding the tier ceiling. The document is modified in place; the caller
// persists it.
func (v *Validator) Prune(ctx context.Context, doc *types.PlanDocument, account types.AccountInfo) PruneResult {
	result := PruneResult{Kept: 0, Removed: 0, Skipped: 0, Rejections: nil}
	kept := make([]types.PlanEntry, 0, len(doc.Entries))

	for _, entry := range doc.Entries {
		info, err := v.session.SymbolInfo(ctx, entry.Symbol)
		if err != nil {
			v.log.Warn("skipping plan entry, no symbol metadata",
				zap.String("symbol", entry.Symbol), zap.Error(err))

			result.Skipped++

			kept = append(kept, entry)

			continue
		}

		riskAccount, err := risk.LiveRisk(ctx, v.session, info, account.Currency, entry.Entry, entry.Stop, entry.Volume)

		switch {
		case errors.HasCode(err, errors.ErrCodeTickDataUnavailable):
			// Zero tick value usually means the market is closed; retry
			// next sweep rather than prune.
			v.log.Warn("skipping plan entry, no usable tick value",
				zap.String("symbol", entry.Symbol), zap.Error(err))

			result.Skipped++

			kept = append(kept, entry)

			continue
		case errors.HasCode(err, errors.ErrCodeCrossRateUnavailable):
			v.log.Warn("pruning plan entry, cross rate unavailable",
				zap.String("symbol", entry.Symbol),
				zap.String("account_currency", account.Currency),
				zap.String("quote_currency", info.QuoteCurrency))

			result.Removed++
			result.Rejections = append(result.Rejections, v.rejection(entry, types.RejectReasonCrossRateUnavail, err.Error(), 0))

			continue
		case err != nil:
			v.log.Warn("skipping plan entry, risk recompute failed",
				zap.String("symbol", entry.Symbol), zap.Error(err))

			result.Skipped++

			kept = append(kept, entry)

			continue
		}

		if riskAccount > v.tier.Ceiling+v.epsilon {
			v.log.Info("pruning plan entry, risk exceeds tier ceiling",
				zap.String("symbol", entry.Symbol),
				zap.Float64("risk", riskAccount),
				zap.Float64("ceiling", v.tier.Ceiling))

			result.Removed++
			result.Rejections = append(result.Rejections, v.rejection(entry, types.RejectReasonRiskExceedsCeiling, "", riskAccount))

			continue
		}

		// Keep the plan truthful: the persisted risk reflects live data.
		entry.RiskAmount = riskAccount
		kept = append(kept, entry)
		result.Kept++
	}

	doc.Entries = kept
	doc.Summary.Rejected += result.Removed

	return result
}

func (v *Validator) rejection(entry types.PlanEntry, reason, detail string, riskAmount float64) types.RejectionRecord {
	return types.RejectionRecord{
		ID:         uuid.NewString(),
		Symbol:     entry.Symbol,
		Side:       entry.Side,
		Entry:      entry.Entry,
		Reason:     reason,
		Detail:     detail,
		RiskAmount: riskAmount,
		Ceiling:    v.tier.Ceiling,
		RejectedAt: time.Now().UTC(),
	}
}
