// Package engine implements one reconciliation sweep for one broker
// account: prune the plan, place missing orders, cancel violators, advance
// stops through breakeven checkpoints, and resync take-profits.
//
// A sweep is a sequential, single-threaded pass; the venue session is
// single-tenant per account. Accounts are independent and may be swept
// concurrently by the caller.
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/stratumlab/tiersweep/internal/audit"
	"github.com/stratumlab/tiersweep/internal/config"
	"github.com/stratumlab/tiersweep/internal/logger"
	"github.com/stratumlab/tiersweep/internal/plan"
	"github.com/stratumlab/tiersweep/internal/types"
	"github.com/stratumlab/tiersweep/internal/venue"
	"github.com/stratumlab/tiersweep/pkg/errors"
	"go.uber.org/zap"
)

// Summary is the per-sweep outcome, always produced even when individual
// operations fail.
type Summary struct {
	SweepID string
	Account string
	Tier    string

	Placed            int
	Cancelled         int
	Rejected          int
	Skipped           int
	StopsAdvanced     int
	TargetsResynced   int
	VolumeEscalations int

	CancelsByReason map[types.CancelReason]int
}

func newSummary(sweepID, account string) Summary {
	return Summary{
		SweepID:         sweepID,
		Account:         account,
		CancelsByReason: make(map[types.CancelReason]int),
	}
}

// Sweeper runs sweeps for one configured account. It holds no venue state
// between runs; every Run opens a fresh session.
type Sweeper struct {
	cfg     *config.Config
	account config.AccountConfig
	gateway venue.Gateway
	plans   *plan.Store
	audits  *audit.Store
	log     *logger.Logger

	// DryRun counts intended mutations without issuing them.
	DryRun bool
}

// NewSweeper creates a sweeper for one account.
func NewSweeper(cfg *config.Config, account config.AccountConfig, gateway venue.Gateway, plans *plan.Store, audits *audit.Store, log *logger.Logger) *Sweeper {
	return &Sweeper{
		cfg:     cfg,
		account: account,
		gateway: gateway,
		plans:   plans,
		audits:  audits,
		log:     log,
		DryRun:  false,
	}
}

// sweep carries the state of one in-flight pass.
type sweep struct {
	id          string
	cfg         *config.Config
	account     config.AccountConfig
	session     venue.Session
	tier        types.RiskTier
	accountInfo types.AccountInfo
	plans       *plan.Store
	audits      *audit.Store
	log         *logger.Logger
	dryRun      bool

	symbols map[string]types.SymbolInfo
	// cancelled tracks tickets removed this sweep so later phases skip them.
	cancelled map[int64]bool
	// advancedStops holds stops moved this sweep; later phases must not
	// rewrite a position with the stale snapshot stop.
	advancedStops map[int64]float64
	snapshot      *Snapshot
	summary       Summary
}

// Run executes one full sweep. A connect or login failure aborts only this
// account's sweep; every narrower failure is contained at the entry or
// ticket it concerns.
func (s *Sweeper) Run(ctx context.Context) (Summary, error) {
	sweepID := uuid.NewString()
	summary := newSummary(sweepID, s.account.Name)

	log := s.log.With(
		zap.String("sweep_id", sweepID),
		zap.String("account", s.account.Name),
		zap.String("broker", s.account.Broker),
	)

	session, err := s.gateway.Connect(ctx)
	if err != nil {
		log.Error("connect failed, skipping account sweep", zap.Error(err))

		return summary, errors.Wrapf(errors.ErrCodeConnectionFailed, err, "account %s: connect failed", s.account.Name)
	}
	defer session.Close()

	accountInfo, err := session.AccountInfo(ctx)
	if err != nil {
		log.Error("account snapshot failed, skipping account sweep", zap.Error(err))

		return summary, err
	}

	tier, err := s.cfg.TierFor(accountInfo.Balance)
	if err != nil {
		log.Error("no risk tier for balance, skipping account sweep",
			zap.Float64("balance", accountInfo.Balance), zap.Error(err))

		return summary, err
	}

	summary.Tier = tier.Name
	log = log.With(zap.String("tier", tier.Name))

	run := &sweep{
		id:            sweepID,
		cfg:           s.cfg,
		account:       s.account,
		session:       session,
		tier:          tier,
		accountInfo:   accountInfo,
		plans:         s.plans,
		audits:        s.audits,
		log:           log,
		dryRun:        s.DryRun,
		symbols:       make(map[string]types.SymbolInfo),
		cancelled:     make(map[int64]bool),
		advancedStops: make(map[int64]float64),
		snapshot:      nil,
		summary:       summary,
	}

	doc, err := run.prunePlan(ctx)
	if err != nil {
		// A malformed plan document skips this account; others continue.
		log.Error("plan document unusable, skipping account sweep", zap.Error(err))

		return run.summary, err
	}

	snapshot, err := TakeSnapshot(ctx, session, s.cfg.Tolerances.HistoryLookback)
	if err != nil {
		log.Error("venue snapshot failed, skipping account sweep", zap.Error(err))

		return run.summary, err
	}

	run.snapshot = snapshot

	run.placeOrders(ctx, doc)

	// Placement changed the order book; reconcile against a fresh view.
	snapshot, err = TakeSnapshot(ctx, session, s.cfg.Tolerances.HistoryLookback)
	if err != nil {
		log.Error("venue snapshot failed, skipping reconciliation", zap.Error(err))

		return run.summary, err
	}

	run.snapshot = snapshot

	run.reconcile(ctx)
	run.advanceBreakeven(ctx)
	run.resyncTargets(ctx)
	run.applyMartingale(ctx)

	log.Info("sweep complete",
		zap.Int("placed", run.summary.Placed),
		zap.Int("cancelled", run.summary.Cancelled),
		zap.Int("rejected", run.summary.Rejected),
		zap.Int("skipped", run.summary.Skipped),
		zap.Int("stops_advanced", run.summary.StopsAdvanced),
		zap.Int("targets_resynced", run.summary.TargetsResynced),
		zap.Int("volume_escalations", run.summary.VolumeEscalations),
	)

	return run.summary, nil
}

// prunePlan loads, revalidates, and rewrites the plan document.
func (s *sweep) prunePlan(ctx context.Context) (*types.PlanDocument, error) {
	doc, err := s.plans.Load(s.account.Broker, s.tier.Name)
	if err != nil {
		return nil, err
	}

	validator := plan.NewValidator(s.session, s.tier, s.cfg.Tolerances.CeilingEpsilon, s.log)
	result := validator.Prune(ctx, doc, s.accountInfo)

	s.summary.Rejected += result.Removed
	s.summary.Skipped += result.Skipped

	for _, rejection := range result.Rejections {
		s.record(audit.Record{
			Action: audit.ActionRejected,
			Symbol: rejection.Symbol,
			Side:   string(rejection.Side),
			Price:  rejection.Entry,
			Reason: rejection.Reason,
			Detail: rejection.Detail,
		})
	}

	if s.dryRun {
		return doc, nil
	}

	if err := s.plans.Save(doc); err != nil {
		return nil, err
	}

	if err := s.plans.AppendRejections(s.account.Broker, s.tier.Name, result.Rejections); err != nil {
		s.log.Warn("failed to append rejection report", zap.Error(err))
	}

	return doc, nil
}

// symbolInfo fetches contract metadata once per sweep per symbol.
func (s *sweep) symbolInfo(ctx context.Context, symbol string) (types.SymbolInfo, error) {
	if info, ok := s.symbols[symbol]; ok {
		return info, nil
	}

	info, err := s.session.SymbolInfo(ctx, symbol)
	if err != nil {
		return types.SymbolInfo{}, err
	}

	s.symbols[symbol] = info

	return info, nil
}

// priceTolerance is the modify threshold for a symbol in price units.
func (s *sweep) priceTolerance(info types.SymbolInfo) float64 {
	return float64(s.cfg.Tolerances.PriceTolerancePoints) * info.Point
}

// record mirrors one action into the audit store. Audit failures never
// abort a sweep.
func (s *sweep) record(record audit.Record) {
	record.SweepID = s.id
	record.Account = s.account.Name
	record.Broker = s.account.Broker
	record.Tier = s.tier.Name

	if err := s.audits.Append(record); err != nil {
		s.log.Warn("failed to write audit record", zap.Error(err))
	}
}

// cancelVerified re-verifies the ticket still exists, then cancels it.
// "Order no longer exists" is success: the desired end state holds.
func (s *sweep) cancelVerified(ctx context.Context, order types.PendingOrder, reason types.CancelReason) bool {
	if s.dryRun {
		s.countCancel(order, reason)

		return true
	}

	live, err := s.session.PendingOrders(ctx)
	if err != nil {
		s.log.Warn("pre-cancel verification failed",
			zap.Int64("ticket", order.Ticket), zap.Error(err))

		return false
	}

	found := false

	for _, candidate := range live {
		if candidate.Ticket == order.Ticket {
			found = true

			break
		}
	}

	if !found {
		s.log.Info("order vanished before cancel, treating as done",
			zap.Int64("ticket", order.Ticket), zap.String("reason", string(reason)))
		s.countCancel(order, reason)

		return true
	}

	err = s.session.CancelPendingOrder(ctx, order.Ticket)
	if err != nil && !errors.HasCode(err, errors.ErrCodeOrderGone) {
		s.log.Warn("cancel rejected by venue",
			zap.Int64("ticket", order.Ticket),
			zap.String("symbol", order.Symbol),
			zap.String("reason", string(reason)),
			zap.Error(err))

		return false
	}

	s.countCancel(order, reason)

	return true
}

func (s *sweep) countCancel(order types.PendingOrder, reason types.CancelReason) {
	s.summary.Cancelled++
	s.summary.CancelsByReason[reason]++

	s.record(audit.Record{
		Action: audit.ActionCancelled,
		Symbol: order.Symbol,
		Side:   string(order.Side),
		Ticket: order.Ticket,
		Price:  order.Price,
		Volume: order.Volume,
		Reason: string(reason),
	})
}

// marketReference is the venue price a limit entry competes against: ask for
// buys, bid for sells.
func marketReference(tick types.Tick, side types.Side) float64 {
	if side == types.SideBuy {
		return tick.Ask
	}

	return tick.Bid
}

// favorablePrice is the price that closes the position: bid for longs, ask
// for shorts.
func favorablePrice(tick types.Tick, side types.Side) float64 {
	if side == types.SideBuy {
		return tick.Bid
	}

	return tick.Ask
}
