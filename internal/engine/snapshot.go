package engine

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/stratumlab/tiersweep/internal/types"
	"github.com/stratumlab/tiersweep/internal/venue"
)

// pendingKey indexes pending orders by direction.
type pendingKey struct {
	symbol string
	side   types.Side
}

// Snapshot is the engine's view of venue state, taken once at sweep start.
// It is stale by the time any mutating call is issued; mutation paths must
// re-verify ticket existence against the live venue.
type Snapshot struct {
	Pending   []types.PendingOrder
	Positions []types.Position
	History   []types.HistoryDeal

	pendingByKey    map[pendingKey][]types.PendingOrder
	positionsBySym  map[string][]types.Position
	historyBySymbol map[string][]types.HistoryDeal
}

// TakeSnapshot queries pending orders, open positions, and windowed history.
func TakeSnapshot(ctx context.Context, session venue.Session, historyLookback time.Duration) (*Snapshot, error) {
	pending, err := session.PendingOrders(ctx)
	if err != nil {
		return nil, err
	}

	positions, err := session.Positions(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	history, err := session.HistoryDeals(ctx, now.Add(-historyLookback), now)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		Pending:         pending,
		Positions:       positions,
		History:         history,
		pendingByKey:    make(map[pendingKey][]types.PendingOrder),
		positionsBySym:  make(map[string][]types.Position),
		historyBySymbol: make(map[string][]types.HistoryDeal),
	}

	// Deterministic iteration: tickets ascend.
	sort.Slice(snapshot.Pending, func(i, j int) bool {
		return snapshot.Pending[i].Ticket < snapshot.Pending[j].Ticket
	})

	for _, order := range snapshot.Pending {
		key := pendingKey{symbol: order.Symbol, side: order.Side}
		snapshot.pendingByKey[key] = append(snapshot.pendingByKey[key], order)
	}

	for _, position := range snapshot.Positions {
		snapshot.positionsBySym[position.Symbol] = append(snapshot.positionsBySym[position.Symbol], position)
	}

	for _, deal := range snapshot.History {
		snapshot.historyBySymbol[deal.Symbol] = append(snapshot.historyBySymbol[deal.Symbol], deal)
	}

	// Most recent deal first per symbol.
	for symbol := range snapshot.historyBySymbol {
		deals := snapshot.historyBySymbol[symbol]
		sort.Slice(deals, func(i, j int) bool {
			return deals[i].ClosedAt.After(deals[j].ClosedAt)
		})
		snapshot.historyBySymbol[symbol] = deals
	}

	return snapshot, nil
}

// PendingFor returns the pending orders for one (symbol, side), tickets
// ascending.
func (s *Snapshot) PendingFor(symbol string, side types.Side) []types.PendingOrder {
	return s.pendingByKey[pendingKey{symbol: symbol, side: side}]
}

// HasPendingFor reports whether any pending order exists for (symbol, side).
func (s *Snapshot) HasPendingFor(symbol string, side types.Side) bool {
	return len(s.PendingFor(symbol, side)) > 0
}

// HasPositionOn reports whether any position is open on the symbol.
func (s *Snapshot) HasPositionOn(symbol string) bool {
	return len(s.positionsBySym[symbol]) > 0
}

// HasPositionFor reports whether a same-direction position is open.
func (s *Snapshot) HasPositionFor(symbol string, side types.Side) bool {
	for _, position := range s.positionsBySym[symbol] {
		if position.Side == side {
			return true
		}
	}

	return false
}

// HistoryMatch reports whether a closed deal matches (symbol, entry, stop)
// within the given price tolerance.
func (s *Snapshot) HistoryMatch(symbol string, entry, stop, tolerance float64) bool {
	for _, deal := range s.historyBySymbol[symbol] {
		if math.Abs(deal.Price-entry) <= tolerance && math.Abs(deal.StopLoss-stop) <= tolerance {
			return true
		}
	}

	return false
}

// RecentDeals returns the symbol's deals, most recent first.
func (s *Snapshot) RecentDeals(symbol string) []types.HistoryDeal {
	return s.historyBySymbol[symbol]
}
