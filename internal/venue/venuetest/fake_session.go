// Package venuetest provides an in-memory venue implementation for tests.
// It tracks pending orders, positions, and history with mutation counters so
// tests can assert idempotence of the sweep.
package venuetest

import (
	"context"
	"sync"
	"time"

	"github.com/stratumlab/tiersweep/internal/types"
	"github.com/stratumlab/tiersweep/internal/venue"
	"github.com/stratumlab/tiersweep/pkg/errors"
)

// FakeGateway hands out a prepared FakeSession.
type FakeGateway struct {
	Session     *FakeSession
	FailConnect bool
}

// Connect implements venue.Gateway.
func (g *FakeGateway) Connect(ctx context.Context) (venue.Session, error) {
	if g.FailConnect {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "fake gateway configured to fail connect")
	}

	return g.Session, nil
}

// FakeSession implements venue.Session with in-memory state.
type FakeSession struct {
	mu sync.RWMutex

	Account types.AccountInfo
	Symbols map[string]types.SymbolInfo
	Ticks   map[string]types.Tick

	orders     map[int64]types.PendingOrder
	positions  map[int64]types.Position
	history    []types.HistoryDeal
	nextTicket int64

	// GoneTickets simulates orders that vanish between snapshot and cancel.
	GoneTickets map[int64]bool

	// Behavior configuration
	FailSubmit     bool
	FailModify     bool
	FailStopModify bool
	FailReason     string

	// Mutation counters
	SubmitCount     int
	ModifyCount     int
	CancelCount     int
	StopModifyCount int
}

// NewFakeSession creates an empty fake session.
func NewFakeSession() *FakeSession {
	return &FakeSession{
		mu:          sync.RWMutex{},
		Account:     types.AccountInfo{Balance: 0, Equity: 0, Currency: "USD"},
		Symbols:     make(map[string]types.SymbolInfo),
		Ticks:       make(map[string]types.Tick),
		orders:      make(map[int64]types.PendingOrder),
		positions:   make(map[int64]types.Position),
		history:     nil,
		nextTicket:  1000,
		GoneTickets: make(map[int64]bool),
	}
}

// AddOrder seeds a pending order and returns its ticket.
func (s *FakeSession) AddOrder(order types.PendingOrder) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.Ticket == 0 {
		s.nextTicket++
		order.Ticket = s.nextTicket
	}

	s.orders[order.Ticket] = order

	return order.Ticket
}

// AddPosition seeds an open position and returns its ticket.
func (s *FakeSession) AddPosition(position types.Position) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if position.Ticket == 0 {
		s.nextTicket++
		position.Ticket = s.nextTicket
	}

	s.positions[position.Ticket] = position

	return position.Ticket
}

// AddDeal seeds a closed history deal.
func (s *FakeSession) AddDeal(deal types.HistoryDeal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, deal)
}

// Order returns the live pending order for a ticket.
func (s *FakeSession) Order(ticket int64) (types.PendingOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[ticket]

	return order, ok
}

// Position returns the live position for a ticket.
func (s *FakeSession) Position(ticket int64) (types.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	position, ok := s.positions[ticket]

	return position, ok
}

func (s *FakeSession) AccountInfo(ctx context.Context) (types.AccountInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Account, nil
}

func (s *FakeSession) SymbolInfo(ctx context.Context, symbol string) (types.SymbolInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.Symbols[symbol]
	if !ok {
		return types.SymbolInfo{}, errors.Newf(errors.ErrCodeSymbolInfoUnavailable, "no contract metadata for symbol %s", symbol)
	}

	return info, nil
}

func (s *FakeSession) Tick(ctx context.Context, symbol string) (types.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tick, ok := s.Ticks[symbol]
	if !ok {
		return types.Tick{}, errors.Newf(errors.ErrCodeTickDataUnavailable, "no tick for symbol %s", symbol)
	}

	return tick, nil
}

func (s *FakeSession) PendingOrders(ctx context.Context) ([]types.PendingOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]types.PendingOrder, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, order)
	}

	return orders, nil
}

func (s *FakeSession) Positions(ctx context.Context) ([]types.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := make([]types.Position, 0, len(s.positions))
	for _, position := range s.positions {
		positions = append(positions, position)
	}

	return positions, nil
}

func (s *FakeSession) HistoryDeals(ctx context.Context, from, to time.Time) ([]types.HistoryDeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var deals []types.HistoryDeal

	for _, deal := range s.history {
		if deal.ClosedAt.Before(from) || deal.ClosedAt.After(to) {
			continue
		}

		deals = append(deals, deal)
	}

	return deals, nil
}

func (s *FakeSession) SubmitPendingOrder(ctx context.Context, spec types.OrderSpec) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.SubmitCount++

	if s.FailSubmit {
		return 0, errors.NewVenueError(errors.ErrCodeOrderRejected, "submit", 0, 10013, s.FailReason)
	}

	s.nextTicket++
	s.orders[s.nextTicket] = types.PendingOrder{
		Ticket:     s.nextTicket,
		Symbol:     spec.Symbol,
		Side:       spec.Side,
		Price:      spec.Price,
		StopLoss:   spec.StopLoss,
		TakeProfit: spec.TakeProfit,
		Volume:     spec.Volume,
		PlacedAt:   time.Now(),
	}

	return s.nextTicket, nil
}

func (s *FakeSession) ModifyPendingOrder(ctx context.Context, ticket int64, spec types.OrderSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ModifyCount++

	if s.FailModify {
		return errors.NewVenueError(errors.ErrCodeModifyRejected, "modify", ticket, 10013, s.FailReason)
	}

	order, ok := s.orders[ticket]
	if !ok {
		return errors.Newf(errors.ErrCodeOrderGone, "order %d no longer exists", ticket)
	}

	order.Price = spec.Price
	order.StopLoss = spec.StopLoss
	order.TakeProfit = spec.TakeProfit
	order.Volume = spec.Volume
	s.orders[ticket] = order

	return nil
}

func (s *FakeSession) CancelPendingOrder(ctx context.Context, ticket int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CancelCount++

	if s.GoneTickets[ticket] {
		delete(s.orders, ticket)

		return errors.Newf(errors.ErrCodeOrderGone, "order %d no longer exists", ticket)
	}

	if _, ok := s.orders[ticket]; !ok {
		return errors.Newf(errors.ErrCodeOrderGone, "order %d no longer exists", ticket)
	}

	delete(s.orders, ticket)

	return nil
}

func (s *FakeSession) ModifyPositionStops(ctx context.Context, ticket int64, stop, target float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.StopModifyCount++

	if s.FailStopModify {
		return errors.NewVenueError(errors.ErrCodeModifyRejected, "modify_stops", ticket, 10013, s.FailReason)
	}

	position, ok := s.positions[ticket]
	if !ok {
		return errors.Newf(errors.ErrCodeTicketNotFound, "position %d not found", ticket)
	}

	position.StopLoss = stop
	position.TakeProfit = target
	s.positions[ticket] = position

	return nil
}

func (s *FakeSession) Close() error {
	return nil
}
