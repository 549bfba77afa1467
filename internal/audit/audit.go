// Package audit records every venue mutation a sweep performs in a DuckDB
// database so that a sweep can be reconstructed after the fact.
package audit

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/stratumlab/tiersweep/pkg/errors"
)

// Action identifies what a sweep did to the venue or the plan.
type Action string

const (
	ActionPlaced           Action = "placed"
	ActionCancelled        Action = "cancelled"
	ActionOrderModified    Action = "order_modified"
	ActionPositionModified Action = "position_modified"
	ActionRejected         Action = "rejected"
	ActionSkipped          Action = "skipped"
)

// Record is one audit row.
type Record struct {
	SweepID string
	Account string
	Broker  string
	Tier    string
	Action  Action
	Symbol  string
	Side    string
	Ticket  int64
	Price   float64
	Volume  float64
	// Reason carries the rule or rejection category, e.g. PENDING_DUPLICATE.
	Reason string
	Detail string
}

// Summary is the per-sweep count breakdown.
type Summary struct {
	Placed            int
	Cancelled         int
	OrdersModified    int
	PositionsModified int
	Rejected          int
	Skipped           int
}

// Store persists audit records. Path ":memory:" keeps the store in memory.
type Store struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

// NewStore opens (or creates) the audit database and ensures the schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAuditWriteFailed, "failed to open audit database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeAuditWriteFailed, "failed to connect to audit database", err)
	}

	store := &Store{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sweep_actions (
			id TEXT PRIMARY KEY,
			sweep_id TEXT,
			account TEXT,
			broker TEXT,
			tier TEXT,
			action TEXT,
			symbol TEXT,
			side TEXT,
			ticket BIGINT,
			price DOUBLE,
			volume DOUBLE,
			reason TEXT,
			detail TEXT,
			created_at TIMESTAMP
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAuditWriteFailed, "failed to create sweep_actions table", err)
	}

	return nil
}

// Append writes one record.
func (s *Store) Append(record Record) error {
	insert := s.sq.
		Insert("sweep_actions").
		Columns("id", "sweep_id", "account", "broker", "tier", "action", "symbol",
			"side", "ticket", "price", "volume", "reason", "detail", "created_at").
		Values(uuid.NewString(), record.SweepID, record.Account, record.Broker, record.Tier,
			string(record.Action), record.Symbol, record.Side, record.Ticket,
			record.Price, record.Volume, record.Reason, record.Detail, time.Now().UTC()).
		RunWith(s.db)

	if _, err := insert.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeAuditWriteFailed, "failed to insert audit record", err)
	}

	return nil
}

// SweepSummary counts the recorded actions for one sweep.
func (s *Store) SweepSummary(sweepID string) (Summary, error) {
	query := s.sq.
		Select("action", "COUNT(*)").
		From("sweep_actions").
		Where(squirrel.Eq{"sweep_id": sweepID}).
		GroupBy("action").
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return Summary{}, errors.Wrap(errors.ErrCodeAuditQueryFailed, "failed to query sweep summary", err)
	}
	defer rows.Close()

	var summary Summary

	for rows.Next() {
		var (
			action string
			count  int
		)

		if err := rows.Scan(&action, &count); err != nil {
			return Summary{}, errors.Wrap(errors.ErrCodeAuditQueryFailed, "failed to scan sweep summary row", err)
		}

		switch Action(action) {
		case ActionPlaced:
			summary.Placed = count
		case ActionCancelled:
			summary.Cancelled = count
		case ActionOrderModified:
			summary.OrdersModified = count
		case ActionPositionModified:
			summary.PositionsModified = count
		case ActionRejected:
			summary.Rejected = count
		case ActionSkipped:
			summary.Skipped = count
		}
	}

	return summary, rows.Err()
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}
