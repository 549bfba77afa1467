// Package venue abstracts the external execution venue behind a session
// interface. Sessions are single-tenant per account: one sweep holds one
// session, and calls are synchronous with explicit timeouts.
package venue

import (
	"context"
	"fmt"
	"time"

	"github.com/stratumlab/tiersweep/internal/types"
	"github.com/stratumlab/tiersweep/pkg/schema"
)

// Gateway opens venue sessions for one account.
type Gateway interface {
	// Connect establishes a session. A failure here aborts the whole
	// account sweep, never the process.
	Connect(ctx context.Context) (Session, error)
}

// Session is a live connection to the venue for one account.
// Snapshot queries (PendingOrders, Positions, HistoryDeals) are stale the
// moment they return; callers must re-verify ticket existence before any
// mutating call.
type Session interface {
	// AccountInfo returns balance, equity, and deposit currency.
	AccountInfo(ctx context.Context) (types.AccountInfo, error)
	// SymbolInfo returns contract metadata for a symbol.
	SymbolInfo(ctx context.Context, symbol string) (types.SymbolInfo, error)
	// Tick returns the current bid/ask for a symbol.
	Tick(ctx context.Context, symbol string) (types.Tick, error)
	// PendingOrders returns all resting limit orders.
	PendingOrders(ctx context.Context) ([]types.PendingOrder, error)
	// Positions returns all open positions.
	Positions(ctx context.Context) ([]types.Position, error)
	// HistoryDeals returns closed deals in [from, to].
	HistoryDeals(ctx context.Context, from, to time.Time) ([]types.HistoryDeal, error)
	// SubmitPendingOrder places a pending limit order and returns its ticket.
	SubmitPendingOrder(ctx context.Context, spec types.OrderSpec) (int64, error)
	// ModifyPendingOrder rewrites price, stops, and volume of a resting order.
	ModifyPendingOrder(ctx context.Context, ticket int64, spec types.OrderSpec) error
	// CancelPendingOrder removes a resting order. An order that is already
	// gone is reported with ErrCodeOrderGone, which callers treat as success.
	CancelPendingOrder(ctx context.Context, ticket int64) error
	// ModifyPositionStops rewrites stop loss and take profit of a position.
	ModifyPositionStops(ctx context.Context, ticket int64, stop, target float64) error
	// Close releases the session.
	Close() error
}

type GatewayType string

const (
	// GatewayBridge talks to a terminal-side HTTP bridge.
	GatewayBridge GatewayType = "bridge"
)

type GatewayInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

var gatewayRegistry = map[GatewayType]GatewayInfo{
	GatewayBridge: {
		Name:        string(GatewayBridge),
		DisplayName: "Terminal Bridge",
		Description: "HTTP bridge exposing a terminal-side execution venue",
	},
}

func GetSupportedGateways() []string {
	gateways := make([]string, 0, len(gatewayRegistry))
	for gatewayType := range gatewayRegistry {
		gateways = append(gateways, string(gatewayType))
	}

	return gateways
}

// GetGatewayInfo returns metadata for a specific gateway adapter.
func GetGatewayInfo(gatewayName string) (GatewayInfo, error) {
	info, exists := gatewayRegistry[GatewayType(gatewayName)]
	if !exists {
		return GatewayInfo{}, fmt.Errorf("unsupported gateway: %s", gatewayName)
	}

	return info, nil
}

// GetGatewayConfigSchema returns the JSON schema for a gateway's configuration.
func GetGatewayConfigSchema(gatewayName string) (string, error) {
	switch GatewayType(gatewayName) {
	case GatewayBridge:
		return schema.ToJSONSchema(BridgeConfig{
			BridgeURL: "",
			Login:     0,
			Password:  "",
			TimeoutS:  0,
		})
	default:
		return "", fmt.Errorf("unsupported gateway: %s", gatewayName)
	}
}

// NewGateway creates a gateway adapter from its type and JSON config blob.
func NewGateway(gatewayType GatewayType, jsonConfig string) (Gateway, error) {
	switch gatewayType {
	case GatewayBridge:
		cfg, err := parseBridgeConfig(jsonConfig)
		if err != nil {
			return nil, err
		}

		return NewBridgeGateway(*cfg), nil
	default:
		return nil, fmt.Errorf("unsupported gateway: %s", gatewayType)
	}
}
