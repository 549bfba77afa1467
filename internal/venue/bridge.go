package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stratumlab/tiersweep/internal/types"
	"github.com/stratumlab/tiersweep/pkg/errors"
)

const (
	defaultBridgeTimeout = 30 * time.Second

	// Bridge-level result codes. Anything else is passed through verbatim
	// inside a VenueError.
	bridgeCodeOK        = 0
	bridgeCodeOrderGone = 404
)

// bridgeEnvelope is the uniform response wrapper of the terminal bridge.
type bridgeEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// BridgeGateway connects to a terminal-side HTTP bridge.
type BridgeGateway struct {
	config BridgeConfig
}

// NewBridgeGateway creates a gateway for the given bridge configuration.
func NewBridgeGateway(config BridgeConfig) *BridgeGateway {
	return &BridgeGateway{config: config}
}

// Connect logs in to the bridge and verifies the session with an account
// snapshot. Any failure is reported as a connection error so the caller can
// skip the whole account sweep.
func (g *BridgeGateway) Connect(ctx context.Context) (Session, error) {
	session := newBridgeSession(g.config)

	body := map[string]any{"login": g.config.Login, "password": g.config.Password}
	if _, err := session.call(ctx, http.MethodPost, "/session", body, nil); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeConnectionFailed, err, "failed to open bridge session for login %d", g.config.Login)
	}

	// A session that cannot produce an account snapshot is unusable.
	if _, err := session.AccountInfo(ctx); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeConnectionFailed, err, "bridge session for login %d is not ready", g.config.Login)
	}

	return session, nil
}

type bridgeSession struct {
	// read retries transient transport failures; snapshot queries are safe
	// to repeat.
	read *resty.Client
	// write never retries. A submit, modify, or cancel that times out may
	// already have reached the venue; re-sending it would create duplicate
	// live exposure. The next scheduled sweep is the retry.
	write *resty.Client
	login int64
}

func newBridgeSession(config BridgeConfig) *bridgeSession {
	timeout := defaultBridgeTimeout
	if config.TimeoutS > 0 {
		timeout = time.Duration(config.TimeoutS) * time.Second
	}

	read := resty.New().
		SetBaseURL(config.BridgeURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	write := resty.New().
		SetBaseURL(config.BridgeURL).
		SetTimeout(timeout)

	return &bridgeSession{read: read, write: write, login: config.Login}
}

// clientFor routes reads through the retrying client and everything else
// through the non-retrying one.
func (s *bridgeSession) clientFor(method string) *resty.Client {
	if method == http.MethodGet {
		return s.read
	}

	return s.write
}

// call performs one bridge request and decodes the envelope. A non-zero
// bridge code is returned as an error; the caller decides the error class.
func (s *bridgeSession) call(ctx context.Context, method, path string, body any, out any) (*bridgeEnvelope, error) {
	req := s.clientFor(method).R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("login", fmt.Sprintf("%d", s.login))

	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeRequestTimeout, err, "bridge request %s %s failed", method, path)
	}

	var envelope bridgeEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeConnectionFailed, err, "bridge returned malformed response for %s %s", method, path)
	}

	if envelope.Code != bridgeCodeOK {
		return &envelope, fmt.Errorf("bridge code %d: %s", envelope.Code, envelope.Message)
	}

	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeConnectionFailed, err, "failed to decode bridge payload for %s %s", method, path)
		}
	}

	return &envelope, nil
}

func (s *bridgeSession) AccountInfo(ctx context.Context) (types.AccountInfo, error) {
	var info types.AccountInfo
	if _, err := s.call(ctx, http.MethodGet, "/account", nil, &info); err != nil {
		return types.AccountInfo{}, errors.Wrap(errors.ErrCodeAccountInfoFailed, "failed to fetch account snapshot", err)
	}

	return info, nil
}

func (s *bridgeSession) SymbolInfo(ctx context.Context, symbol string) (types.SymbolInfo, error) {
	var info types.SymbolInfo
	if _, err := s.call(ctx, http.MethodGet, "/symbols/"+symbol, nil, &info); err != nil {
		return types.SymbolInfo{}, errors.Wrapf(errors.ErrCodeSymbolInfoUnavailable, err, "no contract metadata for symbol %s", symbol)
	}

	return info, nil
}

func (s *bridgeSession) Tick(ctx context.Context, symbol string) (types.Tick, error) {
	var tick types.Tick
	if _, err := s.call(ctx, http.MethodGet, "/ticks/"+symbol, nil, &tick); err != nil {
		return types.Tick{}, errors.Wrapf(errors.ErrCodeTickDataUnavailable, err, "no tick for symbol %s", symbol)
	}

	return tick, nil
}

func (s *bridgeSession) PendingOrders(ctx context.Context) ([]types.PendingOrder, error) {
	var orders []types.PendingOrder
	if _, err := s.call(ctx, http.MethodGet, "/orders", nil, &orders); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConnectionFailed, "failed to list pending orders", err)
	}

	return orders, nil
}

func (s *bridgeSession) Positions(ctx context.Context) ([]types.Position, error) {
	var positions []types.Position
	if _, err := s.call(ctx, http.MethodGet, "/positions", nil, &positions); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConnectionFailed, "failed to list positions", err)
	}

	return positions, nil
}

func (s *bridgeSession) HistoryDeals(ctx context.Context, from, to time.Time) ([]types.HistoryDeal, error) {
	var deals []types.HistoryDeal

	req := s.read.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("login", fmt.Sprintf("%d", s.login)).
		SetQueryParam("from", from.UTC().Format(time.RFC3339)).
		SetQueryParam("to", to.UTC().Format(time.RFC3339))

	resp, err := req.Get("/history/deals")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeHistoryUnavailable, "history query failed", err)
	}

	var envelope bridgeEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, errors.Wrap(errors.ErrCodeHistoryUnavailable, "bridge returned malformed history response", err)
	}

	if envelope.Code != bridgeCodeOK {
		return nil, errors.Newf(errors.ErrCodeHistoryUnavailable, "bridge code %d: %s", envelope.Code, envelope.Message)
	}

	if envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, &deals); err != nil {
			return nil, errors.Wrap(errors.ErrCodeHistoryUnavailable, "failed to decode history payload", err)
		}
	}

	return deals, nil
}

func (s *bridgeSession) SubmitPendingOrder(ctx context.Context, spec types.OrderSpec) (int64, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}

	var result struct {
		Ticket int64 `json:"ticket"`
	}

	envelope, err := s.call(ctx, http.MethodPost, "/orders", spec, &result)
	if err != nil {
		if envelope != nil {
			return 0, errors.NewVenueError(errors.ErrCodeOrderRejected, "submit", 0, envelope.Code, envelope.Message)
		}

		return 0, err
	}

	return result.Ticket, nil
}

func (s *bridgeSession) ModifyPendingOrder(ctx context.Context, ticket int64, spec types.OrderSpec) error {
	envelope, err := s.call(ctx, http.MethodPut, fmt.Sprintf("/orders/%d", ticket), spec, nil)
	if err != nil {
		if envelope != nil {
			if envelope.Code == bridgeCodeOrderGone {
				return errors.Newf(errors.ErrCodeOrderGone, "order %d no longer exists", ticket)
			}

			return errors.NewVenueError(errors.ErrCodeModifyRejected, "modify", ticket, envelope.Code, envelope.Message)
		}

		return err
	}

	return nil
}

func (s *bridgeSession) CancelPendingOrder(ctx context.Context, ticket int64) error {
	envelope, err := s.call(ctx, http.MethodDelete, fmt.Sprintf("/orders/%d", ticket), nil, nil)
	if err != nil {
		if envelope != nil {
			if envelope.Code == bridgeCodeOrderGone {
				return errors.Newf(errors.ErrCodeOrderGone, "order %d no longer exists", ticket)
			}

			return errors.NewVenueError(errors.ErrCodeCancelRejected, "cancel", ticket, envelope.Code, envelope.Message)
		}

		return err
	}

	return nil
}

func (s *bridgeSession) ModifyPositionStops(ctx context.Context, ticket int64, stop, target float64) error {
	body := map[string]float64{"stop_loss": stop, "take_profit": target}

	envelope, err := s.call(ctx, http.MethodPut, fmt.Sprintf("/positions/%d/stops", ticket), body, nil)
	if err != nil {
		if envelope != nil {
			return errors.NewVenueError(errors.ErrCodeModifyRejected, "modify_stops", ticket, envelope.Code, envelope.Message)
		}

		return err
	}

	return nil
}

func (s *bridgeSession) Close() error {
	// The bridge session is stateless HTTP; nothing to tear down.
	return nil
}
