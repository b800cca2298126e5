package mt5

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotConnected is returned when the terminal bridge cannot be
// reached or rejects the session.
var ErrNotConnected = errors.New("platform not connected")

// Client is the history surface the analysis engine consumes.
type Client interface {
	HistoryDeals(ctx context.Context, from, to time.Time) ([]Deal, error)
	HistoryOrders(ctx context.Context, from, to time.Time) ([]Order, error)
}

// GatewayConfig carries the connection parameters for a MetaTrader
// terminal bridge.
type GatewayConfig struct {
	BaseURL  string
	Login    string
	Password string
	Server   string
	Timeout  time.Duration
}

// Gateway talks JSON over HTTP to a MetaTrader 5 terminal bridge.
type Gateway struct {
	cfg        GatewayConfig
	httpClient *http.Client
}

// NewGateway constructs a client for the bridge.
func NewGateway(cfg GatewayConfig) *Gateway {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// HistoryDeals fetches the deal history for the window.
func (g *Gateway) HistoryDeals(ctx context.Context, from, to time.Time) ([]Deal, error) {
	var deals []Deal
	if err := g.get(ctx, "/history/deals", from, to, &deals); err != nil {
		return nil, err
	}
	return deals, nil
}

// HistoryOrders fetches the order history for the window.
func (g *Gateway) HistoryOrders(ctx context.Context, from, to time.Time) ([]Order, error) {
	var orders []Order
	if err := g.get(ctx, "/history/orders", from, to, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (g *Gateway) get(ctx context.Context, path string, from, to time.Time, out any) error {
	q := url.Values{}
	q.Set("from", strconv.FormatInt(from.Unix(), 10))
	q.Set("to", strconv.FormatInt(to.Unix(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if g.cfg.Login != "" {
		req.Header.Set("X-MT5-Login", g.cfg.Login)
		req.Header.Set("X-MT5-Password", g.cfg.Password)
		req.Header.Set("X-MT5-Server", g.cfg.Server)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusServiceUnavailable {
		return ErrNotConnected
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("bridge %s: status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
