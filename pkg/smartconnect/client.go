// Package smartconnect is a thin typed HTTP adapter for the Angel One
// SmartAPI trading endpoints used by the gateway: login, scrip search, order
// placement, order book, individual order details, and holdings.
//
// The client holds no session state. Every secure call takes the session
// token explicitly, so one client instance can serve concurrent requests for
// different sessions. Error classification (notably session expiry) stays in
// this package; callers only see it through the SessionExpired method on
// *APIError.
package smartconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trading-gatewayv1/internal/model"
)

const defaultRoot = "https://apiconnect.angelone.in"

var routes = map[string]string{
	"api.login":        "/rest/auth/angelbroking/user/v1/loginByPassword",
	"api.logout":       "/rest/secure/angelbroking/user/v1/logout",
	"api.search.scrip": "/rest/secure/angelbroking/order/v1/searchScrip",
	"api.order.place":  "/rest/secure/angelbroking/order/v1/placeOrder",
	"api.order.book":   "/rest/secure/angelbroking/order/v1/getOrderBook",
	"api.order.detail": "/rest/secure/angelbroking/order/v1/details/",
	"api.holding":      "/rest/secure/angelbroking/portfolio/v1/getHolding",
}

// Config configures the SmartAPI client.
type Config struct {
	APIKey  string
	RootURL string        // default: https://apiconnect.angelone.in
	Timeout time.Duration // default: 7s

	// HTTPClient overrides the default client; used by tests.
	HTTPClient *http.Client
}

// Client is a stateless SmartAPI HTTP client. It satisfies model.Broker.
type Client struct {
	apiKey  string
	rootURL string
	hc      *http.Client

	// client fingerprint headers required by SmartAPI
	localIP  string
	publicIP string
	mac      string
}

// New creates a SmartAPI client.
func New(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	localIP := firstNonEmpty(localInterfaceIP(), "127.0.0.1")
	return &Client{
		apiKey:  cfg.APIKey,
		rootURL: strings.TrimRight(cfg.RootURL, "/"),
		hc:      hc,
		// SmartAPI validates header presence, not reachability, so the
		// local address doubles as the public one.
		localIP:  localIP,
		publicIP: localIP,
		mac:      firstNonEmpty(interfaceMAC(), "00:11:22:33:44:55"),
	}
}

var _ model.Broker = (*Client)(nil)

// Login exchanges credentials plus a TOTP code for session tokens.
func (c *Client) Login(ctx context.Context, clientCode, pin, totpCode string) (model.LoginResult, error) {
	params := map[string]any{"clientcode": clientCode, "password": pin, "totp": totpCode}
	env, err := c.post(ctx, "api.login", "", params)
	if err != nil {
		return model.LoginResult{}, err
	}

	var data struct {
		JWTToken     string `json:"jwtToken"`
		RefreshToken string `json:"refreshToken"`
		FeedToken    string `json:"feedToken"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.JWTToken == "" {
		return model.LoginResult{}, &APIError{Message: "malformed login response"}
	}
	return model.LoginResult{
		Token:        data.JWTToken,
		RefreshToken: data.RefreshToken,
		FeedToken:    data.FeedToken,
	}, nil
}

// Logout terminates the broker session for the given client code.
func (c *Client) Logout(ctx context.Context, token, clientCode string) error {
	_, err := c.post(ctx, "api.logout", token, map[string]any{"clientcode": clientCode})
	return err
}

// SearchScrip returns instrument matches for a free-text query, preserving
// the provider's result order.
func (c *Client) SearchScrip(ctx context.Context, token string, exchange model.Exchange, query string) ([]model.InstrumentRef, error) {
	params := map[string]any{"exchange": string(exchange), "searchscrip": query}
	env, err := c.post(ctx, "api.search.scrip", token, params)
	if err != nil {
		return nil, err
	}

	var rows []scripMatch
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &rows); err != nil {
			return nil, fmt.Errorf("smartapi: decode searchScrip data: %w", err)
		}
	}
	out := make([]model.InstrumentRef, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.InstrumentRef{
			Exchange:      model.Exchange(r.Exchange),
			TradingSymbol: r.TradingSymbol,
			SymbolToken:   r.SymbolToken,
		})
	}
	return out, nil
}

// PlaceOrder submits a built order payload and returns the acceptance ids.
func (c *Client) PlaceOrder(ctx context.Context, token string, payload map[string]any) (model.PlacementResult, error) {
	cleanNil(payload)
	env, err := c.post(ctx, "api.order.place", token, payload)
	if err != nil {
		return model.PlacementResult{}, err
	}

	var data placeOrderData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.OrderID == "" {
		return model.PlacementResult{}, &APIError{Message: "malformed placeOrder response"}
	}
	return model.PlacementResult{
		OrderID:       data.OrderID,
		UniqueOrderID: data.UniqueOrderID,
		Raw:           env.Data,
	}, nil
}

// OrderDetail fetches a single order by unique id. SmartAPI 404s for a short
// window right after acceptance; that surfaces as an *APIError.
func (c *Client) OrderDetail(ctx context.Context, token, uniqueOrderID string) (*model.OrderDetail, error) {
	env, err := c.do(ctx, http.MethodGet, c.rootURL+routes["api.order.detail"]+url.PathEscape(uniqueOrderID), token, nil)
	if err != nil {
		return nil, err
	}

	var data orderDetailData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("smartapi: decode order detail: %w", err)
	}
	if data.settledStatus() == "" {
		return nil, &APIError{Message: "order detail not available yet"}
	}
	return &model.OrderDetail{
		OrderID:       data.OrderID,
		UniqueOrderID: data.UniqueOrderID,
		Status:        data.settledStatus(),
		Raw:           env.Data,
	}, nil
}

// OrderBook lists all orders visible for the session's account.
func (c *Client) OrderBook(ctx context.Context, token string) ([]model.OrderDetail, error) {
	env, err := c.get(ctx, "api.order.book", token)
	if err != nil {
		return nil, err
	}

	var rows []json.RawMessage
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &rows); err != nil {
			return nil, fmt.Errorf("smartapi: decode order book: %w", err)
		}
	}
	out := make([]model.OrderDetail, 0, len(rows))
	for _, raw := range rows {
		var d orderDetailData
		if err := json.Unmarshal(raw, &d); err != nil {
			continue
		}
		out = append(out, model.OrderDetail{
			OrderID:       d.OrderID,
			UniqueOrderID: d.UniqueOrderID,
			Status:        d.settledStatus(),
			Raw:           raw,
		})
	}
	return out, nil
}

// Holdings returns the portfolio holdings payload as-is.
func (c *Client) Holdings(ctx context.Context, token string) (json.RawMessage, error) {
	env, err := c.get(ctx, "api.holding", token)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ---- transport ----

func (c *Client) get(ctx context.Context, route, token string) (*envelope, error) {
	return c.do(ctx, http.MethodGet, c.rootURL+routes[route], token, nil)
}

func (c *Client) post(ctx context.Context, route, token string, params map[string]any) (*envelope, error) {
	return c.do(ctx, http.MethodPost, c.rootURL+routes[route], token, params)
}

func (c *Client) do(ctx context.Context, method, fullURL, token string, params map[string]any) (*envelope, error) {
	var body io.Reader
	if method != http.MethodGet && params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("smartapi: marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("smartapi: %s %s: %w", method, fullURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("smartapi: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{
			HTTPStatus: resp.StatusCode,
			Message:    fmt.Sprintf("unparseable response (%d bytes)", len(raw)),
		}
	}

	if env.ErrorType != "" || !env.Status || resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			HTTPStatus: resp.StatusCode,
			ErrorCode:  env.ErrorCode,
			ErrorType:  env.ErrorType,
			Message:    firstNonEmpty(env.Message, "request failed"),
		}
	}
	return &env, nil
}

func (c *Client) setHeaders(req *http.Request, token string) {
	h := req.Header
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("X-ClientLocalIP", c.localIP)
	h.Set("X-ClientPublicIP", c.publicIP)
	h.Set("X-MACAddress", c.mac)
	h.Set("X-PrivateKey", c.apiKey)
	h.Set("X-UserType", "USER")
	h.Set("X-SourceID", "WEB")
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
}

// ---- utils ----

func cleanNil(m map[string]any) {
	for k, v := range m {
		if v == nil {
			delete(m, k)
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func localInterfaceIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}
	return ""
}

func interfaceMAC() string {
	ifs, _ := net.Interfaces()
	for _, ifc := range ifs {
		if len(ifc.HardwareAddr) > 0 {
			return ifc.HardwareAddr.String()
		}
	}
	return ""
}
