// Package coinbase implements the Coinbase Advanced Trade side of the
// gateway: strict one-of order configuration validation, idempotent order
// submission with dry-run support, and a paginated portfolio summary.
package coinbase

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the order side for Advanced Trade orders.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// MarketIOC is a market immediate-or-cancel order. Exactly one of BaseSize
// or QuoteSize must be set.
type MarketIOC struct {
	BaseSize  *decimal.Decimal `json:"base_size,omitempty"`
	QuoteSize *decimal.Decimal `json:"quote_size,omitempty"`
}

func (m *MarketIOC) validate() error {
	set := 0
	if m.BaseSize != nil {
		set++
		if !m.BaseSize.IsPositive() {
			return fmt.Errorf("market_market_ioc: base_size must be positive")
		}
	}
	if m.QuoteSize != nil {
		set++
		if !m.QuoteSize.IsPositive() {
			return fmt.Errorf("market_market_ioc: quote_size must be positive")
		}
	}
	if set != 1 {
		return fmt.Errorf("market_market_ioc: exactly one of base_size or quote_size must be provided")
	}
	return nil
}

// LimitGTC is a limit good-till-cancelled order.
type LimitGTC struct {
	BaseSize   decimal.Decimal `json:"base_size"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	PostOnly   bool            `json:"post_only"`
}

func (l *LimitGTC) validate() error {
	if !l.BaseSize.IsPositive() {
		return fmt.Errorf("limit_limit_gtc: base_size must be positive")
	}
	if !l.LimitPrice.IsPositive() {
		return fmt.Errorf("limit_limit_gtc: limit_price must be positive")
	}
	return nil
}

// LimitGTD is a limit order that expires at EndTime.
type LimitGTD struct {
	BaseSize   decimal.Decimal `json:"base_size"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	EndTime    time.Time       `json:"end_time"`
	PostOnly   bool            `json:"post_only"`
}

func (l *LimitGTD) validate() error {
	if !l.BaseSize.IsPositive() {
		return fmt.Errorf("limit_limit_gtd: base_size must be positive")
	}
	if !l.LimitPrice.IsPositive() {
		return fmt.Errorf("limit_limit_gtd: limit_price must be positive")
	}
	if l.EndTime.IsZero() {
		return fmt.Errorf("limit_limit_gtd: end_time is required")
	}
	return nil
}

// OrderConfiguration is the one-of order shape block. Exactly one of the
// supported configurations must be populated.
type OrderConfiguration struct {
	MarketIOC *MarketIOC `json:"market_market_ioc,omitempty"`
	LimitGTC  *LimitGTC  `json:"limit_limit_gtc,omitempty"`
	LimitGTD  *LimitGTD  `json:"limit_limit_gtd,omitempty"`
}

// Validate enforces the one-of rule and each variant's own constraints.
func (c *OrderConfiguration) Validate() error {
	set := 0
	if c.MarketIOC != nil {
		set++
	}
	if c.LimitGTC != nil {
		set++
	}
	if c.LimitGTD != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("order_configuration: exactly one of market_market_ioc, limit_limit_gtc, limit_limit_gtd must be provided")
	}
	switch {
	case c.MarketIOC != nil:
		return c.MarketIOC.validate()
	case c.LimitGTC != nil:
		return c.LimitGTC.validate()
	default:
		return c.LimitGTD.validate()
	}
}

// TradeParams describes one Advanced Trade order request.
type TradeParams struct {
	ProductID     string             `json:"product_id"`
	Side          Side               `json:"side"`
	Config        OrderConfiguration `json:"order_configuration"`
	ClientOrderID string             `json:"client_order_id,omitempty"`
	DryRun        bool               `json:"dry_run"`
}

// Validate checks the full request shape.
func (p *TradeParams) Validate() error {
	if len(p.ProductID) < 3 {
		return fmt.Errorf("product_id is required, e.g. BTC-USD")
	}
	if p.Side != Buy && p.Side != Sell {
		return fmt.Errorf("side must be BUY or SELL, got %q", p.Side)
	}
	return p.Config.Validate()
}

// BuildCreateOrderPayload validates params and shapes the create-order
// request body. A caller-supplied client order id is honored so the caller's
// own retries stay distinguishable; otherwise a fresh random one is
// generated per request. GTD end times are normalized to absolute UTC
// instants in RFC3339.
func BuildCreateOrderPayload(p TradeParams) (map[string]any, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	clientOrderID := p.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}

	cfg := map[string]any{}
	switch {
	case p.Config.MarketIOC != nil:
		m := map[string]any{}
		if p.Config.MarketIOC.BaseSize != nil {
			m["base_size"] = p.Config.MarketIOC.BaseSize.String()
		}
		if p.Config.MarketIOC.QuoteSize != nil {
			m["quote_size"] = p.Config.MarketIOC.QuoteSize.String()
		}
		cfg["market_market_ioc"] = m
	case p.Config.LimitGTC != nil:
		cfg["limit_limit_gtc"] = map[string]any{
			"base_size":   p.Config.LimitGTC.BaseSize.String(),
			"limit_price": p.Config.LimitGTC.LimitPrice.String(),
			"post_only":   p.Config.LimitGTC.PostOnly,
		}
	case p.Config.LimitGTD != nil:
		cfg["limit_limit_gtd"] = map[string]any{
			"base_size":   p.Config.LimitGTD.BaseSize.String(),
			"limit_price": p.Config.LimitGTD.LimitPrice.String(),
			"end_time":    p.Config.LimitGTD.EndTime.UTC().Format(time.RFC3339),
			"post_only":   p.Config.LimitGTD.PostOnly,
		}
	}

	return map[string]any{
		"client_order_id":     clientOrderID,
		"product_id":          p.ProductID,
		"side":                string(p.Side),
		"order_configuration": cfg,
	}, nil
}
