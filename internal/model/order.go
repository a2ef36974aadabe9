package model

import (
	"fmt"
)

// Order field enums. String values match the broker's vocabulary so the
// payload builder can pass them through unchanged.
type (
	TransactionType string
	Variety         string
	Exchange        string
	OrderType       string
	ProductType     string
	Duration        string
)

const (
	Buy  TransactionType = "BUY"
	Sell TransactionType = "SELL"

	VarietyNormal   Variety = "NORMAL"
	VarietyStoploss Variety = "STOPLOSS"
	VarietyAMO      Variety = "AMO"
	VarietyRobo     Variety = "ROBO"

	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
	NFO Exchange = "NFO"
	MCX Exchange = "MCX"

	Market         OrderType = "MARKET"
	Limit          OrderType = "LIMIT"
	StoplossLimit  OrderType = "STOPLOSS_LIMIT"
	StoplossMarket OrderType = "STOPLOSS_MARKET"

	Delivery     ProductType = "DELIVERY"
	Intraday     ProductType = "INTRADAY"
	Margin       ProductType = "MARGIN"
	CarryForward ProductType = "CARRYFORWARD"

	Day Duration = "DAY"
	IOC Duration = "IOC"
)

// OrderRequest describes one equity order as accepted by the gateway.
// SymbolToken may be left empty; the resolver fills it in before submission.
// Price must be nil for MARKET orders and set for the limit varieties.
type OrderRequest struct {
	Variety         Variety         `json:"variety"`
	TradingSymbol   string          `json:"tradingsymbol"`
	SymbolToken     string          `json:"symboltoken,omitempty"`
	TransactionType TransactionType `json:"transactiontype"`
	Exchange        Exchange        `json:"exchange"`
	OrderType       OrderType       `json:"ordertype"`
	ProductType     ProductType     `json:"producttype"`
	Duration        Duration        `json:"duration"`
	Price           *float64        `json:"price,omitempty"`
	SquareOff       string          `json:"squareoff"`
	Stoploss        string          `json:"stoploss"`
	Quantity        int64           `json:"quantity"`
}

// ApplyDefaults fills the fields a plain delivery order leaves implicit,
// so callers can submit {symbol, side, quantity} alone.
func (r *OrderRequest) ApplyDefaults() {
	if r.Variety == "" {
		r.Variety = VarietyNormal
	}
	if r.Exchange == "" {
		r.Exchange = NSE
	}
	if r.OrderType == "" {
		r.OrderType = Market
	}
	if r.ProductType == "" {
		r.ProductType = Delivery
	}
	if r.Duration == "" {
		r.Duration = Day
	}
	if r.SquareOff == "" {
		r.SquareOff = "0"
	}
	if r.Stoploss == "" {
		r.Stoploss = "0"
	}
}

// Validate enforces the structural invariants before any network call:
// a positive whole quantity, a trading symbol, and a price present exactly
// when the order type needs one.
func (r *OrderRequest) Validate() error {
	if r.TradingSymbol == "" {
		return fmt.Errorf("order: tradingsymbol is required")
	}
	if r.TransactionType != Buy && r.TransactionType != Sell {
		return fmt.Errorf("order: transactiontype must be BUY or SELL, got %q", r.TransactionType)
	}
	if r.Quantity < 1 {
		return fmt.Errorf("order: quantity must be >= 1, got %d", r.Quantity)
	}
	if r.OrderType == Market && r.Price != nil {
		return fmt.Errorf("order: price must be unset for MARKET orders")
	}
	if r.OrderType != Market && r.Price == nil {
		return fmt.Errorf("order: price is required for %s orders", r.OrderType)
	}
	if r.Price != nil && *r.Price <= 0 {
		return fmt.Errorf("order: price must be positive, got %v", *r.Price)
	}
	return nil
}
