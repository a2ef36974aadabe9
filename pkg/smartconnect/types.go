package smartconnect

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// envelope is the uniform SmartAPI response wrapper.
type envelope struct {
	Status    bool            `json:"status"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorcode"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

// APIError is a non-success response from SmartAPI. It preserves the
// provider's error vocabulary so callers can log it, and answers the one
// behavioral question the engine cares about: is the session dead?
type APIError struct {
	HTTPStatus int
	ErrorCode  string
	ErrorType  string
	Message    string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("smartapi: %s (%s)", e.Message, e.ErrorCode)
	}
	return fmt.Sprintf("smartapi: %s", e.Message)
}

// SessionExpired classifies this error as a dead-token signal. The matching
// mirrors SmartAPI's observed vocabulary: the AG8001 invalid-token code, a
// plain 401, a TokenException error type, or a message mentioning "Session".
func (e *APIError) SessionExpired() bool {
	switch {
	case e.ErrorCode == "AG8001" || e.ErrorCode == "401":
		return true
	case e.HTTPStatus == http.StatusUnauthorized:
		return true
	case e.ErrorType == "TokenException":
		return true
	}
	return strings.Contains(e.Message, "Session")
}

// scripMatch is one searchScrip result row.
type scripMatch struct {
	Exchange      string `json:"exchange"`
	TradingSymbol string `json:"tradingsymbol"`
	SymbolToken   string `json:"symboltoken"`
}

// placeOrderData is the acceptance payload of placeOrder.
type placeOrderData struct {
	Script        string `json:"script"`
	OrderID       string `json:"orderid"`
	UniqueOrderID string `json:"uniqueorderid"`
}

// orderDetailData decodes both the order book rows and the individual order
// details payload; the two endpoints disagree on the status field name.
type orderDetailData struct {
	OrderID       string `json:"orderid"`
	UniqueOrderID string `json:"uniqueorderid"`
	Status        string `json:"status"`
	OrderStatus   string `json:"orderstatus"`
}

func (d orderDetailData) settledStatus() string {
	if d.OrderStatus != "" {
		return d.OrderStatus
	}
	return d.Status
}
