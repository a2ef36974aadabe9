package model

import (
	"context"
	"encoding/json"
	"errors"
)

// ── Broker Port ──
// The engine talks to the brokerage through this interface so the session,
// resolve, and execution packages never depend on a concrete HTTP adapter.
// Every method takes the session token explicitly; the adapter holds no
// per-session state and is safe for concurrent use.

// LoginResult carries the tokens returned by a successful broker login.
type LoginResult struct {
	Token        string
	RefreshToken string
	FeedToken    string
}

// OrderDetail is one entry from the order book or the detail-by-id endpoint.
type OrderDetail struct {
	OrderID       string          `json:"orderid"`
	UniqueOrderID string          `json:"uniqueorderid"`
	Status        string          `json:"status"`
	Raw           json.RawMessage `json:"-"`
}

// Broker is the outbound port to the brokerage trading API.
type Broker interface {
	// Login exchanges credentials plus a one-time code for a session token.
	Login(ctx context.Context, clientCode, pin, totpCode string) (LoginResult, error)

	// SearchScrip returns instrument matches for a free-text query, in the
	// provider's order.
	SearchScrip(ctx context.Context, token string, exchange Exchange, query string) ([]InstrumentRef, error)

	// PlaceOrder submits a built order payload and returns the acceptance.
	PlaceOrder(ctx context.Context, token string, payload map[string]any) (PlacementResult, error)

	// OrderDetail fetches a single order by its unique id. Returns an error
	// when the endpoint has not caught up with a just-placed order yet.
	OrderDetail(ctx context.Context, token, uniqueOrderID string) (*OrderDetail, error)

	// OrderBook lists every order visible for the session's account.
	OrderBook(ctx context.Context, token string) ([]OrderDetail, error)

	// Holdings returns the portfolio holdings payload as-is.
	Holdings(ctx context.Context, token string) (json.RawMessage, error)
}

// sessionExpirer is implemented by adapter errors that indicate the session
// token is dead. The classification itself (error codes, message markers)
// lives in the adapter; the engine only asks the question.
type sessionExpirer interface {
	SessionExpired() bool
}

// IsSessionExpired reports whether err anywhere in its chain signals an
// expired broker session.
func IsSessionExpired(err error) bool {
	var se sessionExpirer
	return errors.As(err, &se) && se.SessionExpired()
}
