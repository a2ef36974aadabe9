// Package execution drives order placement through the broker API: session
// acquisition, symbol resolution, submission with a single transparent
// re-authentication on session expiry, and best-effort discovery of the
// settled order status afterwards.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"trading-gatewayv1/internal/metrics"
	"trading-gatewayv1/internal/model"
	"trading-gatewayv1/internal/notification"
	"trading-gatewayv1/internal/resolve"
	"trading-gatewayv1/internal/session"
)

// SubmissionError is a fatal order failure: the broker rejected the order,
// or the session expired again right after a fresh login. The order was NOT
// placed. The provider's message is preserved for the caller.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submit: %s: %v", e.Message, e.Err)
	}
	return "submit: " + e.Message
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Executor places orders and fetches holdings through the broker, shielding
// callers from token expiry.
type Executor struct {
	broker   model.Broker
	auth     *session.Authenticator
	resolver *resolve.Resolver
	rec      *Reconciler

	journal  *Journal              // optional order audit trail
	notifier notification.Notifier // optional placement alerts
	prom     *metrics.Metrics      // optional
	health   *metrics.HealthStatus // optional
	log      *slog.Logger
}

// ExecutorConfig wires the executor's collaborators. Journal, Notifier, and
// Metrics may be nil.
type ExecutorConfig struct {
	Broker     model.Broker
	Auth       *session.Authenticator
	Resolver   *resolve.Resolver
	Reconciler *Reconciler
	Journal    *Journal
	Notifier   notification.Notifier
	Metrics    *metrics.Metrics
	Health     *metrics.HealthStatus
	Logger     *slog.Logger
}

// NewExecutor creates an order executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	return &Executor{
		broker:   cfg.Broker,
		auth:     cfg.Auth,
		resolver: cfg.Resolver,
		rec:      cfg.Reconciler,
		journal:  cfg.Journal,
		notifier: cfg.Notifier,
		prom:     cfg.Metrics,
		health:   cfg.Health,
		log:      cfg.Logger,
	}
}

// Submit validates and places one order, then reconciles its settled status.
//
// A session-expiry signal from resolution or placement invalidates the
// cached session and restarts the whole submission exactly once; a second
// signal is fatal. Any error return means the order was not placed. A nil
// error with a nil OrderStatus means placed but unconfirmed.
func (e *Executor) Submit(ctx context.Context, req model.OrderRequest) (model.FinalOrderResponse, error) {
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		e.countRejected()
		return model.FinalOrderResponse{}, &SubmissionError{Message: "invalid order", Err: err}
	}

	start := time.Now()
	var (
		placement model.PlacementResult
		sess      session.Session
	)
	for attempt := 0; ; attempt++ {
		var err error
		sess, err = e.auth.Session(ctx)
		if err != nil {
			return model.FinalOrderResponse{}, err
		}

		if req.SymbolToken == "" {
			ref, err := e.resolver.Resolve(ctx, sess.Token, req.Exchange, req.TradingSymbol)
			if err != nil {
				if retry, fatal := e.classifyExpiry(err, attempt); retry {
					continue
				} else if fatal {
					return model.FinalOrderResponse{}, &SubmissionError{Message: "session expired twice, giving up", Err: err}
				}
				e.countResolveFailure()
				return model.FinalOrderResponse{}, err
			}
			req.TradingSymbol = ref.TradingSymbol
			req.SymbolToken = ref.SymbolToken
		}

		placement, err = e.broker.PlaceOrder(ctx, sess.Token, buildPayload(req))
		if err != nil {
			if retry, fatal := e.classifyExpiry(err, attempt); retry {
				continue
			} else if fatal {
				return model.FinalOrderResponse{}, &SubmissionError{Message: "session expired twice, giving up", Err: err}
			}
			e.countRejected()
			return model.FinalOrderResponse{}, &SubmissionError{Message: "broker rejected order", Err: err}
		}
		break
	}

	e.log.Info("order accepted",
		slog.String("order_id", placement.OrderID),
		slog.String("symbol", req.TradingSymbol),
		slog.String("side", string(req.TransactionType)),
		slog.Int64("qty", req.Quantity))
	e.countPlaced()

	record := e.rec.Reconcile(ctx, sess.Token, placement)
	resp := Normalize(placement, record)

	e.observeSubmitDur(time.Since(start))
	e.audit(req, resp)
	e.alert(ctx, req, resp)
	return resp, nil
}

// Holdings fetches portfolio holdings, reusing the cached session and
// transparently re-authenticating once when it has expired mid-call.
func (e *Executor) Holdings(ctx context.Context) (json.RawMessage, error) {
	for attempt := 0; ; attempt++ {
		sess, err := e.auth.Session(ctx)
		if err != nil {
			return nil, err
		}

		data, err := e.broker.Holdings(ctx, sess.Token)
		if err != nil {
			if retry, fatal := e.classifyExpiry(err, attempt); retry {
				continue
			} else if fatal {
				return nil, fmt.Errorf("holdings: session expired again after fresh login: %w", err)
			}
			return nil, fmt.Errorf("holdings: %w", err)
		}
		return data, nil
	}
}

// SearchInstruments resolves a free-text query against the instrument
// master, with the same session reuse and single re-authentication as
// order submission.
func (e *Executor) SearchInstruments(ctx context.Context, exchange model.Exchange, query string) (model.InstrumentRef, error) {
	for attempt := 0; ; attempt++ {
		sess, err := e.auth.Session(ctx)
		if err != nil {
			return model.InstrumentRef{}, err
		}

		ref, err := e.resolver.Resolve(ctx, sess.Token, exchange, query)
		if err != nil {
			if retry, fatal := e.classifyExpiry(err, attempt); retry {
				continue
			} else if fatal {
				return model.InstrumentRef{}, fmt.Errorf("search: session expired again after fresh login: %w", err)
			}
			e.countResolveFailure()
			return model.InstrumentRef{}, err
		}
		return ref, nil
	}
}

// classifyExpiry handles a broker error that may be a session-expiry signal.
// First signal: invalidate and report retry. Second signal: fatal, worded by
// the caller since not every path is an order submission. Any other error:
// neither.
func (e *Executor) classifyExpiry(err error, attempt int) (retry, fatal bool) {
	if !model.IsSessionExpired(err) {
		return false, false
	}
	e.auth.Invalidate()
	if attempt == 0 {
		e.log.Warn("session expired mid-call, re-authenticating once", slog.Any("cause", err))
		e.countExpiryRetry()
		return true, false
	}
	return false, true
}

// buildPayload shapes the provider order payload. MARKET orders carry a nil
// price, which the adapter strips before transmission.
func buildPayload(req model.OrderRequest) map[string]any {
	p := map[string]any{
		"variety":         string(req.Variety),
		"tradingsymbol":   req.TradingSymbol,
		"symboltoken":     req.SymbolToken,
		"transactiontype": string(req.TransactionType),
		"exchange":        string(req.Exchange),
		"ordertype":       string(req.OrderType),
		"producttype":     string(req.ProductType),
		"duration":        string(req.Duration),
		"squareoff":       req.SquareOff,
		"stoploss":        req.Stoploss,
		"quantity":        req.Quantity,
	}
	if req.Price != nil {
		p["price"] = *req.Price
	} else {
		p["price"] = nil
	}
	return p
}

func (e *Executor) audit(req model.OrderRequest, resp model.FinalOrderResponse) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Record(req, resp); err != nil {
		e.log.Warn("journal write failed", slog.Any("error", err))
	}
}

func (e *Executor) alert(ctx context.Context, req model.OrderRequest, resp model.FinalOrderResponse) {
	if e.notifier == nil {
		return
	}
	var alert notification.Alert
	if resp.OrderStatus != nil {
		alert = notification.OrderPlaced(resp.OrderID, req.TradingSymbol, string(req.TransactionType), *resp.OrderStatus)
	} else {
		alert = notification.OrderUnconfirmed(resp.OrderID, req.TradingSymbol)
	}
	if err := e.notifier.Send(ctx, alert); err != nil {
		e.log.Warn("notification failed", slog.Any("error", err))
	}
}

func (e *Executor) countPlaced() {
	if e.prom != nil {
		e.prom.OrdersPlaced.Inc()
	}
	if e.health != nil {
		e.health.MarkOrder()
	}
}

func (e *Executor) countRejected() {
	if e.prom != nil {
		e.prom.OrdersRejected.Inc()
	}
}

func (e *Executor) countExpiryRetry() {
	if e.prom != nil {
		e.prom.ExpiryRetries.Inc()
	}
}

func (e *Executor) countResolveFailure() {
	if e.prom != nil {
		e.prom.ResolveFailures.Inc()
	}
}

func (e *Executor) observeSubmitDur(d time.Duration) {
	if e.prom != nil {
		e.prom.OrderSubmitDur.Observe(d.Seconds())
	}
}
