package execution

import (
	"context"
	"log/slog"
	"time"

	"trading-gatewayv1/internal/metrics"
	"trading-gatewayv1/internal/model"
)

const (
	// DefaultReconcileAttempts bounds the post-placement status polls.
	DefaultReconcileAttempts = 5
	// DefaultReconcileDelay separates consecutive polls.
	DefaultReconcileDelay = 600 * time.Millisecond
)

// Reconciler discovers the settled status of an already-accepted order.
//
// Two-tier lookup per attempt: the detail-by-unique-id endpoint is
// authoritative but lags (or 404s) for a short window after acceptance; the
// order-book listing is always populated but needs a linear scan. The cheap
// authoritative call goes first, the scan covers the lag window.
//
// Reconcile never fails. An exhausted attempt budget or a cancelled context
// degrades to a record with nil status; the order itself was already
// accepted and the caller keeps its placement result.
type Reconciler struct {
	broker   model.Broker
	attempts int
	delay    time.Duration
	prom     *metrics.Metrics
	log      *slog.Logger
}

// NewReconciler creates a reconciler. Non-positive attempts or delay fall
// back to the defaults.
func NewReconciler(broker model.Broker, attempts int, delay time.Duration, prom *metrics.Metrics, log *slog.Logger) *Reconciler {
	if attempts <= 0 {
		attempts = DefaultReconcileAttempts
	}
	if delay <= 0 {
		delay = DefaultReconcileDelay
	}
	return &Reconciler{broker: broker, attempts: attempts, delay: delay, prom: prom, log: log}
}

// Reconcile polls for the order's settled status until found, the attempt
// budget runs out, or ctx is cancelled.
func (r *Reconciler) Reconcile(ctx context.Context, token string, placement model.PlacementResult) model.StatusRecord {
	start := time.Now()
	rec := model.StatusRecord{
		OrderID:       placement.OrderID,
		UniqueOrderID: placement.UniqueOrderID,
	}

	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			// Cancellable wait so a request deadline can cut
			// reconciliation short without losing the placement.
			if !r.sleep(ctx) {
				r.log.Warn("reconciliation cancelled",
					slog.String("order_id", placement.OrderID),
					slog.Int("attempts", attempt))
				return rec
			}
		}
		r.countAttempt()

		if placement.UniqueOrderID != "" {
			detail, err := r.broker.OrderDetail(ctx, token, placement.UniqueOrderID)
			if err != nil {
				lastErr = err
			} else if detail != nil && detail.Status != "" {
				rec.Status = &detail.Status
				rec.Detail = detail.Raw
				r.observeDur(start)
				return rec
			}
		}

		book, err := r.broker.OrderBook(ctx, token)
		if err != nil {
			lastErr = err
			continue
		}
		if match, ok := findInBook(book, placement); ok {
			if match.Status != "" {
				rec.Status = &match.Status
			}
			rec.Detail = match.Raw
			r.observeDur(start)
			return rec
		}
	}

	r.log.Warn("order status unresolved after polling",
		slog.String("order_id", placement.OrderID),
		slog.Int("attempts", r.attempts),
		slog.Any("last_error", lastErr))
	r.countUnresolved()
	r.observeDur(start)
	return rec
}

// findInBook scans the order book for the placement, preferring the unique
// order id and falling back to the plain order id.
func findInBook(book []model.OrderDetail, placement model.PlacementResult) (model.OrderDetail, bool) {
	if placement.UniqueOrderID != "" {
		for _, d := range book {
			if d.UniqueOrderID == placement.UniqueOrderID {
				return d, true
			}
		}
	}
	for _, d := range book {
		if d.OrderID == placement.OrderID {
			return d, true
		}
	}
	return model.OrderDetail{}, false
}

// sleep waits the inter-attempt delay. Returns false if ctx was cancelled.
func (r *Reconciler) sleep(ctx context.Context) bool {
	t := time.NewTimer(r.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (r *Reconciler) countAttempt() {
	if r.prom != nil {
		r.prom.ReconcileAttempts.Inc()
	}
}

func (r *Reconciler) countUnresolved() {
	if r.prom != nil {
		r.prom.ReconcileUnresolved.Inc()
	}
}

func (r *Reconciler) observeDur(start time.Time) {
	if r.prom != nil {
		r.prom.ReconcileDur.Observe(time.Since(start).Seconds())
	}
}
