// Package notification provides alert delivery to external channels
// (Telegram, webhooks, etc.) for order lifecycle events.
package notification

import (
	"context"
	"fmt"
	"log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent. Fields carries structured
// order context (order id, symbol, status) alongside the human-readable
// message.
type Alert struct {
	Level   AlertLevel        `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// OrderPlaced builds the standard alert for a confirmed order.
func OrderPlaced(orderID, symbol, side, status string) Alert {
	return Alert{
		Level:   AlertInfo,
		Title:   "Order placed",
		Message: fmt.Sprintf("%s %s accepted (order %s)", side, symbol, orderID),
		Fields: map[string]string{
			"order_id": orderID,
			"symbol":   symbol,
			"side":     side,
			"status":   status,
		},
	}
}

// OrderUnconfirmed builds the alert raised when status polling exhausts
// without resolving a placed order.
func OrderUnconfirmed(orderID, symbol string) Alert {
	return Alert{
		Level:   AlertWarning,
		Title:   "Order status unconfirmed",
		Message: fmt.Sprintf("order %s for %s placed but status could not be confirmed", orderID, symbol),
		Fields: map[string]string{
			"order_id": orderID,
			"symbol":   symbol,
		},
	}
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans an alert out to several backends. Delivery failures are
// collected rather than short-circuiting, so one broken channel does not
// stop the others from being attempted.
type Multi struct {
	backends []Notifier
}

// NewMulti creates a fan-out notifier over the given backends.
func NewMulti(backends ...Notifier) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	var firstErr error
	for _, b := range m.backends {
		if err := b.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend delivery failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
