package model

import "encoding/json"

// PlacementResult is the broker's acceptance of an order. Produced once by
// the submitter, immutable afterwards.
type PlacementResult struct {
	OrderID       string          `json:"order_id"`
	UniqueOrderID string          `json:"unique_order_id,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

// StatusRecord is the reconciler's best-effort view of an accepted order.
// Status stays nil when the settled state could not be discovered inside the
// polling budget; that is a valid terminal outcome, not an error.
type StatusRecord struct {
	OrderID       string          `json:"order_id"`
	UniqueOrderID string          `json:"unique_order_id,omitempty"`
	Status        *string         `json:"status"`
	Detail        json.RawMessage `json:"detail,omitempty"`
}

// FinalOrderResponse is the caller-facing artifact for a placed order.
// A nil OrderStatus means "placed but unconfirmed", never "not placed".
type FinalOrderResponse struct {
	OrderID            string          `json:"order_id"`
	OrderStatus        *string         `json:"order_status"`
	OrderStatusDetails json.RawMessage `json:"order_status_details,omitempty"`
}
