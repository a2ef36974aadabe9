package execution

import "trading-gatewayv1/internal/model"

// Normalize shapes the caller-facing response from the placement and the
// reconciled status record. Pure and total: nil status and detail pass
// through unchanged, so callers always receive a well-formed response even
// when reconciliation degraded to "unknown".
func Normalize(placement model.PlacementResult, record model.StatusRecord) model.FinalOrderResponse {
	return model.FinalOrderResponse{
		OrderID:            placement.OrderID,
		OrderStatus:        record.Status,
		OrderStatusDetails: record.Detail,
	}
}
