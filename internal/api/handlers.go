package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"trading-gatewayv1/internal/coinbase"
	"trading-gatewayv1/internal/execution"
	"trading-gatewayv1/internal/logger"
	"trading-gatewayv1/internal/model"
	"trading-gatewayv1/internal/resolve"
	"trading-gatewayv1/internal/session"
)

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req model.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed order body: "+err.Error())
		return
	}

	resp, err := s.orders.Submit(r.Context(), req)
	if err != nil {
		s.log.Error("order submission failed",
			append([]any{slog.Any("error", err)}, logger.WithRequest(r.Context())...)...)
		status, msg := mapSubmitError(err)
		writeError(w, status, msg)
		return
	}

	if s.hub != nil {
		s.hub.Publish("order", resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

// mapSubmitError translates engine errors into HTTP statuses. Every branch
// here means the order was NOT placed.
func mapSubmitError(err error) (int, string) {
	var authErr *session.AuthError
	if errors.As(err, &authErr) {
		return http.StatusBadGateway, "broker authentication failed"
	}
	var resErr *resolve.ResolutionError
	if errors.As(err, &resErr) {
		return http.StatusNotFound, resErr.Error()
	}
	var subErr *execution.SubmissionError
	if errors.As(err, &subErr) {
		return http.StatusUnprocessableEntity, subErr.Error()
	}
	// An unshielded expiry (e.g. a holdings fetch that expired twice) is an
	// upstream session problem, not a caller mistake.
	if model.IsSessionExpired(err) {
		return http.StatusBadGateway, "broker session could not be kept alive"
	}
	return http.StatusInternalServerError, "order submission failed"
}

// maxListOrders caps a single journal read.
const maxListOrders = 500

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "order journal not configured")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxListOrders {
			n = maxListOrders
		}
		limit = n
	}
	records, err := s.journal.GetOrders(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "journal read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": records})
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	data, err := s.orders.Holdings(r.Context())
	if err != nil {
		s.log.Error("holdings fetch failed",
			append([]any{slog.Any("error", err)}, logger.WithRequest(r.Context())...)...)
		status, msg := mapSubmitError(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"holdings": json.RawMessage(data)})
}

func (s *Server) handleSearchInstruments(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	exchange := model.Exchange(strings.ToUpper(r.URL.Query().Get("exchange")))
	if exchange == "" {
		exchange = model.NSE
	}

	ref, err := s.orders.SearchInstruments(r.Context(), exchange, query)
	if err != nil {
		status, msg := mapSubmitError(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	if s.news == nil {
		writeError(w, http.StatusServiceUnavailable, "news aggregation not configured")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.news.Search(r.Context(), query)})
}

func (s *Server) handleCryptoOrder(w http.ResponseWriter, r *http.Request) {
	if s.crypto == nil || !s.crypto.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "crypto trading not configured")
		return
	}

	var params coinbase.TradeParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "malformed order body: "+err.Error())
		return
	}

	out, err := s.crypto.CreateOrder(r.Context(), params)
	if err != nil {
		if verr := params.Validate(); verr != nil {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.log.Error("crypto order failed",
			append([]any{slog.Any("error", err)}, logger.WithRequest(r.Context())...)...)
		writeError(w, http.StatusBadGateway, "crypto order failed")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCryptoPortfolio(w http.ResponseWriter, r *http.Request) {
	if s.crypto == nil || !s.crypto.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "crypto trading not configured")
		return
	}

	sum, err := s.crypto.Portfolio(r.Context())
	if err != nil {
		s.log.Error("crypto portfolio failed",
			append([]any{slog.Any("error", err)}, logger.WithRequest(r.Context())...)...)
		writeError(w, http.StatusBadGateway, "crypto portfolio fetch failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
