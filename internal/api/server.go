// Package api exposes the order gateway over HTTP: order submission,
// holdings, instrument search, the Coinbase surface, and a WebSocket
// stream of final order responses.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"trading-gatewayv1/internal/coinbase"
	"trading-gatewayv1/internal/execution"
	"trading-gatewayv1/internal/model"
	"trading-gatewayv1/internal/news"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// OrderService is the broker-side engine surface the handlers call.
// *execution.Executor satisfies it.
type OrderService interface {
	Submit(ctx context.Context, req model.OrderRequest) (model.FinalOrderResponse, error)
	Holdings(ctx context.Context) (json.RawMessage, error)
	SearchInstruments(ctx context.Context, exchange model.Exchange, query string) (model.InstrumentRef, error)
}

// CryptoService is the Coinbase surface. *coinbase.Client satisfies it.
type CryptoService interface {
	Enabled() bool
	CreateOrder(ctx context.Context, params coinbase.TradeParams) (map[string]any, error)
	Portfolio(ctx context.Context) (coinbase.PortfolioSummary, error)
}

// OrderLog reads back the audit journal. *execution.Journal satisfies it.
type OrderLog interface {
	GetOrders(limit int) ([]execution.OrderRecord, error)
}

// NewsService aggregates market headlines. *news.Fetcher satisfies it.
type NewsService interface {
	Search(ctx context.Context, query string) map[string]news.ProviderResult
}

// Server wires handlers, middleware, and the order-event hub into a router.
type Server struct {
	orders  OrderService
	crypto  CryptoService
	journal OrderLog
	news    NewsService
	hub     *Hub
	log     *slog.Logger
}

// ServerConfig carries the Server's collaborators. Crypto, Journal, and
// News may be nil; their routes then answer 503 / 404.
type ServerConfig struct {
	Orders  OrderService
	Crypto  CryptoService
	Journal OrderLog
	News    NewsService
	Hub     *Hub
	Logger  *slog.Logger
}

// NewServer creates the HTTP server facade.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		orders:  cfg.Orders,
		crypto:  cfg.Crypto,
		journal: cfg.Journal,
		news:    cfg.News,
		hub:     cfg.Hub,
		log:     cfg.Logger,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(WithRequestID)
	r.Use(WithIdentity)
	r.Use(RequestLogger(s.log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/orders", s.handleSubmitOrder)
		r.Get("/orders", s.handleListOrders)
		r.Get("/holdings", s.handleHoldings)
		r.Get("/instruments/search", s.handleSearchInstruments)
		r.Get("/news", s.handleNews)
		r.Post("/crypto/orders", s.handleCryptoOrder)
		r.Get("/crypto/portfolio", s.handleCryptoPortfolio)
		if s.hub != nil {
			r.Get("/orders/ws", s.hub.ServeHTTP)
		}
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
