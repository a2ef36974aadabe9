// Package resolve maps human-entered symbol queries to exchange instrument
// tokens via the broker's scrip search, with a deterministic preference for
// equity-series listings.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"trading-gatewayv1/internal/model"
)

// equitySuffix marks the NSE equity series in SmartAPI trading symbols,
// e.g. "TCS-EQ" vs the "TCS-BE" trade-to-trade listing.
const equitySuffix = "-EQ"

// ResolutionError means the query matched nothing or the provider returned
// an erroneous response. Fatal; the order is never submitted.
type ResolutionError struct {
	Exchange model.Exchange
	Query    string
	Err      error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve: %s on %s: %v", e.Query, e.Exchange, e.Err)
	}
	return fmt.Sprintf("resolve: no instrument matches %q on %s", e.Query, e.Exchange)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolver resolves symbol queries through the broker, consulting an
// optional cache first.
type Resolver struct {
	broker model.Broker
	cache  *Cache // nil disables caching
	log    *slog.Logger

	// OnCacheHit is an optional metric hook.
	OnCacheHit func()
}

// New creates a resolver. cache may be nil.
func New(broker model.Broker, cache *Cache, log *slog.Logger) *Resolver {
	return &Resolver{broker: broker, cache: cache, log: log}
}

// Resolve maps (exchange, query) to an instrument reference.
//
// Session-expiry errors from the broker propagate untouched so the caller
// can re-authenticate and retry; every other provider failure and the
// zero-match case become a ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, token string, exchange model.Exchange, query string) (model.InstrumentRef, error) {
	if r.cache != nil {
		if ref, ok := r.cache.Get(ctx, exchange, query); ok {
			if r.OnCacheHit != nil {
				r.OnCacheHit()
			}
			return ref, nil
		}
	}

	matches, err := r.broker.SearchScrip(ctx, token, exchange, query)
	if err != nil {
		if model.IsSessionExpired(err) {
			return model.InstrumentRef{}, err
		}
		return model.InstrumentRef{}, &ResolutionError{Exchange: exchange, Query: query, Err: err}
	}
	if len(matches) == 0 {
		return model.InstrumentRef{}, &ResolutionError{Exchange: exchange, Query: query}
	}

	ref := pick(matches, exchange, query)
	r.log.Debug("instrument resolved",
		slog.String("query", query),
		slog.String("symbol", ref.TradingSymbol),
		slog.String("token", ref.SymbolToken))

	if r.cache != nil {
		r.cache.Put(ctx, exchange, query, ref)
	}
	return ref, nil
}

// pick applies the tie-break policy: the first match on the requested
// exchange whose symbol carries the equity suffix or equals the query
// exactly; otherwise the first result in the provider's order. The scan is
// a single forward pass, so a fixed provider response always yields the
// same instrument.
func pick(matches []model.InstrumentRef, exchange model.Exchange, query string) model.InstrumentRef {
	upQuery := strings.ToUpper(query)
	for _, m := range matches {
		if m.Exchange != exchange {
			continue
		}
		sym := strings.ToUpper(m.TradingSymbol)
		if strings.HasSuffix(sym, equitySuffix) || sym == upQuery {
			return m
		}
	}
	return matches[0]
}
