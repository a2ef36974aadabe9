package execution

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"trading-gatewayv1/internal/model"
	"trading-gatewayv1/internal/resolve"
	"trading-gatewayv1/internal/session"
)

// expiredErr mimics an adapter error classified as session expiry.
type expiredErr struct{}

func (expiredErr) Error() string        { return "Session Expired (AG8001)" }
func (expiredErr) SessionExpired() bool { return true }

// fakeBroker scripts each endpoint with per-call functions and counts calls.
type fakeBroker struct {
	logins, places, details, books int

	loginFn  func(call int) (model.LoginResult, error)
	searchFn func() ([]model.InstrumentRef, error)
	placeFn  func(call int) (model.PlacementResult, error)
	detailFn func(call int) (*model.OrderDetail, error)
	bookFn   func(call int) ([]model.OrderDetail, error)
	holdFn   func(call int) (json.RawMessage, error)
	holds    int
}

func (f *fakeBroker) Login(context.Context, string, string, string) (model.LoginResult, error) {
	f.logins++
	if f.loginFn != nil {
		return f.loginFn(f.logins)
	}
	return model.LoginResult{Token: "jwt"}, nil
}

func (f *fakeBroker) SearchScrip(context.Context, string, model.Exchange, string) ([]model.InstrumentRef, error) {
	if f.searchFn != nil {
		return f.searchFn()
	}
	return []model.InstrumentRef{{Exchange: model.NSE, TradingSymbol: "TCS-EQ", SymbolToken: "11536"}}, nil
}

func (f *fakeBroker) PlaceOrder(context.Context, string, map[string]any) (model.PlacementResult, error) {
	f.places++
	if f.placeFn != nil {
		return f.placeFn(f.places)
	}
	return model.PlacementResult{OrderID: "1", UniqueOrderID: "u1"}, nil
}

func (f *fakeBroker) OrderDetail(context.Context, string, string) (*model.OrderDetail, error) {
	f.details++
	if f.detailFn != nil {
		return f.detailFn(f.details)
	}
	return &model.OrderDetail{OrderID: "1", UniqueOrderID: "u1", Status: "complete"}, nil
}

func (f *fakeBroker) OrderBook(context.Context, string) ([]model.OrderDetail, error) {
	f.books++
	if f.bookFn != nil {
		return f.bookFn(f.books)
	}
	return nil, nil
}

func (f *fakeBroker) Holdings(context.Context, string) (json.RawMessage, error) {
	f.holds++
	if f.holdFn != nil {
		return f.holdFn(f.holds)
	}
	return json.RawMessage(`[]`), nil
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestExecutor(fb *fakeBroker) *Executor {
	store := session.NewStore()
	creds := session.Credentials{APIKey: "k", ClientCode: "C1", PIN: "1234", TOTPSecret: "JBSWY3DPEHPK3PXP"}
	loc := time.FixedZone("IST", 5*3600+30*60)
	auth := session.NewAuthenticator(fb, store, creds, loc, discard)
	return NewExecutor(ExecutorConfig{
		Broker:     fb,
		Auth:       auth,
		Resolver:   resolve.New(fb, nil, discard),
		Reconciler: NewReconciler(fb, 2, time.Millisecond, nil, discard),
		Logger:     discard,
	})
}

func marketBuy(qty int64) model.OrderRequest {
	return model.OrderRequest{
		TradingSymbol:   "TCS",
		TransactionType: model.Buy,
		Quantity:        qty,
	}
}

func TestSubmit_Success(t *testing.T) {
	fb := &fakeBroker{
		placeFn: func(int) (model.PlacementResult, error) {
			return model.PlacementResult{OrderID: "240801", UniqueOrderID: "u-240801"}, nil
		},
	}
	ex := newTestExecutor(fb)

	resp, err := ex.Submit(context.Background(), marketBuy(5))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.OrderID != "240801" {
		t.Errorf("order id = %q", resp.OrderID)
	}
	if resp.OrderStatus == nil || *resp.OrderStatus != "complete" {
		t.Errorf("order status = %v, want complete", resp.OrderStatus)
	}
	if fb.logins != 1 {
		t.Errorf("logins = %d, want 1", fb.logins)
	}
}

func TestSubmit_SessionExpiryRetriesOnce(t *testing.T) {
	fb := &fakeBroker{
		placeFn: func(call int) (model.PlacementResult, error) {
			if call == 1 {
				return model.PlacementResult{}, expiredErr{}
			}
			return model.PlacementResult{OrderID: "second", UniqueOrderID: "u2"}, nil
		},
	}
	ex := newTestExecutor(fb)

	resp, err := ex.Submit(context.Background(), marketBuy(1))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.OrderID != "second" {
		t.Errorf("order id = %q, want the retry attempt's id", resp.OrderID)
	}
	if fb.logins != 2 {
		t.Errorf("logins = %d, want exactly 2", fb.logins)
	}
	if fb.places != 2 {
		t.Errorf("place calls = %d, want 2", fb.places)
	}
}

func TestSubmit_DoubleExpiryIsFatal(t *testing.T) {
	fb := &fakeBroker{
		placeFn: func(int) (model.PlacementResult, error) {
			return model.PlacementResult{}, expiredErr{}
		},
	}
	ex := newTestExecutor(fb)

	_, err := ex.Submit(context.Background(), marketBuy(1))
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected *SubmissionError, got %v", err)
	}
	if fb.logins != 2 {
		t.Errorf("logins = %d, want 2 (no third authentication)", fb.logins)
	}
	if fb.places != 2 {
		t.Errorf("place calls = %d, want 2", fb.places)
	}
}

func TestSubmit_BrokerRejection(t *testing.T) {
	fb := &fakeBroker{
		placeFn: func(int) (model.PlacementResult, error) {
			return model.PlacementResult{}, errors.New("Insufficient funds")
		},
	}
	ex := newTestExecutor(fb)

	_, err := ex.Submit(context.Background(), marketBuy(1))
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected *SubmissionError, got %v", err)
	}
	if fb.places != 1 {
		t.Errorf("place calls = %d, rejection must not retry", fb.places)
	}
}

func TestSubmit_MarketWithPriceRejectedBeforeSubmission(t *testing.T) {
	fb := &fakeBroker{}
	ex := newTestExecutor(fb)

	price := 3500.0
	req := marketBuy(1)
	req.Price = &price

	_, err := ex.Submit(context.Background(), req)
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected *SubmissionError, got %v", err)
	}
	if fb.logins != 0 || fb.places != 0 {
		t.Error("structurally invalid order must be rejected before any network call")
	}
}

func TestSubmit_ZeroQuantityRejected(t *testing.T) {
	fb := &fakeBroker{}
	ex := newTestExecutor(fb)

	if _, err := ex.Submit(context.Background(), marketBuy(0)); err == nil {
		t.Fatal("expected rejection for zero quantity")
	}
	if fb.places != 0 {
		t.Error("invalid order reached the broker")
	}
}

func TestSubmit_ResolutionFailureAborts(t *testing.T) {
	fb := &fakeBroker{
		searchFn: func() ([]model.InstrumentRef, error) { return nil, nil },
	}
	ex := newTestExecutor(fb)

	_, err := ex.Submit(context.Background(), marketBuy(1))
	var resErr *resolve.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *resolve.ResolutionError, got %v", err)
	}
	if fb.places != 0 {
		t.Error("unresolved order must not be submitted")
	}
}

func TestSubmit_CallerSuppliedTokenSkipsResolution(t *testing.T) {
	searched := false
	fb := &fakeBroker{
		searchFn: func() ([]model.InstrumentRef, error) {
			searched = true
			return nil, nil
		},
	}
	ex := newTestExecutor(fb)

	req := marketBuy(1)
	req.TradingSymbol = "TCS-EQ"
	req.SymbolToken = "11536"

	if _, err := ex.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if searched {
		t.Error("resolver must be skipped when the token was supplied")
	}
}

func TestHoldings_ExpiryRetriesOnce(t *testing.T) {
	fb := &fakeBroker{
		holdFn: func(call int) (json.RawMessage, error) {
			if call == 1 {
				return nil, expiredErr{}
			}
			return json.RawMessage(`[{"tradingsymbol":"TCS-EQ"}]`), nil
		},
	}
	ex := newTestExecutor(fb)

	data, err := ex.Holdings(context.Background())
	if err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected holdings payload")
	}
	if fb.logins != 2 {
		t.Errorf("logins = %d, want 2", fb.logins)
	}
}

func TestHoldings_DoubleExpiryIsNotASubmissionError(t *testing.T) {
	fb := &fakeBroker{
		holdFn: func(int) (json.RawMessage, error) {
			return nil, expiredErr{}
		},
	}
	ex := newTestExecutor(fb)

	_, err := ex.Holdings(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		t.Errorf("holdings failure surfaced as an order-submission error: %v", err)
	}
	if !model.IsSessionExpired(err) {
		t.Errorf("expiry signal lost in wrapping: %v", err)
	}
	if fb.logins != 2 {
		t.Errorf("logins = %d, want 2 (no third authentication)", fb.logins)
	}
}

func TestNormalize_PassesNilStatusThrough(t *testing.T) {
	placement := model.PlacementResult{OrderID: "9"}
	record := model.StatusRecord{OrderID: "9"}

	resp := Normalize(placement, record)
	if resp.OrderID != "9" {
		t.Errorf("order id = %q", resp.OrderID)
	}
	if resp.OrderStatus != nil {
		t.Errorf("status = %v, want nil", resp.OrderStatus)
	}
	if resp.OrderStatusDetails != nil {
		t.Errorf("details = %s, want nil", resp.OrderStatusDetails)
	}
}
