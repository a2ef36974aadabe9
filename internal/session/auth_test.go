package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"trading-gatewayv1/internal/model"
)

// fakeBroker counts logins and hands out sequential tokens.
type fakeBroker struct {
	logins   int
	loginErr error
	lastTOTP string

	logouts     int
	logoutToken string
}

func (f *fakeBroker) Login(_ context.Context, _, _, totpCode string) (model.LoginResult, error) {
	f.logins++
	f.lastTOTP = totpCode
	if f.loginErr != nil {
		return model.LoginResult{}, f.loginErr
	}
	return model.LoginResult{Token: "jwt-" + string(rune('0'+f.logins))}, nil
}

func (f *fakeBroker) SearchScrip(context.Context, string, model.Exchange, string) ([]model.InstrumentRef, error) {
	return nil, nil
}
func (f *fakeBroker) PlaceOrder(context.Context, string, map[string]any) (model.PlacementResult, error) {
	return model.PlacementResult{}, nil
}
func (f *fakeBroker) OrderDetail(context.Context, string, string) (*model.OrderDetail, error) {
	return nil, nil
}
func (f *fakeBroker) OrderBook(context.Context, string) ([]model.OrderDetail, error) {
	return nil, nil
}
func (f *fakeBroker) Holdings(context.Context, string) (json.RawMessage, error) {
	return nil, nil
}
func (f *fakeBroker) Logout(_ context.Context, token, _ string) error {
	f.logouts++
	f.logoutToken = token
	return nil
}

const testTOTPSecret = "JBSWY3DPEHPK3PXP"

func newTestAuth(broker model.Broker) *Authenticator {
	creds := Credentials{APIKey: "k", ClientCode: "C1", PIN: "1234", TOTPSecret: testTOTPSecret}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthenticator(broker, NewStore(), creds, ist, log)
}

func TestAuthenticator_CachesWhileValid(t *testing.T) {
	fb := &fakeBroker{}
	a := newTestAuth(fb)
	a.now = func() time.Time { return at(2025, 3, 10, 10, 0, 0) }

	first, err := a.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	second, err := a.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if fb.logins != 1 {
		t.Errorf("logins = %d, want 1", fb.logins)
	}
	if first.Token != second.Token {
		t.Errorf("cached token differs: %q vs %q", first.Token, second.Token)
	}
	if fb.lastTOTP == "" {
		t.Error("login must carry a freshly generated TOTP code")
	}
}

func TestAuthenticator_ReloginsAfterResetBoundary(t *testing.T) {
	fb := &fakeBroker{}
	a := newTestAuth(fb)

	now := at(2025, 3, 10, 4, 59, 0)
	a.now = func() time.Time { return now }
	if _, err := a.Session(context.Background()); err != nil {
		t.Fatalf("Session: %v", err)
	}

	// Two minutes later the 05:00 boundary has passed.
	now = at(2025, 3, 10, 5, 1, 0)
	if _, err := a.Session(context.Background()); err != nil {
		t.Fatalf("Session: %v", err)
	}
	if fb.logins != 2 {
		t.Errorf("logins = %d, want 2 (boundary crossed)", fb.logins)
	}
}

func TestAuthenticator_ReloginsAfterInvalidate(t *testing.T) {
	fb := &fakeBroker{}
	a := newTestAuth(fb)
	a.now = func() time.Time { return at(2025, 3, 10, 10, 0, 0) }

	if _, err := a.Session(context.Background()); err != nil {
		t.Fatalf("Session: %v", err)
	}
	a.Invalidate()
	if _, err := a.Session(context.Background()); err != nil {
		t.Fatalf("Session: %v", err)
	}
	if fb.logins != 2 {
		t.Errorf("logins = %d, want 2 after invalidation", fb.logins)
	}
}

func TestAuthenticator_CloseReleasesSession(t *testing.T) {
	fb := &fakeBroker{}
	a := newTestAuth(fb)
	a.now = func() time.Time { return at(2025, 3, 10, 10, 0, 0) }

	sess, err := a.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}

	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if fb.logouts != 1 {
		t.Errorf("logouts = %d, want 1", fb.logouts)
	}
	if fb.logoutToken != sess.Token {
		t.Errorf("logout token = %q, want the cached session's %q", fb.logoutToken, sess.Token)
	}

	// The cache is gone; the next Session call logs in fresh.
	if _, err := a.Session(context.Background()); err != nil {
		t.Fatalf("Session after Close: %v", err)
	}
	if fb.logins != 2 {
		t.Errorf("logins = %d, want 2", fb.logins)
	}
}

func TestAuthenticator_CloseWithoutSessionIsNoop(t *testing.T) {
	fb := &fakeBroker{}
	a := newTestAuth(fb)

	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if fb.logouts != 0 {
		t.Errorf("logouts = %d, want 0 with nothing cached", fb.logouts)
	}
}

func TestAuthenticator_LoginRejection(t *testing.T) {
	fb := &fakeBroker{loginErr: errors.New("invalid totp")}
	a := newTestAuth(fb)
	a.now = func() time.Time { return at(2025, 3, 10, 10, 0, 0) }

	_, err := a.Session(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %v", err)
	}
}
