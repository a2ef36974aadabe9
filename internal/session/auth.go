package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pquerna/otp/totp"

	"trading-gatewayv1/internal/model"
)

// Credentials identifies one brokerage account.
type Credentials struct {
	APIKey     string
	ClientCode string
	PIN        string
	TOTPSecret string
}

// Identity derives the opaque session-store key for these credentials.
// Only the client code participates; secrets never leave the struct.
func (c Credentials) Identity() string {
	return "angelone:" + c.ClientCode
}

// AuthError is a rejected or malformed broker login. Fatal; the engine
// never auto-retries it.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth: login failed: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// Authenticator obtains and caches broker sessions for one credential set.
// The TOTP code is generated from the shared secret immediately before each
// login attempt; codes are time-windowed and must never be cached.
type Authenticator struct {
	broker model.Broker
	store  *Store
	creds  Credentials
	loc    *time.Location
	log    *slog.Logger

	// Optional metric hooks.
	OnCacheHit func()
	OnLogin    func(err error)

	// now is swappable for boundary tests.
	now func() time.Time
}

// NewAuthenticator creates an authenticator backed by the given store.
func NewAuthenticator(broker model.Broker, store *Store, creds Credentials, loc *time.Location, log *slog.Logger) *Authenticator {
	return &Authenticator{
		broker: broker,
		store:  store,
		creds:  creds,
		loc:    loc,
		log:    log,
		now:    time.Now,
	}
}

// Session returns a valid session for the credential identity, reusing the
// cached one when it has not crossed the daily reset boundary and logging in
// fresh otherwise. The per-identity slot lock serializes concurrent callers
// so only one login runs at a time per account.
func (a *Authenticator) Session(ctx context.Context) (Session, error) {
	sl := a.store.slot(a.creds.Identity())
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.sess != nil && sl.sess.ValidAt(a.now(), a.loc) {
		if a.OnCacheHit != nil {
			a.OnCacheHit()
		}
		return *sl.sess, nil
	}

	sess, err := a.login(ctx)
	if a.OnLogin != nil {
		a.OnLogin(err)
	}
	if err != nil {
		sl.sess = nil
		return Session{}, err
	}
	sl.sess = &sess
	return sess, nil
}

// Invalidate discards the cached session so the next Session call performs a
// fresh login. Called when an API response signals the token is dead.
func (a *Authenticator) Invalidate() {
	a.store.Invalidate(a.creds.Identity())
}

// brokerLogout is implemented by adapters that can release a session
// server-side.
type brokerLogout interface {
	Logout(ctx context.Context, token, clientCode string) error
}

// Close releases the cached session, telling the broker to revoke the token
// when the adapter supports it. Meant for graceful shutdown; a revocation
// failure is reported but the local session is dropped regardless.
func (a *Authenticator) Close(ctx context.Context) error {
	sl := a.store.slot(a.creds.Identity())
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.sess == nil {
		return nil
	}
	token := sl.sess.Token
	sl.sess = nil

	lo, ok := a.broker.(brokerLogout)
	if !ok {
		return nil
	}
	if err := lo.Logout(ctx, token, a.creds.ClientCode); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	a.log.Info("broker session released")
	return nil
}

func (a *Authenticator) login(ctx context.Context) (Session, error) {
	code, err := totp.GenerateCode(a.creds.TOTPSecret, a.now())
	if err != nil {
		return Session{}, &AuthError{Err: fmt.Errorf("totp generation: %w", err)}
	}

	res, err := a.broker.Login(ctx, a.creds.ClientCode, a.creds.PIN, code)
	if err != nil {
		return Session{}, &AuthError{Err: err}
	}

	sess := Session{Token: res.Token, AcquiredAt: a.now()}
	a.log.Info("broker session established",
		slog.Time("acquired_at", sess.AcquiredAt),
		slog.Time("valid_until", NextResetAfter(sess.AcquiredAt, a.loc)))
	return sess, nil
}
