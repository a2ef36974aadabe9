package coinbase

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Client is a minimal Coinbase Advanced Trade REST client. Auth is a
// short-lived ES256 JWT minted per request from the CDP key name and EC
// private key.
type Client struct {
	apiBase       string
	hc            *http.Client
	keyName       string
	privateKeyPEM string
}

// NewClient creates an Advanced Trade client. apiBase defaults to the
// production endpoint when empty.
func NewClient(apiBase, keyName, privateKeyPEM string) *Client {
	if apiBase == "" {
		apiBase = "https://api.coinbase.com"
	}
	return &Client{
		apiBase:       strings.TrimRight(apiBase, "/"),
		hc:            &http.Client{Timeout: 15 * time.Second},
		keyName:       keyName,
		privateKeyPEM: privateKeyPEM,
	}
}

// Enabled reports whether credentials are configured. The crypto endpoints
// are switched off entirely when they are not.
func (c *Client) Enabled() bool {
	return c.keyName != "" && c.privateKeyPEM != ""
}

// CreateOrder submits an Advanced Trade order. In dry-run mode the fully
// built request payload is returned without transmitting anything, for
// client-side verification.
func (c *Client) CreateOrder(ctx context.Context, params TradeParams) (map[string]any, error) {
	payload, err := BuildCreateOrderPayload(params)
	if err != nil {
		return nil, err
	}
	if params.DryRun {
		return map[string]any{"dry_run": true, "order_payload": payload}, nil
	}

	var out map[string]any
	if err := c.doJSON(ctx, http.MethodPost, "/api/v3/brokerage/orders", payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// accountsPage is one page of the paginated accounts listing.
type accountsPage struct {
	Accounts []map[string]any `json:"accounts"`
	HasNext  bool             `json:"has_next"`
	Cursor   string           `json:"cursor"`
}

// ListAccounts fetches all accounts, following the cursor until exhausted.
func (c *Client) ListAccounts(ctx context.Context) ([]map[string]any, error) {
	const pageLimit = 250

	var all []map[string]any
	cursor := ""
	for {
		q := url.Values{"limit": []string{fmt.Sprint(pageLimit)}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var page accountsPage
		if err := c.doJSON(ctx, http.MethodGet, "/api/v3/brokerage/accounts?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Accounts...)

		if !page.HasNext {
			return all, nil
		}
		cursor = page.Cursor
	}
}

// Portfolio returns the authenticated user's portfolio summary.
func (c *Client) Portfolio(ctx context.Context) (PortfolioSummary, error) {
	accounts, err := c.ListAccounts(ctx)
	if err != nil {
		return PortfolioSummary{}, err
	}
	return BuildPortfolioSummary(accounts), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	if !c.Enabled() {
		return errors.New("coinbase: credentials not configured")
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("coinbase: marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.mintJWT(method, path)
	if err != nil {
		return fmt.Errorf("coinbase: mint jwt: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("coinbase: %s %s: %d %s", method, path, res.StatusCode, string(raw))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// mintJWT signs a short-lived ES256 token scoped to one request URI, per
// the CDP API key scheme.
func (c *Client) mintJWT(method, path string) (string, error) {
	key, err := parseECPrivateKey(c.privateKeyPEM)
	if err != nil {
		return "", err
	}

	host := strings.TrimPrefix(strings.TrimPrefix(c.apiBase, "https://"), "http://")
	// The uri claim excludes the query string.
	uri := method + " " + host + strings.SplitN(path, "?", 2)[0]

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"iss": "cdp",
		"sub": c.keyName,
		"uri": uri,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(2 * time.Minute).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	t.Header["kid"] = c.keyName
	t.Header["nonce"] = uuid.NewString()
	return t.SignedString(key)
}

func parseECPrivateKey(pemStr string) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("invalid private key (no PEM block)")
	}
	switch block.Type {
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		ec, ok := k.(*ecdsa.PrivateKey)
		if !ok {
			return nil, errors.New("not an EC private key")
		}
		return ec, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
}
