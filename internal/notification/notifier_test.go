package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookNotifier_PostsAlertWithFields(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	alert := OrderPlaced("240826000001", "SBIN-EQ", "BUY", "complete")
	if err := n.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got["title"] != "Order placed" {
		t.Errorf("title = %v", got["title"])
	}
	if got["order_id"] != "240826000001" {
		t.Errorf("order_id = %v", got["order_id"])
	}
	if got["symbol"] != "SBIN-EQ" {
		t.Errorf("symbol = %v", got["symbol"])
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "t"}); err == nil {
		t.Fatal("expected error on 5xx response")
	}
}

type stubNotifier struct {
	sent int
	err  error
}

func (s *stubNotifier) Send(ctx context.Context, alert Alert) error {
	s.sent++
	return s.err
}

func TestMulti_AttemptsAllBackends(t *testing.T) {
	a := &stubNotifier{err: errors.New("down")}
	b := &stubNotifier{}

	m := NewMulti(a, b)
	err := m.Send(context.Background(), OrderUnconfirmed("X1", "INFY-EQ"))

	if err == nil {
		t.Error("first backend failure should surface")
	}
	if a.sent != 1 || b.sent != 1 {
		t.Errorf("sends = %d, %d; want 1, 1", a.sent, b.sent)
	}
}
