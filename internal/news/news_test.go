package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const feedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>search</title>%s</channel></rss>`

func feedWith(items int) string {
	var b strings.Builder
	for i := 1; i <= items; i++ {
		fmt.Fprintf(&b,
			`<item><title> Headline %d </title><link>https://example.com/%d</link><pubDate>Mon, 25 Aug 2025 10:0%d:00 GMT</pubDate></item>`,
			i, i, i%10)
	}
	return fmt.Sprintf(feedTemplate, b.String())
}

func newTestFetcher(google, yahoo http.Handler) (*Fetcher, func()) {
	gs := httptest.NewServer(google)
	ys := httptest.NewServer(yahoo)
	f := NewFetcher()
	f.googleBase = gs.URL
	f.yahooBase = ys.URL
	return f, func() { gs.Close(); ys.Close() }
}

func TestSearch_AllProvidersQueried(t *testing.T) {
	var googleQueries []string
	google := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		googleQueries = append(googleQueries, r.URL.Query().Get("q"))
		fmt.Fprint(w, feedWith(2))
	})
	yahoo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("p"); got != "TCS results" {
			t.Errorf("yahoo query = %q", got)
		}
		fmt.Fprint(w, feedWith(1))
	})
	f, cleanup := newTestFetcher(google, yahoo)
	defer cleanup()

	out := f.Search(context.Background(), "TCS results")

	for _, provider := range []string{
		"google_news", "yahoo_news", "moneycontrol",
		"economic_times_markets", "business_standard_markets",
	} {
		res, ok := out[provider]
		if !ok {
			t.Errorf("provider %s missing from results", provider)
			continue
		}
		if res.Error != "" {
			t.Errorf("provider %s: %s", provider, res.Error)
		}
	}

	// Site-filtered queries ride the plain Google endpoint.
	if len(googleQueries) != 4 {
		t.Fatalf("google queries = %d, want 4", len(googleQueries))
	}
	siteFiltered := 0
	for _, q := range googleQueries {
		if strings.Contains(q, "site:") {
			siteFiltered++
		}
	}
	if siteFiltered != 3 {
		t.Errorf("site-filtered queries = %d, want 3", siteFiltered)
	}
}

func TestSearch_CapsItemsAndTrimsWhitespace(t *testing.T) {
	google := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedWith(9))
	})
	yahoo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedWith(0))
	})
	f, cleanup := newTestFetcher(google, yahoo)
	defer cleanup()

	out := f.Search(context.Background(), "INFY")

	res := out["google_news"]
	if len(res.Items) != maxItemsPerProvider {
		t.Fatalf("items = %d, want capped at %d", len(res.Items), maxItemsPerProvider)
	}
	if res.Items[0].Title != "Headline 1" {
		t.Errorf("title = %q, want trimmed", res.Items[0].Title)
	}
	if res.Items[0].Link != "https://example.com/1" {
		t.Errorf("link = %q", res.Items[0].Link)
	}
	if len(out["yahoo_news"].Items) != 0 {
		t.Errorf("empty feed should yield zero items, got %d", len(out["yahoo_news"].Items))
	}
}

func TestSearch_ProviderFailuresAreIsolated(t *testing.T) {
	google := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	yahoo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedWith(3))
	})
	f, cleanup := newTestFetcher(google, yahoo)
	defer cleanup()

	out := f.Search(context.Background(), "SBIN")

	if out["google_news"].Error == "" {
		t.Error("expected an error entry for the failing provider")
	}
	if out["yahoo_news"].Error != "" {
		t.Errorf("healthy provider tainted: %s", out["yahoo_news"].Error)
	}
	if len(out["yahoo_news"].Items) != 3 {
		t.Errorf("yahoo items = %d, want 3", len(out["yahoo_news"].Items))
	}
}

func TestSearch_MalformedFeed(t *testing.T) {
	google := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not rss</html")
	})
	yahoo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedWith(1))
	})
	f, cleanup := newTestFetcher(google, yahoo)
	defer cleanup()

	out := f.Search(context.Background(), "HDFC")
	if out["google_news"].Error == "" {
		t.Error("expected a malformed-feed error")
	}
}
