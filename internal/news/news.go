// Package news aggregates recent market headlines from public RSS search
// feeds. Providers fail independently; one unreachable feed never blanks
// the others.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Item is one headline from a provider feed.
type Item struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Published string `json:"published,omitempty"`
}

// ProviderResult carries one provider's headlines, or the error that
// replaced them.
type ProviderResult struct {
	Items []Item `json:"items"`
	Error string `json:"error,omitempty"`
}

const (
	maxItemsPerProvider = 5
	fetchTimeout        = 15 * time.Second
)

// Fetcher pulls headlines from Google News and Yahoo News RSS search, plus
// site-filtered Google queries for the Indian markets press.
type Fetcher struct {
	hc *http.Client

	// Feed endpoints, overridable in tests.
	googleBase string
	yahooBase  string
}

// NewFetcher creates a fetcher against the public feed endpoints.
func NewFetcher() *Fetcher {
	return &Fetcher{
		hc:         &http.Client{Timeout: fetchTimeout},
		googleBase: "https://news.google.com/rss/search",
		yahooBase:  "https://news.search.yahoo.com/rss",
	}
}

// Search fetches headlines for the query from every provider. The result
// always has one entry per provider; failures are recorded per entry.
func (f *Fetcher) Search(ctx context.Context, query string) map[string]ProviderResult {
	googleQueries := map[string]string{
		"google_news":               query,
		"moneycontrol":              query + " site:moneycontrol.com",
		"economic_times_markets":    query + " site:economictimes.indiatimes.com/markets",
		"business_standard_markets": query + " site:business-standard.com/markets",
	}

	out := make(map[string]ProviderResult, len(googleQueries)+1)
	for provider, q := range googleQueries {
		out[provider] = f.fetch(ctx, f.googleBase+"?q="+url.QueryEscape(q)+"&hl=en-US&gl=US&ceid=US:en")
	}
	out["yahoo_news"] = f.fetch(ctx, f.yahooBase+"?p="+url.QueryEscape(query))
	return out
}

// rssDoc is the subset of RSS 2.0 the feeds actually emit.
type rssDoc struct {
	Channel struct {
		Items []struct {
			Title   string `xml:"title"`
			Link    string `xml:"link"`
			PubDate string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

func (f *Fetcher) fetch(ctx context.Context, feedURL string) ProviderResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return ProviderResult{Error: err.Error()}
	}

	res, err := f.hc.Do(req)
	if err != nil {
		return ProviderResult{Error: err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return ProviderResult{Error: fmt.Sprintf("feed returned status %d", res.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return ProviderResult{Error: err.Error()}
	}

	var doc rssDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return ProviderResult{Error: "malformed feed: " + err.Error()}
	}

	items := make([]Item, 0, maxItemsPerProvider)
	for _, it := range doc.Channel.Items {
		if len(items) == maxItemsPerProvider {
			break
		}
		title := strings.TrimSpace(it.Title)
		link := strings.TrimSpace(it.Link)
		if title == "" && link == "" {
			continue
		}
		items = append(items, Item{
			Title:     title,
			Link:      link,
			Published: strings.TrimSpace(it.PubDate),
		})
	}
	return ProviderResult{Items: items}
}
