package coinbase

import (
	"github.com/shopspring/decimal"
)

// Holding is one non-zero account balance in the portfolio summary.
type Holding struct {
	UUID              string `json:"uuid"`
	Name              string `json:"name"`
	Currency          string `json:"currency"`
	AvailableValue    string `json:"available_value"`
	AvailableCurrency string `json:"available_currency"`
	HoldValue         string `json:"hold_value"`
	HoldCurrency      string `json:"hold_currency"`
	Platform          string `json:"platform,omitempty"`
	RetailPortfolioID string `json:"retail_portfolio_id,omitempty"`
}

// PortfolioSummary is the caller-facing view of the Coinbase accounts.
type PortfolioSummary struct {
	Accounts []map[string]any `json:"accounts"`
	Holdings []Holding        `json:"holdings"`
}

// BuildPortfolioSummary filters the raw accounts down to those holding any
// non-zero available or held balance.
func BuildPortfolioSummary(accounts []map[string]any) PortfolioSummary {
	holdings := make([]Holding, 0, len(accounts))
	for _, acc := range accounts {
		currency := str(acc["currency"])
		available := balance(acc["available_balance"], currency)
		hold := balance(acc["hold"], currency)

		if toDecimal(available.value).IsZero() && toDecimal(hold.value).IsZero() {
			continue
		}

		holdings = append(holdings, Holding{
			UUID:              str(acc["uuid"]),
			Name:              str(acc["name"]),
			Currency:          currency,
			AvailableValue:    available.value,
			AvailableCurrency: available.currency,
			HoldValue:         hold.value,
			HoldCurrency:      hold.currency,
			Platform:          str(acc["platform"]),
			RetailPortfolioID: str(acc["retail_portfolio_id"]),
		})
	}

	return PortfolioSummary{Accounts: accounts, Holdings: holdings}
}

type balanceFields struct {
	value    string
	currency string
}

func balance(v any, fallbackCurrency string) balanceFields {
	b := balanceFields{value: "0", currency: fallbackCurrency}
	m, ok := v.(map[string]any)
	if !ok {
		return b
	}
	if s := str(m["value"]); s != "" {
		b.value = s
	}
	if s := str(m["currency"]); s != "" {
		b.currency = s
	}
	return b
}

// toDecimal parses tolerantly: empty or malformed values count as zero.
func toDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
