package model

// InstrumentRef is a resolved identifier for a tradeable instrument on a
// specific exchange. Immutable once resolved for a given order.
type InstrumentRef struct {
	Exchange      Exchange `json:"exchange"`
	TradingSymbol string   `json:"tradingsymbol"`
	SymbolToken   string   `json:"symboltoken"`
}

// Key returns a unique cache key for this instrument: "exchange:symbol".
func (i InstrumentRef) Key() string {
	return string(i.Exchange) + ":" + i.TradingSymbol
}
