package enum

import "strings"

// Currency identifies a tradable currency leg.
type Currency string

const (
	CurrencyBTC Currency = "btc"
	CurrencyETH Currency = "eth"
	CurrencyEUR Currency = "eur"
	CurrencyUSD Currency = "usd"
	CurrencyCAD Currency = "cad"
	CurrencyCHF Currency = "chf"
)

var currencies = map[Currency]struct{}{
	CurrencyBTC: {},
	CurrencyETH: {},
	CurrencyEUR: {},
	CurrencyUSD: {},
	CurrencyCAD: {},
	CurrencyCHF: {},
}

func (c Currency) IsAvailable() bool {
	_, ok := currencies[c]
	return ok
}

func (c Currency) Upper() string {
	return strings.ToUpper(string(c))
}

// ParseCurrency normalizes a currency code from config or wire payloads.
func ParseCurrency(s string) (Currency, bool) {
	c := Currency(strings.ToLower(s))
	return c, c.IsAvailable()
}
