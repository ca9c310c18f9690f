package enum

import "strings"

// Market identifies a trading venue.
//
// Market and AdapterName are deliberately distinct types: both may carry the
// same string value (an OTC desk can be treated as a market of its own), but as
// bus topic keys they must never collide. Go type identity keeps the two
// namespaces apart.
type Market string

const (
	MarketKraken   Market = "kraken"
	MarketBitfinex Market = "bitfinex"
	MarketBitstamp Market = "bitstamp"
	MarketBinance  Market = "binance"
	MarketCoinbase Market = "coinbase"
	MarketOkcoin   Market = "okcoin"
	MarketOtcx     Market = "otcx"
)

var markets = map[Market]struct{}{
	MarketKraken:   {},
	MarketBitfinex: {},
	MarketBitstamp: {},
	MarketBinance:  {},
	MarketCoinbase: {},
	MarketOkcoin:   {},
	MarketOtcx:     {},
}

func (m Market) IsAvailable() bool {
	_, ok := markets[m]
	return ok
}

// ParseMarket normalizes a venue name from config or wire payloads.
func ParseMarket(s string) (Market, bool) {
	m := Market(strings.ToLower(s))
	return m, m.IsAvailable()
}

// AdapterName identifies a venue adapter. Each adapter has a unique name.
type AdapterName string

const (
	AdapterOtcx AdapterName = "otcx"
)

func (a AdapterName) IsAvailable() bool {
	return a == AdapterOtcx
}
