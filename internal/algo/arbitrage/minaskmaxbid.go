package arbitrage

import (
	"fmt"

	"main/internal/model"
)

// MinAskMaxBid is a cross-market snapshot for one pair: the market currently
// posting the lowest ask and the market posting the highest bid. When the
// two markets differ and the spread is negative the pair of quotes is a
// direct arbitrage opportunity.
type MinAskMaxBid struct {
	minAsk model.Quote
	maxBid model.Quote
}

// NewMinAskMaxBid pairs the lowest-ask and highest-bid quotes of one pair.
func NewMinAskMaxBid(minAsk, maxBid model.Quote) MinAskMaxBid {
	return MinAskMaxBid{minAsk: minAsk, maxBid: maxBid}
}

// MinAsk returns the quote with the lowest ask across markets.
func (m MinAskMaxBid) MinAsk() model.Quote { return m.minAsk }

// MaxBid returns the quote with the highest bid across markets.
func (m MinAskMaxBid) MaxBid() model.Quote { return m.maxBid }

// Size is the tradable size of the opportunity, taken from the min-ask side.
func (m MinAskMaxBid) Size() float64 { return m.minAsk.Size }

// SpreadBp is the relative spread between the global best ask and best bid in
// basis points of the mid price. A crossed market yields a negative value.
func (m MinAskMaxBid) SpreadBp() float64 {
	bid := m.maxBid.BidPrice
	ask := m.minAsk.AskPrice
	mid := (ask + bid) / 2
	if mid == 0 {
		return 0
	}
	return 1e4 * (ask - bid) / mid
}

func (m MinAskMaxBid) String() string {
	return fmt.Sprintf("min ask %.8f@%s, max bid %.8f@%s, spread %.2f bp",
		m.minAsk.AskPrice, m.minAsk.Market, m.maxBid.BidPrice, m.maxBid.Market, m.SpreadBp())
}
