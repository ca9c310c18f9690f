package arbitrage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

var btcEur = model.CurrencyPair{Base: enum.CurrencyBTC, Quote: enum.CurrencyEUR}

type mockTrader struct {
	published [][]*model.Order
	canceled  [][]uuid.UUID
	live      bool
	orders    map[uuid.UUID]model.Order
}

func newMockTrader() *mockTrader {
	return &mockTrader{live: true, orders: make(map[uuid.UUID]model.Order)}
}

func (m *mockTrader) PublishOrders(ctx context.Context, out []*model.Order) error {
	m.published = append(m.published, out)
	for _, ord := range out {
		m.orders[ord.ID] = *ord
	}
	return nil
}

func (m *mockTrader) CancelOrders(ctx context.Context, ids []uuid.UUID) error {
	m.canceled = append(m.canceled, ids)
	return nil
}

func (m *mockTrader) Order(id uuid.UUID) (model.Order, error) {
	return m.orders[id], nil
}

func (m *mockTrader) IsOrderLive(id uuid.UUID) bool { return m.live }

func (m *mockTrader) clear() { m.published = nil; m.canceled = nil }

func (m *mockTrader) publishedOrders() []*model.Order {
	var out []*model.Order
	for _, batch := range m.published {
		out = append(out, batch...)
	}
	return out
}

func quoteAt(market enum.Market, bid, ask float64) model.Quote {
	return model.Quote{
		BidPrice:    bid,
		AskPrice:    ask,
		TOBBidPrice: bid,
		TOBAskPrice: ask,
		Market:      market,
		Pair:        btcEur,
		Size:        1.0,
		Timestamp:   time.Now(),
	}
}

func testFinder(trader *mockTrader) *DirectArbitrage {
	return NewDirectArbitrage(true, trader, nil, Config{
		ThresholdBp:            -90,
		MarketOrderThresholdBp: -500,
		QuotingPeriod:          30 * time.Second,
		MarketOrderTimeout:     5 * time.Second,
		Aggressiveness:         0.5,
		MaxOrderLifetime:       time.Minute,
	})
}

func TestSpreadBp(t *testing.T) {
	mamb := MinAskMaxBid{minAsk: quoteAt(enum.MarketKraken, 100, 110), maxBid: quoteAt(enum.MarketKraken, 100, 110)}
	assert.InDelta(t, 952.380952, mamb.SpreadBp(), 1e-6)

	// crossed market yields a negative spread
	crossed := MinAskMaxBid{
		minAsk: quoteAt(enum.MarketKraken, 100, 110),
		maxBid: quoteAt(enum.MarketBitstamp, 111, 121),
	}
	assert.InDelta(t, -90.497738, crossed.SpreadBp(), 1e-6)
}

func TestArbitrageLifecycle(t *testing.T) {
	trader := newMockTrader()
	finder := testFinder(trader)
	ctx := t.Context()

	// 100/110 at kraken: wide positive spread, nothing to do
	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketKraken, 100, 110)))
	assert.Empty(t, trader.published, "no arbitrage, must not publish orders")

	// 105/115 at bitfinex raises the global bid but the book stays uncrossed
	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketBitfinex, 105, 115)))
	assert.Empty(t, trader.published)

	// 111/121 at bitstamp crosses against kraken's 110 ask beyond -90 bp
	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketBitstamp, 111, 121)))
	require.Len(t, trader.publishedOrders(), 2, "crossed beyond threshold, expected a buy-sell pair")

	published := trader.publishedOrders()
	buy, sell := published[0], published[1]
	assert.Equal(t, enum.SideBuy, buy.Side)
	assert.Equal(t, enum.MarketKraken, buy.Market)
	assert.Equal(t, enum.SideSell, sell.Side)
	assert.Equal(t, enum.MarketBitstamp, sell.Market)
	// aggressiveness 0.5 rests each leg mid-spread of its own venue
	assert.InDelta(t, 105.0, buy.LimitPrice, 1e-9)
	assert.InDelta(t, 116.0, sell.LimitPrice, 1e-9)

	// deeper cross while the previous pair is still live inside the quoting
	// period must not stack a second pair
	trader.clear()
	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketBitstamp, 117, 127)))
	assert.Empty(t, trader.published, "previous pair live, must not publish")

	// once both legs are done a changed snapshot re-triggers
	trader.clear()
	trader.live = false
	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketBitstamp, 111, 121)))
	assert.Len(t, trader.publishedOrders(), 2)

	// spread back above threshold stops the arbitrage
	trader.clear()
	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketBitstamp, 110.5, 121.5)))
	assert.Empty(t, trader.published, "arbitrage stopped, must not publish")

	trader.clear()
	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketBitstamp, 111, 121)))
	assert.Len(t, trader.publishedOrders(), 2, "re-crossed, expected a fresh pair")
}

func TestUnchangedSnapshotDoesNotRetrigger(t *testing.T) {
	trader := newMockTrader()
	finder := testFinder(trader)
	ctx := t.Context()

	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketKraken, 100, 110)))
	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketBitstamp, 111, 121)))
	require.Len(t, trader.publishedOrders(), 2)

	// a quote that leaves the global best bid and ask untouched is ignored
	// even though the previous pair is already done
	trader.clear()
	trader.live = false
	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketBitfinex, 105, 115)))
	assert.Empty(t, trader.published)
}

func TestMarketableOrdersBelowMarketOrderThreshold(t *testing.T) {
	trader := newMockTrader()
	finder := testFinder(trader)
	ctx := t.Context()

	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketKraken, 100, 110)))
	// 112/122 at bitstamp against kraken's 110 ask is -180.2 bp, inside the
	// limit band
	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketBitstamp, 112, 122)))
	require.Len(t, trader.publishedOrders(), 2)
	assert.Equal(t, time.Minute, trader.publishedOrders()[0].Timeout)

	// 120/130 at bitstamp pushes the cross to -869.6 bp, breaching the
	// -500 bp marketable threshold
	trader.clear()
	trader.live = false
	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketBitstamp, 120, 130)))
	require.Len(t, trader.publishedOrders(), 2)

	buy, sell := trader.publishedOrders()[0], trader.publishedOrders()[1]
	// marketable legs are priced 20% through the book with the short timeout
	assert.InDelta(t, 100*1.2, buy.LimitPrice, 1e-9)
	assert.Equal(t, enum.MarketKraken, buy.Market)
	assert.InDelta(t, 130*0.8, sell.LimitPrice, 1e-9)
	assert.Equal(t, enum.MarketBitstamp, sell.Market)
	assert.Equal(t, 5*time.Second, buy.Timeout)
}

func TestForceFillAfterQuotingPeriod(t *testing.T) {
	trader := newMockTrader()
	now := time.Now()
	finder := testFinder(trader).WithClock(func() time.Time { return now })
	ctx := t.Context()

	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketKraken, 100, 110)))
	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketBitstamp, 111, 121)))
	require.Len(t, trader.publishedOrders(), 2)
	resting := trader.publishedOrders()

	// mark the buy leg half filled so the replacement covers the remainder
	half := trader.orders[resting[0].ID]
	half.FilledSize = 0.5
	trader.orders[resting[0].ID] = half

	trader.clear()
	now = now.Add(31 * time.Second)
	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketBitstamp, 112, 122)))

	require.Len(t, trader.canceled, 1)
	assert.ElementsMatch(t, []uuid.UUID{resting[0].ID, resting[1].ID}, trader.canceled[0])

	replacements := trader.publishedOrders()
	require.Len(t, replacements, 2)
	assert.InDelta(t, 0.5, replacements[0].Size, 1e-9)
	assert.InDelta(t, 100*1.2, replacements[0].LimitPrice, 1e-9)
	assert.InDelta(t, 1.0, replacements[1].Size, 1e-9)
	assert.InDelta(t, 122*0.8, replacements[1].LimitPrice, 1e-9)
}

func TestPanicHaltsOrderEntry(t *testing.T) {
	trader := newMockTrader()
	finder := testFinder(trader)
	ctx := t.Context()

	finder.OnPanic("loss threshold breached")
	finder.OnPanic("loss threshold breached") // idempotent
	assert.False(t, finder.Trading())

	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketKraken, 100, 110)))
	require.NoError(t, finder.OnQuoteUpdate(ctx, quoteAt(enum.MarketBitstamp, 111, 121)))
	assert.Empty(t, trader.published, "halted strategy must not publish")
}
