// Package arbitrage implements a cross-market direct arbitrage strategy. It
// tracks the best bid and ask per market for each pair and trades the two
// venues against each other when the global book crosses beyond a threshold.
package arbitrage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
)

// marketOrderShift pushes a marketable limit order this fraction through the
// opposite side of the book. Venues without a true market order type treat
// such an order as immediately executable.
const marketOrderShift = 0.2

// Config holds the strategy parameters. All prices and thresholds are in
// basis points of the mid price.
type Config struct {
	// ThresholdBp arms the strategy when the cross-market spread drops below
	// it. Negative values require a crossed market.
	ThresholdBp float64
	// MarketOrderThresholdBp switches from limit to marketable orders when
	// the spread drops below it.
	MarketOrderThresholdBp float64
	// QuotingPeriod bounds how long a resting order pair may stay unfilled
	// before it is replaced with marketable orders.
	QuotingPeriod time.Duration
	// MarketOrderTimeout is the lifetime of marketable replacement orders.
	MarketOrderTimeout time.Duration
	// Aggressiveness in [0, 1] scales how far limit orders are shifted from
	// the top of the book toward the opposite side.
	Aggressiveness float64
	// MaxOrderLifetime is the lifetime of resting limit orders.
	MaxOrderLifetime time.Duration
}

// Trader is the order entry surface the strategy drives, satisfied by
// broker.Broker.
type Trader interface {
	PublishOrders(ctx context.Context, out []*model.Order) error
	CancelOrders(ctx context.Context, ids []uuid.UUID) error
	Order(id uuid.UUID) (model.Order, error)
	IsOrderLive(id uuid.UUID) bool
}

// Recorder persists each observed cross-market snapshot.
type Recorder interface {
	Record(mamb MinAskMaxBid) error
}

type orderPair struct {
	buy    *model.Order
	sell   *model.Order
	placed time.Time
}

// DirectArbitrage buys at the market with the lowest ask and sells at the
// market with the highest bid whenever the spread between them breaches the
// configured threshold.
type DirectArbitrage struct {
	trader   Trader
	recorder Recorder
	cfg      Config
	now      func() time.Time

	mu       sync.Mutex
	trading  bool
	quotes   map[model.CurrencyPair]map[enum.Market]model.Quote
	lastMamb map[model.CurrencyPair]MinAskMaxBid
	arbLive  map[model.CurrencyPair]struct{}
	lastPair map[model.CurrencyPair]orderPair
}

// NewDirectArbitrage builds the strategy. recorder may be nil, in which case
// snapshots are not persisted.
func NewDirectArbitrage(trading bool, trader Trader, recorder Recorder, cfg Config) *DirectArbitrage {
	return &DirectArbitrage{
		trader:   trader,
		recorder: recorder,
		cfg:      cfg,
		now:      time.Now,
		trading:  trading,
		quotes:   make(map[model.CurrencyPair]map[enum.Market]model.Quote),
		lastMamb: make(map[model.CurrencyPair]MinAskMaxBid),
		arbLive:  make(map[model.CurrencyPair]struct{}),
		lastPair: make(map[model.CurrencyPair]orderPair),
	}
}

// WithClock overrides the wall clock used for quoting period checks.
func (d *DirectArbitrage) WithClock(now func() time.Time) *DirectArbitrage {
	d.now = now
	return d
}

// Trading reports whether order entry is enabled.
func (d *DirectArbitrage) Trading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trading
}

// OnQuoteUpdate folds the quote into the per-market state and, when the
// cross-market best ask or best bid changed, re-evaluates the spread against
// the threshold. A breach either places a fresh buy-sell pair or, when the
// previous pair is still resting past the quoting period, converts it to
// marketable orders.
func (d *DirectArbitrage) OnQuoteUpdate(ctx context.Context, quote model.Quote) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	byMarket, ok := d.quotes[quote.Pair]
	if !ok {
		byMarket = make(map[enum.Market]model.Quote)
		d.quotes[quote.Pair] = byMarket
	}
	byMarket[quote.Market] = quote

	mamb, err := d.minAskMaxBid(quote.Pair)
	if err != nil {
		return err
	}
	if !d.mambChanged(mamb) {
		return nil
	}
	d.lastMamb[quote.Pair] = mamb

	if d.recorder != nil {
		if err := d.recorder.Record(mamb); err != nil {
			logs.Warnf("record %s snapshot: %+v", quote.Pair, err)
		}
	}
	logs.Debugf("%s: %s", quote.Pair, mamb)

	spread := mamb.SpreadBp()
	switch {
	case spread < d.cfg.ThresholdBp:
		if _, live := d.arbLive[quote.Pair]; !live {
			d.arbLive[quote.Pair] = struct{}{}
			logs.Infof("%s arbitrage started, spread %.2f bp", quote.Pair, spread)
		}
		return d.reorderOrForceFill(ctx, mamb, spread)
	default:
		if _, live := d.arbLive[quote.Pair]; live {
			delete(d.arbLive, quote.Pair)
			logs.Infof("%s arbitrage stopped, spread %.2f bp", quote.Pair, spread)
		}
		return nil
	}
}

// OnBookUpdate is a no-op, the strategy trades on quotes only.
func (d *DirectArbitrage) OnBookUpdate(ctx context.Context, update model.BookUpdate) error {
	return nil
}

// OnOrderUpdate is a no-op, fill state is read back through the Trader.
func (d *DirectArbitrage) OnOrderUpdate(ctx context.Context, update model.OrderStatusUpdate) error {
	return nil
}

// OnTrade is a no-op, fill state is read back through the Trader.
func (d *DirectArbitrage) OnTrade(ctx context.Context, trade model.Trade) error {
	return nil
}

// OnPanic permanently disables order entry. Market data keeps flowing so the
// recorder still captures snapshots.
func (d *DirectArbitrage) OnPanic(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.trading {
		d.trading = false
		logs.Errorf("trading halted: %s", msg)
	}
}

// minAskMaxBid scans all markets quoting pair for the lowest ask and highest
// bid. Callers hold d.mu.
func (d *DirectArbitrage) minAskMaxBid(pair model.CurrencyPair) (MinAskMaxBid, error) {
	byMarket := d.quotes[pair]
	if len(byMarket) == 0 {
		return MinAskMaxBid{}, errors.Errorf("no market data for %s", pair)
	}
	var (
		mamb  MinAskMaxBid
		first = true
	)
	for _, q := range byMarket {
		if first {
			mamb = MinAskMaxBid{minAsk: q, maxBid: q}
			first = false
			continue
		}
		if q.AskPrice < mamb.minAsk.AskPrice {
			mamb.minAsk = q
		}
		if q.BidPrice > mamb.maxBid.BidPrice {
			mamb.maxBid = q
		}
	}
	return mamb, nil
}

// mambChanged reports whether the global best ask or best bid moved since the
// last evaluation for the pair. Callers hold d.mu.
func (d *DirectArbitrage) mambChanged(mamb MinAskMaxBid) bool {
	last, ok := d.lastMamb[mamb.minAsk.Pair]
	if !ok {
		return true
	}
	return mamb.minAsk.AskPrice != last.minAsk.AskPrice ||
		mamb.maxBid.BidPrice != last.maxBid.BidPrice
}

// reorderOrForceFill places a fresh order pair when the previous one is fully
// done. Otherwise, when the previous pair has been resting longer than the
// quoting period, it is cancel-replaced with marketable orders for the
// remaining size. Callers hold d.mu.
func (d *DirectArbitrage) reorderOrForceFill(ctx context.Context, mamb MinAskMaxBid, spread float64) error {
	pair := mamb.minAsk.Pair
	if d.lastOrdersDone(pair) {
		buy, sell := d.buildOrderPair(mamb, spread)
		return d.publishOrderPair(ctx, buy, sell)
	}
	last := d.lastPair[pair]
	if d.now().Sub(last.placed) > d.cfg.QuotingPeriod {
		return d.forceFill(ctx, []uuid.UUID{last.buy.ID, last.sell.ID})
	}
	return nil
}

// lastOrdersDone reports whether both legs of the previous pair are no longer
// live. A pair that never traded counts as done. Callers hold d.mu.
func (d *DirectArbitrage) lastOrdersDone(pair model.CurrencyPair) bool {
	last, ok := d.lastPair[pair]
	if !ok {
		return true
	}
	return !d.trader.IsOrderLive(last.buy.ID) && !d.trader.IsOrderLive(last.sell.ID)
}

func (d *DirectArbitrage) publishOrderPair(ctx context.Context, buy, sell *model.Order) error {
	if !d.trading {
		return nil
	}
	// one publish per leg, the legs target different markets
	if err := d.trader.PublishOrders(ctx, []*model.Order{buy}); err != nil {
		return errors.Wrap(err, "publish buy leg")
	}
	if err := d.trader.PublishOrders(ctx, []*model.Order{sell}); err != nil {
		return errors.Wrap(err, "publish sell leg")
	}
	d.lastPair[buy.Pair] = orderPair{buy: buy, sell: sell, placed: d.now()}
	return nil
}

// buildOrderPair returns a buy at the min-ask market and a sell at the
// max-bid market. Below the market order threshold both legs are marketable,
// otherwise they rest near the top of the book shifted by the aggressiveness
// fraction of the venue's own spread. Callers hold d.mu.
func (d *DirectArbitrage) buildOrderPair(mamb MinAskMaxBid, spread float64) (*model.Order, *model.Order) {
	mad, mbd := mamb.minAsk, mamb.maxBid
	if spread < d.cfg.MarketOrderThresholdBp {
		return d.marketableOrder(mad, enum.SideBuy, mad.Size),
			d.marketableOrder(mbd, enum.SideSell, mbd.Size)
	}
	buyLimit := mad.TOBBidPrice + d.cfg.Aggressiveness*(mad.TOBAskPrice-mad.TOBBidPrice)
	sellLimit := mbd.TOBAskPrice - d.cfg.Aggressiveness*(mbd.TOBAskPrice-mbd.TOBBidPrice)
	return d.limitOrder(mad, enum.SideBuy, mad.Size, buyLimit, d.cfg.MaxOrderLifetime),
		d.limitOrder(mbd, enum.SideSell, mbd.Size, sellLimit, d.cfg.MaxOrderLifetime)
}

func (d *DirectArbitrage) limitOrder(q model.Quote, side enum.Side, size, limit float64, timeout time.Duration) *model.Order {
	return &model.Order{
		ID:         uuid.New(),
		Size:       size,
		Pair:       q.Pair,
		Side:       side,
		LimitPrice: limit,
		Market:     q.Market,
		Timeout:    timeout,
	}
}

// marketableOrder prices a limit order marketOrderShift through the opposite
// side so it executes immediately on venues without a market order type.
func (d *DirectArbitrage) marketableOrder(q model.Quote, side enum.Side, size float64) *model.Order {
	price := q.AskPrice * (1 - marketOrderShift)
	if side == enum.SideBuy {
		price = q.BidPrice * (1 + marketOrderShift)
	}
	return d.limitOrder(q, side, size, price, d.cfg.MarketOrderTimeout)
}

// forceFill cancel-replaces resting orders with marketable ones for their
// remaining size. Callers hold d.mu.
func (d *DirectArbitrage) forceFill(ctx context.Context, ids []uuid.UUID) error {
	if !d.trading {
		return nil
	}
	replacements := make([]*model.Order, 0, len(ids))
	for _, id := range ids {
		ord, err := d.trader.Order(id)
		if err != nil {
			return errors.Wrapf(err, "look up order %s", id)
		}
		q, ok := d.quotes[ord.Pair][ord.Market]
		if !ok {
			return errors.Errorf("no quote for %s at %s", ord.Pair, ord.Market)
		}
		replacements = append(replacements, d.marketableOrder(q, ord.Side, ord.SizeLeft()))
	}
	if err := d.trader.CancelOrders(ctx, ids); err != nil {
		return errors.Wrap(err, "cancel resting orders")
	}
	for _, ord := range replacements {
		if err := d.trader.PublishOrders(ctx, []*model.Order{ord}); err != nil {
			return errors.Wrapf(err, "publish replacement at %s", ord.Market)
		}
	}
	return nil
}
