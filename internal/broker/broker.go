package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"main/internal/book"
	"main/internal/bus"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/orders"
	"main/internal/pnl"
)

var ErrNoOrders = errors.New("no orders given")

// Broker is the single object a strategy needs: it folds adapter events into
// the orders registry, the pnl monitor and the per-(pair, market) books, then
// republishes them on broker topics, and it is the strategy's outlet for
// placing and cancelling orders.
//
// Topics published: TopicOrdersOut and TopicCancelOrdersOut scoped per market,
// and the broker book/quote/order-status/trade update topics.
type Broker struct {
	ps      *bus.PubSub
	manager *orders.Manager
	monitor *pnl.Monitor

	mu    sync.Mutex
	books map[bookKey]*book.L2OrderBook
}

type bookKey struct {
	pair   model.CurrencyPair
	market enum.Market
}

// New creates a broker with an empty orders registry. lossThresholds feeds the
// pnl monitor; a pair with no entry never trips.
func New(ps *bus.PubSub, lossThresholds map[model.CurrencyPair]float64) *Broker {
	manager := orders.NewManager(ps)
	return &Broker{
		ps:      ps,
		manager: manager,
		monitor: pnl.NewMonitor(ps, manager, lossThresholds),
		books:   make(map[bookKey]*book.L2OrderBook),
	}
}

// OnBookUpdate folds an L2 update into the (pair, market) book and republishes
// it for strategies.
func (b *Broker) OnBookUpdate(ctx context.Context, payload any) error {
	update, ok := payload.(model.BookUpdate)
	if !ok {
		return errors.New("book update payload has wrong type")
	}
	b.mu.Lock()
	key := bookKey{pair: update.Pair, market: update.Market}
	bk, ok := b.books[key]
	if !ok {
		bk = book.New()
		b.books[key] = bk
	}
	err := bk.Update(update.Bids, update.Asks, update.Snapshot)
	b.mu.Unlock()
	if err != nil {
		return err
	}
	b.ps.Publish(enum.TopicBrokerBookUpdate, update)
	return nil
}

// OnQuoteUpdate republishes a quote for strategies.
func (b *Broker) OnQuoteUpdate(ctx context.Context, payload any) error {
	update, ok := payload.(model.Quote)
	if !ok {
		return errors.New("quote update payload has wrong type")
	}
	b.ps.Publish(enum.TopicBrokerQuoteUpdate, update)
	return nil
}

// OnOrderUpdate applies a status update to the registry and republishes it.
func (b *Broker) OnOrderUpdate(ctx context.Context, payload any) error {
	update, ok := payload.(model.OrderStatusUpdate)
	if !ok {
		return errors.New("order update payload has wrong type")
	}
	if err := b.manager.OnOrderUpdate(ctx, update); err != nil {
		return err
	}
	b.ps.Publish(enum.TopicOrderStatusUpdate, update)
	return nil
}

// OnTrade applies a fill to the registry and the independent pnl monitor, then
// republishes it.
func (b *Broker) OnTrade(ctx context.Context, payload any) error {
	trade, ok := payload.(model.Trade)
	if !ok {
		return errors.New("trade payload has wrong type")
	}
	if err := b.manager.OnTrade(trade); err != nil {
		return err
	}
	if err := b.monitor.OnTrade(trade); err != nil {
		return err
	}
	b.ps.Publish(enum.TopicBrokerTradeUpdate, trade)
	return nil
}

// PublishOrders registers orders as outgoing and emits them scoped to their
// market. All orders are assumed to target the same market.
func (b *Broker) PublishOrders(ctx context.Context, out []*model.Order) error {
	if len(out) == 0 {
		return ErrNoOrders
	}
	b.manager.RegisterOutgoing(out)
	b.ps.Publish(model.MarketScoped{Topic: enum.TopicOrdersOut, Market: out[0].Market}, out)
	return nil
}

// CancelOrders emits a cancel for the given order ids, scoped to the market of
// the first order. All ids are assumed to belong to orders of the same market.
func (b *Broker) CancelOrders(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return ErrNoOrders
	}
	order, err := b.manager.Order(ids[0])
	if err != nil {
		return err
	}
	b.ps.Publish(model.MarketScoped{Topic: enum.TopicCancelOrdersOut, Market: order.Market}, ids)
	return nil
}

// Order returns a snapshot of a known order.
func (b *Broker) Order(id uuid.UUID) (model.Order, error) {
	return b.manager.Order(id)
}

// IsOrderLive reports whether a known order is live.
func (b *Broker) IsOrderLive(id uuid.UUID) bool {
	return b.manager.IsLive(id)
}

// Book returns the live book for (pair, market), or nil when no update has
// arrived yet.
func (b *Broker) Book(pair model.CurrencyPair, market enum.Market) *book.L2OrderBook {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.books[bookKey{pair: pair, market: market}]
}

// Position returns the orders manager's running (size, amount) for pair.
func (b *Broker) Position(pair model.CurrencyPair) orders.Position {
	return b.manager.Position(pair)
}
