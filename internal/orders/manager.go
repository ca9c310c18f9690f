package orders

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/model/enum"
)

var (
	ErrOrderOverflow    = errors.New("trade overflows order size")
	ErrTradeOnDeadOrder = errors.New("trade on order that is not live")
	ErrUnknownOrder     = errors.New("unknown order")
	ErrBadTrade         = errors.New("trade increments must be non-negative")
)

// Position is a running signed (size, amount) per pair. A buy increases size
// and decreases amount by the traded quote leg amount; a sell mirrors.
type Position struct {
	Size   float64
	Amount float64
}

// Manager owns the canonical registry of all locally known orders, their fill
// accounting and lifecycle transitions. Different bus topics touch the
// registry concurrently, so all state is mutex-guarded.
type Manager struct {
	ps *bus.PubSub

	mu     sync.Mutex
	orders map[uuid.UUID]*model.Order
	pnl    map[model.CurrencyPair]Position
}

// NewManager creates an empty registry publishing panic signals on ps.
func NewManager(ps *bus.PubSub) *Manager {
	return &Manager{
		ps:     ps,
		orders: make(map[uuid.UUID]*model.Order),
		pnl:    make(map[model.CurrencyPair]Position),
	}
}

// RegisterOutgoing records orders as known. There is no assumption that any of
// them ever reaches a market.
func (m *Manager) RegisterOutgoing(orders []*model.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range orders {
		m.orders[order.ID] = order
	}
}

// OnTrade applies a fill's size/amount/fee increments to its order.
// A trade for an order that is not live, or one that would push the filled
// size past the order size, fails and leaves the order untouched.
func (m *Manager) OnTrade(trade model.Trade) error {
	if trade.Size < 0 || trade.Amount < 0 || trade.Fee < 0 {
		return ErrBadTrade
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[trade.ID]
	if !ok {
		return ErrUnknownOrder
	}
	if !order.Live {
		return ErrTradeOnDeadOrder
	}
	if trade.Size+order.FilledSize > order.Size {
		return ErrOrderOverflow
	}
	order.FilledSize += trade.Size
	order.FilledAmount += trade.Amount
	order.CumFee += trade.Fee
	m.updatePNL(trade, order)

	logs.Debugf("%s: trade, size: %v, amount: %v, fee: %v", trade.ID, trade.Size, trade.Amount, trade.Fee)
	logs.Debugf("%s: filled size: %v, filled amount: %v, fill: %.2f%%",
		trade.ID, order.FilledSize, order.FilledAmount, order.RelFill()*100)
	return nil
}

// OnOrderUpdate resolves the affected order from the update's embedded
// snapshot or from the registry and applies the implied transition. A
// rejection marks the order dead and raises a panic signal scoped to its
// (pair, market).
func (m *Manager) OnOrderUpdate(ctx context.Context, update model.OrderStatusUpdate) error {
	m.mu.Lock()
	order := update.Order()
	if order != nil {
		m.orders[order.ID] = order
	} else if known, ok := m.orders[update.ID]; ok {
		order = known
	} else {
		m.mu.Unlock()
		return ErrUnknownOrder
	}

	switch update.UpdateType {
	case enum.UpdateAccepted:
		order.Live = true
		m.mu.Unlock()
		logs.Infof("%s: ACCEPTED", update.ID)
	case enum.UpdateTrade:
		fill := order.RelFill() * 100
		m.mu.Unlock()
		logs.Infof("%s: TRADE, fill: %.2f%%, pair: %s, market: %s", update.ID, fill, update.Pair, update.Market)
	case enum.UpdateRejected:
		order.Live = false
		pair, market := order.Pair, order.Market
		m.mu.Unlock()
		logs.Errorf("PANIC: order %s rejected, reason: %s, pair: %s, market: %s",
			update.ID, update.RejectReason, pair, market)
		m.ps.Publish(model.PanicScoped{Pair: pair, Market: market}, "order rejected")
	case enum.UpdateCanceled:
		order.Live = false
		fill := order.RelFill() * 100
		m.mu.Unlock()
		logs.Infof("%s: CANCELED, filled: %.2f%%, pair: %s, market: %s", update.ID, fill, update.Pair, update.Market)
	case enum.UpdateDone:
		order.Live = false
		m.mu.Unlock()
		logs.Infof("%s: DONE, pair: %s, market: %s", update.ID, update.Pair, update.Market)
	default:
		m.mu.Unlock()
		logs.Infof("%s: %s, comment: %s", update.ID, update.UpdateType, update.Comment)
	}
	return nil
}

// Order returns a snapshot of the order with the given id.
func (m *Manager) Order(id uuid.UUID) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return model.Order{}, ErrUnknownOrder
	}
	return *order, nil
}

// IsLive reports whether the order with the given id is currently live.
// Unknown orders are reported as not live.
func (m *Manager) IsLive(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	return ok && order.Live
}

// Position returns the running (size, amount) accumulated from trades for pair.
func (m *Manager) Position(pair model.CurrencyPair) Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pnl[pair]
}

func (m *Manager) updatePNL(trade model.Trade, order *model.Order) {
	pos := m.pnl[order.Pair]
	if order.Side == enum.SideBuy {
		pos.Size += trade.Size
		pos.Amount -= trade.Amount
	} else {
		pos.Size -= trade.Size
		pos.Amount += trade.Amount
	}
	m.pnl[order.Pair] = pos
	logs.Debugf("pair: %s, size: %v, amount: %v", order.Pair, pos.Size, pos.Amount)
}
