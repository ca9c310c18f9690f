package pnl

import (
	"sync"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/orders"
)

// Monitor keeps a pair-wise running (position, amount) derived purely from
// trade notifications and raises a panic signal when a pair's amount breaches
// its configured loss threshold.
//
// The monitor recomputes its own ledger instead of reading the orders
// manager's: the redundancy keeps a bug in one accounting path from masking
// detection in the other.
type Monitor struct {
	ps      *bus.PubSub
	manager *orders.Manager

	mu         sync.Mutex
	pnl        map[model.CurrencyPair]position
	thresholds map[model.CurrencyPair]float64
}

type position struct {
	size   float64
	amount float64
}

// NewMonitor creates a monitor. thresholds maps a pair to the quote-leg amount
// below which a panic is raised; a pair with no entry never trips.
func NewMonitor(ps *bus.PubSub, manager *orders.Manager, thresholds map[model.CurrencyPair]float64) *Monitor {
	m := &Monitor{
		ps:         ps,
		manager:    manager,
		pnl:        make(map[model.CurrencyPair]position),
		thresholds: make(map[model.CurrencyPair]float64, len(thresholds)),
	}
	for pair, threshold := range thresholds {
		m.thresholds[pair] = threshold
	}
	return m
}

// OnTrade folds one fill into the running pair position and checks the pair's
// loss threshold.
func (m *Monitor) OnTrade(trade model.Trade) error {
	order, err := m.manager.Order(trade.ID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	pos := m.pnl[order.Pair]
	if order.Side == enum.SideBuy {
		pos.size += trade.Size
		pos.amount -= trade.Amount
	} else {
		pos.size -= trade.Size
		pos.amount += trade.Amount
	}
	m.pnl[order.Pair] = pos
	threshold, armed := m.thresholds[order.Pair]
	m.mu.Unlock()

	if armed && pos.amount < threshold {
		msg := "pnl loss threshold hit for pair: " + order.Pair.String()
		logs.Errorf("PANIC: %s, amount: %v, threshold: %v", msg, pos.amount, threshold)
		m.ps.Publish(model.PanicScoped{Pair: order.Pair, Market: order.Market}, msg)
	}
	return nil
}

// Position returns the monitor's running (size, amount) for pair.
func (m *Monitor) Position(pair model.CurrencyPair) (size, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos := m.pnl[pair]
	return pos.size, pos.amount
}
