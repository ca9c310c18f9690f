package pnl

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/orders"
)

var testPair = model.CurrencyPair{Base: enum.CurrencyBTC, Quote: enum.CurrencyEUR}

func liveOrder(t *testing.T, m *orders.Manager, side enum.Side) *model.Order {
	t.Helper()
	order := &model.Order{
		ID:         uuid.New(),
		Size:       10,
		Pair:       testPair,
		Side:       side,
		LimitPrice: 100,
		Market:     enum.MarketKraken,
	}
	m.RegisterOutgoing([]*model.Order{order})
	require.NoError(t, m.OnOrderUpdate(context.Background(), model.OrderStatusUpdate{
		Market:     order.Market,
		Pair:       order.Pair,
		ID:         order.ID,
		UpdateType: enum.UpdateAccepted,
	}))
	return order
}

func TestNoThresholdNeverTrips(t *testing.T) {
	ps := bus.New()
	manager := orders.NewManager(ps)
	monitor := NewMonitor(ps, manager, nil)

	panics := make(chan any, 1)
	ps.Subscribe(t.Context(), model.PanicScoped{Pair: testPair, Market: enum.MarketKraken},
		func(ctx context.Context, payload any) error {
			panics <- payload
			return nil
		})

	order := liveOrder(t, manager, enum.SideBuy)
	trade := model.Trade{ID: order.ID, Size: 1, Amount: 1e9}
	require.NoError(t, manager.OnTrade(trade))
	require.NoError(t, monitor.OnTrade(trade))

	select {
	case <-panics:
		t.Fatal("panic raised without a configured threshold")
	case <-time.After(50 * time.Millisecond):
	}

	size, amount := monitor.Position(testPair)
	assert.Equal(t, 1.0, size)
	assert.Equal(t, -1e9, amount)
}

func TestThresholdBreachRaisesPanic(t *testing.T) {
	ps := bus.New()
	manager := orders.NewManager(ps)
	monitor := NewMonitor(ps, manager, map[model.CurrencyPair]float64{testPair: -100})

	panics := make(chan any, 1)
	ps.Subscribe(t.Context(), model.PanicScoped{Pair: testPair, Market: enum.MarketKraken},
		func(ctx context.Context, payload any) error {
			panics <- payload
			return nil
		})

	order := liveOrder(t, manager, enum.SideBuy)
	trade := model.Trade{ID: order.ID, Size: 1, Amount: 150}
	require.NoError(t, manager.OnTrade(trade))
	require.NoError(t, monitor.OnTrade(trade))

	select {
	case msg := <-panics:
		assert.Contains(t, msg.(string), testPair.String())
	case <-time.After(time.Second):
		t.Fatal("no panic signal published")
	}
}

func TestSellMirrorsAmount(t *testing.T) {
	ps := bus.New()
	manager := orders.NewManager(ps)
	monitor := NewMonitor(ps, manager, map[model.CurrencyPair]float64{testPair: -100})

	order := liveOrder(t, manager, enum.SideSell)
	trade := model.Trade{ID: order.ID, Size: 1, Amount: 150}
	require.NoError(t, manager.OnTrade(trade))
	require.NoError(t, monitor.OnTrade(trade))

	size, amount := monitor.Position(testPair)
	assert.Equal(t, -1.0, size)
	assert.Equal(t, 150.0, amount)
}

func TestUnknownOrderTrade(t *testing.T) {
	ps := bus.New()
	monitor := NewMonitor(ps, orders.NewManager(ps), nil)
	err := monitor.OnTrade(model.Trade{ID: uuid.New(), Size: 1})
	assert.ErrorIs(t, err, orders.ErrUnknownOrder)
}
