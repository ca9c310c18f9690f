// Package engine assembles the trading system: one connector per venue
// adapter, a broker folding adapter events into books and order state, and
// an attached trading algorithm, all joined through the event bus.
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/algo"
	"main/internal/broker"
	"main/internal/bus"
	"main/internal/connect"
	"main/internal/connect/adapter"
	"main/internal/connect/adapter/otcx"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/ops"
)

// Engine owns the bus, the broker and the venue connections.
type Engine struct {
	ps         *bus.PubSub
	broker     *broker.Broker
	adapters   []adapter.Adapter
	connectors []*connect.Connector
}

// New builds adapters from the resolved config and validates the topology.
// Every adapter name must be unique and no market may be served by two
// adapters, order routing is keyed by market.
func New(ps *bus.PubSub, cfg ops.Loaded) (*Engine, error) {
	var adapters []adapter.Adapter
	if cfg.Otcx != nil {
		a, err := otcx.New(ps, *cfg.Otcx)
		if err != nil {
			return nil, errors.Wrap(err, "build otcx adapter")
		}
		adapters = append(adapters, a)
	}
	if len(adapters) == 0 {
		return nil, errors.New("no adapters configured")
	}

	names := make(map[enum.AdapterName]struct{}, len(adapters))
	markets := make(map[enum.Market]enum.AdapterName)
	for _, a := range adapters {
		if _, dup := names[a.Name()]; dup {
			return nil, errors.Errorf("duplicate adapter name %s", a.Name())
		}
		names[a.Name()] = struct{}{}
		for _, market := range a.Markets() {
			if owner, dup := markets[market]; dup {
				return nil, errors.Errorf("market %s assigned to both %s and %s", market, owner, a.Name())
			}
			markets[market] = a.Name()
		}
	}

	connectors := make([]*connect.Connector, 0, len(adapters))
	for _, a := range adapters {
		connectors = append(connectors, connect.NewConnector(a.URI(), a.Name(), ps, a.GenerateHeaders))
	}

	return &Engine{
		ps:         ps,
		broker:     broker.New(ps, cfg.LossThresholds),
		adapters:   adapters,
		connectors: connectors,
	}, nil
}

// Broker exposes the order entry surface for strategies.
func (e *Engine) Broker() *broker.Broker { return e.broker }

// AttachAlgorithm subscribes a strategy to the broker-side update topics and
// to the panic topic of every pair the adapters serve.
func (e *Engine) AttachAlgorithm(ctx context.Context, a algo.Algorithm) {
	e.ps.Subscribe(ctx, enum.TopicBrokerQuoteUpdate, func(ctx context.Context, payload any) error {
		quote, ok := payload.(model.Quote)
		if !ok {
			return errors.Errorf("expected Quote, got %T", payload)
		}
		return a.OnQuoteUpdate(ctx, quote)
	})
	e.ps.Subscribe(ctx, enum.TopicBrokerBookUpdate, func(ctx context.Context, payload any) error {
		update, ok := payload.(model.BookUpdate)
		if !ok {
			return errors.Errorf("expected BookUpdate, got %T", payload)
		}
		return a.OnBookUpdate(ctx, update)
	})
	e.ps.Subscribe(ctx, enum.TopicOrderStatusUpdate, func(ctx context.Context, payload any) error {
		update, ok := payload.(model.OrderStatusUpdate)
		if !ok {
			return errors.Errorf("expected OrderStatusUpdate, got %T", payload)
		}
		return a.OnOrderUpdate(ctx, update)
	})
	e.ps.Subscribe(ctx, enum.TopicBrokerTradeUpdate, func(ctx context.Context, payload any) error {
		trade, ok := payload.(model.Trade)
		if !ok {
			return errors.Errorf("expected Trade, got %T", payload)
		}
		return a.OnTrade(ctx, trade)
	})
	for key := range e.panicTopics() {
		e.ps.Subscribe(ctx, key, func(ctx context.Context, payload any) error {
			msg, _ := payload.(string)
			a.OnPanic(msg)
			return nil
		})
	}
}

// Run wires all subscriptions and starts one connection loop per adapter.
// It returns once the loops are launched, they stop when ctx is canceled.
func (e *Engine) Run(ctx context.Context) {
	e.wire(ctx)
	for _, connector := range e.connectors {
		go connector.Connect(ctx)
	}
	logs.Infof("engine running with %d adapter(s)", len(e.adapters))
}

func (e *Engine) wire(ctx context.Context) {
	for i, a := range e.adapters {
		connector := e.connectors[i]
		name := a.Name()

		// adapter -> connector
		e.ps.Subscribe(ctx, model.AdapterScoped{Topic: enum.TopicPayloadOut, Adapter: name}, connector.OnPayloadOut)

		// connector -> adapter
		e.ps.Subscribe(ctx, model.ConnectorScoped{Topic: enum.TopicConnectionEstablished, Adapter: name},
			func(ctx context.Context, payload any) error {
				return a.OnConnectionEstablished(ctx)
			})
		e.ps.Subscribe(ctx, model.ConnectorScoped{Topic: enum.TopicPayloadIn, Adapter: name},
			func(ctx context.Context, payload any) error {
				raw, ok := payload.([]byte)
				if !ok {
					return errors.Errorf("expected []byte, got %T", payload)
				}
				return a.OnPayloadRecvIn(ctx, raw)
			})

		// adapter -> broker
		e.ps.Subscribe(ctx, model.AdapterScoped{Topic: enum.TopicBookUpdate, Adapter: name}, e.broker.OnBookUpdate)
		e.ps.Subscribe(ctx, model.AdapterScoped{Topic: enum.TopicQuoteUpdate, Adapter: name}, e.broker.OnQuoteUpdate)
		e.ps.Subscribe(ctx, model.AdapterScoped{Topic: enum.TopicOrderUpdate, Adapter: name}, e.broker.OnOrderUpdate)
		e.ps.Subscribe(ctx, model.AdapterScoped{Topic: enum.TopicTradeUpdate, Adapter: name}, e.broker.OnTrade)

		// broker -> adapter, keyed by market so each adapter only sees its own
		for _, market := range a.Markets() {
			e.ps.Subscribe(ctx, model.MarketScoped{Topic: enum.TopicOrdersOut, Market: market},
				func(ctx context.Context, payload any) error {
					out, ok := payload.([]*model.Order)
					if !ok {
						return errors.Errorf("expected []*Order, got %T", payload)
					}
					return a.OnOrdersOut(ctx, out)
				})
			e.ps.Subscribe(ctx, model.MarketScoped{Topic: enum.TopicCancelOrdersOut, Market: market},
				func(ctx context.Context, payload any) error {
					ids, ok := payload.([]uuid.UUID)
					if !ok {
						return errors.Errorf("expected []uuid.UUID, got %T", payload)
					}
					return a.OnCancelOrdersOut(ctx, ids)
				})
		}

		// panic events for every (pair, market) this adapter serves
		for key := range e.panicTopicsOf(a) {
			e.ps.Subscribe(ctx, key, func(ctx context.Context, payload any) error {
				msg, _ := payload.(string)
				a.OnPanic(msg)
				return nil
			})
		}
	}
}

func (e *Engine) panicTopics() map[model.PanicScoped]struct{} {
	out := make(map[model.PanicScoped]struct{})
	for _, a := range e.adapters {
		for key := range e.panicTopicsOf(a) {
			out[key] = struct{}{}
		}
	}
	return out
}

func (e *Engine) panicTopicsOf(a adapter.Adapter) map[model.PanicScoped]struct{} {
	out := make(map[model.PanicScoped]struct{})
	for market, pairs := range a.Pairs() {
		for _, pair := range pairs {
			out[model.PanicScoped{Pair: pair, Market: market}] = struct{}{}
		}
	}
	return out
}
