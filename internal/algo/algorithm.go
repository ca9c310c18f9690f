// Package algo defines the contract a trading strategy implements to receive
// normalized market and execution events from the broker.
package algo

import (
	"context"

	"main/internal/model"
)

// Algorithm consumes broker-side events. Handlers for a given market run
// sequentially per topic, so implementations only need to guard state shared
// across markets.
type Algorithm interface {
	// OnQuoteUpdate handles a top-of-book quote for one market.
	OnQuoteUpdate(ctx context.Context, quote model.Quote) error

	// OnBookUpdate handles an order book update already folded by the broker.
	OnBookUpdate(ctx context.Context, update model.BookUpdate) error

	// OnOrderUpdate handles an order lifecycle transition.
	OnOrderUpdate(ctx context.Context, update model.OrderStatusUpdate) error

	// OnTrade handles an incremental fill.
	OnTrade(ctx context.Context, trade model.Trade) error

	// OnPanic halts trading. It must be idempotent: the same condition may be
	// raised by several monitors.
	OnPanic(msg string)
}
