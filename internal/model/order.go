package model

import (
	"time"

	"github.com/google/uuid"

	"main/internal/model/enum"
)

// Order is the mutable lifecycle entity for one own order.
//
// Size is in base leg units and strictly positive. FilledSize ranges between 0
// and Size. FilledAmount and CumFee are in quote leg units. Live is false until
// the market accepts the order and false again once it is rejected, canceled or
// done.
type Order struct {
	ID           uuid.UUID
	Size         float64
	Pair         CurrencyPair
	Side         enum.Side
	LimitPrice   float64
	Market       enum.Market
	Timeout      time.Duration
	FilledSize   float64
	FilledAmount float64
	CumFee       float64
	Live         bool
}

// SizeLeft returns the base leg size remaining to fill.
func (o *Order) SizeLeft() float64 {
	return o.Size - o.FilledSize
}

// RelFill returns the filled fraction in [0, 1].
func (o *Order) RelFill() float64 {
	return o.FilledSize / o.Size
}
