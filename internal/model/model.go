package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"main/internal/model/enum"
)

var ErrBadCurrencyPair = errors.New("bad currency pair")

// CurrencyPair is an ordered (base, quote) pair. It is a comparable value and
// may be used directly as part of a bus topic key.
type CurrencyPair struct {
	Base  enum.Currency
	Quote enum.Currency
}

// String returns the canonical BASE-QUOTE form.
func (p CurrencyPair) String() string {
	return p.Base.Upper() + "-" + p.Quote.Upper()
}

// PairFromString parses a BASE-QUOTE string.
func PairFromString(s string) (CurrencyPair, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return CurrencyPair{}, ErrBadCurrencyPair
	}
	base, ok := enum.ParseCurrency(parts[0])
	if !ok {
		return CurrencyPair{}, ErrBadCurrencyPair
	}
	quote, ok := enum.ParseCurrency(parts[1])
	if !ok {
		return CurrencyPair{}, ErrBadCurrencyPair
	}
	return CurrencyPair{Base: base, Quote: quote}, nil
}

// Quote is an OTC-like size-bucketed price snapshot from one market.
// BidPrice/AskPrice are the prices quoted for Size; TOBBidPrice/TOBAskPrice are
// the venue's top of book. Immutable.
type Quote struct {
	BidPrice    float64
	AskPrice    float64
	TOBBidPrice float64
	TOBAskPrice float64
	Market      enum.Market
	Pair        CurrencyPair
	Size        float64
	Timestamp   time.Time
}

// BookUpdate is an incremental or full-snapshot L2 update. Each entry maps a
// price level to the new absolute size at that level. A consumer makes no
// distinction between a partial update and a full snapshot except through the
// Snapshot flag.
type BookUpdate struct {
	Pair      CurrencyPair
	Market    enum.Market
	Bids      map[float64]float64
	Asks      map[float64]float64
	Timestamp time.Time
	Snapshot  bool
}

// Trade is a fill notification for the own order identified by ID.
// Size, Amount and Fee are increments, all non-negative.
type Trade struct {
	ID     uuid.UUID
	Size   float64
	Amount float64
	Fee    float64
}

// OrderStatusUpdate reports a change of an order's state at a market.
// The snapshot fields carry the venue's view of the order; when they are
// complete, Order() reconstructs the full order.
type OrderStatusUpdate struct {
	Market       enum.Market
	Pair         CurrencyPair
	ID           uuid.UUID
	UpdateType   enum.UpdateType
	UpdateTime   time.Time
	RejectReason string
	Comment      string

	Size            float64
	CumFilledSize   float64
	CumFilledAmount float64
	CumFees         float64
	Side            enum.Side
	LimitPrice      float64
	Live            bool
}

// Order reconstructs a full Order from the update's snapshot fields, or nil
// when the update does not carry enough information. When it returns non-nil,
// assume there is no separate Trade event for the same status update.
func (u OrderStatusUpdate) Order() *Order {
	if u.Size == 0 || !u.Side.IsAvailable() || u.LimitPrice == 0 || !u.Live {
		return nil
	}
	return &Order{
		ID:           u.ID,
		Size:         u.Size,
		Pair:         u.Pair,
		Side:         u.Side,
		LimitPrice:   u.LimitPrice,
		Market:       u.Market,
		FilledSize:   u.CumFilledSize,
		FilledAmount: u.CumFilledAmount,
		CumFee:       u.CumFees,
		Live:         u.Live,
	}
}
