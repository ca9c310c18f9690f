package book

import (
	"errors"
	"sort"

	"main/internal/model/enum"
)

var (
	ErrEmptyUpdate    = errors.New("book update has no levels")
	ErrBadPriceLevel  = errors.New("price level must be positive")
	ErrNegativeSize   = errors.New("size at level must be non-negative")
	ErrNoSuchLevel    = errors.New("no level at requested depth")
	ErrMissingLevel   = errors.New("level missing from left-hand book")
	ErrUnknownSide    = errors.New("unknown book side")
)

// Level is one resting price level.
type Level struct {
	Price float64
	Size  float64
}

// L2OrderBook holds the aggregated resting size per price level on both sides
// for one (pair, market). Prices are kept sorted per side so top-of-book and
// nth-level lookups are O(log n).
type L2OrderBook struct {
	sides map[enum.Side]*sideLevels
}

type sideLevels struct {
	prices []float64 // ascending
	sizes  map[float64]float64
}

// New creates an empty book.
func New() *L2OrderBook {
	return &L2OrderBook{
		sides: map[enum.Side]*sideLevels{
			enum.SideBuy:  newSideLevels(),
			enum.SideSell: newSideLevels(),
		},
	}
}

func newSideLevels() *sideLevels {
	return &sideLevels{sizes: make(map[float64]float64)}
}

// Update applies absolute level sizes. When snapshot is true the stored levels
// on both sides are replaced wholesale. Otherwise each (price, size) entry
// replaces that level's size; size 0 deletes the level. A non-positive price or
// a negative size is a fatal input error.
func (b *L2OrderBook) Update(bids, asks map[float64]float64, snapshot bool) error {
	if len(bids) == 0 && len(asks) == 0 {
		return ErrEmptyUpdate
	}
	if snapshot {
		fresh := New()
		if err := fresh.apply(bids, enum.SideBuy); err != nil {
			return err
		}
		if err := fresh.apply(asks, enum.SideSell); err != nil {
			return err
		}
		b.sides = fresh.sides
		return nil
	}
	if err := b.apply(bids, enum.SideBuy); err != nil {
		return err
	}
	return b.apply(asks, enum.SideSell)
}

// DeltaUpdate adds each delta to the current size at its level, creating the
// level when absent. A resulting negative size is a fatal input error; a
// resulting zero size deletes the level.
func (b *L2OrderBook) DeltaUpdate(bidDeltas, askDeltas map[float64]float64) error {
	if err := b.applyDeltas(bidDeltas, enum.SideBuy, 1); err != nil {
		return err
	}
	return b.applyDeltas(askDeltas, enum.SideSell, 1)
}

// HasTOB reports whether any level rests on side.
func (b *L2OrderBook) HasTOB(side enum.Side) bool {
	s, ok := b.sides[side]
	return ok && len(s.prices) > 0
}

// TOB returns the best resting level on side: highest price for buys, lowest
// for sells.
func (b *L2OrderBook) TOB(side enum.Side) (Level, error) {
	return b.Level(side, 1)
}

// Level returns the nth best resting level on side, 1-based from the top.
func (b *L2OrderBook) Level(side enum.Side, nthFromTop int) (Level, error) {
	s, ok := b.sides[side]
	if !ok {
		return Level{}, ErrUnknownSide
	}
	if nthFromTop < 1 || nthFromTop > len(s.prices) {
		return Level{}, ErrNoSuchLevel
	}
	var price float64
	switch side {
	case enum.SideBuy:
		price = s.prices[len(s.prices)-nthFromTop]
	case enum.SideSell:
		price = s.prices[nthFromTop-1]
	}
	return Level{Price: price, Size: s.sizes[price]}, nil
}

// Size returns the resting size at price on side, 0 when the level is absent.
func (b *L2OrderBook) Size(side enum.Side, price float64) float64 {
	s, ok := b.sides[side]
	if !ok {
		return 0
	}
	return s.sizes[price]
}

// Bids returns the bid levels, best first.
func (b *L2OrderBook) Bids() []Level {
	return b.levels(enum.SideBuy)
}

// Asks returns the ask levels, best first.
func (b *L2OrderBook) Asks() []Level {
	return b.levels(enum.SideSell)
}

// Copy returns an independent deep copy of the book.
func (b *L2OrderBook) Copy() *L2OrderBook {
	res := New()
	for side, s := range b.sides {
		cp := res.sides[side]
		cp.prices = append(cp.prices, s.prices...)
		for price, size := range s.sizes {
			cp.sizes[price] = size
		}
	}
	return res
}

// Diff returns lhs minus rhs level by level, leaving both inputs untouched.
// Every level present in rhs must also be present in lhs on the same side
// (one cannot subtract what was never there), and no resulting size may go
// negative.
func Diff(lhs, rhs *L2OrderBook) (*L2OrderBook, error) {
	res := lhs.Copy()
	for _, side := range []enum.Side{enum.SideBuy, enum.SideSell} {
		src := rhs.sides[side]
		dst := res.sides[side]
		for price, size := range src.sizes {
			if _, ok := dst.sizes[price]; !ok {
				return nil, ErrMissingLevel
			}
			left := dst.sizes[price] - size
			if left < 0 {
				return nil, ErrNegativeSize
			}
			dst.set(price, left)
		}
	}
	return res, nil
}

func (b *L2OrderBook) levels(side enum.Side) []Level {
	s := b.sides[side]
	res := make([]Level, 0, len(s.prices))
	if side == enum.SideBuy {
		for i := len(s.prices) - 1; i >= 0; i-- {
			res = append(res, Level{Price: s.prices[i], Size: s.sizes[s.prices[i]]})
		}
		return res
	}
	for _, price := range s.prices {
		res = append(res, Level{Price: price, Size: s.sizes[price]})
	}
	return res
}

func (b *L2OrderBook) apply(update map[float64]float64, side enum.Side) error {
	s := b.sides[side]
	for price, size := range update {
		if price <= 0 {
			return ErrBadPriceLevel
		}
		if size < 0 {
			return ErrNegativeSize
		}
		s.set(price, size)
	}
	return nil
}

func (b *L2OrderBook) applyDeltas(deltas map[float64]float64, side enum.Side, sign float64) error {
	s := b.sides[side]
	for price, delta := range deltas {
		next := s.sizes[price] + sign*delta
		if next < 0 {
			return ErrNegativeSize
		}
		s.set(price, next)
	}
	return nil
}

// set stores size at price, removing the level when size is exactly zero.
func (s *sideLevels) set(price, size float64) {
	_, exists := s.sizes[price]
	if size == 0 {
		if exists {
			delete(s.sizes, price)
			i := sort.SearchFloat64s(s.prices, price)
			s.prices = append(s.prices[:i], s.prices[i+1:]...)
		}
		return
	}
	if !exists {
		i := sort.SearchFloat64s(s.prices, price)
		s.prices = append(s.prices, 0)
		copy(s.prices[i+1:], s.prices[i:])
		s.prices[i] = price
	}
	s.sizes[price] = size
}
