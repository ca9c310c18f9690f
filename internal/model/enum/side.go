package enum

// Side is the buy/sell direction of an order or book side.
type Side uint8

const (
	_side_beg Side = iota
	SideBuy
	SideSell
	_side_end
)

func (s Side) IsAvailable() bool {
	return s > _side_beg && s < _side_end
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return s
	}
}

// ParseSide reads a side from a wire payload value.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "buy", "Buy", "BUY":
		return SideBuy, true
	case "sell", "Sell", "SELL":
		return SideSell, true
	default:
		return 0, false
	}
}
