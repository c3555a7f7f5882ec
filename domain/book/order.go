package book

import "github.com/shopspring/decimal"

type Side uint8
type OrderType uint8
type Status uint8

const (
	Buy Side = iota
	Sell
)

const (
	Limit OrderType = iota
	Market
	IOC
	FOK
	PostOnly
)

const (
	Active Status = iota
	Inactive
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	case PostOnly:
		return "POST_ONLY"
	default:
		return "UNKNOWN"
	}
}

// Order is a pure domain entity. The intrusive next/prev pointers are
// owned by the price level the order rests in; level is nil while the
// order is not booked.
type Order struct {
	ID      string
	Account string
	Symbol  string

	Side Side
	Type OrderType

	Price  decimal.Decimal
	Qty    decimal.Decimal
	Filled decimal.Decimal

	// Seq is the arrival sequence number, assigned at ingestion. It is
	// the time component of price-time priority.
	Seq uint64

	Status Status

	level *PriceLevel
	next  *Order
	prev  *Order
}

func (o *Order) Remaining() decimal.Decimal {
	return o.Qty.Sub(o.Filled)
}

// Read-only traversal helper.
func (o *Order) Next() *Order {
	return o.next
}
