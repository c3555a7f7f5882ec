package book

import "github.com/shopspring/decimal"

type EventKind uint8

const (
	EventAccepted EventKind = iota
	EventFilled
	EventCancelled
	EventRejected
)

func (k EventKind) String() string {
	switch k {
	case EventAccepted:
		return "ACCEPTED"
	case EventFilled:
		return "FILLED"
	case EventCancelled:
		return "CANCELLED"
	case EventRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// RejectReason classifies why an operation was refused.
type RejectReason string

const (
	ReasonInvalidOrder   RejectReason = "INVALID_ORDER"
	ReasonNotFound       RejectReason = "NOT_FOUND"
	ReasonDuplicateOrder RejectReason = "DUPLICATE_ORDER"
)

// Event is one immutable outcome record. For a given symbol the event
// sequence is a deterministic function of the operation sequence.
type Event struct {
	Kind   EventKind
	Symbol string

	// Seq is the sequence number of the causing operation.
	Seq uint64

	// OrderID is the subject order: the taker for fills.
	OrderID string

	// Fill fields. Price is always the maker's limit price.
	MakerID        string
	Price          decimal.Decimal
	Qty            decimal.Decimal
	TakerRemaining decimal.Decimal
	MakerRemaining decimal.Decimal

	Reason RejectReason
}

func (b *OrderBook) accepted(o *Order, seq uint64) Event {
	return Event{
		Kind:    EventAccepted,
		Symbol:  b.Symbol,
		Seq:     seq,
		OrderID: o.ID,
	}
}

func (b *OrderBook) cancelled(id string, seq uint64) Event {
	return Event{
		Kind:    EventCancelled,
		Symbol:  b.Symbol,
		Seq:     seq,
		OrderID: id,
	}
}

func (b *OrderBook) rejected(id string, seq uint64, reason RejectReason) Event {
	return Event{
		Kind:    EventRejected,
		Symbol:  b.Symbol,
		Seq:     seq,
		OrderID: id,
		Reason:  reason,
	}
}
