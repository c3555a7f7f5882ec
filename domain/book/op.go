package book

import "github.com/shopspring/decimal"

type OpType uint8

const (
	OpCreate OpType = iota
	OpCancel
	OpAmend
)

func (t OpType) String() string {
	switch t {
	case OpCreate:
		return "CREATE"
	case OpCancel:
		return "CANCEL"
	case OpAmend:
		return "AMEND"
	default:
		return "UNKNOWN"
	}
}

// Op is one decoded input operation. Seq is assigned at ingestion and
// establishes the per-symbol total order.
type Op struct {
	Type OpType
	Seq  uint64

	OrderID string
	Account string
	Symbol  string

	// Create only.
	Side      Side
	OrderType OrderType

	// Create and Amend.
	Price decimal.Decimal
	Qty   decimal.Decimal
}
