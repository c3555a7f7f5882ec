package book

import "github.com/shopspring/decimal"

// OrderBook holds one symbol's resting orders. It is single-writer and
// deterministic: all mutation goes through the owning engine lane.
type OrderBook struct {
	Symbol string

	Bids *RBTree
	Asks *RBTree

	// orders is the id -> resting order index used by cancel/amend.
	orders map[string]*Order

	bidQty decimal.Decimal
	askQty decimal.Decimal

	// LastSeq is the sequence number of the last applied operation.
	LastSeq uint64

	alloc   func() *Order
	release func(*Order)
}

// Option configures an OrderBook.
type Option func(*OrderBook)

// WithPool routes order allocation through an external free list.
// Released orders must not be referenced after the call.
func WithPool(alloc func() *Order, release func(*Order)) Option {
	return func(b *OrderBook) {
		b.alloc = alloc
		b.release = release
	}
}

func NewOrderBook(symbol string, opts ...Option) *OrderBook {
	b := &OrderBook{
		Symbol:  symbol,
		Bids:    NewRBTree(),
		Asks:    NewRBTree(),
		orders:  make(map[string]*Order),
		alloc:   func() *Order { return new(Order) },
		release: func(*Order) {},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *OrderBook) side(s Side) *RBTree {
	if s == Buy {
		return b.Bids
	}
	return b.Asks
}

// best returns the top level for the given side, nil when empty.
func (b *OrderBook) best(s Side) *PriceLevel {
	if s == Buy {
		return b.Bids.MaxLevel()
	}
	return b.Asks.MinLevel()
}

func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	if lvl := b.Bids.MaxLevel(); lvl != nil {
		return lvl.Price, true
	}
	return decimal.Decimal{}, false
}

func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	if lvl := b.Asks.MinLevel(); lvl != nil {
		return lvl.Price, true
	}
	return decimal.Decimal{}, false
}

// Spread is best ask minus best bid; ok only when both sides rest.
func (b *OrderBook) Spread() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, false
	}
	return ask.Sub(bid), true
}

// Crossed reports whether the book is left in a crossed state. It must
// be false after every applied operation.
func (b *OrderBook) Crossed() bool {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	return okBid && okAsk && bid.GreaterThanOrEqual(ask)
}

// Order looks up a resting order by id.
func (b *OrderBook) Order(id string) (*Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// Len returns the per-side count of resting orders.
func (b *OrderBook) Len(s Side) int {
	n := 0
	b.side(s).ForEachAscending(func(lvl *PriceLevel) bool {
		n += lvl.OrderCount
		return true
	})
	return n
}

// Depth returns the aggregate resting quantity on one side.
func (b *OrderBook) Depth(s Side) decimal.Decimal {
	if s == Buy {
		return b.bidQty
	}
	return b.askQty
}

// insertResting appends the order to the tail of its price level,
// creating the level when absent, and indexes it by id.
func (b *OrderBook) insertResting(o *Order) {
	b.side(o.Side).UpsertLevel(o.Price).Enqueue(o)
	b.orders[o.ID] = o
	b.addDepth(o.Side, o.Remaining())
}

// unbook detaches a resting order from its level, the ladder and the
// index. The caller still owns the order afterwards.
func (b *OrderBook) unbook(o *Order) {
	lvl := o.level
	lvl.Unlink(o)
	if lvl.Empty() {
		b.side(o.Side).DeleteLevel(lvl.Price)
	}
	delete(b.orders, o.ID)
	b.addDepth(o.Side, o.Remaining().Neg())
}

// fill reduces a resting order in place; queue position is untouched.
// Fully filled orders are removed from the book and released.
func (b *OrderBook) fill(o *Order, qty decimal.Decimal) {
	o.Filled = o.Filled.Add(qty)
	o.level.Reduce(qty)
	b.addDepth(o.Side, qty.Neg())
	if o.Remaining().IsZero() {
		o.Status = Inactive
		lvl := o.level
		lvl.Unlink(o)
		if lvl.Empty() {
			b.side(o.Side).DeleteLevel(lvl.Price)
		}
		delete(b.orders, o.ID)
		b.release(o)
	}
}

func (b *OrderBook) addDepth(s Side, qty decimal.Decimal) {
	if s == Buy {
		b.bidQty = b.bidQty.Add(qty)
	} else {
		b.askQty = b.askQty.Add(qty)
	}
}

// LevelInfo is an aggregated view of one price level.
type LevelInfo struct {
	Price  decimal.Decimal
	Qty    decimal.Decimal
	Orders int
}

// Levels returns up to max aggregated levels, best first. max <= 0
// means all levels.
func (b *OrderBook) Levels(s Side, max int) []LevelInfo {
	out := make([]LevelInfo, 0, 16)
	walk := b.Asks.ForEachAscending
	if s == Buy {
		walk = b.Bids.ForEachDescending
	}
	walk(func(lvl *PriceLevel) bool {
		out = append(out, LevelInfo{
			Price:  lvl.Price,
			Qty:    lvl.TotalQty,
			Orders: lvl.OrderCount,
		})
		return max <= 0 || len(out) < max
	})
	return out
}

// Summary is the periodic book-state report: best bid/ask spread and
// per-side depth.
type Summary struct {
	Symbol string

	BestBid decimal.Decimal
	BestAsk decimal.Decimal
	HasBid  bool
	HasAsk  bool
	Spread  decimal.Decimal

	BidOrders int
	AskOrders int
	BidQty    decimal.Decimal
	AskQty    decimal.Decimal

	LastSeq uint64
}

func (b *OrderBook) Summarize() Summary {
	s := Summary{
		Symbol:    b.Symbol,
		BidOrders: b.Len(Buy),
		AskOrders: b.Len(Sell),
		BidQty:    b.bidQty,
		AskQty:    b.askQty,
		LastSeq:   b.LastSeq,
	}
	s.BestBid, s.HasBid = b.BestBid()
	s.BestAsk, s.HasAsk = b.BestAsk()
	if s.HasBid && s.HasAsk {
		s.Spread = s.BestAsk.Sub(s.BestBid)
	}
	return s
}
