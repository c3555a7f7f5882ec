package book

import "github.com/shopspring/decimal"

// Apply runs one operation against the book and returns the resulting
// events in emission order. The book mutation and the events are
// produced atomically: the caller must not observe the book between
// them. Per-operation failures are events, never errors.
func (b *OrderBook) Apply(op *Op) []Event {
	b.LastSeq = op.Seq
	switch op.Type {
	case OpCreate:
		return b.applyCreate(op)
	case OpCancel:
		return b.applyCancel(op)
	case OpAmend:
		return b.applyAmend(op)
	default:
		return []Event{b.rejected(op.OrderID, op.Seq, ReasonInvalidOrder)}
	}
}

func (b *OrderBook) applyCreate(op *Op) []Event {
	if reason, ok := validateCreate(op); !ok {
		return []Event{b.rejected(op.OrderID, op.Seq, reason)}
	}
	if _, exists := b.orders[op.OrderID]; exists {
		return []Event{b.rejected(op.OrderID, op.Seq, ReasonDuplicateOrder)}
	}

	o := b.alloc()
	*o = Order{
		ID:      op.OrderID,
		Account: op.Account,
		Symbol:  op.Symbol,
		Side:    op.Side,
		Type:    op.OrderType,
		Price:   op.Price,
		Qty:     op.Qty,
		Seq:     op.Seq,
		Status:  Active,
	}

	return b.execute(o, op.Seq, nil)
}

// execute runs the taker path: policy checks, the matching loop, then
// rest-or-cancel for the remainder. It owns o and releases it unless
// the order ends up resting.
func (b *OrderBook) execute(o *Order, seq uint64, evs []Event) []Event {
	if o.Type == FOK && !b.canFill(o) {
		// An all-or-none order without full depth available trades
		// nothing and leaves the book untouched.
		evs = append(evs, b.cancelled(o.ID, seq))
		b.release(o)
		return evs
	}
	if o.Type == PostOnly && b.wouldCross(o) {
		evs = append(evs, b.cancelled(o.ID, seq))
		b.release(o)
		return evs
	}

	evs = b.match(o, seq, evs)

	if o.Remaining().IsPositive() {
		switch o.Type {
		case Limit, FOK, PostOnly:
			// FOK reaches here only fully fillable, PostOnly only
			// non-crossing; both rest like plain limits.
			b.insertResting(o)
			evs = append(evs, b.accepted(o, seq))
		default:
			// Market and IOC remainders never rest.
			o.Status = Inactive
			evs = append(evs, b.cancelled(o.ID, seq))
			b.release(o)
		}
		return evs
	}

	o.Status = Inactive
	b.release(o)
	return evs
}

// match crosses the incoming order against the opposing ladder, oldest
// order first within each best level. Trade price is always the
// maker's.
func (b *OrderBook) match(taker *Order, seq uint64, evs []Event) []Event {
	for taker.Remaining().IsPositive() {
		best := b.best(taker.Side.Opposite())
		if best == nil {
			break
		}
		if taker.Type != Market && !crosses(taker, best.Price) {
			break
		}

		maker := best.Head()
		qty := decimal.Min(taker.Remaining(), maker.Remaining())
		taker.Filled = taker.Filled.Add(qty)

		evs = append(evs, Event{
			Kind:           EventFilled,
			Symbol:         b.Symbol,
			Seq:            seq,
			OrderID:        taker.ID,
			MakerID:        maker.ID,
			Price:          maker.Price,
			Qty:            qty,
			TakerRemaining: taker.Remaining(),
			MakerRemaining: maker.Remaining().Sub(qty),
		})

		// May remove maker (and its level) and recycle the object, so
		// the event above is built first.
		b.fill(maker, qty)
	}
	return evs
}

func (b *OrderBook) applyCancel(op *Op) []Event {
	o, ok := b.orders[op.OrderID]
	if !ok {
		return []Event{b.rejected(op.OrderID, op.Seq, ReasonNotFound)}
	}
	b.unbook(o)
	o.Status = Inactive
	ev := b.cancelled(o.ID, op.Seq)
	b.release(o)
	return []Event{ev}
}

// applyAmend is semantically cancel-then-recreate. A price-preserving
// quantity reduction keeps time priority; anything else forfeits it and
// re-runs the taker path under the amend's sequence number.
func (b *OrderBook) applyAmend(op *Op) []Event {
	o, ok := b.orders[op.OrderID]
	if !ok {
		return []Event{b.rejected(op.OrderID, op.Seq, ReasonNotFound)}
	}
	if !op.Qty.IsPositive() || !op.Price.IsPositive() {
		return []Event{b.rejected(op.OrderID, op.Seq, ReasonInvalidOrder)}
	}

	if op.Price.Equal(o.Price) && op.Qty.LessThanOrEqual(o.Remaining()) {
		delta := o.Remaining().Sub(op.Qty)
		o.Qty = o.Qty.Sub(delta)
		o.level.Reduce(delta)
		b.addDepth(o.Side, delta.Neg())
		return []Event{b.accepted(o, op.Seq)}
	}

	b.unbook(o)
	o.Price = op.Price
	o.Qty = op.Qty
	o.Filled = decimal.Decimal{}
	o.Seq = op.Seq
	return b.execute(o, op.Seq, nil)
}

func validateCreate(op *Op) (RejectReason, bool) {
	if !op.Qty.IsPositive() {
		return ReasonInvalidOrder, false
	}
	if op.OrderType != Market && !op.Price.IsPositive() {
		return ReasonInvalidOrder, false
	}
	return "", true
}

func crosses(taker *Order, restingPrice decimal.Decimal) bool {
	if taker.Side == Buy {
		return taker.Price.GreaterThanOrEqual(restingPrice)
	}
	return taker.Price.LessThanOrEqual(restingPrice)
}

// wouldCross reports whether the order would trade on arrival.
func (b *OrderBook) wouldCross(o *Order) bool {
	best := b.best(o.Side.Opposite())
	return best != nil && crosses(o, best.Price)
}

// canFill walks the opposing ladder within the order's limit and
// reports whether its full quantity is available.
func (b *OrderBook) canFill(o *Order) bool {
	avail := decimal.Decimal{}
	enough := false
	walk := b.Asks.ForEachAscending
	if o.Side == Sell {
		walk = b.Bids.ForEachDescending
	}
	walk(func(lvl *PriceLevel) bool {
		if !crosses(o, lvl.Price) {
			return false
		}
		avail = avail.Add(lvl.TotalQty)
		enough = avail.GreaterThanOrEqual(o.Remaining())
		return !enough
	})
	return enough
}
