// Package stream decodes the inbound operation feed and encodes the
// outbound event feed: one JSON object per line on both sides.
package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"fenrir/domain/book"
)

const maxLineSize = 1 << 20

// ErrBadStream marks an unrecoverable input failure (oversized line,
// read error). Unlike a malformed-line error, no further operations
// can ever be read past it; callers must stop instead of skipping.
var ErrBadStream = errors.New("stream: unrecoverable input error")

type opRecord struct {
	TypeOp     string `json:"type_op"`
	OrderID    string `json:"order_id"`
	AccountID  string `json:"account_id,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	Side       string `json:"side,omitempty"`
	OrderType  string `json:"order_type,omitempty"`
	LimitPrice string `json:"limit_price,omitempty"`
	Quantity   string `json:"quantity,omitempty"`
}

type eventRecord struct {
	Kind           string `json:"kind"`
	Symbol         string `json:"symbol"`
	Seq            uint64 `json:"seq"`
	OrderID        string `json:"order_id,omitempty"`
	MakerID        string `json:"maker_order_id,omitempty"`
	Price          string `json:"price,omitempty"`
	Quantity       string `json:"quantity,omitempty"`
	TakerRemaining string `json:"taker_remaining,omitempty"`
	MakerRemaining string `json:"maker_remaining,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Decoder reads one operation per line. Malformed lines surface as
// errors the caller reports and skips; they never reach the core.
type Decoder struct {
	sc            *bufio.Scanner
	defaultSymbol string
	err           error // terminal scanner failure, sticky
}

func NewDecoder(r io.Reader, defaultSymbol string) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Decoder{sc: sc, defaultSymbol: defaultSymbol}
}

// Next returns the next decoded operation, io.EOF at end of stream, a
// decode error for a malformed line (the stream remains usable), or an
// error wrapping ErrBadStream once the underlying reader is broken.
func (d *Decoder) Next() (*book.Op, error) {
	if d.err != nil {
		return nil, d.err
	}
	for d.sc.Scan() {
		line := d.sc.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec opRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("stream: malformed operation: %w", err)
		}
		op, err := d.toOp(&rec)
		if err != nil {
			return nil, err
		}
		return op, nil
	}
	if err := d.sc.Err(); err != nil {
		d.err = fmt.Errorf("%w: %v", ErrBadStream, err)
		return nil, d.err
	}
	return nil, io.EOF
}

func (d *Decoder) toOp(rec *opRecord) (*book.Op, error) {
	op := &book.Op{
		OrderID: rec.OrderID,
		Account: rec.AccountID,
		Symbol:  rec.Symbol,
	}
	if op.Symbol == "" {
		op.Symbol = d.defaultSymbol
	}
	if op.OrderID == "" {
		return nil, fmt.Errorf("stream: missing order_id")
	}
	if op.Symbol == "" {
		return nil, fmt.Errorf("stream: missing symbol and no default set")
	}

	switch rec.TypeOp {
	case "CREATE":
		op.Type = book.OpCreate
	case "CANCEL":
		op.Type = book.OpCancel
		return op, nil
	case "AMEND":
		op.Type = book.OpAmend
		return op, decodeAmounts(rec, op)
	default:
		return nil, fmt.Errorf("stream: unknown type_op %q", rec.TypeOp)
	}

	switch rec.Side {
	case "BUY":
		op.Side = book.Buy
	case "SELL":
		op.Side = book.Sell
	default:
		return nil, fmt.Errorf("stream: unknown side %q", rec.Side)
	}

	switch rec.OrderType {
	case "", "LIMIT":
		op.OrderType = book.Limit
	case "MARKET":
		op.OrderType = book.Market
	case "IOC":
		op.OrderType = book.IOC
	case "FOK":
		op.OrderType = book.FOK
	case "POST_ONLY":
		op.OrderType = book.PostOnly
	default:
		return nil, fmt.Errorf("stream: unknown order_type %q", rec.OrderType)
	}

	return op, decodeAmounts(rec, op)
}

// decodeAmounts parses price and quantity exactly. Values that parse
// but fail domain validation (zero, negative) flow through to the core
// and come back as Rejected events.
func decodeAmounts(rec *opRecord, op *book.Op) error {
	var err error
	if rec.LimitPrice != "" {
		if op.Price, err = decimal.NewFromString(rec.LimitPrice); err != nil {
			return fmt.Errorf("stream: bad limit_price %q: %w", rec.LimitPrice, err)
		}
	}
	if rec.Quantity != "" {
		if op.Qty, err = decimal.NewFromString(rec.Quantity); err != nil {
			return fmt.Errorf("stream: bad quantity %q: %w", rec.Quantity, err)
		}
	}
	return nil
}

// MarshalEvent encodes one event as a single JSON line without the
// trailing newline. Shared by the file writer, the outbox and the
// websocket feed.
func MarshalEvent(ev book.Event) ([]byte, error) {
	rec := eventRecord{
		Kind:    ev.Kind.String(),
		Symbol:  ev.Symbol,
		Seq:     ev.Seq,
		OrderID: ev.OrderID,
	}
	switch ev.Kind {
	case book.EventFilled:
		rec.MakerID = ev.MakerID
		rec.Price = ev.Price.String()
		rec.Quantity = ev.Qty.String()
		rec.TakerRemaining = ev.TakerRemaining.String()
		rec.MakerRemaining = ev.MakerRemaining.String()
	case book.EventRejected:
		rec.Reason = string(ev.Reason)
	}
	return json.Marshal(rec)
}

// Writer emits one event per line.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 64*1024)}
}

func (w *Writer) Write(ev book.Event) error {
	b, err := MarshalEvent(ev)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}
