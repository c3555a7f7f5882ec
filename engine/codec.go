package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/shopspring/decimal"

	"fenrir/domain/book"
	"fenrir/infra/wal/entry"
)

// Journal payload layout (all strings uvarint-length-prefixed):
// [orderID][account][symbol][side:1][otype:1][price][qty]
// Amounts travel as decimal strings so replay is bit-exact.

func encodeOp(op *book.Op) []byte {
	buf := make([]byte, 0, 64)
	buf = appendString(buf, op.OrderID)
	buf = appendString(buf, op.Account)
	buf = appendString(buf, op.Symbol)
	buf = append(buf, byte(op.Side), byte(op.OrderType))
	buf = appendString(buf, op.Price.String())
	buf = appendString(buf, op.Qty.String())
	return buf
}

func decodeOp(rec *entry.Record) (*book.Op, error) {
	op := &book.Op{Seq: rec.Seq}
	switch rec.Type {
	case entry.RecordCreate:
		op.Type = book.OpCreate
	case entry.RecordCancel:
		op.Type = book.OpCancel
	case entry.RecordAmend:
		op.Type = book.OpAmend
	default:
		return nil, fmt.Errorf("engine: unknown journal record type %d", rec.Type)
	}

	b := rec.Data
	var err error
	if op.OrderID, b, err = readString(b); err != nil {
		return nil, err
	}
	if op.Account, b, err = readString(b); err != nil {
		return nil, err
	}
	if op.Symbol, b, err = readString(b); err != nil {
		return nil, err
	}
	if len(b) < 2 {
		return nil, fmt.Errorf("engine: truncated journal payload")
	}
	op.Side = book.Side(b[0])
	op.OrderType = book.OrderType(b[1])
	b = b[2:]

	var s string
	if s, b, err = readString(b); err != nil {
		return nil, err
	}
	if op.Price, err = decimal.NewFromString(s); err != nil {
		return nil, fmt.Errorf("engine: journal price: %w", err)
	}
	if s, _, err = readString(b); err != nil {
		return nil, err
	}
	if op.Qty, err = decimal.NewFromString(s); err != nil {
		return nil, fmt.Errorf("engine: journal qty: %w", err)
	}
	return op, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func readString(b []byte) (string, []byte, error) {
	n, sz := binary.Uvarint(b)
	if sz <= 0 || uint64(len(b)-sz) < n {
		return "", nil, fmt.Errorf("engine: truncated journal payload")
	}
	return string(b[sz : sz+int(n)]), b[sz+int(n):], nil
}
