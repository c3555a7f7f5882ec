package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/domain/book"
	"fenrir/infra/wal/entry"
)

func TestOpCodecRoundtrip(t *testing.T) {
	op := &book.Op{
		Type:      book.OpCreate,
		Seq:       42,
		OrderID:   "abc-123",
		Account:   "acct-7",
		Symbol:    "BTC/USDC",
		Side:      book.Sell,
		OrderType: book.IOC,
		Price:     dec("63500.55"),
		Qty:       dec("0.0023"),
	}

	rec := entry.NewRecord(recordType(op.Type), op.Seq, encodeOp(op))
	got, err := decodeOp(rec)
	require.NoError(t, err)

	assert.Equal(t, op.Type, got.Type)
	assert.Equal(t, op.Seq, got.Seq)
	assert.Equal(t, op.OrderID, got.OrderID)
	assert.Equal(t, op.Account, got.Account)
	assert.Equal(t, op.Symbol, got.Symbol)
	assert.Equal(t, op.Side, got.Side)
	assert.Equal(t, op.OrderType, got.OrderType)
	assert.True(t, op.Price.Equal(got.Price))
	assert.True(t, op.Qty.Equal(got.Qty))
}

func TestDecodeOpTruncated(t *testing.T) {
	op := &book.Op{Type: book.OpCancel, Seq: 1, OrderID: "x", Symbol: "A/B"}
	rec := entry.NewRecord(entry.RecordCancel, 1, encodeOp(op)[:2])
	_, err := decodeOp(rec)
	require.Error(t, err)
}
