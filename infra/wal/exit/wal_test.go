package exit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	o, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	return o
}

func TestAppendAndGet(t *testing.T) {
	o := openTestOutbox(t)

	require.NoError(t, o.Append(7, 0, []byte("event-a")))
	require.NoError(t, o.Append(7, 1, []byte("event-b")))

	rec, err := o.Get(7, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), rec.Seq)
	assert.Equal(t, uint32(1), rec.Index)
	assert.Equal(t, StateNew, rec.State)
	assert.Equal(t, []byte("event-b"), rec.Payload)
}

func TestStateTransitions(t *testing.T) {
	o := openTestOutbox(t)

	require.NoError(t, o.Append(1, 0, []byte("x")))

	require.NoError(t, o.MarkSent(1, 0))
	rec, err := o.Get(1, 0)
	require.NoError(t, err)
	assert.Equal(t, StateSent, rec.State)

	require.NoError(t, o.MarkFailed(1, 0))
	rec, err = o.Get(1, 0)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)

	require.NoError(t, o.MarkAcked(1, 0))
	rec, err = o.Get(1, 0)
	require.NoError(t, err)
	assert.Equal(t, StateAcked, rec.State)
}

func TestScanPendingSkipsAcked(t *testing.T) {
	o := openTestOutbox(t)

	require.NoError(t, o.Append(1, 0, []byte("a")))
	require.NoError(t, o.Append(2, 0, []byte("b")))
	require.NoError(t, o.Append(3, 0, []byte("c")))
	require.NoError(t, o.MarkAcked(2, 0))

	var seqs []uint64
	require.NoError(t, o.ScanPending(func(r *Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{1, 3}, seqs)
}

func TestScanPendingOrderedBySeqThenIndex(t *testing.T) {
	o := openTestOutbox(t)

	require.NoError(t, o.Append(10, 1, []byte("b")))
	require.NoError(t, o.Append(10, 0, []byte("a")))
	require.NoError(t, o.Append(2, 0, []byte("early")))

	var got [][2]uint64
	require.NoError(t, o.ScanPending(func(r *Record) error {
		got = append(got, [2]uint64{r.Seq, uint64(r.Index)})
		return nil
	}))
	assert.Equal(t, [][2]uint64{{2, 0}, {10, 0}, {10, 1}}, got)
}

func TestDelete(t *testing.T) {
	o := openTestOutbox(t)

	require.NoError(t, o.Append(1, 0, []byte("a")))
	require.NoError(t, o.Delete(1, 0))

	_, err := o.Get(1, 0)
	require.Error(t, err)
}

func TestReopenKeepsRecords(t *testing.T) {
	dir := t.TempDir()

	o, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, o.Append(1, 0, []byte("durable")))
	require.NoError(t, o.Close())

	o, err = Open(dir)
	require.NoError(t, err)
	defer o.Close()

	rec, err := o.Get(1, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), rec.Payload)
	assert.Equal(t, StateNew, rec.State)
}
