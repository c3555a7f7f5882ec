package entry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestWAL(t *testing.T, dir string, segSize int64) *WAL {
	t.Helper()
	w, err := Open(Config{Dir: dir, SegmentSize: segSize, SegmentDuration: time.Hour})
	require.NoError(t, err)
	return w
}

func TestAppendReplayRoundtrip(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir, 1<<20)

	payloads := [][]byte{[]byte("alpha"), []byte("beta"), {}, []byte("gamma")}
	for i, p := range payloads {
		require.NoError(t, w.Append(NewRecord(RecordCreate, uint64(i+1), p)))
	}
	require.NoError(t, w.Close())

	var got []*Record
	last, err := Replay(dir, func(r *Record) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(len(payloads)), last)
	require.Len(t, got, len(payloads))
	for i, r := range got {
		assert.Equal(t, RecordCreate, r.Type)
		assert.Equal(t, uint64(i+1), r.Seq)
		assert.Equal(t, payloads[i], r.Data)
	}
}

func TestSegmentRotationBySize(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir, 64) // tiny segments force rotation

	for i := 1; i <= 10; i++ {
		require.NoError(t, w.Append(NewRecord(RecordCreate, uint64(i), []byte("0123456789012345678901234567890123456789"))))
	}
	require.NoError(t, w.Close())

	segments, err := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	require.NoError(t, err)
	assert.Greater(t, len(segments), 1)

	count := 0
	last, err := Replay(dir, func(*Record) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, count)
	assert.Equal(t, uint64(10), last)
}

func TestReopenResumesAfterExistingSegments(t *testing.T) {
	dir := t.TempDir()

	w := openTestWAL(t, dir, 1<<20)
	require.NoError(t, w.Append(NewRecord(RecordCreate, 1, []byte("a"))))
	require.NoError(t, w.Close())

	w = openTestWAL(t, dir, 1<<20)
	require.NoError(t, w.Append(NewRecord(RecordCancel, 2, []byte("b"))))
	require.NoError(t, w.Close())

	var seqs []uint64
	_, err := Replay(dir, func(r *Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, seqs)
}

func TestReplayDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir, 1<<20)
	require.NoError(t, w.Append(NewRecord(RecordCreate, 1, []byte("payload"))))
	require.NoError(t, w.Close())

	segments, err := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	require.NoError(t, err)
	require.NotEmpty(t, segments)

	// Flip one payload byte; the checksum must catch it.
	raw, err := os.ReadFile(segments[0])
	require.NoError(t, err)
	raw[22] ^= 0xff
	require.NoError(t, os.WriteFile(segments[0], raw, 0o644))

	_, err = Replay(dir, func(*Record) error { return nil })
	require.ErrorIs(t, err, ErrCorruptRecord)
}

func TestReplayToleratesTornTail(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir, 1<<20)
	require.NoError(t, w.Append(NewRecord(RecordCreate, 1, []byte("first"))))
	require.NoError(t, w.Append(NewRecord(RecordCreate, 2, []byte("second"))))
	require.NoError(t, w.Close())

	segments, err := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	require.NoError(t, err)

	// Chop into the last record to simulate a crash mid-write.
	raw, err := os.ReadFile(segments[0])
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(segments[0], raw[:len(raw)-6], 0o644))

	var seqs []uint64
	last, err := Replay(dir, func(r *Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, seqs)
	assert.Equal(t, uint64(1), last)
}

func TestReplayRejectsNonMonotonicSeq(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir, 1<<20)
	require.NoError(t, w.Append(NewRecord(RecordCreate, 5, []byte("a"))))
	require.NoError(t, w.Append(NewRecord(RecordCreate, 5, []byte("b"))))
	require.NoError(t, w.Close())

	_, err := Replay(dir, func(*Record) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-monotonic")
}
