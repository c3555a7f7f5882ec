package exit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// Record is one durable outbound event awaiting delivery. Seq is the
// causing operation's sequence number and Index the event's position
// within that operation's emission.
type Record struct {
	Seq         uint64
	Index       uint32
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeValue(r *Record) []byte {
	buf := make([]byte, 13+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[13:], r.Payload)
	return buf
}

func decodeValue(b []byte) (*Record, error) {
	if len(b) < 13 {
		return nil, errors.New("exit: invalid record length")
	}
	payload := make([]byte, len(b)-13)
	copy(payload, b[13:])
	return &Record{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

// -------------------- Outbox --------------------

// Outbox is the durable staging area between the matching engine and
// the event broadcaster. Records move NEW -> SENT -> ACKED; ACKED
// records are garbage.
type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // delivery state must survive a crash
	})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Append stages a freshly emitted event.
func (o *Outbox) Append(seq uint64, index uint32, payload []byte) error {
	rec := &Record{
		Seq:     seq,
		Index:   index,
		State:   StateNew,
		Payload: payload,
	}
	return o.db.Set(keyFor(seq, index), encodeValue(rec), pebble.Sync)
}

func (o *Outbox) MarkSent(seq uint64, index uint32) error {
	return o.transition(seq, index, StateSent)
}

func (o *Outbox) MarkAcked(seq uint64, index uint32) error {
	return o.transition(seq, index, StateAcked)
}

func (o *Outbox) MarkFailed(seq uint64, index uint32) error {
	return o.transition(seq, index, StateFailed)
}

func (o *Outbox) transition(seq uint64, index uint32, state State) error {
	rec, err := o.Get(seq, index)
	if err != nil {
		return err
	}
	rec.State = state
	if state == StateFailed {
		rec.Retries++
	}
	rec.LastAttempt = time.Now().UnixNano()
	return o.db.Set(keyFor(seq, index), encodeValue(rec), pebble.Sync)
}

// Delete removes an ACKED record (cleanup).
func (o *Outbox) Delete(seq uint64, index uint32) error {
	return o.db.Delete(keyFor(seq, index), pebble.Sync)
}

func (o *Outbox) Get(seq uint64, index uint32) (*Record, error) {
	val, closer, err := o.db.Get(keyFor(seq, index))
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	rec, err := decodeValue(val)
	if err != nil {
		return nil, err
	}
	rec.Seq = seq
	rec.Index = index
	return rec, nil
}

// -------------------- Scan --------------------

// ScanPending iterates every record not yet acked, in seq order. Used
// by the broadcaster's delivery loop.
func (o *Outbox) ScanPending(fn func(*Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("event/"),
		UpperBound: []byte("event/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeValue(iter.Value())
		if err != nil {
			return err
		}
		if rec.State == StateAcked {
			continue
		}

		rec.Seq, rec.Index, err = parseKey(iter.Key())
		if err != nil {
			return err
		}

		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

func keyFor(seq uint64, index uint32) []byte {
	return []byte(fmt.Sprintf("event/%020d/%06d", seq, index))
}

func parseKey(b []byte) (uint64, uint32, error) {
	var seq uint64
	var index uint32
	_, err := fmt.Sscanf(string(b), "event/%d/%d", &seq, &index)
	return seq, index, err
}
