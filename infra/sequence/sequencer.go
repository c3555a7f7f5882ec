package sequence

import "sync/atomic"

// Sequencer generates strictly monotonic arrival sequence numbers.
// It is deterministic and replay-safe.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer resuming after start: fresh boot passes 0,
// journal replay passes the last replayed sequence.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset sets the sequencer to a specific value. Only used after
// journal replay.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
