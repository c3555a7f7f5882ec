package engine

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"fenrir/domain/book"
	"fenrir/infra/wal/entry"
)

// Replay rebuilds every book from the lane journals. It must run
// before Start, single-threaded: events are re-derived and discarded,
// and the sequencer resumes past the highest replayed sequence. The
// exit outbox is not replayed.
func (e *Engine) Replay() error {
	if e.cfg.WALDir == "" {
		return nil
	}
	if e.started {
		return fmt.Errorf("engine: replay after start")
	}

	var ops []*book.Op
	var lastSeq uint64

	for i := range e.lanes {
		dir := e.laneDir(i)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		laneLast, err := entry.Replay(dir, func(rec *entry.Record) error {
			op, err := decodeOp(rec)
			if err != nil {
				return err
			}
			ops = append(ops, op)
			return nil
		})
		if err != nil {
			return fmt.Errorf("engine: replay lane %d: %w", i, err)
		}
		if laneLast > lastSeq {
			lastSeq = laneLast
		}
	}

	// Lanes journal independently; the global arrival order is the
	// sequence order.
	sort.Slice(ops, func(i, j int) bool { return ops[i].Seq < ops[j].Seq })

	for _, op := range ops {
		l := e.laneFor(op.Symbol)
		l.book(op.Symbol).Apply(op)
	}

	e.seq.Reset(lastSeq)
	e.log.Info("journal replay complete",
		zap.Int("ops", len(ops)),
		zap.Uint64("last_seq", lastSeq),
	)
	return nil
}
