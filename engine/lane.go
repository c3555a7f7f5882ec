package engine

import (
	"time"

	"go.uber.org/zap"

	"fenrir/domain/book"
	"fenrir/infra/wal/entry"
	"fenrir/metrics"
	"fenrir/stream"
)

// laneMsg carries either one operation or one read query.
type laneMsg struct {
	op    *book.Op
	query *query
}

type query struct {
	symbol    string // empty means every book on the lane
	wantDepth bool
	depth     int
	reply     chan queryResult
}

type queryResult struct {
	summaries  []book.Summary
	bids, asks []book.LevelInfo
	found      bool
}

// lane is the single logical owner of every symbol that hashes to it.
// Its goroutine is the only writer of its books, so book mutation
// needs no lock.
type lane struct {
	id    int
	eng   *Engine
	log   *zap.Logger
	in    chan laneMsg
	books map[string]*book.OrderBook
	wal   *entry.WAL

	// dead is set on a boundary I/O failure. A dead lane keeps
	// draining its queue so producers don't wedge, but applies no
	// further operations: the books stay consistent with the journal.
	dead bool
}

func newLane(e *Engine, id int) (*lane, error) {
	l := &lane{
		id:    id,
		eng:   e,
		log:   e.log.With(zap.Int("lane", id)),
		in:    make(chan laneMsg, e.cfg.QueueSize),
		books: make(map[string]*book.OrderBook),
	}
	if e.cfg.WALDir != "" {
		w, err := entry.Open(entry.Config{
			Dir:             e.laneDir(id),
			SegmentSize:     e.cfg.WALSegmentSize,
			SegmentDuration: e.cfg.WALSegmentAge,
		})
		if err != nil {
			return nil, err
		}
		l.wal = w
	}
	return l, nil
}

func (l *lane) book(symbol string) *book.OrderBook {
	bk, ok := l.books[symbol]
	if !ok {
		bk = book.NewOrderBook(symbol, book.WithPool(l.eng.pool.Get, l.eng.pool.Put))
		l.books[symbol] = bk
	}
	return bk
}

func (l *lane) run() {
	defer l.eng.wg.Done()
	for msg := range l.in {
		if msg.query != nil {
			l.serve(msg.query)
			continue
		}
		if l.dead {
			continue
		}
		l.process(msg.op)
	}
}

// process applies one operation: journal first, then the matching
// algorithm, then emission. The mutation and its events are one unit;
// the next operation for this lane is not considered before both are
// done.
func (l *lane) process(op *book.Op) {
	if l.wal != nil {
		rec := entry.NewRecord(recordType(op.Type), op.Seq, encodeOp(op))
		if err := l.wal.Append(rec); err != nil {
			// Journal loss is a boundary failure: the operation is
			// not applied, the lane goes dead and only drains from
			// here on. Matching unjournaled would let the books
			// diverge from what a later replay reconstructs.
			l.log.Error("journal append failed", zap.Error(err))
			l.eng.fail(err)
			l.wal = nil
			l.dead = true
			return
		}
	}

	start := time.Now()
	evs := l.book(op.Symbol).Apply(op)
	metrics.MatchLatency.Observe(time.Since(start).Seconds())
	metrics.OpsProcessed.WithLabelValues(op.Type.String()).Inc()

	for i := range evs {
		if l.eng.outbox != nil {
			payload, err := stream.MarshalEvent(evs[i])
			if err == nil {
				err = l.eng.outbox.Append(op.Seq, uint32(i), payload)
			}
			if err != nil {
				// The op is already applied, so its events still go
				// out; the lane goes dead for everything after it.
				l.log.Error("outbox append failed", zap.Error(err))
				metrics.OutboxAppendFailures.Inc()
				l.eng.fail(err)
				l.dead = true
			}
		}
		metrics.EventsEmitted.WithLabelValues(evs[i].Kind.String()).Inc()

		// The only outbound suspension point: a slow consumer
		// backpressures the whole lane here.
		l.eng.out <- evs[i]
	}
}

func (l *lane) serve(q *query) {
	var res queryResult
	if q.symbol != "" {
		bk, ok := l.books[q.symbol]
		if ok {
			res.found = true
			if q.wantDepth {
				res.bids = bk.Levels(book.Buy, q.depth)
				res.asks = bk.Levels(book.Sell, q.depth)
			} else {
				res.summaries = append(res.summaries, bk.Summarize())
			}
		}
	} else {
		for _, bk := range l.books {
			res.summaries = append(res.summaries, bk.Summarize())
		}
		res.found = true
	}
	q.reply <- res
}

func recordType(t book.OpType) entry.RecordType {
	switch t {
	case book.OpCancel:
		return entry.RecordCancel
	case book.OpAmend:
		return entry.RecordAmend
	default:
		return entry.RecordCreate
	}
}
