// Package engine owns the symbol -> order book mapping and the lane
// runtime that keeps each symbol's operations strictly serialized
// while different symbols run in parallel.
package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"fenrir/domain/book"
	"fenrir/infra/memory"
	"fenrir/infra/sequence"
	"fenrir/infra/wal/exit"
)

type Config struct {
	// Lanes is the number of symbol partitions; each lane is served by
	// exactly one goroutine. Defaults to GOMAXPROCS.
	Lanes int

	// QueueSize bounds each lane's inbound queue.
	QueueSize int

	// OutBuffer bounds the shared outbound event channel; a slow event
	// consumer backpressures the lanes through it.
	OutBuffer int

	// WALDir enables the per-lane operation journal when non-empty.
	WALDir         string
	WALSegmentSize int64
	WALSegmentAge  time.Duration
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Lanes <= 0 {
		cfg.Lanes = runtime.GOMAXPROCS(0)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.OutBuffer <= 0 {
		cfg.OutBuffer = 4096
	}
	if cfg.WALSegmentSize <= 0 {
		cfg.WALSegmentSize = 2 << 20
	}
	return cfg
}

// ErrClosed is returned by Submit and the query methods once Close
// has begun.
var ErrClosed = errors.New("engine: closed")

// Engine routes operations to lanes by symbol hash. A symbol always
// lands on the same lane, so all its operations apply in arrival
// order with no lock on the book itself.
type Engine struct {
	cfg Config
	log *zap.Logger

	seq    *sequence.Sequencer
	pool   *memory.Pool[book.Order]
	outbox *exit.Outbox

	lanes []*lane
	out   chan book.Event
	wg    sync.WaitGroup

	// mu guards closed and orders lane channel closes after every
	// in-flight send; senders hold it shared for the duration of the
	// send.
	mu     sync.RWMutex
	closed bool

	failOnce sync.Once
	fatalErr error // written once, before failc is closed
	failc    chan struct{}

	started bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithOutbox stages every emitted event durably before it is handed
// to the outbound channel.
func WithOutbox(o *exit.Outbox) Option {
	return func(e *Engine) { e.outbox = o }
}

func New(cfg Config, log *zap.Logger, opts ...Option) (*Engine, error) {
	c := cfg.withDefaults()
	e := &Engine{
		cfg:   c,
		log:   log,
		seq:   sequence.New(0),
		pool:  memory.NewPool(func() *book.Order { return new(book.Order) }),
		out:   make(chan book.Event, c.OutBuffer),
		failc: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.lanes = make([]*lane, c.Lanes)
	for i := range e.lanes {
		l, err := newLane(e, i)
		if err != nil {
			return nil, fmt.Errorf("engine: lane %d: %w", i, err)
		}
		e.lanes[i] = l
	}
	return e, nil
}

func (e *Engine) laneDir(i int) string {
	return filepath.Join(e.cfg.WALDir, fmt.Sprintf("lane-%02d", i))
}

func (e *Engine) laneFor(symbol string) *lane {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return e.lanes[int(h.Sum32())%len(e.lanes)]
}

// Start launches the lane workers. Replay, if any, must have finished.
func (e *Engine) Start() {
	if e.started {
		return
	}
	e.started = true
	for _, l := range e.lanes {
		e.wg.Add(1)
		go l.run()
	}
	e.log.Info("engine started",
		zap.Int("lanes", len(e.lanes)),
		zap.Int("queue_size", e.cfg.QueueSize),
		zap.Bool("journal", e.cfg.WALDir != ""),
		zap.Bool("outbox", e.outbox != nil),
	)
}

// Submit stamps the operation with its arrival sequence number and
// hands it to the owning lane. Blocks when the lane queue is full;
// that is the inbound backpressure point. Returns ErrClosed after
// Close, or the boundary failure once a lane has gone dead.
func (e *Engine) Submit(op *book.Op) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	select {
	case <-e.failc:
		return e.fatalErr
	default:
	}
	op.Seq = e.seq.Next()
	e.laneFor(op.Symbol).in <- laneMsg{op: op}
	return nil
}

// Events is the outbound stream. It is closed after Close has drained
// every lane.
func (e *Engine) Events() <-chan book.Event {
	return e.out
}

// Close stops intake, waits for every lane to drain its queue and
// flush its events, then closes the outbound channel. Safe to call
// once; later Submit and query calls return ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return e.Err()
	}
	e.closed = true
	for _, l := range e.lanes {
		close(l.in)
	}
	e.mu.Unlock()

	e.wg.Wait()
	for _, l := range e.lanes {
		if l.wal != nil {
			if err := l.wal.Close(); err != nil {
				e.fail(err)
			}
		}
	}
	close(e.out)
	e.log.Info("engine stopped", zap.Uint64("last_seq", e.seq.Current()))
	return e.Err()
}

// Err returns the first boundary-level failure (journal or outbox
// I/O), nil when the run was clean.
func (e *Engine) Err() error {
	select {
	case <-e.failc:
		return e.fatalErr
	default:
		return nil
	}
}

func (e *Engine) fail(err error) {
	e.failOnce.Do(func() {
		e.fatalErr = err
		e.log.Error("engine boundary failure", zap.Error(err))
		close(e.failc)
	})
}

// post hands a query to a lane, failing instead of panicking when the
// engine has been closed underneath a concurrent reader.
func (e *Engine) post(ctx context.Context, l *lane, msg laneMsg) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	select {
	case l.in <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---- queries ----
//
// Reads serialize through the owning lane as ordinary messages, so a
// query observes a fully settled book, never a half-applied operation.

// Summary reports one symbol's book state.
func (e *Engine) Summary(ctx context.Context, symbol string) (book.Summary, error) {
	q := &query{symbol: symbol, reply: make(chan queryResult, 1)}
	if err := e.post(ctx, e.laneFor(symbol), laneMsg{query: q}); err != nil {
		return book.Summary{}, err
	}

	select {
	case res := <-q.reply:
		if len(res.summaries) == 0 {
			return book.Summary{}, fmt.Errorf("engine: unknown symbol %q", symbol)
		}
		return res.summaries[0], nil
	case <-ctx.Done():
		return book.Summary{}, ctx.Err()
	}
}

// Summaries reports every known symbol's book state, sorted by symbol.
func (e *Engine) Summaries(ctx context.Context) ([]book.Summary, error) {
	out := make([]book.Summary, 0, 8)
	for _, l := range e.lanes {
		q := &query{reply: make(chan queryResult, 1)}
		if err := e.post(ctx, l, laneMsg{query: q}); err != nil {
			return nil, err
		}

		select {
		case res := <-q.reply:
			out = append(out, res.summaries...)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// DepthSnapshot returns up to max aggregated levels per side, best
// first.
func (e *Engine) DepthSnapshot(ctx context.Context, symbol string, max int) (bids, asks []book.LevelInfo, err error) {
	q := &query{symbol: symbol, depth: max, wantDepth: true, reply: make(chan queryResult, 1)}
	if err := e.post(ctx, e.laneFor(symbol), laneMsg{query: q}); err != nil {
		return nil, nil, err
	}

	select {
	case res := <-q.reply:
		if !res.found {
			return nil, nil, fmt.Errorf("engine: unknown symbol %q", symbol)
		}
		return res.bids, res.asks, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}
