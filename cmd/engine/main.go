package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fenrir/api"
	"fenrir/config"
	"fenrir/domain/book"
	"fenrir/engine"
	"fenrir/infra/kafka"
	"fenrir/infra/wal/exit"
	"fenrir/jobs/broadcaster"
	"fenrir/jobs/marketdata"
	"fenrir/stream"
	"fenrir/util"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		inputPath  = flag.String("input", "", "operations file (default stdin)")
		outputPath = flag.String("output", "", "events file (default stdout)")
		symbol     = flag.String("symbol", "", "default symbol for operations that omit one")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if err := run(*configPath, *inputPath, *outputPath, *symbol, *debug); err != nil {
		fmt.Fprintln(os.Stderr, "fenrir:", err)
		os.Exit(1)
	}
}

func run(configPath, inputPath, outputPath, defaultSymbol string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := util.NewLogger(debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- Outbox ----------------

	var outbox *exit.Outbox
	var opts []engine.Option
	if cfg.Outbox.Dir != "" {
		outbox, err = exit.Open(cfg.Outbox.Dir)
		if err != nil {
			return fmt.Errorf("outbox: %w", err)
		}
		defer outbox.Close()
		opts = append(opts, engine.WithOutbox(outbox))
	}

	// ---------------- Engine ----------------

	eng, err := engine.New(engine.Config{
		Lanes:          cfg.Engine.Lanes,
		QueueSize:      cfg.Engine.QueueSize,
		OutBuffer:      cfg.Engine.OutBuffer,
		WALDir:         cfg.WAL.Dir,
		WALSegmentSize: cfg.WAL.SegmentSize,
		WALSegmentAge:  cfg.WAL.SegmentAge,
	}, log, opts...)
	if err != nil {
		return err
	}

	if err := eng.Replay(); err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	eng.Start()

	// ---------------- API ----------------

	var hub *api.Hub
	var srv *api.Server
	if cfg.API.Addr != "" {
		hub = api.NewHub(log)
		srv = api.NewServer(eng, hub, log)
		go func() {
			if err := srv.Start(cfg.API.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("api server stopped", zap.Error(err))
			}
		}()
	}

	// ---------------- Jobs ----------------

	if cfg.KafkaEnabled() {
		if outbox != nil {
			bc, err := broadcaster.New(outbox, cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, cfg.Kafka.FlushInterval, log)
			if err != nil {
				return fmt.Errorf("broadcaster: %w", err)
			}
			defer bc.Close()
			go bc.Run(ctx)
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.SummaryTopic)
		defer producer.Close()
		go marketdata.New(eng, producer, cfg.Kafka.SummaryInterval, log).Run(ctx)
	}

	// ---------------- Streams ----------------

	in := io.Reader(os.Stdin)
	if inputPath != "" && inputPath != "-" {
		f, err := os.Open(inputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	out := io.Writer(os.Stdout)
	if outputPath != "" && outputPath != "-" {
		f, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	writer := stream.NewWriter(out)

	// The feeder submits every operation, snapshots the books behind
	// the last operation of each lane, then closes the engine so the
	// event channel drains and the main loop below can exit.
	start := time.Now()
	type runStats struct {
		ops       uint64
		summaries []book.Summary
		err       error
	}
	statsCh := make(chan runStats, 1)

	go func() {
		dec := stream.NewDecoder(in, defaultSymbol)
		var ops uint64
		var feedErr error
		for ctx.Err() == nil {
			op, err := dec.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, stream.ErrBadStream) {
				// No further lines can be read; a partial run must
				// not look like a clean one.
				log.Error("input stream failed", zap.Error(err))
				feedErr = err
				break
			}
			if err != nil {
				log.Warn("skipping malformed line", zap.Error(err))
				continue
			}
			if err := eng.Submit(op); err != nil {
				log.Error("engine stopped accepting operations", zap.Error(err))
				feedErr = err
				break
			}
			ops++
		}
		summaries, _ := eng.Summaries(context.Background())
		statsCh <- runStats{ops: ops, summaries: summaries, err: feedErr}
		eng.Close()
	}()

	var ioErr error
	for ev := range eng.Events() {
		if err := writer.Write(ev); err != nil && ioErr == nil {
			ioErr = err
		}
		if hub != nil {
			if payload, err := stream.MarshalEvent(ev); err == nil {
				hub.Broadcast(payload)
			}
		}
	}
	if err := writer.Flush(); err != nil && ioErr == nil {
		ioErr = err
	}

	stats := <-statsCh
	printSummary(os.Stderr, stats.ops, time.Since(start), stats.summaries)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("api shutdown", zap.Error(err))
		}
	}

	if stats.err != nil {
		return stats.err
	}
	if ioErr != nil {
		return ioErr
	}
	return eng.Err()
}

func printSummary(w io.Writer, ops uint64, elapsed time.Duration, summaries []book.Summary) {
	secs := elapsed.Seconds()
	rate := 0.0
	if secs > 0 {
		rate = float64(ops) / secs
	}
	fmt.Fprintf(w, "processed %d operations in %s (%.0f ops/s)\n", ops, elapsed.Round(time.Millisecond), rate)

	for _, s := range summaries {
		bid, ask, spread := "-", "-", "-"
		if s.HasBid {
			bid = s.BestBid.String()
		}
		if s.HasAsk {
			ask = s.BestAsk.String()
		}
		if s.HasBid && s.HasAsk {
			spread = s.Spread.String()
		}
		fmt.Fprintf(w, "%s: bid %s x %d, ask %s x %d, spread %s\n",
			s.Symbol, bid, s.BidOrders, ask, s.AskOrders, spread)
	}
}
