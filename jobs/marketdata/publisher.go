// Package marketdata publishes periodic per-symbol book summaries to
// Kafka, keyed by symbol.
package marketdata

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"fenrir/domain/book"
	"fenrir/engine"
	"fenrir/infra/kafka"
)

type Publisher struct {
	eng      *engine.Engine
	producer *kafka.Producer
	interval time.Duration
	log      *zap.Logger
}

type summaryMessage struct {
	Symbol    string `json:"symbol"`
	BestBid   string `json:"best_bid,omitempty"`
	BestAsk   string `json:"best_ask,omitempty"`
	Spread    string `json:"spread,omitempty"`
	BidOrders int    `json:"bid_orders"`
	AskOrders int    `json:"ask_orders"`
	BidQty    string `json:"bid_qty"`
	AskQty    string `json:"ask_qty"`
	LastSeq   uint64 `json:"last_seq"`
	Time      int64  `json:"ts"`
}

func New(eng *engine.Engine, producer *kafka.Producer, interval time.Duration, log *zap.Logger) *Publisher {
	return &Publisher{
		eng:      eng,
		producer: producer,
		interval: interval,
		log:      log.Named("marketdata"),
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info("started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			p.log.Info("stopped")
			return

		case <-ticker.C:
			p.publishOnce(ctx)
		}
	}
}

func (p *Publisher) publishOnce(ctx context.Context) {
	summaries, err := p.eng.Summaries(ctx)
	if err != nil {
		return // engine shutting down
	}
	for _, s := range summaries {
		msg := toMessage(s)
		value, err := json.Marshal(msg)
		if err != nil {
			p.log.Error("summary encode failed", zap.Error(err))
			continue
		}
		if err := p.producer.Send(ctx, []byte(s.Symbol), value); err != nil {
			p.log.Warn("summary publish failed",
				zap.String("symbol", s.Symbol),
				zap.Error(err),
			)
		}
	}
}

func toMessage(s book.Summary) summaryMessage {
	m := summaryMessage{
		Symbol:    s.Symbol,
		BidOrders: s.BidOrders,
		AskOrders: s.AskOrders,
		BidQty:    s.BidQty.String(),
		AskQty:    s.AskQty.String(),
		LastSeq:   s.LastSeq,
		Time:      time.Now().UnixNano(),
	}
	if s.HasBid {
		m.BestBid = s.BestBid.String()
	}
	if s.HasAsk {
		m.BestAsk = s.BestAsk.String()
	}
	if s.HasBid && s.HasAsk {
		m.Spread = s.Spread.String()
	}
	return m
}
