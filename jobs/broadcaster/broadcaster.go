// Package broadcaster drains the durable event outbox to Kafka.
// Delivery is at-least-once: a record is acked in pebble only after
// the producer confirms the write.
package broadcaster

import (
	"context"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"fenrir/infra/wal/exit"
)

type Broadcaster struct {
	outbox   *exit.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      *zap.Logger
}

func New(
	outbox *exit.Outbox,
	brokers []string,
	topic string,
	interval time.Duration,
	log *zap.Logger,
) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		outbox:   outbox,
		producer: producer,
		topic:    topic,
		interval: interval,
		log:      log.Named("broadcaster"),
	}, nil
}

// Run flushes pending records until the context is cancelled, then
// performs one final flush so a clean shutdown leaves nothing in NEW.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.log.Info("started", zap.String("topic", b.topic))
	for {
		select {
		case <-ctx.Done():
			b.flushOnce()
			b.log.Info("stopped")
			return

		case <-ticker.C:
			b.flushOnce()
		}
	}
}

func (b *Broadcaster) flushOnce() {
	err := b.outbox.ScanPending(func(rec *exit.Record) error {
		if err := b.outbox.MarkSent(rec.Seq, rec.Index); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(keyOf(rec)),
			Value: sarama.ByteEncoder(rec.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			// Stays SENT; retried on the next pass.
			b.log.Warn("publish failed",
				zap.Uint64("seq", rec.Seq),
				zap.Uint32("index", rec.Index),
				zap.Error(err),
			)
			return nil
		}

		return b.outbox.MarkAcked(rec.Seq, rec.Index)
	})
	if err != nil {
		b.log.Error("outbox scan failed", zap.Error(err))
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}

// keyOf keys messages by sequence so retries for the same operation
// land in one partition in order.
func keyOf(rec *exit.Record) string {
	return strconv.FormatUint(rec.Seq, 10)
}
