// Package eventpub delivers committed ledger events to the notification pipeline.
//
// Delivery is at most once: events are published after the ledger transaction committed and a
// failed write is logged, never rolled back into the ledger.
package eventpub

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const writeTimeout = 5 * time.Second

// MessageWriter writes messages to a topic; *kafka.Writer satisfies it.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events as JSON messages keyed by account id, so that the events of one
// account keep their order within a partition.
type Kafka struct {
	writer MessageWriter
}

// NewKafka returns a publisher writing to topic on brokers.
func NewKafka(brokers []string, topic string) *Kafka {
	return NewKafkaWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
	})
}

// NewKafkaWithWriter returns a publisher over w.
func NewKafkaWithWriter(w MessageWriter) *Kafka {
	return &Kafka{writer: w}
}

// Messages encodes events into kafka messages.
func Messages(events ...domain.Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))

	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}

		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatInt(e.AccountID, 10)),
			Value: value,
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event-kind", Value: []byte(e.Kind)},
			},
		})
	}

	return msgs, nil
}

// Publish writes the events. It outlives the request context for up to writeTimeout.
func (k *Kafka) Publish(ctx context.Context, events ...domain.Event) {
	l := zerolog.Ctx(ctx)

	msgs, err := Messages(events...)
	if err != nil {
		l.Error().Err(err).Msg("encode ledger events")
		return
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := k.writer.WriteMessages(wctx, msgs...); err != nil {
		for _, e := range events {
			l.Error().
				Err(err).
				Str("kind", string(e.Kind)).
				Int64("account_id", e.AccountID).
				Str("reference", e.Reference).
				Msg("ledger event not delivered")
		}

		return
	}

	l.Debug().Int("count", len(msgs)).Msg("ledger events published")
}

// Close flushes pending messages and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Log writes events to the request logger; it stands in when no broker is configured.
type Log struct{}

// Publish logs the events.
func (Log) Publish(ctx context.Context, events ...domain.Event) {
	l := zerolog.Ctx(ctx)

	for _, e := range events {
		l.Info().
			Str("kind", string(e.Kind)).
			Int64("account_id", e.AccountID).
			Str("amount", e.Amount.String()).
			Str("currency", e.Currency).
			Str("reference", e.Reference).
			Msg("ledger event")
	}
}
