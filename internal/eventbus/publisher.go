// Package eventbus publishes completed orchestrator calls onto an async
// message queue for downstream consumers (analytics, alerting), adapted
// from the teacher's internal/kafka/producer.go log producer — the same
// writer configuration, repurposed from log entries to call events.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
)

// CallEvent is the audit event published for every completed orchestrator
// call, mirroring the shape persisted by internal/history.
type CallEvent struct {
	Query     string    `json:"natural_language_query"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher publishes CallEvents. Publishing is best-effort: a failure
// here never fails the orchestrator call that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event CallEvent) error
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaPublisher builds a Publisher writing to the given brokers/topic,
// matching the teacher's LeastBytes/async writer configuration.
func NewKafkaPublisher(lc fx.Lifecycle, brokers []string, topic string) (Publisher, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("eventbus configuration missing brokers or topic")
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
		Async:    true,
	})
	p := &kafkaPublisher{writer: writer, topic: topic}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("closing eventbus publisher")
			return p.Close()
		},
	})
	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("eventbus publisher initialized")
	return p, nil
}

func (p *kafkaPublisher) Publish(ctx context.Context, event CallEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Interface("event", event).Msg("failed to marshal call event for eventbus")
		return err
	}
	msg := kafka.Message{Key: []byte(event.Query), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().Err(err).Msg("failed to publish call event")
		return err
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
