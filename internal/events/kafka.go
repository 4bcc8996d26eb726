// Package events exports chat events to Kafka for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"lessonchat/backend/internal/models"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Writer is the part of *kafka.Writer the exporter uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Exporter writes every published event to a topic, keyed by channel so events of one
// room keep their order within a partition.
type Exporter struct {
	writer Writer
}

func NewKafkaExporter(brokers []string, topic string) *Exporter {
	return NewExporter(newWriter(brokers, topic))
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		// WriteMessages only buffers; delivery errors surface here.
		Async: true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				zap.S().Errorf("ERROR: Failed to export %d events to Kafka topic %s: %v", len(msgs), topic, err)
			}
		},
	}
}

func NewExporter(w Writer) *Exporter {
	return &Exporter{writer: w}
}

func (e *Exporter) Name() string { return "kafka" }

func (e *Exporter) HandleEvent(ctx context.Context, channel string, ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return e.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(channel),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
		Time: time.Now(),
	})
}

func (e *Exporter) Close() error {
	return e.writer.Close()
}
