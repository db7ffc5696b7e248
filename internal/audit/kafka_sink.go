package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"frizo/margin_engine/internal/logger"
)

const DefaultKafkaTopic = "margin.audit"

// KafkaSink publishes records as JSON messages keyed by event name.
// The writer runs in async mode so Emit returns without waiting for the broker.
type KafkaSink struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaSink(brokers []string, topic string, log *zap.Logger) *KafkaSink {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	if log == nil {
		log = logger.Default().Logger
	}

	s := &KafkaSink{log: log}
	s.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   s.completion,
	}
	return s
}

func (s *KafkaSink) Emit(event string, fields Fields) {
	msg, err := encodeMessage(event, fields)
	if err != nil {
		s.log.Warn("audit record not encodable", zap.String("event", event), zap.Error(err))
		return
	}

	if err := s.writer.WriteMessages(context.Background(), msg); err != nil {
		s.log.Warn("audit record not published", zap.String("event", event), zap.Error(err))
	}
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func (s *KafkaSink) completion(messages []kafka.Message, err error) {
	if err != nil {
		s.log.Warn("audit delivery failed", zap.Int("messages", len(messages)), zap.Error(err))
	}
}

func encodeMessage(event string, fields Fields) (kafka.Message, error) {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["event"] = event

	value, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Key: []byte(event), Value: value}, nil
}
