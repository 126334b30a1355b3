package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns an asynchronous writer that keys messages onto
// partitions by hash, so every event of one order lands in order.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Printf("ERROR: kafka write %d events: %v", len(messages), err)
			}
		},
	}
}

// KafkaSink publishes events to the order event stream.
type KafkaSink struct {
	Writer MessageWriter
}

func NewKafkaSink(w MessageWriter) *KafkaSink {
	return &KafkaSink{Writer: w}
}

func (s *KafkaSink) Publish(ctx context.Context, key string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("ERROR: marshal %s event for kafka: %v", ev.Type, err)
		return
	}
	err = s.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
		Time: ev.Timestamp,
	})
	if err != nil {
		log.Printf("ERROR: publish %s event: %v", ev.Type, err)
	}
}

func (s *KafkaSink) Close() error {
	return s.Writer.Close()
}
