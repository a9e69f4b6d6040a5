package repository

import (
	"context"
	"fmt"

	"MarketPull/internal/domain/models"
	pkgkafka "MarketPull/pkg/kafka"
)

// KafkaPublisher pushes stored observations to a Kafka topic after a
// successful load. Messages are keyed by instrument so one instrument's
// observations stay ordered within a partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates a publisher writing to topic.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// PublishBatch sends one message per stored record.
func (p *KafkaPublisher) PublishBatch(ctx context.Context, records []models.StoredRecord) error {
	if len(records) == 0 {
		return nil
	}

	messages := make([]pkgkafka.Message, 0, len(records))
	for i := range records {
		rec := records[i]
		messages = append(messages, pkgkafka.Message{
			Key:   []byte(fmt.Sprintf("%s:%s", rec.AssetClass, rec.InstrumentID)),
			Value: &rec,
		})
	}
	return p.producer.PublishBatch(ctx, p.topic, messages)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
