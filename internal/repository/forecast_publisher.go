package repository

import (
	"context"

	"github.com/itsgiddd/Horus/internal/domain/models"
	"github.com/itsgiddd/Horus/internal/domain/repository"
	pkgkafka "github.com/itsgiddd/Horus/pkg/kafka"
)

// KafkaForecastPublisher emits forecasts to a Kafka topic keyed by symbol.
type KafkaForecastPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaForecastPublisher creates a Kafka-backed publisher.
func NewKafkaForecastPublisher(producer *pkgkafka.Producer, topic string) repository.ForecastPublisher {
	return &KafkaForecastPublisher{producer: producer, topic: topic}
}

func (p *KafkaForecastPublisher) Publish(ctx context.Context, f *models.Forecast) error {
	return p.producer.Publish(ctx, p.topic, []byte(f.Symbol), f)
}

func (p *KafkaForecastPublisher) Close() error {
	return p.producer.Close()
}

// NopForecastPublisher is used when Kafka is disabled.
type NopForecastPublisher struct{}

func (NopForecastPublisher) Publish(context.Context, *models.Forecast) error { return nil }
func (NopForecastPublisher) Close() error                                    { return nil }
