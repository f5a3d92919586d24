package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
)

type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// KafkaPublisher writes payment events to a Kafka topic.
type KafkaPublisher struct {
	producer producer
	topic    string
}

func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	servers := strings.Trim(cfg.BootstrapServers, "\"")
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  servers,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	log.Infof("[Events] Publishing payments to topic %s on %s", cfg.PaymentsTopic, servers)
	return &KafkaPublisher{producer: p, topic: cfg.PaymentsTopic}, nil
}

// PublishPaymentSucceeded produces evt keyed by client id and waits for the
// delivery report.
func (k *KafkaPublisher) PublishPaymentSucceeded(ctx context.Context, evt PaymentSucceeded) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	delivery := make(chan kafka.Event, 1)
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Key:            []byte(evt.ClientID),
		Value:          value,
		Headers:        []kafka.Header{{Key: "kind", Value: []byte(evt.Kind)}},
	}, delivery)
	if err != nil {
		return fmt.Errorf("produce to %s: %w", k.topic, err)
	}

	select {
	case e := <-delivery:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("deliver to %s: %w", k.topic, m.TopicPartition.Error)
		}
		log.Debugf("[Events] Published payment %s to %s", evt.EventID, m.TopicPartition)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *KafkaPublisher) Close() {
	if remaining := k.producer.Flush(5000); remaining > 0 {
		log.Warnf("[Events] %d message(s) not delivered before shutdown", remaining)
	}
	k.producer.Close()
}
