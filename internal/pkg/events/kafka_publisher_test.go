package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	produced   []*kafka.Message
	deliverErr error
	hold       bool
	closed     bool
}

func (f *fakeProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	f.produced = append(f.produced, msg)
	if f.hold {
		return nil
	}
	reply := *msg
	reply.TopicPartition.Error = f.deliverErr
	deliveryChan <- &reply
	return nil
}

func (f *fakeProducer) Flush(int) int { return 0 }
func (f *fakeProducer) Close()        { f.closed = true }

func TestKafkaPublisher_Publish(t *testing.T) {
	p := &fakeProducer{}
	pub := &KafkaPublisher{producer: p, topic: "successful_payments"}

	evt := PaymentSucceeded{EventID: "evt_1", Kind: "trial", ClientID: "client-1", Amount: 6000, Currency: "jpy", PaidAt: time.Now().UTC()}
	require.NoError(t, pub.PublishPaymentSucceeded(context.Background(), evt))

	require.Len(t, p.produced, 1)
	msg := p.produced[0]
	assert.Equal(t, "successful_payments", *msg.TopicPartition.Topic)
	assert.Equal(t, []byte("client-1"), msg.Key)

	var decoded PaymentSucceeded
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "evt_1", decoded.EventID)
	assert.Equal(t, int64(6000), decoded.Amount)
}

func TestKafkaPublisher_DeliveryError(t *testing.T) {
	p := &fakeProducer{deliverErr: errors.New("broker down")}
	pub := &KafkaPublisher{producer: p, topic: "successful_payments"}

	err := pub.PublishPaymentSucceeded(context.Background(), PaymentSucceeded{EventID: "evt_1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestKafkaPublisher_ContextCancelled(t *testing.T) {
	p := &fakeProducer{hold: true}
	pub := &KafkaPublisher{producer: p, topic: "successful_payments"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, pub.PublishPaymentSucceeded(ctx, PaymentSucceeded{EventID: "evt_1"}), context.Canceled)

	pub.Close()
	assert.True(t, p.closed)
}
