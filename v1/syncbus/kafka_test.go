package syncbus

import (
	"context"
	"errors"
	"testing"

	sarama "github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestKafkaBusPublish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	consumer := mocks.NewConsumer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	bus := NewKafkaBusFromClients(producer, consumer)
	defer bus.Close()
	ctx := context.Background()

	if err := bus.Publish(ctx, "txlock.events", []byte("ok")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Publish(ctx, "txlock.events", []byte("fail")); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
	if m := bus.Metrics(); m.Published != 1 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestKafkaBusSubscribe(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	consumer := mocks.NewConsumer(t, nil)
	pc := consumer.ExpectConsumePartition("txlock.events", 0, sarama.OffsetNewest)

	bus := NewKafkaBusFromClients(producer, consumer)
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "txlock.events")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	pc.YieldMessage(&sarama.ConsumerMessage{Value: []byte("denied")})
	if got := recv(t, ch); string(got) != "denied" {
		t.Fatalf("got %q", got)
	}
}
