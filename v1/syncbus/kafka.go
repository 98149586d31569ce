package syncbus

import (
	"context"
	"sync"

	sarama "github.com/IBM/sarama"
)

// KafkaBus implements Bus using a Kafka backend. Every subject maps to a
// single-partition topic consumed from the newest offset.
type KafkaBus struct {
	producer sarama.SyncProducer
	consumer sarama.Consumer
	closer   func() error
	f        *fanout

	mu   sync.Mutex
	subs map[string]sarama.PartitionConsumer
}

// NewKafkaBus creates a new KafkaBus connecting to the given brokers.
func NewKafkaBus(brokers []string, cfg *sarama.Config) (*KafkaBus, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.Return.Successes = true
	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = producer.Close()
		_ = client.Close()
		return nil, err
	}
	b := NewKafkaBusFromClients(producer, consumer)
	b.closer = client.Close
	return b, nil
}

// NewKafkaBusFromClients builds a KafkaBus on an existing producer and
// consumer. Close closes both.
func NewKafkaBusFromClients(producer sarama.SyncProducer, consumer sarama.Consumer) *KafkaBus {
	b := &KafkaBus{
		producer: producer,
		consumer: consumer,
		subs:     make(map[string]sarama.PartitionConsumer),
	}
	b.f = newFanout(b.release)
	return b
}

// Publish implements Bus.Publish.
func (b *KafkaBus) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.f.isClosed() {
		return ErrClosed
	}
	msg := &sarama.ProducerMessage{Topic: subject, Value: sarama.ByteEncoder(payload)}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		return err
	}
	b.f.published.Add(1)
	return nil
}

// Subscribe implements Bus.Subscribe.
func (b *KafkaBus) Subscribe(ctx context.Context, subject string) (<-chan []byte, error) {
	b.mu.Lock()
	if _, ok := b.subs[subject]; !ok {
		pc, err := b.consumer.ConsumePartition(subject, 0, sarama.OffsetNewest)
		if err != nil {
			b.mu.Unlock()
			return nil, err
		}
		b.subs[subject] = pc
		go func() {
			for msg := range pc.Messages() {
				b.f.deliver(subject, msg.Value)
			}
		}()
	}
	ch, err := b.f.add(ctx, subject)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (b *KafkaBus) release(subject string) {
	b.mu.Lock()
	if b.f.count(subject) > 0 {
		b.mu.Unlock()
		return
	}
	pc, ok := b.subs[subject]
	delete(b.subs, subject)
	b.mu.Unlock()
	if ok {
		_ = pc.Close()
	}
}

// Close implements Bus.Close.
func (b *KafkaBus) Close() error {
	b.f.close()
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]sarama.PartitionConsumer)
	b.mu.Unlock()
	for _, pc := range subs {
		_ = pc.Close()
	}
	_ = b.producer.Close()
	err := b.consumer.Close()
	if b.closer != nil {
		if cerr := b.closer(); err == nil {
			err = cerr
		}
	}
	return err
}

// Metrics returns the published and delivered counts.
func (b *KafkaBus) Metrics() Metrics {
	return b.f.metrics()
}
