package syncbus

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case p, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for payload")
	}
	return nil
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestInMemoryBusPublishSubscribe(t *testing.T) {
	bus := NewInMemoryBus()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bus.Subscribe(ctx, "txlock.events")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	b, err := bus.Subscribe(ctx, "txlock.events")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := bus.Publish(ctx, "txlock.events", []byte("hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := recv(t, a); string(got) != "hello" {
		t.Fatalf("a got %q", got)
	}
	if got := recv(t, b); string(got) != "hello" {
		t.Fatalf("b got %q", got)
	}
	m := bus.Metrics()
	if m.Published != 1 || m.Delivered != 2 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestInMemoryBusUnsubscribeOnCancel(t *testing.T) {
	bus := NewInMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, "s")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if n := bus.f.count("s"); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestInMemoryBusClose(t *testing.T) {
	bus := NewInMemoryBus()
	ch, err := bus.Subscribe(context.Background(), "s")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if err := bus.Publish(context.Background(), "s", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := bus.Subscribe(context.Background(), "s"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCloseReleasesSubscriberWatchers(t *testing.T) {
	before := runtime.NumGoroutine()
	bus := NewInMemoryBus()
	for i := 0; i < 20; i++ {
		if _, err := bus.Subscribe(context.Background(), "s"); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	waitFor(t, func() bool { return runtime.NumGoroutine() <= before }, "subscriber goroutines outlived Close")
}

func TestInMemoryBusDropsWhenSubscriberIsSlow(t *testing.T) {
	bus := NewInMemoryBus()
	defer bus.Close()
	ctx := context.Background()
	if _, err := bus.Subscribe(ctx, "s"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for i := 0; i < subscriberBuffer+10; i++ {
		if err := bus.Publish(ctx, "s", []byte{byte(i)}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if m := bus.Metrics(); m.Delivered != subscriberBuffer {
		t.Fatalf("expected %d deliveries, got %d", subscriberBuffer, m.Delivered)
	}
}
