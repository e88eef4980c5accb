package pubsub

import (
	"sync"
	"testing"
	"time"
)

func TestBroker_PublishNoSubscribers(t *testing.T) {
	b := NewBroker()

	// Must not block or panic when nobody is listening.
	done := make(chan struct{})
	go func() {
		b.Publish("lecture:missing", Message{Event: "status_update"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish to empty topic blocked")
	}
}

func TestBroker_FanOut(t *testing.T) {
	b := NewBroker()
	subA := NewSubscriber(4)
	subB := NewSubscriber(4)

	b.Subscribe("lecture:1", subA)
	b.Subscribe("lecture:1", subB)

	b.Publish("lecture:1", Message{Event: "status_update", Data: map[string]interface{}{"status": "In progress"}})

	for name, sub := range map[string]*Subscriber{"A": subA, "B": subB} {
		select {
		case msg := <-sub.Channel():
			if msg.Event != "status_update" {
				t.Errorf("subscriber %s: got event %q, want status_update", name, msg.Event)
			}
			if msg.Data["status"] != "In progress" {
				t.Errorf("subscriber %s: got status %v", name, msg.Data["status"])
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s received nothing", name)
		}
	}
}

func TestBroker_SubscribeIdempotent(t *testing.T) {
	b := NewBroker()
	sub := NewSubscriber(4)

	b.Subscribe("lecture:1", sub)
	b.Subscribe("lecture:1", sub)

	if got := b.SubscriberCount("lecture:1"); got != 1 {
		t.Fatalf("got %d subscribers, want 1", got)
	}

	b.Publish("lecture:1", Message{Event: "e"})
	<-sub.Channel()

	select {
	case msg := <-sub.Channel():
		t.Fatalf("duplicate delivery: %v", msg)
	default:
	}
}

func TestBroker_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	sub := NewSubscriber(4)

	b.Subscribe("lecture:1", sub)
	b.Unsubscribe("lecture:1", sub)
	// Absent handle is a no-op.
	b.Unsubscribe("lecture:1", sub)

	b.Publish("lecture:1", Message{Event: "e"})

	select {
	case msg := <-sub.Channel():
		t.Fatalf("delivery after unsubscribe: %v", msg)
	default:
	}
}

func TestBroker_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := NewBroker()
	slow := NewSubscriber(1)
	fast := NewSubscriber(16)

	b.Subscribe("lecture:1", slow)
	b.Subscribe("lecture:1", fast)

	// Nobody drains slow; its one-slot buffer fills on the first publish and
	// subsequent publishes must still reach fast without blocking.
	for i := 0; i < 5; i++ {
		b.Publish("lecture:1", Message{Event: "e"})
	}

	received := 0
	for {
		select {
		case <-fast.Channel():
			received++
		default:
			if received != 5 {
				t.Fatalf("fast subscriber got %d messages, want 5", received)
			}
			return
		}
	}
}

func TestBroker_ConcurrentAccess(t *testing.T) {
	b := NewBroker()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := NewSubscriber(8)
			for j := 0; j < 100; j++ {
				b.Subscribe("lecture:1", sub)
				b.Publish("lecture:1", Message{Event: "e"})
				b.Unsubscribe("lecture:1", sub)
			}
		}()
	}
	wg.Wait()

	if got := b.SubscriberCount("lecture:1"); got != 0 {
		t.Fatalf("got %d leftover subscribers, want 0", got)
	}
}

func TestBroker_OrderingPerPublisher(t *testing.T) {
	b := NewBroker()
	sub := NewSubscriber(16)
	b.Subscribe("lecture:1", sub)

	for i := 0; i < 10; i++ {
		b.Publish("lecture:1", Message{Event: "e", Data: map[string]interface{}{"seq": i}})
	}

	for i := 0; i < 10; i++ {
		msg := <-sub.Channel()
		if msg.Data["seq"] != i {
			t.Fatalf("out of order: got %v at position %d", msg.Data["seq"], i)
		}
	}
}
