package pubsub

import (
	"sync"
)

// Message is the envelope exchanged over topics and forwarded verbatim to
// websocket clients.
type Message struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// DefaultBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind starts losing messages rather than stalling
// publishers.
const DefaultBuffer = 32

// Subscriber is one live registration on a topic. It owns a buffered channel
// that the subscribing connection drains.
type Subscriber struct {
	ch chan Message
}

// NewSubscriber creates a subscriber with the given channel capacity.
// A capacity <= 0 falls back to DefaultBuffer.
func NewSubscriber(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Subscriber{ch: make(chan Message, buffer)}
}

// Channel returns the receive side of the subscriber's delivery channel.
func (s *Subscriber) Channel() <-chan Message {
	return s.ch
}

// Broker is a process-wide publish/subscribe registry keyed by topic name.
// It is a plain service object: construct one and pass it to every component
// that needs it. All methods are safe for concurrent use.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscriber]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscribe registers sub under topic. Subscribing the same handle twice is
// a no-op.
func (b *Broker) Subscribe(topic string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*Subscriber]struct{})
	}
	b.topics[topic][sub] = struct{}{}
}

// Unsubscribe removes sub from topic. Removing an absent handle is a no-op.
// The subscriber's channel is left open; the owner simply stops receiving.
func (b *Broker) Unsubscribe(topic string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

// Publish delivers msg to every subscriber currently registered under topic.
// Delivery is best-effort: a subscriber whose buffer is full is skipped so a
// slow or dead client never blocks the publisher or delivery to others.
// Publishing to a topic with no subscribers is a no-op.
func (b *Broker) Publish(topic string, msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.topics[topic] {
		select {
		case sub.ch <- msg:
		default:
			// Subscriber is not keeping up; drop for this one only.
		}
	}
}

// SubscriberCount returns the number of handles registered under topic.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
