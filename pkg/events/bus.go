// Package events provides the in-process publish/subscribe bus that fans
// persisted events out to realtime subscribers, plus the typed payloads
// and publisher the rest of the service emits through.
//
// Topics:
//   - session:<id> — every event whose sessionId matches
//   - global       — session summaries on each append, plus administrative
//     notifications (session:deleted, sessions:cleared, insight:*, cron:run)
//
// Delivery is best-effort within the process. Subscribers receive messages
// in publish order per topic; a subscriber whose queue is full misses the
// message and catches up by polling the query API.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the per-subscriber delivery queue depth.
const DefaultQueueSize = 256

// Message is one bus delivery. Seq carries the store sequence number for
// event frames so the gateway can dedupe across the snapshot boundary;
// it is zero for frames that never touch the events table.
type Message struct {
	Type    string
	Seq     int64
	Payload json.RawMessage
}

// Subscription is one subscriber's handle on a topic. Receive from C;
// call Close (or Bus.Unsubscribe) when done.
type Subscription struct {
	C     chan Message
	topic string
	bus   *Bus

	closeOnce sync.Once
}

// Topic returns the topic this subscription is attached to.
func (s *Subscription) Topic() string {
	return s.topic
}

// Close detaches the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Close() {
	s.bus.Unsubscribe(s)
}

// Bus is a concurrency-safe in-process topic bus. The zero value is not
// usable; construct with NewBus.
type Bus struct {
	mu        sync.RWMutex
	topics    map[string]map[*Subscription]struct{}
	queueSize int
	closed    bool

	dropped atomic.Int64 // messages lost to full subscriber queues
}

// NewBus creates a Bus with the default per-subscriber queue depth.
func NewBus() *Bus {
	return NewBusWithQueueSize(DefaultQueueSize)
}

// NewBusWithQueueSize creates a Bus with an explicit queue depth. Tests use
// small queues to exercise the drop path.
func NewBusWithQueueSize(queueSize int) *Bus {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Bus{
		topics:    make(map[string]map[*Subscription]struct{}),
		queueSize: queueSize,
	}
}

// Subscribe registers a new subscriber on a topic.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		C:     make(chan Message, b.queueSize),
		topic: topic,
		bus:   b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.closeOnce.Do(func() { close(sub.C) })
		return sub
	}
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches a subscription and closes its channel. A nil
// subscription is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	if subs, ok := b.topics[sub.topic]; ok {
		if _, member := subs[sub]; member {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(b.topics, sub.topic)
			}
		}
	}
	b.mu.Unlock()

	sub.closeOnce.Do(func() { close(sub.C) })
}

// Publish delivers a message to every current subscriber of the topic.
// Never blocks: subscribers with full queues are skipped.
func (b *Bus) Publish(topic string, msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.topics[topic] {
		select {
		case sub.C <- msg:
		default:
			b.dropped.Add(1)
			slog.Warn("Dropping bus message for slow subscriber",
				"topic", topic, "type", msg.Type)
		}
	}
}

// Dropped returns the number of messages lost to full subscriber queues.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// SubscriberCount returns the number of subscribers on a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close shuts the bus down and closes every subscriber channel. Publishes
// after Close are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.topics {
		for sub := range subs {
			sub.closeOnce.Do(func() { close(sub.C) })
		}
		delete(b.topics, topic)
	}
}
