// Package event provides a pub/sub event system for the server using watermill.
package event

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventType represents the type of event.
type EventType string

const (
	MemorySaved      EventType = "memory.saved"
	MemoryEdited     EventType = "memory.edited"
	MemoryDeleted    EventType = "memory.deleted"
	CacheInvalidated EventType = "cache.invalidated"
	ToolDispatched   EventType = "tool.dispatched"
)

// allTopic fans every event out to SubscribeAll subscribers. The gochannel
// transport has no wildcard subscriptions, so Publish writes each event to
// its own topic and to this one.
const allTopic = "events.all"

// metadataTypeKey carries the EventType on the wire; the payload itself is
// the JSON-encoded Data.
const metadataTypeKey = "type"

// payloadTypes maps each event type to its concrete Data payload, so a
// subscriber gets back the typed struct that was published rather than a
// raw JSON map.
var payloadTypes = map[EventType]reflect.Type{
	MemorySaved:      reflect.TypeOf(MemorySavedData{}),
	MemoryEdited:     reflect.TypeOf(MemoryEditedData{}),
	MemoryDeleted:    reflect.TypeOf(MemoryDeletedData{}),
	CacheInvalidated: reflect.TypeOf(CacheInvalidatedData{}),
	ToolDispatched:   reflect.TypeOf(ToolDispatchedData{}),
}

// Event represents an event to be published.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

// Bus is the event bus. Delivery flows through a watermill gochannel: one
// topic per event type plus the fan-out topic, JSON payloads, and a
// per-subscription goroutine that decodes and acks each message. Delivery
// is asynchronous; within one subscription, events arrive in publish
// order.
type Bus struct {
	mu     sync.Mutex
	pubsub *gochannel.GoChannel
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// globalBus is the default event bus instance.
var globalBus = newBus()

func newBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// NewBus creates a new event bus instance.
func NewBus() *Bus {
	return newBus()
}

// Subscribe registers a subscriber for a specific event type.
// Returns an unsubscribe function.
func Subscribe(eventType EventType, fn Subscriber) func() {
	return globalBus.Subscribe(eventType, fn)
}

func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	return b.subscribe(string(eventType), fn)
}

// SubscribeAll registers a subscriber for all events.
// Returns an unsubscribe function.
func SubscribeAll(fn Subscriber) func() {
	return globalBus.SubscribeAll(fn)
}

func (b *Bus) SubscribeAll(fn Subscriber) func() {
	return b.subscribe(allTopic, fn)
}

func (b *Bus) subscribe(topic string, fn Subscriber) func() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	ctx, cancel := context.WithCancel(b.ctx)
	messages, err := b.pubsub.Subscribe(ctx, topic)
	b.mu.Unlock()
	if err != nil {
		cancel()
		return func() {}
	}

	go func() {
		for msg := range messages {
			fn(decode(msg))
			msg.Ack()
		}
	}()

	return cancel
}

// Publish sends an event to all subscribers asynchronously. With no
// subscribers the event is dropped.
func Publish(event Event) {
	globalBus.Publish(event)
}

func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	payload, err := json.Marshal(event.Data)
	if err != nil {
		payload = []byte("null")
	}

	for _, topic := range []string{string(event.Type), allTopic} {
		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set(metadataTypeKey, string(event.Type))
		_ = b.pubsub.Publish(topic, msg)
	}
}

// decode rebuilds a typed Event from a wire message, falling back to
// generic JSON when the payload doesn't match the registered type (e.g. a
// caller published an ad-hoc Data value).
func decode(msg *message.Message) Event {
	ev := Event{Type: EventType(msg.Metadata.Get(metadataTypeKey))}

	if typ, ok := payloadTypes[ev.Type]; ok {
		p := reflect.New(typ)
		if err := json.Unmarshal(msg.Payload, p.Interface()); err == nil {
			ev.Data = p.Elem().Interface()
			return ev
		}
	}

	var generic any
	_ = json.Unmarshal(msg.Payload, &generic)
	ev.Data = generic
	return ev
}

// Reset replaces the global bus with a fresh one, dropping all
// subscribers (for testing).
func Reset() {
	old := globalBus
	globalBus = newBus()
	_ = old.Close()
}

// Close closes the bus; subscriptions drain and their goroutines exit.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	return b.pubsub.Close()
}

// PubSub returns the underlying watermill GoChannel, the actual delivery
// transport; useful for middleware or a future switch to a distributed
// backend.
func (b *Bus) PubSub() *gochannel.GoChannel {
	return b.pubsub
}

// PubSub returns the global bus's underlying watermill GoChannel.
func PubSub() *gochannel.GoChannel {
	return globalBus.PubSub()
}
