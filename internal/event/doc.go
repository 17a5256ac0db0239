/*
Package event provides a type-safe, pub/sub event system used to decouple
memory-store mutations, cache lifecycle transitions, and tool dispatches
from their observers (logging, metrics, and any future SSE fan-out),
without the dispatcher or HTTP handlers calling those observers directly.

# Architecture

Delivery flows through a watermill gochannel: Publish writes each event
to a topic named after its EventType (plus a fan-out topic backing
SubscribeAll) as a JSON payload, and every subscription runs its own
goroutine that decodes, dispatches, and acks messages in publish order.
A decode registry maps each EventType back to its concrete Data struct,
so subscribers receive the typed payload that was published rather than a
raw JSON map.

# Event Types

Memory events:
  - memory.saved: a new memory was persisted
  - memory.edited: an existing memory's text was replaced
  - memory.deleted: a memory was removed

Cache events:
  - cache.invalidated: internal/cache.Registry.InvalidateMemoryCaches ran

Tool events:
  - tool.dispatched: internal/dispatch resolved a tool call

# Basic Usage

Publishing events:

	event.Publish(event.Event{
		Type: event.MemorySaved,
		Data: event.MemorySavedData{MemoryID: id},
	})

Subscribing to specific events:

	unsubscribe := event.Subscribe(event.MemorySaved, func(e event.Event) {
		data := e.Data.(event.MemorySavedData)
		logging.Info().Str("id", data.MemoryID).Msg("memory saved")
	})
	defer unsubscribe()

Subscribing to all events:

	unsubscribe := event.SubscribeAll(func(e event.Event) {
		logging.Debug().Str("type", string(e.Type)).Msg("event received")
	})
	defer unsubscribe()

# Delivery Semantics

Delivery is asynchronous: Publish returns once the event is handed to the
transport, and each subscription observes events in publish order on its
own goroutine. Events published with no subscribers are dropped. The
standing observers (tool-dispatch metrics, cache-invalidation metrics,
debug logging) are registered at startup by cmd/vico's serve command.

# Testing

	event.Reset() // replaces the global bus, dropping all subscribers

# Integration with Watermill

The gochannel transport is exposed via Bus.PubSub for middleware or a
future migration to a distributed broker without changing callers.
*/
package event
