/*
 * Copyright 2025 FastyBird s.r.o.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package eventbus implements a named-topic synchronous dispatcher. All
// registry mutations flow through here on their way to the (out of scope)
// persistence collaborator; see pkg/publish for the downstream sink.
package eventbus

import (
	"sync"

	"github.com/FastyBird/shelly-connector/pkg/logger"
)

// Topic names published on the bus.
const (
	DeviceCreatedOrUpdated        = "registry.deviceRecordCreatedOrUpdated"
	BlockCreatedOrUpdated         = "registry.blockRecordCreatedOrUpdated"
	SensorCreatedOrUpdated        = "registry.sensorRecordCreatedOrUpdated"
	AttributeCreatedOrUpdated     = "registry.attributeRecordCreatedOrUpdated"
	AttributeActualValueUpdated   = "registry.attributeRecordActualValueUpdated"
	SensorActualValueUpdated      = "registry.sensorRecordActualValueUpdated"
	WriteSensorExpectedValue      = "registry.writeSensorExpectedValue"
)

// Event is a single published notification.
type Event struct {
	Name    string
	Payload any
}

// Handler processes one Event. A Handler that panics is recovered by the
// Bus and logged; it never aborts dispatch to the remaining handlers.
type Handler func(Event)

// Bus is a synchronous, registration-ordered, named-topic dispatcher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]subscription
	nextID   uint64
	logger   logger.Logger
}

type subscription struct {
	id      uint64
	handler Handler
}

// Subscription identifies a registered handler so it can be removed.
type Subscription struct {
	topic string
	id    uint64
}

// New creates an empty event bus.
func New(log logger.Logger) *Bus {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Bus{
		handlers: make(map[string][]subscription),
		logger:   log.WithComponent("eventbus"),
	}
}

// Subscribe registers handler on topic, returning a Subscription that
// Unsubscribe accepts. Handlers on the same topic run in registration
// order.
func (b *Bus) Subscribe(topic string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	b.handlers[topic] = append(b.handlers[topic], subscription{id: id, handler: handler})

	return Subscription{topic: topic, id: id}
}

// Unsubscribe removes a previously registered handler. It is a no-op if
// the subscription no longer exists.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[sub.topic]

	for i, s := range subs {
		if s.id == sub.id {
			b.handlers[sub.topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Dispatch invokes every handler registered for event.Name, synchronously,
// on the calling goroutine, in registration order. A handler that panics
// is recovered and logged so it cannot break the handlers after it.
func (b *Bus) Dispatch(event Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event.Name]))
	copy(subs, b.handlers[event.Name])
	b.mu.RUnlock()

	for _, s := range subs {
		b.invoke(s.handler, event)
	}
}

func (b *Bus) invoke(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("topic", event.Name).
				Interface("panic", r).
				Msg("event bus observer panicked, continuing dispatch")
		}
	}()

	handler(event)
}
