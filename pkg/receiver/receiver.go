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

// Package receiver buffers inbound wire messages in a single-consumer
// FIFO queue and drains them through validation and parsing.
package receiver

import (
	"sync"

	"github.com/FastyBird/shelly-connector/pkg/gen1"
	"github.com/FastyBird/shelly-connector/pkg/logger"
	"github.com/FastyBird/shelly-connector/pkg/models"
)

// DefaultQueueCapacity is the soft cap at which new messages start
// evicting the oldest queued message instead of growing further.
const DefaultQueueCapacity = 1024

// Message is one raw payload awaiting validation and parsing.
type Message struct {
	DeviceIdentifier string
	DeviceType       string
	DeviceIP         string
	Payload          []byte
	Kind             models.MessageKind
}

// Receiver is the single-consumer FIFO queue sitting between the wire
// clients (CoAP, HTTP) and the gen1 parser.
type Receiver struct {
	capacity int
	parser   *gen1.Parser
	logger   logger.Logger

	mu      sync.Mutex
	queue   []Message
	dropped uint64
}

// New constructs a Receiver with the given soft capacity (0 uses
// DefaultQueueCapacity) that parses accepted messages through parser.
func New(capacity int, parser *gen1.Parser, log logger.Logger) *Receiver {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}

	return &Receiver{
		capacity: capacity,
		parser:   parser,
		logger:   log.WithComponent("receiver"),
	}
}

// OnCoapMessage enqueues a frame received over the CoAP multicast client.
func (r *Receiver) OnCoapMessage(deviceIdentifier, deviceType, deviceIP string, payload []byte, kind models.MessageKind) {
	r.enqueue(Message{
		DeviceIdentifier: deviceIdentifier,
		DeviceType:       deviceType,
		DeviceIP:         deviceIP,
		Payload:          payload,
		Kind:             kind,
	})
}

// OnHTTPMessage enqueues a payload fetched over HTTP polling.
func (r *Receiver) OnHTTPMessage(deviceIdentifier, deviceType, deviceIP string, payload []byte, kind models.MessageKind) {
	r.enqueue(Message{
		DeviceIdentifier: deviceIdentifier,
		DeviceType:       deviceType,
		DeviceIP:         deviceIP,
		Payload:          payload,
		Kind:             kind,
	})
}

// enqueue appends msg, dropping the oldest queued message first if the
// queue is already at capacity.
func (r *Receiver) enqueue(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) >= r.capacity {
		r.queue = r.queue[1:]
		r.dropped++

		r.logger.Warn().
			Uint64("total_dropped", r.dropped).
			Msg("receiver queue full, dropping oldest message")
	}

	r.queue = append(r.queue, msg)
}

// IsEmpty reports whether the queue currently holds no messages.
func (r *Receiver) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.queue) == 0
}

// Dropped returns the total number of messages evicted by the overflow
// policy since the receiver was created.
func (r *Receiver) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.dropped
}

// Handle pops and processes exactly one message, returning false if the
// queue was empty. Invalid payloads are logged and dropped without
// reaching the parser.
func (r *Receiver) Handle() bool {
	msg, ok := r.pop()
	if !ok {
		return false
	}

	result := gen1.Validate(msg.Kind, msg.Payload)
	if !result.Valid {
		preview := msg.Payload
		if len(preview) > 120 {
			preview = preview[:120]
		}

		r.logger.Warn().
			Str("device", msg.DeviceIdentifier).
			Str("kind", string(msg.Kind)).
			Str("reason", result.Reason).
			Bytes("payload_preview", preview).
			Msg("dropping invalid payload")

		return true
	}

	r.parser.Parse(msg.DeviceIdentifier, msg.DeviceType, msg.DeviceIP, msg.Payload, msg.Kind)

	return true
}

// Loop drains the queue until it is empty, processing one message at a
// time through Handle.
func (r *Receiver) Loop() {
	for r.Handle() {
	}
}

func (r *Receiver) pop() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) == 0 {
		return Message{}, false
	}

	msg := r.queue[0]
	r.queue = r.queue[1:]

	return msg, true
}
