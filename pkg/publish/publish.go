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

// Package publish republishes registry events onto an external
// collaborator. The registry and event bus never talk to a transport
// directly; a Sink is the only thing allowed to do that, and a missing
// one degrades to logging instead of failing.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/FastyBird/shelly-connector/pkg/eventbus"
	"github.com/FastyBird/shelly-connector/pkg/logger"
)

// subjectPrefix namespaces every published subject under this connector.
const subjectPrefix = "shelly.connector"

// topicSubjects maps each event bus topic to the outbound subject that
// carries it.
var topicSubjects = map[string]string{
	eventbus.DeviceCreatedOrUpdated:      subjectPrefix + ".device.updated",
	eventbus.BlockCreatedOrUpdated:       subjectPrefix + ".block.updated",
	eventbus.SensorCreatedOrUpdated:      subjectPrefix + ".sensor.updated",
	eventbus.AttributeCreatedOrUpdated:   subjectPrefix + ".attribute.updated",
	eventbus.AttributeActualValueUpdated: subjectPrefix + ".attribute.value_updated",
	eventbus.SensorActualValueUpdated:    subjectPrefix + ".sensor.value_updated",
	eventbus.WriteSensorExpectedValue:    subjectPrefix + ".sensor.write_expected_value",
}

// record is the envelope every published message carries; its shape
// mirrors the CloudEvent-like envelopes the rest of the stack emits.
type record struct {
	ID      string    `json:"id"`
	Topic   string    `json:"topic"`
	Subject string    `json:"subject"`
	Time    time.Time `json:"time"`
	Data    any       `json:"data"`
}

// Sink is the downstream collaborator every event bus topic republishes
// to. Subscribe wires it to bus; Close releases any held connection.
type Sink interface {
	Subscribe(bus *eventbus.Bus)
	Close() error
}

// NoopSink logs a single WARN on the first event it sees and drops every
// event (each one logged at DEBUG), matching the documented degrade-not-fail behaviour for a missing
// external collaborator.
type NoopSink struct {
	logger logger.Logger
	warned bool
}

// NewNoopSink constructs a NoopSink.
func NewNoopSink(log logger.Logger) *NoopSink {
	return &NoopSink{logger: log.WithComponent("publish.noop")}
}

// Subscribe registers a handler for every known topic.
func (s *NoopSink) Subscribe(bus *eventbus.Bus) {
	for topic := range topicSubjects {
		bus.Subscribe(topic, s.handle)
	}
}

func (s *NoopSink) handle(event eventbus.Event) {
	if !s.warned {
		s.logger.Warn().Msg("no publish sink configured, registry events are not being forwarded")
		s.warned = true
	}

	s.logger.Debug().Str("topic", event.Name).Msg("dropping event, no sink configured")
}

// Close is a no-op.
func (s *NoopSink) Close() error { return nil }

// NatsSink republishes events to a NATS JetStream stream, one subject per
// topic.
type NatsSink struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
	logger logger.Logger
}

// Config configures a NatsSink.
type Config struct {
	URL    string
	Stream string
}

// Connect dials url, ensures the JetStream stream exists with subjects
// for every topic this connector publishes, and returns a ready Sink.
func Connect(ctx context.Context, cfg Config, log logger.Logger) (*NatsSink, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("nats connection error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("publish: connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("publish: create jetstream context: %w", err)
	}

	stream := cfg.Stream
	if stream == "" {
		stream = "SHELLY_CONNECTOR"
	}

	subjects := make([]string, 0, len(topicSubjects))
	for _, subject := range topicSubjects {
		subjects = append(subjects, subject)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: subjects,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("publish: ensure stream %s: %w", stream, err)
	}

	return &NatsSink{
		nc:     nc,
		js:     js,
		stream: stream,
		logger: log.WithComponent("publish.nats"),
	}, nil
}

// Subscribe registers a handler for every known topic.
func (s *NatsSink) Subscribe(bus *eventbus.Bus) {
	for topic := range topicSubjects {
		bus.Subscribe(topic, s.handle)
	}
}

func (s *NatsSink) handle(event eventbus.Event) {
	subject, ok := topicSubjects[event.Name]
	if !ok {
		return
	}

	payload, err := json.Marshal(record{
		ID:      uuid.New().String(),
		Topic:   event.Name,
		Subject: subject,
		Time:    time.Now().UTC(),
		Data:    event.Payload,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("topic", event.Name).Msg("failed to marshal event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.js.Publish(ctx, subject, payload); err != nil {
		s.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}

// Close closes the underlying NATS connection without draining it.
func (s *NatsSink) Close() error {
	s.nc.Close()
	return nil
}
