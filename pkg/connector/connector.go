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

// Package connector is the top-level façade wiring the CoAP client, the
// receiver queue, the gen1 parser, the registry and the publish sink into
// one process lifecycle.
package connector

import (
	"context"
	"sync"
	"time"

	"github.com/FastyBird/shelly-connector/pkg/coap"
	"github.com/FastyBird/shelly-connector/pkg/config"
	"github.com/FastyBird/shelly-connector/pkg/eventbus"
	"github.com/FastyBird/shelly-connector/pkg/gen1"
	"github.com/FastyBird/shelly-connector/pkg/logger"
	"github.com/FastyBird/shelly-connector/pkg/models"
	"github.com/FastyBird/shelly-connector/pkg/publish"
	"github.com/FastyBird/shelly-connector/pkg/receiver"
	"github.com/FastyBird/shelly-connector/pkg/registry"
)

// messageQueueCapacity bounds the internal channel feeding the CoAP
// client's decoded frames into the receiver queue.
const messageQueueCapacity = 256

// Connector owns every long-lived collaborator for one running instance
// of this service: the multicast client, the receiver queue, the
// registry and the downstream sink.
type Connector struct {
	cfg *config.Config
	log logger.Logger

	bus      *eventbus.Bus
	registry *registry.Registry
	parser   *gen1.Parser
	receiver *receiver.Receiver
	coap     *coap.Client
	sink     publish.Sink

	frames chan coap.Message

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// New wires every collaborator from cfg but does not start any I/O.
func New(cfg *config.Config, log logger.Logger) *Connector {
	bus := eventbus.New(log)

	reg := registry.New(bus, registry.Config{
		DeviceLostTimeout: time.Duration(cfg.Registry.DeviceLostTimeout),
		DefaultSensorTTL:  time.Duration(cfg.Registry.DefaultSensorTTL),
		CommandTimeout:    time.Duration(cfg.Registry.CommandTimeout),
		WriteRetryBudget:  cfg.Registry.WriteRetryBudget,
	}, log)

	parser := gen1.NewParser(reg, log)
	recv := receiver.New(cfg.Registry.QueueSoftCap, parser, log)

	client := coap.New(coap.Config{
		MulticastGroup:    cfg.Coap.MulticastGroup,
		Port:              cfg.Coap.Port,
		DiscoveryInterval: time.Duration(cfg.Coap.DiscoveryInterval),
		ReadTimeout:       time.Duration(cfg.Coap.ReadTimeout),
		FixDW2Payload:     cfg.Coap.FixDW2Payload,
	}, log)

	var sink publish.Sink
	if cfg.Publish.NatsURL == "" {
		sink = publish.NewNoopSink(log)
	}

	return &Connector{
		cfg:      cfg,
		log:      log.WithComponent("connector"),
		bus:      bus,
		registry: reg,
		parser:   parser,
		receiver: recv,
		coap:     client,
		sink:     sink,
		frames:   make(chan coap.Message, messageQueueCapacity),
	}
}

// Initialize prepares the connector for Start. Persisted device restore
// is out of scope; devices are learned fresh from the wire on every
// process start.
func (c *Connector) Initialize(ctx context.Context) error {
	if c.sink == nil {
		sink, err := publish.Connect(ctx, publish.Config{
			URL:    c.cfg.Publish.NatsURL,
			Stream: c.cfg.Publish.Stream,
		}, c.log)
		if err != nil {
			c.log.Warn().Err(err).Msg("publish sink unavailable, falling back to noop")
			c.sink = publish.NewNoopSink(c.log)
		} else {
			c.sink = sink
		}
	}

	c.sink.Subscribe(c.bus)

	return nil
}

// Start opens the multicast socket and begins the discovery/receive
// loops. It returns once the client is listening; frame processing
// continues on background goroutines until Stop is called.
func (c *Connector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	if err := c.coap.Start(runCtx, c.frames); err != nil {
		cancel()
		return err
	}

	c.cancel = cancel
	c.running = true

	go c.pump(runCtx)

	return nil
}

// pump drains decoded CoAP frames into the receiver queue until ctx is
// cancelled.
func (c *Connector) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.frames:
			kind := models.MessageCoapStatus
			if msg.Frame.Code == coap.CodeDescription {
				kind = models.MessageCoapDescription
			}

			c.receiver.OnCoapMessage(msg.Frame.DeviceIdentifier, msg.Frame.DeviceType, msg.From.IP.String(), msg.Frame.Payload, kind)
		}
	}
}

// Stop marks every known device DISCONNECTED, then closes the multicast
// socket and cancels background work.
func (c *Connector) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	for _, device := range c.registry.Devices.GetAll() {
		c.registry.Attributes.SetValue(device.DeviceID, models.AttributeState, models.StateDisconnected)
	}

	c.cancel()
	c.running = false

	if err := c.coap.Stop(); err != nil {
		return err
	}

	return c.sink.Close()
}

// Handle runs one tick of the connector's cooperative scheduler: drain
// one queued message, then run the registry's timeout and write-retry
// scans.
func (c *Connector) Handle() {
	c.receiver.Handle()
	c.registry.CheckTimeout()
	c.registry.CheckWrite()
}

// HasUnfinishedTasks reports whether the receiver queue still holds
// messages worth draining before the process can idle.
func (c *Connector) HasUnfinishedTasks() bool {
	return !c.receiver.IsEmpty()
}

// Discover triggers an out-of-schedule discovery broadcast.
func (c *Connector) Discover() error {
	return c.coap.Discover()
}

// Restart is intentionally a no-op: the connector owns no per-device
// connection state that would benefit from a restart distinct from
// Stop+Start.
func (c *Connector) Restart() error {
	return nil
}

// Registry exposes the underlying registry for callers (e.g. an HTTP
// write-command endpoint) that need to enqueue expected-value writes.
func (c *Connector) Registry() *registry.Registry {
	return c.registry
}
