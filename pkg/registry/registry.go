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

// Package registry is the in-memory entity graph of devices, blocks,
// sensors, attributes and in-flight commands. The Registry aggregator is
// the only thing that owns all five stores and is responsible for
// cross-store cascades (device removal fans out to blocks, sensors,
// attributes and commands).
package registry

import (
	"time"

	"github.com/google/uuid"

	"github.com/FastyBird/shelly-connector/pkg/eventbus"
	"github.com/FastyBird/shelly-connector/pkg/logger"
)

// Config tunes the registry's timeout/retry behaviour.
type Config struct {
	DeviceLostTimeout time.Duration
	DefaultSensorTTL  time.Duration
	CommandTimeout    time.Duration
	WriteRetryBudget  int
}

// Registry bundles the five record stores behind the event bus they all
// publish to.
type Registry struct {
	Devices    *DeviceStore
	Blocks     *BlockStore
	Sensors    *SensorStore
	Attributes *AttributeStore
	Commands   *CommandStore

	bus *eventbus.Bus
}

// New constructs a Registry with every store wired to bus.
func New(bus *eventbus.Bus, cfg Config, log logger.Logger) *Registry {
	commands := NewCommandStore(cfg.CommandTimeout, log)
	sensors := NewSensorStore(bus, commands, cfg.WriteRetryBudget, cfg.DefaultSensorTTL, log)
	blocks := NewBlockStore(bus, sensors, log)
	attributes := NewAttributeStore(bus, log)
	devices := NewDeviceStore(bus, cfg.DeviceLostTimeout, log)

	return &Registry{
		Devices:    devices,
		Blocks:     blocks,
		Sensors:    sensors,
		Attributes: attributes,
		Commands:   commands,
		bus:        bus,
	}
}

// RemoveDevice removes a device and cascades to every record that
// references it: blocks (and through them sensors), attributes, and
// in-flight commands. Idempotent on unknown ids.
func (r *Registry) RemoveDevice(id uuid.UUID) {
	r.Blocks.RemoveByDevice(id)
	r.Attributes.RemoveByDevice(id)
	r.Commands.RemoveByDevice(id)
	r.Devices.Remove(id)
}

// CheckTimeout runs the device liveness scan.
func (r *Registry) CheckTimeout() {
	r.Devices.CheckTimeout(r.Attributes)
}

// CheckWrite runs the pending-write scan.
func (r *Registry) CheckWrite() {
	r.Sensors.CheckWrite()
}

// Reset clears every store.
func (r *Registry) Reset() {
	r.Sensors.Reset()
	r.Blocks.Reset()
	r.Attributes.Reset()
	r.Commands.Reset()
	r.Devices.Reset()
}
