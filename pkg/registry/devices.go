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

package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FastyBird/shelly-connector/pkg/eventbus"
	"github.com/FastyBird/shelly-connector/pkg/logger"
	"github.com/FastyBird/shelly-connector/pkg/models"
)

// DeviceUpdate carries the fields a caller wants to merge into a Device
// record. Zero-valued fields are treated as "not provided" and never
// overwrite an existing value.
type DeviceUpdate struct {
	DeviceIdentifier string
	DeviceType       string
	MAC              string
	FirmwareVersion  string
	IP               string
	Source           models.DescriptionSource
}

// DeviceStore owns every Device record in the process.
type DeviceStore struct {
	mu           sync.RWMutex
	byID         map[uuid.UUID]*models.Device
	byIdentifier map[string]uuid.UUID
	lostTimeout  time.Duration
	bus          *eventbus.Bus
	logger       logger.Logger
}

// NewDeviceStore creates an empty device store.
func NewDeviceStore(bus *eventbus.Bus, lostTimeout time.Duration, log logger.Logger) *DeviceStore {
	return &DeviceStore{
		byID:         make(map[uuid.UUID]*models.Device),
		byIdentifier: make(map[string]uuid.UUID),
		lostTimeout:  lostTimeout,
		bus:          bus,
		logger:       log.WithComponent("registry.devices"),
	}
}

// Append creates or updates a Device keyed by DeviceIdentifier. Fields
// already set by a higher-precedence source are preserved. Exactly one
// DeviceCreatedOrUpdated event is emitted.
func (s *DeviceStore) Append(update DeviceUpdate) *models.Device {
	if update.DeviceIdentifier == "" {
		s.logger.Error().Msg("refusing to append device with empty identifier")
		return nil
	}

	s.mu.Lock()

	id, exists := s.byIdentifier[update.DeviceIdentifier]

	var device *models.Device

	if exists {
		device = s.byID[id]
		s.mergeDevice(device, update)
	} else {
		device = &models.Device{
			DeviceID:           uuid.New(),
			DeviceIdentifier:   update.DeviceIdentifier,
			DeviceType:         update.DeviceType,
			MAC:                update.MAC,
			FirmwareVersion:    update.FirmwareVersion,
			IP:                 update.IP,
			Enabled:            true,
			DescriptionSource:  update.Source,
			LastCommunicationAt: time.Now(),
		}
		s.byID[device.DeviceID] = device
		s.byIdentifier[device.DeviceIdentifier] = device.DeviceID
	}

	snapshot := *device
	s.mu.Unlock()

	s.bus.Dispatch(eventbus.Event{Name: eventbus.DeviceCreatedOrUpdated, Payload: snapshot})

	return device
}

// mergeDevice applies update onto device under the source-precedence rule.
// Caller must hold s.mu.
func (s *DeviceStore) mergeDevice(device *models.Device, update DeviceUpdate) {
	if !update.Source.Precedence(device.DescriptionSource) {
		// A lower-precedence source may still refresh liveness, but must
		// not clobber fields a richer source already populated.
		device.LastCommunicationAt = time.Now()
		return
	}

	if update.DeviceType != "" {
		device.DeviceType = update.DeviceType
	}

	if update.MAC != "" {
		device.MAC = update.MAC
	}

	if update.FirmwareVersion != "" {
		device.FirmwareVersion = update.FirmwareVersion
	}

	if update.IP != "" {
		device.IP = update.IP
	}

	device.DescriptionSource = update.Source
	device.LastCommunicationAt = time.Now()
}

// Touch refreshes LastCommunicationAt without otherwise changing the
// device, used for messages that don't carry a full description.
func (s *DeviceStore) Touch(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if device, ok := s.byID[id]; ok {
		device.LastCommunicationAt = time.Now()
	}
}

// GetByID returns the device with id, if any.
func (s *DeviceStore) GetByID(id uuid.UUID) (models.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	device, ok := s.byID[id]
	if !ok {
		return models.Device{}, false
	}

	return *device, true
}

// GetByIdentifier returns the device with the given short identifier.
func (s *DeviceStore) GetByIdentifier(identifier string) (models.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdentifier[identifier]
	if !ok {
		return models.Device{}, false
	}

	return *s.byID[id], true
}

// GetAll returns a snapshot of every device.
func (s *DeviceStore) GetAll() []models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Device, 0, len(s.byID))
	for _, d := range s.byID {
		out = append(out, *d)
	}

	return out
}

// removeLocked deletes a device's own record without cascading; the
// Registry aggregator cascades to blocks/attributes/commands. Idempotent.
func (s *DeviceStore) removeLocked(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, ok := s.byID[id]
	if !ok {
		return
	}

	delete(s.byIdentifier, device.DeviceIdentifier)
	delete(s.byID, id)
}

// Remove deletes the device record itself (not its dependants - callers
// needing cascade use Registry.RemoveDevice).
func (s *DeviceStore) Remove(id uuid.UUID) {
	s.removeLocked(id)
}

// Reset clears every device record.
func (s *DeviceStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[uuid.UUID]*models.Device)
	s.byIdentifier = make(map[string]uuid.UUID)
}

// CheckTimeout transitions enabled devices whose last communication is
// older than the lost timeout to LOST, and back to CONNECTED once
// communication resumes. The transition happens on attributes so that
// AttributeActualValueUpdated observers fire.
func (s *DeviceStore) CheckTimeout(attributes *AttributeStore) {
	now := time.Now()

	s.mu.RLock()
	devices := make([]models.Device, 0, len(s.byID))
	for _, d := range s.byID {
		devices = append(devices, *d)
	}
	s.mu.RUnlock()

	for _, device := range devices {
		if !device.Enabled {
			continue
		}

		lost := now.Sub(device.LastCommunicationAt) > s.lostTimeout

		current, _ := attributes.GetValue(device.DeviceID, models.AttributeState)

		switch {
		case lost && current != models.StateLost:
			attributes.SetValue(device.DeviceID, models.AttributeState, models.StateLost)
			s.logger.Warn().Str("device_identifier", device.DeviceIdentifier).Msg("device marked lost")
		case !lost && current == models.StateLost:
			attributes.SetValue(device.DeviceID, models.AttributeState, models.StateConnected)
			s.logger.Info().Str("device_identifier", device.DeviceIdentifier).Msg("device communication resumed")
		}
	}
}
