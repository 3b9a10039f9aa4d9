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

	"github.com/google/uuid"

	"github.com/FastyBird/shelly-connector/pkg/eventbus"
	"github.com/FastyBird/shelly-connector/pkg/logger"
	"github.com/FastyBird/shelly-connector/pkg/models"
)

type attributeKey struct {
	deviceID uuid.UUID
	attrType models.AttributeType
}

// AttributeStore owns every Attribute record in the process.
type AttributeStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*models.Attribute
	byKey  map[attributeKey]uuid.UUID
	bus    *eventbus.Bus
	logger logger.Logger
}

// NewAttributeStore creates an empty attribute store.
func NewAttributeStore(bus *eventbus.Bus, log logger.Logger) *AttributeStore {
	return &AttributeStore{
		byID:   make(map[uuid.UUID]*models.Attribute),
		byKey:  make(map[attributeKey]uuid.UUID),
		bus:    bus,
		logger: log.WithComponent("registry.attributes"),
	}
}

// Append creates or updates an attribute's identity (without changing its
// value) and emits AttributeCreatedOrUpdated exactly once.
func (s *AttributeStore) Append(deviceID uuid.UUID, attrType models.AttributeType) *models.Attribute {
	key := attributeKey{deviceID: deviceID, attrType: attrType}

	s.mu.Lock()

	id, exists := s.byKey[key]

	var attr *models.Attribute

	if exists {
		attr = s.byID[id]
	} else {
		attr = &models.Attribute{
			AttributeID:   uuid.New(),
			DeviceID:      deviceID,
			AttributeType: attrType,
		}
		s.byID[attr.AttributeID] = attr
		s.byKey[key] = attr.AttributeID
	}

	snapshot := *attr
	s.mu.Unlock()

	s.bus.Dispatch(eventbus.Event{Name: eventbus.AttributeCreatedOrUpdated, Payload: snapshot})

	return attr
}

// SetValue creates the attribute if needed and sets its scalar value,
// emitting AttributeActualValueUpdated only when the stored value differs
// (string-normalised comparison).
func (s *AttributeStore) SetValue(deviceID uuid.UUID, attrType models.AttributeType, value string) {
	attr := s.Append(deviceID, attrType)
	if attr == nil {
		return
	}

	s.mu.Lock()

	changed := attr.Value != value
	if changed {
		attr.Value = value
	}

	snapshot := *attr
	s.mu.Unlock()

	if changed {
		s.bus.Dispatch(eventbus.Event{Name: eventbus.AttributeActualValueUpdated, Payload: snapshot})
	}
}

// GetValue returns the current scalar value for (deviceID, attrType).
func (s *AttributeStore) GetValue(deviceID uuid.UUID, attrType models.AttributeType) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[attributeKey{deviceID: deviceID, attrType: attrType}]
	if !ok {
		return "", false
	}

	return s.byID[id].Value, true
}

// GetAllByDevice returns every attribute belonging to deviceID.
func (s *AttributeStore) GetAllByDevice(deviceID uuid.UUID) []models.Attribute {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Attribute, 0)

	for _, a := range s.byID {
		if a.DeviceID == deviceID {
			out = append(out, *a)
		}
	}

	return out
}

// RemoveByDevice deletes every attribute belonging to deviceID. Idempotent.
func (s *AttributeStore) RemoveByDevice(deviceID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.byID {
		if a.DeviceID == deviceID {
			delete(s.byID, id)
			delete(s.byKey, attributeKey{deviceID: a.DeviceID, attrType: a.AttributeType})
		}
	}
}

// Reset clears every attribute record.
func (s *AttributeStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[uuid.UUID]*models.Attribute)
	s.byKey = make(map[attributeKey]uuid.UUID)
}
