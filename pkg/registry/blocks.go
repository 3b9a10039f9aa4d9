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

type blockKey struct {
	deviceID        uuid.UUID
	blockIdentifier int
}

// BlockStore owns every Block record in the process.
type BlockStore struct {
	mu           sync.RWMutex
	byID         map[uuid.UUID]*models.Block
	byIdentifier map[blockKey]uuid.UUID
	sensors      *SensorStore
	bus          *eventbus.Bus
	logger       logger.Logger
}

// NewBlockStore creates an empty block store. sensors is used to cascade
// removal.
func NewBlockStore(bus *eventbus.Bus, sensors *SensorStore, log logger.Logger) *BlockStore {
	return &BlockStore{
		byID:         make(map[uuid.UUID]*models.Block),
		byIdentifier: make(map[blockKey]uuid.UUID),
		sensors:      sensors,
		bus:          bus,
		logger:       log.WithComponent("registry.blocks"),
	}
}

// Append creates or updates a block keyed by (deviceID, blockIdentifier),
// emitting BlockCreatedOrUpdated exactly once.
func (s *BlockStore) Append(deviceID uuid.UUID, blockIdentifier int, description string) *models.Block {
	key := blockKey{deviceID: deviceID, blockIdentifier: blockIdentifier}

	s.mu.Lock()

	id, exists := s.byIdentifier[key]

	var block *models.Block

	if exists {
		block = s.byID[id]
		block.BlockDescription = description
	} else {
		block = &models.Block{
			BlockID:          uuid.New(),
			DeviceID:         deviceID,
			BlockIdentifier:  blockIdentifier,
			BlockDescription: description,
		}
		s.byID[block.BlockID] = block
		s.byIdentifier[key] = block.BlockID
	}

	snapshot := *block
	s.mu.Unlock()

	s.bus.Dispatch(eventbus.Event{Name: eventbus.BlockCreatedOrUpdated, Payload: snapshot})

	return block
}

// GetByID returns the block with id, if any.
func (s *BlockStore) GetByID(id uuid.UUID) (models.Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, ok := s.byID[id]
	if !ok {
		return models.Block{}, false
	}

	return *block, true
}

// GetByIdentifier returns the block identified by (deviceID, blockIdentifier).
func (s *BlockStore) GetByIdentifier(deviceID uuid.UUID, blockIdentifier int) (models.Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdentifier[blockKey{deviceID: deviceID, blockIdentifier: blockIdentifier}]
	if !ok {
		return models.Block{}, false
	}

	return *s.byID[id], true
}

// GetAllByDevice returns every block belonging to deviceID.
func (s *BlockStore) GetAllByDevice(deviceID uuid.UUID) []models.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Block, 0)

	for _, b := range s.byID {
		if b.DeviceID == deviceID {
			out = append(out, *b)
		}
	}

	return out
}

// RemoveByDevice deletes every block belonging to deviceID, cascading to
// their sensors. Idempotent.
func (s *BlockStore) RemoveByDevice(deviceID uuid.UUID) {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0)

	for id, b := range s.byID {
		if b.DeviceID == deviceID {
			ids = append(ids, id)
			delete(s.byID, id)
			delete(s.byIdentifier, blockKey{deviceID: b.DeviceID, blockIdentifier: b.BlockIdentifier})
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.sensors.RemoveByBlock(id)
	}
}

// Reset clears every block record.
func (s *BlockStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[uuid.UUID]*models.Block)
	s.byIdentifier = make(map[blockKey]uuid.UUID)
}
