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

	"github.com/FastyBird/shelly-connector/pkg/logger"
	"github.com/FastyBird/shelly-connector/pkg/models"
)

// CommandStore owns every in-flight Command record. Commands are scratch:
// no events are emitted for them, they exist purely to track timeouts and
// to coalesce duplicate in-flight requests.
type CommandStore struct {
	mu      sync.Mutex
	byKey   map[models.CommandKey]*models.Command
	timeout time.Duration
	logger  logger.Logger
}

// NewCommandStore creates an empty command store.
func NewCommandStore(timeout time.Duration, log logger.Logger) *CommandStore {
	return &CommandStore{
		byKey:   make(map[models.CommandKey]*models.Command),
		timeout: timeout,
		logger:  log.WithComponent("registry.commands"),
	}
}

// Append records a new in-flight command, or, if one is already in flight
// for the same key, coalesces by refreshing SentAt rather than
// duplicating: at most one in-flight command per key.
func (s *CommandStore) Append(deviceID uuid.UUID, kind models.CommandKind, ctx any) *models.Command {
	key := models.CommandKey{DeviceID: deviceID, Kind: kind}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if cmd, exists := s.byKey[key]; exists {
		cmd.SentAt = now
		cmd.TimeoutDeadline = now.Add(s.timeout)
		cmd.Context = ctx

		return cmd
	}

	cmd := &models.Command{
		DeviceID:        deviceID,
		Kind:            kind,
		SentAt:          now,
		TimeoutDeadline: now.Add(s.timeout),
		Context:         ctx,
	}
	s.byKey[key] = cmd

	return cmd
}

// Get returns the in-flight command for key, if any.
func (s *CommandStore) Get(deviceID uuid.UUID, kind models.CommandKind) (models.Command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd, ok := s.byKey[models.CommandKey{DeviceID: deviceID, Kind: kind}]
	if !ok {
		return models.Command{}, false
	}

	return *cmd, true
}

// Clear removes the in-flight command for key (successful ack or give-up).
func (s *CommandStore) Clear(deviceID uuid.UUID, kind models.CommandKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byKey, models.CommandKey{DeviceID: deviceID, Kind: kind})
}

// RemoveByDevice clears every in-flight command for deviceID, used on
// device removal.
func (s *CommandStore) RemoveByDevice(deviceID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.byKey {
		if key.DeviceID == deviceID {
			delete(s.byKey, key)
		}
	}
}

// Reset clears every command record.
func (s *CommandStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byKey = make(map[models.CommandKey]*models.Command)
}
