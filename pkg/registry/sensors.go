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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FastyBird/shelly-connector/pkg/eventbus"
	"github.com/FastyBird/shelly-connector/pkg/logger"
	"github.com/FastyBird/shelly-connector/pkg/models"
)

type sensorKey struct {
	deviceID         uuid.UUID
	sensorIdentifier int
}

// SensorUpdate carries the description-time fields for a sensor.
type SensorUpdate struct {
	BlockID          uuid.UUID
	DeviceID         uuid.UUID
	SensorIdentifier int
	SensorType       models.SensorType
	Description      string
	Unit             models.SensorUnit
	DataType         models.DataType
	ValueFormat      string
	ValueInvalid     string
	Queryable        bool
	Settable         bool
	TTL              time.Duration
}

// SensorStore owns every Sensor record in the process.
type SensorStore struct {
	mu           sync.RWMutex
	byID         map[uuid.UUID]*models.Sensor
	byIdentifier map[sensorKey]uuid.UUID
	commands     *CommandStore
	retryBudget  int
	defaultTTL   time.Duration
	bus          *eventbus.Bus
	logger       logger.Logger
}

// NewSensorStore creates an empty sensor store. commands is used to track
// write-timeout deadlines for check_write.
func NewSensorStore(
	bus *eventbus.Bus,
	commands *CommandStore,
	retryBudget int,
	defaultTTL time.Duration,
	log logger.Logger,
) *SensorStore {
	return &SensorStore{
		byID:         make(map[uuid.UUID]*models.Sensor),
		byIdentifier: make(map[sensorKey]uuid.UUID),
		commands:     commands,
		retryBudget:  retryBudget,
		defaultTTL:   defaultTTL,
		bus:          bus,
		logger:       log.WithComponent("registry.sensors"),
	}
}

// Append creates or updates a sensor's structural description, emitting
// SensorCreatedOrUpdated exactly once. Value state (actual/expected) is
// left untouched by Append.
func (s *SensorStore) Append(update SensorUpdate) *models.Sensor {
	key := sensorKey{deviceID: update.DeviceID, sensorIdentifier: update.SensorIdentifier}

	s.mu.Lock()

	id, exists := s.byIdentifier[key]

	var sensor *models.Sensor

	if exists {
		sensor = s.byID[id]
		s.mergeSensor(sensor, update)
	} else {
		ttl := update.TTL
		if ttl == 0 {
			ttl = s.defaultTTL
		}

		sensor = &models.Sensor{
			SensorID:         uuid.New(),
			BlockID:          update.BlockID,
			DeviceID:         update.DeviceID,
			SensorIdentifier: update.SensorIdentifier,
			SensorType:       update.SensorType,
			Description:      update.Description,
			Unit:             update.Unit,
			DataType:         update.DataType,
			ValueFormat:      update.ValueFormat,
			ValueInvalid:     update.ValueInvalid,
			Queryable:        update.Queryable,
			Settable:         update.Settable,
			TTL:              ttl,
		}
		s.byID[sensor.SensorID] = sensor
		s.byIdentifier[key] = sensor.SensorID
	}

	snapshot := *sensor
	s.mu.Unlock()

	s.bus.Dispatch(eventbus.Event{Name: eventbus.SensorCreatedOrUpdated, Payload: snapshot})

	return sensor
}

// mergeSensor applies update's structural fields onto sensor. Caller must
// hold s.mu.
func (*SensorStore) mergeSensor(sensor *models.Sensor, update SensorUpdate) {
	sensor.BlockID = update.BlockID
	sensor.SensorType = update.SensorType
	sensor.Description = update.Description
	sensor.Unit = update.Unit
	sensor.DataType = update.DataType
	sensor.ValueFormat = update.ValueFormat
	sensor.ValueInvalid = update.ValueInvalid
	sensor.Queryable = update.Queryable
	sensor.Settable = update.Settable

	if update.TTL != 0 {
		sensor.TTL = update.TTL
	}
}

// GetByID returns the sensor with id, if any.
func (s *SensorStore) GetByID(id uuid.UUID) (models.Sensor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sensor, ok := s.byID[id]
	if !ok {
		return models.Sensor{}, false
	}

	return *sensor, true
}

// GetByIdentifier returns the sensor identified by (deviceID, sensorIdentifier).
func (s *SensorStore) GetByIdentifier(deviceID uuid.UUID, sensorIdentifier int) (models.Sensor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdentifier[sensorKey{deviceID: deviceID, sensorIdentifier: sensorIdentifier}]
	if !ok {
		return models.Sensor{}, false
	}

	return *s.byID[id], true
}

// GetAllByBlock returns every sensor belonging to blockID.
func (s *SensorStore) GetAllByBlock(blockID uuid.UUID) []models.Sensor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Sensor, 0)

	for _, sensor := range s.byID {
		if sensor.BlockID == blockID {
			out = append(out, *sensor)
		}
	}

	return out
}

// SetActualValue applies a freshly observed value, emitting
// SensorActualValueUpdated only if the stored value differs from the new
// one (string-normalised comparison). It also clears any pending write
// once the device's reported value catches up with the expected one.
// Returns false if sensorID is unknown.
func (s *SensorStore) SetActualValue(sensorID uuid.UUID, value any, validTill time.Time) bool {
	s.mu.Lock()

	sensor, ok := s.byID[sensorID]
	if !ok {
		s.mu.Unlock()
		return false
	}

	changed := normalizeValue(sensor.ActualValue) != normalizeValue(value)
	if changed {
		sensor.ActualValue = value
	}

	sensor.ValueValidTill = validTill

	if sensor.ExpectedPending && normalizeValue(sensor.ActualValue) == normalizeValue(sensor.ExpectedValue) {
		sensor.ExpectedPending = false
		sensor.WriteRetries = 0
		s.commands.Clear(sensor.DeviceID, models.CommandWriteSensor)
	}

	snapshot := *sensor
	s.mu.Unlock()

	if changed {
		s.bus.Dispatch(eventbus.Event{Name: eventbus.SensorActualValueUpdated, Payload: snapshot})
	}

	return true
}

// SetExpectedValue records a pending write request for a settable sensor.
// It does not itself emit WriteSensorExpectedValue; that happens on the
// next CheckWrite tick. Returns false if sensorID is unknown or the
// sensor is not settable.
func (s *SensorStore) SetExpectedValue(sensorID uuid.UUID, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sensor, ok := s.byID[sensorID]
	if !ok {
		s.logger.Debug().Str("sensor_id", sensorID.String()).Msg("write requested for unknown sensor")
		return false
	}

	if !sensor.Settable {
		s.logger.Warn().Str("sensor_id", sensorID.String()).Msg("write requested for non-settable sensor")
		return false
	}

	sensor.ExpectedValue = value
	sensor.WriteRetries = 0

	return true
}

// normalizeValue renders a value for equality comparison: string-normalised.
func normalizeValue(v any) string {
	if v == nil {
		return ""
	}

	return fmt.Sprintf("%v", v)
}

// CheckWrite scans for sensors with a pending write to perform or retry.
// For each sensor where ExpectedPending is false and ExpectedValue
// differs from ActualValue, it emits WriteSensorExpectedValue exactly
// once and marks the write pending. For sensors whose in-flight command
// has timed out, it retries up to the configured retry budget; beyond
// that it gives up and logs.
func (s *SensorStore) CheckWrite() {
	now := time.Now()

	s.mu.Lock()
	candidates := make([]*models.Sensor, 0)

	for _, sensor := range s.byID {
		if !sensor.Settable || sensor.ExpectedValue == nil {
			continue
		}

		if sensor.ExpectedPending {
			cmd, exists := s.commands.Get(sensor.DeviceID, models.CommandWriteSensor)
			if exists && now.After(cmd.TimeoutDeadline) {
				sensor.ExpectedPending = false
				sensor.WriteRetries++
				s.commands.Clear(sensor.DeviceID, models.CommandWriteSensor)

				s.logger.Warn().
					Str("sensor_id", sensor.SensorID.String()).
					Int("retry", sensor.WriteRetries).
					Msg("write_sensor command timed out")
			}

			continue
		}

		if normalizeValue(sensor.ActualValue) == normalizeValue(sensor.ExpectedValue) {
			continue
		}

		if sensor.WriteRetries >= s.retryBudget {
			s.logger.Error().
				Str("sensor_id", sensor.SensorID.String()).
				Msg("write_sensor retry budget exhausted, giving up")

			continue
		}

		candidates = append(candidates, sensor)
	}
	s.mu.Unlock()

	for _, sensor := range candidates {
		s.mu.Lock()
		sensor.ExpectedPending = true
		snapshot := *sensor
		s.mu.Unlock()

		s.commands.Append(sensor.DeviceID, models.CommandWriteSensor, sensor.SensorID)
		s.bus.Dispatch(eventbus.Event{Name: eventbus.WriteSensorExpectedValue, Payload: snapshot})
	}
}

// RemoveByBlock deletes every sensor belonging to blockID. Idempotent.
func (s *SensorStore) RemoveByBlock(blockID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sensor := range s.byID {
		if sensor.BlockID == blockID {
			delete(s.byID, id)
			delete(s.byIdentifier, sensorKey{deviceID: sensor.DeviceID, sensorIdentifier: sensor.SensorIdentifier})
		}
	}
}

// Reset clears every sensor record.
func (s *SensorStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[uuid.UUID]*models.Sensor)
	s.byIdentifier = make(map[sensorKey]uuid.UUID)
}
