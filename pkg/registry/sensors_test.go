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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FastyBird/shelly-connector/pkg/eventbus"
	"github.com/FastyBird/shelly-connector/pkg/logger"
	"github.com/FastyBird/shelly-connector/pkg/models"
)

func newSensorStore(t *testing.T) (*SensorStore, *eventbus.Bus) {
	t.Helper()

	log := logger.NewTestLogger()
	bus := eventbus.New(log)
	commands := NewCommandStore(20*time.Millisecond, log)

	return NewSensorStore(bus, commands, 3, time.Minute, log), bus
}

func TestSensorStore_SetActualValueOnlyDispatchesOnChange(t *testing.T) {
	s, bus := newSensorStore(t)

	sensor := s.Append(SensorUpdate{DeviceID: uuid.New(), BlockID: uuid.New(), SensorIdentifier: 112, DataType: models.DataTypeBoolean})

	var dispatches int
	bus.Subscribe(eventbus.SensorActualValueUpdated, func(eventbus.Event) { dispatches++ })

	s.SetActualValue(sensor.SensorID, true, time.Now().Add(time.Minute))
	s.SetActualValue(sensor.SensorID, true, time.Now().Add(time.Minute))
	s.SetActualValue(sensor.SensorID, false, time.Now().Add(time.Minute))

	assert.Equal(t, 2, dispatches)
}

func TestSensorStore_SetActualValueUnknownSensorReturnsFalse(t *testing.T) {
	s, _ := newSensorStore(t)

	ok := s.SetActualValue(uuid.New(), "x", time.Now())
	assert.False(t, ok)
}

func TestSensorStore_SetExpectedValueRejectsNonSettable(t *testing.T) {
	s, _ := newSensorStore(t)

	sensor := s.Append(SensorUpdate{DeviceID: uuid.New(), BlockID: uuid.New(), SensorIdentifier: 1, Settable: false})

	ok := s.SetExpectedValue(sensor.SensorID, "on")
	assert.False(t, ok)
}

func TestSensorStore_SetExpectedValueRejectsUnknownSensor(t *testing.T) {
	s, _ := newSensorStore(t)

	ok := s.SetExpectedValue(uuid.New(), "on")
	assert.False(t, ok)
}

func TestSensorStore_CheckWriteClearsPendingWhenActualCatchesUp(t *testing.T) {
	s, _ := newSensorStore(t)

	deviceID := uuid.New()
	sensor := s.Append(SensorUpdate{DeviceID: deviceID, BlockID: uuid.New(), SensorIdentifier: 112, Settable: true})

	require.True(t, s.SetExpectedValue(sensor.SensorID, "on"))

	s.CheckWrite()

	updated, _ := s.GetByID(sensor.SensorID)
	assert.True(t, updated.ExpectedPending)

	s.SetActualValue(sensor.SensorID, "on", time.Now().Add(time.Minute))

	updated, _ = s.GetByID(sensor.SensorID)
	assert.False(t, updated.ExpectedPending)
	assert.Equal(t, 0, updated.WriteRetries)
}

func TestSensorStore_RemoveByBlockIsIdempotent(t *testing.T) {
	s, _ := newSensorStore(t)

	blockID := uuid.New()
	sensor := s.Append(SensorUpdate{DeviceID: uuid.New(), BlockID: blockID, SensorIdentifier: 1})

	s.RemoveByBlock(blockID)
	s.RemoveByBlock(blockID)

	_, ok := s.GetByID(sensor.SensorID)
	assert.False(t, ok)
}
