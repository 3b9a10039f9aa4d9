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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FastyBird/shelly-connector/pkg/eventbus"
	"github.com/FastyBird/shelly-connector/pkg/logger"
	"github.com/FastyBird/shelly-connector/pkg/models"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	log := logger.NewTestLogger()
	bus := eventbus.New(log)

	return New(bus, Config{
		DeviceLostTimeout: 50 * time.Millisecond,
		DefaultSensorTTL:  time.Minute,
		CommandTimeout:    20 * time.Millisecond,
		WriteRetryBudget:  2,
	}, log)
}

func TestRegistry_RemoveDeviceCascades(t *testing.T) {
	reg := newTestRegistry(t)

	device := reg.Devices.Append(DeviceUpdate{DeviceIdentifier: "dev1", Source: models.SourceCoap})
	block := reg.Blocks.Append(device.DeviceID, 1, "relay0")
	sensor := reg.Sensors.Append(SensorUpdate{
		BlockID: block.BlockID, DeviceID: device.DeviceID, SensorIdentifier: 112,
		SensorType: models.SensorTypeState, DataType: models.DataTypeBoolean, Settable: true,
	})
	reg.Attributes.SetValue(device.DeviceID, models.AttributeState, models.StateConnected)
	reg.Commands.Append(device.DeviceID, models.CommandWriteSensor, nil)

	reg.RemoveDevice(device.DeviceID)

	_, ok := reg.Devices.GetByID(device.DeviceID)
	assert.False(t, ok)

	_, ok = reg.Blocks.GetByID(block.BlockID)
	assert.False(t, ok)

	_, ok = reg.Sensors.GetByID(sensor.SensorID)
	assert.False(t, ok)

	assert.Empty(t, reg.Attributes.GetAllByDevice(device.DeviceID))

	_, ok = reg.Commands.Get(device.DeviceID, models.CommandWriteSensor)
	assert.False(t, ok)
}

func TestRegistry_RemoveDeviceIsIdempotent(t *testing.T) {
	reg := newTestRegistry(t)

	assert.NotPanics(t, func() {
		reg.RemoveDevice(deviceIDForTest())
	})
}

func TestRegistry_CheckTimeoutTransitionsStateAttribute(t *testing.T) {
	reg := newTestRegistry(t)

	device := reg.Devices.Append(DeviceUpdate{DeviceIdentifier: "dev1", Source: models.SourceCoap})
	reg.Attributes.SetValue(device.DeviceID, models.AttributeState, models.StateConnected)

	time.Sleep(75 * time.Millisecond)

	reg.CheckTimeout()

	value, ok := reg.Attributes.GetValue(device.DeviceID, models.AttributeState)
	require.True(t, ok)
	assert.Equal(t, models.StateLost, value)

	reg.Devices.Touch(device.DeviceID)
	reg.CheckTimeout()

	value, ok = reg.Attributes.GetValue(device.DeviceID, models.AttributeState)
	require.True(t, ok)
	assert.Equal(t, models.StateConnected, value)
}

func TestRegistry_CheckWriteEmitsOncePerTickUntilAcked(t *testing.T) {
	reg := newTestRegistry(t)

	device := reg.Devices.Append(DeviceUpdate{DeviceIdentifier: "dev1", Source: models.SourceCoap})
	block := reg.Blocks.Append(device.DeviceID, 1, "relay0")
	sensor := reg.Sensors.Append(SensorUpdate{
		BlockID: block.BlockID, DeviceID: device.DeviceID, SensorIdentifier: 112,
		SensorType: models.SensorTypeState, DataType: models.DataTypeBoolean, Settable: true,
	})

	var dispatches int
	reg.bus.Subscribe(eventbus.WriteSensorExpectedValue, func(eventbus.Event) { dispatches++ })

	ok := reg.Sensors.SetExpectedValue(sensor.SensorID, models.ValueOn)
	require.True(t, ok)

	reg.CheckWrite()
	reg.CheckWrite()
	reg.CheckWrite()

	assert.Equal(t, 1, dispatches)

	reg.Sensors.SetActualValue(sensor.SensorID, models.ValueOn, time.Now().Add(time.Minute))

	updated, _ := reg.Sensors.GetByID(sensor.SensorID)
	assert.False(t, updated.ExpectedPending)
}

func TestRegistry_CheckWriteRetriesThenGivesUp(t *testing.T) {
	reg := newTestRegistry(t)

	device := reg.Devices.Append(DeviceUpdate{DeviceIdentifier: "dev1", Source: models.SourceCoap})
	block := reg.Blocks.Append(device.DeviceID, 1, "relay0")
	sensor := reg.Sensors.Append(SensorUpdate{
		BlockID: block.BlockID, DeviceID: device.DeviceID, SensorIdentifier: 112,
		SensorType: models.SensorTypeState, DataType: models.DataTypeBoolean, Settable: true,
	})

	reg.Sensors.SetExpectedValue(sensor.SensorID, models.ValueOn)

	var dispatches int
	reg.bus.Subscribe(eventbus.WriteSensorExpectedValue, func(eventbus.Event) { dispatches++ })

	for i := 0; i < 10; i++ {
		reg.CheckWrite()
		time.Sleep(25 * time.Millisecond)
	}

	assert.LessOrEqual(t, dispatches, 2)

	updated, _ := reg.Sensors.GetByID(sensor.SensorID)
	assert.GreaterOrEqual(t, updated.WriteRetries, 2)
}

func TestRegistry_Reset(t *testing.T) {
	reg := newTestRegistry(t)

	reg.Devices.Append(DeviceUpdate{DeviceIdentifier: "dev1"})
	reg.Reset()

	assert.Empty(t, reg.Devices.GetAll())
}

func deviceIDForTest() (id [16]byte) { return id }
