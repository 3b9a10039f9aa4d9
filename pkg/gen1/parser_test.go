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

package gen1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FastyBird/shelly-connector/pkg/eventbus"
	"github.com/FastyBird/shelly-connector/pkg/logger"
	"github.com/FastyBird/shelly-connector/pkg/models"
	"github.com/FastyBird/shelly-connector/pkg/registry"
)

func newTestParser(t *testing.T) (*Parser, *registry.Registry) {
	t.Helper()

	log := logger.NewTestLogger()
	bus := eventbus.New(log)
	reg := registry.New(bus, registry.Config{
		DeviceLostTimeout: 120 * time.Second,
		DefaultSensorTTL:  120 * time.Second,
		CommandTimeout:    5 * time.Second,
		WriteRetryBudget:  5,
	}, log)

	return NewParser(reg, log), reg
}

func TestParse_CoapDescriptionThenStatus(t *testing.T) {
	parser, reg := newTestParser(t)

	description := []byte(`{
		"blk": [{"I":1,"D":"relay0"}],
		"sen": [{"I":112,"T":"S","D":"output","R":"0/1","L":1,"U":""}]
	}`)

	parser.Parse("abc123", "shsw-1", "192.168.1.10", description, models.MessageCoapDescription)

	device, ok := reg.Devices.GetByIdentifier("abc123")
	require.True(t, ok)
	assert.Equal(t, models.SourceCoap, device.DescriptionSource)

	sensor, ok := reg.Sensors.GetByIdentifier(device.DeviceID, 112)
	require.True(t, ok)
	assert.True(t, sensor.Settable)
	assert.Equal(t, models.DataTypeString, sensor.DataType)

	status := []byte(`{"G":[[0,112,1]]}`)
	parser.Parse("abc123", "", "", status, models.MessageCoapStatus)

	sensor, ok = reg.Sensors.GetByIdentifier(device.DeviceID, 112)
	require.True(t, ok)
	assert.Equal(t, float64(1), sensor.ActualValue)
}

func TestParse_CoapStatus_UnknownDeviceIsSkippedNotErrored(t *testing.T) {
	parser, _ := newTestParser(t)

	assert.NotPanics(t, func() {
		parser.Parse("unknown", "", "", []byte(`{"G":[[0,112,1]]}`), models.MessageCoapStatus)
	})
}

func TestParse_CoapStatus_IsIdempotentAndOnlyDispatchesOnChange(t *testing.T) {
	parser, reg := newTestParser(t)

	parser.Parse("abc123", "shsw-1", "", []byte(`{
		"blk": [{"I":1,"D":"relay0"}],
		"sen": [{"I":112,"T":"S","D":"output","R":"0/1","L":1,"U":""}]
	}`), models.MessageCoapDescription)

	device, _ := reg.Devices.GetByIdentifier("abc123")

	parser.Parse("abc123", "", "", []byte(`{"G":[[0,112,1]]}`), models.MessageCoapStatus)
	first, _ := reg.Sensors.GetByIdentifier(device.DeviceID, 112)

	parser.Parse("abc123", "", "", []byte(`{"G":[[0,112,1]]}`), models.MessageCoapStatus)
	second, _ := reg.Sensors.GetByIdentifier(device.DeviceID, 112)

	assert.Equal(t, first.ActualValue, second.ActualValue)
}

func TestParse_HTTPShelly(t *testing.T) {
	parser, reg := newTestParser(t)

	parser.Parse("abc123", "", "192.168.1.20", []byte(`{"type":"SHSW-1","mac":"AABBCCDDEEFF","fw":"1.0"}`), models.MessageHTTPShelly)

	device, ok := reg.Devices.GetByIdentifier("abc123")
	require.True(t, ok)
	assert.Equal(t, models.SourceHTTP, device.DescriptionSource)
	assert.Equal(t, "SHSW-1", device.DeviceType)

	mac, ok := reg.Attributes.GetValue(device.DeviceID, models.AttributeMACAddress)
	require.True(t, ok)
	assert.Equal(t, "AABBCCDDEEFF", mac)
}

func TestParse_HTTPStatus_AutoVivifiesCanonicalSensors(t *testing.T) {
	parser, reg := newTestParser(t)

	parser.Parse("abc123", "", "", []byte(`{"type":"SHSW-1","mac":"AA","fw":"1.0"}`), models.MessageHTTPShelly)

	device, _ := reg.Devices.GetByIdentifier("abc123")

	parser.Parse("abc123", "", "", []byte(`{"relays":[{"ison":true}],"meters":[{"power":12.5,"total":99}]}`), models.MessageHTTPStatus)

	relay, ok := reg.Sensors.GetByIdentifier(device.DeviceID, sensorRelayOutput)
	require.True(t, ok)
	assert.Equal(t, models.ValueOn, relay.ActualValue)

	power, ok := reg.Sensors.GetByIdentifier(device.DeviceID, sensorMeterPower)
	require.True(t, ok)
	assert.InDelta(t, 12.5, power.ActualValue, 0.0001)
}

func TestIsWritableRange(t *testing.T) {
	assert.True(t, isWritableRange("0/1"))
	assert.False(t, isWritableRange("open"))
	assert.False(t, isWritableRange(""))
}

func TestNormalizeEnum(t *testing.T) {
	assert.Equal(t, models.ValueSingle, normalizeEnum("S"))
	assert.Equal(t, models.ValueOn, normalizeEnum("1"))
	assert.Equal(t, "weird", normalizeEnum("WEIRD"))
}
