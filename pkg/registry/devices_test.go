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

func newDeviceStore(t *testing.T) *DeviceStore {
	t.Helper()
	return NewDeviceStore(eventbus.New(logger.NewTestLogger()), 120*time.Second, logger.NewTestLogger())
}

func TestDeviceStore_AppendCreatesOnFirstCall(t *testing.T) {
	s := newDeviceStore(t)

	device := s.Append(DeviceUpdate{DeviceIdentifier: "dev1", DeviceType: "shsw-1", Source: models.SourceManual})
	require.NotNil(t, device)
	assert.Equal(t, "shsw-1", device.DeviceType)
	assert.Equal(t, models.SourceManual, device.DescriptionSource)
}

func TestDeviceStore_HigherPrecedenceSourceOverwrites(t *testing.T) {
	s := newDeviceStore(t)

	s.Append(DeviceUpdate{DeviceIdentifier: "dev1", DeviceType: "manual-type", Source: models.SourceManual})
	s.Append(DeviceUpdate{DeviceIdentifier: "dev1", DeviceType: "coap-type", Source: models.SourceCoap})

	device, ok := s.GetByIdentifier("dev1")
	require.True(t, ok)
	assert.Equal(t, "coap-type", device.DeviceType)
	assert.Equal(t, models.SourceCoap, device.DescriptionSource)
}

func TestDeviceStore_LowerPrecedenceSourceNeverOverwritesFields(t *testing.T) {
	s := newDeviceStore(t)

	s.Append(DeviceUpdate{DeviceIdentifier: "dev1", DeviceType: "http-type", MAC: "AA", Source: models.SourceHTTP})
	s.Append(DeviceUpdate{DeviceIdentifier: "dev1", DeviceType: "coap-type", Source: models.SourceCoap})

	device, ok := s.GetByIdentifier("dev1")
	require.True(t, ok)
	assert.Equal(t, "http-type", device.DeviceType)
	assert.Equal(t, "AA", device.MAC)
	assert.Equal(t, models.SourceHTTP, device.DescriptionSource)
}

func TestDeviceStore_EqualSourceReapplicationOverwrites(t *testing.T) {
	s := newDeviceStore(t)

	s.Append(DeviceUpdate{DeviceIdentifier: "dev1", DeviceType: "shsw-1", Source: models.SourceCoap})
	s.Append(DeviceUpdate{DeviceIdentifier: "dev1", DeviceType: "shsw-1-updated", Source: models.SourceCoap})

	device, ok := s.GetByIdentifier("dev1")
	require.True(t, ok)
	assert.Equal(t, "shsw-1-updated", device.DeviceType)
}

func TestDeviceStore_AppendRejectsEmptyIdentifier(t *testing.T) {
	s := newDeviceStore(t)

	device := s.Append(DeviceUpdate{DeviceIdentifier: ""})
	assert.Nil(t, device)
}

func TestDeviceStore_RemoveIsIdempotent(t *testing.T) {
	s := newDeviceStore(t)

	device := s.Append(DeviceUpdate{DeviceIdentifier: "dev1"})
	s.Remove(device.DeviceID)
	s.Remove(device.DeviceID)

	_, ok := s.GetByID(device.DeviceID)
	assert.False(t, ok)
}
