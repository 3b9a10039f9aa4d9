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

package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON_AcceptsDurationString(t *testing.T) {
	var d Duration

	require.NoError(t, json.Unmarshal([]byte(`"60s"`), &d))
	assert.Equal(t, Duration(60*time.Second), d)
}

func TestDuration_UnmarshalJSON_AcceptsNumericNanoseconds(t *testing.T) {
	var d Duration

	require.NoError(t, json.Unmarshal([]byte(`100000000`), &d))
	assert.Equal(t, Duration(100*time.Millisecond), d)
}

func TestDuration_UnmarshalJSON_RejectsInvalidString(t *testing.T) {
	var d Duration

	assert.Error(t, json.Unmarshal([]byte(`"not-a-duration"`), &d))
}

func TestDuration_UnmarshalJSON_RejectsWrongType(t *testing.T) {
	var d Duration

	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestConfig_ApplyDefaults_FillsOnlyZeroFields(t *testing.T) {
	cfg := Config{
		Coap: CoapConfig{
			Port: 9999,
		},
		Registry: RegistryConfig{
			WriteRetryBudget: 7,
		},
	}

	cfg.ApplyDefaults()

	assert.Equal(t, defaultBindAddress, cfg.Coap.BindAddress)
	assert.Equal(t, defaultMulticastGroup, cfg.Coap.MulticastGroup)
	assert.Equal(t, 9999, cfg.Coap.Port)
	assert.Equal(t, defaultDiscoveryInterval, cfg.Coap.DiscoveryInterval)
	assert.Equal(t, defaultReadTimeout, cfg.Coap.ReadTimeout)

	assert.Equal(t, defaultDeviceLostTimeout, cfg.Registry.DeviceLostTimeout)
	assert.Equal(t, defaultSensorTTL, cfg.Registry.DefaultSensorTTL)
	assert.Equal(t, defaultCommandTimeout, cfg.Registry.CommandTimeout)
	assert.Equal(t, 7, cfg.Registry.WriteRetryBudget)
	assert.Equal(t, defaultQueueSoftCap, cfg.Registry.QueueSoftCap)
}

func TestConfig_ApplyDefaults_IsIdempotent(t *testing.T) {
	var cfg Config

	cfg.ApplyDefaults()
	first := cfg

	cfg.ApplyDefaults()

	assert.Equal(t, first, cfg)
}

func TestConfig_UnmarshalsDurationStringsFromJSON(t *testing.T) {
	raw := `{
		"coap": {"discovery_interval": "30s", "read_timeout": "250ms"},
		"registry": {"device_lost_timeout": "90s", "default_sensor_ttl": "90s", "command_timeout": "2s"}
	}`

	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))

	assert.Equal(t, Duration(30*time.Second), cfg.Coap.DiscoveryInterval)
	assert.Equal(t, Duration(250*time.Millisecond), cfg.Coap.ReadTimeout)
	assert.Equal(t, Duration(90*time.Second), cfg.Registry.DeviceLostTimeout)
	assert.Equal(t, Duration(90*time.Second), cfg.Registry.DefaultSensorTTL)
	assert.Equal(t, Duration(2*time.Second), cfg.Registry.CommandTimeout)
}
