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

// Package config provides configuration loading for the connector process.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/FastyBird/shelly-connector/pkg/logger"
)

// Duration unmarshals JSON duration strings ("60s") as well as bare
// numeric nanosecond counts, matching the rest of the stack's config
// tooling.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler for Duration.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return fmt.Errorf("invalid duration type: %T", value)
	}
}

// CoapConfig configures the Gen1 CoAP multicast client.
type CoapConfig struct {
	BindAddress       string   `json:"bind_address"`
	MulticastGroup    string   `json:"multicast_group"`
	Port              int      `json:"port"`
	DiscoveryInterval Duration `json:"discovery_interval"`
	ReadTimeout       Duration `json:"read_timeout"`
	FixDW2Payload     bool     `json:"fix_dw2_payload"`
}

// PublishConfig configures the optional downstream event sink.
type PublishConfig struct {
	NatsURL string `json:"nats_url"`
	Stream  string `json:"stream"`
}

// RegistryConfig tunes registry timeout/retry behaviour.
type RegistryConfig struct {
	DeviceLostTimeout Duration `json:"device_lost_timeout"`
	DefaultSensorTTL  Duration `json:"default_sensor_ttl"`
	CommandTimeout    Duration `json:"command_timeout"`
	WriteRetryBudget  int      `json:"write_retry_budget"`
	QueueSoftCap      int      `json:"queue_soft_cap"`
}

// Config is the top-level connector configuration.
type Config struct {
	Logging  *logger.Config `json:"logging"`
	Coap     CoapConfig     `json:"coap"`
	Publish  PublishConfig  `json:"publish"`
	Registry RegistryConfig `json:"registry"`
}

const (
	defaultBindAddress       = "0.0.0.0"
	defaultMulticastGroup    = "224.0.1.187"
	defaultPort              = 5683
	defaultDiscoveryInterval = Duration(60 * time.Second)
	defaultReadTimeout       = Duration(100 * time.Millisecond)
	defaultDeviceLostTimeout = Duration(120 * time.Second)
	defaultSensorTTL         = Duration(120 * time.Second)
	defaultCommandTimeout    = Duration(5 * time.Second)
	defaultWriteRetryBudget  = 5
	defaultQueueSoftCap      = 1024
)

// ApplyDefaults fills zero-valued fields with the connector's documented
// defaults.
func (c *Config) ApplyDefaults() {
	if c.Coap.BindAddress == "" {
		c.Coap.BindAddress = defaultBindAddress
	}

	if c.Coap.MulticastGroup == "" {
		c.Coap.MulticastGroup = defaultMulticastGroup
	}

	if c.Coap.Port == 0 {
		c.Coap.Port = defaultPort
	}

	if c.Coap.DiscoveryInterval == 0 {
		c.Coap.DiscoveryInterval = defaultDiscoveryInterval
	}

	if c.Coap.ReadTimeout == 0 {
		c.Coap.ReadTimeout = defaultReadTimeout
	}

	if c.Registry.DeviceLostTimeout == 0 {
		c.Registry.DeviceLostTimeout = defaultDeviceLostTimeout
	}

	if c.Registry.DefaultSensorTTL == 0 {
		c.Registry.DefaultSensorTTL = defaultSensorTTL
	}

	if c.Registry.CommandTimeout == 0 {
		c.Registry.CommandTimeout = defaultCommandTimeout
	}

	if c.Registry.WriteRetryBudget == 0 {
		c.Registry.WriteRetryBudget = defaultWriteRetryBudget
	}

	if c.Registry.QueueSoftCap == 0 {
		c.Registry.QueueSoftCap = defaultQueueSoftCap
	}
}
