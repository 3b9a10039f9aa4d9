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

// Package models holds the value-shaped records and enums that make up the
// connector's data model (device/block/sensor/attribute/command).
package models

// DescriptionSource is the provenance of a Device record, ordered by
// increasing richness. A higher-precedence source must never be
// overwritten by a lower one.
type DescriptionSource int

const (
	SourceManual DescriptionSource = iota
	SourceCoap
	SourceHTTP
)

func (s DescriptionSource) String() string {
	switch s {
	case SourceManual:
		return "manual"
	case SourceCoap:
		return "coap"
	case SourceHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// Precedence returns true if s is allowed to overwrite fields currently
// set by other. Equal sources are allowed to overwrite (idempotent
// re-application of the same source).
func (s DescriptionSource) Precedence(other DescriptionSource) bool {
	return s >= other
}

// SensorType is the Shelly Gen1 two/three-letter sensor tag.
type SensorType string

const (
	SensorTypeState      SensorType = "S"
	SensorTypeTemperature SensorType = "T"
	SensorTypeCurrent    SensorType = "I"
	SensorTypeLuminosity SensorType = "L"
	SensorTypeAlarm      SensorType = "A"
	SensorTypeBoolean    SensorType = "B"
	SensorTypeConcentration SensorType = "C"
	SensorTypeEvent      SensorType = "E"
	SensorTypeEventValue SensorType = "EV"
	SensorTypeEventCount SensorType = "EVC"
)

// SensorUnit is an enumerated measurement unit. An empty SensorUnit
// means "unitless".
type SensorUnit string

const (
	UnitNone    SensorUnit = ""
	UnitWatt    SensorUnit = "W"
	UnitWattHour SensorUnit = "Wh"
	UnitVolt    SensorUnit = "V"
	UnitAmpere  SensorUnit = "A"
	UnitCelsius SensorUnit = "°C"
	UnitFahrenheit SensorUnit = "°F"
	UnitKelvin  SensorUnit = "K"
	UnitPercent SensorUnit = "%"
	UnitPPM     SensorUnit = "ppm"
	UnitLux     SensorUnit = "lux"
	UnitSeconds SensorUnit = "s"
)

// DataType is the structural type a sensor's actual/expected value is
// decoded into.
type DataType string

const (
	DataTypeString  DataType = "string"
	DataTypeNumeric DataType = "numeric"
	DataTypeInteger DataType = "integer"
	DataTypeBoolean DataType = "boolean"
	DataTypeEnum    DataType = "enum"
)

// AttributeType enumerates device-level scalar attributes.
type AttributeType string

const (
	AttributeState           AttributeType = "state"
	AttributeIPAddress       AttributeType = "ip_address"
	AttributeMACAddress      AttributeType = "mac_address"
	AttributeFirmwareVersion AttributeType = "firmware_version"
	AttributeModel           AttributeType = "model"
)

// Device connectivity states, carried as the value of the STATE attribute.
const (
	StateConnected    = "connected"
	StateLost         = "lost"
	StateDisconnected = "disconnected"
	StateUnknown      = "unknown"
)

// CommandKind enumerates the outbound command types tracked for
// timeout/coalescing purposes.
type CommandKind string

const (
	CommandDescribe    CommandKind = "describe"
	CommandWriteSensor CommandKind = "write_sensor"
	CommandGetState    CommandKind = "get_state"
)

// MessageKind tags an inbound frame by wire protocol and payload shape.
type MessageKind string

const (
	MessageCoapStatus       MessageKind = "coap_status"
	MessageCoapDescription  MessageKind = "coap_description"
	MessageHTTPShelly       MessageKind = "http_shelly"
	MessageHTTPStatus       MessageKind = "http_status"
	MessageHTTPDescription  MessageKind = "http_description"
)

// ClientType tags the transport a client implementation speaks. Only
// ClientCoap is implemented in full; the others are acknowledged
// structurally.
type ClientType string

const (
	ClientCoap ClientType = "coap"
	ClientHTTP ClientType = "http"
	ClientMQTT ClientType = "mqtt"
)

// Canonical normalised enumerated sensor values (switch/button semantics).
const (
	ValueOn       = "on"
	ValueOff      = "off"
	ValuePressed  = "pressed"
	ValueReleased = "released"
	ValueHold     = "hold"
	ValueSingle   = "single"
	ValueDouble   = "double"
	ValueTriple   = "triple"
	ValueLong     = "long"
)
