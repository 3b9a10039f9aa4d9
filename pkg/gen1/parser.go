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
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FastyBird/shelly-connector/pkg/logger"
	"github.com/FastyBird/shelly-connector/pkg/models"
	"github.com/FastyBird/shelly-connector/pkg/registry"
)

// Canonical (block_identifier, sensor_identifier) pairs for the HTTP_STATUS
// sub-structures. Preserved bit-for-bit for compatibility with the
// Shelly Gen1 wire convention.
const (
	sensorRelayOutput = 112
	sensorMeterPower  = 111
	sensorMeterEnergy = 113
	sensorInputState  = 118
	sensorTempBlock   = 3
	sensorTempID      = 3101
	sensorHumID       = 3103
)

// Parser applies validated Gen1 payloads as registry mutations.
type Parser struct {
	registry *registry.Registry
	logger   logger.Logger
}

// NewParser builds a Parser writing into reg.
func NewParser(reg *registry.Registry, log logger.Logger) *Parser {
	return &Parser{registry: reg, logger: log.WithComponent("gen1.parser")}
}

// Parse applies payload (already validated against kind) to the registry.
// A failure in one subsection never aborts the rest: partial update is
// the norm for Shelly's bursty, overlapping frames.
func (p *Parser) Parse(deviceIdentifier, deviceType, deviceIP string, payload []byte, kind models.MessageKind) {
	switch kind {
	case models.MessageCoapDescription:
		p.parseCoapDescription(deviceIdentifier, deviceType, deviceIP, payload)
	case models.MessageCoapStatus:
		p.parseCoapStatus(deviceIdentifier, payload)
	case models.MessageHTTPShelly:
		p.parseHTTPShelly(deviceIdentifier, deviceType, deviceIP, payload)
	case models.MessageHTTPStatus, models.MessageHTTPDescription:
		p.parseHTTPStatus(deviceIdentifier, payload)
	default:
		p.logger.Error().Str("kind", string(kind)).Msg("parser invoked with unsupported message kind")
	}
}

type coapDescriptionPayload struct {
	Blk []coapDescriptionBlock  `json:"blk"`
	Sen []coapDescriptionSensor `json:"sen"`
}

func (p *Parser) parseCoapDescription(deviceIdentifier, deviceType, deviceIP string, payload []byte) {
	var decoded coapDescriptionPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		p.logger.Warn().Err(err).Msg("coap description payload failed to decode, dropping")
		return
	}

	device := p.registry.Devices.Append(registry.DeviceUpdate{
		DeviceIdentifier: deviceIdentifier,
		DeviceType:       deviceType,
		IP:               deviceIP,
		Source:           models.SourceCoap,
	})
	if device == nil {
		return
	}

	blockByIndex := make(map[int]*models.Block, len(decoded.Blk))

	for _, b := range decoded.Blk {
		block := p.registry.Blocks.Append(device.DeviceID, b.I, b.D)
		blockByIndex[b.I] = block
	}

	for _, sen := range decoded.Sen {
		block, ok := blockByIndex[sen.L]
		if !ok {
			if existing, found := p.registry.Blocks.GetByIdentifier(device.DeviceID, sen.L); found {
				block = &existing
			} else {
				p.logger.Debug().Int("block_identifier", sen.L).Msg("sensor references unknown block, skipping")
				continue
			}
		}

		sensorType := models.SensorType(sen.T)
		dataType := deriveDataType(sensorType, sen.U)

		p.registry.Sensors.Append(registry.SensorUpdate{
			BlockID:          block.BlockID,
			DeviceID:         device.DeviceID,
			SensorIdentifier: sen.I,
			SensorType:       sensorType,
			Description:      sen.D,
			Unit:             models.SensorUnit(sen.U),
			DataType:         dataType,
			ValueFormat:      sen.R,
			Queryable:        true,
			Settable:         isWritableRange(sen.R),
		})
	}
}

type statusTriple struct {
	Channel  int
	SensorID int
	Value    any
}

func (p *Parser) parseCoapStatus(deviceIdentifier string, payload []byte) {
	device, ok := p.registry.Devices.GetByIdentifier(deviceIdentifier)
	if !ok {
		p.logger.Debug().Str("device_identifier", deviceIdentifier).Msg("status frame for unknown device, skipping")
		return
	}

	p.registry.Devices.Touch(device.DeviceID)

	var decoded struct {
		G [][]json.RawMessage `json:"G"`
	}

	if err := json.Unmarshal(payload, &decoded); err != nil {
		p.logger.Warn().Err(err).Msg("coap status payload failed to decode, dropping")
		return
	}

	for _, raw := range decoded.G {
		triple, ok := decodeTriple(raw)
		if !ok {
			p.logger.Warn().Msg("status triple is malformed, skipping entry")
			continue
		}

		sensor, found := p.registry.Sensors.GetByIdentifier(device.DeviceID, triple.SensorID)
		if !found {
			p.logger.Debug().Int("sensor_identifier", triple.SensorID).Msg("status frame references unknown sensor, skipping")
			continue
		}

		value := coerceValue(sensor.DataType, triple.Value)

		ttl := sensor.TTL
		if ttl == 0 {
			ttl = 120 * time.Second
		}

		p.registry.Sensors.SetActualValue(sensor.SensorID, value, time.Now().Add(ttl))
	}
}

func decodeTriple(raw []json.RawMessage) (statusTriple, bool) {
	if len(raw) != 3 {
		return statusTriple{}, false
	}

	var channel, sensorID int
	if err := json.Unmarshal(raw[0], &channel); err != nil {
		return statusTriple{}, false
	}

	if err := json.Unmarshal(raw[1], &sensorID); err != nil {
		return statusTriple{}, false
	}

	var value any
	if err := json.Unmarshal(raw[2], &value); err != nil {
		return statusTriple{}, false
	}

	return statusTriple{Channel: channel, SensorID: sensorID, Value: value}, true
}

type httpShellyPayload struct {
	Type string `json:"type"`
	MAC  string `json:"mac"`
	FW   string `json:"fw"`
}

func (p *Parser) parseHTTPShelly(deviceIdentifier, deviceType, deviceIP string, payload []byte) {
	var decoded httpShellyPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		p.logger.Warn().Err(err).Msg("http shelly payload failed to decode, dropping")
		return
	}

	modelType := deviceType
	if decoded.Type != "" {
		modelType = decoded.Type
	}

	device := p.registry.Devices.Append(registry.DeviceUpdate{
		DeviceIdentifier: deviceIdentifier,
		DeviceType:       modelType,
		MAC:              decoded.MAC,
		FirmwareVersion:  decoded.FW,
		IP:               deviceIP,
		Source:           models.SourceHTTP,
	})
	if device == nil {
		return
	}

	if decoded.MAC != "" {
		p.registry.Attributes.SetValue(device.DeviceID, models.AttributeMACAddress, decoded.MAC)
	}

	if decoded.FW != "" {
		p.registry.Attributes.SetValue(device.DeviceID, models.AttributeFirmwareVersion, decoded.FW)
	}

	if decoded.Type != "" {
		p.registry.Attributes.SetValue(device.DeviceID, models.AttributeModel, decoded.Type)
	}
}

func (p *Parser) parseHTTPStatus(deviceIdentifier string, payload []byte) {
	device, ok := p.registry.Devices.GetByIdentifier(deviceIdentifier)
	if !ok {
		p.logger.Debug().Str("device_identifier", deviceIdentifier).Msg("http status for unknown device, skipping")
		return
	}

	p.registry.Devices.Touch(device.DeviceID)

	var decoded struct {
		Relays []struct {
			Ison bool `json:"ison"`
		} `json:"relays"`
		Meters []struct {
			Power float64 `json:"power"`
			Total float64 `json:"total"`
		} `json:"meters"`
		Inputs []struct {
			Input int `json:"input"`
		} `json:"inputs"`
		Tmp *struct {
			TC float64 `json:"tC"`
		} `json:"tmp"`
		Hum *struct {
			Value float64 `json:"value"`
		} `json:"hum"`
	}

	if err := json.Unmarshal(payload, &decoded); err != nil {
		p.logger.Warn().Err(err).Msg("http status payload failed to decode, dropping")
		return
	}

	now := time.Now()
	const defaultHTTPTTL = 120 * time.Second

	for i, relay := range decoded.Relays {
		p.applyCanonical(device.DeviceID, i, "relay", sensorRelayOutput, now, defaultHTTPTTL, canonicalOnOff(relay.Ison))
	}

	for i, meter := range decoded.Meters {
		p.applyCanonical(device.DeviceID, i, "meter", sensorMeterPower, now, defaultHTTPTTL, meter.Power)
		p.applyCanonical(device.DeviceID, i, "meter", sensorMeterEnergy, now, defaultHTTPTTL, meter.Total)
	}

	for i, input := range decoded.Inputs {
		p.applyCanonical(device.DeviceID, i, "input", sensorInputState, now, defaultHTTPTTL, input.Input != 0)
	}

	if decoded.Tmp != nil {
		p.applyCanonical(device.DeviceID, sensorTempBlock, "sensor", sensorTempID, now, defaultHTTPTTL, decoded.Tmp.TC)
	}

	if decoded.Hum != nil {
		p.applyCanonical(device.DeviceID, sensorTempBlock, "sensor", sensorHumID, now, defaultHTTPTTL, decoded.Hum.Value)
	}
}

// applyCanonical auto-vivifies the canonical block/sensor pair for an
// HTTP_STATUS sub-structure (no COAP_DESCRIPTION is guaranteed to have
// run first) and applies value as the sensor's actual value.
func (p *Parser) applyCanonical(
	deviceID uuid.UUID, blockIdentifier int, blockKind string,
	sensorIdentifier int, now time.Time, ttl time.Duration, value any,
) {
	block := p.registry.Blocks.Append(deviceID, blockIdentifier, blockKind)

	sensor, found := p.registry.Sensors.GetByIdentifier(deviceID, sensorIdentifier)
	if !found {
		sensorType, dataType, unit, description := canonicalSensorShape(sensorIdentifier)

		sensor = *p.registry.Sensors.Append(registry.SensorUpdate{
			BlockID:          block.BlockID,
			DeviceID:         deviceID,
			SensorIdentifier: sensorIdentifier,
			SensorType:       sensorType,
			Description:      description,
			Unit:             unit,
			DataType:         dataType,
			Queryable:        true,
		})
	}

	p.registry.Sensors.SetActualValue(sensor.SensorID, value, now.Add(ttl))
}

// canonicalSensorShape returns the structural description for one of the
// fixed HTTP_STATUS sensor identifiers.
func canonicalSensorShape(sensorIdentifier int) (models.SensorType, models.DataType, models.SensorUnit, string) {
	switch sensorIdentifier {
	case sensorRelayOutput:
		return models.SensorTypeState, models.DataTypeEnum, models.UnitNone, "output"
	case sensorMeterPower:
		return models.SensorTypeState, models.DataTypeNumeric, models.UnitWatt, "power"
	case sensorMeterEnergy:
		return models.SensorTypeState, models.DataTypeNumeric, models.UnitWattHour, "energy"
	case sensorInputState:
		return models.SensorTypeBoolean, models.DataTypeBoolean, models.UnitNone, "input"
	case sensorTempID:
		return models.SensorTypeTemperature, models.DataTypeNumeric, models.UnitCelsius, "temperature"
	case sensorHumID:
		return models.SensorTypeState, models.DataTypeNumeric, models.UnitPercent, "humidity"
	default:
		return models.SensorTypeState, models.DataTypeNumeric, models.UnitNone, "sensor"
	}
}

func deriveDataType(sensorType models.SensorType, unit string) models.DataType {
	switch sensorType {
	case models.SensorTypeBoolean:
		return models.DataTypeBoolean
	case models.SensorTypeCurrent:
		return models.DataTypeInteger
	case models.SensorTypeEventValue, models.SensorTypeEventCount:
		return models.DataTypeEnum
	case models.SensorTypeState:
		if unit != "" {
			return models.DataTypeNumeric
		}

		return models.DataTypeString
	default:
		return models.DataTypeNumeric
	}
}

// isWritableRange reports whether a Gen1 "R" range descriptor documents a
// writeable range, e.g. "0/1". Any descriptor containing a slash counts as
// writable; one without a slash (e.g. "open") or an empty descriptor is
// read-only.
func isWritableRange(r string) bool {
	return strings.Contains(r, "/")
}

func coerceValue(dataType models.DataType, raw any) any {
	switch dataType {
	case models.DataTypeBoolean:
		return coerceBool(raw)
	case models.DataTypeInteger:
		return coerceInt(raw)
	case models.DataTypeEnum:
		return normalizeEnum(raw)
	default:
		return raw
	}
}

func coerceBool(raw any) any {
	switch v := raw.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v == "1" || strings.EqualFold(v, "true")
	default:
		return raw
	}
}

func coerceInt(raw any) any {
	switch v := raw.(type) {
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}

		return raw
	default:
		return raw
	}
}

var enumAliases = map[string]string{
	"1":  models.ValueOn,
	"0":  models.ValueOff,
	"S":  models.ValueSingle,
	"D":  models.ValueDouble,
	"T":  models.ValueTriple,
	"L":  models.ValueLong,
}

func normalizeEnum(raw any) any {
	s, ok := raw.(string)
	if !ok {
		return raw
	}

	if alias, ok := enumAliases[s]; ok {
		return alias
	}

	return strings.ToLower(s)
}

func canonicalOnOff(on bool) string {
	if on {
		return models.ValueOn
	}

	return models.ValueOff
}
