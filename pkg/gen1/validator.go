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

// Package gen1 implements the Shelly Gen1 payload validator and parser:
// pure functions turning raw wire payloads into structured registry
// mutations.
package gen1

import (
	"encoding/json"

	"github.com/FastyBird/shelly-connector/pkg/models"
)

// ValidationResult is the outcome of validating one payload against its
// message kind's schema.
type ValidationResult struct {
	Valid  bool
	Reason string
}

func invalid(reason string) ValidationResult {
	return ValidationResult{Valid: false, Reason: reason}
}

var valid = ValidationResult{Valid: true}

// httpStatusKeys are the documented top-level keys that qualify an
// HTTP_STATUS or HTTP_DESCRIPTION payload.
var httpStatusKeys = []string{
	"relays", "meters", "inputs", "lights", "tmp", "hum", "wifi_sta", "update", "ram_total",
}

// Validate classifies payload against the schema documented for kind.
// Validation is structural only; values are not range-checked.
func Validate(kind models.MessageKind, payload []byte) ValidationResult {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(payload, &generic); err != nil {
		return invalid("payload is not a JSON object: " + err.Error())
	}

	switch kind {
	case models.MessageCoapStatus:
		return validateCoapStatus(generic)
	case models.MessageCoapDescription:
		return validateCoapDescription(generic)
	case models.MessageHTTPShelly:
		return validateHTTPShelly(generic)
	case models.MessageHTTPStatus, models.MessageHTTPDescription:
		return validateHTTPStatusLike(generic)
	default:
		return invalid("unknown message kind")
	}
}

func validateCoapStatus(generic map[string]json.RawMessage) ValidationResult {
	raw, ok := generic["G"]
	if !ok {
		return invalid("missing top-level \"G\" array")
	}

	var triples [][]json.RawMessage
	if err := json.Unmarshal(raw, &triples); err != nil {
		return invalid("\"G\" is not an array of arrays: " + err.Error())
	}

	for _, triple := range triples {
		if len(triple) != 3 {
			return invalid("\"G\" entry is not a [channel, sensor_id, value] triple")
		}
	}

	return valid
}

type coapDescriptionBlock struct {
	I int    `json:"I"`
	D string `json:"D"`
}

type coapDescriptionSensor struct {
	I int    `json:"I"`
	T string `json:"T"`
	D string `json:"D"`
	R string `json:"R"`
	L int    `json:"L"`
	U string `json:"U"`
}

func validateCoapDescription(generic map[string]json.RawMessage) ValidationResult {
	blkRaw, ok := generic["blk"]
	if !ok {
		return invalid("missing top-level \"blk\" array")
	}

	var blocks []coapDescriptionBlock
	if err := json.Unmarshal(blkRaw, &blocks); err != nil {
		return invalid("\"blk\" does not match {I,D} schema: " + err.Error())
	}

	senRaw, ok := generic["sen"]
	if !ok {
		return invalid("missing top-level \"sen\" array")
	}

	var sensors []coapDescriptionSensor
	if err := json.Unmarshal(senRaw, &sensors); err != nil {
		return invalid("\"sen\" does not match {I,T,D,R,L,U?} schema: " + err.Error())
	}

	return valid
}

func validateHTTPShelly(generic map[string]json.RawMessage) ValidationResult {
	for _, key := range []string{"type", "mac", "fw"} {
		if _, ok := generic[key]; !ok {
			return invalid("missing required key \"" + key + "\"")
		}
	}

	return valid
}

func validateHTTPStatusLike(generic map[string]json.RawMessage) ValidationResult {
	for _, key := range httpStatusKeys {
		if _, ok := generic[key]; ok {
			return valid
		}
	}

	return invalid("no documented top-level key present")
}
