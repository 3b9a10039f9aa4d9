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

package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is the root identity record for a Shelly device on the LAN.
type Device struct {
	DeviceID           uuid.UUID
	DeviceIdentifier   string
	DeviceType         string
	MAC                string
	FirmwareVersion    string
	IP                 string
	Enabled            bool
	DescriptionSource  DescriptionSource
	LastCommunicationAt time.Time
}

// Block belongs to a Device and groups related sensors (e.g. "relay/0").
type Block struct {
	BlockID          uuid.UUID
	DeviceID         uuid.UUID
	BlockIdentifier  int
	BlockDescription string
}

// Sensor belongs to a Block and represents one measurable or controllable
// quantity on a device.
type Sensor struct {
	SensorID         uuid.UUID
	BlockID          uuid.UUID
	DeviceID         uuid.UUID
	SensorIdentifier int
	SensorType       SensorType
	Description      string
	Unit             SensorUnit
	DataType         DataType
	ValueFormat      string
	ValueInvalid     string
	Queryable        bool
	Settable         bool
	TTL              time.Duration

	ActualValue     any
	ExpectedValue   any
	ValueValidTill  time.Time
	ExpectedPending bool
	WriteRetries    int
}

// Attribute belongs to a Device and carries a single device-level scalar.
type Attribute struct {
	AttributeID   uuid.UUID
	DeviceID      uuid.UUID
	AttributeType AttributeType
	Value         string
}

// Command is a transient record tracking one in-flight outbound request
// to a device, keyed by (DeviceID, Kind).
type Command struct {
	DeviceID        uuid.UUID
	Kind            CommandKind
	SentAt          time.Time
	TimeoutDeadline time.Time
	Context         any
}

// CommandKey identifies a Command uniquely.
type CommandKey struct {
	DeviceID uuid.UUID
	Kind     CommandKind
}
