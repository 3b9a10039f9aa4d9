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

package coap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_StatusFrame(t *testing.T) {
	frame := &Frame{
		Code:             CodeStatus,
		MessageID:        42,
		DeviceType:       "shsw-1",
		DeviceIdentifier: "abc123",
		Payload:          []byte(`{"G":[[0,112,1]]}`),
	}

	wire := Encode(frame, "")

	decoded, err := Decode(wire, Options{})
	require.NoError(t, err)

	assert.Equal(t, CodeStatus, decoded.Code)
	assert.Equal(t, uint16(42), decoded.MessageID)
	assert.Equal(t, "shsw-1", decoded.DeviceType)
	assert.Equal(t, "abc123", decoded.DeviceIdentifier)
	assert.Equal(t, `{"G":[[0,112,1]]}`, string(decoded.Payload))
}

func TestDecode_DescriptionFrame(t *testing.T) {
	frame := &Frame{
		Code:             CodeDescription,
		MessageID:        7,
		DeviceType:       "shsw-25",
		DeviceIdentifier: "ffeeaa",
		Payload:          []byte(`{"blk":[{"I":1,"D":"relay0"}],"sen":[]}`),
	}

	wire := Encode(frame, "extra")

	decoded, err := Decode(wire, Options{})
	require.NoError(t, err)

	assert.Equal(t, "shsw-25", decoded.DeviceType)
	assert.Equal(t, "ffeeaa", decoded.DeviceIdentifier)
}

func TestDecode_RoundTripIsSelfConsistent(t *testing.T) {
	original := &Frame{
		Code:             CodeStatus,
		MessageID:        1000,
		DeviceType:       "shplg-s",
		DeviceIdentifier: "112233",
		Payload:          []byte(`{"G":[[0,111,12.5]]}`),
	}

	wire := Encode(original, "ign")
	decodedOnce, err := Decode(wire, Options{})
	require.NoError(t, err)

	reencoded := Encode(decodedOnce, "ign")
	decodedTwice, err := Decode(reencoded, Options{})
	require.NoError(t, err)

	assert.Equal(t, decodedOnce, decodedTwice)
	assert.Equal(t, wire, reencoded)
}

func TestDecode_UnsupportedCode(t *testing.T) {
	frame := &Frame{Code: 1, DeviceType: "x", DeviceIdentifier: "y", Payload: []byte("{}")}
	wire := Encode(frame, "")

	_, err := Decode(wire, Options{})
	assert.ErrorIs(t, err, ErrUnsupportedCode)
}

func TestDecode_TooShort(t *testing.T) {
	_, err := Decode([]byte{0x40}, Options{})
	assert.ErrorIs(t, err, ErrFrameTooShort)
}

func TestDecode_ProxyWrapper(t *testing.T) {
	frame := &Frame{
		Code:             CodeStatus,
		DeviceType:       "shsw-1",
		DeviceIdentifier: "aabbcc",
		Payload:          []byte(`{"G":[]}`),
	}

	inner := Encode(frame, "")
	wrapped := append([]byte("prxy"), append(make([]byte, 4), inner...)...)

	decoded, err := Decode(wrapped, Options{})
	require.NoError(t, err)
	assert.Equal(t, "aabbcc", decoded.DeviceIdentifier)
}

func TestDecode_DW2PayloadFix(t *testing.T) {
	frame := &Frame{
		Code:             CodeStatus,
		DeviceType:       "shsw-21",
		DeviceIdentifier: "dw2dev",
		Payload:          []byte(`{"G":[[0,112,1],,[0,113,2]][0,111,3]}`),
	}

	wire := Encode(frame, "")

	decoded, err := Decode(wire, Options{FixDW2Payload: true})
	require.NoError(t, err)

	assert.NotContains(t, string(decoded.Payload), ",,")
}

func TestDecode_DW2PayloadFixSkippedWhenEmpty(t *testing.T) {
	frame := &Frame{
		Code:             CodeStatus,
		DeviceType:       "shsw-21",
		DeviceIdentifier: "dw2dev",
		Payload:          []byte{},
	}

	wire := Encode(frame, "")

	decoded, err := Decode(wire, Options{FixDW2Payload: true})
	require.NoError(t, err)
	assert.Empty(t, decoded.Payload)
}

func TestSplitOptionField_Extensions(t *testing.T) {
	nibble, ext := splitOptionField(5)
	assert.Equal(t, 5, nibble)
	assert.Empty(t, ext)

	nibble, ext = splitOptionField(100)
	assert.Equal(t, 13, nibble)
	assert.Equal(t, []byte{100 - 13}, ext)

	nibble, ext = splitOptionField(1000)
	assert.Equal(t, 14, nibble)
	assert.Len(t, ext, 2)
}
