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

// Package coap implements the Shelly Gen1 CoAP-over-multicast client: the
// discovery transmitter and the option-decoding receiver.
package coap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Gen1 CoAP response codes this connector understands.
const (
	CodeStatus      byte = 30
	CodeDescription byte = 69
)

// globalDevidDelta is the accumulated option delta that carries the
// Shelly-specific Global Devid value.
const globalDevidDelta = 3332

// proxyMagic is the 4-byte "prxy" marker some Shelly firmwares prepend
// when relaying a frame through a proxy, followed by 4 bytes of origin
// metadata this connector does not need.
var proxyMagic = []byte("prxy")

var (
	// ErrFrameTooShort is returned when data is too small to hold a CoAP header.
	ErrFrameTooShort = errors.New("coap: frame shorter than header")
	// ErrTruncatedToken is returned when the token length claims more bytes than are present.
	ErrTruncatedToken = errors.New("coap: truncated token")
	// ErrTruncatedOptions is returned when an option header or its extension/value runs past the buffer end.
	ErrTruncatedOptions = errors.New("coap: truncated options")
	// ErrUnsupportedCode is returned for CoAP codes other than 30 (status) and 69 (description).
	ErrUnsupportedCode = errors.New("coap: unsupported response code")
	// ErrPayloadEncoding is returned when the trailing payload cannot be decoded as cp1252.
	ErrPayloadEncoding = errors.New("coap: payload is not valid cp1252")
)

// Frame is the decoded content of one Gen1 CoAP status/description datagram.
type Frame struct {
	Code             byte
	MessageID        uint16
	Token            []byte
	DeviceType       string
	DeviceIdentifier string
	Payload          []byte
}

// Options controls optional decode-time behaviour.
type Options struct {
	// FixDW2Payload applies the documented ",," / "][" firmware
	// workaround when true.
	FixDW2Payload bool
}

// Decode parses data as a Gen1 CoAP datagram: it skips an optional proxy
// wrapper, reads the header and token, walks the options
// accumulating deltas to find the Global Devid option, and decodes the
// remaining bytes as the cp1252 payload.
func Decode(data []byte, opts Options) (*Frame, error) {
	pos := 0

	if len(data) >= 8 && bytes.Equal(data[0:4], proxyMagic) {
		pos = 8
	}

	if len(data) < pos+4 {
		return nil, ErrFrameTooShort
	}

	header := data[pos]
	tkl := int(header & 0x0F)
	code := data[pos+1]
	messageID := binary.BigEndian.Uint16(data[pos+2 : pos+4])
	pos += 4

	if len(data) < pos+tkl {
		return nil, ErrTruncatedToken
	}

	token := append([]byte(nil), data[pos:pos+tkl]...)
	pos += tkl

	if code != CodeStatus && code != CodeDescription {
		return nil, ErrUnsupportedCode
	}

	deviceType, deviceIdentifier, payloadStart, err := walkOptions(data, pos)
	if err != nil {
		return nil, err
	}

	payload, err := decodeCP1252(data[payloadStart:])
	if err != nil {
		return nil, err
	}

	if opts.FixDW2Payload && len(payload) > 0 {
		payload = strings.ReplaceAll(payload, ",,", ",")
		payload = strings.ReplaceAll(payload, "][", "],[")
	}

	return &Frame{
		Code:             code,
		MessageID:        messageID,
		Token:            token,
		DeviceType:       strings.ToLower(deviceType),
		DeviceIdentifier: strings.ToLower(deviceIdentifier),
		Payload:          []byte(payload),
	}, nil
}

// walkOptions scans the CoAP options starting at pos, accumulating deltas
// until the 0xFF payload marker. It returns the Global Devid's type and
// identifier fields (empty if the option was absent) and the offset of
// the payload that follows the marker.
func walkOptions(data []byte, pos int) (deviceType, deviceIdentifier string, payloadStart int, err error) {
	totalDelta := 0

	for {
		if pos >= len(data) {
			return "", "", 0, ErrTruncatedOptions
		}

		b := data[pos]
		if b == 0xFF {
			pos++
			break
		}

		pos++

		delta := int(b >> 4)
		length := int(b & 0x0F)

		delta, pos, err = extendOptionField(data, pos, delta)
		if err != nil {
			return "", "", 0, err
		}

		length, pos, err = extendOptionField(data, pos, length)
		if err != nil {
			return "", "", 0, err
		}

		totalDelta += delta

		if pos+length > len(data) {
			return "", "", 0, ErrTruncatedOptions
		}

		value := data[pos : pos+length]
		pos += length

		if totalDelta == globalDevidDelta {
			parts := strings.SplitN(string(value), "#", 3)
			if len(parts) >= 2 {
				deviceType = parts[0]
				deviceIdentifier = parts[1]
			}
		}
	}

	return deviceType, deviceIdentifier, pos, nil
}

// extendOptionField resolves a CoAP option delta/length nibble into its
// real value, consuming 0, 1 or 2 extension bytes per the 13/14 escape
// rule.
func extendOptionField(data []byte, pos, nibble int) (value, newPos int, err error) {
	switch nibble {
	case 13:
		if pos >= len(data) {
			return 0, 0, ErrTruncatedOptions
		}

		return int(data[pos]) + 13, pos + 1, nil
	case 14:
		if pos+1 >= len(data) {
			return 0, 0, ErrTruncatedOptions
		}

		return int(data[pos])<<8 | int(data[pos+1]) + 269, pos + 2, nil
	default:
		return nibble, pos, nil
	}
}

func decodeCP1252(raw []byte) (string, error) {
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", ErrPayloadEncoding
	}

	return string(decoded), nil
}

// Encode reconstructs the wire bytes for frame: a bare CoAP header (no
// token unless frame.Token is set), a single Global Devid option at
// delta 3332, the 0xFF payload marker, and the raw payload. This is the
// inverse of Decode for the single-option frames Shelly Gen1 devices
// actually send, and is used to check round-trip consistency.
func Encode(frame *Frame, devidExtra string) []byte {
	var buf bytes.Buffer

	header := byte(0x50) | byte(len(frame.Token)&0x0F) // version 1, type NON
	buf.WriteByte(header)
	buf.WriteByte(frame.Code)

	var idBuf [2]byte
	binary.BigEndian.PutUint16(idBuf[:], frame.MessageID)
	buf.Write(idBuf[:])
	buf.Write(frame.Token)

	devid := frame.DeviceType + "#" + frame.DeviceIdentifier + "#" + devidExtra
	buf.Write(encodeOption(globalDevidDelta, []byte(devid)))

	buf.WriteByte(0xFF)
	buf.Write(frame.Payload)

	return buf.Bytes()
}

// encodeOption renders one CoAP option with the given accumulated delta
// (assumed to be the first and only option, so delta == raw delta) and
// value, applying the 13/14 extension rule in reverse.
func encodeOption(delta int, value []byte) []byte {
	var buf bytes.Buffer

	deltaNibble, deltaExt := splitOptionField(delta)
	lengthNibble, lengthExt := splitOptionField(len(value))

	buf.WriteByte(byte(deltaNibble<<4) | byte(lengthNibble))
	buf.Write(deltaExt)
	buf.Write(lengthExt)
	buf.Write(value)

	return buf.Bytes()
}

func splitOptionField(v int) (nibble int, ext []byte) {
	switch {
	case v < 13:
		return v, nil
	case v < 269:
		return 13, []byte{byte(v - 13)}
	default:
		ev := v - 269
		return 14, []byte{byte(ev >> 8), byte(ev)}
	}
}
