// Package frame implements the wire format shared by the two gateway peers.
// Every SRT datagram carries exactly one frame: a fixed 7 byte header whose
// first byte is the kind tag, followed by a variable payload.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Kind - wire tag, first byte of every frame.
type Kind byte

const (
	KindVisca    Kind = 0x01
	KindNdiTally Kind = 0x02
)

// ViscaType - inner VISCA subtype, not to be confused with the wire Kind.
type ViscaType byte

const (
	ViscaCommand  ViscaType = 0x01
	ViscaResponse ViscaType = 0x02
	ViscaInquiry  ViscaType = 0x03
	ViscaError    ViscaType = 0xFF
)

func (t ViscaType) Known() bool {
	switch t {
	case ViscaCommand, ViscaResponse, ViscaInquiry, ViscaError:
		return true
	}
	return false
}

func (t ViscaType) String() string {
	switch t {
	case ViscaCommand:
		return "command"
	case ViscaResponse:
		return "response"
	case ViscaInquiry:
		return "inquiry"
	case ViscaError:
		return "error"
	}
	return fmt.Sprintf("unknown(0x%02X)", byte(t))
}

// TallyState - on-air state of an NDI source.
type TallyState byte

const (
	TallyOff            TallyState = 0x00
	TallyProgram        TallyState = 0x01
	TallyPreview        TallyState = 0x02
	TallyProgramPreview TallyState = 0x03
)

func (s TallyState) Known() bool { return s <= TallyProgramPreview }

func (s TallyState) String() string {
	switch s {
	case TallyOff:
		return "off"
	case TallyProgram:
		return "program"
	case TallyPreview:
		return "preview"
	case TallyProgramPreview:
		return "program+preview"
	}
	return fmt.Sprintf("unknown(0x%02X)", byte(s))
}

const headerSize = 7

// maximum source name carried by a tally frame (name_length is one byte)
const maxSourceName = 255

var (
	ErrTruncated  = errors.New("frame: truncated")
	ErrUnknownTag = errors.New("frame: unknown protocol tag")
)

// Message is the closed set of frame variants.
type Message interface {
	Kind() Kind
	Encode() []byte
}

// Visca - a VISCA byte string in transit between a controller and a camera.
//
//	[0]    tag = 0x01
//	[1]    visca type
//	[2]    camera id
//	[3:5]  sequence (BE)
//	[5:7]  payload length (BE)
//	[7:]   payload
type Visca struct {
	Type     ViscaType
	CameraID byte
	Sequence uint16
	Data     []byte
}

func (m Visca) Kind() Kind { return KindVisca }

func (m Visca) Encode() []byte {
	b := make([]byte, headerSize+len(m.Data))
	b[0] = byte(KindVisca)
	b[1] = byte(m.Type)
	b[2] = m.CameraID
	binary.BigEndian.PutUint16(b[3:], m.Sequence)
	binary.BigEndian.PutUint16(b[5:], uint16(len(m.Data)))
	copy(b[headerSize:], m.Data)
	return b
}

// NdiTally - tally state notification for a single NDI source.
//
//	[0]    tag = 0x02
//	[1]    state
//	[2]    name length
//	[3:7]  timestamp (BE)
//	[7:]   source name (UTF-8, no NUL)
type NdiTally struct {
	Source    string
	State     TallyState
	Timestamp uint32
}

func (m NdiTally) Kind() Kind { return KindNdiTally }

func (m NdiTally) Encode() []byte {
	name := m.Source
	if len(name) > maxSourceName {
		name = name[:maxSourceName]
	}
	b := make([]byte, headerSize+len(name))
	b[0] = byte(KindNdiTally)
	b[1] = byte(m.State)
	b[2] = byte(len(name))
	binary.BigEndian.PutUint32(b[3:], m.Timestamp)
	copy(b[headerSize:], name)
	return b
}

// Decode parses a single frame. The returned Visca message borrows its
// payload from b, the caller must not reuse the buffer while the message is
// alive. Out of range state and visca type values decode structurally, the
// caller decides whether to report them (Known on the field).
func Decode(b []byte) (Message, error) {
	if len(b) < headerSize {
		return nil, fmt.Errorf("%w: %d of %d header bytes", ErrTruncated, len(b), headerSize)
	}

	switch Kind(b[0]) {
	case KindVisca:
		n := int(binary.BigEndian.Uint16(b[5:]))
		if len(b) < headerSize+n {
			return nil, fmt.Errorf("%w: payload %d of %d bytes", ErrTruncated, len(b)-headerSize, n)
		}
		return Visca{
			Type:     ViscaType(b[1]),
			CameraID: b[2],
			Sequence: binary.BigEndian.Uint16(b[3:]),
			Data:     b[headerSize : headerSize+n],
		}, nil

	case KindNdiTally:
		n := int(b[2])
		if len(b) < headerSize+n {
			return nil, fmt.Errorf("%w: name %d of %d bytes", ErrTruncated, len(b)-headerSize, n)
		}
		return NdiTally{
			Source:    string(b[headerSize : headerSize+n]),
			State:     TallyState(b[1]),
			Timestamp: binary.BigEndian.Uint32(b[3:]),
		}, nil
	}

	return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownTag, b[0])
}
