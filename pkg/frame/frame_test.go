package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViscaRoundTrip(t *testing.T) {
	msgs := []Visca{
		{Type: ViscaCommand, CameraID: 3, Sequence: 1, Data: []byte{0x81, 0x01, 0x06, 0x01, 0x0A, 0x0A, 0x03, 0x01, 0xFF}},
		{Type: ViscaResponse, CameraID: 0xFF, Sequence: 0xBEEF, Data: []byte{0x90, 0x41, 0xFF}},
		{Type: ViscaInquiry, CameraID: 0, Sequence: 0, Data: []byte{0x82, 0x09, 0xFF}},
		{Type: ViscaError, CameraID: 7, Sequence: 0xFFFF, Data: []byte{0x90, 0x60, 0x02, 0xFF}},
	}

	for _, m := range msgs {
		out, err := Decode(m.Encode())
		require.NoError(t, err)
		require.Equal(t, m, out)
	}
}

func TestNdiTallyRoundTrip(t *testing.T) {
	msgs := []NdiTally{
		{Source: "TestCam", State: TallyProgram, Timestamp: 1234567890},
		{Source: "A", State: TallyOff, Timestamp: 0},
		{Source: "Studio B (PTZ 2)", State: TallyProgramPreview, Timestamp: 0xFFFFFFFF},
	}

	for _, m := range msgs {
		out, err := Decode(m.Encode())
		require.NoError(t, err)
		require.Equal(t, m, out)
	}
}

func TestViscaEncodeLayout(t *testing.T) {
	// pan command for camera 3, first sequence number
	m := Visca{Type: ViscaCommand, CameraID: 3, Sequence: 1, Data: []byte{0x81, 0x01, 0x06, 0x01, 0x0A, 0x0A, 0x03, 0x01, 0xFF}}
	assert.Equal(t, []byte{
		0x01, 0x01, 0x03, 0x00, 0x01, 0x00, 0x09,
		0x81, 0x01, 0x06, 0x01, 0x0A, 0x0A, 0x03, 0x01, 0xFF,
	}, m.Encode())

	// ack response carrying the request's sequence
	m = Visca{Type: ViscaResponse, CameraID: 3, Sequence: 1, Data: []byte{0x90, 0x41, 0xFF}}
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x00, 0x01, 0x00, 0x03, 0x90, 0x41, 0xFF}, m.Encode())
}

func TestNdiTallyDecodeVector(t *testing.T) {
	b := []byte{0x02, 0x01, 0x07, 0x49, 0x96, 0x02, 0xD2, 'T', 'e', 's', 't', 'C', 'a', 'm'}

	msg, err := Decode(b)
	require.NoError(t, err)

	m, ok := msg.(NdiTally)
	require.True(t, ok)
	assert.Equal(t, "TestCam", m.Source)
	assert.Equal(t, TallyProgram, m.State)
	assert.Equal(t, uint32(1234567890), m.Timestamp)
}

func TestDecodeTruncated(t *testing.T) {
	for _, m := range []Message{
		Visca{Type: ViscaCommand, CameraID: 3, Sequence: 1, Data: []byte{0x81, 0x01, 0xFF}},
		NdiTally{Source: "TestCam", State: TallyPreview, Timestamp: 42},
	} {
		full := m.Encode()
		for k := 0; k < len(full); k++ {
			_, err := Decode(full[:k])
			assert.ErrorIs(t, err, ErrTruncated, "prefix of %d bytes", k)
		}
	}
}

func TestDecodeDeclaredLengthShort(t *testing.T) {
	// declares length=9, carries 2 payload bytes
	b := []byte{0x01, 0x01, 0x03, 0x00, 0x01, 0x00, 0x09, 0x81, 0x01}
	_, err := Decode(b)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeUnknownTag(t *testing.T) {
	for _, tag := range []byte{0x00, 0x03, 0x7F, 0xFF} {
		b := []byte{tag, 0, 0, 0, 0, 0, 0}
		_, err := Decode(b)
		assert.ErrorIs(t, err, ErrUnknownTag)
	}
}

func TestDecodeUnknownValues(t *testing.T) {
	// out of range visca type and tally state decode structurally
	b := Visca{Type: ViscaType(0x42), CameraID: 1, Sequence: 2, Data: []byte{0x81, 0xFF}}.Encode()
	msg, err := Decode(b)
	require.NoError(t, err)
	assert.False(t, msg.(Visca).Type.Known())

	b = NdiTally{Source: "X", State: TallyState(0x09), Timestamp: 1}.Encode()
	msg, err = Decode(b)
	require.NoError(t, err)
	assert.False(t, msg.(NdiTally).State.Known())
}

func TestEncodeClampsLongSource(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}

	b := NdiTally{Source: string(long), State: TallyOff}.Encode()
	assert.Len(t, b, 7+255)

	msg, err := Decode(b)
	require.NoError(t, err)
	assert.Len(t, msg.(NdiTally).Source, 255)
}

func TestViscaPayloadBorrows(t *testing.T) {
	b := Visca{Type: ViscaCommand, CameraID: 1, Sequence: 1, Data: []byte{0x81, 0xFF}}.Encode()
	msg, err := Decode(b)
	require.NoError(t, err)

	// decode borrows into the input buffer, no copy
	m := msg.(Visca)
	b[7] = 0x82
	assert.Equal(t, byte(0x82), m.Data[0])
}
