package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slashdevops/machinebind"
)

func testIdentity(version uint8) *machinebind.Identity {
	return machinebind.NewIdentity(version, machinebind.Observables{
		Username:          "alice",
		NetworkAddresses:  []string{"00:11:22:33:44:55"},
		MachineID:         "4c4c4544003957108052b4c04f384833",
		StorageIDs:        []string{"/dev/sda1", "/dev/sda2"},
		CPUDescription:    "Intel(R) Xeon(R)_GenuineIntel_16cores",
		MotherboardSerial: "PF2ABCDE",
	})
}

func TestEncodeLayout(t *testing.T) {
	data, err := Encode(testIdentity(3), []byte("payload"), 3)
	require.NoError(t, err)

	assert.Equal(t, Magic, string(data[:len(Magic)]))
	assert.Equal(t, byte(3), data[len(Magic)])

	declared := binary.LittleEndian.Uint64(data[len(Magic)+1 : HeaderSize])
	assert.Equal(t, uint64(len(data)-HeaderSize), declared)
}

func TestEncodeDeterministic(t *testing.T) {
	a, err := Encode(testIdentity(1), []byte{1, 2, 3}, 1)
	require.NoError(t, err)
	b, err := Encode(testIdentity(1), []byte{1, 2, 3}, 1)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestEncodeRejects(t *testing.T) {
	_, err := Encode(nil, []byte("x"), 1)
	var serErr *SerializationError
	require.ErrorAs(t, err, &serErr)
	assert.Equal(t, "encode", serErr.Op)

	_, err = Encode(testIdentity(2), []byte("x"), 1)
	var vErr *VersionMismatchError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, uint8(1), vErr.Frame)
	assert.Equal(t, uint8(2), vErr.Embedded)
}

func TestDecodeRoundTrip(t *testing.T) {
	id := testIdentity(1)
	payload := []byte("the payload")

	data, err := Encode(id, payload, 1)
	require.NoError(t, err)

	pkg, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, pkg.Identity.Equal(id))
	assert.Equal(t, payload, pkg.Payload)

	again, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, again.Identity.Equal(pkg.Identity))
	assert.Equal(t, pkg.Payload, again.Payload)
}

func TestDecodeEmptyPayload(t *testing.T) {
	data, err := Encode(testIdentity(1), nil, 1)
	require.NoError(t, err)

	pkg, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, pkg.Payload)
}

func TestDecodePayloadIsIndependentOfInput(t *testing.T) {
	data, err := Encode(testIdentity(1), []byte("abc"), 1)
	require.NoError(t, err)

	pkg, err := Decode(data)
	require.NoError(t, err)

	for i := range data {
		data[i] = 0
	}
	assert.Equal(t, []byte("abc"), pkg.Payload)
}

func TestDecodeStructuralFailures(t *testing.T) {
	valid, err := Encode(testIdentity(1), []byte("payload"), 1)
	require.NoError(t, err)

	badMagic := bytes.Clone(valid)
	badMagic[0] = 'X'

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, ErrTruncated},
		{"short header", valid[:HeaderSize-1], ErrTruncated},
		{"header only", valid[:HeaderSize], ErrTruncated},
		{"body cut short", valid[:len(valid)-1], ErrTruncated},
		{"bad magic", badMagic, ErrUnrecognizedFormat},
		{"short and wrong magic", []byte("nope"), ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = ReadHeader(tt.data)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeHugeDeclaredLength(t *testing.T) {
	data := frame(1, []byte{0xa0})
	binary.LittleEndian.PutUint64(data[lengthOffset:HeaderSize], ^uint64(0))

	_, err := Decode(data)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeIgnoresBytesAfterBody(t *testing.T) {
	data, err := Encode(testIdentity(1), []byte("payload"), 1)
	require.NoError(t, err)

	pkg, err := Decode(append(data, "trailing garbage"...))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), pkg.Payload)
}

func TestDecodeRejectsExtraBytesInsideBody(t *testing.T) {
	encoded, err := bodyEncMode.Marshal(body{Identity: testIdentity(1), Payload: []byte("x")})
	require.NoError(t, err)

	_, err = Decode(frame(1, append(encoded, 0x00)))
	var serErr *SerializationError
	require.ErrorAs(t, err, &serErr)
	assert.Equal(t, "decode", serErr.Op)
}

func TestDecodeCorruptBody(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"not cbor", []byte{0xff, 0xfe, 0xfd}},
		{"empty map", []byte{0xa0}},
		{"wrong type", []byte{0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(frame(1, tt.body))
			var serErr *SerializationError
			assert.ErrorAs(t, err, &serErr)
		})
	}
}

func TestDecodeTamperedDigest(t *testing.T) {
	id := testIdentity(1)
	data, err := Encode(id, []byte("payload"), 1)
	require.NoError(t, err)

	at := bytes.Index(data, []byte(id.Digest()))
	require.Positive(t, at)
	if data[at] == 'a' {
		data[at] = 'b'
	} else {
		data[at] = 'a'
	}

	_, err = Decode(data)
	var serErr *SerializationError
	require.ErrorAs(t, err, &serErr)
	assert.True(t, errors.Is(err, machinebind.ErrDigestMismatch))
}

func TestDecodeVersionMismatch(t *testing.T) {
	encoded, err := bodyEncMode.Marshal(body{Identity: testIdentity(2), Payload: []byte("x")})
	require.NoError(t, err)

	_, err = Decode(frame(1, encoded))
	var vErr *VersionMismatchError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, uint8(1), vErr.Frame)
	assert.Equal(t, uint8(2), vErr.Embedded)

	_, err = DecodeIdentity(frame(1, encoded))
	assert.ErrorAs(t, err, &vErr)
}

func TestDecodeIdentityRejectsWhatDecodeRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload any
	}{
		{"text payload", "not bytes"},
		{"integer payload", 42},
		{"map payload", map[int]int{1: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := bodyEncMode.Marshal(map[int]any{1: testIdentity(1), 2: tt.payload})
			require.NoError(t, err)
			data := frame(1, encoded)

			_, decErr := Decode(data)
			_, idErr := DecodeIdentity(data)

			var serErr *SerializationError
			require.ErrorAs(t, decErr, &serErr)
			require.ErrorAs(t, idErr, &serErr)
			assert.Equal(t, "decode", serErr.Op)
		})
	}
}

func TestDecodeIdentity(t *testing.T) {
	id := testIdentity(7)
	data, err := Encode(id, bytes.Repeat([]byte{0x42}, 1<<16), 7)
	require.NoError(t, err)

	got, err := DecodeIdentity(data)
	require.NoError(t, err)
	assert.True(t, got.Equal(id))
}

func TestReadHeader(t *testing.T) {
	data, err := Encode(testIdentity(9), []byte("payload"), 9)
	require.NoError(t, err)

	h, err := ReadHeader(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(9), h.Version)
	assert.Equal(t, uint64(len(data)-HeaderSize), h.BodyLength)
}

func TestErrorMessages(t *testing.T) {
	serErr := &SerializationError{Op: "decode", Err: errors.New("boom")}
	assert.Equal(t, "container body decode: boom", serErr.Error())
	assert.ErrorIs(t, serErr, serErr.Err)

	vErr := &VersionMismatchError{Frame: 1, Embedded: 2}
	assert.Equal(t, "container version mismatch: frame v1, identity v2", vErr.Error())
}
