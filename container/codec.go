package container

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/slashdevops/machinebind"
)

// Magic identifies the container format. It is the first byte sequence of
// every container.
const Magic = "MACHINEBIND"

// Frame layout offsets.
const (
	versionOffset = len(Magic)
	lengthOffset  = versionOffset + 1

	// HeaderSize is the number of bytes before the body: magic, the version
	// byte and the 8-byte little-endian body length.
	HeaderSize = lengthOffset + 8
)

// Header is the fixed-size frame that precedes the body.
type Header struct {
	Version    uint8
	BodyLength uint64
}

// Package is a decoded container: the identity it was bound to and the
// opaque payload bytes.
type Package struct {
	Identity *machinebind.Identity
	Payload  []byte
}

// body is the CBOR-encoded part of the container.
type body struct {
	Identity *machinebind.Identity `cbor:"1,keyasint"`
	Payload  []byte                `cbor:"2,keyasint"`
}

var (
	bodyEncMode = mustEncMode()
	bodyDecMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	return em
}

// mustDecMode rejects duplicate map keys. Unmarshal already rejects
// extraneous bytes after the body map inside the declared span.
func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}

	return dm
}

// Encode frames id and payload into a container tagged with version.
// version must equal id.Version(); a container whose frame and identity
// disagree could never be decoded.
func Encode(id *machinebind.Identity, payload []byte, version uint8) ([]byte, error) {
	if id == nil {
		return nil, &SerializationError{Op: "encode", Err: errors.New("nil identity")}
	}
	if id.Version() != version {
		return nil, &VersionMismatchError{Frame: version, Embedded: id.Version()}
	}

	encoded, err := bodyEncMode.Marshal(body{Identity: id, Payload: payload})
	if err != nil {
		return nil, &SerializationError{Op: "encode", Err: err}
	}

	return frame(version, encoded), nil
}

// frame prepends the header to an encoded body.
func frame(version uint8, encoded []byte) []byte {
	out := make([]byte, HeaderSize, HeaderSize+len(encoded))
	copy(out, Magic)
	out[versionOffset] = version
	binary.LittleEndian.PutUint64(out[lengthOffset:HeaderSize], uint64(len(encoded)))

	return append(out, encoded...)
}

// ReadHeader validates the fixed frame of data and returns it. It checks the
// minimum length, the magic, and that the declared body fits in data.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrTruncated, len(data), HeaderSize)
	}

	if string(data[:versionOffset]) != Magic {
		return Header{}, ErrUnrecognizedFormat
	}

	h := Header{
		Version:    data[versionOffset],
		BodyLength: binary.LittleEndian.Uint64(data[lengthOffset:HeaderSize]),
	}

	if available := uint64(len(data) - HeaderSize); h.BodyLength > available {
		return Header{}, fmt.Errorf("%w: header declares %d body bytes, %d present", ErrTruncated, h.BodyLength, available)
	}

	return h, nil
}

// bodySpan returns exactly the declared body bytes. Anything after them is
// not part of the container.
func bodySpan(data []byte, h Header) []byte {
	return data[HeaderSize : HeaderSize+int(h.BodyLength)]
}

// Decode parses a container and returns its identity and payload.
//
// Checks run in order: minimum length ([ErrTruncated]), magic
// ([ErrUnrecognizedFormat]), declared body length ([ErrTruncated]), body
// deserialization ([*SerializationError]) and finally agreement between the
// frame version and the identity version ([*VersionMismatchError]).
func Decode(data []byte) (*Package, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}

	var b body
	if err := bodyDecMode.Unmarshal(bodySpan(data, h), &b); err != nil {
		return nil, &SerializationError{Op: "decode", Err: err}
	}

	if err := checkIdentity(h, b.Identity); err != nil {
		return nil, err
	}

	return &Package{Identity: b.Identity, Payload: b.Payload}, nil
}

// DecodeIdentity returns the identity of a container. It accepts and
// rejects exactly the inputs [Decode] does, payload included, so a container
// that validates can always be unpacked.
func DecodeIdentity(data []byte) (*machinebind.Identity, error) {
	pkg, err := Decode(data)
	if err != nil {
		return nil, err
	}

	return pkg.Identity, nil
}

func checkIdentity(h Header, id *machinebind.Identity) error {
	if id == nil {
		return &SerializationError{Op: "decode", Err: errors.New("body has no identity")}
	}
	if id.Version() != h.Version {
		return &VersionMismatchError{Frame: h.Version, Embedded: id.Version()}
	}

	return nil
}
