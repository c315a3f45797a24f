package machinebind

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Observables is one snapshot of the host-identifying signals used to build
// an [Identity]. An empty string or nil slice means the signal was absent.
type Observables struct {
	Username          string   `json:"username"`
	NetworkAddresses  []string `json:"network_addresses"`
	MachineID         string   `json:"machine_id,omitempty"`
	StorageIDs        []string `json:"storage_ids"`
	CPUDescription    string   `json:"cpu_description"`
	MotherboardSerial string   `json:"motherboard_serial,omitempty"`
}

// Identity is an immutable machine fingerprint tagged with a format version.
//
// Create one with [NewIdentity] or [Provider.Identity]; the digest is always
// recomputed from the other fields at construction time.
type Identity struct {
	fields  Observables
	digest  string
	version uint8
}

// NewIdentity builds an identity from a set of observables. The slices in obs
// are copied, so later changes to obs do not affect the identity.
func NewIdentity(version uint8, obs Observables) *Identity {
	id := &Identity{
		version: version,
		fields: Observables{
			Username:          obs.Username,
			NetworkAddresses:  slices.Clone(obs.NetworkAddresses),
			MachineID:         obs.MachineID,
			StorageIDs:        slices.Clone(obs.StorageIDs),
			CPUDescription:    obs.CPUDescription,
			MotherboardSerial: obs.MotherboardSerial,
		},
	}
	id.digest = computeDigest(version, id.fields)

	return id
}

// Version returns the format version the identity was created for.
func (id *Identity) Version() uint8 { return id.version }

// Username returns the OS user name observed at creation time.
func (id *Identity) Username() string { return id.fields.Username }

// NetworkAddresses returns the hardware network addresses in enumeration order.
func (id *Identity) NetworkAddresses() []string { return slices.Clone(id.fields.NetworkAddresses) }

// MachineID returns the platform machine identifier and whether it was present.
func (id *Identity) MachineID() (string, bool) {
	return id.fields.MachineID, id.fields.MachineID != ""
}

// StorageIDs returns the storage device names in OS enumeration order.
func (id *Identity) StorageIDs() []string { return slices.Clone(id.fields.StorageIDs) }

// CPUDescription returns the combined CPU brand, vendor and core count.
func (id *Identity) CPUDescription() string { return id.fields.CPUDescription }

// MotherboardSerial returns the board serial and whether it was present.
func (id *Identity) MotherboardSerial() (string, bool) {
	return id.fields.MotherboardSerial, id.fields.MotherboardSerial != ""
}

// Digest returns the hex SHA-256 fingerprint of the identity.
func (id *Identity) Digest() string { return id.digest }

// Observables returns a copy of the raw fields the identity was built from.
func (id *Identity) Observables() Observables {
	obs := id.fields
	obs.NetworkAddresses = slices.Clone(obs.NetworkAddresses)
	obs.StorageIDs = slices.Clone(obs.StorageIDs)

	return obs
}

// Equal reports whether two identities are structurally equal: every field,
// including the digest and the username, must match.
func (id *Identity) Equal(other *Identity) bool {
	if id == nil || other == nil {
		return id == other
	}

	return id.version == other.version &&
		id.digest == other.digest &&
		id.fields.Username == other.fields.Username &&
		id.fields.MachineID == other.fields.MachineID &&
		id.fields.CPUDescription == other.fields.CPUDescription &&
		id.fields.MotherboardSerial == other.fields.MotherboardSerial &&
		slices.Equal(id.fields.NetworkAddresses, other.fields.NetworkAddresses) &&
		slices.Equal(id.fields.StorageIDs, other.fields.StorageIDs)
}

// MatchesDigest reports whether digest equals the identity's digest.
func (id *Identity) MatchesDigest(digest string) bool {
	return id != nil && id.digest == digest
}

// String returns a short description suitable for logs.
func (id *Identity) String() string {
	if id == nil {
		return "identity(nil)"
	}

	return fmt.Sprintf("identity(v%d, %s)", id.version, id.digest)
}

// computeDigest hashes the identity fields in a fixed order. Multi-valued
// fields keep their observed order; absent optional fields add no segment.
func computeDigest(version uint8, f Observables) string {
	segments := []string{
		"v:" + strconv.Itoa(int(version)),
		"mac:" + strings.Join(f.NetworkAddresses, "_"),
	}
	if f.MachineID != "" {
		segments = append(segments, "machine:"+f.MachineID)
	}
	segments = append(segments,
		"disk:"+strings.Join(f.StorageIDs, "_"),
		"cpu:"+f.CPUDescription,
	)
	if f.MotherboardSerial != "" {
		segments = append(segments, "mb:"+f.MotherboardSerial)
	}

	hash := sha256.Sum256([]byte(strings.Join(segments, "|")))

	return hex.EncodeToString(hash[:])
}

// identityWire is the CBOR form of an Identity. Optional fields are encoded
// as null when absent.
type identityWire struct {
	Version           uint8    `cbor:"1,keyasint"`
	Username          string   `cbor:"2,keyasint"`
	NetworkAddresses  []string `cbor:"3,keyasint"`
	MachineID         *string  `cbor:"4,keyasint"`
	StorageIDs        []string `cbor:"5,keyasint"`
	CPUDescription    string   `cbor:"6,keyasint"`
	MotherboardSerial *string  `cbor:"7,keyasint"`
	Digest            string   `cbor:"8,keyasint"`
}

var (
	wireEncMode = mustEncMode()
	wireDecMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}

	return dm
}

// MarshalCBOR implements [cbor.Marshaler].
func (id *Identity) MarshalCBOR() ([]byte, error) {
	w := identityWire{
		Version:          id.version,
		Username:         id.fields.Username,
		NetworkAddresses: id.fields.NetworkAddresses,
		StorageIDs:       id.fields.StorageIDs,
		CPUDescription:   id.fields.CPUDescription,
		Digest:           id.digest,
	}
	if v, ok := id.MachineID(); ok {
		w.MachineID = &v
	}
	if v, ok := id.MotherboardSerial(); ok {
		w.MotherboardSerial = &v
	}

	return wireEncMode.Marshal(w)
}

// UnmarshalCBOR implements [cbor.Unmarshaler]. The digest is recomputed and
// must agree with the stored one.
func (id *Identity) UnmarshalCBOR(data []byte) error {
	var w identityWire
	if err := wireDecMode.Unmarshal(data, &w); err != nil {
		return err
	}

	obs := Observables{
		Username:         w.Username,
		NetworkAddresses: w.NetworkAddresses,
		StorageIDs:       w.StorageIDs,
		CPUDescription:   w.CPUDescription,
	}
	if w.MachineID != nil {
		obs.MachineID = *w.MachineID
	}
	if w.MotherboardSerial != nil {
		obs.MotherboardSerial = *w.MotherboardSerial
	}

	restored := NewIdentity(w.Version, obs)
	if restored.digest != w.Digest {
		return fmt.Errorf("%w: stored %q, computed %q", ErrDigestMismatch, w.Digest, restored.digest)
	}

	*id = *restored

	return nil
}
