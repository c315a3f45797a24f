// Package seal encrypts payloads under a passphrase.
//
// A sealed payload is a short header followed by XChaCha20-Poly1305
// ciphertext. The key is derived from the passphrase with scrypt; the cost
// parameters and salt travel in the header, which is authenticated along
// with the ciphertext:
//
//	magic "MBSEAL" | version | log2(N) | r | p | salt (16) | nonce (24) | ciphertext
package seal

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// Magic prefixes every sealed payload.
const Magic = "MBSEAL"

const (
	formatVersion = 1

	saltSize  = 16
	nonceSize = chacha20poly1305.NonceSizeX
	keySize   = chacha20poly1305.KeySize

	paramsOffset = len(Magic) + 1
	saltOffset   = paramsOffset + 3
	nonceOffset  = saltOffset + saltSize

	// HeaderSize is the number of bytes before the ciphertext.
	HeaderSize = nonceOffset + nonceSize
)

// Default scrypt cost: N=2^16, r=8, p=1.
const (
	DefaultLogN = 16
	DefaultR    = 8
	DefaultP    = 1

	// Upper bounds on header-supplied cost, which caps key derivation at
	// 2 GiB of memory.
	maxLogN = 20
	maxR    = 16
	maxP    = 16
)

var (
	// ErrNotSealed is returned by [Open] when data does not start with [Magic].
	ErrNotSealed = errors.New("payload is not sealed")

	// ErrMalformed is returned for a sealed payload whose header is unusable.
	ErrMalformed = errors.New("malformed sealed payload")

	// ErrWrongPassphrase is returned when authentication fails, either because
	// the passphrase is wrong or the data was modified.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted payload")

	// ErrEmptyPassphrase is returned when sealing or opening with an empty
	// passphrase.
	ErrEmptyPassphrase = errors.New("passphrase is empty")
)

type options struct {
	logN, r, p uint8
}

// Option configures [Seal].
type Option func(*options)

// WithCost sets the scrypt cost parameters: N=2^logN, r and p.
func WithCost(logN, r, p uint8) Option {
	return func(o *options) {
		o.logN, o.r, o.p = logN, r, p
	}
}

// IsSealed reports whether data starts with the sealed payload magic.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, []byte(Magic))
}

// Seal encrypts plaintext under passphrase.
func Seal(plaintext, passphrase []byte, opts ...Option) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	o := options{logN: DefaultLogN, r: DefaultR, p: DefaultP}
	for _, opt := range opts {
		opt(&o)
	}
	if err := checkCost(o.logN, o.r, o.p); err != nil {
		return nil, err
	}

	header := make([]byte, HeaderSize, HeaderSize+len(plaintext)+chacha20poly1305.Overhead)
	copy(header, Magic)
	header[len(Magic)] = formatVersion
	header[paramsOffset] = o.logN
	header[paramsOffset+1] = o.r
	header[paramsOffset+2] = o.p
	if _, err := rand.Read(header[saltOffset:HeaderSize]); err != nil {
		return nil, fmt.Errorf("failed to generate salt and nonce: %w", err)
	}

	aead, err := newAEAD(passphrase, header)
	if err != nil {
		return nil, err
	}

	aad := bytes.Clone(header)

	return aead.Seal(header, aad[nonceOffset:], plaintext, aad), nil
}

// Open decrypts a payload produced by [Seal].
func Open(sealed, passphrase []byte) ([]byte, error) {
	if !IsSealed(sealed) {
		return nil, ErrNotSealed
	}
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	if len(sealed) < HeaderSize+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(sealed))
	}
	if v := sealed[len(Magic)]; v != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, v)
	}

	header := sealed[:HeaderSize]
	if err := checkCost(header[paramsOffset], header[paramsOffset+1], header[paramsOffset+2]); err != nil {
		return nil, err
	}

	aead, err := newAEAD(passphrase, header)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, header[nonceOffset:], sealed[HeaderSize:], header)
	if err != nil {
		return nil, ErrWrongPassphrase
	}

	return plaintext, nil
}

func newAEAD(passphrase, header []byte) (cipher.AEAD, error) {
	logN, r, p := header[paramsOffset], header[paramsOffset+1], header[paramsOffset+2]

	key, err := scrypt.Key(passphrase, header[saltOffset:nonceOffset], 1<<logN, int(r), int(p), keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	return aead, nil
}

func checkCost(logN, r, p uint8) error {
	if logN < 1 || logN > maxLogN || r == 0 || r > maxR || p == 0 || p > maxP {
		return fmt.Errorf("%w: scrypt cost logN=%d r=%d p=%d", ErrMalformed, logN, r, p)
	}

	return nil
}
