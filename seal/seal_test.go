package seal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheap keeps key derivation fast in tests.
var cheap = WithCost(10, 8, 1)

func TestSealOpenRoundTrip(t *testing.T) {
	for _, plaintext := range [][]byte{
		[]byte("payload bytes"),
		{},
		bytes.Repeat([]byte{0x1f, 0x8b}, 10000),
	} {
		sealed, err := Seal(plaintext, []byte("correct horse"), cheap)
		require.NoError(t, err)

		assert.True(t, IsSealed(sealed))
		assert.Len(t, sealed, HeaderSize+len(plaintext)+16)

		got, err := Open(sealed, []byte("correct horse"))
		require.NoError(t, err)
		assert.Equal(t, len(plaintext), len(got))
		assert.True(t, bytes.Equal(plaintext, got))
	}
}

func TestSealDefaultCost(t *testing.T) {
	sealed, err := Seal([]byte("x"), []byte("pw"))
	require.NoError(t, err)

	assert.Equal(t, []byte{DefaultLogN, DefaultR, DefaultP}, sealed[paramsOffset:saltOffset])
}

func TestSealIsRandomized(t *testing.T) {
	a, err := Seal([]byte("same"), []byte("pw"), cheap)
	require.NoError(t, err)
	b, err := Seal([]byte("same"), []byte("pw"), cheap)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, err := Seal([]byte("secret"), []byte("right"), cheap)
	require.NoError(t, err)

	_, err = Open(sealed, []byte("wrong"))
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestOpenTampered(t *testing.T) {
	tests := []struct {
		name string
		at   func(n int) int
	}{
		{"salt", func(int) int { return saltOffset }},
		{"nonce", func(int) int { return nonceOffset }},
		{"ciphertext", func(n int) int { return n - 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := Seal([]byte("secret"), []byte("pw"), cheap)
			require.NoError(t, err)

			sealed[tt.at(len(sealed))] ^= 0x01

			_, err = Open(sealed, []byte("pw"))
			assert.ErrorIs(t, err, ErrWrongPassphrase)
		})
	}
}

func TestOpenRejects(t *testing.T) {
	valid, err := Seal([]byte("secret"), []byte("pw"), cheap)
	require.NoError(t, err)

	withByte := func(i int, b byte) []byte {
		out := bytes.Clone(valid)
		out[i] = b
		return out
	}

	tests := []struct {
		name       string
		data       []byte
		passphrase string
		want       error
	}{
		{"gzip payload", []byte{0x1f, 0x8b, 0x08, 0x00}, "pw", ErrNotSealed},
		{"empty passphrase", valid, "", ErrEmptyPassphrase},
		{"short", valid[:HeaderSize], "pw", ErrMalformed},
		{"unknown version", withByte(len(Magic), 9), "pw", ErrMalformed},
		{"excessive cost", withByte(paramsOffset, 40), "pw", ErrMalformed},
		{"zero r", withByte(paramsOffset+1, 0), "pw", ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.data, []byte(tt.passphrase))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSealRejects(t *testing.T) {
	_, err := Seal([]byte("x"), nil)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)

	_, err = Seal([]byte("x"), []byte("pw"), WithCost(0, 8, 1))
	assert.ErrorIs(t, err, ErrMalformed)
}
