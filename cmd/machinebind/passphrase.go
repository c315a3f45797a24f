package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/slashdevops/machinebind/seal"
)

var errPassphraseRequired = errors.New("package contents are encrypted; pass --passphrase-file")

// readPassphrase reads a passphrase file, dropping trailing line endings.
func readPassphrase(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}

	pass := bytes.TrimRight(data, "\r\n")
	if len(pass) == 0 {
		return nil, fmt.Errorf("%s: %w", path, seal.ErrEmptyPassphrase)
	}

	return pass, nil
}

func sealPayload(payload []byte, passphraseFile string) ([]byte, error) {
	pass, err := readPassphrase(passphraseFile)
	if err != nil {
		return nil, err
	}
	defer clear(pass)

	return seal.Seal(payload, pass)
}

// openPayload returns payload unchanged unless it is sealed, in which case
// it is decrypted with the passphrase in passphraseFile.
func openPayload(payload []byte, passphraseFile string) ([]byte, error) {
	if !seal.IsSealed(payload) {
		return payload, nil
	}
	if passphraseFile == "" {
		return nil, errPassphraseRequired
	}

	pass, err := readPassphrase(passphraseFile)
	if err != nil {
		return nil, err
	}
	defer clear(pass)

	return seal.Open(payload, pass)
}
