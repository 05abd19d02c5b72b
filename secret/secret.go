// Package secret encrypts credential values so they can be kept in the
// configuration document. Encrypted values are written as "enc:" followed by
// the base64 of nonce||box.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// Prefix marks a configuration value as encrypted.
const Prefix = "enc:"

const (
	keySize   = 32
	nonceSize = 24
)

// salt is fixed so the same passphrase always yields the same key across runs.
var salt = []byte("uiharness.secret.v1")

var (
	// ErrEmptyPassphrase is returned when no passphrase is supplied.
	ErrEmptyPassphrase = errors.New("passphrase is required")

	// ErrNotEncrypted is returned when a value lacks the enc: prefix.
	ErrNotEncrypted = errors.New("value is not encrypted")

	// ErrMalformed is returned when the encoded value cannot be decoded.
	ErrMalformed = errors.New("encrypted value is malformed")

	// ErrDecrypt is returned when authentication fails, usually a wrong key.
	ErrDecrypt = errors.New("failed to decrypt value")
)

// Key is a secretbox key.
type Key [keySize]byte

// DeriveKey derives a key from a passphrase with scrypt.
func DeriveKey(passphrase string) (*Key, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	raw, err := scrypt.Key([]byte(passphrase), salt, 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	var key Key
	copy(key[:], raw)
	return &key, nil
}

// IsEncrypted reports whether value carries the enc: prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Encrypt seals plaintext and returns it in enc: form.
func Encrypt(key *Key, plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	k := [keySize]byte(*key)
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &k)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func Decrypt(key *Key, value string) (string, error) {
	if !IsEncrypted(value) {
		return "", ErrNotEncrypted
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(data) < nonceSize+secretbox.Overhead {
		return "", ErrMalformed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])

	k := [keySize]byte(*key)
	plain, ok := secretbox.Open(nil, data[nonceSize:], &nonce, &k)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
