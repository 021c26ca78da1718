package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Sealed snapshots are laid out as magic | salt | nonce | AES-256-GCM ciphertext.
var magic = []byte("ROTA-ENC1")

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

var (
	// ErrPassphraseRequired is returned when opening a sealed snapshot without a passphrase.
	ErrPassphraseRequired = errors.New("backup is encrypted: passphrase required")
	// ErrDecrypt covers both a wrong passphrase and a tampered file.
	ErrDecrypt = errors.New("decrypt backup: wrong passphrase or corrupted file")
)

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// IsSealed reports whether data was produced by Seal.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// Seal encrypts plaintext under a key derived from passphrase with a fresh salt.
func Seal(plaintext []byte, passphrase string) ([]byte, error) {
	header := make([]byte, len(magic)+saltSize+nonceSize)
	copy(header, magic)
	if _, err := io.ReadFull(rand.Reader, header[len(magic):]); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	salt := header[len(magic) : len(magic)+saltSize]
	nonce := header[len(magic)+saltSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	// The header is authenticated so a swapped salt fails to open.
	out := make([]byte, len(header), len(header)+len(plaintext)+gcm.Overhead())
	copy(out, header)
	return gcm.Seal(out, nonce, plaintext, header), nil
}

// Open reverses Seal.
func Open(data []byte, passphrase string) ([]byte, error) {
	if !IsSealed(data) {
		return nil, errors.New("not an encrypted backup")
	}
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	headerLen := len(magic) + saltSize + nonceSize
	if len(data) < headerLen {
		return nil, ErrDecrypt
	}
	header := data[:headerLen]
	salt := header[len(magic) : len(magic)+saltSize]
	nonce := header[len(magic)+saltSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, data[headerLen:], header)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
