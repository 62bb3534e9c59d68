package security

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

var (
	ErrInvalidKeySize = errors.New("invalid key size")
	ErrEncryption     = errors.New("encryption failed")
	ErrDecryption     = errors.New("decryption failed")
)

const (
	KeySize   = 32
	nonceSize = 24
)

// Encryptor seals and opens opaque blobs.
type Encryptor interface {
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

// NewSecretBox returns an XSalsa20-Poly1305 sealer. key must be 32 bytes.
func NewSecretBox(key []byte) (Encryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	sb := &secretBox{}
	copy(sb.key[:], key)
	return sb, nil
}

// NewSecretBoxFromPassphrase derives the key with SHA-256 so operators can
// configure an arbitrary-length secret.
func NewSecretBoxFromPassphrase(passphrase string) (Encryptor, error) {
	if passphrase == "" {
		return nil, ErrInvalidKeySize
	}
	sum := sha256.Sum256([]byte(passphrase))
	return NewSecretBox(sum[:])
}

type secretBox struct {
	key [KeySize]byte
}

// Encrypt returns nonce || box.
func (s *secretBox) Encrypt(data []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, ErrEncryption
	}
	return secretbox.Seal(nonce[:], data, &nonce, &s.key), nil
}

func (s *secretBox) Decrypt(data []byte) ([]byte, error) {
	if len(data) < nonceSize+secretbox.Overhead {
		return nil, ErrDecryption
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])

	plain, ok := secretbox.Open(nil, data[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrDecryption
	}
	return plain, nil
}
