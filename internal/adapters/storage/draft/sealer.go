package draft

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrUnseal is returned when sealed data was not produced with this key.
var ErrUnseal = errors.New("sealed data failed authentication")

// Sealer encrypts small secrets with NaCl secretbox under a fixed key.
type Sealer struct {
	key [32]byte
}

// NewSealer creates a sealer. A nil key generates a random one, which means
// drafts do not survive a restart.
// PRE: key is nil or exactly 32 bytes
func NewSealer(key []byte) (*Sealer, error) {
	s := &Sealer{}
	if key == nil {
		if _, err := io.ReadFull(rand.Reader, s.key[:]); err != nil {
			return nil, fmt.Errorf("generate draft key: %w", err)
		}
		return s, nil
	}
	if len(key) != len(s.key) {
		return nil, fmt.Errorf("draft key must be %d bytes, got %d", len(s.key), len(key))
	}
	copy(s.key[:], key)
	return s, nil
}

// Seal encrypts plaintext with a fresh random nonce prepended.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

// Open decrypts data produced by Seal.
// POST: Returns ErrUnseal for tampered, truncated or foreign data
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrUnseal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	out, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrUnseal
	}
	return out, nil
}
