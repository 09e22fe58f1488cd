package state

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2idParams tunes the key derivation used for sealing stored values.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
}

// DefaultArgon2idParams mirrors the argon2id settings used elsewhere on the
// platform for key derivation.
var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	KeyLength:   32,
}

// sealSalt is a fixed application salt. The seal protects tokens at rest on a
// single machine against casual file reads; it is not a password store, so a
// per-install random salt would add a bootstrapping step without changing the
// threat model.
var sealSalt = []byte("sipanit-client-state-v1")

// SealedStore wraps a Store and encrypts the values of sensitive keys with
// AES-GCM before they reach the underlying storage. Reads of ciphertext that
// cannot be opened degrade to "absent" rather than erroring, so a rotated
// secret behaves like a signed-out session.
type SealedStore struct {
	inner     Store
	key       []byte
	sensitive map[string]struct{}
}

// NewSealedStore derives a sealing key from secret and wraps inner. Only the
// listed keys are sealed; everything else passes through untouched.
func NewSealedStore(inner Store, secret string, sensitiveKeys []string) *SealedStore {
	params := DefaultArgon2idParams
	key := argon2.IDKey([]byte(secret), sealSalt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	sensitive := make(map[string]struct{}, len(sensitiveKeys))
	for _, k := range sensitiveKeys {
		sensitive[k] = struct{}{}
	}
	return &SealedStore{inner: inner, key: key, sensitive: sensitive}
}

// Get implements Store.
func (s *SealedStore) Get(key string) (string, bool, error) {
	value, ok, err := s.inner.Get(key)
	if err != nil || !ok {
		return "", ok, err
	}
	if _, sealed := s.sensitive[key]; !sealed {
		return value, true, nil
	}
	plain, err := s.open(value)
	if err != nil {
		return "", false, nil
	}
	return plain, true, nil
}

// Set implements Store.
func (s *SealedStore) Set(key, value string) error {
	if _, sealed := s.sensitive[key]; sealed {
		sealedValue, err := s.seal(value)
		if err != nil {
			return err
		}
		value = sealedValue
	}
	return s.inner.Set(key, value)
}

// Delete implements Store.
func (s *SealedStore) Delete(key string) error {
	return s.inner.Delete(key)
}

// Clear implements Store.
func (s *SealedStore) Clear() error {
	return s.inner.Clear()
}

func (s *SealedStore) seal(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

func (s *SealedStore) open(sealedHex string) (string, error) {
	ciphertext, err := hex.DecodeString(sealedHex)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("sealed value too short")
	}
	nonce, actual := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plain, err := gcm.Open(nil, nonce, actual, nil)
	if err != nil {
		return "", fmt.Errorf("failed to open sealed value")
	}
	return string(plain), nil
}
