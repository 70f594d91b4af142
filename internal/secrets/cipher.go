package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/PolarWolf314/kaitiaki/internal/envelope"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
)

// SymmetricKeySize is the AES-256 key length in bytes.
const SymmetricKeySize = 32

// CreateSymmetricKey generates a new random symmetric key.
func CreateSymmetricKey() ([]byte, error) {
	symKey := make([]byte, SymmetricKeySize)
	if _, err := rand.Read(symKey); err != nil {
		return nil, err
	}

	return symKey, nil
}

// Zero overwrites key material in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != SymmetricKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d bytes", kerrors.ErrInvalidKeyLength, SymmetricKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, envelope.IVSize)
}

// Encrypt seals plaintext with AES-256-GCM under a fresh random IV.
// An IV is never reused: every call draws a new one from crypto/rand.
func Encrypt(plaintext, key []byte) (*envelope.Envelope, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, envelope.IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("%w: failed to generate IV: %v", kerrors.ErrEncryptFailed, err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ciphertext, tag, err := envelope.Split(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrEncryptFailed, err)
	}

	return &envelope.Envelope{IV: iv, Ciphertext: ciphertext, Tag: tag}, nil
}

// Decrypt opens an envelope sealed by Encrypt.
//
// Returns ErrDecryptFailed wrapping ErrMalformedEnvelope when the tag or IV
// has the wrong length, and ErrDecryptFailed alone when authentication fails
// (wrong key, corrupted ciphertext or tampering).
func Decrypt(env *envelope.Envelope, key []byte) ([]byte, error) {
	if env == nil || len(env.Tag) != envelope.TagSize || len(env.IV) != envelope.IVSize {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrDecryptFailed, kerrors.ErrMalformedEnvelope)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, env.IV, env.Sealed(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: auth tag mismatch", kerrors.ErrDecryptFailed)
	}
	return plaintext, nil
}

// DecryptEncoded parses the base64 transport form and decrypts it. Malformed
// input is rejected before any cipher operation.
func DecryptEncoded(encoded, encodedIV string, key []byte) ([]byte, error) {
	env, err := envelope.Parse(encoded, encodedIV)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrDecryptFailed, err)
	}
	return Decrypt(env, key)
}
