package secrets

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
)

// EncryptWithPublicKey encrypts data with RSA-OAEP (SHA-256).
func EncryptWithPublicKey(data []byte, publicKey *rsa.PublicKey) ([]byte, error) {
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrEncryptFailed, err)
	}
	return ciphertext, nil
}

// DecryptWithPrivateKey decrypts RSA-OAEP (SHA-256) ciphertext.
func DecryptWithPrivateKey(ciphertext []byte, privateKey *rsa.PrivateKey) ([]byte, error) {
	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, privateKey, ciphertext, nil)
	if err != nil {
		return nil, kerrors.ErrKeyTransport
	}
	return plaintext, nil
}

// WrapKey encrypts a symmetric key for the holder of recipientPublicKeyPEM and
// returns it base64 encoded.
func WrapKey(symmetricKey []byte, recipientPublicKeyPEM string) (string, error) {
	publicKey, err := ParseRSAPublicKeyPEM(recipientPublicKeyPEM)
	if err != nil {
		return "", err
	}
	wrapped, err := EncryptWithPublicKey(symmetricKey, publicKey)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(wrapped), nil
}

// UnwrapKey reverses WrapKey using the owner's PEM private key.
func UnwrapKey(wrapped string, ownerPrivateKeyPEM string) ([]byte, error) {
	identity, err := NewServerIdentity("", ownerPrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	return identity.Unwrap(wrapped)
}

// ServerIdentity is the server's RSA key pair. It is loaded once at start-up
// and only read afterwards, so it is safe for concurrent use.
type ServerIdentity struct {
	PublicKeyPEM string
	privateKey   *rsa.PrivateKey
}

// NewServerIdentity parses the server key pair. When publicKeyPEM is empty it
// is derived from the private key.
func NewServerIdentity(publicKeyPEM, privateKeyPEM string) (*ServerIdentity, error) {
	if strings.TrimSpace(privateKeyPEM) == "" {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrKeyTransport, kerrors.ErrServerKeyMissing)
	}

	signer, err := ParsePrivateKeyPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrKeyTransport, kerrors.ErrServerKeyMissing)
	}
	privateKey, ok := signer.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %w: server key must be RSA", kerrors.ErrKeyTransport, kerrors.ErrServerKeyMissing)
	}

	if strings.TrimSpace(publicKeyPEM) == "" {
		publicKeyPEM, err = MarshalPublicKeyPEM(&privateKey.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", kerrors.ErrKeyTransport, kerrors.ErrServerKeyMissing)
		}
	} else {
		publicKey, err := ParseRSAPublicKeyPEM(publicKeyPEM)
		if err != nil || !publicKey.Equal(&privateKey.PublicKey) {
			return nil, fmt.Errorf("%w: %w: public key does not match private key", kerrors.ErrKeyTransport, kerrors.ErrServerKeyMissing)
		}
	}

	return &ServerIdentity{PublicKeyPEM: publicKeyPEM, privateKey: privateKey}, nil
}

// LoadServerIdentity reads the server key pair from disk. The public key path
// may be empty.
func LoadServerIdentity(publicKeyPath, privateKeyPath string) (*ServerIdentity, error) {
	if privateKeyPath == "" {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrKeyTransport, kerrors.ErrServerKeyMissing)
	}
	privateKeyPEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", kerrors.ErrKeyTransport, kerrors.ErrServerKeyMissing, err)
	}

	var publicKeyPEM []byte
	if publicKeyPath != "" {
		publicKeyPEM, err = os.ReadFile(publicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: %v", kerrors.ErrKeyTransport, kerrors.ErrServerKeyMissing, err)
		}
	}
	return NewServerIdentity(string(publicKeyPEM), string(privateKeyPEM))
}

// Unwrap decrypts a base64 wrapped symmetric key. Bad encoding, corruption
// and a key-pair mismatch all produce the same ErrKeyTransport.
func (s *ServerIdentity) Unwrap(wrapped string) ([]byte, error) {
	if s == nil || s.privateKey == nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrKeyTransport, kerrors.ErrServerKeyMissing)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, kerrors.ErrKeyTransport
	}
	return DecryptWithPrivateKey(ciphertext, s.privateKey)
}

// Wrap encrypts a symmetric key under the server's own public key.
func (s *ServerIdentity) Wrap(symmetricKey []byte) (string, error) {
	wrapped, err := EncryptWithPublicKey(symmetricKey, &s.privateKey.PublicKey)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(wrapped), nil
}
