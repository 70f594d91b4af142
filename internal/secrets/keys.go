package secrets

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"

	"golang.org/x/crypto/ssh"
)

// KeyPair is a client signing key pair. The private half never leaves the client.
type KeyPair struct {
	Algorithm    Algorithm
	PrivateKey   crypto.Signer
	PublicKeyPEM string
}

// GenerateKeyPair creates a new signing key pair for the given algorithm.
func GenerateKeyPair(alg Algorithm) (*KeyPair, error) {
	s, err := alg.scheme()
	if err != nil {
		return nil, err
	}

	privateKey, err := s.generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key pair: %w", alg, err)
	}

	publicKeyPEM, err := MarshalPublicKeyPEM(privateKey.Public())
	if err != nil {
		return nil, err
	}

	return &KeyPair{
		Algorithm:    alg,
		PrivateKey:   privateKey,
		PublicKeyPEM: publicKeyPEM,
	}, nil
}

// PrivateKeyPEM returns the private key as a PKCS#8 PEM block.
func (kp *KeyPair) PrivateKeyPEM() ([]byte, error) {
	return MarshalPrivateKeyPEM(kp.PrivateKey)
}

// MarshalPrivateKeyPEM encodes a private key as PKCS#8 PEM.
func MarshalPrivateKeyPEM(key crypto.Signer) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// ParsePrivateKeyPEM decodes a PKCS#8, PKCS#1 (RSA), SEC 1 (EC) or unencrypted
// OpenSSH PEM private key.
func ParsePrivateKeyPEM(data []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: failed to decode PEM block containing private key", kerrors.ErrInvalidPrivateKey)
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPrivateKey, err)
		}
		return key, nil
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPrivateKey, err)
		}
		return key, nil
	case "OPENSSH PRIVATE KEY":
		key, err := ssh.ParseRawPrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPrivateKey, err)
		}
		return asSigner(key)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPrivateKey, err)
		}
		return asSigner(key)
	default:
		return nil, fmt.Errorf("%w: unexpected PEM block %q", kerrors.ErrInvalidPrivateKey, block.Type)
	}
}

// asSigner narrows a parsed key to the types the signature schemes handle.
func asSigner(key interface{}) (crypto.Signer, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	default:
		return nil, fmt.Errorf("%w: unsupported key type %T", kerrors.ErrInvalidPrivateKey, key)
	}
}

// MarshalPublicKeyPEM encodes a public key as SPKI PEM.
func MarshalPublicKeyPEM(key crypto.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// ParsePublicKeyPEM decodes an SPKI PEM public key.
func ParsePublicKeyPEM(data string) (crypto.PublicKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("%w: failed to decode PEM block containing public key", kerrors.ErrInvalidPublicKey)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPublicKey, err)
	}
	return pub, nil
}

// ParseRSAPublicKeyPEM decodes an SPKI PEM public key that must be RSA.
func ParseRSAPublicKeyPEM(data string) (*rsa.PublicKey, error) {
	pub, err := ParsePublicKeyPEM(data)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA public key", kerrors.ErrInvalidPublicKey)
	}
	return rsaPub, nil
}

// Fingerprint returns the hex SHA-256 of a PEM public key's DER bytes.
func Fingerprint(publicKeyPEM string) (string, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return "", fmt.Errorf("%w: failed to decode PEM block containing public key", kerrors.ErrInvalidPublicKey)
	}
	sum := sha256.Sum256(block.Bytes)
	return hex.EncodeToString(sum[:]), nil
}

// GenerateRSAKeyPair creates a new RSA key pair and saves it to disk. It is
// used to provision the server identity.
func GenerateRSAKeyPair(privatePath string, publicPath string, bits int) (err error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return fmt.Errorf("failed to generate RSA key pair: %w", err)
	}

	// Create directories if they don't exist
	privateDir := filepath.Dir(privatePath)
	if err := os.MkdirAll(privateDir, 0700); err != nil {
		return fmt.Errorf("failed to create directory for private key at %s: %w", privateDir, err)
	}
	publicDir := filepath.Dir(publicPath)
	if err := os.MkdirAll(publicDir, 0700); err != nil {
		return fmt.Errorf("failed to create directory for public key at %s: %w", publicDir, err)
	}

	privPem, err := MarshalPrivateKeyPEM(privateKey)
	if err != nil {
		return err
	}
	if err := os.WriteFile(privatePath, privPem, 0600); err != nil {
		return fmt.Errorf("failed to write private key file at %s: %w", privatePath, err)
	}

	pubPem, err := MarshalPublicKeyPEM(&privateKey.PublicKey)
	if err != nil {
		return err
	}
	// #nosec G306 -- the public key is meant to be shared.
	if err := os.WriteFile(publicPath, []byte(pubPem), 0644); err != nil {
		return fmt.Errorf("failed to write public key file at %s: %w", publicPath, err)
	}

	return nil
}
