package secrets

import (
	"crypto"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
)

// Digest returns base64(SHA-256(content)). Callers pass plaintext, never
// ciphertext, so a swapped ciphertext cannot carry a valid signature.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// signingHash is the second digest stage: the signature primitive signs
// SHA-256 of the decoded digest bytes, not the digest itself. Existing
// signatures depend on this.
func signingHash(digest string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(digest)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid digest base64: %v", kerrors.ErrSignatureInput, err)
	}
	sum := sha256.Sum256(raw)
	return sum[:], nil
}

// Sign produces a base64 detached signature over digest.
func Sign(digest string, privateKey crypto.Signer, alg Algorithm) (string, error) {
	s, err := alg.scheme()
	if err != nil {
		return "", err
	}
	hashed, err := signingHash(digest)
	if err != nil {
		return "", err
	}
	sig, err := s.sign(privateKey, hashed)
	if err != nil {
		return "", fmt.Errorf("failed to sign digest: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a detached signature. A well-formed signature that does not
// match returns false with a nil error; only unparsable input is an error.
func Verify(digest, signature, publicKeyPEM string, alg Algorithm) (bool, error) {
	publicKey, err := ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return false, fmt.Errorf("%w: %w", kerrors.ErrSignatureInput, err)
	}
	return VerifyWithKey(digest, signature, publicKey, alg)
}

// VerifyWithKey is Verify for an already parsed public key.
func VerifyWithKey(digest, signature string, publicKey crypto.PublicKey, alg Algorithm) (bool, error) {
	s, err := alg.scheme()
	if err != nil {
		return false, err
	}
	if !s.accepts(publicKey) {
		return false, fmt.Errorf("%w: %T is not a %s public key", kerrors.ErrSignatureInput, publicKey, alg)
	}
	hashed, err := signingHash(digest)
	if err != nil {
		return false, err
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("%w: invalid signature base64: %v", kerrors.ErrSignatureInput, err)
	}
	return s.verify(publicKey, hashed, sig), nil
}
