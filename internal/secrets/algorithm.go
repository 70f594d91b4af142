package secrets

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"math/big"
	"strings"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
)

// Algorithm names a signing algorithm. The zero value is not valid; use
// ParseAlgorithm to accept user input.
type Algorithm string

const (
	// RSA signs with RSASSA-PKCS1-v1_5 over SHA-256 using 2048-bit keys.
	RSA Algorithm = "RSA"

	// ECC signs with ECDSA over P-256 and SHA-256. Signatures are ASN.1 DER;
	// raw r||s as produced by WebCrypto is also accepted.
	ECC Algorithm = "ECC"
)

// RSAKeyBits is the modulus size for generated RSA signing keys.
const RSAKeyBits = 2048

// ecdsaCoordSize is the byte length of one P-256 signature coordinate.
const ecdsaCoordSize = 32

// scheme holds everything algorithm-specific. Adding an algorithm means adding
// a constant and a row in schemes, nothing else.
type scheme struct {
	generate func() (crypto.Signer, error)
	sign     func(key crypto.Signer, hashed []byte) ([]byte, error)
	verify   func(key crypto.PublicKey, hashed, sig []byte) bool
	accepts  func(key crypto.PublicKey) bool
}

var schemes = map[Algorithm]scheme{
	RSA: {
		generate: func() (crypto.Signer, error) {
			return rsa.GenerateKey(rand.Reader, RSAKeyBits)
		},
		sign: func(key crypto.Signer, hashed []byte) ([]byte, error) {
			rsaKey, ok := key.(*rsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("%w: expected an RSA private key, got %T", kerrors.ErrInvalidPrivateKey, key)
			}
			return rsa.SignPKCS1v15(rand.Reader, rsaKey, crypto.SHA256, hashed)
		},
		verify: func(key crypto.PublicKey, hashed, sig []byte) bool {
			return rsa.VerifyPKCS1v15(key.(*rsa.PublicKey), crypto.SHA256, hashed, sig) == nil
		},
		accepts: func(key crypto.PublicKey) bool {
			_, ok := key.(*rsa.PublicKey)
			return ok
		},
	},
	ECC: {
		generate: func() (crypto.Signer, error) {
			return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		},
		sign: func(key crypto.Signer, hashed []byte) ([]byte, error) {
			ecKey, ok := key.(*ecdsa.PrivateKey)
			if !ok || ecKey.Curve != elliptic.P256() {
				return nil, fmt.Errorf("%w: expected a P-256 ECDSA private key, got %T", kerrors.ErrInvalidPrivateKey, key)
			}
			return ecdsa.SignASN1(rand.Reader, ecKey, hashed)
		},
		verify: func(key crypto.PublicKey, hashed, sig []byte) bool {
			ecKey := key.(*ecdsa.PublicKey)
			if ecdsa.VerifyASN1(ecKey, hashed, sig) {
				return true
			}
			if len(sig) != 2*ecdsaCoordSize {
				return false
			}
			r := new(big.Int).SetBytes(sig[:ecdsaCoordSize])
			s := new(big.Int).SetBytes(sig[ecdsaCoordSize:])
			return ecdsa.Verify(ecKey, hashed, r, s)
		},
		accepts: func(key crypto.PublicKey) bool {
			ecKey, ok := key.(*ecdsa.PublicKey)
			return ok && ecKey.Curve == elliptic.P256()
		},
	},
}

// Algorithms lists the supported algorithms in a stable order.
func Algorithms() []Algorithm {
	return []Algorithm{RSA, ECC}
}

// ParseAlgorithm accepts "RSA" or "ECC" in any case. An empty string means RSA,
// which is what clients that predate ECC support send.
func ParseAlgorithm(s string) (Algorithm, error) {
	if strings.TrimSpace(s) == "" {
		return RSA, nil
	}
	alg := Algorithm(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := schemes[alg]; !ok {
		return "", fmt.Errorf("%w: %q", kerrors.ErrUnsupportedAlgorithm, s)
	}
	return alg, nil
}

// AlgorithmOf returns the algorithm a public key belongs to.
func AlgorithmOf(key crypto.PublicKey) (Algorithm, error) {
	for _, alg := range Algorithms() {
		if schemes[alg].accepts(key) {
			return alg, nil
		}
	}
	return "", fmt.Errorf("%w: no algorithm accepts key of type %T", kerrors.ErrUnsupportedAlgorithm, key)
}

func (a Algorithm) scheme() (scheme, error) {
	s, ok := schemes[a]
	if !ok {
		return scheme{}, fmt.Errorf("%w: %q", kerrors.ErrUnsupportedAlgorithm, string(a))
	}
	return s, nil
}

func (a Algorithm) String() string {
	return string(a)
}

// Set implements pflag.Value so an Algorithm can be bound directly to a flag.
func (a *Algorithm) Set(s string) error {
	parsed, err := ParseAlgorithm(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Type implements pflag.Value.
func (a *Algorithm) Type() string {
	return "algorithm"
}
