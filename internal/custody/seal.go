package custody

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	nonceSize = 24
	keySize   = 32
	saltSize  = 16

	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// sealParams records how the passphrase key was derived.
type sealParams struct {
	KDF       string `toml:"kdf"`
	Time      uint32 `toml:"time"`
	MemoryKiB uint32 `toml:"memory_kib"`
	Threads   uint8  `toml:"threads"`
	Salt      string `toml:"salt"`
}

func newSealParams() (*sealParams, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return &sealParams{
		KDF:       "argon2id",
		Time:      argonTime,
		MemoryKiB: argonMemory,
		Threads:   argonThreads,
		Salt:      base64.StdEncoding.EncodeToString(salt),
	}, nil
}

func (p *sealParams) deriveKey(passphrase []byte) (*[keySize]byte, error) {
	if p.KDF != "argon2id" {
		return nil, fmt.Errorf("%w: unknown KDF %q", kerrors.ErrCustodySealed, p.KDF)
	}
	salt, err := base64.StdEncoding.DecodeString(p.Salt)
	if err != nil || len(salt) == 0 {
		return nil, fmt.Errorf("%w: invalid salt", kerrors.ErrCustodySealed)
	}
	out := argon2.IDKey(passphrase, salt, p.Time, p.MemoryKiB, p.Threads, keySize)
	var key [keySize]byte
	copy(key[:], out)
	return &key, nil
}

// seal encrypts data and prepends the nonce.
func seal(data []byte, key *[keySize]byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], data, &nonce, key), nil
}

// open undoes seal. A wrong passphrase and a corrupt file look the same.
func open(sealed []byte, key *[keySize]byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: sealed data too short", kerrors.ErrCustodySealed)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("%w: wrong passphrase", kerrors.ErrCustodySealed)
	}
	return plaintext, nil
}
