// Package envelope encodes and decodes the authenticated-encryption envelope
// used to move encrypted file content between client and server.
//
// On the wire an envelope is two base64 strings: the sealed blob
// (ciphertext followed by the 16-byte GCM tag) and the 12-byte IV.
package envelope

import (
	"encoding/base64"
	"fmt"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
)

const (
	// IVSize is the AES-GCM nonce length in bytes.
	IVSize = 12

	// TagSize is the AES-GCM authentication tag length in bytes.
	TagSize = 16
)

// Envelope is encrypted content together with the IV it was sealed under.
type Envelope struct {
	IV         []byte
	Ciphertext []byte
	Tag        []byte
}

// Sealed returns ciphertext||tag, the layout AES-GCM produces and consumes.
func (e *Envelope) Sealed() []byte {
	sealed := make([]byte, 0, len(e.Ciphertext)+len(e.Tag))
	sealed = append(sealed, e.Ciphertext...)
	return append(sealed, e.Tag...)
}

// Encode returns the base64 transport form of the envelope.
func (e *Envelope) Encode() (string, string) {
	return Encode(e.IV, e.Ciphertext, e.Tag)
}

// Encode serialises ciphertext||tag and the IV to base64.
func Encode(iv, ciphertext, tag []byte) (string, string) {
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	return base64.StdEncoding.EncodeToString(sealed), base64.StdEncoding.EncodeToString(iv)
}

// Decode splits a base64 envelope into ciphertext and tag. The tag is always
// the last TagSize bytes; a shorter blob is malformed, never an empty payload.
func Decode(encoded string) ([]byte, []byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid base64: %v", kerrors.ErrMalformedEnvelope, err)
	}
	return Split(sealed)
}

// Split separates a raw ciphertext||tag blob.
func Split(sealed []byte) ([]byte, []byte, error) {
	if len(sealed) < TagSize {
		return nil, nil, fmt.Errorf("%w: %d bytes is shorter than the %d-byte tag", kerrors.ErrMalformedEnvelope, len(sealed), TagSize)
	}
	boundary := len(sealed) - TagSize
	return sealed[:boundary], sealed[boundary:], nil
}

// DecodeIV decodes a base64 IV, which must be exactly IVSize bytes.
func DecodeIV(encoded string) ([]byte, error) {
	iv, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid IV base64: %v", kerrors.ErrMalformedEnvelope, err)
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: IV must be %d bytes, got %d", kerrors.ErrMalformedEnvelope, IVSize, len(iv))
	}
	return iv, nil
}

// Parse decodes both halves of the transport form into an Envelope.
func Parse(encoded, encodedIV string) (*Envelope, error) {
	ciphertext, tag, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	iv, err := DecodeIV(encodedIV)
	if err != nil {
		return nil, err
	}
	return &Envelope{IV: iv, Ciphertext: ciphertext, Tag: tag}, nil
}
