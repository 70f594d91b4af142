package errors

import "errors"

// Envelope errors indicate the transport encoding of encrypted content is unusable.
var (
	// ErrMalformedEnvelope indicates the envelope or IV could not be decoded,
	// or the decoded envelope is shorter than the authentication tag.
	ErrMalformedEnvelope = errors.New("malformed envelope")
)

// Cryptographic errors indicate failures during encryption, decryption or key transport.
var (
	// ErrKeyTransport indicates a wrapped symmetric key could not be unwrapped.
	// Corruption and key-pair mismatch are deliberately reported the same way.
	ErrKeyTransport = errors.New("key transport failed")

	// ErrServerKeyMissing indicates the server's own key material is absent or unparsable.
	ErrServerKeyMissing = errors.New("server key material is not configured")

	// ErrDecryptFailed indicates authenticated decryption failed.
	ErrDecryptFailed = errors.New("failed to decrypt content")

	// ErrEncryptFailed indicates content encryption failed.
	ErrEncryptFailed = errors.New("failed to encrypt content")

	// ErrInvalidKeyLength indicates the symmetric key has an unexpected length.
	ErrInvalidKeyLength = errors.New("invalid symmetric key length")

	// ErrInvalidPrivateKey indicates the private key is malformed or unsupported.
	ErrInvalidPrivateKey = errors.New("invalid or unsupported private key format")

	// ErrInvalidPublicKey indicates the public key is malformed or unsupported.
	ErrInvalidPublicKey = errors.New("invalid or unsupported public key format")
)

// Signature errors.
var (
	// ErrSignatureInput indicates a signature, digest or key could not be parsed.
	// A well-formed signature that does not verify is not an error.
	ErrSignatureInput = errors.New("malformed signature input")

	// ErrSignatureInvalid indicates a signature did not verify against the content.
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrDigestMismatch indicates the claimed digest differs from the digest of the decrypted content.
	ErrDigestMismatch = errors.New("claimed digest does not match content")

	// ErrUnsupportedAlgorithm indicates an unknown signing algorithm was requested.
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)

// Custody errors indicate issues with the locally held key material.
var (
	// ErrNoLocalKey indicates no key material has been generated and synced on this machine.
	ErrNoLocalKey = errors.New("no local key material")

	// ErrRegistryUnavailable indicates the key registry could not acknowledge a key sync.
	// Local state is left untouched; the caller may retry from scratch.
	ErrRegistryUnavailable = errors.New("key registry unavailable")

	// ErrCustodySealed indicates the custody store is sealed and no passphrase was supplied.
	ErrCustodySealed = errors.New("custody store is sealed with a passphrase")

	// ErrKeyExists indicates key material is already present and replacing it was not requested.
	ErrKeyExists = errors.New("key material already exists")
)

// Server-side lookup errors.
var (
	// ErrNoKey indicates the user has not synced a key with the server.
	ErrNoKey = errors.New("user has no registered key")

	// ErrFileNotFound indicates a specific file could not be located.
	ErrFileNotFound = errors.New("file not found")

	// ErrUnauthorized indicates the caller could not be identified.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidRequest indicates a request payload is missing required fields.
	ErrInvalidRequest = errors.New("invalid request")
)

// File errors indicate issues with local file discovery or access.
var (
	// ErrNoFilesFound indicates no files matched the provided patterns.
	ErrNoFilesFound = errors.New("no matching files found")

	// ErrNotConfigured indicates the client has no server URL or token configured.
	ErrNotConfigured = errors.New("client is not configured")
)
