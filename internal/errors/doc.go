// Package errors provides typed error values for Kaitiaki.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching. The HTTP
// layer maps them to status codes and the CLI maps them to user-facing
// messages.
//
// # Error Categories
//
// Errors are grouped by category:
//
//   - Envelope errors: bad transport encoding (ErrMalformedEnvelope)
//   - Crypto errors: key transport and AEAD failures (ErrKeyTransport, ErrDecryptFailed)
//   - Signature errors: malformed input vs. failed verification (ErrSignatureInput, ErrSignatureInvalid)
//   - Custody errors: local key material (ErrNoLocalKey, ErrRegistryUnavailable)
//   - Lookup errors: server-side records (ErrNoKey, ErrFileNotFound)
//
// # Usage
//
// Wrap errors with additional context:
//
//	return nil, fmt.Errorf("%w: %v", kerrors.ErrDecryptFailed, err)
//
// Handle errors at the boundary:
//
//	if errors.Is(err, kerrors.ErrServerKeyMissing) {
//	    // 500: configuration problem, not the caller's fault
//	}
package errors
