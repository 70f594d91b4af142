// Package secrets provides the cryptographic primitives for Kaitiaki.
//
// # Content encryption
//
// File content is sealed with AES-256-GCM under the client's 32-byte
// symmetric key. Every call to Encrypt draws a fresh 12-byte IV, so sealing
// the same file twice produces different envelopes. The envelope layout is
// defined by package envelope.
//
// # Key transport
//
// The symmetric key reaches the server wrapped under the server's RSA public
// key with RSA-OAEP (SHA-256). The server keeps its key pair in a
// ServerIdentity and unwraps per request. An OAEP failure never says whether
// the payload was corrupt or the key pair was wrong.
//
// # Signatures
//
// Authorship is a detached signature over Digest(plaintext), the base64
// SHA-256 of the content. The signing primitive hashes the decoded digest
// bytes once more before signing:
//
//	digest := secrets.Digest(plaintext)          // stage one
//	sig, _ := secrets.Sign(digest, key, alg)      // stage two inside
//
// Two algorithms are supported, dispatched through a table keyed by
// Algorithm:
//
//   - RSA: RSASSA-PKCS1-v1_5, 2048-bit keys
//   - ECC: ECDSA P-256, signatures as ASN.1 DER (raw r||s also verifies)
//
// Verify returns false for a signature that does not match and an error only
// when its inputs cannot be parsed.
//
// # Key formats
//
// Private keys are written as PKCS#8 PEM and public keys as SPKI PEM. PKCS#1,
// SEC 1 and unencrypted OpenSSH private keys are also accepted on input.
package secrets
