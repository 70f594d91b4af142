// Package vault moves file content through the encrypted drive.
//
// The client half (SealUpload, SealVerify) encrypts plaintext with the
// custody symmetric key and optionally signs its digest. The server half
// (Service) unwraps the caller's symmetric key with the server identity,
// decrypts, checks digest and signature, and persists the envelope.
//
// # Digest Policy
//
// The server never trusts a client-supplied digest. After decryption it
// recomputes the digest from the plaintext; a different claimed digest is
// ErrDigestMismatch, and the signature is verified over the recomputed
// value. A signature that was valid for some other content therefore
// cannot be attached to a swapped ciphertext.
//
// Nothing is persisted when any step fails.
package vault
