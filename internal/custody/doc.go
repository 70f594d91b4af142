// Package custody holds the client's key material on local disk.
//
// A client identity is a signing key pair plus a 32-byte symmetric content
// key. Material moves through three states:
//
//	NoKey -> Generate -> GeneratedUnsynced -> Sync ok -> Synced
//	GeneratedUnsynced -> Sync fails -> previous committed state
//	Synced -> Generate -> GeneratedUnsynced (the old key is replaced on sync)
//
// Generated material lives only in memory until the key registry
// acknowledges it. A failed sync discards it; it is never reused.
//
// # On disk
//
// FileStore writes one directory:
//
//	private_key.pem   PKCS#8, 0600
//	public_key.pem    SPKI
//	symmetric.key     32 raw bytes, 0600
//	custody.toml      algorithm, timestamps, server key fingerprint
//
// The directory is built under a staging name and renamed into place, so a
// reader sees either the old material or the new, never a mix.
//
// With a passphrase, the private key and symmetric key are sealed with NaCl
// secretbox under an Argon2id-derived key; the KDF parameters and salt are
// recorded in custody.toml.
package custody
