package custody

import (
	"crypto"
	"time"

	"github.com/PolarWolf314/kaitiaki/internal/secrets"
)

// State is where a client identity is in the custody lifecycle.
type State int

const (
	NoKey State = iota
	GeneratedUnsynced
	Synced
)

func (s State) String() string {
	switch s {
	case NoKey:
		return "no key"
	case GeneratedUnsynced:
		return "generated, not synced"
	case Synced:
		return "synced"
	default:
		return "unknown"
	}
}

// Material is one complete client identity.
type Material struct {
	Algorithm    secrets.Algorithm
	PrivateKey   crypto.Signer
	PublicKeyPEM string
	SymmetricKey []byte

	Device               string
	CreatedAt            time.Time
	SyncedAt             time.Time
	ServerKeyFingerprint string
}

// Fingerprint identifies the material by its public key.
func (m *Material) Fingerprint() string {
	fp, err := secrets.Fingerprint(m.PublicKeyPEM)
	if err != nil {
		return ""
	}
	return fp
}

// Wipe zeroes the symmetric key held in memory.
func (m *Material) Wipe() {
	if m != nil {
		secrets.Zero(m.SymmetricKey)
	}
}

// metadata is custody.toml.
type metadata struct {
	Algorithm            string      `toml:"algorithm"`
	Device               string      `toml:"device"`
	CreatedAt            time.Time   `toml:"created_at"`
	SyncedAt             time.Time   `toml:"synced_at"`
	ServerKeyFingerprint string      `toml:"server_key_fingerprint"`
	Seal                 *sealParams `toml:"seal,omitempty"`
}
