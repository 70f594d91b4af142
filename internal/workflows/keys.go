package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PolarWolf314/kaitiaki/internal/custody"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/secrets"
)

// KeysGenerateOptions configures the keys generate workflow.
type KeysGenerateOptions struct {
	CustodyOptions

	// Algorithm selects the signing key type. Empty uses the configured default.
	Algorithm secrets.Algorithm

	// Force replaces existing key material. Files uploaded under the old
	// symmetric key can no longer be decrypted afterwards.
	Force bool
}

// KeysGenerateResult contains the outcome of generating keys.
type KeysGenerateResult struct {
	*custody.Result

	// Sealed is true when the new material was sealed with a passphrase.
	Sealed bool
}

// KeysGenerate creates a new key pair and symmetric key, registers them with
// the server and only then stores them locally.
//
// Returns ErrKeyExists if material exists and Force is not set.
// Returns ErrRegistryUnavailable if the server did not accept the key; local
// state is unchanged in that case.
func KeysGenerate(ctx context.Context, opts KeysGenerateOptions) (*KeysGenerateResult, error) {
	config, apiClient, err := loadClient()
	if err != nil {
		return nil, err
	}

	alg := opts.Algorithm
	if alg == "" {
		if alg, err = config.Algorithm(); err != nil {
			return nil, err
		}
	}

	store := opts.store()
	exists, err := store.Exists()
	if err != nil {
		return nil, err
	}
	if exists && !opts.Force {
		return nil, kerrors.ErrKeyExists
	}

	manager := custody.NewManager(store, apiClient)
	result, err := manager.GenerateAndSync(ctx, "", alg)
	if err != nil {
		return nil, err
	}
	return &KeysGenerateResult{Result: result, Sealed: len(opts.Passphrase) > 0}, nil
}

// KeysStatusResult compares local custody with the server registration.
type KeysStatusResult struct {
	State       custody.State
	Algorithm   secrets.Algorithm
	Fingerprint string
	Device      string
	CreatedAt   time.Time
	SyncedAt    time.Time
	Sealed      bool

	// ServerChecked is false when the server could not be asked.
	ServerChecked bool
	ServerHasKey  bool

	// InSync is true when the server holds the same public key as this machine.
	InSync bool

	// ServerKeyChanged is true when the server's key-transport key differs
	// from the one the local material was wrapped for.
	ServerKeyChanged bool
}

// KeysStatus reports the local custody state and, when a server is
// configured, whether the server holds the same key.
func KeysStatus(ctx context.Context, opts CustodyOptions) (*KeysStatusResult, error) {
	result := &KeysStatusResult{State: custody.NoKey}

	sealed, err := CustodySealed()
	if err != nil {
		return nil, err
	}
	result.Sealed = sealed

	material, err := opts.store().Load()
	switch {
	case errors.Is(err, kerrors.ErrNoLocalKey):
	case err != nil:
		return nil, fmt.Errorf("loading local key material: %w", err)
	default:
		defer material.Wipe()
		result.State = custody.Synced
		result.Algorithm = material.Algorithm
		result.Fingerprint = material.Fingerprint()
		result.Device = material.Device
		result.CreatedAt = material.CreatedAt
		result.SyncedAt = material.SyncedAt
	}

	_, apiClient, err := loadClient()
	if errors.Is(err, kerrors.ErrNotConfigured) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	serverKey, err := apiClient.UserKey(ctx)
	if err != nil {
		return nil, err
	}
	result.ServerChecked = true
	result.ServerHasKey = serverKey.HasKey

	if material != nil && serverKey.HasKey {
		fp, err := secrets.Fingerprint(serverKey.PublicKey)
		result.InSync = err == nil && fp == result.Fingerprint
	}

	if material != nil && material.ServerKeyFingerprint != "" {
		if serverPub, err := apiClient.ServerPublicKey(ctx); err == nil {
			fp, err := secrets.Fingerprint(serverPub)
			result.ServerKeyChanged = err == nil && fp != material.ServerKeyFingerprint
		}
	}

	return result, nil
}
