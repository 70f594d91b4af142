package custody

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PolarWolf314/kaitiaki/internal/api"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/secrets"
	"github.com/PolarWolf314/kaitiaki/internal/utils"
)

// Registry is the server side of key registration.
type Registry interface {
	ServerPublicKey(ctx context.Context) (string, error)
	SyncKey(ctx context.Context, req api.KeySyncRequest) error
}

// Manager drives the custody state machine over a Store and a Registry.
type Manager struct {
	mu       sync.Mutex
	store    Store
	registry Registry
	pending  *Material
	now      func() time.Time
}

// NewManager returns a Manager in the state the store is in. Nothing is
// pending until Generate is called.
func NewManager(store Store, registry Registry) *Manager {
	return &Manager{store: store, registry: registry, now: time.Now}
}

// Result describes a completed GenerateAndSync.
type Result struct {
	Algorithm   secrets.Algorithm
	Fingerprint string

	// ReplacedExisting is set when previously synced material was overwritten.
	// Files encrypted under the old symmetric key can no longer be decrypted.
	ReplacedExisting    bool
	PreviousFingerprint string
}

// State reports the current lifecycle state.
func (m *Manager) State() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state()
}

func (m *Manager) state() (State, error) {
	if m.pending != nil {
		return GeneratedUnsynced, nil
	}
	exists, err := m.store.Exists()
	if err != nil {
		return NoKey, err
	}
	if exists {
		return Synced, nil
	}
	return NoKey, nil
}

// Material returns the committed material. Pending material is not visible.
func (m *Manager) Material() (*Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Load()
}

// Generate creates new material in memory. Nothing is persisted.
func (m *Manager) Generate(alg secrets.Algorithm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generate(alg)
}

func (m *Manager) generate(alg secrets.Algorithm) error {
	m.discard()

	kp, err := secrets.GenerateKeyPair(alg)
	if err != nil {
		return err
	}
	symmetricKey, err := secrets.CreateSymmetricKey()
	if err != nil {
		return fmt.Errorf("failed to create symmetric key: %w", err)
	}

	m.pending = &Material{
		Algorithm:    alg,
		PrivateKey:   kp.PrivateKey,
		PublicKeyPEM: kp.PublicKeyPEM,
		SymmetricKey: symmetricKey,
		Device:       utils.DeviceName(),
		CreatedAt:    m.now().UTC(),
	}
	return nil
}

// Sync wraps the pending symmetric key for the server, registers it and
// commits the material locally. On any failure the pending material is
// discarded and the committed state is unchanged.
func (m *Manager) Sync(ctx context.Context, serverPublicKeyPEM string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sync(ctx, serverPublicKeyPEM)
}

func (m *Manager) sync(ctx context.Context, serverPublicKeyPEM string) error {
	pending := m.pending
	if pending == nil {
		return fmt.Errorf("%w: nothing to sync", kerrors.ErrNoLocalKey)
	}
	defer m.discard()

	if serverPublicKeyPEM == "" {
		var err error
		serverPublicKeyPEM, err = m.registry.ServerPublicKey(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", kerrors.ErrRegistryUnavailable, err)
		}
	}

	wrapped, err := secrets.WrapKey(pending.SymmetricKey, serverPublicKeyPEM)
	if err != nil {
		return err
	}
	serverFingerprint, err := secrets.Fingerprint(serverPublicKeyPEM)
	if err != nil {
		return err
	}

	req := api.KeySyncRequest{
		EncryptedAsymmetricKey: wrapped,
		PublicKey:              pending.PublicKeyPEM,
		Algorithm:              pending.Algorithm.String(),
	}
	if err := m.registry.SyncKey(ctx, req); err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrRegistryUnavailable, err)
	}

	committed := *pending
	committed.SymmetricKey = append([]byte(nil), pending.SymmetricKey...)
	committed.SyncedAt = m.now().UTC()
	committed.ServerKeyFingerprint = serverFingerprint
	defer committed.Wipe()

	if err := m.store.Save(&committed); err != nil {
		return fmt.Errorf("key was registered but could not be saved locally: %w", err)
	}
	return nil
}

// Discard drops pending material without syncing it.
func (m *Manager) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discard()
}

func (m *Manager) discard() {
	if m.pending != nil {
		m.pending.Wipe()
		m.pending = nil
	}
}

// GenerateAndSync replaces the client identity: generate, wrap, register,
// then persist. An empty serverPublicKeyPEM is fetched from the registry.
func (m *Manager) GenerateAndSync(ctx context.Context, serverPublicKeyPEM string, alg secrets.Algorithm) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := &Result{Algorithm: alg}

	exists, err := m.store.Exists()
	if err != nil {
		return nil, err
	}
	if exists {
		result.ReplacedExisting = true
		if previous, err := m.store.Load(); err == nil {
			result.PreviousFingerprint = previous.Fingerprint()
			previous.Wipe()
		}
	}

	if err := m.generate(alg); err != nil {
		return nil, err
	}
	result.Fingerprint = m.pending.Fingerprint()

	if err := m.sync(ctx, serverPublicKeyPEM); err != nil {
		return nil, err
	}
	return result, nil
}
