package custody

import (
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/PolarWolf314/kaitiaki/internal/configs"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/secrets"
)

const (
	privateKeyFile   = "private_key.pem"
	publicKeyFile    = "public_key.pem"
	symmetricKeyFile = "symmetric.key"
	metadataFile     = "custody.toml"

	sealedPEMType = "KAITIAKI SEALED PRIVATE KEY"
)

// Store is the only way key material reaches or leaves local disk.
type Store interface {
	// Load returns the committed material or ErrNoLocalKey.
	Load() (*Material, error)

	// Save replaces the committed material in one step.
	Save(m *Material) error

	// Clear removes the committed material.
	Clear() error

	// Exists reports whether committed material is present.
	Exists() (bool, error)
}

// FileStore keeps material in a single directory.
type FileStore struct {
	dir        string
	passphrase []byte
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithPassphrase seals new material and opens sealed material with passphrase.
func WithPassphrase(passphrase []byte) Option {
	return func(s *FileStore) {
		if len(passphrase) > 0 {
			s.passphrase = passphrase
		}
	}
}

// NewFileStore returns a store rooted at dir. The directory is created on
// the first Save.
func NewFileStore(dir string, opts ...Option) *FileStore {
	s := &FileStore{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FileStore) Exists() (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, metadataFile))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Sealed reports whether the committed material needs a passphrase.
func (s *FileStore) Sealed() (bool, error) {
	meta, err := s.loadMetadata()
	if err != nil {
		return false, err
	}
	return meta.Seal != nil, nil
}

func (s *FileStore) loadMetadata() (*metadata, error) {
	exists, err := s.Exists()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, kerrors.ErrNoLocalKey
	}
	meta := &metadata{}
	if err := configs.LoadTOML(filepath.Join(s.dir, metadataFile), meta); err != nil {
		return nil, fmt.Errorf("failed to read custody metadata: %w", err)
	}
	return meta, nil
}

func (s *FileStore) Load() (*Material, error) {
	meta, err := s.loadMetadata()
	if err != nil {
		return nil, err
	}

	alg, err := secrets.ParseAlgorithm(meta.Algorithm)
	if err != nil {
		return nil, err
	}

	privateData, err := os.ReadFile(filepath.Join(s.dir, privateKeyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	publicData, err := os.ReadFile(filepath.Join(s.dir, publicKeyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	symmetricKey, err := os.ReadFile(filepath.Join(s.dir, symmetricKeyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read symmetric key: %w", err)
	}

	if meta.Seal != nil {
		if len(s.passphrase) == 0 {
			return nil, kerrors.ErrCustodySealed
		}
		privateData, symmetricKey, err = s.unseal(meta.Seal, privateData, symmetricKey)
		if err != nil {
			return nil, err
		}
	}

	if len(symmetricKey) != secrets.SymmetricKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d bytes", kerrors.ErrInvalidKeyLength, secrets.SymmetricKeySize, len(symmetricKey))
	}

	privateKey, err := secrets.ParsePrivateKeyPEM(privateData)
	if err != nil {
		return nil, err
	}

	return &Material{
		Algorithm:            alg,
		PrivateKey:           privateKey,
		PublicKeyPEM:         string(publicData),
		SymmetricKey:         symmetricKey,
		Device:               meta.Device,
		CreatedAt:            meta.CreatedAt,
		SyncedAt:             meta.SyncedAt,
		ServerKeyFingerprint: meta.ServerKeyFingerprint,
	}, nil
}

func (s *FileStore) unseal(params *sealParams, privateData, symmetricKey []byte) ([]byte, []byte, error) {
	key, err := params.deriveKey(s.passphrase)
	if err != nil {
		return nil, nil, err
	}

	block, _ := pem.Decode(privateData)
	if block == nil || block.Type != sealedPEMType {
		return nil, nil, fmt.Errorf("%w: private key is not sealed", kerrors.ErrCustodySealed)
	}
	privateData, err = open(block.Bytes, key)
	if err != nil {
		return nil, nil, err
	}
	symmetricKey, err = open(symmetricKey, key)
	if err != nil {
		return nil, nil, err
	}
	return privateData, symmetricKey, nil
}

// Save writes every file into a staging directory beside the custody
// directory and then swaps it in with rename.
func (s *FileStore) Save(m *Material) error {
	parent := filepath.Dir(s.dir)
	if err := os.MkdirAll(parent, 0700); err != nil {
		return fmt.Errorf("failed to create custody parent directory: %w", err)
	}

	staging, err := os.MkdirTemp(parent, "."+filepath.Base(s.dir)+".staging-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := s.writeFiles(staging, m); err != nil {
		return err
	}

	var backup string
	if _, err := os.Stat(s.dir); err == nil {
		backup = fmt.Sprintf("%s.old-%d", s.dir, time.Now().UnixNano())
		if err := os.Rename(s.dir, backup); err != nil {
			return fmt.Errorf("failed to move previous custody directory aside: %w", err)
		}
	}

	if err := os.Rename(staging, s.dir); err != nil {
		if backup != "" {
			_ = os.Rename(backup, s.dir)
		}
		return fmt.Errorf("failed to commit custody directory: %w", err)
	}

	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	return nil
}

func (s *FileStore) writeFiles(dir string, m *Material) error {
	privatePEM, err := secrets.MarshalPrivateKeyPEM(m.PrivateKey)
	if err != nil {
		return err
	}
	symmetricKey := append([]byte(nil), m.SymmetricKey...)

	meta := &metadata{
		Algorithm:            m.Algorithm.String(),
		Device:               m.Device,
		CreatedAt:            m.CreatedAt,
		SyncedAt:             m.SyncedAt,
		ServerKeyFingerprint: m.ServerKeyFingerprint,
	}

	if len(s.passphrase) > 0 {
		params, err := newSealParams()
		if err != nil {
			return fmt.Errorf("failed to generate seal salt: %w", err)
		}
		key, err := params.deriveKey(s.passphrase)
		if err != nil {
			return err
		}
		sealedPrivate, err := seal(privatePEM, key)
		if err != nil {
			return err
		}
		privatePEM = pem.EncodeToMemory(&pem.Block{Type: sealedPEMType, Bytes: sealedPrivate})
		if symmetricKey, err = seal(symmetricKey, key); err != nil {
			return err
		}
		meta.Seal = params
	}

	if err := os.WriteFile(filepath.Join(dir, privateKeyFile), privatePEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	// #nosec G306 -- the public key is meant to be shared.
	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), []byte(m.PublicKeyPEM), 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, symmetricKeyFile), symmetricKey, 0600); err != nil {
		return fmt.Errorf("failed to write symmetric key: %w", err)
	}
	if err := configs.SaveTOML(filepath.Join(dir, metadataFile), meta); err != nil {
		return fmt.Errorf("failed to write custody metadata: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear custody directory: %w", err)
	}
	return nil
}
