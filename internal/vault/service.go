package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/PolarWolf314/kaitiaki/internal/api"
	"github.com/PolarWolf314/kaitiaki/internal/archive"
	"github.com/PolarWolf314/kaitiaki/internal/audit"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	logger "github.com/PolarWolf314/kaitiaki/internal/logging"
	"github.com/PolarWolf314/kaitiaki/internal/secrets"
	"github.com/PolarWolf314/kaitiaki/internal/storage"
)

// Repository is the persistence the service needs. *storage.Storage implements it.
type Repository interface {
	GetUserKey(ctx context.Context, userID string) (*storage.UserKeyRecord, error)
	PutUserKey(ctx context.Context, rec storage.UserKeyRecord) error
	CreateFile(ctx context.Context, f storage.FileRecord) (*storage.FileRecord, error)
	GetFile(ctx context.Context, id string) (*storage.FileRecord, error)
	ListFiles(ctx context.Context, ownerID string) ([]storage.FileRecord, error)
}

// Service is the server side of the drive. It is safe for concurrent use.
type Service struct {
	identity *secrets.ServerIdentity
	repo     Repository
	audit    *audit.Log
	log      logger.Logger
}

// NewService returns a Service. A nil audit log disables auditing.
func NewService(identity *secrets.ServerIdentity, repo Repository, auditLog *audit.Log, log logger.Logger) *Service {
	return &Service{identity: identity, repo: repo, audit: auditLog, log: log}
}

// Download is a zip bundle ready to be sent to the caller.
type Download struct {
	Filename string
	Data     []byte
}

// ServerPublicKey returns the PEM public key clients wrap their symmetric key to.
func (s *Service) ServerPublicKey() (string, error) {
	if s.identity == nil {
		return "", fmt.Errorf("%w: %w", kerrors.ErrKeyTransport, kerrors.ErrServerKeyMissing)
	}
	return s.identity.PublicKeyPEM, nil
}

// UserKey reports whether the user has registered a key.
func (s *Service) UserKey(ctx context.Context, userID string) (*api.UserKey, error) {
	rec, err := s.repo.GetUserKey(ctx, userID)
	if errors.Is(err, kerrors.ErrNoKey) {
		return &api.UserKey{HasKey: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &api.UserKey{HasKey: true, PublicKey: rec.PublicKey, Algorithm: rec.Algorithm}, nil
}

// SyncKey registers the user's public key and wrapped symmetric key, replacing
// any previous registration. The wrapped key must unwrap with the server
// identity and the public key must belong to the named algorithm.
func (s *Service) SyncKey(ctx context.Context, userID string, req api.KeySyncRequest) (err error) {
	entry := audit.Entry{User: userID, Operation: audit.OpKeySync, Algorithm: req.Algorithm}
	defer func() { s.record(entry, err) }()

	if req.EncryptedAsymmetricKey == "" || req.PublicKey == "" {
		return fmt.Errorf("%w: encrypted_asymmetric_key and public_key are required", kerrors.ErrInvalidRequest)
	}

	alg, err := secrets.ParseAlgorithm(req.Algorithm)
	if err != nil {
		return err
	}
	entry.Algorithm = alg.String()

	publicKey, err := secrets.ParsePublicKeyPEM(req.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrInvalidRequest, err)
	}
	keyAlg, err := secrets.AlgorithmOf(publicKey)
	if err != nil {
		return err
	}
	if keyAlg != alg {
		return fmt.Errorf("%w: public key is %s, not %s", kerrors.ErrInvalidRequest, keyAlg, alg)
	}

	symmetricKey, err := s.unwrap(req.EncryptedAsymmetricKey)
	if err != nil {
		return err
	}
	secrets.Zero(symmetricKey)

	if err := s.repo.PutUserKey(ctx, storage.UserKeyRecord{
		UserID:              userID,
		PublicKey:           req.PublicKey,
		WrappedSymmetricKey: req.EncryptedAsymmetricKey,
		Algorithm:           alg.String(),
	}); err != nil {
		return err
	}

	s.log.Infof("Registered %s key for %s", alg, userID)
	return nil
}

// Upload decrypts the envelope, checks digest and signature against the
// decrypted content and stores the file.
func (s *Service) Upload(ctx context.Context, userID string, req api.UploadRequest) (file *api.File, err error) {
	entry := audit.Entry{User: userID, Operation: audit.OpFileUpload, FileName: req.Name}
	defer func() { s.record(entry, err) }()

	name, err := cleanFileName(req.Name)
	if err != nil {
		return nil, err
	}
	entry.FileName = name

	rec, key, err := s.userKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer secrets.Zero(key)

	plaintext, err := open(req.EncryptedContent, req.IV, key)
	if err != nil {
		return nil, err
	}
	digest := secrets.Digest(plaintext)

	if req.Hash != "" && req.Hash != digest {
		return nil, kerrors.ErrDigestMismatch
	}

	var alg secrets.Algorithm
	if req.Signature != "" {
		requested := req.Algorithm
		if requested == "" {
			requested = rec.Algorithm
		}
		alg, err = secrets.ParseAlgorithm(requested)
		if err != nil {
			return nil, err
		}

		valid, err := secrets.Verify(digest, req.Signature, rec.PublicKey, alg)
		if err != nil {
			return nil, err
		}
		if !valid {
			return nil, kerrors.ErrSignatureInvalid
		}
		entry.Algorithm = alg.String()
		entry.Signed = true
	}

	if req.Size != 0 && req.Size != int64(len(plaintext)) {
		s.log.Debugf("Upload %s claimed size %d, decrypted %d bytes", name, req.Size, len(plaintext))
	}

	stored, err := s.repo.CreateFile(ctx, storage.FileRecord{
		OwnerID:     userID,
		Name:        name,
		Envelope:    req.EncryptedContent,
		IV:          req.IV,
		Digest:      digest,
		Signature:   req.Signature,
		Algorithm:   string(alg),
		ContentType: DetectContentType(name, plaintext, req.ContentType),
		Size:        int64(len(plaintext)),
	})
	if err != nil {
		return nil, err
	}
	entry.FileID = stored.ID

	info := FileInfo(stored)
	return &info, nil
}

// Verify decrypts the envelope with the caller's symmetric key and checks the
// signature over the decrypted content. The supplied public key is used when
// present, otherwise the registered one; the algorithm follows the key.
func (s *Service) Verify(ctx context.Context, userID string, req api.VerifyRequest) (valid bool, err error) {
	entry := audit.Entry{User: userID, Operation: audit.OpFileVerify}
	defer func() {
		if err == nil {
			entry.Valid = &valid
		}
		s.record(entry, err)
	}()

	if req.Signature == "" {
		return false, fmt.Errorf("%w: signature is required", kerrors.ErrInvalidRequest)
	}

	rec, key, err := s.userKey(ctx, userID)
	if err != nil {
		return false, err
	}
	defer secrets.Zero(key)

	plaintext, err := open(req.EncryptedContent, req.IV, key)
	if err != nil {
		return false, err
	}

	publicKeyPEM := req.PublicKey
	if publicKeyPEM == "" {
		publicKeyPEM = rec.PublicKey
	}
	publicKey, err := secrets.ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return false, fmt.Errorf("%w: %w", kerrors.ErrSignatureInput, err)
	}
	alg, err := secrets.AlgorithmOf(publicKey)
	if err != nil {
		return false, fmt.Errorf("%w: %w", kerrors.ErrSignatureInput, err)
	}
	entry.Algorithm = alg.String()

	return secrets.VerifyWithKey(secrets.Digest(plaintext), req.Signature, publicKey, alg)
}

// ListFiles returns the caller's files, newest first.
func (s *Service) ListFiles(ctx context.Context, userID string) ([]api.File, error) {
	records, err := s.repo.ListFiles(ctx, userID)
	if err != nil {
		return nil, err
	}
	files := make([]api.File, 0, len(records))
	for i := range records {
		files = append(files, FileInfo(&records[i]))
	}
	return files, nil
}

// GetFile returns one of the caller's files. Files owned by someone else are
// reported as not found.
func (s *Service) GetFile(ctx context.Context, userID, id string) (*api.File, error) {
	rec, err := s.ownedFile(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	info := FileInfo(rec)
	return &info, nil
}

// Download decrypts a stored file and bundles it into a zip archive together
// with <name>.signature.json when the file is signed.
func (s *Service) Download(ctx context.Context, userID, id string) (dl *Download, err error) {
	entry := audit.Entry{User: userID, Operation: audit.OpFileDownload, FileID: id}
	defer func() { s.record(entry, err) }()

	rec, err := s.ownedFile(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	entry.FileName = rec.Name

	keyRec, key, err := s.userKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer secrets.Zero(key)

	plaintext, err := open(rec.Envelope, rec.IV, key)
	if err != nil {
		return nil, err
	}

	entries := []archive.Entry{{Name: rec.Name, Data: plaintext, Modified: rec.CreatedAt}}
	if rec.Signed() {
		sidecar, err := json.MarshalIndent(api.SignatureSidecar{
			Algorithm: rec.Algorithm,
			Digest:    rec.Digest,
			Signature: rec.Signature,
			PublicKey: keyRec.PublicKey,
		}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode signature sidecar: %w", err)
		}
		entries = append(entries, archive.Entry{Name: SidecarName(rec.Name), Data: sidecar, Modified: rec.CreatedAt})
		entry.Signed = true
		entry.Algorithm = rec.Algorithm
	}

	data, err := archive.Bundle(entries...)
	if err != nil {
		return nil, err
	}
	return &Download{Filename: rec.Name + ".zip", Data: data}, nil
}

// SidecarName is the archive entry holding a file's signature.
func SidecarName(name string) string {
	return name + ".signature.json"
}

// FileInfo converts a stored record to its API form.
func FileInfo(rec *storage.FileRecord) api.File {
	return api.File{
		ID:          rec.ID,
		Name:        rec.Name,
		ContentType: rec.ContentType,
		Size:        rec.Size,
		Signed:      rec.Signed(),
		Algorithm:   rec.Algorithm,
		Digest:      rec.Digest,
		CreatedAt:   rec.CreatedAt,
	}
}

func (s *Service) ownedFile(ctx context.Context, userID, id string) (*storage.FileRecord, error) {
	rec, err := s.repo.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != userID {
		return nil, kerrors.ErrFileNotFound
	}
	return rec, nil
}

// userKey loads the caller's registration and unwraps its symmetric key.
func (s *Service) userKey(ctx context.Context, userID string) (*storage.UserKeyRecord, []byte, error) {
	rec, err := s.repo.GetUserKey(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	key, err := s.unwrap(rec.WrappedSymmetricKey)
	if err != nil {
		return nil, nil, err
	}
	return rec, key, nil
}

func (s *Service) unwrap(wrapped string) ([]byte, error) {
	if s.identity == nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrKeyTransport, kerrors.ErrServerKeyMissing)
	}
	key, err := s.identity.Unwrap(wrapped)
	if err != nil {
		return nil, err
	}
	if len(key) != secrets.SymmetricKeySize {
		secrets.Zero(key)
		return nil, fmt.Errorf("%w: %w: got %d bytes", kerrors.ErrInvalidRequest, kerrors.ErrInvalidKeyLength, len(key))
	}
	return key, nil
}

func (s *Service) record(entry audit.Entry, err error) {
	if err != nil {
		entry.Outcome, _ = api.StatusOf(err)
		s.log.Debugf("%s by %s failed: %v", entry.Operation, entry.User, err)
	}
	s.audit.Record(entry)
}

// open parses and decrypts a transport envelope.
func open(encoded, iv string, key []byte) ([]byte, error) {
	return secrets.DecryptEncoded(encoded, iv, key)
}

// cleanFileName keeps the base name of a client-supplied path.
func cleanFileName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	base := path.Base(name)
	if name == "" || base == "." || base == "/" || base == ".." {
		return "", fmt.Errorf("%w: invalid file name %q", kerrors.ErrInvalidRequest, name)
	}
	return base, nil
}
