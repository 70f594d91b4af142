package vault

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PolarWolf314/kaitiaki/internal/api"
	"github.com/PolarWolf314/kaitiaki/internal/archive"
	"github.com/PolarWolf314/kaitiaki/internal/audit"
	"github.com/PolarWolf314/kaitiaki/internal/custody"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	logger "github.com/PolarWolf314/kaitiaki/internal/logging"
	"github.com/PolarWolf314/kaitiaki/internal/secrets"
	"github.com/PolarWolf314/kaitiaki/internal/storage"
)

type testEnv struct {
	service  *Service
	repo     *storage.Storage
	identity *secrets.ServerIdentity
	auditLog string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate server key: %v", err)
	}
	privPEM, err := secrets.MarshalPrivateKeyPEM(privateKey)
	if err != nil {
		t.Fatalf("Failed to marshal server key: %v", err)
	}
	identity, err := secrets.NewServerIdentity("", string(privPEM))
	if err != nil {
		t.Fatalf("NewServerIdentity failed: %v", err)
	}

	dir := t.TempDir()
	repo, err := storage.Open(context.Background(), "sqlite", filepath.Join(dir, "kaitiaki.db"))
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	auditPath := filepath.Join(dir, "audit.jsonl")
	log := logger.Logger{Out: io.Discard, Err: io.Discard}
	return &testEnv{
		service:  NewService(identity, repo, audit.New(auditPath), log),
		repo:     repo,
		identity: identity,
		auditLog: auditPath,
	}
}

// register creates client material and syncs it the way the custody manager does.
func (e *testEnv) register(t *testing.T, userID string, alg secrets.Algorithm) *custody.Material {
	t.Helper()

	kp, err := secrets.GenerateKeyPair(alg)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	symmetricKey, err := secrets.CreateSymmetricKey()
	if err != nil {
		t.Fatalf("CreateSymmetricKey failed: %v", err)
	}
	wrapped, err := secrets.WrapKey(symmetricKey, e.identity.PublicKeyPEM)
	if err != nil {
		t.Fatalf("WrapKey failed: %v", err)
	}

	err = e.service.SyncKey(context.Background(), userID, api.KeySyncRequest{
		EncryptedAsymmetricKey: wrapped,
		PublicKey:              kp.PublicKeyPEM,
		Algorithm:              alg.String(),
	})
	if err != nil {
		t.Fatalf("SyncKey failed: %v", err)
	}

	return &custody.Material{
		Algorithm:    alg,
		PrivateKey:   kp.PrivateKey,
		PublicKeyPEM: kp.PublicKeyPEM,
		SymmetricKey: symmetricKey,
	}
}

func (e *testEnv) fileCount(t *testing.T, userID string) int {
	t.Helper()
	files, err := e.service.ListFiles(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	return len(files)
}

func readBundle(t *testing.T, dl *Download) map[string][]byte {
	t.Helper()
	entries, err := archive.Read(dl.Data)
	if err != nil {
		t.Fatalf("Failed to read download: %v", err)
	}
	files := make(map[string][]byte, len(entries))
	for _, e := range entries {
		files[e.Name] = e.Data
	}
	return files
}

func TestHelloVault_Plain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	material := env.register(t, "alice", secrets.RSA)

	req, err := SealUpload([]byte("hello-vault"), material, SealOptions{Name: "hello.txt"})
	if err != nil {
		t.Fatalf("SealUpload failed: %v", err)
	}
	if req.Hash != "" || req.Signature != "" {
		t.Errorf("Expected unsigned request, got hash %q signature %q", req.Hash, req.Signature)
	}

	file, err := env.service.Upload(ctx, "alice", *req)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if file.Size != int64(len("hello-vault")) {
		t.Errorf("Expected size %d, got %d", len("hello-vault"), file.Size)
	}
	if file.Signed {
		t.Errorf("Expected unsigned file")
	}
	if !strings.HasPrefix(file.ContentType, "text/plain") {
		t.Errorf("Expected text/plain content type, got %q", file.ContentType)
	}

	dl, err := env.service.Download(ctx, "alice", file.ID)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if dl.Filename != "hello.txt.zip" {
		t.Errorf("Expected hello.txt.zip, got %s", dl.Filename)
	}

	files := readBundle(t, dl)
	if len(files) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(files))
	}
	if string(files["hello.txt"]) != "hello-vault" {
		t.Errorf("Expected hello-vault, got %q", files["hello.txt"])
	}
}

func TestHelloVault_Signed(t *testing.T) {
	for _, alg := range secrets.Algorithms() {
		t.Run(alg.String(), func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			material := env.register(t, "alice", alg)

			req, err := SealUpload([]byte("hello-vault"), material, SealOptions{Name: "hello.txt", Sign: true})
			if err != nil {
				t.Fatalf("SealUpload failed: %v", err)
			}

			file, err := env.service.Upload(ctx, "alice", *req)
			if err != nil {
				t.Fatalf("Upload failed: %v", err)
			}
			if !file.Signed || file.Algorithm != alg.String() {
				t.Errorf("Expected signed %s file, got signed=%v algorithm=%q", alg, file.Signed, file.Algorithm)
			}

			dl, err := env.service.Download(ctx, "alice", file.ID)
			if err != nil {
				t.Fatalf("Download failed: %v", err)
			}
			files := readBundle(t, dl)
			if string(files["hello.txt"]) != "hello-vault" {
				t.Errorf("Expected hello-vault, got %q", files["hello.txt"])
			}

			raw, ok := files[SidecarName("hello.txt")]
			if !ok {
				t.Fatalf("Expected signature sidecar in download")
			}
			var sidecar api.SignatureSidecar
			if err := json.Unmarshal(raw, &sidecar); err != nil {
				t.Fatalf("Sidecar is not valid JSON: %v", err)
			}
			if sidecar.Digest != secrets.Digest([]byte("hello-vault")) {
				t.Errorf("Expected sidecar digest of plaintext, got %s", sidecar.Digest)
			}

			valid, err := secrets.Verify(sidecar.Digest, sidecar.Signature, sidecar.PublicKey, alg)
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if !valid {
				t.Errorf("Expected sidecar signature to verify")
			}
		})
	}
}

// flipByte corrupts one byte of a base64 envelope.
func flipByte(t *testing.T, encoded string) string {
	t.Helper()
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("Envelope is not base64: %v", err)
	}
	sealed[0] ^= 0x01
	return base64.StdEncoding.EncodeToString(sealed)
}

func TestUpload_TamperedCiphertext(t *testing.T) {
	for _, alg := range secrets.Algorithms() {
		t.Run(string(alg), func(t *testing.T) {
			env := newTestEnv(t)
			material := env.register(t, "alice", alg)

			req, err := SealUpload([]byte("hello-vault"), material, SealOptions{Name: "hello.txt", Sign: true})
			if err != nil {
				t.Fatalf("SealUpload failed: %v", err)
			}
			if req.Signature == "" {
				t.Fatalf("Expected a signed upload request")
			}
			req.EncryptedContent = flipByte(t, req.EncryptedContent)

			_, err = env.service.Upload(context.Background(), "alice", *req)
			if !errors.Is(err, kerrors.ErrDecryptFailed) {
				t.Errorf("Expected ErrDecryptFailed, got: %v", err)
			}
			if errors.Is(err, kerrors.ErrSignatureInvalid) {
				t.Errorf("Expected decryption to fail before the signature is checked, got: %v", err)
			}
			if n := env.fileCount(t, "alice"); n != 0 {
				t.Errorf("Expected nothing persisted, got %d files", n)
			}
		})
	}
}

func TestVerify_TamperedCiphertext(t *testing.T) {
	for _, alg := range secrets.Algorithms() {
		t.Run(string(alg), func(t *testing.T) {
			env := newTestEnv(t)
			material := env.register(t, "alice", alg)

			req, err := SealVerify([]byte("hello-vault"), material)
			if err != nil {
				t.Fatalf("SealVerify failed: %v", err)
			}
			req.EncryptedContent = flipByte(t, req.EncryptedContent)

			valid, err := env.service.Verify(context.Background(), "alice", *req)
			if !errors.Is(err, kerrors.ErrDecryptFailed) {
				t.Errorf("Expected ErrDecryptFailed, got: %v", err)
			}
			if valid {
				t.Errorf("Expected tampered content not to verify")
			}
			if n := env.fileCount(t, "alice"); n != 0 {
				t.Errorf("Expected nothing persisted, got %d files", n)
			}
		})
	}
}

func TestUpload_MalformedEnvelope(t *testing.T) {
	env := newTestEnv(t)
	material := env.register(t, "alice", secrets.RSA)

	req, err := SealUpload([]byte("hello-vault"), material, SealOptions{Name: "hello.txt"})
	if err != nil {
		t.Fatalf("SealUpload failed: %v", err)
	}
	req.EncryptedContent = base64.StdEncoding.EncodeToString([]byte("short"))

	_, err = env.service.Upload(context.Background(), "alice", *req)
	if !errors.Is(err, kerrors.ErrMalformedEnvelope) {
		t.Errorf("Expected ErrMalformedEnvelope, got: %v", err)
	}
}

func TestUpload_NoKey(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Upload(context.Background(), "nobody", api.UploadRequest{
		Name:             "x.txt",
		EncryptedContent: "AAAA",
		IV:               "AAAA",
	})
	if !errors.Is(err, kerrors.ErrNoKey) {
		t.Errorf("Expected ErrNoKey, got: %v", err)
	}
}

func TestUpload_InvalidSignature(t *testing.T) {
	env := newTestEnv(t)
	material := env.register(t, "alice", secrets.ECC)

	req, err := SealUpload([]byte("hello-vault"), material, SealOptions{Name: "hello.txt", Sign: true})
	if err != nil {
		t.Fatalf("SealUpload failed: %v", err)
	}
	other, err := secrets.GenerateKeyPair(secrets.ECC)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	req.Signature, err = secrets.Sign(req.Hash, other.PrivateKey, secrets.ECC)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	_, err = env.service.Upload(context.Background(), "alice", *req)
	if !errors.Is(err, kerrors.ErrSignatureInvalid) {
		t.Errorf("Expected ErrSignatureInvalid, got: %v", err)
	}
	if n := env.fileCount(t, "alice"); n != 0 {
		t.Errorf("Expected nothing persisted, got %d files", n)
	}
}

// trustClientHash accepts an upload when the signature verifies over the
// digest the client claims, without looking at the content.
func trustClientHash(req *api.UploadRequest, publicKeyPEM string, alg secrets.Algorithm) bool {
	valid, err := secrets.Verify(req.Hash, req.Signature, publicKeyPEM, alg)
	return err == nil && valid
}

func TestUpload_SwappedCiphertextRejected(t *testing.T) {
	env := newTestEnv(t)
	material := env.register(t, "alice", secrets.RSA)

	req, err := SealUpload([]byte("hello-vault"), material, SealOptions{Name: "hello.txt", Sign: true})
	if err != nil {
		t.Fatalf("SealUpload failed: %v", err)
	}

	swapped, err := secrets.Encrypt([]byte("goodbye-vault"), material.SymmetricKey)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	req.EncryptedContent, req.IV = swapped.Encode()

	if !trustClientHash(req, material.PublicKeyPEM, secrets.RSA) {
		t.Fatalf("Expected trusting the client hash to accept the swapped ciphertext")
	}

	_, err = env.service.Upload(context.Background(), "alice", *req)
	if !errors.Is(err, kerrors.ErrDigestMismatch) {
		t.Errorf("Expected ErrDigestMismatch, got: %v", err)
	}
	if n := env.fileCount(t, "alice"); n != 0 {
		t.Errorf("Expected nothing persisted, got %d files", n)
	}
}

func TestUpload_StripsDirectories(t *testing.T) {
	env := newTestEnv(t)
	material := env.register(t, "alice", secrets.RSA)

	req, err := SealUpload([]byte("{}"), material, SealOptions{Name: "../../etc/config.json"})
	if err != nil {
		t.Fatalf("SealUpload failed: %v", err)
	}
	file, err := env.service.Upload(context.Background(), "alice", *req)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if file.Name != "config.json" {
		t.Errorf("Expected config.json, got %s", file.Name)
	}
	if !strings.HasPrefix(file.ContentType, "application/json") {
		t.Errorf("Expected application/json, got %s", file.ContentType)
	}
}

func TestVerify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	material := env.register(t, "alice", secrets.ECC)

	req, err := SealVerify([]byte("hello-vault"), material)
	if err != nil {
		t.Fatalf("SealVerify failed: %v", err)
	}

	valid, err := env.service.Verify(ctx, "alice", *req)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !valid {
		t.Errorf("Expected signature to verify")
	}

	// Empty public key falls back to the registered one.
	req.PublicKey = ""
	valid, err = env.service.Verify(ctx, "alice", *req)
	if err != nil || !valid {
		t.Errorf("Expected registered key to verify, got valid=%v err=%v", valid, err)
	}

	req.PublicKey = "not a key"
	_, err = env.service.Verify(ctx, "alice", *req)
	if !errors.Is(err, kerrors.ErrSignatureInput) {
		t.Errorf("Expected ErrSignatureInput for unparsable key, got: %v", err)
	}
}

func TestVerify_WrongKeyIsFalse(t *testing.T) {
	env := newTestEnv(t)
	material := env.register(t, "alice", secrets.RSA)

	req, err := SealVerify([]byte("hello-vault"), material)
	if err != nil {
		t.Fatalf("SealVerify failed: %v", err)
	}
	other, err := secrets.GenerateKeyPair(secrets.RSA)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	req.PublicKey = other.PublicKeyPEM

	valid, err := env.service.Verify(context.Background(), "alice", *req)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if valid {
		t.Errorf("Expected signature not to verify with another key")
	}
}

func TestGetFile_OtherOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	material := env.register(t, "alice", secrets.RSA)
	env.register(t, "bob", secrets.RSA)

	req, err := SealUpload([]byte("hello-vault"), material, SealOptions{Name: "hello.txt"})
	if err != nil {
		t.Fatalf("SealUpload failed: %v", err)
	}
	file, err := env.service.Upload(ctx, "alice", *req)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if _, err := env.service.GetFile(ctx, "bob", file.ID); !errors.Is(err, kerrors.ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got: %v", err)
	}
	if _, err := env.service.Download(ctx, "bob", file.ID); !errors.Is(err, kerrors.ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got: %v", err)
	}
	if n := env.fileCount(t, "bob"); n != 0 {
		t.Errorf("Expected bob to see 0 files, got %d", n)
	}

	got, err := env.service.GetFile(ctx, "alice", file.ID)
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if got.Name != "hello.txt" {
		t.Errorf("Expected hello.txt, got %s", got.Name)
	}
}

func TestSyncKey_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	eccKey, err := secrets.GenerateKeyPair(secrets.ECC)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	symmetricKey, _ := secrets.CreateSymmetricKey()
	wrapped, err := secrets.WrapKey(symmetricKey, env.identity.PublicKeyPEM)
	if err != nil {
		t.Fatalf("WrapKey failed: %v", err)
	}

	err = env.service.SyncKey(ctx, "alice", api.KeySyncRequest{
		EncryptedAsymmetricKey: wrapped,
		PublicKey:              eccKey.PublicKeyPEM,
		Algorithm:              "RSA",
	})
	if !errors.Is(err, kerrors.ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for algorithm mismatch, got: %v", err)
	}

	short, err := secrets.WrapKey(make([]byte, 16), env.identity.PublicKeyPEM)
	if err != nil {
		t.Fatalf("WrapKey failed: %v", err)
	}
	err = env.service.SyncKey(ctx, "alice", api.KeySyncRequest{
		EncryptedAsymmetricKey: short,
		PublicKey:              eccKey.PublicKeyPEM,
		Algorithm:              "ECC",
	})
	if !errors.Is(err, kerrors.ErrInvalidKeyLength) {
		t.Errorf("Expected ErrInvalidKeyLength, got: %v", err)
	}

	err = env.service.SyncKey(ctx, "alice", api.KeySyncRequest{
		EncryptedAsymmetricKey: base64.StdEncoding.EncodeToString([]byte("garbage")),
		PublicKey:              eccKey.PublicKeyPEM,
		Algorithm:              "ECC",
	})
	if !errors.Is(err, kerrors.ErrKeyTransport) {
		t.Errorf("Expected ErrKeyTransport, got: %v", err)
	}

	key, err := env.service.UserKey(ctx, "alice")
	if err != nil {
		t.Fatalf("UserKey failed: %v", err)
	}
	if key.HasKey {
		t.Errorf("Expected no key registered after failed syncs")
	}
}

func TestUserKey(t *testing.T) {
	env := newTestEnv(t)
	material := env.register(t, "alice", secrets.ECC)

	key, err := env.service.UserKey(context.Background(), "alice")
	if err != nil {
		t.Fatalf("UserKey failed: %v", err)
	}
	if !key.HasKey || key.Algorithm != "ECC" || key.PublicKey != material.PublicKeyPEM {
		t.Errorf("Unexpected user key: %+v", key)
	}
}

func TestService_RecordsAudit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	material := env.register(t, "alice", secrets.RSA)

	req, err := SealUpload([]byte("hello-vault"), material, SealOptions{Name: "hello.txt"})
	if err != nil {
		t.Fatalf("SealUpload failed: %v", err)
	}
	if _, err := env.service.Upload(ctx, "alice", *req); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	req.EncryptedContent = "!!!"
	_, _ = env.service.Upload(ctx, "alice", *req)

	entries, err := audit.ReadEntries(env.auditLog)
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 audit entries, got %d", len(entries))
	}
	if entries[0].Operation != audit.OpKeySync || entries[0].Outcome != audit.OutcomeOK {
		t.Errorf("Expected successful key sync first, got %+v", entries[0])
	}
	if entries[1].FileID == "" {
		t.Errorf("Expected upload entry to carry the file ID")
	}
	if entries[2].Outcome != api.CodeMalformedEnvelope {
		t.Errorf("Expected outcome %s, got %s", api.CodeMalformedEnvelope, entries[2].Outcome)
	}
	if entries[2].Time().After(time.Now().Add(time.Minute)) {
		t.Errorf("Expected a sensible timestamp, got %s", entries[2].Timestamp)
	}
}

func TestSealUpload_NoMaterial(t *testing.T) {
	if _, err := SealUpload([]byte("x"), nil, SealOptions{Name: "x"}); !errors.Is(err, kerrors.ErrNoLocalKey) {
		t.Errorf("Expected ErrNoLocalKey, got: %v", err)
	}
	if _, err := SealVerify([]byte("x"), nil); !errors.Is(err, kerrors.ErrNoLocalKey) {
		t.Errorf("Expected ErrNoLocalKey, got: %v", err)
	}
}
