package vault

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/PolarWolf314/kaitiaki/internal/api"
	"github.com/PolarWolf314/kaitiaki/internal/custody"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/secrets"
)

// SealOptions controls how a file is sealed for upload.
type SealOptions struct {
	// Name is the file name stored on the server.
	Name string

	// ContentType overrides detection when set.
	ContentType string

	// Sign attaches a detached signature over the plaintext digest.
	Sign bool
}

// SealUpload encrypts plaintext under the custody symmetric key and builds the
// upload request.
func SealUpload(plaintext []byte, material *custody.Material, opts SealOptions) (*api.UploadRequest, error) {
	if material == nil {
		return nil, kerrors.ErrNoLocalKey
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", kerrors.ErrInvalidRequest)
	}

	env, err := secrets.Encrypt(plaintext, material.SymmetricKey)
	if err != nil {
		return nil, err
	}
	encoded, iv := env.Encode()

	req := &api.UploadRequest{
		Name:             name,
		EncryptedContent: encoded,
		IV:               iv,
		ContentType:      DetectContentType(name, plaintext, opts.ContentType),
		Size:             int64(len(plaintext)),
	}

	if opts.Sign {
		digest := secrets.Digest(plaintext)
		signature, err := secrets.Sign(digest, material.PrivateKey, material.Algorithm)
		if err != nil {
			return nil, err
		}
		req.Hash = digest
		req.Signature = signature
		req.Algorithm = material.Algorithm.String()
	}

	return req, nil
}

// SealVerify encrypts and signs a local file so the server can check that the
// signature holds for content it decrypts itself.
func SealVerify(plaintext []byte, material *custody.Material) (*api.VerifyRequest, error) {
	if material == nil {
		return nil, kerrors.ErrNoLocalKey
	}

	env, err := secrets.Encrypt(plaintext, material.SymmetricKey)
	if err != nil {
		return nil, err
	}
	encoded, iv := env.Encode()

	signature, err := secrets.Sign(secrets.Digest(plaintext), material.PrivateKey, material.Algorithm)
	if err != nil {
		return nil, err
	}

	return &api.VerifyRequest{
		EncryptedContent: encoded,
		IV:               iv,
		PublicKey:        material.PublicKeyPEM,
		Signature:        signature,
	}, nil
}

// DetectContentType prefers an explicit override, then the file extension,
// then content sniffing.
func DetectContentType(name string, content []byte, override string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		return byExt
	}
	return http.DetectContentType(content)
}
