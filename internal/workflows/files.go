package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PolarWolf314/kaitiaki/internal/api"
	"github.com/PolarWolf314/kaitiaki/internal/archive"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/secrets"
	"github.com/PolarWolf314/kaitiaki/internal/utils"
	"github.com/PolarWolf314/kaitiaki/internal/vault"
)

// FilesUploadOptions configures the files upload workflow.
type FilesUploadOptions struct {
	CustodyOptions

	// Patterns are files, directories or doublestar globs.
	Patterns []string

	// BaseDir resolves relative patterns. Empty means the working directory.
	BaseDir string

	// Sign attaches a signature over each file's digest.
	Sign bool

	// ContentType overrides detection for every file.
	ContentType string

	// DryRun resolves files without uploading anything.
	DryRun bool
}

// FilesUploadResult contains the outcome of an upload.
type FilesUploadResult struct {
	// SourceFiles lists the local files that matched.
	SourceFiles []string

	// Uploaded lists the stored files in the same order.
	Uploaded []api.File

	DryRun bool
}

// FilesUpload seals and uploads every matching file. It stops at the first
// failure; files uploaded before it stay uploaded.
//
// Returns ErrNoFilesFound if nothing matches.
// Returns ErrNoLocalKey if keys have not been generated.
func FilesUpload(ctx context.Context, opts FilesUploadOptions) (*FilesUploadResult, error) {
	baseDir := opts.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		baseDir = wd
	}

	files, err := utils.ResolveFiles(opts.Patterns, baseDir)
	if err != nil {
		return nil, err
	}
	result := &FilesUploadResult{SourceFiles: files, DryRun: opts.DryRun}
	if opts.DryRun {
		return result, nil
	}

	_, apiClient, err := loadClient()
	if err != nil {
		return nil, err
	}
	material, err := loadMaterial(opts.CustodyOptions)
	if err != nil {
		return nil, err
	}
	defer material.Wipe()

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return result, fmt.Errorf("reading %s: %w", path, err)
		}

		req, err := vault.SealUpload(content, material, vault.SealOptions{
			Name:        filepath.Base(path),
			ContentType: opts.ContentType,
			Sign:        opts.Sign,
		})
		if err != nil {
			return result, fmt.Errorf("sealing %s: %w", path, err)
		}

		file, err := apiClient.Upload(ctx, *req)
		if err != nil {
			return result, fmt.Errorf("uploading %s: %w", path, err)
		}
		result.Uploaded = append(result.Uploaded, *file)
	}

	return result, nil
}

// FilesList returns the caller's files, newest first.
func FilesList(ctx context.Context) ([]api.File, error) {
	_, apiClient, err := loadClient()
	if err != nil {
		return nil, err
	}
	return apiClient.ListFiles(ctx)
}

// FilesDownloadOptions configures the files download workflow.
type FilesDownloadOptions struct {
	// ID is the file to download.
	ID string

	// Output is the zip path. Empty uses the name suggested by the server in
	// the working directory.
	Output string

	// ExtractDir unpacks the archive into this directory instead of saving
	// the zip, and checks the signature sidecar locally.
	ExtractDir string

	// Force overwrites existing files.
	Force bool
}

// FilesDownloadResult contains the outcome of a download.
type FilesDownloadResult struct {
	File api.File

	// ArchivePath is set when the zip was saved.
	ArchivePath string

	// Extracted lists written files when ExtractDir was set.
	Extracted []string

	// SignatureChecked is true when a sidecar was found and checked.
	SignatureChecked bool
	SignatureValid   bool
}

// FilesDownload fetches a file as a zip bundle and either saves it or
// extracts it.
//
// Returns ErrFileNotFound if the file does not exist or is not the caller's.
func FilesDownload(ctx context.Context, opts FilesDownloadOptions) (*FilesDownloadResult, error) {
	_, apiClient, err := loadClient()
	if err != nil {
		return nil, err
	}

	if opts.ExtractDir == "" && opts.Output != "" && !opts.Force {
		if _, err := os.Stat(opts.Output); err == nil {
			return nil, fmt.Errorf("%w: %s already exists (use --force to overwrite)", kerrors.ErrInvalidRequest, opts.Output)
		}
	}

	file, err := apiClient.GetFile(ctx, opts.ID)
	if err != nil {
		return nil, err
	}
	data, filename, err := apiClient.Download(ctx, opts.ID)
	if err != nil {
		return nil, err
	}
	result := &FilesDownloadResult{File: *file}

	if opts.ExtractDir == "" {
		output := opts.Output
		if output == "" {
			output = filepath.Base(filename)
		}
		if err := writeFile(output, data, opts.Force); err != nil {
			return nil, err
		}
		result.ArchivePath = output
		return result, nil
	}

	entries, err := archive.Read(data)
	if err != nil {
		return nil, err
	}

	contents := make(map[string][]byte, len(entries))
	for _, e := range entries {
		contents[e.Name] = e.Data
	}
	if raw, ok := contents[vault.SidecarName(file.Name)]; ok {
		result.SignatureChecked = true
		result.SignatureValid, err = checkSidecar(contents[file.Name], raw)
		if err != nil {
			return nil, err
		}
	}

	for _, e := range entries {
		target := filepath.Join(opts.ExtractDir, filepath.FromSlash(e.Name))
		if err := writeFile(target, e.Data, opts.Force); err != nil {
			return result, err
		}
		result.Extracted = append(result.Extracted, target)
	}
	return result, nil
}

// checkSidecar verifies a downloaded file against its signature sidecar.
func checkSidecar(content, raw []byte) (bool, error) {
	var sidecar api.SignatureSidecar
	if err := json.Unmarshal(raw, &sidecar); err != nil {
		return false, fmt.Errorf("%w: invalid signature sidecar: %v", kerrors.ErrSignatureInput, err)
	}
	digest := secrets.Digest(content)
	if digest != sidecar.Digest {
		return false, nil
	}
	alg, err := secrets.ParseAlgorithm(sidecar.Algorithm)
	if err != nil {
		return false, err
	}
	return secrets.Verify(digest, sidecar.Signature, sidecar.PublicKey, alg)
}

func writeFile(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s already exists (use --force to overwrite)", kerrors.ErrInvalidRequest, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// FilesVerifyOptions configures the files verify workflow.
type FilesVerifyOptions struct {
	CustodyOptions

	// Path is the local file to check.
	Path string
}

// FilesVerifyResult contains the server's verdict.
type FilesVerifyResult struct {
	Path      string
	Algorithm secrets.Algorithm
	Valid     bool
}

// FilesVerify signs a local file with this machine's key, sends it sealed
// to the server and returns whether the server accepted the signature for
// the content it decrypted.
func FilesVerify(ctx context.Context, opts FilesVerifyOptions) (*FilesVerifyResult, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("%w: a file path is required", kerrors.ErrInvalidRequest)
	}
	content, err := os.ReadFile(opts.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, opts.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", opts.Path, err)
	}

	_, apiClient, err := loadClient()
	if err != nil {
		return nil, err
	}
	material, err := loadMaterial(opts.CustodyOptions)
	if err != nil {
		return nil, err
	}
	defer material.Wipe()

	req, err := vault.SealVerify(content, material)
	if err != nil {
		return nil, err
	}
	valid, err := apiClient.Verify(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &FilesVerifyResult{Path: opts.Path, Algorithm: material.Algorithm, Valid: valid}, nil
}
