// Package api defines the JSON bodies exchanged between the CLI and the
// server. Field names match what existing clients send.
package api

import "time"

// KeySyncRequest registers a user's public key and wrapped symmetric key.
type KeySyncRequest struct {
	EncryptedAsymmetricKey string `json:"encrypted_asymmetric_key"`
	PublicKey              string `json:"public_key"`
	Algorithm              string `json:"algorithm"`
}

// UploadRequest carries one encrypted file.
type UploadRequest struct {
	Name             string `json:"name"`
	EncryptedContent string `json:"encrypted_content"`
	IV               string `json:"iv"`
	Hash             string `json:"hash"`
	Signature        string `json:"signature"`
	Algorithm        string `json:"algorithm"`
	ContentType      string `json:"contentType"`
	Size             int64  `json:"size"`
}

// VerifyRequest asks the server to check a signature over encrypted content.
// The server unwraps the caller's own stored symmetric key.
type VerifyRequest struct {
	EncryptedContent string `json:"encrypted_content"`
	IV               string `json:"iv"`
	PublicKey        string `json:"public_key"`
	Signature        string `json:"signature"`
}

// File describes a stored file. Content is never included.
type File struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Signed      bool      `json:"signed"`
	Algorithm   string    `json:"algorithm,omitempty"`
	Digest      string    `json:"hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserKey is the caller's registration status.
type UserKey struct {
	HasKey    bool   `json:"has_key"`
	PublicKey string `json:"public_key,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
}

// SignatureSidecar is written next to a downloaded file as
// <name>.signature.json.
type SignatureSidecar struct {
	Algorithm string `json:"algorithm"`
	Digest    string `json:"digest"`
	Signature string `json:"signature"`
	PublicKey string `json:"public_key"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type PublicKeyResponse struct {
	Success   bool   `json:"success"`
	PublicKey string `json:"public_key"`
}

type UserKeyResponse struct {
	Success bool    `json:"success"`
	Data    UserKey `json:"data"`
}

type SyncResponse struct {
	Success bool `json:"success"`
}

type VerifyResponse struct {
	Success bool `json:"success"`
	IsValid bool `json:"is_valid"`
}

type FileResponse struct {
	Success bool `json:"success"`
	File    File `json:"file"`
}

type FilesResponse struct {
	Success bool   `json:"success"`
	Files   []File `json:"files"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
