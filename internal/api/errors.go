package api

import (
	"errors"
	"net/http"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
)

// Error codes carried in ErrorResponse.Error.
const (
	CodeMalformedEnvelope      = "MALFORMED_ENVELOPE"
	CodeServerKeyMisconfigured = "SERVER_KEY_MISCONFIGURED"
	CodeKeyTransportFailed     = "KEY_TRANSPORT_FAILED"
	CodeDecryptionFailed       = "DECRYPTION_FAILED"
	CodeInvalidSignatureInput  = "INVALID_SIGNATURE_INPUT"
	CodeSignatureInvalid       = "SIGNATURE_INVALID"
	CodeBadRequest             = "BAD_REQUEST"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeKeyNotFound            = "KEY_NOT_FOUND"
	CodeFileNotFound           = "FILE_NOT_FOUND"
	CodeInternalServerError    = "INTERNAL_SERVER_ERROR"
)

type errorStatus struct {
	err    error
	code   string
	status int
}

// errorTable is checked in order. ErrServerKeyMissing is wrapped together with
// ErrKeyTransport, so it must come first. For codes shared by several errors,
// the first row is what ErrorOf returns.
var errorTable = []errorStatus{
	{kerrors.ErrMalformedEnvelope, CodeMalformedEnvelope, http.StatusBadRequest},
	{kerrors.ErrServerKeyMissing, CodeServerKeyMisconfigured, http.StatusInternalServerError},
	{kerrors.ErrKeyTransport, CodeKeyTransportFailed, http.StatusBadRequest},
	{kerrors.ErrDecryptFailed, CodeDecryptionFailed, http.StatusBadRequest},
	{kerrors.ErrSignatureInput, CodeInvalidSignatureInput, http.StatusBadRequest},
	{kerrors.ErrSignatureInvalid, CodeSignatureInvalid, http.StatusBadRequest},
	{kerrors.ErrDigestMismatch, CodeSignatureInvalid, http.StatusBadRequest},
	{kerrors.ErrInvalidRequest, CodeBadRequest, http.StatusBadRequest},
	{kerrors.ErrUnsupportedAlgorithm, CodeBadRequest, http.StatusBadRequest},
	{kerrors.ErrUnauthorized, CodeUnauthorized, http.StatusUnauthorized},
	{kerrors.ErrNoKey, CodeKeyNotFound, http.StatusNotFound},
	{kerrors.ErrFileNotFound, CodeFileNotFound, http.StatusNotFound},
}

// StatusOf returns the error code and HTTP status for err.
func StatusOf(err error) (string, int) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.code, e.status
		}
	}
	return CodeInternalServerError, http.StatusInternalServerError
}

// ErrorOf maps an error code received from the server back to its sentinel.
// Unknown codes return nil.
func ErrorOf(code string) error {
	for _, e := range errorTable {
		if e.code == code {
			return e.err
		}
	}
	return nil
}
