package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{fmt.Errorf("%w: bad base64", kerrors.ErrMalformedEnvelope), CodeMalformedEnvelope, http.StatusBadRequest},
		{fmt.Errorf("%w: %w", kerrors.ErrKeyTransport, kerrors.ErrServerKeyMissing), CodeServerKeyMisconfigured, http.StatusInternalServerError},
		{kerrors.ErrKeyTransport, CodeKeyTransportFailed, http.StatusBadRequest},
		{fmt.Errorf("%w: %w", kerrors.ErrDecryptFailed, kerrors.ErrMalformedEnvelope), CodeMalformedEnvelope, http.StatusBadRequest},
		{fmt.Errorf("%w: auth tag mismatch", kerrors.ErrDecryptFailed), CodeDecryptionFailed, http.StatusBadRequest},
		{kerrors.ErrDigestMismatch, CodeSignatureInvalid, http.StatusBadRequest},
		{kerrors.ErrUnsupportedAlgorithm, CodeBadRequest, http.StatusBadRequest},
		{kerrors.ErrUnauthorized, CodeUnauthorized, http.StatusUnauthorized},
		{kerrors.ErrNoKey, CodeKeyNotFound, http.StatusNotFound},
		{kerrors.ErrFileNotFound, CodeFileNotFound, http.StatusNotFound},
		{errors.New("disk on fire"), CodeInternalServerError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		code, status := StatusOf(tt.err)
		if code != tt.code || status != tt.status {
			t.Errorf("StatusOf(%v): expected %s/%d, got %s/%d", tt.err, tt.code, tt.status, code, status)
		}
	}
}

func TestErrorOf(t *testing.T) {
	if !errors.Is(ErrorOf(CodeKeyNotFound), kerrors.ErrNoKey) {
		t.Errorf("Expected KEY_NOT_FOUND to map to ErrNoKey")
	}
	if !errors.Is(ErrorOf(CodeBadRequest), kerrors.ErrInvalidRequest) {
		t.Errorf("Expected BAD_REQUEST to map to ErrInvalidRequest")
	}
	if !errors.Is(ErrorOf(CodeSignatureInvalid), kerrors.ErrSignatureInvalid) {
		t.Errorf("Expected SIGNATURE_INVALID to map to ErrSignatureInvalid")
	}
	if ErrorOf(CodeInternalServerError) != nil {
		t.Errorf("Expected no sentinel for INTERNAL_SERVER_ERROR")
	}
}
