// Package server exposes the vault service over HTTP with gin.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PolarWolf314/kaitiaki/internal/api"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	logger "github.com/PolarWolf314/kaitiaki/internal/logging"
	"github.com/PolarWolf314/kaitiaki/internal/vault"
)

// MaxBodyBytes caps request bodies. Envelopes are base64, so this allows
// roughly 48 MiB of plaintext.
const MaxBodyBytes = 64 << 20

// Resolver maps a bearer token to a user ID. *identity.Issuer implements it.
type Resolver interface {
	Resolve(token string) (string, error)
}

// Options configures the router.
type Options struct {
	Service  *vault.Service
	Resolver Resolver
	Logger   logger.Logger

	// CORSOrigin is sent as Access-Control-Allow-Origin when set.
	CORSOrigin string
}

// New returns the HTTP handler for the API.
func New(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(opts.Logger), limitBody(MaxBodyBytes))
	if opts.CORSOrigin != "" {
		r.Use(cors(opts.CORSOrigin))
	}

	h := &handlers{service: opts.Service, log: opts.Logger}

	r.GET("/health", h.health)
	r.GET("/keys/public", h.serverPublicKey)

	authed := r.Group("/", authenticate(opts.Resolver))
	authed.GET("/keys", h.userKey)
	authed.POST("/keys/sync", h.syncKey)
	authed.POST("/keys/verify", h.verify)
	authed.POST("/files/upload", h.upload)
	authed.GET("/files", h.listFiles)
	authed.GET("/files/:id", h.getFile)
	authed.GET("/files/:id/download", h.download)

	return r
}

type handlers struct {
	service *vault.Service
	log     logger.Logger
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (h *handlers) serverPublicKey(c *gin.Context) {
	key, err := h.service.ServerPublicKey()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.PublicKeyResponse{Success: true, PublicKey: key})
}

func (h *handlers) userKey(c *gin.Context) {
	key, err := h.service.UserKey(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.UserKeyResponse{Success: true, Data: *key})
}

func (h *handlers) syncKey(c *gin.Context) {
	var req api.KeySyncRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.service.SyncKey(c.Request.Context(), userID(c), req); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.SyncResponse{Success: true})
}

func (h *handlers) verify(c *gin.Context) {
	var req api.VerifyRequest
	if !h.bind(c, &req) {
		return
	}
	valid, err := h.service.Verify(c.Request.Context(), userID(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.VerifyResponse{Success: true, IsValid: valid})
}

func (h *handlers) upload(c *gin.Context) {
	var req api.UploadRequest
	if !h.bind(c, &req) {
		return
	}
	file, err := h.service.Upload(c.Request.Context(), userID(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.FileResponse{Success: true, File: *file})
}

func (h *handlers) listFiles(c *gin.Context) {
	files, err := h.service.ListFiles(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FilesResponse{Success: true, Files: files})
}

func (h *handlers) getFile(c *gin.Context) {
	file, err := h.service.GetFile(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FileResponse{Success: true, File: *file})
}

func (h *handlers) download(c *gin.Context) {
	dl, err := h.service.Download(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", strconv.Quote(dl.Filename)))
	c.Data(http.StatusOK, "application/zip", dl.Data)
}

// bind decodes the JSON body. On failure it writes a BAD_REQUEST response.
func (h *handlers) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, api.ErrorResponse{Success: false, Error: api.CodeBadRequest})
			return false
		}
		h.fail(c, fmt.Errorf("%w: %v", kerrors.ErrInvalidRequest, err))
		return false
	}
	return true
}

// fail writes the error response for err. Internal errors are logged; their
// details never reach the client.
func (h *handlers) fail(c *gin.Context, err error) {
	code, status := api.StatusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	} else {
		h.log.Debugf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, api.ErrorResponse{Success: false, Error: code})
}
