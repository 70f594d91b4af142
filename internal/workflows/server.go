package workflows

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PolarWolf314/kaitiaki/internal/audit"
	"github.com/PolarWolf314/kaitiaki/internal/configs"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/identity"
	logger "github.com/PolarWolf314/kaitiaki/internal/logging"
	"github.com/PolarWolf314/kaitiaki/internal/secrets"
	"github.com/PolarWolf314/kaitiaki/internal/server"
	"github.com/PolarWolf314/kaitiaki/internal/storage"
	"github.com/PolarWolf314/kaitiaki/internal/vault"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// serve context is cancelled.
const shutdownTimeout = 10 * time.Second

// ServeOptions configures the serve workflow.
type ServeOptions struct {
	// ConfigPath is the server config file. Empty reads ./kaitiaki.yaml if present.
	ConfigPath string

	// Logger is combined with the log settings from the config file.
	Logger logger.Logger

	// Ready is called with the bound address once the listener is open.
	Ready func(addr string)
}

// Serve runs the HTTP API until ctx is cancelled, then shuts down gracefully.
//
// Returns ErrInvalidRequest for an invalid config and ErrServerKeyMissing if
// the server key pair cannot be loaded.
func Serve(ctx context.Context, opts ServeOptions) error {
	cfg, err := configs.LoadServerConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	log := opts.Logger
	log.Verbose = log.Verbose || cfg.Log.Verbose
	log.Debug = log.Debug || cfg.Log.Debug

	serverIdentity, err := cfg.LoadIdentity()
	if err != nil {
		return err
	}
	fingerprint, _ := secrets.Fingerprint(serverIdentity.PublicKeyPEM)
	log.Infof("Loaded server key %s", fingerprint)

	repo, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer repo.Close()
	log.Infof("Opened %s storage", cfg.Database.Driver)

	issuer, err := identity.NewIssuer(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	if !log.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	service := vault.NewService(serverIdentity, repo, audit.New(cfg.Audit.Path), log)
	handler := server.New(server.Options{
		Service:    service,
		Resolver:   issuer,
		Logger:     log,
		CORSOrigin: cfg.CORSOrigin,
	})

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Listen, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	addr := listener.Addr().String()
	log.Infof("Listening on %s", addr)
	if opts.Ready != nil {
		opts.Ready(addr)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// ServerKeygenOptions configures the server keygen workflow.
type ServerKeygenOptions struct {
	// Bits is the RSA modulus size: 2048 or 4096.
	Bits int

	// OutDir receives server_private.pem and server_public.pem.
	OutDir string

	// Force overwrites an existing key pair.
	Force bool
}

// ServerKeygenResult contains the written key paths.
type ServerKeygenResult struct {
	PrivateKeyPath string
	PublicKeyPath  string
	Fingerprint    string
}

// ServerKeygen writes a new RSA key-transport key pair for the server.
//
// Returns ErrKeyExists if the private key file exists and Force is not set.
func ServerKeygen(ctx context.Context, opts ServerKeygenOptions) (*ServerKeygenResult, error) {
	bits := opts.Bits
	if bits == 0 {
		bits = secrets.RSAKeyBits
	}
	if bits != 2048 && bits != 4096 {
		return nil, fmt.Errorf("%w: bits must be 2048 or 4096, got %d", kerrors.ErrInvalidRequest, bits)
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = "."
	}
	result := &ServerKeygenResult{
		PrivateKeyPath: filepath.Join(outDir, "server_private.pem"),
		PublicKeyPath:  filepath.Join(outDir, "server_public.pem"),
	}

	if _, err := os.Stat(result.PrivateKeyPath); err == nil && !opts.Force {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrKeyExists, result.PrivateKeyPath)
	}

	if err := secrets.GenerateRSAKeyPair(result.PrivateKeyPath, result.PublicKeyPath, bits); err != nil {
		return nil, err
	}

	publicKeyPEM, err := os.ReadFile(result.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	if result.Fingerprint, err = secrets.Fingerprint(string(publicKeyPEM)); err != nil {
		return nil, err
	}
	return result, nil
}

// ServerTokenOptions configures the server token workflow.
type ServerTokenOptions struct {
	ConfigPath string
	UserID     string
	TTL        time.Duration
}

// ServerTokenResult is an issued bearer token.
type ServerTokenResult struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// ServerToken issues a bearer token signed with the configured JWT secret.
func ServerToken(ctx context.Context, opts ServerTokenOptions) (*ServerTokenResult, error) {
	cfg, err := configs.LoadServerConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	issuer, err := identity.NewIssuer(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	token, err := issuer.Issue(opts.UserID, ttl)
	if err != nil {
		return nil, err
	}
	return &ServerTokenResult{Token: token, UserID: strings.TrimSpace(opts.UserID), ExpiresAt: time.Now().Add(ttl)}, nil
}

// ServerLogOptions configures the server log workflow.
type ServerLogOptions struct {
	// ConfigPath locates the server config whose audit.path is read.
	ConfigPath string

	// File reads this audit log directly instead of the configured one.
	File string

	// Limit is the maximum number of entries to return. 0 means no limit.
	Limit int

	// Reverse orders entries from most recent to oldest when true.
	Reverse bool

	// User filters entries by user ID.
	User string

	// Operations filters entries by operation names (comma-separated).
	Operations string

	// Since filters entries on or after this date (YYYY-MM-DD format).
	Since string

	// Until filters entries on or before this date (YYYY-MM-DD format).
	Until string

	// FailuresOnly keeps entries that did not succeed.
	FailuresOnly bool
}

// ServerLogResult contains the filtered entries.
type ServerLogResult struct {
	Path                     string
	Entries                  []audit.Entry
	TotalEntriesBeforeFilter int
}

// ServerLog reads and filters the audit log.
//
// Returns ErrNoFilesFound if no audit log exists.
// Returns ErrInvalidRequest if a date is not YYYY-MM-DD.
func ServerLog(ctx context.Context, opts ServerLogOptions) (*ServerLogResult, error) {
	path := opts.File
	if path == "" {
		cfg, err := configs.LoadServerConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		path = cfg.Audit.Path
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrNoFilesFound, path)
	}
	entries, err := audit.ReadEntries(path)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}

	filter := audit.Filter{
		User:         opts.User,
		FailuresOnly: opts.FailuresOnly,
		Reverse:      opts.Reverse,
		Limit:        opts.Limit,
	}
	if opts.Operations != "" {
		filter.Operations = strings.Split(opts.Operations, ",")
	}
	if opts.Since != "" {
		if filter.Since, err = time.Parse("2006-01-02", opts.Since); err != nil {
			return nil, fmt.Errorf("%w: --since date format invalid, use YYYY-MM-DD", kerrors.ErrInvalidRequest)
		}
	}
	if opts.Until != "" {
		until, err := time.Parse("2006-01-02", opts.Until)
		if err != nil {
			return nil, fmt.Errorf("%w: --until date format invalid, use YYYY-MM-DD", kerrors.ErrInvalidRequest)
		}
		// Include the entire day.
		filter.Until = until.Add(24*time.Hour - time.Nanosecond)
	}

	return &ServerLogResult{
		Path:                     path,
		Entries:                  filter.Apply(entries),
		TotalEntriesBeforeFilter: len(entries),
	}, nil
}

// FormatDateTime formats an audit timestamp as YYYY-MM-DD HH:MM:SS.
func FormatDateTime(e audit.Entry) string {
	t := e.Time()
	if t.IsZero() {
		if len(e.Timestamp) >= 19 {
			return e.Timestamp[:19]
		}
		return e.Timestamp
	}
	return t.Format("2006-01-02 15:04:05")
}

// FormatDetails summarises the operation-specific fields of an entry.
func FormatDetails(e audit.Entry) string {
	var parts []string
	if e.FileName != "" {
		parts = append(parts, e.FileName)
	}
	if e.FileID != "" {
		parts = append(parts, "id="+e.FileID)
	}
	if e.Algorithm != "" {
		parts = append(parts, e.Algorithm)
	}
	if e.Signed {
		parts = append(parts, "signed")
	}
	if e.Valid != nil {
		if *e.Valid {
			parts = append(parts, "valid")
		} else {
			parts = append(parts, "invalid")
		}
	}
	return strings.Join(parts, " ")
}
