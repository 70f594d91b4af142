package configs

import (
	"errors"
	"fmt"
	"strings"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/secrets"

	"github.com/spf13/viper"
)

// ServerConfig is the configuration of `kaitiaki server serve`.
type ServerConfig struct {
	Listen     string
	CORSOrigin string
	Identity   IdentityConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Audit      AuditConfig
	Log        LogConfig
}

// IdentityConfig locates the server's RSA key pair. Inline PEM wins over paths.
type IdentityConfig struct {
	PublicKeyPath  string
	PrivateKeyPath string
	PublicKey      string
	PrivateKey     string
}

// DatabaseConfig selects the storage driver: "sqlite" or "pgx".
type DatabaseConfig struct {
	Driver string
	DSN    string
}

type AuthConfig struct {
	JWTSecret string
}

type AuditConfig struct {
	Path string
}

type LogConfig struct {
	Verbose bool
	Debug   bool
}

// MinJWTSecretLength is the shortest HS256 secret the server accepts.
const MinJWTSecretLength = 32

// LoadServerConfig reads kaitiaki.yaml (or the file at path) and overlays
// KAITIAKI_* environment variables, e.g. KAITIAKI_DATABASE_DSN.
func LoadServerConfig(path string) (*ServerConfig, error) {
	v := viper.New()
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.cors_origin", "")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "kaitiaki.db")
	v.SetDefault("audit.path", "kaitiaki-audit.jsonl")

	v.SetEnvPrefix("KAITIAKI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read server config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("kaitiaki")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read server config: %w", err)
			}
		}
	}

	config := &ServerConfig{
		Listen:     v.GetString("server.listen"),
		CORSOrigin: v.GetString("server.cors_origin"),
		Identity: IdentityConfig{
			PublicKeyPath:  v.GetString("identity.public_key_path"),
			PrivateKeyPath: v.GetString("identity.private_key_path"),
			PublicKey:      v.GetString("identity.public_key"),
			PrivateKey:     v.GetString("identity.private_key"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("database.driver")),
			DSN:    v.GetString("database.dsn"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		Audit: AuditConfig{
			Path: v.GetString("audit.path"),
		},
		Log: LogConfig{
			Verbose: v.GetBool("log.verbose"),
			Debug:   v.GetBool("log.debug"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *ServerConfig) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("%w: database.driver must be sqlite or pgx, got %q", kerrors.ErrInvalidRequest, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is required", kerrors.ErrInvalidRequest)
	}
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("%w: auth.jwt_secret must be at least %d characters", kerrors.ErrInvalidRequest, MinJWTSecretLength)
	}
	return nil
}

// LoadIdentity loads the server key pair from inline PEM or from disk.
func (c *ServerConfig) LoadIdentity() (*secrets.ServerIdentity, error) {
	if c.Identity.PrivateKey != "" {
		return secrets.NewServerIdentity(c.Identity.PublicKey, c.Identity.PrivateKey)
	}
	return secrets.LoadServerIdentity(c.Identity.PublicKeyPath, c.Identity.PrivateKeyPath)
}
