package configs

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/secrets"
)

// ClientConfig is the CLI's config.toml.
type ClientConfig struct {
	ServerURL        string `toml:"server_url"`
	Token            string `toml:"token"`
	DefaultAlgorithm string `toml:"default_algorithm,omitempty"`
}

// LoadClientConfig reads config.toml. A missing file yields an empty config.
func LoadClientConfig() (*ClientConfig, error) {
	configPath := ClientKaitiakiSettings.ClientConfigFile()
	config := &ClientConfig{}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config, nil
	}

	if err := LoadTOML(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to load client config: %w", err)
	}

	return config, nil
}

// SaveClientConfig writes config.toml.
func SaveClientConfig(config *ClientConfig) error {
	if err := SaveTOML(ClientKaitiakiSettings.ClientConfigFile(), config); err != nil {
		return fmt.Errorf("failed to save client config: %w", err)
	}
	return nil
}

// SetServerURL validates and normalises a server base URL.
func (c *ClientConfig) SetServerURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: server URL must be an absolute http(s) URL, got %q", kerrors.ErrInvalidRequest, raw)
	}
	c.ServerURL = strings.TrimRight(u.String(), "/")
	return nil
}

// Algorithm returns the configured default signing algorithm.
func (c *ClientConfig) Algorithm() (secrets.Algorithm, error) {
	return secrets.ParseAlgorithm(c.DefaultAlgorithm)
}

// Validate reports ErrNotConfigured when the server URL or token is missing.
func (c *ClientConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("%w: no server URL set", kerrors.ErrNotConfigured)
	}
	if c.Token == "" {
		return fmt.Errorf("%w: no token set", kerrors.ErrNotConfigured)
	}
	return nil
}

// MaskedToken returns the token with all but its last four characters hidden.
func (c *ClientConfig) MaskedToken() string {
	if c.Token == "" {
		return ""
	}
	if len(c.Token) <= 4 {
		return strings.Repeat("*", len(c.Token))
	}
	return strings.Repeat("*", 8) + c.Token[len(c.Token)-4:]
}
