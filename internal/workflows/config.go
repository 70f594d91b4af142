package workflows

import (
	"context"
	"fmt"
	"strings"

	"github.com/PolarWolf314/kaitiaki/internal/client"
	"github.com/PolarWolf314/kaitiaki/internal/configs"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/secrets"
)

// ConfigSetServerOptions configures the config set-server workflow.
type ConfigSetServerOptions struct {
	// URL is the server base URL, e.g. https://drive.example.com.
	URL string

	// SkipCheck saves the URL without contacting the server.
	SkipCheck bool
}

// ConfigSetServerResult contains the outcome of setting the server URL.
type ConfigSetServerResult struct {
	// ServerURL is the normalised URL that was saved.
	ServerURL string

	// PreviousURL is the URL that was replaced, if any.
	PreviousURL string

	// Reachable is true when the health check succeeded.
	Reachable bool
}

// ConfigSetServer validates the URL, checks the server answers /health and
// saves it to config.toml.
//
// Returns ErrInvalidRequest if the URL is not an absolute http(s) URL.
func ConfigSetServer(ctx context.Context, opts ConfigSetServerOptions) (*ConfigSetServerResult, error) {
	config, err := configs.LoadClientConfig()
	if err != nil {
		return nil, err
	}

	result := &ConfigSetServerResult{PreviousURL: config.ServerURL}
	if err := config.SetServerURL(opts.URL); err != nil {
		return nil, err
	}
	result.ServerURL = config.ServerURL

	if !opts.SkipCheck {
		if err := client.New(config.ServerURL, "").Health(ctx); err != nil {
			return nil, fmt.Errorf("server at %s is not reachable: %w", config.ServerURL, err)
		}
		result.Reachable = true
	}

	if err := configs.SaveClientConfig(config); err != nil {
		return nil, err
	}
	return result, nil
}

// ConfigSetTokenOptions configures the config set-token workflow.
type ConfigSetTokenOptions struct {
	Token string
}

// ConfigSetToken saves the bearer token to config.toml.
//
// Returns ErrInvalidRequest if the token is empty.
func ConfigSetToken(ctx context.Context, opts ConfigSetTokenOptions) error {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return fmt.Errorf("%w: token is empty", kerrors.ErrInvalidRequest)
	}

	config, err := configs.LoadClientConfig()
	if err != nil {
		return err
	}
	config.Token = token
	return configs.SaveClientConfig(config)
}

// ConfigShowResult describes the client configuration.
type ConfigShowResult struct {
	ConfigPath       string
	CustodyPath      string
	ServerURL        string
	MaskedToken      string
	DefaultAlgorithm string
}

// ConfigShow returns the current client configuration with the token masked.
func ConfigShow(ctx context.Context) (*ConfigShowResult, error) {
	config, err := configs.LoadClientConfig()
	if err != nil {
		return nil, err
	}
	alg, err := config.Algorithm()
	if err != nil {
		return nil, err
	}
	return &ConfigShowResult{
		ConfigPath:       configs.ClientKaitiakiSettings.ClientConfigFile(),
		CustodyPath:      configs.ClientKaitiakiSettings.CustodyPath,
		ServerURL:        config.ServerURL,
		MaskedToken:      config.MaskedToken(),
		DefaultAlgorithm: alg.String(),
	}, nil
}

// ConfigSetAlgorithm saves the default signing algorithm used by keys generate.
func ConfigSetAlgorithm(ctx context.Context, alg secrets.Algorithm) error {
	config, err := configs.LoadClientConfig()
	if err != nil {
		return err
	}
	config.DefaultAlgorithm = alg.String()
	return configs.SaveClientConfig(config)
}
