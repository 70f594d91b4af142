package workflows

import (
	"errors"
	"fmt"

	"github.com/PolarWolf314/kaitiaki/internal/client"
	"github.com/PolarWolf314/kaitiaki/internal/configs"
	"github.com/PolarWolf314/kaitiaki/internal/custody"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
)

// CustodyOptions selects how local key material is opened.
type CustodyOptions struct {
	// Passphrase opens sealed material, or seals newly generated material.
	Passphrase []byte
}

func (o CustodyOptions) store() *custody.FileStore {
	return custody.NewFileStore(configs.ClientKaitiakiSettings.CustodyPath, custody.WithPassphrase(o.Passphrase))
}

// CustodySealed reports whether the local key material needs a passphrase.
// No material is not sealed.
func CustodySealed() (bool, error) {
	sealed, err := custody.NewFileStore(configs.ClientKaitiakiSettings.CustodyPath).Sealed()
	if errors.Is(err, kerrors.ErrNoLocalKey) {
		return false, nil
	}
	return sealed, err
}

// loadClient returns the client config and an API client for it.
func loadClient() (*configs.ClientConfig, *client.Client, error) {
	config, err := configs.LoadClientConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}
	return config, client.New(config.ServerURL, config.Token), nil
}

// loadMaterial opens the committed key material.
func loadMaterial(opts CustodyOptions) (*custody.Material, error) {
	material, err := opts.store().Load()
	if err != nil {
		return nil, fmt.Errorf("loading local key material: %w", err)
	}
	return material, nil
}
