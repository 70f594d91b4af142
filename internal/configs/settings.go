package configs

import (
	"log"
	"os"
	"path/filepath"
)

// ClientSettings holds the paths the CLI reads and writes on this machine.
type ClientSettings struct {
	// ConfigPath is the directory holding config.toml.
	ConfigPath string

	// CustodyPath is the directory holding the local key material.
	CustodyPath string
}

// ClientKaitiakiSettings is computed once at start-up.
var ClientKaitiakiSettings *ClientSettings

func init() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("error getting home directory: %s", err)
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatalf("error getting config directory: %s", err)
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	ClientKaitiakiSettings = &ClientSettings{
		ConfigPath:  filepath.Join(configDir, "kaitiaki"),
		CustodyPath: filepath.Join(dataDir, "kaitiaki", "custody"),
	}
}

// ClientConfigFile returns the path of the client config file.
func (s *ClientSettings) ClientConfigFile() string {
	return filepath.Join(s.ConfigPath, "config.toml")
}
