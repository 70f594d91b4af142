// Package configs manages client and server configuration for Kaitiaki.
//
// # Client
//
// The CLI keeps a TOML file at $XDG_CONFIG_HOME/kaitiaki/config.toml:
//
//	server_url = "https://drive.example.com"
//	token = "eyJ..."
//	default_algorithm = "ECC"
//
// ClientKaitiakiSettings holds the config and custody directories and is
// computed once at start-up.
//
// # Server
//
// `kaitiaki server serve` reads kaitiaki.yaml through viper. Every key can be
// overridden with a KAITIAKI_ environment variable where dots become
// underscores, so database.dsn is KAITIAKI_DATABASE_DSN.
//
//	server:
//	  listen: ":8080"
//	identity:
//	  private_key_path: /etc/kaitiaki/server.pem
//	database:
//	  driver: pgx
//	  dsn: postgres://kaitiaki@localhost/kaitiaki
//	auth:
//	  jwt_secret: ...
package configs
