// Package workflows provides high-level orchestration for Kaitiaki commands.
//
// Workflows coordinate configuration, local key custody, the API client and
// the vault sealing code to implement complete user-facing features. Each
// workflow handles a single command's business logic, independent of CLI
// concerns like flag parsing, spinners, and output formatting.
//
// # Layering
//
// cmd/ parses flags, asks for the custody passphrase when CustodySealed
// reports a sealed store, calls one workflow and renders its result.
// Everything between is here: config loading, opening or replacing local
// key material, and the calls to the server.
//
// # Available Workflows
//
// Client:
//
//   - ConfigSetServer, ConfigSetToken, ConfigSetAlgorithm, ConfigShow: manage config.toml
//   - KeysGenerate: generate a key pair and symmetric key and register them
//   - KeysStatus: compare local custody with the server's registration
//   - FilesUpload, FilesList, FilesDownload, FilesVerify: the drive itself
//
// Server:
//
//   - Serve: run the HTTP API until the context is cancelled
//   - ServerKeygen: write the server's RSA key pair
//   - ServerToken: issue a bearer token for a user
//   - ServerLog: read and filter the audit log
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package, allowing
// the CLI layer to provide appropriate user-facing messages without string
// matching:
//
//	result, err := workflows.FilesUpload(ctx, opts)
//	if errors.Is(err, kerrors.ErrNoLocalKey) {
//	    // Suggest running `kaitiaki keys generate`
//	}
//
// # Context Usage
//
// All workflow functions accept a context.Context as their first parameter.
// It is passed to every HTTP request and database call.
package workflows
