// Package utils provides shared helpers for the Kaitiaki CLI.
//
// # Files
//
// ResolveFiles expands the paths, directories and ** globs given to
// `kaitiaki files upload` into a deduplicated list of regular files.
// Hidden files and directories are skipped when expanding.
//
// # Formatting
//
//   - FormatPaths: formats file paths for human-readable output
//   - FormatSize: renders byte counts
//   - ShortID: truncates UUIDs and fingerprints
//
// # System and terminal
//
//   - DeviceName: a sanitised hostname recorded with local key material
//   - ReadPassphrase, Confirm, IsTerminal: interactive prompts
//   - ReadStdin: reads a piped token
package utils
