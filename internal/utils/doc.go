// Package utils provides shared utility functions for the veil CLI.
//
// # Filesystem Utilities
//
//   - FindRepositoryRoot: walks up directories to find a git repository
//
// # System Utilities
//
//   - GetUsername, GetHostname: identify who ran an operation in the audit log
//
// # String Utilities
//
//   - FormatList: formats refs, fingerprints or paths for human-readable output
//
// # I/O and Terminal Utilities
//
//   - ReadStdin: reads a private key piped to the command
//   - ReadPassphraseFromTTY: prompts for the passphrase of a protected key,
//     even when stdin is in use
package utils
