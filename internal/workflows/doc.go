// Package workflows provides high-level orchestration for veil commands.
//
// Workflows coordinate multiple operations across packages (configs, store,
// keychain, remap, mirror, audit) to implement complete user-facing
// features. Each workflow handles a single command's business logic,
// independent of CLI concerns like flag parsing, spinners, and output
// formatting.
//
// # Design Philosophy
//
// The cmd/ package should be a thin layer that:
//   - Parses command-line flags and arguments
//   - Calls the appropriate workflow function
//   - Formats the result for display
//
// Workflows handle everything else:
//   - Loading configuration
//   - Opening the plaintext and encrypted repositories
//   - Unlocking the keychain
//   - Performing the core operation
//   - Recording audit trail entries
//
// # Available Workflows
//
//   - Push: Mirrors a plaintext ref into the encrypted repository
//   - Pull: Mirrors an encrypted ref back into a plaintext repository
//   - SyncKeys: Seals the repository key for more collaborators
//   - ListKeys: Lists keychain fingerprints
//   - CheckUnlock: Verifies a local key can unlock the keychain
//   - RemapLookup, RemapList: Inspect the remap table
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package, allowing
// the CLI layer to provide appropriate user-facing messages without string
// matching. Use errors.Is() to check for specific error conditions:
//
//	result, err := workflows.Push(ctx, opts)
//	if errors.Is(err, kerrors.ErrKeyUnlock) {
//	    // Tell the user to ask a collaborator for access
//	}
//
// # Context Usage
//
// All workflow functions accept a context.Context as their first parameter.
// This enables cancellation, timeouts, and passing request-scoped values.
package workflows
