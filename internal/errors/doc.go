// Package errors provides typed error values for veil.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching.
//
// # Error Categories
//
// Errors are grouped by category:
//
//   - Store errors: the object store failed or lacks an object (ErrStore, ErrObjectNotFound)
//   - Ref errors: a ref is missing, moved underneath us or would lose commits (ErrRefNotFound, ErrRefChanged, ErrNonFastForward)
//   - Cipher errors: ciphertext is truncated or corrupt (ErrShortInput, ErrCipher)
//   - Mirror errors: a correspondence is missing (ErrRemapNotFound, ErrCommitMismatch)
//   - Key errors: no local key unlocks the keychain (ErrKeyUnlock)
//   - Configuration errors: a setting or repository is missing (ErrNotConfigured, ErrNotRepository)
//   - Audit errors: the audit log is absent or a filter is malformed (ErrNoAuditLog)
//
// # Usage
//
// Return errors from internal packages, wrapped with context:
//
//	return fmt.Errorf("mapping tree %s: %w", id, kerrors.ErrRemapNotFound)
//
// Handle errors in the CLI layer:
//
//	result, err := workflows.Push(ctx, opts)
//	if errors.Is(err, kerrors.ErrKeyUnlock) {
//	    // Show user-friendly message
//	}
package errors
