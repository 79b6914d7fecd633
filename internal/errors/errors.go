package errors

import "errors"

// Store errors indicate a failure of the underlying object store.
var (
	// ErrStore indicates an object store operation failed.
	ErrStore = errors.New("object store operation failed")

	// ErrObjectNotFound indicates an object id is absent from the store.
	ErrObjectNotFound = errors.New("object not found")

	// ErrRefNotFound indicates a ref does not exist.
	ErrRefNotFound = errors.New("ref not found")

	// ErrRefChanged indicates a ref moved between read and compare-and-swap update.
	ErrRefChanged = errors.New("ref changed concurrently")

	// ErrNonFastForward indicates a ref update would drop commits the ref already reaches.
	ErrNonFastForward = errors.New("update is not a fast-forward")
)

// Cipher errors indicate truncated or corrupt ciphertext.
var (
	// ErrShortInput indicates fewer bytes than an IV were supplied to decrypt.
	ErrShortInput = errors.New("ciphertext shorter than initialization vector")

	// ErrCipher indicates malformed padding or a ciphertext of invalid length.
	ErrCipher = errors.New("malformed ciphertext")

	// ErrInvalidKeyLength indicates the symmetric key has an unexpected length.
	ErrInvalidKeyLength = errors.New("invalid symmetric key length")
)

// Mirror errors indicate the remap table cannot answer a required lookup.
var (
	// ErrRemapNotFound indicates an object id has no correspondence when one is required.
	ErrRemapNotFound = errors.New("no remap entry for object")

	// ErrCommitMismatch indicates a decrypted commit disagrees with its remapped tree or parents.
	ErrCommitMismatch = errors.New("decrypted commit does not match remapped structure")

	// ErrDuplicateEntry marks a remap line that was already present. It is logged, never returned.
	ErrDuplicateEntry = errors.New("duplicate remap entry")
)

// Key errors indicate issues with the keychain or local key material.
var (
	// ErrKeyUnlock indicates no local key pair could unwrap any keychain entry.
	ErrKeyUnlock = errors.New("no local key can unlock the keychain")

	// ErrKeychainLocked indicates the keychain key was used before Unlock.
	ErrKeychainLocked = errors.New("keychain is locked")

	// ErrUnsupportedKey indicates a public key type that cannot wrap the symmetric key.
	ErrUnsupportedKey = errors.New("unsupported public key type")

	// ErrPassphraseRequired indicates a private key is protected by a passphrase.
	ErrPassphraseRequired = errors.New("private key requires a passphrase")
)

// Configuration errors.
var (
	// ErrNotConfigured indicates a required setting is missing.
	ErrNotConfigured = errors.New("required setting is not configured")

	// ErrNotRepository indicates a path is not a git repository.
	ErrNotRepository = errors.New("not a git repository")
)

// Audit log errors.
var (
	// ErrNoAuditLog indicates the audit log has not been written yet.
	ErrNoAuditLog = errors.New("no audit log found")

	// ErrInvalidDateFormat indicates a date filter is not YYYY-MM-DD.
	ErrInvalidDateFormat = errors.New("invalid date format")
)
