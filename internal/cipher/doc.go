// Package cipher implements the symmetric transform veil applies to every
// object payload it mirrors.
//
// # Format
//
// Each encryption draws a fresh random 16-byte IV and writes it verbatim in
// front of the ciphertext, so every encrypted object is self-describing:
//
//	[IV 16][AES-256-CBC ciphertext, PKCS#7 padded]
//
// # Streaming
//
// NewEncryptReader and NewDecryptReader wrap an io.Reader and never hold the
// whole payload in memory. Decryption first accumulates exactly 16 bytes of
// IV, then switches to pass-through decryption, holding back one block so the
// padding can be checked when the input ends.
//
// # Strings
//
// EncryptString and DecryptString buffer small payloads (tree entry names,
// commit messages) and apply a text encoding to the ciphertext so it can be
// embedded in git tree entries and commit messages.
package cipher
