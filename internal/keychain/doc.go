// Package keychain holds the repository symmetric key, wrapped once per
// authorized collaborator.
//
// The wrapped copies live in a tree in the encrypted store. Each entry is
// named by the hex encoding of the collaborator's SSH SHA256 fingerprint and
// points at a blob holding the key encrypted with RSA-OAEP under that
// collaborator's public key. Unlocking matches local SSH key pairs against
// the entries and unwraps the first one that works.
package keychain
