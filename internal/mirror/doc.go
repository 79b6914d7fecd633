// Package mirror copies a commit graph between a plaintext and an encrypted
// store.
//
// A push walks the plaintext objects that are new since the last push and
// writes an encrypted counterpart for each: blob contents and tree entry
// names are encrypted, and every commit is replaced by a commit with a
// synthetic identity whose message carries the whole original commit,
// encrypted. A pull walks the encrypted side and reverses each step, so the
// original object ids come back unchanged.
//
// Both directions record every id pair in the remap table of the encrypted
// store. Nothing outside the destination object database changes until the
// run reaches its final step, which writes the remap table and, on push,
// moves the destination ref.
package mirror
