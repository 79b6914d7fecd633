// Package remap persists the correspondence between plaintext and encrypted
// object ids.
//
// The table is a single blob of "<encrypted id> <plaintext id>" lines, sorted
// by key, referenced from a ref in the encrypted store. Every change writes a
// new blob and moves the ref with compare-and-swap; a missing ref reads as an
// empty table.
package remap
