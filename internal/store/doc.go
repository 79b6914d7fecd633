// Package store is the object-store boundary of veil.
//
// Store lists the plumbing primitives the mirror engine needs from a git
// object database: read and write blobs, trees and commits, read and
// compare-and-swap refs. Git implements Store over go-git storage, either a
// repository on disk (Open, Init) or an in-memory database (NewMemory).
//
// NewObjects enumerates the objects reachable from a tip and not from a
// boundary, dependency first, using only Store primitives.
//
// Contract:
//   - Objects are immutable and identified by their git SHA-1 (ID).
//   - Writing identical content twice yields the same ID.
//   - Read operations return ErrObjectNotFound when the ID is absent.
//   - ReadRef returns ErrRefNotFound when the ref is absent.
package store
