// Package storetest builds small commit graphs for tests.
package storetest

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/PolarWolf314/veil/internal/store"
)

// Blob writes content as a blob.
func Blob(t *testing.T, s store.Store, content string) store.ID {
	t.Helper()
	id, err := s.WriteBlob(context.Background(), strings.NewReader(content))
	if err != nil {
		t.Fatalf("WriteBlob failed: %v", err)
	}
	return id
}

// File returns a regular-file tree entry.
func File(name string, id store.ID) store.TreeEntry {
	return store.TreeEntry{Mode: store.ModeRegular, Kind: store.KindBlob, ID: id, Name: name}
}

// Dir returns a sub-tree entry.
func Dir(name string, id store.ID) store.TreeEntry {
	return store.TreeEntry{Mode: store.ModeTree, Kind: store.KindTree, ID: id, Name: name}
}

// Tree writes a tree of entries.
func Tree(t *testing.T, s store.Store, entries ...store.TreeEntry) store.ID {
	t.Helper()
	id, err := s.WriteTree(context.Background(), entries)
	if err != nil {
		t.Fatalf("WriteTree failed: %v", err)
	}
	return id
}

// Commit writes a commit with a fixed human identity.
func Commit(t *testing.T, s store.Store, message string, tree store.ID, parents ...store.ID) store.ID {
	t.Helper()
	id, err := s.WriteCommit(context.Background(), store.CommitSpec{
		Tree:    tree,
		Parents: parents,
		Message: message,
		Identity: store.Identity{
			Name:          "Ada Lovelace",
			Email:         "ada@example.com",
			AuthorDate:    time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC),
			CommitterDate: time.Date(2024, time.March, 1, 9, 31, 0, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("WriteCommit failed: %v", err)
	}
	return id
}

// SetRef points name at id, creating it if needed.
func SetRef(t *testing.T, s store.Store, name string, id store.ID) {
	t.Helper()
	ctx := context.Background()
	prev, err := store.ReadRefOrZero(ctx, s, name)
	if err != nil {
		t.Fatalf("ReadRef failed: %v", err)
	}
	if err := s.UpdateRef(ctx, name, id, prev); err != nil {
		t.Fatalf("UpdateRef failed: %v", err)
	}
}

// Recorder wraps a Store and records every object written, in order.
type Recorder struct {
	store.Store
	Writes []store.Object
}

func (r *Recorder) record(id store.ID, kind store.Kind, err error) (store.ID, error) {
	if err == nil {
		r.Writes = append(r.Writes, store.Object{ID: id, Kind: kind})
	}
	return id, err
}

func (r *Recorder) WriteBlob(ctx context.Context, rd io.Reader) (store.ID, error) {
	id, err := r.Store.WriteBlob(ctx, rd)
	return r.record(id, store.KindBlob, err)
}

func (r *Recorder) WriteTree(ctx context.Context, entries []store.TreeEntry) (store.ID, error) {
	id, err := r.Store.WriteTree(ctx, entries)
	return r.record(id, store.KindTree, err)
}

func (r *Recorder) WriteCommit(ctx context.Context, spec store.CommitSpec) (store.ID, error) {
	id, err := r.Store.WriteCommit(ctx, spec)
	return r.record(id, store.KindCommit, err)
}

func (r *Recorder) WriteRawCommit(ctx context.Context, raw []byte) (store.ID, error) {
	id, err := r.Store.WriteRawCommit(ctx, raw)
	return r.record(id, store.KindCommit, err)
}

// Kinds returns the kinds of the recorded writes.
func (r *Recorder) Kinds() []store.Kind {
	kinds := make([]store.Kind, len(r.Writes))
	for i, w := range r.Writes {
		kinds[i] = w.Kind
	}
	return kinds
}
