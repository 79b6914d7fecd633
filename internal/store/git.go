package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/memory"

	kerrors "github.com/PolarWolf314/veil/internal/errors"
)

// Git is a Store backed by go-git storage.
type Git struct {
	s storage.Storer

	// refMu makes the existence check and write in UpdateRef atomic
	// for writers in this process.
	refMu sync.Mutex
}

// Open opens the git repository at path (work tree or bare).
func Open(path string) (*Git, error) {
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrNotRepository, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", kerrors.ErrStore, path, err)
	}
	return &Git{s: repo.Storer}, nil
}

// Init creates a new repository at path.
func Init(path string, bare bool) (*Git, error) {
	repo, err := git.PlainInit(path, bare)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing %s: %v", kerrors.ErrStore, path, err)
	}
	return &Git{s: repo.Storer}, nil
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Git {
	return &Git{s: memory.NewStorage()}
}

func hashOf(id ID) plumbing.Hash {
	return plumbing.NewHash(string(id))
}

func idOf(h plumbing.Hash) ID {
	return ID(h.String())
}

func isRefNotFound(err error) bool {
	return errors.Is(err, kerrors.ErrRefNotFound)
}

// wrap maps go-git errors onto the veil taxonomy.
func wrap(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, plumbing.ErrObjectNotFound):
		return fmt.Errorf("%w: %s", kerrors.ErrObjectNotFound, what)
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		return fmt.Errorf("%w: %s", kerrors.ErrRefNotFound, what)
	case errors.Is(err, storage.ErrReferenceHasChanged):
		return fmt.Errorf("%w: %s", kerrors.ErrRefChanged, what)
	default:
		return fmt.Errorf("%w: %s: %v", kerrors.ErrStore, what, err)
	}
}

func (g *Git) ReadBlob(ctx context.Context, id ID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obj, err := g.s.EncodedObject(plumbing.BlobObject, hashOf(id))
	if err != nil {
		return nil, wrap(err, "reading blob %s", id)
	}
	rc, err := obj.Reader()
	if err != nil {
		return nil, wrap(err, "reading blob %s", id)
	}
	return rc, nil
}

func (g *Git) WriteBlob(ctx context.Context, r io.Reader) (ID, error) {
	if err := ctx.Err(); err != nil {
		return ZeroID, err
	}
	obj := g.s.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)

	w, err := obj.Writer()
	if err != nil {
		return ZeroID, wrap(err, "writing blob")
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		// cipher failures must surface unchanged
		return ZeroID, fmt.Errorf("writing blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return ZeroID, wrap(err, "writing blob")
	}
	return g.set(obj, "blob")
}

func (g *Git) set(obj plumbing.EncodedObject, kind string) (ID, error) {
	h, err := g.s.SetEncodedObject(obj)
	if err != nil {
		return ZeroID, wrap(err, "storing %s", kind)
	}
	return idOf(h), nil
}

func (g *Git) ListTree(ctx context.Context, id ID) ([]TreeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree, err := object.GetTree(g.s, hashOf(id))
	if err != nil {
		return nil, wrap(err, "reading tree %s", id)
	}

	entries := make([]TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		mode := uint32(e.Mode)
		entries = append(entries, TreeEntry{
			Mode: mode,
			Kind: KindOfMode(mode),
			ID:   idOf(e.Hash),
			Name: e.Name,
		})
	}
	return entries, nil
}

// WriteTree stores entries in git's canonical order, as git mktree does.
func (g *Git) WriteTree(ctx context.Context, entries []TreeEntry) (ID, error) {
	if err := ctx.Err(); err != nil {
		return ZeroID, err
	}
	tree := &object.Tree{Entries: make([]object.TreeEntry, 0, len(entries))}
	for _, e := range entries {
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: e.Name,
			Mode: filemode.FileMode(e.Mode),
			Hash: hashOf(e.ID),
		})
	}
	sort.SliceStable(tree.Entries, func(i, j int) bool {
		return treeSortKey(tree.Entries[i]) < treeSortKey(tree.Entries[j])
	})

	obj := g.s.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return ZeroID, wrap(err, "encoding tree")
	}
	return g.set(obj, "tree")
}

// treeSortKey orders directories as if their name ended in a slash.
func treeSortKey(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

func (g *Git) ReadCommit(ctx context.Context, id ID) (*Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obj, err := g.s.EncodedObject(plumbing.CommitObject, hashOf(id))
	if err != nil {
		return nil, wrap(err, "reading commit %s", id)
	}

	rc, err := obj.Reader()
	if err != nil {
		return nil, wrap(err, "reading commit %s", id)
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, wrap(err, "reading commit %s", id)
	}

	c, err := object.DecodeCommit(g.s, obj)
	if err != nil {
		return nil, wrap(err, "decoding commit %s", id)
	}

	parents := make([]ID, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, idOf(p))
	}
	return &Commit{
		ID:      id,
		Tree:    idOf(c.TreeHash),
		Parents: parents,
		Message: c.Message,
		Raw:     raw,
	}, nil
}

func (g *Git) WriteCommit(ctx context.Context, spec CommitSpec) (ID, error) {
	if err := ctx.Err(); err != nil {
		return ZeroID, err
	}
	c := &object.Commit{
		Author: object.Signature{
			Name:  spec.Identity.Name,
			Email: spec.Identity.Email,
			When:  spec.Identity.AuthorDate,
		},
		Committer: object.Signature{
			Name:  spec.Identity.Name,
			Email: spec.Identity.Email,
			When:  spec.Identity.CommitterDate,
		},
		Message:  spec.Message,
		TreeHash: hashOf(spec.Tree),
	}
	for _, p := range spec.Parents {
		c.ParentHashes = append(c.ParentHashes, hashOf(p))
	}

	obj := g.s.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		return ZeroID, wrap(err, "encoding commit")
	}
	return g.set(obj, "commit")
}

func (g *Git) WriteRawCommit(ctx context.Context, raw []byte) (ID, error) {
	if err := ctx.Err(); err != nil {
		return ZeroID, err
	}
	obj := g.s.NewEncodedObject()
	obj.SetType(plumbing.CommitObject)

	w, err := obj.Writer()
	if err != nil {
		return ZeroID, wrap(err, "writing commit")
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return ZeroID, wrap(err, "writing commit")
	}
	if err := w.Close(); err != nil {
		return ZeroID, wrap(err, "writing commit")
	}
	return g.set(obj, "commit")
}

func (g *Git) ReadRef(ctx context.Context, name string) (ID, error) {
	if err := ctx.Err(); err != nil {
		return ZeroID, err
	}
	ref, err := storer.ResolveReference(g.s, plumbing.ReferenceName(name))
	if err != nil {
		return ZeroID, wrap(err, "reading ref %s", name)
	}
	return idOf(ref.Hash()), nil
}

func (g *Git) UpdateRef(ctx context.Context, name string, next, prev ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.refMu.Lock()
	defer g.refMu.Unlock()

	refName := plumbing.ReferenceName(name)
	nextRef := plumbing.NewHashReference(refName, hashOf(next))

	if prev == ZeroID {
		_, err := g.s.Reference(refName)
		if err == nil {
			return fmt.Errorf("%w: %s already exists", kerrors.ErrRefChanged, name)
		}
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return wrap(err, "reading ref %s", name)
		}
		if err := g.s.SetReference(nextRef); err != nil {
			return wrap(err, "updating ref %s", name)
		}
		return nil
	}

	cur, err := g.s.Reference(refName)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return fmt.Errorf("%w: %s no longer exists", kerrors.ErrRefChanged, name)
		}
		return wrap(err, "reading ref %s", name)
	}
	if cur.Hash() != hashOf(prev) {
		return fmt.Errorf("%w: %s is at %s, expected %s", kerrors.ErrRefChanged, name, cur.Hash(), prev)
	}

	prevRef := plumbing.NewHashReference(refName, hashOf(prev))
	if err := g.s.CheckAndSetReference(nextRef, prevRef); err != nil {
		return wrap(err, "updating ref %s", name)
	}
	return nil
}

func (g *Git) ListRefs(ctx context.Context, prefix string) (map[string]ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	iter, err := g.s.IterReferences()
	if err != nil {
		return nil, wrap(err, "listing refs")
	}
	defer iter.Close()

	refs := make(map[string]ID)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		if name := ref.Name().String(); strings.HasPrefix(name, prefix) {
			refs[name] = idOf(ref.Hash())
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err, "listing refs")
	}
	return refs, nil
}

func (g *Git) Has(ctx context.Context, id ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := g.s.HasEncodedObject(hashOf(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return false, nil
	}
	return false, wrap(err, "checking %s", id)
}

// ParseCommit decodes raw commit bytes (without the object header) and
// returns the commit together with the id they hash to.
func ParseCommit(raw []byte) (*Commit, error) {
	obj := &plumbing.MemoryObject{}
	obj.SetType(plumbing.CommitObject)
	if _, err := obj.Write(raw); err != nil {
		return nil, wrap(err, "parsing commit")
	}

	var c object.Commit
	if err := c.Decode(obj); err != nil {
		return nil, fmt.Errorf("%w: parsing commit: %v", kerrors.ErrStore, err)
	}

	parents := make([]ID, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, idOf(p))
	}
	return &Commit{
		ID:      idOf(obj.Hash()),
		Tree:    idOf(c.TreeHash),
		Parents: parents,
		Message: c.Message,
		Raw:     raw,
	}, nil
}
