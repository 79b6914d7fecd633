package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	kerrors "github.com/PolarWolf314/veil/internal/errors"
)

// ID is a lowercase hex object id.
type ID string

// ZeroID is the absent id.
const ZeroID ID = ""

func (id ID) String() string { return string(id) }

// Short returns the abbreviated id used in log lines.
func (id ID) Short() string {
	if len(id) > 10 {
		return string(id[:10])
	}
	return string(id)
}

// ParseID validates s as a full SHA-1 hex id.
func ParseID(s string) (ID, error) {
	if len(s) != 40 {
		return ZeroID, fmt.Errorf("invalid object id %q: expected 40 hex characters", s)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return ZeroID, fmt.Errorf("invalid object id %q: %w", s, err)
	}
	return ID(s), nil
}

type Kind string

const (
	KindBlob   Kind = "blob"
	KindTree   Kind = "tree"
	KindCommit Kind = "commit"
)

// Tree entry modes as git writes them.
const (
	ModeTree       uint32 = 0o040000
	ModeRegular    uint32 = 0o100644
	ModeExecutable uint32 = 0o100755
	ModeSymlink    uint32 = 0o120000
	ModeGitlink    uint32 = 0o160000
)

// KindOfMode returns the object kind a tree entry with mode points at.
func KindOfMode(mode uint32) Kind {
	switch mode {
	case ModeTree:
		return KindTree
	case ModeGitlink:
		return KindCommit
	default:
		return KindBlob
	}
}

type TreeEntry struct {
	Mode uint32
	Kind Kind
	ID   ID
	Name string
}

// Object is one item of a NewObjects listing.
type Object struct {
	ID   ID
	Kind Kind
}

type Commit struct {
	ID      ID
	Tree    ID
	Parents []ID
	Message string

	// Raw is the encoded commit object without its header.
	Raw []byte
}

// Identity is the author and committer written on synthetic commits.
type Identity struct {
	Name          string
	Email         string
	AuthorDate    time.Time
	CommitterDate time.Time
}

// DefaultIdentity keeps real authorship out of encrypted commits.
func DefaultIdentity() Identity {
	return Identity{
		Name:          "Leonardo da Vinci",
		Email:         "ldv@veil.invalid",
		AuthorDate:    time.Date(1977, time.June, 10, 12, 0, 0, 0, time.UTC),
		CommitterDate: time.Date(1994, time.October, 13, 12, 0, 0, 0, time.UTC),
	}
}

type CommitSpec struct {
	Tree     ID
	Parents  []ID
	Message  string
	Identity Identity
}

// Store is the set of object database primitives the mirror engine uses.
type Store interface {
	ReadBlob(ctx context.Context, id ID) (io.ReadCloser, error)
	WriteBlob(ctx context.Context, r io.Reader) (ID, error)

	ListTree(ctx context.Context, id ID) ([]TreeEntry, error)
	WriteTree(ctx context.Context, entries []TreeEntry) (ID, error)

	ReadCommit(ctx context.Context, id ID) (*Commit, error)
	WriteCommit(ctx context.Context, spec CommitSpec) (ID, error)
	WriteRawCommit(ctx context.Context, raw []byte) (ID, error)

	// ReadRef returns ErrRefNotFound when name does not exist.
	ReadRef(ctx context.Context, name string) (ID, error)

	// UpdateRef points name at next if it currently points at prev.
	// A ZeroID prev requires that name does not exist yet.
	UpdateRef(ctx context.Context, name string, next, prev ID) error

	// ListRefs returns every direct ref whose name starts with prefix.
	ListRefs(ctx context.Context, prefix string) (map[string]ID, error)

	Has(ctx context.Context, id ID) (bool, error)
}

// ReadBlobBytes reads a whole blob into memory.
func ReadBlobBytes(ctx context.Context, s Store, id ID) ([]byte, error) {
	rc, err := s.ReadBlob(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: reading blob %s: %v", kerrors.ErrStore, id, err)
	}
	return data, nil
}

// ReadRefOrZero is ReadRef with a missing ref mapped to ZeroID.
func ReadRefOrZero(ctx context.Context, s Store, name string) (ID, error) {
	id, err := s.ReadRef(ctx, name)
	if err == nil {
		return id, nil
	}
	if isRefNotFound(err) {
		return ZeroID, nil
	}
	return ZeroID, err
}
