package mirror

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/veil/internal/cipher"
	kerrors "github.com/PolarWolf314/veil/internal/errors"
	"github.com/PolarWolf314/veil/internal/store"
)

// session is the state of one run: the id pairs resolved or created so far
// and the remap entries still to be persisted.
type session struct {
	m        *Mirror
	stream   cipher.StreamFunc
	text     cipher.StringFunc
	identity store.Identity

	// working maps source ids to destination ids.
	working map[store.ID]store.ID

	// added holds new remap lines, keyed by the encrypted id.
	added map[string]string

	res *Result
}

func newSession(m *Mirror) *session {
	identity := m.Identity
	if identity.Name == "" {
		identity = store.DefaultIdentity()
	}
	return &session{
		m:        m,
		stream:   m.Direction.stream(),
		text:     m.Direction.text(),
		identity: identity,
		working:  make(map[store.ID]store.ID),
		added:    make(map[string]string),
		res:      &Result{},
	}
}

func (s *session) resolveTip(ctx context.Context, opts Options) (store.ID, error) {
	if opts.Tip != store.ZeroID {
		return opts.Tip, nil
	}
	tip, err := s.m.Source.ReadRef(ctx, opts.Ref)
	if err != nil {
		return store.ZeroID, fmt.Errorf("resolving %s: %w", opts.Ref, err)
	}
	return tip, nil
}

// lookup returns the destination counterpart of the source id src.
func (s *session) lookup(ctx context.Context, src store.ID) (store.ID, bool, error) {
	if dst, ok := s.working[src]; ok {
		return dst, true, nil
	}

	var (
		v   string
		ok  bool
		err error
	)
	if s.m.Direction == Push {
		v, ok, err = s.m.Remap.GetByValue(ctx, string(src))
	} else {
		v, ok, err = s.m.Remap.Get(ctx, string(src))
	}
	if err != nil || !ok {
		return store.ZeroID, false, err
	}
	return store.ID(v), true, nil
}

// counterpartInSource returns the source counterpart of the destination id
// dst.
func (s *session) counterpartInSource(ctx context.Context, dst store.ID) (store.ID, bool, error) {
	var (
		v   string
		ok  bool
		err error
	)
	if s.m.Direction == Push {
		v, ok, err = s.m.Remap.Get(ctx, string(dst))
	} else {
		v, ok, err = s.m.Remap.GetByValue(ctx, string(dst))
	}
	if err != nil || !ok {
		return store.ZeroID, false, err
	}
	return store.ID(v), true, nil
}

// mapped is lookup for ids that must already have been mirrored.
func (s *session) mapped(ctx context.Context, src store.ID) (store.ID, error) {
	dst, ok, err := s.lookup(ctx, src)
	if err != nil {
		return store.ZeroID, err
	}
	if !ok {
		return store.ZeroID, fmt.Errorf("%w: %s", kerrors.ErrRemapNotFound, src)
	}
	return dst, nil
}

func (s *session) record(src, dst store.ID) {
	s.working[src] = dst
	if s.m.Direction == Push {
		s.added[string(dst)] = string(src)
	} else {
		s.added[string(src)] = string(dst)
	}
}

func (s *session) transcode(ctx context.Context, obj store.Object) error {
	s.res.Objects++

	known, ok, err := s.lookup(ctx, obj.ID)
	if err != nil {
		return err
	}
	if ok {
		present, err := s.m.Dest.Has(ctx, known)
		if err != nil {
			return err
		}
		if present {
			s.working[obj.ID] = known
			s.res.Skipped++
			return nil
		}
		s.m.Log.Debugf("%s %s maps to %s, which is missing from the destination", obj.Kind, obj.ID.Short(), known.Short())
	}

	var dst store.ID
	switch obj.Kind {
	case store.KindBlob:
		dst, err = s.blob(ctx, obj.ID)
		s.res.Blobs++
	case store.KindTree:
		dst, err = s.tree(ctx, obj.ID)
		s.res.Trees++
	case store.KindCommit:
		dst, err = s.commit(ctx, obj.ID)
		s.res.Commits++
	default:
		return fmt.Errorf("unexpected object kind %q", obj.Kind)
	}
	if err != nil {
		return err
	}

	if ok && dst == known {
		s.working[obj.ID] = dst
	} else {
		s.record(obj.ID, dst)
	}
	s.m.Log.Debugf("%s %s -> %s", obj.Kind, obj.ID.Short(), dst.Short())
	return nil
}

func (s *session) blob(ctx context.Context, id store.ID) (store.ID, error) {
	rc, err := s.m.Source.ReadBlob(ctx, id)
	if err != nil {
		return store.ZeroID, err
	}
	defer rc.Close()

	r, err := s.stream(s.m.Key, rc)
	if err != nil {
		return store.ZeroID, err
	}
	return s.m.Dest.WriteBlob(ctx, r)
}

func (s *session) tree(ctx context.Context, id store.ID) (store.ID, error) {
	entries, err := s.m.Source.ListTree(ctx, id)
	if err != nil {
		return store.ZeroID, err
	}

	out := make([]store.TreeEntry, 0, len(entries))
	for _, e := range entries {
		child := e.ID
		// gitlinks name a commit in another repository
		if e.Mode != store.ModeGitlink {
			if child, err = s.mapped(ctx, e.ID); err != nil {
				return store.ZeroID, err
			}
		}
		name, err := s.text(s.m.Key, e.Name, cipher.Hex)
		if err != nil {
			return store.ZeroID, fmt.Errorf("entry name: %w", err)
		}
		out = append(out, store.TreeEntry{Mode: e.Mode, Kind: e.Kind, ID: child, Name: name})
	}
	return s.m.Dest.WriteTree(ctx, out)
}

func (s *session) commit(ctx context.Context, id store.ID) (store.ID, error) {
	c, err := s.m.Source.ReadCommit(ctx, id)
	if err != nil {
		return store.ZeroID, err
	}

	tree, err := s.mapped(ctx, c.Tree)
	if err != nil {
		return store.ZeroID, err
	}
	parents := make([]store.ID, 0, len(c.Parents))
	for _, p := range c.Parents {
		mp, err := s.mapped(ctx, p)
		if err != nil {
			return store.ZeroID, err
		}
		parents = append(parents, mp)
	}

	if s.m.Direction == Push {
		msg, err := cipher.EncryptString(s.m.Key, string(c.Raw), cipher.Base64)
		if err != nil {
			return store.ZeroID, err
		}
		return s.m.Dest.WriteCommit(ctx, store.CommitSpec{
			Tree:     tree,
			Parents:  parents,
			Message:  msg,
			Identity: s.identity,
		})
	}

	raw, err := cipher.DecryptString(s.m.Key, c.Message, cipher.Base64)
	if err != nil {
		return store.ZeroID, fmt.Errorf("commit message: %w", err)
	}
	orig, err := store.ParseCommit([]byte(raw))
	if err != nil {
		return store.ZeroID, err
	}
	if orig.Tree != tree {
		return store.ZeroID, fmt.Errorf("%w: tree is %s, expected %s", kerrors.ErrCommitMismatch, orig.Tree, tree)
	}
	if !equalIDs(orig.Parents, parents) {
		return store.ZeroID, fmt.Errorf("%w: parents are %v, expected %v", kerrors.ErrCommitMismatch, orig.Parents, parents)
	}
	return s.m.Dest.WriteRawCommit(ctx, []byte(raw))
}

func equalIDs(a, b []store.ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
