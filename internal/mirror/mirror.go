package mirror

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/PolarWolf314/veil/internal/cipher"
	kerrors "github.com/PolarWolf314/veil/internal/errors"
	logger "github.com/PolarWolf314/veil/internal/logging"
	"github.com/PolarWolf314/veil/internal/remap"
	"github.com/PolarWolf314/veil/internal/store"
)

// Mirror holds the collaborators of a mirror run. It keeps no state between
// runs and may be reused.
type Mirror struct {
	Source store.Store
	Dest   store.Store

	// Key is the unlocked repository key.
	Key       []byte
	Direction Direction

	// Remap is the table in the encrypted store: Dest on push, Source on
	// pull.
	Remap *remap.Table

	// Identity is written on encrypted commits. The zero value means
	// store.DefaultIdentity.
	Identity store.Identity

	Log logger.Logger
}

type Options struct {
	// Ref is the source ref to mirror.
	Ref string

	// Tip overrides the commit read from Ref.
	Tip store.ID

	// DestRef is the destination ref compared against, and on push
	// advanced. Defaults to Ref.
	DestRef string

	// Remote names the source's remote-tracking refs
	// (refs/remotes/<Remote>/*) treated as already pushed. Tracking refs
	// with no remap entry are ignored.
	Remote string
}

// Result summarizes a run.
type Result struct {
	Direction Direction

	// Objects is the number of objects walked, Skipped of which already
	// had a counterpart.
	Objects int
	Skipped int

	Blobs   int
	Trees   int
	Commits int

	// Tip is the source commit mirrored and Head its counterpart in Dest.
	Tip  store.ID
	Head store.ID

	// RefUpdated reports whether DestRef moved (push only). DestRef only
	// moves forward: a head that does not contain the current one fails
	// with ErrNonFastForward.
	RefUpdated bool

	RemapID    store.ID
	RemapAdded int

	Duration time.Duration
}

// Written returns the number of objects written to Dest.
func (r *Result) Written() int {
	return r.Blobs + r.Trees + r.Commits
}

// Run mirrors opts.Ref from Source into Dest.
func (m *Mirror) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	if len(m.Key) != cipher.KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", kerrors.ErrInvalidKeyLength, len(m.Key))
	}
	if m.Remap == nil {
		return nil, fmt.Errorf("%w: remap table", kerrors.ErrNotConfigured)
	}
	if opts.Ref == "" && opts.Tip == store.ZeroID {
		return nil, fmt.Errorf("%w: ref to %s", kerrors.ErrNotConfigured, m.Direction)
	}
	if opts.DestRef == "" {
		opts.DestRef = opts.Ref
	}
	if opts.DestRef == "" {
		return nil, fmt.Errorf("%w: destination ref", kerrors.ErrNotConfigured)
	}

	s := newSession(m)

	// resolving
	tip, err := s.resolveTip(ctx, opts)
	if err != nil {
		return nil, err
	}
	destHead, err := store.ReadRefOrZero(ctx, m.Dest, opts.DestRef)
	if err != nil {
		return nil, err
	}
	boundary, err := s.boundary(ctx, opts, destHead)
	if err != nil {
		return nil, err
	}
	m.Log.Debugf("%s %s: tip %s, %d boundary commits", m.Direction, opts.Ref, tip.Short(), len(boundary))

	// walking
	objects, err := store.NewObjects(ctx, m.Source, tip, boundary)
	if err != nil {
		return nil, err
	}
	m.Log.Infof("%s: %d new objects reachable from %s", m.Direction, len(objects), tip.Short())

	// transcoding
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.transcode(ctx, obj); err != nil {
			return nil, fmt.Errorf("%s %s %s: %w", m.Direction, obj.Kind, obj.ID.Short(), err)
		}
	}

	head, ok, err := s.lookup(ctx, tip)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s has no counterpart after mirroring", kerrors.ErrRemapNotFound, tip)
	}

	// finalizing
	res := s.res
	res.Direction = m.Direction
	res.Tip = tip
	res.Head = head

	update, err := m.Remap.Update(ctx, s.added)
	if err != nil {
		return nil, err
	}
	res.RemapID = update.ID
	res.RemapAdded = update.Added

	if m.Direction == Push && head != destHead {
		if destHead != store.ZeroID {
			ff, err := store.IsAncestor(ctx, m.Dest, destHead, head)
			if err != nil {
				return nil, err
			}
			if !ff {
				return nil, fmt.Errorf("%w: %s is at %s, which %s does not contain",
					kerrors.ErrNonFastForward, opts.DestRef, destHead.Short(), head.Short())
			}
		}
		if err := m.Dest.UpdateRef(ctx, opts.DestRef, head, destHead); err != nil {
			return nil, fmt.Errorf("advancing %s: %w", opts.DestRef, err)
		}
		res.RefUpdated = true
		m.Log.Infof("%s now at %s", opts.DestRef, head.Short())
	}

	res.Duration = time.Since(start)
	return res, nil
}

// boundary lists the source commits already mirrored.
func (s *session) boundary(ctx context.Context, opts Options, destHead store.ID) ([]store.ID, error) {
	var boundary []store.ID

	if s.m.Direction == Push && opts.Remote != "" {
		refs, err := s.m.Source.ListRefs(ctx, "refs/remotes/"+opts.Remote+"/")
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(refs))
		for name := range refs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			id := refs[name]
			// a clone of a plaintext remote tracks commits never pushed here
			_, ok, err := s.lookup(ctx, id)
			if err != nil {
				return nil, err
			}
			if !ok {
				s.m.Log.Debugf("%s at %s has no remap entry, not treated as pushed", name, id.Short())
				continue
			}
			boundary = append(boundary, id)
		}
	}

	if destHead != store.ZeroID {
		// destHead lives in Dest, so this is the reverse of lookup.
		src, ok, err := s.counterpartInSource(ctx, destHead)
		if err != nil {
			return nil, err
		}
		if ok {
			boundary = append(boundary, src)
		} else {
			s.m.Log.Warnf("%s is at %s, which has no remap entry; mirroring from the beginning", opts.DestRef, destHead.Short())
		}
	}
	return boundary, nil
}
