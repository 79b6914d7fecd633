package store

import (
	"context"
	"fmt"
)

// NewObjects lists every object reachable from tip and not from boundary,
// ordered so each object follows all of its dependencies: commits come
// parents first, and each commit is preceded by its new blobs and trees in
// post order (children before the tree that lists them).
//
// Commits reachable from any boundary commit are excluded, as are the
// objects in the trees of the boundary commits and of every hidden parent
// of a new commit. Boundary ids missing from s are ignored.
func NewObjects(ctx context.Context, s Store, tip ID, boundary []ID) ([]Object, error) {
	w := &walker{
		s:           s,
		hiddenCmts:  make(map[ID]ID),
		seenObjects: make(map[ID]bool),
	}

	if err := w.hide(ctx, boundary); err != nil {
		return nil, err
	}

	commits, err := w.commits(ctx, tip)
	if err != nil {
		return nil, err
	}

	var out []Object
	for _, c := range commits {
		out, err = w.tree(ctx, c.Tree, out)
		if err != nil {
			return nil, err
		}
		out = append(out, Object{ID: c.ID, Kind: KindCommit})
	}
	return out, nil
}

type walker struct {
	s Store

	// hiddenCmts maps each uninteresting commit to its tree.
	hiddenCmts  map[ID]ID
	seenObjects map[ID]bool
}

// hide marks every ancestor of boundary as uninteresting, and every object
// in the boundary tips' trees as already seen. Trees of older hidden
// commits are marked lazily by commits, when a new commit has one as a
// parent.
func (w *walker) hide(ctx context.Context, boundary []ID) error {
	var stack []ID
	for _, id := range boundary {
		if id == ZeroID {
			continue
		}
		ok, err := w.s.Has(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		c, err := w.s.ReadCommit(ctx, id)
		if err != nil {
			return err
		}
		if err := w.markTree(ctx, c.Tree); err != nil {
			return err
		}
		stack = append(stack, id)
	}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := w.hiddenCmts[id]; ok {
			continue
		}

		c, err := w.s.ReadCommit(ctx, id)
		if err != nil {
			return err
		}
		w.hiddenCmts[id] = c.Tree
		stack = append(stack, c.Parents...)
	}
	return nil
}

func (w *walker) markTree(ctx context.Context, id ID) error {
	if w.seenObjects[id] {
		return nil
	}
	w.seenObjects[id] = true

	entries, err := w.s.ListTree(ctx, id)
	if err != nil {
		return err
	}
	for _, e := range entries {
		switch e.Kind {
		case KindTree:
			if err := w.markTree(ctx, e.ID); err != nil {
				return err
			}
		case KindBlob:
			w.seenObjects[e.ID] = true
		}
	}
	return nil
}

// commits returns the new commits reachable from tip, parents first.
func (w *walker) commits(ctx context.Context, tip ID) ([]*Commit, error) {
	type frame struct {
		c    *Commit
		next int
	}

	var out []*Commit
	visited := make(map[ID]bool)

	push := func(stack []frame, id ID) ([]frame, error) {
		if visited[id] {
			return stack, nil
		}
		if tree, ok := w.hiddenCmts[id]; ok {
			// an edge: the new commit builds on what this one already has
			return stack, w.markTree(ctx, tree)
		}
		visited[id] = true
		c, err := w.s.ReadCommit(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", id, err)
		}
		return append(stack, frame{c: c}), nil
	}

	stack, err := push(nil, tip)
	if err != nil {
		return nil, err
	}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		top := &stack[len(stack)-1]
		if top.next < len(top.c.Parents) {
			parent := top.c.Parents[top.next]
			top.next++
			if stack, err = push(stack, parent); err != nil {
				return nil, err
			}
			continue
		}
		out = append(out, top.c)
		stack = stack[:len(stack)-1]
	}
	return out, nil
}

// tree appends the unseen objects under id to out in post order.
func (w *walker) tree(ctx context.Context, id ID, out []Object) ([]Object, error) {
	if w.seenObjects[id] {
		return out, nil
	}
	w.seenObjects[id] = true

	entries, err := w.s.ListTree(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		switch e.Kind {
		case KindTree:
			if out, err = w.tree(ctx, e.ID, out); err != nil {
				return nil, err
			}
		case KindBlob:
			if !w.seenObjects[e.ID] {
				w.seenObjects[e.ID] = true
				out = append(out, Object{ID: e.ID, Kind: KindBlob})
			}
		}
		// gitlinks point into another repository and are not walked
	}
	return append(out, Object{ID: id, Kind: KindTree}), nil
}

// IsAncestor reports whether ancestor is reachable from descendant by
// following parents in s. A commit is its own ancestor.
func IsAncestor(ctx context.Context, s Store, ancestor, descendant ID) (bool, error) {
	if ancestor == ZeroID || descendant == ZeroID {
		return false, nil
	}
	visited := make(map[ID]bool)
	stack := []ID{descendant}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == ancestor {
			return true, nil
		}
		if visited[id] {
			continue
		}
		visited[id] = true

		c, err := s.ReadCommit(ctx, id)
		if err != nil {
			return false, fmt.Errorf("walking %s: %w", id, err)
		}
		stack = append(stack, c.Parents...)
	}
	return false, nil
}
