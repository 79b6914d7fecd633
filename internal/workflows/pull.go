package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/veil/internal/audit"
	"github.com/PolarWolf314/veil/internal/configs"
	kerrors "github.com/PolarWolf314/veil/internal/errors"
	logger "github.com/PolarWolf314/veil/internal/logging"
	"github.com/PolarWolf314/veil/internal/mirror"
	"github.com/PolarWolf314/veil/internal/store"
)

// PullOptions configures the pull workflow.
type PullOptions struct {
	// Source is the encrypted repository path.
	Source string

	// Dest is the plaintext repository path.
	Dest string

	// Ref is the encrypted branch or full ref to pull. Defaults to
	// DefaultBranch.
	Ref string

	// UpdateRef, if set, is the plaintext ref advanced to the pulled
	// commit. It also bounds the walk: commits it already reaches are not
	// decrypted again. It only fast-forwards: a ref that already contains
	// the pulled commit is left alone, and one that has diverged from it
	// fails with ErrNonFastForward.
	UpdateRef string

	Keys KeyOptions

	// Config overrides the user config.
	Config *configs.Config

	Log logger.Logger
}

// PullResult contains the outcome of a pull.
type PullResult struct {
	*mirror.Result

	Ref       string
	UpdateRef string
}

// Pull mirrors an encrypted ref back into a plaintext repository. The
// pulled commits have the ids they had before they were pushed.
//
// Returns ErrKeyUnlock if the encrypted repository has no keychain or no
// local key can unlock it.
// Returns ErrCommitMismatch if a decrypted commit disagrees with the
// encrypted graph.
// Returns ErrNonFastForward if UpdateRef has commits the pulled one lacks.
func Pull(ctx context.Context, opts PullOptions) (result *PullResult, err error) {
	entry := audit.NewEntry("pull")
	entry.Source = opts.Source
	entry.Dest = opts.Dest
	defer func() {
		if err != nil {
			entry.Error = err.Error()
		}
		audit.Log(entry)
	}()

	config, err := loadConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	ref, err := qualifyRef(opts.Ref)
	if err != nil {
		return nil, err
	}
	entry.Ref = ref

	updateRef := ""
	if opts.UpdateRef != "" {
		if updateRef, err = qualifyRef(opts.UpdateRef); err != nil {
			return nil, err
		}
	}

	source, err := openRepo(opts.Source, "encrypted")
	if err != nil {
		return nil, err
	}
	dest, err := openRepo(opts.Dest, "plaintext")
	if err != nil {
		return nil, err
	}

	src, err := keySource(config, opts.Keys, opts.Log)
	if err != nil {
		return nil, err
	}
	key, err := unlockExisting(ctx, newKeychain(source, config, opts.Log), src)
	if err != nil {
		return nil, err
	}

	m := &mirror.Mirror{
		Source:    source,
		Dest:      dest,
		Key:       key,
		Direction: mirror.Pull,
		Remap:     newRemap(source, config, opts.Log),
		Log:       opts.Log,
	}
	res, err := m.Run(ctx, mirror.Options{Ref: ref, DestRef: updateRef})
	if err != nil {
		return nil, err
	}

	if updateRef != "" {
		prev, err := store.ReadRefOrZero(ctx, dest, updateRef)
		if err != nil {
			return nil, err
		}
		if err := advance(ctx, dest, updateRef, prev, res, opts.Log); err != nil {
			return nil, err
		}
	}

	entry.Tip = res.Tip.String()
	entry.Head = res.Head.String()
	entry.Objects = res.Objects
	entry.Written = res.Written()
	return &PullResult{Result: res, Ref: ref, UpdateRef: updateRef}, nil
}

// advance fast-forwards ref from prev to the pulled head.
func advance(ctx context.Context, dest store.Store, ref string, prev store.ID, res *mirror.Result, log logger.Logger) error {
	if prev == res.Head {
		return nil
	}
	if prev != store.ZeroID {
		ahead, err := store.IsAncestor(ctx, dest, res.Head, prev)
		if err != nil {
			return err
		}
		if ahead {
			log.Infof("%s at %s already contains %s", ref, prev.Short(), res.Head.Short())
			return nil
		}
		ff, err := store.IsAncestor(ctx, dest, prev, res.Head)
		if err != nil {
			return err
		}
		if !ff {
			return fmt.Errorf("%w: %s is at %s, which %s does not contain",
				kerrors.ErrNonFastForward, ref, prev.Short(), res.Head.Short())
		}
	}
	if err := dest.UpdateRef(ctx, ref, res.Head, prev); err != nil {
		return fmt.Errorf("advancing %s: %w", ref, err)
	}
	res.RefUpdated = true
	log.Infof("%s now at %s", ref, res.Head.Short())
	return nil
}
