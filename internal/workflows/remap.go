package workflows

import (
	"context"

	"github.com/PolarWolf314/veil/internal/configs"
	logger "github.com/PolarWolf314/veil/internal/logging"
	"github.com/PolarWolf314/veil/internal/remap"
	"github.com/PolarWolf314/veil/internal/store"
)

// RemapOptions configures the remap workflows.
type RemapOptions struct {
	// Repo is the encrypted repository path.
	Repo string

	// ID is the object id to look up.
	ID string

	// Reverse looks ID up as a plaintext id instead of an encrypted one.
	Reverse bool

	// Config overrides the user config.
	Config *configs.Config

	Log logger.Logger
}

// RemapLookupResult is one correspondence. Found is false when the id has
// none.
type RemapLookupResult struct {
	Encrypted string
	Plaintext string
	Found     bool
}

// RemapLookup finds the counterpart of an object id.
func RemapLookup(ctx context.Context, opts RemapOptions) (*RemapLookupResult, error) {
	id, err := store.ParseID(opts.ID)
	if err != nil {
		return nil, err
	}
	table, err := openRemap(opts)
	if err != nil {
		return nil, err
	}

	result := &RemapLookupResult{}
	if opts.Reverse {
		result.Plaintext = id.String()
		result.Encrypted, result.Found, err = table.GetByValue(ctx, id.String())
	} else {
		result.Encrypted = id.String()
		result.Plaintext, result.Found, err = table.Get(ctx, id.String())
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemapListResult is the whole remap table, ordered by encrypted id.
type RemapListResult struct {
	Ref     string
	Head    store.ID
	Entries []remap.Entry
}

// RemapList reads every remap entry.
func RemapList(ctx context.Context, opts RemapOptions) (*RemapListResult, error) {
	table, err := openRemap(opts)
	if err != nil {
		return nil, err
	}
	head, err := table.Head(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := table.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return &RemapListResult{Ref: table.Ref(), Head: head, Entries: entries}, nil
}

func openRemap(opts RemapOptions) (*remap.Table, error) {
	config, err := loadConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	repo, err := openRepo(opts.Repo, "encrypted")
	if err != nil {
		return nil, err
	}
	return newRemap(repo, config, opts.Log), nil
}
