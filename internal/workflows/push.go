package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/veil/internal/audit"
	"github.com/PolarWolf314/veil/internal/configs"
	kerrors "github.com/PolarWolf314/veil/internal/errors"
	"github.com/PolarWolf314/veil/internal/keychain"
	logger "github.com/PolarWolf314/veil/internal/logging"
	"github.com/PolarWolf314/veil/internal/mirror"
)

// PushOptions configures the push workflow.
type PushOptions struct {
	// Source is the plaintext repository path.
	Source string

	// Dest is the encrypted repository path.
	Dest string

	// Ref is the branch or full ref to push. Defaults to DefaultBranch.
	Ref string

	// Remote overrides the configured remote whose tracking refs mark
	// commits already pushed. Use "-" to ignore tracking refs.
	Remote string

	// Account overrides the configured directory account used when a new
	// keychain is created.
	Account string

	Keys KeyOptions

	// Config overrides the user config.
	Config *configs.Config

	Log logger.Logger
}

// PushResult contains the outcome of a push.
type PushResult struct {
	*mirror.Result

	Ref string

	// KeychainCreated is set when the encrypted repository had no
	// keychain and a new repository key was sealed for Recipients keys.
	KeychainCreated bool
	Recipients      int
}

// Push mirrors a plaintext ref into the encrypted repository.
//
// If the encrypted repository has no keychain yet, a repository key is
// generated and sealed for the local public keys and the directory
// account's keys before anything is encrypted with it.
//
// Returns ErrKeyUnlock if no local key can unlock an existing keychain.
// Returns ErrRefChanged if the remap table or destination ref moved while
// pushing; the push can be retried.
// Returns ErrNonFastForward if the encrypted ref has commits the pushed ref
// does not contain.
func Push(ctx context.Context, opts PushOptions) (result *PushResult, err error) {
	entry := audit.NewEntry("push")
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

	source, err := openRepo(opts.Source, "plaintext")
	if err != nil {
		return nil, err
	}
	dest, err := openRepo(opts.Dest, "encrypted")
	if err != nil {
		return nil, err
	}

	src, err := keySource(config, opts.Keys, opts.Log)
	if err != nil {
		return nil, err
	}
	kc := newKeychain(dest, config, opts.Log)
	if err := kc.Load(ctx); err != nil {
		return nil, err
	}
	key, err := kc.Unlock(ctx, src)
	if err != nil {
		return nil, err
	}

	result = &PushResult{Ref: ref}
	if kc.Generated() {
		added, err := sealNewKeychain(ctx, kc, src, config, opts.Account, opts.Log)
		if err != nil {
			return nil, err
		}
		result.KeychainCreated = true
		result.Recipients = added
		entry.Added = added
	}

	remote := opts.Remote
	if remote == "" {
		remote = config.Push.Remote
	}
	if remote == "-" {
		remote = ""
	}

	m := &mirror.Mirror{
		Source:    source,
		Dest:      dest,
		Key:       key,
		Direction: mirror.Push,
		Remap:     newRemap(dest, config, opts.Log),
		Identity:  config.StoreIdentity(),
		Log:       opts.Log,
	}
	res, err := m.Run(ctx, mirror.Options{Ref: ref, Remote: remote})
	if err != nil {
		return nil, err
	}

	result.Result = res
	entry.Tip = res.Tip.String()
	entry.Head = res.Head.String()
	entry.Objects = res.Objects
	entry.Written = res.Written()
	return result, nil
}

// sealNewKeychain saves a freshly generated key for the local public keys
// and the directory account's keys.
func sealNewKeychain(ctx context.Context, kc *keychain.Keychain, src keychain.KeySource, config *configs.Config, account string, log logger.Logger) (int, error) {
	recipients, err := keychain.PublicKeys(ctx, src)
	if err != nil {
		return 0, err
	}
	remote, err := directoryKeys(ctx, config, account, log)
	if err != nil {
		return 0, err
	}
	recipients = append(recipients, remote...)

	added, err := kc.Save(ctx, recipients)
	if err != nil {
		return 0, err
	}
	if added == 0 {
		return 0, fmt.Errorf("%w: no RSA public key to seal the new repository key for", kerrors.ErrNotConfigured)
	}
	return added, nil
}
