package workflows

import (
	"context"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/PolarWolf314/veil/internal/audit"
	"github.com/PolarWolf314/veil/internal/configs"
	kerrors "github.com/PolarWolf314/veil/internal/errors"
	"github.com/PolarWolf314/veil/internal/keychain"
	logger "github.com/PolarWolf314/veil/internal/logging"
)

// KeysOptions configures the key workflows.
type KeysOptions struct {
	// Repo is the encrypted repository path.
	Repo string

	// Account overrides the configured directory account.
	Account string

	// AuthorizedKeys adds keys in authorized_keys format, for example a
	// new collaborator's id_rsa.pub.
	AuthorizedKeys []byte

	// IncludeLocal also seals the key for every local public key.
	IncludeLocal bool

	Keys KeyOptions

	// Config overrides the user config.
	Config *configs.Config

	Log logger.Logger
}

// SyncKeysResult contains the outcome of a key sync.
type SyncKeysResult struct {
	Ref string

	// Offered is the number of public keys considered, Added of which
	// were new to the keychain.
	Offered int
	Added   int
}

// SyncKeys seals the repository key for the directory account's keys and
// any extra keys given. The keychain must be unlockable by a local key.
//
// Returns ErrKeyUnlock if the keychain is empty or no local key unlocks it.
// Returns ErrNotConfigured if there are no keys to offer.
func SyncKeys(ctx context.Context, opts KeysOptions) (result *SyncKeysResult, err error) {
	entry := audit.NewEntry("keys-sync")
	entry.Repo = opts.Repo
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
	entry.Account = opts.Account
	if entry.Account == "" {
		entry.Account = config.Directory.Account
	}

	repo, err := openRepo(opts.Repo, "encrypted")
	if err != nil {
		return nil, err
	}
	src, err := keySource(config, opts.Keys, opts.Log)
	if err != nil {
		return nil, err
	}
	kc := newKeychain(repo, config, opts.Log)
	if _, err := unlockExisting(ctx, kc, src); err != nil {
		return nil, err
	}

	offered, err := directoryKeys(ctx, config, opts.Account, opts.Log)
	if err != nil {
		return nil, err
	}
	if len(opts.AuthorizedKeys) > 0 {
		offered = append(offered, keychain.ParseAuthorizedKeys(opts.AuthorizedKeys, opts.Log)...)
	}
	if opts.IncludeLocal {
		local, err := keychain.PublicKeys(ctx, src)
		if err != nil {
			return nil, err
		}
		offered = append(offered, local...)
	}
	if len(offered) == 0 {
		return nil, fmt.Errorf("%w: no directory account or public keys to add", kerrors.ErrNotConfigured)
	}

	added, err := kc.Save(ctx, offered)
	if err != nil {
		return nil, err
	}
	entry.Added = added
	return &SyncKeysResult{Ref: kc.Ref(), Offered: len(offered), Added: added}, nil
}

// KeyInfo describes one keychain entry.
type KeyInfo struct {
	Fingerprint string `json:"fingerprint"`

	// Local is set when a local public key has this fingerprint.
	Local bool `json:"local"`
}

// ListKeysResult contains the keychain entries of a repository.
type ListKeysResult struct {
	Ref  string
	Keys []KeyInfo
}

// ListKeys lists the fingerprints in the keychain without unlocking it.
func ListKeys(ctx context.Context, opts KeysOptions) (*ListKeysResult, error) {
	config, err := loadConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	repo, err := openRepo(opts.Repo, "encrypted")
	if err != nil {
		return nil, err
	}
	kc := newKeychain(repo, config, opts.Log)
	if err := kc.Load(ctx); err != nil {
		return nil, err
	}

	local := make(map[string]bool)
	if src, err := keySource(config, opts.Keys, opts.Log); err == nil {
		pubs, err := keychain.PublicKeys(ctx, src)
		if err != nil {
			opts.Log.Warnf("could not list local keys: %v", err)
		}
		for _, pub := range pubs {
			local[keychain.Fingerprint(pub)] = true
		}
	} else {
		opts.Log.Warnf("could not list local keys: %v", err)
	}

	result := &ListKeysResult{Ref: kc.Ref()}
	for _, fp := range kc.Entries() {
		result.Keys = append(result.Keys, KeyInfo{Fingerprint: fp, Local: local[fp]})
	}
	return result, nil
}

// CheckUnlockResult reports which local key unlocked the keychain.
type CheckUnlockResult struct {
	Ref     string
	Entries int

	// Fingerprints of local keys present in the keychain.
	Matched []string
}

// CheckUnlock verifies that a local key can unlock the keychain, without
// mirroring anything.
//
// Returns ErrKeyUnlock if the keychain is empty or no local key unlocks it.
func CheckUnlock(ctx context.Context, opts KeysOptions) (*CheckUnlockResult, error) {
	config, err := loadConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	repo, err := openRepo(opts.Repo, "encrypted")
	if err != nil {
		return nil, err
	}
	src, err := keySource(config, opts.Keys, opts.Log)
	if err != nil {
		return nil, err
	}
	kc := newKeychain(repo, config, opts.Log)
	if _, err := unlockExisting(ctx, kc, src); err != nil {
		return nil, err
	}

	pubs, err := keychain.PublicKeys(ctx, src)
	if err != nil {
		return nil, err
	}
	return &CheckUnlockResult{
		Ref:     kc.Ref(),
		Entries: len(kc.Entries()),
		Matched: matched(kc, pubs),
	}, nil
}

func matched(kc *keychain.Keychain, pubs []ssh.PublicKey) []string {
	var fps []string
	for _, pub := range pubs {
		if fp := keychain.Fingerprint(pub); kc.Has(fp) {
			fps = append(fps, fp)
		}
	}
	return fps
}
