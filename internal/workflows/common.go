package workflows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/PolarWolf314/veil/internal/configs"
	kerrors "github.com/PolarWolf314/veil/internal/errors"
	"github.com/PolarWolf314/veil/internal/keychain"
	logger "github.com/PolarWolf314/veil/internal/logging"
	"github.com/PolarWolf314/veil/internal/remap"
	"github.com/PolarWolf314/veil/internal/store"
)

// DefaultBranch is mirrored when no ref is given.
const DefaultBranch = "main"

// KeyOptions selects the local key material used to unlock a keychain.
type KeyOptions struct {
	// PrivateKeyData contains the private key bytes when reading from stdin.
	// If nil, key pairs are loaded from the configured key directory.
	PrivateKeyData []byte

	// Passphrase is asked for the passphrase of protected keys. The
	// argument names the key, or is "stdin".
	Passphrase func(name string) ([]byte, error)
}

// loadConfig returns config, or the user config when config is nil.
func loadConfig(config *configs.Config) (*configs.Config, error) {
	if config != nil {
		return config, nil
	}
	config, err := configs.LoadUserConfig()
	if err != nil {
		return nil, fmt.Errorf("loading user config: %w", err)
	}
	return config, nil
}

func openRepo(path, role string) (*store.Git, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: %s repository path", kerrors.ErrNotConfigured, role)
	}
	repo, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s repository: %w", role, err)
	}
	return repo, nil
}

// qualifyRef expands a branch name to a full ref name.
func qualifyRef(name string) (string, error) {
	switch {
	case name == "":
		return "refs/heads/" + DefaultBranch, nil
	case name == "HEAD":
		return "", fmt.Errorf("%w: ref must name a branch, not HEAD", kerrors.ErrNotConfigured)
	case strings.HasPrefix(name, "refs/"):
		return name, nil
	default:
		return "refs/heads/" + name, nil
	}
}

// keySource builds the key source described by opts.
func keySource(config *configs.Config, opts KeyOptions, log logger.Logger) (keychain.KeySource, error) {
	if opts.PrivateKeyData != nil {
		priv, err := keychain.ParsePrivateKey(opts.PrivateKeyData, nil)
		if errors.Is(err, kerrors.ErrPassphraseRequired) && opts.Passphrase != nil {
			passphrase, perr := opts.Passphrase("stdin")
			if perr != nil {
				return nil, perr
			}
			priv, err = keychain.ParsePrivateKey(opts.PrivateKeyData, passphrase)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing private key from stdin: %w", err)
		}
		candidate, err := keychain.NewCandidate("stdin", priv)
		if err != nil {
			return nil, err
		}
		return keychain.StaticSource{candidate}, nil
	}

	dir, err := config.KeyDir()
	if err != nil {
		return nil, err
	}
	return keychain.DirSource{Dir: dir, Passphrase: opts.Passphrase, Log: log}, nil
}

// unlockExisting unlocks a keychain that must already hold entries.
func unlockExisting(ctx context.Context, k *keychain.Keychain, src keychain.KeySource) ([]byte, error) {
	if err := k.Load(ctx); err != nil {
		return nil, err
	}
	if len(k.Entries()) == 0 {
		return nil, fmt.Errorf("%w: %s has no entries", kerrors.ErrKeyUnlock, k.Ref())
	}
	return k.Unlock(ctx, src)
}

// directoryKeys fetches the account's keys from the configured directory.
// It returns nil when no directory or account is configured.
func directoryKeys(ctx context.Context, config *configs.Config, account string, log logger.Logger) ([]ssh.PublicKey, error) {
	if account == "" {
		account = config.Directory.Account
	}
	if config.Directory.Location == "" || account == "" {
		return nil, nil
	}
	dir := keychain.NewDirectory(config.Directory.Location, log)
	keys, err := dir.AuthorizedKeys(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("fetching keys for %s: %w", account, err)
	}
	log.Infof("found %d keys for %s in %s", len(keys), account, config.Directory.Location)
	return keys, nil
}

func newKeychain(s store.Store, config *configs.Config, log logger.Logger) *keychain.Keychain {
	return keychain.New(s, config.Refs.Keychain, log)
}

func newRemap(s store.Store, config *configs.Config, log logger.Logger) *remap.Table {
	return remap.New(s, config.Refs.Remap, log)
}
