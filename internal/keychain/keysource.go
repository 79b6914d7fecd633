package keychain

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	kerrors "github.com/PolarWolf314/veil/internal/errors"
	logger "github.com/PolarWolf314/veil/internal/logging"
)

// Candidate is one local key pair. Load is called only when the public key
// matches a keychain entry.
type Candidate struct {
	Name   string
	Public ssh.PublicKey
	Load   func() (*rsa.PrivateKey, error)
}

// KeySource enumerates the key pairs available to unlock a keychain.
type KeySource interface {
	Candidates(ctx context.Context) ([]Candidate, error)
}

// DirSource finds key pairs stored the way ssh-keygen writes them: a
// "<name>.pub" public key next to a "<name>" private key.
type DirSource struct {
	Dir string

	// Passphrase, if set, is asked for the passphrase of protected keys.
	// Without it protected keys fail with ErrPassphraseRequired.
	Passphrase func(path string) ([]byte, error)

	Log logger.Logger
}

// DefaultKeyDir returns ~/.ssh.
func DefaultKeyDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".ssh"), nil
}

func (d DirSource) Candidates(ctx context.Context) ([]Candidate, error) {
	entries, err := os.ReadDir(d.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		d.Log.Debugf("key directory %s does not exist", d.Dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading key directory %s: %w", d.Dir, err)
	}

	var out []Candidate
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pub") {
			continue
		}
		pubPath := filepath.Join(d.Dir, e.Name())
		privPath := strings.TrimSuffix(pubPath, ".pub")
		if _, err := os.Stat(privPath); err != nil {
			d.Log.Debugf("skipping %s: no private key next to it", pubPath)
			continue
		}

		data, err := os.ReadFile(pubPath)
		if err != nil {
			d.Log.Warnf("skipping %s: %v", pubPath, err)
			continue
		}
		pub, _, _, _, err := ssh.ParseAuthorizedKey(data)
		if err != nil {
			d.Log.Warnf("skipping %s: %v", pubPath, err)
			continue
		}

		out = append(out, Candidate{
			Name:   privPath,
			Public: pub,
			Load:   func() (*rsa.PrivateKey, error) { return d.load(privPath) },
		})
	}
	return out, nil
}

func (d DirSource) load(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := ParsePrivateKey(data, nil)
	if !errors.Is(err, kerrors.ErrPassphraseRequired) || d.Passphrase == nil {
		return key, err
	}
	passphrase, err := d.Passphrase(path)
	if err != nil {
		return nil, err
	}
	return ParsePrivateKey(data, passphrase)
}

// PublicKeys returns the public halves of every candidate in src.
func PublicKeys(ctx context.Context, src KeySource) ([]ssh.PublicKey, error) {
	candidates, err := src.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]ssh.PublicKey, 0, len(candidates))
	for _, c := range candidates {
		keys = append(keys, c.Public)
	}
	return keys, nil
}

// StaticSource serves key pairs held in memory.
type StaticSource []Candidate

func (s StaticSource) Candidates(ctx context.Context) ([]Candidate, error) {
	return s, nil
}

// NewCandidate wraps an in-memory RSA key pair.
func NewCandidate(name string, priv *rsa.PrivateKey) (Candidate, error) {
	pub, err := ssh.NewPublicKey(&priv.PublicKey)
	if err != nil {
		return Candidate{}, fmt.Errorf("%s: %w", name, err)
	}
	return Candidate{
		Name:   name,
		Public: pub,
		Load:   func() (*rsa.PrivateKey, error) { return priv, nil },
	}, nil
}
