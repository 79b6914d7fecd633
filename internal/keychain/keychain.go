package keychain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/crypto/ssh"

	"github.com/PolarWolf314/veil/internal/cipher"
	kerrors "github.com/PolarWolf314/veil/internal/errors"
	logger "github.com/PolarWolf314/veil/internal/logging"
	"github.com/PolarWolf314/veil/internal/store"
)

// DefaultRef is where the keychain tree lives unless configured otherwise.
const DefaultRef = "refs/veil/keychain"

// Keychain is the set of wrapped copies of one repository key.
type Keychain struct {
	store store.Store
	ref   string
	log   logger.Logger

	head    store.ID
	entries map[string]store.ID
	key     []byte

	generated bool
}

func New(s store.Store, ref string, log logger.Logger) *Keychain {
	if ref == "" {
		ref = DefaultRef
	}
	return &Keychain{store: s, ref: ref, log: log, entries: make(map[string]store.ID)}
}

func (k *Keychain) Ref() string {
	return k.ref
}

// Load reads the keychain tree. A missing ref means no entries.
func (k *Keychain) Load(ctx context.Context) error {
	head, err := store.ReadRefOrZero(ctx, k.store, k.ref)
	if err != nil {
		return fmt.Errorf("reading keychain ref: %w", err)
	}

	entries := make(map[string]store.ID)
	if head != store.ZeroID {
		tree, err := k.store.ListTree(ctx, head)
		if err != nil {
			return fmt.Errorf("reading keychain: %w", err)
		}
		for _, e := range tree {
			fp, err := DecodeFingerprint(e.Name)
			if err != nil {
				k.log.Warnf("ignoring keychain entry: %v", err)
				continue
			}
			entries[fp] = e.ID
		}
	}

	k.head = head
	k.entries = entries
	k.log.Debugf("loaded %d keychain entries from %s", len(entries), k.ref)
	return nil
}

// Unlock returns the repository key. With no entries a fresh key is
// generated; otherwise the first local key pair able to unwrap its entry
// wins, and ErrKeyUnlock is returned if none can.
func (k *Keychain) Unlock(ctx context.Context, src KeySource) ([]byte, error) {
	if k.key != nil {
		return k.key, nil
	}

	if len(k.entries) == 0 {
		key, err := cipher.GenerateKey()
		if err != nil {
			return nil, err
		}
		k.log.Infof("keychain %s is empty, generated a new repository key", k.ref)
		k.key = key
		k.generated = true
		return key, nil
	}

	candidates, err := src.Candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing local keys: %w", err)
	}

	tried := 0
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fp := Fingerprint(c.Public)
		blob, ok := k.entries[fp]
		if !ok {
			k.log.Debugf("%s (%s) has no keychain entry", c.Name, fp)
			continue
		}
		tried++

		priv, err := c.Load()
		if errors.Is(err, kerrors.ErrPassphraseRequired) {
			k.log.WarnfAlways("skipping %s: passphrase-protected keys are not supported", c.Name)
			continue
		}
		if err != nil {
			k.log.WarnfAlways("skipping %s: %v", c.Name, err)
			continue
		}

		wrapped, err := store.ReadBlobBytes(ctx, k.store, blob)
		if err != nil {
			return nil, fmt.Errorf("reading keychain entry for %s: %w", fp, err)
		}
		key, err := unwrapKey(priv, wrapped)
		if err != nil {
			k.log.WarnfAlways("skipping %s: cannot unwrap its keychain entry: %v", c.Name, err)
			continue
		}
		if len(key) != cipher.KeySize {
			k.log.WarnfAlways("skipping %s: unwrapped key has %d bytes", c.Name, len(key))
			continue
		}

		k.log.Infof("unlocked keychain with %s", c.Name)
		k.key = key
		return key, nil
	}

	return nil, fmt.Errorf("%w: %d of %d local keys matched an entry", kerrors.ErrKeyUnlock, tried, len(candidates))
}

// Key returns the unlocked repository key.
func (k *Keychain) Key() ([]byte, error) {
	if k.key == nil {
		return nil, kerrors.ErrKeychainLocked
	}
	return k.key, nil
}

// Generated reports whether Unlock created a new key that has not been
// saved yet.
func (k *Keychain) Generated() bool {
	return k.generated
}

// Save wraps the repository key for every key not yet in the keychain and
// moves the keychain ref if anything was added. Keys that cannot wrap the
// repository key are skipped with a warning.
func (k *Keychain) Save(ctx context.Context, keys []ssh.PublicKey) (int, error) {
	key, err := k.Key()
	if err != nil {
		return 0, err
	}

	next := make(map[string]store.ID, len(k.entries)+len(keys))
	for fp, id := range k.entries {
		next[fp] = id
	}

	added := 0
	for _, pub := range keys {
		fp := Fingerprint(pub)
		if _, ok := next[fp]; ok {
			continue
		}
		wrapped, err := wrapKey(pub, key)
		if errors.Is(err, kerrors.ErrUnsupportedKey) {
			k.log.WarnfAlways("skipping %s: %v", fp, err)
			continue
		}
		if err != nil {
			return 0, err
		}
		id, err := k.store.WriteBlob(ctx, bytes.NewReader(wrapped))
		if err != nil {
			return 0, fmt.Errorf("writing keychain entry for %s: %w", fp, err)
		}
		next[fp] = id
		added++
		k.log.Infof("added keychain entry for %s", fp)
	}

	if added == 0 {
		return 0, nil
	}

	tree := make([]store.TreeEntry, 0, len(next))
	for fp, id := range next {
		name, err := EncodeFingerprint(fp)
		if err != nil {
			return 0, err
		}
		tree = append(tree, store.TreeEntry{Mode: store.ModeRegular, Kind: store.KindBlob, ID: id, Name: name})
	}
	treeID, err := k.store.WriteTree(ctx, tree)
	if err != nil {
		return 0, fmt.Errorf("writing keychain: %w", err)
	}
	if err := k.store.UpdateRef(ctx, k.ref, treeID, k.head); err != nil {
		return 0, fmt.Errorf("updating keychain ref: %w", err)
	}

	k.head = treeID
	k.entries = next
	k.generated = false
	return added, nil
}

// Entries returns the fingerprints in the keychain, sorted.
func (k *Keychain) Entries() []string {
	fps := make([]string, 0, len(k.entries))
	for fp := range k.entries {
		fps = append(fps, fp)
	}
	sort.Strings(fps)
	return fps
}

func (k *Keychain) Has(fp string) bool {
	_, ok := k.entries[fp]
	return ok
}
