package workflows

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/PolarWolf314/veil/internal/audit"
	"github.com/PolarWolf314/veil/internal/configs"
	kerrors "github.com/PolarWolf314/veil/internal/errors"
	"github.com/PolarWolf314/veil/internal/keychain"
	logger "github.com/PolarWolf314/veil/internal/logging"
	"github.com/PolarWolf314/veil/internal/store"
	"github.com/PolarWolf314/veil/internal/store/storetest"
)

const mainRef = "refs/heads/main"

// useTempDataDir points the audit log into a temporary directory.
func useTempDataDir(t *testing.T) {
	t.Helper()
	original := configs.UserVeilSettings.UserDataPath
	configs.UserVeilSettings.UserDataPath = filepath.Join(t.TempDir(), "veil")
	t.Cleanup(func() {
		configs.UserVeilSettings.UserDataPath = original
	})
}

type keyPair struct {
	dir     string
	pub     ssh.PublicKey
	private []byte
}

// newKeyPair writes an RSA key pair into a fresh key directory.
func newKeyPair(t *testing.T) keyPair {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "test")
	if err != nil {
		t.Fatalf("failed to marshal private key: %v", err)
	}
	pub, err := ssh.NewPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("failed to convert public key: %v", err)
	}

	dir := t.TempDir()
	data := pem.EncodeToMemory(block)
	if err := os.WriteFile(filepath.Join(dir, "id_rsa"), data, 0600); err != nil {
		t.Fatalf("failed to write private key: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "id_rsa.pub"), ssh.MarshalAuthorizedKey(pub), 0644); err != nil {
		t.Fatalf("failed to write public key: %v", err)
	}
	return keyPair{dir: dir, pub: pub, private: data}
}

func configFor(kp keyPair) *configs.Config {
	config := configs.DefaultConfig()
	config.Keys.Dir = kp.dir
	return config
}

// newPlainRepo creates a work tree repository with one commit on main.
func newPlainRepo(t *testing.T) (string, store.ID) {
	t.Helper()
	path := t.TempDir()
	repo, err := store.Init(path, false)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	hello := storetest.Blob(t, repo, "world")
	tree := storetest.Tree(t, repo, storetest.File("hello.txt", hello))
	commit := storetest.Commit(t, repo, "add hello\n", tree)
	storetest.SetRef(t, repo, mainRef, commit)
	return path, commit
}

func newBareRepo(t *testing.T) string {
	t.Helper()
	path := t.TempDir()
	if _, err := store.Init(path, true); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return path
}

func readRef(t *testing.T, path, name string) store.ID {
	t.Helper()
	repo, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	id, err := store.ReadRefOrZero(context.Background(), repo, name)
	if err != nil {
		t.Fatalf("ReadRef %s failed: %v", name, err)
	}
	return id
}

func pushAll(t *testing.T, plain, enc string, kp keyPair) *PushResult {
	t.Helper()
	result, err := Push(context.Background(), PushOptions{
		Source: plain,
		Dest:   enc,
		Config: configFor(kp),
		Log:    logger.Discard(),
	})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	return result
}

func TestPushThenPull(t *testing.T) {
	useTempDataDir(t)
	kp := newKeyPair(t)
	plain, commit := newPlainRepo(t)
	enc := newBareRepo(t)

	pushed := pushAll(t, plain, enc, kp)
	if !pushed.KeychainCreated || pushed.Recipients != 1 {
		t.Errorf("Expected a new keychain for 1 recipient, got created=%v recipients=%d", pushed.KeychainCreated, pushed.Recipients)
	}
	if pushed.Tip != commit {
		t.Errorf("Expected tip %s, got %s", commit, pushed.Tip)
	}
	if got := readRef(t, enc, mainRef); got != pushed.Head {
		t.Errorf("Expected encrypted main at %s, got %s", pushed.Head, got)
	}
	if readRef(t, enc, keychain.DefaultRef) == store.ZeroID {
		t.Error("Expected keychain ref in encrypted repository")
	}

	restored := t.TempDir()
	if _, err := store.Init(restored, false); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	pulled, err := Pull(context.Background(), PullOptions{
		Source:    enc,
		Dest:      restored,
		UpdateRef: "main",
		Config:    configFor(kp),
		Log:       logger.Discard(),
	})
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if pulled.Head != commit {
		t.Errorf("Expected pulled commit %s, got %s", commit, pulled.Head)
	}
	if !pulled.RefUpdated {
		t.Error("Expected plaintext ref to be updated")
	}
	if got := readRef(t, restored, mainRef); got != commit {
		t.Errorf("Expected restored main at %s, got %s", commit, got)
	}

	entries, err := audit.ReadEntries()
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Operation != "push" || entries[1].Operation != "pull" {
		t.Fatalf("Expected push and pull audit entries, got %+v", entries)
	}
	if entries[0].Head != pushed.Head.String() || entries[0].Added != 1 {
		t.Errorf("Unexpected push audit entry: %+v", entries[0])
	}
}

// addCommit commits content on top of main in the repository at path.
func addCommit(t *testing.T, path, content string, parents ...store.ID) store.ID {
	t.Helper()
	repo, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	tree := storetest.Tree(t, repo, storetest.File("hello.txt", storetest.Blob(t, repo, content)))
	commit := storetest.Commit(t, repo, content+"\n", tree, parents...)
	storetest.SetRef(t, repo, mainRef, commit)
	return commit
}

func TestPullKeepsUnpushedCommits(t *testing.T) {
	useTempDataDir(t)
	kp := newKeyPair(t)
	plain, commit := newPlainRepo(t)
	enc := newBareRepo(t)
	pushAll(t, plain, enc, kp)

	local := addCommit(t, plain, "not pushed yet", commit)

	pulled, err := Pull(context.Background(), PullOptions{
		Source:    enc,
		Dest:      plain,
		UpdateRef: "main",
		Config:    configFor(kp),
		Log:       logger.Discard(),
	})
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if pulled.RefUpdated {
		t.Error("Expected main to stay put when it already contains the pulled commit")
	}
	if got := readRef(t, plain, mainRef); got != local {
		t.Errorf("Expected main to keep %s, got %s", local, got)
	}
}

func TestPullRefusesDivergedRef(t *testing.T) {
	useTempDataDir(t)
	kp := newKeyPair(t)
	plain, _ := newPlainRepo(t)
	enc := newBareRepo(t)
	pushAll(t, plain, enc, kp)

	restored := t.TempDir()
	if _, err := store.Init(restored, false); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	unrelated := addCommit(t, restored, "unrelated")

	_, err := Pull(context.Background(), PullOptions{
		Source:    enc,
		Dest:      restored,
		UpdateRef: "main",
		Config:    configFor(kp),
		Log:       logger.Discard(),
	})
	if !errors.Is(err, kerrors.ErrNonFastForward) {
		t.Fatalf("Expected ErrNonFastForward, got %v", err)
	}
	if got := readRef(t, restored, mainRef); got != unrelated {
		t.Errorf("Expected main to stay at %s, got %s", unrelated, got)
	}
}

func TestFirstPushFromPlaintextClone(t *testing.T) {
	useTempDataDir(t)
	kp := newKeyPair(t)
	plain, first := newPlainRepo(t)
	enc := newBareRepo(t)

	// The default remote is origin; its tracking ref was never mirrored.
	repo, err := store.Open(plain)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	storetest.SetRef(t, repo, "refs/remotes/origin/main", first)
	second := addCommit(t, plain, "second", first)

	pushed := pushAll(t, plain, enc, kp)
	if pushed.Tip != second || pushed.Commits != 2 {
		t.Errorf("Expected both commits pushed up to %s, got tip %s and %d commit(s)", second, pushed.Tip, pushed.Commits)
	}
}

func TestPushTwiceWritesNothing(t *testing.T) {
	useTempDataDir(t)
	kp := newKeyPair(t)
	plain, _ := newPlainRepo(t)
	enc := newBareRepo(t)

	first := pushAll(t, plain, enc, kp)
	second := pushAll(t, plain, enc, kp)

	if second.KeychainCreated {
		t.Error("Expected existing keychain to be reused")
	}
	if second.Written() != 0 || second.RefUpdated {
		t.Errorf("Expected no writes, got %d written, ref updated %v", second.Written(), second.RefUpdated)
	}
	if second.Head != first.Head {
		t.Errorf("Expected head %s, got %s", first.Head, second.Head)
	}
}

func TestPushWithUnknownKeyFails(t *testing.T) {
	useTempDataDir(t)
	alice := newKeyPair(t)
	bob := newKeyPair(t)
	plain, _ := newPlainRepo(t)
	enc := newBareRepo(t)

	first := pushAll(t, plain, enc, alice)

	_, err := Push(context.Background(), PushOptions{
		Source: plain,
		Dest:   enc,
		Config: configFor(bob),
		Log:    logger.Discard(),
	})
	if !errors.Is(err, kerrors.ErrKeyUnlock) {
		t.Fatalf("Expected ErrKeyUnlock, got %v", err)
	}
	if got := readRef(t, enc, mainRef); got != first.Head {
		t.Errorf("Expected encrypted main to stay at %s, got %s", first.Head, got)
	}

	entries, err := audit.ReadEntries()
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	if last := entries[len(entries)-1]; last.Error == "" {
		t.Errorf("Expected failed push to be audited with an error, got %+v", last)
	}
}

func TestPullRequiresKeychain(t *testing.T) {
	useTempDataDir(t)
	kp := newKeyPair(t)

	_, err := Pull(context.Background(), PullOptions{
		Source: newBareRepo(t),
		Dest:   newBareRepo(t),
		Config: configFor(kp),
		Log:    logger.Discard(),
	})
	if !errors.Is(err, kerrors.ErrKeyUnlock) {
		t.Fatalf("Expected ErrKeyUnlock, got %v", err)
	}
}

func TestPushRejectsMissingRepository(t *testing.T) {
	useTempDataDir(t)
	kp := newKeyPair(t)

	_, err := Push(context.Background(), PushOptions{
		Source: filepath.Join(t.TempDir(), "missing"),
		Dest:   newBareRepo(t),
		Config: configFor(kp),
		Log:    logger.Discard(),
	})
	if !errors.Is(err, kerrors.ErrNotRepository) {
		t.Fatalf("Expected ErrNotRepository, got %v", err)
	}
}

func TestPushWithStdinKey(t *testing.T) {
	useTempDataDir(t)
	kp := newKeyPair(t)
	plain, _ := newPlainRepo(t)
	enc := newBareRepo(t)

	config := configs.DefaultConfig()
	config.Keys.Dir = filepath.Join(t.TempDir(), "empty")
	_, err := Push(context.Background(), PushOptions{
		Source: plain,
		Dest:   enc,
		Keys:   KeyOptions{PrivateKeyData: kp.private},
		Config: config,
		Log:    logger.Discard(),
	})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	checked, err := CheckUnlock(context.Background(), KeysOptions{
		Repo:   enc,
		Config: configFor(kp),
		Log:    logger.Discard(),
	})
	if err != nil {
		t.Fatalf("CheckUnlock failed: %v", err)
	}
	if len(checked.Matched) != 1 || checked.Matched[0] != keychain.Fingerprint(kp.pub) {
		t.Errorf("Expected %s to match, got %v", keychain.Fingerprint(kp.pub), checked.Matched)
	}
}

func TestPushWithoutRecipientsFails(t *testing.T) {
	useTempDataDir(t)
	plain, _ := newPlainRepo(t)
	enc := newBareRepo(t)

	config := configs.DefaultConfig()
	config.Keys.Dir = filepath.Join(t.TempDir(), "empty")
	_, err := Push(context.Background(), PushOptions{
		Source: plain,
		Dest:   enc,
		Config: config,
		Log:    logger.Discard(),
	})
	if !errors.Is(err, kerrors.ErrNotConfigured) {
		t.Fatalf("Expected ErrNotConfigured, got %v", err)
	}
	if got := readRef(t, enc, mainRef); got != store.ZeroID {
		t.Errorf("Expected nothing pushed, main at %s", got)
	}
}

func TestSyncKeysAddsCollaborator(t *testing.T) {
	useTempDataDir(t)
	alice := newKeyPair(t)
	bob := newKeyPair(t)
	plain, _ := newPlainRepo(t)
	enc := newBareRepo(t)
	pushAll(t, plain, enc, alice)

	// Bob is published through an authorized_keys directory file.
	directory := filepath.Join(t.TempDir(), "authorized_keys")
	if err := os.WriteFile(directory, ssh.MarshalAuthorizedKey(bob.pub), 0644); err != nil {
		t.Fatalf("failed to write directory: %v", err)
	}
	config := configFor(alice)
	config.Directory.Location = directory
	config.Directory.Account = "bob"

	synced, err := SyncKeys(context.Background(), KeysOptions{
		Repo:         enc,
		IncludeLocal: true,
		Config:       config,
		Log:          logger.Discard(),
	})
	if err != nil {
		t.Fatalf("SyncKeys failed: %v", err)
	}
	if synced.Offered != 2 || synced.Added != 1 {
		t.Errorf("Expected 2 offered and 1 added, got %d and %d", synced.Offered, synced.Added)
	}

	if _, err := CheckUnlock(context.Background(), KeysOptions{Repo: enc, Config: configFor(bob), Log: logger.Discard()}); err != nil {
		t.Fatalf("Expected bob to unlock, got %v", err)
	}

	listed, err := ListKeys(context.Background(), KeysOptions{Repo: enc, Config: configFor(alice), Log: logger.Discard()})
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	if len(listed.Keys) != 2 {
		t.Fatalf("Expected 2 keychain entries, got %d", len(listed.Keys))
	}
	for _, k := range listed.Keys {
		wantLocal := k.Fingerprint == keychain.Fingerprint(alice.pub)
		if k.Local != wantLocal {
			t.Errorf("Entry %s: expected local=%v", k.Fingerprint, wantLocal)
		}
	}

	entries, err := audit.ReadEntries()
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	last := entries[len(entries)-1]
	if last.Operation != "keys-sync" || last.Account != "bob" || last.Added != 1 {
		t.Errorf("Unexpected keys-sync audit entry: %+v", last)
	}
}

func TestSyncKeysWithNothingToOffer(t *testing.T) {
	useTempDataDir(t)
	kp := newKeyPair(t)
	plain, _ := newPlainRepo(t)
	enc := newBareRepo(t)
	pushAll(t, plain, enc, kp)

	_, err := SyncKeys(context.Background(), KeysOptions{Repo: enc, Config: configFor(kp), Log: logger.Discard()})
	if !errors.Is(err, kerrors.ErrNotConfigured) {
		t.Fatalf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestRemapWorkflows(t *testing.T) {
	useTempDataDir(t)
	kp := newKeyPair(t)
	plain, commit := newPlainRepo(t)
	enc := newBareRepo(t)
	pushed := pushAll(t, plain, enc, kp)

	listed, err := RemapList(context.Background(), RemapOptions{Repo: enc, Config: configFor(kp), Log: logger.Discard()})
	if err != nil {
		t.Fatalf("RemapList failed: %v", err)
	}
	if len(listed.Entries) != pushed.Written() {
		t.Errorf("Expected %d entries, got %d", pushed.Written(), len(listed.Entries))
	}
	if listed.Head != pushed.RemapID {
		t.Errorf("Expected table %s, got %s", pushed.RemapID, listed.Head)
	}

	forward, err := RemapLookup(context.Background(), RemapOptions{Repo: enc, ID: pushed.Head.String(), Config: configFor(kp), Log: logger.Discard()})
	if err != nil {
		t.Fatalf("RemapLookup failed: %v", err)
	}
	if !forward.Found || forward.Plaintext != commit.String() {
		t.Errorf("Expected %s -> %s, got %+v", pushed.Head, commit, forward)
	}

	reverse, err := RemapLookup(context.Background(), RemapOptions{Repo: enc, ID: commit.String(), Reverse: true, Config: configFor(kp), Log: logger.Discard()})
	if err != nil {
		t.Fatalf("RemapLookup failed: %v", err)
	}
	if !reverse.Found || reverse.Encrypted != pushed.Head.String() {
		t.Errorf("Expected %s <- %s, got %+v", pushed.Head, commit, reverse)
	}

	if _, err := RemapLookup(context.Background(), RemapOptions{Repo: enc, ID: "nope", Config: configFor(kp), Log: logger.Discard()}); err == nil {
		t.Error("Expected an invalid id to be rejected")
	}
}

func TestQualifyRef(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "refs/heads/main"},
		{"dev", "refs/heads/dev"},
		{"refs/tags/v1", "refs/tags/v1"},
	}
	for _, tt := range tests {
		got, err := qualifyRef(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("qualifyRef(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := qualifyRef("HEAD"); !errors.Is(err, kerrors.ErrNotConfigured) {
		t.Errorf("Expected HEAD to be rejected, got %v", err)
	}
}
