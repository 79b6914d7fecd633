package cmd

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/PolarWolf314/veil/internal/configs"
	kerrors "github.com/PolarWolf314/veil/internal/errors"
	"github.com/PolarWolf314/veil/internal/store"
	"github.com/PolarWolf314/veil/internal/store/storetest"
)

// writeKeyDir writes an RSA key pair the way ssh-keygen does.
func writeKeyDir(t *testing.T) string {
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
	if err := os.WriteFile(filepath.Join(dir, "id_rsa"), pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("failed to write private key: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "id_rsa.pub"), ssh.MarshalAuthorizedKey(pub), 0644); err != nil {
		t.Fatalf("failed to write public key: %v", err)
	}
	return dir
}

func TestConfigInitAndShow(t *testing.T) {
	setupTestEnvironment(t)

	stdout, _, err := runCLI(t, "config", "init", "--key-dir", "/keys", "--account", "octocat")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(stdout, "Wrote") {
		t.Errorf("Expected confirmation, got: %s", stdout)
	}

	config, err := configs.LoadUserConfig()
	if err != nil {
		t.Fatalf("LoadUserConfig failed: %v", err)
	}
	if config.Keys.Dir != "/keys" || config.Directory.Account != "octocat" || config.Push.Remote != "origin" {
		t.Errorf("Unexpected config: %+v", config)
	}

	stdout, _, err = runCLI(t, "config", "init", "--account", "someone-else")
	if err != nil {
		t.Fatalf("second config init failed: %v", err)
	}
	if !strings.Contains(stdout, "already exists") {
		t.Errorf("Expected existing config to be kept, got: %s", stdout)
	}

	stdout, _, err = runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(stdout, `account = "octocat"`) {
		t.Errorf("Expected account in output, got: %s", stdout)
	}
}

func TestPushPullCommands(t *testing.T) {
	setupTestEnvironment(t)
	keyDir := writeKeyDir(t)
	if _, _, err := runCLI(t, "config", "init", "--key-dir", keyDir); err != nil {
		t.Fatalf("config init failed: %v", err)
	}

	plainPath := t.TempDir()
	plain, err := store.Init(plainPath, false)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	blob := storetest.Blob(t, plain, "world")
	commit := storetest.Commit(t, plain, "add hello\n", storetest.Tree(t, plain, storetest.File("hello.txt", blob)))
	storetest.SetRef(t, plain, "refs/heads/main", commit)

	encPath := t.TempDir()
	if _, err := store.Init(encPath, true); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	stdout, _, err := runCLI(t, "push", plainPath, encPath)
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if !strings.Contains(stdout, "Created keychain for 1 key(s)") || !strings.Contains(stdout, "Pushed") {
		t.Errorf("Unexpected push output: %s", stdout)
	}

	stdout, _, err = runCLI(t, "push", plainPath, encPath)
	if err != nil {
		t.Fatalf("second push failed: %v", err)
	}
	if !strings.Contains(stdout, "is up to date") {
		t.Errorf("Expected up to date, got: %s", stdout)
	}

	restored := t.TempDir()
	if _, err := store.Init(restored, false); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	stdout, _, err = runCLI(t, "pull", encPath, restored, "--update-ref", "main")
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if !strings.Contains(stdout, commit.String()) {
		t.Errorf("Expected pulled commit %s in output, got: %s", commit, stdout)
	}

	stdout, _, err = runCLI(t, "remap", "get", encPath, commit.String(), "--reverse")
	if err != nil {
		t.Fatalf("remap get failed: %v", err)
	}
	if len(strings.TrimSpace(stdout)) != 40 {
		t.Errorf("Expected an encrypted id, got: %q", stdout)
	}

	stdout, _, err = runCLI(t, "remap", "list", encPath)
	if err != nil {
		t.Fatalf("remap list failed: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(stdout), "\n"); len(lines) != 3 {
		t.Errorf("Expected 3 remap entries, got %d: %s", len(lines), stdout)
	}

	stdout, _, err = runCLI(t, "log", "--operation", "push")
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if strings.Count(stdout, "push") != 2 {
		t.Errorf("Expected 2 push entries, got: %s", stdout)
	}
}

func TestKeysCheckWithoutKeychain(t *testing.T) {
	setupTestEnvironment(t)
	keyDir := writeKeyDir(t)
	if _, _, err := runCLI(t, "config", "init", "--key-dir", keyDir); err != nil {
		t.Fatalf("config init failed: %v", err)
	}

	encPath := t.TempDir()
	if _, err := store.Init(encPath, true); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	stdout, _, err := runCLI(t, "keys", "check", encPath)
	if !errors.Is(err, kerrors.ErrKeyUnlock) {
		t.Fatalf("Expected ErrKeyUnlock, got %v", err)
	}
	if !IsReported(err) {
		t.Error("Expected the failure to be reported by the command")
	}
	if !strings.Contains(stdout, "None of your keys can unlock this repository") {
		t.Errorf("Unexpected output: %s", stdout)
	}
}

func TestLogWithoutAuditLog(t *testing.T) {
	setupTestEnvironment(t)

	stdout, _, err := runCLI(t, "log")
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if !strings.Contains(stdout, "No audit log found") {
		t.Errorf("Unexpected output: %s", stdout)
	}
}
