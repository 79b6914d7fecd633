// Package shared contains testing utilities shared between integration tests.
// This file provides common functions for setting up test environments,
// capturing output, and building plaintext and encrypted repositories.
package shared

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"io"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/PolarWolf314/veil/cmd"
	"github.com/PolarWolf314/veil/internal/configs"
	"github.com/PolarWolf314/veil/internal/store"
	"github.com/PolarWolf314/veil/internal/store/storetest"
)

// SetupTestEnvironment points the user config and data directories into a
// temporary directory and writes a config using keyDir.
func SetupTestEnvironment(t *testing.T, keyDir string) {
	t.Helper()
	tempUserDir := t.TempDir()

	original := configs.UserVeilSettings
	configs.UserVeilSettings = &configs.UserSettings{
		UserConfigsPath: filepath.Join(tempUserDir, "config"),
		UserDataPath:    filepath.Join(tempUserDir, "data"),
	}
	t.Cleanup(func() {
		configs.UserVeilSettings = original
		cmd.ResetGlobalState()
	})
	UseKeyDir(t, keyDir)
}

// UseKeyDir switches the configured key directory, as if another
// collaborator ran the next command.
func UseKeyDir(t *testing.T, keyDir string) {
	t.Helper()
	config := configs.DefaultConfig()
	config.Keys.Dir = keyDir
	if err := configs.SaveConfig(configs.ConfigPath(), config); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
}

// CaptureOutput captures both stdout and stderr during function execution.
func CaptureOutput(fn func() error) (string, error) {
	return CaptureOutputWithStdin(nil, fn)
}

// CaptureOutputWithStdin runs fn with stdin reading from input, capturing
// stdout and stderr. A nil input leaves stdin alone.
func CaptureOutputWithStdin(input []byte, fn func() error) (string, error) {
	originalStdin := os.Stdin
	originalStdout := os.Stdout
	originalStderr := os.Stderr

	if input != nil {
		stdinReader, stdinWriter, _ := os.Pipe()
		go func() {
			_, _ = stdinWriter.Write(input)
			stdinWriter.Close()
		}()
		os.Stdin = stdinReader
		defer stdinReader.Close()
	}

	stdoutReader, stdoutWriter, _ := os.Pipe()
	stderrReader, stderrWriter, _ := os.Pipe()
	os.Stdout = stdoutWriter
	os.Stderr = stderrWriter

	outputChan := make(chan string, 2)
	collect := func(r io.Reader) {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outputChan <- buf.String()
	}
	go collect(stdoutReader)
	go collect(stderrReader)

	err := fn()

	stdoutWriter.Close()
	stderrWriter.Close()

	os.Stdin = originalStdin
	os.Stdout = originalStdout
	os.Stderr = originalStderr

	output := <-outputChan
	output += <-outputChan
	return output, err
}

// RunCLI executes veil with args and returns its combined output.
func RunCLI(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	cmd.ResetGlobalState()
	return CaptureOutputWithStdin(stdin, func() error {
		cmd.RootCmd.SetArgs(args)
		return cmd.RootCmd.Execute()
	})
}

// KeyPair is an RSA key pair written to its own key directory.
type KeyPair struct {
	Dir     string
	Public  ssh.PublicKey
	Private []byte
}

// AuthorizedKey returns the public key in authorized_keys format.
func (k KeyPair) AuthorizedKey() []byte {
	return ssh.MarshalAuthorizedKey(k.Public)
}

// NewKeyPair writes an RSA key pair the way ssh-keygen does.
func NewKeyPair(t *testing.T) KeyPair {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "veil-test")
	if err != nil {
		t.Fatalf("Failed to marshal private key: %v", err)
	}
	pub, err := ssh.NewPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("Failed to convert public key: %v", err)
	}

	dir := t.TempDir()
	data := pem.EncodeToMemory(block)
	if err := os.WriteFile(filepath.Join(dir, "id_rsa"), data, 0600); err != nil {
		t.Fatalf("Failed to write private key: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "id_rsa.pub"), ssh.MarshalAuthorizedKey(pub), 0644); err != nil {
		t.Fatalf("Failed to write public key: %v", err)
	}
	return KeyPair{Dir: dir, Public: pub, Private: data}
}

// Repo is an on-disk repository under test.
type Repo struct {
	Path  string
	Store *store.Git
}

// NewRepo initializes a repository in a temporary directory.
func NewRepo(t *testing.T, bare bool) Repo {
	t.Helper()
	path := t.TempDir()
	s, err := store.Init(path, bare)
	if err != nil {
		t.Fatalf("Failed to init repository: %v", err)
	}
	return Repo{Path: path, Store: s}
}

// Commit writes a commit holding files on top of parents.
func (r Repo) Commit(t *testing.T, message string, files map[string]string, parents ...store.ID) store.ID {
	t.Helper()
	var entries []store.TreeEntry
	for name, content := range files {
		entries = append(entries, storetest.File(name, storetest.Blob(t, r.Store, content)))
	}
	tree := storetest.Tree(t, r.Store, entries...)
	return storetest.Commit(t, r.Store, message, tree, parents...)
}

// SetRef points name at id.
func (r Repo) SetRef(t *testing.T, name string, id store.ID) {
	t.Helper()
	storetest.SetRef(t, r.Store, name, id)
}

// Ref reads name from a fresh handle on the repository.
func (r Repo) Ref(t *testing.T, name string) store.ID {
	t.Helper()
	s, err := store.Open(r.Path)
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}
	id, err := store.ReadRefOrZero(context.Background(), s, name)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return id
}
