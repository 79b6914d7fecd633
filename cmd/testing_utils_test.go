package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/PolarWolf314/veil/internal/configs"
)

// setupTestEnvironment points the user config and data directories into a
// temporary directory.
func setupTestEnvironment(t *testing.T) string {
	t.Helper()
	tempUserDir := t.TempDir()

	original := configs.UserVeilSettings
	configs.UserVeilSettings = &configs.UserSettings{
		UserConfigsPath: filepath.Join(tempUserDir, "config"),
		UserDataPath:    filepath.Join(tempUserDir, "data"),
	}
	t.Cleanup(func() {
		configs.UserVeilSettings = original
		ResetGlobalState()
	})
	ResetGlobalState()
	return tempUserDir
}

// captureOutput captures both stdout and stderr during function execution.
func captureOutput(fn func() error) (string, string, error) {
	originalStdout := os.Stdout
	originalStderr := os.Stderr

	stdoutReader, stdoutWriter, _ := os.Pipe()
	stderrReader, stderrWriter, _ := os.Pipe()

	os.Stdout = stdoutWriter
	os.Stderr = stderrWriter

	stdoutChan := make(chan string, 1)
	stderrChan := make(chan string, 1)
	collect := func(r io.Reader, out chan<- string) {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		out <- buf.String()
	}
	go collect(stdoutReader, stdoutChan)
	go collect(stderrReader, stderrChan)

	err := fn()

	stdoutWriter.Close()
	stderrWriter.Close()
	os.Stdout = originalStdout
	os.Stderr = originalStderr

	return <-stdoutChan, <-stderrChan, err
}

// runCLI executes the veil command with args, capturing its output.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	ResetGlobalState()
	return captureOutput(func() error {
		RootCmd.SetArgs(args)
		return RootCmd.Execute()
	})
}
