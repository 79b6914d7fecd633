package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	kerrors "github.com/PolarWolf314/veil/internal/errors"
	"github.com/PolarWolf314/veil/internal/ui"
	"github.com/PolarWolf314/veil/internal/utils"
	"github.com/PolarWolf314/veil/internal/workflows"
	"github.com/briandowns/spinner"
)

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be deferred to clean up.
//
// The spinner draws on stderr; stdout carries only final messages and
// command output. spinner.FinalMSG values do NOT need trailing newlines.
func startSpinner(message string) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message

	if err := s.Color("cyan"); err != nil {
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	quiet := !verbose && !debug && utils.IsTerminal()
	if quiet {
		s.Start()
	} else {
		Logger.Infof("%s", message)
	}

	cleanup := func() {
		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}
		if quiet {
			s.Stop()
		}
		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

// failure shows err as the spinner's final message and marks it reported.
func failure(s *spinner.Spinner, err error) error {
	Logger.Errorf("%v", err)
	s.FinalMSG = errorMessage(err)
	return reportedError{err}
}

// errorMessage picks a user-facing message for err.
func errorMessage(err error) string {
	var summary, hint string
	switch {
	case errors.Is(err, kerrors.ErrKeyUnlock):
		summary = "None of your keys can unlock this repository"
		hint = "Ask a collaborator to run " + ui.Code.Sprint("veil keys sync") + " with your public key"
	case errors.Is(err, kerrors.ErrPassphraseRequired):
		summary = "Your private key is protected by a passphrase"
		hint = "Run the command from a terminal so veil can ask for it"
	case errors.Is(err, kerrors.ErrRefChanged):
		summary = "The repository was updated by someone else while veil was running"
		hint = "Run the command again"
	case errors.Is(err, kerrors.ErrNonFastForward):
		summary = "The update would drop commits the ref already has"
		hint = "Merge those commits into your history first, or use another ref"
	case errors.Is(err, kerrors.ErrNotRepository):
		summary = "Not a git repository"
	case errors.Is(err, kerrors.ErrCommitMismatch):
		summary = "The encrypted history does not match the commits stored in it"
	case errors.Is(err, kerrors.ErrCipher), errors.Is(err, kerrors.ErrShortInput):
		summary = "Encrypted data is corrupt or was sealed with a different key"
	case errors.Is(err, kerrors.ErrRemapNotFound):
		summary = "The remap table is missing an entry"
	case errors.Is(err, kerrors.ErrNotConfigured):
		summary = "A required setting is missing"
		hint = "See " + ui.Code.Sprint("veil config show")
	default:
		summary = "Failed"
	}

	msg := ui.Error.Sprint("✗") + " " + summary + "\n" + ui.Error.Sprint("Error: ") + err.Error()
	if hint != "" {
		msg += "\n" + ui.Info.Sprint("→") + " " + hint
	}
	return msg
}

// keyOptions builds the key options for a command. With fromStdin the
// private key is read from stdin. Protected keys are unlocked with a
// passphrase read from the terminal, pausing the spinner meanwhile.
func keyOptions(s *spinner.Spinner, fromStdin bool) (workflows.KeyOptions, error) {
	var opts workflows.KeyOptions

	if fromStdin {
		Logger.Debugf("Reading private key from stdin")
		data, err := utils.ReadStdin()
		if err != nil {
			return opts, err
		}
		opts.PrivateKeyData = data
	}

	if utils.IsTTYAvailable() {
		opts.Passphrase = func(name string) ([]byte, error) {
			active := s.Active()
			if active {
				s.Stop()
				defer s.Start()
			}
			return utils.ReadPassphraseFromTTY(fmt.Sprintf("Enter passphrase for %s: ", name))
		}
	}
	return opts, nil
}

// repoArg returns args[i], or the repository containing the working
// directory when there are fewer arguments.
func repoArg(args []string, i int) (string, error) {
	if i < len(args) {
		return args[i], nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := utils.FindRepositoryRoot(wd)
	if err != nil {
		return "", err
	}
	if root == "" {
		return "", fmt.Errorf("%w: %s", kerrors.ErrNotRepository, wd)
	}
	return root, nil
}
