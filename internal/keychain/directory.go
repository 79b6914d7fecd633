package keychain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/crypto/ssh"

	logger "github.com/PolarWolf314/veil/internal/logging"
)

// Directory publishes the public keys of the collaborators authorized for an
// account.
type Directory interface {
	AuthorizedKeys(ctx context.Context, account string) ([]ssh.PublicKey, error)
}

// NewDirectory returns an HTTPDirectory for http(s) locations and a
// FileDirectory otherwise.
func NewDirectory(location string, log logger.Logger) Directory {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPDirectory(location, log)
	}
	return FileDirectory{Path: location, Log: log}
}

// FileDirectory reads keys from a file in authorized_keys format. The
// account is ignored.
type FileDirectory struct {
	Path string
	Log  logger.Logger
}

func (f FileDirectory) AuthorizedKeys(ctx context.Context, account string) ([]ssh.PublicKey, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading authorized keys: %w", err)
	}
	return ParseAuthorizedKeys(data, f.Log), nil
}

// HTTPDirectory fetches "<BaseURL>/<account>.keys", the layout GitHub and
// GitLab use to publish user keys.
type HTTPDirectory struct {
	BaseURL string
	Client  *retryablehttp.Client
	Log     logger.Logger
}

func NewHTTPDirectory(baseURL string, log logger.Logger) *HTTPDirectory {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = retryLogger{log}
	return &HTTPDirectory{BaseURL: strings.TrimSuffix(baseURL, "/"), Client: client, Log: log}
}

func (h *HTTPDirectory) AuthorizedKeys(ctx context.Context, account string) ([]ssh.PublicKey, error) {
	if account == "" {
		return nil, fmt.Errorf("no account given for %s", h.BaseURL)
	}
	u := h.BaseURL + "/" + url.PathEscape(account) + ".keys"

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", u, err)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", u, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", u, err)
	}
	return ParseAuthorizedKeys(data, h.Log), nil
}

// ParseAuthorizedKeys returns every key in data, skipping blank lines and
// comments. Lines that do not parse are skipped with a warning.
func ParseAuthorizedKeys(data []byte, log logger.Logger) []ssh.PublicKey {
	var keys []ssh.PublicKey
	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		pub, _, _, _, err := ssh.ParseAuthorizedKey(line)
		if err != nil {
			log.WarnfAlways("skipping authorized key on line %d: %v", i+1, err)
			continue
		}
		keys = append(keys, pub)
	}
	return keys
}

// retryLogger sends retryablehttp's messages to the debug log.
type retryLogger struct {
	log logger.Logger
}

func (r retryLogger) Printf(format string, args ...any) {
	r.log.Debugf(format, args...)
}
