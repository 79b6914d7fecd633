package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/PolarWolf314/veil/internal/configs"
	"github.com/PolarWolf314/veil/internal/utils"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp string `json:"ts"`  // RFC3339 with microseconds.
	RunID     string `json:"run"` // Shared by all entries of one run.
	User      string `json:"user"`
	Host      string `json:"host,omitempty"`
	Operation string `json:"op"`

	// Optional fields depending on operation.
	Source  string `json:"source,omitempty"`  // For push/pull.
	Dest    string `json:"dest,omitempty"`    // For push/pull.
	Ref     string `json:"ref,omitempty"`     // For push/pull.
	Tip     string `json:"tip,omitempty"`     // Source commit mirrored.
	Head    string `json:"head,omitempty"`    // Its counterpart.
	Objects int    `json:"objects,omitempty"` // Objects walked.
	Written int    `json:"written,omitempty"` // Objects written.
	Repo    string `json:"repo,omitempty"`    // For key operations.
	Account string `json:"account,omitempty"` // For key sync.
	Added   int    `json:"added,omitempty"`   // Keychain entries added.
	Error   string `json:"error,omitempty"`   // Set when the operation failed.
}

// NewEntry returns an entry for op with a fresh run id and the current
// user filled in.
func NewEntry(op string) Entry {
	entry := Entry{
		RunID:     uuid.New().String(),
		Operation: op,
	}
	if user, err := utils.GetUsername(); err == nil {
		entry.User = user
	}
	if host, err := utils.GetHostname(); err == nil {
		entry.Host = host
	}
	return entry
}

// Log appends an entry to the audit log.
// If logging fails, the error is dropped: operations should not fail just
// because audit logging failed.
func Log(entry Entry) {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	}

	logPath := LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	_, _ = f.Write(append(data, '\n'))
}

// LogPath returns the path to the audit log file.
func LogPath() string {
	return configs.AuditLogPath()
}

// ReadEntries reads all entries from the audit log.
// Returns an empty slice if the log doesn't exist.
func ReadEntries() ([]Entry, error) {
	data, err := os.ReadFile(LogPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
