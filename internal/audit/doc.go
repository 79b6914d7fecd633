// Package audit provides audit trail logging for veil operations.
//
// Every push, pull and keychain change is recorded in a per-user audit log,
// so a user can tell which runs touched which repositories and what they
// wrote.
//
// # Log Format
//
// The audit log is stored as JSON Lines (one JSON object per line) at:
//
//	$XDG_DATA_HOME/veil/audit.jsonl
//
// Each entry contains:
//   - Timestamp (RFC3339 with microseconds, UTC)
//   - Run id (a random UUID shared by every entry of one run)
//   - User and host
//   - Operation name
//   - Operation-specific details (repositories, refs, object counts, keys)
//
// # Usage
//
//	entry := audit.NewEntry("push")
//	entry.Ref = "refs/heads/main"
//	audit.Log(entry)
//
// # Failure Handling
//
// Audit logging is best-effort. If logging fails (permissions, disk full,
// etc.), the operation continues without error.
//
// # Reading Logs
//
// Use ReadEntries() to parse the audit log for display or analysis.
// Malformed entries are silently skipped to handle partial writes.
package audit
