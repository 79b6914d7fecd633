// Package configs manages user configuration and settings for veil.
//
// Configuration is stored in TOML format at ~/.config/veil/config.toml (or
// the platform equivalent of os.UserConfigDir). A missing file yields the
// defaults.
//
// # Configuration
//
// The config stores:
//   - The refs holding the remap table and the keychain
//   - The directory scanned for local SSH key pairs
//   - The collaborator directory (an authorized_keys file or a URL base such
//     as https://github.com) and the account whose keys it publishes
//   - The remote whose tracking refs count as already pushed
//   - The synthetic identity written on encrypted commits
//
// # Settings
//
// UserVeilSettings holds the paths derived from the XDG directories at
// startup: the config file and the data directory with the audit log.
package configs
