package configs

import (
	"log"
	"os"
	"path/filepath"
)

type UserSettings struct {
	UserConfigsPath string
	UserDataPath    string
}

var UserVeilSettings *UserSettings

func init() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("error getting home directory: %s", err)
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatalf("error getting config directory: %s", err)
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	UserVeilSettings = &UserSettings{
		UserConfigsPath: filepath.Join(configDir, "veil"),
		UserDataPath:    filepath.Join(dataDir, "veil"),
	}
}

// ConfigPath returns the path of the user config file.
func ConfigPath() string {
	return filepath.Join(UserVeilSettings.UserConfigsPath, "config.toml")
}

// AuditLogPath returns the path of the audit log.
func AuditLogPath() string {
	return filepath.Join(UserVeilSettings.UserDataPath, "audit.jsonl")
}
