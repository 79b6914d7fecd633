package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/PolarWolf314/veil/internal/keychain"
	"github.com/PolarWolf314/veil/internal/remap"
	"github.com/PolarWolf314/veil/internal/store"
)

type Config struct {
	Refs      Refs      `toml:"refs"`
	Keys      Keys      `toml:"keys"`
	Directory Directory `toml:"directory"`
	Push      Push      `toml:"push"`
	Identity  Identity  `toml:"identity"`
}

type Refs struct {
	Remap    string `toml:"remap"`
	Keychain string `toml:"keychain"`
}

type Keys struct {
	// Dir holds local SSH key pairs. Empty means ~/.ssh.
	Dir string `toml:"dir"`
}

type Directory struct {
	// Location is an authorized_keys file or an http(s) URL base.
	Location string `toml:"location"`
	Account  string `toml:"account"`
}

type Push struct {
	Remote string `toml:"remote"`
}

type Identity struct {
	Name          string    `toml:"name"`
	Email         string    `toml:"email"`
	AuthorDate    time.Time `toml:"author_date"`
	CommitterDate time.Time `toml:"committer_date"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	id := store.DefaultIdentity()
	return &Config{
		Refs: Refs{
			Remap:    remap.DefaultRef,
			Keychain: keychain.DefaultRef,
		},
		Push: Push{Remote: "origin"},
		Identity: Identity{
			Name:          id.Name,
			Email:         id.Email,
			AuthorDate:    id.AuthorDate,
			CommitterDate: id.CommitterDate,
		},
	}
}

// LoadConfig loads the config at path over the defaults. A missing file is
// not an error.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}

	if err := LoadTOML(path, config); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return config, nil
}

// LoadUserConfig loads the config at ConfigPath.
func LoadUserConfig() (*Config, error) {
	return LoadConfig(ConfigPath())
}

func SaveConfig(path string, config *Config) error {
	if err := SaveTOML(path, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// KeyDir returns the configured key directory, defaulting to ~/.ssh.
func (c *Config) KeyDir() (string, error) {
	if c.Keys.Dir != "" {
		return c.Keys.Dir, nil
	}
	return keychain.DefaultKeyDir()
}

// StoreIdentity returns the synthetic commit identity, falling back to the
// default for any unset field.
func (c *Config) StoreIdentity() store.Identity {
	id := store.DefaultIdentity()
	if c.Identity.Name != "" {
		id.Name = c.Identity.Name
	}
	if c.Identity.Email != "" {
		id.Email = c.Identity.Email
	}
	if !c.Identity.AuthorDate.IsZero() {
		id.AuthorDate = c.Identity.AuthorDate.UTC()
	}
	if !c.Identity.CommitterDate.IsZero() {
		id.CommitterDate = c.Identity.CommitterDate.UTC()
	}
	return id
}
