package config

import (
	"os"
	"path/filepath"
)

// RoamPath returns the root directory for Roam data.
// It uses $ROAM_PATH if set, otherwise defaults to ~/.roam.
func RoamPath() string {
	if v := os.Getenv("ROAM_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".roam")
	}
	return filepath.Join(home, ".roam")
}

// ConfigPath returns the path to the Roam config file.
func ConfigPath() string {
	return filepath.Join(RoamPath(), "config.jsonc")
}

// DotenvPath returns the path to the Roam .env file.
func DotenvPath() string {
	return filepath.Join(RoamPath(), ".env")
}
