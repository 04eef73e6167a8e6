package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - HARBOR_CONFIG_PATH: config file location (default: ~/.config/harbor.toml)
//   - HARBOR_HOME: base directory for harbor data (default: ~/.local/share/harbor)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
	}, nil
}

// getConfigPath returns the config file path, checking HARBOR_CONFIG_PATH env var
// first, then falling back to the default ~/.config/harbor.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("HARBOR_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "harbor.toml"), nil
}

// getBaseDir returns the base directory for harbor data, checking HARBOR_HOME
// env var first, then falling back to the XDG default ~/.local/share/harbor.
func getBaseDir() (string, error) {
	if path := os.Getenv("HARBOR_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "harbor"), nil
}
