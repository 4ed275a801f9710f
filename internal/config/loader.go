package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"switchboard/pkg/logging"
)

const (
	userConfigDir  = ".config/switchboard"
	configFileName = "config.yaml"
)

// GetDefaultConfigPath returns ~/.config/switchboard.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads config.yaml from configPath on top of the defaults. A
// missing file yields the defaults. Relative paths in the result are
// resolved against configPath, and the result is validated.
func LoadConfig(configPath string) (SwitchboardConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return SwitchboardConfig{}, fmt.Errorf("error reading %s: %w", configFilePath, err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return SwitchboardConfig{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	config.Storage.Path = resolvePath(configPath, config.Storage.Path)
	config.Encryption.IdentityFile = resolvePath(configPath, config.Encryption.IdentityFile)

	if err := config.Validate(); err != nil {
		return SwitchboardConfig{}, fmt.Errorf("invalid configuration in %s: %w", configFilePath, err)
	}
	return config, nil
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// MongoURI returns the mongo URI, preferring the configured environment
// variable.
func (c StorageConfig) MongoURI() string {
	if c.Mongo.URIEnv != "" {
		if v := os.Getenv(c.Mongo.URIEnv); v != "" {
			return v
		}
	}
	return c.Mongo.URI
}

// RedisPassword returns the redis password from the configured environment
// variable.
func (c StorageConfig) RedisPassword() string {
	if c.Redis.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.Redis.PasswordEnv)
}
