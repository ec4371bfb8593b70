package storage

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the configuration from config.yaml.
// If the file doesn't exist, it returns default configuration.
// If the file is corrupted, it returns an error.
// Missing fields (absent from YAML) are silently defaulted.
func LoadConfig() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFile(path)
}

// LoadConfigFile loads the configuration from an explicit path.
func LoadConfigFile(path string) (*Config, error) {
	yamlBytes, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(yamlBytes, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	ApplyMissingDefaults(config, detectPresentKeys(yamlBytes))

	return config, nil
}

// SaveConfig saves the configuration to config.yaml atomically
func SaveConfig(config *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	return AtomicWriteYAML(path, config)
}

// CreateConfigIfMissing creates a default config.yaml if it doesn't exist
func CreateConfigIfMissing() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return SaveConfig(DefaultConfig())
	}

	return nil
}

// DeleteConfig removes the config.yaml file
func DeleteConfig() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}
