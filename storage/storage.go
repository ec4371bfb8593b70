package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

var (
	appName = "egba"
	baseDir string
)

// Init sets the application data directory name. Must be called before
// any storage operations.
func Init(dataDirName string) {
	appName = dataDirName
}

// SetBaseDir overrides the platform data directory. An empty dir restores
// the default.
func SetBaseDir(dir string) {
	baseDir = dir
}

const (
	configFile    = "config.yaml"
	statesFile    = "states.db"
	savesDir      = "saves"
	screenshotDir = "screenshots"
)

// GetBaseDir returns the base directory for application data.
// The directory name is set by Init(). Example paths:
// - macOS: ~/Library/Application Support/<appName>
// - Linux: ~/.local/share/<appName>
// - Windows: %APPDATA%/<appName>
func GetBaseDir() (string, error) {
	if baseDir != "" {
		return baseDir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, appName), nil
	default: // Linux and other Unix-like systems
		if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
			return filepath.Join(dataHome, appName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, ".local", "share", appName), nil
	}
}

// EnsureDirectories creates all necessary directories for the application
func EnsureDirectories() error {
	base, err := GetBaseDir()
	if err != nil {
		return err
	}

	dirs := []string{
		base,
		filepath.Join(base, savesDir),
		filepath.Join(base, screenshotDir),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func inBaseDir(name string) (string, error) {
	base, err := GetBaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, name), nil
}

// GetConfigPath returns the full path to config.yaml
func GetConfigPath() (string, error) {
	return inBaseDir(configFile)
}

// GetStatesPath returns the full path to the save state database
func GetStatesPath() (string, error) {
	return inBaseDir(statesFile)
}

// GetSavesDir returns the directory holding battery backup files
func GetSavesDir() (string, error) {
	return inBaseDir(savesDir)
}

// GetScreenshotDir returns the full path to the screenshots directory
func GetScreenshotDir() (string, error) {
	return inBaseDir(screenshotDir)
}

// AtomicWriteFile writes data to path through a temporary file in the
// same directory and a rename, so readers never see a partial file.
func AtomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Rename temp file to target (atomic on most filesystems)
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// AtomicWriteYAML marshals data as YAML and writes it atomically.
func AtomicWriteYAML(path string, data interface{}) error {
	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return AtomicWriteFile(path, yamlData)
}
