package storage

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// detectPresentKeys decodes YAML bytes to determine which config keys are
// explicitly present in the file. Returns a flat set of dotted-path keys
// (e.g., "log.level", "rewind.frameStep"). Only fields whose zero value
// is meaningful are tracked.
func detectPresentKeys(yamlBytes []byte) map[string]bool {
	present := make(map[string]bool)

	var raw map[string]interface{}
	if err := yaml.Unmarshal(yamlBytes, &raw); err != nil {
		return present
	}

	for _, k := range []string{"version"} {
		if _, ok := raw[k]; ok {
			present[k] = true
		}
	}

	nested := map[string][]string{
		"log":        {"level", "format"},
		"rewind":     {"bufferSizeMB", "frameStep"},
		"screenshot": {"scale"},
		"battery":    {"enabled"},
		"run":        {"realtime"},
	}
	for section, keys := range nested {
		m, ok := raw[section].(map[string]interface{})
		if !ok {
			continue
		}
		for _, k := range keys {
			if _, ok := m[k]; ok {
				present[section+"."+k] = true
			}
		}
	}

	return present
}

// ApplyMissingDefaults sets default values for config fields that are absent
// from the YAML file. Intentional zero values (e.g., battery.enabled: false)
// are preserved.
func ApplyMissingDefaults(config *Config, presentKeys map[string]bool) {
	defaults := DefaultConfig()

	if !presentKeys["version"] {
		config.Version = defaults.Version
	}
	if !presentKeys["log.level"] {
		config.Log.Level = defaults.Log.Level
	}
	if !presentKeys["log.format"] {
		config.Log.Format = defaults.Log.Format
	}
	if !presentKeys["rewind.bufferSizeMB"] {
		config.Rewind.BufferSizeMB = defaults.Rewind.BufferSizeMB
	}
	if !presentKeys["rewind.frameStep"] {
		config.Rewind.FrameStep = defaults.Rewind.FrameStep
	}
	if !presentKeys["screenshot.scale"] {
		config.Screenshot.Scale = defaults.Screenshot.Scale
	}
	if !presentKeys["battery.enabled"] {
		config.Battery.Enabled = defaults.Battery.Enabled
	}
	if !presentKeys["run.realtime"] {
		config.Run.Realtime = defaults.Run.Realtime
	}
}

// ValidateConfig checks all config fields against valid ranges and returns
// human-readable error descriptions. An empty slice means the config is valid.
func ValidateConfig(config *Config) []string {
	var errors []string

	if config.Version != 1 {
		errors = append(errors, fmt.Sprintf("version: %d (valid: 1)", config.Version))
	}
	if !slices.Contains(LogLevels, config.Log.Level) {
		errors = append(errors, fmt.Sprintf("log.level: %q (valid: %v)", config.Log.Level, LogLevels))
	}
	if !slices.Contains(LogFormats, config.Log.Format) {
		errors = append(errors, fmt.Sprintf("log.format: %q (valid: %v)", config.Log.Format, LogFormats))
	}
	if config.Rewind.BufferSizeMB < 1 || config.Rewind.BufferSizeMB > 2048 {
		errors = append(errors, fmt.Sprintf("rewind.bufferSizeMB: %d (valid: 1-2048)", config.Rewind.BufferSizeMB))
	}
	if config.Rewind.FrameStep < 1 || config.Rewind.FrameStep > 60 {
		errors = append(errors, fmt.Sprintf("rewind.frameStep: %d (valid: 1-60)", config.Rewind.FrameStep))
	}
	if config.Screenshot.Scale < 1 || config.Screenshot.Scale > 8 {
		errors = append(errors, fmt.Sprintf("screenshot.scale: %d (valid: 1-8)", config.Screenshot.Scale))
	}

	return errors
}

// FixConfig replaces invalid fields with their defaults and returns the
// number of fields changed.
func FixConfig(config *Config) int {
	defaults := DefaultConfig()
	fixed := 0

	if config.Version != 1 {
		config.Version = defaults.Version
		fixed++
	}
	if !slices.Contains(LogLevels, config.Log.Level) {
		config.Log.Level = defaults.Log.Level
		fixed++
	}
	if !slices.Contains(LogFormats, config.Log.Format) {
		config.Log.Format = defaults.Log.Format
		fixed++
	}
	if config.Rewind.BufferSizeMB < 1 || config.Rewind.BufferSizeMB > 2048 {
		config.Rewind.BufferSizeMB = defaults.Rewind.BufferSizeMB
		fixed++
	}
	if config.Rewind.FrameStep < 1 || config.Rewind.FrameStep > 60 {
		config.Rewind.FrameStep = defaults.Rewind.FrameStep
		fixed++
	}
	if config.Screenshot.Scale < 1 || config.Screenshot.Scale > 8 {
		config.Screenshot.Scale = defaults.Screenshot.Scale
		fixed++
	}

	return fixed
}
