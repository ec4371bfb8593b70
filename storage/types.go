package storage

// Config represents the application configuration stored in config.yaml
type Config struct {
	Version    int              `yaml:"version"`
	BIOS       string           `yaml:"bios,omitempty"`   // Path to the 16 KiB BIOS image
	GameDB     string           `yaml:"gameDB,omitempty"` // RetroArch .rdb used to name cartridges
	Log        LogConfig        `yaml:"log"`
	Rewind     RewindConfig     `yaml:"rewind"`
	Screenshot ScreenshotConfig `yaml:"screenshot"`
	Battery    BatteryConfig    `yaml:"battery"`
	Run        RunConfig        `yaml:"run"`
}

// LogConfig selects the log handler
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text" or "json"
}

// RewindConfig contains rewind feature settings
type RewindConfig struct {
	Enabled      bool `yaml:"enabled"`      // Default: false (off due to RAM usage)
	BufferSizeMB int  `yaml:"bufferSizeMB"` // Default: 40
	FrameStep    int  `yaml:"frameStep"`    // Default: 1 (capture every frame)
}

// ScreenshotConfig contains screenshot output settings
type ScreenshotConfig struct {
	Scale int `yaml:"scale"` // Integer upscale factor, 1-8
}

// BatteryConfig controls battery backup persistence
type BatteryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RunConfig contains frame loop settings
type RunConfig struct {
	Realtime bool `yaml:"realtime"` // Pace frames to the hardware refresh rate
}

// LogLevels lists the accepted log level names
var LogLevels = []string{"debug", "info", "warn", "error"}

// LogFormats lists the accepted log formats
var LogFormats = []string{"text", "json"}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Rewind: RewindConfig{
			Enabled:      false,
			BufferSizeMB: 40,
			FrameStep:    1,
		},
		Screenshot: ScreenshotConfig{
			Scale: 2,
		},
		Battery: BatteryConfig{
			Enabled: true,
		},
		Run: RunConfig{
			Realtime: true,
		},
	}
}
