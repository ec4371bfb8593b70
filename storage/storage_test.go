package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func useTempBase(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	SetBaseDir(dir)
	t.Cleanup(func() { SetBaseDir("") })
	return dir
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Version != 1 {
		t.Errorf("expected version 1, got %d", config.Version)
	}
	if config.Log.Level != "info" || config.Log.Format != "text" {
		t.Errorf("expected info/text logging, got %s/%s", config.Log.Level, config.Log.Format)
	}
	if config.Rewind.BufferSizeMB != 40 {
		t.Errorf("expected rewind buffer 40, got %d", config.Rewind.BufferSizeMB)
	}
	if !config.Battery.Enabled {
		t.Error("expected battery saves enabled by default")
	}
	if errs := ValidateConfig(config); len(errs) != 0 {
		t.Errorf("default config invalid: %v", errs)
	}
}

func TestGetBaseDirXDG(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("XDG_DATA_HOME only applies to Unix-like systems")
	}
	SetBaseDir("")
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	Init("egba-test")
	t.Cleanup(func() { Init("egba") })

	dir, err := GetBaseDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/tmp/xdg", "egba-test") {
		t.Errorf("unexpected base dir %q", dir)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := useTempBase(t)
	if err := EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{savesDir, screenshotDir} {
		if fi, err := os.Stat(filepath.Join(base, sub)); err != nil || !fi.IsDir() {
			t.Errorf("%s not created: %v", sub, err)
		}
	}
}

func TestAtomicWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "file.bin")
	if err := AtomicWriteFile(path, []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWriteFile(path, []byte("two")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Errorf("content %q", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	useTempBase(t)
	config, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if config.Screenshot.Scale != 2 {
		t.Errorf("expected defaults, got scale %d", config.Screenshot.Scale)
	}
}

func TestLoadConfigPartial(t *testing.T) {
	base := useTempBase(t)
	content := "log:\n  level: debug\nbattery:\n  enabled: false\nrewind:\n  enabled: true\n"
	if err := os.WriteFile(filepath.Join(base, configFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if config.Log.Level != "debug" {
		t.Errorf("log.level = %q", config.Log.Level)
	}
	if config.Log.Format != "text" {
		t.Errorf("missing log.format not defaulted: %q", config.Log.Format)
	}
	if config.Battery.Enabled {
		t.Error("explicit battery.enabled: false was overwritten")
	}
	if !config.Rewind.Enabled || config.Rewind.FrameStep != 1 || config.Rewind.BufferSizeMB != 40 {
		t.Errorf("rewind = %+v", config.Rewind)
	}
	if !config.Run.Realtime {
		t.Error("missing run.realtime not defaulted")
	}
}

func TestLoadConfigCorrupt(t *testing.T) {
	base := useTempBase(t)
	if err := os.WriteFile(filepath.Join(base, configFile), []byte("log: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	useTempBase(t)
	config := DefaultConfig()
	config.BIOS = "/roms/gba_bios.bin"
	config.Screenshot.Scale = 4
	if err := SaveConfig(config); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.BIOS != config.BIOS || loaded.Screenshot.Scale != 4 {
		t.Errorf("loaded %+v", loaded)
	}

	if err := DeleteConfig(); err != nil {
		t.Fatal(err)
	}
	if err := DeleteConfig(); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestCreateConfigIfMissing(t *testing.T) {
	base := useTempBase(t)
	if err := CreateConfigIfMissing(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(base, configFile)); err != nil {
		t.Fatalf("config not created: %v", err)
	}
}

func TestValidateAndFixConfig(t *testing.T) {
	config := DefaultConfig()
	config.Version = 3
	config.Log.Level = "loud"
	config.Rewind.FrameStep = 0
	config.Screenshot.Scale = 20

	if errs := ValidateConfig(config); len(errs) != 4 {
		t.Errorf("expected 4 errors, got %d: %v", len(errs), errs)
	}
	if n := FixConfig(config); n != 4 {
		t.Errorf("fixed %d fields, want 4", n)
	}
	if errs := ValidateConfig(config); len(errs) != 0 {
		t.Errorf("config still invalid: %v", errs)
	}
}
