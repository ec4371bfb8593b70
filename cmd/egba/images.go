package main

import (
	"fmt"
	"hash/crc32"
	"path/filepath"
	"strings"

	"github.com/user-none/egba/gba"
	"github.com/user-none/egba/internal/testrom"
	"github.com/user-none/egba/romloader"
)

// loadBIOS reads the BIOS from path, falling back to the configured one.
// With builtin set and nothing configured the synthetic test BIOS is used.
func loadBIOS(app *App, path string, builtin bool) (*romloader.Image, error) {
	if path == "" {
		path = app.Config.BIOS
	}
	if path == "" {
		if builtin {
			return builtinImage("test_bios.bin", testrom.BIOS()), nil
		}
		return nil, fmt.Errorf("no BIOS given: pass --bios or set bios in config.yaml")
	}
	img, err := romloader.LoadBIOS(path, gba.BIOSSize)
	if err != nil {
		return nil, fmt.Errorf("bios: %w", err)
	}
	return img, nil
}

func loadROM(path string) (*romloader.Image, error) {
	img, err := romloader.Load(path, gba.Factory{}.SystemInfo().Extensions)
	if err != nil {
		return nil, fmt.Errorf("rom: %w", err)
	}
	return img, nil
}

func builtinImage(name string, data []byte) *romloader.Image {
	return &romloader.Image{Name: name, Data: data, CRC32: crc32.ChecksumIEEE(data)}
}

// saveName derives the battery file name from the ROM name.
func saveName(img *romloader.Image) string {
	return strings.TrimSuffix(img.Name, filepath.Ext(img.Name))
}
