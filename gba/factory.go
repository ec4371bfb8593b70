package gba

import emucore "github.com/user-none/egba/api"

// Core identification
const (
	CoreName    = "egba"
	CoreVersion = "1.0.0"
)

// FPS is the hardware refresh rate, about 59.7275 Hz.
const FPS = float64(CPUClockHz) / float64(CyclesPerFrame)

// Factory creates GBA machines.
type Factory struct{}

var _ emucore.CoreFactory = Factory{}

// SystemInfo returns the GBA system description.
func (Factory) SystemInfo() emucore.SystemInfo {
	return emucore.SystemInfo{
		Name:         "gba",
		ConsoleName:  "Game Boy Advance",
		Extensions:   []string{".gba", ".agb", ".bin"},
		BIOSSize:     BIOSSize,
		ScreenWidth:  ScreenWidth,
		ScreenHeight: ScreenHeight,
		FPS:          FPS,
		CyclesPerSec: CPUClockHz,
		Buttons:      emucore.Buttons,
		DataDirName:  "egba",
		CoreName:     CoreName,
		CoreVersion:  CoreVersion,
	}
}

// CreateEmulator returns a machine at reset for the given images.
func (Factory) CreateEmulator(bios, rom []byte) (emucore.Emulator, error) {
	m, err := New(bios, rom)
	if err != nil {
		return nil, err
	}
	return m, nil
}
