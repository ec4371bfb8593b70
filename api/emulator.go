package emucore

import "log/slog"

// Emulator is the interface a core must implement to be driven through a
// session. A core owns all emulation state; callers only exchange key
// state for pixels.
type Emulator interface {
	// RunFrame executes exactly one frame of emulation with keys latched
	// as the input for that frame. A returned error is fatal: the core
	// must not be stepped again.
	RunFrame(keys KeyState) error

	// Framebuffer copies the most recently rendered frame into dst as
	// ARGB32 pixels. dst must hold at least ScreenWidth*ScreenHeight
	// entries.
	Framebuffer(dst []uint32)

	// Close releases any resources held by the emulator.
	Close()
}

// SaveStater enables save states, rewind, and auto-save.
type SaveStater interface {
	// Serialize captures the complete emulator state.
	Serialize() ([]byte, error)

	// Deserialize restores emulator state from previously serialized data.
	Deserialize(data []byte) error
}

// BatterySaver enables SRAM persistence for battery-backed saves.
type BatterySaver interface {
	// HasSRAM reports whether the loaded ROM uses battery-backed save.
	HasSRAM() bool

	// GetSRAM returns a copy of the current SRAM contents.
	GetSRAM() []byte

	// SetSRAM loads SRAM contents into the emulator.
	SetSRAM(data []byte)
}

// Diagnoser is implemented by cores that can dump their internal state
// for debugging. Log must not change emulation state.
type Diagnoser interface {
	Log(logger *slog.Logger)
}
