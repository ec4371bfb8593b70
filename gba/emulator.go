package gba

import (
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"

	emucore "github.com/user-none/egba/api"
)

// ErrMachineClosed is returned by RunFrame after Close.
var ErrMachineClosed = errors.New("machine closed")

// Machine is a Game Boy Advance core driven one frame at a time. It is
// not safe for concurrent use; callers serialize access.
type Machine struct {
	cpu    cpu
	bus    *bus
	io     ioRegs
	ppu    ppu
	timers timers
	irq    interrupts
	keypad keypad
	backup *backup

	cart    *Cartridge
	biosCRC uint32
	frame   uint64
	fault   error
	closed  bool
}

// Compile-time interface checks
var (
	_ emucore.Emulator     = (*Machine)(nil)
	_ emucore.SaveStater   = (*Machine)(nil)
	_ emucore.BatterySaver = (*Machine)(nil)
	_ emucore.Diagnoser    = (*Machine)(nil)
)

// New validates the BIOS and ROM images and returns a machine at reset.
// Both images are copied.
func New(bios, rom []byte) (*Machine, error) {
	if len(bios) == 0 || len(rom) == 0 {
		return nil, ErrEmptyBIOSOrROM
	}
	if len(bios) != BIOSSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrBIOSSize, len(bios))
	}
	cart, err := LoadCartridge(rom)
	if err != nil {
		return nil, err
	}

	biosCopy := make([]byte, BIOSSize)
	copy(biosCopy, bios)

	m := &Machine{
		ppu:     newPPU(),
		backup:  newBackup(cart.Backup),
		cart:    cart,
		biosCRC: crc32.ChecksumIEEE(biosCopy),
	}
	m.timers.irq = &m.irq
	m.io.ppu = &m.ppu
	m.io.timers = &m.timers
	m.io.irq = &m.irq
	m.io.keypad = &m.keypad
	m.bus = newBus(biosCopy, cart.ROM, m.backup, &m.io)
	m.cpu.reset()
	m.keypad.keyinput = KeyinputAllReleased
	return m, nil
}

// RunFrame executes one frame (CyclesPerFrame cycles) with keys latched
// into KEYINPUT at the start. A CPU fault stops the frame and is returned
// by every later call.
func (m *Machine) RunFrame(keys emucore.KeyState) error {
	if m.closed {
		return ErrMachineClosed
	}
	if m.fault != nil {
		return m.fault
	}

	m.keypad.latch(keys, &m.irq)
	for i := 0; i < CyclesPerFrame; i++ {
		if m.io.halted && m.irq.pending() {
			m.io.halted = false
		}
		if !m.io.halted {
			if m.irq.deliverable() && m.cpu.cpsr&flagI == 0 {
				m.cpu.enterIRQ()
			} else if err := m.cpu.step(m.bus); err != nil {
				m.fault = err
				return err
			}
		}
		m.ppu.tick(m.bus, &m.irq)
		if m.timers.active() {
			m.timers.tick(1)
		}
	}
	m.frame++
	return nil
}

// Framebuffer copies the last rendered frame into dst.
func (m *Machine) Framebuffer(dst []uint32) {
	copy(dst, m.ppu.fb)
}

// Close marks the machine unusable. Framebuffer keeps returning the last
// frame.
func (m *Machine) Close() {
	m.closed = true
}

// Frame returns the number of completed frames since reset.
func (m *Machine) Frame() uint64 {
	return m.frame
}

// Fault returns the error that stopped the CPU, if any.
func (m *Machine) Fault() error {
	return m.fault
}

// Cartridge returns the loaded cartridge.
func (m *Machine) Cartridge() *Cartridge {
	return m.cart
}

// BIOSCRC32 returns the CRC32 of the BIOS image.
func (m *Machine) BIOSCRC32() uint32 {
	return m.biosCRC
}

// Registers returns r0-r15 of the current mode. r15 is the address of the
// next instruction.
func (m *Machine) Registers() [16]uint32 {
	return m.cpu.r
}

// CPSR returns the current program status register.
func (m *Machine) CPSR() uint32 {
	return m.cpu.cpsr
}

// ReadMemory copies bus bytes starting at addr into buf without side
// effects and returns the number of bytes copied.
func (m *Machine) ReadMemory(addr uint32, buf []byte) int {
	for i := range buf {
		buf[i] = m.bus.read8(addr + uint32(i))
	}
	return len(buf)
}

// HasSRAM reports whether the cartridge has backup media.
func (m *Machine) HasSRAM() bool {
	return len(m.backup.data) > 0
}

// GetSRAM returns a copy of the backup media.
func (m *Machine) GetSRAM() []byte {
	out := make([]byte, len(m.backup.data))
	copy(out, m.backup.data)
	return out
}

// SetSRAM loads backup contents. Extra bytes are ignored and a short
// image leaves the remainder erased.
func (m *Machine) SetSRAM(data []byte) {
	n := copy(m.backup.data, data)
	for i := n; i < len(m.backup.data); i++ {
		m.backup.data[i] = 0xFF
	}
	m.backup.dirty = false
}

// SRAMDirty reports whether the game has written backup media since the
// last SetSRAM or ClearSRAMDirty.
func (m *Machine) SRAMDirty() bool {
	return m.backup.dirty
}

// ClearSRAMDirty resets the dirty flag after the caller persisted SRAM.
func (m *Machine) ClearSRAMDirty() {
	m.backup.dirty = false
}

// Log writes a snapshot of the machine state to logger.
func (m *Machine) Log(logger *slog.Logger) {
	r := m.cpu.r
	regs := make([]any, 0, 16)
	for i, v := range r {
		regs = append(regs, slog.String(fmt.Sprintf("r%d", i), fmt.Sprintf("0x%08X", v)))
	}
	attrs := []any{
		slog.String("title", m.cart.Header.Title),
		slog.String("game_code", m.cart.Header.GameCode),
		slog.Uint64("frame", m.frame),
		slog.String("mode", modeName(m.cpu.mode())),
		slog.String("cpsr", fmt.Sprintf("0x%08X", m.cpu.cpsr)),
		slog.Group("regs", regs...),
		slog.Bool("halted", m.io.halted),
		slog.Group("video",
			slog.String("dispcnt", fmt.Sprintf("0x%04X", m.ppu.dispcnt)),
			slog.String("dispstat", fmt.Sprintf("0x%04X", m.ppu.status())),
			slog.Int("vcount", int(m.ppu.vcount)),
		),
		slog.Group("irq",
			slog.String("ie", fmt.Sprintf("0x%04X", m.irq.ie)),
			slog.String("if", fmt.Sprintf("0x%04X", m.irq.flags)),
			slog.Bool("ime", m.irq.ime&1 != 0),
		),
		slog.String("keyinput", fmt.Sprintf("0x%04X", m.keypad.keyinput)),
		slog.String("backup", m.backup.kind.String()),
	}
	for i, t := range m.timers.t {
		attrs = append(attrs, slog.Group(fmt.Sprintf("tm%d", i),
			slog.String("counter", fmt.Sprintf("0x%04X", t.counter)),
			slog.String("reload", fmt.Sprintf("0x%04X", t.reload)),
			slog.String("control", fmt.Sprintf("0x%04X", t.control)),
		))
	}
	if m.fault != nil {
		attrs = append(attrs, slog.String("fault", m.fault.Error()))
	}
	logger.Info("gba core state", attrs...)
}
