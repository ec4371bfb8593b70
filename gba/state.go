package gba

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Save state format constants
const (
	stateVersion    = 1
	stateMagic      = "eGBAStat"
	stateHeaderSize = 26 // magic(8) + version(2) + romCRC(4) + biosCRC(4) + dataCRC(4) + dataLen(4)
)

// Save state errors
var (
	ErrStateTruncated   = errors.New("save state truncated")
	ErrStateMagic       = errors.New("invalid save state magic")
	ErrStateVersion     = errors.New("unsupported save state version")
	ErrStateROMMismatch = errors.New("save state is for a different rom or bios")
	ErrStateChecksum    = errors.New("save state data is corrupted")
	ErrStateInvalid     = errors.New("save state holds an impossible machine state")
)

const (
	cpuStateSize    = 16*4 + 4 + bankCount*4*3
	ppuStateSize    = 2 + 2 + 2 + 4
	timerStateSize  = 4 * (2 + 2 + 2 + 4)
	irqStateSize    = 2 + 2 + 2
	keypadStateSize = 2 + 2
)

// payloadSize is fixed for a given cartridge because the backup size is.
func (m *Machine) payloadSize() int {
	return 8 + // frame
		cpuStateSize +
		1 + // halted
		ppuStateSize +
		timerStateSize +
		irqStateSize +
		keypadStateSize +
		ioSize +
		ewramSize +
		iwramSize +
		palSize +
		vramSize +
		oamSize +
		len(m.backup.data)
}

// SerializeSize returns the size of a save state for this machine.
func (m *Machine) SerializeSize() int {
	return stateHeaderSize + m.payloadSize()
}

type stateWriter struct {
	buf []byte
	off int
}

func (w *stateWriter) u8(v uint8) {
	w.buf[w.off] = v
	w.off++
}

func (w *stateWriter) u16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[w.off:], v)
	w.off += 2
}

func (w *stateWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *stateWriter) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:], v)
	w.off += 8
}

func (w *stateWriter) bytes(b []byte) {
	w.off += copy(w.buf[w.off:], b)
}

type stateReader struct {
	buf []byte
	off int
}

func (r *stateReader) u8() uint8 {
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *stateReader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *stateReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *stateReader) u64() uint64 {
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

func (r *stateReader) bytes(dst []byte) {
	r.off += copy(dst, r.buf[r.off:r.off+len(dst)])
}

// Serialize captures the complete machine state.
func (m *Machine) Serialize() ([]byte, error) {
	data := make([]byte, m.SerializeSize())
	copy(data[0:8], stateMagic)
	binary.LittleEndian.PutUint16(data[8:10], stateVersion)
	binary.LittleEndian.PutUint32(data[10:14], m.cart.CRC32)
	binary.LittleEndian.PutUint32(data[14:18], m.biosCRC)

	w := &stateWriter{buf: data, off: stateHeaderSize}
	w.u64(m.frame)

	for _, v := range m.cpu.r {
		w.u32(v)
	}
	w.u32(m.cpu.cpsr)
	for i := 0; i < bankCount; i++ {
		w.u32(m.cpu.bankedSP[i])
		w.u32(m.cpu.bankedLR[i])
		w.u32(m.cpu.spsr[i])
	}
	if m.io.halted {
		w.u8(1)
	} else {
		w.u8(0)
	}

	w.u16(m.ppu.dispcnt)
	w.u16(m.ppu.dispstat)
	w.u16(m.ppu.vcount)
	w.u32(uint32(m.ppu.dot))

	for _, t := range m.timers.t {
		w.u16(t.reload)
		w.u16(t.counter)
		w.u16(t.control)
		w.u32(uint32(t.ticks))
	}

	w.u16(m.irq.ie)
	w.u16(m.irq.flags)
	w.u16(m.irq.ime)
	w.u16(m.keypad.keyinput)
	w.u16(m.keypad.keycnt)

	w.bytes(m.io.regs[:])
	w.bytes(m.bus.ewram)
	w.bytes(m.bus.iwram)
	w.bytes(m.bus.palette)
	w.bytes(m.bus.vram)
	w.bytes(m.bus.oam)
	w.bytes(m.backup.data)

	payload := data[stateHeaderSize:]
	binary.LittleEndian.PutUint32(data[18:22], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(data[22:26], uint32(len(payload)))
	return data, nil
}

// VerifyState checks a save state against this machine without loading
// it.
func (m *Machine) VerifyState(data []byte) error {
	if len(data) < stateHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrStateTruncated, len(data))
	}
	if string(data[0:8]) != stateMagic {
		return ErrStateMagic
	}
	if v := binary.LittleEndian.Uint16(data[8:10]); v != stateVersion {
		return fmt.Errorf("%w: %d", ErrStateVersion, v)
	}
	if binary.LittleEndian.Uint32(data[10:14]) != m.cart.CRC32 ||
		binary.LittleEndian.Uint32(data[14:18]) != m.biosCRC {
		return ErrStateROMMismatch
	}
	want := m.payloadSize()
	if n := binary.LittleEndian.Uint32(data[22:26]); int(n) != want || len(data)-stateHeaderSize != want {
		return fmt.Errorf("%w: payload %d bytes, header says %d, expected %d",
			ErrStateTruncated, len(data)-stateHeaderSize, n, want)
	}
	if binary.LittleEndian.Uint32(data[18:22]) != crc32.ChecksumIEEE(data[stateHeaderSize:]) {
		return ErrStateChecksum
	}
	return nil
}

// Deserialize restores a state produced by Serialize on a machine with
// the same ROM and BIOS. Nothing is modified unless the whole state is
// valid. A successful load clears a previous CPU fault.
func (m *Machine) Deserialize(data []byte) error {
	if err := m.VerifyState(data); err != nil {
		return err
	}

	r := &stateReader{buf: data, off: stateHeaderSize}
	frame := r.u64()

	var c cpu
	for i := range c.r {
		c.r[i] = r.u32()
	}
	c.cpsr = r.u32()
	for i := 0; i < bankCount; i++ {
		c.bankedSP[i] = r.u32()
		c.bankedLR[i] = r.u32()
		c.spsr[i] = r.u32()
	}
	halted := r.u8() != 0

	p := ppu{fb: m.ppu.fb}
	p.dispcnt = r.u16()
	p.dispstat = r.u16()
	p.vcount = r.u16()
	p.dot = int(r.u32())

	var ts [4]timer
	for i := range ts {
		ts[i].reload = r.u16()
		ts[i].counter = r.u16()
		ts[i].control = r.u16()
		ts[i].ticks = int(r.u32())
	}

	irq := interrupts{ie: r.u16(), flags: r.u16(), ime: r.u16()}
	kp := keypad{keyinput: r.u16(), keycnt: r.u16()}

	if err := validateState(&c, &p, ts[:]); err != nil {
		return err
	}

	m.frame = frame
	m.cpu = c
	m.io.halted = halted
	m.ppu = p
	m.timers.t = ts
	m.irq = irq
	m.keypad = kp

	r.bytes(m.io.regs[:])
	r.bytes(m.bus.ewram)
	r.bytes(m.bus.iwram)
	r.bytes(m.bus.palette)
	r.bytes(m.bus.vram)
	r.bytes(m.bus.oam)
	r.bytes(m.backup.data)
	m.backup.dirty = true
	m.fault = nil
	return nil
}

// validateState rejects values the running machine can never produce.
func validateState(c *cpu, p *ppu, ts []timer) error {
	if c.cpsr&flagT != 0 || bankOf(c.cpsr&modeMask) < 0 {
		return fmt.Errorf("%w: cpsr 0x%08X", ErrStateInvalid, c.cpsr)
	}
	if p.vcount >= TotalLines || p.dot < 0 || p.dot >= CyclesPerLine {
		return fmt.Errorf("%w: video position %d/%d", ErrStateInvalid, p.vcount, p.dot)
	}
	for i, t := range ts {
		if t.ticks < 0 || t.ticks >= timerPrescale[len(timerPrescale)-1] {
			return fmt.Errorf("%w: timer %d prescaler count %d", ErrStateInvalid, i, t.ticks)
		}
	}
	return nil
}
