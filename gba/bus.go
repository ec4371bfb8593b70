package gba

import "encoding/binary"

// Memory sizes
const (
	BIOSSize  = 0x4000
	ewramSize = 0x40000
	iwramSize = 0x8000
	ioSize    = 0x400
	palSize   = 0x400
	vramSize  = 0x18000
	oamSize   = 0x400
)

// Region base addresses (top byte)
const (
	regionBIOS    = 0x00
	regionEWRAM   = 0x02
	regionIWRAM   = 0x03
	regionIO      = 0x04
	regionPalette = 0x05
	regionVRAM    = 0x06
	regionOAM     = 0x07
	regionROM     = 0x08
	regionROMEnd  = 0x0D
	regionBackup  = 0x0E
	regionBackup2 = 0x0F
)

// bus routes CPU accesses to the memory regions.
type bus struct {
	bios    []byte
	ewram   []byte
	iwram   []byte
	palette []byte
	vram    []byte
	oam     []byte
	rom     []byte
	backup  *backup
	io      *ioRegs
}

func newBus(bios, rom []byte, bk *backup, io *ioRegs) *bus {
	return &bus{
		bios:    bios,
		ewram:   make([]byte, ewramSize),
		iwram:   make([]byte, iwramSize),
		palette: make([]byte, palSize),
		vram:    make([]byte, vramSize),
		oam:     make([]byte, oamSize),
		rom:     rom,
		backup:  bk,
		io:      io,
	}
}

func vramOffset(addr uint32) uint32 {
	off := addr & 0x1FFFF
	if off >= vramSize {
		off -= 0x8000
	}
	return off
}

// plain returns the backing slice and offset for regions without side
// effects. ok is false for I/O, backup and unmapped addresses.
func (b *bus) plain(addr uint32) (mem []byte, off uint32, ok bool) {
	switch addr >> 24 {
	case regionBIOS:
		if addr < BIOSSize {
			return b.bios, addr, true
		}
	case regionEWRAM:
		return b.ewram, addr & (ewramSize - 1), true
	case regionIWRAM:
		return b.iwram, addr & (iwramSize - 1), true
	case regionPalette:
		return b.palette, addr & (palSize - 1), true
	case regionVRAM:
		return b.vram, vramOffset(addr), true
	case regionOAM:
		return b.oam, addr & (oamSize - 1), true
	case 0x08, 0x09, 0x0A, 0x0B, 0x0C, regionROMEnd:
		off := addr & 0x01FFFFFF
		if int(off) < len(b.rom) {
			return b.rom, off, true
		}
	}
	return nil, 0, false
}

// fetch reads an instruction word. ok is false when addr is not in
// executable memory.
func (b *bus) fetch(addr uint32) (uint32, bool) {
	switch addr >> 24 {
	case regionBIOS, regionEWRAM, regionIWRAM, 0x08, 0x09, 0x0A, 0x0B, 0x0C, regionROMEnd:
	default:
		return 0, false
	}
	mem, off, ok := b.plain(addr)
	if !ok || int(off)+4 > len(mem) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(mem[off:]), true
}

func (b *bus) read8(addr uint32) uint8 {
	if mem, off, ok := b.plain(addr); ok {
		return mem[off]
	}
	switch addr >> 24 {
	case regionIO:
		if off := addr & 0xFFFFFF; off < ioSize {
			return b.io.read8(off)
		}
	case regionBackup, regionBackup2:
		return b.backup.read(addr & 0xFFFF)
	}
	return 0
}

func (b *bus) read16(addr uint32) uint16 {
	addr &^= 1
	if mem, off, ok := b.plain(addr); ok && int(off)+2 <= len(mem) {
		return binary.LittleEndian.Uint16(mem[off:])
	}
	switch addr >> 24 {
	case regionIO:
		if off := addr & 0xFFFFFF; off < ioSize {
			return b.io.read16(off)
		}
	case regionBackup, regionBackup2:
		return uint16(b.backup.read(addr&0xFFFF)) * 0x0101
	}
	return 0
}

func (b *bus) read32(addr uint32) uint32 {
	addr &^= 3
	if mem, off, ok := b.plain(addr); ok && int(off)+4 <= len(mem) {
		return binary.LittleEndian.Uint32(mem[off:])
	}
	switch addr >> 24 {
	case regionBackup, regionBackup2:
		return uint32(b.backup.read(addr&0xFFFF)) * 0x01010101
	}
	return uint32(b.read16(addr)) | uint32(b.read16(addr+2))<<16
}

// writable reports whether a plain region accepts CPU writes.
func writable(addr uint32) bool {
	switch addr >> 24 {
	case regionEWRAM, regionIWRAM, regionPalette, regionVRAM, regionOAM:
		return true
	}
	return false
}

func (b *bus) write8(addr uint32, v uint8) {
	switch addr >> 24 {
	case regionIO:
		if off := addr & 0xFFFFFF; off < ioSize {
			b.io.write8(off, v)
		}
		return
	case regionBackup, regionBackup2:
		b.backup.write(addr&0xFFFF, v)
		return
	case regionOAM:
		return
	case regionPalette, regionVRAM:
		// 8-bit writes land on both bytes of the halfword.
		b.write16(addr&^1, uint16(v)*0x0101)
		return
	}
	if !writable(addr) {
		return
	}
	if mem, off, ok := b.plain(addr); ok {
		mem[off] = v
	}
}

func (b *bus) write16(addr uint32, v uint16) {
	addr &^= 1
	switch addr >> 24 {
	case regionIO:
		if off := addr & 0xFFFFFF; off < ioSize {
			b.io.write16(off, v, 0xFFFF)
		}
		return
	case regionBackup, regionBackup2:
		b.backup.write(addr&0xFFFF, uint8(v))
		return
	}
	if !writable(addr) {
		return
	}
	if mem, off, ok := b.plain(addr); ok && int(off)+2 <= len(mem) {
		binary.LittleEndian.PutUint16(mem[off:], v)
	}
}

func (b *bus) write32(addr uint32, v uint32) {
	addr &^= 3
	switch addr >> 24 {
	case regionIO, regionBackup, regionBackup2:
		b.write16(addr, uint16(v))
		b.write16(addr+2, uint16(v>>16))
		return
	}
	if !writable(addr) {
		return
	}
	if mem, off, ok := b.plain(addr); ok && int(off)+4 <= len(mem) {
		binary.LittleEndian.PutUint32(mem[off:], v)
	}
}
