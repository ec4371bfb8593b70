package gba

import "encoding/binary"

// I/O register offsets from 0x04000000
const (
	regDISPCNT  = 0x000
	regDISPSTAT = 0x004
	regVCOUNT   = 0x006
	regBG2CNT   = 0x00C
	regTM0CNTL  = 0x100
	regTM0CNTH  = 0x102
	regTM3CNTH  = 0x10E
	regKEYINPUT = 0x130
	regKEYCNT   = 0x132
	regIE       = 0x200
	regIF       = 0x202
	regWAITCNT  = 0x204
	regIME      = 0x208
	regPOSTFLG  = 0x300 // HALTCNT is the high byte
)

// ioRegs dispatches register accesses to the devices that own them.
// Registers without side effects live in regs.
type ioRegs struct {
	regs   [ioSize]byte
	ppu    *ppu
	timers *timers
	irq    *interrupts
	keypad *keypad
	halted bool
}

func merge(old, v, mask uint16) uint16 {
	return old&^mask | v&mask
}

func (io *ioRegs) read16(off uint32) uint16 {
	off &^= 1
	switch {
	case off == regDISPCNT:
		return io.ppu.dispcnt
	case off == regDISPSTAT:
		return io.ppu.status()
	case off == regVCOUNT:
		return io.ppu.vcount
	case off >= regTM0CNTL && off <= regTM3CNTH:
		t := &io.timers.t[(off-regTM0CNTL)/4]
		if off&2 == 0 {
			return t.counter
		}
		return t.control
	case off == regKEYINPUT:
		return io.keypad.keyinput
	case off == regKEYCNT:
		return io.keypad.keycnt
	case off == regIE:
		return io.irq.ie
	case off == regIF:
		return io.irq.flags
	case off == regIME:
		return io.irq.ime
	case off == regPOSTFLG:
		// HALTCNT is write-only
		return uint16(io.regs[regPOSTFLG])
	}
	return binary.LittleEndian.Uint16(io.regs[off:])
}

func (io *ioRegs) read8(off uint32) uint8 {
	return uint8(io.read16(off) >> ((off & 1) * 8))
}

// write16 stores the bits of v selected by mask.
func (io *ioRegs) write16(off uint32, v, mask uint16) {
	off &^= 1
	switch {
	case off == regDISPCNT:
		io.ppu.dispcnt = merge(io.ppu.dispcnt, v, mask)
	case off == regDISPSTAT:
		io.ppu.dispstat = merge(io.ppu.dispstat, v, mask) & dispstatWritable
	case off == regVCOUNT, off == regKEYINPUT:
		// read-only
	case off >= regTM0CNTL && off <= regTM3CNTH:
		i := int((off - regTM0CNTL) / 4)
		t := &io.timers.t[i]
		if off&2 == 0 {
			t.reload = merge(t.reload, v, mask)
		} else {
			io.timers.setControl(i, merge(t.control, v, mask))
		}
	case off == regKEYCNT:
		io.keypad.keycnt = merge(io.keypad.keycnt, v, mask) & 0xC3FF
	case off == regIE:
		io.irq.ie = merge(io.irq.ie, v, mask) & irqMask
	case off == regIF:
		io.irq.flags &^= v & mask
	case off == regIME:
		io.irq.ime = merge(io.irq.ime, v, mask) & 1
	case off == regPOSTFLG:
		if mask&0x00FF != 0 {
			io.regs[regPOSTFLG] = uint8(v) & 1
		}
		if mask&0xFF00 != 0 {
			// Stop mode (bit 7) is treated as halt.
			io.halted = true
		}
	default:
		old := binary.LittleEndian.Uint16(io.regs[off:])
		binary.LittleEndian.PutUint16(io.regs[off:], merge(old, v, mask))
	}
}

func (io *ioRegs) write8(off uint32, v uint8) {
	shift := (off & 1) * 8
	io.write16(off, uint16(v)<<shift, 0xFF<<shift)
}
