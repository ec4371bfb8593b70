package gba

import "encoding/binary"

// Display timing
const (
	ScreenWidth    = 240
	ScreenHeight   = 160
	hdrawCycles    = 960
	CyclesPerLine  = 1232
	TotalLines     = 228
	CyclesPerFrame = CyclesPerLine * TotalLines
	CPUClockHz     = 16 * 1024 * 1024
	FramebufferLen = ScreenWidth * ScreenHeight
)

// DISPCNT bits
const (
	dispcntFrameSelect = 1 << 4
	dispcntForcedBlank = 1 << 7
	dispcntBG2         = 1 << 10
)

// DISPSTAT bits
const (
	dispstatVBlank    = 1 << 0
	dispstatHBlank    = 1 << 1
	dispstatVCount    = 1 << 2
	dispstatVBlankIRQ = 1 << 3
	dispstatHBlankIRQ = 1 << 4
	dispstatVCountIRQ = 1 << 5
	dispstatWritable  = 0xFF38
)

const (
	mode4Page1 = 0xA000
	mode5Width = 160
	mode5Lines = 128
	whitePixel = 0xFFFFFFFF
)

// ppu renders bitmap modes one visible line at a time at the start of
// HBlank. Tile modes show the backdrop colour.
type ppu struct {
	dispcnt  uint16
	dispstat uint16 // writable bits only, flags are derived
	vcount   uint16
	dot      int
	fb       []uint32
}

func newPPU() ppu {
	return ppu{fb: make([]uint32, FramebufferLen)}
}

func (p *ppu) status() uint16 {
	s := p.dispstat
	if p.vcount >= ScreenHeight && p.vcount < TotalLines-1 {
		s |= dispstatVBlank
	}
	if p.dot >= hdrawCycles {
		s |= dispstatHBlank
	}
	if p.vcount == p.dispstat>>8 {
		s |= dispstatVCount
	}
	return s
}

func (p *ppu) tick(b *bus, irq *interrupts) {
	p.dot++
	if p.dot == hdrawCycles {
		if p.vcount < ScreenHeight {
			p.renderLine(b)
		}
		if p.dispstat&dispstatHBlankIRQ != 0 {
			irq.request(irqHBlank)
		}
		return
	}
	if p.dot < CyclesPerLine {
		return
	}
	p.dot = 0
	p.vcount++
	if p.vcount == TotalLines {
		p.vcount = 0
	}
	if p.vcount == ScreenHeight && p.dispstat&dispstatVBlankIRQ != 0 {
		irq.request(irqVBlank)
	}
	if p.vcount == p.dispstat>>8 && p.dispstat&dispstatVCountIRQ != 0 {
		irq.request(irqVCount)
	}
}

// BGR555ToARGB expands a 15-bit hardware colour to opaque ARGB32.
func BGR555ToARGB(c uint16) uint32 {
	r := uint32(c & 0x1F)
	g := uint32(c>>5) & 0x1F
	b := uint32(c>>10) & 0x1F
	r = r<<3 | r>>2
	g = g<<3 | g>>2
	b = b<<3 | b>>2
	return 0xFF000000 | r<<16 | g<<8 | b
}

func (p *ppu) renderLine(b *bus) {
	y := int(p.vcount)
	line := p.fb[y*ScreenWidth : (y+1)*ScreenWidth]

	if p.dispcnt&dispcntForcedBlank != 0 {
		fill(line, whitePixel)
		return
	}

	backdrop := BGR555ToARGB(binary.LittleEndian.Uint16(b.palette))
	if p.dispcnt&dispcntBG2 == 0 {
		fill(line, backdrop)
		return
	}

	page := 0
	if p.dispcnt&dispcntFrameSelect != 0 {
		page = mode4Page1
	}

	switch p.dispcnt & 7 {
	case 3:
		row := b.vram[y*ScreenWidth*2:]
		for x := range line {
			line[x] = BGR555ToARGB(binary.LittleEndian.Uint16(row[x*2:]))
		}
	case 4:
		row := b.vram[page+y*ScreenWidth:]
		for x := range line {
			idx := int(row[x])
			if idx == 0 {
				line[x] = backdrop
				continue
			}
			line[x] = BGR555ToARGB(binary.LittleEndian.Uint16(b.palette[idx*2:]))
		}
	case 5:
		if y >= mode5Lines {
			fill(line, backdrop)
			return
		}
		row := b.vram[page+y*mode5Width*2:]
		for x := range line {
			if x >= mode5Width {
				line[x] = backdrop
				continue
			}
			line[x] = BGR555ToARGB(binary.LittleEndian.Uint16(row[x*2:]))
		}
	default:
		fill(line, backdrop)
	}
}

func fill(line []uint32, v uint32) {
	for i := range line {
		line[i] = v
	}
}
