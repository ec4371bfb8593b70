// Package testrom assembles the small ARM programs, BIOS image and
// cartridge images used by tests and the mkrom command.
package testrom

import (
	"fmt"
	"math/bits"
)

// Reg is an ARM register number.
type Reg uint32

// Registers
const (
	R0 Reg = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	SP
	LR
	PC
)

// Cond is an instruction condition code.
type Cond uint32

// Condition codes
const (
	EQ Cond = iota
	NE
	CS
	CC
	MI
	PL
	VS
	VC
	HI
	LS
	GE
	LT
	GT
	LE
	AL
)

// Op is a data processing opcode.
type Op uint32

// Data processing opcodes
const (
	AND Op = iota
	EOR
	SUB
	RSB
	ADD
	ADC
	SBC
	RSC
	TST
	TEQ
	CMP
	CMN
	ORR
	MOV
	BIC
	MVN
)

// Shift is a barrel shifter type.
type Shift uint32

// Shift types
const (
	LSL Shift = iota
	LSR
	ASR
	ROR
)

const al = uint32(AL) << 28

// If replaces the condition of an encoded instruction.
func If(c Cond, op uint32) uint32 {
	return op&0x0FFFFFFF | uint32(c)<<28
}

// EncodeImmediate returns the 12-bit rotated immediate field for v.
func EncodeImmediate(v uint32) (uint32, bool) {
	for rot := 0; rot < 16; rot++ {
		if x := bits.RotateLeft32(v, rot*2); x <= 0xFF {
			return uint32(rot)<<8 | x, true
		}
	}
	return 0, false
}

func mustImmediate(v uint32) uint32 {
	f, ok := EncodeImmediate(v)
	if !ok {
		panic(fmt.Sprintf("testrom: 0x%08X is not an ARM immediate", v))
	}
	return f
}

func sBit(s bool) uint32 {
	if s {
		return 1 << 20
	}
	return 0
}

// DataImm encodes "op{s} rd, rn, #imm".
func DataImm(op Op, s bool, rd, rn Reg, imm uint32) uint32 {
	return al | 1<<25 | uint32(op)<<21 | sBit(s) | uint32(rn)<<16 | uint32(rd)<<12 | mustImmediate(imm)
}

// DataReg encodes "op{s} rd, rn, rm, shift #amount".
func DataReg(op Op, s bool, rd, rn, rm Reg, sh Shift, amount uint32) uint32 {
	return al | uint32(op)<<21 | sBit(s) | uint32(rn)<<16 | uint32(rd)<<12 |
		(amount&0x1F)<<7 | uint32(sh)<<5 | uint32(rm)
}

// DataRegShift encodes "op{s} rd, rn, rm, shift rs".
func DataRegShift(op Op, s bool, rd, rn, rm Reg, sh Shift, rs Reg) uint32 {
	return al | uint32(op)<<21 | sBit(s) | uint32(rn)<<16 | uint32(rd)<<12 |
		uint32(rs)<<8 | uint32(sh)<<5 | 1<<4 | uint32(rm)
}

// MovImm encodes "mov rd, #imm".
func MovImm(rd Reg, imm uint32) uint32 { return DataImm(MOV, false, rd, 0, imm) }

// MovReg encodes "mov rd, rm".
func MovReg(rd, rm Reg) uint32 { return DataReg(MOV, false, rd, 0, rm, LSL, 0) }

// AddImm encodes "add rd, rn, #imm".
func AddImm(rd, rn Reg, imm uint32) uint32 { return DataImm(ADD, false, rd, rn, imm) }

// SubImm encodes "sub rd, rn, #imm".
func SubImm(rd, rn Reg, imm uint32) uint32 { return DataImm(SUB, false, rd, rn, imm) }

// CmpImm encodes "cmp rn, #imm".
func CmpImm(rn Reg, imm uint32) uint32 { return DataImm(CMP, true, 0, rn, imm) }

// CmpReg encodes "cmp rn, rm".
func CmpReg(rn, rm Reg) uint32 { return DataReg(CMP, true, 0, rn, rm, LSL, 0) }

// MovConst loads an arbitrary constant with one MOV and as many ORRs as
// it needs.
func MovConst(rd Reg, v uint32) []uint32 {
	if _, ok := EncodeImmediate(v); ok {
		return []uint32{MovImm(rd, v)}
	}
	var out []uint32
	for v != 0 {
		shift := bits.TrailingZeros32(v) &^ 1
		chunk := v & (0xFF << uint(shift))
		v &^= chunk
		if len(out) == 0 {
			out = append(out, MovImm(rd, chunk))
		} else {
			out = append(out, DataImm(ORR, false, rd, rd, chunk))
		}
	}
	return out
}

// Single data transfer flags
const (
	memPre   = 1 << 24
	memUp    = 1 << 23
	memByte  = 1 << 22
	memWB    = 1 << 21
	memLoad  = 1 << 20
	memShift = 1 << 25
)

func transfer(flags uint32, rd, rn Reg, off int32) uint32 {
	u := uint32(memUp)
	if off < 0 {
		u = 0
		off = -off
	}
	if off > 0xFFF {
		panic(fmt.Sprintf("testrom: transfer offset %d out of range", off))
	}
	return al | 1<<26 | flags | u | uint32(rn)<<16 | uint32(rd)<<12 | uint32(off)
}

// LDR encodes "ldr rd, [rn, #off]".
func LDR(rd, rn Reg, off int32) uint32 { return transfer(memPre|memLoad, rd, rn, off) }

// STR encodes "str rd, [rn, #off]".
func STR(rd, rn Reg, off int32) uint32 { return transfer(memPre, rd, rn, off) }

// LDRB encodes "ldrb rd, [rn, #off]".
func LDRB(rd, rn Reg, off int32) uint32 { return transfer(memPre|memLoad|memByte, rd, rn, off) }

// STRB encodes "strb rd, [rn, #off]".
func STRB(rd, rn Reg, off int32) uint32 { return transfer(memPre|memByte, rd, rn, off) }

// STRPost encodes "str rd, [rn], #off".
func STRPost(rd, rn Reg, off int32) uint32 { return transfer(0, rd, rn, off) }

// LDRPre encodes "ldr rd, [rn, #off]!".
func LDRPre(rd, rn Reg, off int32) uint32 { return transfer(memPre|memWB|memLoad, rd, rn, off) }

// LDRReg encodes "ldr rd, [rn, rm, lsl #amount]".
func LDRReg(rd, rn, rm Reg, amount uint32) uint32 {
	return al | 1<<26 | memShift | memPre | memUp | memLoad | uint32(rn)<<16 | uint32(rd)<<12 |
		(amount&0x1F)<<7 | uint32(rm)
}

// Halfword transfer kinds
const (
	kindH  = 1
	kindSB = 2
	kindSH = 3
)

func halfword(flags, kind uint32, rd, rn Reg, off int32) uint32 {
	u := uint32(memUp)
	if off < 0 {
		u = 0
		off = -off
	}
	if off > 0xFF {
		panic(fmt.Sprintf("testrom: halfword offset %d out of range", off))
	}
	o := uint32(off)
	return al | flags | u | 1<<22 | uint32(rn)<<16 | uint32(rd)<<12 |
		(o&0xF0)<<4 | 1<<7 | kind<<5 | 1<<4 | o&0xF
}

// LDRH encodes "ldrh rd, [rn, #off]".
func LDRH(rd, rn Reg, off int32) uint32 { return halfword(memPre|memLoad, kindH, rd, rn, off) }

// STRH encodes "strh rd, [rn, #off]".
func STRH(rd, rn Reg, off int32) uint32 { return halfword(memPre, kindH, rd, rn, off) }

// STRHPost encodes "strh rd, [rn], #off".
func STRHPost(rd, rn Reg, off int32) uint32 { return halfword(0, kindH, rd, rn, off) }

// LDRSB encodes "ldrsb rd, [rn, #off]".
func LDRSB(rd, rn Reg, off int32) uint32 { return halfword(memPre|memLoad, kindSB, rd, rn, off) }

// LDRSH encodes "ldrsh rd, [rn, #off]".
func LDRSH(rd, rn Reg, off int32) uint32 { return halfword(memPre|memLoad, kindSH, rd, rn, off) }

func regList(regs []Reg) uint32 {
	var list uint32
	for _, r := range regs {
		list |= 1 << uint(r)
	}
	return list
}

// Push encodes "stmfd sp!, {regs}".
func Push(regs ...Reg) uint32 {
	return al | 0x08000000 | memPre | memWB | uint32(SP)<<16 | regList(regs)
}

// Pop encodes "ldmfd sp!, {regs}".
func Pop(regs ...Reg) uint32 {
	return al | 0x08000000 | memUp | memWB | memLoad | uint32(SP)<<16 | regList(regs)
}

// STMIA encodes "stmia rn{!}, {regs}".
func STMIA(rn Reg, writeback bool, regs ...Reg) uint32 {
	op := al | 0x08000000 | memUp | uint32(rn)<<16 | regList(regs)
	if writeback {
		op |= memWB
	}
	return op
}

// LDMIA encodes "ldmia rn{!}, {regs}".
func LDMIA(rn Reg, writeback bool, regs ...Reg) uint32 {
	return STMIA(rn, writeback, regs...) | memLoad
}

// MUL encodes "mul rd, rm, rs".
func MUL(rd, rm, rs Reg) uint32 {
	return al | uint32(rd)<<16 | uint32(rs)<<8 | 0x90 | uint32(rm)
}

// MLA encodes "mla rd, rm, rs, rn".
func MLA(rd, rm, rs, rn Reg) uint32 {
	return MUL(rd, rm, rs) | 1<<21 | uint32(rn)<<12
}

// BX encodes "bx rm".
func BX(rm Reg) uint32 { return al | 0x012FFF10 | uint32(rm) }

// SWI encodes "swi #comment".
func SWI(comment uint32) uint32 { return al | 0x0F000000 | comment&0xFFFFFF }

// MRS encodes "mrs rd, cpsr" or "mrs rd, spsr".
func MRS(rd Reg, spsr bool) uint32 {
	op := al | 0x010F0000 | uint32(rd)<<12
	if spsr {
		op |= 1 << 22
	}
	return op
}

// PSR field masks for MSR
const (
	FieldC = 1 << 16
	FieldF = 1 << 19
)

// MSRImm encodes "msr cpsr_<fields>, #imm".
func MSRImm(fields, imm uint32) uint32 {
	return al | 0x0320F000 | fields | mustImmediate(imm)
}

// MSRReg encodes "msr cpsr_<fields>, rm" or the spsr form.
func MSRReg(spsr bool, fields uint32, rm Reg) uint32 {
	op := al | 0x0120F000 | fields | uint32(rm)
	if spsr {
		op |= 1 << 22
	}
	return op
}

// Branch encodes a branch at address from to address to.
func Branch(link bool, from, to uint32) uint32 {
	op := al | 0x0A000000 | (to-from-8)>>2&0xFFFFFF
	if link {
		op |= 1 << 24
	}
	return op
}

type fixup struct {
	index int
	label string
	build func(from, to uint32) uint32
}

// Program assembles a sequence of instructions at a fixed base address
// with forward and backward label references.
type Program struct {
	base   uint32
	words  []uint32
	labels map[string]int
	fixups []fixup
}

// NewProgram starts a program that will be loaded at base.
func NewProgram(base uint32) *Program {
	return &Program{base: base, labels: make(map[string]int)}
}

// Emit appends encoded instructions.
func (p *Program) Emit(ops ...uint32) *Program {
	p.words = append(p.words, ops...)
	return p
}

// Label marks the next instruction.
func (p *Program) Label(name string) *Program {
	p.labels[name] = len(p.words)
	return p
}

// PC returns the address of the next instruction.
func (p *Program) PC() uint32 {
	return p.base + uint32(len(p.words))*4
}

// B emits a conditional branch to label.
func (p *Program) B(c Cond, label string) *Program {
	return p.ref(label, func(from, to uint32) uint32 { return If(c, Branch(false, from, to)) })
}

// BL emits a branch with link to label.
func (p *Program) BL(label string) *Program {
	return p.ref(label, func(from, to uint32) uint32 { return Branch(true, from, to) })
}

// Adr emits "add rd, pc, #offset" so rd holds the address of label. The
// label must follow the instruction.
func (p *Program) Adr(rd Reg, label string) *Program {
	return p.ref(label, func(from, to uint32) uint32 { return AddImm(rd, PC, to-from-8) })
}

func (p *Program) ref(label string, build func(from, to uint32) uint32) *Program {
	p.fixups = append(p.fixups, fixup{index: len(p.words), label: label, build: build})
	p.words = append(p.words, 0)
	return p
}

// Addr returns the address of a label.
func (p *Program) Addr(label string) (uint32, bool) {
	i, ok := p.labels[label]
	return p.base + uint32(i)*4, ok
}

// Words resolves labels and returns the encoded instructions.
func (p *Program) Words() ([]uint32, error) {
	out := make([]uint32, len(p.words))
	copy(out, p.words)
	for _, f := range p.fixups {
		to, ok := p.Addr(f.label)
		if !ok {
			return nil, fmt.Errorf("undefined label %q", f.label)
		}
		out[f.index] = f.build(p.base+uint32(f.index)*4, to)
	}
	return out, nil
}

// Bytes resolves labels and returns the little-endian machine code.
func (p *Program) Bytes() ([]byte, error) {
	words, err := p.Words()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(words)*4)
	for i, w := range words {
		out[i*4] = byte(w)
		out[i*4+1] = byte(w >> 8)
		out[i*4+2] = byte(w >> 16)
		out[i*4+3] = byte(w >> 24)
	}
	return out, nil
}
