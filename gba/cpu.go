package gba

import (
	"fmt"
	"math/bits"
)

// Processor modes
const (
	modeUSR = 0x10
	modeFIQ = 0x11
	modeIRQ = 0x12
	modeSVC = 0x13
	modeABT = 0x17
	modeUND = 0x1B
	modeSYS = 0x1F
)

// CPSR bits
const (
	flagN     = 1 << 31
	flagZ     = 1 << 30
	flagC     = 1 << 29
	flagV     = 1 << 28
	flagI     = 1 << 7
	flagF     = 1 << 6
	flagT     = 1 << 5
	modeMask  = 0x1F
	resetCPSR = flagI | flagF | modeSVC
)

// Exception vectors
const (
	vectorSWI = 0x08
	vectorIRQ = 0x18
)

// Register banks
const (
	bankUser = iota
	bankIRQ
	bankSVC
	bankCount
)

// Fault is an unrecoverable core error. The machine must not be stepped
// after a fault.
type Fault struct {
	PC     uint32
	Opcode uint32
	Reason string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("cpu fault at 0x%08X (opcode 0x%08X): %s", f.PC, f.Opcode, f.Reason)
}

// memory is what the CPU needs from the bus.
type memory interface {
	fetch(addr uint32) (uint32, bool)
	read8(addr uint32) uint8
	read16(addr uint32) uint16
	read32(addr uint32) uint32
	write8(addr uint32, v uint8)
	write16(addr uint32, v uint16)
	write32(addr uint32, v uint32)
}

// cpu is an ARM7TDMI in ARM state. r[15] holds the address of the next
// instruction to fetch; operand reads of r15 see that value plus 4, which
// is the pipelined PC+8 of the executing instruction.
type cpu struct {
	r        [16]uint32
	cpsr     uint32
	bankedSP [bankCount]uint32
	bankedLR [bankCount]uint32
	spsr     [bankCount]uint32
}

func (c *cpu) reset() {
	*c = cpu{}
	c.cpsr = resetCPSR
}

func bankOf(mode uint32) int {
	switch mode {
	case modeUSR, modeSYS:
		return bankUser
	case modeIRQ:
		return bankIRQ
	case modeSVC:
		return bankSVC
	}
	return -1
}

func modeName(mode uint32) string {
	switch mode {
	case modeUSR:
		return "USR"
	case modeFIQ:
		return "FIQ"
	case modeIRQ:
		return "IRQ"
	case modeSVC:
		return "SVC"
	case modeABT:
		return "ABT"
	case modeUND:
		return "UND"
	case modeSYS:
		return "SYS"
	}
	return fmt.Sprintf("0x%02X", mode)
}

func (c *cpu) mode() uint32 {
	return c.cpsr & modeMask
}

// setCPSR writes the status register, swapping banked r13/r14 when the
// mode changes.
func (c *cpu) setCPSR(v uint32) error {
	if v&flagT != 0 {
		return fmt.Errorf("thumb state is not supported")
	}
	oldBank := bankOf(c.mode())
	newBank := bankOf(v & modeMask)
	if newBank < 0 {
		return fmt.Errorf("processor mode %s is not supported", modeName(v&modeMask))
	}
	if oldBank != newBank {
		c.bankedSP[oldBank] = c.r[13]
		c.bankedLR[oldBank] = c.r[14]
		c.r[13] = c.bankedSP[newBank]
		c.r[14] = c.bankedLR[newBank]
	}
	c.cpsr = v
	return nil
}

// enterException switches to mode, saves the old CPSR and jumps to vector.
func (c *cpu) enterException(mode, vector, lr uint32) {
	old := c.cpsr
	// Both target modes are banked, setCPSR cannot fail here.
	_ = c.setCPSR(old&^(modeMask|flagT) | mode | flagI)
	bank := bankOf(mode)
	c.spsr[bank] = old
	c.r[14] = lr
	c.r[15] = vector
}

// enterIRQ takes the IRQ exception. The return address is set so that
// SUBS PC, LR, #4 resumes at the instruction that was about to run.
func (c *cpu) enterIRQ() {
	c.enterException(modeIRQ, vectorIRQ, c.r[15]+4)
}

func (c *cpu) reg(n uint32) uint32 {
	if n == 15 {
		return c.r[15] + 4
	}
	return c.r[n]
}

func (c *cpu) setReg(n, v uint32) {
	if n == 15 {
		v &^= 3
	}
	c.r[n] = v
}

func (c *cpu) flag(f uint32) bool {
	return c.cpsr&f != 0
}

func (c *cpu) setFlag(f uint32, on bool) {
	if on {
		c.cpsr |= f
	} else {
		c.cpsr &^= f
	}
}

func (c *cpu) setNZ(v uint32) {
	c.setFlag(flagN, v&0x80000000 != 0)
	c.setFlag(flagZ, v == 0)
}

func (c *cpu) condition(cond uint32) bool {
	n, z, cf, v := c.flag(flagN), c.flag(flagZ), c.flag(flagC), c.flag(flagV)
	switch cond {
	case 0x0:
		return z
	case 0x1:
		return !z
	case 0x2:
		return cf
	case 0x3:
		return !cf
	case 0x4:
		return n
	case 0x5:
		return !n
	case 0x6:
		return v
	case 0x7:
		return !v
	case 0x8:
		return cf && !z
	case 0x9:
		return !cf || z
	case 0xA:
		return n == v
	case 0xB:
		return n != v
	case 0xC:
		return !z && n == v
	case 0xD:
		return z || n != v
	case 0xE:
		return true
	}
	// 0xF (NV) never executes on ARMv4.
	return false
}

// step executes one instruction.
func (c *cpu) step(m memory) error {
	pc := c.r[15]
	op, ok := m.fetch(pc)
	if !ok {
		return &Fault{PC: pc, Reason: "instruction fetch from unmapped address"}
	}
	c.r[15] = pc + 4
	if !c.condition(op >> 28) {
		return nil
	}
	if err := c.execute(m, op); err != nil {
		return &Fault{PC: pc, Opcode: op, Reason: err.Error()}
	}
	return nil
}

func (c *cpu) execute(m memory, op uint32) error {
	switch {
	case op&0x0FFFFFF0 == 0x012FFF10:
		return c.branchExchange(op)
	case op&0x0E000090 == 0x00000090:
		if op&0x60 != 0 {
			return c.halfwordTransfer(m, op)
		}
		if op&0x0FC000F0 == 0x00000090 {
			c.multiply(op)
			return nil
		}
		return fmt.Errorf("swap and long multiply are not supported")
	case op&0x0FBF0FFF == 0x010F0000:
		c.mrs(op)
		return nil
	case op&0x0FB0FFF0 == 0x0120F000, op&0x0FB0F000 == 0x0320F000:
		return c.msr(op)
	case op&0x0C000000 == 0x00000000:
		return c.dataProcessing(op)
	case op&0x0E000010 == 0x06000010:
		return fmt.Errorf("undefined instruction")
	case op&0x0C000000 == 0x04000000:
		c.singleTransfer(m, op)
		return nil
	case op&0x0E000000 == 0x08000000:
		return c.blockTransfer(m, op)
	case op&0x0E000000 == 0x0A000000:
		c.branch(op)
		return nil
	case op&0x0F000000 == 0x0F000000:
		c.enterException(modeSVC, vectorSWI, c.r[15])
		return nil
	}
	return fmt.Errorf("coprocessor instructions are not supported")
}

func (c *cpu) branch(op uint32) {
	offset := int32(op<<8) >> 6
	if op&(1<<24) != 0 {
		c.r[14] = c.r[15]
	}
	c.setReg(15, c.reg(15)+uint32(offset))
}

func (c *cpu) branchExchange(op uint32) error {
	target := c.reg(op & 0xF)
	if target&1 != 0 {
		return fmt.Errorf("branch to thumb state at 0x%08X is not supported", target&^1)
	}
	c.setReg(15, target)
	return nil
}

func (c *cpu) multiply(op uint32) {
	rd := op >> 16 & 0xF
	rn := op >> 12 & 0xF
	rs := op >> 8 & 0xF
	rm := op & 0xF
	result := c.reg(rm) * c.reg(rs)
	if op&(1<<21) != 0 {
		result += c.reg(rn)
	}
	c.setReg(rd, result)
	if op&(1<<20) != 0 {
		c.setNZ(result)
	}
}

func (c *cpu) mrs(op uint32) {
	rd := op >> 12 & 0xF
	v := c.cpsr
	if op&(1<<22) != 0 {
		if bank := bankOf(c.mode()); bank != bankUser {
			v = c.spsr[bank]
		}
	}
	c.setReg(rd, v)
}

func (c *cpu) msr(op uint32) error {
	var v uint32
	if op&(1<<25) != 0 {
		v = bits.RotateLeft32(op&0xFF, -int(op>>8&0xF)*2)
	} else {
		v = c.reg(op & 0xF)
	}
	var mask uint32
	for i := uint32(0); i < 4; i++ {
		if op&(1<<(16+i)) != 0 {
			mask |= 0xFF << (8 * i)
		}
	}
	if op&(1<<22) != 0 {
		bank := bankOf(c.mode())
		if bank != bankUser {
			c.spsr[bank] = c.spsr[bank]&^mask | v&mask
		}
		return nil
	}
	if c.mode() == modeUSR {
		mask &= 0xFF000000
	}
	return c.setCPSR(c.cpsr&^mask | v&mask)
}

// Data processing opcodes
const (
	opAND = iota
	opEOR
	opSUB
	opRSB
	opADD
	opADC
	opSBC
	opRSC
	opTST
	opTEQ
	opCMP
	opCMN
	opORR
	opMOV
	opBIC
	opMVN
)

func addWithCarry(a, b uint32, carry bool) (result uint32, c, v bool) {
	var ci uint64
	if carry {
		ci = 1
	}
	sum := uint64(a) + uint64(b) + ci
	result = uint32(sum)
	c = sum>>32 != 0
	v = (^(a^b)&(a^result))>>31 != 0
	return result, c, v
}

// operand2 decodes the shifter operand and its carry out.
func (c *cpu) operand2(op uint32) (uint32, bool) {
	carry := c.flag(flagC)
	if op&(1<<25) != 0 {
		rot := op >> 8 & 0xF
		v := bits.RotateLeft32(op&0xFF, -int(rot)*2)
		if rot != 0 {
			carry = v&0x80000000 != 0
		}
		return v, carry
	}
	rm := op & 0xF
	typ := op >> 5 & 3
	if op&(1<<4) != 0 {
		amount := c.reg(op>>8&0xF) & 0xFF
		v := c.reg(rm)
		if rm == 15 {
			v += 4
		}
		return shiftByRegister(v, typ, amount, carry)
	}
	return shiftByImmediate(c.reg(rm), typ, op>>7&0x1F, carry)
}

func (c *cpu) dataProcessing(op uint32) error {
	opcode := op >> 21 & 0xF
	setFlags := op&(1<<20) != 0
	rn := op >> 16 & 0xF
	rd := op >> 12 & 0xF

	b, shiftCarry := c.operand2(op)
	a := c.reg(rn)
	if rn == 15 && op&(1<<25) == 0 && op&(1<<4) != 0 {
		a += 4
	}

	var result uint32
	carry, overflow := c.flag(flagC), c.flag(flagV)
	logical := false
	switch opcode {
	case opAND, opTST:
		result, logical = a&b, true
	case opEOR, opTEQ:
		result, logical = a^b, true
	case opSUB, opCMP:
		result, carry, overflow = addWithCarry(a, ^b, true)
	case opRSB:
		result, carry, overflow = addWithCarry(b, ^a, true)
	case opADD, opCMN:
		result, carry, overflow = addWithCarry(a, b, false)
	case opADC:
		result, carry, overflow = addWithCarry(a, b, c.flag(flagC))
	case opSBC:
		result, carry, overflow = addWithCarry(a, ^b, c.flag(flagC))
	case opRSC:
		result, carry, overflow = addWithCarry(b, ^a, c.flag(flagC))
	case opORR:
		result, logical = a|b, true
	case opMOV:
		result, logical = b, true
	case opBIC:
		result, logical = a&^b, true
	case opMVN:
		result, logical = ^b, true
	}

	test := opcode >= opTST && opcode <= opCMN
	if !test {
		c.setReg(rd, result)
	}

	if !setFlags {
		return nil
	}
	if rd == 15 && !test {
		// Exception return: restore the saved status register.
		bank := bankOf(c.mode())
		if bank == bankUser {
			return fmt.Errorf("flag-setting write to pc outside an exception mode")
		}
		return c.setCPSR(c.spsr[bank])
	}
	c.setNZ(result)
	if logical {
		c.setFlag(flagC, shiftCarry)
	} else {
		c.setFlag(flagC, carry)
		c.setFlag(flagV, overflow)
	}
	return nil
}

func (c *cpu) singleTransfer(m memory, op uint32) {
	pre := op&(1<<24) != 0
	up := op&(1<<23) != 0
	byteSized := op&(1<<22) != 0
	writeback := op&(1<<21) != 0
	load := op&(1<<20) != 0
	rn := op >> 16 & 0xF
	rd := op >> 12 & 0xF

	var offset uint32
	if op&(1<<25) != 0 {
		offset, _ = shiftByImmediate(c.reg(op&0xF), op>>5&3, op>>7&0x1F, c.flag(flagC))
	} else {
		offset = op & 0xFFF
	}

	base := c.reg(rn)
	addr := base
	moved := base - offset
	if up {
		moved = base + offset
	}
	if pre {
		addr = moved
	}

	if load {
		var v uint32
		if byteSized {
			v = uint32(m.read8(addr))
		} else {
			v = bits.RotateLeft32(m.read32(addr), -int(addr&3)*8)
		}
		if !pre || writeback {
			c.setReg(rn, moved)
		}
		c.setReg(rd, v)
		return
	}

	v := c.reg(rd)
	if rd == 15 {
		v += 4
	}
	if byteSized {
		m.write8(addr, uint8(v))
	} else {
		m.write32(addr, v)
	}
	if !pre || writeback {
		c.setReg(rn, moved)
	}
}

func (c *cpu) halfwordTransfer(m memory, op uint32) error {
	pre := op&(1<<24) != 0
	up := op&(1<<23) != 0
	immediate := op&(1<<22) != 0
	writeback := op&(1<<21) != 0
	load := op&(1<<20) != 0
	rn := op >> 16 & 0xF
	rd := op >> 12 & 0xF
	kind := op >> 5 & 3

	var offset uint32
	if immediate {
		offset = op>>4&0xF0 | op&0xF
	} else {
		offset = c.reg(op & 0xF)
	}

	base := c.reg(rn)
	addr := base
	moved := base - offset
	if up {
		moved = base + offset
	}
	if pre {
		addr = moved
	}

	if !load {
		if kind != 1 {
			return fmt.Errorf("signed halfword stores are undefined")
		}
		v := c.reg(rd)
		if rd == 15 {
			v += 4
		}
		m.write16(addr, uint16(v))
		if !pre || writeback {
			c.setReg(rn, moved)
		}
		return nil
	}

	var v uint32
	switch kind {
	case 1:
		v = uint32(m.read16(addr))
	case 2:
		v = uint32(int32(int8(m.read8(addr))))
	case 3:
		v = uint32(int32(int16(m.read16(addr))))
	}
	if !pre || writeback {
		c.setReg(rn, moved)
	}
	c.setReg(rd, v)
	return nil
}

func (c *cpu) blockTransfer(m memory, op uint32) error {
	pre := op&(1<<24) != 0
	up := op&(1<<23) != 0
	psr := op&(1<<22) != 0
	writeback := op&(1<<21) != 0
	load := op&(1<<20) != 0
	rn := op >> 16 & 0xF
	list := op & 0xFFFF
	if list == 0 {
		return fmt.Errorf("empty register list")
	}
	// with S set only the LDM exception return form is supported
	if psr && (!load || list&(1<<15) == 0) {
		return fmt.Errorf("user bank block transfer is not supported")
	}

	n := uint32(bits.OnesCount32(list))
	base := c.reg(rn)
	var addr, final uint32
	if up {
		addr, final = base, base+4*n
		if pre {
			addr += 4
		}
	} else {
		addr, final = base-4*n, base-4*n
		if !pre {
			addr += 4
		}
	}

	if load {
		for i := uint32(0); i < 16; i++ {
			if list&(1<<i) == 0 {
				continue
			}
			c.setReg(i, m.read32(addr))
			addr += 4
		}
		if writeback && list&(1<<rn) == 0 {
			c.setReg(rn, final)
		}
		if psr && list&(1<<15) != 0 {
			bank := bankOf(c.mode())
			if bank == bankUser {
				return fmt.Errorf("exception return outside an exception mode")
			}
			return c.setCPSR(c.spsr[bank])
		}
		return nil
	}

	for i := uint32(0); i < 16; i++ {
		if list&(1<<i) == 0 {
			continue
		}
		v := c.reg(i)
		if i == 15 {
			v += 4
		}
		m.write32(addr, v)
		addr += 4
	}
	if writeback {
		c.setReg(rn, final)
	}
	return nil
}
