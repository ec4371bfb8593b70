package testrom

import "fmt"

// BIOSSize is the size of a GBA BIOS image.
const BIOSSize = 0x4000

// Stack tops set up by the BIOS reset code, matching the hardware BIOS.
const (
	StackIRQ = 0x03007FA0
	StackSVC = 0x03007FE0
	StackSYS = 0x03007F00

	// IRQHandlerPtr holds the address of the user IRQ handler. The BIOS
	// trampoline reaches it through the 0x03FFFFFC mirror.
	IRQHandlerPtr = 0x03007FFC

	// ROMEntry is where the BIOS jumps after reset.
	ROMEntry = 0x08000000
)

// BIOS assembles a 16 KiB BIOS image. Reset sets up the IRQ, SVC and
// system stacks and jumps to the cartridge in system mode with IRQs
// enabled. The IRQ vector saves the scratch registers, calls the handler
// stored at IRQHandlerPtr and returns. SWI returns immediately.
func BIOS() []byte {
	p := NewProgram(0)
	p.B(AL, "reset") // 0x00 reset
	p.B(AL, "hang")  // 0x04 undefined
	// 0x08 swi: movs pc, lr
	p.Emit(DataReg(MOV, true, PC, 0, LR, LSL, 0))
	p.B(AL, "hang") // 0x0C prefetch abort
	p.B(AL, "hang") // 0x10 data abort
	p.B(AL, "hang") // 0x14 reserved
	p.B(AL, "irq")  // 0x18 irq
	p.B(AL, "hang") // 0x1C fiq

	p.Label("reset")
	p.Emit(MSRImm(FieldC, 0xD2))
	p.Emit(MovConst(SP, StackIRQ)...)
	p.Emit(MSRImm(FieldC, 0xD3))
	p.Emit(MovConst(SP, StackSVC)...)
	p.Emit(MSRImm(FieldC, 0x1F))
	p.Emit(MovConst(SP, StackSYS)...)
	p.Emit(MovImm(PC, ROMEntry))

	p.Label("irq")
	p.Emit(
		Push(R0, R1, R2, R3, R12, LR),
		MovImm(R0, 0x04000000),
		AddImm(LR, PC, 0),
		LDR(PC, R0, -4),
		Pop(R0, R1, R2, R3, R12, LR),
		DataImm(SUB, true, PC, LR, 4),
	)

	p.Label("hang")
	p.B(AL, "hang")

	code, err := p.Bytes()
	if err != nil {
		panic(fmt.Sprintf("testrom: bios: %v", err))
	}
	bios := make([]byte, BIOSSize)
	copy(bios, code)
	return bios
}
