package testrom

// I/O addresses used by the programs
const (
	ioBase      = 0x04000000
	vramBase    = 0x06000000
	iwramBase   = 0x03000000
	backupBase  = 0x0E000000
	mode3Bytes  = 240 * 160 * 2
	dispcntMode = 0x0403 // mode 3, BG2 on
)

// CounterAddr is the IWRAM word the VBlank program increments once per
// VBlank interrupt.
const CounterAddr = iwramBase

// Pattern paints the mode 3 screen in a loop. Each pass reads KEYINPUT,
// mixes it with a pass counter and writes an incrementing colour to every
// pixel. The pass counter is also stored to backup byte 0. The frame
// contents therefore depend on input and on every frame run before.
func Pattern() []byte {
	p := NewProgram(CodeBase)
	p.Emit(MovImm(R0, ioBase))
	p.Emit(MovConst(R1, dispcntMode)...)
	p.Emit(STRH(R1, R0, 0))
	p.Emit(MovImm(R3, 0))
	p.Emit(MovImm(R7, backupBase))

	p.Label("pass")
	p.Emit(
		MovImm(R2, vramBase),
		AddImm(R4, R0, 0x130),
		LDRH(R5, R4, 0),
		AddImm(R3, R3, 1),
		DataReg(EOR, false, R5, R5, R3, LSL, 5),
		MovImm(R6, vramBase),
		AddImm(R6, R6, mode3Bytes),
		STRB(R3, R7, 0),
	)
	p.Label("pixel")
	p.Emit(
		STRHPost(R5, R2, 2),
		AddImm(R5, R5, 1),
		CmpReg(R2, R6),
	)
	p.B(NE, "pixel")
	p.B(AL, "pass")

	return Assemble(Image{Title: "EGBA PATTERN", GameCode: "AEPE", Maker: "01", BackupID: "SRAM_V113"}, p)
}

// VBlank installs an IRQ handler, enables the VBlank interrupt and halts
// between interrupts. The handler acknowledges IF and increments the word
// at CounterAddr, so after n frames the counter is n.
func VBlank() []byte {
	p := NewProgram(CodeBase)
	p.Emit(MovConst(R0, IRQHandlerPtr)...)
	p.Adr(R1, "handler")
	p.Emit(
		STR(R1, R0, 0),
		MovImm(R0, ioBase),
		MovImm(R1, 1<<3),
		STRH(R1, R0, 4),
		AddImm(R2, R0, 0x200),
		MovImm(R1, 1),
		STRH(R1, R2, 0),
		STRH(R1, R2, 8),
	)
	p.Label("idle")
	p.Emit(STRB(R1, R0, 0x301))
	p.B(AL, "idle")

	p.Label("handler")
	p.Emit(
		MovImm(R0, ioBase),
		AddImm(R0, R0, 0x200),
		MovImm(R1, 1),
		STRH(R1, R0, 2),
		MovImm(R0, iwramBase),
		LDR(R1, R0, 0),
		AddImm(R1, R1, 1),
		STR(R1, R0, 0),
		BX(LR),
	)

	return Assemble(Image{Title: "EGBA VBLANK", GameCode: "AEVE", Maker: "01"}, p)
}

// Fault jumps to an unmapped address on its first instruction.
func Fault() []byte {
	p := NewProgram(CodeBase)
	p.Emit(MovImm(PC, 0x10000000))
	return Assemble(Image{Title: "EGBA FAULT", GameCode: "AEFE", Maker: "01"}, p)
}

// Spin loops forever without touching the display.
func Spin() []byte {
	p := NewProgram(CodeBase)
	p.Label("loop")
	p.B(AL, "loop")
	return Assemble(Image{Title: "EGBA SPIN", GameCode: "AESE", Maker: "01"}, p)
}
