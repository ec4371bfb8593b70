package gba

// Interrupt request bits in IE/IF
const (
	irqVBlank  = 0
	irqHBlank  = 1
	irqVCount  = 2
	irqTimer0  = 3
	irqSerial  = 7
	irqDMA0    = 8
	irqKeypad  = 12
	irqGamePak = 13

	irqMask = 0x3FFF
)

type interrupts struct {
	ie    uint16
	flags uint16
	ime   uint16
}

func (i *interrupts) request(bit int) {
	i.flags |= 1 << uint(bit)
}

// pending reports whether an enabled interrupt is flagged. Halt exits on
// this condition regardless of IME.
func (i *interrupts) pending() bool {
	return i.ie&i.flags&irqMask != 0
}

// deliverable reports whether the CPU should take an IRQ exception,
// ignoring the CPSR I bit.
func (i *interrupts) deliverable() bool {
	return i.ime&1 != 0 && i.pending()
}
