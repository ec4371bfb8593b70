package gba

import emucore "github.com/user-none/egba/api"

// KeyinputAllReleased is KEYINPUT with no button pressed (active low).
const KeyinputAllReleased = 0x03FF

// KEYCNT bits
const (
	keycntIRQ = 1 << 14
	keycntAND = 1 << 15
)

type keypad struct {
	keyinput uint16
	keycnt   uint16
}

// latch applies the frame's key state and raises the keypad interrupt
// when the KEYCNT condition holds.
func (k *keypad) latch(keys emucore.KeyState, irq *interrupts) {
	pressed := uint16(keys & emucore.KeyMask)
	k.keyinput = ^pressed & KeyinputAllReleased
	if k.keycnt&keycntIRQ == 0 {
		return
	}
	sel := k.keycnt & KeyinputAllReleased
	if sel == 0 {
		return
	}
	if k.keycnt&keycntAND != 0 {
		if pressed&sel == sel {
			irq.request(irqKeypad)
		}
	} else if pressed&sel != 0 {
		irq.request(irqKeypad)
	}
}
