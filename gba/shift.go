package gba

import "math/bits"

// Barrel shifter types
const (
	shiftLSL = iota
	shiftLSR
	shiftASR
	shiftROR
)

// shiftByImmediate applies an instruction-encoded shift. An amount of
// zero encodes LSR #32, ASR #32 and RRX for the non-LSL types.
func shiftByImmediate(v, typ, amount uint32, carry bool) (uint32, bool) {
	switch typ {
	case shiftLSL:
		if amount == 0 {
			return v, carry
		}
		return v << amount, v&(1<<(32-amount)) != 0
	case shiftLSR:
		if amount == 0 {
			return 0, v&0x80000000 != 0
		}
		return v >> amount, v&(1<<(amount-1)) != 0
	case shiftASR:
		if amount == 0 {
			amount = 32
		}
		return asr(v, amount)
	default:
		if amount == 0 {
			out := v >> 1
			if carry {
				out |= 0x80000000
			}
			return out, v&1 != 0
		}
		return bits.RotateLeft32(v, -int(amount)), v&(1<<(amount-1)) != 0
	}
}

// shiftByRegister applies a shift whose amount comes from the low byte of
// a register. A zero amount leaves both value and carry untouched.
func shiftByRegister(v, typ, amount uint32, carry bool) (uint32, bool) {
	if amount == 0 {
		return v, carry
	}
	switch typ {
	case shiftLSL:
		switch {
		case amount < 32:
			return v << amount, v&(1<<(32-amount)) != 0
		case amount == 32:
			return 0, v&1 != 0
		}
		return 0, false
	case shiftLSR:
		switch {
		case amount < 32:
			return v >> amount, v&(1<<(amount-1)) != 0
		case amount == 32:
			return 0, v&0x80000000 != 0
		}
		return 0, false
	case shiftASR:
		return asr(v, amount)
	default:
		amount &= 31
		if amount == 0 {
			return v, v&0x80000000 != 0
		}
		return bits.RotateLeft32(v, -int(amount)), v&(1<<(amount-1)) != 0
	}
}

func asr(v, amount uint32) (uint32, bool) {
	if amount >= 32 {
		if v&0x80000000 != 0 {
			return 0xFFFFFFFF, true
		}
		return 0, false
	}
	return uint32(int32(v) >> amount), v&(1<<(amount-1)) != 0
}
