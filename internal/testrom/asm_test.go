package testrom

import (
	"encoding/binary"
	"testing"
)

func TestEncodings(t *testing.T) {
	tests := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"movs pc, lr", DataReg(MOV, true, PC, 0, LR, LSL, 0), 0xE1B0F00E},
		{"subs pc, lr, #4", DataImm(SUB, true, PC, LR, 4), 0xE25EF004},
		{"mov r0, #0x04000000", MovImm(R0, 0x04000000), 0xE3A00301},
		{"ldr pc, [r0, #-4]", LDR(PC, R0, -4), 0xE510F004},
		{"strh r1, [r0]", STRH(R1, R0, 0), 0xE1C010B0},
		{"ldrh r5, [r4]", LDRH(R5, R4, 0), 0xE1D450B0},
		{"msr cpsr_c, #0xd2", MSRImm(FieldC, 0xD2), 0xE321F0D2},
		{"mrs r0, cpsr", MRS(R0, false), 0xE10F0000},
		{"mul r0, r1, r2", MUL(R0, R1, R2), 0xE0000291},
		{"bx lr", BX(LR), 0xE12FFF1E},
		{"stmfd sp!, {r0-r3, r12, lr}", Push(R0, R1, R2, R3, R12, LR), 0xE92D500F},
		{"ldmfd sp!, {r0-r3, r12, lr}", Pop(R0, R1, R2, R3, R12, LR), 0xE8BD500F},
		{"b +0x20", Branch(false, 0, 0x20), 0xEA000006},
		{"b .", Branch(false, 0x100, 0x100), 0xEAFFFFFE},
		{"bl +0x10", Branch(true, 0, 0x10), 0xEB000002},
		{"bne", If(NE, Branch(false, 0, 0x20)), 0x1A000006},
		{"swi 5", SWI(5), 0xEF000005},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got 0x%08X, want 0x%08X", tt.got, tt.want)
			}
		})
	}
}

func TestEncodeImmediate(t *testing.T) {
	for _, v := range []uint32{0, 0xFF, 0x130, 0x12C00, 0x04000000, 0xF000000F} {
		if _, ok := EncodeImmediate(v); !ok {
			t.Errorf("0x%08X should be encodable", v)
		}
	}
	for _, v := range []uint32{0x101, 0x03007FFC, 0xFFFFFFFF} {
		if _, ok := EncodeImmediate(v); ok {
			t.Errorf("0x%08X should not be encodable", v)
		}
	}
}

func TestMovConstCoversValue(t *testing.T) {
	for _, v := range []uint32{0x03007FA0, 0x03007FFC, 0x0403, 0xFFFFFFFF, 0x12345678} {
		var got uint32
		for i, op := range MovConst(R0, v) {
			imm := op & 0xFF
			rot := op >> 8 & 0xF
			chunk := imm>>(rot*2) | imm<<(32-rot*2)
			if rot == 0 {
				chunk = imm
			}
			if i == 0 && op>>21&0xF != uint32(MOV) {
				t.Fatalf("0x%08X: first op is not mov", v)
			}
			got |= chunk
		}
		if got != v {
			t.Errorf("MovConst(0x%08X) builds 0x%08X", v, got)
		}
	}
}

func TestProgramLabels(t *testing.T) {
	p := NewProgram(0x1000)
	p.B(AL, "end")
	p.Label("mid")
	p.Emit(MovImm(R0, 1))
	p.Label("end")
	p.B(AL, "mid")

	words, err := p.Words()
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if words[0] != Branch(false, 0x1000, 0x1008) {
		t.Errorf("forward branch 0x%08X", words[0])
	}
	if words[2] != Branch(false, 0x1008, 0x1004) {
		t.Errorf("backward branch 0x%08X", words[2])
	}

	if _, err := NewProgram(0).B(AL, "nowhere").Words(); err == nil {
		t.Error("expected error for undefined label")
	}
}

func TestBIOSLayout(t *testing.T) {
	bios := BIOS()
	if len(bios) != BIOSSize {
		t.Fatalf("BIOS size %d, want %d", len(bios), BIOSSize)
	}
	if got := binary.LittleEndian.Uint32(bios[0x08:]); got != 0xE1B0F00E {
		t.Errorf("swi vector 0x%08X", got)
	}
	if got := binary.LittleEndian.Uint32(bios[0x18:]); got>>24 != 0xEA {
		t.Errorf("irq vector is not a branch: 0x%08X", got)
	}
}

func TestBuildHeader(t *testing.T) {
	rom := Build(Image{Title: "HELLO", GameCode: "ABCE", Maker: "01", Code: []byte{1, 2, 3, 4}, BackupID: "FLASH1M_V102"})
	if len(rom)%0x200 != 0 {
		t.Errorf("rom size %d not padded", len(rom))
	}
	if rom[0xB2] != 0x96 {
		t.Errorf("fixed value 0x%02X", rom[0xB2])
	}
	var sum byte
	for i := 0xA0; i <= 0xBD; i++ {
		sum += rom[i]
	}
	if sum+0x19 != 0 {
		t.Errorf("complement check fails: sum 0x%02X", sum)
	}
	if string(rom[0xA0:0xA5]) != "HELLO" {
		t.Errorf("title %q", rom[0xA0:0xAC])
	}
	if got := binary.LittleEndian.Uint32(rom); got != Branch(false, ROMEntry, CodeBase) {
		t.Errorf("entry branch 0x%08X", got)
	}
}
