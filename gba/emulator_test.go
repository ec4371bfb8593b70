package gba

import (
	"bytes"
	"encoding/binary"
	"errors"
	"log/slog"
	"strings"
	"testing"

	emucore "github.com/user-none/egba/api"
	"github.com/user-none/egba/internal/testrom"
)

func newMachine(t *testing.T, rom []byte) *Machine {
	t.Helper()
	m, err := New(testrom.BIOS(), rom)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func runFrames(t *testing.T, m *Machine, keys []emucore.KeyState) []uint32 {
	t.Helper()
	for i, k := range keys {
		if err := m.RunFrame(k); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	fb := make([]uint32, FramebufferLen)
	m.Framebuffer(fb)
	return fb
}

func TestNewRejectsBadImages(t *testing.T) {
	bios := testrom.BIOS()
	rom := testrom.Pattern()

	tests := []struct {
		name string
		bios []byte
		rom  []byte
		want error
	}{
		{"empty bios", nil, rom, ErrEmptyBIOSOrROM},
		{"empty rom", bios, nil, ErrEmptyBIOSOrROM},
		{"short bios", bios[:100], rom, ErrBIOSSize},
		{"short rom", bios, rom[:0x40], ErrROMTooSmall},
		{"bad complement", bios, corruptHeader(rom), ErrHeaderChecksum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.bios, tt.rom); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func corruptHeader(rom []byte) []byte {
	out := bytes.Clone(rom)
	out[0xA0] ^= 0xFF
	return out
}

func TestVBlankInterruptCountsFrames(t *testing.T) {
	m := newMachine(t, testrom.VBlank())
	runFrames(t, m, make([]emucore.KeyState, 5))

	buf := make([]byte, 4)
	m.ReadMemory(testrom.CounterAddr, buf)
	if got := binary.LittleEndian.Uint32(buf); got != 5 {
		t.Errorf("vblank count = %d after 5 frames", got)
	}
	if m.Frame() != 5 {
		t.Errorf("Frame() = %d", m.Frame())
	}
}

func TestPatternIsDeterministic(t *testing.T) {
	keys := []emucore.KeyState{0, 1 << emucore.ButtonA, 0, 1 << emucore.ButtonStart, 0, 0}
	a := runFrames(t, newMachine(t, testrom.Pattern()), keys)
	b := runFrames(t, newMachine(t, testrom.Pattern()), keys)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("pixel %d differs: 0x%08X vs 0x%08X", i, a[i], b[i])
		}
	}
}

func TestPatternDependsOnInput(t *testing.T) {
	a := runFrames(t, newMachine(t, testrom.Pattern()), []emucore.KeyState{0, 0, 0})
	b := runFrames(t, newMachine(t, testrom.Pattern()), []emucore.KeyState{0, 1 << emucore.ButtonB, 1 << emucore.ButtonB})
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("frames are identical for different input")
	}
}

func TestPixelsAreOpaque(t *testing.T) {
	fb := runFrames(t, newMachine(t, testrom.Pattern()), make([]emucore.KeyState, 2))
	for i, p := range fb {
		if p>>24 != 0xFF {
			t.Fatalf("pixel %d = 0x%08X has alpha 0x%02X", i, p, p>>24)
		}
	}
}

func TestKeysLatchedActiveLow(t *testing.T) {
	m := newMachine(t, testrom.Spin())
	if err := m.RunFrame(1<<emucore.ButtonA | 1<<emucore.ButtonL | 0xFC00); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 2)
	m.ReadMemory(0x04000130, buf)
	want := uint16(KeyinputAllReleased &^ (1<<emucore.ButtonA | 1<<emucore.ButtonL))
	if got := binary.LittleEndian.Uint16(buf); got != want {
		t.Errorf("KEYINPUT = 0x%04X, want 0x%04X", got, want)
	}
}

func TestFaultStopsMachine(t *testing.T) {
	m := newMachine(t, testrom.Fault())
	err := m.RunFrame(0)
	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("err = %v, want *Fault", err)
	}
	if fault.PC != 0x10000000 {
		t.Errorf("fault pc 0x%08X", fault.PC)
	}
	if err2 := m.RunFrame(0); err2 != err {
		t.Errorf("second RunFrame = %v, want the stored fault", err2)
	}
}

func TestClosedMachine(t *testing.T) {
	m := newMachine(t, testrom.Spin())
	m.Close()
	if err := m.RunFrame(0); !errors.Is(err, ErrMachineClosed) {
		t.Errorf("err = %v", err)
	}
}

func TestBatterySave(t *testing.T) {
	m := newMachine(t, testrom.Pattern())
	if !m.HasSRAM() {
		t.Fatal("pattern rom should have SRAM")
	}
	if len(m.GetSRAM()) != BackupSRAM.Size() {
		t.Fatalf("sram size %d", len(m.GetSRAM()))
	}
	runFrames(t, m, make([]emucore.KeyState, 3))
	if !m.SRAMDirty() {
		t.Fatal("sram not dirty after the game wrote it")
	}
	sram := m.GetSRAM()
	if sram[0] == 0xFF {
		t.Errorf("sram byte 0 not written")
	}

	other := newMachine(t, testrom.Pattern())
	other.SetSRAM(sram[:10])
	got := other.GetSRAM()
	if !bytes.Equal(got[:10], sram[:10]) || got[10] != 0xFF {
		t.Error("SetSRAM did not copy the prefix and erase the rest")
	}
	if other.SRAMDirty() {
		t.Error("SetSRAM left the dirty flag set")
	}

	none := newMachine(t, testrom.Spin())
	if none.HasSRAM() {
		t.Error("spin rom has no backup id")
	}
}

func TestLogWritesState(t *testing.T) {
	m := newMachine(t, testrom.Spin())
	runFrames(t, m, make([]emucore.KeyState, 1))
	var buf bytes.Buffer
	m.Log(slog.New(slog.NewTextHandler(&buf, nil)))
	out := buf.String()
	for _, want := range []string{"gba core state", "frame=1", "mode=SYS", "title=\"EGBA SPIN\""} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestFactory(t *testing.T) {
	info := Factory{}.SystemInfo()
	if info.ScreenWidth != ScreenWidth || info.ScreenHeight != ScreenHeight || info.FramebufferSize() != 38400 {
		t.Errorf("screen %dx%d", info.ScreenWidth, info.ScreenHeight)
	}
	if info.FPS < 59.72 || info.FPS > 59.73 {
		t.Errorf("fps %f", info.FPS)
	}
	emu, err := Factory{}.CreateEmulator(testrom.BIOS(), testrom.Spin())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := emu.(emucore.SaveStater); !ok {
		t.Error("core does not implement SaveStater")
	}
	if _, err := (Factory{}).CreateEmulator(nil, nil); err == nil {
		t.Error("expected error for empty images")
	}
}
