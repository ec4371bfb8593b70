package session

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	emucore "github.com/user-none/egba/api"
)

// fakeCore records the keys of every frame and paints the frame number.
type fakeCore struct {
	keys   []emucore.KeyState
	frame  uint32
	sram   []byte
	closed bool
	fail   error
}

func (f *fakeCore) RunFrame(keys emucore.KeyState) error {
	if f.fail != nil {
		return f.fail
	}
	f.keys = append(f.keys, keys)
	f.frame++
	return nil
}

func (f *fakeCore) Framebuffer(dst []uint32) {
	for i := range dst[:FrameBufferSize] {
		dst[i] = 0xFF000000 | f.frame
	}
}

func (f *fakeCore) Close() { f.closed = true }
func (f *fakeCore) HasSRAM() bool { return true }
func (f *fakeCore) GetSRAM() []byte { return append([]byte(nil), f.sram...) }
func (f *fakeCore) SetSRAM(data []byte) { f.sram = append([]byte(nil), data...) }

type fakeFactory struct {
	width, height int
	cores         []*fakeCore
}

func (f *fakeFactory) SystemInfo() emucore.SystemInfo {
	w, h := f.width, f.height
	if w == 0 {
		w, h = ScreenWidth, ScreenHeight
	}
	return emucore.SystemInfo{Name: "fake", CoreName: "fake", ScreenWidth: w, ScreenHeight: h}
}

func (f *fakeFactory) CreateEmulator(bios, rom []byte) (emucore.Emulator, error) {
	if rom[0] == 0xEE {
		return nil, errors.New("bad rom")
	}
	c := &fakeCore{sram: make([]byte, 16)}
	f.cores = append(f.cores, c)
	return c, nil
}

var fakeImage = []byte{1, 2, 3, 4}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestHandleEncoding(t *testing.T) {
	h := makeHandle(7, 3)
	if h.index() != 7 || h.generation() != 3 {
		t.Errorf("index/gen = %d/%d", h.index(), h.generation())
	}
	if h == InvalidHandle {
		t.Error("handle with generation 3 is invalid")
	}
	if InvalidHandle.String() != "session(none)" {
		t.Errorf("InvalidHandle.String() = %q", InvalidHandle.String())
	}
	if h.String() != "session(7#3)" {
		t.Errorf("String() = %q", h.String())
	}
}

func TestEngineOpenClose(t *testing.T) {
	factory := &fakeFactory{}
	e := NewEngine(factory)

	h, err := e.Open(fakeImage, fakeImage, "")
	if err != nil {
		t.Fatal(err)
	}
	if !e.IsOpen(h) {
		t.Fatal("IsOpen false after Open")
	}
	if e.Live() != 1 {
		t.Errorf("Live = %d", e.Live())
	}

	e.Close(h)
	if e.IsOpen(h) {
		t.Error("IsOpen true after Close")
	}
	if !factory.cores[0].closed {
		t.Error("core not closed")
	}
	e.Close(h)
	e.Close(InvalidHandle)
	if e.Live() != 0 {
		t.Errorf("Live = %d", e.Live())
	}
}

func TestEngineOpenErrors(t *testing.T) {
	tests := []struct {
		name    string
		factory *fakeFactory
		bios    []byte
		rom     []byte
	}{
		{"empty bios", &fakeFactory{}, nil, fakeImage},
		{"empty rom", &fakeFactory{}, fakeImage, nil},
		{"core rejects rom", &fakeFactory{}, fakeImage, []byte{0xEE}},
		{"wrong screen size", &fakeFactory{width: 256, height: 192}, fakeImage, fakeImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.factory)
			h, err := e.Open(tt.bios, tt.rom, "")
			var ie *InitializationError
			if !errors.As(err, &ie) {
				t.Fatalf("err = %v, want InitializationError", err)
			}
			if h != InvalidHandle || e.Live() != 0 {
				t.Errorf("handle %v live %d after failed open", h, e.Live())
			}
		})
	}
}

func TestStaleHandle(t *testing.T) {
	e := NewEngine(&fakeFactory{})
	old, err := e.Open(fakeImage, fakeImage, "")
	if err != nil {
		t.Fatal(err)
	}
	e.Close(old)

	cur, err := e.Open(fakeImage, fakeImage, "")
	if err != nil {
		t.Fatal(err)
	}
	if cur.index() != old.index() {
		t.Fatalf("slot not reused: %v then %v", old, cur)
	}
	if cur == old {
		t.Fatal("reused slot produced the same handle")
	}
	if e.IsOpen(old) {
		t.Error("stale handle reported open")
	}

	fb := make(FrameBuffer, FrameBufferSize)
	err = e.RunFrame(old, 0, fb)
	var re *RuntimeError
	if !errors.As(err, &re) || !errors.Is(err, ErrStaleHandle) || !errors.Is(err, ErrClosed) {
		t.Errorf("RunFrame(stale) = %v", err)
	}
	e.Close(old)
	if !e.IsOpen(cur) {
		t.Error("closing a stale handle closed the new session")
	}
}

func TestRunFrameAndPendingKeys(t *testing.T) {
	factory := &fakeFactory{}
	e := NewEngine(factory)
	h, err := e.Open(fakeImage, fakeImage, "")
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(h)

	fb := make(FrameBuffer, FrameBufferSize)
	if err := e.RunFrame(h, 0xFFFF, fb); err != nil {
		t.Fatal(err)
	}
	if err := e.SetKeyState(h, 1<<emucore.ButtonStart); err != nil {
		t.Fatal(err)
	}
	if err := e.Advance(h, fb); err != nil {
		t.Fatal(err)
	}

	keys := factory.cores[0].keys
	if len(keys) != 2 || keys[0] != emucore.KeyMask || keys[1] != 1<<emucore.ButtonStart {
		t.Errorf("core saw keys %v", keys)
	}
	if fb[0] != 0xFF000002 {
		t.Errorf("pixel = %08X", fb[0])
	}

	if err := e.RunFrame(h, 0, make(FrameBuffer, 10)); err == nil {
		t.Error("expected error for short frame buffer")
	}
}

func TestFaultPoisonsSession(t *testing.T) {
	factory := &fakeFactory{}
	e := NewEngine(factory)
	h, err := e.Open(fakeImage, fakeImage, "")
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(h)

	boom := errors.New("boom")
	factory.cores[0].fail = boom
	fb := make(FrameBuffer, FrameBufferSize)
	err = e.RunFrame(h, 0, fb)
	if !errors.Is(err, ErrFaulted) || !errors.Is(err, boom) {
		t.Fatalf("RunFrame = %v", err)
	}

	factory.cores[0].fail = nil
	checks := map[string]error{
		"run frame":     e.RunFrame(h, 0, fb),
		"set key state": e.SetKeyState(h, 0),
		"load state":    e.LoadState(h, nil),
	}
	_, checks["save state"] = e.SaveState(h)
	for op, err := range checks {
		var re *RuntimeError
		if !errors.As(err, &re) || !errors.Is(err, ErrFaulted) {
			t.Errorf("%s after fault = %v", op, err)
		}
	}
	if !e.IsOpen(h) {
		t.Error("faulted session reported closed")
	}
}

func TestStateUnsupported(t *testing.T) {
	e := NewEngine(&fakeFactory{})
	h, err := e.Open(fakeImage, fakeImage, "")
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(h)

	if _, err := e.SaveState(h); !errors.Is(err, ErrUnsupported) {
		t.Errorf("SaveState = %v", err)
	}
	if err := e.LoadState(h, []byte{1}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("LoadState = %v", err)
	}
}

func TestConcurrentRawHandleCalls(t *testing.T) {
	factory := &fakeFactory{}
	e := NewEngine(factory)
	h, err := e.Open(fakeImage, fakeImage, "")
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(h)

	const frames = 200
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			fb := make(FrameBuffer, FrameBufferSize)
			for i := 0; i < frames; i++ {
				if g%2 == 0 {
					if err := e.SetKeyState(h, emucore.KeyMask*emucore.KeyState(i%2)); err != nil {
						t.Error(err)
						return
					}
				} else if err := e.Advance(h, fb); err != nil {
					t.Error(err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	keys := factory.cores[0].keys
	if len(keys) != 2*frames {
		t.Fatalf("ran %d frames, want %d", len(keys), 2*frames)
	}
	for i, k := range keys {
		if k != 0 && k != emucore.KeyMask {
			t.Fatalf("frame %d saw torn keys %v", i, k)
		}
	}
}

func TestEngineLog(t *testing.T) {
	logger, buf := captureLogger()
	e := NewEngine(&fakeFactory{}, WithLogger(logger))

	e.Log(InvalidHandle)
	if strings.Count(buf.String(), "session closed") != 1 {
		t.Errorf("closed log:\n%s", buf.String())
	}

	h, err := e.Open(fakeImage, fakeImage, "")
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(h)
	buf.Reset()
	e.Log(h)
	if !strings.Contains(buf.String(), "faulted=false") {
		t.Errorf("session log:\n%s", buf.String())
	}
}

func TestBatteryBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.sav")
	want := []byte("saved game data!")
	if err := os.WriteFile(path, want, 0644); err != nil {
		t.Fatal(err)
	}

	factory := &fakeFactory{}
	e := NewEngine(factory, WithBackupDir(dir))
	h, err := e.Open(fakeImage, fakeImage, "../elsewhere/game")
	if err != nil {
		t.Fatal(err)
	}
	core := factory.cores[0]
	if !bytes.Equal(core.sram, want) {
		t.Fatalf("sram = %q, want %q", core.sram, want)
	}

	core.sram = []byte("updated")
	e.Close(h)
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "updated" {
		t.Errorf("backup file = %q", got)
	}

	h, err = e.Open(fakeImage, fakeImage, "fresh")
	if err != nil {
		t.Fatalf("open without backup file: %v", err)
	}
	e.Close(h)
	if _, err := os.Stat(filepath.Join(dir, "fresh.sav")); err != nil {
		t.Errorf("backup not created on close: %v", err)
	}
}

func TestBatteryBackupUnreadable(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "game.sav"), 0755); err != nil {
		t.Fatal(err)
	}
	e := NewEngine(&fakeFactory{}, WithBackupDir(dir))
	_, err := e.Open(fakeImage, fakeImage, "game")
	var ie *InitializationError
	if !errors.As(err, &ie) {
		t.Errorf("err = %v, want InitializationError", err)
	}
}

func TestEngineShutdown(t *testing.T) {
	logger, buf := captureLogger()
	factory := &fakeFactory{}
	e := NewEngine(factory, WithLogger(logger))

	var handles []Handle
	for i := 0; i < 3; i++ {
		h, err := e.Open(fakeImage, fakeImage, "")
		if err != nil {
			t.Fatal(err)
		}
		handles = append(handles, h)
	}
	e.Close(handles[1])

	e.Shutdown()
	for _, h := range handles {
		if e.IsOpen(h) {
			t.Errorf("%v open after shutdown", h)
		}
	}
	for i, c := range factory.cores {
		if !c.closed {
			t.Errorf("core %d not closed", i)
		}
	}
	if n := strings.Count(buf.String(), "closing leaked session"); n != 2 {
		t.Errorf("reported %d leaks, want 2", n)
	}
	if _, err := e.Open(fakeImage, fakeImage, ""); !errors.Is(err, ErrEngineDown) {
		t.Errorf("Open after shutdown = %v", err)
	}
}

func TestDefaultEngine(t *testing.T) {
	Shutdown()
	if Default() != nil {
		t.Fatal("default engine present before Init")
	}
	emu := NewEmulator(nil)
	if err := emu.Open(fakeImage, fakeImage, ""); !errors.Is(err, ErrEngineDown) {
		t.Fatalf("Open before Init = %v", err)
	}

	e := Init(&fakeFactory{})
	if Init(&fakeFactory{}) != e || Default() != e {
		t.Fatal("Init did not keep the first engine")
	}
	if err := emu.Open(fakeImage, fakeImage, ""); err != nil {
		t.Fatal(err)
	}
	h := emu.Handle()

	Shutdown()
	if e.IsOpen(h) {
		t.Error("session survived Shutdown")
	}
	if emu.IsOpen() || emu.Handle() != InvalidHandle {
		t.Error("binding still open after Shutdown")
	}
	if _, err := emu.RunFrame(0); !errors.Is(err, ErrClosed) {
		t.Errorf("RunFrame after Shutdown = %v", err)
	}
	emu.Close()

	// a new process-wide engine is picked up by the same binding
	next := Init(&fakeFactory{})
	defer Shutdown()
	if err := emu.Open(fakeImage, fakeImage, ""); err != nil {
		t.Fatalf("Open after re-Init = %v", err)
	}
	if !next.IsOpen(emu.Handle()) || next.Live() != 1 {
		t.Error("binding did not open on the new engine")
	}
	emu.Close()
	if next.Live() != 0 {
		t.Errorf("live = %d after Close", next.Live())
	}
}
