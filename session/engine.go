// Package session manages emulation sessions behind opaque handles and
// provides the Emulator binding that a frontend drives one frame at a time.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	emucore "github.com/user-none/egba/api"
	"github.com/user-none/egba/storage"
)

// Screen geometry every core served by an Engine must produce.
const (
	ScreenWidth     = 240
	ScreenHeight    = 160
	FrameBufferSize = ScreenWidth * ScreenHeight
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for diagnostics and session events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithBackupDir enables battery backup persistence. Sessions opened with
// a save name load <dir>/<name>.sav on open and write it back on close.
func WithBackupDir(dir string) Option {
	return func(e *Engine) {
		e.backupDir = dir
	}
}

// slot holds one session. gen only changes while mu is held.
type slot struct {
	mu  sync.Mutex
	gen atomic.Uint32

	open       bool
	emu        emucore.Emulator
	backupPath string
	pending    emucore.KeyState
	fault      error
	corrupted  bool
}

// Engine owns the table of live sessions. Lock order is Engine.mu before
// slot.mu.
type Engine struct {
	factory   emucore.CoreFactory
	logger    *slog.Logger
	backupDir string

	mu    sync.RWMutex
	slots []*slot
	free  []uint32
	live  int
	down  bool
}

// NewEngine creates an engine that builds cores with factory.
func NewEngine(factory emucore.CoreFactory, opts ...Option) *Engine {
	e := &Engine{
		factory: factory,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// Live returns the number of open sessions.
func (e *Engine) Live() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.live
}

// Open creates a session from BIOS and ROM images. saveName identifies
// the battery backup file and may be empty.
func (e *Engine) Open(bios, rom []byte, saveName string) (Handle, error) {
	if len(bios) == 0 || len(rom) == 0 {
		return InvalidHandle, &InitializationError{Op: "open", Err: errors.New("empty BIOS or ROM image")}
	}

	e.mu.RLock()
	down := e.down
	e.mu.RUnlock()
	if down {
		return InvalidHandle, &InitializationError{Op: "open", Err: ErrEngineDown}
	}

	info := e.factory.SystemInfo()
	if info.FramebufferSize() != FrameBufferSize {
		return InvalidHandle, &InitializationError{
			Op:  "open",
			Err: fmt.Errorf("core %s renders %dx%d, want %dx%d", info.CoreName, info.ScreenWidth, info.ScreenHeight, ScreenWidth, ScreenHeight),
		}
	}

	emu, err := e.factory.CreateEmulator(bios, rom)
	if err != nil {
		return InvalidHandle, &InitializationError{Op: "open", Err: err}
	}

	backupPath, err := e.loadBattery(emu, saveName)
	if err != nil {
		emu.Close()
		return InvalidHandle, &InitializationError{Op: "open", Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.down {
		emu.Close()
		return InvalidHandle, &InitializationError{Op: "open", Err: ErrEngineDown}
	}

	var idx uint32
	var s *slot
	if n := len(e.free); n > 0 {
		idx = e.free[n-1]
		e.free = e.free[:n-1]
		s = e.slots[idx]
	} else {
		idx = uint32(len(e.slots))
		s = &slot{}
		s.gen.Store(1)
		e.slots = append(e.slots, s)
	}

	s.mu.Lock()
	s.open = true
	s.emu = emu
	s.backupPath = backupPath
	s.pending = 0
	s.fault = nil
	s.corrupted = false
	h := makeHandle(idx, s.gen.Load())
	s.mu.Unlock()
	e.live++

	e.logger.Debug("session opened", "handle", h.String(), "core", info.CoreName, "save", saveName)
	return h, nil
}

// IsOpen reports whether h refers to a live session.
func (e *Engine) IsOpen(h Handle) bool {
	s := e.slotFor(h)
	return s != nil && s.gen.Load() == h.generation()
}

func (e *Engine) slotFor(h Handle) *slot {
	if h == InvalidHandle {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if int(h.index()) >= len(e.slots) {
		return nil
	}
	return e.slots[h.index()]
}

// acquire returns the locked slot for h.
func (e *Engine) acquire(h Handle) (*slot, error) {
	if h == InvalidHandle {
		return nil, ErrClosed
	}
	s := e.slotFor(h)
	if s == nil {
		return nil, fmt.Errorf("%w: %w", ErrClosed, ErrStaleHandle)
	}
	s.mu.Lock()
	if !s.open || s.gen.Load() != h.generation() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrClosed, ErrStaleHandle)
	}
	return s, nil
}

// usable reports a poisoned session.
func (s *slot) usable(op string) error {
	if s.fault != nil {
		return &RuntimeError{Op: op, Err: fmt.Errorf("%w: %w", ErrFaulted, s.fault)}
	}
	if s.corrupted {
		return &StateError{Op: op, Err: ErrCorrupted}
	}
	return nil
}

// Close releases the session. Stale and zero handles are ignored.
func (e *Engine) Close(h Handle) {
	s, err := e.acquire(h)
	if err != nil {
		return
	}

	e.storeBattery(h, s)
	s.emu.Close()
	s.emu = nil
	s.open = false
	s.backupPath = ""
	s.fault = nil
	s.corrupted = false
	next := s.gen.Load() + 1
	if next == 0 {
		next = 1
	}
	s.gen.Store(next)
	s.mu.Unlock()

	e.mu.Lock()
	e.free = append(e.free, h.index())
	e.live--
	e.mu.Unlock()

	e.logger.Debug("session closed", "handle", h.String())
}

// RunFrame runs exactly one frame with keys latched as input and copies
// the rendered frame into dst. dst is not touched on error.
func (e *Engine) RunFrame(h Handle, keys emucore.KeyState, dst FrameBuffer) error {
	s, err := e.acquire(h)
	if err != nil {
		return &RuntimeError{Op: "run frame", Err: err}
	}
	defer s.mu.Unlock()
	return e.runFrame(h, s, keys&emucore.KeyMask, dst)
}

// Advance runs one frame using the keys last passed to SetKeyState.
func (e *Engine) Advance(h Handle, dst FrameBuffer) error {
	s, err := e.acquire(h)
	if err != nil {
		return &RuntimeError{Op: "run frame", Err: err}
	}
	defer s.mu.Unlock()
	return e.runFrame(h, s, s.pending, dst)
}

func (e *Engine) runFrame(h Handle, s *slot, keys emucore.KeyState, dst FrameBuffer) error {
	if err := s.usable("run frame"); err != nil {
		return err
	}
	if len(dst) < FrameBufferSize {
		return &RuntimeError{Op: "run frame", Err: fmt.Errorf("frame buffer holds %d pixels, need %d", len(dst), FrameBufferSize)}
	}
	if err := s.emu.RunFrame(keys); err != nil {
		s.fault = err
		e.logger.Error("core fault", "handle", h.String(), "error", err)
		return &RuntimeError{Op: "run frame", Err: fmt.Errorf("%w: %w", ErrFaulted, err)}
	}
	s.emu.Framebuffer(dst)
	return nil
}

// SetKeyState records keys as the input for the next Advance.
func (e *Engine) SetKeyState(h Handle, keys emucore.KeyState) error {
	s, err := e.acquire(h)
	if err != nil {
		return &RuntimeError{Op: "set key state", Err: err}
	}
	defer s.mu.Unlock()
	if err := s.usable("set key state"); err != nil {
		return err
	}
	s.pending = keys & emucore.KeyMask
	return nil
}

// SaveState returns an opaque snapshot of the session.
func (e *Engine) SaveState(h Handle) ([]byte, error) {
	s, err := e.acquire(h)
	if err != nil {
		return nil, &StateError{Op: "save state", Err: err}
	}
	defer s.mu.Unlock()
	if err := s.usable("save state"); err != nil {
		return nil, err
	}
	ss, ok := s.emu.(emucore.SaveStater)
	if !ok {
		return nil, &StateError{Op: "save state", Err: ErrUnsupported}
	}
	blob, err := ss.Serialize()
	if err != nil {
		return nil, &StateError{Op: "save state", Err: err}
	}
	return blob, nil
}

// LoadState restores a snapshot taken by SaveState. A rejected snapshot
// leaves the session corrupted until Close.
func (e *Engine) LoadState(h Handle, blob []byte) error {
	s, err := e.acquire(h)
	if err != nil {
		return &StateError{Op: "load state", Err: err}
	}
	defer s.mu.Unlock()
	if err := s.usable("load state"); err != nil {
		return err
	}
	ss, ok := s.emu.(emucore.SaveStater)
	if !ok {
		return &StateError{Op: "load state", Err: ErrUnsupported}
	}
	if err := ss.Deserialize(blob); err != nil {
		s.corrupted = true
		e.logger.Warn("state rejected", "handle", h.String(), "error", err)
		return &StateError{Op: "load state", Err: err}
	}
	return nil
}

// Log writes a diagnostic dump of the session to the engine's logger.
func (e *Engine) Log(h Handle) {
	s, err := e.acquire(h)
	if err != nil {
		e.logger.Info("session closed", "handle", h.String())
		return
	}
	defer s.mu.Unlock()

	logger := e.logger.With("handle", h.String())
	logger.Info("session",
		"pending_keys", s.pending.String(),
		"faulted", s.fault != nil,
		"corrupted", s.corrupted,
		"backup", s.backupPath,
	)
	if d, ok := s.emu.(emucore.Diagnoser); ok {
		d.Log(logger)
	}
}

// Shutdown closes every live session and refuses further opens. Sessions
// still open here were leaked by their owners and are reported.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.down = true
	slots := make([]*slot, len(e.slots))
	copy(slots, e.slots)
	e.mu.Unlock()

	for i, s := range slots {
		s.mu.Lock()
		open := s.open
		h := makeHandle(uint32(i), s.gen.Load())
		s.mu.Unlock()
		if !open {
			continue
		}
		e.logger.Warn("closing leaked session", "handle", h.String())
		e.Close(h)
	}
}

func (e *Engine) loadBattery(emu emucore.Emulator, saveName string) (string, error) {
	if e.backupDir == "" || saveName == "" {
		return "", nil
	}
	bs, ok := emu.(emucore.BatterySaver)
	if !ok || !bs.HasSRAM() {
		return "", nil
	}
	path := filepath.Join(e.backupDir, filepath.Base(saveName)+".sav")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		return "", fmt.Errorf("read battery backup: %w", err)
	}
	bs.SetSRAM(data)
	return path, nil
}

type dirtyTracker interface {
	SRAMDirty() bool
	ClearSRAMDirty()
}

func (e *Engine) storeBattery(h Handle, s *slot) {
	if s.backupPath == "" {
		return
	}
	bs, ok := s.emu.(emucore.BatterySaver)
	if !ok {
		return
	}
	dt, tracked := s.emu.(dirtyTracker)
	if tracked && !dt.SRAMDirty() {
		return
	}
	if err := storage.AtomicWriteFile(s.backupPath, bs.GetSRAM()); err != nil {
		e.logger.Error("failed to write battery backup", "handle", h.String(), "path", s.backupPath, "error", err)
		return
	}
	if tracked {
		dt.ClearSRAMDirty()
	}
}
