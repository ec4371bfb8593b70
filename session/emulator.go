package session

import (
	"log/slog"
	"sync"
	"sync/atomic"

	emucore "github.com/user-none/egba/api"
)

// FrameBuffer is one 240x160 frame of ARGB32 pixels.
type FrameBuffer []uint32

// Emulator is the frontend binding: at most one session, a frame buffer
// allocated once and reused for every frame, and an input-state object.
// All methods are safe for concurrent use.
type Emulator struct {
	mu         sync.Mutex
	useDefault bool
	engine     atomic.Pointer[Engine]
	handle     atomic.Uint64
	fb         FrameBuffer
	keypad     Keypad
}

var _ emucore.SaveStater = (*Emulator)(nil)

// NewEmulator creates a closed binding. A nil engine means the
// process-wide engine, resolved again on every Open.
func NewEmulator(engine *Engine) *Emulator {
	e := &Emulator{
		useDefault: engine == nil,
		fb:         make(FrameBuffer, FrameBufferSize),
	}
	e.engine.Store(engine)
	return e
}

func (e *Emulator) current() Handle {
	return Handle(e.handle.Load())
}

// live returns the handle of the open session. A session the engine
// closed on its own (Engine.Close, Shutdown) is forgotten and reported
// as InvalidHandle. Must be called with mu held.
func (e *Emulator) live() Handle {
	h := e.current()
	if h == InvalidHandle {
		return InvalidHandle
	}
	if eng := e.engine.Load(); eng == nil || !eng.IsOpen(h) {
		e.handle.Store(uint64(InvalidHandle))
		return InvalidHandle
	}
	return h
}

// Open starts a session. It fails if one is already open, leaving that
// session running.
func (e *Emulator) Open(bios, rom []byte, saveName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.live() != InvalidHandle {
		return &InitializationError{Op: "open", Err: ErrAlreadyOpen}
	}
	if e.useDefault {
		e.engine.Store(Default())
	}
	eng := e.engine.Load()
	if eng == nil {
		return &InitializationError{Op: "open", Err: ErrEngineDown}
	}

	h, err := eng.Open(bios, rom, saveName)
	if err != nil {
		return err
	}
	e.keypad.Set(0)
	e.handle.Store(uint64(h))
	return nil
}

// Close ends the session. Calling it on a closed binding does nothing.
func (e *Emulator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.live()
	if h == InvalidHandle {
		return
	}
	e.handle.Store(uint64(InvalidHandle))
	e.engine.Load().Close(h)
}

// IsOpen reports whether a session is open. A session closed through the
// engine directly counts as closed. It takes no lock and leaves the
// stale handle for the next locked call to drop.
func (e *Emulator) IsOpen() bool {
	h := e.current()
	if h == InvalidHandle {
		return false
	}
	eng := e.engine.Load()
	return eng != nil && eng.IsOpen(h)
}

// Handle returns the engine handle of the open session, or InvalidHandle.
func (e *Emulator) Handle() Handle {
	if !e.IsOpen() {
		return InvalidHandle
	}
	return e.current()
}

// RunFrame runs one frame with keys and returns the binding's frame
// buffer. The buffer is reused by the next call.
func (e *Emulator) RunFrame(keys emucore.KeyState) (FrameBuffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.live()
	if h == InvalidHandle {
		return nil, &RuntimeError{Op: "run frame", Err: ErrClosed}
	}
	if err := e.engine.Load().RunFrame(h, keys, e.fb); err != nil {
		return nil, err
	}
	return e.fb, nil
}

// Advance runs one frame with the current state of Keypad.
func (e *Emulator) Advance() (FrameBuffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.live()
	if h == InvalidHandle {
		return nil, &RuntimeError{Op: "run frame", Err: ErrClosed}
	}
	if err := e.engine.Load().RunFrame(h, e.keypad.State(), e.fb); err != nil {
		return nil, err
	}
	return e.fb, nil
}

// SetKeyState replaces the pending input used by Advance.
func (e *Emulator) SetKeyState(keys emucore.KeyState) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.live()
	if h == InvalidHandle {
		return &RuntimeError{Op: "set key state", Err: ErrClosed}
	}
	if err := e.engine.Load().SetKeyState(h, keys); err != nil {
		return err
	}
	e.keypad.Set(keys)
	return nil
}

// Keypad returns the binding's input-state object.
func (e *Emulator) Keypad() *Keypad {
	return &e.keypad
}

// FrameBuffer returns the binding's frame buffer without locking. Its
// contents may change while a frame is being run; use CopyFrame for a
// consistent copy.
func (e *Emulator) FrameBuffer() FrameBuffer {
	return e.fb
}

// CopyFrame copies the last completed frame into dst and returns the
// number of pixels copied.
func (e *Emulator) CopyFrame(dst []uint32) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copy(dst, e.fb)
}

// SaveState returns an opaque snapshot of the session.
func (e *Emulator) SaveState() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.live()
	if h == InvalidHandle {
		return nil, &StateError{Op: "save state", Err: ErrClosed}
	}
	return e.engine.Load().SaveState(h)
}

// LoadState restores a snapshot returned by SaveState.
func (e *Emulator) LoadState(blob []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.live()
	if h == InvalidHandle {
		return &StateError{Op: "load state", Err: ErrClosed}
	}
	return e.engine.Load().LoadState(h, blob)
}

// Serialize implements emucore.SaveStater.
func (e *Emulator) Serialize() ([]byte, error) {
	return e.SaveState()
}

// Deserialize implements emucore.SaveStater.
func (e *Emulator) Deserialize(data []byte) error {
	return e.LoadState(data)
}

// Log writes a diagnostic dump of the session. It never fails.
func (e *Emulator) Log() {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.live()
	if h == InvalidHandle {
		logger := slog.Default()
		if eng := e.engine.Load(); eng != nil {
			logger = eng.Logger()
		}
		logger.Info("session closed")
		return
	}
	e.engine.Load().Log(h)
}
