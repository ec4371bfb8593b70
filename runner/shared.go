package runner

import (
	"sync"

	emucore "github.com/user-none/egba/api"
)

// SharedKeys holds the key state written by an input goroutine and read
// by the emulation loop once per frame.
type SharedKeys struct {
	mu   sync.Mutex
	keys emucore.KeyState
}

// Set replaces the key state.
func (sk *SharedKeys) Set(keys emucore.KeyState) {
	sk.mu.Lock()
	sk.keys = keys & emucore.KeyMask
	sk.mu.Unlock()
}

// Read returns the current key state.
func (sk *SharedKeys) Read() emucore.KeyState {
	sk.mu.Lock()
	k := sk.keys
	sk.mu.Unlock()
	return k
}

// SharedFrame holds the last frame produced by the emulation loop. Uses
// separate write and read buffers so the loop can publish a new frame
// while a reader still holds the previous snapshot.
type SharedFrame struct {
	mu          sync.Mutex
	writePixels []uint32
	readPixels  []uint32
	frame       uint64
}

// NewSharedFrame creates a frame holder for frames of size pixels.
func NewSharedFrame(size int) *SharedFrame {
	return &SharedFrame{
		writePixels: make([]uint32, size),
		readPixels:  make([]uint32, size),
	}
}

// Update copies a frame from the emulation loop.
func (sf *SharedFrame) Update(frame uint64, pixels []uint32) {
	sf.mu.Lock()
	copy(sf.writePixels, pixels)
	sf.frame = frame
	sf.mu.Unlock()
}

// Read returns a snapshot of the last frame and its number. The returned
// slice is reused by the next Read.
func (sf *SharedFrame) Read() ([]uint32, uint64) {
	sf.mu.Lock()
	copy(sf.readPixels, sf.writePixels)
	frame := sf.frame
	sf.mu.Unlock()
	return sf.readPixels, frame
}
