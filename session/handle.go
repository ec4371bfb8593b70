package session

import "fmt"

// Handle identifies a session in an Engine. The low 32 bits index the
// engine's slot table and the high 32 bits hold the slot generation at
// open time, so a handle to a closed session never matches a later one
// that reuses the slot. The zero Handle is never valid.
type Handle uint64

// InvalidHandle is the zero Handle.
const InvalidHandle Handle = 0

func makeHandle(index, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index))
}

func (h Handle) index() uint32 {
	return uint32(h)
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

func (h Handle) String() string {
	if h == InvalidHandle {
		return "session(none)"
	}
	return fmt.Sprintf("session(%d#%d)", h.index(), h.generation())
}
