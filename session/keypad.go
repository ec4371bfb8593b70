package session

import (
	"sync/atomic"

	emucore "github.com/user-none/egba/api"
)

// Keypad is the binding's input-state object. Input code may press and
// release buttons from any goroutine; Advance samples the whole mask in
// one atomic load, so a frame never sees half of an update made with Set.
type Keypad struct {
	state atomic.Uint32
}

// Press marks a button as held.
func (k *Keypad) Press(button int) {
	for {
		old := k.state.Load()
		if k.state.CompareAndSwap(old, old|1<<uint(button)) {
			return
		}
	}
}

// Release marks a button as released.
func (k *Keypad) Release(button int) {
	for {
		old := k.state.Load()
		if k.state.CompareAndSwap(old, old&^(1<<uint(button))) {
			return
		}
	}
}

// Set replaces the whole key state.
func (k *Keypad) Set(keys emucore.KeyState) {
	k.state.Store(uint32(keys & emucore.KeyMask))
}

// State returns the current key state.
func (k *Keypad) State() emucore.KeyState {
	return emucore.KeyState(k.state.Load()) & emucore.KeyMask
}
