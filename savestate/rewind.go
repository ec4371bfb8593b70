package savestate

import (
	"errors"
	"fmt"

	emucore "github.com/user-none/egba/api"
)

// ErrRewindBudget is returned when a single state does not fit the
// rewind memory budget.
var ErrRewindBudget = errors.New("rewind budget smaller than one state")

// RewindBuffer keeps the most recent states within a memory budget so
// play can be stepped backwards. The ring is sized from the first state
// captured, since state size depends on the loaded cartridge.
type RewindBuffer struct {
	budget int // bytes
	every  int // capture on every Nth frame
	ring   [][]byte
	next   int // ring index of the next capture
	held   int
	frames int // frames seen since the last capture
}

// NewRewindBuffer returns a buffer holding up to budgetMB MiB of states,
// captured once every frames.
func NewRewindBuffer(budgetMB, every int) (*RewindBuffer, error) {
	if budgetMB <= 0 {
		return nil, fmt.Errorf("rewind budget must be positive, got %d MiB", budgetMB)
	}
	if every <= 0 {
		return nil, fmt.Errorf("rewind frame step must be positive, got %d", every)
	}
	return &RewindBuffer{budget: budgetMB << 20, every: every}, nil
}

// Capture is called once per frame and snapshots ss on every Nth call.
func (rb *RewindBuffer) Capture(ss emucore.SaveStater) error {
	rb.frames++
	if rb.frames < rb.every {
		return nil
	}
	rb.frames = 0

	blob, err := ss.Serialize()
	if err != nil {
		return fmt.Errorf("rewind capture: %w", err)
	}
	if rb.ring == nil {
		if len(blob) == 0 || rb.budget/len(blob) == 0 {
			return fmt.Errorf("%w: state is %d bytes, budget %d", ErrRewindBudget, len(blob), rb.budget)
		}
		rb.ring = make([][]byte, rb.budget/len(blob))
	}

	rb.ring[rb.next] = blob
	rb.next = rb.wrap(rb.next + 1)
	if rb.held < len(rb.ring) {
		rb.held++
	}
	return nil
}

// Rewind drops the count most recent states and restores the one before
// them, or the oldest state when fewer are stored. The restored state is
// kept so repeated rewinds continue from it. The frame buffer is not part
// of a state; callers run a frame to redraw it. Returns false if the
// buffer is empty.
func (rb *RewindBuffer) Rewind(ss emucore.SaveStater, count int) (bool, error) {
	if rb.held == 0 {
		return false, nil
	}
	count = max(0, min(count, rb.held-1))

	for ; count > 0; count-- {
		rb.next = rb.wrap(rb.next - 1)
		rb.ring[rb.next] = nil
		rb.held--
	}

	if err := ss.Deserialize(rb.ring[rb.wrap(rb.next-1)]); err != nil {
		return false, fmt.Errorf("rewind restore: %w", err)
	}
	return true, nil
}

func (rb *RewindBuffer) wrap(i int) int {
	n := len(rb.ring)
	return (i%n + n) % n
}

// Reset drops every state but keeps the ring allocated. Call it when a
// different state is loaded, since older captures no longer lead to it.
func (rb *RewindBuffer) Reset() {
	clear(rb.ring)
	rb.next, rb.held, rb.frames = 0, 0, 0
}

// Len returns the number of states held.
func (rb *RewindBuffer) Len() int {
	return rb.held
}

// Capacity returns how many states fit the budget, or 0 before the first
// capture.
func (rb *RewindBuffer) Capacity() int {
	return len(rb.ring)
}
