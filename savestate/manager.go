package savestate

import (
	"context"
	"errors"
	"fmt"

	emucore "github.com/user-none/egba/api"
)

// SlotCount is the number of numbered save slots.
const SlotCount = 10

// Manager handles save state operations for one game.
type Manager struct {
	store       *Store
	gameCRC     uint32
	currentSlot int
}

// NewManager creates a manager for the game identified by gameCRC,
// starting at slot 0.
func NewManager(store *Store, gameCRC uint32) *Manager {
	return &Manager{
		store:   store,
		gameCRC: gameCRC,
	}
}

// GameCRC returns the game the manager saves for.
func (m *Manager) GameCRC() uint32 {
	return m.gameCRC
}

// CurrentSlot returns the current save slot.
func (m *Manager) CurrentSlot() int {
	return m.currentSlot
}

// SetSlot selects a save slot.
func (m *Manager) SetSlot(slot int) error {
	if slot < 0 || slot >= SlotCount {
		return fmt.Errorf("slot %d out of range 0-%d", slot, SlotCount-1)
	}
	m.currentSlot = slot
	return nil
}

// NextSlot cycles to the next save slot
func (m *Manager) NextSlot() int {
	m.currentSlot = (m.currentSlot + 1) % SlotCount
	return m.currentSlot
}

// PreviousSlot cycles to the previous save slot
func (m *Manager) PreviousSlot() int {
	m.currentSlot--
	if m.currentSlot < 0 {
		m.currentSlot = SlotCount - 1
	}
	return m.currentSlot
}

// Save saves the current state to the current slot
func (m *Manager) Save(ctx context.Context, saveStater emucore.SaveStater) error {
	state, err := saveStater.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	return m.store.Put(ctx, m.gameCRC, m.currentSlot, state)
}

// Load loads the state from the current slot
func (m *Manager) Load(ctx context.Context, saveStater emucore.SaveStater) error {
	state, err := m.store.Get(ctx, m.gameCRC, m.currentSlot)
	if err != nil {
		if errors.Is(err, ErrNoState) {
			return fmt.Errorf("slot %d: %w", m.currentSlot, err)
		}
		return err
	}
	if err := saveStater.Deserialize(state); err != nil {
		return fmt.Errorf("failed to deserialize state: %w", err)
	}
	return nil
}

// SaveResume saves the resume state
func (m *Manager) SaveResume(ctx context.Context, saveStater emucore.SaveStater) error {
	state, err := saveStater.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	return m.store.Put(ctx, m.gameCRC, ResumeSlot, state)
}

// SaveResumeData stores an already serialized state as the resume state.
func (m *Manager) SaveResumeData(ctx context.Context, state []byte) error {
	return m.store.Put(ctx, m.gameCRC, ResumeSlot, state)
}

// LoadResume loads the resume state
func (m *Manager) LoadResume(ctx context.Context, saveStater emucore.SaveStater) error {
	state, err := m.store.Get(ctx, m.gameCRC, ResumeSlot)
	if err != nil {
		return err
	}
	return saveStater.Deserialize(state)
}

// HasResume reports whether a resume state exists.
func (m *Manager) HasResume(ctx context.Context) bool {
	ok, err := m.store.Has(ctx, m.gameCRC, ResumeSlot)
	return err == nil && ok
}
