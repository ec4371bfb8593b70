package savestate

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/user-none/egba/gba"
	"github.com/user-none/egba/internal/testrom"
	"github.com/user-none/egba/session"
)

// byteState is a SaveStater whose whole state is one byte.
type byteState struct {
	v   byte
	bad bool
}

func (s *byteState) Serialize() ([]byte, error) {
	return []byte{s.v}, nil
}

func (s *byteState) Deserialize(data []byte) error {
	if s.bad || len(data) != 1 {
		return errors.New("bad state")
	}
	s.v = data[0]
	return nil
}

func TestNewManager(t *testing.T) {
	m := NewManager(nil, 42)
	if m.CurrentSlot() != 0 {
		t.Errorf("initial slot should be 0, got %d", m.CurrentSlot())
	}
	if m.GameCRC() != 42 {
		t.Errorf("game = %d", m.GameCRC())
	}
}

func TestNextSlot(t *testing.T) {
	m := NewManager(nil, 0)

	for i := 1; i <= 10; i++ {
		m.NextSlot()
		expected := i % 10
		if m.CurrentSlot() != expected {
			t.Errorf("after %d NextSlot calls, expected slot %d, got %d", i, expected, m.CurrentSlot())
		}
	}
}

func TestPreviousSlot(t *testing.T) {
	m := NewManager(nil, 0)

	m.PreviousSlot()
	if m.CurrentSlot() != 9 {
		t.Errorf("expected slot 9, got %d", m.CurrentSlot())
	}

	expected := []int{8, 7, 6, 5, 4, 3, 2, 1, 0}
	for i, exp := range expected {
		m.PreviousSlot()
		if m.CurrentSlot() != exp {
			t.Errorf("step %d: expected slot %d, got %d", i, exp, m.CurrentSlot())
		}
	}
}

func TestSetSlot(t *testing.T) {
	m := NewManager(nil, 0)
	for _, slot := range []int{-1, 10} {
		if err := m.SetSlot(slot); err == nil {
			t.Errorf("SetSlot(%d) accepted", slot)
		}
	}
	if err := m.SetSlot(7); err != nil || m.CurrentSlot() != 7 {
		t.Errorf("SetSlot(7) = %v, slot %d", err, m.CurrentSlot())
	}
}

func TestManagerSaveLoad(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)
	m := NewManager(store, 7)
	st := &byteState{v: 1}

	if err := m.Load(ctx, st); !errors.Is(err, ErrNoState) {
		t.Fatalf("Load(empty) = %v", err)
	}
	if err := m.Save(ctx, st); err != nil {
		t.Fatal(err)
	}
	m.NextSlot()
	st.v = 2
	if err := m.Save(ctx, st); err != nil {
		t.Fatal(err)
	}

	m.PreviousSlot()
	if err := m.Load(ctx, st); err != nil {
		t.Fatal(err)
	}
	if st.v != 1 {
		t.Errorf("slot 0 restored %d", st.v)
	}

	st.bad = true
	if err := m.Load(ctx, st); err == nil {
		t.Error("expected deserialize error")
	}
}

func TestManagerResume(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)
	m := NewManager(store, 9)

	if m.HasResume(ctx) {
		t.Fatal("resume present before save")
	}
	if err := m.SaveResume(ctx, &byteState{v: 5}); err != nil {
		t.Fatal(err)
	}
	if !m.HasResume(ctx) {
		t.Fatal("resume missing after save")
	}
	st := &byteState{}
	if err := m.LoadResume(ctx, st); err != nil || st.v != 5 {
		t.Errorf("LoadResume = %v, v = %d", err, st.v)
	}

	if err := m.SaveResumeData(ctx, []byte{6}); err != nil {
		t.Fatal(err)
	}
	if err := m.LoadResume(ctx, st); err != nil || st.v != 6 {
		t.Errorf("LoadResume = %v, v = %d", err, st.v)
	}

	if NewManager(store, 10).HasResume(ctx) {
		t.Error("resume leaked to another game")
	}
}

func TestManagerWithSession(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	emu := session.NewEmulator(session.NewEngine(gba.Factory{}))
	if err := emu.Open(testrom.BIOS(), testrom.Pattern(), ""); err != nil {
		t.Fatal(err)
	}
	defer emu.Close()

	m := NewManager(store, 0xABCD)
	for i := 0; i < 3; i++ {
		if _, err := emu.RunFrame(0); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Save(ctx, emu); err != nil {
		t.Fatal(err)
	}
	fb, err := emu.RunFrame(1)
	if err != nil {
		t.Fatal(err)
	}
	want := append([]uint32(nil), fb...)

	if _, err := emu.RunFrame(2); err != nil {
		t.Fatal(err)
	}
	if err := m.Load(ctx, emu); err != nil {
		t.Fatal(err)
	}
	fb, err = emu.RunFrame(1)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if fb[i] != want[i] {
			t.Fatalf("pixel %d differs after restore", i)
		}
	}

	blob, err := store.Get(ctx, 0xABCD, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(blob, []byte("eGBAStat")) {
		t.Error("stored blob is not a core state")
	}
}
