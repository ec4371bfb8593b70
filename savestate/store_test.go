package savestate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "states.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	})
	return store, path
}

func TestOpenCreatesDatabase(t *testing.T) {
	store, path := openTestStore(t)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}

	var version string
	if err := store.conn.QueryRow(`SELECT value FROM _meta WHERE key = 'schema_version'`).Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != "1" {
		t.Errorf("schema_version = %q", version)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	store, path := openTestStore(t)
	if err := store.Put(ctx, 1, 0, []byte("keep")); err != nil {
		t.Fatal(err)
	}
	if err := runMigrations(ctx, store.conn); err != nil {
		t.Fatalf("second migration run: %v", err)
	}

	again, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	got, err := again.Get(ctx, 1, 0)
	if err != nil || string(got) != "keep" {
		t.Errorf("Get after reopen = %q, %v", got, err)
	}
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)
	const game = 0xDEADBEEF

	if _, err := store.Get(ctx, game, 3); !errors.Is(err, ErrNoState) {
		t.Fatalf("Get(empty) = %v", err)
	}

	if err := store.Put(ctx, game, 3, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, game, 3, []byte("second")); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, game, ResumeSlot, []byte("resume")); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, 0x1234, 3, []byte("other game")); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, game, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("second")) {
		t.Errorf("Get = %q", got)
	}

	entries, err := store.List(ctx, game)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries", len(entries))
	}
	if entries[0].Slot != ResumeSlot || entries[1].Slot != 3 || entries[1].Size != len("second") {
		t.Errorf("entries = %+v", entries)
	}
	if entries[1].GameCRC != game || entries[1].SavedAt.IsZero() {
		t.Errorf("entry metadata = %+v", entries[1])
	}

	if ok, err := store.Has(ctx, game, 3); err != nil || !ok {
		t.Errorf("Has = %v, %v", ok, err)
	}
	if err := store.Delete(ctx, game, 3); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, game, 3); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if ok, _ := store.Has(ctx, game, 3); ok {
		t.Error("slot still present after delete")
	}
	if got, err := store.Get(ctx, 0x1234, 3); err != nil || string(got) != "other game" {
		t.Errorf("other game's state = %q, %v", got, err)
	}
}
