package main

import (
	"fmt"
	"path/filepath"

	"github.com/user-none/egba/internal/testrom"
	"github.com/user-none/egba/storage"
)

var testPrograms = map[string]func() []byte{
	"pattern": testrom.Pattern,
	"vblank":  testrom.VBlank,
	"spin":    testrom.Spin,
	"fault":   testrom.Fault,
}

type MkromCmd struct {
	Dir      string   `arg:"" help:"Directory to write into." type:"path"`
	Programs []string `short:"p" default:"pattern,vblank,spin,fault" help:"Programs to write as <name>.gba."`
	NoBIOS   bool     `help:"Skip writing test_bios.bin."`
}

func (c *MkromCmd) Run(app *App) error {
	for _, name := range c.Programs {
		build, ok := testPrograms[name]
		if !ok {
			return fmt.Errorf("unknown test program %q", name)
		}
		if err := c.write(app, name+".gba", build()); err != nil {
			return err
		}
	}
	if c.NoBIOS {
		return nil
	}
	return c.write(app, "test_bios.bin", testrom.BIOS())
}

func (c *MkromCmd) write(app *App, name string, data []byte) error {
	path := filepath.Join(c.Dir, name)
	if err := storage.AtomicWriteFile(path, data); err != nil {
		return err
	}
	_, err := fmt.Fprintf(app.Out, "wrote %s (%d bytes)\n", path, len(data))
	return err
}
