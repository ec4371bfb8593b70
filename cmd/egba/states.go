package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/user-none/egba/savestate"
	"github.com/user-none/egba/storage"
)

type StatesCmd struct {
	ROM    string `arg:"" help:"ROM whose states to show. Only its CRC32 is used." type:"existingfile"`
	Delete []int  `help:"Delete these slots. -1 deletes the resume state." placeholder:"SLOT"`
}

func (c *StatesCmd) Validate() error {
	for _, slot := range c.Delete {
		if slot < savestate.ResumeSlot || slot >= savestate.SlotCount {
			return fmt.Errorf("slot %d out of range %d-%d", slot, savestate.ResumeSlot, savestate.SlotCount-1)
		}
	}
	return nil
}

func (c *StatesCmd) Run(app *App) error {
	ctx := context.Background()
	rom, err := loadROM(c.ROM)
	if err != nil {
		return err
	}
	path, err := storage.GetStatesPath()
	if err != nil {
		return err
	}
	store, err := savestate.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, slot := range c.Delete {
		if err := store.Delete(ctx, rom.CRC32, slot); err != nil {
			return err
		}
		app.Logger.Info("state deleted", "crc32", fmt.Sprintf("%08X", rom.CRC32), "slot", slot)
	}

	entries, err := store.List(ctx, rom.CRC32)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintf(app.Out, "no states for %s (%08X)\n", rom.Name, rom.CRC32)
		return err
	}

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tSIZE\tSAVED")
	for _, e := range entries {
		slot := fmt.Sprint(e.Slot)
		if e.Slot == savestate.ResumeSlot {
			slot = "resume"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", slot, humanize.IBytes(uint64(e.Size)), humanize.Time(e.SavedAt))
	}
	return w.Flush()
}
