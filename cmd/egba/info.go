package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/user-none/egba/gba"
	"github.com/user-none/egba/rdb"
)

type InfoCmd struct {
	ROM string `arg:"" help:"ROM file, plain or archived." type:"existingfile"`
	DB  string `help:"RetroArch game database (.rdb) to look the cartridge up in. Defaults to gameDB in config.yaml." type:"existingfile"`
}

func (c *InfoCmd) Run(app *App) error {
	img, err := loadROM(c.ROM)
	if err != nil {
		return err
	}
	cart, err := gba.LoadCartridge(img.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", img.Name, err)
	}

	game, err := c.lookup(app, cart)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	h := cart.Header
	fmt.Fprintf(w, "File:\t%s\n", img.Name)
	if game != nil {
		fmt.Fprintf(w, "Name:\t%s\n", game.Name)
	}
	fmt.Fprintf(w, "Title:\t%s\n", h.Title)
	fmt.Fprintf(w, "Game code:\t%s\n", h.GameCode)
	fmt.Fprintf(w, "Maker code:\t%s\n", h.MakerCode)
	fmt.Fprintf(w, "Version:\t%d\n", h.Version)
	fmt.Fprintf(w, "Unit code:\t0x%02X\n", h.UnitCode)
	fmt.Fprintf(w, "Device type:\t0x%02X\n", h.DeviceType)
	fmt.Fprintf(w, "Size:\t%s (%d bytes)\n", humanize.IBytes(uint64(len(cart.ROM))), len(cart.ROM))
	fmt.Fprintf(w, "CRC32:\t%08X\n", cart.CRC32)
	fmt.Fprintf(w, "Backup:\t%s (%s)\n", cart.Backup, humanize.IBytes(uint64(cart.Backup.Size())))
	return w.Flush()
}

// lookup finds the cartridge in the game database, by CRC first and then
// by game code. No configured database is not an error.
func (c *InfoCmd) lookup(app *App, cart *gba.Cartridge) (*rdb.Game, error) {
	path := c.DB
	if path == "" {
		path = app.Config.GameDB
	}
	if path == "" {
		return nil, nil
	}
	db, err := rdb.Load(path)
	if err != nil {
		return nil, err
	}
	game := db.FindByCRC32(cart.CRC32)
	if game == nil {
		game = db.FindByGameCode(cart.Header.GameCode)
	}
	if game == nil {
		app.Logger.Debug("cartridge not in game database", "db", path, "crc32", fmt.Sprintf("%08X", cart.CRC32))
	}
	return game, nil
}
