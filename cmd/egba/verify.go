package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	emucore "github.com/user-none/egba/api"
	"github.com/user-none/egba/gba"
	"github.com/user-none/egba/internal/testrom"
	"github.com/user-none/egba/screenshot"
	"github.com/user-none/egba/session"
)

type VerifyCmd struct {
	ROM  string `arg:"" optional:"" help:"ROM file. The built-in test pattern is used when omitted." type:"existingfile"`
	BIOS string `help:"BIOS image. Falls back to config.yaml, then to the built-in test BIOS." type:"existingfile"`

	Sessions int `short:"n" default:"4" help:"Sessions to run concurrently."`
	Frames   int `short:"f" default:"120" help:"Frames per session."`
}

func (v *VerifyCmd) Validate() error {
	if v.Sessions < 2 {
		return fmt.Errorf("at least two sessions are needed to compare, got %d", v.Sessions)
	}
	if v.Frames < 2 {
		return fmt.Errorf("at least two frames are needed, got %d", v.Frames)
	}
	return nil
}

func (v *VerifyCmd) Run(app *App) error {
	bios, err := loadBIOS(app, v.BIOS, true)
	if err != nil {
		return err
	}
	rom := builtinImage("pattern.gba", testrom.Pattern())
	if v.ROM != "" {
		if rom, err = loadROM(v.ROM); err != nil {
			return err
		}
	}

	engine := session.NewEngine(gba.Factory{}, session.WithLogger(app.Logger))
	defer engine.Shutdown()

	digest, err := verify(context.Background(), engine, bios.Data, rom.Data, v.Sessions, v.Frames, app.Logger)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(app.Out, "ok: %s, %d sessions x %d frames, final digest %08X\n", rom.Name, v.Sessions, v.Frames, digest)
	return err
}

// verifyKeys is the input applied on frame i. It walks through many key
// combinations so input handling takes part in the comparison.
func verifyKeys(i int) emucore.KeyState {
	return emucore.KeyState(i*37) & emucore.KeyMask
}

// verify runs sessions copies of rom side by side on engine and checks
// that every frame matches across them. It then checks that a state saved
// halfway replays the second half identically, both in the session that
// saved it and in a fresh one. The digest of the last frame is returned.
func verify(ctx context.Context, engine *session.Engine, bios, rom []byte, sessions, frames int, logger *slog.Logger) (uint32, error) {
	digests := make([][]uint32, sessions)
	g, ctx := errgroup.WithContext(ctx)
	for i := range digests {
		g.Go(func() error {
			d, err := runDigests(ctx, engine, bios, rom, 0, frames)
			if err != nil {
				return fmt.Errorf("session %d: %w", i, err)
			}
			digests[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	for i := 1; i < sessions; i++ {
		for f := range digests[0] {
			if digests[i][f] != digests[0][f] {
				return 0, fmt.Errorf("session %d diverges from session 0 at frame %d", i, f)
			}
		}
	}
	logger.Debug("sessions agree", "sessions", sessions, "frames", frames)

	if err := verifyRoundTrip(engine, bios, rom, frames, digests[0]); err != nil {
		return 0, err
	}
	logger.Debug("save state round trips agree")

	return digests[0][frames-1], nil
}

func runDigests(ctx context.Context, engine *session.Engine, bios, rom []byte, from, to int) ([]uint32, error) {
	emu := session.NewEmulator(engine)
	if err := emu.Open(bios, rom, ""); err != nil {
		return nil, err
	}
	defer emu.Close()

	out := make([]uint32, 0, to-from)
	for f := from; f < to; f++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fb, err := emu.RunFrame(verifyKeys(f))
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", f, err)
		}
		out = append(out, screenshot.Digest(fb))
	}
	return out, nil
}

func verifyRoundTrip(engine *session.Engine, bios, rom []byte, frames int, want []uint32) error {
	half := frames / 2

	a := session.NewEmulator(engine)
	if err := a.Open(bios, rom, ""); err != nil {
		return err
	}
	defer a.Close()
	for f := 0; f < half; f++ {
		if _, err := a.RunFrame(verifyKeys(f)); err != nil {
			return err
		}
	}
	blob, err := a.SaveState()
	if err != nil {
		return err
	}

	// run past the save point so the restore has something to undo
	if err := replay(a, half, frames, want, "same session, first pass"); err != nil {
		return err
	}
	if err := a.LoadState(blob); err != nil {
		return err
	}
	if err := replay(a, half, frames, want, "same session after load"); err != nil {
		return err
	}

	b := session.NewEmulator(engine)
	if err := b.Open(bios, rom, ""); err != nil {
		return err
	}
	defer b.Close()
	if err := b.LoadState(blob); err != nil {
		return err
	}
	return replay(b, half, frames, want, "fresh session after load")
}

func replay(emu *session.Emulator, from, to int, want []uint32, what string) error {
	for f := from; f < to; f++ {
		fb, err := emu.RunFrame(verifyKeys(f))
		if err != nil {
			return fmt.Errorf("%s: frame %d: %w", what, f, err)
		}
		if d := screenshot.Digest(fb); d != want[f] {
			return fmt.Errorf("%s: frame %d digest %08X, want %08X", what, f, d, want[f])
		}
	}
	return nil
}
