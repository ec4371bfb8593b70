package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	emucore "github.com/user-none/egba/api"
	"github.com/user-none/egba/gba"
	"github.com/user-none/egba/runner"
	"github.com/user-none/egba/savestate"
	"github.com/user-none/egba/screenshot"
	"github.com/user-none/egba/session"
	"github.com/user-none/egba/storage"
)

type RunCmd struct {
	ROM  string `arg:"" help:"ROM file, plain or inside a zip, 7z, gzip, tar.gz or rar archive." type:"existingfile"`
	BIOS string `help:"BIOS image. Defaults to the bios entry of config.yaml." type:"existingfile"`

	Frames uint64   `short:"f" default:"600" help:"Frames to run. 0 runs until interrupted."`
	Keys   []string `short:"k" sep:"none" placeholder:"FRAME=KEYS" help:"Hold KEYS (e.g. A+Start) from FRAME until the next entry. Repeatable."`
	Fast   bool     `help:"Run as fast as possible even when run.realtime is set in config.yaml."`

	Screenshot string `help:"Write the last frame as PNG to this path, or to the screenshot directory when set to 'auto'." placeholder:"PATH"`
	Scale      int    `help:"Screenshot scale factor. Defaults to screenshot.scale in config.yaml."`

	LoadSlot int  `default:"-1" help:"Load the state in this slot before running. -1 loads nothing." placeholder:"SLOT"`
	SaveSlot int  `default:"-1" help:"Save the state into this slot after running. -1 saves nothing." placeholder:"SLOT"`
	Resume   bool `help:"Start from the resume state if one exists and store it again on exit."`
	Rewind   int  `help:"Rewind this many captured states after running."`
	Dump     bool `help:"Log the machine state after running."`
}

func (r *RunCmd) Validate() error {
	for _, slot := range []int{r.LoadSlot, r.SaveSlot} {
		if slot < -1 || slot >= savestate.SlotCount {
			return fmt.Errorf("slot %d out of range 0-%d", slot, savestate.SlotCount-1)
		}
	}
	if r.Scale < 0 || r.Scale > 8 {
		return fmt.Errorf("scale %d out of range 1-8", r.Scale)
	}
	if r.Rewind < 0 {
		return fmt.Errorf("rewind count must not be negative")
	}
	if _, err := parseKeyScript(r.Keys); err != nil {
		return err
	}
	return nil
}

func (r *RunCmd) Run(app *App) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bios, err := loadBIOS(app, r.BIOS, false)
	if err != nil {
		return err
	}
	rom, err := loadROM(r.ROM)
	if err != nil {
		return err
	}
	script, err := parseKeyScript(r.Keys)
	if err != nil {
		return err
	}

	opts := []session.Option{session.WithLogger(app.Logger)}
	if app.Config.Battery.Enabled {
		dir, err := storage.GetSavesDir()
		if err != nil {
			return err
		}
		opts = append(opts, session.WithBackupDir(dir))
	}
	session.Init(gba.Factory{}, opts...)
	defer session.Shutdown()

	emu := session.NewEmulator(nil)
	if err := emu.Open(bios.Data, rom.Data, saveName(rom)); err != nil {
		return err
	}
	defer emu.Close()
	app.Logger.Info("rom loaded", "name", rom.Name, "crc32", fmt.Sprintf("%08X", rom.CRC32), "size", len(rom.Data))

	statesPath, err := storage.GetStatesPath()
	if err != nil {
		return err
	}
	store, err := savestate.Open(ctx, statesPath)
	if err != nil {
		return err
	}
	defer store.Close()
	states := savestate.NewManager(store, rom.CRC32)

	if r.Resume && states.HasResume(ctx) {
		if err := states.LoadResume(ctx, emu); err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		app.Logger.Info("resumed from saved state")
	}
	if r.LoadSlot >= 0 {
		if err := states.SetSlot(r.LoadSlot); err != nil {
			return err
		}
		if err := states.Load(ctx, emu); err != nil {
			return err
		}
		app.Logger.Info("state loaded", "slot", r.LoadSlot)
	}

	rewind, err := r.rewindBuffer(app)
	if err != nil {
		return err
	}

	var last emucore.KeyState
	frames, err := runner.Loop(ctx, emu, runner.Options{
		Input: func(frame uint64) emucore.KeyState {
			last = script.At(frame)
			return last
		},
		Realtime:  app.Config.Run.Realtime && !r.Fast,
		FPS:       gba.FPS,
		MaxFrames: r.Frames,
		OnFrame: func(uint64, session.FrameBuffer) error {
			if rewind == nil {
				return nil
			}
			return rewind.Capture(emu)
		},
		Logger: app.Logger,
	})
	if err != nil {
		return err
	}

	if rewind != nil && r.Rewind > 0 {
		ok, err := rewind.Rewind(emu, r.Rewind)
		if err != nil {
			return err
		}
		if ok {
			// states carry no pixels; redraw from the restored machine
			if _, err := emu.RunFrame(last); err != nil {
				return err
			}
			app.Logger.Info("rewound", "states", r.Rewind, "left", rewind.Len())
		}
	}

	if r.SaveSlot >= 0 {
		if err := states.SetSlot(r.SaveSlot); err != nil {
			return err
		}
		if err := states.Save(ctx, emu); err != nil {
			return err
		}
		app.Logger.Info("state saved", "slot", r.SaveSlot)
	}
	if r.Resume {
		if err := states.SaveResume(ctx, emu); err != nil {
			return fmt.Errorf("resume: %w", err)
		}
	}

	if r.Dump {
		emu.Log()
	}

	fb := emu.FrameBuffer()
	if r.Screenshot != "" {
		path, err := r.saveScreenshot(app, rom.CRC32, fb)
		if err != nil {
			return err
		}
		app.Logger.Info("screenshot saved", "path", path)
	}

	_, err = fmt.Fprintf(app.Out, "%s: %d frames, frame digest %08X\n", rom.Name, frames, screenshot.Digest(fb))
	return err
}

// rewindBuffer returns nil when rewind is neither configured nor requested.
func (r *RunCmd) rewindBuffer(app *App) (*savestate.RewindBuffer, error) {
	cfg := app.Config.Rewind
	if !cfg.Enabled && r.Rewind == 0 {
		return nil, nil
	}
	rb, err := savestate.NewRewindBuffer(cfg.BufferSizeMB, cfg.FrameStep)
	if err != nil {
		return nil, err
	}
	app.Logger.Debug("rewind enabled", "budget_mb", cfg.BufferSizeMB, "frame_step", cfg.FrameStep)
	return rb, nil
}

func (r *RunCmd) saveScreenshot(app *App, gameCRC uint32, fb session.FrameBuffer) (string, error) {
	scale := r.Scale
	if scale == 0 {
		scale = app.Config.Screenshot.Scale
	}
	if r.Screenshot == "auto" {
		return screenshot.SaveForGame(gameCRC, fb, session.ScreenWidth, session.ScreenHeight, scale)
	}
	return r.Screenshot, screenshot.Save(r.Screenshot, fb, session.ScreenWidth, session.ScreenHeight, scale)
}
