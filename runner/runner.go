// Package runner drives an emulator on its own goroutine, optionally paced
// to the hardware refresh rate.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	emucore "github.com/user-none/egba/api"
	"github.com/user-none/egba/session"
)

// Stepper runs one frame per call. *session.Emulator implements it.
type Stepper interface {
	RunFrame(keys emucore.KeyState) (session.FrameBuffer, error)
}

// Options configures Loop. All fields are optional.
type Options struct {
	// Input returns the keys for a frame. When nil, Keys is read instead.
	Input func(frame uint64) emucore.KeyState
	Keys  *SharedKeys

	Frame   *SharedFrame
	Control *Control

	// Realtime paces frames to FPS with a ticker.
	Realtime bool
	FPS      float64

	// MaxFrames stops the loop after that many frames. Zero runs until
	// ctx ends or Control.Stop is called.
	MaxFrames uint64

	// OnFrame is called after every frame. A non-nil error stops the loop
	// and is returned by Loop.
	OnFrame func(frame uint64, fb session.FrameBuffer) error

	Logger *slog.Logger
}

// Loop runs frames until MaxFrames, a stop request, cancellation of ctx
// or an error. It returns the number of frames run. Cancellation and
// stop requests are not errors.
func Loop(ctx context.Context, emu Stepper, opts Options) (uint64, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var tick <-chan time.Time
	if opts.Realtime {
		if opts.FPS <= 0 {
			return 0, fmt.Errorf("realtime pacing needs a positive FPS, got %v", opts.FPS)
		}
		ticker := time.NewTicker(time.Duration(float64(time.Second) / opts.FPS))
		defer ticker.Stop()
		tick = ticker.C
	}

	logger.Debug("emulation loop started", "realtime", opts.Realtime, "max_frames", opts.MaxFrames)
	var frame uint64
	for opts.MaxFrames == 0 || frame < opts.MaxFrames {
		if ctx.Err() != nil {
			break
		}
		if opts.Control != nil && !opts.Control.checkPause(ctx) {
			break
		}
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				logger.Debug("emulation loop cancelled", "frames", frame)
				return frame, nil
			}
		}

		var keys emucore.KeyState
		switch {
		case opts.Input != nil:
			keys = opts.Input(frame)
		case opts.Keys != nil:
			keys = opts.Keys.Read()
		}

		fb, err := emu.RunFrame(keys)
		if err != nil {
			logger.Error("emulation loop stopped", "frame", frame, "error", err)
			return frame, err
		}
		frame++

		if opts.Frame != nil {
			opts.Frame.Update(frame, fb)
		}
		if opts.OnFrame != nil {
			if err := opts.OnFrame(frame, fb); err != nil {
				return frame, err
			}
		}
	}
	logger.Debug("emulation loop finished", "frames", frame)
	return frame, nil
}
