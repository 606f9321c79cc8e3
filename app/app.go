// Package app runs the overlay: it brings the platform up, acquires the
// display layer and redraws the dimming color until the context is done.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dimlayer/dim"
	"dimlayer/gfx"
	"dimlayer/hal"
	"dimlayer/internal/config"
	"dimlayer/internal/logger"
	"dimlayer/layer"
	"dimlayer/service"
)

// FrameInterval is the pause between two frames.
const FrameInterval = 500 * time.Millisecond

type Config struct {
	// ConfigPath locates the settings file on the storage volume.
	ConfigPath string
	Interval   time.Duration
	// Cycles stops the loop after that many frames. Zero runs until ctx is
	// done.
	Cycles int
	Layer  layer.Config
	Tuning hal.Tuning
}

func DefaultConfig() Config {
	return Config{
		ConfigPath: config.DefaultPath,
		Interval:   FrameInterval,
		Layer:      layer.DefaultConfig(),
		Tuning:     hal.DefaultTuning(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ConfigPath == "" {
		c.ConfigPath = d.ConfigPath
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Layer.Width == 0 {
		c.Layer = d.Layer
	}
	if c.Tuning == (hal.Tuning{}) {
		c.Tuning = d.Tuning
	}
	return c
}

// Run starts the services, acquires the layer and runs the frame loop.
//
// Startup failures are returned after whatever was started has been stopped
// again. Otherwise Run returns ctx.Err() once ctx is done, or nil after
// cfg.Cycles frames. Teardown always runs and never fails the call.
func Run(ctx context.Context, h hal.HAL, cfg Config) (err error) {
	cfg = cfg.withDefaults()
	l := logger.L(ctx).Named("app")

	svc := service.New(h, cfg.Tuning)
	if err := svc.Init(ctx); err != nil {
		l.Error("service init failed", zap.Error(err))
		return err
	}
	defer func() { _ = svc.Exit(ctx) }()

	m := layer.New(h.VI(), cfg.Layer)
	defer func() { _ = m.Release(ctx) }()
	defer clearOnPanic(ctx, m, &err)

	if err := m.Acquire(ctx); err != nil {
		l.Error("display acquisition failed", zap.Error(err))
		return err
	}

	r := &runner{
		m:     m,
		dim:   dim.NewController(config.File{FS: svc.Storage(), Path: cfg.ConfigPath}),
		log:   l,
		alpha: -1,
	}
	return r.loop(ctx, cfg)
}

type runner struct {
	m     *layer.Manager
	dim   *dim.Controller
	log   *zap.Logger
	alpha int
}

func (r *runner) loop(ctx context.Context, cfg Config) error {
	t := time.NewTimer(cfg.Interval)
	defer t.Stop()

	for n := 1; r.m.State() == layer.Active; n++ {
		r.frame(ctx)
		if cfg.Cycles > 0 && n >= cfg.Cycles {
			return nil
		}

		t.Reset(cfg.Interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// frame draws one frame. A frame that cannot be drawn is skipped.
func (r *runner) frame(ctx context.Context) {
	s := r.m.BeginFrame()
	if s == nil {
		r.log.Debug("no buffer available, frame skipped")
		return
	}

	alpha := r.dim.SampleDimAlpha(ctx)
	if int(alpha) != r.alpha {
		r.log.Info("dim level", zap.Uint8("alpha", alpha))
		r.alpha = int(alpha)
	}
	s.FillScreenSolid(gfx.Color{A: alpha})

	if err := r.m.EndFrame(ctx); err != nil && ctx.Err() == nil {
		r.log.Debug("frame skipped", zap.Error(err))
	}
}
