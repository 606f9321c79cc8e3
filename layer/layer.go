// Package layer owns the overlay's display layer: the display service
// session, the layer itself, its window and the framebuffer drawn into.
package layer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"dimlayer/gfx"
	"dimlayer/hal"
	"dimlayer/internal/logger"
)

var (
	ErrBusy    = errors.New("layer: manager is not idle")
	ErrNoFrame = errors.New("layer: no frame in progress")
)

// State is the lifecycle state of a Manager.
type State int

const (
	Uninitialized State = iota
	Acquiring
	Active
	TearingDown
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Acquiring:
		return "acquiring"
	case Active:
		return "active"
	case TearingDown:
		return "tearing-down"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Placement is where the layer sits on screen.
type Placement struct {
	X, Y    float32
	Width   int
	Height  int
	Scaling hal.ScalingMode
	Z       int32
	// Stacks lists the presentation contexts the layer is shown in.
	Stacks []hal.LayerStack
}

// OverlayZ puts the layer above application content.
const OverlayZ = 250

// DefaultPlacement covers the whole screen, above applications, and is
// visible in normal output and in screenshots only.
func DefaultPlacement() Placement {
	return Placement{
		Width:   hal.ScreenWidth,
		Height:  hal.ScreenHeight,
		Scaling: hal.ScalingFitToLayer,
		Z:       OverlayZ,
		Stacks:  []hal.LayerStack{hal.LayerStackDefault, hal.LayerStackScreenshot},
	}
}

// Config describes the layer and framebuffer to acquire.
type Config struct {
	Service   hal.ServiceType
	Placement Placement
	Width     int
	Height    int
	Format    hal.PixelFormat
	Buffers   int
}

func DefaultConfig() Config {
	return Config{
		Service:   hal.ServiceTypeManager,
		Placement: DefaultPlacement(),
		Width:     gfx.FramebufferWidth,
		Height:    gfx.FramebufferHeight,
		Format:    hal.PixelFormatRGBA4444,
		Buffers:   2,
	}
}

// StepError reports which acquisition step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return "layer: " + e.Step + ": " + e.Err.Error() }
func (e *StepError) Unwrap() error { return e.Err }

// Manager holds every display handle of the overlay. A Manager is used by a
// single goroutine.
type Manager struct {
	vi  hal.VI
	cfg Config

	state State

	session   bool
	display   *hal.Display
	vsync     hal.Event
	layerID   *hal.LayerID
	layer     hal.Layer
	layerOpen bool
	window    hal.Window
	fb        hal.Framebuffer
	surface   *gfx.Surface
}

func New(vi hal.VI, cfg Config) *Manager {
	return &Manager{vi: vi, cfg: cfg}
}

func (m *Manager) State() State         { return m.state }
func (m *Manager) Placement() Placement { return m.cfg.Placement }

type step struct {
	name string
	fn   func() error
}

func (m *Manager) acquireSteps() []step {
	p := m.cfg.Placement
	steps := []step{
		{"open display service", func() error {
			if err := m.vi.Initialize(m.cfg.Service); err != nil {
				return err
			}
			m.session = true
			return nil
		}},
		{"open default display", func() error {
			d, err := m.vi.OpenDefaultDisplay()
			if err != nil {
				return err
			}
			m.display = &d
			return nil
		}},
		{"get vsync event", func() error {
			ev, err := m.vi.DisplayVsyncEvent(*m.display)
			if err != nil {
				return err
			}
			m.vsync = ev
			return nil
		}},
		{"set display alpha", func() error {
			return m.vi.SetDisplayAlpha(*m.display, 1.0)
		}},
		{"create managed layer", func() error {
			id, err := m.vi.CreateManagedLayer(*m.display, 0, 0)
			if err != nil {
				return err
			}
			m.layerID = &id
			return nil
		}},
		{"open layer", func() error {
			l, err := m.vi.OpenLayer(*m.display, *m.layerID)
			if err != nil {
				return err
			}
			m.layer = l
			m.layerOpen = true
			return nil
		}},
		{"set scaling mode", func() error {
			return m.vi.SetLayerScalingMode(m.layer, p.Scaling)
		}},
		{"set z order", func() error {
			return m.vi.SetLayerZ(m.layer, p.Z)
		}},
	}
	for _, s := range p.Stacks {
		s := s
		steps = append(steps, step{"add to " + s.String() + " stack", func() error {
			return m.vi.AddToLayerStack(m.layer, s)
		}})
	}
	return append(steps,
		step{"set layer size", func() error {
			return m.vi.SetLayerSize(m.layer, p.Width, p.Height)
		}},
		step{"set layer position", func() error {
			return m.vi.SetLayerPosition(m.layer, p.X, p.Y)
		}},
		step{"create window", func() error {
			w, err := m.vi.CreateWindow(m.layer)
			if err != nil {
				return err
			}
			m.window = w
			return nil
		}},
		step{"create framebuffer", func() error {
			fb, err := m.vi.CreateFramebuffer(m.window, m.cfg.Width, m.cfg.Height, m.cfg.Format, m.cfg.Buffers)
			if err != nil {
				return err
			}
			m.fb = fb
			return nil
		}},
	)
}

// Acquire obtains the display layer and its framebuffer. On failure every
// handle obtained so far is released again and a *StepError naming the
// failed step is returned.
func (m *Manager) Acquire(ctx context.Context) error {
	if m.state != Uninitialized {
		return ErrBusy
	}
	l := logger.L(ctx).Named("layer")
	m.state = Acquiring

	for _, s := range m.acquireSteps() {
		l.Info("acquire", zap.String("step", s.name))
		if err := s.fn(); err != nil {
			serr := &StepError{Step: s.name, Err: err}
			l.Error("acquire failed", zap.String("step", s.name), zap.Error(err))
			_ = m.release(ctx)
			return serr
		}
	}

	m.state = Active
	l.Info("layer active",
		zap.Int32("z", m.cfg.Placement.Z),
		zap.Int("width", m.cfg.Width),
		zap.Int("height", m.cfg.Height))
	return nil
}

// BeginFrame returns the surface to draw the next frame into, or nil when
// no buffer is available. It never blocks.
func (m *Manager) BeginFrame() *gfx.Surface {
	if m.state != Active || m.fb == nil {
		return nil
	}
	if m.surface != nil {
		return m.surface
	}
	buf := m.fb.Begin()
	if buf == nil {
		return nil
	}
	m.surface = gfx.NewSurface(buf, m.cfg.Width, m.cfg.Height)
	return m.surface
}

// EndFrame waits for the next vertical blank and presents the frame. The
// wait has no timeout; only ctx cancellation interrupts it. If the wait
// fails the frame stays open and the next BeginFrame returns it again.
func (m *Manager) EndFrame(ctx context.Context) error {
	if m.surface == nil {
		return ErrNoFrame
	}
	if err := m.vsync.Wait(ctx); err != nil {
		return fmt.Errorf("layer: wait vsync: %w", err)
	}
	m.surface.Detach()
	m.surface = nil
	if err := m.fb.End(); err != nil {
		return fmt.Errorf("layer: present: %w", err)
	}
	return nil
}

// Release gives back every handle in reverse acquisition order: framebuffer,
// window, layer handle, managed layer, display, vsync event and finally the
// display service session. Failures are logged and do not stop the remaining
// steps; the combined error is informational only. Releasing an idle Manager
// does nothing.
func (m *Manager) Release(ctx context.Context) error {
	if m.state == Uninitialized {
		return nil
	}
	return m.release(ctx)
}

func (m *Manager) release(ctx context.Context) error {
	l := logger.L(ctx).Named("layer")
	m.state = TearingDown

	if m.surface != nil {
		m.surface.Detach()
		m.surface = nil
	}

	var errs error
	run := func(name string, held bool, fn func() error) {
		if !held {
			return
		}
		if err := fn(); err != nil {
			l.Warn("release failed", zap.String("step", name), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		l.Debug("released", zap.String("step", name))
	}

	run("close framebuffer", m.fb != nil, func() error { return m.fb.Close() })
	run("close window", m.window != nil, func() error { return m.window.Close() })
	run("close layer", m.layerOpen, func() error { return m.vi.CloseLayer(m.layer) })
	run("destroy managed layer", m.layerID != nil, func() error { return m.vi.DestroyManagedLayer(*m.layerID) })
	run("close display", m.display != nil, func() error { return m.vi.CloseDisplay(*m.display) })
	run("close vsync event", m.vsync != nil, func() error { return m.vsync.Close() })
	run("close display service", m.session, m.vi.Exit)

	m.fb = nil
	m.window = nil
	m.layerID = nil
	m.layer = hal.Layer{}
	m.layerOpen = false
	m.display = nil
	m.vsync = nil
	m.session = false
	m.state = Uninitialized
	return errs
}
