package app

import (
	"context"
	"errors"
	"image/color"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"dimlayer/hal"
	"dimlayer/internal/config"
	"dimlayer/internal/logger"
	"dimlayer/layer"
)

func settings(ini string) fstest.MapFS {
	return fstest.MapFS{config.DefaultPath: {Data: []byte(ini)}}
}

func testConfig(cycles int) Config {
	cfg := DefaultConfig()
	cfg.Interval = time.Millisecond
	cfg.Cycles = cycles
	return cfg
}

func observed() (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.NewContext(context.Background(), zap.New(core)), logs
}

func TestRunPresentsConfiguredAlpha(t *testing.T) {
	h := hal.NewHost(hal.HostConfig{Storage: settings("brightness=80\n"), VsyncHz: 240})
	ctx, logs := observed()

	if err := Run(ctx, h, testConfig(3)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := h.Screen().Presents(); got != 3 {
		t.Fatalf("expected 3 presents, got %d", got)
	}
	// Alpha 3 of 15 is 51/255 black over the white desktop.
	want := color.RGBA{R: 204, G: 204, B: 204, A: 0xFF}
	if got := h.Screen().Pixel(960, 540); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}

	changes := logs.FilterMessage("dim level").All()
	if len(changes) != 1 || changes[0].ContextMap()["alpha"] != uint8(3) {
		t.Fatalf("expected one alpha change to 3, got %v", changes)
	}
	if got := h.Live(); got != 0 {
		t.Fatalf("expected display released, got %d live handles", got)
	}
}

func TestRunMissingConfigDoesNotDim(t *testing.T) {
	h := hal.NewHost(hal.HostConfig{Storage: fstest.MapFS{}, VsyncHz: 240})

	if err := Run(context.Background(), h, testConfig(3)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := h.Screen().Presents(); got != 3 {
		t.Fatalf("expected 3 presents, got %d", got)
	}
	if got := h.Screen().Pixel(100, 100); got != hal.DesktopColor {
		t.Fatalf("expected undimmed screen, got %v", got)
	}
}

func TestRunAcquireFailureIsFatal(t *testing.T) {
	fault := hal.MakeResult(hal.ModuleVI, 6)
	h := hal.NewHost(hal.HostConfig{
		Storage: settings("brightness=0\n"),
		Faults:  map[string]error{"vi.CreateManagedLayer": fault},
	})
	ctx, logs := observed()

	err := Run(ctx, h, testConfig(0))
	var serr *layer.StepError
	if !errors.As(err, &serr) || serr.Step != "create managed layer" {
		t.Fatalf("expected create managed layer StepError, got %v", err)
	}
	if !errors.Is(err, fault) {
		t.Fatalf("expected %v in chain, got %v", fault, err)
	}
	if got := h.Screen().Presents(); got != 0 {
		t.Fatalf("expected no frame loop, got %d presents", got)
	}
	if got := h.Live(); got != 0 {
		t.Fatalf("expected no leaked handles, got %d", got)
	}
	if logs.FilterMessage("display acquisition failed").Len() != 1 {
		t.Fatal("expected the failure to be logged")
	}
	if logs.FilterMessage("stopped").Len() != 5 {
		t.Fatal("expected every service to be stopped")
	}
}

func TestRunServiceFailure(t *testing.T) {
	fault := hal.MakeResult(hal.ModuleFS, 1)
	h := hal.NewHost(hal.HostConfig{Storage: fstest.MapFS{}, Faults: map[string]error{"fs.Mount": fault}})

	if err := Run(context.Background(), h, testConfig(0)); !errors.Is(err, fault) {
		t.Fatalf("expected %v, got %v", fault, err)
	}
	if got := h.Screen().Presents(); got != 0 {
		t.Fatalf("expected no presents, got %d", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := hal.NewHost(hal.HostConfig{Storage: settings("[overlay]\nalpha=15\n"), VsyncHz: 240})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig(0)
	cfg.Interval = 5 * time.Millisecond
	done := make(chan error, 1)
	go func() { done <- Run(ctx, h, cfg) }()

	deadline := time.Now().Add(5 * time.Second)
	for h.Screen().Presents() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for frames")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := h.Live(); got != 0 {
		t.Fatalf("expected display released, got %d live handles", got)
	}
}

// panicSink panics on its first flush.
type panicSink struct {
	flushes atomic.Int32
}

func (s *panicSink) Size() (int16, int16)              { return 16, 9 }
func (s *panicSink) SetPixel(x, y int16, c color.RGBA) {}
func (s *panicSink) Display() error {
	if s.flushes.Add(1) == 1 {
		panic("sink failure")
	}
	return nil
}

func TestRunPanicClearsOverlay(t *testing.T) {
	sink := &panicSink{}
	h := hal.NewHost(hal.HostConfig{Storage: settings("brightness=0\n"), VsyncHz: 240, Sink: sink})
	ctx, logs := observed()

	err := Run(ctx, h, testConfig(0))
	if !errors.Is(err, ErrPanic) {
		t.Fatalf("expected ErrPanic, got %v", err)
	}
	if logs.FilterMessage("panic").Len() != 1 {
		t.Fatal("expected the panic to be logged")
	}
	if got := h.Screen().Pixel(10, 10); got != hal.DesktopColor {
		t.Fatalf("expected the overlay to be cleared, got %v", got)
	}
	if got := h.Live(); got != 0 {
		t.Fatalf("expected display released, got %d live handles", got)
	}
}
