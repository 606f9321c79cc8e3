package service

import (
	"context"
	"errors"
	"io/fs"
	"slices"
	"testing"
	"testing/fstest"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"dimlayer/hal"
	"dimlayer/internal/logger"
)

// recorder is a HAL whose services log every call.
type recorder struct {
	calls  []string
	fail   map[string]error
	tuning hal.Tuning
	heap   int
}

func (r *recorder) call(name string) error {
	r.calls = append(r.calls, name)
	return r.fail[name]
}

func (r *recorder) Heap() hal.Heap               { return recHeap{r} }
func (r *recorder) Services() hal.ServiceManager { return recSM{r} }
func (r *recorder) Filesystem() hal.Filesystem   { return recFS{r} }
func (r *recorder) Input() hal.Input             { return recInput{r} }
func (r *recorder) VI() hal.VI                   { return nil }

type recHeap struct{ r *recorder }

func (h recHeap) Initialize(size int) error {
	h.r.heap = size
	return h.r.call("heap.init")
}
func (h recHeap) Exit() error { return h.r.call("heap.exit") }

type recSM struct{ r *recorder }

func (s recSM) Initialize(t hal.Tuning) error {
	s.r.tuning = t
	return s.r.call("sm.init")
}
func (s recSM) Exit() error { return s.r.call("sm.exit") }

type recFS struct{ r *recorder }

func (f recFS) Initialize() error { return f.r.call("fs.init") }
func (f recFS) Exit() error       { return f.r.call("fs.exit") }
func (f recFS) Mount(volume string) (fs.FS, error) {
	if err := f.r.call("fs.mount:" + volume); err != nil {
		return nil, err
	}
	return fstest.MapFS{}, nil
}
func (f recFS) UnmountAll() error { return f.r.call("fs.unmount") }

type recInput struct{ r *recorder }

func (in recInput) Initialize() error { return in.r.call("hid.init") }
func (in recInput) Exit() error       { return in.r.call("hid.exit") }

func TestInitAndExitOrder(t *testing.T) {
	r := &recorder{}
	l := New(r, hal.DefaultTuning())
	ctx := context.Background()

	if err := l.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if l.Storage() == nil {
		t.Fatal("expected a mounted storage volume")
	}
	if r.heap != InnerHeapSize {
		t.Fatalf("expected heap of %#x, got %#x", InnerHeapSize, r.heap)
	}
	if r.tuning != hal.DefaultTuning() {
		t.Fatalf("expected default tuning, got %+v", r.tuning)
	}
	if err := l.Exit(ctx); err != nil {
		t.Fatalf("Exit: %v", err)
	}

	want := []string{
		"heap.init", "sm.init", "fs.init", "fs.mount:sdmc", "hid.init",
		"hid.exit", "fs.unmount", "fs.exit", "sm.exit", "heap.exit",
	}
	if !slices.Equal(r.calls, want) {
		t.Fatalf("expected %v, got %v", want, r.calls)
	}
	if l.Storage() != nil {
		t.Fatal("expected storage to be dropped on exit")
	}
	if err := l.Exit(ctx); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}

func TestInitFailureStopsStartedServices(t *testing.T) {
	mountErr := hal.MakeResult(hal.ModuleFS, 1)
	r := &recorder{fail: map[string]error{"fs.mount:sdmc": mountErr}}
	l := New(r, hal.DefaultTuning())

	err := l.Init(context.Background())
	if !errors.Is(err, mountErr) {
		t.Fatalf("expected %v, got %v", mountErr, err)
	}
	want := []string{"heap.init", "sm.init", "fs.init", "fs.mount:sdmc", "fs.exit", "sm.exit", "heap.exit"}
	if !slices.Equal(r.calls, want) {
		t.Fatalf("expected %v, got %v", want, r.calls)
	}
}

func TestExitContinuesPastFailures(t *testing.T) {
	r := &recorder{fail: map[string]error{
		"hid.exit": hal.ResultNotInitialized,
		"fs.exit":  hal.ResultNotInitialized,
	}}
	l := New(r, hal.DefaultTuning())
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.NewContext(context.Background(), zap.New(core))

	if err := l.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	r.calls = nil

	err := l.Exit(ctx)
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 failures, got %d: %v", got, err)
	}
	want := []string{"hid.exit", "fs.unmount", "fs.exit", "sm.exit", "heap.exit"}
	if !slices.Equal(r.calls, want) {
		t.Fatalf("expected %v, got %v", want, r.calls)
	}
	if got := logs.FilterMessage("exit failed").FilterLevelExact(zapcore.WarnLevel).Len(); got != 2 {
		t.Fatalf("expected 2 warnings, got %d", got)
	}
}

func TestHostLifecycle(t *testing.T) {
	h := hal.NewHost(hal.HostConfig{Storage: fstest.MapFS{"config/dimlayer/config.ini": {Data: []byte("brightness=80\n")}}})
	l := New(h, hal.DefaultTuning())
	ctx := context.Background()
	if err := l.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := fs.ReadFile(l.Storage(), "config/dimlayer/config.ini"); err != nil {
		t.Fatalf("expected settings on the mounted volume: %v", err)
	}
	if err := h.VI().Initialize(hal.ServiceTypeManager); err != nil {
		t.Fatalf("expected the display service to be usable, got %v", err)
	}
	if err := l.Exit(ctx); err != nil {
		t.Fatalf("Exit: %v", err)
	}
}
