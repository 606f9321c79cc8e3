package hal

import (
	"io/fs"
	"os"
	"sync"
	"time"

	"tinygo.org/x/drivers"
)

// HostConfig controls the simulated platform.
type HostConfig struct {
	// Root is the directory backing the "sdmc" storage volume.
	Root string
	// Storage overrides Root with an in-memory volume (tests).
	Storage fs.FS
	// VsyncHz is the refresh rate of the simulated display. Defaults to 60.
	VsyncHz int
	// Faults maps an operation name such as "vi.CreateManagedLayer" to the
	// error that operation returns.
	Faults map[string]error
	// Sink receives every composed screen frame when set.
	Sink drivers.Displayer
}

// Host is a HAL that simulates the platform on a development machine.
type Host struct {
	mu     sync.Mutex
	faults map[string]error

	heap  *hostHeap
	sm    *hostServices
	fs    *hostFS
	input *hostInput
	vi    *hostVI
	scr   *Screen
}

// NewHost returns a host HAL implementation.
func NewHost(cfg HostConfig) *Host {
	if cfg.VsyncHz <= 0 {
		cfg.VsyncHz = 60
	}
	storage := cfg.Storage
	if storage == nil && cfg.Root != "" {
		storage = os.DirFS(cfg.Root)
	}

	h := &Host{faults: make(map[string]error, len(cfg.Faults))}
	for op, err := range cfg.Faults {
		h.faults[op] = err
	}
	h.heap = &hostHeap{h: h}
	h.sm = &hostServices{h: h}
	h.fs = &hostFS{h: h, storage: storage}
	h.input = &hostInput{h: h}
	h.scr = newScreen(ScreenWidth, ScreenHeight, cfg.Sink)
	h.vi = newHostVI(h, time.Second/time.Duration(cfg.VsyncHz))
	return h
}

func (h *Host) Heap() Heap               { return h.heap }
func (h *Host) Services() ServiceManager { return h.sm }
func (h *Host) Filesystem() Filesystem   { return h.fs }
func (h *Host) Input() Input             { return h.input }
func (h *Host) VI() VI                   { return h.vi }

// Screen returns the simulated physical screen.
func (h *Host) Screen() *Screen { return h.scr }

// InjectFault makes op fail with err from now on. A nil err clears the fault.
func (h *Host) InjectFault(op string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.faults, op)
		return
	}
	h.faults[op] = err
}

// ReleaseExternally simulates another process tearing down every display
// resource this process holds. Later release calls report
// ResultAlreadyReleased.
func (h *Host) ReleaseExternally() {
	h.vi.releaseAll()
}

// Live reports the number of display handles currently held.
func (h *Host) Live() int {
	return h.vi.live()
}

func (h *Host) fault(op string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.faults[op]
}

type hostHeap struct {
	h *Host

	mu    sync.Mutex
	arena []byte
	used  int
	live  int
}

func (m *hostHeap) Initialize(size int) error {
	if err := m.h.fault("heap.Initialize"); err != nil {
		return err
	}
	if size <= 0 {
		return ResultBadInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arena = make([]byte, size)
	m.used = 0
	m.live = 0
	return nil
}

func (m *hostHeap) Exit() error {
	if err := m.h.fault("heap.Exit"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.arena == nil {
		return ResultNotInitialized
	}
	m.arena = nil
	return nil
}

// alloc carves n bytes out of the arena. The arena is reset once every
// allocation has been freed.
func (m *hostHeap) alloc(n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.arena == nil {
		return nil, ResultNotInitialized
	}
	if n <= 0 || m.used+n > len(m.arena) {
		return nil, ResultOutOfMemory
	}
	b := m.arena[m.used : m.used+n : m.used+n]
	clear(b)
	m.used += n
	m.live++
	return b, nil
}

func (m *hostHeap) free() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live == 0 {
		return
	}
	m.live--
	if m.live == 0 {
		m.used = 0
	}
}

type hostServices struct {
	h *Host

	mu     sync.Mutex
	open   bool
	tuning Tuning
}

func (s *hostServices) Initialize(t Tuning) error {
	if err := s.h.fault("sm.Initialize"); err != nil {
		return err
	}
	if t.NvTransferMemSize == 0 {
		return ResultBadInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.tuning = t
	return nil
}

func (s *hostServices) Exit() error {
	if err := s.h.fault("sm.Exit"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ResultNotInitialized
	}
	s.open = false
	return nil
}

func (s *hostServices) ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

type hostFS struct {
	h       *Host
	storage fs.FS

	mu      sync.Mutex
	open    bool
	mounted map[string]fs.FS
}

func (f *hostFS) Initialize() error {
	if err := f.h.fault("fs.Initialize"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = true
	f.mounted = make(map[string]fs.FS)
	return nil
}

func (f *hostFS) Exit() error {
	if err := f.h.fault("fs.Exit"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return ResultNotInitialized
	}
	f.open = false
	return nil
}

func (f *hostFS) Mount(volume string) (fs.FS, error) {
	if err := f.h.fault("fs.Mount"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return nil, ResultNotInitialized
	}
	if volume != "sdmc" || f.storage == nil {
		return nil, MakeResult(ModuleFS, 1)
	}
	f.mounted[volume] = f.storage
	return f.storage, nil
}

func (f *hostFS) UnmountAll() error {
	if err := f.h.fault("fs.UnmountAll"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.mounted)
	return nil
}

type hostInput struct {
	h *Host

	mu   sync.Mutex
	open bool
}

func (in *hostInput) Initialize() error {
	if err := in.h.fault("hid.Initialize"); err != nil {
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.open = true
	return nil
}

func (in *hostInput) Exit() error {
	if err := in.h.fault("hid.Exit"); err != nil {
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.open {
		return ResultNotInitialized
	}
	in.open = false
	return nil
}

func (in *hostInput) ready() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.open
}
