package hal

import (
	"context"
	"sync"
	"time"

	"dimlayer/gfx"
)

type hostLayer struct {
	id      LayerID
	display uint64
	opened  bool
	scaling ScalingMode
	z       int32
	stacks  map[LayerStack]bool
	x, y    float32
	w, h    int
	fb      *hostFramebuffer
}

type hostWindow struct {
	vi    *hostVI
	layer LayerID
}

func (w *hostWindow) Close() error { return w.vi.closeWindow(w) }

type hostVI struct {
	h     *Host
	vsync time.Duration

	mu       sync.Mutex
	open     bool
	nextID   uint64
	alpha    float32
	displays map[uint64]bool
	events   map[*vsyncEvent]struct{}
	layers   map[LayerID]*hostLayer
	windows  map[*hostWindow]struct{}
	fbs      map[*hostFramebuffer]struct{}
}

func newHostVI(h *Host, vsync time.Duration) *hostVI {
	v := &hostVI{
		h:        h,
		vsync:    vsync,
		displays: make(map[uint64]bool),
		events:   make(map[*vsyncEvent]struct{}),
		layers:   make(map[LayerID]*hostLayer),
		windows:  make(map[*hostWindow]struct{}),
		fbs:      make(map[*hostFramebuffer]struct{}),
	}
	h.scr.source = v.snapshotLayers
	return v
}

func (v *hostVI) Initialize(t ServiceType) error {
	if err := v.h.fault("vi.Initialize"); err != nil {
		return err
	}
	if !v.h.sm.ready() || !v.h.input.ready() {
		return ResultNotInitialized
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.open = true
	return nil
}

func (v *hostVI) Exit() error {
	if err := v.h.fault("vi.Exit"); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.open {
		return ResultAlreadyReleased
	}
	v.open = false
	return nil
}

func (v *hostVI) OpenDefaultDisplay() (Display, error) {
	if err := v.h.fault("vi.OpenDefaultDisplay"); err != nil {
		return Display{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.open {
		return Display{}, ResultNotInitialized
	}
	v.nextID++
	v.displays[v.nextID] = true
	return Display{ID: v.nextID, Name: "Default"}, nil
}

func (v *hostVI) CloseDisplay(d Display) error {
	if err := v.h.fault("vi.CloseDisplay"); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.displays[d.ID] {
		return ResultAlreadyReleased
	}
	delete(v.displays, d.ID)
	return nil
}

func (v *hostVI) DisplayVsyncEvent(d Display) (Event, error) {
	if err := v.h.fault("vi.DisplayVsyncEvent"); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.displays[d.ID] {
		return nil, ResultInvalidHandle
	}
	ev := newVsyncEvent(v, v.vsync)
	v.events[ev] = struct{}{}
	return ev, nil
}

func (v *hostVI) SetDisplayAlpha(d Display, alpha float32) error {
	if err := v.h.fault("vi.SetDisplayAlpha"); err != nil {
		return err
	}
	if alpha < 0 || alpha > 1 {
		return ResultBadInput
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.displays[d.ID] {
		return ResultInvalidHandle
	}
	v.alpha = alpha
	return nil
}

func (v *hostVI) CreateManagedLayer(d Display, flags LayerFlags, aruid uint64) (LayerID, error) {
	if err := v.h.fault("vi.CreateManagedLayer"); err != nil {
		return 0, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.displays[d.ID] {
		return 0, ResultInvalidHandle
	}
	v.nextID++
	id := LayerID(v.nextID)
	v.layers[id] = &hostLayer{
		id:      id,
		display: d.ID,
		stacks:  make(map[LayerStack]bool),
	}
	return id, nil
}

func (v *hostVI) DestroyManagedLayer(id LayerID) error {
	if err := v.h.fault("vi.DestroyManagedLayer"); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.layers[id]; !ok {
		return ResultAlreadyReleased
	}
	delete(v.layers, id)
	return nil
}

func (v *hostVI) OpenLayer(d Display, id LayerID) (Layer, error) {
	if err := v.h.fault("vi.OpenLayer"); err != nil {
		return Layer{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.layers[id]
	if !ok || l.display != d.ID {
		return Layer{}, ResultNotFound
	}
	l.opened = true
	return Layer{ID: id, Display: d.ID}, nil
}

func (v *hostVI) CloseLayer(l Layer) error {
	if err := v.h.fault("vi.CloseLayer"); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	hl, ok := v.layers[l.ID]
	if !ok || !hl.opened {
		return ResultAlreadyReleased
	}
	hl.opened = false
	return nil
}

// withLayer runs fn on an opened layer under the service lock.
func (v *hostVI) withLayer(op string, l Layer, fn func(*hostLayer) error) error {
	if err := v.h.fault(op); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	hl, ok := v.layers[l.ID]
	if !ok || !hl.opened {
		return ResultInvalidHandle
	}
	return fn(hl)
}

func (v *hostVI) SetLayerScalingMode(l Layer, mode ScalingMode) error {
	return v.withLayer("vi.SetLayerScalingMode", l, func(hl *hostLayer) error {
		hl.scaling = mode
		return nil
	})
}

func (v *hostVI) SetLayerZ(l Layer, z int32) error {
	return v.withLayer("vi.SetLayerZ", l, func(hl *hostLayer) error {
		hl.z = z
		return nil
	})
}

func (v *hostVI) AddToLayerStack(l Layer, stack LayerStack) error {
	return v.withLayer("vi.AddToLayerStack", l, func(hl *hostLayer) error {
		hl.stacks[stack] = true
		return nil
	})
}

func (v *hostVI) SetLayerSize(l Layer, width, height int) error {
	return v.withLayer("vi.SetLayerSize", l, func(hl *hostLayer) error {
		if width <= 0 || height <= 0 {
			return ResultBadInput
		}
		hl.w, hl.h = width, height
		return nil
	})
}

func (v *hostVI) SetLayerPosition(l Layer, x, y float32) error {
	return v.withLayer("vi.SetLayerPosition", l, func(hl *hostLayer) error {
		hl.x, hl.y = x, y
		return nil
	})
}

func (v *hostVI) CreateWindow(l Layer) (Window, error) {
	var w *hostWindow
	err := v.withLayer("vi.CreateWindow", l, func(hl *hostLayer) error {
		w = &hostWindow{vi: v, layer: hl.id}
		v.windows[w] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (v *hostVI) closeWindow(w *hostWindow) error {
	if err := v.h.fault("window.Close"); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.windows[w]; !ok {
		return ResultAlreadyReleased
	}
	delete(v.windows, w)
	return nil
}

func (v *hostVI) CreateFramebuffer(w Window, width, height int, format PixelFormat, buffers int) (Framebuffer, error) {
	if err := v.h.fault("vi.CreateFramebuffer"); err != nil {
		return nil, err
	}
	if format != PixelFormatRGBA4444 || !gfx.ValidWidth(width) || height <= 0 || buffers < 1 || buffers > 3 {
		return nil, ResultBadInput
	}
	hw, _ := w.(*hostWindow)

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.windows[hw]; !ok {
		return nil, ResultInvalidHandle
	}
	hl, ok := v.layers[hw.layer]
	if !ok {
		return nil, ResultInvalidHandle
	}

	size := gfx.FramebufferBytes(width, height)
	bufs := make([][]byte, 0, buffers)
	for i := 0; i < buffers; i++ {
		b, err := v.h.heap.alloc(size)
		if err != nil {
			for range bufs {
				v.h.heap.free()
			}
			return nil, err
		}
		bufs = append(bufs, b)
	}

	fb := newHostFramebuffer(v, width, height, bufs)
	v.fbs[fb] = struct{}{}
	hl.fb = fb
	return fb, nil
}

func (v *hostVI) closeFramebuffer(fb *hostFramebuffer) error {
	if err := v.h.fault("framebuffer.Close"); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.fbs[fb]; !ok {
		return ResultAlreadyReleased
	}
	v.dropFramebuffer(fb)
	return nil
}

// dropFramebuffer must be called with v.mu held.
func (v *hostVI) dropFramebuffer(fb *hostFramebuffer) {
	delete(v.fbs, fb)
	for i, n := 0, fb.close(); i < n; i++ {
		v.h.heap.free()
	}
	for _, hl := range v.layers {
		if hl.fb == fb {
			hl.fb = nil
		}
	}
}

func (v *hostVI) closeEvent(ev *vsyncEvent) error {
	if err := v.h.fault("vsync.Close"); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.events[ev]; !ok {
		return ResultAlreadyReleased
	}
	delete(v.events, ev)
	ev.stop()
	return nil
}

func (v *hostVI) releaseAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for fb := range v.fbs {
		v.dropFramebuffer(fb)
	}
	for ev := range v.events {
		ev.stop()
	}
	clear(v.events)
	clear(v.windows)
	clear(v.layers)
	clear(v.displays)
	v.open = false
}

func (v *hostVI) live() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := len(v.displays) + len(v.events) + len(v.layers) + len(v.windows) + len(v.fbs)
	for _, l := range v.layers {
		if l.opened {
			n++
		}
	}
	if v.open {
		n++
	}
	return n
}

// presented is called by a framebuffer after End copied its buffer out.
func (v *hostVI) presented() {
	v.h.scr.refresh()
}

// snapshotLayers returns the visible state of every layer with a presented
// frame.
func (v *hostVI) snapshotLayers() []layerView {
	v.mu.Lock()
	defer v.mu.Unlock()
	views := make([]layerView, 0, len(v.layers))
	for _, hl := range v.layers {
		if hl.fb == nil {
			continue
		}
		front, fw, fh := hl.fb.frontBuffer()
		if front == nil {
			continue
		}
		stacks := make([]LayerStack, 0, len(hl.stacks))
		for s := range hl.stacks {
			stacks = append(stacks, s)
		}
		views = append(views, layerView{
			id:      hl.id,
			z:       hl.z,
			stacks:  stacks,
			scaling: hl.scaling,
			x:       int(hl.x),
			y:       int(hl.y),
			w:       hl.w,
			h:       hl.h,
			fbw:     fw,
			fbh:     fh,
			pix:     front,
		})
	}
	return views
}

type vsyncEvent struct {
	vi     *hostVI
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func newVsyncEvent(v *hostVI, period time.Duration) *vsyncEvent {
	return &vsyncEvent{
		vi:     v,
		ticker: time.NewTicker(period),
		done:   make(chan struct{}),
	}
}

func (e *vsyncEvent) Wait(ctx context.Context) error {
	if err := e.vi.h.fault("vsync.Wait"); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrClosed
	case <-e.ticker.C:
		return nil
	}
}

func (e *vsyncEvent) Close() error { return e.vi.closeEvent(e) }

func (e *vsyncEvent) stop() {
	e.once.Do(func() {
		e.ticker.Stop()
		close(e.done)
	})
}
