package hal

import "sync"

// hostFramebuffer hands out its buffers round robin. The buffer returned by
// Begin belongs to the caller until End copies it to the front.
type hostFramebuffer struct {
	vi     *hostVI
	width  int
	height int

	mu      sync.Mutex
	bufs    [][]byte
	next    int
	pending int
	front   []byte
	closed  bool
}

func newHostFramebuffer(v *hostVI, width, height int, bufs [][]byte) *hostFramebuffer {
	return &hostFramebuffer{
		vi:      v,
		width:   width,
		height:  height,
		bufs:    bufs,
		pending: -1,
	}
}

func (f *hostFramebuffer) Begin() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.pending >= 0 {
		return nil
	}
	f.pending = f.next
	return f.bufs[f.pending]
}

func (f *hostFramebuffer) End() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.pending < 0 {
		f.mu.Unlock()
		return ResultBadInput
	}
	src := f.bufs[f.pending]
	front := make([]byte, len(src))
	copy(front, src)
	f.front = front
	f.next = (f.pending + 1) % len(f.bufs)
	f.pending = -1
	f.mu.Unlock()

	f.vi.presented()
	return nil
}

func (f *hostFramebuffer) Close() error { return f.vi.closeFramebuffer(f) }

// close marks the framebuffer closed and reports how many heap buffers it
// gave back.
func (f *hostFramebuffer) close() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0
	}
	f.closed = true
	n := len(f.bufs)
	f.bufs = nil
	f.pending = -1
	return n
}

func (f *hostFramebuffer) frontBuffer() ([]byte, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.front, f.width, f.height
}
