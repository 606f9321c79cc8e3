package gfx

import "encoding/binary"

// Surface is a writable view of one block-linear RGBA4444 buffer.
//
// A Surface is only valid between the begin and end of a frame. Once detached,
// every write is silently dropped and reads report no pixel.
type Surface struct {
	buf    []byte
	width  int
	height int
}

// NewSurface wraps buf as a width x height surface. The surface starts
// detached if buf is too small to hold the block-linear layout.
func NewSurface(buf []byte, width, height int) *Surface {
	s := &Surface{width: width, height: height}
	if ValidWidth(width) && height > 0 && len(buf) >= FramebufferBytes(width, height) {
		s.buf = buf
	}
	return s
}

func (s *Surface) Width() int  { return s.width }
func (s *Surface) Height() int { return s.height }

// Writable reports whether the surface still owns its buffer.
func (s *Surface) Writable() bool {
	return s != nil && s.buf != nil
}

// Detach drops the buffer; the caller no longer owns it.
func (s *Surface) Detach() {
	if s == nil {
		return
	}
	s.buf = nil
}

func (s *Surface) contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.width && y < s.height
}

// SetPixel writes c at (x, y) without blending.
func (s *Surface) SetPixel(x, y int, c Color) {
	if !s.Writable() || !s.contains(x, y) {
		return
	}
	off := PixelOffset(s.width, x, y)
	binary.LittleEndian.PutUint16(s.buf[off:], Pack(c))
}

// Pixel reads back the color stored at (x, y).
func (s *Surface) Pixel(x, y int) (Color, bool) {
	p, ok := s.Packed(x, y)
	if !ok {
		return Color{}, false
	}
	return Unpack(p), true
}

// Packed reads back the raw RGBA4444 word stored at (x, y).
func (s *Surface) Packed(x, y int) (uint16, bool) {
	if !s.Writable() || !s.contains(x, y) {
		return 0, false
	}
	off := PixelOffset(s.width, x, y)
	return binary.LittleEndian.Uint16(s.buf[off:]), true
}
