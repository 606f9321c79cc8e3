package gfx

// BlendPixel composites src over the pixel stored at (x, y).
//
// The incoming alpha weights the color channels against the existing pixel,
// while the stored alpha accumulates: out.a = min(15, dst.a + src.a). Drawing
// the same translucent color twice therefore darkens the result further.
func (s *Surface) BlendPixel(x, y int, src Color) {
	dst, ok := s.Pixel(x, y)
	if !ok {
		return
	}
	a := src.A & 0xF
	out := Color{
		R: blendChannel(src.R, dst.R, a),
		G: blendChannel(src.G, dst.G, a),
		B: blendChannel(src.B, dst.B, a),
		A: min(dst.A+a, 0xF),
	}
	s.SetPixel(x, y, out)
}

// blendChannel returns round((src*a + dst*(15-a)) / 15).
func blendChannel(src, dst, a uint8) uint8 {
	n := uint16(src&0xF)*uint16(a) + uint16(dst&0xF)*uint16(0xF-a)
	return uint8((n + 7) / 15)
}

// FillRect blends c over the w x h rectangle at (x, y), clipped to the surface.
func (s *Surface) FillRect(x, y, w, h int, c Color) {
	if !s.Writable() || w <= 0 || h <= 0 {
		return
	}
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, s.width), min(y+h, s.height)
	if x0 >= x1 || y0 >= y1 {
		return
	}
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			s.BlendPixel(px, py, c)
		}
	}
}

// FillScreen blends c over the whole surface.
func (s *Surface) FillScreen(c Color) {
	if s == nil {
		return
	}
	s.FillRect(0, 0, s.width, s.height, c)
}

// FillScreenSolid overwrites every pixel with c. Unlike FillScreen the result
// does not depend on what the buffer held before.
func (s *Surface) FillScreenSolid(c Color) {
	if !s.Writable() {
		return
	}
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			s.SetPixel(x, y, c)
		}
	}
}

