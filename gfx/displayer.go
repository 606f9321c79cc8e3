package gfx

import (
	"image/color"

	"tinygo.org/x/drivers"
)

type surfaceDisplay struct {
	s *Surface
}

// Displayer exposes the surface as a drivers.Displayer. SetPixel blends the
// narrowed color into the surface; Display is a no-op because presenting is
// owned by whoever began the frame.
func (s *Surface) Displayer() drivers.Displayer {
	return &surfaceDisplay{s: s}
}

func (d *surfaceDisplay) Size() (x, y int16) {
	if d.s == nil {
		return 0, 0
	}
	return int16(d.s.width), int16(d.s.height)
}

func (d *surfaceDisplay) SetPixel(x, y int16, c color.RGBA) {
	d.s.BlendPixel(int(x), int(y), FromRGBA(c))
}

func (d *surfaceDisplay) Display() error {
	return nil
}
