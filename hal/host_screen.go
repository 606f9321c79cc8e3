package hal

import (
	"cmp"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"io"
	"slices"
	"sync"

	"golang.org/x/image/bmp"
	"tinygo.org/x/drivers"

	"dimlayer/gfx"
)

// DesktopColor fills the simulated screen below every layer, standing in for
// application content.
var DesktopColor = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

type layerView struct {
	id       LayerID
	z        int32
	stacks   []LayerStack
	scaling  ScalingMode
	x, y     int
	w, h     int
	fbw, fbh int
	pix      []byte
}

// Screen is the simulated physical display. Every present recomposes the
// default layer stack.
type Screen struct {
	width  int
	height int
	source func() []layerView
	sink   drivers.Displayer

	mu       sync.Mutex
	img      *image.RGBA
	presents int
}

func newScreen(width, height int, sink drivers.Displayer) *Screen {
	return &Screen{width: width, height: height, sink: sink}
}

func (s *Screen) Size() (int, int) { return s.width, s.height }

// Presents reports how many frames have been presented to the screen.
func (s *Screen) Presents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}

// Pixel returns the color last shown at (x, y).
func (s *Screen) Pixel(x, y int) color.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return DesktopColor
	}
	return s.img.RGBAAt(x, y)
}

// Snapshot returns a copy of what the screen currently shows.
func (s *Screen) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return s.background()
	}
	out := image.NewRGBA(s.img.Rect)
	copy(out.Pix, s.img.Pix)
	return out
}

// Screenshot captures the screenshot layer stack as a BMP image. Layers that
// are not registered in that stack do not appear in the capture.
func (s *Screen) Screenshot(w io.Writer) error {
	return bmp.Encode(w, s.compose(LayerStackScreenshot))
}

func (s *Screen) refresh() {
	img := s.compose(LayerStackDefault)

	s.mu.Lock()
	s.img = img
	s.presents++
	s.mu.Unlock()

	if s.sink != nil {
		s.push(img)
	}
}

func (s *Screen) background() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(DesktopColor), image.Point{}, draw.Src)
	return img
}

func (s *Screen) compose(stack LayerStack) *image.RGBA {
	img := s.background()
	if s.source == nil {
		return img
	}
	var views []layerView
	for _, v := range s.source() {
		if slices.Contains(v.stacks, stack) {
			views = append(views, v)
		}
	}
	slices.SortFunc(views, func(a, b layerView) int {
		if c := cmp.Compare(a.z, b.z); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	for _, v := range views {
		composite(img, v)
	}
	return img
}

func composite(img *image.RGBA, v layerView) {
	if v.w <= 0 || v.h <= 0 || v.fbw <= 0 || v.fbh <= 0 {
		return
	}
	r := image.Rect(v.x, v.y, v.x+v.w, v.y+v.h).Intersect(img.Bounds())
	for sy := r.Min.Y; sy < r.Max.Y; sy++ {
		fy := sy - v.y
		if v.scaling == ScalingFitToLayer {
			fy = fy * v.fbh / v.h
		}
		if fy >= v.fbh {
			continue
		}
		for sx := r.Min.X; sx < r.Max.X; sx++ {
			fx := sx - v.x
			if v.scaling == ScalingFitToLayer {
				fx = fx * v.fbw / v.w
			}
			if fx >= v.fbw {
				continue
			}
			off := gfx.PixelOffset(v.fbw, fx, fy)
			if off+gfx.BytesPerPixel > len(v.pix) {
				continue
			}
			src := gfx.Unpack(binary.LittleEndian.Uint16(v.pix[off:])).ToRGBA()
			over(img.Pix[img.PixOffset(sx, sy):], src)
		}
	}
}

// over composites a straight-alpha src onto an opaque destination pixel.
func over(dst []uint8, src color.RGBA) {
	a := uint32(src.A)
	if a == 0 {
		return
	}
	dst[0] = uint8((uint32(src.R)*a + uint32(dst[0])*(0xFF-a) + 0x7F) / 0xFF)
	dst[1] = uint8((uint32(src.G)*a + uint32(dst[1])*(0xFF-a) + 0x7F) / 0xFF)
	dst[2] = uint8((uint32(src.B)*a + uint32(dst[2])*(0xFF-a) + 0x7F) / 0xFF)
	dst[3] = 0xFF
}

// push downsamples img onto the sink and flushes it.
func (s *Screen) push(img *image.RGBA) {
	sw, sh := s.sink.Size()
	if sw <= 0 || sh <= 0 {
		return
	}
	for y := 0; y < int(sh); y++ {
		iy := y * s.height / int(sh)
		for x := 0; x < int(sw); x++ {
			ix := x * s.width / int(sw)
			s.sink.SetPixel(int16(x), int16(y), img.RGBAAt(ix, iy))
		}
	}
	_ = s.sink.Display()
}
