package hal

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

var hudColor = color.RGBA{R: 0xFF, G: 0x40, B: 0x40, A: 0xFF}

// Preview is a drivers.Displayer that keeps the last flushed frame for a
// desktop window. Each flush stamps a status line in the corner.
type Preview struct {
	title string

	back *image.RGBA

	mu     sync.Mutex
	front  *image.RGBA
	frames int
}

// NewPreview returns a preview of the given size in pixels.
func NewPreview(title string, width, height int) *Preview {
	r := image.Rect(0, 0, width, height)
	return &Preview{
		title: title,
		back:  image.NewRGBA(r),
		front: image.NewRGBA(r),
	}
}

func (p *Preview) Size() (x, y int16) {
	b := p.back.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

func (p *Preview) SetPixel(x, y int16, c color.RGBA) {
	p.back.SetRGBA(int(x), int(y), c)
}

// Display publishes the frame drawn since the previous call.
func (p *Preview) Display() error {
	p.mu.Lock()
	p.frames++
	n := p.frames
	p.mu.Unlock()

	tinyfont.WriteLine(p, &proggy.TinySZ8pt7b, 4, 12, fmt.Sprintf("%s  frame %d", p.title, n), hudColor)

	p.mu.Lock()
	copy(p.front.Pix, p.back.Pix)
	p.mu.Unlock()
	return nil
}

// Frames reports how many frames were flushed.
func (p *Preview) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// copyFront copies the last published frame into dst.
func (p *Preview) copyFront(dst []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copy(dst, p.front.Pix)
}
