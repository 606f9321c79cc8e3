package gfx

import "image/color"

// Color is a 4-bit-per-channel RGBA color. Each channel holds a value in [0,15].
type Color struct {
	R, G, B, A uint8
}

var (
	Transparent = Color{}
	Black       = Color{A: 0xF}
	White       = Color{R: 0xF, G: 0xF, B: 0xF, A: 0xF}
)

// Pack encodes c as RGBA4444: r in bits 0-3, g in 4-7, b in 8-11, a in 12-15.
func Pack(c Color) uint16 {
	return uint16(c.R&0xF) |
		uint16(c.G&0xF)<<4 |
		uint16(c.B&0xF)<<8 |
		uint16(c.A&0xF)<<12
}

// Unpack decodes an RGBA4444 word.
func Unpack(p uint16) Color {
	return Color{
		R: uint8(p) & 0xF,
		G: uint8(p>>4) & 0xF,
		B: uint8(p>>8) & 0xF,
		A: uint8(p>>12) & 0xF,
	}
}

func (c Color) Packed() uint16 { return Pack(c) }

// ToRGBA widens c to 8 bits per channel (0xF becomes 0xFF).
func (c Color) ToRGBA() color.RGBA {
	return color.RGBA{
		R: (c.R & 0xF) * 17,
		G: (c.G & 0xF) * 17,
		B: (c.B & 0xF) * 17,
		A: (c.A & 0xF) * 17,
	}
}

// FromRGBA narrows an 8-bit color to the nearest 4-bit channel values.
func FromRGBA(c color.RGBA) Color {
	return Color{
		R: narrow(c.R),
		G: narrow(c.G),
		B: narrow(c.B),
		A: narrow(c.A),
	}
}

func narrow(v uint8) uint8 {
	return uint8((uint16(v) + 8) / 17)
}
