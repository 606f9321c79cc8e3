package gfx

import (
	"image/color"
	"testing"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	for w := 0; w <= 0xFFFF; w++ {
		if got := Pack(Unpack(uint16(w))); got != uint16(w) {
			t.Fatalf("expected 0x%04X, got 0x%04X", w, got)
		}
	}
}

func TestPackLayout(t *testing.T) {
	tests := []struct {
		c    Color
		want uint16
	}{
		{Color{R: 0xF}, 0x000F},
		{Color{G: 0xF}, 0x00F0},
		{Color{B: 0xF}, 0x0F00},
		{Color{A: 0xF}, 0xF000},
		{Color{R: 1, G: 2, B: 3, A: 4}, 0x4321},
		{Black, 0xF000},
	}
	for _, tt := range tests {
		if got := Pack(tt.c); got != tt.want {
			t.Fatalf("Pack(%+v): expected 0x%04X, got 0x%04X", tt.c, tt.want, got)
		}
	}
}

func TestPackMasksChannels(t *testing.T) {
	c := Color{R: 0x1F, G: 0xF3, B: 0x20, A: 0xFF}
	if got := Pack(c); got != 0xF03F {
		t.Fatalf("expected 0xF03F, got 0x%04X", got)
	}
	u := Unpack(Pack(c))
	if u.R > 15 || u.G > 15 || u.B > 15 || u.A > 15 {
		t.Fatalf("channel exceeds 4 bits: %+v", u)
	}
}

func TestRGBAConversionRoundTrip(t *testing.T) {
	for v := uint8(0); v <= 0xF; v++ {
		c := Color{R: v, G: 0xF - v, B: v, A: v}
		if got := FromRGBA(c.ToRGBA()); got != c {
			t.Fatalf("expected %+v, got %+v", c, got)
		}
	}
	if got := FromRGBA(color.RGBA{R: 0x80, G: 0x07, B: 0x09, A: 0xFF}); got != (Color{R: 8, G: 0, B: 1, A: 15}) {
		t.Fatalf("unexpected narrowing: %+v", got)
	}
}
