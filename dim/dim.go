// Package dim turns the persisted brightness setting into an overlay alpha.
package dim

import (
	"context"

	"go.uber.org/zap"

	"dimlayer/internal/config"
	"dimlayer/internal/logger"
)

// DefaultBrightness is the brightness the settings front-end starts from.
const DefaultBrightness = 80

// MaxAlpha is the opacity of a fully dimmed screen.
const MaxAlpha = 0xF

// Section search order for every key. The first section holding the key wins.
var Sections = []string{"", "primary", "overlay"}

// Source loads the current settings document.
type Source interface {
	Load() (config.Document, error)
}

// Controller samples the settings once per frame.
type Controller struct {
	src Source
}

func NewController(src Source) *Controller {
	return &Controller{src: src}
}

// SampleDimAlpha reads the settings and returns the overlay alpha in [0,15].
//
// A brightness value takes precedence over an alpha override. Anything that
// keeps the settings from being read yields 0, so a broken file never darkens
// the screen.
func (c *Controller) SampleDimAlpha(ctx context.Context) uint8 {
	l := logger.L(ctx).Named("dim")
	if c == nil || c.src == nil {
		return 0
	}
	doc, err := c.src.Load()
	if err != nil {
		l.Debug("settings unavailable", zap.Error(err))
		return 0
	}

	brightness, hasBrightness := doc.Lookup("brightness", Sections...)
	override, hasOverride := doc.Lookup("alpha", Sections...)

	var alpha uint8
	switch {
	case hasBrightness:
		alpha = BrightnessToAlpha(brightness)
	case hasOverride:
		alpha = ClampAlpha(override)
	}

	fields := []zap.Field{zap.Uint8("alpha", alpha)}
	if hasBrightness {
		fields = append(fields, zap.Int64("brightness", brightness))
	}
	if hasOverride {
		fields = append(fields, zap.Int64("override", override))
	}
	l.Debug("sampled settings", fields...)
	return alpha
}

// BrightnessToAlpha maps a brightness percentage to an alpha, rounding to the
// nearest level: 100 gives 0 and 0 gives 15.
func BrightnessToAlpha(b int64) uint8 {
	b = min(max(b, 0), 100)
	return uint8(((100-b)*MaxAlpha + 50) / 100)
}

// ClampAlpha limits a direct alpha override to [0,15].
func ClampAlpha(a int64) uint8 {
	return uint8(min(max(a, 0), MaxAlpha))
}
