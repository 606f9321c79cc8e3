package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"dimlayer/gfx"
	"dimlayer/internal/logger"
	"dimlayer/layer"
)

// ErrPanic is returned by Run when the frame loop panicked.
var ErrPanic = errors.New("app: panic in frame loop")

// panicClearTimeout bounds the vsync wait of the final transparent frame.
const panicClearTimeout = 200 * time.Millisecond

// clearOnPanic recovers a panic, logs it and, if the layer is still up,
// presents one fully transparent frame so the screen is not left dimmed.
func clearOnPanic(ctx context.Context, m *layer.Manager, err *error) {
	v := recover()
	if v == nil {
		return
	}

	l := logger.L(ctx).Named("app")
	var stack []string
	for _, line := range strings.Split(string(debug.Stack()), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			stack = append(stack, line)
		}
	}
	l.Error("panic", zap.Any("value", v), zap.Strings("stack", stack))
	*err = fmt.Errorf("%w: %v", ErrPanic, v)

	if m.State() != layer.Active {
		return
	}
	s := m.BeginFrame()
	if s == nil {
		return
	}
	s.FillScreenSolid(gfx.Transparent)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), panicClearTimeout)
	defer cancel()
	if ferr := m.EndFrame(wctx); ferr != nil {
		l.Warn("clear overlay failed", zap.Error(ferr))
	}
}
