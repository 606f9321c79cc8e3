package hal

import "context"

// Native screen size. Layer placement is expressed in these units.
const (
	ScreenWidth  = 1920
	ScreenHeight = 1080
)

// ServiceType selects the privilege level of the display service session.
type ServiceType uint8

const (
	ServiceTypeDefault ServiceType = iota
	ServiceTypeApplication
	ServiceTypeSystem
	ServiceTypeManager
)

// ScalingMode controls how a window's buffer is mapped onto its layer.
type ScalingMode uint8

const (
	ScalingNone ScalingMode = iota
	ScalingFitToLayer
	ScalingPreserveAspectRatio
)

// LayerStack is a presentation context a layer may be shown in.
type LayerStack uint32

const (
	LayerStackDefault    LayerStack = 0
	LayerStackLCD        LayerStack = 1
	LayerStackScreenshot LayerStack = 2
	LayerStackRecording  LayerStack = 3
	LayerStackLastFrame  LayerStack = 4
	LayerStackArbitrary  LayerStack = 5
	LayerStackDebug      LayerStack = 6
	LayerStackNull       LayerStack = 10
)

func (s LayerStack) String() string {
	switch s {
	case LayerStackDefault:
		return "default"
	case LayerStackLCD:
		return "lcd"
	case LayerStackScreenshot:
		return "screenshot"
	case LayerStackRecording:
		return "recording"
	case LayerStackLastFrame:
		return "last-frame"
	case LayerStackArbitrary:
		return "arbitrary"
	case LayerStackDebug:
		return "debug"
	case LayerStackNull:
		return "null"
	}
	return "unknown"
}

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGBA4444 is 16bpp, 4 bits per channel, red in the low nibble.
	PixelFormatRGBA4444 PixelFormat = iota + 1
)

// LayerFlags are passed to managed layer creation.
type LayerFlags uint32

// Display is an open display handle.
type Display struct {
	ID   uint64
	Name string
}

// LayerID names a managed layer owned by the display service.
type LayerID uint64

// Layer is an open drawable handle to a layer.
type Layer struct {
	ID      LayerID
	Display uint64
}

// Event is a platform event such as a display's vertical blank signal.
type Event interface {
	// Wait blocks until the event fires. There is no timeout; ctx is only
	// cancelled when the process is shutting down.
	Wait(ctx context.Context) error
	Close() error
}

// Window is a presentable window bound to a layer.
type Window interface {
	Close() error
}

// Framebuffer is a multi-buffered surface bound to a window.
type Framebuffer interface {
	// Begin returns the next writable buffer, or nil if none is available.
	// It never blocks.
	Begin() []byte
	// End presents the buffer returned by the last Begin.
	End() error
	Close() error
}

// VI is the display service.
type VI interface {
	Initialize(t ServiceType) error
	Exit() error

	OpenDefaultDisplay() (Display, error)
	CloseDisplay(d Display) error
	DisplayVsyncEvent(d Display) (Event, error)
	SetDisplayAlpha(d Display, alpha float32) error

	CreateManagedLayer(d Display, flags LayerFlags, aruid uint64) (LayerID, error)
	DestroyManagedLayer(id LayerID) error
	OpenLayer(d Display, id LayerID) (Layer, error)
	CloseLayer(l Layer) error
	SetLayerScalingMode(l Layer, mode ScalingMode) error
	SetLayerZ(l Layer, z int32) error
	AddToLayerStack(l Layer, stack LayerStack) error
	SetLayerSize(l Layer, width, height int) error
	SetLayerPosition(l Layer, x, y float32) error

	CreateWindow(l Layer) (Window, error)
	CreateFramebuffer(w Window, width, height int, format PixelFormat, buffers int) (Framebuffer, error)
}
