package hal

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrClosed is returned when waiting on or using a handle after Close.
var ErrClosed = errors.New("handle closed")

// Result is a platform result code. The zero value means success and is
// never returned as an error.
//
// Bits 0-8 hold the reporting module, bits 9-21 the description.
type Result uint32

// Modules that report results through this package.
const (
	ModuleKernel uint32 = 1
	ModuleFS     uint32 = 2
	ModuleSM     uint32 = 21
	ModuleVI     uint32 = 114
	ModuleHID    uint32 = 202
	ModuleLibnx  uint32 = 345
)

func MakeResult(module, description uint32) Result {
	return Result(module&0x1FF | (description&0x1FFF)<<9)
}

func (r Result) Module() uint32      { return uint32(r) & 0x1FF }
func (r Result) Description() uint32 { return (uint32(r) >> 9) & 0x1FFF }

func (r Result) Error() string {
	return fmt.Sprintf("result 0x%X (%04d-%04d)", uint32(r), 2000+r.Module(), r.Description())
}

// Common results.
var (
	ResultNotInitialized  = MakeResult(ModuleLibnx, 2)
	ResultOutOfMemory     = MakeResult(ModuleLibnx, 4)
	ResultBadInput        = MakeResult(ModuleLibnx, 9)
	ResultNotFound        = MakeResult(ModuleVI, 7)
	ResultAlreadyReleased = MakeResult(ModuleVI, 1)
	ResultInvalidHandle   = MakeResult(ModuleKernel, 114)
)

// NvServiceType selects which graphics driver service variant is opened.
type NvServiceType uint8

const (
	NvServiceAuto NvServiceType = iota
	NvServiceApplication
	NvServiceApplet
	NvServiceSystem
)

// Tuning pins platform parameters that must be fixed before any service is
// opened.
type Tuning struct {
	NvService         NvServiceType
	NvTransferMemSize uint32
}

// DefaultTuning is the known-good configuration for a background process:
// the application driver service with 2 MiB of transfer memory.
func DefaultTuning() Tuning {
	return Tuning{
		NvService:         NvServiceApplication,
		NvTransferMemSize: 0x200000,
	}
}

// Heap is the fixed-size private memory arena the process runs in.
type Heap interface {
	Initialize(size int) error
	Exit() error
}

// ServiceManager is the basic-services session every other service needs.
type ServiceManager interface {
	Initialize(t Tuning) error
	Exit() error
}

// Filesystem provides access to storage volumes.
type Filesystem interface {
	Initialize() error
	Exit() error
	// Mount attaches the named volume and returns its root.
	Mount(volume string) (fs.FS, error)
	UnmountAll() error
}

// Input is the input subsystem session. The platform requires it to be open
// for display services to work; nothing here reads from it.
type Input interface {
	Initialize() error
	Exit() error
}

// HAL provides the only contact point between the compositor and the platform.
type HAL interface {
	Heap() Heap
	Services() ServiceManager
	Filesystem() Filesystem
	Input() Input
	VI() VI
}
