package common

import (
	"errors"

	"github.com/bshepherdson/hex16/disk"
)

// ErrQuit is returned by a device or a debug command when the user asked the
// emulator to shut down. It is a clean exit, not a fault.
var ErrQuit = errors.New("quit requested")

// ErrIOUnavailable reports that an input or output front end could not be
// brought up. It is fatal before the machine starts running.
var ErrIOUnavailable = errors.New("input/output device unavailable")

// CPU is the generic interface to the machine, used by the hardware and the
// debug console to abstract over the engine.
type CPU interface {
	Memory() []uint16
	ReadReg(r uint16) (uint16, error)
	WriteReg(r, val uint16) error
	PC() uint16

	// RaiseInterrupt sets the pending-interrupt flag. It is the only
	// machine state that may be touched from another goroutine.
	RaiseInterrupt()

	AddDevice(Device)
	Devices() []Device

	KeyboardCell() uint16
	VideoRegion() (base uint16, cols, rows int)
	DiskCommand(cmd disk.Command, sector, addr uint16) error

	Step() (halted bool, err error)
	AddBreakpoint(at uint16)
	Debugging() *bool
	Turbo() *bool
	DisassembleOp(at uint16) string
	Registers() []string
	RegByName(name string) (uint16, string, bool)
	DebugPrompt() string
}

// Device is the interface to all attached hardware. Poll runs at the top of
// every cycle and Frame runs after the instruction has executed; either one
// may return ErrQuit to stop the machine cleanly.
type Device interface {
	Name() string
	Poll(CPU) error
	Frame(CPU) error
	Cleanup()
}
