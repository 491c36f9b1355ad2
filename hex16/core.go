package hex16

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/bshepherdson/hex16/common"
	"github.com/bshepherdson/hex16/disk"
	"github.com/retroenv/retrogolib/log"
)

// Status says why Run returned.
type Status int

const (
	StatusHalted Status = iota
	StatusQuit
	StatusFaulted
	StatusCancelled
	StatusBreak
)

func (s Status) String() string {
	switch s {
	case StatusHalted:
		return "halted"
	case StatusQuit:
		return "quit"
	case StatusFaulted:
		return "faulted"
	case StatusCancelled:
		return "cancelled"
	case StatusBreak:
		return "breakpoint"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// InterruptContext is what an interrupt handler gets to see. It deliberately
// has no access to the pending flag.
type InterruptContext struct {
	PC        uint16
	Count     uint64
	Registers *Registers
	Memory    *Memory
	Logger    *log.Logger
}

// InterruptHandler runs when a pending interrupt is serviced.
type InterruptHandler func(InterruptContext)

// LogInterrupt is the default handler: it only reports the interrupt.
func LogInterrupt(ic InterruptContext) {
	ic.Logger.Info("Interrupt handled", log.Hex("pc", ic.PC), log.Int("count", int(ic.Count)))
}

// Machine is the execution engine. All of its state is owned by the goroutine
// calling Step or Run; only the pending-interrupt flag may be set from
// elsewhere.
type Machine struct {
	cfg    Config
	logger *log.Logger

	mem  *Memory
	regs Registers
	pc   int

	timer    Timer
	pending  atomic.Bool
	handler  InterruptHandler
	serviced uint64
	cycles   uint64

	devices     []common.Device
	disk        *disk.Controller
	breakpoints []uint16
	skipBreak   bool
	breakAt     uint16
	debug       bool
	turbo       bool
}

// New returns a reset machine for cfg.
func New(cfg Config, logger *log.Logger) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid machine configuration: %w", err)
	}

	m := &Machine{
		cfg:     cfg,
		logger:  logger,
		mem:     NewMemory(cfg.MemorySize),
		timer:   newTimer(cfg),
		handler: LogInterrupt,
	}
	m.Reset()
	return m, nil
}

// Reset clears memory, registers and interrupt state and puts the program
// counter back on the reset vector.
func (m *Machine) Reset() {
	m.mem.clear()
	m.regs = Registers{}
	m.pc = int(m.cfg.ResetVector)
	m.pending.Store(false)
	m.serviced = 0
	m.cycles = 0
	if m.timer != nil {
		m.timer.Reset()
	}
}

// Config returns the configuration the machine was built with.
func (m *Machine) Config() Config {
	return m.cfg
}

// Mem returns the machine memory.
func (m *Machine) Mem() *Memory {
	return m.mem
}

// Regs returns the register file.
func (m *Machine) Regs() *Registers {
	return &m.regs
}

// Cycles returns the number of instructions executed since reset.
func (m *Machine) Cycles() uint64 {
	return m.cycles
}

// SetPC moves the program counter. It is meant for loaders and debuggers.
func (m *Machine) SetPC(pc uint16) {
	m.pc = int(pc)
}

// SetInterruptHandler installs h; nil restores the default.
func (m *Machine) SetInterruptHandler(h InterruptHandler) {
	if h == nil {
		h = LogInterrupt
	}
	m.handler = h
}

// InterruptPending reports the pending-interrupt flag.
func (m *Machine) InterruptPending() bool {
	return m.pending.Load()
}

// AttachDisk connects a disk controller for DiskCommand.
func (m *Machine) AttachDisk(c *disk.Controller) {
	m.disk = c
}

var _ common.CPU = (*Machine)(nil)

// Implement the common.CPU interface.
func (m *Machine) Memory() []uint16 {
	return m.mem.Words()
}
func (m *Machine) ReadReg(r uint16) (uint16, error) {
	return m.regs.Get(int(r))
}
func (m *Machine) WriteReg(r, val uint16) error {
	return m.regs.Set(int(r), val)
}
func (m *Machine) PC() uint16 {
	return uint16(m.pc)
}
func (m *Machine) RaiseInterrupt() {
	m.pending.Store(true)
}
func (m *Machine) AddDevice(dev common.Device) {
	m.devices = append(m.devices, dev)
}
func (m *Machine) Devices() []common.Device {
	return m.devices
}
func (m *Machine) KeyboardCell() uint16 {
	return m.cfg.KeyboardCell
}
func (m *Machine) VideoRegion() (uint16, int, int) {
	return m.cfg.VideoBase, m.cfg.VideoColumns, m.cfg.VideoRows
}
func (m *Machine) AddBreakpoint(at uint16) {
	if !slices.Contains(m.breakpoints, at) {
		m.breakpoints = append(m.breakpoints, at)
	}
}
func (m *Machine) Debugging() *bool {
	return &m.debug
}
func (m *Machine) Turbo() *bool {
	return &m.turbo
}

// Step fetches, decodes and executes one instruction. It reports halted for
// HLT; every other way of stopping is an error of type *Fault.
func (m *Machine) Step() (bool, error) {
	at := m.pc
	instruction, err := m.mem.Read(at)
	if err != nil {
		return false, &Fault{Kind: ErrAddressing, PC: uint16(at), Detail: err}
	}
	m.pc++
	m.cycles++

	if m.cfg.Trace {
		m.logger.Debug("Fetch", log.Hex("pc", at), log.Hex("instruction", instruction))
	}

	fault := func(kind, detail error) *Fault {
		return &Fault{Kind: kind, PC: uint16(at), Instruction: instruction, Detail: detail}
	}

	switch opcode(instruction) {
	case OpLOD:
		val, err := m.mem.Read(addr8(instruction))
		if err != nil {
			return false, fault(ErrAddressing, err)
		}
		if err := m.regs.Set(regA(instruction), val); err != nil {
			return false, fault(ErrAddressing, err)
		}

	case OpADD:
		dest, err := m.regs.Get(regA(instruction))
		if err != nil {
			return false, fault(ErrInvalidOperand, err)
		}
		src, err := m.regs.Get(regB(instruction))
		if err != nil {
			return false, fault(ErrInvalidOperand, err)
		}
		// Wraps modulo 2^16; there is no carry flag.
		if err := m.regs.Set(regA(instruction), dest+src); err != nil {
			return false, fault(ErrInvalidOperand, err)
		}

	case OpJMP:
		m.pc = addr12(instruction)

	case OpHLT:
		return true, nil

	default:
		return false, fault(ErrDecode, fmt.Errorf("unknown opcode %#x", opcode(instruction)))
	}

	return false, nil
}

// Run executes cycles until the program halts, a device asks to quit, a fault
// occurs, ctx is cancelled, or a breakpoint or device puts the machine into
// debug mode.
func (m *Machine) Run(ctx context.Context) (Status, error) {
	var pace <-chan time.Time
	if m.cfg.Pace > 0 {
		ticker := time.NewTicker(m.cfg.Pace)
		defer ticker.Stop()
		pace = ticker.C
	}

	for {
		if ctx.Err() != nil {
			return StatusCancelled, nil
		}

		for _, dev := range m.devices {
			if err := dev.Poll(m); err != nil {
				return m.deviceStop(dev, err)
			}
		}

		if m.debug {
			return StatusBreak, nil
		}

		if m.pending.Swap(false) {
			m.serviced++
			m.handler(InterruptContext{
				PC:        uint16(m.pc),
				Count:     m.serviced,
				Registers: &m.regs,
				Memory:    m.mem,
				Logger:    m.logger,
			})
		}

		if m.hitBreakpoint() {
			m.debug = true
			m.logger.Info("Breakpoint reached", log.Hex("pc", m.pc))
			return StatusBreak, nil
		}

		halted, err := m.Step()
		if err != nil {
			var fault *Fault
			if errors.As(err, &fault) {
				m.logger.Error("Machine fault",
					log.Hex("pc", fault.PC),
					log.Hex("instruction", fault.Instruction),
					log.Err(fault.Kind))
			}
			return StatusFaulted, err
		}
		if halted {
			m.logger.Info("Machine halted", log.Hex("pc", m.pc))
			return StatusHalted, nil
		}

		if m.timer != nil && m.timer.Tick() {
			m.pending.Store(true)
		}

		for _, dev := range m.devices {
			if err := dev.Frame(m); err != nil {
				return m.deviceStop(dev, err)
			}
		}

		if pace != nil && !m.turbo {
			select {
			case <-ctx.Done():
				return StatusCancelled, nil
			case <-pace:
			}
		}
	}
}

func (m *Machine) deviceStop(dev common.Device, err error) (Status, error) {
	if errors.Is(err, common.ErrQuit) {
		m.logger.Info("Quit requested", log.String("device", dev.Name()))
		return StatusQuit, nil
	}
	return StatusFaulted, fmt.Errorf("device %s: %w", dev.Name(), err)
}

// hitBreakpoint reports a breakpoint at the current PC, letting the machine
// move past it once after resuming.
func (m *Machine) hitBreakpoint() bool {
	pc := uint16(m.pc)
	if m.skipBreak {
		m.skipBreak = false
		if pc == m.breakAt {
			return false
		}
	}
	if slices.Contains(m.breakpoints, pc) {
		m.skipBreak = true
		m.breakAt = pc
		return true
	}
	return false
}
