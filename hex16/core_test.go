package hex16

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bshepherdson/hex16/common"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

// testConfig is a small unpaced machine without mapped regions.
func testConfig(size int) Config {
	cfg := DefaultConfig()
	cfg.MemorySize = size
	cfg.VideoBase = 0
	cfg.VideoColumns = 0
	cfg.VideoRows = 0
	cfg.KeyboardCell = 0
	cfg.Pace = 0
	return cfg
}

func newMachine(t *testing.T, cfg Config, program ...uint16) *Machine {
	t.Helper()
	m, err := New(cfg, log.NewTestLogger(t))
	assert.NoError(t, err)
	copy(m.Memory(), program)
	return m
}

// stopDevice asks for a quit on the given poll, counting from one.
type stopDevice struct {
	quitAt int
	polls  int
	frames int
	onPoll func(n int)
}

func (d *stopDevice) Name() string { return "stop" }
func (d *stopDevice) Poll(common.CPU) error {
	d.polls++
	if d.onPoll != nil {
		d.onPoll(d.polls)
	}
	if d.quitAt > 0 && d.polls >= d.quitAt {
		return common.ErrQuit
	}
	return nil
}
func (d *stopDevice) Frame(common.CPU) error {
	d.frames++
	return nil
}
func (d *stopDevice) Cleanup() {}

func TestAddProgram(t *testing.T) {
	m := newMachine(t, testConfig(256), 0x100A, 0x2001, 0xF000)
	m.Memory()[0x0A] = 7

	status, err := m.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, StatusHalted, status)
	assert.Equal(t, uint16(14), m.Regs()[0])
	assert.Equal(t, uint16(3), m.PC())
	assert.Equal(t, uint64(3), m.Cycles())
}

func TestAddWraps(t *testing.T) {
	m := newMachine(t, testConfig(256), EncodeLOD(1, 0x10), EncodeLOD(2, 0x11), EncodeADD(1, 2), EncodeHLT())
	m.Memory()[0x10] = 0xFFFF
	m.Memory()[0x11] = 1

	status, err := m.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, StatusHalted, status)
	assert.Equal(t, uint16(0), m.Regs()[1])
	assert.Equal(t, uint16(1), m.Regs()[2])
}

func TestStep(t *testing.T) {
	m := newMachine(t, testConfig(256), EncodeLOD(3, 0x20), EncodeJMP(0x05))
	m.Memory()[0x20] = 0x1234

	halted, err := m.Step()
	assert.NoError(t, err)
	assert.False(t, halted)
	assert.Equal(t, uint16(0x1234), m.Regs()[3])
	assert.Equal(t, uint16(1), m.PC())

	halted, err = m.Step()
	assert.NoError(t, err)
	assert.False(t, halted)
	assert.Equal(t, uint16(0x05), m.PC())
}

// TestStepTouchesOnlyDestination checks that LOD and ADD write their
// destination register and leave every other register and memory cell alone.
func TestStepTouchesOnlyDestination(t *testing.T) {
	tests := []struct {
		name        string
		instruction uint16
		dest        int
		want        func(regs Registers, mem []uint16) uint16
	}{
		{"lod", EncodeLOD(5, 0x40), 5, func(_ Registers, mem []uint16) uint16 { return mem[0x40] }},
		{"add", EncodeADD(9, 14), 9, func(regs Registers, _ []uint16) uint16 { return regs[9] + regs[14] }},
		{"add to itself", EncodeADD(2, 2), 2, func(regs Registers, _ []uint16) uint16 { return 2 * regs[2] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMachine(t, testConfig(512))
			mem := m.Memory()
			for i := range mem {
				mem[i] = uint16(0x9000 + i*7)
			}
			mem[0] = tt.instruction
			for i := range NumRegisters {
				assert.NoError(t, m.Regs().Set(i, uint16(0x1111*i+3)))
			}

			regsBefore := *m.Regs()
			memBefore := append([]uint16(nil), mem...)

			halted, err := m.Step()
			assert.NoError(t, err)
			assert.False(t, halted)
			assert.Equal(t, uint16(1), m.PC())

			wantRegs := regsBefore
			wantRegs[tt.dest] = tt.want(regsBefore, memBefore)
			assert.Equal(t, wantRegs, *m.Regs())
			assert.Equal(t, memBefore, m.Memory())
		})
	}
}

func TestJumpKeepsLow12Bits(t *testing.T) {
	m := newMachine(t, testConfig(1<<16), 0x4ABC)
	_, err := m.Step()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x0ABC), m.PC())
}

func TestHaltIsNotAFault(t *testing.T) {
	m := newMachine(t, testConfig(16), 0xF123)
	halted, err := m.Step()
	assert.NoError(t, err)
	assert.True(t, halted)
	assert.Equal(t, uint16(1), m.PC())
}

func TestFaults(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		program  []uint16
		startPC  uint16
		kind     error
		faultPC  uint16
		faultIns uint16
	}{
		{
			name:     "unknown opcode",
			size:     16,
			program:  []uint16{0x0000},
			kind:     ErrDecode,
			faultIns: 0x0000,
		},
		{
			name:     "unknown opcode after progress",
			size:     16,
			program:  []uint16{EncodeJMP(2), 0, 0x3000},
			kind:     ErrDecode,
			faultPC:  2,
			faultIns: 0x3000,
		},
		{
			name:     "load outside small memory",
			size:     16,
			program:  []uint16{EncodeLOD(0, 0xF0)},
			kind:     ErrAddressing,
			faultIns: EncodeLOD(0, 0xF0),
		},
		{
			name:     "jump outside small memory",
			size:     16,
			program:  []uint16{EncodeJMP(0x100)},
			kind:     ErrAddressing,
			faultPC:  0x100,
		},
		{
			name:    "run off the end",
			size:    2,
			program: []uint16{EncodeADD(0, 0), EncodeADD(0, 0)},
			kind:    ErrAddressing,
			faultPC: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMachine(t, testConfig(tt.size), tt.program...)
			status, err := m.Run(context.Background())
			assert.Equal(t, StatusFaulted, status)
			assert.True(t, errors.Is(err, tt.kind))

			var fault *Fault
			assert.True(t, errors.As(err, &fault))
			assert.Equal(t, tt.faultPC, fault.PC)
			assert.Equal(t, tt.faultIns, fault.Instruction)
		})
	}
}

func TestFaultsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(&Fault{Kind: ErrDecode}, ErrAddressing))
	assert.False(t, errors.Is(&Fault{Kind: ErrAddressing}, ErrDecode))
	assert.ErrorContains(t, &Fault{Kind: ErrDecode, PC: 0x12, Instruction: 0x3000}, "pc 0x0012")
}

func TestInterruptCadence(t *testing.T) {
	cfg := testConfig(16)
	cfg.TimerCycles = 3
	m := newMachine(t, cfg, EncodeJMP(0))

	var counts []uint64
	m.SetInterruptHandler(func(ic InterruptContext) {
		counts = append(counts, ic.Count)
	})
	dev := &stopDevice{quitAt: 11}
	m.AddDevice(dev)

	status, err := m.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, StatusQuit, status)
	assert.Equal(t, uint64(10), m.Cycles())
	assert.Equal(t, []uint64{1, 2, 3}, counts)
	assert.Equal(t, 10, dev.frames)
	assert.False(t, m.InterruptPending())
}

func TestInterruptHandlerContext(t *testing.T) {
	cfg := testConfig(16)
	cfg.TimerCycles = 1
	m := newMachine(t, cfg, EncodeLOD(0, 0x0F), EncodeHLT())
	m.Memory()[0x0F] = 42

	var seen InterruptContext
	m.SetInterruptHandler(func(ic InterruptContext) {
		seen = ic
		ic.Registers[5] = 9
	})

	status, err := m.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, StatusHalted, status)
	assert.Equal(t, uint16(1), seen.PC)
	assert.Equal(t, uint64(1), seen.Count)
	assert.Equal(t, uint16(42), seen.Registers[0])
	assert.Equal(t, uint16(9), m.Regs()[5])
	assert.NotNil(t, seen.Logger)
}

func TestExternalInterrupt(t *testing.T) {
	cfg := testConfig(16)
	cfg.Timer = TimerExternal
	m := newMachine(t, cfg, EncodeJMP(0))

	calls := 0
	m.SetInterruptHandler(func(InterruptContext) { calls++ })

	done := make(chan struct{})
	go func() {
		m.RaiseInterrupt()
		close(done)
	}()
	<-done
	assert.True(t, m.InterruptPending())

	m.AddDevice(&stopDevice{quitAt: 5})
	status, err := m.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, StatusQuit, status)
	assert.Equal(t, 1, calls)
}

type brokenDevice struct{ err error }

func (d *brokenDevice) Name() string { return "broken" }
func (d *brokenDevice) Poll(common.CPU) error { return nil }
func (d *brokenDevice) Frame(common.CPU) error { return d.err }
func (d *brokenDevice) Cleanup() {}

func TestDeviceError(t *testing.T) {
	m := newMachine(t, testConfig(16), EncodeJMP(0))
	boom := errors.New("boom")
	m.AddDevice(&brokenDevice{err: boom})

	status, err := m.Run(context.Background())
	assert.Equal(t, StatusFaulted, status)
	assert.True(t, errors.Is(err, boom))
	assert.ErrorContains(t, err, "device broken")
	assert.Equal(t, uint64(1), m.Cycles())
}

func TestCancelledBeforeRun(t *testing.T) {
	m := newMachine(t, testConfig(16), EncodeJMP(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, err := m.Run(ctx)
	assert.NoError(t, err)
	assert.Equal(t, StatusCancelled, status)
	assert.Equal(t, uint64(0), m.Cycles())
}

func TestCancelledWhilePaced(t *testing.T) {
	cfg := testConfig(16)
	cfg.Pace = time.Millisecond
	m := newMachine(t, cfg, EncodeJMP(0))

	ctx, cancel := context.WithCancel(context.Background())
	m.AddDevice(&stopDevice{onPoll: func(n int) {
		if n == 5 {
			cancel()
		}
	}})

	status, err := m.Run(ctx)
	assert.NoError(t, err)
	assert.Equal(t, StatusCancelled, status)
	assert.True(t, m.Cycles() >= 4)
}

func TestTurboIgnoresPace(t *testing.T) {
	cfg := testConfig(256)
	cfg.Pace = time.Hour
	m := newMachine(t, cfg, 0x100A, 0x2001, 0xF000)
	*m.Turbo() = true

	status, err := m.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, StatusHalted, status)
}

func TestBreakpoint(t *testing.T) {
	m := newMachine(t, testConfig(16), EncodeADD(0, 0), EncodeADD(0, 0), EncodeHLT())
	m.AddBreakpoint(1)
	m.AddBreakpoint(1)

	status, err := m.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, StatusBreak, status)
	assert.Equal(t, uint16(1), m.PC())
	assert.True(t, *m.Debugging())

	status, err = m.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, StatusBreak, status)
	assert.Equal(t, uint16(1), m.PC())

	*m.Debugging() = false
	status, err = m.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, StatusHalted, status)
	assert.Equal(t, uint16(3), m.PC())
}

func TestReset(t *testing.T) {
	m := newMachine(t, testConfig(256), 0x100A, 0x2001, 0xF000)
	m.Memory()[0x0A] = 7
	_, err := m.Run(context.Background())
	assert.NoError(t, err)

	m.RaiseInterrupt()
	m.Reset()
	assert.Equal(t, uint16(0), m.PC())
	assert.Equal(t, uint16(0), m.Regs()[0])
	assert.Equal(t, uint16(0), m.Memory()[0])
	assert.False(t, m.InterruptPending())
}

func TestReplayIsDeterministic(t *testing.T) {
	program := []uint16{EncodeLOD(0, 0x0F), EncodeADD(1, 0), EncodeADD(1, 1), EncodeJMP(1)}
	cfg := testConfig(16)
	cfg.TimerCycles = 4

	run := func() (Registers, uint64) {
		m := newMachine(t, cfg, program...)
		m.Memory()[0x0F] = 3
		var calls uint64
		m.SetInterruptHandler(func(InterruptContext) { calls++ })
		m.AddDevice(&stopDevice{quitAt: 40})
		_, err := m.Run(context.Background())
		assert.NoError(t, err)
		return *m.Regs(), calls
	}

	regsA, callsA := run()
	regsB, callsB := run()
	assert.Equal(t, regsA, regsB)
	assert.Equal(t, callsA, callsB)
}

func TestTraceStep(t *testing.T) {
	cfg := testConfig(16)
	cfg.Trace = true
	m := newMachine(t, cfg, EncodeHLT())

	var out bytes.Buffer
	m.Disassemble(&out, 0, 1)
	assert.Equal(t, "0000: f000    HLT\n", out.String())

	_, err := m.Step()
	assert.NoError(t, err)
}
