// Package script drives a machine from Lua.
package script

import (
	"context"
	"errors"
	"fmt"

	"github.com/bshepherdson/hex16/common"
	"github.com/bshepherdson/hex16/disk"
	"github.com/bshepherdson/hex16/hex16"
	"github.com/bshepherdson/hex16/render"
	"github.com/retroenv/retrogolib/log"
	lua "github.com/yuin/gopher-lua"
)

// Machine is what a script can reach: the debug view of the CPU plus the run
// loop.
type Machine interface {
	common.CPU
	Run(ctx context.Context) (hex16.Status, error)
}

// Typist is implemented by keyboard devices with an input queue. When one is
// attached, type() goes through it instead of writing the keyboard cell.
type Typist interface {
	Enqueue(key uint16)
}

// Engine is a Lua state bound to one machine.
type Engine struct {
	ctx    context.Context
	m      Machine
	logger *log.Logger
	state  *lua.LState
}

// New returns an engine with the machine functions registered as globals.
func New(ctx context.Context, m Machine, logger *log.Logger) *Engine {
	e := &Engine{
		ctx:    ctx,
		m:      m,
		logger: logger,
		state:  lua.NewState(),
	}
	e.state.SetContext(ctx)

	for name, fn := range map[string]lua.LGFunction{
		"peek":      e.peek,
		"poke":      e.poke,
		"reg":       e.reg,
		"setreg":    e.setreg,
		"pc":        e.pc,
		"type":      e.typeKeys,
		"text":      e.text,
		"step":      e.step,
		"run":       e.run,
		"disk":      e.disk,
		"interrupt": e.interrupt,
		"log":       e.log,
	} {
		e.state.SetGlobal(name, e.state.NewFunction(fn))
	}
	return e
}

// Close releases the Lua state.
func (e *Engine) Close() {
	e.state.Close()
}

// RunFile executes the script at path.
func (e *Engine) RunFile(path string) error {
	e.logger.Debug("Running script", log.String("file", path))
	if err := e.state.DoFile(path); err != nil {
		return fmt.Errorf("script %s: %w", path, err)
	}
	return nil
}

// RunString executes src.
func (e *Engine) RunString(src string) error {
	if err := e.state.DoString(src); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

func (e *Engine) address(L *lua.LState, n int) int {
	addr := L.CheckInt(n)
	if addr < 0 || addr >= len(e.m.Memory()) {
		L.ArgError(n, fmt.Sprintf("address %#04x outside memory", addr))
	}
	return addr
}

func (e *Engine) register(L *lua.LState, n int) uint16 {
	r := L.CheckInt(n)
	if r < 0 || r >= hex16.NumRegisters {
		L.ArgError(n, fmt.Sprintf("no register R%d", r))
	}
	return uint16(r)
}

// wordArg rejects argument n unless v fits in a machine word.
func wordArg(L *lua.LState, n, v int, what string) uint16 {
	if v < 0 || v > 0xFFFF {
		L.ArgError(n, fmt.Sprintf("%s %d does not fit in a word", what, v))
	}
	return uint16(v)
}

func (e *Engine) peek(L *lua.LState) int {
	L.Push(lua.LNumber(e.m.Memory()[e.address(L, 1)]))
	return 1
}

func (e *Engine) poke(L *lua.LState) int {
	addr := e.address(L, 1)
	e.m.Memory()[addr] = uint16(L.CheckInt(2))
	return 0
}

func (e *Engine) reg(L *lua.LState) int {
	val, err := e.m.ReadReg(e.register(L, 1))
	if err != nil {
		L.RaiseError("%v", err)
	}
	L.Push(lua.LNumber(val))
	return 1
}

func (e *Engine) setreg(L *lua.LState) int {
	if err := e.m.WriteReg(e.register(L, 1), uint16(L.CheckInt(2))); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

func (e *Engine) pc(L *lua.LState) int {
	L.Push(lua.LNumber(e.m.PC()))
	return 1
}

func (e *Engine) typeKeys(L *lua.LState) int {
	keys := L.CheckString(1)

	var typist Typist
	for _, dev := range e.m.Devices() {
		if t, ok := dev.(Typist); ok {
			typist = t
			break
		}
	}

	for _, ch := range keys {
		if typist != nil {
			typist.Enqueue(uint16(ch))
		} else {
			e.m.Memory()[e.m.KeyboardCell()] = uint16(ch)
		}
	}
	return 0
}

// text writes the seven-segment glyphs of str into video memory, starting at
// the given cell and running along the row.
func (e *Engine) text(L *lua.LState) int {
	row, col, str := L.CheckInt(1), L.CheckInt(2), L.CheckString(3)
	base, cols, rows := e.m.VideoRegion()
	if row < 0 || row >= rows || col < 0 || col+len([]rune(str)) > cols {
		L.RaiseError("text at row %d, column %d does not fit %dx%d video", row, col, cols, rows)
	}

	mem := e.m.Memory()
	at := int(base) + row*cols + col
	for i, ch := range []rune(str) {
		mem[at+i] = render.Glyph(ch)
	}
	return 0
}

func (e *Engine) step(L *lua.LState) int {
	n := L.OptInt(1, 1)
	for i := 0; i < n; i++ {
		halted, err := e.m.Step()
		if err != nil {
			L.RaiseError("%v", err)
		}
		if halted {
			L.Push(lua.LTrue)
			return 1
		}
	}
	L.Push(lua.LFalse)
	return 1
}

func (e *Engine) run(L *lua.LState) int {
	status, err := e.m.Run(e.ctx)
	if err != nil {
		L.RaiseError("%v", err)
	}
	L.Push(lua.LString(status.String()))
	return 1
}

func (e *Engine) disk(L *lua.LState) int {
	cmd := disk.Command(wordArg(L, 1, L.CheckInt(1), "command"))
	sector := wordArg(L, 2, L.CheckInt(2), "sector")
	addr := wordArg(L, 3, L.OptInt(3, 0), "address")

	if err := e.m.DiskCommand(cmd, sector, addr); err != nil {
		var fault *disk.Fault
		if errors.As(err, &fault) {
			e.logger.Warn("Disk fault in script", log.Err(err))
		}
		L.RaiseError("%v", err)
	}
	return 0
}

func (e *Engine) interrupt(*lua.LState) int {
	e.m.RaiseInterrupt()
	return 0
}

func (e *Engine) log(L *lua.LState) int {
	e.logger.Info("Script", log.String("message", L.CheckString(1)))
	return 0
}
