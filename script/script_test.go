package script

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bshepherdson/hex16/common"
	"github.com/bshepherdson/hex16/disk"
	"github.com/bshepherdson/hex16/hex16"
	"github.com/bshepherdson/hex16/render"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func newEngine(t *testing.T) (*Engine, *hex16.Machine) {
	t.Helper()
	cfg := hex16.DefaultConfig()
	cfg.Pace = 0
	logger := log.NewTestLogger(t)

	m, err := hex16.New(cfg, logger)
	assert.NoError(t, err)
	e := New(t.Context(), m, logger)
	t.Cleanup(e.Close)
	return e, m
}

func TestRunProgram(t *testing.T) {
	e, m := newEngine(t)
	err := e.RunString(`
		poke(0, 0x100A)
		poke(1, 0x2001)
		poke(2, 0xF000)
		poke(0x0A, 7)
		status = run()
		assert(status == "halted", status)
		assert(reg(0) == 14)
		assert(pc() == 3)
	`)
	assert.NoError(t, err)
	assert.Equal(t, uint16(14), m.Regs()[0])
}

func TestStepAndRegisters(t *testing.T) {
	e, m := newEngine(t)
	err := e.RunString(`
		setreg(1, 40)
		setreg(2, 2)
		poke(0, 0x2120)
		poke(1, 0xF000)
		assert(step() == false)
		assert(reg(1) == 42)
		assert(step(5) == true)
		assert(peek(1) == 0xF000)
	`)
	assert.NoError(t, err)
	assert.Equal(t, uint16(2), m.PC())
}

func TestFaultBecomesLuaError(t *testing.T) {
	e, _ := newEngine(t)
	err := e.RunString(`poke(0, 0x3000); step()`)
	assert.ErrorContains(t, err, "decode fault")

	err = e.RunString(`
		local ok, msg = pcall(run)
		assert(not ok)
		assert(string.find(msg, "decode fault"))
	`)
	assert.NoError(t, err)
}

func TestBadArguments(t *testing.T) {
	e, _ := newEngine(t)
	assert.ErrorContains(t, e.RunString(`peek(0x10000)`), "outside memory")
	assert.ErrorContains(t, e.RunString(`reg(16)`), "no register")
	assert.ErrorContains(t, e.RunString(`text(25, 0, "x")`), "does not fit")
	assert.ErrorContains(t, e.RunString(`text(0, 78, "abc")`), "does not fit")
}

func TestText(t *testing.T) {
	e, m := newEngine(t)
	assert.NoError(t, e.RunString(`text(1, 2, "42")`))

	base := 0x2000 + 80 + 2
	assert.Equal(t, render.Glyph('4'), m.Memory()[base])
	assert.Equal(t, render.Glyph('2'), m.Memory()[base+1])
	assert.Equal(t, uint16(0), m.Memory()[base+2])
}

type queue struct{ keys []uint16 }

func (q *queue) Name() string { return "queue" }
func (q *queue) Poll(common.CPU) error { return nil }
func (q *queue) Frame(common.CPU) error { return nil }
func (q *queue) Cleanup() {}
func (q *queue) Enqueue(key uint16) { q.keys = append(q.keys, key) }

func TestType(t *testing.T) {
	e, m := newEngine(t)
	assert.NoError(t, e.RunString(`type("hi")`))
	assert.Equal(t, uint16('i'), m.Memory()[0xFFFF])

	q := &queue{}
	m.AddDevice(q)
	assert.NoError(t, e.RunString(`type("ok")`))
	assert.Equal(t, []uint16{'o', 'k'}, q.keys)
}

func TestDisk(t *testing.T) {
	e, m := newEngine(t)

	var buf bytes.Buffer
	assert.NoError(t, disk.Fill(&buf, 1, 0xABCD))
	path := filepath.Join(t.TempDir(), "disk.img")
	assert.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	m.AttachDisk(disk.New(path, log.NewTestLogger(t)))

	assert.NoError(t, e.RunString(`disk(1, 0, 0x400); assert(peek(0x400) == 0xABCD)`))
	assert.ErrorContains(t, e.RunString(`disk(1, 3, 0)`), "short sector read")

	// Out-of-range arguments are rejected instead of wrapping to a word.
	m.Memory()[0xFC00] = 0x5555
	assert.ErrorContains(t, e.RunString(`disk(1, -1)`), "sector -1 does not fit")
	assert.ErrorContains(t, e.RunString(`disk(1, 0, 0x10000)`), "address 65536 does not fit")
	assert.ErrorContains(t, e.RunString(`disk(-1, 0)`), "command -1 does not fit")
	assert.Equal(t, uint16(0x5555), m.Memory()[0xFC00])
}

func TestInterruptAndLog(t *testing.T) {
	e, m := newEngine(t)
	assert.NoError(t, e.RunString(`interrupt(); log("raised")`))
	assert.True(t, m.InterruptPending())
}

func TestRunFile(t *testing.T) {
	e, m := newEngine(t)
	path := filepath.Join(t.TempDir(), "boot.lua")
	assert.NoError(t, os.WriteFile(path, []byte("poke(5, 99)\n"), 0o644))

	assert.NoError(t, e.RunFile(path))
	assert.Equal(t, uint16(99), m.Memory()[5])
	assert.Error(t, e.RunFile(filepath.Join(t.TempDir(), "missing.lua")))
}
