package disk

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func newImage(t *testing.T, sectors int, value uint16) string {
	t.Helper()

	var buf bytes.Buffer
	assert.NoError(t, Fill(&buf, sectors, value))

	path := filepath.Join(t.TempDir(), "disk.img")
	assert.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func sectorOf(value uint16) []uint16 {
	buf := make([]uint16, SectorSize)
	for i := range buf {
		buf[i] = value
	}
	return buf
}

func TestReadFilledSector(t *testing.T) {
	path := newImage(t, 1, 0xABCD)
	c := New(path, log.NewTestLogger(t))

	buf := make([]uint16, SectorSize)
	assert.NoError(t, c.Handle(CmdRead, 0, buf))

	for i, w := range buf {
		if w != 0xABCD {
			t.Fatalf("word %d: want 0xabcd, have %#04x", i, w)
		}
	}
}

func TestWriteThenRead(t *testing.T) {
	path := newImage(t, 4, 0)
	c := New(path, log.NewTestLogger(t))

	out := make([]uint16, SectorSize)
	for i := range out {
		out[i] = uint16(i*7 + 3)
	}
	assert.NoError(t, c.Handle(CmdWrite, 2, out))

	in := make([]uint16, SectorSize)
	assert.NoError(t, c.Handle(CmdRead, 2, in))
	assert.Equal(t, out, in)

	// Neighbours are untouched.
	assert.NoError(t, c.Handle(CmdRead, 1, in))
	assert.Equal(t, sectorOf(0), in)
	assert.NoError(t, c.Handle(CmdRead, 3, in))
	assert.Equal(t, sectorOf(0), in)
}

func TestWriteGrowsImage(t *testing.T) {
	path := newImage(t, 1, 0x1111)
	c := New(path, log.NewTestLogger(t))

	assert.NoError(t, c.Handle(CmdWrite, 3, sectorOf(0x2222)))

	n, err := Sectors(path)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]uint16, SectorSize)
	assert.NoError(t, c.Handle(CmdRead, 3, buf))
	assert.Equal(t, sectorOf(0x2222), buf)
	assert.NoError(t, c.Handle(CmdRead, 0, buf))
	assert.Equal(t, sectorOf(0x1111), buf)
}

func TestWriteCreatesMissingImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.img")
	c := New(path, log.NewTestLogger(t))

	assert.NoError(t, c.Handle(CmdWrite, 0, sectorOf(0x0102)))

	raw, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Len(t, raw, SectorSize*2)
	assert.Equal(t, byte(0x02), raw[0])
	assert.Equal(t, byte(0x01), raw[1])
}

func TestResetLeavesImageAlone(t *testing.T) {
	path := newImage(t, 2, 0x5A5A)
	before, err := os.ReadFile(path)
	assert.NoError(t, err)

	c := New(path, log.NewTestLogger(t))
	for range 3 {
		assert.NoError(t, c.Handle(CmdReset, 1, nil))
	}

	after, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFaults(t *testing.T) {
	path := newImage(t, 1, 0)
	missing := filepath.Join(t.TempDir(), "missing.img")

	tests := []struct {
		name   string
		path   string
		cmd    Command
		sector uint16
		buf    []uint16
		want   error
	}{
		{
			name: "unsupported command",
			path: path,
			cmd:  Command(3),
			buf:  sectorOf(0),
			want: ErrUnsupportedCommand,
		},
		{
			name:   "read past end",
			path:   path,
			cmd:    CmdRead,
			sector: 1,
			buf:    make([]uint16, SectorSize),
			want:   ErrShortRead,
		},
		{
			name: "read missing image",
			path: missing,
			cmd:  CmdRead,
			buf:  make([]uint16, SectorSize),
			want: ErrUnavailable,
		},
		{
			name: "reset missing image",
			path: missing,
			cmd:  CmdReset,
			want: ErrUnavailable,
		},
		{
			name: "short buffer",
			path: path,
			cmd:  CmdWrite,
			buf:  make([]uint16, 10),
			want: ErrBufferSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.path, log.NewTestLogger(t))
			err := c.Handle(tt.cmd, tt.sector, tt.buf)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))

			var fault *Fault
			assert.True(t, errors.As(err, &fault))
			assert.Equal(t, tt.cmd, fault.Command)
			assert.Equal(t, tt.sector, fault.Sector)
		})
	}
}

func TestShortReadLeavesBufferAlone(t *testing.T) {
	path := newImage(t, 1, 0xFFFF)
	c := New(path, log.NewTestLogger(t))

	buf := sectorOf(0x1234)
	assert.Error(t, c.Handle(CmdRead, 5, buf))
	assert.Equal(t, sectorOf(0x1234), buf)
}
