// Package disk emulates the block device: a flat image of little-endian
// 16-bit words split into fixed-size sectors.
package disk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/retroenv/retrogolib/log"
)

const (
	// SectorSize is the number of words in one sector.
	SectorSize = 1024
	// BootWords is the size of the boot region copied into memory at start.
	BootWords = 1024

	wordSize   = 2
	sectorSize = SectorSize * wordSize
)

// Command selects the controller operation.
type Command uint16

const (
	CmdReset Command = 0
	CmdRead  Command = 1
	CmdWrite Command = 2
)

func (c Command) String() string {
	switch c {
	case CmdReset:
		return "reset"
	case CmdRead:
		return "read"
	case CmdWrite:
		return "write"
	default:
		return fmt.Sprintf("command(%d)", uint16(c))
	}
}

var (
	ErrUnavailable        = errors.New("disk image unavailable")
	ErrUnsupportedCommand = errors.New("unsupported disk command")
	ErrShortRead          = errors.New("short sector read")
	ErrBufferSize         = errors.New("buffer is not one sector long")
)

// Fault is a recoverable disk error. It never touches machine state.
type Fault struct {
	Command Command
	Sector  uint16
	Err     error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("disk %s of sector %d: %v", f.Command, f.Sector, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Controller is a stateless front for a disk image file. Every call opens the
// image, performs the command and closes it again.
type Controller struct {
	path   string
	logger *log.Logger
}

// New returns a controller for the image at path.
func New(path string, logger *log.Logger) *Controller {
	return &Controller{path: path, logger: logger}
}

// Path returns the image file name.
func (c *Controller) Path() string {
	return c.path
}

// Handle runs one command against the image. For reads buf is filled with the
// sector contents; for writes buf is stored verbatim. Reset ignores buf.
func (c *Controller) Handle(cmd Command, sector uint16, buf []uint16) (err error) {
	fault := func(err error) error {
		return &Fault{Command: cmd, Sector: sector, Err: err}
	}

	flag := os.O_RDONLY
	switch cmd {
	case CmdReset:
	case CmdRead:
		if len(buf) != SectorSize {
			return fault(fmt.Errorf("%w: got %d words", ErrBufferSize, len(buf)))
		}
	case CmdWrite:
		if len(buf) != SectorSize {
			return fault(fmt.Errorf("%w: got %d words", ErrBufferSize, len(buf)))
		}
		flag = os.O_RDWR | os.O_CREATE
	default:
		return fault(ErrUnsupportedCommand)
	}

	file, err := os.OpenFile(c.path, flag, 0o644)
	if err != nil {
		return fault(fmt.Errorf("%w: %w", ErrUnavailable, err))
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fault(cerr)
		}
	}()

	offset := int64(sector) * sectorSize

	switch cmd {
	case CmdReset:
		c.logger.Debug("Disk reset")

	case CmdRead:
		raw := make([]byte, sectorSize)
		n, err := file.ReadAt(raw, offset)
		if n < len(raw) {
			if err != nil && !errors.Is(err, io.EOF) {
				return fault(err)
			}
			return fault(fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, n, len(raw)))
		}
		for i := range buf {
			buf[i] = binary.LittleEndian.Uint16(raw[i*wordSize:])
		}
		c.logger.Debug("Sector read", log.Uint16("sector", sector))

	case CmdWrite:
		raw := make([]byte, sectorSize)
		for i, w := range buf {
			binary.LittleEndian.PutUint16(raw[i*wordSize:], w)
		}
		if _, err := file.WriteAt(raw, offset); err != nil {
			return fault(err)
		}
		c.logger.Debug("Sector written", log.Uint16("sector", sector))
	}

	return nil
}
