package hex16

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/retroenv/retrogolib/log"
)

// ErrImageTooLarge is returned when a program image does not fit in memory.
var ErrImageTooLarge = errors.New("program image larger than memory")

// LoadProgram copies a little-endian word image into memory starting at
// address 0 and returns the number of words loaded. A trailing odd byte is
// ignored. Memory past the image is left as it was.
func (m *Machine) LoadProgram(r io.Reader) (int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("reading program image: %w", err)
	}

	n := len(raw) / 2
	if n > m.mem.Len() {
		return 0, fmt.Errorf("%w: %d words into %d", ErrImageTooLarge, n, m.mem.Len())
	}
	if len(raw)%2 != 0 {
		m.logger.Warn("Program image has an odd trailing byte", log.Int("bytes", len(raw)))
	}

	words := m.mem.Words()
	for i := range n {
		words[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	m.logger.Debug("Program loaded", log.Int("words", n))
	return n, nil
}

// WriteImage writes words as a little-endian image, the format LoadProgram
// and the disk controller read.
func WriteImage(w io.Writer, words []uint16) error {
	if err := binary.Write(w, binary.LittleEndian, words); err != nil {
		return fmt.Errorf("writing image: %w", err)
	}
	return nil
}
