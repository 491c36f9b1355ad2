package hex16

import "fmt"

// NumRegisters is the size of the general-purpose register file.
const NumRegisters = 16

// Memory is the flat word-addressed address space shared by code, data and
// the mapped device regions.
type Memory struct {
	words []uint16
}

// NewMemory returns size zeroed words.
func NewMemory(size int) *Memory {
	return &Memory{words: make([]uint16, size)}
}

// Len returns the number of words.
func (m *Memory) Len() int {
	return len(m.words)
}

// Words exposes the backing slice to devices and test harnesses.
func (m *Memory) Words() []uint16 {
	return m.words
}

func (m *Memory) Read(addr int) (uint16, error) {
	if addr < 0 || addr >= len(m.words) {
		return 0, fmt.Errorf("%w: read of %#04x outside %d words", ErrAddressing, addr, len(m.words))
	}
	return m.words[addr], nil
}

func (m *Memory) Write(addr int, val uint16) error {
	if addr < 0 || addr >= len(m.words) {
		return fmt.Errorf("%w: write of %#04x outside %d words", ErrAddressing, addr, len(m.words))
	}
	m.words[addr] = val
	return nil
}

func (m *Memory) clear() {
	clear(m.words)
}

// Registers is the general-purpose register file, R0..R15.
type Registers [NumRegisters]uint16

func (r *Registers) Get(i int) (uint16, error) {
	if i < 0 || i >= NumRegisters {
		return 0, fmt.Errorf("%w: register R%d", ErrAddressing, i)
	}
	return r[i], nil
}

func (r *Registers) Set(i int, val uint16) error {
	if i < 0 || i >= NumRegisters {
		return fmt.Errorf("%w: register R%d", ErrAddressing, i)
	}
	r[i] = val
	return nil
}
