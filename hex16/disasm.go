package hex16

import (
	"fmt"
	"io"
)

// DisassembleWord renders one instruction word. Words that do not decode show
// as "???".
func DisassembleWord(w uint16) string {
	switch opcode(w) {
	case OpLOD:
		return fmt.Sprintf("LOD R%d, [$%02x]", regA(w), addr8(w))
	case OpADD:
		return fmt.Sprintf("ADD R%d, R%d", regA(w), regB(w))
	case OpJMP:
		return fmt.Sprintf("JMP $%03x", addr12(w))
	case OpHLT:
		return "HLT"
	default:
		return "???"
	}
}

// DisassembleOp renders the instruction stored at the given address.
func (m *Machine) DisassembleOp(at uint16) string {
	w, err := m.mem.Read(int(at))
	if err != nil {
		return "???"
	}
	return DisassembleWord(w)
}

// Disassemble writes count instructions starting at from, one per line.
func (m *Machine) Disassemble(out io.Writer, from uint16, count int) {
	for i := int(from); i < int(from)+count && i < m.mem.Len(); i++ {
		w := m.mem.words[i]
		fmt.Fprintf(out, "%04x: %04x    %s\n", i, w, DisassembleWord(w))
	}
}
