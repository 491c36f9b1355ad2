package hex16

// Opcodes live in the high nibble of the instruction word.
const (
	OpLOD uint16 = 0x1
	OpADD uint16 = 0x2
	OpJMP uint16 = 0x4
	OpHLT uint16 = 0xF
)

// LOD  |0001    |dest   |addr8          | reg[dest] = mem[addr]
// ADD  |0010    |dest   |src    |0000   | reg[dest] += reg[src]
// JMP  |0100    |addr12                 | pc = addr
// HLT  |1111    |ignored                | stop
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]

func opcode(instruction uint16) uint16 { return instruction >> 12 }
func regA(instruction uint16) int      { return int(instruction>>8) & 0xF }
func regB(instruction uint16) int      { return int(instruction>>4) & 0xF }
func addr8(instruction uint16) int     { return int(instruction & 0x00FF) }
func addr12(instruction uint16) int    { return int(instruction & 0x0FFF) }

// EncodeLOD builds "LOD Rdest, [addr]".
func EncodeLOD(dest int, addr uint8) uint16 {
	return OpLOD<<12 | uint16(dest&0xF)<<8 | uint16(addr)
}

// EncodeADD builds "ADD Rdest, Rsrc".
func EncodeADD(dest, src int) uint16 {
	return OpADD<<12 | uint16(dest&0xF)<<8 | uint16(src&0xF)<<4
}

// EncodeJMP builds "JMP addr"; only the low 12 bits of addr are kept.
func EncodeJMP(addr uint16) uint16 {
	return OpJMP<<12 | addr&0x0FFF
}

// EncodeHLT builds "HLT".
func EncodeHLT() uint16 {
	return OpHLT << 12
}
