package hex16

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bshepherdson/hex16/disk"
	"github.com/retroenv/retrogolib/log"
)

var registers = []string{"R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7",
	"R8", "R9", "R10", "R11", "R12", "R13", "R14", "R15", "PC"}

func (m *Machine) Registers() []string {
	return registers
}

// RegByName accepts R0..R15 and PC in either case.
func (m *Machine) RegByName(name string) (uint16, string, bool) {
	upper := strings.ToUpper(name)
	if upper == "PC" {
		return uint16(m.pc), "PC", true
	}
	if !strings.HasPrefix(upper, "R") {
		return 0, "", false
	}
	i, err := strconv.Atoi(upper[1:])
	if err != nil || i < 0 || i >= NumRegisters {
		return 0, "", false
	}
	return m.regs[i], fmt.Sprintf("R%d", i), true
}

func (m *Machine) DebugPrompt() string {
	return fmt.Sprintf("[%04x] %s > ", m.pc, m.DisassembleOp(uint16(m.pc)))
}

// DiskCommand runs a controller command against the sector-sized memory
// window at addr. Reads only change memory when the whole sector arrived.
func (m *Machine) DiskCommand(cmd disk.Command, sector, addr uint16) error {
	if m.disk == nil {
		return &disk.Fault{Command: cmd, Sector: sector, Err: disk.ErrUnavailable}
	}

	if cmd == disk.CmdReset {
		return m.disk.Handle(cmd, sector, nil)
	}

	start, end := int(addr), int(addr)+disk.SectorSize
	if end > m.mem.Len() {
		return &disk.Fault{Command: cmd, Sector: sector,
			Err: fmt.Errorf("%w: window %#04x..%#04x outside memory", ErrAddressing, start, end)}
	}

	window := m.mem.words[start:end]
	if cmd == disk.CmdRead {
		buf := make([]uint16, disk.SectorSize)
		if err := m.disk.Handle(cmd, sector, buf); err != nil {
			return err
		}
		copy(window, buf)
		m.logger.Debug("Sector read", log.Uint16("sector", sector), log.Hex("addr", addr))
		return nil
	}
	return m.disk.Handle(cmd, sector, window)
}
