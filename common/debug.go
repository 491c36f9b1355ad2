package common

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/bshepherdson/hex16/disk"
	"github.com/bshepherdson/hex16/render"
)

// DebugCommand captures a self-describing debug command.
type DebugCommand interface {
	Describe() string
	Run(c CPU, out io.Writer, args []string) error
}

type debugBlob struct {
	desc string
	f    func(CPU, io.Writer, []string) error
}

// DebugCommands is a map of command strings to command objects.
var DebugCommands = map[string]DebugCommand{
	"r": newCommand("Dump one or all (r)egisters ('r' vs. 'r r3 pc')", cmdRegs),
	"q": newCommand("(Q)uit the emulator", func(CPU, io.Writer, []string) error {
		return ErrQuit
	}),

	"c": newCommand("(C)ontinue execution", func(c CPU, _ io.Writer, _ []string) error {
		*c.Debugging() = false
		return nil
	}),

	"s": newCommand("(S)tep forward, run next instruction", cmdStep),

	"b": newCommand("Set a new (b)reakpoint at the given (hex) location",
		singleHexArg("No breakpoint location specified (needs hex number)",
			func(c CPU, out io.Writer, loc uint16) error {
				c.AddBreakpoint(loc)
				fmt.Fprintf(out, "Breakpoint set at PC = %04x\n", loc)
				return nil
			})),

	"m": newCommand("Print a value from (m)emory",
		singleHexArg("No memory location specified",
			func(c CPU, out io.Writer, loc uint16) error {
				mem := c.Memory()
				if int(loc) >= len(mem) {
					return fmt.Errorf("location %04x is outside memory", loc)
				}
				x := mem[loc]
				fmt.Fprintf(out, "[%04x] = %04x (%d, '%c')\n", loc, x, int16(x), rune(x))
				return nil
			})),

	"i": newCommand("Disassemble the (i)nstructions at the given location, or at PC", cmdDisasm),

	"db": newCommand("(D)ump memory to the given file in (b)inary (little-endian)", cmdDump),

	"video": newCommand("Show the video region, or the dots of one cell ('video 2005')", cmdVideo),
	"key":   newCommand("Type a character into the keyboard cell", cmdKey),
	"disk":  newCommand("Run a disk command: 'disk <0|1|2> <sector> [hex address]'", cmdDisk),
	"poke":  newCommand("Write a (hex) value into (hex) memory: 'poke 2000 3f'", cmdPoke),
	"shot":  newCommand("Save a BMP screenshot of the video region: 'shot file.bmp [style]'", cmdShot),
}

func newCommand(desc string, f func(CPU, io.Writer, []string) error) DebugCommand {
	d := new(debugBlob)
	d.desc = desc
	d.f = f
	return d
}

func (dbg *debugBlob) Describe() string {
	return dbg.desc
}

func (dbg *debugBlob) Run(c CPU, out io.Writer, args []string) error {
	return dbg.f(c, out, args)
}

func showReg(c CPU, out io.Writer, name string, val uint16) {
	mem := c.Memory()
	var memval uint16
	if int(val) < len(mem) {
		memval = mem[val]
	}
	fmt.Fprintf(out, "%3s  %04x (%d)\t[%s]  %04x (%d)\n", name, val, int16(val),
		name, memval, int16(memval))
}

func cmdRegs(c CPU, out io.Writer, args []string) error {
	if len(args) > 1 {
		for _, r := range args[1:] {
			value, name, ok := c.RegByName(r)
			if ok {
				showReg(c, out, name, value)
			} else {
				fmt.Fprintf(out, "%% Unknown register: %s\n", r)
			}
		}
		return nil
	}

	for _, r := range c.Registers() {
		value, name, _ := c.RegByName(r)
		showReg(c, out, name, value)
	}
	return nil
}

func cmdStep(c CPU, out io.Writer, _ []string) error {
	halted, err := c.Step()
	if err != nil {
		return err
	}
	if halted {
		fmt.Fprintln(out, "Machine halted")
		return nil
	}
	fmt.Fprintf(out, "%04x: %s\n", c.PC(), c.DisassembleOp(c.PC()))
	return nil
}

func cmdDisasm(c CPU, out io.Writer, args []string) error {
	loc := c.PC()
	if len(args) > 1 {
		x, err := parseHex(args[1])
		if err != nil {
			return err
		}
		loc = x
	}

	size := len(c.Memory())
	for i := int(loc); i < int(loc)+16 && i < size; i++ {
		fmt.Fprintf(out, "%04x: %04x    %s\n", i, c.Memory()[i], c.DisassembleOp(uint16(i)))
	}
	return nil
}

func cmdDump(c CPU, out io.Writer, args []string) error {
	if len(args) < 2 {
		return errors.New("no filename given")
	}

	f, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("could not open file: %w", err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, c.Memory()); err != nil {
		return fmt.Errorf("writing memory dump: %w", err)
	}
	fmt.Fprintf(out, "Wrote %d words to %s\n", len(c.Memory()), args[1])
	return nil
}

func videoWords(c CPU) []uint16 {
	base, cols, rows := c.VideoRegion()
	return c.Memory()[int(base) : int(base)+cols*rows]
}

func cmdVideo(c CPU, out io.Writer, args []string) error {
	if len(args) > 1 {
		loc, err := parseHex(args[1])
		if err != nil {
			return err
		}
		mem := c.Memory()
		if int(loc) >= len(mem) {
			return fmt.Errorf("location %04x is outside memory", loc)
		}
		fmt.Fprintln(out, render.Bits(mem[loc]))
		return nil
	}

	_, cols, rows := c.VideoRegion()
	fmt.Fprint(out, render.Text(videoWords(c), cols, rows))
	return nil
}

func cmdKey(c CPU, out io.Writer, args []string) error {
	if len(args) < 2 || len(args[1]) == 0 {
		return errors.New("'key' requires a character")
	}
	key := uint16(args[1][0])
	c.Memory()[c.KeyboardCell()] = key
	fmt.Fprintf(out, "Typed '%c' (%04x)\n", rune(key), key)
	return nil
}

func cmdDisk(c CPU, out io.Writer, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: disk <0|1|2> <sector> [hex address]")
	}

	cmd, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		return fmt.Errorf("bad command: %w", err)
	}
	sector, err := strconv.ParseUint(args[2], 10, 16)
	if err != nil {
		return fmt.Errorf("bad sector: %w", err)
	}
	var addr uint16
	if len(args) > 3 {
		if addr, err = parseHex(args[3]); err != nil {
			return err
		}
	}

	if err := c.DiskCommand(disk.Command(cmd), uint16(sector), addr); err != nil {
		return err
	}
	fmt.Fprintf(out, "Disk %s of sector %d done (memory %04x)\n", disk.Command(cmd), sector, addr)
	return nil
}

func cmdPoke(c CPU, out io.Writer, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: poke <hex address> <hex value>")
	}
	loc, err := parseHex(args[1])
	if err != nil {
		return err
	}
	val, err := parseHex(args[2])
	if err != nil {
		return err
	}
	mem := c.Memory()
	if int(loc) >= len(mem) {
		return fmt.Errorf("location %04x is outside memory", loc)
	}
	mem[loc] = val
	fmt.Fprintf(out, "[%04x] = %04x\n", loc, val)
	return nil
}

func cmdShot(c CPU, out io.Writer, args []string) error {
	if len(args) < 2 {
		return errors.New("no filename given")
	}
	style := render.DotMatrix
	if len(args) > 2 {
		s, err := render.ParseStyle(args[2])
		if err != nil {
			return err
		}
		style = s
	}

	f, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("could not open file: %w", err)
	}
	defer f.Close()

	_, cols, rows := c.VideoRegion()
	img := render.Frame(videoWords(c), cols, rows, style)
	if err := render.SaveBMP(f, img, 1); err != nil {
		return err
	}
	fmt.Fprintf(out, "Screenshot saved to %s\n", args[1])
	return nil
}

func parseHex(s string) (uint16, error) {
	var x uint16
	if _, err := fmt.Sscanf(s, "%x", &x); err != nil {
		return 0, fmt.Errorf("error parsing location: %w", err)
	}
	return x, nil
}

func singleHexArg(notSpecifiedMsg string,
	cmd func(c CPU, out io.Writer, arg uint16) error) func(CPU, io.Writer, []string) error {
	return func(c CPU, out io.Writer, args []string) error {
		if len(args) <= 1 {
			return errors.New(notSpecifiedMsg)
		}

		x, err := parseHex(args[1])
		if err != nil {
			return err
		}

		return cmd(c, out, x)
	}
}
