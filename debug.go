package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/bshepherdson/hex16/common"
)

// console is the interactive debugger shown while the machine is in debug
// mode.
type console struct {
	in  *bufio.Reader
	out io.Writer
}

// prompt reads and runs one command. It returns common.ErrQuit when the user
// quits or the input ends.
func (con *console) prompt(c common.CPU) error {
	fmt.Fprint(con.out, c.DebugPrompt())
	in, err := con.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(con.out)
			return common.ErrQuit
		}
		return fmt.Errorf("error while reading input: %w", err)
	}

	args := strings.Fields(in)
	if len(args) == 0 {
		return nil
	}

	cmd, ok := common.DebugCommands[args[0]]
	if !ok {
		fmt.Fprintf(con.out, "Unknown command '%s'\n", args[0])
		con.help()
		return nil
	}

	err = cmd.Run(c, con.out, args)
	if errors.Is(err, common.ErrQuit) {
		return err
	}
	if err != nil {
		fmt.Fprintf(con.out, "%% %v\n", err)
	}
	return nil
}

func (con *console) help() {
	names := make([]string, 0, len(common.DebugCommands))
	for name := range common.DebugCommands {
		names = append(names, name)
	}
	slices.Sort(names)

	fmt.Fprintf(con.out, "Commands:\n")
	for _, name := range names {
		fmt.Fprintf(con.out, "%s\t%s\n", name, common.DebugCommands[name].Describe())
	}
}
