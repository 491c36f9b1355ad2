//go:build !windows

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/bshepherdson/hex16/common"
	"github.com/bshepherdson/hex16/render"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const terminalRefresh = 100 * time.Millisecond

// Terminal renders the video region as text and feeds raw keystrokes into the
// keyboard queue.
type Terminal struct {
	fd       int
	oldState *term.State
	out      *bufio.Writer
	logger   *log.Logger

	shown     []uint16
	lastFrame time.Time
	buf       []byte
}

func newTerminal(_ common.CPU, _ *options, logger *log.Logger) (common.Device, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: stdin is not a terminal", common.ErrIOUnavailable)
	}

	t := &Terminal{
		fd:     fd,
		out:    bufio.NewWriter(os.Stdout),
		logger: logger,
		buf:    make([]byte, 64),
	}
	if err := t.Resume(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Terminal) Name() string { return "term" }

// Resume puts the terminal into raw, non-blocking mode.
func (t *Terminal) Resume() error {
	oldState, err := term.MakeRaw(t.fd)
	if err != nil {
		return fmt.Errorf("%w: raw mode: %w", common.ErrIOUnavailable, err)
	}
	if err := unix.SetNonblock(t.fd, true); err != nil {
		_ = term.Restore(t.fd, oldState)
		return fmt.Errorf("%w: nonblocking stdin: %w", common.ErrIOUnavailable, err)
	}
	t.oldState = oldState
	t.shown = nil
	return nil
}

// Suspend hands the terminal back in its original mode, for the debug
// console.
func (t *Terminal) Suspend() {
	if t.oldState == nil {
		return
	}
	_ = unix.SetNonblock(t.fd, false)
	_ = term.Restore(t.fd, t.oldState)
	t.oldState = nil
}

func (t *Terminal) Poll(c common.CPU) error {
	if t.oldState == nil {
		return nil
	}
	n, err := unix.Read(t.fd, t.buf)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	if n == 0 {
		return nil
	}

	keys, quit := translateTerminalInput(t.buf[:n])
	for _, key := range keys {
		typeKey(c, key)
	}
	if quit {
		return common.ErrQuit
	}
	return nil
}

// translateTerminalInput maps raw terminal bytes to key codes. Ctrl+C asks
// for a quit, since raw mode swallows the signal.
func translateTerminalInput(raw []byte) ([]uint16, bool) {
	var keys []uint16
	for i := 0; i < len(raw); i++ {
		b := raw[i]
		switch {
		case b == 0x03:
			return keys, true
		case b == '\r' || b == '\n':
			keys = append(keys, KeyReturn)
		case b == 0x7F || b == 0x08:
			keys = append(keys, KeyBackspace)
		case b == 0x1B && i+2 < len(raw) && raw[i+1] == '[':
			if key, ok := arrowKeys[raw[i+2]]; ok {
				keys = append(keys, key)
			}
			i += 2
		case b >= 0x20 && b < 0x7F:
			keys = append(keys, uint16(b))
		}
	}
	return keys, false
}

var arrowKeys = map[byte]uint16{
	'A': KeyUp,
	'B': KeyDown,
	'C': KeyRight,
	'D': KeyLeft,
}

func (t *Terminal) Frame(c common.CPU) error {
	if t.oldState == nil || time.Since(t.lastFrame) < terminalRefresh {
		return nil
	}
	t.lastFrame = time.Now()

	base, cols, rows := c.VideoRegion()
	video := c.Memory()[int(base) : int(base)+cols*rows]
	if slices.Equal(video, t.shown) {
		return nil
	}
	t.shown = slices.Clone(video)

	return t.paint(t.out, render.Text(video, cols, rows))
}

func (t *Terminal) paint(w *bufio.Writer, screen string) error {
	fmt.Fprint(w, "\x1b[H\x1b[2J")
	// Raw mode does not translate newlines.
	io.WriteString(w, strings.ReplaceAll(screen, "\n", "\r\n"))
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing terminal: %w", err)
	}
	return nil
}

func (t *Terminal) Cleanup() {
	t.Suspend()
	t.logger.Debug("Terminal restored")
}
