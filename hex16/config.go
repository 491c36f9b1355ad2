package hex16

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimerPolicy selects what drives the interrupt timer. A machine commits to
// one policy for its whole run.
type TimerPolicy int

const (
	// TimerCycles raises an interrupt every TimerCycles executed instructions.
	TimerCycles TimerPolicy = iota
	// TimerWallClock raises an interrupt once TimerPeriod has elapsed.
	TimerWallClock
	// TimerExternal leaves interrupts to an outside generator calling
	// RaiseInterrupt.
	TimerExternal
)

func (p TimerPolicy) String() string {
	switch p {
	case TimerCycles:
		return "cycles"
	case TimerWallClock:
		return "wall"
	case TimerExternal:
		return "external"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseTimerPolicy maps a flag value to a TimerPolicy.
func ParseTimerPolicy(s string) (TimerPolicy, error) {
	switch strings.ToLower(s) {
	case "cycles", "cycle":
		return TimerCycles, nil
	case "wall", "wallclock":
		return TimerWallClock, nil
	case "external", "clock":
		return TimerExternal, nil
	default:
		return 0, fmt.Errorf("unknown timer policy '%s'", s)
	}
}

// Config describes the machine layout and its pacing.
type Config struct {
	MemorySize  int
	ResetVector uint16

	VideoBase    uint16
	VideoColumns int
	VideoRows    int
	KeyboardCell uint16

	Timer       TimerPolicy
	TimerCycles uint32
	TimerPeriod time.Duration

	// Pace is the minimum time per cycle. Zero runs flat out.
	Pace time.Duration
	// Trace logs every fetched instruction at debug level.
	Trace bool
}

// DefaultConfig returns the standard layout: 64K words, video at 0x2000 with
// 80x25 cells, the keyboard cell at 0xFFFF and an interrupt every 8000
// instructions.
func DefaultConfig() Config {
	return Config{
		MemorySize:   1 << 16,
		ResetVector:  0,
		VideoBase:    0x2000,
		VideoColumns: 80,
		VideoRows:    25,
		KeyboardCell: 0xFFFF,
		Timer:        TimerCycles,
		TimerCycles:  8000,
		TimerPeriod:  20 * time.Millisecond,
		Pace:         16 * time.Millisecond,
	}
}

// Validate checks that every mapped region fits in memory.
func (c Config) Validate() error {
	if c.MemorySize <= 0 || c.MemorySize > 1<<16 {
		return fmt.Errorf("memory size %d outside 1..65536 words", c.MemorySize)
	}
	if int(c.ResetVector) >= c.MemorySize {
		return fmt.Errorf("reset vector %#04x outside memory", c.ResetVector)
	}
	if c.VideoColumns < 0 || c.VideoRows < 0 {
		return errors.New("video dimensions must not be negative")
	}
	if end := int(c.VideoBase) + c.VideoColumns*c.VideoRows; end > c.MemorySize {
		return fmt.Errorf("video region %#04x..%#04x does not fit in memory", c.VideoBase, end)
	}
	if int(c.KeyboardCell) >= c.MemorySize {
		return fmt.Errorf("keyboard cell %#04x outside memory", c.KeyboardCell)
	}

	switch c.Timer {
	case TimerCycles:
		if c.TimerCycles == 0 {
			return errors.New("cycle timer needs a threshold above zero")
		}
	case TimerWallClock:
		if c.TimerPeriod <= 0 {
			return errors.New("wall-clock timer needs a positive period")
		}
	case TimerExternal:
	default:
		return fmt.Errorf("unknown timer policy %d", int(c.Timer))
	}
	return nil
}
