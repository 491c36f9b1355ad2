// Package main implements the hex16 virtual machine command line.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bshepherdson/hex16/common"
	"github.com/bshepherdson/hex16/disk"
	"github.com/bshepherdson/hex16/hex16"
	"github.com/bshepherdson/hex16/render"
	"github.com/bshepherdson/hex16/script"
	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

const (
	defaultProgram = "program.bin"
	defaultDisk    = "disk.img"
)

type options struct {
	program string
	disk    string

	hw          string
	dumpDevices bool
	timer       hex16.TimerPolicy
	timerCycles uint
	timerPeriod time.Duration
	pace        time.Duration
	memory      int
	turbo       bool
	boot        bool
	diskSectors int

	script string
	debug  bool
	trace  bool
	quiet  bool

	echo     bool
	scale    int
	style    render.Style
	styleSet bool

	generate    bool
	generateDir string
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	flags := flag.NewFlagSet("hex16", flag.ContinueOnError)
	flags.SetOutput(output)
	defaults := hex16.DefaultConfig()
	opts := &options{}

	var timer, style string
	flags.StringVar(&opts.hw, "hw", "keyboard", "comma-separated list of hardware devices, see -dump-hw")
	flags.BoolVar(&opts.dumpDevices, "dump-hw", false, "print the list of hardware devices and exit")
	flags.StringVar(&timer, "timer", "cycles", "interrupt timer policy: cycles, wall or external")
	flags.UintVar(&opts.timerCycles, "timer-cycles", uint(defaults.TimerCycles), "instructions between interrupts for the cycles timer")
	flags.DurationVar(&opts.timerPeriod, "timer-period", defaults.TimerPeriod, "interrupt period for the wall and external timers")
	flags.DurationVar(&opts.pace, "pace", defaults.Pace, "minimum time per cycle, 0 runs unpaced")
	flags.IntVar(&opts.memory, "memory", defaults.MemorySize, "memory size in words")
	flags.BoolVar(&opts.turbo, "turbo", false, "start in turbo mode, ignoring -pace")
	flags.BoolVar(&opts.boot, "boot", true, "copy the start of the disk image into memory before loading the program")
	flags.IntVar(&opts.diskSectors, "disk-sectors", 1, "size in sectors of a newly created disk image")
	flags.StringVar(&opts.script, "script", "", "Lua script to run before the machine starts")
	flags.BoolVar(&opts.debug, "debug", false, "start in the debug console and log at debug level")
	flags.BoolVar(&opts.trace, "trace", false, "log every fetched instruction (needs -debug)")
	flags.BoolVar(&opts.quiet, "q", false, "only log errors")
	flags.BoolVar(&opts.echo, "echo", false, "echo typed keys into video memory")
	flags.IntVar(&opts.scale, "scale", 1, "window scale factor")
	flags.StringVar(&style, "style", "", "video style for windows and screenshots: dots or segments")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if opts.timer, err = hex16.ParseTimerPolicy(timer); err != nil {
		return nil, err
	}
	if style != "" {
		if opts.style, err = render.ParseStyle(style); err != nil {
			return nil, err
		}
		opts.styleSet = true
	}
	if opts.scale < 1 {
		return nil, fmt.Errorf("scale must be at least 1, got %d", opts.scale)
	}

	rest := flags.Args()
	if len(rest) > 0 && rest[0] == "generate" {
		opts.generate = true
		opts.generateDir = "."
		if len(rest) > 1 {
			opts.generateDir = rest[1]
		}
		return opts, nil
	}

	opts.program, opts.disk = defaultProgram, defaultDisk
	if len(rest) > 0 {
		opts.program = rest[0]
	}
	if len(rest) > 1 {
		opts.disk = rest[1]
	}
	if len(rest) > 2 {
		return nil, fmt.Errorf("too many arguments: %v", rest[2:])
	}
	return opts, nil
}

// config turns the flags into a machine configuration.
func (opts *options) config() hex16.Config {
	cfg := hex16.DefaultConfig()
	cfg.MemorySize = opts.memory
	if opts.memory > 0 && int(cfg.KeyboardCell) >= opts.memory {
		// The keyboard cell stays the last word of a smaller memory.
		cfg.KeyboardCell = uint16(opts.memory - 1)
	}
	if size := cfg.VideoColumns * cfg.VideoRows; opts.memory > 0 && int(cfg.VideoBase)+size > opts.memory {
		// Video moves down to end just below the keyboard cell, losing rows
		// when even that does not fit.
		room := opts.memory - 1
		if size > room {
			cfg.VideoRows = room / cfg.VideoColumns
			size = cfg.VideoColumns * cfg.VideoRows
		}
		cfg.VideoBase = uint16(room - size)
	}
	cfg.Timer = opts.timer
	cfg.TimerCycles = uint32(opts.timerCycles)
	cfg.TimerPeriod = opts.timerPeriod
	cfg.Pace = opts.pace
	cfg.Trace = opts.trace
	return cfg
}

// newLogger creates a logger with appropriate settings.
func newLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

func printBanner(w io.Writer) {
	fmt.Fprintln(w, "[-------------------------------------]")
	fmt.Fprintln(w, "[ hex16 - a minimal 16-bit machine    ]")
	fmt.Fprintf(w, "[-------------------------------------]\n\n")
	fmt.Fprintf(w, "version: %s\n\n", buildinfo.Version(version, commit, date))
}

func main() {
	ctx := app.Context()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "usage: hex16 [options] [program] [disk]\n       hex16 generate [dir]\n\n%v\n", err)
		os.Exit(1)
	}

	if !opts.quiet {
		printBanner(os.Stdout)
	}
	logger := newLogger(opts.debug, opts.quiet)

	os.Exit(run(ctx, opts, logger, os.Stdin, os.Stdout))
}

// run executes one session and returns the process exit code.
func run(ctx context.Context, opts *options, logger *log.Logger, in io.Reader, out io.Writer) int {
	switch {
	case opts.dumpDevices:
		dumpDeviceList(out)
		return 0

	case opts.generate:
		if err := generate(opts.generateDir); err != nil {
			logger.Error("Generating test files failed", log.Err(err))
			return 1
		}
		logger.Info("Test files generated", log.String("dir", opts.generateDir))
		return 0
	}

	m, err := setup(ctx, opts, logger)
	if err != nil {
		logger.Error("Startup failed", log.Err(err))
		return 1
	}
	defer cleanupDevices(m)

	return loop(ctx, m, newConsole(in, out), logger)
}

// setup builds the machine: boot region, program image, disk, devices and
// the optional script.
func setup(ctx context.Context, opts *options, logger *log.Logger) (*hex16.Machine, error) {
	m, err := hex16.New(opts.config(), logger)
	if err != nil {
		return nil, err
	}
	*m.Turbo() = opts.turbo
	*m.Debugging() = opts.debug

	created, err := disk.Create(opts.disk, opts.diskSectors)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("Created disk image", log.String("file", opts.disk), log.Int("sectors", opts.diskSectors))
	}
	m.AttachDisk(disk.New(opts.disk, logger))

	if opts.boot {
		words, err := disk.Boot(opts.disk, m.Memory())
		if err != nil {
			return nil, err
		}
		logger.Debug("Boot region loaded", log.String("file", opts.disk), log.Int("words", words))
	}

	if err := loadProgram(m, opts, logger); err != nil {
		return nil, err
	}

	if err := attachDevices(m, opts.hw, opts, logger); err != nil {
		return nil, err
	}

	if opts.script != "" {
		engine := script.New(ctx, m, logger)
		defer engine.Close()
		if err := engine.RunFile(opts.script); err != nil {
			cleanupDevices(m)
			return nil, err
		}
	}
	return m, nil
}

// loadProgram reads the program image. A missing default image is only a
// warning when a script is there to fill memory instead.
func loadProgram(m *hex16.Machine, opts *options, logger *log.Logger) error {
	file, err := os.Open(opts.program)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && opts.script != "" {
			logger.Warn("No program image, relying on the script", log.String("file", opts.program))
			return nil
		}
		return fmt.Errorf("opening program: %w", err)
	}
	defer file.Close()

	words, err := m.LoadProgram(file)
	if err != nil {
		return err
	}
	logger.Info("Program loaded", log.String("file", opts.program), log.Int("words", words))
	return nil
}

// loop alternates between running the machine and the debug console until
// the session ends.
func loop(ctx context.Context, m *hex16.Machine, con *console, logger *log.Logger) int {
	for {
		if *m.Debugging() {
			suspendDevices(m)
			err := con.prompt(m)
			if errors.Is(err, common.ErrQuit) {
				return 0
			}
			if err != nil {
				logger.Error("Debug console failed", log.Err(err))
				return 1
			}
			if err := resumeDevices(m); err != nil {
				logger.Error("Resuming devices failed", log.Err(err))
				return 1
			}
			continue
		}

		status, err := m.Run(ctx)
		switch status {
		case hex16.StatusHalted, hex16.StatusQuit:
			return 0
		case hex16.StatusCancelled:
			logger.Info("Run cancelled")
			return 0
		case hex16.StatusBreak:
			continue
		default:
			logger.Error("Run failed", log.Err(err))
			return 1
		}
	}
}

// suspender is implemented by devices that hold the terminal and have to let
// go of it while the debug console runs.
type suspender interface {
	Suspend()
	Resume() error
}

func suspendDevices(c common.CPU) {
	for _, dev := range c.Devices() {
		if s, ok := dev.(suspender); ok {
			s.Suspend()
		}
	}
}

func resumeDevices(c common.CPU) error {
	for _, dev := range c.Devices() {
		if s, ok := dev.(suspender); ok {
			if err := s.Resume(); err != nil {
				return err
			}
		}
	}
	return nil
}

// fKey handles the emulator function keys of the windowed front ends.
func fKey(c common.CPU, key int, logger *log.Logger) error {
	switch key {
	case 1: // F1 - help
		fmt.Println("=== Emulator commands ===")
		fmt.Println("F1\tShow this help")
		fmt.Println("F2\tStart debugging")
		fmt.Println("F3\tResume running")
		fmt.Println("F4\tTurbo speed toggle")
		fmt.Println("F5\tSave a screenshot")

	case 2: // F2 - start debugging
		*c.Debugging() = true

	case 3: // F3 - stop debugging
		*c.Debugging() = false

	case 4: // F4 - toggle turbo
		turbo := c.Turbo()
		*turbo = !*turbo
		logger.Info("Turbo toggled", log.String("turbo", fmt.Sprint(*turbo)))

	case 5: // F5 - screenshot
		name := fmt.Sprintf("hex16-%s.bmp", time.Now().Format("20060102-150405"))
		if err := common.DebugCommands["shot"].Run(c, io.Discard, []string{"shot", name}); err != nil {
			logger.Warn("Screenshot failed", log.Err(err))
			return nil
		}
		logger.Info("Screenshot saved", log.String("file", name))
	}
	return nil
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{in: bufio.NewReader(in), out: out}
}
