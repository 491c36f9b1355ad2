package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/bshepherdson/hex16/common"
	"github.com/bshepherdson/hex16/hex16"
	"github.com/retroenv/retrogolib/log"
)

type deviceFactory func(c common.CPU, opts *options, logger *log.Logger) (common.Device, error)

var deviceTypes = map[string]deviceFactory{
	"keyboard": func(_ common.CPU, opts *options, _ *log.Logger) (common.Device, error) {
		return NewKeyboard(opts.echo), nil
	},
	"clock": func(c common.CPU, opts *options, logger *log.Logger) (common.Device, error) {
		if opts.timer != hex16.TimerExternal {
			return nil, errClockNeedsExternal
		}
		return NewClock(c, opts.timerPeriod, logger), nil
	},
	"term":   newTerminal,
	"sdl":    newSDLDisplay,
	"ebiten": newEbitenDisplay,
}

var deviceDescriptions = map[string]string{
	"keyboard": "Keyboard queue feeding the keyboard cell",
	"clock":    "Background interrupt generator (needs -timer external)",
	"term":     "Terminal video dump and raw keyboard",
	"sdl":      "Dot-matrix video window",
	"ebiten":   "Seven-segment video window with status bar",
}

func dumpDeviceList(w io.Writer) {
	names := make([]string, 0, len(deviceDescriptions))
	for name := range deviceDescriptions {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "%-20s %s\n", name, deviceDescriptions[name])
	}
}

// attachDevices builds the comma-separated device list. On error every device
// built so far is cleaned up again.
func attachDevices(c common.CPU, list string, opts *options, logger *log.Logger) error {
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		factory, ok := deviceTypes[name]
		if !ok {
			cleanupDevices(c)
			return fmt.Errorf("unknown device '%s'", name)
		}
		dev, err := factory(c, opts, logger)
		if err != nil {
			cleanupDevices(c)
			return fmt.Errorf("loading device %s: %w", name, err)
		}
		logger.Debug("Loaded device", log.String("device", name))
		c.AddDevice(dev)
	}
	return nil
}

func cleanupDevices(c common.CPU) {
	for _, dev := range c.Devices() {
		dev.Cleanup()
	}
}
