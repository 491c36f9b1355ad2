//go:build windows

package main

import (
	"fmt"

	"github.com/bshepherdson/hex16/common"
	"github.com/retroenv/retrogolib/log"
)

func newTerminal(common.CPU, *options, *log.Logger) (common.Device, error) {
	return nil, fmt.Errorf("%w: the terminal front end needs a unix terminal", common.ErrIOUnavailable)
}

