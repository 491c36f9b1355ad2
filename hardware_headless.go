//go:build headless

package main

import (
	"fmt"

	"github.com/bshepherdson/hex16/common"
	"github.com/retroenv/retrogolib/log"
)

func newSDLDisplay(common.CPU, *options, *log.Logger) (common.Device, error) {
	return nil, fmt.Errorf("%w: built without graphics (headless)", common.ErrIOUnavailable)
}

func newEbitenDisplay(common.CPU, *options, *log.Logger) (common.Device, error) {
	return nil, fmt.Errorf("%w: built without graphics (headless)", common.ErrIOUnavailable)
}
