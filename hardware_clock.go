package main

import (
	"errors"
	"sync"
	"time"

	"github.com/bshepherdson/hex16/common"
	"github.com/retroenv/retrogolib/log"
)

var errClockNeedsExternal = errors.New("the clock device needs '-timer external'")

// Clock raises interrupts from its own goroutine on a fixed wall-clock period.
// It only touches the machine through RaiseInterrupt.
type Clock struct {
	period time.Duration
	logger *log.Logger

	stop    chan struct{}
	done    chan struct{}
	stopped sync.Once
	ticks   uint64
	mu      sync.Mutex
}

func NewClock(c common.CPU, period time.Duration, logger *log.Logger) *Clock {
	clk := &Clock{
		period: period,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go clk.run(c)
	return clk
}

func (clk *Clock) run(c common.CPU) {
	defer close(clk.done)

	ticker := time.NewTicker(clk.period)
	defer ticker.Stop()

	for {
		select {
		case <-clk.stop:
			return
		case <-ticker.C:
			c.RaiseInterrupt()
			clk.mu.Lock()
			clk.ticks++
			clk.mu.Unlock()
		}
	}
}

// Ticks returns how many interrupts the clock has raised.
func (clk *Clock) Ticks() uint64 {
	clk.mu.Lock()
	defer clk.mu.Unlock()
	return clk.ticks
}

func (clk *Clock) Name() string { return "clock" }

func (clk *Clock) Poll(common.CPU) error { return nil }

func (clk *Clock) Frame(common.CPU) error { return nil }

func (clk *Clock) Cleanup() {
	clk.stopped.Do(func() {
		close(clk.stop)
	})
	<-clk.done
	clk.logger.Debug("Clock stopped", log.Int("ticks", int(clk.Ticks())))
}
