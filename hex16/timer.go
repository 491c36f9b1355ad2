package hex16

import "time"

// Timer decides when the next interrupt is due. Tick is called once per
// executed instruction and reports true at most once per threshold.
type Timer interface {
	Tick() bool
	Reset()
}

// CycleTimer counts executed instructions.
type CycleTimer struct {
	Threshold uint32
	count     uint32
}

func (t *CycleTimer) Tick() bool {
	if t.count < t.Threshold {
		t.count++
	}
	if t.count >= t.Threshold {
		t.count = 0
		return true
	}
	return false
}

func (t *CycleTimer) Reset() {
	t.count = 0
}

// WallTimer measures elapsed time since the last interrupt. Now defaults to
// time.Now.
type WallTimer struct {
	Period time.Duration
	Now    func() time.Time
	last   time.Time
}

func (t *WallTimer) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *WallTimer) Tick() bool {
	now := t.now()
	if t.last.IsZero() {
		t.last = now
		return false
	}
	if now.Sub(t.last) >= t.Period {
		t.last = now
		return true
	}
	return false
}

func (t *WallTimer) Reset() {
	t.last = time.Time{}
}

func newTimer(cfg Config) Timer {
	switch cfg.Timer {
	case TimerCycles:
		return &CycleTimer{Threshold: cfg.TimerCycles}
	case TimerWallClock:
		return &WallTimer{Period: cfg.TimerPeriod}
	default:
		return nil
	}
}
