//go:build !headless

package main

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bshepherdson/hex16/common"
	"github.com/bshepherdson/hex16/render"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/retroenv/retrogolib/log"
	"golang.design/x/clipboard"
	"golang.org/x/image/font/basicfont"
)

const (
	statusBarHeight = 18
	maxPaste        = 4096
	startupTimeout  = 5 * time.Second
)

// EbitenDisplay shows the video region as seven-segment cells with a status
// bar. Ebiten runs its own goroutine; everything it hands to the machine goes
// through the mutex and is applied in Poll.
type EbitenDisplay struct {
	style  render.Style
	logger *log.Logger
	width  int
	height int

	mu     sync.Mutex
	frame  *image.RGBA
	status string
	keys   []uint16
	fkeys  []int

	window   *ebiten.Image
	closed   atomic.Bool
	stopping atomic.Bool
	ready    chan struct{}
	readyOne sync.Once
	done     chan struct{}

	clipboardOnce sync.Once
	clipboardOK   bool
	lastFrame     time.Time
}

func newEbitenDisplay(c common.CPU, opts *options, logger *log.Logger) (common.Device, error) {
	_, cols, rows := c.VideoRegion()
	style := render.SevenSegment
	if opts.styleSet {
		style = opts.style
	}

	d := &EbitenDisplay{
		style:  style,
		logger: logger,
		width:  cols * render.CellWidth,
		height: rows * render.CellHeight,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}

	ebiten.SetWindowSize(d.width*opts.scale, (d.height+statusBarHeight)*opts.scale)
	ebiten.SetWindowTitle("hex16")
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)

	failed := make(chan error, 1)
	go func() {
		defer close(d.done)
		defer d.closed.Store(true)
		if err := ebiten.RunGame(d); err != nil {
			failed <- err
		}
	}()

	select {
	case <-d.ready:
		return d, nil
	case err := <-failed:
		return nil, fmt.Errorf("%w: ebiten: %w", common.ErrIOUnavailable, err)
	case <-time.After(startupTimeout):
		d.stopping.Store(true)
		return nil, fmt.Errorf("%w: ebiten window did not open", common.ErrIOUnavailable)
	}
}

func (d *EbitenDisplay) Name() string { return "ebiten" }

// Update implements ebiten.Game.
func (d *EbitenDisplay) Update() error {
	if d.stopping.Load() || ebiten.IsWindowBeingClosed() {
		d.closed.Store(true)
		return ebiten.Termination
	}

	var keys []uint16
	for _, r := range ebiten.AppendInputChars(nil) {
		if r > 0 && r < 0x80 {
			keys = append(keys, uint16(r))
		}
	}
	for key, code := range ebitenKeys {
		if inpututil.IsKeyJustPressed(key) {
			keys = append(keys, code)
		}
	}

	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	if ctrl && inpututil.IsKeyJustPressed(ebiten.KeyV) {
		keys = append(keys, d.paste()...)
	}

	var fkeys []int
	for key, n := range ebitenFunctionKeys {
		if inpututil.IsKeyJustPressed(key) {
			fkeys = append(fkeys, n)
		}
	}

	if len(keys) > 0 || len(fkeys) > 0 {
		d.mu.Lock()
		d.keys = append(d.keys, keys...)
		d.fkeys = append(d.fkeys, fkeys...)
		d.mu.Unlock()
	}
	return nil
}

var ebitenKeys = map[ebiten.Key]uint16{
	ebiten.KeyEnter:      KeyReturn,
	ebiten.KeyBackspace:  KeyBackspace,
	ebiten.KeyInsert:     KeyInsert,
	ebiten.KeyDelete:     KeyDelete,
	ebiten.KeyArrowUp:    KeyUp,
	ebiten.KeyArrowDown:  KeyDown,
	ebiten.KeyArrowLeft:  KeyLeft,
	ebiten.KeyArrowRight: KeyRight,
}

var ebitenFunctionKeys = map[ebiten.Key]int{
	ebiten.KeyF1: 1,
	ebiten.KeyF2: 2,
	ebiten.KeyF3: 3,
	ebiten.KeyF4: 4,
	ebiten.KeyF5: 5,
}

func (d *EbitenDisplay) paste() []uint16 {
	d.clipboardOnce.Do(func() {
		d.clipboardOK = clipboard.Init() == nil
	})
	if !d.clipboardOK {
		return nil
	}
	return pasteKeys(clipboard.Read(clipboard.FmtText))
}

// pasteKeys turns clipboard text into key codes: line breaks become Return,
// other control bytes and non-ASCII are dropped.
func pasteKeys(raw []byte) []uint16 {
	if len(raw) > maxPaste {
		raw = raw[:maxPaste]
	}
	keys := make([]uint16, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		switch b := raw[i]; {
		case b == '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
			keys = append(keys, KeyReturn)
		case b == '\n':
			keys = append(keys, KeyReturn)
		case b >= 0x20 && b < 0x7F:
			keys = append(keys, uint16(b))
		}
	}
	return keys
}

// Draw implements ebiten.Game.
func (d *EbitenDisplay) Draw(screen *ebiten.Image) {
	d.readyOne.Do(func() { close(d.ready) })
	if d.window == nil {
		d.window = ebiten.NewImage(d.width, d.height)
	}

	d.mu.Lock()
	if d.frame != nil {
		d.window.WritePixels(d.frame.Pix)
	}
	status := d.status
	d.mu.Unlock()

	screen.DrawImage(d.window, nil)
	text.Draw(screen, status, basicfont.Face7x13, 4, d.height+13, color.RGBA{190, 190, 190, 255})
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%.0f fps", ebiten.ActualFPS()), d.width-60, d.height+1)
}

// Layout implements ebiten.Game.
func (d *EbitenDisplay) Layout(int, int) (int, int) {
	return d.width, d.height + statusBarHeight
}

func (d *EbitenDisplay) Poll(c common.CPU) error {
	if d.closed.Load() {
		return common.ErrQuit
	}

	d.mu.Lock()
	keys, fkeys := d.keys, d.fkeys
	d.keys, d.fkeys = nil, nil
	d.mu.Unlock()

	for _, key := range keys {
		typeKey(c, key)
	}
	for _, fn := range fkeys {
		if err := fKey(c, fn, d.logger); err != nil {
			return err
		}
	}
	return nil
}

func (d *EbitenDisplay) Frame(c common.CPU) error {
	if time.Since(d.lastFrame) < displayRefresh {
		return nil
	}
	d.lastFrame = time.Now()

	base, cols, rows := c.VideoRegion()
	img := render.Frame(c.Memory()[int(base):int(base)+cols*rows], cols, rows, d.style)
	status := fmt.Sprintf("PC %04x  %s", c.PC(), c.DisassembleOp(c.PC()))
	if *c.Turbo() {
		status += "  TURBO"
	}

	d.mu.Lock()
	d.frame = img
	d.status = status
	d.mu.Unlock()
	return nil
}

func (d *EbitenDisplay) Cleanup() {
	d.stopping.Store(true)
	select {
	case <-d.done:
	case <-time.After(time.Second):
		d.logger.Warn("Ebiten window did not close in time")
	}
}
