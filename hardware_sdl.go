//go:build !headless

package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/bshepherdson/hex16/common"
	"github.com/bshepherdson/hex16/render"
	"github.com/retroenv/retrogolib/log"
	"github.com/veandco/go-sdl2/sdl"
)

const displayRefresh = 50 * time.Millisecond

// SDLDisplay paints the video region as dot-matrix cells and turns window
// events into keys, function keys and quit requests.
type SDLDisplay struct {
	style  render.Style
	scale  int
	logger *log.Logger

	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	width    int32
	height   int32

	lastFrame time.Time
}

func newSDLDisplay(c common.CPU, opts *options, logger *log.Logger) (common.Device, error) {
	_, cols, rows := c.VideoRegion()
	style := render.DotMatrix
	if opts.styleSet {
		style = opts.style
	}
	d := &SDLDisplay{
		style:  style,
		scale:  opts.scale,
		logger: logger,
		width:  int32(cols * render.CellWidth),
		height: int32(rows * render.CellHeight),
	}

	runtime.LockOSThread() // SDL calls must stay on this thread.
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("%w: sdl init: %w", common.ErrIOUnavailable, err)
	}

	window, err := sdl.CreateWindow("hex16", sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED, d.width*int32(d.scale), d.height*int32(d.scale), sdl.WINDOW_SHOWN)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("%w: failed to create window: %w", common.ErrIOUnavailable, err)
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		_ = window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("%w: failed to create renderer: %w", common.ErrIOUnavailable, err)
	}

	// RGBA bytes in memory order.
	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING, d.width, d.height)
	if err != nil {
		_ = renderer.Destroy()
		_ = window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("%w: failed to create texture: %w", common.ErrIOUnavailable, err)
	}

	d.window = window
	d.renderer = renderer
	d.texture = texture
	return d, nil
}

func (d *SDLDisplay) Name() string { return "sdl" }

func (d *SDLDisplay) Poll(c common.CPU) error {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch t := event.(type) {
		case *sdl.QuitEvent:
			return common.ErrQuit

		case *sdl.KeyboardEvent:
			if t.Type != sdl.KEYDOWN {
				continue
			}
			if fn, ok := functionKeys[t.Keysym.Sym]; ok {
				if err := fKey(c, fn, d.logger); err != nil {
					return err
				}
				continue
			}
			if key := readKey(t.Keysym); key != 0 {
				typeKey(c, key)
			}
		}
	}
	return nil
}

func (d *SDLDisplay) Frame(c common.CPU) error {
	if time.Since(d.lastFrame) < displayRefresh {
		return nil
	}
	d.lastFrame = time.Now()

	base, cols, rows := c.VideoRegion()
	img := render.Frame(c.Memory()[int(base):int(base)+cols*rows], cols, rows, d.style)

	pixels, pitch, err := d.texture.Lock(nil)
	if err != nil {
		return fmt.Errorf("error locking texture: %w", err)
	}
	for y := 0; y < int(d.height); y++ {
		copy(pixels[y*pitch:y*pitch+img.Stride], img.Pix[y*img.Stride:(y+1)*img.Stride])
	}
	d.texture.Unlock()

	if err := d.renderer.Clear(); err != nil {
		return fmt.Errorf("failed to clear renderer: %w", err)
	}
	err = d.renderer.Copy(d.texture, &sdl.Rect{X: 0, Y: 0, W: d.width, H: d.height},
		&sdl.Rect{X: 0, Y: 0, W: d.width * int32(d.scale), H: d.height * int32(d.scale)})
	if err != nil {
		return fmt.Errorf("failed to copy texture: %w", err)
	}
	d.renderer.Present()
	return nil
}

func (d *SDLDisplay) Cleanup() {
	_ = d.texture.Destroy()
	_ = d.renderer.Destroy()
	_ = d.window.Destroy()
	sdl.Quit()
}

var functionKeys = map[sdl.Keycode]int{
	sdl.K_F1: 1,
	sdl.K_F2: 2,
	sdl.K_F3: 3,
	sdl.K_F4: 4,
	sdl.K_F5: 5,
}

var keyCodes = map[sdl.Keycode]uint16{
	sdl.K_BACKSPACE: KeyBackspace,
	sdl.K_RETURN:    KeyReturn,
	sdl.K_INSERT:    KeyInsert,
	sdl.K_DELETE:    KeyDelete,
	sdl.K_UP:        KeyUp,
	sdl.K_DOWN:      KeyDown,
	sdl.K_LEFT:      KeyLeft,
	sdl.K_RIGHT:     KeyRight,
}

var shiftedKeys = map[sdl.Keycode]uint16{
	sdl.K_0:            ')',
	sdl.K_1:            '!',
	sdl.K_2:            '@',
	sdl.K_3:            '#',
	sdl.K_4:            '$',
	sdl.K_5:            '%',
	sdl.K_6:            '^',
	sdl.K_7:            '&',
	sdl.K_8:            '*',
	sdl.K_9:            '(',
	sdl.K_MINUS:        '_',
	sdl.K_EQUALS:       '+',
	sdl.K_LEFTBRACKET:  '{',
	sdl.K_RIGHTBRACKET: '}',
	sdl.K_BACKSLASH:    '|',
	sdl.K_BACKQUOTE:    '~',
	sdl.K_COMMA:        '<',
	sdl.K_PERIOD:       '>',
	sdl.K_SLASH:        '?',
	sdl.K_SEMICOLON:    ':',
	sdl.K_QUOTE:        '"',
}

// readKey returns the key code for sym, or 0 for keys the machine does not
// see, such as the modifiers on their own.
func readKey(sym sdl.Keysym) uint16 {
	if code, ok := keyCodes[sym.Sym]; ok {
		return code
	}
	if sym.Sym < 0x20 || sym.Sym >= 0x80 {
		return 0
	}

	if sym.Mod&sdl.KMOD_SHIFT != 0 {
		if sdl.K_a <= sym.Sym && sym.Sym <= sdl.K_z {
			return uint16(sym.Sym) &^ 0x20
		}
		if c, ok := shiftedKeys[sym.Sym]; ok {
			return c
		}
	}
	return uint16(sym.Sym)
}
