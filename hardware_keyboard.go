package main

import (
	"sync"

	"github.com/bshepherdson/hex16/common"
	"github.com/bshepherdson/hex16/render"
)

// Key codes for the non-printing keys. Printable keys are plain ASCII.
const (
	KeyBackspace uint16 = 0x10
	KeyReturn    uint16 = 0x11
	KeyInsert    uint16 = 0x12
	KeyDelete    uint16 = 0x13
	KeyUp        uint16 = 0x80
	KeyDown      uint16 = 0x81
	KeyLeft      uint16 = 0x82
	KeyRight     uint16 = 0x83
)

// Keyboard queues typed keys and hands them to the machine one per cycle by
// writing the keyboard cell. Front ends feed it through Enqueue, possibly from
// another goroutine.
type Keyboard struct {
	mu     sync.Mutex
	head   int
	tail   int
	buffer [256]uint16

	// echo writes the glyph of every delivered key into video memory.
	echo   bool
	cursor int
}

func NewKeyboard(echo bool) *Keyboard {
	return &Keyboard{echo: echo}
}

func (k *Keyboard) Name() string { return "keyboard" }

// Enqueue adds a key; it is dropped when the buffer is full.
func (k *Keyboard) Enqueue(key uint16) {
	k.mu.Lock()
	defer k.mu.Unlock()

	next := (k.tail + 1) % len(k.buffer)
	if next == k.head {
		return
	}
	k.buffer[k.tail] = key
	k.tail = next
}

// Pending returns the number of queued keys.
func (k *Keyboard) Pending() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return (k.tail - k.head + len(k.buffer)) % len(k.buffer)
}

func (k *Keyboard) next() (uint16, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.head == k.tail {
		return 0, false
	}
	key := k.buffer[k.head]
	k.head = (k.head + 1) % len(k.buffer)
	return key, true
}

func (k *Keyboard) Poll(c common.CPU) error {
	key, ok := k.next()
	if !ok {
		return nil
	}
	c.Memory()[c.KeyboardCell()] = key
	if k.echo {
		k.echoKey(c, key)
	}
	return nil
}

func (k *Keyboard) echoKey(c common.CPU, key uint16) {
	base, cols, rows := c.VideoRegion()
	size := cols * rows
	if size == 0 {
		return
	}
	video := c.Memory()[int(base) : int(base)+size]

	switch key {
	case KeyBackspace:
		if k.cursor > 0 {
			k.cursor--
		}
		video[k.cursor] = 0
		return
	case KeyReturn:
		k.cursor = (k.cursor/cols + 1) * cols
	default:
		video[k.cursor] = render.Glyph(rune(key))
		k.cursor++
	}
	if k.cursor >= size {
		k.cursor = 0
	}
}

func (k *Keyboard) Frame(common.CPU) error { return nil }

func (k *Keyboard) Cleanup() {}

// findKeyboard returns the attached keyboard, if any.
func findKeyboard(c common.CPU) *Keyboard {
	for _, d := range c.Devices() {
		switch kb := d.(type) {
		case *Keyboard:
			return kb
		}
	}
	return nil
}

// typeKey sends key through the keyboard queue, or straight into the keyboard
// cell when no keyboard device is attached.
func typeKey(c common.CPU, key uint16) {
	if kb := findKeyboard(c); kb != nil {
		kb.Enqueue(key)
		return
	}
	c.Memory()[c.KeyboardCell()] = key
}
