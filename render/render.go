// Package render turns the contents of the video region into pixels or text.
// Everything here is a pure function of the words handed in; front ends own
// windows, timing and input.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Style selects how a video word is interpreted.
type Style int

const (
	// DotMatrix treats the word as a 4x4 grid of dots, bit i at column i%4
	// and row i/4.
	DotMatrix Style = iota
	// SevenSegment treats bits 0-6 as segments a-g and bit 7 as the point.
	SevenSegment
)

func (s Style) String() string {
	switch s {
	case DotMatrix:
		return "dots"
	case SevenSegment:
		return "segments"
	default:
		return fmt.Sprintf("style(%d)", int(s))
	}
}

// ParseStyle maps a flag value to a Style.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(s) {
	case "dots", "dot", "matrix":
		return DotMatrix, nil
	case "segments", "segment", "7seg":
		return SevenSegment, nil
	default:
		return 0, fmt.Errorf("unknown display style '%s'", s)
	}
}

// Cell geometry in pixels.
const (
	CellWidth  = 10
	CellHeight = 20

	dotWidth  = 2
	dotHeight = 4
)

var (
	Background = color.RGBA{0, 0, 0, 255}
	Lit        = color.RGBA{255, 0, 0, 255}
	Unlit      = color.RGBA{50, 50, 50, 255}
)

// Segment rectangles inside a cell, indexed by bit.
var segmentRects = [8]image.Rectangle{
	image.Rect(2, 1, 8, 3),   // a
	image.Rect(7, 2, 9, 10),  // b
	image.Rect(7, 10, 9, 18), // c
	image.Rect(2, 17, 8, 19), // d
	image.Rect(1, 10, 3, 18), // e
	image.Rect(1, 2, 3, 10),  // f
	image.Rect(2, 9, 8, 11),  // g
	image.Rect(9, 17, 10, 19),
}

// Frame rasterizes cols x rows video words into a new image of
// cols*CellWidth by rows*CellHeight pixels. Words past the end of video are
// drawn blank.
func Frame(video []uint16, cols, rows int, style Style) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cols*CellWidth, rows*CellHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			var word uint16
			if i := row*cols + col; i < len(video) {
				word = video[i]
			}
			origin := image.Pt(col*CellWidth, row*CellHeight)
			DrawCell(img, origin, word, style)
		}
	}
	return img
}

// DrawCell paints one video word with its top-left corner at origin.
func DrawCell(img draw.Image, origin image.Point, word uint16, style Style) {
	switch style {
	case SevenSegment:
		for bit, r := range segmentRects {
			fill(img, r.Add(origin), word&(1<<bit) != 0)
		}
	default:
		for dot := 0; dot < 16; dot++ {
			r := image.Rect(0, 0, dotWidth, dotHeight).
				Add(image.Pt((dot%4)*dotWidth, (dot/4)*dotHeight)).
				Add(origin)
			fill(img, r, word&(1<<dot) != 0)
		}
	}
}

func fill(img draw.Image, r image.Rectangle, on bool) {
	c := Unlit
	if on {
		c = Lit
	}
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// Scale returns img enlarged by an integer factor using nearest-neighbour
// sampling, which keeps dots sharp.
func Scale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// SaveBMP encodes img, scaled by factor, as a BMP screenshot.
func SaveBMP(w io.Writer, img image.Image, factor int) error {
	if err := bmp.Encode(w, Scale(img, factor)); err != nil {
		return fmt.Errorf("encoding screenshot: %w", err)
	}
	return nil
}
