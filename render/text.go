package render

import (
	"strings"
	"unicode"
)

// Seven-segment bits.
const (
	segA uint16 = 1 << iota
	segB
	segC
	segD
	segE
	segF
	segG
	segPoint
)

// Glyph returns the seven-segment pattern for r. Letters are matched without
// regard to case. Symbols without a pattern map to zero.
func Glyph(r rune) uint16 {
	switch unicode.ToUpper(r) {
	case '0', 'O':
		return segA | segB | segC | segD | segE | segF
	case '1', 'I':
		return segB | segC
	case '2', 'Z':
		return segA | segB | segD | segE | segG
	case '3':
		return segA | segB | segC | segD | segG
	case '4':
		return segB | segC | segF | segG
	case '5', 'S':
		return segA | segC | segD | segF | segG
	case '6', 'G':
		return segA | segC | segD | segE | segF | segG
	case '7':
		return segA | segB | segC
	case '8':
		return segA | segB | segC | segD | segE | segF | segG
	case '9':
		return segA | segB | segC | segD | segF | segG
	case 'A':
		return segA | segB | segC | segE | segF | segG
	case 'B':
		return segC | segD | segE | segF | segG
	case 'C':
		return segA | segD | segE | segF
	case 'D':
		return segB | segC | segD | segE | segG
	case 'E':
		return segA | segD | segE | segF | segG
	case 'F':
		return segA | segE | segF | segG
	case 'H':
		return segB | segC | segE | segF | segG
	case 'J':
		return segB | segC | segD | segE
	case 'L':
		return segD | segE | segF
	case 'N':
		return segC | segE | segG
	case 'P':
		return segA | segB | segE | segF | segG
	case 'R':
		return segE | segG
	case 'T':
		return segD | segE | segF | segG
	case 'U':
		return segB | segC | segD | segE | segF
	case 'Y':
		return segB | segC | segD | segF | segG
	case '-':
		return segG
	case '_':
		return segD
	case '=':
		return segD | segG
	case '.':
		return segPoint
	default:
		return 0
	}
}

// Characters Text tries when naming a pattern. Digits come first so that a
// pattern shared by a digit and a letter prints as the digit.
const glyphOrder = "0123456789ABCDEFHJLNPRTUY-_=."

var glyphNames = func() map[uint16]rune {
	names := make(map[uint16]rune)
	for _, r := range glyphOrder {
		if _, ok := names[Glyph(r)]; !ok {
			names[Glyph(r)] = r
		}
	}
	return names
}()

// Text renders the video region as one character per cell: blank cells as
// spaces, known seven-segment patterns as their character and anything else
// as '#'.
func Text(video []uint16, cols, rows int) string {
	var sb strings.Builder
	sb.Grow((cols + 1) * rows)

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			var word uint16
			if i := row*cols + col; i < len(video) {
				word = video[i]
			}
			sb.WriteRune(cellRune(word))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func cellRune(word uint16) rune {
	if word == 0 {
		return ' '
	}
	if r, ok := glyphNames[word]; ok {
		return r
	}
	return '#'
}

// Bits draws a single word as sixteen columns, most significant bit first,
// '*' for a set bit.
func Bits(word uint16) string {
	var sb strings.Builder
	for i := 15; i >= 0; i-- {
		if word&(1<<i) != 0 {
			sb.WriteByte('*')
		} else {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}
