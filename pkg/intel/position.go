package intel

import (
	lsp "github.com/sourcegraph/go-lsp"
)

// Returns the byte index of the rune with the given index in s, clamped to
// [0, len(s)]. The second return value is the clamped rune index.
func byteIdxFromRuneIdx(s string, runeIdx int) (int, int) {
	if runeIdx <= 0 {
		return 0, 0
	}
	n := 0
	for i := range s {
		if n == runeIdx {
			return i, n
		}
		n++
	}
	return len(s), n
}

func lspPositionFromIdx(s string, idx int) lsp.Position {
	var pos lsp.Position
	walkString(s, func(i int, p lsp.Position) bool {
		pos = p
		return i < idx
	})
	return pos
}

// Generates (index, lspPosition) pairs in s, stopping if f returns false.
// Characters are counted in UTF-16 code units.
func walkString(s string, f func(i int, p lsp.Position) bool) {
	var p lsp.Position
	lastCR := false

	for i, r := range s {
		if !f(i, p) {
			return
		}
		switch {
		case r == '\r':
			p.Line++
			p.Character = 0
		case r == '\n':
			if !lastCR {
				p.Line++
				p.Character = 0
			}
		case r <= 0xFFFF:
			// Encoded in UTF-16 with one unit
			p.Character++
		default:
			// Encoded in UTF-16 with two units
			p.Character += 2
		}
		lastCR = r == '\r'
	}
	f(len(s), p)
}
