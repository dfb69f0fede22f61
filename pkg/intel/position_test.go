package intel

import (
	"testing"

	lsp "github.com/sourcegraph/go-lsp"
)

var lspPositionFromIdxTests = []struct {
	s    string
	idx  int
	want lsp.Position
}{
	{"", 0, lsp.Position{}},
	{"ab\ncd", 4, lsp.Position{Line: 1, Character: 1}},
	{"ab\r\ncd", 5, lsp.Position{Line: 1, Character: 1}},
	{"ab\rcd", 4, lsp.Position{Line: 1, Character: 1}},
	{"😀x", len("😀x"), lsp.Position{Line: 0, Character: 3}},
	{"éx", len("é"), lsp.Position{Line: 0, Character: 1}},
	{"abc", 100, lsp.Position{Line: 0, Character: 3}},
}

func TestLSPPositionFromIdx(t *testing.T) {
	for _, tc := range lspPositionFromIdxTests {
		if got := lspPositionFromIdx(tc.s, tc.idx); got != tc.want {
			t.Errorf("lspPositionFromIdx(%q, %d) -> %v, want %v", tc.s, tc.idx, got, tc.want)
		}
	}
}

var byteIdxFromRuneIdxTests = []struct {
	s        string
	runeIdx  int
	wantByte int
	wantRune int
}{
	{"abc", 1, 1, 1},
	{"😀abc", 1, 4, 1},
	{"😀abc", 4, 7, 4},
	{"😀abc", 10, 7, 4},
	{"abc", -1, 0, 0},
}

func TestByteIdxFromRuneIdx(t *testing.T) {
	for _, tc := range byteIdxFromRuneIdxTests {
		gotByte, gotRune := byteIdxFromRuneIdx(tc.s, tc.runeIdx)
		if gotByte != tc.wantByte || gotRune != tc.wantRune {
			t.Errorf("byteIdxFromRuneIdx(%q, %d) -> (%d, %d), want (%d, %d)",
				tc.s, tc.runeIdx, gotByte, gotRune, tc.wantByte, tc.wantRune)
		}
	}
}
