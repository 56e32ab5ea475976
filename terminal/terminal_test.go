package terminal

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javanhut/liminal/grid"
)

func newTerm(rows, cols, scrollback int) *Terminal {
	opts := DefaultOptions()
	opts.Rows = rows
	opts.Cols = cols
	opts.ScrollbackLimit = scrollback
	return New(opts)
}

func cellAt(t *testing.T, term *Terminal, row, col int) grid.Cell {
	t.Helper()
	cell, ok := term.Grid().GetCell(row, col)
	require.True(t, ok, "cell (%d,%d) out of bounds", row, col)
	return cell
}

func assertCursor(t *testing.T, term *Terminal, row, col int) {
	t.Helper()
	gotRow, gotCol := term.Cursor()
	assert.Equal(t, row, gotRow, "cursor row")
	assert.Equal(t, col, gotCol, "cursor col")
}

func TestNewlineCarriageReturnSequence(t *testing.T) {
	term := newTerm(5, 10, 10)

	term.Process([]byte("A"))
	assertCursor(t, term, 0, 1)
	term.Process([]byte("\n"))
	assertCursor(t, term, 1, 1)
	term.Process([]byte("B"))
	assertCursor(t, term, 1, 2)
	term.Process([]byte("\r"))
	assertCursor(t, term, 1, 0)
	term.Process([]byte("C"))
	assertCursor(t, term, 1, 1)

	assert.Equal(t, 'A', cellAt(t, term, 0, 0).Char)
	assert.Equal(t, 'C', cellAt(t, term, 1, 0).Char)
	assert.Equal(t, 'B', cellAt(t, term, 1, 1).Char)
}

func TestSGRColorsAndReset(t *testing.T) {
	term := newTerm(2, 10, 0)
	term.Process([]byte("\x1b[31mHELLO\x1b[0mx"))

	for col := 0; col < 5; col++ {
		cell := cellAt(t, term, 0, col)
		assert.Equal(t, grid.Palette[1], cell.Fg)
		assert.Equal(t, grid.DefaultBg, cell.Bg)
	}
	assert.Equal(t, "HELLOx", term.VisibleText())
	assert.Equal(t, grid.DefaultCell().WithChar('x'), cellAt(t, term, 0, 5))
	assert.Equal(t, grid.DefaultCell(), term.CurrentStyle())
}

func TestSGRMultipleCodesInOneSequence(t *testing.T) {
	term := newTerm(1, 4, 0)
	term.Process([]byte("\x1b[1;3;4;32;44;99mZ"))

	cell := cellAt(t, term, 0, 0)
	assert.Equal(t, grid.Cell{
		Char:      'Z',
		Fg:        grid.Palette[2],
		Bg:        grid.Palette[4],
		Bold:      true,
		Italic:    true,
		Underline: true,
	}, cell)

	// an empty SGR is a reset
	term.Process([]byte("\x1b[m"))
	assert.Equal(t, grid.DefaultCell(), term.CurrentStyle())
}

func TestSGRResetUsesConfiguredColors(t *testing.T) {
	opts := DefaultOptions()
	opts.Rows, opts.Cols = 1, 4
	opts.Foreground = grid.RGB{R: 1, G: 2, B: 3}
	opts.Background = grid.RGB{R: 4, G: 5, B: 6}
	term := New(opts)

	term.Process([]byte("\x1b[35;1m\x1b[0mq"))
	assert.Equal(t, grid.BlankCell(opts.Foreground, opts.Background).WithChar('q'), cellAt(t, term, 0, 0))
}

func TestPrintWrapsAndScrollsOnce(t *testing.T) {
	const rows, cols = 3, 4
	term := newTerm(rows, cols, 100)

	term.Process([]byte(strings.Repeat("x", rows*cols+1)))

	assert.Equal(t, rows, term.Grid().Rows())
	assert.Equal(t, 1, term.Grid().ScrollbackLen())
	assertCursor(t, term, rows-1, 1)
}

func TestLineFeedOnLastRowScrollsKeepingColumn(t *testing.T) {
	term := newTerm(2, 5, 10)
	term.Process([]byte("ab\r\ncd\n"))

	assertCursor(t, term, 1, 2)
	assert.Equal(t, "cd", term.VisibleText())
	assert.Equal(t, "ab", term.Grid().ScrollbackText())
}

func TestTabStops(t *testing.T) {
	term := newTerm(1, 20, 0)

	term.Process([]byte("\t"))
	assertCursor(t, term, 0, 8)
	term.Process([]byte("abc\t"))
	assertCursor(t, term, 0, 16)
	term.Process([]byte("\t"))
	assertCursor(t, term, 0, 19)
}

func TestCursorMovement(t *testing.T) {
	term := newTerm(10, 10, 0)

	term.Process([]byte("\x1b[5;6H"))
	assertCursor(t, term, 4, 5)

	term.Process([]byte("\x1b[2A"))
	assertCursor(t, term, 2, 5)
	term.Process([]byte("\x1b[B"))
	assertCursor(t, term, 3, 5)
	term.Process([]byte("\x1b[0C"))
	assertCursor(t, term, 3, 6)
	term.Process([]byte("\x1b[3D"))
	assertCursor(t, term, 3, 3)

	// clamped at the edges, never scrolling
	term.Process([]byte("\x1b[99A\x1b[99D"))
	assertCursor(t, term, 0, 0)
	term.Process([]byte("\x1b[99B\x1b[99C"))
	assertCursor(t, term, 9, 9)
	assert.Equal(t, 0, term.Grid().ScrollbackLen())

	term.Process([]byte("\x1b[H"))
	assertCursor(t, term, 0, 0)
	term.Process([]byte("\x1b[100;100H"))
	assertCursor(t, term, 9, 9)
}

func TestUnsupportedSequencesHaveNoEffect(t *testing.T) {
	term := newTerm(3, 10, 0)
	term.Process([]byte("ab"))
	before := term.VisibleContent()

	term.Process([]byte("\x1b[2J\x1b[K\x1b[?1049h\x1b7\x1b(0\x1bP1$qm\x1b\\\x1b]0;hi\x07"))

	assert.Equal(t, before, term.VisibleContent())
	assertCursor(t, term, 0, 2)
}

func TestOSCWorkingDirAndTitle(t *testing.T) {
	term := newTerm(2, 10, 0)
	term.Process([]byte("\x1b]7;file://host/home/user%20dir\x07\x1b]2;build\x1b\\"))

	assert.Equal(t, "/home/user dir", term.WorkingDir())
	assert.Equal(t, "build", term.Title())
	assert.Equal(t, "", term.VisibleText())
}

func TestZeroWidthRunesAreSkipped(t *testing.T) {
	term := newTerm(1, 10, 0)
	term.Process([]byte("e\u0301x"))

	assert.Equal(t, "ex", term.VisibleText())
	assertCursor(t, term, 0, 2)
}

func TestResizeClampsCursor(t *testing.T) {
	term := newTerm(10, 10, 0)
	term.Process([]byte("\x1b[10;10H"))

	term.Resize(4, 5)
	assertCursor(t, term, 3, 4)

	// Printing in the last cell wraps and scrolls
	term.Process([]byte("z"))
	assert.Equal(t, 'z', cellAt(t, term, 2, 4).Char)
	assertCursor(t, term, 3, 0)
}

func TestSpaceSeparatorsArePrinted(t *testing.T) {
	term := newTerm(1, 10, 0)
	term.Process([]byte("a\u00a0b\u3000c"))

	assert.Equal(t, '\u00a0', cellAt(t, term, 0, 1).Char)
	assert.Equal(t, '\u3000', cellAt(t, term, 0, 3).Char)
	assertCursor(t, term, 0, 5)
}

func TestUnsetColoursUseGridDefaults(t *testing.T) {
	term := New(Options{Rows: 2, Cols: 3})

	assert.Equal(t, grid.DefaultCell(), cellAt(t, term, 1, 2))
	assert.Equal(t, grid.DefaultCell(), term.CurrentStyle())
}

func TestWriteImplementsWriter(t *testing.T) {
	term := newTerm(1, 10, 0)
	n, err := term.Write([]byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "hi", term.VisibleText())
}

func TestCursorStaysInBoundsForRandomInput(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []byte("\x1b[;0123456789ABCDHm?\n\r\tabc\x07]\\\x18\xc3\xa9")
	term := newTerm(6, 7, 5)

	buf := make([]byte, 64)
	for round := 0; round < 2000; round++ {
		for i := range buf {
			buf[i] = alphabet[rng.Intn(len(alphabet))]
		}
		term.Process(buf)
		if round%100 == 0 {
			term.Resize(1+rng.Intn(8), 1+rng.Intn(8))
		}

		row, col := term.Cursor()
		require.GreaterOrEqual(t, row, 0)
		require.Less(t, row, term.Grid().Rows())
		require.GreaterOrEqual(t, col, 0)
		require.Less(t, col, term.Grid().Cols())
		require.LessOrEqual(t, term.Grid().ScrollbackLen(), 5)
	}
}
