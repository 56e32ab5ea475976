package grid

import (
	"strings"
)

const (
	// DefaultScrollback is the scrollback capacity used when none is configured
	DefaultScrollback = 10000
)

// RGB is a 24-bit colour
type RGB struct {
	R, G, B uint8
}

var (
	// DefaultFg is the foreground of a blank cell
	DefaultFg = RGB{200, 200, 200}
	// DefaultBg is the background of a blank cell
	DefaultBg = RGB{0, 0, 0}
)

// Palette holds the 8 standard colours used by SGR 30-37 and 40-47
var Palette = [8]RGB{
	{0, 0, 0},       // Black
	{205, 49, 49},   // Red
	{13, 188, 121},  // Green
	{229, 229, 16},  // Yellow
	{36, 114, 200},  // Blue
	{188, 63, 188},  // Magenta
	{17, 168, 205},  // Cyan
	{229, 229, 229}, // White
}

// Cell represents a single terminal cell
type Cell struct {
	Char      rune
	Fg        RGB
	Bg        RGB
	Bold      bool
	Italic    bool
	Underline bool
}

// DefaultCell returns a space on the default colours with no attributes
func DefaultCell() Cell {
	return Cell{
		Char: ' ',
		Fg:   DefaultFg,
		Bg:   DefaultBg,
	}
}

// BlankCell returns a space on the given colours with no attributes
func BlankCell(fg, bg RGB) Cell {
	return Cell{Char: ' ', Fg: fg, Bg: bg}
}

// WithChar returns a copy of the cell holding r
func (c Cell) WithChar(r rune) Cell {
	c.Char = r
	return c
}

// Grid is the visible screen plus its scrollback history.
//
// Grid does no locking. Callers sharing one across goroutines must
// serialise access themselves.
type Grid struct {
	rows       [][]Cell
	cols       int
	cursorRow  int
	cursorCol  int
	scrollback *ring
	blank      Cell
}

// NewGrid creates a grid of default cells with the cursor at (0,0)
func NewGrid(rows, cols, scrollbackLimit int) *Grid {
	return NewGridWithBlank(rows, cols, scrollbackLimit, DefaultCell())
}

// NewGridWithBlank creates a grid whose empty cells are copies of blank
func NewGridWithBlank(rows, cols, scrollbackLimit int, blank Cell) *Grid {
	rows = atLeastOne(rows)
	cols = atLeastOne(cols)
	g := &Grid{
		rows:       make([][]Cell, rows),
		cols:       cols,
		scrollback: newRing(scrollbackLimit),
		blank:      blank,
	}
	for i := range g.rows {
		g.rows[i] = g.blankRow(cols)
	}
	return g
}

func (g *Grid) blankRow(cols int) []Cell {
	row := make([]Cell, cols)
	for i := range row {
		row[i] = g.blank
	}
	return row
}

// Rows returns the number of visible rows
func (g *Grid) Rows() int {
	return len(g.rows)
}

// Cols returns the number of columns
func (g *Grid) Cols() int {
	return g.cols
}

// Blank returns the cell used to fill new space
func (g *Grid) Blank() Cell {
	return g.blank
}

// GetCell returns the cell at the given position, false if out of bounds
func (g *Grid) GetCell(row, col int) (Cell, bool) {
	if row < 0 || row >= len(g.rows) || col < 0 || col >= g.cols {
		return Cell{}, false
	}
	return g.rows[row][col], true
}

// SetCell sets the cell at the given position. Out of bounds is a no-op.
func (g *Grid) SetCell(row, col int, cell Cell) {
	if row < 0 || row >= len(g.rows) || col < 0 || col >= g.cols {
		return
	}
	g.rows[row][col] = cell
}

// Cursor returns the cursor position
func (g *Grid) Cursor() (row, col int) {
	return g.cursorRow, g.cursorCol
}

// MoveCursor moves the cursor to an absolute 0-based position, clamped to the grid
func (g *Grid) MoveCursor(row, col int) {
	g.cursorRow = clampInt(row, 0, len(g.rows)-1)
	g.cursorCol = clampInt(col, 0, g.cols-1)
}

// ScrollUp scrolls the grid up by n lines. Each top row goes to scrollback.
func (g *Grid) ScrollUp(n int) {
	for i := 0; i < n; i++ {
		top := g.rows[0]
		g.scrollback.push(top)
		copy(g.rows, g.rows[1:])
		g.rows[len(g.rows)-1] = g.blankRow(g.cols)
	}
}

// Resize resizes the grid, keeping content in the overlapping region.
// Scrollback is left as is.
func (g *Grid) Resize(rows, cols int) {
	rows = atLeastOne(rows)
	cols = atLeastOne(cols)

	if rows < len(g.rows) {
		g.rows = g.rows[:rows]
	}
	for len(g.rows) < rows {
		g.rows = append(g.rows, g.blankRow(cols))
	}

	for i, row := range g.rows {
		switch {
		case len(row) > cols:
			g.rows[i] = row[:cols:cols]
		case len(row) < cols:
			grown := make([]Cell, cols)
			copy(grown, row)
			for col := len(row); col < cols; col++ {
				grown[col] = g.blank
			}
			g.rows[i] = grown
		}
	}
	g.cols = cols

	// Clamp cursor
	g.MoveCursor(g.cursorRow, g.cursorCol)
}

// VisibleContent returns a copy of the visible rows
func (g *Grid) VisibleContent() [][]Cell {
	return copyRows(g.rows)
}

// Scrollback returns a copy of the scrollback, oldest line first
func (g *Grid) Scrollback() [][]Cell {
	return copyRows(g.scrollback.lines())
}

// ScrollbackLen returns the number of lines held in scrollback
func (g *Grid) ScrollbackLen() int {
	return g.scrollback.len()
}

// ScrollbackLimit returns the scrollback capacity
func (g *Grid) ScrollbackLimit() int {
	return g.scrollback.capacity()
}

// VisibleText returns the visible grid as plain text.
func (g *Grid) VisibleText() string {
	return rowsText(g.rows)
}

// ScrollbackText returns the scrollback as plain text, oldest line first.
func (g *Grid) ScrollbackText() string {
	return rowsText(g.scrollback.lines())
}

func rowsText(rows [][]Cell) string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		var b strings.Builder
		b.Grow(len(row))
		for _, cell := range row {
			ch := cell.Char
			if ch == 0 {
				ch = ' '
			}
			b.WriteRune(ch)
		}
		lines[i] = strings.TrimRight(b.String(), " ")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func copyRows(rows [][]Cell) [][]Cell {
	out := make([][]Cell, len(rows))
	for i, row := range rows {
		out[i] = append([]Cell(nil), row...)
	}
	return out
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
