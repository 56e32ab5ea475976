package terminal

import (
	"net/url"
	"strings"

	"github.com/javanhut/liminal/grid"
	"github.com/javanhut/liminal/parser"
)

const tabWidth = 8

// Options configures a new Terminal
type Options struct {
	Rows            int
	Cols            int
	ScrollbackLimit int
	Foreground      grid.RGB
	Background      grid.RGB
}

// DefaultOptions returns an 80x24 terminal on the default colours
func DefaultOptions() Options {
	return Options{
		Rows:            24,
		Cols:            80,
		ScrollbackLimit: grid.DefaultScrollback,
		Foreground:      grid.DefaultFg,
		Background:      grid.DefaultBg,
	}
}

// Terminal feeds bytes through the escape sequence parser into a grid.
//
// Terminal does no locking: one caller at a time.
type Terminal struct {
	grid    *grid.Grid
	parser  *parser.Parser
	style   grid.Cell
	blank   grid.Cell
	actions []parser.Action

	workingDir string
	title      string
}

// New creates a new terminal. Leaving both colours zero selects the
// grid defaults.
func New(opts Options) *Terminal {
	if opts.Foreground == (grid.RGB{}) && opts.Background == (grid.RGB{}) {
		opts.Foreground = grid.DefaultFg
		opts.Background = grid.DefaultBg
	}
	blank := grid.BlankCell(opts.Foreground, opts.Background)
	return &Terminal{
		grid:   grid.NewGridWithBlank(opts.Rows, opts.Cols, opts.ScrollbackLimit, blank),
		parser: parser.New(),
		style:  blank,
		blank:  blank,
	}
}

// Process processes incoming bytes from the shell
func (t *Terminal) Process(data []byte) {
	for _, b := range data {
		t.actions = t.parser.Advance(t.actions[:0], b)
		for i := range t.actions {
			t.perform(&t.actions[i])
		}
	}
}

// Write implements io.Writer so a terminal can sit at the end of a pipe
func (t *Terminal) Write(p []byte) (int, error) {
	t.Process(p)
	return len(p), nil
}

func (t *Terminal) perform(a *parser.Action) {
	switch a.Kind {
	case parser.ActionPrint:
		t.print(a.Rune)
	case parser.ActionExecute:
		t.execute(a.Final)
	case parser.ActionCSIDispatch:
		t.executeCSI(a)
	case parser.ActionOSCDispatch:
		t.handleOSC(string(a.Data))
	case parser.ActionESCDispatch, parser.ActionDCSDispatch:
		// consumed without effect
	}
}

// print writes r with the current style and advances the cursor
func (t *Terminal) print(r rune) {
	if grid.RuneWidth(r) == 0 {
		return
	}

	row, col := t.grid.Cursor()
	t.grid.SetCell(row, col, t.style.WithChar(r))

	switch {
	case col+1 < t.grid.Cols():
		t.grid.MoveCursor(row, col+1)
	case row+1 < t.grid.Rows():
		t.grid.MoveCursor(row+1, 0)
	default:
		t.grid.ScrollUp(1)
		t.grid.MoveCursor(t.grid.Rows()-1, 0)
	}
}

// execute handles C0 control codes
func (t *Terminal) execute(b byte) {
	row, col := t.grid.Cursor()
	switch b {
	case '\n': // LF
		if row+1 < t.grid.Rows() {
			t.grid.MoveCursor(row+1, col)
		} else {
			t.grid.ScrollUp(1)
		}
	case '\r': // CR
		t.grid.MoveCursor(row, 0)
	case '\t': // HT
		t.grid.MoveCursor(row, (col/tabWidth+1)*tabWidth)
	}
}

// executeCSI executes a CSI sequence
func (t *Terminal) executeCSI(a *parser.Action) {
	if a.Private != 0 || len(a.Intermediates) > 0 {
		return
	}

	row, col := t.grid.Cursor()
	switch a.Final {
	case 'A': // CUU - Cursor up
		t.grid.MoveCursor(row-a.Param(0, 1), col)
	case 'B': // CUD - Cursor down
		t.grid.MoveCursor(row+a.Param(0, 1), col)
	case 'C': // CUF - Cursor forward
		t.grid.MoveCursor(row, col+a.Param(0, 1))
	case 'D': // CUB - Cursor back
		t.grid.MoveCursor(row, col-a.Param(0, 1))
	case 'H': // CUP - Cursor position (1-based)
		t.grid.MoveCursor(a.Param(0, 1)-1, a.Param(1, 1)-1)
	case 'm': // SGR - Select graphic rendition
		t.executeSGR(a.Params)
	}
}

// executeSGR applies every code in order to the current style
func (t *Terminal) executeSGR(params []int) {
	if len(params) == 0 {
		params = []int{0}
	}

	for _, p := range params {
		switch {
		case p == 0: // Reset
			t.style = t.blank
		case p == 1: // Bold
			t.style.Bold = true
		case p == 3: // Italic
			t.style.Italic = true
		case p == 4: // Underline
			t.style.Underline = true
		case p >= 30 && p <= 37: // Standard foreground colors
			t.style.Fg = grid.Palette[p-30]
		case p >= 40 && p <= 47: // Standard background colors
			t.style.Bg = grid.Palette[p-40]
		}
	}
}

// handleOSC records the working directory (OSC 7) and title (OSC 0/2)
func (t *Terminal) handleOSC(params string) {
	code, value, ok := strings.Cut(params, ";")
	if !ok {
		return
	}
	switch code {
	case "0", "2":
		t.title = value
	case "7":
		if path := parseOSC7Path(value); path != "" {
			t.workingDir = path
		}
	}
}

func parseOSC7Path(value string) string {
	if strings.HasPrefix(value, "file://") {
		parsed, err := url.Parse(value)
		if err != nil || parsed.Path == "" {
			return ""
		}
		return parsed.Path
	}
	if strings.HasPrefix(value, "/") {
		return value
	}
	return ""
}

// Resize resizes the terminal grid
func (t *Terminal) Resize(rows, cols int) {
	t.grid.Resize(rows, cols)
}

// Grid returns the underlying grid
func (t *Terminal) Grid() *grid.Grid {
	return t.grid
}

// Cursor returns the cursor position
func (t *Terminal) Cursor() (row, col int) {
	return t.grid.Cursor()
}

// VisibleContent returns a copy of the visible rows
func (t *Terminal) VisibleContent() [][]grid.Cell {
	return t.grid.VisibleContent()
}

// Scrollback returns a copy of the scrollback, oldest first
func (t *Terminal) Scrollback() [][]grid.Cell {
	return t.grid.Scrollback()
}

// VisibleText returns the visible grid as plain text
func (t *Terminal) VisibleText() string {
	return t.grid.VisibleText()
}

// CurrentStyle returns the style applied to the next printed character
func (t *Terminal) CurrentStyle() grid.Cell {
	return t.style
}

// WorkingDir returns the last known working directory from OSC 7.
func (t *Terminal) WorkingDir() string {
	return t.workingDir
}

// Title returns the last window title set through OSC 0 or 2.
func (t *Terminal) Title() string {
	return t.title
}
