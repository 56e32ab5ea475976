package parser

import (
	"unicode/utf8"
)

const (
	// MaxParams is the number of CSI parameters kept; extras are dropped
	MaxParams = 32
	// MaxParamValue is where numeric parameters saturate
	MaxParamValue = 65535
	// MaxStringLen bounds OSC and DCS payloads
	MaxStringLen = 4096
	// MaxIntermediates bounds intermediate bytes per sequence
	MaxIntermediates = 2
)

// State represents the current state of the parser
type State int

const (
	StateGround State = iota
	StateEscape
	StateEscapeIntermediate
	StateCSIEntry
	StateCSIParam
	StateCSIIntermediate
	StateCSIIgnore
	StateOSCString
	StateDCSString
	StateIgnoreString // SOS, PM, APC
	StateStringEscape // ESC seen inside an OSC, DCS or ignored string
)

func (s State) String() string {
	switch s {
	case StateGround:
		return "ground"
	case StateEscape:
		return "escape"
	case StateEscapeIntermediate:
		return "escape-intermediate"
	case StateCSIEntry:
		return "csi-entry"
	case StateCSIParam:
		return "csi-param"
	case StateCSIIntermediate:
		return "csi-intermediate"
	case StateCSIIgnore:
		return "csi-ignore"
	case StateOSCString:
		return "osc-string"
	case StateDCSString:
		return "dcs-string"
	case StateIgnoreString:
		return "ignore-string"
	case StateStringEscape:
		return "string-escape"
	}
	return "unknown"
}

// ActionKind identifies what an Action asks the terminal to do
type ActionKind uint8

const (
	ActionPrint ActionKind = iota + 1
	ActionExecute
	ActionCSIDispatch
	ActionESCDispatch
	ActionOSCDispatch
	ActionDCSDispatch
)

func (k ActionKind) String() string {
	switch k {
	case ActionPrint:
		return "print"
	case ActionExecute:
		return "execute"
	case ActionCSIDispatch:
		return "csi"
	case ActionESCDispatch:
		return "esc"
	case ActionOSCDispatch:
		return "osc"
	case ActionDCSDispatch:
		return "dcs"
	}
	return "none"
}

// Action is one decoded unit of the byte stream.
//
// Only the fields relevant to Kind are set:
//   - Print: Rune
//   - Execute: Final holds the C0 byte
//   - CSIDispatch: Params, Private, Intermediates, Final
//   - ESCDispatch: Intermediates, Final
//   - OSCDispatch: Data (payload without terminator), Bell
//   - DCSDispatch: Params, Private, Intermediates, Final, Data
type Action struct {
	Kind          ActionKind
	Rune          rune
	Final         byte
	Params        []int
	Private       byte
	Intermediates []byte
	Data          []byte
	Bell          bool
}

// Param returns parameter i, or def when it is absent or zero
func (a Action) Param(i, def int) int {
	if i < len(a.Params) && a.Params[i] > 0 {
		return a.Params[i]
	}
	return def
}

// Parser is a byte-at-a-time VT escape sequence decoder. It has no
// error paths: any byte outside the grammar of the current state sends
// it back to ground, so no input can wedge it.
type Parser struct {
	state State

	// string state interrupted by ESC, resumed into a dispatch on ST
	stringState State

	params        []int
	current       int
	hasCurrent    bool
	private       byte
	intermediates []byte
	data          []byte
	dcs           bool // collecting a DCS header rather than a CSI

	// DCS header, saved while the payload accumulates
	dcsHeader Action

	utf8Buf [utf8.UTFMax]byte
	utf8Len int
}

// New creates a parser in ground state
func New() *Parser {
	return &Parser{
		state:  StateGround,
		params: make([]int, 0, MaxParams),
	}
}

// State returns the current state
func (p *Parser) State() State {
	return p.state
}

// Reset returns the parser to ground and drops any partial sequence
func (p *Parser) Reset() {
	p.state = StateGround
	p.utf8Len = 0
	p.clear()
}

func (p *Parser) clear() {
	p.params = p.params[:0]
	p.current = 0
	p.hasCurrent = false
	p.private = 0
	p.intermediates = p.intermediates[:0]
	p.data = p.data[:0]
	p.dcs = false
	p.dcsHeader = Action{}
}

// Parse decodes data and returns the resulting actions
func (p *Parser) Parse(data []byte) []Action {
	var actions []Action
	for _, b := range data {
		actions = p.Advance(actions, b)
	}
	return actions
}

// Advance consumes one byte, appends the actions it completes to dst
// and returns the extended slice. Most bytes complete zero or one action.
func (p *Parser) Advance(dst []Action, b byte) []Action {
	if p.utf8Len > 0 {
		return p.advanceUTF8(dst, b)
	}

	// Anywhere: CAN and SUB abort a sequence, ESC starts a new one
	switch b {
	case 0x18, 0x1a:
		if p.state != StateGround {
			p.Reset()
			return dst
		}
	case 0x1b:
		switch p.state {
		case StateOSCString, StateDCSString, StateIgnoreString:
			p.stringState = p.state
			p.state = StateStringEscape
			return dst
		case StateStringEscape:
			dst = p.finishString(dst)
		}
		p.clear()
		p.state = StateEscape
		return dst
	}

	switch p.state {
	case StateGround:
		return p.ground(dst, b)
	case StateEscape:
		return p.escape(dst, b)
	case StateEscapeIntermediate:
		return p.escapeIntermediate(dst, b)
	case StateCSIEntry, StateCSIParam, StateCSIIntermediate:
		return p.csi(dst, b)
	case StateCSIIgnore:
		return p.csiIgnore(dst, b)
	case StateOSCString:
		return p.oscString(dst, b)
	case StateDCSString, StateIgnoreString:
		return p.collectString(dst, b)
	case StateStringEscape:
		return p.stringEscape(dst, b)
	}
	p.Reset()
	return dst
}

// ground handles bytes in ground state
func (p *Parser) ground(dst []Action, b byte) []Action {
	switch {
	case b < 0x20:
		return append(dst, Action{Kind: ActionExecute, Final: b})
	case b < 0x7f:
		return append(dst, Action{Kind: ActionPrint, Rune: rune(b)})
	case b == 0x7f:
		// DEL - ignored
		return dst
	case b >= 0xc2 && b <= 0xf4:
		p.utf8Buf[0] = b
		p.utf8Len = 1
		return dst
	default:
		// Stray continuation byte or invalid lead byte
		return append(dst, Action{Kind: ActionPrint, Rune: utf8.RuneError})
	}
}

func (p *Parser) advanceUTF8(dst []Action, b byte) []Action {
	if b&0xc0 != 0x80 {
		// Truncated sequence: replace it and reprocess b
		p.utf8Len = 0
		dst = append(dst, Action{Kind: ActionPrint, Rune: utf8.RuneError})
		return p.Advance(dst, b)
	}

	p.utf8Buf[p.utf8Len] = b
	p.utf8Len++
	if !utf8.FullRune(p.utf8Buf[:p.utf8Len]) {
		return dst
	}

	buf := p.utf8Buf[:p.utf8Len]
	p.utf8Len = 0
	r, size := utf8.DecodeRune(buf)
	dst = append(dst, Action{Kind: ActionPrint, Rune: r})
	// Invalid encodings (overlong, surrogate) decode one byte at a time
	for _, rest := range buf[size:] {
		dst = p.Advance(dst, rest)
	}
	return dst
}

// escape handles the byte after ESC
func (p *Parser) escape(dst []Action, b byte) []Action {
	switch {
	case b < 0x20:
		return append(dst, Action{Kind: ActionExecute, Final: b})
	case b <= 0x2f:
		p.collectIntermediate(b)
		p.state = StateEscapeIntermediate
	case b == '[':
		p.clear()
		p.state = StateCSIEntry
	case b == ']':
		p.clear()
		p.state = StateOSCString
	case b == 'P':
		p.clear()
		p.dcs = true
		p.state = StateCSIEntry
	case b == 'X', b == '^', b == '_':
		p.clear()
		p.state = StateIgnoreString
	case b < 0x7f:
		dst = append(dst, p.escDispatch(b))
		p.state = StateGround
	case b == 0x7f:
		// DEL - ignored
	default:
		p.Reset()
	}
	return dst
}

// escapeIntermediate handles ESC followed by intermediates, e.g. ESC ( B
func (p *Parser) escapeIntermediate(dst []Action, b byte) []Action {
	switch {
	case b < 0x20:
		return append(dst, Action{Kind: ActionExecute, Final: b})
	case b <= 0x2f:
		p.collectIntermediate(b)
	case b < 0x7f:
		dst = append(dst, p.escDispatch(b))
		p.state = StateGround
	case b == 0x7f:
		// DEL - ignored
	default:
		p.Reset()
	}
	return dst
}

func (p *Parser) escDispatch(final byte) Action {
	a := Action{Kind: ActionESCDispatch, Final: final}
	if len(p.intermediates) > 0 {
		a.Intermediates = append([]byte(nil), p.intermediates...)
	}
	p.clear()
	return a
}

func (p *Parser) collectIntermediate(b byte) bool {
	if len(p.intermediates) >= MaxIntermediates {
		return false
	}
	p.intermediates = append(p.intermediates, b)
	return true
}

// csi handles CSI (and DCS header) entry, parameter and intermediate bytes
func (p *Parser) csi(dst []Action, b byte) []Action {
	switch {
	case b < 0x20:
		// C0 controls execute in place
		if p.dcs {
			return dst
		}
		return append(dst, Action{Kind: ActionExecute, Final: b})
	case b <= 0x2f:
		if !p.collectIntermediate(b) {
			p.state = StateCSIIgnore
			return dst
		}
		p.state = StateCSIIntermediate
	case b >= '0' && b <= '9':
		if p.state == StateCSIIntermediate {
			p.state = StateCSIIgnore
			return dst
		}
		p.current = p.current*10 + int(b-'0')
		if p.current > MaxParamValue {
			p.current = MaxParamValue
		}
		p.hasCurrent = true
		p.state = StateCSIParam
	case b == ';' || b == ':':
		if p.state == StateCSIIntermediate {
			p.state = StateCSIIgnore
			return dst
		}
		p.pushParam()
		p.state = StateCSIParam
	case b <= 0x3f:
		// Private marker, only valid straight after the introducer
		if p.state != StateCSIEntry {
			p.state = StateCSIIgnore
			return dst
		}
		p.private = b
		p.state = StateCSIParam
	case b < 0x7f:
		if p.hasCurrent || len(p.params) > 0 {
			p.pushParam()
		}
		a := Action{
			Kind:    ActionCSIDispatch,
			Final:   b,
			Params:  append([]int(nil), p.params...),
			Private: p.private,
		}
		if len(p.intermediates) > 0 {
			a.Intermediates = append([]byte(nil), p.intermediates...)
		}
		if p.dcs {
			a.Kind = ActionDCSDispatch
			p.clear()
			p.dcsHeader = a
			p.state = StateDCSString
			return dst
		}
		p.clear()
		p.state = StateGround
		return append(dst, a)
	case b == 0x7f:
		// DEL - ignored
	default:
		p.Reset()
	}
	return dst
}

func (p *Parser) pushParam() {
	if len(p.params) < MaxParams {
		p.params = append(p.params, p.current)
	}
	p.current = 0
	p.hasCurrent = false
}

// csiIgnore swallows a malformed CSI up to its final byte
func (p *Parser) csiIgnore(dst []Action, b byte) []Action {
	switch {
	case b < 0x20:
		return append(dst, Action{Kind: ActionExecute, Final: b})
	case b >= 0x40 && b < 0x7f:
		p.Reset()
	case b >= 0x80:
		p.Reset()
	}
	return dst
}

// oscString collects an OSC payload up to BEL or ST
func (p *Parser) oscString(dst []Action, b byte) []Action {
	switch {
	case b == 0x07:
		a := Action{Kind: ActionOSCDispatch, Data: append([]byte(nil), p.data...), Bell: true}
		p.Reset()
		return append(dst, a)
	case b < 0x20:
		// other C0 controls are ignored inside OSC
	default:
		p.appendData(b)
	}
	return dst
}

// collectString collects a DCS payload or discards SOS/PM/APC bytes
func (p *Parser) collectString(dst []Action, b byte) []Action {
	if p.state == StateDCSString {
		p.appendData(b)
	}
	return dst
}

func (p *Parser) appendData(b byte) {
	if len(p.data) < MaxStringLen {
		p.data = append(p.data, b)
	}
}

// stringEscape handles the byte after ESC inside a string
func (p *Parser) stringEscape(dst []Action, b byte) []Action {
	dst = p.finishString(dst)
	if b == '\\' {
		// ST
		p.Reset()
		return dst
	}
	// Any other byte starts a fresh escape sequence
	p.clear()
	p.state = StateEscape
	return p.escape(dst, b)
}

// finishString dispatches the string interrupted by ESC
func (p *Parser) finishString(dst []Action) []Action {
	switch p.stringState {
	case StateOSCString:
		dst = append(dst, Action{Kind: ActionOSCDispatch, Data: append([]byte(nil), p.data...)})
	case StateDCSString:
		a := p.dcsHeader
		a.Data = append([]byte(nil), p.data...)
		dst = append(dst, a)
	}
	p.stringState = StateGround
	return dst
}
