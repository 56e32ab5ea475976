package parser

import (
	"math/rand"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(actions []Action) []ActionKind {
	out := make([]ActionKind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func TestPrintAndExecute(t *testing.T) {
	p := New()
	actions := p.Parse([]byte("A\nB\r\t"))

	require.Equal(t, []ActionKind{ActionPrint, ActionExecute, ActionPrint, ActionExecute, ActionExecute}, kinds(actions))
	assert.Equal(t, 'A', actions[0].Rune)
	assert.Equal(t, byte('\n'), actions[1].Final)
	assert.Equal(t, 'B', actions[2].Rune)
	assert.Equal(t, byte('\r'), actions[3].Final)
	assert.Equal(t, byte('\t'), actions[4].Final)
	assert.Equal(t, StateGround, p.State())
}

func TestCSIParams(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		final   byte
		params  []int
		private byte
	}{
		{"no params", "\x1b[m", 'm', nil, 0},
		{"single", "\x1b[31m", 'm', []int{31}, 0},
		{"multiple", "\x1b[1;3;4m", 'm', []int{1, 3, 4}, 0},
		{"empty middle", "\x1b[1;;4m", 'm', []int{1, 0, 4}, 0},
		{"trailing separator", "\x1b[5;H", 'H', []int{5, 0}, 0},
		{"colon flattened", "\x1b[38:2:1:2:3m", 'm', []int{38, 2, 1, 2, 3}, 0},
		{"private marker", "\x1b[?25h", 'h', []int{25}, '?'},
		{"saturates", "\x1b[999999A", 'A', []int{MaxParamValue}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := New().Parse([]byte(tt.input))
			require.Len(t, actions, 1)
			a := actions[0]
			assert.Equal(t, ActionCSIDispatch, a.Kind)
			assert.Equal(t, tt.final, a.Final)
			assert.Equal(t, tt.params, a.Params)
			assert.Equal(t, tt.private, a.Private)
		})
	}
}

func TestCSIParamLimit(t *testing.T) {
	input := []byte("\x1b[")
	for i := 0; i < MaxParams+10; i++ {
		input = append(input, '1', ';')
	}
	input = append(input, 'm')

	actions := New().Parse(input)
	require.Len(t, actions, 1)
	assert.Len(t, actions[0].Params, MaxParams)
}

func TestActionParamDefaults(t *testing.T) {
	a := Action{Params: []int{0, 7}}
	assert.Equal(t, 1, a.Param(0, 1))
	assert.Equal(t, 7, a.Param(1, 1))
	assert.Equal(t, 3, a.Param(2, 3))
}

func TestControlInsideCSIExecutes(t *testing.T) {
	actions := New().Parse([]byte("\x1b[1\n2A"))
	require.Equal(t, []ActionKind{ActionExecute, ActionCSIDispatch}, kinds(actions))
	assert.Equal(t, []int{12}, actions[1].Params)
}

func TestESCDispatch(t *testing.T) {
	actions := New().Parse([]byte("\x1b7\x1b(B"))
	require.Equal(t, []ActionKind{ActionESCDispatch, ActionESCDispatch}, kinds(actions))
	assert.Equal(t, byte('7'), actions[0].Final)
	assert.Empty(t, actions[0].Intermediates)
	assert.Equal(t, byte('B'), actions[1].Final)
	assert.Equal(t, []byte("("), actions[1].Intermediates)
}

func TestOSC(t *testing.T) {
	actions := New().Parse([]byte("\x1b]0;title\x07\x1b]7;file://host/tmp\x1b\\x"))
	require.Equal(t, []ActionKind{ActionOSCDispatch, ActionOSCDispatch, ActionPrint}, kinds(actions))
	assert.Equal(t, []byte("0;title"), actions[0].Data)
	assert.True(t, actions[0].Bell)
	assert.Equal(t, []byte("7;file://host/tmp"), actions[1].Data)
	assert.False(t, actions[1].Bell)
	assert.Equal(t, 'x', actions[2].Rune)
}

func TestDCSAndIgnoredStrings(t *testing.T) {
	actions := New().Parse([]byte("\x1bP1$qm\x1b\\\x1b_apc payload\x1b\\ok"))
	require.Equal(t, []ActionKind{ActionDCSDispatch, ActionPrint, ActionPrint}, kinds(actions))
	assert.Equal(t, byte('q'), actions[0].Final)
	assert.Equal(t, []int{1}, actions[0].Params)
	assert.Equal(t, []byte("$"), actions[0].Intermediates)
	assert.Equal(t, []byte("m"), actions[0].Data)
}

func TestUTF8(t *testing.T) {
	actions := New().Parse([]byte("é世🙂"))
	require.Len(t, actions, 3)
	assert.Equal(t, 'é', actions[0].Rune)
	assert.Equal(t, '世', actions[1].Rune)
	assert.Equal(t, '🙂', actions[2].Rune)
}

func TestMalformedUTF8(t *testing.T) {
	// truncated two-byte sequence followed by ASCII
	actions := New().Parse([]byte{0xc3, 'a'})
	require.Len(t, actions, 2)
	assert.Equal(t, utf8.RuneError, actions[0].Rune)
	assert.Equal(t, 'a', actions[1].Rune)

	// stray continuation byte
	actions = New().Parse([]byte{0x80})
	require.Len(t, actions, 1)
	assert.Equal(t, utf8.RuneError, actions[0].Rune)

	// truncated sequence interrupted by ESC still parses the CSI
	actions = New().Parse([]byte{0xe4, 0xb8, 0x1b, '[', 'm'})
	require.Equal(t, []ActionKind{ActionPrint, ActionCSIDispatch}, kinds(actions))
}

func TestCancelReturnsToGround(t *testing.T) {
	p := New()
	actions := p.Parse([]byte("\x1b[12\x18A"))
	require.Len(t, actions, 1)
	assert.Equal(t, ActionPrint, actions[0].Kind)
	assert.Equal(t, StateGround, p.State())
}

func TestMalformedCSIIsIgnored(t *testing.T) {
	p := New()
	// private marker after a parameter is outside the grammar
	actions := p.Parse([]byte("\x1b[1?5hX"))
	require.Len(t, actions, 1)
	assert.Equal(t, 'X', actions[0].Rune)

	// a non-ASCII byte aborts the sequence
	actions = p.Parse([]byte{0x1b, '[', '3', 0x9b, 'Y'})
	require.Len(t, actions, 1)
	assert.Equal(t, 'Y', actions[0].Rune)
	assert.Equal(t, StateGround, p.State())
}

func TestEscapeRestartsSequence(t *testing.T) {
	actions := New().Parse([]byte("\x1b[31\x1b[32m"))
	require.Len(t, actions, 1)
	assert.Equal(t, []int{32}, actions[0].Params)
}

func TestRandomInputNeverWedges(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := New()
	buf := make([]byte, 4096)
	for round := 0; round < 50; round++ {
		rng.Read(buf)
		p.Parse(buf)

		// after any garbage, a clean reset sequence is recognised
		actions := p.Parse([]byte("\x18\x1b[0mZ"))
		require.NotEmpty(t, actions)
		last := actions[len(actions)-1]
		assert.Equal(t, ActionPrint, last.Kind)
		assert.Equal(t, 'Z', last.Rune)
		assert.Equal(t, StateGround, p.State())
	}
}
