package gobmc_test

import (
	"testing"

	"github.com/borzacchiello/gobmc"
	"github.com/stretchr/testify/require"
)

const counterModel = `
; an 8-bit counter that must not exceed 200
1 sort bitvec 1
2 sort bitvec 8
3 state 2 counter
4 constd 2 1
5 add 2 3 4
6 next 2 3 5
7 constd 2 200
8 ugt 1 3 7
9 bad 8 overflow
10 zero 2
11 init 2 3 10
`

func TestParseCounter(t *testing.T) {
	m, err := gobmc.ParseString(counterModel)
	require.NoError(t, err)

	sid, ok := m.Lookup(3)
	require.True(t, ok)
	state := m.Node(sid)
	require.Equal(t, gobmc.ND_STATE, state.Kind)
	require.Equal(t, "counter", state.Symbol)
	require.Equal(t, uint(8), m.SortOf(sid).Width)

	initID, ok := m.Lookup(10)
	require.True(t, ok)
	require.Equal(t, initID, state.Init)
	nextID, ok := m.Lookup(5)
	require.True(t, ok)
	require.Equal(t, nextID, state.Next)

	require.Len(t, m.Bads, 1)
	require.Empty(t, m.Constraints)
	require.Equal(t, "overflow", m.NameOf(m.Bads[0]))
	require.Equal(t, "n5", m.NameOf(nextID))

	require.Len(t, m.States(), 1)
	require.Empty(t, m.Inputs())
}

func TestParseArrayModel(t *testing.T) {
	m, err := gobmc.ParseString(`
1 sort bitvec 2
2 sort bitvec 8
3 sort array 1 2
4 state 3 mem
5 zero 2
6 init 3 4 5
7 zero 1
8 input 2 v
9 write 3 4 7 8
10 next 3 4 9
`)
	require.NoError(t, err)

	sid, ok := m.Lookup(4)
	require.True(t, ok)
	srt := m.SortOf(sid)
	require.True(t, srt.IsArray())

	// element-sorted init stands for a constant array
	initID, _ := m.Lookup(5)
	require.Equal(t, initID, m.Node(sid).Init)
}

func TestParseComments(t *testing.T) {
	m, err := gobmc.ParseString("1 sort bitvec 4 ; width four\n2 input 1 x ; named\n")
	require.NoError(t, err)
	id, ok := m.Lookup(2)
	require.True(t, ok)
	require.Equal(t, "x", m.Node(id).Symbol)
}

func requireParseError(t *testing.T, text string, line int) {
	t.Helper()
	_, err := gobmc.ParseString(text)
	require.Error(t, err)
	perr, ok := err.(*gobmc.ParseError)
	require.True(t, ok, "expected a ParseError, got %v", err)
	require.Equal(t, line, perr.Line)
}

func TestParseErrors(t *testing.T) {
	requireParseError(t, "1 sort bitvec 8\n2 add 1 3 3\n", 2)
	requireParseError(t, "1 sort bitvec 8\n1 sort bitvec 4\n", 2)
	requireParseError(t, "0 sort bitvec 8\n", 1)
	requireParseError(t, "1 sort bitvec 0\n", 1)
	requireParseError(t, "1 sort bitvec 8\n2 frobnicate 1\n", 2)
	requireParseError(t, "1 sort bitvec 8\n2 bad 1\n", 2)
	requireParseError(t, "1 sort bitvec 2\n2 input 1\n3 slice 1 2 3 1\n", 3)
	requireParseError(t, "1 sort bitvec 8\n2 input 1\n3 bad 2\n", 3)
	requireParseError(t, "1 sort bitvec 8\n2 const 1 -101\n", 2)
	requireParseError(t, "1 sort bitvec 8\n2 input 1\n3 init 1 2 2\n", 3)
}

func TestParseDuplicateInit(t *testing.T) {
	requireParseError(t, `1 sort bitvec 8
2 state 1
3 zero 1
4 init 1 2 3
5 init 1 2 3
`, 5)
}

func TestParseInitLineIsNotANode(t *testing.T) {
	// the init line occupies id 4, referencing it as an operand fails
	requireParseError(t, `1 sort bitvec 8
2 state 1
3 zero 1
4 init 1 2 3
5 add 1 2 4
`, 5)
}
