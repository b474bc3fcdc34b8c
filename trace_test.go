package gobmc_test

import (
	"testing"

	"github.com/borzacchiello/gobmc"
	"github.com/stretchr/testify/require"
)

const xorModel = `
1 sort bitvec 1
2 zero 1
3 state 1 s
4 input 1 in
5 xor 1 3 4
6 init 1 3 2
7 next 1 3 5
8 bad 3 flipped
`

func xorAssignment() *gobmc.Assignment {
	asn := gobmc.NewAssignment()
	asn.BVs["n3@0"] = gobmc.MakeBVConst(0, 1)
	asn.BVs["n4@0"] = gobmc.MakeBVConst(1, 1)
	asn.BVs["n3@1"] = gobmc.MakeBVConst(1, 1)
	asn.BVs["n4@1"] = gobmc.MakeBVConst(0, 1)
	return asn
}

func TestExtractTrace(t *testing.T) {
	m, err := gobmc.ParseString(xorModel)
	require.NoError(t, err)
	u, err := gobmc.Unroll(m, 1, gobmc.NewTermBuilder())
	require.NoError(t, err)

	tr, err := gobmc.ExtractTrace(u, xorAssignment())
	require.NoError(t, err)

	require.Equal(t, 1, tr.Bound)
	require.Len(t, tr.Fired, 1)
	require.Equal(t, 0, tr.Fired[0].Index)
	require.Equal(t, "flipped", tr.Fired[0].Name)

	require.Len(t, tr.Steps, 2)
	require.Equal(t, uint64(0), tr.Steps[0].States[0].BV.AsULong())
	require.Equal(t, uint64(1), tr.Steps[0].Inputs[0].BV.AsULong())
	require.Equal(t, uint64(1), tr.Steps[1].States[0].BV.AsULong())
}

func TestWitnessFormat(t *testing.T) {
	m, err := gobmc.ParseString(xorModel)
	require.NoError(t, err)
	u, err := gobmc.Unroll(m, 1, gobmc.NewTermBuilder())
	require.NoError(t, err)
	tr, err := gobmc.ExtractTrace(u, xorAssignment())
	require.NoError(t, err)

	want := `sat
b0
#0
0 0 s
@0
0 1 in
#1
0 1 s
@1
0 0 in
.
`
	require.Equal(t, want, tr.Witness())
}

func TestWitnessArrayCells(t *testing.T) {
	m, err := gobmc.ParseString(`
1 sort bitvec 2
2 sort bitvec 8
3 sort array 1 2
4 sort bitvec 1
5 state 3 mem
6 zero 1
7 read 2 5 6
8 constd 2 1
9 eq 4 7 8
10 bad 9
`)
	require.NoError(t, err)
	u, err := gobmc.Unroll(m, 0, gobmc.NewTermBuilder())
	require.NoError(t, err)

	asn := gobmc.NewAssignment()
	mem := gobmc.NewArrayVal(2, 8)
	mem.Set(gobmc.MakeBVConst(0, 2), gobmc.MakeBVConst(1, 8))
	asn.Arrays["n5@0"] = mem

	tr, err := gobmc.ExtractTrace(u, asn)
	require.NoError(t, err)

	want := `sat
b0
#0
0 [00] 00000001 mem
@0
.
`
	require.Equal(t, want, tr.Witness())
}

func TestTraceFlows(t *testing.T) {
	m, err := gobmc.ParseString(xorModel)
	require.NoError(t, err)
	u, err := gobmc.Unroll(m, 1, gobmc.NewTermBuilder())
	require.NoError(t, err)
	tr, err := gobmc.ExtractTrace(u, xorAssignment())
	require.NoError(t, err)

	flows := tr.Flows()
	require.Len(t, flows, 2)

	require.Equal(t, "s", flows[0].Name)
	require.Equal(t, []int{0, 1}, flows[0].Froms)
	require.Equal(t, []string{"0", "1"}, flows[0].Values)

	require.Equal(t, "in", flows[1].Name)
	require.Equal(t, []string{"1", "0"}, flows[1].Values)
}

func TestReplayTrace(t *testing.T) {
	m, err := gobmc.ParseString(xorModel)
	require.NoError(t, err)
	u, err := gobmc.Unroll(m, 1, gobmc.NewTermBuilder())
	require.NoError(t, err)

	asn := xorAssignment()
	tr, err := gobmc.ExtractTrace(u, asn)
	require.NoError(t, err)
	require.NoError(t, gobmc.ReplayTrace(u, asn, tr))

	// a corrupted assignment breaks the transition relation
	bad := xorAssignment()
	bad.BVs["n3@1"] = gobmc.MakeBVConst(0, 1)
	require.Error(t, gobmc.ReplayTrace(u, bad, tr))
}

func TestExtractTraceWithoutViolation(t *testing.T) {
	m, err := gobmc.ParseString(xorModel)
	require.NoError(t, err)
	u, err := gobmc.Unroll(m, 0, gobmc.NewTermBuilder())
	require.NoError(t, err)

	asn := gobmc.NewAssignment()
	asn.BVs["n3@0"] = gobmc.MakeBVConst(0, 1)
	asn.BVs["n4@0"] = gobmc.MakeBVConst(0, 1)
	_, err = gobmc.ExtractTrace(u, asn)
	require.Error(t, err)
}
