package gobmc_test

import (
	"context"
	"testing"
	"time"

	"github.com/borzacchiello/gobmc"
	"github.com/stretchr/testify/require"
)

func TestZ3FreeStateFoundAtZero(t *testing.T) {
	// an uninitialized 1-bit state can already be 1 at step 0
	m, err := gobmc.ParseString(`
1 sort bitvec 1
2 state 1 s
3 not 1 2
4 next 1 2 3
5 bad 2
`)
	require.NoError(t, err)

	res, err := gobmc.Check(context.Background(), m, gobmc.NewZ3Oracle(), gobmc.CheckConfig{MaxBound: 5})
	require.NoError(t, err)
	require.True(t, res.Found())
	require.Equal(t, 0, res.Bound)
	require.Equal(t, uint64(1), res.Trace.Steps[0].States[0].BV.AsULong())
}

func TestZ3SafeModelExhausts(t *testing.T) {
	// a state stuck at 0 never reaches the bad predicate
	m, err := gobmc.ParseString(`
1 sort bitvec 1
2 zero 1
3 state 1 s
4 init 1 3 2
5 next 1 3 3
6 bad 3
`)
	require.NoError(t, err)

	res, err := gobmc.Check(context.Background(), m, gobmc.NewZ3Oracle(), gobmc.CheckConfig{MaxBound: 4})
	require.NoError(t, err)
	require.Equal(t, gobmc.STATE_EXHAUSTED, res.State)
	require.Equal(t, 4, res.Bound)
	require.Len(t, res.History, 5)
}

func TestZ3Toggler(t *testing.T) {
	m, err := gobmc.ParseString(togglerModel)
	require.NoError(t, err)

	res, err := gobmc.Check(context.Background(), m, gobmc.NewZ3Oracle(), gobmc.CheckConfig{
		MaxBound:      10,
		OracleTimeout: time.Minute,
	})
	require.NoError(t, err)
	require.True(t, res.Found())
	require.Equal(t, 1, res.Bound)

	require.Equal(t, uint64(0), res.Trace.Steps[0].States[0].BV.AsULong())
	require.Equal(t, uint64(1), res.Trace.Steps[1].States[0].BV.AsULong())
}

const memoryModel = `
1 sort bitvec 1
2 sort bitvec 2
3 sort bitvec 8
4 sort array 2 3
5 state 4 mem
6 input 3 v
7 zero 2
8 write 4 5 7 6
9 next 4 5 8
10 read 3 5 7
11 constd 3 42
12 eq 1 10 11
13 bad 12 readback
14 zero 3
15 init 4 5 14
`

func TestZ3Memory(t *testing.T) {
	// mem starts all zero; each step stores input v at index 0; the
	// stored value can be read back one step later
	m, err := gobmc.ParseString(memoryModel)
	require.NoError(t, err)

	oracle := gobmc.NewZ3Oracle()
	res, err := gobmc.Check(context.Background(), m, oracle, gobmc.CheckConfig{MaxBound: 5})
	require.NoError(t, err)
	require.True(t, res.Found())
	require.Equal(t, 1, res.Bound)
	require.Equal(t, "readback", res.Trace.Fired[0].Name)

	// the input at step 0 must be the value read at step 1
	require.Equal(t, uint64(42), res.Trace.Steps[0].Inputs[0].BV.AsULong())

	mem1 := res.Trace.Steps[1].States[0].Arr
	require.NotNil(t, mem1)
	require.Equal(t, uint64(42), mem1.Get(gobmc.MakeBVConst(0, 2)).AsULong())
}

func TestZ3ReplaySoundness(t *testing.T) {
	m, err := gobmc.ParseString(memoryModel)
	require.NoError(t, err)

	tb := gobmc.NewTermBuilder()
	oracle := gobmc.NewZ3Oracle()

	for k := 0; ; k++ {
		require.LessOrEqual(t, k, 5)
		u, err := gobmc.Unroll(m, k, tb)
		require.NoError(t, err)
		query, err := u.Query(tb)
		require.NoError(t, err)

		verdict, err := oracle.Check(context.Background(), query)
		require.NoError(t, err)
		if verdict == gobmc.VERDICT_UNSAT {
			continue
		}
		require.Equal(t, gobmc.VERDICT_SAT, verdict)

		asn := oracle.Model()
		require.NotNil(t, asn)
		tr, err := gobmc.ExtractTrace(u, asn)
		require.NoError(t, err)
		require.NoError(t, gobmc.ReplayTrace(u, asn, tr))
		return
	}
}

func TestZ3Constraint(t *testing.T) {
	// the constraint pins the input to zero, so the bad input value is
	// unreachable
	m, err := gobmc.ParseString(`
1 sort bitvec 1
2 sort bitvec 8
3 input 2 x
4 zero 2
5 eq 1 3 4
6 constraint 5
7 constd 2 7
8 eq 1 3 7
9 bad 8
`)
	require.NoError(t, err)

	res, err := gobmc.Check(context.Background(), m, gobmc.NewZ3Oracle(), gobmc.CheckConfig{MaxBound: 3})
	require.NoError(t, err)
	require.Equal(t, gobmc.STATE_EXHAUSTED, res.State)
}

func TestSessionToggler(t *testing.T) {
	m, err := gobmc.ParseString(togglerModel)
	require.NoError(t, err)

	s := gobmc.NewSession(m)
	s.SetTimeout(time.Minute)

	v, err := s.Advance(context.Background())
	require.NoError(t, err)
	require.Equal(t, gobmc.VERDICT_UNSAT, v)
	require.Equal(t, 1, s.Bound())

	v, err = s.Advance(context.Background())
	require.NoError(t, err)
	require.Equal(t, gobmc.VERDICT_SAT, v)

	asn := s.Assignment()
	require.NotNil(t, asn)
	tr, err := gobmc.ExtractTrace(s.Unrolling(), asn)
	require.NoError(t, err)
	require.Equal(t, 1, tr.Bound)
	require.NoError(t, gobmc.ReplayTrace(s.Unrolling(), asn, tr))
}

func TestSessionSafeModel(t *testing.T) {
	m, err := gobmc.ParseString(`
1 sort bitvec 1
2 zero 1
3 state 1 s
4 init 1 3 2
5 next 1 3 3
6 bad 3
`)
	require.NoError(t, err)

	s := gobmc.NewSession(m)
	for i := 0; i < 4; i++ {
		v, err := s.Advance(context.Background())
		require.NoError(t, err)
		require.Equal(t, gobmc.VERDICT_UNSAT, v)
	}
	require.Equal(t, 4, s.Bound())
	require.Nil(t, s.Assignment())
}

func TestZ3OnesInitMemoryReplay(t *testing.T) {
	// mem starts with every element all ones; the read at index 0
	// observes it immediately and the extracted trace must replay
	m, err := gobmc.ParseString(`
1 sort bitvec 1
2 sort bitvec 2
3 sort bitvec 8
4 sort array 2 3
5 state 4 mem
6 ones 3
7 init 4 5 6
8 zero 2
9 read 3 5 8
10 eq 1 9 6
11 bad 10 allset
`)
	require.NoError(t, err)

	tb := gobmc.NewTermBuilder()
	u, err := gobmc.Unroll(m, 0, tb)
	require.NoError(t, err)
	query, err := u.Query(tb)
	require.NoError(t, err)

	oracle := gobmc.NewZ3Oracle()
	verdict, err := oracle.Check(context.Background(), query)
	require.NoError(t, err)
	require.Equal(t, gobmc.VERDICT_SAT, verdict)

	asn := oracle.Model()
	require.NotNil(t, asn)
	tr, err := gobmc.ExtractTrace(u, asn)
	require.NoError(t, err)
	require.Equal(t, "allset", tr.Fired[0].Name)
	require.NoError(t, gobmc.ReplayTrace(u, asn, tr))

	// the init pins cells the query never probed
	mem := tr.Steps[0].States[0].Arr
	require.NotNil(t, mem)
	require.Equal(t, uint64(255), mem.Get(gobmc.MakeBVConst(0, 2)).AsULong())
	require.Equal(t, uint64(255), mem.Get(gobmc.MakeBVConst(3, 2)).AsULong())
}
