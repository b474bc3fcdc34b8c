package gobmc_test

import (
	"context"
	"errors"
	"testing"

	"github.com/borzacchiello/gobmc"
	"github.com/stretchr/testify/require"
)

// fakeOracle replays a script of verdicts, one per Check call.
type fakeOracle struct {
	verdicts []int
	err      error
	asn      *gobmc.Assignment
	calls    int
}

func (f *fakeOracle) Check(ctx context.Context, query *gobmc.Term) (int, error) {
	if f.err != nil {
		return gobmc.VERDICT_ERROR, f.err
	}
	if f.calls >= len(f.verdicts) {
		return gobmc.VERDICT_ERROR, errors.New("no more scripted verdicts")
	}
	v := f.verdicts[f.calls]
	f.calls++
	return v, nil
}

func (f *fakeOracle) Model() *gobmc.Assignment {
	return f.asn
}

func TestCheckFound(t *testing.T) {
	m, err := gobmc.ParseString(togglerModel)
	require.NoError(t, err)

	asn := gobmc.NewAssignment()
	asn.BVs["n3@0"] = gobmc.MakeBVConst(0, 1)
	asn.BVs["n3@1"] = gobmc.MakeBVConst(1, 1)
	oracle := &fakeOracle{
		verdicts: []int{gobmc.VERDICT_UNSAT, gobmc.VERDICT_SAT},
		asn:      asn,
	}

	res, err := gobmc.Check(context.Background(), m, oracle, gobmc.CheckConfig{MaxBound: 10})
	require.NoError(t, err)
	require.True(t, res.Found())
	require.Equal(t, gobmc.STATE_FOUND, res.State)
	require.Equal(t, 1, res.Bound)
	require.NotNil(t, res.Trace)
	require.Equal(t, 2, oracle.calls)

	require.Equal(t, []gobmc.BoundVerdict{
		{Bound: 0, Verdict: gobmc.VERDICT_UNSAT},
		{Bound: 1, Verdict: gobmc.VERDICT_SAT},
	}, res.History)
}

func TestCheckExhausted(t *testing.T) {
	m, err := gobmc.ParseString(togglerModel)
	require.NoError(t, err)

	oracle := &fakeOracle{verdicts: []int{
		gobmc.VERDICT_UNSAT, gobmc.VERDICT_UNSAT, gobmc.VERDICT_UNSAT,
	}}
	res, err := gobmc.Check(context.Background(), m, oracle, gobmc.CheckConfig{MaxBound: 2})
	require.NoError(t, err)
	require.False(t, res.Found())
	require.Equal(t, gobmc.STATE_EXHAUSTED, res.State)
	require.Equal(t, 2, res.Bound)
	require.Len(t, res.History, 3)
}

func TestCheckUnknownFails(t *testing.T) {
	m, err := gobmc.ParseString(togglerModel)
	require.NoError(t, err)

	oracle := &fakeOracle{verdicts: []int{gobmc.VERDICT_UNSAT, gobmc.VERDICT_UNKNOWN}}
	res, err := gobmc.Check(context.Background(), m, oracle, gobmc.CheckConfig{MaxBound: 5})
	require.Error(t, err)
	require.Equal(t, gobmc.STATE_FAILED, res.State)

	oerr, ok := err.(*gobmc.OracleError)
	require.True(t, ok, "expected an OracleError, got %v", err)
	require.Equal(t, 1, oerr.Bound)
}

func TestCheckOracleErrorFails(t *testing.T) {
	m, err := gobmc.ParseString(togglerModel)
	require.NoError(t, err)

	oracle := &fakeOracle{err: errors.New("solver crashed")}
	res, err := gobmc.Check(context.Background(), m, oracle, gobmc.CheckConfig{MaxBound: 5})
	require.Error(t, err)
	require.Equal(t, gobmc.STATE_FAILED, res.State)
	require.Equal(t, 0, res.Bound)
}

func TestCheckNoBadsIsVacuous(t *testing.T) {
	m, err := gobmc.ParseString("1 sort bitvec 8\n2 state 1 s\n")
	require.NoError(t, err)

	oracle := &fakeOracle{}
	res, err := gobmc.Check(context.Background(), m, oracle, gobmc.CheckConfig{MaxBound: 3})
	require.NoError(t, err)
	require.Equal(t, gobmc.STATE_EXHAUSTED, res.State)
	require.Zero(t, oracle.calls)
}

func TestCheckRejectsNegativeBound(t *testing.T) {
	m, err := gobmc.ParseString(togglerModel)
	require.NoError(t, err)
	_, err = gobmc.Check(context.Background(), m, &fakeOracle{}, gobmc.CheckConfig{MaxBound: -1})
	require.Error(t, err)
}

func TestCheckCancellation(t *testing.T) {
	m, err := gobmc.ParseString(togglerModel)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := gobmc.Check(ctx, m, &fakeOracle{}, gobmc.CheckConfig{MaxBound: 5})
	require.Error(t, err)
	require.Equal(t, gobmc.STATE_FAILED, res.State)
}

func TestCheckBadSelection(t *testing.T) {
	text := `
1 sort bitvec 1
2 state 1 s
3 bad 2 p0
4 bad 2 p1
`
	m, err := gobmc.ParseString(text)
	require.NoError(t, err)

	asn := gobmc.NewAssignment()
	asn.BVs["n2@0"] = gobmc.MakeBVConst(1, 1)

	oracle := &fakeOracle{verdicts: []int{gobmc.VERDICT_SAT}, asn: asn}
	res, err := gobmc.Check(context.Background(), m, oracle, gobmc.CheckConfig{MaxBound: 0})
	require.NoError(t, err)
	require.Len(t, res.Trace.Fired, 2)
	require.Equal(t, "p0", res.Trace.Fired[0].Name)
	require.Equal(t, "p1", res.Trace.Fired[1].Name)

	oracle = &fakeOracle{verdicts: []int{gobmc.VERDICT_SAT}, asn: asn}
	res, err = gobmc.Check(context.Background(), m, oracle, gobmc.CheckConfig{
		MaxBound:     0,
		BadSelection: gobmc.BAD_FIRST,
	})
	require.NoError(t, err)
	require.Len(t, res.Trace.Fired, 1)
	require.Equal(t, "p0", res.Trace.Fired[0].Name)
}
