package gobmc_test

import (
	"testing"

	"github.com/borzacchiello/gobmc"
)

func TestEvalArithmetic(t *testing.T) {
	tb := gobmc.NewTermBuilder()
	asn := gobmc.NewAssignment()
	asn.BVs["a"] = gobmc.MakeBVConst(5, 8)
	asn.BVs["b"] = gobmc.MakeBVConst(250, 8)

	sum, err := tb.Add(tb.BVS("a", 8), tb.BVS("b", 8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := gobmc.EvalBV(sum, asn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.AsULong() != 255 {
		t.Errorf("expected 255, got %d", v.AsULong())
	}

	lt, _ := tb.ULt(tb.BVS("a", 8), tb.BVS("b", 8))
	holds, err := gobmc.EvalBool(lt, asn)
	if err != nil || !holds {
		t.Errorf("5 u< 250 should hold")
	}
}

func TestEvalMissingSymbolIsZero(t *testing.T) {
	tb := gobmc.NewTermBuilder()
	v, err := gobmc.EvalBV(tb.BVS("unbound", 16), gobmc.NewAssignment())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsZero() {
		t.Errorf("unbound symbols should default to zero")
	}
}

func TestEvalArray(t *testing.T) {
	tb := gobmc.NewTermBuilder()
	asn := gobmc.NewAssignment()
	mem := gobmc.NewArrayVal(2, 8)
	mem.Set(gobmc.MakeBVConst(1, 2), gobmc.MakeBVConst(42, 8))
	asn.Arrays["mem"] = mem
	asn.BVs["i"] = gobmc.MakeBVConst(1, 2)

	arr := tb.ArrayS("mem", 2, 8)
	sel, err := tb.Select(arr, tb.BVS("i", 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := gobmc.EvalBV(sel, asn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.AsULong() != 42 {
		t.Errorf("expected 42, got %d", v.AsULong())
	}

	// cells outside the assignment default to the array default
	sel, _ = tb.Select(arr, tb.BVS("j", 2))
	v, err = gobmc.EvalBV(sel, asn)
	if err != nil || !v.IsZero() {
		t.Errorf("unset cells should read as zero")
	}

	st, err := tb.Store(arr, tb.BVS("j", 2), tb.BVV(7, 8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	av, err := gobmc.EvalArray(st, asn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if av.Get(gobmc.MakeBVConst(0, 2)).AsULong() != 7 {
		t.Errorf("store at index 0 should be visible")
	}
	if av.Get(gobmc.MakeBVConst(1, 2)).AsULong() != 42 {
		t.Errorf("store must not clobber other cells")
	}
}

func TestEvalShiftAmountBeyondWidth(t *testing.T) {
	tb := gobmc.NewTermBuilder()
	asn := gobmc.NewAssignment()
	asn.BVs["x"] = gobmc.MakeBVConst(1, 128)

	amount, err := gobmc.ParseBVConst("10000000000000000", 16, 128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	shl, err := tb.Shl(tb.BVS("x", 128), tb.BVC(amount))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := gobmc.EvalBV(shl, asn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsZero() {
		t.Errorf("1 << 2^64 on 128 bits should be 0, got %s", v)
	}
}

func TestEvalArrayEqualityFullyEnumerated(t *testing.T) {
	tb := gobmc.NewTermBuilder()
	ones := gobmc.MakeBVConstOnes(8)

	// every cell is pinned, so the missing default cannot matter
	mem := gobmc.NewArrayVal(1, 8)
	mem.Set(gobmc.MakeBVConst(0, 1), ones.Copy())
	mem.Set(gobmc.MakeBVConst(1, 1), ones.Copy())
	asn := gobmc.NewAssignment()
	asn.Arrays["mem"] = mem

	eq, err := tb.Eq(tb.ArrayS("mem", 1, 8), tb.ConstArray(1, ones))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	holds, err := gobmc.EvalBool(eq, asn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !holds {
		t.Errorf("a fully enumerated all-ones array should equal the constant array")
	}
}
