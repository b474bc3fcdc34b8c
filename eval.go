package gobmc

import "fmt"

type evalVal struct {
	bv  *BVConst
	b   bool
	arr *ArrayVal
}

// EvalBV concretely evaluates a bit-vector term under an assignment.
// Symbols the assignment does not mention evaluate to zero, the same
// completion an oracle model applies to unconstrained symbols.
func EvalBV(t *Term, asn *Assignment) (*BVConst, error) {
	v, err := evalTerm(t, asn, make(map[*Term]evalVal))
	if err != nil {
		return nil, err
	}
	if v.bv == nil {
		return nil, fmt.Errorf("not a bitvec term")
	}
	return v.bv, nil
}

// EvalBool concretely evaluates a boolean term under an assignment.
func EvalBool(t *Term, asn *Assignment) (bool, error) {
	if !t.IsBool() {
		return false, fmt.Errorf("not a boolean term")
	}
	v, err := evalTerm(t, asn, make(map[*Term]evalVal))
	if err != nil {
		return false, err
	}
	return v.b, nil
}

// EvalArray concretely evaluates an array term under an assignment.
func EvalArray(t *Term, asn *Assignment) (*ArrayVal, error) {
	v, err := evalTerm(t, asn, make(map[*Term]evalVal))
	if err != nil {
		return nil, err
	}
	if v.arr == nil {
		return nil, fmt.Errorf("not an array term")
	}
	return v.arr, nil
}

func evalTerm(t *Term, asn *Assignment, cache map[*Term]evalVal) (evalVal, error) {
	if v, ok := cache[t]; ok {
		return v, nil
	}

	args := make([]evalVal, len(t.args))
	for i := 0; i < len(t.args); i++ {
		v, err := evalTerm(t.args[i], asn, cache)
		if err != nil {
			return evalVal{}, err
		}
		args[i] = v
	}

	var res evalVal
	var err error
	switch t.kind {
	case TM_SYM:
		if c, ok := asn.BVs[t.name]; ok {
			res = evalVal{bv: c.Copy()}
		} else {
			res = evalVal{bv: MakeBVConst(0, t.width)}
		}
	case TM_ARRAY_SYM:
		if a, ok := asn.Arrays[t.name]; ok {
			res = evalVal{arr: a.Copy()}
		} else {
			res = evalVal{arr: NewArrayVal(t.idxWidth, t.width)}
		}
	case TM_CONST:
		res = evalVal{bv: t.val.Copy()}
	case TM_BOOL_CONST:
		res = evalVal{b: t.bval}
	case TM_CONST_ARRAY:
		a := NewArrayVal(t.idxWidth, t.width)
		a.Default = t.val.Copy()
		res = evalVal{arr: a}
	case TM_EXTRACT:
		res = evalVal{bv: args[0].bv.Slice(t.hi, t.lo)}
	case TM_CONCAT:
		c := args[0].bv.Copy()
		c.Concat(args[1].bv)
		res = evalVal{bv: c}
	case TM_ZEXT:
		c := args[0].bv.Copy()
		c.ZExt(t.n)
		res = evalVal{bv: c}
	case TM_SEXT:
		c := args[0].bv.Copy()
		c.SExt(t.n)
		res = evalVal{bv: c}
	case TM_ITE:
		if args[0].b {
			res = args[1]
		} else {
			res = args[2]
		}
	case TM_NOT:
		c := args[0].bv.Copy()
		c.Not()
		res = evalVal{bv: c}
	case TM_NEG:
		c := args[0].bv.Copy()
		c.Neg()
		res = evalVal{bv: c}
	case TM_ADD, TM_SUB, TM_MUL, TM_UDIV, TM_SDIV, TM_UREM, TM_SREM,
		TM_AND, TM_OR, TM_XOR, TM_SHL, TM_LSHR, TM_ASHR:
		c := args[0].bv.Copy()
		o := args[1].bv
		switch t.kind {
		case TM_ADD:
			err = c.Add(o)
		case TM_SUB:
			err = c.Sub(o)
		case TM_MUL:
			err = c.Mul(o)
		case TM_UDIV:
			err = c.UDiv(o)
		case TM_SDIV:
			err = c.SDiv(o)
		case TM_UREM:
			err = c.URem(o)
		case TM_SREM:
			err = c.SRem(o)
		case TM_AND:
			err = c.And(o)
		case TM_OR:
			err = c.Or(o)
		case TM_XOR:
			err = c.Xor(o)
		case TM_SHL:
			c.Shl(o.ShiftCount(c.Size))
		case TM_LSHR:
			c.LShr(o.ShiftCount(c.Size))
		case TM_ASHR:
			c.AShr(o.ShiftCount(c.Size))
		}
		res = evalVal{bv: c}
	case TM_EQ:
		if args[0].arr != nil {
			res = evalVal{b: arrayValsEqual(args[0].arr, args[1].arr)}
		} else {
			var v bool
			v, err = args[0].bv.Eq(args[1].bv)
			res = evalVal{b: v}
		}
	case TM_ULT, TM_ULE, TM_UGT, TM_UGE, TM_SLT, TM_SLE, TM_SGT, TM_SGE:
		var v bool
		l, r := args[0].bv, args[1].bv
		switch t.kind {
		case TM_ULT:
			v, err = l.ULt(r)
		case TM_ULE:
			v, err = l.ULe(r)
		case TM_UGT:
			v, err = l.UGt(r)
		case TM_UGE:
			v, err = l.UGe(r)
		case TM_SLT:
			v, err = l.SLt(r)
		case TM_SLE:
			v, err = l.SLe(r)
		case TM_SGT:
			v, err = l.SGt(r)
		case TM_SGE:
			v, err = l.SGe(r)
		}
		res = evalVal{b: v}
	case TM_BOOL_NOT:
		res = evalVal{b: !args[0].b}
	case TM_BOOL_AND:
		res = evalVal{b: args[0].b && args[1].b}
	case TM_BOOL_OR:
		res = evalVal{b: args[0].b || args[1].b}
	case TM_SELECT:
		res = evalVal{bv: args[0].arr.Get(args[1].bv)}
	case TM_STORE:
		a := args[0].arr.Copy()
		a.Set(args[1].bv, args[2].bv)
		res = evalVal{arr: a}
	default:
		panic("invalid term kind")
	}

	if err != nil {
		return evalVal{}, err
	}
	cache[t] = res
	return res, nil
}

func arrayValsEqual(a, b *ArrayVal) bool {
	if a.IdxWidth != b.IdxWidth || a.ElemWidth != b.ElemWidth {
		return false
	}
	get := func(av *ArrayVal, k string) *BVConst {
		if v, ok := av.Cells[k]; ok {
			return v
		}
		if av.Default != nil {
			return av.Default
		}
		return MakeBVConst(0, av.ElemWidth)
	}
	keys := make(map[string]bool)
	for k := range a.Cells {
		keys[k] = true
	}
	for k := range b.Cells {
		keys[k] = true
	}
	for k := range keys {
		eq, err := get(a, k).Eq(get(b, k))
		if err != nil || !eq {
			return false
		}
	}
	// when the cells cover every index, the loop above already compared
	// the whole array and the defaults never apply
	if a.IdxWidth < 64 && uint64(len(keys)) >= 1<<a.IdxWidth {
		return true
	}

	// unconstrained cells follow the defaults, nil meaning zero
	defOf := func(av *ArrayVal) *BVConst {
		if av.Default != nil {
			return av.Default
		}
		return MakeBVConst(0, av.ElemWidth)
	}
	eq, _ := defOf(a).Eq(defOf(b))
	return eq
}
