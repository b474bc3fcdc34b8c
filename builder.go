package gobmc

import (
	"fmt"
	"sync"
)

type TermBuilderStats struct {
	CacheHits    uint
	CacheLookups uint
	CachedTerms  uint
}

// TermBuilder hash-conses Terms: structurally equal terms built through
// one builder are the same pointer. Constants are folded on
// construction where every operand is a literal, so the unroller never
// emits trivially reducible subterms.
type TermBuilder struct {
	lock  sync.Mutex
	cache map[uint64][]*Term

	Stats TermBuilderStats
}

func NewTermBuilder() *TermBuilder {
	return &TermBuilder{
		cache: map[uint64][]*Term{},
		Stats: TermBuilderStats{},
	}
}

func (tb *TermBuilder) getOrCreate(t *Term) *Term {
	t.hashv = computeHash(t)

	tb.lock.Lock()
	defer tb.lock.Unlock()
	tb.Stats.CacheLookups += 1

	bucket := tb.cache[t.hashv]
	for i := 0; i < len(bucket); i++ {
		if bucket[i].shallowEq(t) {
			tb.Stats.CacheHits += 1
			return bucket[i]
		}
	}
	tb.Stats.CachedTerms += 1
	tb.cache[t.hashv] = append(bucket, t)
	return t
}

/*
 *  Leaves
 */

func (tb *TermBuilder) BVV(value int64, size uint) *Term {
	return tb.BVC(MakeBVConst(value, size))
}

func (tb *TermBuilder) BVC(c *BVConst) *Term {
	return tb.getOrCreate(&Term{kind: TM_CONST, width: c.Size, val: c.Copy()})
}

func (tb *TermBuilder) BVS(name string, size uint) *Term {
	return tb.getOrCreate(&Term{kind: TM_SYM, width: size, name: name})
}

func (tb *TermBuilder) ArrayS(name string, idxWidth, elemWidth uint) *Term {
	return tb.getOrCreate(&Term{kind: TM_ARRAY_SYM, width: elemWidth, idxWidth: idxWidth, name: name})
}

// ConstArray is an array holding `def` at every index.
func (tb *TermBuilder) ConstArray(idxWidth uint, def *BVConst) *Term {
	return tb.getOrCreate(&Term{kind: TM_CONST_ARRAY, width: def.Size, idxWidth: idxWidth, val: def.Copy()})
}

func (tb *TermBuilder) BoolVal(v bool) *Term {
	return tb.getOrCreate(&Term{kind: TM_BOOL_CONST, bval: v})
}

/*
 *  Bit-vector operations
 */

func (tb *TermBuilder) checkBVPair(lhs, rhs *Term) error {
	if lhs.IsBool() || rhs.IsBool() || lhs.IsArray() || rhs.IsArray() {
		return fmt.Errorf("expected bitvec operands")
	}
	if lhs.width != rhs.width {
		return fmt.Errorf("different sizes %d and %d", lhs.width, rhs.width)
	}
	return nil
}

func (tb *TermBuilder) binArith(kind int, lhs, rhs *Term) (*Term, error) {
	if err := tb.checkBVPair(lhs, rhs); err != nil {
		return nil, err
	}

	if rhs.IsConst() {
		c, _ := rhs.GetConst()
		switch kind {
		case TM_MUL, TM_UDIV, TM_SDIV:
			if c.IsOne() {
				return lhs, nil
			}
		}
	}

	if lhs.IsConst() && rhs.IsConst() {
		c1, _ := lhs.GetConst()
		c2, _ := rhs.GetConst()
		var err error
		switch kind {
		case TM_ADD:
			err = c1.Add(c2)
		case TM_SUB:
			err = c1.Sub(c2)
		case TM_MUL:
			err = c1.Mul(c2)
		case TM_UDIV:
			err = c1.UDiv(c2)
		case TM_SDIV:
			err = c1.SDiv(c2)
		case TM_UREM:
			err = c1.URem(c2)
		case TM_SREM:
			err = c1.SRem(c2)
		case TM_AND:
			err = c1.And(c2)
		case TM_OR:
			err = c1.Or(c2)
		case TM_XOR:
			err = c1.Xor(c2)
		case TM_SHL:
			c1.Shl(c2.ShiftCount(c1.Size))
		case TM_LSHR:
			c1.LShr(c2.ShiftCount(c1.Size))
		case TM_ASHR:
			c1.AShr(c2.ShiftCount(c1.Size))
		default:
			panic("unhandled fold kind")
		}
		if err != nil {
			return nil, err
		}
		return tb.BVC(c1), nil
	}

	return tb.getOrCreate(&Term{kind: kind, width: lhs.width, args: []*Term{lhs, rhs}}), nil
}

func (tb *TermBuilder) Add(lhs, rhs *Term) (*Term, error) { return tb.binArith(TM_ADD, lhs, rhs) }
func (tb *TermBuilder) Sub(lhs, rhs *Term) (*Term, error) { return tb.binArith(TM_SUB, lhs, rhs) }
func (tb *TermBuilder) Mul(lhs, rhs *Term) (*Term, error) { return tb.binArith(TM_MUL, lhs, rhs) }
func (tb *TermBuilder) UDiv(lhs, rhs *Term) (*Term, error) {
	return tb.binArith(TM_UDIV, lhs, rhs)
}
func (tb *TermBuilder) SDiv(lhs, rhs *Term) (*Term, error) {
	return tb.binArith(TM_SDIV, lhs, rhs)
}
func (tb *TermBuilder) URem(lhs, rhs *Term) (*Term, error) {
	return tb.binArith(TM_UREM, lhs, rhs)
}
func (tb *TermBuilder) SRem(lhs, rhs *Term) (*Term, error) {
	return tb.binArith(TM_SREM, lhs, rhs)
}
func (tb *TermBuilder) And(lhs, rhs *Term) (*Term, error) { return tb.binArith(TM_AND, lhs, rhs) }
func (tb *TermBuilder) Or(lhs, rhs *Term) (*Term, error)  { return tb.binArith(TM_OR, lhs, rhs) }
func (tb *TermBuilder) Xor(lhs, rhs *Term) (*Term, error) { return tb.binArith(TM_XOR, lhs, rhs) }
func (tb *TermBuilder) Shl(lhs, rhs *Term) (*Term, error) { return tb.binArith(TM_SHL, lhs, rhs) }
func (tb *TermBuilder) LShr(lhs, rhs *Term) (*Term, error) {
	return tb.binArith(TM_LSHR, lhs, rhs)
}
func (tb *TermBuilder) AShr(lhs, rhs *Term) (*Term, error) {
	return tb.binArith(TM_ASHR, lhs, rhs)
}

func (tb *TermBuilder) Not(e *Term) (*Term, error) {
	if e.IsBool() || e.IsArray() {
		return nil, fmt.Errorf("expected a bitvec operand")
	}
	if e.IsConst() {
		c, _ := e.GetConst()
		c.Not()
		return tb.BVC(c), nil
	}
	if e.kind == TM_NOT {
		return e.args[0], nil
	}
	return tb.getOrCreate(&Term{kind: TM_NOT, width: e.width, args: []*Term{e}}), nil
}

func (tb *TermBuilder) Neg(e *Term) (*Term, error) {
	if e.IsBool() || e.IsArray() {
		return nil, fmt.Errorf("expected a bitvec operand")
	}
	if e.IsConst() {
		c, _ := e.GetConst()
		c.Neg()
		return tb.BVC(c), nil
	}
	if e.kind == TM_NEG {
		return e.args[0], nil
	}
	return tb.getOrCreate(&Term{kind: TM_NEG, width: e.width, args: []*Term{e}}), nil
}

func (tb *TermBuilder) Concat(lhs, rhs *Term) (*Term, error) {
	if lhs.IsBool() || rhs.IsBool() || lhs.IsArray() || rhs.IsArray() {
		return nil, fmt.Errorf("expected bitvec operands")
	}
	if lhs.IsConst() && rhs.IsConst() {
		c1, _ := lhs.GetConst()
		c2, _ := rhs.GetConst()
		c1.Concat(c2)
		return tb.BVC(c1), nil
	}
	return tb.getOrCreate(&Term{kind: TM_CONCAT, width: lhs.width + rhs.width, args: []*Term{lhs, rhs}}), nil
}

func (tb *TermBuilder) Extract(e *Term, high, low uint) (*Term, error) {
	if e.IsBool() || e.IsArray() {
		return nil, fmt.Errorf("expected a bitvec operand")
	}
	if high < low || high >= e.width {
		return nil, fmt.Errorf("invalid extract bounds [%d:%d] on width %d", high, low, e.width)
	}
	if high == e.width-1 && low == 0 {
		return e, nil
	}
	if e.IsConst() {
		c, _ := e.GetConst()
		return tb.BVC(c.Slice(high, low)), nil
	}
	return tb.getOrCreate(&Term{kind: TM_EXTRACT, width: high - low + 1, args: []*Term{e}, hi: high, lo: low}), nil
}

func (tb *TermBuilder) extend(kind int, e *Term, n uint) (*Term, error) {
	if e.IsBool() || e.IsArray() {
		return nil, fmt.Errorf("expected a bitvec operand")
	}
	if n == 0 {
		return e, nil
	}
	if e.IsConst() {
		c, _ := e.GetConst()
		if kind == TM_SEXT {
			c.SExt(n)
		} else {
			c.ZExt(n)
		}
		return tb.BVC(c), nil
	}
	return tb.getOrCreate(&Term{kind: kind, width: e.width + n, args: []*Term{e}, n: n}), nil
}

func (tb *TermBuilder) ZExt(e *Term, n uint) (*Term, error) { return tb.extend(TM_ZEXT, e, n) }
func (tb *TermBuilder) SExt(e *Term, n uint) (*Term, error) { return tb.extend(TM_SEXT, e, n) }

func (tb *TermBuilder) Ite(cond, iftrue, iffalse *Term) (*Term, error) {
	if !cond.IsBool() {
		return nil, fmt.Errorf("ite condition must be boolean")
	}
	if iftrue.IsBool() || iffalse.IsBool() {
		return nil, fmt.Errorf("ite branches must be bitvec or array")
	}
	if iftrue.width != iffalse.width || iftrue.idxWidth != iffalse.idxWidth {
		return nil, fmt.Errorf("ite branches of different sorts")
	}
	if cond.kind == TM_BOOL_CONST {
		if cond.bval {
			return iftrue, nil
		}
		return iffalse, nil
	}
	if iftrue == iffalse {
		return iftrue, nil
	}
	return tb.getOrCreate(&Term{
		kind: TM_ITE, width: iftrue.width, idxWidth: iftrue.idxWidth,
		args: []*Term{cond, iftrue, iffalse},
	}), nil
}

/*
 *  Array operations
 */

func (tb *TermBuilder) Select(arr, idx *Term) (*Term, error) {
	if !arr.IsArray() || idx.IsBool() || idx.IsArray() {
		return nil, fmt.Errorf("select expects an array and a bitvec index")
	}
	if idx.width != arr.idxWidth {
		return nil, fmt.Errorf("select index width %d, array expects %d", idx.width, arr.idxWidth)
	}
	// select over a matching store is the stored value; over a constant
	// array it is the default element
	if arr.kind == TM_STORE && arr.args[1] == idx {
		return arr.args[2], nil
	}
	if arr.kind == TM_CONST_ARRAY {
		return tb.BVC(arr.val), nil
	}
	return tb.getOrCreate(&Term{kind: TM_SELECT, width: arr.width, args: []*Term{arr, idx}}), nil
}

func (tb *TermBuilder) Store(arr, idx, val *Term) (*Term, error) {
	if !arr.IsArray() || idx.IsBool() || idx.IsArray() || val.IsBool() || val.IsArray() {
		return nil, fmt.Errorf("store expects an array, a bitvec index and a bitvec value")
	}
	if idx.width != arr.idxWidth || val.width != arr.width {
		return nil, fmt.Errorf("store operand widths do not match the array sort")
	}
	return tb.getOrCreate(&Term{
		kind: TM_STORE, width: arr.width, idxWidth: arr.idxWidth,
		args: []*Term{arr, idx, val},
	}), nil
}

/*
 *  Comparisons
 */

func (tb *TermBuilder) cmp(kind int, lhs, rhs *Term) (*Term, error) {
	if err := tb.checkBVPair(lhs, rhs); err != nil {
		return nil, err
	}

	if lhs.IsConst() && rhs.IsConst() {
		c1, _ := lhs.GetConst()
		c2, _ := rhs.GetConst()
		var v bool
		var err error
		switch kind {
		case TM_EQ:
			v, err = c1.Eq(c2)
		case TM_ULT:
			v, err = c1.ULt(c2)
		case TM_ULE:
			v, err = c1.ULe(c2)
		case TM_UGT:
			v, err = c1.UGt(c2)
		case TM_UGE:
			v, err = c1.UGe(c2)
		case TM_SLT:
			v, err = c1.SLt(c2)
		case TM_SLE:
			v, err = c1.SLe(c2)
		case TM_SGT:
			v, err = c1.SGt(c2)
		case TM_SGE:
			v, err = c1.SGe(c2)
		default:
			panic("unhandled cmp kind")
		}
		if err != nil {
			return nil, err
		}
		return tb.BoolVal(v), nil
	}
	if kind == TM_EQ && lhs == rhs {
		return tb.BoolVal(true), nil
	}

	return tb.getOrCreate(&Term{kind: kind, args: []*Term{lhs, rhs}}), nil
}

// Eq also accepts two array terms of one sort.
func (tb *TermBuilder) Eq(lhs, rhs *Term) (*Term, error) {
	if lhs.IsArray() && rhs.IsArray() {
		if lhs.width != rhs.width || lhs.idxWidth != rhs.idxWidth {
			return nil, fmt.Errorf("array operands of different sorts")
		}
		if lhs == rhs {
			return tb.BoolVal(true), nil
		}
		return tb.getOrCreate(&Term{kind: TM_EQ, args: []*Term{lhs, rhs}}), nil
	}
	return tb.cmp(TM_EQ, lhs, rhs)
}

func (tb *TermBuilder) Ne(lhs, rhs *Term) (*Term, error) {
	eq, err := tb.Eq(lhs, rhs)
	if err != nil {
		return nil, err
	}
	return tb.BoolNot(eq)
}

func (tb *TermBuilder) ULt(lhs, rhs *Term) (*Term, error) { return tb.cmp(TM_ULT, lhs, rhs) }
func (tb *TermBuilder) ULe(lhs, rhs *Term) (*Term, error) { return tb.cmp(TM_ULE, lhs, rhs) }
func (tb *TermBuilder) UGt(lhs, rhs *Term) (*Term, error) { return tb.cmp(TM_UGT, lhs, rhs) }
func (tb *TermBuilder) UGe(lhs, rhs *Term) (*Term, error) { return tb.cmp(TM_UGE, lhs, rhs) }
func (tb *TermBuilder) SLt(lhs, rhs *Term) (*Term, error) { return tb.cmp(TM_SLT, lhs, rhs) }
func (tb *TermBuilder) SLe(lhs, rhs *Term) (*Term, error) { return tb.cmp(TM_SLE, lhs, rhs) }
func (tb *TermBuilder) SGt(lhs, rhs *Term) (*Term, error) { return tb.cmp(TM_SGT, lhs, rhs) }
func (tb *TermBuilder) SGe(lhs, rhs *Term) (*Term, error) { return tb.cmp(TM_SGE, lhs, rhs) }

/*
 *  Boolean connectives
 */

func (tb *TermBuilder) BoolNot(e *Term) (*Term, error) {
	if !e.IsBool() {
		return nil, fmt.Errorf("expected a boolean operand")
	}
	if e.kind == TM_BOOL_CONST {
		return tb.BoolVal(!e.bval), nil
	}
	if e.kind == TM_BOOL_NOT {
		return e.args[0], nil
	}
	return tb.getOrCreate(&Term{kind: TM_BOOL_NOT, args: []*Term{e}}), nil
}

func (tb *TermBuilder) boolBin(kind int, lhs, rhs *Term) (*Term, error) {
	if !lhs.IsBool() || !rhs.IsBool() {
		return nil, fmt.Errorf("expected boolean operands")
	}
	if lhs.kind == TM_BOOL_CONST {
		if (kind == TM_BOOL_AND) == lhs.bval {
			return rhs, nil
		}
		return lhs, nil
	}
	if rhs.kind == TM_BOOL_CONST {
		if (kind == TM_BOOL_AND) == rhs.bval {
			return lhs, nil
		}
		return rhs, nil
	}
	if lhs == rhs {
		return lhs, nil
	}
	return tb.getOrCreate(&Term{kind: kind, args: []*Term{lhs, rhs}}), nil
}

func (tb *TermBuilder) BoolAnd(lhs, rhs *Term) (*Term, error) {
	return tb.boolBin(TM_BOOL_AND, lhs, rhs)
}

func (tb *TermBuilder) BoolOr(lhs, rhs *Term) (*Term, error) {
	return tb.boolBin(TM_BOOL_OR, lhs, rhs)
}

// BoolToBV lowers a boolean to the 1-bit vector BTOR2 comparisons
// produce.
func (tb *TermBuilder) BoolToBV(e *Term) (*Term, error) {
	return tb.Ite(e, tb.BVV(1, 1), tb.BVV(0, 1))
}

// NeZero is the boolean "this bit-vector is not all zeroes".
func (tb *TermBuilder) NeZero(e *Term) (*Term, error) {
	if e.IsBool() {
		return e, nil
	}
	return tb.Ne(e, tb.BVV(0, e.width))
}
