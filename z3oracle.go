package gobmc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aclements/go-z3/z3"
)

// z3conv lowers Term DAGs into z3 values. The memo cache is keyed by
// term pointer, which is stable because terms are hash-consed. It also
// remembers every declared symbol and every index ever used in a
// select or store, which is what model extraction walks afterwards.
type z3conv struct {
	ctx   *z3.Context
	cache map[*Term]z3.Value

	bvSyms  map[string]z3.BV
	arrSyms map[string]z3.Array
	arrInfo map[string]*Term // the TM_ARRAY_SYM term behind each name
	indices map[uint][]z3.BV // select/store indices, by index width
}

func newZ3Conv(ctx *z3.Context) *z3conv {
	return &z3conv{
		ctx:     ctx,
		cache:   make(map[*Term]z3.Value),
		bvSyms:  make(map[string]z3.BV),
		arrSyms: make(map[string]z3.Array),
		arrInfo: make(map[string]*Term),
		indices: make(map[uint][]z3.BV),
	}
}

func (c *z3conv) bv(t *Term) (z3.BV, error) {
	v, err := c.convert(t)
	if err != nil {
		return z3.BV{}, err
	}
	bv, ok := v.(z3.BV)
	if !ok {
		return z3.BV{}, fmt.Errorf("expected a bitvector term, got %s", t)
	}
	return bv, nil
}

func (c *z3conv) boolean(t *Term) (z3.Bool, error) {
	v, err := c.convert(t)
	if err != nil {
		return z3.Bool{}, err
	}
	b, ok := v.(z3.Bool)
	if !ok {
		return z3.Bool{}, fmt.Errorf("expected a boolean term, got %s", t)
	}
	return b, nil
}

func (c *z3conv) array(t *Term) (z3.Array, error) {
	v, err := c.convert(t)
	if err != nil {
		return z3.Array{}, err
	}
	a, ok := v.(z3.Array)
	if !ok {
		return z3.Array{}, fmt.Errorf("expected an array term, got %s", t)
	}
	return a, nil
}

func (c *z3conv) recordIndex(width uint, idx z3.BV) {
	c.indices[width] = append(c.indices[width], idx)
}

func (c *z3conv) convert(t *Term) (z3.Value, error) {
	if v, ok := c.cache[t]; ok {
		return v, nil
	}

	var result z3.Value
	var err error

	binBV := func(f func(l, r z3.BV) z3.Value) {
		var lhs, rhs z3.BV
		if lhs, err = c.bv(t.args[0]); err != nil {
			return
		}
		if rhs, err = c.bv(t.args[1]); err != nil {
			return
		}
		result = f(lhs, rhs)
	}
	unBV := func(f func(e z3.BV) z3.Value) {
		var e z3.BV
		if e, err = c.bv(t.args[0]); err != nil {
			return
		}
		result = f(e)
	}
	binBool := func(f func(l, r z3.Bool) z3.Value) {
		var lhs, rhs z3.Bool
		if lhs, err = c.boolean(t.args[0]); err != nil {
			return
		}
		if rhs, err = c.boolean(t.args[1]); err != nil {
			return
		}
		result = f(lhs, rhs)
	}

	switch t.kind {
	case TM_SYM:
		bv := c.ctx.BVConst(t.name, int(t.width))
		c.bvSyms[t.name] = bv
		result = bv
	case TM_CONST:
		result = c.ctx.FromBigInt(t.val.value, c.ctx.BVSort(int(t.width)))
	case TM_ARRAY_SYM:
		srt := c.ctx.ArraySort(c.ctx.BVSort(int(t.idxWidth)), c.ctx.BVSort(int(t.width)))
		arr := c.ctx.Const(t.name, srt).(z3.Array)
		c.arrSyms[t.name] = arr
		c.arrInfo[t.name] = t
		result = arr
	case TM_CONST_ARRAY:
		def := c.ctx.FromBigInt(t.val.value, c.ctx.BVSort(int(t.width)))
		result = c.ctx.ConstArray(c.ctx.BVSort(int(t.idxWidth)), def)
	case TM_EXTRACT:
		unBV(func(e z3.BV) z3.Value { return e.Extract(int(t.hi), int(t.lo)) })
	case TM_CONCAT:
		binBV(func(l, r z3.BV) z3.Value { return l.Concat(r) })
	case TM_ZEXT:
		unBV(func(e z3.BV) z3.Value { return e.ZeroExtend(int(t.n)) })
	case TM_SEXT:
		unBV(func(e z3.BV) z3.Value { return e.SignExtend(int(t.n)) })
	case TM_ITE:
		var guard z3.Bool
		if guard, err = c.boolean(t.args[0]); err != nil {
			break
		}
		var iftrue, iffalse z3.Value
		if iftrue, err = c.convert(t.args[1]); err != nil {
			break
		}
		if iffalse, err = c.convert(t.args[2]); err != nil {
			break
		}
		if t.IsArray() {
			result = guard.IfThenElse(iftrue.(z3.Array), iffalse.(z3.Array))
		} else {
			result = guard.IfThenElse(iftrue.(z3.BV), iffalse.(z3.BV))
		}
	case TM_NOT:
		unBV(func(e z3.BV) z3.Value { return e.Not() })
	case TM_NEG:
		unBV(func(e z3.BV) z3.Value { return e.Neg() })
	case TM_SHL:
		binBV(func(l, r z3.BV) z3.Value { return l.Lsh(r) })
	case TM_LSHR:
		binBV(func(l, r z3.BV) z3.Value { return l.URsh(r) })
	case TM_ASHR:
		binBV(func(l, r z3.BV) z3.Value { return l.SRsh(r) })
	case TM_AND:
		binBV(func(l, r z3.BV) z3.Value { return l.And(r) })
	case TM_OR:
		binBV(func(l, r z3.BV) z3.Value { return l.Or(r) })
	case TM_XOR:
		binBV(func(l, r z3.BV) z3.Value { return l.Xor(r) })
	case TM_ADD:
		binBV(func(l, r z3.BV) z3.Value { return l.Add(r) })
	case TM_SUB:
		binBV(func(l, r z3.BV) z3.Value { return l.Sub(r) })
	case TM_MUL:
		binBV(func(l, r z3.BV) z3.Value { return l.Mul(r) })
	case TM_SDIV:
		binBV(func(l, r z3.BV) z3.Value { return l.SDiv(r) })
	case TM_UDIV:
		binBV(func(l, r z3.BV) z3.Value { return l.UDiv(r) })
	case TM_SREM:
		binBV(func(l, r z3.BV) z3.Value { return l.SRem(r) })
	case TM_UREM:
		binBV(func(l, r z3.BV) z3.Value { return l.URem(r) })
	case TM_ULT:
		binBV(func(l, r z3.BV) z3.Value { return l.ULT(r) })
	case TM_ULE:
		binBV(func(l, r z3.BV) z3.Value { return l.ULE(r) })
	case TM_UGT:
		binBV(func(l, r z3.BV) z3.Value { return l.UGT(r) })
	case TM_UGE:
		binBV(func(l, r z3.BV) z3.Value { return l.UGE(r) })
	case TM_SLT:
		binBV(func(l, r z3.BV) z3.Value { return l.SLT(r) })
	case TM_SLE:
		binBV(func(l, r z3.BV) z3.Value { return l.SLE(r) })
	case TM_SGT:
		binBV(func(l, r z3.BV) z3.Value { return l.SGT(r) })
	case TM_SGE:
		binBV(func(l, r z3.BV) z3.Value { return l.SGE(r) })
	case TM_EQ:
		if t.args[0].IsArray() {
			var lhs, rhs z3.Array
			if lhs, err = c.array(t.args[0]); err != nil {
				break
			}
			if rhs, err = c.array(t.args[1]); err != nil {
				break
			}
			result = lhs.Eq(rhs)
		} else {
			binBV(func(l, r z3.BV) z3.Value { return l.Eq(r) })
		}
	case TM_BOOL_CONST:
		result = c.ctx.FromBool(t.bval)
	case TM_BOOL_NOT:
		var e z3.Bool
		if e, err = c.boolean(t.args[0]); err != nil {
			break
		}
		result = e.Not()
	case TM_BOOL_AND:
		binBool(func(l, r z3.Bool) z3.Value { return l.And(r) })
	case TM_BOOL_OR:
		binBool(func(l, r z3.Bool) z3.Value { return l.Or(r) })
	case TM_SELECT:
		var arr z3.Array
		var idx z3.BV
		if arr, err = c.array(t.args[0]); err != nil {
			break
		}
		if idx, err = c.bv(t.args[1]); err != nil {
			break
		}
		c.recordIndex(t.args[1].Width(), idx)
		result = arr.Select(idx).(z3.BV)
	case TM_STORE:
		var arr z3.Array
		var idx, val z3.BV
		if arr, err = c.array(t.args[0]); err != nil {
			break
		}
		if idx, err = c.bv(t.args[1]); err != nil {
			break
		}
		if val, err = c.bv(t.args[2]); err != nil {
			break
		}
		c.recordIndex(t.args[1].Width(), idx)
		result = arr.Store(idx, val)
	default:
		err = fmt.Errorf("cannot lower term kind %d", t.kind)
	}

	if err != nil {
		return nil, err
	}
	c.cache[t] = result
	return result, nil
}

// assertAll pushes a boolean term into the solver, splitting top-level
// conjunctions into separate assertions.
func (c *z3conv) assertAll(solver *z3.Solver, t *Term) error {
	if t.kind == TM_BOOL_AND {
		if err := c.assertAll(solver, t.args[0]); err != nil {
			return err
		}
		return c.assertAll(solver, t.args[1])
	}
	b, err := c.boolean(t)
	if err != nil {
		return err
	}
	solver.Assert(b)
	return nil
}

// convertZ3BV parses a constant z3 bitvector back into a BVConst. z3
// prints bv literals as #x.. when the width is a nibble multiple and
// #b.. otherwise.
func convertZ3BV(v z3.BV) (*BVConst, error) {
	size := uint(v.Sort().BVSize())
	s := v.String()
	switch {
	case strings.HasPrefix(s, "#x"):
		return ParseBVConst(s[2:], 16, size)
	case strings.HasPrefix(s, "#b"):
		return ParseBVConst(s[2:], 2, size)
	}
	return nil, fmt.Errorf("%q is not a bitvector literal", s)
}

// extractAssignment reads every declared symbol out of a sat model,
// with completion turned on so unconstrained symbols get a value too.
// Array contents are probed at every index that appeared in a select
// or store of matching width; the value away from those cells is
// recovered with one extra select at an index no probe touched.
func (c *z3conv) extractAssignment(m *z3.Model) (*Assignment, error) {
	a := NewAssignment()

	for name, sym := range c.bvSyms {
		v, ok := m.Eval(sym, true).(z3.BV)
		if !ok {
			return nil, fmt.Errorf("model has no bitvector value for %s", name)
		}
		bv, err := convertZ3BV(v)
		if err != nil {
			return nil, err
		}
		a.BVs[name] = bv
	}

	for name, arr := range c.arrSyms {
		t := c.arrInfo[name]
		av := NewArrayVal(t.IndexWidth(), t.Width())
		for _, idx := range c.indices[t.IndexWidth()] {
			idxV, ok := m.Eval(idx, true).(z3.BV)
			if !ok {
				continue
			}
			idxC, err := convertZ3BV(idxV)
			if err != nil {
				return nil, err
			}
			cell, ok := m.Eval(arr.Select(idx), true).(z3.BV)
			if !ok {
				return nil, fmt.Errorf("model has no value for %s[%s]", name, idxC.BinaryString())
			}
			cellC, err := convertZ3BV(cell)
			if err != nil {
				return nil, err
			}
			av.Set(idxC, cellC)
		}
		// an init against a constant array constrains the whole region
		// outside the probed cells, so a single extra read observes it
		if free := av.freeIndex(); free != nil {
			idx := c.ctx.FromBigInt(free.value, c.ctx.BVSort(int(t.IndexWidth()))).(z3.BV)
			def, ok := m.Eval(arr.Select(idx), true).(z3.BV)
			if !ok {
				return nil, fmt.Errorf("model has no default value for %s", name)
			}
			defC, err := convertZ3BV(def)
			if err != nil {
				return nil, err
			}
			av.Default = defC
		}
		a.Arrays[name] = av
	}
	return a, nil
}

// checkInterruptible runs solver.Check on its own goroutine and
// interrupts z3 when the context fires. z3 reports an interrupted
// check as an error, which maps to unknown here.
func checkInterruptible(ctx context.Context, z3ctx *z3.Context, solver *z3.Solver) (int, error) {
	type outcome struct {
		sat bool
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		sat, err := solver.Check()
		done <- outcome{sat, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		z3ctx.Interrupt()
		<-done
		return VERDICT_UNKNOWN, ctx.Err()
	}

	if out.err != nil {
		return VERDICT_UNKNOWN, nil
	}
	if out.sat {
		return VERDICT_SAT, nil
	}
	return VERDICT_UNSAT, nil
}

// Z3Oracle answers one-shot satisfiability queries through z3. Every
// Check resets the solver, so queries are independent of each other.
// Not safe for concurrent use.
type Z3Oracle struct {
	ctx     *z3.Context
	cfg     *z3.Config
	solver  *z3.Solver
	timeout time.Duration

	last *Assignment
}

var _ Oracle = (*Z3Oracle)(nil)

func NewZ3Oracle() *Z3Oracle {
	cfg := z3.NewContextConfig()
	ctx := z3.NewContext(cfg)
	return &Z3Oracle{
		ctx:    ctx,
		cfg:    cfg,
		solver: z3.NewSolver(ctx),
	}
}

// SetTimeout bounds each Check call. Zero means no deadline beyond the
// caller's context.
func (o *Z3Oracle) SetTimeout(d time.Duration) {
	o.timeout = d
}

func (o *Z3Oracle) Check(ctx context.Context, query *Term) (int, error) {
	if !query.IsBool() {
		return VERDICT_ERROR, fmt.Errorf("query is not a boolean term")
	}

	o.solver.Reset()
	o.last = nil
	conv := newZ3Conv(o.ctx)
	if err := conv.assertAll(o.solver, query); err != nil {
		return VERDICT_ERROR, err
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	verdict, err := checkInterruptible(ctx, o.ctx, o.solver)
	if err == context.DeadlineExceeded {
		// a blown deadline is an unknown answer, not a failure
		return VERDICT_UNKNOWN, nil
	}
	if err != nil {
		return verdict, err
	}

	if verdict == VERDICT_SAT {
		m := o.solver.Model()
		if m == nil {
			return VERDICT_ERROR, fmt.Errorf("sat verdict without a model")
		}
		a, err := conv.extractAssignment(m)
		if err != nil {
			return VERDICT_ERROR, err
		}
		o.last = a
	}
	return verdict, nil
}

// Model returns the assignment of the last sat Check, nil otherwise.
func (o *Z3Oracle) Model() *Assignment {
	return o.last
}
