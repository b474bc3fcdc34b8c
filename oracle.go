package gobmc

import (
	"context"
	"sort"
)

const (
	VERDICT_ERROR   = 0
	VERDICT_SAT     = 1
	VERDICT_UNSAT   = 2
	VERDICT_UNKNOWN = 3
)

func verdictName(v int) string {
	switch v {
	case VERDICT_SAT:
		return "sat"
	case VERDICT_UNSAT:
		return "unsat"
	case VERDICT_UNKNOWN:
		return "unknown"
	}
	return "error"
}

// ArrayVal is a concrete array value: a sparse cell map over a default
// element. Cells are keyed by the exact-width binary string of the
// index, the same form the witness format prints.
type ArrayVal struct {
	IdxWidth  uint
	ElemWidth uint
	Default   *BVConst // nil if no default is known
	Cells     map[string]*BVConst
}

func NewArrayVal(idxWidth, elemWidth uint) *ArrayVal {
	return &ArrayVal{
		IdxWidth:  idxWidth,
		ElemWidth: elemWidth,
		Cells:     make(map[string]*BVConst),
	}
}

func (av *ArrayVal) Copy() *ArrayVal {
	cpy := NewArrayVal(av.IdxWidth, av.ElemWidth)
	if av.Default != nil {
		cpy.Default = av.Default.Copy()
	}
	for k, v := range av.Cells {
		cpy.Cells[k] = v
	}
	return cpy
}

func (av *ArrayVal) Set(idx, val *BVConst) {
	av.Cells[idx.BinaryString()] = val
}

// Get reads a cell, falling back to the default element and finally to
// zero for indices the value never constrained.
func (av *ArrayVal) Get(idx *BVConst) *BVConst {
	if v, ok := av.Cells[idx.BinaryString()]; ok {
		return v
	}
	if av.Default != nil {
		return av.Default.Copy()
	}
	return MakeBVConst(0, av.ElemWidth)
}

// freeIndex returns the smallest index with no recorded cell, or nil
// when the cells already cover the whole index space.
func (av *ArrayVal) freeIndex() *BVConst {
	if av.IdxWidth < 64 && uint64(len(av.Cells)) >= 1<<av.IdxWidth {
		return nil
	}
	for i := int64(0); ; i++ {
		idx := MakeBVConst(i, av.IdxWidth)
		if _, ok := av.Cells[idx.BinaryString()]; !ok {
			return idx
		}
	}
}

// SortedIndices returns the constrained cell indices in ascending
// order. Keys are exact-width binary strings, so lexicographic order
// is numeric order.
func (av *ArrayVal) SortedIndices() []string {
	keys := make([]string, 0, len(av.Cells))
	for k := range av.Cells {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Assignment is a satisfying valuation returned by an oracle, keyed by
// symbol name.
type Assignment struct {
	BVs    map[string]*BVConst
	Arrays map[string]*ArrayVal
}

func NewAssignment() *Assignment {
	return &Assignment{
		BVs:    make(map[string]*BVConst),
		Arrays: make(map[string]*ArrayVal),
	}
}

// Oracle is the external satisfiability decision procedure. Check
// submits one closed query and returns a VERDICT_* value; Model is
// meaningful only after a VERDICT_SAT and holds a value for every
// symbol the query mentioned. A timeout or cancellation surfaces as
// VERDICT_UNKNOWN or an error, never as sat/unsat.
type Oracle interface {
	Check(ctx context.Context, query *Term) (int, error)
	Model() *Assignment
}
