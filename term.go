package gobmc

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	TM_SYM     = 1
	TM_CONST   = 2
	TM_EXTRACT = 3
	TM_CONCAT  = 4
	TM_ZEXT    = 5
	TM_SEXT    = 6
	TM_ITE     = 7

	TM_NOT  = 8
	TM_NEG  = 9
	TM_SHL  = 10
	TM_LSHR = 11
	TM_ASHR = 12
	TM_AND  = 13
	TM_OR   = 14
	TM_XOR  = 15
	TM_ADD  = 16
	TM_SUB  = 17
	TM_MUL  = 18
	TM_SDIV = 19
	TM_UDIV = 20
	TM_SREM = 21
	TM_UREM = 22

	TM_ULT = 23
	TM_ULE = 24
	TM_UGT = 25
	TM_UGE = 26
	TM_SLT = 27
	TM_SLE = 28
	TM_SGT = 29
	TM_SGE = 30
	TM_EQ  = 31

	TM_BOOL_CONST = 32
	TM_BOOL_NOT   = 33
	TM_BOOL_AND   = 34
	TM_BOOL_OR    = 35

	TM_ARRAY_SYM   = 36
	TM_CONST_ARRAY = 37
	TM_SELECT      = 38
	TM_STORE       = 39
)

var termSymbols = map[int]string{
	TM_SYM: "sym", TM_CONST: "const", TM_EXTRACT: "extract",
	TM_CONCAT: "..", TM_ZEXT: "zext", TM_SEXT: "sext", TM_ITE: "ite",
	TM_NOT: "~", TM_NEG: "-", TM_SHL: "<<", TM_LSHR: "l>>", TM_ASHR: "a>>",
	TM_AND: "&", TM_OR: "|", TM_XOR: "^",
	TM_ADD: "+", TM_SUB: "-", TM_MUL: "*",
	TM_SDIV: "s/", TM_UDIV: "u/", TM_SREM: "s%", TM_UREM: "u%",
	TM_ULT: "u<", TM_ULE: "u<=", TM_UGT: "u>", TM_UGE: "u>=",
	TM_SLT: "s<", TM_SLE: "s<=", TM_SGT: "s>", TM_SGE: "s>=",
	TM_EQ: "==", TM_BOOL_CONST: "bool", TM_BOOL_NOT: "!",
	TM_BOOL_AND: "&&", TM_BOOL_OR: "||",
	TM_ARRAY_SYM: "arrsym", TM_CONST_ARRAY: "constarr",
	TM_SELECT: "select", TM_STORE: "store",
}

// Term is one node of the hash-consed symbolic DAG the unroller emits.
// Terms are immutable, deduplicated by the TermBuilder that created
// them, and compared by pointer identity.
type Term struct {
	kind int
	args []*Term

	width    uint // bv width; element width for arrays; 0 for bools
	idxWidth uint // >0 only for array terms

	val  *BVConst // TM_CONST; default element for TM_CONST_ARRAY
	bval bool     // TM_BOOL_CONST
	name string   // TM_SYM, TM_ARRAY_SYM
	hi   uint     // TM_EXTRACT
	lo   uint     // TM_EXTRACT
	n    uint     // TM_ZEXT, TM_SEXT

	hashv uint64
}

func (t *Term) Kind() int {
	return t.kind
}

// Width is the bit width of a bit-vector term, or the element width of
// an array term.
func (t *Term) Width() uint {
	return t.width
}

// IndexWidth is the index bit width of an array term, 0 otherwise.
func (t *Term) IndexWidth() uint {
	return t.idxWidth
}

func (t *Term) IsBool() bool {
	switch t.kind {
	case TM_BOOL_CONST, TM_BOOL_NOT, TM_BOOL_AND, TM_BOOL_OR,
		TM_EQ, TM_ULT, TM_ULE, TM_UGT, TM_UGE, TM_SLT, TM_SLE, TM_SGT, TM_SGE:
		return true
	}
	return false
}

func (t *Term) IsArray() bool {
	return t.idxWidth > 0
}

func (t *Term) IsConst() bool {
	return t.kind == TM_CONST
}

// GetConst returns the value of a TM_CONST term.
func (t *Term) GetConst() (*BVConst, error) {
	if t.kind != TM_CONST {
		return nil, fmt.Errorf("not a constant")
	}
	return t.val.Copy(), nil
}

func (t *Term) Name() string {
	return t.name
}

func (t *Term) isLeaf() bool {
	return len(t.args) == 0
}

func (t *Term) hash() uint64 {
	return t.hashv
}

func computeHash(t *Term) uint64 {
	h := xxhash.New()
	raw := make([]byte, 8)

	h.WriteString(termSymbols[t.kind])
	binary.BigEndian.PutUint64(raw, uint64(t.width)<<32|uint64(t.idxWidth))
	h.Write(raw)
	for i := 0; i < len(t.args); i++ {
		binary.BigEndian.PutUint64(raw, uint64(t.args[i].hashv))
		h.Write(raw)
	}

	switch t.kind {
	case TM_SYM, TM_ARRAY_SYM:
		h.WriteString(t.name)
	case TM_CONST, TM_CONST_ARRAY:
		h.WriteString(t.val.BinaryString())
	case TM_BOOL_CONST:
		if t.bval {
			h.WriteString("T")
		} else {
			h.WriteString("F")
		}
	case TM_EXTRACT:
		binary.BigEndian.PutUint64(raw, uint64(t.hi)<<32|uint64(t.lo))
		h.Write(raw)
	case TM_ZEXT, TM_SEXT:
		binary.BigEndian.PutUint64(raw, uint64(t.n))
		h.Write(raw)
	}
	return h.Sum64()
}

// shallowEq compares payload and child identity; children are already
// consed, so pointer equality is structural equality.
func (t *Term) shallowEq(o *Term) bool {
	if t.kind != o.kind || t.width != o.width || t.idxWidth != o.idxWidth {
		return false
	}
	if len(t.args) != len(o.args) {
		return false
	}
	for i := 0; i < len(t.args); i++ {
		if t.args[i] != o.args[i] {
			return false
		}
	}
	switch t.kind {
	case TM_SYM, TM_ARRAY_SYM:
		return t.name == o.name
	case TM_CONST, TM_CONST_ARRAY:
		eq, err := t.val.Eq(o.val)
		return err == nil && eq
	case TM_BOOL_CONST:
		return t.bval == o.bval
	case TM_EXTRACT:
		return t.hi == o.hi && t.lo == o.lo
	case TM_ZEXT, TM_SEXT:
		return t.n == o.n
	}
	return true
}

func (t *Term) String() string {
	wrap := func(c *Term) string {
		if c.isLeaf() {
			return c.String()
		}
		return fmt.Sprintf("(%s)", c.String())
	}

	switch t.kind {
	case TM_SYM, TM_ARRAY_SYM:
		return t.name
	case TM_CONST:
		return fmt.Sprintf("0x%x", t.val.value)
	case TM_BOOL_CONST:
		if t.bval {
			return "T"
		}
		return "F"
	case TM_CONST_ARRAY:
		return fmt.Sprintf("K(0x%x)", t.val.value)
	case TM_EXTRACT:
		return fmt.Sprintf("%s[%d:%d]", wrap(t.args[0]), t.hi, t.lo)
	case TM_ZEXT:
		return fmt.Sprintf("ZExt(%s, %d)", wrap(t.args[0]), t.n)
	case TM_SEXT:
		return fmt.Sprintf("SExt(%s, %d)", wrap(t.args[0]), t.n)
	case TM_ITE:
		return fmt.Sprintf("ITE(%s, %s, %s)", t.args[0], t.args[1], t.args[2])
	case TM_SELECT:
		return fmt.Sprintf("%s[%s]", wrap(t.args[0]), t.args[1])
	case TM_STORE:
		return fmt.Sprintf("%s[%s := %s]", wrap(t.args[0]), t.args[1], t.args[2])
	case TM_NOT, TM_NEG, TM_BOOL_NOT:
		return fmt.Sprintf("%s%s", termSymbols[t.kind], wrap(t.args[0]))
	}

	b := strings.Builder{}
	b.WriteString(wrap(t.args[0]))
	for i := 1; i < len(t.args); i++ {
		b.WriteString(fmt.Sprintf(" %s %s", termSymbols[t.kind], wrap(t.args[i])))
	}
	return b.String()
}
