package gobmc

import "fmt"

const (
	ND_CONST      = 1
	ND_INPUT      = 2
	ND_STATE      = 3
	ND_OP         = 4
	ND_BAD        = 5
	ND_CONSTRAINT = 6
)

const (
	OP_ADD = iota + 1
	OP_SUB
	OP_MUL
	OP_UDIV
	OP_SDIV
	OP_UREM
	OP_SREM
	OP_SLL
	OP_SRL
	OP_SRA
	OP_AND
	OP_OR
	OP_XOR
	OP_NOT
	OP_NEG
	OP_EQ
	OP_NEQ
	OP_ULT
	OP_ULTE
	OP_UGT
	OP_UGTE
	OP_SLT
	OP_SLTE
	OP_SGT
	OP_SGTE
	OP_CONCAT
	OP_SLICE
	OP_UEXT
	OP_SEXT
	OP_ITE
	OP_READ
	OP_WRITE
)

var opNames = map[string]int{
	"add": OP_ADD, "sub": OP_SUB, "mul": OP_MUL,
	"udiv": OP_UDIV, "sdiv": OP_SDIV, "urem": OP_UREM, "srem": OP_SREM,
	"sll": OP_SLL, "srl": OP_SRL, "sra": OP_SRA,
	"and": OP_AND, "or": OP_OR, "xor": OP_XOR,
	"not": OP_NOT, "neg": OP_NEG,
	"eq": OP_EQ, "neq": OP_NEQ,
	"ult": OP_ULT, "ulte": OP_ULTE, "ugt": OP_UGT, "ugte": OP_UGTE,
	"slt": OP_SLT, "slte": OP_SLTE, "sgt": OP_SGT, "sgte": OP_SGTE,
	"concat": OP_CONCAT, "slice": OP_SLICE,
	"uext": OP_UEXT, "sext": OP_SEXT,
	"ite": OP_ITE, "read": OP_READ, "write": OP_WRITE,
}

var opSymbols = map[int]string{
	OP_ADD: "add", OP_SUB: "sub", OP_MUL: "mul",
	OP_UDIV: "udiv", OP_SDIV: "sdiv", OP_UREM: "urem", OP_SREM: "srem",
	OP_SLL: "sll", OP_SRL: "srl", OP_SRA: "sra",
	OP_AND: "and", OP_OR: "or", OP_XOR: "xor",
	OP_NOT: "not", OP_NEG: "neg",
	OP_EQ: "eq", OP_NEQ: "neq",
	OP_ULT: "ult", OP_ULTE: "ulte", OP_UGT: "ugt", OP_UGTE: "ugte",
	OP_SLT: "slt", OP_SLTE: "slte", OP_SGT: "sgt", OP_SGTE: "sgte",
	OP_CONCAT: "concat", OP_SLICE: "slice",
	OP_UEXT: "uext", OP_SEXT: "sext",
	OP_ITE: "ite", OP_READ: "read", OP_WRITE: "write",
}

// NodeID is a plain index into the Model's node arena. BTOR2 forbids
// forward references, so every operand of a node has a smaller NodeID.
type NodeID int32

const noNode NodeID = -1

type Node struct {
	Nid    int64 // id as declared in the input text
	Kind   int
	Sort   SortID
	Symbol string

	Op   int      // ND_OP
	Args []NodeID // ND_OP, ND_BAD, ND_CONSTRAINT operands
	Val  *BVConst // ND_CONST
	Hi   uint     // OP_SLICE
	Lo   uint     // OP_SLICE
	Ext  uint     // OP_UEXT, OP_SEXT

	Init NodeID // ND_STATE, noNode if unconstrained
	Next NodeID // ND_STATE, noNode if not declared
}

// Model is the parsed transition system: an append-only node arena plus
// the declaration-ordered lists of bad and constraint nodes. It is
// immutable once the parser returns it and safe for concurrent reads.
type Model struct {
	sorts       *sortTable
	nodes       []Node
	byNid       map[int64]NodeID
	Bads        []NodeID
	Constraints []NodeID
}

func (m *Model) Node(id NodeID) *Node {
	return &m.nodes[id]
}

func (m *Model) NumNodes() int {
	return len(m.nodes)
}

func (m *Model) SortOf(id NodeID) Sort {
	return m.sorts.get(m.nodes[id].Sort)
}

// Lookup resolves a textual BTOR2 id to a node, if one was declared
// with that id.
func (m *Model) Lookup(nid int64) (NodeID, bool) {
	id, ok := m.byNid[nid]
	return id, ok
}

// States returns the state nodes in declaration order.
func (m *Model) States() []NodeID {
	res := make([]NodeID, 0)
	for i := 0; i < len(m.nodes); i++ {
		if m.nodes[i].Kind == ND_STATE {
			res = append(res, NodeID(i))
		}
	}
	return res
}

// Inputs returns the input nodes in declaration order.
func (m *Model) Inputs() []NodeID {
	res := make([]NodeID, 0)
	for i := 0; i < len(m.nodes); i++ {
		if m.nodes[i].Kind == ND_INPUT {
			res = append(res, NodeID(i))
		}
	}
	return res
}

// NameOf returns the node's declared symbol, or "n<id>" if the input
// did not name it. A symbol is cut at the first '@', mirroring how
// btormc decorates symbols with step suffixes.
func (m *Model) NameOf(id NodeID) string {
	n := m.Node(id)
	if n.Symbol != "" {
		name := n.Symbol
		for i := 0; i < len(name); i++ {
			if name[i] == '@' {
				return name[:i]
			}
		}
		return name
	}
	return fmt.Sprintf("n%d", n.Nid)
}

// checkOperation validates arity and operand sorts of an operation
// node against the declared result sort. The parser runs it while
// building the Model; the unroller re-runs it defensively.
func (m *Model) checkOperation(n *Node) error {
	sorts := m.sorts
	res := sorts.get(n.Sort)

	argSort := func(i int) Sort {
		return sorts.get(m.nodes[n.Args[i]].Sort)
	}
	wantArgs := func(c int) error {
		if len(n.Args) != c {
			return fmt.Errorf("%s expects %d operands, has %d", opSymbols[n.Op], c, len(n.Args))
		}
		return nil
	}

	switch n.Op {
	case OP_ADD, OP_SUB, OP_MUL, OP_UDIV, OP_SDIV, OP_UREM, OP_SREM,
		OP_SLL, OP_SRL, OP_SRA, OP_AND, OP_OR, OP_XOR:
		if err := wantArgs(2); err != nil {
			return err
		}
		if !res.IsBitvec() || argSort(0) != res || argSort(1) != res {
			return fmt.Errorf("%s requires operands and result of one bitvec sort", opSymbols[n.Op])
		}
	case OP_NOT, OP_NEG:
		if err := wantArgs(1); err != nil {
			return err
		}
		if !res.IsBitvec() || argSort(0) != res {
			return fmt.Errorf("%s requires operand and result of one bitvec sort", opSymbols[n.Op])
		}
	case OP_EQ, OP_NEQ:
		if err := wantArgs(2); err != nil {
			return err
		}
		if argSort(0) != argSort(1) {
			return fmt.Errorf("%s requires operands of one sort", opSymbols[n.Op])
		}
		if !res.IsBitvec() || res.Width != 1 {
			return fmt.Errorf("%s result must be bitvec 1", opSymbols[n.Op])
		}
	case OP_ULT, OP_ULTE, OP_UGT, OP_UGTE, OP_SLT, OP_SLTE, OP_SGT, OP_SGTE:
		if err := wantArgs(2); err != nil {
			return err
		}
		if !argSort(0).IsBitvec() || argSort(0) != argSort(1) {
			return fmt.Errorf("%s requires bitvec operands of one sort", opSymbols[n.Op])
		}
		if !res.IsBitvec() || res.Width != 1 {
			return fmt.Errorf("%s result must be bitvec 1", opSymbols[n.Op])
		}
	case OP_CONCAT:
		if err := wantArgs(2); err != nil {
			return err
		}
		if !argSort(0).IsBitvec() || !argSort(1).IsBitvec() {
			return fmt.Errorf("concat requires bitvec operands")
		}
		if !res.IsBitvec() || res.Width != argSort(0).Width+argSort(1).Width {
			return fmt.Errorf("concat result width must be the sum of operand widths")
		}
	case OP_SLICE:
		if err := wantArgs(1); err != nil {
			return err
		}
		if !argSort(0).IsBitvec() || n.Hi < n.Lo || n.Hi >= argSort(0).Width {
			return fmt.Errorf("slice bounds [%d:%d] invalid for operand width %d", n.Hi, n.Lo, argSort(0).Width)
		}
		if !res.IsBitvec() || res.Width != n.Hi-n.Lo+1 {
			return fmt.Errorf("slice result width must be high-low+1")
		}
	case OP_UEXT, OP_SEXT:
		if err := wantArgs(1); err != nil {
			return err
		}
		if !argSort(0).IsBitvec() {
			return fmt.Errorf("%s requires a bitvec operand", opSymbols[n.Op])
		}
		if !res.IsBitvec() || res.Width != argSort(0).Width+n.Ext {
			return fmt.Errorf("%s result width must be operand width plus %d", opSymbols[n.Op], n.Ext)
		}
	case OP_ITE:
		if err := wantArgs(3); err != nil {
			return err
		}
		if !argSort(0).IsBitvec() || argSort(0).Width != 1 {
			return fmt.Errorf("ite condition must be bitvec 1")
		}
		if argSort(1) != argSort(2) || argSort(1) != res {
			return fmt.Errorf("ite branches and result must share one sort")
		}
	case OP_READ:
		if err := wantArgs(2); err != nil {
			return err
		}
		arr := argSort(0)
		if !arr.IsArray() {
			return fmt.Errorf("read requires an array operand")
		}
		if argSort(1) != sorts.get(arr.Index) {
			return fmt.Errorf("read index sort mismatch")
		}
		if res != sorts.get(arr.Elem) {
			return fmt.Errorf("read result must have the array element sort")
		}
	case OP_WRITE:
		if err := wantArgs(3); err != nil {
			return err
		}
		arr := argSort(0)
		if !arr.IsArray() {
			return fmt.Errorf("write requires an array operand")
		}
		if argSort(1) != sorts.get(arr.Index) {
			return fmt.Errorf("write index sort mismatch")
		}
		if argSort(2) != sorts.get(arr.Elem) {
			return fmt.Errorf("write value sort mismatch")
		}
		if res != argSort(0) {
			return fmt.Errorf("write result must have the array sort")
		}
	default:
		return fmt.Errorf("unknown opcode %d", n.Op)
	}
	return nil
}
