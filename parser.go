package gobmc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parse reads a BTOR2 description, one declaration per line, and
// builds the transition-system Model. The input is consumed in a
// single forward pass: BTOR2 forbids forward references, so any
// operand must already be declared. Any malformed line aborts with a
// ParseError and no Model is returned.
func Parse(r io.Reader) (*Model, error) {
	p := &parser{
		model: &Model{
			sorts: newSortTable(),
			nodes: make([]Node, 0),
			byNid: make(map[int64]NodeID),
		},
		sortsByNid: make(map[int64]SortID),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for scanner.Scan() {
		lineno += 1
		if err := p.parseLine(lineno, scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Line: lineno, Reason: err.Error()}
	}
	return p.model, nil
}

func ParseString(s string) (*Model, error) {
	return Parse(strings.NewReader(s))
}

type parser struct {
	model      *Model
	sortsByNid map[int64]SortID
}

func (p *parser) parseLine(lineno int, raw string) error {
	line := raw
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	fail := func(reason string, args ...interface{}) error {
		return &ParseError{Line: lineno, Text: strings.TrimSpace(raw), Reason: fmt.Sprintf(reason, args...)}
	}

	nid, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || nid <= 0 {
		return fail("node id %q is not a positive integer", fields[0])
	}
	if _, ok := p.model.byNid[nid]; ok {
		return fail("duplicate id %d", nid)
	}
	if _, ok := p.sortsByNid[nid]; ok {
		return fail("duplicate id %d", nid)
	}
	if len(fields) < 2 {
		return fail("missing kind after id %d", nid)
	}
	kind := fields[1]
	rest := fields[2:]

	if kind == "sort" {
		return p.parseSort(nid, rest, fail)
	}
	if op, ok := opNames[kind]; ok {
		return p.parseOperation(nid, op, rest, fail)
	}
	switch kind {
	case "const", "constd", "consth", "zero", "one", "ones":
		return p.parseConstant(nid, kind, rest, fail)
	case "input", "state":
		return p.parseVariable(nid, kind, rest, fail)
	case "init", "next":
		return p.parseStateRelation(nid, kind, rest, fail)
	case "bad", "constraint":
		return p.parsePredicate(nid, kind, rest, fail)
	}
	return fail("unknown kind %q", kind)
}

func (p *parser) parseSort(nid int64, rest []string, fail func(string, ...interface{}) error) error {
	if len(rest) == 0 {
		return fail("sort without a kind")
	}
	switch rest[0] {
	case "bitvec":
		if len(rest) != 2 {
			return fail("bitvec sort expects one width argument")
		}
		w, err := strconv.ParseUint(rest[1], 10, 32)
		if err != nil || w == 0 {
			return fail("invalid bitvec width %q", rest[1])
		}
		id, err := p.model.sorts.bitvec(uint(w))
		if err != nil {
			return fail("%v", err)
		}
		p.sortsByNid[nid] = id
	case "array":
		if len(rest) != 3 {
			return fail("array sort expects index and element sorts")
		}
		idx, err := p.resolveSort(rest[1])
		if err != nil {
			return fail("%v", err)
		}
		elem, err := p.resolveSort(rest[2])
		if err != nil {
			return fail("%v", err)
		}
		id, err := p.model.sorts.array(idx, elem)
		if err != nil {
			return fail("%v", err)
		}
		p.sortsByNid[nid] = id
	default:
		return fail("unknown sort kind %q", rest[0])
	}
	return nil
}

func (p *parser) resolveSort(field string) (SortID, error) {
	ref, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return invalidSort, fmt.Errorf("sort reference %q is not an integer", field)
	}
	id, ok := p.sortsByNid[ref]
	if !ok {
		return invalidSort, fmt.Errorf("reference to undeclared sort %d", ref)
	}
	return id, nil
}

func (p *parser) resolveNode(field string) (NodeID, error) {
	ref, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return noNode, fmt.Errorf("node reference %q is not an integer", field)
	}
	id, ok := p.model.byNid[ref]
	if !ok {
		if _, isSort := p.sortsByNid[ref]; isSort {
			return noNode, fmt.Errorf("id %d references a sort, not a node", ref)
		}
		return noNode, fmt.Errorf("reference to undeclared node %d", ref)
	}
	if id == noNode {
		return noNode, fmt.Errorf("id %d references an init/next line, not a node", ref)
	}
	return id, nil
}

func (p *parser) appendNode(n Node) NodeID {
	id := NodeID(len(p.model.nodes))
	p.model.nodes = append(p.model.nodes, n)
	p.model.byNid[n.Nid] = id
	return id
}

// trailingSymbol peels an optional symbol token off the end of the
// declaration. Symbols never parse as integers.
func trailingSymbol(rest []string, want int) ([]string, string) {
	if len(rest) == want+1 {
		if _, err := strconv.ParseInt(rest[want], 10, 64); err != nil {
			return rest[:want], rest[want]
		}
	}
	return rest, ""
}

func (p *parser) parseConstant(nid int64, kind string, rest []string, fail func(string, ...interface{}) error) error {
	want := 1
	if kind == "const" || kind == "constd" || kind == "consth" {
		want = 2
	}
	rest, symbol := trailingSymbol(rest, want)
	if len(rest) != want {
		return fail("%s expects %d arguments", kind, want)
	}

	sid, err := p.resolveSort(rest[0])
	if err != nil {
		return fail("%v", err)
	}
	srt := p.model.sorts.get(sid)
	if !srt.IsBitvec() {
		return fail("%s requires a bitvec sort", kind)
	}

	var val *BVConst
	switch kind {
	case "zero":
		val = MakeBVConst(0, srt.Width)
	case "one":
		val = MakeBVConst(1, srt.Width)
	case "ones":
		val = MakeBVConstOnes(srt.Width)
	default:
		radix := 2
		if kind == "constd" {
			radix = 10
		} else if kind == "consth" {
			radix = 16
		}
		val, err = ParseBVConst(rest[1], radix, srt.Width)
		if err != nil {
			return fail("%v", err)
		}
	}

	p.appendNode(Node{Nid: nid, Kind: ND_CONST, Sort: sid, Val: val, Symbol: symbol})
	return nil
}

func (p *parser) parseVariable(nid int64, kind string, rest []string, fail func(string, ...interface{}) error) error {
	rest, symbol := trailingSymbol(rest, 1)
	if len(rest) != 1 {
		return fail("%s expects a sort argument", kind)
	}
	sid, err := p.resolveSort(rest[0])
	if err != nil {
		return fail("%v", err)
	}
	nk := ND_INPUT
	if kind == "state" {
		nk = ND_STATE
	}
	p.appendNode(Node{Nid: nid, Kind: nk, Sort: sid, Symbol: symbol, Init: noNode, Next: noNode})
	return nil
}

func (p *parser) parseStateRelation(nid int64, kind string, rest []string, fail func(string, ...interface{}) error) error {
	rest, _ = trailingSymbol(rest, 3)
	if len(rest) != 3 {
		return fail("%s expects sort, state and value arguments", kind)
	}
	sid, err := p.resolveSort(rest[0])
	if err != nil {
		return fail("%v", err)
	}
	stateID, err := p.resolveNode(rest[1])
	if err != nil {
		return fail("%v", err)
	}
	valueID, err := p.resolveNode(rest[2])
	if err != nil {
		return fail("%v", err)
	}

	state := p.model.Node(stateID)
	if state.Kind != ND_STATE {
		return fail("%s applied to non-state node %d", kind, state.Nid)
	}
	if state.Sort != sid {
		return fail("%s sort does not match the state sort", kind)
	}

	stateSort := p.model.sorts.get(state.Sort)
	valueSort := p.model.sorts.get(p.model.Node(valueID).Sort)
	sortOK := state.Sort == p.model.Node(valueID).Sort
	if !sortOK && kind == "init" && stateSort.IsArray() {
		// BTOR2 allows initializing an array state with an element
		// value, meaning every cell holds that value
		sortOK = valueSort == p.model.sorts.get(stateSort.Elem)
	}
	if !sortOK {
		return fail("%s value sort does not match the state sort", kind)
	}

	switch kind {
	case "init":
		if state.Init != noNode {
			return fail("state %d already has an init", state.Nid)
		}
		state.Init = valueID
	case "next":
		if state.Next != noNode {
			return fail("state %d already has a next", state.Nid)
		}
		state.Next = valueID
	}

	// the line occupies an id but declares no referenceable node; the
	// id is recorded so later references to it fail as sort refs do
	p.model.byNid[nid] = noNode
	return nil
}

func (p *parser) parsePredicate(nid int64, kind string, rest []string, fail func(string, ...interface{}) error) error {
	rest, symbol := trailingSymbol(rest, 1)
	if len(rest) != 1 {
		return fail("%s expects a node argument", kind)
	}
	argID, err := p.resolveNode(rest[0])
	if err != nil {
		return fail("%v", err)
	}
	argSort := p.model.sorts.get(p.model.Node(argID).Sort)
	if !argSort.IsBitvec() || argSort.Width != 1 {
		return fail("%s requires a bitvec 1 operand", kind)
	}

	nk := ND_BAD
	if kind == "constraint" {
		nk = ND_CONSTRAINT
	}
	id := p.appendNode(Node{Nid: nid, Kind: nk, Sort: p.model.Node(argID).Sort, Args: []NodeID{argID}, Symbol: symbol})
	if nk == ND_BAD {
		p.model.Bads = append(p.model.Bads, id)
	} else {
		p.model.Constraints = append(p.model.Constraints, id)
	}
	return nil
}

func (p *parser) parseOperation(nid int64, op int, rest []string, fail func(string, ...interface{}) error) error {
	nargs := map[int]int{
		OP_NOT: 1, OP_NEG: 1, OP_SLICE: 1, OP_UEXT: 1, OP_SEXT: 1,
		OP_ITE: 3, OP_WRITE: 3,
	}
	argc, ok := nargs[op]
	if !ok {
		argc = 2
	}
	extra := 0
	switch op {
	case OP_SLICE:
		extra = 2
	case OP_UEXT, OP_SEXT:
		extra = 1
	}

	rest, symbol := trailingSymbol(rest, 1+argc+extra)
	if len(rest) != 1+argc+extra {
		return fail("%s expects %d arguments", opSymbols[op], 1+argc+extra)
	}

	sid, err := p.resolveSort(rest[0])
	if err != nil {
		return fail("%v", err)
	}

	n := Node{Nid: nid, Kind: ND_OP, Sort: sid, Op: op, Symbol: symbol}
	for i := 0; i < argc; i++ {
		argID, err := p.resolveNode(rest[1+i])
		if err != nil {
			return fail("%v", err)
		}
		n.Args = append(n.Args, argID)
	}

	parseUint := func(f string) (uint, error) {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%q is not a valid bit count", f)
		}
		return uint(v), nil
	}
	switch op {
	case OP_SLICE:
		if n.Hi, err = parseUint(rest[2]); err != nil {
			return fail("%v", err)
		}
		if n.Lo, err = parseUint(rest[3]); err != nil {
			return fail("%v", err)
		}
	case OP_UEXT, OP_SEXT:
		if n.Ext, err = parseUint(rest[2]); err != nil {
			return fail("%v", err)
		}
	}

	if err := p.model.checkOperation(&n); err != nil {
		return fail("%v", err)
	}
	p.appendNode(n)
	return nil
}
