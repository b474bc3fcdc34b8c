package gobmc

import (
	"fmt"
	"strings"
)

// PropRef names a violated bad predicate: its position among the bad
// declarations, the line id of the declaration, and a readable name.
type PropRef struct {
	Index int
	Nid   int64
	Name  string
}

// VarValue is the concrete value of one state or input at one step.
// Exactly one of BV and Arr is set.
type VarValue struct {
	Nid  int64
	Name string
	BV   *BVConst
	Arr  *ArrayVal
}

// TraceStep is the snapshot of every state and input at one step.
type TraceStep struct {
	Step   int
	States []VarValue
	Inputs []VarValue
}

// Trace is a finite counterexample: the earliest step at which a bad
// predicate fires, which predicates fire there, and the value of every
// state and input along the way.
type Trace struct {
	Bound int
	Fired []PropRef
	Steps []TraceStep
}

// ExtractTrace reads a counterexample out of a sat assignment for the
// given unrolling. The violation step is the earliest step at which
// any bad predicate evaluates true; Fired lists, in declaration order,
// every predicate that fires at that step.
func ExtractTrace(u *Unrolling, asn *Assignment) (*Trace, error) {
	m := u.Model

	fireStep := -1
	var fired []PropRef
	for t := 0; t <= u.Bound && fireStep < 0; t++ {
		for i, b := range u.Bads[t] {
			holds, err := EvalBool(b, asn)
			if err != nil {
				return nil, err
			}
			if !holds {
				continue
			}
			fireStep = t
			fired = append(fired, PropRef{
				Index: i,
				Nid:   m.Node(m.Bads[i]).Nid,
				Name:  m.NameOf(m.Bads[i]),
			})
		}
	}
	if fireStep < 0 {
		return nil, fmt.Errorf("no bad predicate holds under the assignment")
	}

	tr := &Trace{Bound: fireStep, Fired: fired}
	for t := 0; t <= fireStep; t++ {
		step := TraceStep{Step: t}
		for _, sid := range m.States() {
			v, err := snapshot(m, u, sid, t, asn)
			if err != nil {
				return nil, err
			}
			step.States = append(step.States, v)
		}
		for _, iid := range m.Inputs() {
			v, err := snapshot(m, u, iid, t, asn)
			if err != nil {
				return nil, err
			}
			step.Inputs = append(step.Inputs, v)
		}
		tr.Steps = append(tr.Steps, step)
	}
	return tr, nil
}

func snapshot(m *Model, u *Unrolling, id NodeID, t int, asn *Assignment) (VarValue, error) {
	n := m.Node(id)
	v := VarValue{Nid: n.Nid, Name: m.NameOf(id)}
	term := u.TermAt(id, t)
	if term.IsArray() {
		arr, err := EvalArray(term, asn)
		if err != nil {
			return v, err
		}
		v.Arr = arr
	} else {
		bv, err := EvalBV(term, asn)
		if err != nil {
			return v, err
		}
		v.BV = bv
	}
	return v, nil
}

// Witness renders the trace in the btormc witness format: a header
// naming the violated properties, then per step a `#k` state frame and
// an `@k` input frame with exact-width binary values, closed by a dot.
func (tr *Trace) Witness() string {
	var b strings.Builder
	b.WriteString("sat\n")
	for i, p := range tr.Fired {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "b%d", p.Index)
	}
	b.WriteByte('\n')

	for _, step := range tr.Steps {
		fmt.Fprintf(&b, "#%d\n", step.Step)
		for i, v := range step.States {
			writeWitnessValue(&b, i, v)
		}
		fmt.Fprintf(&b, "@%d\n", step.Step)
		for i, v := range step.Inputs {
			writeWitnessValue(&b, i, v)
		}
	}
	b.WriteString(".\n")
	return b.String()
}

func writeWitnessValue(b *strings.Builder, pos int, v VarValue) {
	if v.Arr != nil {
		for _, idx := range v.Arr.SortedIndices() {
			fmt.Fprintf(b, "%d [%s] %s %s\n", pos, idx, v.Arr.Cells[idx].BinaryString(), v.Name)
		}
		return
	}
	fmt.Fprintf(b, "%d %s %s\n", pos, v.BV.BinaryString(), v.Name)
}

// Flow is the value history of one variable with consecutive repeats
// collapsed: Values[i] holds from step Froms[i] until the next entry.
type Flow struct {
	Nid    int64
	Name   string
	Froms  []int
	Values []string
}

// Flows summarizes the trace per variable instead of per step, which
// reads better on long traces where most values are stable.
func (tr *Trace) Flows() []Flow {
	if len(tr.Steps) == 0 {
		return nil
	}

	var flows []Flow
	collect := func(pick func(s TraceStep) []VarValue) {
		for i := range pick(tr.Steps[0]) {
			f := Flow{
				Nid:  pick(tr.Steps[0])[i].Nid,
				Name: pick(tr.Steps[0])[i].Name,
			}
			prev := ""
			for _, step := range tr.Steps {
				cur := renderValue(pick(step)[i])
				if len(f.Values) == 0 || cur != prev {
					f.Froms = append(f.Froms, step.Step)
					f.Values = append(f.Values, cur)
					prev = cur
				}
			}
			flows = append(flows, f)
		}
	}
	collect(func(s TraceStep) []VarValue { return s.States })
	collect(func(s TraceStep) []VarValue { return s.Inputs })
	return flows
}

func renderValue(v VarValue) string {
	if v.Arr != nil {
		var b strings.Builder
		b.WriteByte('{')
		for i, idx := range v.Arr.SortedIndices() {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "[%s]=%s", idx, v.Arr.Cells[idx].BinaryString())
		}
		b.WriteByte('}')
		return b.String()
	}
	return v.BV.BinaryString()
}

// ReplayTrace re-checks a trace against its unrolling: every init,
// transition and constraint conjunct must hold under the assignment,
// and each fired predicate must actually fire at the reported step. A
// failure indicates a defect in the unroller or the oracle.
func ReplayTrace(u *Unrolling, asn *Assignment, tr *Trace) error {
	verify := func(terms []*Term, what string, t int) error {
		for _, c := range terms {
			holds, err := EvalBool(c, asn)
			if err != nil {
				return err
			}
			if !holds {
				return fmt.Errorf("%s conjunct violated at step %d", what, t)
			}
		}
		return nil
	}

	if err := verify(u.Inits, "init", 0); err != nil {
		return err
	}
	for t := 0; t < u.Bound; t++ {
		if err := verify(u.Transitions[t], "transition", t); err != nil {
			return err
		}
	}
	for t := 0; t <= u.Bound; t++ {
		if err := verify(u.StepConstraints[t], "constraint", t); err != nil {
			return err
		}
	}

	for _, p := range tr.Fired {
		holds, err := EvalBool(u.Bads[tr.Bound][p.Index], asn)
		if err != nil {
			return err
		}
		if !holds {
			return fmt.Errorf("property b%d does not fire at step %d", p.Index, tr.Bound)
		}
	}
	return nil
}
