package gobmc

import "fmt"

// ParseError reports a malformed BTOR2 declaration. No Model is
// produced when the parser returns one.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d (%q): %s", e.Line, e.Text, e.Reason)
}

// ModelError reports a sort or arity violation discovered after
// parsing, while unrolling. It indicates an internal inconsistency and
// is never coerced into a verdict.
type ModelError struct {
	Nid    int64
	Step   int
	Reason string
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model error at node %d, step %d: %s", e.Nid, e.Step, e.Reason)
}

// OracleError reports a failure of the external satisfiability oracle.
type OracleError struct {
	Bound  int
	Reason string
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle error at bound %d: %s", e.Bound, e.Reason)
}
