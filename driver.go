package gobmc

import (
	"context"
	"fmt"
	"time"
)

// Driver phases. A run moves Init -> (Unrolling -> Querying)* and ends
// in exactly one of Found, Exhausted or Failed.
const (
	STATE_INIT = iota
	STATE_UNROLLING
	STATE_QUERYING
	STATE_FOUND
	STATE_EXHAUSTED
	STATE_FAILED
)

var stateNames = map[int]string{
	STATE_INIT: "init", STATE_UNROLLING: "unrolling", STATE_QUERYING: "querying",
	STATE_FOUND: "found", STATE_EXHAUSTED: "exhausted", STATE_FAILED: "failed",
}

func stateName(s int) string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", s)
}

// Bad predicate reporting policy when several fire at the same step.
const (
	// BAD_ALL reports every predicate that fires at the violation step.
	BAD_ALL = iota
	// BAD_FIRST reports only the first in declaration order.
	BAD_FIRST
)

// CheckConfig controls one bounded check run.
type CheckConfig struct {
	// MaxBound is the largest bound to try, inclusive. Required.
	MaxBound int
	// OracleTimeout bounds each oracle query, if the oracle supports
	// deadlines. Zero means no per-query deadline.
	OracleTimeout time.Duration
	// BadSelection is BAD_ALL or BAD_FIRST.
	BadSelection int
}

// BoundVerdict records the oracle's answer for one bound.
type BoundVerdict struct {
	Bound   int
	Verdict int
}

// Result is the outcome of a check run.
type Result struct {
	// State is STATE_FOUND, STATE_EXHAUSTED or STATE_FAILED.
	State int
	// Bound is the violation step when found, the last bound tried
	// when exhausted, and the bound being queried when failed.
	Bound int
	// Trace is the counterexample, set only when State is STATE_FOUND.
	Trace *Trace
	// History holds the per-bound verdicts in the order they were
	// produced.
	History []BoundVerdict
}

func (r *Result) Found() bool {
	return r.State == STATE_FOUND
}

func (r *Result) String() string {
	switch r.State {
	case STATE_FOUND:
		return fmt.Sprintf("found at bound %d", r.Bound)
	case STATE_EXHAUSTED:
		return fmt.Sprintf("exhausted at bound %d", r.Bound)
	}
	return fmt.Sprintf("%s at bound %d", stateName(r.State), r.Bound)
}

// timeoutOracle is implemented by oracles that honor per-query
// deadlines.
type timeoutOracle interface {
	SetTimeout(time.Duration)
}

// Check runs bounded model checking on m through the oracle, trying
// bounds 0..MaxBound in order. Only an unsat answer advances the
// bound: unknown and error answers end the run as failed, attributed
// to the bound being queried. The returned error is non-nil exactly
// when the result state is failed.
func Check(ctx context.Context, m *Model, oracle Oracle, cfg CheckConfig) (*Result, error) {
	if cfg.MaxBound < 0 {
		return nil, fmt.Errorf("max bound must be non-negative, got %d", cfg.MaxBound)
	}
	if oracle == nil {
		return nil, fmt.Errorf("no oracle")
	}
	if cfg.OracleTimeout > 0 {
		if to, ok := oracle.(timeoutOracle); ok {
			to.SetTimeout(cfg.OracleTimeout)
		}
	}

	res := &Result{State: STATE_INIT}
	if len(m.Bads) == 0 {
		// nothing to violate
		res.State = STATE_EXHAUSTED
		res.Bound = cfg.MaxBound
		return res, nil
	}

	tb := NewTermBuilder()
	for k := 0; k <= cfg.MaxBound; k++ {
		if err := ctx.Err(); err != nil {
			res.State = STATE_FAILED
			res.Bound = k
			return res, &OracleError{Bound: k, Reason: err.Error()}
		}

		res.State = STATE_UNROLLING
		res.Bound = k
		u, err := Unroll(m, k, tb)
		if err != nil {
			res.State = STATE_FAILED
			return res, err
		}
		query, err := u.Query(tb)
		if err != nil {
			res.State = STATE_FAILED
			return res, err
		}

		res.State = STATE_QUERYING
		verdict, err := oracle.Check(ctx, query)
		if err != nil {
			res.State = STATE_FAILED
			return res, &OracleError{Bound: k, Reason: err.Error()}
		}
		res.History = append(res.History, BoundVerdict{Bound: k, Verdict: verdict})

		switch verdict {
		case VERDICT_UNSAT:
			continue
		case VERDICT_SAT:
			asn := oracle.Model()
			if asn == nil {
				res.State = STATE_FAILED
				return res, &OracleError{Bound: k, Reason: "sat verdict without a model"}
			}
			tr, err := ExtractTrace(u, asn)
			if err != nil {
				res.State = STATE_FAILED
				return res, &OracleError{Bound: k, Reason: err.Error()}
			}
			if cfg.BadSelection == BAD_FIRST && len(tr.Fired) > 1 {
				tr.Fired = tr.Fired[:1]
			}
			res.State = STATE_FOUND
			res.Bound = tr.Bound
			res.Trace = tr
			return res, nil
		case VERDICT_UNKNOWN:
			res.State = STATE_FAILED
			return res, &OracleError{Bound: k, Reason: "oracle answered unknown"}
		default:
			res.State = STATE_FAILED
			return res, &OracleError{Bound: k, Reason: "oracle answered " + verdictName(verdict)}
		}
	}

	res.State = STATE_EXHAUSTED
	res.Bound = cfg.MaxBound
	return res, nil
}
