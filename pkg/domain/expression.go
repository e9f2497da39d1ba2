package domain

import "fmt"

// Expression is the predicate of a Condition: a small tagged-variant tree
// over the statuses of predecessor Transforms, evaluated by interpretation.
// It (un)marshals as JSON and never executes code.
//
// Ops:
//
// - "all": true when every sub-expression in Of is true. True for empty Of.
//
// - "any": true when at least one sub-expression in Of is true.
//
// - "not": negation of Expr.
//
// - "status": true when the Transform named by Transform
// (by internal id) currently has one of the statuses in In.
type Expression struct {
	Op        string       `json:"op"`
	Of        []Expression `json:"of,omitempty"`
	Expr      *Expression  `json:"expr,omitempty"`
	Transform string       `json:"transform,omitempty"`
	In        []Status     `json:"in,omitempty"`
}

const (
	OpAll    = "all"
	OpAny    = "any"
	OpNot    = "not"
	OpStatus = "status"
)

// Evaluate interprets the expression against live Transform statuses,
// keyed by internal id.
//
// A "status" leaf naming a Transform which does not exist yet evaluates
// to false; the condition just stays waiting until the Transform appears.
func (e Expression) Evaluate(statuses map[string]Status) (bool, error) {
	switch e.Op {
	case OpAll:
		for _, sub := range e.Of {
			ok, err := sub.Evaluate(statuses)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case OpAny:
		for _, sub := range e.Of {
			ok, err := sub.Evaluate(statuses)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case OpNot:
		if e.Expr == nil {
			return false, fmt.Errorf(`"not" expression without operand`)
		}
		ok, err := e.Expr.Evaluate(statuses)
		return !ok, err

	case OpStatus:
		current, ok := statuses[e.Transform]
		if !ok {
			return false, nil
		}
		for _, s := range e.In {
			if current == s {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, fmt.Errorf("'%s' is not an expression op", e.Op)
	}
}

// Previous lists internal ids of all Transforms the expression depends on.
func (e Expression) Previous() []string {
	seen := map[string]struct{}{}
	var walk func(Expression)
	walk = func(x Expression) {
		if x.Op == OpStatus && x.Transform != "" {
			seen[x.Transform] = struct{}{}
		}
		for _, sub := range x.Of {
			walk(sub)
		}
		if x.Expr != nil {
			walk(*x.Expr)
		}
	}
	walk(e)

	ret := make([]string, 0, len(seen))
	for t := range seen {
		ret = append(ret, t)
	}
	return ret
}

func AllOf(of ...Expression) Expression {
	return Expression{Op: OpAll, Of: of}
}

func AnyOf(of ...Expression) Expression {
	return Expression{Op: OpAny, Of: of}
}

func Not(expr Expression) Expression {
	return Expression{Op: OpNot, Expr: &expr}
}

func StatusIn(internalID string, in ...Status) Expression {
	return Expression{Op: OpStatus, Transform: internalID, In: in}
}

// TransformDone is the common gate "the named Transform has completed,
// fully or partially".
func TransformDone(internalID string) Expression {
	return StatusIn(internalID, Finished, SubFinished)
}
