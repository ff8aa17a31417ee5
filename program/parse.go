package program

import (
	"github.com/cottand/traitsolve/ir"
	"github.com/cottand/traitsolve/parser"
)

// ParseGoal reads a closed goal, such as
//
//	forall<T> { if (T: Clone) { Vec<T>: Clone } }
func ParseGoal(src string) (ir.Goal, error) {
	return parser.ParseGoal(src, nil)
}

// ParseType reads a closed type, such as Vec<&'static Int>
func ParseType(src string) (ir.GenericArg, error) {
	return parser.ParseType(src, nil)
}

// ParseClause reads a clause such as forall<T> { Vec<T>: Foo :- T: Foo }
func ParseClause(src string) (ir.ProgramClause, error) {
	return parser.ParseClause(src)
}
