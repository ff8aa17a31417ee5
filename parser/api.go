// Package parser reads goals, clauses and types written in the syntax of
// program files, such as
//
//	forall<T> { if (T: Clone) { Vec<T>: Clone } }
//
// Names bound by enclosing quantifiers become Bound variables, and any
// other name is a nominal type.
package parser

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/antlr4-go/antlr/v4"
	"github.com/cottand/traitsolve/internal/log"
	"github.com/cottand/traitsolve/ir"
)

var logger = log.DefaultLogger.With("section", "parser")

// Binder is a parameter introduced by a quantifier, a clause or a declaration
type Binder struct {
	Name string
	Kind ir.VariableKind
}

func Kinds(binders []Binder) []ir.VariableKind {
	if len(binders) == 0 {
		return nil
	}
	kinds := make([]ir.VariableKind, len(binders))
	for i, b := range binders {
		kinds[i] = b.Kind
	}
	return kinds
}

// ParseGoal reads goals separated by commas, as a conjunction. scope holds
// the innermost binder the goals may refer to, if any.
func ParseGoal(src string, scope []Binder) (ir.Goal, error) {
	return parse(src, scope, (*GoalParser).GoalInput, func(l *listener) ir.Goal {
		return pop(l, &l.goals, "goal")
	})
}

// ParseLeaf reads a single domain goal, or an equality between two types
func ParseLeaf(src string, scope []Binder) (ir.Goal, error) {
	return parse(src, scope, (*GoalParser).LeafInput, func(l *listener) ir.Goal {
		return pop(l, &l.goals, "goal")
	})
}

// ParseClause reads a program clause such as
//
//	forall<T> { Vec<T>: Foo :- T: Foo }
func ParseClause(src string) (ir.ProgramClause, error) {
	return parse(src, nil, (*GoalParser).ClauseInput, func(l *listener) ir.ProgramClause {
		return pop(l, &l.clauses, "clause")
	})
}

// ParseType reads a type such as Vec<&'static Int>
func ParseType(src string, scope []Binder) (ir.GenericArg, error) {
	return parse(src, scope, (*GoalParser).TypeInput, func(l *listener) ir.GenericArg {
		return pop(l, &l.types, "type")
	})
}

// ParseParam reads a parameter declaration: T, 'a or const N
func ParseParam(src string) (Binder, error) {
	tree, err := parseTree(src, (*GoalParser).ParamInput)
	if err != nil {
		return Binder{}, err
	}
	return readParam(tree.Param()), nil
}

func parseTree[T antlr.ParseTree](src string, start func(*GoalParser) T) (T, error) {
	syntaxErrors := &errorListener{}

	lexer := NewGoalLexer(antlr.NewInputStream(src))
	lexer.RemoveErrorListeners()
	lexer.AddErrorListener(syntaxErrors)

	p := NewGoalParser(antlr.NewCommonTokenStream(lexer, antlr.TokenDefaultChannel))
	p.RemoveErrorListeners()
	p.AddErrorListener(syntaxErrors)

	tree := start(p)
	if len(syntaxErrors.errors) != 0 {
		return tree, fmt.Errorf("parsing %s: %w", strconv.Quote(src), errors.Join(syntaxErrors.errors...))
	}
	return tree, nil
}

// parse reads src from the start rule, and builds its IR by walking the
// parse tree
func parse[T antlr.ParseTree, R any](src string, scope []Binder, start func(*GoalParser) T, result func(*listener) R) (R, error) {
	var zero R
	tree, err := parseTree(src, start)
	if err != nil {
		return zero, err
	}

	l := &listener{}
	if scope != nil {
		l.scopes = append(l.scopes, scope)
	}
	antlr.NewIterativeParseTreeWalker().Walk(l, tree)
	r := result(l)

	if len(l.visitErrors) != 0 {
		logger.Debug("rejected parse tree", "src", src, "errors", len(l.visitErrors))
		return zero, fmt.Errorf("parsing %s: %w", strconv.Quote(src), errors.Join(l.visitErrors...))
	}
	return r, nil
}
