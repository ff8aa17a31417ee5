package ir

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/benbjohnson/immutable"
)

// DomainGoal is a leaf goal answered by program clauses.
// Implementations: Implemented, AliasEq, Normalize.
type DomainGoal interface {
	fmt.Stringer
	FoldWith(f *Folder, outer int) DomainGoal
	// Inputs are the arguments that determine which clauses dispatch
	Inputs() []GenericArg
	isDomainGoal()
}

var (
	_ DomainGoal = Implemented{}
	_ DomainGoal = AliasEq{}
	_ DomainGoal = Normalize{}
)

// Implemented holds when the trait reference is implemented
type Implemented struct {
	TraitRef
}

// AliasEq holds when the projection is equal to Ty, either because it
// normalizes to Ty or because Ty is the placeholder for the projection
type AliasEq struct {
	Alias ProjectionTy
	Ty    GenericArg
}

// Normalize holds when the projection normalizes to Ty through an impl
type Normalize struct {
	Alias ProjectionTy
	Ty    GenericArg
}

func (Implemented) isDomainGoal() {}
func (AliasEq) isDomainGoal()     {}
func (Normalize) isDomainGoal()   {}

func (g Implemented) String() string { return "Implemented(" + g.TraitRef.String() + ")" }
func (g AliasEq) String() string     { return fmt.Sprintf("AliasEq(%s = %s)", g.Alias, g.Ty) }
func (g Normalize) String() string   { return fmt.Sprintf("Normalize(%s -> %s)", g.Alias, g.Ty) }

func (g Implemented) FoldWith(f *Folder, outer int) DomainGoal {
	return Implemented{TraitRef: g.TraitRef.FoldWith(f, outer)}
}
func (g AliasEq) FoldWith(f *Folder, outer int) DomainGoal {
	return AliasEq{Alias: g.Alias.FoldWith(f, outer), Ty: foldArg(f, g.Ty, outer)}
}
func (g Normalize) FoldWith(f *Folder, outer int) DomainGoal {
	return Normalize{Alias: g.Alias.FoldWith(f, outer), Ty: foldArg(f, g.Ty, outer)}
}

func (g Implemented) Inputs() []GenericArg { return nil }
func (g AliasEq) Inputs() []GenericArg     { return g.Alias.Args }
func (g Normalize) Inputs() []GenericArg   { return g.Alias.Args }

// Goal is the goal language.
// Implementations: Quantified, Implies, All, Not, Domain, Eq, CannotProve.
type Goal interface {
	fmt.Stringer
	FoldWith(f *Folder, outer int) Goal
	isGoal()
}

var (
	_ Goal = Quantified{}
	_ Goal = Implies{}
	_ Goal = All{}
	_ Goal = Not{}
	_ Goal = Domain{}
	_ Goal = Eq{}
	_ Goal = CannotProve{}
)

type QuantifierKind uint8

const (
	ForAll QuantifierKind = iota
	Exists
)

func (q QuantifierKind) String() string {
	if q == ForAll {
		return "forall"
	}
	return "exists"
}

// Binders abstracts over Kinds variables, referred to by Value with
// Bound variables of Debruijn index 0
type Binders[T any] struct {
	Kinds []VariableKind
	Value T
}

func NewBinders[T any](value T, kinds ...VariableKind) Binders[T] {
	return Binders[T]{Kinds: kinds, Value: value}
}

func (b Binders[T]) Len() int { return len(b.Kinds) }

func kindsString(kinds []VariableKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

type Quantified struct {
	Quantifier QuantifierKind
	Body       Binders[Goal]
}

type Implies struct {
	Clauses []ProgramClause
	Goal    Goal
}

type All struct {
	Goals []Goal
}

type Not struct {
	Goal Goal
}

type Domain struct {
	Goal DomainGoal
}

type Eq struct {
	A, B GenericArg
}

// CannotProve can never be proven nor refuted
type CannotProve struct{}

func (Quantified) isGoal()  {}
func (Implies) isGoal()     {}
func (All) isGoal()         {}
func (Not) isGoal()         {}
func (Domain) isGoal()      {}
func (Eq) isGoal()          {}
func (CannotProve) isGoal() {}

func (g Quantified) String() string {
	return fmt.Sprintf("%s<%s> { %s }", g.Quantifier, kindsString(g.Body.Kinds), g.Body.Value)
}
func (g Implies) String() string {
	parts := make([]string, len(g.Clauses))
	for i, c := range g.Clauses {
		parts[i] = c.String()
	}
	return fmt.Sprintf("if (%s) { %s }", strings.Join(parts, "; "), g.Goal)
}
func (g All) String() string {
	parts := make([]string, len(g.Goals))
	for i, sub := range g.Goals {
		parts[i] = sub.String()
	}
	return "all(" + strings.Join(parts, ", ") + ")"
}
func (g Not) String() string       { return "not { " + g.Goal.String() + " }" }
func (g Domain) String() string    { return g.Goal.String() }
func (g Eq) String() string        { return fmt.Sprintf("%s = %s", g.A, g.B) }
func (CannotProve) String() string { return "CannotProve" }

func (g Quantified) FoldWith(f *Folder, outer int) Goal {
	return Quantified{
		Quantifier: g.Quantifier,
		Body:       Binders[Goal]{Kinds: g.Body.Kinds, Value: g.Body.Value.FoldWith(f, outer+1)},
	}
}
func (g Implies) FoldWith(f *Folder, outer int) Goal {
	clauses := make([]ProgramClause, len(g.Clauses))
	for i, c := range g.Clauses {
		clauses[i] = c.FoldWith(f, outer)
	}
	return Implies{Clauses: clauses, Goal: g.Goal.FoldWith(f, outer)}
}
func (g All) FoldWith(f *Folder, outer int) Goal {
	return All{Goals: foldGoals(f, g.Goals, outer)}
}
func (g Not) FoldWith(f *Folder, outer int) Goal    { return Not{Goal: g.Goal.FoldWith(f, outer)} }
func (g Domain) FoldWith(f *Folder, outer int) Goal { return Domain{Goal: g.Goal.FoldWith(f, outer)} }
func (g Eq) FoldWith(f *Folder, outer int) Goal {
	return Eq{A: foldArg(f, g.A, outer), B: foldArg(f, g.B, outer)}
}
func (g CannotProve) FoldWith(*Folder, int) Goal { return g }

// ForAllGoal wraps body, which refers to its variables as ^0.i, in a universal quantifier
func ForAllGoal(body Goal, kinds ...VariableKind) Goal {
	if len(kinds) == 0 {
		return body
	}
	return Quantified{Quantifier: ForAll, Body: NewBinders(body, kinds...)}
}

// ExistsGoal wraps body, which refers to its variables as ^0.i, in an existential quantifier
func ExistsGoal(body Goal, kinds ...VariableKind) Goal {
	if len(kinds) == 0 {
		return body
	}
	return Quantified{Quantifier: Exists, Body: NewBinders(body, kinds...)}
}

type ClausePriority uint8

const (
	PriorityHigh ClausePriority = iota
	PriorityLow
)

func (p ClausePriority) String() string {
	if p == PriorityHigh {
		return "High"
	}
	return "Low"
}

// ProgramClauseImplication is Consequence :- Conditions
type ProgramClauseImplication struct {
	Consequence DomainGoal
	Conditions  []Goal
	Priority    ClausePriority
}

func (i ProgramClauseImplication) String() string {
	if len(i.Conditions) == 0 {
		return i.Consequence.String()
	}
	parts := make([]string, len(i.Conditions))
	for idx, c := range i.Conditions {
		parts[idx] = c.String()
	}
	return i.Consequence.String() + " :- " + strings.Join(parts, ", ")
}

func (i ProgramClauseImplication) FoldWith(f *Folder, outer int) ProgramClauseImplication {
	return ProgramClauseImplication{
		Consequence: i.Consequence.FoldWith(f, outer),
		Conditions:  foldGoals(f, i.Conditions, outer),
		Priority:    i.Priority,
	}
}

type ProgramClause struct {
	Binders[ProgramClauseImplication]
}

func NewClause(implication ProgramClauseImplication, kinds ...VariableKind) ProgramClause {
	return ProgramClause{NewBinders(implication, kinds...)}
}

func (c ProgramClause) String() string {
	if len(c.Kinds) == 0 {
		return c.Value.String()
	}
	return fmt.Sprintf("forall<%s> { %s }", kindsString(c.Kinds), c.Value)
}

func (c ProgramClause) FoldWith(f *Folder, outer int) ProgramClause {
	return ProgramClause{Binders[ProgramClauseImplication]{
		Kinds: c.Kinds,
		Value: c.Value.FoldWith(f, outer+1),
	}}
}

// Environment is the set of clauses assumed to hold while solving a goal,
// extended by Implies goals. It is persistent: extending it does not
// modify the original.
type Environment struct {
	clauses *immutable.List[ProgramClause]
}

func NewEnvironment(clauses ...ProgramClause) Environment {
	return Environment{}.AddClauses(clauses...)
}

func (e Environment) AddClauses(clauses ...ProgramClause) Environment {
	list := e.clauses
	if list == nil {
		list = immutable.NewList[ProgramClause]()
	}
	for _, c := range clauses {
		list = list.Append(c)
	}
	return Environment{clauses: list}
}

func (e Environment) Len() int {
	if e.clauses == nil {
		return 0
	}
	return e.clauses.Len()
}

func (e Environment) Clauses() iter.Seq[ProgramClause] {
	return func(yield func(ProgramClause) bool) {
		if e.clauses == nil {
			return
		}
		itr := e.clauses.Iterator()
		for !itr.Done() {
			_, c := itr.Next()
			if !yield(c) {
				return
			}
		}
	}
}

func (e Environment) String() string {
	parts := make([]string, 0, e.Len())
	for c := range e.Clauses() {
		parts = append(parts, c.String())
	}
	return "Env(" + strings.Join(parts, "; ") + ")"
}

func (e Environment) FoldWith(f *Folder, outer int) Environment {
	if e.Len() == 0 {
		return e
	}
	list := immutable.NewList[ProgramClause]()
	for c := range e.Clauses() {
		list = list.Append(c.FoldWith(f, outer))
	}
	return Environment{clauses: list}
}

// InEnvironment pairs a goal with the clauses assumed while solving it
type InEnvironment[G Foldable[G]] struct {
	Env  Environment
	Goal G
}

func NewInEnvironment[G Foldable[G]](env Environment, goal G) InEnvironment[G] {
	return InEnvironment[G]{Env: env, Goal: goal}
}

func (in InEnvironment[G]) String() string {
	if in.Env.Len() == 0 {
		return in.Goal.String()
	}
	return fmt.Sprintf("%s |- %s", in.Env, in.Goal)
}

func (in InEnvironment[G]) FoldWith(f *Folder, outer int) InEnvironment[G] {
	return InEnvironment[G]{Env: in.Env.FoldWith(f, outer), Goal: in.Goal.FoldWith(f, outer)}
}

// ErrFloundered is returned by clause sources that cannot enumerate the
// clauses of a goal, typically because its self type is still unknown
var ErrFloundered = errors.New("floundered")
