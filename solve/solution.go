package solve

import (
	"log/slog"

	"github.com/cottand/traitsolve/ir"
)

// Solution is the answer to a query. A nil Solution means the goal has no
// solution.
// Implementations: Unique, Ambiguous.
type Solution interface {
	String() string
	isSolution()
}

// Unique means the goal holds with exactly this substitution, provided the
// lifetime constraints hold
type Unique struct {
	ir.Canonical[ir.ConstrainedSubst]
}

// Ambiguous means the goal may hold in more than one way, or could not be
// decided
type Ambiguous struct {
	Guidance Guidance
}

func (Unique) isSolution()    {}
func (Ambiguous) isSolution() {}

func (s Unique) String() string    { return "Unique; " + s.Canonical.String() }
func (s Ambiguous) String() string { return "Ambiguous; " + s.Guidance.String() }

// Guidance is what an ambiguous solution still tells about the query's variables.
// Implementations: Definite, Suggested, Unknown.
type Guidance interface {
	String() string
	isGuidance()
}

// Definite guidance holds for every solution of the goal, but does not
// determine a single one
type Definite struct {
	Subst ir.Canonical[ir.Substitution]
}

// Suggested guidance is a plausible but unproven substitution
type Suggested struct {
	Subst ir.Canonical[ir.Substitution]
}

type Unknown struct{}

func (Definite) isGuidance()  {}
func (Suggested) isGuidance() {}
func (Unknown) isGuidance()   {}

func (g Definite) String() string  { return "definite substitution " + g.Subst.String() }
func (g Suggested) String() string { return "suggested substitution " + g.Subst.String() }
func (Unknown) String() string     { return "no inference guidance" }

var ambiguousUnknown Solution = Ambiguous{Guidance: Unknown{}}

// Equal compares two solutions, either of which may be nil
func Equal(a, b Solution) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

func IsUnique(s Solution) bool {
	_, ok := s.(Unique)
	return ok
}

func IsAmbiguous(s Solution) bool {
	_, ok := s.(Ambiguous)
	return ok
}

// ShowSolution renders s, including the nil solution
func ShowSolution(s Solution) string {
	if s == nil {
		return "No possible solution"
	}
	return s.String()
}

// logSolution renders a solution only once the log record holding it is written
type logSolution struct{ solution Solution }

func (l logSolution) LogValue() slog.Value { return slog.StringValue(ShowSolution(l.solution)) }

// IsTrivialAndAlwaysTrue reports whether s holds unconditionally without
// constraining any variable of the query
func IsTrivialAndAlwaysTrue(s Solution) bool {
	unique, ok := s.(Unique)
	return ok && unique.Value.Subst.IsIdentity() && len(unique.Value.Constraints) == 0
}

func intoGuidance(s Solution) Guidance {
	switch s := s.(type) {
	case Unique:
		return Definite{Subst: ir.Canonical[ir.Substitution]{Binders: s.Binders, Value: s.Value.Subst}}
	case Ambiguous:
		return s.Guidance
	default:
		panic("guidance of the empty solution")
	}
}

func constrained(subst ir.Canonical[ir.Substitution]) ir.Canonical[ir.ConstrainedSubst] {
	return ir.Canonical[ir.ConstrainedSubst]{Binders: subst.Binders, Value: ir.ConstrainedSubst{Subst: subst.Value}}
}

// DefiniteSubst returns the substitution s commits to, if any
func DefiniteSubst(s Solution) (ir.Canonical[ir.ConstrainedSubst], bool) {
	switch s := s.(type) {
	case Unique:
		return s.Canonical, true
	case Ambiguous:
		if g, ok := s.Guidance.(Definite); ok {
			return constrained(g.Subst), true
		}
	}
	return ir.Canonical[ir.ConstrainedSubst]{}, false
}

// ConstrainedSubst returns the substitution s commits to or suggests, if any
func ConstrainedSubst(s Solution) (ir.Canonical[ir.ConstrainedSubst], bool) {
	if subst, ok := DefiniteSubst(s); ok {
		return subst, true
	}
	if a, ok := s.(Ambiguous); ok {
		if g, ok := a.Guidance.(Suggested); ok {
			return constrained(g.Subst), true
		}
	}
	return ir.Canonical[ir.ConstrainedSubst]{}, false
}

// Combine merges the solutions of two alternative ways of proving a goal.
// Both must be non-nil.
func Combine(a, b Solution) Solution {
	if Equal(a, b) {
		return a
	}
	// a trivially true alternative subsumes any other
	if IsTrivialAndAlwaysTrue(b) {
		return b
	}
	if IsTrivialAndAlwaysTrue(a) {
		return a
	}
	logger.Debug("combining solutions into an ambiguous one", "a", a, "b", b)

	ga, gb := intoGuidance(a), intoGuidance(b)
	switch ga := ga.(type) {
	case Definite:
		switch gb := gb.(type) {
		case Definite:
			if ga.Subst.Key() == gb.Subst.Key() {
				return Ambiguous{Guidance: ga}
			}
		case Suggested:
			if ga.Subst.Key() == gb.Subst.Key() {
				return Ambiguous{Guidance: gb}
			}
		}
	case Suggested:
		switch gb := gb.(type) {
		case Definite:
			if ga.Subst.Key() == gb.Subst.Key() {
				return Ambiguous{Guidance: ga}
			}
		case Suggested:
			if ga.Subst.Key() == gb.Subst.Key() {
				return Ambiguous{Guidance: ga}
			}
		}
	}
	return ambiguousUnknown
}
