package ir

import (
	"fmt"
	"strings"
)

// Canonical is a value closed over its free inference variables: each of
// them was replaced by a Bound variable ^0.i, with i given in order of first
// appearance, and Binders[i] records the kind and universe of that variable.
//
// Two canonical values built by the same canonicalization are equal exactly
// when their String renderings are equal.
type Canonical[T Foldable[T]] struct {
	Binders CanonicalVarKinds
	Value   T
}

func (c Canonical[T]) String() string {
	if len(c.Binders) == 0 {
		return c.Value.String()
	}
	return fmt.Sprintf("for<%s> { %s }", c.Binders, c.Value)
}

// Key identifies the canonical value for caching purposes
func (c Canonical[T]) Key() string { return c.String() }

// Instantiate substitutes args for the binders of c
func (c Canonical[T]) Instantiate(args []GenericArg) T {
	if len(args) != len(c.Binders) {
		panic(fmt.Sprintf("instantiating %d binders with %d arguments", len(c.Binders), len(args)))
	}
	return Substitute(c.Value, args)
}

// TrivialSubstitution maps every binder of c to itself
func (c Canonical[T]) TrivialSubstitution() Substitution {
	return IdentitySubstitution(c.Binders)
}

// UCanonical is a Canonical value whose universes were compacted so that
// it only mentions universes 0..Universes-1.
type UCanonical[T Foldable[T]] struct {
	Canonical[T]
	Universes int
}

func (u UCanonical[T]) String() string {
	return fmt.Sprintf("%s /* %d universes */", u.Canonical, u.Universes)
}

func (u UCanonical[T]) Key() string { return u.String() }

// Substitution maps the binders of a canonical query, in order, to values
type Substitution []GenericArg

func (s Substitution) String() string {
	parts := make([]string, len(s))
	for i, arg := range s {
		parts[i] = fmt.Sprintf("?%d := %s", i, arg)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (s Substitution) FoldWith(f *Folder, outer int) Substitution {
	return foldArgs(f, s, outer)
}

// IdentitySubstitution maps each binder to the corresponding bound variable
func IdentitySubstitution(binders CanonicalVarKinds) Substitution {
	subst := make(Substitution, len(binders))
	for i, b := range binders {
		subst[i] = NewBound(b.Kind, 0, i)
	}
	return subst
}

// IsIdentity returns true if s maps binder i to ^0.i for every i
func (s Substitution) IsIdentity() bool {
	for i, arg := range s {
		bound, ok := arg.(Bound)
		if !ok {
			return false
		}
		if index, ok := bound.IndexIfInnermost(); !ok || index != i {
			return false
		}
	}
	return true
}

// Constraint is a residual region constraint: lifetime A must equal lifetime B
type Constraint struct {
	A, B GenericArg
}

func (c Constraint) String() string { return fmt.Sprintf("%s == %s", c.A, c.B) }

func (c Constraint) FoldWith(f *Folder, outer int) Constraint {
	return Constraint{A: foldArg(f, c.A, outer), B: foldArg(f, c.B, outer)}
}

// ConstrainedSubst is a substitution together with the region constraints
// that must hold for it to be valid
type ConstrainedSubst struct {
	Subst       Substitution
	Constraints []InEnvironment[Constraint]
}

func (c ConstrainedSubst) String() string {
	parts := make([]string, len(c.Constraints))
	for i, constraint := range c.Constraints {
		parts[i] = constraint.String()
	}
	return fmt.Sprintf("substitution %s, lifetime constraints [%s]", c.Subst, strings.Join(parts, ", "))
}

func (c ConstrainedSubst) FoldWith(f *Folder, outer int) ConstrainedSubst {
	var constraints []InEnvironment[Constraint]
	if c.Constraints != nil {
		constraints = make([]InEnvironment[Constraint], len(c.Constraints))
		for i, constraint := range c.Constraints {
			constraints[i] = constraint.FoldWith(f, outer)
		}
	}
	return ConstrainedSubst{Subst: c.Subst.FoldWith(f, outer), Constraints: constraints}
}
