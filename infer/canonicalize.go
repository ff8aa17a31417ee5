package infer

import (
	"github.com/cottand/traitsolve/ir"
)

// Canonicalized is the result of canonicalizing a value against a table
type Canonicalized[T ir.Foldable[T]] struct {
	Quantified ir.Canonical[T]
	// FreeVars are the unbound variables that were replaced by the binders
	// of Quantified, in binder order
	FreeVars []ir.GenericArg
	// MaxUniverse is the largest universe of a placeholder mentioned by the value
	MaxUniverse ir.UniverseIndex
}

// Canonicalize resolves bound variables of value and replaces each distinct
// unbound variable with a fresh bound variable, numbered in order of first
// appearance. Two values that differ only by variable naming canonicalize
// to the same result.
func Canonicalize[T ir.Foldable[T]](t *Table, value T) Canonicalized[T] {
	c := canonicalizer{indices: map[ir.InferenceVar]int{}}
	var folder *ir.Folder
	folder = &ir.Folder{
		Var: func(v ir.Var, outer int) ir.GenericArg {
			if bound, ok := t.Probe(v); ok {
				return ir.ShiftIn(ir.Fold(bound, folder), outer)
			}
			root := t.Root(v)
			return ir.NewBound(root.VarKind, outer, c.add(root))
		},
		Placeholder: func(p ir.Placeholder, outer int) ir.GenericArg {
			c.maxUniverse = max(c.maxUniverse, p.Universe)
			return p
		},
	}
	folded := ir.Fold(value, folder)

	binders := make(ir.CanonicalVarKinds, len(c.freeVars))
	freeVars := make([]ir.GenericArg, len(c.freeVars))
	for i, v := range c.freeVars {
		binders[i] = ir.CanonicalVarKind{Kind: v.VarKind, Universe: t.UniverseOfUnbound(v)}
		freeVars[i] = v
	}
	return Canonicalized[T]{
		Quantified:  ir.Canonical[T]{Binders: binders, Value: folded},
		FreeVars:    freeVars,
		MaxUniverse: c.maxUniverse,
	}
}

type canonicalizer struct {
	freeVars    []ir.Var
	indices     map[ir.InferenceVar]int
	maxUniverse ir.UniverseIndex
}

func (c *canonicalizer) add(root ir.Var) int {
	if i, ok := c.indices[root.Index]; ok {
		return i
	}
	i := len(c.freeVars)
	c.indices[root.Index] = i
	c.freeVars = append(c.freeVars, root)
	return i
}
