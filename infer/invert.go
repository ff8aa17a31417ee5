package infer

import (
	"github.com/cottand/traitsolve/ir"
)

// Invert prepares value for being refuted: its placeholders, which stand
// for "any type", become fresh existential variables, so that proving the
// inverted value amounts to finding a counterexample.
//
// Inversion is only possible when value has no unbound inference variables:
// reports false otherwise.
func Invert[T ir.Foldable[T]](t *Table, value T) (T, bool) {
	canonical := Canonicalize(t, value)
	if len(canonical.FreeVars) > 0 {
		var zero T
		return zero, false
	}

	inverted := map[ir.Placeholder]ir.Var{}
	result := canonical.Quantified.Value.FoldWith(&ir.Folder{
		Placeholder: func(p ir.Placeholder, outer int) ir.GenericArg {
			v, ok := inverted[p]
			if !ok {
				v = t.NewVariable(p.Universe, p.VarKind)
				inverted[p] = v
			}
			return v
		},
	}, 0)
	return result, true
}

// InvertThenCanonicalize inverts value and canonicalizes the result
func InvertThenCanonicalize[T ir.Foldable[T]](t *Table, value T) (ir.Canonical[T], bool) {
	snapshot := t.Snapshot()
	defer t.RollbackTo(snapshot)

	inverted, ok := Invert(t, value)
	if !ok {
		return ir.Canonical[T]{}, false
	}
	return Canonicalize(t, inverted).Quantified, true
}
