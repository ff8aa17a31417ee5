package infer

import (
	"github.com/cottand/traitsolve/ir"
)

// InstantiateCanonical replaces the binders of value with fresh variables,
// each created in the universe recorded by its binder
func InstantiateCanonical[T ir.Foldable[T]](t *Table, value ir.Canonical[T]) T {
	return value.Instantiate(t.FreshSubst(value.Binders))
}

// InstantiateBindersExistentially opens binders with fresh variables living
// in the current maximal universe
func InstantiateBindersExistentially[T ir.Foldable[T]](t *Table, binders ir.Binders[T]) T {
	universe := t.maxUniverse
	args := make([]ir.GenericArg, binders.Len())
	for i, kind := range binders.Kinds {
		args[i] = t.NewVariable(universe, kind)
	}
	return ir.Substitute(binders.Value, args)
}

// InstantiateBindersUniversally opens binders with placeholders of a new
// universe. No universe is created when there are no binders.
func InstantiateBindersUniversally[T ir.Foldable[T]](t *Table, binders ir.Binders[T]) T {
	if binders.Len() == 0 {
		return binders.Value
	}
	universe := t.NewUniverse()
	args := make([]ir.GenericArg, binders.Len())
	for i, kind := range binders.Kinds {
		args[i] = ir.Placeholder{Universe: universe, Index: i, VarKind: kind}
	}
	return ir.Substitute(binders.Value, args)
}
