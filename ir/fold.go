package ir

import "fmt"

// Foldable values can be rebuilt by a Folder. Folding never mutates the
// original value.
type Foldable[T any] interface {
	fmt.Stringer
	FoldWith(f *Folder, outer int) T
}

// Folder rebuilds a value, giving callbacks the chance to replace its leaves.
// A nil callback leaves those leaves untouched.
//
// outer is the number of binders crossed between the root of the fold and
// the leaf being visited, so a Bound with Debruijn >= outer is free in the
// folded value.
//
// Arg, when set, sees every generic argument before it is folded, outermost
// first. If it reports the argument as handled, its replacement is used and
// the argument's children are not visited.
type Folder struct {
	Arg         func(arg GenericArg, outer int) (replacement GenericArg, handled bool)
	Var         func(v Var, outer int) GenericArg
	Bound       func(b Bound, outer int) GenericArg
	Placeholder func(p Placeholder, outer int) GenericArg
}

// Fold is a shorthand for value.FoldWith(f, 0)
func Fold[T Foldable[T]](value T, f *Folder) T {
	return value.FoldWith(f, 0)
}

func (v Var) FoldWith(f *Folder, outer int) GenericArg {
	if f.Var == nil {
		return v
	}
	return f.Var(v, outer)
}

func (b Bound) FoldWith(f *Folder, outer int) GenericArg {
	if f.Bound == nil {
		return b
	}
	return f.Bound(b, outer)
}

func (p Placeholder) FoldWith(f *Folder, outer int) GenericArg {
	if f.Placeholder == nil {
		return p
	}
	return f.Placeholder(p, outer)
}

func (t Apply) FoldWith(f *Folder, outer int) GenericArg {
	return Apply{Name: t.Name, Args: foldArgs(f, t.Args, outer)}
}

func (t Alias) FoldWith(f *Folder, outer int) GenericArg {
	return Alias{Projection: t.Projection.FoldWith(f, outer)}
}

func (t Ref) FoldWith(f *Folder, outer int) GenericArg {
	return Ref{Lifetime: foldArg(f, t.Lifetime, outer), Referent: foldArg(f, t.Referent, outer)}
}

func (s Static) FoldWith(*Folder, int) GenericArg     { return s }
func (c ConstValue) FoldWith(*Folder, int) GenericArg { return c }

func foldArg(f *Folder, arg GenericArg, outer int) GenericArg {
	if f.Arg != nil {
		if replacement, handled := f.Arg(arg, outer); handled {
			return replacement
		}
	}
	return arg.FoldWith(f, outer)
}

func foldArgs(f *Folder, args []GenericArg, outer int) []GenericArg {
	if args == nil {
		return nil
	}
	folded := make([]GenericArg, len(args))
	for i, arg := range args {
		folded[i] = foldArg(f, arg, outer)
	}
	return folded
}

func foldGoals(f *Folder, goals []Goal, outer int) []Goal {
	if goals == nil {
		return nil
	}
	folded := make([]Goal, len(goals))
	for i, g := range goals {
		folded[i] = g.FoldWith(f, outer)
	}
	return folded
}

// ShiftIn adjusts the free bound variables of value so that it can be placed
// under n additional binders
func ShiftIn[T Foldable[T]](value T, n int) T {
	if n == 0 {
		return value
	}
	return value.FoldWith(&Folder{
		Bound: func(b Bound, outer int) GenericArg {
			if b.Debruijn >= outer {
				b.Debruijn += n
			}
			return b
		},
	}, 0)
}

// ShiftOut is the inverse of ShiftIn. It panics if value refers to one of
// the n binders being removed.
func ShiftOut[T Foldable[T]](value T, n int) T {
	if n == 0 {
		return value
	}
	return value.FoldWith(&Folder{
		Bound: func(b Bound, outer int) GenericArg {
			if b.Debruijn >= outer {
				if b.Debruijn-outer < n {
					panic(fmt.Sprintf("cannot shift %v out of %d binders", b, n))
				}
				b.Debruijn -= n
			}
			return b
		},
	}, 0)
}

// Substitute replaces the variables bound by the innermost binder of value
// with args, removing that binder. Variables bound further out are shifted
// out by one level.
func Substitute[T Foldable[T]](value T, args []GenericArg) T {
	return value.FoldWith(&Folder{
		Bound: func(b Bound, outer int) GenericArg {
			switch {
			case b.Debruijn == outer:
				if b.Index >= len(args) {
					panic(fmt.Sprintf("bound variable %v out of range of %d arguments", b, len(args)))
				}
				return ShiftIn(args[b.Index], outer)
			case b.Debruijn > outer:
				b.Debruijn--
				return b
			default:
				return b
			}
		},
	}, 0)
}

// HasFreeVars returns true if value mentions an inference variable
func HasFreeVars[T Foldable[T]](value T) bool {
	found := false
	value.FoldWith(&Folder{
		Var: func(v Var, outer int) GenericArg {
			found = true
			return v
		},
	}, 0)
	return found
}
