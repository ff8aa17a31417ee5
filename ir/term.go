package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// GenericArg is a type, a lifetime or a const.
// The set of implementations is closed: Var, Bound, Placeholder, Apply,
// Alias, Ref, Static and ConstValue.
type GenericArg interface {
	fmt.Stringer
	Kind() VariableKind
	FoldWith(f *Folder, outer int) GenericArg
	isGenericArg()
}

var (
	_ GenericArg = Var{}
	_ GenericArg = Bound{}
	_ GenericArg = Placeholder{}
	_ GenericArg = Apply{}
	_ GenericArg = Alias{}
	_ GenericArg = Ref{}
	_ GenericArg = Static{}
	_ GenericArg = ConstValue{}
)

// InferenceVar indexes into the inference table that created it
type InferenceVar uint32

// Var is an existential inference variable
type Var struct {
	Index   InferenceVar
	VarKind VariableKind
}

// Bound is a variable bound by an enclosing binder (a quantified goal,
// a program clause, or the binders of a Canonical value)
type Bound struct {
	BoundVar
	VarKind VariableKind
}

// Placeholder is an opaque stand-in for a universally quantified variable (a skolem)
type Placeholder struct {
	Universe UniverseIndex
	Index    int
	VarKind  VariableKind
}

// Apply is a nominal type applied to its generic arguments, like Vec<Int>
type Apply struct {
	Name string
	Args []GenericArg
}

// Alias is an associated type projection used as a type, like <T as Iterator>::Item
type Alias struct {
	Projection ProjectionTy
}

// Ref is a reference type &'a T
type Ref struct {
	Lifetime GenericArg
	Referent GenericArg
}

// Static is the 'static lifetime
type Static struct{}

type ConstValue struct {
	Value int64
}

func (Var) isGenericArg()         {}
func (Bound) isGenericArg()       {}
func (Placeholder) isGenericArg() {}
func (Apply) isGenericArg()       {}
func (Alias) isGenericArg()       {}
func (Ref) isGenericArg()         {}
func (Static) isGenericArg()      {}
func (ConstValue) isGenericArg()  {}

func (v Var) Kind() VariableKind         { return v.VarKind }
func (b Bound) Kind() VariableKind       { return b.VarKind }
func (p Placeholder) Kind() VariableKind { return p.VarKind }
func (Apply) Kind() VariableKind         { return KindType }
func (Alias) Kind() VariableKind         { return KindType }
func (Ref) Kind() VariableKind           { return KindType }
func (Static) Kind() VariableKind        { return KindLifetime }
func (ConstValue) Kind() VariableKind    { return KindConst }

func (v Var) String() string {
	return fmt.Sprintf("%s?%d", v.VarKind.sigil(), v.Index)
}
func (b Bound) String() string { return b.VarKind.sigil() + b.BoundVar.String() }
func (p Placeholder) String() string {
	return fmt.Sprintf("%s!%d_%d", p.VarKind.sigil(), uint32(p.Universe), p.Index)
}
func (t Apply) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	return t.Name + "<" + joinArgs(t.Args) + ">"
}
func (t Alias) String() string      { return t.Projection.String() }
func (t Ref) String() string        { return "&" + t.Lifetime.String() + " " + t.Referent.String() }
func (Static) String() string       { return "'static" }
func (c ConstValue) String() string { return strconv.FormatInt(c.Value, 10) }

func joinArgs(args []GenericArg) string {
	sb := strings.Builder{}
	for i, arg := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.String())
	}
	return sb.String()
}

// NewType is a shorthand for an Apply type
func NewType(name string, args ...GenericArg) Apply {
	return Apply{Name: name, Args: args}
}

// PlaceholderName is the name of the type standing for the associated type
// assoc of trait when it cannot be normalized
func PlaceholderName(trait, assoc string) string {
	return fmt.Sprintf("(%s::%s)", trait, assoc)
}

func NewBound(kind VariableKind, debruijn, index int) Bound {
	return Bound{BoundVar: BoundVar{Debruijn: debruijn, Index: index}, VarKind: kind}
}

// ProjectionTy names the associated type Assoc of trait Trait, where Args
// are the trait's arguments, starting with the self type.
type ProjectionTy struct {
	Trait string
	Assoc string
	Args  []GenericArg
}

func (p ProjectionTy) SelfType() GenericArg { return p.Args[0] }

func (p ProjectionTy) String() string {
	traitRef := TraitRef{Trait: p.Trait, Args: p.Args}
	return fmt.Sprintf("<%s as %s>::%s", p.SelfType(), traitRef.traitWithParams(), p.Assoc)
}

func (p ProjectionTy) FoldWith(f *Folder, outer int) ProjectionTy {
	return ProjectionTy{Trait: p.Trait, Assoc: p.Assoc, Args: foldArgs(f, p.Args, outer)}
}

// TraitRef is Args[0]: Trait<Args[1:]...>
type TraitRef struct {
	Trait string
	Args  []GenericArg
}

func (t TraitRef) SelfType() GenericArg { return t.Args[0] }

func (t TraitRef) traitWithParams() string {
	if len(t.Args) <= 1 {
		return t.Trait
	}
	return t.Trait + "<" + joinArgs(t.Args[1:]) + ">"
}

func (t TraitRef) String() string {
	return fmt.Sprintf("%s: %s", t.SelfType(), t.traitWithParams())
}

func (t TraitRef) FoldWith(f *Folder, outer int) TraitRef {
	return TraitRef{Trait: t.Trait, Args: foldArgs(f, t.Args, outer)}
}
