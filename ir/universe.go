package ir

import (
	"fmt"
	"strings"
)

// UniverseIndex ranks the scopes introduced by universal quantifiers.
// A name from universe U is visible from every universe >= U.
type UniverseIndex uint32

const RootUniverse UniverseIndex = 0

func (u UniverseIndex) Next() UniverseIndex { return u + 1 }

// CanSee returns true when names created in other may appear in values
// assigned to variables living in u
func (u UniverseIndex) CanSee(other UniverseIndex) bool { return u >= other }

func (u UniverseIndex) String() string { return fmt.Sprintf("U%d", uint32(u)) }

type VariableKind uint8

const (
	KindType VariableKind = iota
	KindLifetime
	KindConst
)

func (k VariableKind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindLifetime:
		return "lifetime"
	case KindConst:
		return "const"
	default:
		panic(fmt.Sprintf("unknown variable kind %d", k))
	}
}

// prefix used when rendering variables of this kind
func (k VariableKind) sigil() string {
	switch k {
	case KindLifetime:
		return "'"
	case KindConst:
		return "#"
	default:
		return ""
	}
}

// CanonicalVarKind is the binder of a canonical value: the kind of the
// variable that was abstracted away, and the universe it lived in.
type CanonicalVarKind struct {
	Kind     VariableKind
	Universe UniverseIndex
}

func (c CanonicalVarKind) String() string {
	return fmt.Sprintf("%s?%s", c.Kind.sigil(), c.Universe)
}

type CanonicalVarKinds []CanonicalVarKind

func (ks CanonicalVarKinds) String() string {
	parts := make([]string, len(ks))
	for i, k := range ks {
		parts[i] = k.String()
	}
	return strings.Join(parts, ",")
}

// MaxUniverse returns the largest universe named by the binders, or the root universe
func (ks CanonicalVarKinds) MaxUniverse() UniverseIndex {
	u := RootUniverse
	for _, k := range ks {
		u = max(u, k.Universe)
	}
	return u
}

// BoundVar refers to the Index-th variable of the binder Debruijn levels out
// from where it appears: ^0.i is bound by the innermost enclosing binder.
type BoundVar struct {
	Debruijn int
	Index    int
}

func (b BoundVar) String() string {
	return fmt.Sprintf("^%d.%d", b.Debruijn, b.Index)
}

// IndexIfInnermost returns the index of b if it is bound by the innermost binder
func (b BoundVar) IndexIfInnermost() (int, bool) {
	if b.Debruijn == 0 {
		return b.Index, true
	}
	return 0, false
}
