package infer

import (
	"slices"

	"github.com/cottand/traitsolve/ir"
	"github.com/hashicorp/go-set/v3"
)

// UniverseMap maps the compacted universes of a UCanonical value back to the
// universes of the original: compacted universe i is Universes[i].
type UniverseMap struct {
	Universes []ir.UniverseIndex
}

func newUniverseMap() UniverseMap {
	return UniverseMap{Universes: []ir.UniverseIndex{ir.RootUniverse}}
}

func (m *UniverseMap) add(u ir.UniverseIndex) {
	if i, found := slices.BinarySearch(m.Universes, u); !found {
		m.Universes = slices.Insert(m.Universes, i, u)
	}
}

// Len is the number of universes of the compacted value
func (m UniverseMap) Len() int { return len(m.Universes) }

// mapToCanonical maps a universe mentioned by a placeholder. It panics if the
// universe was not collected.
func (m UniverseMap) mapToCanonical(u ir.UniverseIndex) ir.UniverseIndex {
	i, found := slices.BinarySearch(m.Universes, u)
	if !found {
		panic("universe " + u.String() + " missing from universe map")
	}
	return ir.UniverseIndex(i)
}

// mapBinderToCanonical maps the universe of an existential binder to the
// largest compacted universe it can see
func (m UniverseMap) mapBinderToCanonical(u ir.UniverseIndex) ir.UniverseIndex {
	i, found := slices.BinarySearch(m.Universes, u)
	if found {
		return ir.UniverseIndex(i)
	}
	return ir.UniverseIndex(i - 1)
}

// mapFromCanonical maps a compacted universe back. Universes created after
// compaction, beyond the range of the map, are mapped past the largest
// original universe.
func (m UniverseMap) mapFromCanonical(u ir.UniverseIndex) ir.UniverseIndex {
	if int(u) < len(m.Universes) {
		return m.Universes[u]
	}
	last := m.Universes[len(m.Universes)-1]
	diff := int(u) - len(m.Universes) + 1
	return last + ir.UniverseIndex(diff)
}

// UCanonicalized is the result of UCanonicalize
type UCanonicalized[T ir.Foldable[T]] struct {
	Quantified ir.UCanonical[T]
	Universes  UniverseMap
}

// UCanonicalize compacts the universes of value so that only the universes
// it actually mentions remain, numbered 1..n in increasing order. Goals
// that only differ by unrelated universes thus share a cache entry.
func UCanonicalize[T ir.Foldable[T]](value ir.Canonical[T]) UCanonicalized[T] {
	collected := set.New[ir.UniverseIndex](0)
	value.Value.FoldWith(&ir.Folder{
		Placeholder: func(p ir.Placeholder, outer int) ir.GenericArg {
			collected.Insert(p.Universe)
			return p
		},
	}, 0)

	universes := newUniverseMap()
	for u := range collected.Items() {
		universes.add(u)
	}

	binders := make(ir.CanonicalVarKinds, len(value.Binders))
	for i, b := range value.Binders {
		binders[i] = ir.CanonicalVarKind{Kind: b.Kind, Universe: universes.mapBinderToCanonical(b.Universe)}
	}
	mapped := value.Value.FoldWith(&ir.Folder{
		Placeholder: func(p ir.Placeholder, outer int) ir.GenericArg {
			p.Universe = universes.mapToCanonical(p.Universe)
			return p
		},
	}, 0)

	return UCanonicalized[T]{
		Quantified: ir.UCanonical[T]{
			Canonical: ir.Canonical[T]{Binders: binders, Value: mapped},
			Universes: universes.Len(),
		},
		Universes: universes,
	}
}

// MapFromCanonical undoes the universe compaction of UCanonicalize on a value
// produced while solving the compacted goal
func MapFromCanonical[T ir.Foldable[T]](m UniverseMap, value ir.Canonical[T]) ir.Canonical[T] {
	binders := make(ir.CanonicalVarKinds, len(value.Binders))
	for i, b := range value.Binders {
		binders[i] = ir.CanonicalVarKind{Kind: b.Kind, Universe: m.mapFromCanonical(b.Universe)}
	}
	mapped := value.Value.FoldWith(&ir.Folder{
		Placeholder: func(p ir.Placeholder, outer int) ir.GenericArg {
			p.Universe = m.mapFromCanonical(p.Universe)
			return p
		},
	}, 0)
	return ir.Canonical[T]{Binders: binders, Value: mapped}
}
