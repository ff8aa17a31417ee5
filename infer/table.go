// Package infer implements the inference table: inference variables with
// union-find, universe tracking, unification, and conversion between open
// values and their canonical forms.
package infer

import (
	"errors"
	"fmt"

	"github.com/cottand/traitsolve/internal/log"
	"github.com/cottand/traitsolve/ir"
	"github.com/cottand/traitsolve/util"
)

var logger = log.DefaultLogger.With("section", "infer")

// ErrNoSolution is returned when two values cannot be unified
var ErrNoSolution = errors.New("no solution")

// varData is one node of the union-find structure. Only roots carry a
// meaningful value, universe and rank.
type varData struct {
	parent   ir.InferenceVar
	rank     uint32
	value    ir.GenericArg // nil while unbound
	universe ir.UniverseIndex
	kind     ir.VariableKind
}

type undoEntry struct {
	index ir.InferenceVar
	old   varData
}

// Table owns a set of inference variables. Values of ir.Var are only
// meaningful to the Table that created them.
//
// Every mutation is recorded while a snapshot is open, so that RollbackTo
// restores the table exactly as it was.
type Table struct {
	vars          []varData
	undoLog       []undoEntry
	openSnapshots int
	maxUniverse   ir.UniverseIndex
}

// Snapshot is a point the table can be rolled back to. Snapshots must be
// committed or rolled back in the reverse order they were taken.
type Snapshot struct {
	undoLen     int
	varsLen     int
	maxUniverse ir.UniverseIndex
	depth       int
}

func NewTable() *Table {
	return &Table{}
}

// NewFromCanonical creates a table with enough universes to host value,
// and instantiates value's binders with fresh variables
func NewFromCanonical[T ir.Foldable[T]](universes int, value ir.Canonical[T]) (*Table, ir.Substitution, T) {
	t := NewTable()
	for i := 1; i < universes; i++ {
		t.NewUniverse()
	}
	subst := t.FreshSubst(value.Binders)
	return t, subst, value.Instantiate(subst)
}

func (t *Table) MaxUniverse() ir.UniverseIndex { return t.maxUniverse }

// NewUniverse creates a universe that can see every existing universe
func (t *Table) NewUniverse() ir.UniverseIndex {
	t.maxUniverse = t.maxUniverse.Next()
	logger.Debug("created new universe", "universe", t.maxUniverse)
	return t.maxUniverse
}

// NewVariable creates an unbound variable of the given kind living in universe
func (t *Table) NewVariable(universe ir.UniverseIndex, kind ir.VariableKind) ir.Var {
	index := ir.InferenceVar(len(t.vars))
	t.vars = append(t.vars, varData{parent: index, universe: universe, kind: kind})
	return ir.Var{Index: index, VarKind: kind}
}

// FreshSubst creates one variable per binder, in the binder's universe
func (t *Table) FreshSubst(binders ir.CanonicalVarKinds) ir.Substitution {
	subst := make(ir.Substitution, len(binders))
	for i, b := range binders {
		subst[i] = t.NewVariable(b.Universe, b.Kind)
	}
	return subst
}

func (t *Table) Snapshot() Snapshot {
	t.openSnapshots++
	return Snapshot{
		undoLen:     len(t.undoLog),
		varsLen:     len(t.vars),
		maxUniverse: t.maxUniverse,
		depth:       t.openSnapshots,
	}
}

func (t *Table) checkSnapshot(s Snapshot) {
	if s.depth != t.openSnapshots {
		panic(fmt.Sprintf("snapshot %d closed out of order, %d snapshots open", s.depth, t.openSnapshots))
	}
}

// RollbackTo undoes every change made since s was taken, including the
// creation of variables and universes
func (t *Table) RollbackTo(s Snapshot) {
	t.checkSnapshot(s)
	for entry := range util.Reverse(t.undoLog[s.undoLen:]) {
		if int(entry.index) < len(t.vars) {
			t.vars[entry.index] = entry.old
		}
	}
	t.undoLog = t.undoLog[:s.undoLen]
	t.vars = t.vars[:s.varsLen]
	t.maxUniverse = s.maxUniverse
	t.openSnapshots--
}

// Commit keeps the changes made since s was taken
func (t *Table) Commit(s Snapshot) {
	t.checkSnapshot(s)
	t.openSnapshots--
	if t.openSnapshots == 0 {
		t.undoLog = t.undoLog[:0]
	}
}

// CommitIfOK runs op inside a snapshot, which is committed if op succeeds
// and rolled back otherwise
func CommitIfOK[R any](t *Table, op func() (R, error)) (R, error) {
	snapshot := t.Snapshot()
	r, err := op()
	if err != nil {
		t.RollbackTo(snapshot)
		return r, err
	}
	t.Commit(snapshot)
	return r, nil
}

func (t *Table) set(v ir.InferenceVar, data varData) {
	if t.openSnapshots > 0 {
		t.undoLog = append(t.undoLog, undoEntry{index: v, old: t.vars[v]})
	}
	t.vars[v] = data
}

func (t *Table) find(v ir.InferenceVar) ir.InferenceVar {
	for t.vars[v].parent != v {
		v = t.vars[v].parent
	}
	return v
}

// Root returns the representative of v's equivalence class
func (t *Table) Root(v ir.Var) ir.Var {
	return ir.Var{Index: t.find(v.Index), VarKind: v.VarKind}
}

// Unioned returns true if a and b were unified with each other
func (t *Table) Unioned(a, b ir.Var) bool {
	return t.find(a.Index) == t.find(b.Index)
}

// Probe returns the value v is bound to, if any
func (t *Table) Probe(v ir.Var) (ir.GenericArg, bool) {
	root := t.vars[t.find(v.Index)]
	return root.value, root.value != nil
}

// IsBound returns true if v was bound to a value
func (t *Table) IsBound(v ir.Var) bool {
	_, ok := t.Probe(v)
	return ok
}

// UniverseOfUnbound returns the universe of an unbound variable.
// It panics if v is bound.
func (t *Table) UniverseOfUnbound(v ir.Var) ir.UniverseIndex {
	root := t.vars[t.find(v.Index)]
	if root.value != nil {
		panic(fmt.Sprintf("universe of bound variable %v requested", v))
	}
	return root.universe
}

// unionVars merges two unbound variables. The merged variable lives in the
// smaller of the two universes.
func (t *Table) unionVars(a, b ir.Var) {
	ra, rb := t.find(a.Index), t.find(b.Index)
	if ra == rb {
		return
	}
	da, db := t.vars[ra], t.vars[rb]
	if da.value != nil || db.value != nil {
		panic(fmt.Sprintf("union of bound variables %v and %v", a, b))
	}
	universe := min(da.universe, db.universe)
	if da.rank < db.rank {
		ra, rb = rb, ra
		da, db = db, da
	}
	db.parent = ra
	t.set(rb, db)
	da.universe = universe
	if da.rank == db.rank {
		da.rank++
	}
	t.set(ra, da)
}

// bind assigns value to v. Variables are bound at most once.
func (t *Table) bind(v ir.Var, value ir.GenericArg) {
	root := t.find(v.Index)
	data := t.vars[root]
	if data.value != nil {
		panic(fmt.Sprintf("rebinding bound variable %v (was %v, now %v)", v, data.value, value))
	}
	data.value = value
	t.set(root, data)
	logger.Debug("bound variable", "var", v, "value", value)
}

// promote lowers the universe of an unbound variable to universe, if it was higher
func (t *Table) promote(v ir.Var, universe ir.UniverseIndex) {
	root := t.find(v.Index)
	data := t.vars[root]
	if data.value != nil {
		panic(fmt.Sprintf("promoting bound variable %v", v))
	}
	if data.universe <= universe {
		return
	}
	data.universe = universe
	t.set(root, data)
}

// NormalizeShallow returns the value arg is bound to if it is a bound variable,
// and arg otherwise
func (t *Table) NormalizeShallow(arg ir.GenericArg) ir.GenericArg {
	for {
		v, ok := arg.(ir.Var)
		if !ok {
			return arg
		}
		value, bound := t.Probe(v)
		if !bound {
			return t.Root(v)
		}
		arg = value
	}
}

// Resolve replaces every bound variable of value by its value, recursively,
// and every unbound variable by its representative
func Resolve[T ir.Foldable[T]](t *Table, value T) T {
	var folder *ir.Folder
	folder = &ir.Folder{
		Var: func(v ir.Var, outer int) ir.GenericArg {
			value, bound := t.Probe(v)
			if !bound {
				return t.Root(v)
			}
			return ir.ShiftIn(ir.Fold(value, folder), outer)
		},
	}
	return ir.Fold(value, folder)
}

// TypeSize is the number of type nodes of arg once its variables are resolved
func (t *Table) TypeSize(arg ir.GenericArg) int {
	switch arg := t.NormalizeShallow(arg).(type) {
	case ir.Apply:
		size := 1
		for _, sub := range arg.Args {
			size += t.TypeSize(sub)
		}
		return size
	case ir.Alias:
		size := 1
		for _, sub := range arg.Projection.Args {
			size += t.TypeSize(sub)
		}
		return size
	case ir.Ref:
		return 1 + t.TypeSize(arg.Referent)
	default:
		if arg.Kind() == ir.KindType {
			return 1
		}
		return 0
	}
}

// MaxTypeSize is the size of the largest type mentioned in value
func MaxTypeSize[T ir.Foldable[T]](t *Table, value T) int {
	largest := 0
	value.FoldWith(&ir.Folder{
		Arg: func(arg ir.GenericArg, outer int) (ir.GenericArg, bool) {
			largest = max(largest, t.TypeSize(arg))
			return arg, true
		},
	}, 0)
	return largest
}
