package infer

import (
	"fmt"

	"github.com/cottand/traitsolve/ir"
)

// UnificationResult holds the side effects of a successful unification:
// goals that must still be proven (to equate projections) and region
// constraints that must hold.
type UnificationResult struct {
	Goals       []ir.InEnvironment[ir.Goal]
	Constraints []ir.InEnvironment[ir.Constraint]
}

// Unify equates a and b, binding variables of the table as needed.
// On failure the table is left untouched and ErrNoSolution is returned.
func (t *Table) Unify(env ir.Environment, a, b ir.GenericArg) (UnificationResult, error) {
	return CommitIfOK(t, func() (UnificationResult, error) {
		u := unifier{table: t, env: env}
		if err := u.relate(a, b); err != nil {
			return UnificationResult{}, err
		}
		return u.result(), nil
	})
}

// UnifyDomainGoals equates two domain goals of the same shape
func (t *Table) UnifyDomainGoals(env ir.Environment, a, b ir.DomainGoal) (UnificationResult, error) {
	return CommitIfOK(t, func() (UnificationResult, error) {
		u := unifier{table: t, env: env}
		if err := u.relateDomainGoals(a, b); err != nil {
			return UnificationResult{}, err
		}
		return u.result(), nil
	})
}

type unifier struct {
	table       *Table
	env         ir.Environment
	goals       []ir.InEnvironment[ir.Goal]
	constraints []ir.InEnvironment[ir.Constraint]
}

func (u *unifier) result() UnificationResult {
	return UnificationResult{Goals: u.goals, Constraints: u.constraints}
}

func (u *unifier) pushAliasEq(alias ir.ProjectionTy, ty ir.GenericArg) {
	goal := ir.Domain{Goal: ir.AliasEq{Alias: alias, Ty: ty}}
	u.goals = append(u.goals, ir.NewInEnvironment[ir.Goal](u.env, goal))
}

func (u *unifier) pushLifetimeEq(a, b ir.GenericArg) {
	u.constraints = append(u.constraints, ir.NewInEnvironment(u.env, ir.Constraint{A: a, B: b}))
}

func (u *unifier) relateDomainGoals(a, b ir.DomainGoal) error {
	switch a := a.(type) {
	case ir.Implemented:
		b, ok := b.(ir.Implemented)
		if !ok || a.Trait != b.Trait {
			return ErrNoSolution
		}
		return u.relateAll(a.Args, b.Args)
	case ir.AliasEq:
		b, ok := b.(ir.AliasEq)
		if !ok {
			return ErrNoSolution
		}
		if err := u.relateProjections(a.Alias, b.Alias); err != nil {
			return err
		}
		return u.relate(a.Ty, b.Ty)
	case ir.Normalize:
		b, ok := b.(ir.Normalize)
		if !ok {
			return ErrNoSolution
		}
		if err := u.relateProjections(a.Alias, b.Alias); err != nil {
			return err
		}
		return u.relate(a.Ty, b.Ty)
	default:
		panic(fmt.Sprintf("unexpected domain goal %T", a))
	}
}

// relateProjections equates the projections structurally, which is only
// correct when matching a goal against a clause consequence
func (u *unifier) relateProjections(a, b ir.ProjectionTy) error {
	if a.Trait != b.Trait || a.Assoc != b.Assoc {
		return ErrNoSolution
	}
	return u.relateAll(a.Args, b.Args)
}

func (u *unifier) relateAll(as, bs []ir.GenericArg) error {
	if len(as) != len(bs) {
		return ErrNoSolution
	}
	for i := range as {
		if err := u.relate(as[i], bs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (u *unifier) relate(a, b ir.GenericArg) error {
	a = u.table.NormalizeShallow(a)
	b = u.table.NormalizeShallow(b)
	if a.Kind() != b.Kind() {
		return ErrNoSolution
	}
	switch a.Kind() {
	case ir.KindType:
		return u.relateTypes(a, b)
	case ir.KindLifetime:
		u.relateLifetimes(a, b)
		return nil
	case ir.KindConst:
		return u.relateConsts(a, b)
	default:
		panic(fmt.Sprintf("unexpected kind %v", a.Kind()))
	}
}

func (u *unifier) relateTypes(a, b ir.GenericArg) error {
	aVar, aIsVar := a.(ir.Var)
	bVar, bIsVar := b.(ir.Var)
	aAlias, aIsAlias := a.(ir.Alias)
	bAlias, bIsAlias := b.(ir.Alias)

	switch {
	case aIsVar && bIsVar:
		u.table.unionVars(aVar, bVar)
		return nil

	case aIsAlias && bIsAlias:
		// both projections must normalize to the same, yet unknown, type
		fresh := u.table.NewVariable(u.table.maxUniverse, ir.KindType)
		u.pushAliasEq(aAlias.Projection, fresh)
		u.pushAliasEq(bAlias.Projection, fresh)
		return nil
	case aIsAlias:
		u.pushAliasEq(aAlias.Projection, b)
		return nil
	case bIsAlias:
		u.pushAliasEq(bAlias.Projection, a)
		return nil

	case aIsVar:
		return u.bindVar(aVar, b)
	case bIsVar:
		return u.bindVar(bVar, a)
	}

	switch a := a.(type) {
	case ir.Placeholder:
		if b, ok := b.(ir.Placeholder); ok && a == b {
			return nil
		}
		return ErrNoSolution
	case ir.Apply:
		b, ok := b.(ir.Apply)
		if !ok || a.Name != b.Name {
			return ErrNoSolution
		}
		return u.relateAll(a.Args, b.Args)
	case ir.Ref:
		b, ok := b.(ir.Ref)
		if !ok {
			return ErrNoSolution
		}
		u.relateLifetimes(u.table.NormalizeShallow(a.Lifetime), u.table.NormalizeShallow(b.Lifetime))
		return u.relate(a.Referent, b.Referent)
	case ir.Bound:
		panic(fmt.Sprintf("unifying escaping bound variable %v", a))
	default:
		panic(fmt.Sprintf("unexpected type %T", a))
	}
}

// relateLifetimes never fails: lifetimes that cannot be equated directly
// produce a region constraint instead
func (u *unifier) relateLifetimes(a, b ir.GenericArg) {
	aVar, aIsVar := a.(ir.Var)
	bVar, bIsVar := b.(ir.Var)
	switch {
	case aIsVar && bIsVar:
		u.table.unionVars(aVar, bVar)
	case aIsVar:
		u.relateVarLifetime(aVar, a, b)
	case bIsVar:
		u.relateVarLifetime(bVar, b, a)
	default:
		if a.String() != b.String() {
			u.pushLifetimeEq(a, b)
		}
	}
}

func (u *unifier) relateVarLifetime(v ir.Var, varArg, value ir.GenericArg) {
	universe := u.table.UniverseOfUnbound(v)
	if p, ok := value.(ir.Placeholder); ok && !universe.CanSee(p.Universe) {
		logger.Debug("lifetime variable cannot see placeholder, pushing constraint",
			"var", v, "universe", universe, "placeholder", p)
		u.pushLifetimeEq(varArg, value)
		return
	}
	u.table.bind(v, value)
}

func (u *unifier) relateConsts(a, b ir.GenericArg) error {
	aVar, aIsVar := a.(ir.Var)
	bVar, bIsVar := b.(ir.Var)
	switch {
	case aIsVar && bIsVar:
		u.table.unionVars(aVar, bVar)
		return nil
	case aIsVar:
		return u.bindVar(aVar, b)
	case bIsVar:
		return u.bindVar(bVar, a)
	}
	switch a := a.(type) {
	case ir.ConstValue:
		if b, ok := b.(ir.ConstValue); ok && a.Value == b.Value {
			return nil
		}
		return ErrNoSolution
	case ir.Placeholder:
		if b, ok := b.(ir.Placeholder); ok && a == b {
			return nil
		}
		return ErrNoSolution
	default:
		panic(fmt.Sprintf("unexpected const %T", a))
	}
}

// bindVar binds v to value after checking that value neither mentions v
// nor names anything v's universe cannot see
func (u *unifier) bindVar(v ir.Var, value ir.GenericArg) error {
	universe := u.table.UniverseOfUnbound(v)
	checked, err := u.occursCheck(v, universe, value)
	if err != nil {
		logger.Debug("occurs check failed", "var", v, "value", value)
		return err
	}
	u.table.bind(v, checked)
	return nil
}

func (u *unifier) occursCheck(v ir.Var, universe ir.UniverseIndex, value ir.GenericArg) (ir.GenericArg, error) {
	var err error
	var folder *ir.Folder
	folder = &ir.Folder{
		Var: func(w ir.Var, outer int) ir.GenericArg {
			if err != nil {
				return w
			}
			if bound, ok := u.table.Probe(w); ok {
				return ir.ShiftIn(ir.Fold(bound, folder), outer)
			}
			if u.table.Unioned(v, w) {
				err = ErrNoSolution
				return w
			}
			// ?A = Foo<?B> where ?B lives in a higher universe than ?A is
			// fine, as long as ?B is promoted to ?A's universe
			u.table.promote(w, universe)
			return u.table.Root(w)
		},
		Placeholder: func(p ir.Placeholder, outer int) ir.GenericArg {
			if err != nil || universe.CanSee(p.Universe) {
				return p
			}
			if p.VarKind != ir.KindLifetime {
				err = ErrNoSolution
				return p
			}
			// exists<T> forall<'b> ?T = Foo<'b> might still hold if 'b is
			// related to a lifetime T can name: introduce 'x = 'b
			tickX := u.table.NewVariable(universe, ir.KindLifetime)
			u.pushLifetimeEq(tickX, p)
			return tickX
		},
	}
	checked := ir.Fold(value, folder)
	return checked, err
}
