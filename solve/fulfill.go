package solve

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/cottand/traitsolve/infer"
	"github.com/cottand/traitsolve/ir"
	"github.com/cottand/traitsolve/util"
	"github.com/cottand/traitsolve/util/hset"
)

var fulfillLogger = logger.With("section", "fulfill")

type obligationKind uint8

const (
	prove obligationKind = iota
	refute
)

type obligation struct {
	kind obligationKind
	goal ir.InEnvironment[ir.Goal]
}

func (o obligation) String() string {
	if o.kind == refute {
		return "refute " + o.goal.String()
	}
	return "prove " + o.goal.String()
}

// positiveSolution is the answer to a proven subgoal, along with what is
// needed to map it back into the table the subgoal came from
type positiveSolution struct {
	freeVars  []ir.GenericArg
	universes infer.UniverseMap
	solution  Solution
}

type negativeSolution uint8

const (
	refuted negativeSolution = iota
	negativeAmbiguous
)

type constraintHasher struct{}

func (constraintHasher) Hash(c ir.InEnvironment[ir.Constraint]) uint32 {
	return uint32(xxhash.Sum64String(c.String()))
}

func (constraintHasher) Equal(a, b ir.InEnvironment[ir.Constraint]) bool {
	return a.String() == b.String()
}

// fulfill proves a set of obligations in a single inference table, which
// holds the instantiated variables of the goal being solved
type fulfill struct {
	solver      *Solver
	table       *infer.Table
	subst       ir.Substitution
	obligations util.Stack[obligation]
	constraints *hset.HSet[ir.InEnvironment[ir.Constraint]]
	// cannotProve is set when some obligation is known to be undecidable,
	// so the result can at best be ambiguous
	cannotProve bool
}

func newFulfill(solver *Solver, table *infer.Table, subst ir.Substitution) *fulfill {
	return &fulfill{
		solver:      solver,
		table:       table,
		subst:       subst,
		constraints: hset.Empty[ir.InEnvironment[ir.Constraint]](constraintHasher{}),
	}
}

// newFulfillWithClause sets up the proof of goal through clause: the
// consequence of the clause is unified with goal, and its conditions
// become obligations
func newFulfillWithClause(solver *Solver, goal UCanonicalGoal, clause ir.ProgramClause) (*fulfill, error) {
	table, subst, instantiated := infer.NewFromCanonical(goal.Universes, goal.Canonical)
	f := newFulfill(solver, table, subst)

	domain, ok := instantiated.Goal.(ir.Domain)
	if !ok {
		panic(fmt.Sprintf("solving %s from clauses", instantiated.Goal))
	}
	implication := infer.InstantiateBindersExistentially(table, clause.Binders)
	if err := f.unifyDomainGoals(instantiated.Env, domain.Goal, implication.Consequence); err != nil {
		return nil, err
	}
	for _, condition := range implication.Conditions {
		if err := f.pushGoal(instantiated.Env, condition); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// newFulfillWithSimplification sets up the proof of a goal that is not a
// domain goal, by breaking it into its parts
func newFulfillWithSimplification(solver *Solver, goal UCanonicalGoal) (*fulfill, error) {
	table, subst, instantiated := infer.NewFromCanonical(goal.Universes, goal.Canonical)
	f := newFulfill(solver, table, subst)
	if err := f.pushGoal(instantiated.Env, instantiated.Goal); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *fulfill) pushObligation(o obligation) {
	if size := infer.MaxTypeSize(f.table, o.goal); size > f.solver.opts.MaxSize {
		fulfillLogger.Debug("goal too large, giving up on it", "goal", o.goal, "size", size)
		f.cannotProve = true
		return
	}
	f.obligations.Push(o)
}

func (f *fulfill) addUnificationResult(result infer.UnificationResult) {
	for _, goal := range result.Goals {
		f.pushObligation(obligation{kind: prove, goal: goal})
	}
	f.constraints.Add(result.Constraints...)
}

func (f *fulfill) unify(env ir.Environment, a, b ir.GenericArg) error {
	result, err := f.table.Unify(env, a, b)
	if err != nil {
		return err
	}
	f.addUnificationResult(result)
	return nil
}

func (f *fulfill) unifyDomainGoals(env ir.Environment, a, b ir.DomainGoal) error {
	result, err := f.table.UnifyDomainGoals(env, a, b)
	if err != nil {
		return err
	}
	f.addUnificationResult(result)
	return nil
}

// pushGoal breaks goal down into obligations
func (f *fulfill) pushGoal(env ir.Environment, goal ir.Goal) error {
	switch goal := goal.(type) {
	case ir.Quantified:
		var body ir.Goal
		if goal.Quantifier == ir.ForAll {
			body = infer.InstantiateBindersUniversally(f.table, goal.Body)
		} else {
			body = infer.InstantiateBindersExistentially(f.table, goal.Body)
		}
		return f.pushGoal(env, body)
	case ir.Implies:
		return f.pushGoal(env.AddClauses(goal.Clauses...), goal.Goal)
	case ir.All:
		for _, sub := range goal.Goals {
			if err := f.pushGoal(env, sub); err != nil {
				return err
			}
		}
	case ir.Not:
		f.pushObligation(obligation{kind: refute, goal: ir.NewInEnvironment(env, goal.Goal)})
	case ir.Domain:
		f.pushObligation(obligation{kind: prove, goal: ir.NewInEnvironment[ir.Goal](env, goal)})
	case ir.Eq:
		return f.unify(env, goal.A, goal.B)
	case ir.CannotProve:
		f.cannotProve = true
	default:
		panic(fmt.Sprintf("unexpected goal %T", goal))
	}
	return nil
}

func (f *fulfill) prove(goal ir.InEnvironment[ir.Goal], minimums *Minimums) positiveSolution {
	canonical := infer.Canonicalize(f.table, goal)
	uCanonical := infer.UCanonicalize(canonical.Quantified)
	return positiveSolution{
		freeVars:  canonical.FreeVars,
		universes: uCanonical.Universes,
		solution:  f.solver.solveGoal(uCanonical.Quantified, minimums),
	}
}

// refute tries to show that goal has no solution. It fails with
// infer.ErrNoSolution if goal definitely holds.
func (f *fulfill) refute(goal ir.InEnvironment[ir.Goal]) (negativeSolution, error) {
	return f.solver.refute(f.table, goal)
}

// applySolution unifies the free variables of a proven subgoal with the
// values its solution assigns to them
func (f *fulfill) applySolution(freeVars []ir.GenericArg, universes infer.UniverseMap, subst ir.Canonical[ir.ConstrainedSubst]) {
	mapped := infer.MapFromCanonical(universes, subst)
	instantiated := infer.InstantiateCanonical(f.table, mapped)
	f.constraints.Add(instantiated.Constraints...)

	if len(freeVars) != len(instantiated.Subst) {
		panic(fmt.Sprintf("solution %s does not match the %d free variables of its goal", subst, len(freeVars)))
	}
	for i, v := range freeVars {
		if err := f.unify(ir.NewEnvironment(), v, instantiated.Subst[i]); err != nil {
			panic(fmt.Sprintf("cannot apply solution %s: %s does not unify with %s", subst, v, instantiated.Subst[i]))
		}
	}
}

// run proves obligations until none is left or no progress is made. It
// returns true if every obligation was discharged.
func (f *fulfill) run(minimums *Minimums) (bool, error) {
	for progress := true; progress; {
		progress = false
		var ambiguous []obligation

		for f.obligations.Len() > 0 {
			o, _ := f.obligations.Pop()
			isAmbiguous := false

			switch o.kind {
			case prove:
				positive := f.prove(o.goal, minimums)
				if positive.solution == nil {
					fulfillLogger.Debug("obligation has no solution", "obligation", o)
					return false, infer.ErrNoSolution
				}
				if subst, ok := DefiniteSubst(positive.solution); ok {
					if !subst.Value.Subst.IsIdentity() || len(subst.Value.Constraints) > 0 {
						f.applySolution(positive.freeVars, positive.universes, subst)
						progress = true
					}
				}
				isAmbiguous = IsAmbiguous(positive.solution)
			case refute:
				answer, err := f.refute(o.goal)
				if err != nil {
					fulfillLogger.Debug("obligation could not be refuted", "obligation", o)
					return false, err
				}
				isAmbiguous = answer == negativeAmbiguous
			}

			if isAmbiguous {
				ambiguous = append(ambiguous, o)
			}
		}

		for _, o := range ambiguous {
			f.obligations.Push(o)
		}
	}
	return f.obligations.Len() == 0, nil
}

// solve proves every obligation and turns the state of the table into a
// solution for the goal this fulfill was created for
func (f *fulfill) solve(minimums *Minimums) Solution {
	complete, err := f.run(minimums)
	if err != nil {
		return nil
	}
	if f.cannotProve {
		return ambiguousUnknown
	}
	if complete {
		constrained := ir.ConstrainedSubst{Subst: f.subst, Constraints: f.constraints.Slice()}
		return Unique{infer.Canonicalize(f.table, constrained).Quantified}
	}

	canonicalSubst := infer.Canonicalize(f.table, f.subst).Quantified
	if !canonicalSubst.Value.IsIdentity() {
		return Ambiguous{Guidance: Definite{Subst: canonicalSubst}}
	}

	// nothing is known for sure: use the first subgoal that suggests
	// something as a hint
	for f.obligations.Len() > 0 {
		o, _ := f.obligations.Pop()
		if o.kind != prove {
			continue
		}
		positive := f.prove(o.goal, minimums)
		if subst, ok := ConstrainedSubst(positive.solution); ok {
			f.applySolution(positive.freeVars, positive.universes, subst)
			return Ambiguous{Guidance: Suggested{Subst: infer.Canonicalize(f.table, f.subst).Quantified}}
		}
	}
	return ambiguousUnknown
}
