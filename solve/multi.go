package solve

import (
	"context"
	"errors"
	"fmt"

	"github.com/cottand/traitsolve/infer"
	"github.com/cottand/traitsolve/ir"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ResultKind uint8

const (
	ResultDefinite ResultKind = iota
	ResultAmbiguous
	ResultFloundered
)

// SubstitutionResult is one answer of SolveMultiple
type SubstitutionResult struct {
	Kind ResultKind
	// Subst is unset for ResultFloundered
	Subst ir.Canonical[ir.ConstrainedSubst]
}

func (r SubstitutionResult) String() string {
	switch r.Kind {
	case ResultAmbiguous:
		return "Ambiguous(" + r.Subst.String() + ")"
	case ResultFloundered:
		return "Floundered"
	default:
		return r.Subst.String()
	}
}

// pendingGoal is a goal left to prove on the current derivation, at the
// derivation depth it was introduced at
type pendingGoal struct {
	env   ir.Environment
	goal  ir.Goal
	depth int
	// path holds the domain goals whose clauses introduced this one
	path *derivationFrame
}

// derivationFrame is a domain goal being proven on the current derivation
type derivationFrame struct {
	key         string
	coinductive bool
	parent      *derivationFrame
}

// coinductiveCycle reports whether the goal keyed key is already being
// proven on this path, with only coinductive goals in between
func (f *derivationFrame) coinductiveCycle(key string) bool {
	for frame := f; frame != nil; frame = frame.parent {
		if !frame.coinductive {
			return false
		}
		if frame.key == key {
			return true
		}
	}
	return false
}

// answerSearch enumerates the derivations of a goal depth first, up to a
// bound on the number of clauses chained on a single path
type answerSearch struct {
	solver *Solver
	table  *infer.Table
	subst  ir.Substitution
	bound  int

	constraints []ir.InEnvironment[ir.Constraint]
	// ambiguity counts the undecided steps on the current derivation
	ambiguity int

	// cutoff is set when a derivation was cut short by bound
	cutoff     bool
	floundered bool
}

// SolveMultiple enumerates the answers of goal, calling f with each one and
// whether another answer follows. Answers are found by iterative deepening
// over the length of their derivation, so shorter derivations come first.
//
// Enumeration stops when f returns false, ctx is done, Options.ExpectedAnswers
// answers were produced, or no derivation can produce a new answer.
// SolveMultiple returns false if it was stopped by f.
func (s *Solver) SolveMultiple(ctx context.Context, goal UCanonicalGoal, f func(result SubstitutionResult, hasNext bool) bool) bool {
	ctx, span := tracer.Start(ctx, "Solver.SolveMultiple", trace.WithAttributes(
		attribute.String("goal", goal.String()),
		attribute.String("session", s.session),
	))
	defer span.End()

	s.shouldContinue = func() bool { return ctx.Err() == nil }
	defer func() { s.shouldContinue = nil }()
	defer s.resetOnPanic()
	metrics.queries.Inc()
	s.logger.Info("enumerating answers", "goal", goal)

	var (
		pending  *SubstitutionResult
		produced int
		stopped  bool
		seen     = map[string]bool{}
	)
	// emit holds answers back by one, so f can be told whether another follows
	emit := func(result SubstitutionResult) bool {
		if pending != nil && !f(*pending, true) {
			stopped = true
			return false
		}
		pending = &result
		produced++
		metrics.answers.Inc()
		s.logger.Debug("found answer", "goal", goal, "answer", result)
		return s.opts.ExpectedAnswers == 0 || produced < s.opts.ExpectedAnswers
	}

	for bound := 1; bound <= s.opts.OverflowDepth; bound++ {
		table, subst, instantiated := infer.NewFromCanonical(goal.Universes, goal.Canonical)
		search := &answerSearch{solver: s, table: table, subst: subst, bound: bound}
		before := produced

		completed := search.run([]pendingGoal{{env: instantiated.Env, goal: instantiated.Goal}}, func() bool {
			answer, ok := search.answer()
			if !ok || seen[answer.Subst.Key()] {
				return true
			}
			seen[answer.Subst.Key()] = true
			return emit(answer)
		})

		if search.floundered {
			metrics.floundered.Inc()
			emit(SubstitutionResult{Kind: ResultFloundered})
			break
		}
		if !completed || !s.shouldContinue() {
			break
		}
		if !search.cutoff {
			break
		}
		s.logger.Debug("deepening search", "goal", goal, "bound", bound+1, "new answers", produced-before)
	}

	span.SetAttributes(attribute.Int("answers", produced))
	if stopped {
		return false
	}
	if pending != nil {
		return f(*pending, false)
	}
	return true
}

// SolveFirst returns the answer of goal with the shortest derivation
func (s *Solver) SolveFirst(ctx context.Context, goal UCanonicalGoal) (SubstitutionResult, bool) {
	var first SubstitutionResult
	found := false
	s.SolveMultiple(ctx, goal, func(result SubstitutionResult, _ bool) bool {
		first, found = result, true
		return false
	})
	return first, found
}

// answer reads the current state of the table as an answer. Answers
// mentioning types larger than the maximum size are dropped.
func (a *answerSearch) answer() (SubstitutionResult, bool) {
	if infer.MaxTypeSize(a.table, a.subst) > a.solver.opts.MaxSize {
		return SubstitutionResult{}, false
	}
	constraints := make([]ir.InEnvironment[ir.Constraint], len(a.constraints))
	copy(constraints, a.constraints)
	canonical := infer.Canonicalize(a.table, ir.ConstrainedSubst{Subst: a.subst, Constraints: constraints}).Quantified

	kind := ResultDefinite
	if a.ambiguity > 0 {
		kind = ResultAmbiguous
	}
	return SubstitutionResult{Kind: kind, Subst: canonical}, true
}

// run proves goals in order, calling yield for every complete derivation.
// It returns false as soon as the search must stop.
func (a *answerSearch) run(goals []pendingGoal, yield func() bool) bool {
	if len(goals) == 0 {
		return yield()
	}
	if !a.solver.shouldContinue() {
		return false
	}
	g, rest := goals[0], goals[1:]

	switch goal := g.goal.(type) {
	case ir.Quantified:
		var body ir.Goal
		if goal.Quantifier == ir.ForAll {
			body = infer.InstantiateBindersUniversally(a.table, goal.Body)
		} else {
			body = infer.InstantiateBindersExistentially(a.table, goal.Body)
		}
		return a.run(prepend(rest, pendingGoal{env: g.env, goal: body, depth: g.depth, path: g.path}), yield)

	case ir.Implies:
		return a.run(prepend(rest, pendingGoal{env: g.env.AddClauses(goal.Clauses...), goal: goal.Goal, depth: g.depth, path: g.path}), yield)

	case ir.All:
		subgoals := make([]pendingGoal, len(goal.Goals))
		for i, sub := range goal.Goals {
			subgoals[i] = pendingGoal{env: g.env, goal: sub, depth: g.depth, path: g.path}
		}
		return a.run(prepend(rest, subgoals...), yield)

	case ir.Eq:
		return a.tryUnification(rest, g.depth, g.path, yield, func() (infer.UnificationResult, error) {
			return a.table.Unify(g.env, goal.A, goal.B)
		})

	case ir.CannotProve:
		a.ambiguity++
		defer func() { a.ambiguity-- }()
		return a.run(rest, yield)

	case ir.Not:
		answer, err := a.solver.refute(a.table, ir.NewInEnvironment(g.env, goal.Goal))
		if err != nil {
			return true
		}
		if answer == negativeAmbiguous {
			a.ambiguity++
			defer func() { a.ambiguity-- }()
		}
		return a.run(rest, yield)

	case ir.Domain:
		return a.resolve(g, goal.Goal, rest, yield)

	default:
		panic(fmt.Sprintf("unexpected goal %T", goal))
	}
}

// resolve tries every clause for goal in turn. A coinductive goal already
// being proven on its own derivation path is assumed to hold.
func (a *answerSearch) resolve(g pendingGoal, goal ir.DomainGoal, rest []pendingGoal, yield func() bool) bool {
	key := a.goalKey(g.env, goal)
	coinductive := isCoinductiveGoal(a.solver.db, ir.Domain{Goal: goal})
	if coinductive && g.path.coinductiveCycle(key) {
		a.solver.logger.Debug("coinductive cycle", "goal", goal)
		return a.run(rest, yield)
	}
	if g.depth >= a.bound {
		a.cutoff = true
		return true
	}
	if infer.MaxTypeSize(a.table, goal) > a.solver.opts.MaxSize {
		a.ambiguity++
		defer func() { a.ambiguity-- }()
		return a.run(rest, yield)
	}

	clauses, err := a.solver.clausesFor(g.env, infer.Resolve(a.table, goal))
	if errors.Is(err, ir.ErrFloundered) {
		a.floundered = true
		return false
	}
	if err != nil {
		panic(fmt.Sprintf("program clauses for %s: %v", goal, err))
	}

	path := &derivationFrame{key: key, coinductive: coinductive, parent: g.path}
	for _, clause := range clauses {
		cont := a.tryUnification(rest, g.depth+1, path, yield, func() (infer.UnificationResult, error) {
			implication := infer.InstantiateBindersExistentially(a.table, clause.Binders)
			result, err := a.table.UnifyDomainGoals(g.env, goal, implication.Consequence)
			if err != nil {
				return result, err
			}
			for _, condition := range implication.Conditions {
				result.Goals = append(result.Goals, ir.NewInEnvironment(g.env, condition))
			}
			return result, nil
		})
		if !cont {
			return false
		}
	}
	return true
}

// goalKey identifies goal the way the search graph does
func (a *answerSearch) goalKey(env ir.Environment, goal ir.DomainGoal) string {
	canonical := infer.Canonicalize(a.table, ir.NewInEnvironment[ir.Goal](env, ir.Domain{Goal: goal}))
	return infer.UCanonicalize(canonical.Quantified).Quantified.Key()
}

// tryUnification runs unify in a snapshot and, if it succeeds, proves the
// goals it produced at depth followed by rest. The table is rolled back
// afterwards, so the caller can try an alternative.
func (a *answerSearch) tryUnification(rest []pendingGoal, depth int, path *derivationFrame, yield func() bool, unify func() (infer.UnificationResult, error)) bool {
	snapshot := a.table.Snapshot()
	defer a.table.RollbackTo(snapshot)

	result, err := unify()
	if err != nil {
		return true
	}

	constraintsLen := len(a.constraints)
	a.constraints = append(a.constraints, result.Constraints...)
	defer func() { a.constraints = a.constraints[:constraintsLen] }()

	subgoals := make([]pendingGoal, len(result.Goals))
	for i, sub := range result.Goals {
		subgoals[i] = pendingGoal{env: sub.Env, goal: sub.Goal, depth: depth, path: path}
	}
	return a.run(prepend(rest, subgoals...), yield)
}

func prepend(rest []pendingGoal, goals ...pendingGoal) []pendingGoal {
	result := make([]pendingGoal, 0, len(goals)+len(rest))
	return append(append(result, goals...), rest...)
}
