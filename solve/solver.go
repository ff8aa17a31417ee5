// Package solve implements a recursive, memoizing solver for trait goals.
//
// Goals are solved depth first. Every goal visited is recorded in a search
// graph, so that a goal reaching back to one of its ancestors is detected
// as a cycle. Inductive cycles are solved by fixed-point iteration from the
// cycle's head; cycles made only of coinductive goals assume their head
// holds, and the results relying on that assumption are kept aside until
// the head's own result confirms or refutes it.
package solve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cottand/traitsolve/infer"
	"github.com/cottand/traitsolve/internal/log"
	"github.com/cottand/traitsolve/ir"
	"github.com/cottand/traitsolve/util"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	logger = log.DefaultLogger.With("section", "solve")
	tracer = otel.Tracer("github.com/cottand/traitsolve/solve")
)

// Database is the source of program clauses
type Database interface {
	// ProgramClausesFor returns the clauses of the program whose consequence
	// could match goal. It returns ir.ErrFloundered when it cannot enumerate
	// them, for instance because the self type of goal is unknown.
	// Clauses of env are not included.
	ProgramClausesFor(env ir.Environment, goal ir.DomainGoal) ([]ir.ProgramClause, error)
	// IsCoinductive reports whether goals for trait may assume themselves
	IsCoinductive(trait string) bool
}

const (
	DefaultOverflowDepth = 100
	DefaultMaxSize       = 30
)

type Options struct {
	// OverflowDepth is the maximum number of goals on the stack
	OverflowDepth int
	// MaxSize is the largest type a goal may mention before it is truncated
	MaxSize int
	// ExpectedAnswers stops SolveMultiple once that many answers were
	// produced. Zero means no limit.
	ExpectedAnswers int
	CachingEnabled  bool
	// Cache to store matured results in. When nil and CachingEnabled, the
	// solver creates its own.
	Cache *Cache
}

func DefaultOptions() Options {
	return Options{
		OverflowDepth:  DefaultOverflowDepth,
		MaxSize:        DefaultMaxSize,
		CachingEnabled: true,
	}
}

func (o Options) WithOverflowDepth(depth int) Options {
	o.OverflowDepth = depth
	return o
}

func (o Options) WithMaxSize(size int) Options {
	o.MaxSize = size
	return o
}

func (o Options) WithExpectedAnswers(n int) Options {
	o.ExpectedAnswers = n
	return o
}

func (o Options) WithCaching(enabled bool) Options {
	o.CachingEnabled = enabled
	return o
}

// WithSharedCache makes the solver store its results in cache, which may
// be shared with other solvers
func (o Options) WithSharedCache(cache *Cache) Options {
	o.Cache = cache
	o.CachingEnabled = true
	return o
}

// Solver solves goals against a Database. A Solver is not safe for
// concurrent use, but several solvers may share a Cache.
type Solver struct {
	db          Database
	opts        Options
	stack       *stack
	graph       *searchGraph
	cache       *Cache
	coinduction *coinductionHandler

	shouldContinue func() bool
	logger         *slog.Logger
	session        string
}

func NewSolver(db Database, opts Options) *Solver {
	var cache *Cache
	if opts.CachingEnabled {
		cache = opts.Cache
		if cache == nil {
			cache = NewCache()
		}
	}
	session := uuid.NewString()
	return &Solver{
		db:          db,
		opts:        opts,
		stack:       newStack(opts.OverflowDepth),
		graph:       newSearchGraph(),
		cache:       cache,
		coinduction: newCoinductionHandler(),
		logger:      logger.With("session", session),
		session:     session,
	}
}

// Cache returns the cache results are stored in, nil if caching is disabled
func (s *Solver) Cache() *Cache { return s.cache }

// Solve returns the solution of goal, nil if it has none.
//
// It panics with a SolveError if goal overflows the stack or depends on its
// own negation; see Recover.
func (s *Solver) Solve(ctx context.Context, goal UCanonicalGoal) Solution {
	return s.SolveLimited(ctx, goal, func() bool { return true })
}

// SolveLimited is like Solve, but gives up on goals with an
// Ambiguous(Unknown) answer once shouldContinue returns false or ctx is done
func (s *Solver) SolveLimited(ctx context.Context, goal UCanonicalGoal, shouldContinue func() bool) Solution {
	ctx, span := tracer.Start(ctx, "Solver.Solve", trace.WithAttributes(
		attribute.String("goal", goal.String()),
		attribute.String("session", s.session),
	))
	defer span.End()

	s.shouldContinue = func() bool { return ctx.Err() == nil && shouldContinue() }
	defer func() { s.shouldContinue = nil }()

	if !s.stack.isEmpty() {
		panic("root query solved while another one is in progress")
	}
	defer s.resetOnPanic()
	metrics.queries.Inc()
	s.logger.Info("solving query", "goal", goal)

	minimums := newMinimums()
	solution := s.solveGoal(goal, &minimums)

	s.logger.Info("solved query", "goal", goal, "solution", logSolution{solution})
	if span.IsRecording() {
		span.SetAttributes(attribute.String("solution", ShowSolution(solution)))
	}
	return solution
}

// resetOnPanic clears the state of the query being solved when it is
// interrupted by a panic, such as a SolveError, so the Solver can be used
// again once the panic is recovered. It must be deferred directly.
func (s *Solver) resetOnPanic() {
	r := recover()
	if r == nil {
		return
	}
	s.stack.entries = s.stack.entries[:0]
	s.stack.barriers = s.stack.barriers[:0]
	s.graph.rollbackTo(0)
	s.coinduction = newCoinductionHandler()
	panic(r)
}

func (s *Solver) isCoinductive(goal UCanonicalGoal) bool {
	return isCoinductiveGoal(s.db, goal.Value.Goal)
}

// solveGoal solves goal, which is a subgoal of the top of the stack.
// minimums is updated with what the result depends on.
func (s *Solver) solveGoal(goal UCanonicalGoal, minimums *Minimums) Solution {
	s.logger.Debug("solving goal", "goal", goal)

	if solution, ok := s.cache.Get(goal); ok {
		metrics.cacheHits.Inc()
		s.logger.Debug("cache hit", "goal", goal, "solution", logSolution{solution})
		return solution
	}

	dfn, inGraph := s.graph.lookup(goal)

	if s.coinduction.inCoinductiveCycle() {
		if solution, ok := s.coinduction.getCached(goal, minimums); ok {
			return solution
		}
	}

	if inGraph {
		n := s.graph.node(dfn)
		if n.stackDepth != noDepth {
			if s.stack.crossesNegation(n.stackDepth) {
				panic(New(NegativeCycleError{Goal: goal.String()}))
			}
			if s.stack.coinductiveCycleFrom(n.stackDepth) {
				if !s.coinduction.isOpenStart(dfn) {
					s.logger.Debug("coinductive cycle", "goal", goal, "dfn", dfn)
					s.coinduction.startCycle(dfn)
				}
				minimums.addCycleStart(dfn)
				return assumption(goal)
			}
			s.logger.Debug("inductive cycle", "goal", goal, "dfn", dfn)
			metrics.inductiveCycles.Inc()
			s.stack.flagCycle(n.stackDepth)
		}
		minimums.updateFrom(n.links)
		return n.solution
	}

	metrics.goals.Inc()
	depth := s.stack.push(goal, s.isCoinductive(goal))
	dfn = s.graph.insert(goal, depth)
	subMinimums := s.solveNewSubgoal(goal, depth, dfn)
	s.stack.pop(depth)

	if s.coinduction.isOpenStart(dfn) && subMinimums.Positive < dfn {
		s.coinduction.abandonCycle(dfn, &subMinimums)
	}

	n := s.graph.node(dfn)
	n.links = subMinimums.clone()
	n.stackDepth = noDepth
	solution := n.solution

	if subMinimums.Positive >= dfn {
		switch {
		case s.coinduction.inCoinductiveCycle():
			s.coinduction.handleCoinductiveResult(dfn, s.cache, s.graph, &subMinimums)
		case s.cache != nil:
			s.graph.moveToCache(dfn, s.cache)
		default:
			s.graph.rollbackTo(dfn)
		}
	}
	minimums.updateFrom(subMinimums)

	s.logger.Debug("solved goal", "goal", goal, "solution", logSolution{solution})
	return solution
}

// solveNewSubgoal computes the solution of goal, which was just pushed on
// the stack at depth and inserted in the search graph as dfn. If goal is
// part of an inductive cycle, it iterates until the solution stops changing.
func (s *Solver) solveNewSubgoal(goal UCanonicalGoal, depth stackDepth, dfn DFN) Minimums {
	minimums := newMinimums()
	for {
		current := s.solveIteration(goal, &minimums)

		n := s.graph.node(dfn)
		if !s.stack.readAndResetCycleFlag(depth) {
			n.solution, n.priority = current.Fst, current.Snd
			return minimums
		}

		if Equal(n.solution, current.Fst) {
			return minimums
		}
		// a high priority answer is not replaced by a low priority one
		if n.priority == ir.PriorityHigh && current.Snd == ir.PriorityLow && n.solution != nil {
			return minimums
		}

		n.solution, n.priority = current.Fst, current.Snd
		if IsAmbiguous(current.Fst) {
			return minimums
		}
		s.logger.Debug("solution changed, iterating again", "goal", goal, "solution", logSolution{current.Fst})
		s.graph.rollbackTo(dfn + 1)
	}
}

// solveIteration makes one attempt at solving goal
func (s *Solver) solveIteration(goal UCanonicalGoal, minimums *Minimums) util.Pair[Solution, ir.ClausePriority] {
	if s.shouldContinue != nil && !s.shouldContinue() {
		return util.NewPair(ambiguousUnknown, ir.PriorityHigh)
	}
	if domain, ok := goal.Value.Goal.(ir.Domain); ok {
		return s.solveFromClauses(goal, domain.Goal, minimums)
	}
	return util.NewPair(s.solveViaSimplification(goal, minimums), ir.PriorityHigh)
}

// clausesFor returns the clauses of the environment and of the program that
// could prove goal
func (s *Solver) clausesFor(env ir.Environment, goal ir.DomainGoal) ([]ir.ProgramClause, error) {
	programClauses, err := s.db.ProgramClausesFor(env, goal)
	if err != nil {
		return nil, err
	}
	var clauses []ir.ProgramClause
	for clause := range util.ConcatIter(env.Clauses(), slices.Values(programClauses)) {
		if ir.CouldMatch(clause, goal) {
			clauses = append(clauses, clause)
		}
	}
	return clauses, nil
}

// solveFromClauses tries every clause that could prove goal, and combines
// the solutions of those that succeed
func (s *Solver) solveFromClauses(goal UCanonicalGoal, domainGoal ir.DomainGoal, minimums *Minimums) util.Pair[Solution, ir.ClausePriority] {
	clauses, err := s.clausesFor(goal.Value.Env, domainGoal)
	if errors.Is(err, ir.ErrFloundered) {
		metrics.floundered.Inc()
		s.logger.Debug("goal floundered", "goal", goal)
		return util.NewPair(ambiguousUnknown, ir.PriorityHigh)
	}
	if err != nil {
		panic(fmt.Sprintf("program clauses for %s: %v", domainGoal, err))
	}

	var current *util.Pair[Solution, ir.ClausePriority]
	for _, clause := range clauses {
		f, err := newFulfillWithClause(s, goal, clause)
		if err != nil {
			continue
		}
		solution := f.solve(minimums)
		if solution == nil {
			continue
		}
		s.logger.Debug("clause applies", "goal", goal, "clause", clause, "solution", logSolution{solution})

		priority := clause.Value.Priority
		if current == nil {
			next := util.NewPair(solution, priority)
			current = &next
		} else {
			next := combineWithPriorities(goal.Value.Goal, current.Fst, current.Snd, solution, priority)
			current = &next
		}
		if IsTrivialAndAlwaysTrue(current.Fst) {
			break
		}
	}

	if current == nil {
		return util.NewPair[Solution](nil, ir.PriorityHigh)
	}
	return *current
}

// refute solves the negation of goal, whose variables belong to table.
// Goals with unknown variables cannot be refuted, and are ambiguous.
func (s *Solver) refute(table *infer.Table, goal ir.InEnvironment[ir.Goal]) (negativeSolution, error) {
	canonical, ok := infer.InvertThenCanonicalize(table, goal)
	if !ok {
		return negativeAmbiguous, nil
	}
	uCanonical := infer.UCanonicalize(canonical)

	// cycles going through the negation are rejected by the stack, so the
	// minimums of the refuted goal are of no interest here
	minimums := newMinimums()
	leave := s.stack.enterNegation()
	solution := s.solveGoal(uCanonical.Quantified, &minimums)
	leave()

	switch {
	case solution == nil:
		return refuted, nil
	case IsUnique(solution):
		return 0, infer.ErrNoSolution
	default:
		return negativeAmbiguous, nil
	}
}

func (s *Solver) solveViaSimplification(goal UCanonicalGoal, minimums *Minimums) Solution {
	f, err := newFulfillWithSimplification(s, goal)
	if err != nil {
		return nil
	}
	return f.solve(minimums)
}

// PeelGoal turns a closed goal into a query: its outermost quantifiers
// become the binders and universes of the query, so that the solution
// says what the existential variables must be
func PeelGoal(goal ir.InEnvironment[ir.Goal]) UCanonicalGoal {
	table := infer.NewTable()
	for {
		quantified, ok := goal.Goal.(ir.Quantified)
		if !ok {
			break
		}
		if quantified.Quantifier == ir.ForAll {
			goal.Goal = infer.InstantiateBindersUniversally(table, quantified.Body)
		} else {
			goal.Goal = infer.InstantiateBindersExistentially(table, quantified.Body)
		}
	}
	canonical := infer.Canonicalize(table, goal)
	return infer.UCanonicalize(canonical.Quantified).Quantified
}

// CloseGoal turns a closed goal into a query with no binders
func CloseGoal(goal ir.InEnvironment[ir.Goal]) UCanonicalGoal {
	if ir.HasFreeVars(goal) {
		panic(fmt.Sprintf("goal %s is not closed", goal))
	}
	return ir.UCanonical[ir.InEnvironment[ir.Goal]]{
		Canonical: ir.Canonical[ir.InEnvironment[ir.Goal]]{Value: goal},
		Universes: 1,
	}
}
