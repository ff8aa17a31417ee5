package solve

import (
	"slices"

	"github.com/cottand/traitsolve/ir"
	"github.com/cottand/traitsolve/util"
)

// combineWithPriorities merges the solutions a and b of two clauses for goal.
//
// A high priority solution wins over a low priority one, unless they
// disagree on the inputs of goal: the low priority clause then stands for
// a genuinely different answer, and the result is ambiguous.
func combineWithPriorities(goal ir.Goal, a Solution, priorityA ir.ClausePriority, b Solution, priorityB ir.ClausePriority) util.Pair[Solution, ir.ClausePriority] {
	if priorityA == priorityB {
		return util.NewPair(Combine(a, b), priorityA)
	}

	higher, lower := a, b
	if priorityA == ir.PriorityLow {
		higher, lower = b, a
	}
	if slices.Equal(calculateInputs(goal, higher), calculateInputs(goal, lower)) {
		logger.Debug("discarding low priority solution", "goal", goal, "kept", higher, "discarded", lower)
		return util.NewPair(higher, ir.PriorityHigh)
	}
	return util.NewPair(Combine(higher, lower), ir.PriorityHigh)
}

// calculateInputs renders the inputs of goal once solution is applied to it
func calculateInputs(goal ir.Goal, solution Solution) []string {
	domain, ok := goal.(ir.Domain)
	if !ok {
		return nil
	}
	domainGoal := domain.Goal
	if subst, ok := ConstrainedSubst(solution); ok {
		domainGoal = ir.Substitute(domainGoal, subst.Value.Subst)
	}
	inputs := domainGoal.Inputs()
	rendered := make([]string, len(inputs))
	for i, input := range inputs {
		rendered[i] = input.String()
	}
	return rendered
}
