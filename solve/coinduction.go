package solve

import (
	"slices"

	"github.com/cottand/traitsolve/ir"
	"github.com/hashicorp/go-set/v3"
)

var coinductionLogger = logger.With("section", "coinduction")

// prematureResult is a result computed while assuming that some coinductive
// cycles hold. It becomes final once all of them are confirmed.
type prematureResult struct {
	goal     UCanonicalGoal
	solution Solution
	deps     *set.Set[DFN]
}

// coinductionHandler tracks the open coinductive cycles. Goals in such a
// cycle are assumed to hold while the cycle is being solved, and results
// depending on that assumption are kept aside until the goal that started
// the cycle is solved.
type coinductionHandler struct {
	cycleStarts []DFN
	tempCache   map[string]prematureResult
}

func newCoinductionHandler() *coinductionHandler {
	return &coinductionHandler{tempCache: map[string]prematureResult{}}
}

func (h *coinductionHandler) inCoinductiveCycle() bool {
	return len(h.cycleStarts) > 0
}

func (h *coinductionHandler) isOpenStart(dfn DFN) bool {
	return slices.Contains(h.cycleStarts, dfn)
}

func (h *coinductionHandler) startCycle(dfn DFN) {
	coinductionLogger.Debug("starting coinductive cycle", "dfn", dfn)
	metrics.coinductiveCycles.Inc()
	h.cycleStarts = append(h.cycleStarts, dfn)
}

// assumption is the optimistic answer given to a goal inside its own
// coinductive cycle
func assumption(goal UCanonicalGoal) Solution {
	return Unique{ir.Canonical[ir.ConstrainedSubst]{
		Binders: goal.Binders,
		Value:   ir.ConstrainedSubst{Subst: ir.IdentitySubstitution(goal.Binders)},
	}}
}

// getCached returns a premature result for goal, recording the cycles it
// depends on in minimums
func (h *coinductionHandler) getCached(goal UCanonicalGoal, minimums *Minimums) (Solution, bool) {
	entry, ok := h.tempCache[goal.Key()]
	if !ok {
		return nil, false
	}
	minimums.CoinductiveStarts.InsertSet(entry.deps)
	return entry.solution, true
}

// handleCoinductiveResult files the result of dfn, which was just solved
// while at least one coinductive cycle is open
func (h *coinductionHandler) handleCoinductiveResult(dfn DFN, cache *Cache, graph *searchGraph, minimums *Minimums) {
	switch {
	case h.isOpenStart(dfn):
		h.finishCycle(dfn, cache, graph, minimums)
	case minimums.isMature():
		graph.moveToCache(dfn, cache)
	default:
		h.moveToTempCache(dfn, graph, minimums)
	}
}

func (h *coinductionHandler) moveToTempCache(dfn DFN, graph *searchGraph, minimums *Minimums) {
	for _, n := range graph.nodes[dfn:] {
		h.tempCache[n.goal.Key()] = prematureResult{goal: n.goal, solution: n.solution, deps: minimums.CoinductiveStarts.Copy()}
	}
	graph.rollbackTo(dfn)
}

func (h *coinductionHandler) closeStart(start DFN, minimums *Minimums) {
	h.cycleStarts = slices.DeleteFunc(h.cycleStarts, func(dfn DFN) bool { return dfn == start })
	minimums.CoinductiveStarts.Remove(start)
}

// finishCycle is called once the goal that started a coinductive cycle is
// solved. If it holds, the results that assumed it are confirmed. If it
// does not, they are discarded along with every goal visited since.
func (h *coinductionHandler) finishCycle(start DFN, cache *Cache, graph *searchGraph, minimums *Minimums) {
	h.closeStart(start, minimums)

	if graph.node(start).solution != nil {
		coinductionLogger.Debug("coinductive cycle holds", "dfn", start)
		for key, entry := range h.tempCache {
			entry.deps.Remove(start)
			if entry.deps.Empty() {
				cache.Insert(entry.goal, entry.solution)
				delete(h.tempCache, key)
			}
		}
	} else {
		coinductionLogger.Debug("coinductive cycle failed, discarding dependent results", "dfn", start)
		metrics.invalidatedCycles.Inc()
		graph.rollbackTo(start + 1)
	}

	if minimums.isMature() {
		graph.moveToCache(start, cache)
	} else {
		h.moveToTempCache(start, graph, minimums)
	}

	for key, entry := range h.tempCache {
		if entry.deps.Contains(start) {
			delete(h.tempCache, key)
		}
	}
}

// abandonCycle closes the cycle started by start without confirming it.
// This happens when start itself is part of an inductive cycle with an
// earlier goal, so its result is not final yet.
func (h *coinductionHandler) abandonCycle(start DFN, minimums *Minimums) {
	coinductionLogger.Debug("abandoning coinductive cycle", "dfn", start)
	h.closeStart(start, minimums)
	for key, entry := range h.tempCache {
		if entry.deps.Contains(start) {
			delete(h.tempCache, key)
		}
	}
}
