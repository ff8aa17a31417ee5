package solve

import (
	"fmt"

	"github.com/cottand/traitsolve/ir"
)

var graphLogger = logger.With("section", "solve-graph")

// UCanonicalGoal is the form goals are solved and cached in
type UCanonicalGoal = ir.UCanonical[ir.InEnvironment[ir.Goal]]

type node struct {
	goal     UCanonicalGoal
	solution Solution
	priority ir.ClausePriority
	// stackDepth is noDepth once the goal left the stack
	stackDepth stackDepth
	links      Minimums
}

// searchGraph holds every goal visited since the last cache move, both
// in-progress and provisionally solved
type searchGraph struct {
	indices map[string]DFN
	nodes   []node
}

func newSearchGraph() *searchGraph {
	return &searchGraph{indices: map[string]DFN{}}
}

func (g *searchGraph) lookup(goal UCanonicalGoal) (DFN, bool) {
	dfn, ok := g.indices[goal.Key()]
	return dfn, ok
}

func (g *searchGraph) node(dfn DFN) *node {
	return &g.nodes[dfn]
}

func (g *searchGraph) len() int { return len(g.nodes) }

// insert adds goal with an initial NoSolution result
func (g *searchGraph) insert(goal UCanonicalGoal, depth stackDepth) DFN {
	key := goal.Key()
	if _, ok := g.indices[key]; ok {
		panic(fmt.Sprintf("goal %s inserted twice in the search graph", key))
	}
	dfn := DFN(len(g.nodes))
	g.nodes = append(g.nodes, node{
		goal:       goal,
		priority:   ir.PriorityHigh,
		stackDepth: depth,
		links:      Minimums{Positive: dfn, CoinductiveStarts: newMinimums().CoinductiveStarts},
	})
	g.indices[key] = dfn
	return dfn
}

// rollbackTo discards every node from dfn onwards
func (g *searchGraph) rollbackTo(dfn DFN) {
	if int(dfn) >= len(g.nodes) {
		return
	}
	graphLogger.Debug("rolling back search graph", "dfn", dfn, "discarded", len(g.nodes)-int(dfn))
	for _, n := range g.nodes[dfn:] {
		delete(g.indices, n.goal.Key())
	}
	g.nodes = g.nodes[:dfn]
}

// moveToCache removes every node from dfn onwards, storing their results
// in cache. The nodes must no longer be on the stack.
func (g *searchGraph) moveToCache(dfn DFN, cache *Cache) {
	graphLogger.Debug("moving to cache", "dfn", dfn)
	for _, n := range g.nodes[dfn:] {
		if n.stackDepth != noDepth {
			panic(fmt.Sprintf("goal %s cached while still on the stack", n.goal))
		}
		if n.links.Positive < dfn {
			panic(fmt.Sprintf("goal %s cached while depending on an earlier goal", n.goal))
		}
		cache.Insert(n.goal, n.solution)
	}
	g.rollbackTo(dfn)
}
