package solve

import (
	"github.com/cottand/traitsolve/ir"
)

type stackDepth int

const noDepth stackDepth = -1

type stackEntry struct {
	goal        UCanonicalGoal
	coinductive bool
	// cycle is set when a goal deeper in the stack depends on this one
	cycle bool
}

// stack is the chain of goals currently being solved, each one a
// subgoal of the one below it
type stack struct {
	entries       []stackEntry
	overflowDepth int
	// barriers holds the stack length at each enclosing refutation, so a
	// cycle reaching below one of them goes through a negation
	barriers []int
}

func newStack(overflowDepth int) *stack {
	return &stack{overflowDepth: overflowDepth}
}

func (s *stack) isEmpty() bool { return len(s.entries) == 0 }

// push adds goal on top of the stack. It panics with an OverflowError once
// overflowDepth goals are already on the stack.
func (s *stack) push(goal UCanonicalGoal, coinductive bool) stackDepth {
	depth := stackDepth(len(s.entries))
	if int(depth) >= s.overflowDepth {
		metrics.overflows.Inc()
		panic(New(OverflowError{Goal: goal.String(), Depth: s.overflowDepth}))
	}
	s.entries = append(s.entries, stackEntry{goal: goal, coinductive: coinductive})
	return depth
}

func (s *stack) pop(depth stackDepth) {
	if int(depth) != len(s.entries)-1 {
		panic("mismatched stack push/pop")
	}
	s.entries = s.entries[:depth]
}

// coinductiveCycleFrom reports whether every goal from depth to the top
// of the stack is coinductive
func (s *stack) coinductiveCycleFrom(depth stackDepth) bool {
	for _, entry := range s.entries[depth:] {
		if !entry.coinductive {
			return false
		}
	}
	return true
}

// crossesNegation reports whether a cycle back to depth would go through a
// refutation started above it
func (s *stack) crossesNegation(depth stackDepth) bool {
	for _, barrier := range s.barriers {
		if int(depth) < barrier {
			return true
		}
	}
	return false
}

// enterNegation marks the start of a refutation. The returned function
// marks its end.
func (s *stack) enterNegation() func() {
	s.barriers = append(s.barriers, len(s.entries))
	n := len(s.barriers)
	return func() {
		if len(s.barriers) != n {
			panic("mismatched negation enter/leave")
		}
		s.barriers = s.barriers[:n-1]
	}
}

func (s *stack) flagCycle(depth stackDepth) {
	s.entries[depth].cycle = true
}

func (s *stack) readAndResetCycleFlag(depth stackDepth) bool {
	cycle := s.entries[depth].cycle
	s.entries[depth].cycle = false
	return cycle
}

// isCoinductiveGoal reports whether goal is a trait goal for a coinductive trait
func isCoinductiveGoal(db Database, goal ir.Goal) bool {
	domain, ok := goal.(ir.Domain)
	if !ok {
		return false
	}
	implemented, ok := domain.Goal.(ir.Implemented)
	return ok && db.IsCoinductive(implemented.Trait)
}
