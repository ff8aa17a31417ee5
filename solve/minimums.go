package solve

import (
	"math"

	"github.com/hashicorp/go-set/v3"
)

// DFN is the position of a goal in the search graph, in order of first visit
type DFN int

const maxDFN DFN = math.MaxInt

// Minimums records what the result of a subgoal depended on: the earliest
// in-progress goal reached through an inductive cycle, and the coinductive
// cycles it relied on the assumption of.
type Minimums struct {
	Positive          DFN
	CoinductiveStarts *set.Set[DFN]
}

func newMinimums() Minimums {
	return Minimums{Positive: maxDFN, CoinductiveStarts: set.New[DFN](0)}
}

func (m *Minimums) updateFrom(other Minimums) {
	m.Positive = min(m.Positive, other.Positive)
	if other.CoinductiveStarts != nil {
		m.CoinductiveStarts.InsertSet(other.CoinductiveStarts)
	}
}

func (m *Minimums) addCycleStart(dfn DFN) {
	m.CoinductiveStarts.Insert(dfn)
}

// isMature means the result depends on no open coinductive assumption
func (m Minimums) isMature() bool {
	return m.CoinductiveStarts.Empty()
}

func (m Minimums) clone() Minimums {
	return Minimums{Positive: m.Positive, CoinductiveStarts: m.CoinductiveStarts.Copy()}
}
