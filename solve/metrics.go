package solve

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the solver's metrics. It is not registered with the
// default prometheus registry, so embedding programs can choose to expose it.
var Registry = prometheus.NewRegistry()

type solverMetrics struct {
	queries           prometheus.Counter
	goals             prometheus.Counter
	cacheHits         prometheus.Counter
	inductiveCycles   prometheus.Counter
	coinductiveCycles prometheus.Counter
	invalidatedCycles prometheus.Counter
	floundered        prometheus.Counter
	overflows         prometheus.Counter
	answers           prometheus.Counter
}

var metrics = newSolverMetrics(Registry)

func newSolverMetrics(registerer prometheus.Registerer) solverMetrics {
	factory := promauto.With(registerer)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{Namespace: "traitsolve", Subsystem: "solver", Name: name, Help: help})
	}
	return solverMetrics{
		queries:           counter("queries_total", "Root queries solved."),
		goals:             counter("goals_total", "Goals solved from scratch, excluding cache hits."),
		cacheHits:         counter("cache_hits_total", "Goals answered from the long-lived cache."),
		inductiveCycles:   counter("inductive_cycles_total", "Cycles found through an inductive goal."),
		coinductiveCycles: counter("coinductive_cycles_total", "Coinductive cycles started."),
		invalidatedCycles: counter("invalidated_cycles_total", "Coinductive cycles whose assumption turned out false."),
		floundered:        counter("floundered_total", "Goals whose clauses could not be enumerated."),
		overflows:         counter("overflows_total", "Queries aborted because the stack overflowed."),
		answers:           counter("answers_total", "Answers produced while enumerating solutions."),
	}
}
