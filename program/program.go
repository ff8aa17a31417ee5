// Package program is an in-memory database of structs, traits and impls,
// lowered into the program clauses the solver proves goals with.
package program

import (
	"fmt"
	"slices"

	"github.com/cottand/traitsolve/internal/log"
	"github.com/cottand/traitsolve/ir"
	"github.com/hashicorp/go-set/v3"
)

var logger = log.DefaultLogger.With("section", "program")

type Struct struct {
	Name   string
	Params []ir.VariableKind
	// Fields refer to Params as ^0.i
	Fields []ir.GenericArg
}

type TraitFlags struct {
	// Auto traits are implemented by every struct whose fields implement
	// them, unless an impl says otherwise
	Auto bool
	// Marker traits have no associated items
	Marker bool
	// Coinductive traits may assume themselves while being proven
	Coinductive bool
	// NonEnumerable traits cannot list their implementations for an
	// unknown self type
	NonEnumerable bool
}

type Trait struct {
	Name string
	// Params include the self type as Params[0]
	Params     []ir.VariableKind
	AssocTypes []string
	Flags      TraitFlags
}

type AssocValue struct {
	Name string
	// Value refers to the impl's params as ^0.i
	Value ir.GenericArg
}

type Impl struct {
	Params []ir.VariableKind
	// TraitRef refers to Params as ^0.i
	TraitRef     ir.TraitRef
	Negative     bool
	WhereClauses []ir.Goal
	AssocValues  []AssocValue
}

// Program is a lowered program. It implements solve.Database.
type Program struct {
	structs map[string]Struct
	traits  map[string]Trait
	impls   []Impl
	custom  []ir.ProgramClause

	// clauses are the lowered clauses, by trait name
	clauses map[string][]ir.ProgramClause
}

// Builder collects the items of a program before lowering
type Builder struct {
	structs []Struct
	traits  []Trait
	impls   []Impl
	custom  []ir.ProgramClause
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Struct(s Struct) *Builder {
	b.structs = append(b.structs, s)
	return b
}

func (b *Builder) Trait(t Trait) *Builder {
	b.traits = append(b.traits, t)
	return b
}

func (b *Builder) Impl(i Impl) *Builder {
	b.impls = append(b.impls, i)
	return b
}

// Clause adds a clause to the program as is
func (b *Builder) Clause(c ir.ProgramClause) *Builder {
	b.custom = append(b.custom, c)
	return b
}

// Build checks the program and lowers it
func (b *Builder) Build() (*Program, error) {
	p := &Program{
		structs: map[string]Struct{},
		traits:  map[string]Trait{},
		impls:   b.impls,
		custom:  b.custom,
		clauses: map[string][]ir.ProgramClause{},
	}
	for _, s := range b.structs {
		if _, ok := p.structs[s.Name]; ok {
			return nil, fmt.Errorf("struct %s declared twice", s.Name)
		}
		p.structs[s.Name] = s
	}
	for _, t := range b.traits {
		if _, ok := p.traits[t.Name]; ok {
			return nil, fmt.Errorf("trait %s declared twice", t.Name)
		}
		if len(t.Params) == 0 || t.Params[0] != ir.KindType {
			return nil, fmt.Errorf("trait %s must have a self type as first parameter", t.Name)
		}
		if t.Flags.Marker && len(t.AssocTypes) > 0 {
			return nil, fmt.Errorf("marker trait %s cannot have associated types", t.Name)
		}
		if t.Flags.Auto && len(t.Params) != 1 {
			return nil, fmt.Errorf("auto trait %s cannot have parameters", t.Name)
		}
		p.traits[t.Name] = t
	}
	for _, impl := range b.impls {
		if err := p.checkImpl(impl); err != nil {
			return nil, err
		}
	}
	for _, c := range b.custom {
		if _, ok := p.traits[traitOf(c.Value.Consequence)]; !ok {
			return nil, fmt.Errorf("clause %s is about an undeclared trait", c)
		}
	}
	p.lower(b.traits)
	return p, nil
}

func (p *Program) checkImpl(impl Impl) error {
	trait, ok := p.traits[impl.TraitRef.Trait]
	if !ok {
		return fmt.Errorf("impl of undeclared trait %s", impl.TraitRef.Trait)
	}
	if len(impl.TraitRef.Args) != len(trait.Params) {
		return fmt.Errorf("impl %s: trait %s takes %d parameters", impl.TraitRef, trait.Name, len(trait.Params))
	}
	if impl.Negative && len(impl.AssocValues) > 0 {
		return fmt.Errorf("negative impl %s cannot define associated types", impl.TraitRef)
	}
	declared := set.From(trait.AssocTypes)
	defined := set.New[string](len(impl.AssocValues))
	for _, value := range impl.AssocValues {
		if !declared.Contains(value.Name) {
			return fmt.Errorf("impl %s: %s is not an associated type of %s", impl.TraitRef, value.Name, trait.Name)
		}
		if !defined.Insert(value.Name) {
			return fmt.Errorf("impl %s: %s defined twice", impl.TraitRef, value.Name)
		}
	}
	return nil
}

func traitOf(goal ir.DomainGoal) string {
	switch goal := goal.(type) {
	case ir.Implemented:
		return goal.Trait
	case ir.AliasEq:
		return goal.Alias.Trait
	case ir.Normalize:
		return goal.Alias.Trait
	}
	panic(fmt.Sprintf("unexpected domain goal %T", goal))
}

func (p *Program) addClause(c ir.ProgramClause) {
	trait := traitOf(c.Value.Consequence)
	p.clauses[trait] = append(p.clauses[trait], c)
}

// lower computes the clauses of the program, traits in declaration order
func (p *Program) lower(traits []Trait) {
	for _, impl := range p.impls {
		for _, c := range lowerImpl(impl) {
			p.addClause(c)
		}
	}
	for _, trait := range traits {
		for _, assoc := range trait.AssocTypes {
			for _, c := range lowerAssocType(trait, assoc) {
				p.addClause(c)
			}
		}
		if trait.Flags.Auto {
			for _, c := range p.lowerAutoTrait(trait) {
				p.addClause(c)
			}
		}
	}
	for _, c := range p.custom {
		p.addClause(c)
	}
	for trait, clauses := range p.clauses {
		logger.Debug("lowered trait", "trait", trait, "clauses", len(clauses))
	}
}

// lowerImpl turns
//
//	impl<P> Trait<A> for T where W { type X = V; }
//
// into
//
//	forall<P> { Implemented(T: Trait<A>) :- W }
//	forall<P> { Normalize(<T as Trait<A>>::X -> V) :- Implemented(T: Trait<A>), W }
//
// Negative impls have no clauses.
func lowerImpl(impl Impl) []ir.ProgramClause {
	if impl.Negative {
		return nil
	}
	clauses := []ir.ProgramClause{ir.NewClause(ir.ProgramClauseImplication{
		Consequence: ir.Implemented{TraitRef: impl.TraitRef},
		Conditions:  impl.WhereClauses,
		Priority:    ir.PriorityHigh,
	}, impl.Params...)}

	for _, value := range impl.AssocValues {
		conditions := append([]ir.Goal{ir.Domain{Goal: ir.Implemented{TraitRef: impl.TraitRef}}}, impl.WhereClauses...)
		clauses = append(clauses, ir.NewClause(ir.ProgramClauseImplication{
			Consequence: ir.Normalize{
				Alias: ir.ProjectionTy{Trait: impl.TraitRef.Trait, Assoc: value.Name, Args: impl.TraitRef.Args},
				Ty:    value.Value,
			},
			Conditions: conditions,
			Priority:   ir.PriorityHigh,
		}, impl.Params...))
	}
	return clauses
}

// lowerAssocType gives the two ways a projection can be equal to a type:
//
//	forall<P, U> { AliasEq(<P0 as Trait<P..>>::X = U) :- Normalize(<P0 as Trait<P..>>::X -> U) }
//	forall<P> { AliasEq(<P0 as Trait<P..>>::X = (Trait::X)<P>) }
//
// the latter with low priority, so that it only matters when no impl applies
func lowerAssocType(trait Trait, assoc string) []ir.ProgramClause {
	params := make([]ir.GenericArg, len(trait.Params))
	for i, kind := range trait.Params {
		params[i] = ir.NewBound(kind, 0, i)
	}
	projection := ir.ProjectionTy{Trait: trait.Name, Assoc: assoc, Args: params}
	target := ir.NewBound(ir.KindType, 0, len(params))

	normalize := ir.NewClause(ir.ProgramClauseImplication{
		Consequence: ir.AliasEq{Alias: projection, Ty: target},
		Conditions:  []ir.Goal{ir.Domain{Goal: ir.Normalize{Alias: projection, Ty: target}}},
		Priority:    ir.PriorityHigh,
	}, append(slices.Clone(trait.Params), ir.KindType)...)

	placeholder := ir.NewClause(ir.ProgramClauseImplication{
		Consequence: ir.AliasEq{Alias: projection, Ty: ir.NewType(ir.PlaceholderName(trait.Name, assoc), params...)},
		Priority:    ir.PriorityLow,
	}, trait.Params...)

	return []ir.ProgramClause{normalize, placeholder}
}

// lowerAutoTrait derives, for every struct without an explicit impl of trait,
//
//	forall<P> { Implemented(S<P>: Trait) :- Implemented(F: Trait) for every field F }
func (p *Program) lowerAutoTrait(trait Trait) []ir.ProgramClause {
	explicit := set.New[string](0)
	for _, impl := range p.impls {
		if impl.TraitRef.Trait != trait.Name {
			continue
		}
		if self, ok := impl.TraitRef.SelfType().(ir.Apply); ok {
			explicit.Insert(self.Name)
		}
	}

	names := make([]string, 0, len(p.structs))
	for name := range p.structs {
		names = append(names, name)
	}
	slices.Sort(names)

	var clauses []ir.ProgramClause
	for _, name := range names {
		if explicit.Contains(name) {
			continue
		}
		s := p.structs[name]
		params := make([]ir.GenericArg, len(s.Params))
		for i, kind := range s.Params {
			params[i] = ir.NewBound(kind, 0, i)
		}
		conditions := make([]ir.Goal, len(s.Fields))
		for i, field := range s.Fields {
			conditions[i] = ir.Domain{Goal: ir.Implemented{TraitRef: ir.TraitRef{Trait: trait.Name, Args: []ir.GenericArg{field}}}}
		}
		clauses = append(clauses, ir.NewClause(ir.ProgramClauseImplication{
			Consequence: ir.Implemented{TraitRef: ir.TraitRef{Trait: trait.Name, Args: []ir.GenericArg{ir.NewType(name, params...)}}},
			Conditions:  conditions,
			Priority:    ir.PriorityHigh,
		}, s.Params...))
	}
	return clauses
}

func (p *Program) Trait(name string) (Trait, bool) {
	t, ok := p.traits[name]
	return t, ok
}

// Clauses returns every lowered clause of trait
func (p *Program) Clauses(trait string) []ir.ProgramClause {
	return p.clauses[trait]
}

func (p *Program) IsCoinductive(trait string) bool {
	t, ok := p.traits[trait]
	return ok && (t.Flags.Auto || t.Flags.Coinductive)
}

func isUnknown(arg ir.GenericArg) bool {
	switch arg.(type) {
	case ir.Var, ir.Bound:
		return true
	}
	return false
}

// ProgramClausesFor returns the clauses of the program that could prove
// goal. Goals about auto or non-enumerable traits flounder while their self
// type is unknown.
func (p *Program) ProgramClausesFor(env ir.Environment, goal ir.DomainGoal) ([]ir.ProgramClause, error) {
	name := traitOf(goal)
	trait, ok := p.traits[name]
	if !ok {
		return nil, nil
	}

	var self ir.GenericArg
	switch goal := goal.(type) {
	case ir.Implemented:
		self = goal.SelfType()
	case ir.AliasEq:
		self = goal.Alias.SelfType()
	case ir.Normalize:
		self = goal.Alias.SelfType()
	}
	if isUnknown(self) && (trait.Flags.Auto || trait.Flags.NonEnumerable) {
		logger.Debug("floundered", "goal", goal)
		return nil, ir.ErrFloundered
	}

	var clauses []ir.ProgramClause
	for _, c := range p.clauses[name] {
		if ir.CouldMatch(c, goal) {
			clauses = append(clauses, c)
		}
	}
	return clauses, nil
}
