package parser

import (
	"fmt"
	"strconv"

	"github.com/cottand/traitsolve/ir"
	"github.com/cottand/traitsolve/util"
)

// listener builds IR bottom-up while the parse tree is walked: each node
// pops what its children pushed, and pushes its own value. Binders are
// pushed on entry to a quantifier, so the names in its body resolve to them.
type listener struct {
	*BaseGoalParserListener

	scopes [][]Binder

	types        util.Stack[ir.GenericArg]
	traitRefs    util.Stack[traitRef]
	goals        util.Stack[ir.Goal]
	implications util.Stack[ir.ProgramClauseImplication]
	clauses      util.Stack[ir.ProgramClause]

	visitErrors []error
}

// traitRef is a trait reference still missing its self type
type traitRef struct {
	trait string
	args  []ir.GenericArg
}

func (r traitRef) apply(self ir.GenericArg) ir.TraitRef {
	return ir.TraitRef{Trait: r.trait, Args: append([]ir.GenericArg{self}, r.args...)}
}

func pop[T any](l *listener, s *util.Stack[T], what string) T {
	v, ok := s.Pop()
	if !ok {
		l.visitErrors = append(l.visitErrors, fmt.Errorf("%s stack is empty", what))
	}
	return v
}

// popN pops the last n values, in the order they were pushed
func popN[T any](l *listener, s *util.Stack[T], n int, what string) []T {
	if n == 0 {
		return nil
	}
	values := make([]T, n)
	for i := n - 1; i >= 0; i-- {
		values[i] = pop(l, s, what)
	}
	return values
}

func (l *listener) errorf(format string, args ...any) {
	l.visitErrors = append(l.visitErrors, fmt.Errorf(format, args...))
}

func (l *listener) pushScope(ctx IParamsContext) {
	params := ctx.AllParam()
	binders := make([]Binder, len(params))
	for i, param := range params {
		binders[i] = readParam(param)
	}
	l.scopes = append(l.scopes, binders)
}

func (l *listener) popScope() []Binder {
	binders := l.scopes[len(l.scopes)-1]
	l.scopes = l.scopes[:len(l.scopes)-1]
	return binders
}

func readParam(ctx IParamContext) Binder {
	switch param := ctx.(type) {
	case *LifetimeParamContext:
		return Binder{Name: param.LIFETIME().GetText(), Kind: ir.KindLifetime}
	case *ConstParamContext:
		return Binder{Name: param.IDENT().GetText(), Kind: ir.KindConst}
	case *TypeParamContext:
		return Binder{Name: param.IDENT().GetText(), Kind: ir.KindType}
	}
	panic(fmt.Sprintf("unexpected parameter %T", ctx))
}

func (l *listener) lookup(name string) (ir.Bound, bool) {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		for index, b := range l.scopes[i] {
			if b.Name == name {
				return ir.NewBound(b.Kind, len(l.scopes)-1-i, index), true
			}
		}
	}
	return ir.Bound{}, false
}

//
// Goals
//

func (l *listener) ExitGoals(ctx *GoalsContext) {
	goals := popN(l, &l.goals, len(ctx.AllGoal()), "goal")
	if len(goals) == 1 {
		l.goals.Push(goals[0])
		return
	}
	l.goals.Push(ir.All{Goals: goals})
}

func (l *listener) EnterQuantifiedGoal(ctx *QuantifiedGoalContext) {
	l.pushScope(ctx.Params())
}

func (l *listener) ExitQuantifiedGoal(ctx *QuantifiedGoalContext) {
	binders := l.popScope()
	body := pop(l, &l.goals, "goal")
	quantifier := ir.Exists
	if ctx.GetQuantifier().GetTokenType() == GoalParserFORALL {
		quantifier = ir.ForAll
	}
	l.goals.Push(ir.Quantified{Quantifier: quantifier, Body: ir.NewBinders(body, Kinds(binders)...)})
}

func (l *listener) ExitImpliesGoal(ctx *ImpliesGoalContext) {
	body := pop(l, &l.goals, "goal")
	clauses := popN(l, &l.clauses, len(ctx.AllClause()), "clause")
	l.goals.Push(ir.Implies{Clauses: clauses, Goal: body})
}

func (l *listener) ExitNotGoal(_ *NotGoalContext) {
	l.goals.Push(ir.Not{Goal: pop(l, &l.goals, "goal")})
}

func (l *listener) ExitCannotProveGoal(_ *CannotProveGoalContext) {
	l.goals.Push(ir.CannotProve{})
}

func (l *listener) ExitNormalizeLeaf(ctx *NormalizeLeafContext) {
	ty := pop(l, &l.types, "type")
	projection := pop(l, &l.types, "type")
	alias, ok := projection.(ir.Alias)
	if !ok {
		l.errorf("Normalize expects a projection, found %s", ctx.Type_(0).GetText())
		l.goals.Push(ir.CannotProve{})
		return
	}
	l.goals.Push(ir.Domain{Goal: ir.Normalize{Alias: alias.Projection, Ty: ty}})
}

func (l *listener) ExitImplementedLeaf(_ *ImplementedLeafContext) {
	ref := pop(l, &l.traitRefs, "trait reference")
	self := pop(l, &l.types, "type")
	l.goals.Push(ir.Domain{Goal: ir.Implemented{TraitRef: ref.apply(self)}})
}

func (l *listener) ExitEqLeaf(_ *EqLeafContext) {
	rhs := pop(l, &l.types, "type")
	lhs := pop(l, &l.types, "type")
	if alias, ok := lhs.(ir.Alias); ok {
		l.goals.Push(ir.Domain{Goal: ir.AliasEq{Alias: alias.Projection, Ty: rhs}})
		return
	}
	l.goals.Push(ir.Eq{A: lhs, B: rhs})
}

func (l *listener) ExitTraitRef(ctx *TraitRefContext) {
	l.traitRefs.Push(traitRef{trait: ctx.IDENT().GetText(), args: l.popTypeArgs(ctx.TypeArgs())})
}

//
// Clauses
//

func (l *listener) EnterForallClause(ctx *ForallClauseContext) {
	l.pushScope(ctx.Params())
}

func (l *listener) ExitForallClause(_ *ForallClauseContext) {
	binders := l.popScope()
	l.clauses.Push(ir.NewClause(pop(l, &l.implications, "implication"), Kinds(binders)...))
}

// a clause is a binder even without parameters
func (l *listener) EnterFactClause(_ *FactClauseContext) {
	l.scopes = append(l.scopes, nil)
}

func (l *listener) ExitFactClause(_ *FactClauseContext) {
	l.popScope()
	l.clauses.Push(ir.NewClause(pop(l, &l.implications, "implication")))
}

func (l *listener) ExitImplication(ctx *ImplicationContext) {
	conditions := popN(l, &l.goals, len(ctx.AllGoal()), "goal")
	consequence := pop(l, &l.goals, "goal")
	domain, ok := consequence.(ir.Domain)
	if !ok {
		l.errorf("the consequence of a clause must be a domain goal, found %s", ctx.Leaf().GetText())
		domain = ir.Domain{Goal: ir.Implemented{}}
	}
	l.implications.Push(ir.ProgramClauseImplication{
		Consequence: domain.Goal,
		Conditions:  conditions,
		Priority:    ir.PriorityHigh,
	})
}

//
// Types
//

func (l *listener) popTypeArgs(ctx ITypeArgsContext) []ir.GenericArg {
	if ctx == nil {
		return nil
	}
	return popN(l, &l.types, len(ctx.AllType_()), "type")
}

func (l *listener) lifetime(name string) ir.GenericArg {
	if name == "'static" {
		return ir.Static{}
	}
	bound, ok := l.lookup(name)
	if !ok || bound.Kind() != ir.KindLifetime {
		l.errorf("undeclared lifetime %s", name)
		return ir.Static{}
	}
	return bound
}

func (l *listener) ExitRefType(ctx *RefTypeContext) {
	referent := pop(l, &l.types, "type")
	l.types.Push(ir.Ref{Lifetime: l.lifetime(ctx.LIFETIME().GetText()), Referent: referent})
}

func (l *listener) ExitLifetimeType(ctx *LifetimeTypeContext) {
	l.types.Push(l.lifetime(ctx.LIFETIME().GetText()))
}

func (l *listener) ExitConstType(ctx *ConstTypeContext) {
	value, err := strconv.ParseInt(ctx.INT().GetText(), 10, 64)
	if err != nil {
		l.errorf("invalid constant %s: %v", ctx.INT().GetText(), err)
	}
	l.types.Push(ir.ConstValue{Value: value})
}

func (l *listener) ExitAliasType(ctx *AliasTypeContext) {
	ref := pop(l, &l.traitRefs, "trait reference")
	self := pop(l, &l.types, "type")
	applied := ref.apply(self)
	l.types.Push(ir.Alias{Projection: ir.ProjectionTy{Trait: applied.Trait, Assoc: ctx.GetAssoc().GetText(), Args: applied.Args}})
}

func (l *listener) ExitPlaceholderType(ctx *PlaceholderTypeContext) {
	args := l.popTypeArgs(ctx.TypeArgs())
	l.types.Push(ir.NewType(ir.PlaceholderName(ctx.GetTrait().GetText(), ctx.GetAssoc().GetText()), args...))
}

func (l *listener) ExitNamedType(ctx *NamedTypeContext) {
	args := l.popTypeArgs(ctx.TypeArgs())
	name := ctx.IDENT().GetText()
	if bound, ok := l.lookup(name); ok {
		if len(args) != 0 {
			l.errorf("parameter %s does not take arguments", name)
		}
		l.types.Push(bound)
		return
	}
	l.types.Push(ir.NewType(name, args...))
}
