package ir

// CouldMatch is a cheap structural test of whether the consequence of
// clause could unify with goal. Variables of either side match anything.
func CouldMatch(clause ProgramClause, goal DomainGoal) bool {
	switch consequence := clause.Value.Consequence.(type) {
	case Implemented:
		g, ok := goal.(Implemented)
		return ok && consequence.Trait == g.Trait && argsCouldMatch(consequence.Args, g.Args)
	case AliasEq:
		g, ok := goal.(AliasEq)
		return ok && projectionsCouldMatch(consequence.Alias, g.Alias) && argCouldMatch(consequence.Ty, g.Ty)
	case Normalize:
		g, ok := goal.(Normalize)
		return ok && projectionsCouldMatch(consequence.Alias, g.Alias) && argCouldMatch(consequence.Ty, g.Ty)
	}
	return false
}

func projectionsCouldMatch(a, b ProjectionTy) bool {
	return a.Trait == b.Trait && a.Assoc == b.Assoc && argsCouldMatch(a.Args, b.Args)
}

func argsCouldMatch(as, bs []GenericArg) bool {
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !argCouldMatch(as[i], bs[i]) {
			return false
		}
	}
	return true
}

func argCouldMatch(a, b GenericArg) bool {
	switch a.(type) {
	case Var, Bound, Alias:
		return true
	}
	switch b.(type) {
	case Var, Bound, Alias:
		return true
	}
	if a.Kind() == KindLifetime {
		return true
	}
	switch a := a.(type) {
	case Placeholder:
		b, ok := b.(Placeholder)
		return ok && a.Universe == b.Universe && a.Index == b.Index
	case Apply:
		b, ok := b.(Apply)
		return ok && a.Name == b.Name && argsCouldMatch(a.Args, b.Args)
	case Ref:
		b, ok := b.(Ref)
		return ok && argCouldMatch(a.Referent, b.Referent)
	case ConstValue:
		b, ok := b.(ConstValue)
		return ok && a.Value == b.Value
	}
	return false
}
