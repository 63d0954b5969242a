package scope

// ScopeAt returns the innermost scope whose span contains offset. Offsets
// outside every span resolve to the root scope. It never fails: an empty
// scope list yields a bare root.
func ScopeAt(scopes []Scope, offset int) Scope {
	return locate(scopes, func(s Span) bool { return s.Contains(offset) })
}

// ScopeAtCaret is ScopeAt for an editor caret, which sits between two
// characters. A caret right after '(' or right before ')' of a subquery
// belongs to the subquery, as does a caret at the end of an unterminated
// one.
func ScopeAtCaret(scopes []Scope, caret int) Scope {
	return locate(scopes, func(s Span) bool { return s.ContainsCaret(caret) })
}

func locate(scopes []Scope, contains func(Span) bool) Scope {
	best := -1
	for i, sc := range scopes {
		if sc.Level == 0 || !contains(sc.Span) {
			continue
		}
		if best < 0 || sc.Level > scopes[best].Level {
			best = i
		}
	}
	if best >= 0 {
		return scopes[best]
	}
	for _, sc := range scopes {
		if sc.Level == 0 {
			return sc
		}
	}
	return Scope{Parent: NoParent}
}

// Path returns the chain of scope indexes from the root down to idx.
func Path(scopes []Scope, idx int) []int {
	var path []int
	for idx >= 0 && idx < len(scopes) {
		path = append([]int{idx}, path...)
		if scopes[idx].Parent >= idx {
			break
		}
		idx = scopes[idx].Parent
	}
	return path
}
