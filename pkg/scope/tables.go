package scope

// extractTables fills Tables for scope idx from every arm's FROM clause and
// from UPDATE, INSERT and MERGE targets.
func (p *parser) extractTables(idx int) {
	var refs []TableRef
	for _, arm := range p.arms(idx) {
		refs = append(refs, p.armTables(idx, arm[0], arm[1])...)
	}
	p.scopes[idx].Tables = refs
}

func (p *parser) armTables(idx, from, end int) []TableRef {
	var refs []TableRef

	first, ok := p.s.nextToken(from, end)
	if !ok {
		return nil
	}
	switch {
	case first.isWord("UPDATE"):
		stop := end
		if pos, _ := p.s.FindTopLevelKeyword([]string{"SET"}, first.end, end); pos >= 0 {
			stop = pos
		}
		refs = append(refs, p.items(idx, first.end, stop)...)
	case first.isWord("INSERT"):
		if _, into, _ := p.s.findKeyword([]string{"INTO"}, first.end, end); into >= 0 {
			toks := p.s.tokens(into, end)
			cut := len(toks)
			for i, t := range toks {
				if t.kind == tokGroup || t.isWord("VALUES") || t.isWord("SELECT") || t.isWord("WITH") || t.isWord("DEFAULT") {
					cut = i
					break
				}
			}
			if ref, ok := p.item(idx, toks[:cut]); ok {
				refs = append(refs, ref)
			}
		}
	case first.isWord("MERGE"):
		into := first.end
		if _, stop, _ := p.s.findKeyword([]string{"INTO"}, first.end, end); stop >= 0 {
			into = stop
		}
		using, usingEnd, _ := p.s.findKeyword([]string{"USING"}, into, end)
		if using < 0 {
			return p.items(idx, into, end)
		}
		refs = append(refs, p.items(idx, into, using)...)
		on, _, _ := p.s.findKeyword([]string{"ON"}, usingEnd, end)
		if on < 0 {
			on = end
		}
		refs = append(refs, p.items(idx, usingEnd, on)...)
		return refs
	}

	_, fromEnd, _ := p.s.findKeyword([]string{"FROM"}, from, end)
	if fromEnd < 0 {
		return refs
	}
	stop := end
	if pos, _, _ := p.s.findKeyword(fromTerminators, fromEnd, end); pos >= 0 {
		stop = pos
	}
	return append(refs, p.items(idx, fromEnd, stop)...)
}

// items splits a FROM clause range into items on commas and join keywords,
// discarding ON and USING conditions.
func (p *parser) items(idx, from, end int) []TableRef {
	var (
		refs   []TableRef
		cur    []token
		inCond bool
	)
	flush := func() {
		if ref, ok := p.item(idx, cur); ok {
			refs = append(refs, ref)
		} else if len(cur) > 0 && cur[0].kind == tokGroup {
			refs = append(refs, p.nested(idx, cur[0])...)
		}
		cur = cur[:0]
	}

	toks := p.s.tokens(from, end)
	for i, t := range toks {
		switch {
		case t.kind == tokPunct && t.text == ",", joinStart(toks, i):
			flush()
			inCond = false
		case t.isWord("ON") || t.isWord("USING"):
			flush()
			inCond = true
		case inCond:
		default:
			cur = append(cur, t)
		}
	}
	flush()
	return refs
}

// nested extracts the items of a parenthesized join such as (a JOIN b ON ...).
func (p *parser) nested(idx int, g token) []TableRef {
	end := g.end
	if end > g.start+1 && p.s.text[end-1] == ')' {
		end--
	}
	return p.items(idx, g.start+1, end)
}

// item parses one FROM item: a derived table, a table function or
// [[catalog.]schema.]name, followed by an optional [AS] alias.
func (p *parser) item(idx int, toks []token) (TableRef, bool) {
	for len(toks) > 0 && (toks[0].isWord("LATERAL") || toks[0].isWord("ONLY") ||
		(toks[0].isWord("TABLE") && len(toks) > 1 && toks[1].kind == tokGroup)) {
		toks = toks[1:]
	}
	if len(toks) == 0 {
		return TableRef{}, false
	}

	ref := newTableRef()
	ref.Span = Span{Start: toks[0].start, End: toks[len(toks)-1].end}

	if toks[0].kind == tokGroup {
		child := p.childAt(idx, toks[0].start)
		if child < 0 {
			return TableRef{}, false
		}
		ref.IsDerivedTable = true
		ref.DerivedScope = child
		ref.Alias = p.scopes[child].Alias
		return ref, true
	}

	// Dotted name
	var (
		parts  []string
		quoted []bool
	)
	i := 0
	for i < len(toks) && toks[i].isName() {
		parts = append(parts, toks[i].text)
		quoted = append(quoted, toks[i].kind == tokQuoted)
		i++
		if i < len(toks) && toks[i].kind == tokPunct && toks[i].text == "." {
			i++
			if i >= len(toks) {
				// Trailing dot while typing: no table yet
				return TableRef{}, false
			}
			continue
		}
		break
	}
	if len(parts) == 0 {
		return TableRef{}, false
	}
	if len(parts) > 3 {
		parts, quoted = parts[len(parts)-3:], quoted[len(quoted)-3:]
	}
	ref.TableName, ref.Quoted = parts[len(parts)-1], quoted[len(quoted)-1]
	if len(parts) >= 2 {
		ref.Schema, ref.SchemaQuoted = parts[len(parts)-2], quoted[len(quoted)-2]
	}
	if len(parts) == 3 {
		ref.Catalog = parts[0]
	}

	if i < len(toks) && toks[i].kind == tokGroup {
		ref.IsFunction = true
		i++
	}

	if i < len(toks) && toks[i].isWord("AS") {
		i++
	}
	if i < len(toks) && toks[i].isName() {
		ref.Alias = toks[i].text
	}

	if !ref.IsFunction && ref.Schema == "" {
		ref.CTEScope = p.visibleCTE(idx, ref.TableName)
	}
	return ref, true
}
