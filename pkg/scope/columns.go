package scope

import "strings"

// resolveColumns fills ExposedColumns and WherePart for scope idx. Only the
// first arm of a set operation names the output columns.
func (p *parser) resolveColumns(idx int) {
	sc := &p.scopes[idx]
	arms := p.arms(idx)

	var wheres []string
	for _, arm := range arms {
		if w := p.wherePart(arm[0], arm[1]); w != "" {
			wheres = append(wheres, w)
		}
	}
	sc.WherePart = strings.Join(wheres, " ")

	if len(sc.ColumnAliases) > 0 {
		sc.ExposedColumns = dedupe(sc.ColumnAliases)
		return
	}
	if len(arms) == 0 {
		return
	}
	sc.ExposedColumns = p.selectList(arms[0][0], arms[0][1])
}

func (p *parser) wherePart(from, end int) string {
	_, start, _ := p.s.findKeyword([]string{"WHERE"}, from, end)
	if start < 0 {
		return ""
	}
	stop := end
	if pos, _, _ := p.s.findKeyword(whereTerminators, start, end); pos >= 0 {
		stop = pos
	}
	return strings.TrimSpace(p.s.text[start:stop])
}

// selectList returns the exposed column names of the SELECT list in range.
func (p *parser) selectList(from, end int) []string {
	_, start, _ := p.s.findKeyword([]string{"SELECT"}, from, end)
	if start < 0 {
		return nil
	}

	// SELECT DISTINCT | ALL | DISTINCT ON (...) | TOP n
	for {
		t, ok := p.s.nextToken(start, end)
		if !ok {
			break
		}
		if t.isWord("DISTINCT") || t.isWord("ALL") {
			start = t.end
			if on, ok := p.s.nextToken(start, end); ok && on.isWord("ON") {
				if g, ok := p.s.nextToken(on.end, end); ok && g.kind == tokGroup {
					start = g.end
				}
			}
			continue
		}
		if t.isWord("TOP") {
			if n, ok := p.s.nextToken(t.end, end); ok && (n.kind == tokNumber || n.kind == tokGroup) {
				start = n.end
				continue
			}
		}
		break
	}

	stop := end
	if pos, _, _ := p.s.findKeyword(selectTerminators, start, end); pos >= 0 {
		stop = pos
	}

	var cols []string
	for _, part := range p.s.splitTopLevel(start, stop, ',') {
		if name := exposedName(p.s.tokens(part[0], part[1])); name != "" {
			cols = append(cols, name)
		}
	}
	return dedupe(cols)
}

// exposedName applies, in order: explicit AS alias, implicit trailing alias,
// simple column reference. Anything else exposes nothing.
func exposedName(toks []token) string {
	n := len(toks)
	if n == 0 {
		return ""
	}

	for i := n - 2; i >= 0; i-- {
		if toks[i].isWord("AS") {
			if toks[i+1].isName() {
				return toks[i+1].text
			}
			break
		}
	}

	if n >= 2 {
		last, prev := toks[n-1], toks[n-2]
		if last.isName() && last.start > prev.end && precedesAlias(prev) {
			return last.text
		}
	}

	// [qualifier.]*column
	for i, t := range toks {
		if i%2 == 0 && !t.isName() {
			return ""
		}
		if i%2 == 1 && (t.kind != tokPunct || t.text != ".") {
			return ""
		}
	}
	if n%2 == 0 {
		return ""
	}
	return toks[n-1].text
}

// precedesAlias reports whether t can end an expression that a bare alias
// then follows.
func precedesAlias(t token) bool {
	switch t.kind {
	case tokIdent:
		return !IsReserved(t.text) || t.isWord("END")
	case tokQuoted, tokString, tokNumber, tokGroup:
		return true
	}
	return false
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		key := strings.ToUpper(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
