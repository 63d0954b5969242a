package scope

import "strings"

// Parse carves text into scopes. The result always holds at least the root
// scope at index 0; malformed input yields fewer or partial scopes, never a
// panic.
func Parse(text string) []Scope {
	s := NewScanner(text)
	b := &builder{s: s}
	b.build()

	p := &parser{s: s, scopes: b.scopes}
	p.markCTEs()
	for i := range p.scopes {
		p.extractTables(i)
	}
	for i := range p.scopes {
		p.resolveColumns(i)
	}
	return p.scopes
}

type builder struct {
	s      *Scanner
	scopes []Scope
	// closeAt is the matching ')' offset per scope index.
	closeAt []int
}

func (b *builder) push(sc Scope, closeAt int) int {
	sc.Index = len(b.scopes)
	b.scopes = append(b.scopes, sc)
	b.closeAt = append(b.closeAt, closeAt)
	return sc.Index
}

func (b *builder) build() {
	n := b.s.Len()
	b.push(Scope{Parent: NoParent, Span: Span{Start: 0, End: n}}, n)

	stack := []int{0}
	for i := 0; i < n; {
		if j := b.s.SkipStringsAndComments(i); j != i {
			i = j
			continue
		}

		cur := stack[len(stack)-1]
		switch b.s.text[i] {
		case '(':
			if b.s.startsSubquery(i) {
				idx := b.push(Scope{
					Level:  b.scopes[cur].Level + 1,
					Parent: cur,
					Span:   Span{Start: i, End: n},
				}, b.s.FindMatchingClose(i))
				stack = append(stack, idx)
			}
		case ')':
			if cur != 0 && b.closeAt[cur] == i {
				b.scopes[cur].Span.End = i
				b.readAlias(cur, i+1)
				stack = stack[:len(stack)-1]
			}
		}
		i++
	}

	for _, idx := range stack[1:] {
		b.scopes[idx].Unterminated = true
	}
}

// readAlias reads an optional [AS] alias [(c1, c2, ...)] following the
// closing parenthesis of scope idx.
func (b *builder) readAlias(idx, from int) {
	n := b.s.Len()
	t, ok := b.s.nextToken(from, n)
	if !ok {
		return
	}
	if t.isWord("AS") {
		if t, ok = b.s.nextToken(t.end, n); !ok {
			return
		}
	}
	if !t.isName() {
		return
	}
	b.scopes[idx].Alias = t.text

	if g, ok := b.s.nextToken(t.end, n); ok && g.kind == tokGroup {
		if cols, ok := b.s.identList(g); ok {
			b.scopes[idx].ColumnAliases = cols
		}
	}
}

// identList parses a group token holding a comma-separated identifier list.
func (s *Scanner) identList(g token) ([]string, bool) {
	end := g.end
	if end > g.start+1 && s.text[end-1] == ')' {
		end--
	}
	var out []string
	for _, part := range s.splitTopLevel(g.start+1, end, ',') {
		toks := s.tokens(part[0], part[1])
		if len(toks) != 1 || !toks[0].isName() {
			return nil, false
		}
		out = append(out, toks[0].text)
	}
	return out, len(out) > 0
}

// parser fills in the clause-level details of built scopes.
type parser struct {
	s      *Scanner
	scopes []Scope
	// ctes lists the CTE body scopes found by markCTEs.
	ctes []int
}

// body returns the range of a scope's own text, without its parentheses.
func (p *parser) body(idx int) (int, int) {
	sc := p.scopes[idx]
	if sc.Level == 0 {
		return sc.Span.Start, sc.Span.End
	}
	return sc.Span.Start + 1, sc.Span.End
}

// childAt returns the index of the child of parent whose span starts at
// offset, or -1.
func (p *parser) childAt(parent, offset int) int {
	for i := parent + 1; i < len(p.scopes); i++ {
		if p.scopes[i].Span.Start == offset && p.scopes[i].Parent == parent {
			return i
		}
		if p.scopes[i].Span.Start > offset {
			break
		}
	}
	return -1
}

// markCTEs finds WITH [RECURSIVE] name [(cols)] AS [[NOT] MATERIALIZED] (...)
// lists at the top level of each scope and names the body scopes.
func (p *parser) markCTEs() {
	for idx := range p.scopes {
		from, end := p.body(idx)
		toks := p.s.tokens(from, end)
		for i := 0; i < len(toks); i++ {
			if !toks[i].isWord("WITH") {
				continue
			}
			i++
			if i < len(toks) && toks[i].isWord("RECURSIVE") {
				i++
			}
			i = p.cteList(idx, toks, i)
		}
	}
}

func (p *parser) cteList(parent int, toks []token, i int) int {
	for i < len(toks) {
		if !toks[i].isName() {
			return i
		}
		name := toks[i].text
		i++

		var cols []string
		if i < len(toks) && toks[i].kind == tokGroup {
			cols, _ = p.s.identList(toks[i])
			i++
		}
		if i >= len(toks) || !toks[i].isWord("AS") {
			return i
		}
		i++
		for i < len(toks) && (toks[i].isWord("NOT") || toks[i].isWord("MATERIALIZED")) {
			i++
		}
		if i >= len(toks) || toks[i].kind != tokGroup {
			return i
		}
		if child := p.childAt(parent, toks[i].start); child >= 0 {
			if p.scopes[child].CTEName == "" {
				p.ctes = append(p.ctes, child)
			}
			p.scopes[child].CTEName = name
			if len(cols) > 0 {
				p.scopes[child].ColumnAliases = cols
			}
		}
		i++
		if i >= len(toks) || toks[i].text != "," {
			return i
		}
		i++
	}
	return i
}

// arms splits a scope body into statements (on ';') and set-operation arms.
func (p *parser) arms(idx int) [][2]int {
	from, end := p.body(idx)
	var out [][2]int
	for _, stmt := range p.s.splitTopLevel(from, end, ';') {
		start := stmt[0]
		for {
			pos, stop, _ := p.s.findKeyword(setOperators, start, stmt[1])
			if pos < 0 {
				out = append(out, [2]int{start, stmt[1]})
				break
			}
			out = append(out, [2]int{start, pos})
			start = stop
		}
	}
	return out
}

// visibleCTE resolves name against the CTE bodies declared by the scope or
// any ancestor, nearest first.
func (p *parser) visibleCTE(idx int, name string) int {
	if len(p.ctes) == 0 {
		return -1
	}
	for cur := idx; cur != NoParent && cur < len(p.scopes); cur = p.scopes[cur].Parent {
		for _, i := range p.ctes {
			c := p.scopes[i]
			if c.Parent == cur && strings.EqualFold(c.CTEName, name) {
				return i
			}
		}
	}
	return -1
}
