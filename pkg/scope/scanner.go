package scope

import "strings"

// Scanner walks raw SQL text. String literals, quoted identifiers and
// comments are inert: parentheses and keywords inside them are never seen
// by the boundary queries.
type Scanner struct {
	text string
	// closes maps each '(' outside inert zones to its matching ')', or to
	// len(text) when it is never closed.
	closes map[int]int
}

// NewScanner creates a scanner over text.
func NewScanner(text string) *Scanner {
	s := &Scanner{text: text}
	s.pairParens()
	return s
}

// pairParens fills closes in one pass over the text.
func (s *Scanner) pairParens() {
	s.closes = map[int]int{}
	var open []int
	for i := 0; i < len(s.text); {
		if j := s.SkipStringsAndComments(i); j != i {
			i = j
			continue
		}
		switch s.text[i] {
		case '(':
			open = append(open, i)
		case ')':
			if len(open) > 0 {
				s.closes[open[len(open)-1]] = i
				open = open[:len(open)-1]
			}
		}
		i++
	}
	for _, o := range open {
		s.closes[o] = len(s.text)
	}
}

// Len returns the length of the scanned text.
func (s *Scanner) Len() int {
	return len(s.text)
}

// SkipStringsAndComments returns the offset just past the string literal,
// quoted identifier or comment starting at i. If nothing inert starts at i,
// i is returned unchanged. Unterminated zones run to end of text.
func (s *Scanner) SkipStringsAndComments(i int) int {
	n := len(s.text)
	if i < 0 || i >= n {
		return i
	}

	switch c := s.text[i]; {
	case c == '\'' || c == '"':
		// Doubled quote is an escaped quote
		j := i + 1
		for j < n {
			if s.text[j] == c {
				if j+1 < n && s.text[j+1] == c {
					j += 2
					continue
				}
				return j + 1
			}
			j++
		}
		return n
	case c == '-' && i+1 < n && s.text[i+1] == '-':
		if nl := strings.IndexByte(s.text[i:], '\n'); nl >= 0 {
			return i + nl + 1
		}
		return n
	case c == '/' && i+1 < n && s.text[i+1] == '*':
		if end := strings.Index(s.text[i+2:], "*/"); end >= 0 {
			return i + 2 + end + 2
		}
		return n
	}
	return i
}

// skipSpace returns the first offset at or after i that is neither
// whitespace nor a comment.
func (s *Scanner) skipSpace(i int) int {
	n := len(s.text)
	if i < 0 {
		i = 0
	}
	for i < n {
		c := s.text[i]
		if isSpace(c) {
			i++
			continue
		}
		if c == '-' || c == '/' {
			if j := s.SkipStringsAndComments(i); j != i {
				i = j
				continue
			}
		}
		break
	}
	return i
}

// FindMatchingClose returns the offset of the ')' matching the '(' at open.
// It returns len(text) when the parenthesis is never closed or open does not
// point at '('.
func (s *Scanner) FindMatchingClose(open int) int {
	n := len(s.text)
	if open < 0 || open >= n || s.text[open] != '(' {
		return n
	}
	if j, ok := s.closes[open]; ok {
		return j
	}

	depth := 0
	for i := open; i < n; {
		if j := s.SkipStringsAndComments(i); j != i {
			i = j
			continue
		}
		switch s.text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
		i++
	}
	return n
}

// FindTopLevelKeyword searches [from, end) for the first of keywords that
// occurs outside nested parentheses, strings and comments. Multi-word
// keywords ("GROUP BY") match across any run of whitespace. It returns the
// keyword offset and the keyword that matched, or -1 and "".
func (s *Scanner) FindTopLevelKeyword(keywords []string, from, end int) (int, string) {
	pos, _, kw := s.findKeyword(keywords, from, end)
	return pos, kw
}

// findKeyword is FindTopLevelKeyword that also returns the offset just past
// the match. When several keywords match at the same offset the longest
// wins, so "UNION ALL" beats "UNION".
func (s *Scanner) findKeyword(keywords []string, from, end int) (pos, stop int, kw string) {
	if end > len(s.text) {
		end = len(s.text)
	}
	if from < 0 {
		from = 0
	}

	for i := from; i < end; {
		if j := s.SkipStringsAndComments(i); j != i {
			i = j
			continue
		}
		c := s.text[i]
		switch {
		case c == '(':
			// Nothing after an unclosed group is top level
			j := s.FindMatchingClose(i)
			if j >= end {
				return -1, -1, ""
			}
			i = j + 1
			continue
		case isIdentStart(c) && (i == 0 || !isIdentChar(s.text[i-1])):
			best, bestEnd := "", -1
			for _, k := range keywords {
				if e, ok := s.matchKeyword(i, end, k); ok && e > bestEnd {
					best, bestEnd = k, e
				}
			}
			if bestEnd >= 0 {
				return i, bestEnd, best
			}
			// Skip the rest of the word so "FROMAGE" never matches FROM later
			for i < end && isIdentChar(s.text[i]) {
				i++
			}
			continue
		}
		i++
	}
	return -1, -1, ""
}

// matchKeyword reports whether kw occurs at i (case-insensitive, bounded by
// non-identifier characters) and returns the offset just past it.
func (s *Scanner) matchKeyword(i, end int, kw string) (int, bool) {
	words := strings.Fields(kw)
	pos := i
	for w, word := range words {
		if w > 0 {
			next := s.skipSpace(pos)
			if next == pos || next >= end {
				return 0, false
			}
			pos = next
		}
		if pos+len(word) > end || !strings.EqualFold(s.text[pos:pos+len(word)], word) {
			return 0, false
		}
		pos += len(word)
		if pos < len(s.text) && isIdentChar(s.text[pos]) {
			return 0, false
		}
	}
	return pos, true
}

// startsSubquery reports whether the '(' at open is followed by SELECT or
// VALUES.
func (s *Scanner) startsSubquery(open int) bool {
	i := s.skipSpace(open + 1)
	for _, kw := range subqueryStarters {
		if _, ok := s.matchKeyword(i, len(s.text), kw); ok {
			return true
		}
	}
	return false
}

// tokenKind classifies the coarse tokens used by the clause parsers.
type tokenKind int

const (
	tokIdent  tokenKind = iota // bare word
	tokQuoted                  // "quoted identifier"
	tokString                  // 'literal'
	tokNumber
	tokGroup // a whole parenthesized group, nested content included
	tokPunct
)

// token is a coarse token. For tokIdent and tokQuoted, text holds the
// identifier value (quotes removed).
type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
}

// isWord reports whether the token is the bare keyword kw.
func (t token) isWord(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

// isName reports whether the token can name a table, alias or column.
func (t token) isName() bool {
	return t.kind == tokQuoted || (t.kind == tokIdent && !IsReserved(t.text))
}

// tokens splits [from, end) into top-level tokens. A parenthesized group
// becomes a single tokGroup spanning '(' through ')'; an unterminated group
// runs to end. Comments are dropped.
func (s *Scanner) tokens(from, end int) []token {
	var toks []token
	for {
		t, ok := s.nextToken(from, end)
		if !ok {
			return toks
		}
		toks = append(toks, t)
		from = t.end
	}
}

// nextToken reads the first token at or after i, bounded by end.
func (s *Scanner) nextToken(i, end int) (token, bool) {
	if end > len(s.text) {
		end = len(s.text)
	}
	i = s.skipSpace(i)
	if i < 0 || i >= end {
		return token{}, false
	}

	c := s.text[i]
	switch {
	case c == '\'':
		j := min(s.SkipStringsAndComments(i), end)
		return token{kind: tokString, text: s.text[i:j], start: i, end: j}, true
	case c == '"':
		j := min(s.SkipStringsAndComments(i), end)
		val := strings.TrimSuffix(s.text[i+1:j], `"`)
		return token{kind: tokQuoted, text: strings.ReplaceAll(val, `""`, `"`), start: i, end: j}, true
	case c == '(':
		j := s.FindMatchingClose(i)
		if j >= end {
			j = end
		} else {
			j++
		}
		return token{kind: tokGroup, text: s.text[i:j], start: i, end: j}, true
	case isIdentStart(c):
		j := i
		for j < end && isIdentChar(s.text[j]) {
			j++
		}
		return token{kind: tokIdent, text: s.text[i:j], start: i, end: j}, true
	case isDigit(c):
		j := i
		for j < end && (isIdentChar(s.text[j]) || s.text[j] == '.') {
			j++
		}
		return token{kind: tokNumber, text: s.text[i:j], start: i, end: j}, true
	}

	j := i + 1
	// Keep common two-character operators together
	if j < end {
		switch s.text[i : j+1] {
		case "||", "<=", ">=", "<>", "!=", "::", "->":
			j++
		}
	}
	return token{kind: tokPunct, text: s.text[i:j], start: i, end: j}, true
}

// splitTopLevel splits [from, end) on top-level occurrences of sep and
// returns the [start, end) ranges of the pieces.
func (s *Scanner) splitTopLevel(from, end int, sep byte) [][2]int {
	var parts [][2]int
	start := from
	for i := from; i < end; {
		if j := s.SkipStringsAndComments(i); j != i {
			i = j
			continue
		}
		switch s.text[i] {
		case '(':
			j := s.FindMatchingClose(i)
			if j >= end {
				return append(parts, [2]int{start, end})
			}
			i = j + 1
			continue
		case sep:
			parts = append(parts, [2]int{start, i})
			start = i + 1
		}
		i++
	}
	return append(parts, [2]int{start, end})
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '@' || c == '#' || c == '$' || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
