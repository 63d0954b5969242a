package lsp

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/leapstack-labs/sqlscope/pkg/scope"
)

// Document is an immutable snapshot of an open text document. Edits
// produce a new snapshot, so a handler holding one never sees it change.
type Document struct {
	URI     string // Document URI (file:///path/to/file.sql)
	Content string // Full document content
	Version int    // Version number, incremented on each change
	Lines   []int  // Byte offsets of line starts for fast position lookups

	parseOnce sync.Once
	scopes    []scope.Scope
}

func newDocument(uri, content string, version int) *Document {
	return &Document{
		URI:     uri,
		Content: content,
		Version: version,
		Lines:   computeLineOffsets(content),
	}
}

// Scopes returns the parsed query blocks of the document, parsing on first
// use.
func (d *Document) Scopes() []scope.Scope {
	d.parseOnce.Do(func() {
		d.scopes = scope.Parse(d.Content)
	})
	return d.scopes
}

// DocumentStore manages open documents in memory.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
}

// NewDocumentStore creates a new document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]*Document),
	}
}

// Open adds or replaces a document in the store.
func (s *DocumentStore) Open(uri string, content string, version int) *Document {
	doc := newDocument(uri, content, version)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[uri] = doc
	return doc
}

// Close removes a document from the store.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, uri)
}

// Get retrieves a document by URI.
func (s *DocumentStore) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.documents[uri]
}

// Update applies content changes in order and stores the result. Unknown
// documents are ignored and nil is returned.
func (s *DocumentStore) Update(uri string, changes []TextDocumentContentChangeEvent, version int) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[uri]
	if !ok {
		return nil
	}
	content := doc.Content
	for _, ch := range changes {
		if ch.Range == nil {
			content = ch.Text
			continue
		}
		cur := newDocument(uri, content, version)
		start := cur.PositionToOffset(ch.Range.Start)
		end := cur.PositionToOffset(ch.Range.End)
		if end < start {
			start, end = end, start
		}
		content = content[:start] + ch.Text + content[end:]
	}

	doc = newDocument(uri, content, version)
	s.documents[uri] = doc
	return doc
}

// List returns all open document URIs.
func (s *DocumentStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uris := make([]string, 0, len(s.documents))
	for uri := range s.documents {
		uris = append(uris, uri)
	}
	return uris
}

// computeLineOffsets calculates byte offsets for each line start.
func computeLineOffsets(content string) []int {
	offsets := []int{0} // First line starts at offset 0

	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}

	return offsets
}

// lineEnd returns the byte offset of the end of line, excluding the line
// break.
func (d *Document) lineEnd(line int) int {
	if line+1 < len(d.Lines) {
		end := d.Lines[line+1] - 1
		if end > d.Lines[line] && d.Content[end-1] == '\r' {
			end--
		}
		return end
	}
	return len(d.Content)
}

// PositionToOffset converts a Position to a byte offset in the document.
// Characters count UTF-16 code units; positions past the end of a line
// clamp to the line end.
func (d *Document) PositionToOffset(pos Position) int {
	if d == nil || len(d.Lines) == 0 {
		return 0
	}

	line := int(pos.Line)
	if line >= len(d.Lines) {
		return len(d.Content)
	}

	offset := d.Lines[line]
	end := d.lineEnd(line)
	for units := uint32(0); offset < end && units < pos.Character; {
		r, size := utf8.DecodeRuneInString(d.Content[offset:end])
		units += uint32(utf16.RuneLen(r))
		if units > pos.Character {
			break
		}
		offset += size
	}
	return offset
}

// OffsetToPosition converts a byte offset to a Position.
func (d *Document) OffsetToPosition(offset int) Position {
	if d == nil || len(d.Lines) == 0 {
		return Position{}
	}

	if offset < 0 {
		offset = 0
	}
	if offset > len(d.Content) {
		offset = len(d.Content)
	}

	// Binary search for the last line starting at or before offset.
	lo, hi := 0, len(d.Lines)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if d.Lines[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	line := lo

	var units int
	for _, r := range d.Content[d.Lines[line]:offset] {
		units += utf16.RuneLen(r)
	}
	return Position{
		Line:      uint32(line),
		Character: uint32(units),
	}
}

// SpanToRange converts a byte span to a Range.
func (d *Document) SpanToRange(span scope.Span) Range {
	return Range{
		Start: d.OffsetToPosition(span.Start),
		End:   d.OffsetToPosition(span.End),
	}
}

// GetWordAtPosition returns the word at the given position and its range.
// Quoted identifiers are returned without their quotes.
func (d *Document) GetWordAtPosition(pos Position) (string, Range) {
	offset := d.PositionToOffset(pos)

	start := offset
	for start > 0 && isWordChar(d.Content[start-1]) {
		start--
	}

	end := offset
	for end < len(d.Content) && isWordChar(d.Content[end]) {
		end++
	}

	if start == end {
		return "", Range{Start: pos, End: pos}
	}

	return d.Content[start:end], Range{
		Start: d.OffsetToPosition(start),
		End:   d.OffsetToPosition(end),
	}
}

// isWordChar returns true if the character is part of a word.
func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '$' || c >= utf8.RuneSelf
}

// URIToPath converts a file:// URI to a file system path.
func URIToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	path := u.Path
	// file:///C:/dir on Windows
	if runtime.GOOS == "windows" && len(path) > 2 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path)
}

// PathToURI converts a file system path to a file:// URI.
func PathToURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return (&url.URL{Scheme: "file", Path: path}).String()
}
