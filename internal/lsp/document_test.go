package lsp

import (
	"runtime"
	"sort"
	"testing"
)

func TestDocumentStore_OpenGetClose(t *testing.T) {
	store := NewDocumentStore()

	uri := "file:///test/query.sql"
	content := "SELECT * FROM users"

	store.Open(uri, content, 1)

	doc := store.Get(uri)
	if doc == nil {
		t.Fatal("expected document to exist")
	}
	if doc.URI != uri {
		t.Errorf("expected URI %s, got %s", uri, doc.URI)
	}
	if doc.Content != content {
		t.Errorf("expected content %q, got %q", content, doc.Content)
	}
	if doc.Version != 1 {
		t.Errorf("expected version 1, got %d", doc.Version)
	}

	store.Close(uri)
	if store.Get(uri) != nil {
		t.Error("expected document to be nil after close")
	}
}

func TestDocumentStore_Update(t *testing.T) {
	pos := func(line, char uint32) Position { return Position{Line: line, Character: char} }

	tests := []struct {
		name    string
		initial string
		changes []TextDocumentContentChangeEvent
		want    string
	}{
		{
			name:    "full replace",
			initial: "SELECT 1",
			changes: []TextDocumentContentChangeEvent{{Text: "SELECT 2"}},
			want:    "SELECT 2",
		},
		{
			name:    "insert",
			initial: "SELECT  FROM t",
			changes: []TextDocumentContentChangeEvent{
				{Range: &Range{Start: pos(0, 7), End: pos(0, 7)}, Text: "a"},
			},
			want: "SELECT a FROM t",
		},
		{
			name:    "replace on second line",
			initial: "SELECT a\nFROM t",
			changes: []TextDocumentContentChangeEvent{
				{Range: &Range{Start: pos(1, 5), End: pos(1, 6)}, Text: "orders o"},
			},
			want: "SELECT a\nFROM orders o",
		},
		{
			name:    "sequential edits see earlier ones",
			initial: "SELECT",
			changes: []TextDocumentContentChangeEvent{
				{Range: &Range{Start: pos(0, 6), End: pos(0, 6)}, Text: "\n1"},
				{Range: &Range{Start: pos(1, 1), End: pos(1, 1)}, Text: ", 2"},
			},
			want: "SELECT\n1, 2",
		},
		{
			name:    "delete",
			initial: "SELECT xyz",
			changes: []TextDocumentContentChangeEvent{
				{Range: &Range{Start: pos(0, 6), End: pos(0, 10)}, Text: ""},
			},
			want: "SELECT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewDocumentStore()
			uri := "file:///test/query.sql"
			store.Open(uri, tt.initial, 1)

			doc := store.Update(uri, tt.changes, 2)
			if doc == nil {
				t.Fatal("expected updated document")
			}
			if doc.Content != tt.want {
				t.Errorf("expected content %q, got %q", tt.want, doc.Content)
			}
			if doc.Version != 2 {
				t.Errorf("expected version 2, got %d", doc.Version)
			}
			if store.Get(uri) != doc {
				t.Error("store should hold the updated snapshot")
			}
		})
	}
}

func TestDocumentStore_UpdateUnknown(t *testing.T) {
	store := NewDocumentStore()
	if doc := store.Update("file:///missing.sql", []TextDocumentContentChangeEvent{{Text: "x"}}, 1); doc != nil {
		t.Errorf("expected nil for unknown document, got %+v", doc)
	}
}

func TestDocumentStore_SnapshotsAreImmutable(t *testing.T) {
	store := NewDocumentStore()
	uri := "file:///test/query.sql"
	before := store.Open(uri, "SELECT 1 FROM (SELECT 2) d", 1)
	if n := len(before.Scopes()); n != 2 {
		t.Fatalf("expected 2 scopes, got %d", n)
	}

	store.Update(uri, []TextDocumentContentChangeEvent{{Text: "SELECT 1"}}, 2)

	if before.Content != "SELECT 1 FROM (SELECT 2) d" {
		t.Errorf("old snapshot changed: %q", before.Content)
	}
	if n := len(store.Get(uri).Scopes()); n != 1 {
		t.Errorf("expected 1 scope after update, got %d", n)
	}
}

func TestDocumentStore_List(t *testing.T) {
	store := NewDocumentStore()

	store.Open("file:///a.sql", "SELECT a", 1)
	store.Open("file:///b.sql", "SELECT b", 1)

	uris := store.List()
	sort.Strings(uris)
	if len(uris) != 2 || uris[0] != "file:///a.sql" || uris[1] != "file:///b.sql" {
		t.Errorf("unexpected uris: %v", uris)
	}
}

func TestComputeLineOffsets(t *testing.T) {
	tests := []struct {
		content string
		want    []int
	}{
		{"", []int{0}},
		{"hello", []int{0}},
		{"hello\nworld", []int{0, 6}},
		{"a\nb\nc", []int{0, 2, 4}},
		{"line1\n", []int{0, 6}},
	}

	for _, tt := range tests {
		got := computeLineOffsets(tt.content)
		if len(got) != len(tt.want) {
			t.Errorf("computeLineOffsets(%q) = %v, want %v", tt.content, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("computeLineOffsets(%q) = %v, want %v", tt.content, got, tt.want)
				break
			}
		}
	}
}

func TestDocument_PositionToOffset(t *testing.T) {
	tests := []struct {
		name    string
		content string
		pos     Position
		want    int
	}{
		{"start", "SELECT *\nFROM users", Position{Line: 0, Character: 0}, 0},
		{"first line", "SELECT *\nFROM users", Position{Line: 0, Character: 6}, 6},
		{"second line", "SELECT *\nFROM users", Position{Line: 1, Character: 0}, 9},
		{"second line middle", "SELECT *\nFROM users", Position{Line: 1, Character: 5}, 14},
		{"past line end clamps to line", "SELECT *\nFROM users", Position{Line: 0, Character: 50}, 8},
		{"past last line", "SELECT *\nFROM users", Position{Line: 5, Character: 0}, 19},
		{"crlf line end", "SELECT *\r\nFROM t", Position{Line: 0, Character: 50}, 8},
		// "é" is two bytes, one UTF-16 unit.
		{"two-byte rune", "SELECT 'é', x", Position{Line: 0, Character: 10}, 11},
		// "😀" is four bytes, two UTF-16 units.
		{"surrogate pair", "SELECT '😀', x", Position{Line: 0, Character: 11}, 13},
		{"inside surrogate pair", "SELECT '😀', x", Position{Line: 0, Character: 9}, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newDocument("file:///q.sql", tt.content, 1)
			if got := doc.PositionToOffset(tt.pos); got != tt.want {
				t.Errorf("PositionToOffset(%+v) = %d, want %d", tt.pos, got, tt.want)
			}
		})
	}
}

func TestDocument_OffsetToPosition(t *testing.T) {
	tests := []struct {
		name    string
		content string
		offset  int
		want    Position
	}{
		{"start", "SELECT *\nFROM users", 0, Position{Line: 0, Character: 0}},
		{"first line", "SELECT *\nFROM users", 6, Position{Line: 0, Character: 6}},
		{"newline char", "SELECT *\nFROM users", 8, Position{Line: 0, Character: 8}},
		{"second line", "SELECT *\nFROM users", 9, Position{Line: 1, Character: 0}},
		{"end", "SELECT *\nFROM users", 19, Position{Line: 1, Character: 10}},
		{"negative", "SELECT", -3, Position{Line: 0, Character: 0}},
		{"past end", "SELECT", 99, Position{Line: 0, Character: 6}},
		{"after surrogate pair", "SELECT '😀', x", 13, Position{Line: 0, Character: 11}},
		{"many lines", "a\nb\nc\nd\ne", 6, Position{Line: 3, Character: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newDocument("file:///q.sql", tt.content, 1)
			if got := doc.OffsetToPosition(tt.offset); got != tt.want {
				t.Errorf("OffsetToPosition(%d) = %+v, want %+v", tt.offset, got, tt.want)
			}
		})
	}
}

func TestDocument_GetWordAtPosition(t *testing.T) {
	doc := newDocument("file:///q.sql", "SELECT o.customer_id FROM orders o", 1)

	tests := []struct {
		char uint32
		want string
	}{
		{0, "SELECT"},
		{3, "SELECT"},
		{7, "o"},
		{8, "o"},
		{9, "customer_id"},
		{15, "customer_id"},
		{26, "orders"},
		{34, "o"},
	}

	for _, tt := range tests {
		got, rng := doc.GetWordAtPosition(Position{Line: 0, Character: tt.char})
		if got != tt.want {
			t.Errorf("GetWordAtPosition(%d) = %q, want %q", tt.char, got, tt.want)
			continue
		}
		if rng.End.Character-rng.Start.Character != uint32(len(tt.want)) {
			t.Errorf("GetWordAtPosition(%d) range %+v does not cover %q", tt.char, rng, tt.want)
		}
	}

	empty := newDocument("file:///q.sql", "a  b", 1)
	if got, _ := empty.GetWordAtPosition(Position{Line: 0, Character: 2}); got != "" {
		t.Errorf("expected no word between spaces, got %q", got)
	}
}

func TestURIToPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX paths")
	}
	tests := []struct {
		uri  string
		want string
	}{
		{"file:///home/user/project/query.sql", "/home/user/project/query.sql"},
		{"file:///home/user/my%20project/q.sql", "/home/user/my project/q.sql"},
		{"/already/a/path.sql", "/already/a/path.sql"},
	}

	for _, tt := range tests {
		if got := URIToPath(tt.uri); got != tt.want {
			t.Errorf("URIToPath(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestPathToURI(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX paths")
	}
	tests := []struct {
		path string
		want string
	}{
		{"/home/user/project/query.sql", "file:///home/user/project/query.sql"},
		{"/home/user/my project/q.sql", "file:///home/user/my%20project/q.sql"},
		{"file:///already/uri.sql", "file:///already/uri.sql"},
	}

	for _, tt := range tests {
		if got := PathToURI(tt.path); got != tt.want {
			t.Errorf("PathToURI(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIsWordChar(t *testing.T) {
	for _, c := range []byte("azAZ09_$") {
		if !isWordChar(c) {
			t.Errorf("isWordChar(%q) = false, want true", c)
		}
	}
	for _, c := range []byte(" .,()'\"\n") {
		if isWordChar(c) {
			t.Errorf("isWordChar(%q) = true, want false", c)
		}
	}
}
