package lsp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqlscope/internal/completion"
	"github.com/leapstack-labs/sqlscope/pkg/scope"
)

// completionKinds maps engine item kinds to LSP kinds.
var completionKinds = map[completion.ItemKind]CompletionItemKind{
	completion.KindAlias:   CompletionItemKindVariable,
	completion.KindColumn:  CompletionItemKindField,
	completion.KindTable:   CompletionItemKindClass,
	completion.KindCTE:     CompletionItemKindInterface,
	completion.KindKeyword: CompletionItemKindKeyword,
}

// getCompletions answers textDocument/completion. Items keep the engine's
// ranking through SortText and replace the identifier typed so far.
func (s *Server) getCompletions(ctx context.Context, params CompletionParams) *CompletionList {
	list := &CompletionList{Items: []CompletionItem{}}
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil || s.engine == nil {
		return list
	}

	offset := doc.PositionToOffset(params.Position)
	res := s.engine.Complete(ctx, doc.Content, offset)

	replace := Range{
		Start: doc.OffsetToPosition(res.ReplaceStart),
		End:   doc.OffsetToPosition(offset),
	}
	for i, it := range res.Items {
		detail := it.Detail
		if it.FromParent {
			detail += " (outer query)"
		}
		list.Items = append(list.Items, CompletionItem{
			Label:    it.Label,
			Kind:     completionKinds[it.Kind],
			Detail:   detail,
			SortText: fmt.Sprintf("%04d", i),
			TextEdit: &TextEdit{Range: replace, NewText: it.Label},
		})
	}
	list.IsIncomplete = res.Truncated

	s.logger.Debug("completion",
		slog.String("uri", params.TextDocument.URI),
		slog.String("context", res.Context.String()),
		slog.Int("items", len(list.Items)))
	return list
}

// getHover describes the alias under the cursor.
func (s *Server) getHover(ctx context.Context, params HoverParams) *Hover {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil || s.engine == nil {
		return nil
	}

	word, rng := doc.GetWordAtPosition(params.Position)
	if word == "" {
		return nil
	}
	contents, ok := s.engine.Hover(ctx, doc.Content, doc.PositionToOffset(params.Position))
	if !ok {
		return nil
	}
	return &Hover{
		Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: contents},
		Range:    &rng,
	}
}

// getDefinition jumps from an alias to the FROM item that introduces it,
// or from a CTE reference to the CTE body.
func (s *Server) getDefinition(ctx context.Context, params DefinitionParams) *Location {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil || s.engine == nil {
		return nil
	}

	word, _ := doc.GetWordAtPosition(params.Position)
	if word == "" {
		return nil
	}

	in, _ := s.engine.Inspect(ctx, doc.Content, doc.PositionToOffset(params.Position))
	alias, ok := in.Visibility.Lookup(word)
	if !ok {
		return nil
	}

	span := alias.Table.Span
	if alias.Table.CTEScope >= 0 && alias.Table.CTEScope < len(in.Scopes) {
		span = in.Scopes[alias.Table.CTEScope].Span
	}
	return &Location{URI: doc.URI, Range: doc.SpanToRange(span)}
}

// getDocumentSymbols returns the query blocks of the document as a tree.
func (s *Server) getDocumentSymbols(params DocumentSymbolParams) []DocumentSymbol {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return []DocumentSymbol{}
	}
	scopes := doc.Scopes()

	children := make(map[int][]int, len(scopes))
	var roots []int
	for _, sc := range scopes {
		if sc.HasParent() {
			children[sc.Parent] = append(children[sc.Parent], sc.Index)
		} else {
			roots = append(roots, sc.Index)
		}
	}

	var build func(idx int) DocumentSymbol
	build = func(idx int) DocumentSymbol {
		sc := scopes[idx]
		rng := doc.SpanToRange(sc.Span)
		sym := DocumentSymbol{
			Name:           scopeName(sc),
			Detail:         scopeDetail(sc),
			Kind:           SymbolKindStruct,
			Range:          rng,
			SelectionRange: Range{Start: rng.Start, End: rng.Start},
		}
		switch {
		case !sc.HasParent():
			sym.Kind = SymbolKindNamespace
		case sc.CTEName != "":
			sym.Kind = SymbolKindClass
		}
		for _, c := range children[idx] {
			sym.Children = append(sym.Children, build(c))
		}
		return sym
	}

	out := make([]DocumentSymbol, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r))
	}
	return out
}

func scopeName(sc scope.Scope) string {
	switch {
	case sc.CTEName != "":
		return sc.CTEName
	case !sc.HasParent():
		return "query"
	case sc.Alias != "":
		return sc.Alias
	}
	return fmt.Sprintf("subquery #%d", sc.Index)
}

func scopeDetail(sc scope.Scope) string {
	if len(sc.ExposedColumns) == 0 {
		return ""
	}
	return fmt.Sprintf("%d columns", len(sc.ExposedColumns))
}
