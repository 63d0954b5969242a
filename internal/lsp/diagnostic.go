package lsp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqlscope/pkg/catalog"
	"github.com/leapstack-labs/sqlscope/pkg/scope"
)

// Diagnostic codes.
const (
	CodeUnclosedSubquery = "unclosed-subquery"
	CodeDerivedNoAlias   = "derived-table-alias"
	CodeUnknownTable     = "unknown-table"
)

const diagnosticSource = "sqlscope"

// publishDiagnostics analyzes the document and publishes the result.
func (s *Server) publishDiagnostics(ctx context.Context, uri string) {
	doc := s.documents.Get(uri)
	if doc == nil {
		return
	}
	version := doc.Version
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Version:     &version,
		Diagnostics: s.diagnose(ctx, doc),
	})
}

// republishAll refreshes diagnostics of every open document, after the
// catalog changed.
func (s *Server) republishAll(ctx context.Context) {
	for _, uri := range s.documents.List() {
		s.publishDiagnostics(ctx, uri)
	}
}

// diagnose reports structural problems of each query block and, when a
// catalog is available, tables it does not know.
func (s *Server) diagnose(ctx context.Context, doc *Document) []Diagnostic {
	diagnostics := []Diagnostic{}
	scopes := doc.Scopes()

	for _, sc := range scopes {
		if sc.Unterminated {
			diagnostics = append(diagnostics, Diagnostic{
				Range:    doc.SpanToRange(scope.Span{Start: sc.Span.Start, End: sc.Span.Start + 1}),
				Severity: DiagnosticSeverityError,
				Code:     CodeUnclosedSubquery,
				Source:   diagnosticSource,
				Message:  "subquery is never closed",
			})
		}
		for _, t := range sc.Tables {
			if t.IsDerivedTable && t.Alias == "" {
				diagnostics = append(diagnostics, Diagnostic{
					Range:    doc.SpanToRange(t.Span),
					Severity: DiagnosticSeverityWarning,
					Code:     CodeDerivedNoAlias,
					Source:   diagnosticSource,
					Message:  "derived table has no alias; its columns cannot be referenced",
				})
			}
		}
	}

	return append(diagnostics, s.unknownTables(ctx, doc, scopes)...)
}

// unknownTables flags base tables the catalog does not know. Nothing is
// reported when the catalog fails, so an unreachable database does not
// mark every table.
func (s *Server) unknownTables(ctx context.Context, doc *Document, scopes []scope.Scope) []Diagnostic {
	eng := s.engine
	if eng == nil || eng.Catalog() == nil {
		return nil
	}

	var (
		vis  scope.VisibilitySet
		refs []scope.TableRef
	)
	for _, sc := range scopes {
		for _, t := range sc.Tables {
			if tc, ok := catalog.TableFor(t); ok {
				vis.TableColumns = append(vis.TableColumns, tc)
				refs = append(refs, t)
			}
		}
	}
	if len(refs) == 0 {
		return nil
	}

	opts := eng.Options()
	resolved, err := catalog.Resolve(ctx, eng.Catalog(), vis, catalog.ResolveOptions{
		DefaultSchema: opts.DefaultSchema,
		Fold:          opts.Fold,
		Concurrency:   opts.Concurrency,
	})
	if err != nil {
		s.logger.Debug("skipping unknown-table diagnostics", slog.Any("error", err))
		return nil
	}

	var diagnostics []Diagnostic
	for i, tc := range resolved.TableColumns {
		if len(tc.Columns) > 0 {
			continue
		}
		diagnostics = append(diagnostics, Diagnostic{
			Range:    doc.SpanToRange(refs[i].Span),
			Severity: DiagnosticSeverityInformation,
			Code:     CodeUnknownTable,
			Source:   diagnosticSource,
			Message:  fmt.Sprintf("table %s is not in the catalog", refs[i].FullName()),
		})
	}
	return diagnostics
}
