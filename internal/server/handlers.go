package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/leapstack-labs/sqlscope/pkg/catalog"
	"github.com/leapstack-labs/sqlscope/pkg/scope"
)

// request is the body of every POST endpoint. A missing offset means the
// end of the text.
type request struct {
	SQL    string `json:"sql"`
	Offset *int   `json:"offset"`
}

func (r request) offset() int {
	if r.Offset == nil {
		return len(r.SQL)
	}
	return *r.Offset
}

type errorResponse struct {
	Error string `json:"error"`
}

type parseResponse struct {
	Scopes []scope.Scope `json:"scopes"`
}

type hoverResponse struct {
	Found    bool   `json:"found"`
	Contents string `json:"contents,omitempty"`
}

type tablesResponse struct {
	Tables []catalog.TableName `json:"tables"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, parseResponse{Scopes: scope.Parse(req.SQL)})
}

func (s *Server) handleVisible(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	in, err := s.engine.Inspect(r.Context(), req.SQL, req.offset())
	if err != nil {
		// The inspection is still usable; columns from the failing source
		// are just missing.
		s.logger.Warn("inspect degraded", slog.Any("error", err))
	}
	s.writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Complete(r.Context(), req.SQL, req.offset()))
}

func (s *Server) handleHover(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	contents, found := s.engine.Hover(r.Context(), req.SQL, req.offset())
	s.writeJSON(w, http.StatusOK, hoverResponse{Found: found, Contents: contents})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	cat := s.engine.Catalog()
	if cat == nil {
		s.writeJSON(w, http.StatusOK, tablesResponse{Tables: []catalog.TableName{}})
		return
	}
	tables, err := catalog.ListTables(r.Context(), cat, r.URL.Query().Get("schema"))
	if err != nil {
		s.writeError(w, http.StatusBadGateway, fmt.Errorf("failed to list tables: %w", err))
		return
	}
	if tables == nil {
		tables = []catalog.TableName{}
	}
	s.writeJSON(w, http.StatusOK, tablesResponse{Tables: tables})
}

// handleEvents streams notifier events as server-sent events until the
// client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("failed to encode event", slog.Any("error", err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (request, bool) {
	var req request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return req, false
	}
	if req.Offset != nil && (*req.Offset < 0 || *req.Offset > len(req.SQL)) {
		s.writeError(w, http.StatusBadRequest,
			fmt.Errorf("offset %d out of range [0, %d]", *req.Offset, len(req.SQL)))
		return req, false
	}
	return req, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
