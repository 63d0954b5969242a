package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/sqlscope/internal/completion"
	"github.com/leapstack-labs/sqlscope/internal/config"
)

// JSON-RPC error codes.
const (
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// ErrExitWithoutShutdown is returned by Run when the client sends exit
// before shutdown.
var ErrExitWithoutShutdown = errors.New("exit received before shutdown")

// errExit stops the message loop.
var errExit = errors.New("exit")

// Version is reported to clients in the initialize result.
var Version = "dev"

// Server implements the Language Server Protocol for SQL scope completion.
type Server struct {
	documents *DocumentStore

	// Set during initialize.
	engine      *completion.Engine
	sources     *config.Sources
	cfg         *config.ProjectConfig
	projectRoot string
	initialized bool

	// I/O
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	logger *slog.Logger

	shutdown   bool
	shutdownMu sync.RWMutex

	watchers sync.WaitGroup
}

// NewServer creates a new LSP server instance.
func NewServer(reader io.Reader, writer io.Writer) *Server {
	return NewServerWithLogger(reader, writer, nil)
}

// NewServerWithLogger creates a new LSP server instance with a custom logger.
func NewServerWithLogger(reader io.Reader, writer io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{
		documents: NewDocumentStore(),
		reader:    bufio.NewReader(reader),
		writer:    writer,
		logger:    logger,
	}
}

// Run processes JSON-RPC messages until the client sends exit, the input
// ends, or ctx is cancelled between messages.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("sqlscope LSP server starting...")

	// Cancelling on return stops the catalog watcher.
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.watchers.Wait()
		s.closeSources()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := s.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Info("client disconnected")
				return nil
			}
			s.logger.Error("error reading message", slog.Any("error", err))
			continue
		}

		if err := s.handleMessage(ctx, msg); err != nil {
			if errors.Is(err, errExit) {
				if !s.isShutdown() {
					return ErrExitWithoutShutdown
				}
				return nil
			}
			s.logger.Error("error handling message", slog.String("method", msg.Method), slog.Any("error", err))
		}
	}
}

// JSONRPCMessage represents a JSON-RPC 2.0 message.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// readMessage reads a JSON-RPC message from the input stream.
func (s *Server) readMessage() (*JSONRPCMessage, error) {
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break // End of headers
		}

		name, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			contentLength, err = strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength <= 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("error parsing message: %w", err)
	}

	return &msg, nil
}

// sendResponse sends a JSON-RPC response.
func (s *Server) sendResponse(id *json.RawMessage, result any, rpcErr *JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}

	if rpcErr != nil {
		msg.Error = rpcErr
	} else {
		resultBytes, err := json.Marshal(result)
		if err != nil {
			s.logger.Error("error marshaling result", slog.Any("error", err))
			resultBytes = []byte("null")
		}
		msg.Result = resultBytes
	}

	s.writeMessage(&msg)
}

// sendNotification sends a JSON-RPC notification (no ID).
func (s *Server) sendNotification(method string, params any) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		Method:  method,
	}

	if params != nil {
		paramsBytes, err := json.Marshal(params)
		if err != nil {
			s.logger.Error("error marshaling params", slog.String("method", method), slog.Any("error", err))
			return
		}
		msg.Params = paramsBytes
	}

	s.writeMessage(&msg)
}

// writeMessage writes a JSON-RPC message to the output stream.
func (s *Server) writeMessage(msg *JSONRPCMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("error marshaling message", slog.Any("error", err))
		return
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	_, _ = io.WriteString(s.writer, header)
	_, _ = s.writer.Write(body)
}

// handleMessage dispatches a message to the appropriate handler.
func (s *Server) handleMessage(ctx context.Context, msg *JSONRPCMessage) error {
	s.logger.Debug("received", slog.String("method", msg.Method))

	if s.isShutdown() && msg.Method != "exit" {
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidRequest, Message: "server is shutting down"})
		}
		return nil
	}

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(ctx, msg)
	case "initialized":
		return s.handleInitialized(ctx, msg)
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		s.logger.Info("server exit")
		return errExit
	case "textDocument/didOpen":
		return s.handleDidOpen(ctx, msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/didChange":
		return s.handleDidChange(ctx, msg)
	case "textDocument/didSave":
		return s.handleDidSave(ctx, msg)
	case "textDocument/completion":
		return s.handleCompletion(ctx, msg)
	case "textDocument/hover":
		return s.handleHover(ctx, msg)
	case "textDocument/definition":
		return s.handleDefinition(ctx, msg)
	case "textDocument/documentSymbol":
		return s.handleDocumentSymbol(msg)
	default:
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{
				Code:    codeMethodNotFound,
				Message: "Method not found: " + msg.Method,
			})
		}
		return nil
	}
}

func (s *Server) isShutdown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.shutdown
}

// --- Lifecycle handlers ---

func (s *Server) handleInitialize(ctx context.Context, msg *JSONRPCMessage) error {
	var params InitializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	s.projectRoot = rootFromParams(params)
	s.logger.Info("workspace root", slog.String("path", s.projectRoot))

	if err := s.loadProject(ctx); err != nil {
		s.logger.Warn("project configuration unusable", slog.Any("error", err))
	}

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindIncremental,
				Save:      &SaveOptions{},
			},
			CompletionProvider: &CompletionOptions{
				TriggerCharacters: []string{".", " "},
			},
			HoverProvider:          true,
			DefinitionProvider:     true,
			DocumentSymbolProvider: true,
		},
		ServerInfo: &ServerInfo{Name: "sqlscope", Version: Version},
	}

	s.sendResponse(msg.ID, result, nil)
	return nil
}

// rootFromParams picks the workspace root: rootUri, then the first
// workspace folder, then the deprecated rootPath.
func rootFromParams(p InitializeParams) string {
	switch {
	case p.RootURI != "":
		return URIToPath(p.RootURI)
	case len(p.WorkspaceFolders) > 0:
		return URIToPath(p.WorkspaceFolders[0].URI)
	}
	return p.RootPath
}

// loadProject reads sqlscope.yaml from the workspace (or a parent
// directory) and builds the completion engine. Without a configuration the
// engine runs without a catalog.
func (s *Server) loadProject(ctx context.Context) error {
	s.engine = completion.New(nil, completion.DefaultOptions(), s.logger)
	if s.projectRoot == "" {
		return nil
	}

	root := config.FindProjectRoot(s.projectRoot)
	if root == "" {
		return nil
	}
	cfg, err := config.LoadFromDir(root)
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	sources, err := config.OpenSources(ctx, cfg, s.logger)
	if err != nil {
		return err
	}

	s.cfg = cfg
	s.sources = sources
	s.engine = completion.New(sources.Catalog, opts, s.logger)
	s.logger.Info("loaded project configuration", slog.String("root", root))
	return nil
}

func (s *Server) handleInitialized(ctx context.Context, _ *JSONRPCMessage) error {
	s.initialized = true
	s.logger.Info("server initialized")

	if s.engine == nil || s.engine.Catalog() == nil {
		s.sendNotification("window/showMessage", &ShowMessageParams{
			Type:    MessageTypeInfo,
			Message: "No catalog configured. Add a catalog or target to sqlscope.yaml to complete table columns.",
		})
	}

	if s.sources != nil && s.sources.Static != nil {
		path, static := s.cfg.Catalog.File, s.sources.Static
		s.watchers.Add(1)
		go func() {
			defer s.watchers.Done()
			err := config.WatchFile(ctx, path, config.DefaultDebounce, s.logger, func() {
				if err := static.Reload(path); err != nil {
					s.logger.Error("catalog reload failed", slog.Any("error", err))
					s.sendNotification("window/showMessage", &ShowMessageParams{
						Type:    MessageTypeError,
						Message: "Failed to reload catalog: " + err.Error(),
					})
					return
				}
				s.logger.Info("catalog reloaded", slog.String("path", path))
				s.republishAll(ctx)
			})
			if err != nil {
				s.logger.Warn("catalog watcher stopped", slog.Any("error", err))
			}
		}()
	}
	return nil
}

func (s *Server) handleShutdown(msg *JSONRPCMessage) error {
	s.shutdownMu.Lock()
	s.shutdown = true
	s.shutdownMu.Unlock()

	s.closeSources()

	s.sendResponse(msg.ID, nil, nil)
	s.logger.Info("server shutdown")
	return nil
}

func (s *Server) closeSources() {
	if s.sources == nil {
		return
	}
	if err := s.sources.Close(); err != nil {
		s.logger.Warn("failed to close catalog sources", slog.Any("error", err))
	}
	s.sources = nil
}

// --- Document handlers ---

func (s *Server) handleDidOpen(ctx context.Context, msg *JSONRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Open(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
	s.logger.Debug("opened", slog.String("uri", params.TextDocument.URI))

	s.publishDiagnostics(ctx, params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidClose(msg *JSONRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Close(params.TextDocument.URI)
	s.logger.Debug("closed", slog.String("uri", params.TextDocument.URI))

	// Clear diagnostics
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []Diagnostic{},
	})
	return nil
}

func (s *Server) handleDidChange(ctx context.Context, msg *JSONRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	if s.documents.Update(params.TextDocument.URI, params.ContentChanges, params.TextDocument.Version) == nil {
		return fmt.Errorf("change for unopened document %s", params.TextDocument.URI)
	}

	s.publishDiagnostics(ctx, params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidSave(ctx context.Context, msg *JSONRPCMessage) error {
	var params DidSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	if params.Text != nil {
		doc := s.documents.Get(params.TextDocument.URI)
		if doc != nil {
			s.documents.Open(doc.URI, *params.Text, doc.Version)
		}
	}
	s.publishDiagnostics(ctx, params.TextDocument.URI)
	return nil
}

// --- Feature handlers ---

func (s *Server) handleCompletion(ctx context.Context, msg *JSONRPCMessage) error {
	var params CompletionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	s.sendResponse(msg.ID, s.getCompletions(ctx, params), nil)
	return nil
}

func (s *Server) handleHover(ctx context.Context, msg *JSONRPCMessage) error {
	var params HoverParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	s.sendResponse(msg.ID, s.getHover(ctx, params), nil)
	return nil
}

func (s *Server) handleDefinition(ctx context.Context, msg *JSONRPCMessage) error {
	var params DefinitionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	s.sendResponse(msg.ID, s.getDefinition(ctx, params), nil)
	return nil
}

func (s *Server) handleDocumentSymbol(msg *JSONRPCMessage) error {
	var params DocumentSymbolParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	s.sendResponse(msg.ID, s.getDocumentSymbols(params), nil)
	return nil
}
