package lsp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"

	"github.com/creachadair/jrpc2"
	"github.com/vito/crow/pkg/crow"
)

// Handler serves the language server methods. It implements
// jrpc2.Assigner.
type Handler struct {
	mode crow.Mode

	mu       sync.Mutex
	files    map[DocumentURI]*File
	rootPath string
	folders  []string
	srv      *jrpc2.Server

	// project configuration, keyed by project root
	modes map[string]crow.Mode
}

// File is an open document.
type File struct {
	LanguageID  string
	Text        string
	Version     int
	Diagnostics []Diagnostic
}

// NewHandler returns a handler formatting with mode, unless a document's
// project configures otherwise.
func NewHandler(ctx context.Context, mode crow.Mode) *Handler {
	return &Handler{
		mode:  mode,
		files: map[DocumentURI]*File{},
		modes: map[string]crow.Mode{},
	}
}

// SetServer gives the handler a server to push notifications through.
func (h *Handler) SetServer(srv *jrpc2.Server) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.srv = srv
}

// Assign implements jrpc2.Assigner.
func (h *Handler) Assign(ctx context.Context, method string) jrpc2.Handler {
	slog.DebugContext(ctx, "assign", "method", method)

	switch method {
	case "initialize":
		return h.handleInitialize
	case "initialized", "exit", "$/cancelRequest", "$/setTrace":
		return ignore
	case "shutdown":
		return h.handleShutdown
	case "textDocument/didOpen":
		return h.handleTextDocumentDidOpen
	case "textDocument/didChange":
		return h.handleTextDocumentDidChange
	case "textDocument/didSave":
		return h.handleTextDocumentDidSave
	case "textDocument/didClose":
		return h.handleTextDocumentDidClose
	case "textDocument/formatting":
		return h.handleTextDocumentFormatting
	case "textDocument/rangeFormatting":
		return h.handleTextDocumentRangeFormatting
	case "workspace/didChangeWorkspaceFolders":
		return h.handleWorkspaceDidChangeWorkspaceFolders
	case "workspace/workspaceFolders":
		return h.handleWorkspaceWorkspaceFolders
	case "workspace/didChangeConfiguration":
		return h.handleWorkspaceDidChangeConfiguration
	}
	return nil
}

func ignore(context.Context, *jrpc2.Request) (any, error) {
	return nil, nil
}

func isWindowsDrivePath(path string) bool {
	if len(path) < 4 {
		return false
	}
	return unicode.IsLetter(rune(path[0])) && path[1] == ':'
}

func isWindowsDriveURI(uri string) bool {
	if len(uri) < 4 {
		return false
	}
	return uri[0] == '/' && unicode.IsLetter(rune(uri[1])) && uri[2] == ':'
}

func fromURI(uri DocumentURI) (string, error) {
	u, err := url.ParseRequestURI(string(uri))
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("only file URIs are supported, got %v", u.Scheme)
	}
	if isWindowsDriveURI(u.Path) {
		u.Path = u.Path[1:]
	}
	return u.Path, nil
}

func toURI(path string) DocumentURI {
	if isWindowsDrivePath(path) {
		path = "/" + path
	}
	return DocumentURI((&url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(path),
	}).String())
}

func (h *Handler) notify(ctx context.Context, method string, params any) {
	h.mu.Lock()
	srv := h.srv
	h.mu.Unlock()
	if srv == nil {
		return
	}
	if err := srv.Notify(ctx, method, params); err != nil {
		slog.WarnContext(ctx, "failed to notify client", "method", method, "error", err)
	}
}

func (h *Handler) logMessage(ctx context.Context, typ MessageType, message string) {
	h.notify(ctx, "window/logMessage", &LogMessageParams{
		Type:    typ,
		Message: message,
	})
}

func (h *Handler) openFile(uri DocumentURI, languageID string, version int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[uri] = &File{
		LanguageID: languageID,
		Version:    version,
	}
}

func (h *Handler) closeFile(uri DocumentURI) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.files, uri)
}

func (h *Handler) file(uri DocumentURI) (File, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.files[uri]
	if !ok {
		return File{}, false
	}
	return *f, true
}

// updateFile stores the new text of a document and publishes parse errors
// as diagnostics.
func (h *Handler) updateFile(ctx context.Context, uri DocumentURI, text string, version *int) error {
	h.mu.Lock()
	f, ok := h.files[uri]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("document not found: %v", uri)
	}
	f.Text = text
	if version != nil {
		f.Version = *version
	}
	h.mu.Unlock()

	mode := h.modeFor(ctx, uri)
	var diags []Diagnostic
	src, _ := crow.DecodeNewlines(text)
	if _, err := crow.Parse(src, mode.Grammars()); err != nil {
		diags = append(diags, errorToDiagnostic(err))
	}

	h.mu.Lock()
	f.Diagnostics = diags
	published := PublishDiagnosticsParams{
		URI:         uri,
		Version:     f.Version,
		Diagnostics: append([]Diagnostic{}, diags...),
	}
	h.mu.Unlock()

	h.notify(ctx, "textDocument/publishDiagnostics", &published)
	return nil
}

func errorToDiagnostic(err error) Diagnostic {
	var invalid *crow.InvalidInput
	if !errors.As(err, &invalid) {
		return Diagnostic{
			Severity: DSError,
			Source:   "crow",
			Message:  err.Error(),
		}
	}
	start := Position{Line: max(invalid.Line-1, 0), Character: invalid.Col}
	end := Position{Line: start.Line, Character: start.Character + 1}
	return Diagnostic{
		Range:    Range{Start: start, End: end},
		Severity: DSError,
		Source:   "crow",
		Message:  invalid.Error(),
	}
}

// modeFor returns the formatting mode for a document: the handler's mode,
// overridden by its project's pyproject.toml, with stub mode for .pyi files.
func (h *Handler) modeFor(ctx context.Context, uri DocumentURI) crow.Mode {
	mode := h.mode
	path, err := fromURI(uri)
	if err != nil {
		return mode
	}

	root, err := crow.FindProjectRoot([]string{path})
	if err == nil {
		h.mu.Lock()
		cached, ok := h.modes[root]
		h.mu.Unlock()
		if ok {
			mode = cached
		} else {
			mode = h.loadProjectMode(ctx, root)
			h.mu.Lock()
			h.modes[root] = mode
			h.mu.Unlock()
		}
	}

	if strings.HasSuffix(path, ".pyi") {
		mode.IsPyi = true
	}
	return mode
}

func (h *Handler) loadProjectMode(ctx context.Context, root string) crow.Mode {
	path, err := crow.FindPyprojectToml([]string{root})
	if err != nil || path == "" {
		return h.mode
	}
	config, err := crow.ReadPyprojectToml(path)
	if err != nil {
		h.logMessage(ctx, MTWarning, err.Error())
		return h.mode
	}
	mode, err := crow.ModeFromConfig(h.mode, config)
	if err != nil {
		h.logMessage(ctx, MTWarning, fmt.Sprintf("%s: %s", path, err))
		return h.mode
	}
	slog.DebugContext(ctx, "loaded project config", "path", path, "mode", mode.CacheKey())
	return mode
}

func (h *Handler) addFolder(folder string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cur := range h.folders {
		if cur == folder {
			return
		}
	}
	h.folders = append(h.folders, folder)
}

func (h *Handler) removeFolder(folder string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, cur := range h.folders {
		if cur == folder {
			h.folders = append(h.folders[:i], h.folders[i+1:]...)
			return
		}
	}
}

// endOfText returns the position just past the last character of text.
func endOfText(text string) Position {
	lastLine := text
	line := strings.Count(text, "\n")
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		lastLine = text[i+1:]
	}
	return Position{Line: line, Character: len(utf16.Encode([]rune(lastLine)))}
}
