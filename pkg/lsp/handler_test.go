package lsp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
	"github.com/vito/crow/pkg/crow"
)

func TestMain(m *testing.M) {
	os.Exit(oteltest.Main(m))
}

type HandlerSuite struct{}

func TestHandler(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(HandlerSuite{})
}

type session struct {
	cli           *jrpc2.Client
	notifications chan *jrpc2.Request
}

func startSession(ctx context.Context, t *testctx.T, root string) *session {
	h := NewHandler(ctx, crow.DefaultMode())
	cch, sch := channel.Direct()
	srv := jrpc2.NewServer(h, &jrpc2.ServerOptions{AllowPush: true, Concurrency: 1})
	h.SetServer(srv)
	srv.Start(sch)

	s := &session{notifications: make(chan *jrpc2.Request, 16)}
	s.cli = jrpc2.NewClient(cch, &jrpc2.ClientOptions{
		OnNotify: func(req *jrpc2.Request) { s.notifications <- req },
	})
	t.Cleanup(func() {
		s.cli.Close()
		srv.Stop()
	})

	var result InitializeResult
	err := s.cli.CallResult(ctx, "initialize", InitializeParams{RootURI: toURI(root)}, &result)
	require.NoError(t, err)
	require.True(t, result.Capabilities.DocumentFormattingProvider)
	require.True(t, result.Capabilities.DocumentRangeFormattingProvider)
	return s
}

func (s *session) open(ctx context.Context, t *testctx.T, uri DocumentURI, text string) {
	err := s.cli.Notify(ctx, "textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: "python", Version: 1, Text: text},
	})
	require.NoError(t, err)
}

func (s *session) diagnostics(t *testctx.T) PublishDiagnosticsParams {
	select {
	case req := <-s.notifications:
		require.Equal(t, "textDocument/publishDiagnostics", req.Method())
		var params PublishDiagnosticsParams
		require.NoError(t, req.UnmarshalParams(&params))
		return params
	case <-time.After(5 * time.Second):
		t.Fatal("no diagnostics published")
		return PublishDiagnosticsParams{}
	}
}

func (HandlerSuite) TestFormatting(ctx context.Context, t *testctx.T) {
	dir := t.TempDir()
	s := startSession(ctx, t, dir)
	uri := toURI(filepath.Join(dir, "mod.py"))

	s.open(ctx, t, uri, "x=1\nprint( 'hi' )")
	require.Empty(t, s.diagnostics(t).Diagnostics)

	var edits []TextEdit
	err := s.cli.CallResult(ctx, "textDocument/formatting", DocumentFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	}, &edits)
	require.NoError(t, err)
	require.Equal(t, []TextEdit{{
		Range: Range{
			Start: Position{Line: 0, Character: 0},
			End:   Position{Line: 1, Character: 13},
		},
		NewText: "x = 1\nprint(\"hi\")\n",
	}}, edits)

	err = s.cli.CallResult(ctx, "textDocument/rangeFormatting", DocumentRangeFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Range:        Range{End: Position{Line: 1}},
	}, &edits)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	require.Equal(t, "x = 1\nprint(\"hi\")\n", edits[0].NewText)
}

func (HandlerSuite) TestWindowsLineEndings(ctx context.Context, t *testctx.T) {
	dir := t.TempDir()
	s := startSession(ctx, t, dir)
	uri := toURI(filepath.Join(dir, "mod.py"))

	s.open(ctx, t, uri, "x=1\r\ny='''a\r\nb'''\r\n")
	require.Empty(t, s.diagnostics(t).Diagnostics)

	var edits []TextEdit
	err := s.cli.CallResult(ctx, "textDocument/formatting", DocumentFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	}, &edits)
	require.NoError(t, err)
	require.Equal(t, []TextEdit{{
		Range: Range{
			Start: Position{Line: 0, Character: 0},
			End:   Position{Line: 3, Character: 0},
		},
		NewText: "x = 1\r\ny = \"\"\"a\r\nb\"\"\"\r\n",
	}}, edits)
}

func (HandlerSuite) TestAlreadyFormatted(ctx context.Context, t *testctx.T) {
	dir := t.TempDir()
	s := startSession(ctx, t, dir)
	uri := toURI(filepath.Join(dir, "mod.py"))

	s.open(ctx, t, uri, "x = 1\n")
	s.diagnostics(t)

	var edits []TextEdit
	err := s.cli.CallResult(ctx, "textDocument/formatting", DocumentFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	}, &edits)
	require.NoError(t, err)
	require.Empty(t, edits)
}

func (HandlerSuite) TestParseErrorDiagnostics(ctx context.Context, t *testctx.T) {
	dir := t.TempDir()
	s := startSession(ctx, t, dir)
	uri := toURI(filepath.Join(dir, "broken.py"))

	s.open(ctx, t, uri, "x = 1\ndef f(:\n    pass\n")
	diags := s.diagnostics(t).Diagnostics
	require.Len(t, diags, 1)
	require.Equal(t, DSError, diags[0].Severity)
	require.Equal(t, 1, diags[0].Range.Start.Line)
	require.Contains(t, diags[0].Message, "Cannot parse: 2:")

	var edits []TextEdit
	err := s.cli.CallResult(ctx, "textDocument/formatting", DocumentFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	}, &edits)
	require.NoError(t, err)
	require.Empty(t, edits)

	err = s.cli.Notify(ctx, "textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{TextDocumentIdentifier: TextDocumentIdentifier{URI: uri}, Version: 2},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: "x = 1\n"}},
	})
	require.NoError(t, err)
	fixed := s.diagnostics(t)
	require.Equal(t, 2, fixed.Version)
	require.Empty(t, fixed.Diagnostics)
}

func (HandlerSuite) TestProjectConfig(ctx context.Context, t *testctx.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte(`
[tool.crow]
line-length = 30
skip-string-normalization = true
`), 0o644))
	s := startSession(ctx, t, dir)
	uri := toURI(filepath.Join(dir, "mod.py"))

	s.open(ctx, t, uri, "call(argument_one, 'two', three)\n")
	s.diagnostics(t)

	var edits []TextEdit
	err := s.cli.CallResult(ctx, "textDocument/formatting", DocumentFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	}, &edits)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	require.Equal(t, "call(\n    argument_one, 'two', three\n)\n", edits[0].NewText)
}

func (HandlerSuite) TestUnknownDocument(ctx context.Context, t *testctx.T) {
	s := startSession(ctx, t, t.TempDir())

	var edits []TextEdit
	err := s.cli.CallResult(ctx, "textDocument/formatting", DocumentFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: "file:///nowhere.py"},
	}, &edits)
	require.Error(t, err)
}

func (HandlerSuite) TestEndOfText(ctx context.Context, t *testctx.T) {
	require.Equal(t, Position{Line: 0, Character: 0}, endOfText(""))
	require.Equal(t, Position{Line: 1, Character: 0}, endOfText("x = 1\n"))
	require.Equal(t, Position{Line: 1, Character: 4}, endOfText("x\n\"😀\""))
}

func (HandlerSuite) TestURIs(ctx context.Context, t *testctx.T) {
	uri := toURI("/tmp/some dir/mod.py")
	path, err := fromURI(uri)
	require.NoError(t, err)
	require.Equal(t, "/tmp/some dir/mod.py", path)

	_, err = fromURI("http://example.com/mod.py")
	require.Error(t, err)
}

func (HandlerSuite) TestWorkspaceFolders(ctx context.Context, t *testctx.T) {
	dir := t.TempDir()
	other := t.TempDir()
	s := startSession(ctx, t, dir)

	err := s.cli.Notify(ctx, "workspace/didChangeWorkspaceFolders", DidChangeWorkspaceFoldersParams{
		Event: WorkspaceFoldersChangeEvent{
			Added: []WorkspaceFolder{{URI: toURI(other), Name: filepath.Base(other)}},
		},
	})
	require.NoError(t, err)

	var folders []WorkspaceFolder
	err = s.cli.CallResult(ctx, "workspace/workspaceFolders", nil, &folders)
	require.NoError(t, err)
	require.Equal(t, []WorkspaceFolder{
		{URI: toURI(dir), Name: filepath.Base(dir)},
		{URI: toURI(other), Name: filepath.Base(other)},
	}, folders)
}

func (HandlerSuite) TestConfigurationReload(ctx context.Context, t *testctx.T) {
	dir := t.TempDir()
	pyproject := filepath.Join(dir, "pyproject.toml")
	require.NoError(t, os.WriteFile(pyproject, []byte("[tool.crow]\nskip-string-normalization = true\n"), 0o644))
	s := startSession(ctx, t, dir)
	uri := toURI(filepath.Join(dir, "mod.py"))

	s.open(ctx, t, uri, "x = 'hi'\n")
	s.diagnostics(t)

	format := func() []TextEdit {
		var edits []TextEdit
		err := s.cli.CallResult(ctx, "textDocument/formatting", DocumentFormattingParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
		}, &edits)
		require.NoError(t, err)
		return edits
	}
	require.Empty(t, format())

	require.NoError(t, os.WriteFile(pyproject, []byte("[tool.crow]\n"), 0o644))
	require.Empty(t, format())

	err := s.cli.Notify(ctx, "workspace/didChangeConfiguration", map[string]any{"settings": nil})
	require.NoError(t, err)
	edits := format()
	require.Len(t, edits, 1)
	require.Equal(t, "x = \"hi\"\n", edits[0].NewText)
}
