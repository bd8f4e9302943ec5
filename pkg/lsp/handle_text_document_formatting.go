package lsp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/creachadair/jrpc2"
	"github.com/vito/crow/pkg/crow"
)

func (h *Handler) handleTextDocumentFormatting(ctx context.Context, req *jrpc2.Request) (any, error) {
	if !req.HasParams() {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "missing parameters")
	}

	var params DocumentFormattingParams
	if err := req.UnmarshalParams(&params); err != nil {
		return nil, err
	}

	return h.formatDocument(ctx, params.TextDocument.URI)
}

// formatDocument returns a single edit replacing the whole document with its
// formatted text, or no edits if there is nothing to change.
func (h *Handler) formatDocument(ctx context.Context, uri DocumentURI) ([]TextEdit, error) {
	f, ok := h.file(uri)
	if !ok {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "document not found: %v", uri)
	}

	src, newline := crow.DecodeNewlines(f.Text)
	formatted, err := crow.FormatFileContents(ctx, src, false, h.modeFor(ctx, uri))
	if err != nil {
		var invalid *crow.InvalidInput
		switch {
		case errors.Is(err, crow.ErrNothingChanged):
		case errors.As(err, &invalid):
			// already published as a diagnostic
			slog.DebugContext(ctx, "not formatting invalid document", "uri", uri, "error", err)
		default:
			h.logMessage(ctx, MTError, err.Error())
		}
		return []TextEdit{}, nil
	}

	return []TextEdit{
		{
			Range: Range{
				Start: Position{Line: 0, Character: 0},
				End:   endOfText(src),
			},
			NewText: crow.EncodeNewlines(formatted, newline),
		},
	}, nil
}
