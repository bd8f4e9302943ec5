package lsp

import (
	"context"

	"github.com/creachadair/jrpc2"
)

// Formatting a range formats the whole document: a statement's layout
// depends on its surroundings.
func (h *Handler) handleTextDocumentRangeFormatting(ctx context.Context, req *jrpc2.Request) (any, error) {
	if !req.HasParams() {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "missing parameters")
	}

	var params DocumentRangeFormattingParams
	if err := req.UnmarshalParams(&params); err != nil {
		return nil, err
	}

	return h.formatDocument(ctx, params.TextDocument.URI)
}
