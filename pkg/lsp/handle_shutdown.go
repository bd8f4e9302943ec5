package lsp

import (
	"context"

	"github.com/creachadair/jrpc2"
)

func (h *Handler) handleShutdown(ctx context.Context, req *jrpc2.Request) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.files)
	clear(h.modes)
	return nil, nil
}
