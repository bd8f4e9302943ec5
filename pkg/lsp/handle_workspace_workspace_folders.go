package lsp

import (
	"context"
	"path/filepath"

	"github.com/creachadair/jrpc2"
)

func (h *Handler) handleWorkspaceWorkspaceFolders(ctx context.Context, req *jrpc2.Request) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	folders := []WorkspaceFolder{}
	for _, folder := range h.folders {
		folders = append(folders, WorkspaceFolder{
			URI:  toURI(folder),
			Name: filepath.Base(folder),
		})
	}
	return folders, nil
}

// handleWorkspaceDidChangeConfiguration forgets project settings so they are
// read again on the next format.
func (h *Handler) handleWorkspaceDidChangeConfiguration(ctx context.Context, req *jrpc2.Request) (any, error) {
	h.mu.Lock()
	clear(h.modes)
	h.mu.Unlock()
	return nil, nil
}
