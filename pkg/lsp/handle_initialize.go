package lsp

import (
	"context"
	"path/filepath"

	"github.com/creachadair/jrpc2"
)

func (h *Handler) handleInitialize(ctx context.Context, req *jrpc2.Request) (any, error) {
	if !req.HasParams() {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "missing parameters")
	}

	var params InitializeParams
	if err := req.UnmarshalParams(&params); err != nil {
		return nil, err
	}

	if params.RootURI != "" {
		rootPath, err := fromURI(params.RootURI)
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		h.rootPath = filepath.Clean(rootPath)
		h.mu.Unlock()
		h.addFolder(rootPath)
	}
	for _, folder := range params.WorkspaceFolders {
		if path, err := fromURI(folder.URI); err == nil {
			h.addFolder(path)
		}
	}

	return InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync:                TDSKFull,
			DocumentFormattingProvider:      true,
			DocumentRangeFormattingProvider: true,
			Workspace: &ServerCapabilitiesWorkspace{
				WorkspaceFolders: WorkspaceFoldersServerCapabilities{
					Supported:           true,
					ChangeNotifications: true,
				},
			},
		},
		ServerInfo: &ServerInfo{Name: "crow"},
	}, nil
}
