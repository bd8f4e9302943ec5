package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/vito/crow/pkg/lsp"
)

func runLSP(ctx context.Context, cfg Config) error {
	var logDest io.Writer
	if cfg.LSPLogFile != "" {
		logFile, err := os.Create(cfg.LSPLogFile)
		if err != nil {
			return fmt.Errorf("open lsp log: %w", err)
		}
		defer logFile.Close() //nolint:errcheck
		logDest = logFile
	} else {
		logDest = os.Stderr
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(logDest, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	mode, err := modeFromConfig(cfg)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting LSP server")

	handler := lsp.NewHandler(ctx, mode)
	srv := jrpc2.NewServer(handler, &jrpc2.ServerOptions{
		AllowPush: true,
		// Document edits must be applied in the order they arrive.
		Concurrency: 1,
		Logger:      func(text string) { logger.Debug(text) },
	})

	handler.SetServer(srv)

	srv.Start(channel.LSP(stdrwc{}, stdrwc{}))

	logger.InfoContext(ctx, "LSP server closed", "error", srv.Wait())
	return nil
}

type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdrwc) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
