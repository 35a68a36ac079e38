// Package mcp exposes the extraction core over the Model Context
// Protocol on stdio.
package mcp

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/config"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/explorer"
)

const serverVersion = "1.0.0"

// Server manages the MCP server lifecycle.
type Server struct {
	cfg *config.Config
	log *zap.Logger
	mcp *server.MCPServer
}

// NewServer creates the MCP server and registers the metadata tools.
func NewServer(cfg *config.Config, log *zap.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		"dotnet-meta",
		serverVersion,
		server.WithToolCapabilities(true),
	)

	x := explorer.New(log)
	AddTypesTool(mcpServer, x, cfg.PageSize, cfg.Configuration)
	AddTypeMembersTool(mcpServer, x, cfg.PageSize, cfg.Configuration)

	return &Server{cfg: cfg, log: log, mcp: mcpServer}, nil
}

// Serve runs the server on stdio until a shutdown signal or server error.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving MCP on stdio")
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("mcp server: %w", err)
		}
	}()

	select {
	case <-sigCh:
		s.log.Info("shutdown signal received")
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
