package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/mcp"
)

// serveCmd starts the MCP stdio server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Start the Model Context Protocol server that lets coding assistants
inspect compiled .NET projects.

The server:
- Resolves project files to their compiled assemblies
- Extracts public type metadata in a disposable in-memory sandbox
- Exposes the dotnet_types and dotnet_type_members tools

Example:
  dotnet-meta serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck // stderr sync failure is harmless

	srv, err := mcp.NewServer(cfg, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Serve(context.Background())
}
