package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/chatrecall/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Start the MCP server using the stdio transport.

Stdout carries the protocol; logs go to stderr.

Environment variables:
  CHATRECALL_DB_PATH              Database file (default: ~/.chatrecall/conversations.db)
  CHATRECALL_EMBEDDING_PROVIDER   hash or openai (default: openai when OPENAI_API_KEY is set)
  OPENAI_API_KEY                  Key for the openai provider
  CHATRECALL_LOG_MODE             dev or prod (default: prod)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, cleanup, err := openServices(ctx)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	s := server.New(svc)
	svc.Log.Info("mcp server started", "transport", "stdio", "version", server.Version)

	err = mcpserver.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
	svc.Log.Info("mcp server stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
