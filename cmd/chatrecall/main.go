// chatrecall: search your exported chat conversations.
//
// A local archive of chat exports with lexical, semantic and hybrid search,
// served to AI tools over MCP (stdio) and usable from the command line.
//
// Usage:
//
//	chatrecall serve                       # Start MCP server (stdio transport)
//	chatrecall ingest --file export.json   # Import an export and embed new chunks
//	chatrecall reindex [--force]           # Rebuild full-text index and embeddings
//	chatrecall rebuild-fts                 # Rebuild only the full-text index
//	chatrecall stats                       # Print index statistics
//	chatrecall search "query" [--mode hybrid]
//	chatrecall eval --queries eval/queries.json
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/chatrecall/internal/config"
	"github.com/HendryAvila/chatrecall/internal/logger"
	"github.com/HendryAvila/chatrecall/internal/server"
)

var (
	configPath string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:           "chatrecall",
	Short:         "Search your exported chat conversations",
	Long:          "Local archive of chat exports with lexical, semantic and hybrid search, served over MCP.",
	Version:       server.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default: $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")

	rootCmd.AddCommand(serveCmd, ingestCmd, reindexCmd, rebuildFTSCmd, statsCmd, searchCmd, evalCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openServices loads configuration and builds the service container.
// The returned cleanup closes the store and flushes the logger.
func openServices(ctx context.Context) (*server.Services, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, err
	}

	svc, err := server.NewServices(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	cleanup := func() {
		if err := svc.Close(); err != nil {
			log.Warn("store close failed", "error", err)
		}
		log.Sync()
	}
	return svc, cleanup, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
