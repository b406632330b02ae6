// Package server wires all components and creates the MCP server instance.
//
// This is the composition root: it opens the store, picks the embedding
// provider and injects the services into the tools that depend on them.
// No business logic lives here, only wiring.
package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/chatrecall/internal/config"
	"github.com/HendryAvila/chatrecall/internal/embedding"
	"github.com/HendryAvila/chatrecall/internal/ingest"
	"github.com/HendryAvila/chatrecall/internal/logger"
	"github.com/HendryAvila/chatrecall/internal/prompts"
	"github.com/HendryAvila/chatrecall/internal/resources"
	"github.com/HendryAvila/chatrecall/internal/search"
	"github.com/HendryAvila/chatrecall/internal/store"
	"github.com/HendryAvila/chatrecall/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Services is the service container shared by the MCP server and the CLI.
type Services struct {
	Config     *config.Config
	Log        *logger.Logger
	Store      *store.Store
	Embeddings *embedding.Service
	Ingest     *ingest.Service
	Search     *search.Service
}

// NewServices opens the database, selects the embedding provider and
// drops stored vectors that belong to a different provider generation.
// Close must be called on shutdown.
func NewServices(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Services, error) {
	if log == nil {
		log = logger.Nop()
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("server: open store: %w", err)
	}

	emb := embedding.NewService(st, provider, cfg.Embedding.BatchSize, log)
	if _, err := emb.EnsureGeneration(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("server: check embedding generation: %w", err), st.Close())
	}

	log.Info("services ready", "db_path", cfg.DBPath,
		"provider", cfg.Embedding.Provider, "model", provider.Model(), "dimensions", provider.Dimensions())

	return &Services{
		Config:     cfg,
		Log:        log,
		Store:      st,
		Embeddings: emb,
		Ingest:     ingest.NewService(st, log),
		Search:     search.NewService(st, emb, log),
	}, nil
}

// Close releases the database.
func (s *Services) Close() error {
	return s.Store.Close()
}

func newProvider(cfg *config.Config) (embedding.Provider, error) {
	switch cfg.Embedding.Provider {
	case config.ProviderOpenAI:
		p, err := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:     cfg.Embedding.OpenAIAPIKey,
			BaseURL:    cfg.Embedding.OpenAIBaseURL,
			Model:      cfg.Embedding.OpenAIModel,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		return p, nil
	case config.ProviderHash, "":
		return embedding.NewHashProvider(), nil
	default:
		return nil, fmt.Errorf("server: unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

// New creates the MCP server with every tool, prompt and resource registered.
func New(svc *Services) *server.MCPServer {
	s := server.NewMCPServer(
		"chatrecall",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	limits := tools.Limits{
		DefaultTopK: svc.Config.Search.DefaultTopK,
		MaxTopK:     svc.Config.Search.MaxTopK,
	}

	// --- Status ---
	health := tools.NewHealthTool(svc.Store, svc.Embeddings)
	s.AddTool(health.Definition(), health.Handle)

	stats := tools.NewStatsTool(svc.Store)
	s.AddTool(stats.Definition(), stats.Handle)

	// --- Indexing ---
	ingestTool := tools.NewIngestTool(svc.Ingest, svc.Embeddings)
	s.AddTool(ingestTool.Definition(), ingestTool.Handle)

	reindex := tools.NewReindexTool(svc.Store, svc.Embeddings)
	s.AddTool(reindex.Definition(), reindex.Handle)

	// --- Search ---
	for _, mode := range []search.Mode{search.ModeLexical, search.ModeSemantic, search.ModeHybrid} {
		t := tools.NewSearchTool(svc.Search, mode, limits)
		s.AddTool(t.Definition(), t.Handle)
	}

	// --- Lookups & answers ---
	conv := tools.NewGetConversationTool(svc.Search)
	s.AddTool(conv.Definition(), conv.Handle)

	msgCtx := tools.NewMessageContextTool(svc.Search)
	s.AddTool(msgCtx.Definition(), msgCtx.Handle)

	answer := tools.NewAnswerTool(svc.Search)
	s.AddTool(answer.Definition(), answer.Handle)

	// --- Prompts ---
	recall := prompts.NewRecallPrompt()
	s.AddPrompt(recall.Definition(), recall.Handle)

	status := prompts.NewStatusPrompt()
	s.AddPrompt(status.Definition(), status.Handle)

	// --- Resources ---
	res := resources.NewHandler(svc.Store, svc.Search)
	s.AddResource(res.StatsResource(), res.HandleStats)
	s.AddResourceTemplate(res.ConversationTemplate(), res.HandleConversation)

	return s
}

// serverInstructions tells the client how to use the tools.
func serverInstructions() string {
	return `You have access to chatrecall, a local search index over exported chat conversations.

## Workflow
1. If stats_overview shows no conversations, ask the user for an export file and call ingest_export.
2. Start with search_hybrid. Use search_messages for exact words and names, search_semantic for paraphrases.
3. Narrow with conversation_id, role, date_from or date_to when the user mentions them.
4. Open a hit with get_message_context (nearby messages) or get_conversation (the whole thread).
5. For direct questions, answer_with_citations returns quoted passages with their sources.

## Rules
- Quote the archive; cite conversation titles and dates from the hits.
- If nothing relevant is found, say so instead of guessing.
- After switching embedding providers, call reindex with force=true.`
}
