package tools

import (
	"context"

	"github.com/HendryAvila/chatrecall/internal/embedding"
	"github.com/HendryAvila/chatrecall/internal/ingest"
	"github.com/HendryAvila/chatrecall/internal/search"
	"github.com/HendryAvila/chatrecall/internal/store"
)

// Searcher answers queries and lookups.
type Searcher interface {
	Search(ctx context.Context, mode search.Mode, query string, f store.Filters, topK int) ([]search.Hit, error)
	GetConversation(ctx context.Context, id string) (search.ConversationDetail, bool, error)
	GetMessageContext(ctx context.Context, messageID string, before, after int) (search.MessageContext, bool, error)
	AnswerWithCitations(ctx context.Context, question string, f store.Filters, maxCitations int) (search.Answer, error)
}

// Indexer maintains chunk embeddings.
type Indexer interface {
	Backfill(ctx context.Context) (embedding.BackfillResult, error)
	Reindex(ctx context.Context) (embedding.BackfillResult, error)
	Info() embedding.ProviderInfo
}

// Ingester loads export files.
type Ingester interface {
	Ingest(ctx context.Context, path, sourceLabel string) (ingest.Result, error)
}

// Archive exposes index maintenance and statistics.
type Archive interface {
	OverviewStats(ctx context.Context) (store.OverviewStats, error)
	RebuildFTS(ctx context.Context) (int, error)
	Path() string
}
