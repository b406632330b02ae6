package embedding

import (
	"context"
	"fmt"
	"strconv"

	"github.com/HendryAvila/chatrecall/internal/logger"
	"github.com/HendryAvila/chatrecall/internal/store"
)

// DefaultBatchSize is the number of chunks embedded per provider call.
const DefaultBatchSize = 128

// fingerprintKey is the index_meta key holding the provider that produced
// the stored vectors.
const fingerprintKey = "embedding_fingerprint"

// Store is the persistence the service needs.
type Store interface {
	ChunksMissingEmbedding(ctx context.Context, limit int) ([]store.PendingChunk, error)
	CountMissingEmbeddings(ctx context.Context) (int, error)
	SaveEmbeddings(ctx context.Context, batch []store.Embedding) error
	DeleteAllEmbeddings(ctx context.Context) (int64, error)
	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
	ResetEmbeddings(ctx context.Context, key, value string) (int64, error)
}

// ProviderInfo describes the active provider.
type ProviderInfo struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// BackfillResult reports a backfill run.
type BackfillResult struct {
	Indexed   int `json:"indexed"`
	Remaining int `json:"remaining"`
}

// Service embeds queries and keeps chunk embeddings in sync.
type Service struct {
	store     Store
	provider  Provider
	batchSize int
	log       *logger.Logger
}

// NewService creates a Service. A non-positive batchSize selects
// DefaultBatchSize.
func NewService(st Store, provider Provider, batchSize int, log *logger.Logger) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: st, provider: provider, batchSize: batchSize, log: log}
}

// Info returns the active provider's model and dimensionality.
func (s *Service) Info() ProviderInfo {
	return ProviderInfo{Model: s.provider.Model(), Dimensions: s.provider.Dimensions()}
}

func (s *Service) fingerprint() string {
	return s.provider.Model() + ":" + strconv.Itoa(s.provider.Dimensions())
}

// EnsureGeneration compares the active provider with the one recorded in
// the index. On mismatch every embedding is dropped so that the next
// backfill rebuilds a single vector space. An index without a recorded
// fingerprint only gets one; its vectors stay. It reports whether a switch
// happened.
func (s *Service) EnsureGeneration(ctx context.Context) (bool, error) {
	current := s.fingerprint()
	recorded, found, err := s.store.GetMeta(ctx, fingerprintKey)
	if err != nil {
		return false, err
	}
	if !found {
		if err := s.store.SetMeta(ctx, fingerprintKey, current); err != nil {
			return false, fmt.Errorf("embedding: record generation: %w", err)
		}
		return false, nil
	}
	if recorded == current {
		return false, nil
	}

	deleted, err := s.store.ResetEmbeddings(ctx, fingerprintKey, current)
	if err != nil {
		return false, fmt.Errorf("embedding: reset generation: %w", err)
	}
	s.log.Warn("embedding provider changed, dropped stored vectors",
		"previous", recorded, "current", current, "deleted", deleted)
	return true, nil
}

// EmbedQuery embeds a single query string.
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	vectors, err := s.provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return vectors[0], nil
}

// Backfill embeds every chunk that has no embedding, one batch per
// provider call and one transaction per batch. A failing batch aborts the
// run; batches already saved stay.
func (s *Service) Backfill(ctx context.Context) (BackfillResult, error) {
	var res BackfillResult
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		pending, err := s.store.ChunksMissingEmbedding(ctx, s.batchSize)
		if err != nil {
			return res, err
		}
		if len(pending) == 0 {
			break
		}

		texts := make([]string, len(pending))
		for i, p := range pending {
			texts[i] = p.Content
		}
		vectors, err := s.provider.Embed(ctx, texts)
		if err != nil {
			return res, fmt.Errorf("embedding: embed batch: %w", err)
		}
		if len(vectors) != len(pending) {
			return res, fmt.Errorf("embedding: provider returned %d vectors for %d chunks", len(vectors), len(pending))
		}

		batch := make([]store.Embedding, len(pending))
		for i, p := range pending {
			batch[i] = store.Embedding{ChunkID: p.ChunkID, Model: s.provider.Model(), Vector: vectors[i]}
		}
		if err := s.store.SaveEmbeddings(ctx, batch); err != nil {
			return res, err
		}
		res.Indexed += len(batch)
		s.log.Debug("embedding batch saved", "count", len(batch), "total", res.Indexed)
	}

	remaining, err := s.store.CountMissingEmbeddings(ctx)
	if err != nil {
		return res, err
	}
	res.Remaining = remaining
	if res.Indexed > 0 {
		s.log.Info("embedding backfill done", "indexed", res.Indexed, "remaining", remaining, "model", s.provider.Model())
	}
	return res, nil
}

// Reindex drops every embedding and backfills from scratch.
func (s *Service) Reindex(ctx context.Context) (BackfillResult, error) {
	if _, err := s.store.DeleteAllEmbeddings(ctx); err != nil {
		return BackfillResult{}, err
	}
	return s.Backfill(ctx)
}
