// Package search answers lexical, semantic and hybrid queries over the
// archive and builds cited answers from the results.
package search

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/HendryAvila/chatrecall/internal/embedding"
	"github.com/HendryAvila/chatrecall/internal/logger"
	"github.com/HendryAvila/chatrecall/internal/store"
	"github.com/HendryAvila/chatrecall/internal/textutil"
)

// Mode specifies the search strategy.
type Mode string

const (
	ModeLexical  Mode = "lexical"
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
)

// ParseMode converts a string to a Mode, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lexical", "keyword", "bm25":
		return ModeLexical, nil
	case "semantic":
		return ModeSemantic, nil
	case "hybrid", "":
		return ModeHybrid, nil
	default:
		return "", fmt.Errorf("search: unknown mode %q", s)
	}
}

const (
	MinTopK = 1
	MaxTopK = 100

	// exactMatchBoost is added to hybrid hits containing the whole query.
	exactMatchBoost = 0.03

	minCandidatePool    = 300
	candidatesPerResult = 60
	hybridOversample    = 4
)

// Hit is one ranked search result.
type Hit struct {
	ChunkID           string  `json:"chunk_id"`
	ConversationID    string  `json:"conversation_id"`
	ConversationTitle string  `json:"conversation_title"`
	MessageID         string  `json:"message_id"`
	Role              string  `json:"role"`
	CreatedAt         string  `json:"created_at"`
	Snippet           string  `json:"snippet"`
	Content           string  `json:"content"`
	Score             float64 `json:"score"`
	Rank              int     `json:"rank"`
	Source            Mode    `json:"source"`
}

// Store is the persistence the service reads from.
type Store interface {
	LexicalSearch(ctx context.Context, match string, f store.Filters, limit int) ([]store.ChunkRow, error)
	EmbeddingCandidates(ctx context.Context, f store.Filters, limit int) ([]store.Candidate, error)
	CountEmbeddings(ctx context.Context) (int, error)
	GetConversation(ctx context.Context, id string) (store.Conversation, bool, error)
	ListMessages(ctx context.Context, conversationID string) ([]store.Message, error)
	GetMessage(ctx context.Context, id string) (store.Message, bool, error)
	MessagesInRange(ctx context.Context, conversationID string, from, to int) ([]store.Message, error)
	LogSearch(ctx context.Context, entry store.SearchLog) error
}

// Embedder embeds queries and fills missing chunk embeddings.
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float64, error)
	Backfill(ctx context.Context) (embedding.BackfillResult, error)
}

// Service runs searches and lookups.
type Service struct {
	store    Store
	embedder Embedder
	log      *logger.Logger
}

// NewService creates a search Service.
func NewService(st Store, emb Embedder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: st, embedder: emb, log: log}
}

// ClampTopK bounds topK to [MinTopK, MaxTopK].
func ClampTopK(topK int) int {
	return max(MinTopK, min(MaxTopK, topK))
}

// ─── Modes ───────────────────────────────────────────────────────────────────

// Search dispatches to the given mode.
func (s *Service) Search(ctx context.Context, mode Mode, query string, f store.Filters, topK int) ([]Hit, error) {
	switch mode {
	case ModeLexical:
		return s.Lexical(ctx, query, f, topK)
	case ModeSemantic:
		return s.Semantic(ctx, query, f, topK)
	case ModeHybrid:
		return s.Hybrid(ctx, query, f, topK)
	default:
		return nil, fmt.Errorf("search: unknown mode %q", mode)
	}
}

// Lexical ranks chunks by BM25 over the full-text mirror. Every query
// token must match as a prefix.
func (s *Service) Lexical(ctx context.Context, query string, f store.Filters, topK int) ([]Hit, error) {
	started := time.Now()
	topK = ClampTopK(topK)
	hits, err := s.lexical(ctx, query, f, topK)
	if err != nil {
		return nil, err
	}
	s.logSearch(ctx, ModeLexical, query, f, topK, started, len(hits))
	return hits, nil
}

func (s *Service) lexical(ctx context.Context, query string, f store.Filters, topK int) ([]Hit, error) {
	match := textutil.FTSQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := s.store.LexicalSearch(ctx, match, f, topK)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(rows))
	for i, row := range rows {
		hits[i] = toHit(row, query, 1/float64(1+i), i+1, ModeLexical)
	}
	return hits, nil
}

// Semantic ranks a bounded pool of embedded chunks by cosine similarity
// to the query. Embeddings are backfilled first when none exist.
func (s *Service) Semantic(ctx context.Context, query string, f store.Filters, topK int) ([]Hit, error) {
	started := time.Now()
	topK = ClampTopK(topK)
	hits, err := s.semantic(ctx, query, f, topK)
	if err != nil {
		return nil, err
	}
	s.logSearch(ctx, ModeSemantic, query, f, topK, started, len(hits))
	return hits, nil
}

func (s *Service) semantic(ctx context.Context, query string, f store.Filters, topK int) ([]Hit, error) {
	n, err := s.store.CountEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := s.embedder.Backfill(ctx); err != nil {
			return nil, err
		}
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}
	if len(queryVec) == 0 {
		return nil, nil
	}

	candidates, err := s.store.EmbeddingCandidates(ctx, f, max(topK*candidatesPerResult, minCandidatePool))
	if err != nil {
		return nil, err
	}

	type scored struct {
		row   store.ChunkRow
		score float64
	}
	var kept []scored
	for _, c := range candidates {
		if sim := CosineSimilarity(queryVec, c.Vector); sim > 0 {
			kept = append(kept, scored{row: c.ChunkRow, score: sim})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].row.ChunkID < kept[j].row.ChunkID
	})
	if len(kept) > topK {
		kept = kept[:topK]
	}

	hits := make([]Hit, len(kept))
	for i, k := range kept {
		hits[i] = toHit(k.row, query, k.score, i+1, ModeSemantic)
	}
	return hits, nil
}

// Hybrid fuses lexical and semantic rankings with reciprocal rank fusion
// and boosts hits that contain the whole query verbatim.
func (s *Service) Hybrid(ctx context.Context, query string, f store.Filters, topK int) ([]Hit, error) {
	started := time.Now()
	topK = ClampTopK(topK)
	pool := ClampTopK(topK * hybridOversample)

	lexical, err := s.lexical(ctx, query, f, pool)
	if err != nil {
		return nil, err
	}
	semantic, err := s.semantic(ctx, query, f, pool)
	if err != nil {
		return nil, err
	}

	byChunk := make(map[string]Hit, len(lexical)+len(semantic))
	for _, h := range lexical {
		byChunk[h.ChunkID] = h
	}
	for _, h := range semantic {
		if existing, ok := byChunk[h.ChunkID]; !ok || h.Score > existing.Score {
			byChunk[h.ChunkID] = h
		}
	}

	needle := strings.ToLower(textutil.CleanDisplayText(query))
	fused := ReciprocalRankFusion([][]string{chunkIDs(lexical), chunkIDs(semantic)}, DefaultRRFK)

	hits := make([]Hit, 0, len(fused))
	for _, entry := range fused {
		h, ok := byChunk[entry.ID]
		if !ok {
			continue
		}
		h.Score = entry.Score
		if needle != "" && strings.Contains(strings.ToLower(h.Content), needle) {
			h.Score += exactMatchBoost
		}
		h.Source = ModeHybrid
		hits = append(hits, h)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}

	s.logSearch(ctx, ModeHybrid, query, f, topK, started, len(hits))
	return hits, nil
}

func chunkIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	return ids
}

func toHit(row store.ChunkRow, query string, score float64, rank int, source Mode) Hit {
	role := row.Role
	if role == "" {
		role = string(textutil.RoleUnknown)
	}
	return Hit{
		ChunkID:           row.ChunkID,
		ConversationID:    row.ConversationID,
		ConversationTitle: row.ConversationTitle,
		MessageID:         row.MessageID,
		Role:              role,
		CreatedAt:         row.CreatedAt,
		Snippet:           textutil.Snippet(row.Content, query, textutil.DefaultSnippetLength),
		Content:           row.Content,
		Score:             score,
		Rank:              rank,
		Source:            source,
	}
}

// logSearch records the invocation. A failed log write never fails the
// search.
func (s *Service) logSearch(ctx context.Context, mode Mode, query string, f store.Filters, topK int, started time.Time, count int) {
	latency := time.Since(started)
	if err := s.store.LogSearch(ctx, store.SearchLog{
		Query: query, Mode: string(mode), TopK: topK, Filters: f,
		Latency: latency, ResultCount: count,
	}); err != nil {
		s.log.Warn("search log write failed", "mode", mode, "error", err)
	}
	s.log.Debug("search", "mode", mode, "top_k", topK, "results", count, "latency_ms", latency.Milliseconds())
}

// ─── Lookups ─────────────────────────────────────────────────────────────────

// ConversationDetail is a conversation with all its messages.
type ConversationDetail struct {
	store.Conversation
	Messages []store.Message `json:"messages"`
}

// GetConversation returns a conversation and its messages in position
// order. found is false for unknown ids.
func (s *Service) GetConversation(ctx context.Context, id string) (ConversationDetail, bool, error) {
	conv, found, err := s.store.GetConversation(ctx, id)
	if err != nil || !found {
		return ConversationDetail{}, false, err
	}
	msgs, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return ConversationDetail{}, false, err
	}
	return ConversationDetail{Conversation: conv, Messages: msgs}, true, nil
}

// ConversationRef identifies a conversation.
type ConversationRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// MessageContext is a message with its neighbours.
type MessageContext struct {
	Conversation   ConversationRef `json:"conversation"`
	FocusMessageID string          `json:"focus_message_id"`
	Messages       []store.Message `json:"messages"`
}

// GetMessageContext returns the message with up to before/after
// neighbours by position. The window never starts below position 0.
func (s *Service) GetMessageContext(ctx context.Context, messageID string, before, after int) (MessageContext, bool, error) {
	focus, found, err := s.store.GetMessage(ctx, messageID)
	if err != nil || !found {
		return MessageContext{}, false, err
	}

	from := max(0, focus.Position-max(0, before))
	to := focus.Position + max(0, after)
	msgs, err := s.store.MessagesInRange(ctx, focus.ConversationID, from, to)
	if err != nil {
		return MessageContext{}, false, err
	}

	ref := ConversationRef{ID: focus.ConversationID}
	conv, ok, err := s.store.GetConversation(ctx, focus.ConversationID)
	if err != nil {
		return MessageContext{}, false, err
	}
	if ok {
		ref.Title = conv.Title
	}
	return MessageContext{Conversation: ref, FocusMessageID: focus.ID, Messages: msgs}, true, nil
}

// ─── Answers ─────────────────────────────────────────────────────────────────

const (
	DefaultMaxCitations = 5
	answerThemes        = 3

	noEvidenceAnswer = "No matching evidence found. Try a more specific question or looser filters."
	answerHeader     = "Here are the most relevant passages from your chat archive."
	answerFooter     = "Use the citations for follow-up questions, or ask for a detailed summary of a single hit."
)

// Citation points at the evidence behind an answer.
type Citation struct {
	ConversationID    string  `json:"conversation_id"`
	ConversationTitle string  `json:"conversation_title"`
	MessageID         string  `json:"message_id"`
	ChunkID           string  `json:"chunk_id"`
	Role              string  `json:"role"`
	CreatedAt         string  `json:"created_at"`
	Snippet           string  `json:"snippet"`
	Score             float64 `json:"score"`
}

// Answer is an extractive answer with its citations.
type Answer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// AnswerWithCitations runs a hybrid search and summarises the top hits.
func (s *Service) AnswerWithCitations(ctx context.Context, question string, f store.Filters, maxCitations int) (Answer, error) {
	if maxCitations <= 0 {
		maxCitations = DefaultMaxCitations
	}
	hits, err := s.Hybrid(ctx, question, f, max(maxCitations*2, 8))
	if err != nil {
		return Answer{}, err
	}
	if len(hits) == 0 {
		return Answer{Answer: noEvidenceAnswer, Citations: []Citation{}}, nil
	}

	if len(hits) > maxCitations {
		hits = hits[:maxCitations]
	}
	citations := make([]Citation, len(hits))
	for i, h := range hits {
		citations[i] = Citation{
			ConversationID:    h.ConversationID,
			ConversationTitle: h.ConversationTitle,
			MessageID:         h.MessageID,
			ChunkID:           h.ChunkID,
			Role:              h.Role,
			CreatedAt:         h.CreatedAt,
			Snippet:           h.Snippet,
			Score:             h.Score,
		}
	}

	themes := make([]string, 0, answerThemes)
	for i, c := range citations[:min(answerThemes, len(citations))] {
		themes = append(themes, strconv.Itoa(i+1)+". ["+c.ConversationTitle+"] ("+c.CreatedAt+")\n"+c.Snippet)
	}
	answer := strings.Join([]string{answerHeader, "", strings.Join(themes, "\n\n"), "", answerFooter}, "\n")
	return Answer{Answer: answer, Citations: citations}, nil
}
