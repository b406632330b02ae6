package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/HendryAvila/chatrecall/internal/store"
)

var errBoom = errors.New("boom")

// newTestStore creates a Store backed by a temp directory for isolation.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "conversations.db"), nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type seedMessage struct {
	id, conv, role, at, content string
	pos                         int
}

// seed writes one completed import with two conversations and four
// single-chunk messages.
func seed(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()

	if err := s.CreateImport(ctx, store.Import{
		ID: "imp-1", SourceLabel: "test", FilePath: "/tmp/export.json", FileHash: "hash-1",
	}); err != nil {
		t.Fatalf("CreateImport: %v", err)
	}

	convs := []store.Conversation{
		{ID: "conv-1", Title: "Docker setup", CreatedAt: "2024-01-01T10:00:00.000Z", UpdatedAt: "2024-01-01T10:05:00.000Z", SourceImportID: "imp-1"},
		{ID: "conv-2", Title: "Skincare", CreatedAt: "2024-02-01T09:00:00.000Z", UpdatedAt: "2024-02-01T09:00:00.000Z", SourceImportID: "imp-1"},
	}
	msgs := []seedMessage{
		{"m0", "conv-1", "user", "2024-01-01T10:00:00.000Z", "How do I install Docker on Ubuntu?", 0},
		{"m1", "conv-1", "assistant", "2024-01-01T10:01:00.000Z", "Use apt to install docker-ce and start the daemon.", 1},
		{"m2", "conv-1", "user", "2024-01-01T10:02:00.000Z", "Thanks, that worked.", 2},
		{"m3", "conv-2", "user", "2024-02-01T09:00:00.000Z", "Which cleanser helps with acne? Maybe a crème.", 0},
	}

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		for _, c := range convs {
			if err := tx.UpsertConversation(ctx, c); err != nil {
				return err
			}
		}
		for _, m := range msgs {
			if err := tx.InsertMessage(ctx, store.Message{
				ID: m.id, ConversationID: m.conv, Role: m.role, Sender: m.role,
				CreatedAt: m.at, Position: m.pos, Content: m.content, SourceImportID: "imp-1",
			}); err != nil {
				return err
			}
			if err := tx.InsertChunk(ctx, store.Chunk{
				ID: m.id + "::0", ConversationID: m.conv, MessageID: m.id, ChunkIndex: 0,
				Role: m.role, CreatedAt: m.at, Content: m.content, TokenCount: 5,
				SourceImportID: "imp-1", MetadataJSON: `{"sourceLabel":"test"}`,
			}); err != nil {
				return err
			}
		}
		return tx.CompleteImport(ctx, "imp-1", store.ImportCounts{
			RawConversations: 2, ParsedConversations: 2, ParsedMessages: 4, ParsedChunks: 4,
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func countRows(t *testing.T, s *store.Store, query string, args ...any) int {
	t.Helper()
	var n int
	if err := s.DB().QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

// ─── New / Migrations ────────────────────────────────────────────────────────

func TestNew_EnablesWALAndForeignKeys(t *testing.T) {
	s := newTestStore(t)

	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	if fk := countRows(t, s, "PRAGMA foreign_keys"); fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestNew_AppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "conversations.db")
	s, err := store.New(path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	seed(t, s)
	if n := countRows(t, s, "SELECT COUNT(*) FROM schema_migrations"); n != 2 {
		t.Fatalf("schema_migrations = %d, want 2", n)
	}
	s.Close()

	reopened, err := store.New(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if n := countRows(t, reopened, "SELECT COUNT(*) FROM schema_migrations"); n != 2 {
		t.Errorf("schema_migrations after reopen = %d, want 2", n)
	}
	if _, found, err := reopened.GetConversation(context.Background(), "conv-1"); err != nil || !found {
		t.Errorf("conversation lost after reopen: found=%v err=%v", found, err)
	}
}

func TestMigrate_FailureRollsBackEverything(t *testing.T) {
	s := newTestStore(t)

	err := s.ApplyMigration("003_broken", `
		CREATE TABLE scratch (a INTEGER);
		CREATE TABLE (;
	`)
	if err == nil {
		t.Fatal("expected migration error")
	}
	if n := countRows(t, s, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'scratch'"); n != 0 {
		t.Errorf("scratch table survived rollback")
	}
	if n := countRows(t, s, "SELECT COUNT(*) FROM schema_migrations WHERE id = '003_broken'"); n != 0 {
		t.Errorf("failed migration was recorded")
	}
}

func TestMigrate_RecordFailureRollsBackSchema(t *testing.T) {
	s := newTestStore(t)
	s.FailExec("INSERT INTO schema_migrations", errBoom)

	err := s.ApplyMigration("003_extra", `CREATE TABLE extra (a INTEGER)`)
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if n := countRows(t, s, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'extra'"); n != 0 {
		t.Errorf("extra table survived rollback")
	}
}

// ─── Transactions ────────────────────────────────────────────────────────────

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.UpsertConversation(ctx, store.Conversation{
			ID: "conv-9", Title: "t", CreatedAt: "x", UpdatedAt: "x", SourceImportID: "imp-1",
		}); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, found, _ := s.GetConversation(ctx, "conv-9"); found {
		t.Error("conversation written despite rollback")
	}
}

func TestWithTx_CommitFailure(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()
	s.FailCommit(errBoom)

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		return tx.UpsertConversation(ctx, store.Conversation{
			ID: "conv-9", Title: "t", CreatedAt: "x", UpdatedAt: "x", SourceImportID: "imp-1",
		})
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, found, _ := s.GetConversation(ctx, "conv-9"); found {
		t.Error("conversation visible after failed commit")
	}
}

// ─── Imports ─────────────────────────────────────────────────────────────────

func TestFindCompletedImport(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	if err := s.CreateImport(ctx, store.Import{ID: "imp-2", SourceLabel: "again", FilePath: "/tmp/export.json", FileHash: "hash-1"}); err != nil {
		t.Fatalf("CreateImport: %v", err)
	}

	imp, found, err := s.FindCompletedImport(ctx, "hash-1")
	if err != nil || !found {
		t.Fatalf("FindCompletedImport: found=%v err=%v", found, err)
	}
	if imp.ID != "imp-1" || imp.Status != store.ImportCompleted || imp.ParsedChunks != 4 {
		t.Errorf("unexpected import: %+v", imp)
	}
	if imp.CompletedAt == nil {
		t.Error("completed_at not set")
	}

	if _, found, _ := s.FindCompletedImport(ctx, "other"); found {
		t.Error("found import for unknown hash")
	}
}

func TestFailImport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateImport(ctx, store.Import{ID: "imp-x", SourceLabel: "l", FilePath: "/f", FileHash: "h"}); err != nil {
		t.Fatalf("CreateImport: %v", err)
	}
	if err := s.FailImport(ctx, "imp-x", "parse error"); err != nil {
		t.Fatalf("FailImport: %v", err)
	}
	imp, found, err := s.GetImport(ctx, "imp-x")
	if err != nil || !found {
		t.Fatalf("GetImport: found=%v err=%v", found, err)
	}
	if imp.Status != store.ImportFailed || imp.ErrorText == nil || *imp.ErrorText != "parse error" {
		t.Errorf("unexpected import: %+v", imp)
	}

	if err := s.FailImport(ctx, "nope", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FailImport(unknown) = %v, want ErrNotFound", err)
	}
}

// ─── Lexical search ──────────────────────────────────────────────────────────

func TestLexicalSearch_PrefixAndFilters(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	rows, err := s.LexicalSearch(ctx, "docker*", store.Filters{}, 10)
	if err != nil {
		t.Fatalf("LexicalSearch: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	for _, r := range rows {
		if r.ConversationTitle != "Docker setup" {
			t.Errorf("title = %q", r.ConversationTitle)
		}
	}

	rows, _ = s.LexicalSearch(ctx, "docker*", store.Filters{Role: "assistant"}, 10)
	if len(rows) != 1 || rows[0].ChunkID != "m1::0" {
		t.Errorf("role filter: %+v", rows)
	}

	rows, _ = s.LexicalSearch(ctx, "docker*", store.Filters{DateFrom: "2024-01-15"}, 10)
	if len(rows) != 0 {
		t.Errorf("date filter: got %d rows", len(rows))
	}

	rows, _ = s.LexicalSearch(ctx, "docker* AND install*", store.Filters{ConversationID: "conv-1"}, 1)
	if len(rows) != 1 {
		t.Errorf("limit: got %d rows", len(rows))
	}
}

func TestLexicalSearch_FoldsDiacritics(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	rows, err := s.LexicalSearch(context.Background(), "creme*", store.Filters{}, 10)
	if err != nil {
		t.Fatalf("LexicalSearch: %v", err)
	}
	if len(rows) != 1 || rows[0].MessageID != "m3" {
		t.Errorf("got %+v", rows)
	}
}

func TestClearConversation_RemovesChunksAndMirror(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	if err := s.SaveEmbeddings(ctx, []store.Embedding{{ChunkID: "m0::0", Model: "m", Vector: []float64{1}}}); err != nil {
		t.Fatalf("SaveEmbeddings: %v", err)
	}
	if err := s.WithTx(ctx, func(tx *store.Tx) error {
		return tx.ClearConversation(ctx, "conv-1")
	}); err != nil {
		t.Fatalf("ClearConversation: %v", err)
	}

	if rows, _ := s.LexicalSearch(ctx, "docker*", store.Filters{}, 10); len(rows) != 0 {
		t.Errorf("fts still returns %d rows", len(rows))
	}
	if n := countRows(t, s, "SELECT COUNT(*) FROM chunks"); n != 1 {
		t.Errorf("chunks = %d, want 1", n)
	}
	if n := countRows(t, s, "SELECT COUNT(*) FROM chunk_embeddings"); n != 0 {
		t.Errorf("embeddings = %d, want 0", n)
	}
	if msgs, _ := s.ListMessages(ctx, "conv-1"); len(msgs) != 0 {
		t.Errorf("messages = %d, want 0", len(msgs))
	}
	if _, found, _ := s.GetConversation(ctx, "conv-1"); !found {
		t.Error("conversation row should remain")
	}
}

// ─── Derived reads ───────────────────────────────────────────────────────────

func TestRebuildFTS_RestoresMirror(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	if _, err := s.DB().Exec("DELETE FROM chunk_fts"); err != nil {
		t.Fatalf("corrupt fts: %v", err)
	}
	if rows, _ := s.LexicalSearch(ctx, "docker*", store.Filters{}, 10); len(rows) != 0 {
		t.Fatalf("expected empty mirror, got %d", len(rows))
	}

	n, err := s.RebuildFTS(ctx)
	if err != nil {
		t.Fatalf("RebuildFTS: %v", err)
	}
	if n != 4 {
		t.Errorf("RebuildFTS = %d, want 4", n)
	}
	if rows, _ := s.LexicalSearch(ctx, "docker*", store.Filters{}, 10); len(rows) != 2 {
		t.Errorf("after rebuild got %d rows, want 2", len(rows))
	}
	if n := countRows(t, s, "SELECT COUNT(*) FROM chunk_fts"); n != 4 {
		t.Errorf("chunk_fts = %d, want 4", n)
	}
}

func TestOverviewStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.OverviewStats(ctx)
	if err != nil {
		t.Fatalf("OverviewStats: %v", err)
	}
	if empty.LatestImport != nil || empty.Chunks != 0 {
		t.Errorf("empty stats: %+v", empty)
	}

	seed(t, s)
	stats, err := s.OverviewStats(ctx)
	if err != nil {
		t.Fatalf("OverviewStats: %v", err)
	}
	if stats.Conversations != 2 || stats.Messages != 4 || stats.Chunks != 4 || stats.Embeddings != 0 {
		t.Errorf("counts: %+v", stats)
	}
	if stats.LatestImport == nil || stats.LatestImport.ID != "imp-1" {
		t.Errorf("latest import: %+v", stats.LatestImport)
	}
}

// ─── Messages ────────────────────────────────────────────────────────────────

func TestMessageReads(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	all, err := s.ListMessages(ctx, "conv-1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(all) != 3 || all[0].ID != "m0" || all[2].ID != "m2" {
		t.Errorf("ListMessages order: %+v", all)
	}

	window, err := s.MessagesInRange(ctx, "conv-1", 1, 5)
	if err != nil {
		t.Fatalf("MessagesInRange: %v", err)
	}
	if len(window) != 2 || window[0].Position != 1 {
		t.Errorf("MessagesInRange: %+v", window)
	}

	m, found, err := s.GetMessage(ctx, "m1")
	if err != nil || !found || m.Role != "assistant" || m.ConversationID != "conv-1" {
		t.Errorf("GetMessage: %+v found=%v err=%v", m, found, err)
	}
	if _, found, _ := s.GetMessage(ctx, "missing"); found {
		t.Error("GetMessage(missing) found")
	}
}

// ─── Embeddings ──────────────────────────────────────────────────────────────

func TestEmbeddings_BackfillLifecycle(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	pending, err := s.ChunksMissingEmbedding(ctx, 3)
	if err != nil {
		t.Fatalf("ChunksMissingEmbedding: %v", err)
	}
	if len(pending) != 3 || pending[0].ChunkID != "m0::0" {
		t.Fatalf("pending: %+v", pending)
	}

	batch := make([]store.Embedding, len(pending))
	for i, p := range pending {
		batch[i] = store.Embedding{ChunkID: p.ChunkID, Model: "test-model", Vector: []float64{1, 0}}
	}
	if err := s.SaveEmbeddings(ctx, batch); err != nil {
		t.Fatalf("SaveEmbeddings: %v", err)
	}
	// Upsert keeps one row per chunk.
	if err := s.SaveEmbeddings(ctx, batch[:1]); err != nil {
		t.Fatalf("SaveEmbeddings again: %v", err)
	}

	if n, _ := s.CountEmbeddings(ctx); n != 3 {
		t.Errorf("CountEmbeddings = %d, want 3", n)
	}
	if n, _ := s.CountMissingEmbeddings(ctx); n != 1 {
		t.Errorf("CountMissingEmbeddings = %d, want 1", n)
	}
	if dims := countRows(t, s, "SELECT dimensions FROM chunk_embeddings WHERE chunk_id = 'm1::0'"); dims != 2 {
		t.Errorf("dimensions = %d, want 2", dims)
	}

	cands, err := s.EmbeddingCandidates(ctx, store.Filters{ConversationID: "conv-1"}, 10)
	if err != nil {
		t.Fatalf("EmbeddingCandidates: %v", err)
	}
	if len(cands) != 3 {
		t.Fatalf("candidates = %d, want 3", len(cands))
	}
	if cands[0].ConversationTitle != "Docker setup" || len(cands[0].Vector) != 2 || cands[0].Vector[0] != 1 {
		t.Errorf("candidate: %+v", cands[0])
	}

	deleted, err := s.ResetEmbeddings(ctx, "embedding_fingerprint", "other:8")
	if err != nil {
		t.Fatalf("ResetEmbeddings: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
	if v, found, _ := s.GetMeta(ctx, "embedding_fingerprint"); !found || v != "other:8" {
		t.Errorf("meta = %q found=%v", v, found)
	}
}

func TestMeta_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, found, err := s.GetMeta(ctx, "k"); err != nil || found {
		t.Fatalf("GetMeta(empty): found=%v err=%v", found, err)
	}
	if err := s.SetMeta(ctx, "k", "v1"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	if err := s.SetMeta(ctx, "k", "v2"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	if v, _, _ := s.GetMeta(ctx, "k"); v != "v2" {
		t.Errorf("GetMeta = %q, want v2", v)
	}
}

func TestLogSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.LogSearch(ctx, store.SearchLog{Query: "docker", Mode: "lexical", TopK: 10, Filters: store.Filters{Role: "user"}, ResultCount: 2}); err != nil {
		t.Fatalf("LogSearch: %v", err)
	}
	if err := s.LogSearch(ctx, store.SearchLog{Query: "", Mode: "hybrid", TopK: 5}); err != nil {
		t.Fatalf("LogSearch: %v", err)
	}

	if n := countRows(t, s, "SELECT COUNT(*) FROM search_logs"); n != 2 {
		t.Errorf("search_logs = %d, want 2", n)
	}
	var filters string
	if err := s.DB().QueryRow("SELECT filters_json FROM search_logs WHERE mode = 'lexical'").Scan(&filters); err != nil {
		t.Fatalf("read filters: %v", err)
	}
	if filters != `{"role":"user"}` {
		t.Errorf("filters_json = %s", filters)
	}
}
