package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/HendryAvila/chatrecall/internal/textutil"
)

// ─── Imports ─────────────────────────────────────────────────────────────────

const importColumns = `id, source_label, file_path, file_hash, status, imported_at, completed_at,
	raw_conversations, parsed_conversations, parsed_messages, parsed_chunks,
	skipped_messages, error_text`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImport(row rowScanner) (Import, error) {
	var imp Import
	err := row.Scan(
		&imp.ID, &imp.SourceLabel, &imp.FilePath, &imp.FileHash, &imp.Status,
		&imp.ImportedAt, &imp.CompletedAt,
		&imp.RawConversations, &imp.ParsedConversations, &imp.ParsedMessages,
		&imp.ParsedChunks, &imp.SkippedMessages, &imp.ErrorText,
	)
	return imp, err
}

// FindCompletedImport returns the most recent completed import whose file
// content hash equals hash.
func (s *Store) FindCompletedImport(ctx context.Context, hash string) (Import, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+importColumns+`
		FROM imports
		WHERE file_hash = ? AND status = ?
		ORDER BY imported_at DESC
		LIMIT 1`,
		hash, string(ImportCompleted),
	)
	imp, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Import{}, false, nil
	}
	if err != nil {
		return Import{}, false, fmt.Errorf("store: find import: %w", err)
	}
	return imp, true, nil
}

// GetImport returns the import with the given id.
func (s *Store) GetImport(ctx context.Context, id string) (Import, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+importColumns+` FROM imports WHERE id = ?`, id)
	imp, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Import{}, false, nil
	}
	if err != nil {
		return Import{}, false, fmt.Errorf("store: get import: %w", err)
	}
	return imp, true, nil
}

// CreateImport inserts a new import in processing state.
func (s *Store) CreateImport(ctx context.Context, imp Import) error {
	if imp.ImportedAt == "" {
		imp.ImportedAt = textutil.NowISO()
	}
	_, err := s.execHook(ctx, s.db, `
		INSERT INTO imports (id, source_label, file_path, file_hash, status, imported_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		imp.ID, imp.SourceLabel, imp.FilePath, imp.FileHash, string(ImportProcessing), imp.ImportedAt,
	)
	if err != nil {
		return fmt.Errorf("store: create import: %w", err)
	}
	return nil
}

// FailImport marks an import failed and records errText.
func (s *Store) FailImport(ctx context.Context, id, errText string) error {
	res, err := s.execHook(ctx, s.db, `
		UPDATE imports SET status = ?, completed_at = ?, error_text = ?
		WHERE id = ?`,
		string(ImportFailed), textutil.NowISO(), errText, id,
	)
	if err != nil {
		return fmt.Errorf("store: fail import: %w", err)
	}
	return requireAffected(res, "fail import")
}

// CompleteImport marks an import completed with its final counts.
func (t *Tx) CompleteImport(ctx context.Context, id string, c ImportCounts) error {
	res, err := t.exec(ctx, `
		UPDATE imports SET
			status = ?,
			completed_at = ?,
			raw_conversations = ?,
			parsed_conversations = ?,
			parsed_messages = ?,
			parsed_chunks = ?,
			skipped_messages = ?,
			error_text = NULL
		WHERE id = ?`,
		string(ImportCompleted), textutil.NowISO(),
		c.RawConversations, c.ParsedConversations, c.ParsedMessages, c.ParsedChunks, c.SkippedMessages,
		id,
	)
	if err != nil {
		return fmt.Errorf("store: complete import: %w", err)
	}
	return requireAffected(res, "complete import")
}

func requireAffected(res sql.Result, action string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: %s: %w", action, err)
	}
	if n == 0 {
		return fmt.Errorf("store: %s: %w", action, ErrNotFound)
	}
	return nil
}

// ─── Conversation writes ─────────────────────────────────────────────────────

// UpsertConversation inserts a conversation or overwrites its title,
// timestamps and owning import.
func (t *Tx) UpsertConversation(ctx context.Context, c Conversation) error {
	_, err := t.exec(ctx, `
		INSERT INTO conversations (id, title, created_at, updated_at, source_import_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			source_import_id = excluded.source_import_id`,
		c.ID, c.Title, c.CreatedAt, c.UpdatedAt, c.SourceImportID,
	)
	if err != nil {
		return fmt.Errorf("store: upsert conversation %q: %w", c.ID, err)
	}
	return nil
}

// ClearConversation removes the messages and chunks of a conversation
// together with their full-text and embedding rows. The conversation row
// itself stays.
func (t *Tx) ClearConversation(ctx context.Context, conversationID string) error {
	stmts := []string{
		`DELETE FROM chunk_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE conversation_id = ?)`,
		`DELETE FROM chunk_embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE conversation_id = ?)`,
		`DELETE FROM chunks WHERE conversation_id = ?`,
		`DELETE FROM messages WHERE conversation_id = ?`,
	}
	for _, q := range stmts {
		if _, err := t.exec(ctx, q, conversationID); err != nil {
			return fmt.Errorf("store: clear conversation %q: %w", conversationID, err)
		}
	}
	return nil
}

// InsertMessage inserts one message.
func (t *Tx) InsertMessage(ctx context.Context, m Message) error {
	_, err := t.exec(ctx, `
		INSERT INTO messages (id, conversation_id, role, sender, created_at, position, content, source_import_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Sender, m.CreatedAt, m.Position, m.Content, m.SourceImportID,
	)
	if err != nil {
		return fmt.Errorf("store: insert message %q: %w", m.ID, err)
	}
	return nil
}

// InsertChunk inserts a chunk and its matching full-text row.
func (t *Tx) InsertChunk(ctx context.Context, c Chunk) error {
	var metadata any
	if c.MetadataJSON != "" {
		metadata = c.MetadataJSON
	}
	if _, err := t.exec(ctx, `
		INSERT INTO chunks (
			id, conversation_id, message_id, chunk_index, role, created_at,
			content, token_count, source_import_id, metadata_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ConversationID, c.MessageID, c.ChunkIndex, c.Role, c.CreatedAt,
		c.Content, c.TokenCount, c.SourceImportID, metadata,
	); err != nil {
		return fmt.Errorf("store: insert chunk %q: %w", c.ID, err)
	}
	if _, err := t.exec(ctx, `
		INSERT INTO chunk_fts (chunk_id, conversation_id, message_id, role, created_at, content)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ConversationID, c.MessageID, c.Role, c.CreatedAt, c.Content,
	); err != nil {
		return fmt.Errorf("store: index chunk %q: %w", c.ID, err)
	}
	return nil
}
