package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/HendryAvila/chatrecall/internal/textutil"
)

// sql renders the filters as AND clauses on the chunk table alias, with
// the matching positional arguments.
func (f Filters) sql(alias string) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.ConversationID != "" {
		clauses = append(clauses, alias+".conversation_id = ?")
		args = append(args, f.ConversationID)
	}
	if f.Role != "" {
		clauses = append(clauses, alias+".role = ?")
		args = append(args, f.Role)
	}
	if f.DateFrom != "" {
		clauses = append(clauses, alias+".created_at >= ?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		clauses = append(clauses, alias+".created_at <= ?")
		args = append(args, f.DateTo)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// ─── Lexical search ──────────────────────────────────────────────────────────

// LexicalSearch runs an FTS5 MATCH expression against the chunk mirror and
// returns up to limit rows, most relevant (lowest bm25) first.
func (s *Store) LexicalSearch(ctx context.Context, match string, f Filters, limit int) ([]ChunkRow, error) {
	filterSQL, filterArgs := f.sql("c")
	args := append([]any{match}, filterArgs...)
	args = append(args, limit)

	rows, err := s.queryHook(ctx, s.db, `
		SELECT
			chunk_fts.chunk_id,
			c.conversation_id,
			conv.title,
			c.message_id,
			c.role,
			c.created_at,
			c.content
		FROM chunk_fts
		JOIN chunks c ON c.id = chunk_fts.chunk_id
		JOIN conversations conv ON conv.id = c.conversation_id
		WHERE chunk_fts MATCH ?`+filterSQL+`
		ORDER BY bm25(chunk_fts), c.id
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: lexical search: %w", err)
	}
	defer rows.Close()

	var out []ChunkRow
	for rows.Next() {
		var r ChunkRow
		if err := rows.Scan(
			&r.ChunkID, &r.ConversationID, &r.ConversationTitle,
			&r.MessageID, &r.Role, &r.CreatedAt, &r.Content,
		); err != nil {
			return nil, fmt.Errorf("store: scan lexical row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ─── Conversations & messages ────────────────────────────────────────────────

// GetConversation returns the conversation with the given id.
func (s *Store) GetConversation(ctx context.Context, id string) (Conversation, bool, error) {
	var c Conversation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at, source_import_id
		FROM conversations WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt, &c.SourceImportID)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, false, nil
	}
	if err != nil {
		return Conversation{}, false, fmt.Errorf("store: get conversation: %w", err)
	}
	return c, true, nil
}

const messageColumns = `id, conversation_id, role, sender, created_at, position, content, source_import_id`

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.Role, &m.Sender,
			&m.CreatedAt, &m.Position, &m.Content, &m.SourceImportID,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListMessages returns every message of a conversation in position order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.queryHook(ctx, s.db, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ?
		ORDER BY position ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	return msgs, nil
}

// GetMessage returns the message with the given id.
func (s *Store) GetMessage(ctx context.Context, id string) (Message, bool, error) {
	var m Message
	err := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id).Scan(
		&m.ID, &m.ConversationID, &m.Role, &m.Sender,
		&m.CreatedAt, &m.Position, &m.Content, &m.SourceImportID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, fmt.Errorf("store: get message: %w", err)
	}
	return m, true, nil
}

// MessagesInRange returns the messages of a conversation whose position
// lies in [from, to], in position order.
func (s *Store) MessagesInRange(ctx context.Context, conversationID string, from, to int) ([]Message, error) {
	rows, err := s.queryHook(ctx, s.db, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ? AND position BETWEEN ? AND ?
		ORDER BY position ASC`, conversationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("store: messages in range: %w", err)
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("store: messages in range: %w", err)
	}
	return msgs, nil
}

// ─── Search log ──────────────────────────────────────────────────────────────

// LogSearch appends one search invocation to search_logs.
func (s *Store) LogSearch(ctx context.Context, entry SearchLog) error {
	filters, err := json.Marshal(entry.Filters)
	if err != nil {
		return fmt.Errorf("store: encode filters: %w", err)
	}
	if _, err := s.execHook(ctx, s.db, `
		INSERT INTO search_logs (id, query, mode, top_k, filters_json, latency_ms, result_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), entry.Query, entry.Mode, entry.TopK, string(filters),
		entry.Latency.Milliseconds(), entry.ResultCount, textutil.NowISO(),
	); err != nil {
		return fmt.Errorf("store: log search: %w", err)
	}
	return nil
}
