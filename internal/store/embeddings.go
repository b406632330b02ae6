package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/HendryAvila/chatrecall/internal/textutil"
)

// ─── Embeddings ──────────────────────────────────────────────────────────────

// ChunksMissingEmbedding returns up to limit chunks that have no embedding,
// in insertion order.
func (s *Store) ChunksMissingEmbedding(ctx context.Context, limit int) ([]PendingChunk, error) {
	rows, err := s.queryHook(ctx, s.db, `
		SELECT c.id, c.content
		FROM chunks c
		LEFT JOIN chunk_embeddings e ON e.chunk_id = c.id
		WHERE e.chunk_id IS NULL
		ORDER BY c.rowid
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: missing embeddings: %w", err)
	}
	defer rows.Close()

	var pending []PendingChunk
	for rows.Next() {
		var p PendingChunk
		if err := rows.Scan(&p.ChunkID, &p.Content); err != nil {
			return nil, fmt.Errorf("store: scan pending chunk: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// CountMissingEmbeddings counts chunks without an embedding.
func (s *Store) CountMissingEmbeddings(ctx context.Context) (int, error) {
	return s.count(ctx, `
		SELECT COUNT(*)
		FROM chunks c
		LEFT JOIN chunk_embeddings e ON e.chunk_id = c.id
		WHERE e.chunk_id IS NULL`)
}

// CountEmbeddings counts stored embeddings.
func (s *Store) CountEmbeddings(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM chunk_embeddings`)
}

// SaveEmbeddings upserts a batch of embeddings in one transaction.
func (s *Store) SaveEmbeddings(ctx context.Context, batch []Embedding) error {
	ts := textutil.NowISO()
	return s.WithTx(ctx, func(tx *Tx) error {
		for _, e := range batch {
			if err := tx.UpsertEmbedding(ctx, e, ts); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertEmbedding writes the embedding of one chunk, replacing any
// previous vector.
func (t *Tx) UpsertEmbedding(ctx context.Context, e Embedding, updatedAt string) error {
	vector := e.Vector
	if vector == nil {
		vector = []float64{}
	}
	payload, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("store: encode vector %q: %w", e.ChunkID, err)
	}
	if _, err := t.exec(ctx, `
		INSERT INTO chunk_embeddings (chunk_id, model, dimensions, vector_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			model = excluded.model,
			dimensions = excluded.dimensions,
			vector_json = excluded.vector_json,
			updated_at = excluded.updated_at`,
		e.ChunkID, e.Model, len(vector), string(payload), updatedAt,
	); err != nil {
		return fmt.Errorf("store: upsert embedding %q: %w", e.ChunkID, err)
	}
	return nil
}

// DeleteAllEmbeddings removes every stored embedding.
func (s *Store) DeleteAllEmbeddings(ctx context.Context) (int64, error) {
	res, err := s.execHook(ctx, s.db, `DELETE FROM chunk_embeddings`)
	if err != nil {
		return 0, fmt.Errorf("store: delete embeddings: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ResetEmbeddings deletes every embedding and records value under key in
// index_meta, atomically. It is used when the embedding provider changes.
func (s *Store) ResetEmbeddings(ctx context.Context, key, value string) (int64, error) {
	var deleted int64
	err := s.WithTx(ctx, func(tx *Tx) error {
		res, err := tx.exec(ctx, `DELETE FROM chunk_embeddings`)
		if err != nil {
			return fmt.Errorf("store: delete embeddings: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return tx.SetMeta(ctx, key, value)
	})
	return deleted, err
}

// EmbeddingCandidates returns up to limit embedded chunks matching f,
// ordered by embedding insertion. Vectors that fail to decode are returned
// empty.
func (s *Store) EmbeddingCandidates(ctx context.Context, f Filters, limit int) ([]Candidate, error) {
	filterSQL, args := f.sql("chunks")
	args = append(args, limit)

	rows, err := s.queryHook(ctx, s.db, `
		SELECT
			ce.chunk_id,
			ce.vector_json,
			chunks.conversation_id,
			conv.title,
			chunks.message_id,
			chunks.role,
			chunks.created_at,
			chunks.content
		FROM chunk_embeddings ce
		JOIN chunks ON chunks.id = ce.chunk_id
		JOIN conversations conv ON conv.id = chunks.conversation_id
		WHERE 1 = 1`+filterSQL+`
		ORDER BY ce.rowid
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: embedding candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			c       Candidate
			payload string
		)
		if err := rows.Scan(
			&c.ChunkID, &payload, &c.ConversationID, &c.ConversationTitle,
			&c.MessageID, &c.Role, &c.CreatedAt, &c.Content,
		); err != nil {
			return nil, fmt.Errorf("store: scan candidate: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &c.Vector); err != nil {
			c.Vector = nil
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ─── Index metadata ──────────────────────────────────────────────────────────

// GetMeta reads a value from index_meta.
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get meta %q: %w", key, err)
	}
	return value, true, nil
}

// SetMeta writes a value to index_meta.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	return s.WithTx(ctx, func(tx *Tx) error { return tx.SetMeta(ctx, key, value) })
}

// SetMeta writes a value to index_meta.
func (t *Tx) SetMeta(ctx context.Context, key, value string) error {
	if _, err := t.exec(ctx, `
		INSERT INTO index_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, textutil.NowISO(),
	); err != nil {
		return fmt.Errorf("store: set meta %q: %w", key, err)
	}
	return nil
}
