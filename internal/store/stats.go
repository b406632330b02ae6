package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ─── Derived reads ───────────────────────────────────────────────────────────

// RebuildFTS replaces the full-text mirror with the current contents of the
// chunks table and returns the number of rows indexed.
func (s *Store) RebuildFTS(ctx context.Context) (int, error) {
	var n int
	err := s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.exec(ctx, `DELETE FROM chunk_fts`); err != nil {
			return fmt.Errorf("store: clear fts: %w", err)
		}
		if _, err := tx.exec(ctx, `
			INSERT INTO chunk_fts (chunk_id, conversation_id, message_id, role, created_at, content)
			SELECT id, conversation_id, message_id, role, created_at, content
			FROM chunks
			ORDER BY rowid`); err != nil {
			return fmt.Errorf("store: refill fts: %w", err)
		}
		return tx.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// OverviewStats returns entity counts plus the most recent import.
func (s *Store) OverviewStats(ctx context.Context) (OverviewStats, error) {
	var (
		stats OverviewStats
		err   error
	)
	counts := []struct {
		dst   *int
		table string
	}{
		{&stats.Conversations, "conversations"},
		{&stats.Messages, "messages"},
		{&stats.Chunks, "chunks"},
		{&stats.Embeddings, "chunk_embeddings"},
	}
	for _, c := range counts {
		if *c.dst, err = s.count(ctx, "SELECT COUNT(*) FROM "+c.table); err != nil {
			return OverviewStats{}, err
		}
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+importColumns+`
		FROM imports
		ORDER BY imported_at DESC, rowid DESC
		LIMIT 1`)
	imp, err := scanImport(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return OverviewStats{}, fmt.Errorf("store: latest import: %w", err)
	default:
		stats.LatestImport = &imp
	}
	return stats, nil
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}
