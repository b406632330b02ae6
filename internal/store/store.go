// Package store owns all persisted state of the conversation archive.
//
// It uses SQLite with an FTS5 mirror of the chunks table. Schema changes
// are applied as versioned migrations recorded in schema_migrations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HendryAvila/chatrecall/internal/logger"
	"github.com/HendryAvila/chatrecall/internal/textutil"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrNotFound is returned by updates that target a row that does not exist.
var ErrNotFound = errors.New("store: not found")

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the archive database backed by SQLite + FTS5.
type Store struct {
	db    *sql.DB
	path  string
	log   *logger.Logger
	hooks storeHooks
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type storeHooks struct {
	exec    func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
	query   func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error)
	beginTx func(ctx context.Context, db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func (s *Store) execHook(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(ctx, db, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func (s *Store) queryHook(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error) {
	if s.hooks.query != nil {
		return s.hooks.query(ctx, db, query, args...)
	}
	return db.QueryContext(ctx, query, args...)
}

func (s *Store) beginTxHook(ctx context.Context) (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(ctx, s.db)
	}
	return s.db.BeginTx(ctx, nil)
}

func (s *Store) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// New opens (creating if needed) the database at path, applies SQLite
// pragmas and runs pending migrations.
func New(path string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// One connection: a transaction holds it, so nothing may use s.db
	// while a Tx is open.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, path: path, log: log}
	if err := s.migrate(context.Background(), migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ─── Transactions ────────────────────────────────────────────────────────────

// Tx is a unit of work running inside one database transaction.
type Tx struct {
	s  *Store
	tx *sql.Tx
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.beginTxHook(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(&Tx{s: s, tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := s.commitHook(sqlTx); err != nil {
		_ = sqlTx.Rollback()
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.s.execHook(ctx, t.tx, query, args...)
}

// ─── Migrations ──────────────────────────────────────────────────────────────

type migration struct {
	id  string
	sql string
}

var migrations = []migration{
	{id: "001_init_schema", sql: schemaInit},
	{id: "002_index_meta", sql: schemaIndexMeta},
}

const schemaInit = `
	CREATE TABLE IF NOT EXISTS imports (
		id                   TEXT PRIMARY KEY,
		source_label         TEXT NOT NULL,
		file_path            TEXT NOT NULL,
		file_hash            TEXT NOT NULL,
		status               TEXT NOT NULL,
		imported_at          TEXT NOT NULL,
		completed_at         TEXT,
		raw_conversations    INTEGER NOT NULL DEFAULT 0,
		parsed_conversations INTEGER NOT NULL DEFAULT 0,
		parsed_messages      INTEGER NOT NULL DEFAULT 0,
		parsed_chunks        INTEGER NOT NULL DEFAULT 0,
		skipped_messages     INTEGER NOT NULL DEFAULT 0,
		error_text           TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_imports_file_hash ON imports(file_hash);
	CREATE INDEX IF NOT EXISTS idx_imports_status    ON imports(status);

	CREATE TABLE IF NOT EXISTS conversations (
		id               TEXT PRIMARY KEY,
		title            TEXT NOT NULL,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL,
		source_import_id TEXT NOT NULL,
		FOREIGN KEY (source_import_id) REFERENCES imports(id)
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations(created_at);

	CREATE TABLE IF NOT EXISTS messages (
		id               TEXT PRIMARY KEY,
		conversation_id  TEXT    NOT NULL,
		role             TEXT    NOT NULL,
		sender           TEXT    NOT NULL,
		created_at       TEXT    NOT NULL,
		position         INTEGER NOT NULL,
		content          TEXT    NOT NULL,
		source_import_id TEXT    NOT NULL,
		FOREIGN KEY (conversation_id)  REFERENCES conversations(id),
		FOREIGN KEY (source_import_id) REFERENCES imports(id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_conversation_position ON messages(conversation_id, position);
	CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_role       ON messages(role);

	CREATE TABLE IF NOT EXISTS chunks (
		id               TEXT PRIMARY KEY,
		conversation_id  TEXT    NOT NULL,
		message_id       TEXT    NOT NULL,
		chunk_index      INTEGER NOT NULL,
		role             TEXT    NOT NULL,
		created_at       TEXT    NOT NULL,
		content          TEXT    NOT NULL,
		token_count      INTEGER NOT NULL,
		source_import_id TEXT    NOT NULL,
		metadata_json    TEXT,
		UNIQUE (message_id, chunk_index),
		FOREIGN KEY (conversation_id)  REFERENCES conversations(id),
		FOREIGN KEY (message_id)       REFERENCES messages(id),
		FOREIGN KEY (source_import_id) REFERENCES imports(id)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_conversation_id ON chunks(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_message_id      ON chunks(message_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_created_at      ON chunks(created_at);
	CREATE INDEX IF NOT EXISTS idx_chunks_role            ON chunks(role);

	CREATE TABLE IF NOT EXISTS chunk_embeddings (
		chunk_id    TEXT PRIMARY KEY,
		model       TEXT    NOT NULL,
		dimensions  INTEGER NOT NULL,
		vector_json TEXT    NOT NULL,
		updated_at  TEXT    NOT NULL,
		FOREIGN KEY (chunk_id) REFERENCES chunks(id)
	);

	CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_model ON chunk_embeddings(model);

	CREATE TABLE IF NOT EXISTS search_logs (
		id           TEXT PRIMARY KEY,
		query        TEXT    NOT NULL,
		mode         TEXT    NOT NULL,
		top_k        INTEGER NOT NULL,
		filters_json TEXT,
		latency_ms   INTEGER NOT NULL,
		result_count INTEGER NOT NULL,
		created_at   TEXT    NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_search_logs_created_at ON search_logs(created_at);

	CREATE VIRTUAL TABLE IF NOT EXISTS chunk_fts USING fts5(
		chunk_id UNINDEXED,
		conversation_id UNINDEXED,
		message_id UNINDEXED,
		role UNINDEXED,
		created_at UNINDEXED,
		content,
		tokenize = 'unicode61 remove_diacritics 2'
	);
`

const schemaIndexMeta = `
	CREATE TABLE IF NOT EXISTS index_meta (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
`

// migrate applies every migration not yet recorded in schema_migrations.
// All of them run in one transaction; any failure rolls back the lot.
func (s *Store) migrate(ctx context.Context, ms []migration) error {
	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := s.execHook(ctx, tx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id         TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}

	applied, err := s.appliedMigrations(ctx, tx)
	if err != nil {
		return err
	}

	var fresh []string
	for _, m := range ms {
		if applied[m.id] {
			continue
		}
		if _, err := s.execHook(ctx, tx, m.sql); err != nil {
			return fmt.Errorf("%s: %w", m.id, err)
		}
		if _, err := s.execHook(ctx, tx,
			`INSERT INTO schema_migrations (id, applied_at) VALUES (?, ?)`,
			m.id, textutil.NowISO(),
		); err != nil {
			return fmt.Errorf("%s: record: %w", m.id, err)
		}
		fresh = append(fresh, m.id)
	}

	if err := s.commitHook(tx); err != nil {
		return err
	}
	for _, id := range fresh {
		s.log.Info("migration applied", "id", id, "path", s.path)
	}
	return nil
}

func (s *Store) appliedMigrations(ctx context.Context, tx *sql.Tx) (map[string]bool, error) {
	rows, err := s.queryHook(ctx, tx, `SELECT id FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		applied[id] = true
	}
	return applied, rows.Err()
}
