// Package ingest loads chat-export files into the store: hash, dedupe,
// parse, chunk and write, with one import record per attempt.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/chatrecall/internal/chunker"
	"github.com/HendryAvila/chatrecall/internal/logger"
	"github.com/HendryAvila/chatrecall/internal/parser"
	"github.com/HendryAvila/chatrecall/internal/store"
)

// DefaultSourceLabel is used when the caller gives no label.
const DefaultSourceLabel = "manual-upload"

// Store is the persistence the pipeline writes to.
type Store interface {
	FindCompletedImport(ctx context.Context, hash string) (store.Import, bool, error)
	CreateImport(ctx context.Context, imp store.Import) error
	FailImport(ctx context.Context, id, errText string) error
	WithTx(ctx context.Context, fn func(tx *store.Tx) error) error
}

// Result reports one ingest call.
type Result struct {
	ImportID           string        `json:"import_id"`
	SourceLabel        string        `json:"source_label"`
	FilePath           string        `json:"file_path"`
	FileHash           string        `json:"file_hash"`
	SkippedAsDuplicate bool          `json:"skipped_as_duplicate"`
	Conversations      int           `json:"conversations"`
	Messages           int           `json:"messages"`
	Chunks             int           `json:"chunks"`
	Duration           time.Duration `json:"-"`
	DurationMs         int64         `json:"duration_ms"`
}

// Service runs the ingest pipeline.
type Service struct {
	store     Store
	chunkOpts chunker.Options
	log       *logger.Logger
	locks     hashLocks
}

// NewService creates an ingest Service using the default chunk sizing.
func NewService(st Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: st, chunkOpts: chunker.DefaultOptions(), log: log}
}

// Ingest loads the export at path. Byte-identical content that was already
// imported successfully is reported as a duplicate and not written again.
// A failed attempt leaves a failed import record and no partial data.
func (s *Service) Ingest(ctx context.Context, path, sourceLabel string) (Result, error) {
	started := time.Now()
	if sourceLabel == "" {
		sourceLabel = DefaultSourceLabel
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: resolve path: %w", err)
	}
	hash, err := fileHash(abs)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: hash file: %w", err)
	}

	// Serializes the duplicate check and the write for identical content.
	unlock := s.locks.lock(hash)
	defer unlock()

	res := Result{SourceLabel: sourceLabel, FilePath: abs, FileHash: hash}

	existing, found, err := s.store.FindCompletedImport(ctx, hash)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: %w", err)
	}
	if found {
		res.ImportID = existing.ID
		res.SkippedAsDuplicate = true
		res.Conversations = existing.ParsedConversations
		res.Messages = existing.ParsedMessages
		res.Chunks = existing.ParsedChunks
		res.setDuration(started)
		s.log.Info("ingest skipped duplicate", "path", abs, "import_id", existing.ID)
		return res, nil
	}

	res.ImportID = uuid.NewString()
	if err := s.store.CreateImport(ctx, store.Import{
		ID: res.ImportID, SourceLabel: sourceLabel, FilePath: abs, FileHash: hash,
	}); err != nil {
		return Result{}, fmt.Errorf("ingest: %w", err)
	}
	s.log.Info("ingest started", "path", abs, "import_id", res.ImportID, "source", sourceLabel)

	counts, err := s.load(ctx, res.ImportID, abs, sourceLabel)
	if err != nil {
		if ferr := s.store.FailImport(context.WithoutCancel(ctx), res.ImportID, err.Error()); ferr != nil {
			s.log.Error("ingest: mark import failed", "import_id", res.ImportID, "error", ferr)
		}
		s.log.Error("ingest failed", "path", abs, "import_id", res.ImportID, "error", err)
		return Result{}, fmt.Errorf("ingest: %w", err)
	}

	res.Conversations = counts.ParsedConversations
	res.Messages = counts.ParsedMessages
	res.Chunks = counts.ParsedChunks
	res.setDuration(started)
	s.log.Info("ingest completed", "import_id", res.ImportID,
		"conversations", res.Conversations, "messages", res.Messages, "chunks", res.Chunks,
		"skipped_messages", counts.SkippedMessages, "duration_ms", res.DurationMs)
	return res, nil
}

func (r *Result) setDuration(started time.Time) {
	r.Duration = time.Since(started)
	r.DurationMs = r.Duration.Milliseconds()
}

type chunkMetadata struct {
	ConversationTitle string `json:"conversation_title"`
	SourceLabel       string `json:"source_label"`
}

// load parses the file and writes it in a single transaction. Each
// conversation replaces whatever an earlier import stored under its id.
func (s *Service) load(ctx context.Context, importID, path, sourceLabel string) (store.ImportCounts, error) {
	parsed, err := parser.ParseFile(path)
	if err != nil {
		return store.ImportCounts{}, err
	}

	counts := store.ImportCounts{
		RawConversations:    parsed.Stats.RawConversations,
		ParsedConversations: parsed.Stats.ParsedConversations,
		ParsedMessages:      parsed.Stats.ParsedMessages,
		SkippedMessages:     parsed.Stats.SkippedMessages,
	}

	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, conv := range parsed.Conversations {
			if err := tx.UpsertConversation(ctx, store.Conversation{
				ID: conv.ID, Title: conv.Title, CreatedAt: conv.CreatedAt,
				UpdatedAt: conv.UpdatedAt, SourceImportID: importID,
			}); err != nil {
				return err
			}
			if err := tx.ClearConversation(ctx, conv.ID); err != nil {
				return err
			}

			metadata, err := json.Marshal(chunkMetadata{ConversationTitle: conv.Title, SourceLabel: sourceLabel})
			if err != nil {
				return err
			}

			for _, msg := range conv.Messages {
				if err := tx.InsertMessage(ctx, store.Message{
					ID: msg.ID, ConversationID: conv.ID, Role: string(msg.Role), Sender: msg.Sender,
					CreatedAt: msg.CreatedAt, Position: msg.Position, Content: msg.Content,
					SourceImportID: importID,
				}); err != nil {
					return err
				}
				for _, c := range chunker.Split(msg.Content, s.chunkOpts) {
					if err := tx.InsertChunk(ctx, store.Chunk{
						ID:             fmt.Sprintf("%s::%d", msg.ID, c.Index),
						ConversationID: conv.ID,
						MessageID:      msg.ID,
						ChunkIndex:     c.Index,
						Role:           string(msg.Role),
						CreatedAt:      msg.CreatedAt,
						Content:        c.Content,
						TokenCount:     c.TokenCount,
						SourceImportID: importID,
						MetadataJSON:   string(metadata),
					}); err != nil {
						return err
					}
					counts.ParsedChunks++
				}
			}
		}
		return tx.CompleteImport(ctx, importID, counts)
	})
	if err != nil {
		return store.ImportCounts{}, err
	}
	return counts, nil
}

// fileHash streams the file through SHA-256.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
