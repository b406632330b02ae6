package store

import "time"

// ImportStatus is the lifecycle state of an import record.
type ImportStatus string

const (
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
)

// Import is one file-ingestion attempt.
type Import struct {
	ID                  string       `json:"id"`
	SourceLabel         string       `json:"source_label"`
	FilePath            string       `json:"file_path"`
	FileHash            string       `json:"file_hash"`
	Status              ImportStatus `json:"status"`
	ImportedAt          string       `json:"imported_at"`
	CompletedAt         *string      `json:"completed_at,omitempty"`
	RawConversations    int          `json:"raw_conversations"`
	ParsedConversations int          `json:"parsed_conversations"`
	ParsedMessages      int          `json:"parsed_messages"`
	ParsedChunks        int          `json:"parsed_chunks"`
	SkippedMessages     int          `json:"skipped_messages"`
	ErrorText           *string      `json:"error_text,omitempty"`
}

// ImportCounts are the final statistics written when an import completes.
type ImportCounts struct {
	RawConversations    int
	ParsedConversations int
	ParsedMessages      int
	ParsedChunks        int
	SkippedMessages     int
}

// Conversation is a stored conversation row.
type Conversation struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	SourceImportID string `json:"source_import_id,omitempty"`
}

// Message is a stored message row.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Sender         string `json:"sender"`
	CreatedAt      string `json:"created_at"`
	Position       int    `json:"position"`
	Content        string `json:"content"`
	SourceImportID string `json:"source_import_id,omitempty"`
}

// Chunk is a stored chunk row. Inserting one also writes its full-text row.
type Chunk struct {
	ID             string
	ConversationID string
	MessageID      string
	ChunkIndex     int
	Role           string
	CreatedAt      string
	Content        string
	TokenCount     int
	SourceImportID string
	MetadataJSON   string
}

// PendingChunk is a chunk that has no embedding yet.
type PendingChunk struct {
	ChunkID string
	Content string
}

// Embedding is the vector stored for one chunk.
type Embedding struct {
	ChunkID string
	Model   string
	Vector  []float64
}

// Filters narrow search results. Empty fields are ignored.
type Filters struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Role           string `json:"role,omitempty"`
	DateFrom       string `json:"date_from,omitempty"`
	DateTo         string `json:"date_to,omitempty"`
}

// ChunkRow is a chunk joined with its conversation title, as returned by
// search queries.
type ChunkRow struct {
	ChunkID           string
	ConversationID    string
	ConversationTitle string
	MessageID         string
	Role              string
	CreatedAt         string
	Content           string
}

// Candidate is a ChunkRow with its decoded embedding.
type Candidate struct {
	ChunkRow
	Vector []float64
}

// SearchLog is one search invocation.
type SearchLog struct {
	Query       string
	Mode        string
	TopK        int
	Filters     Filters
	Latency     time.Duration
	ResultCount int
}

// OverviewStats holds entity counts plus the most recent import.
type OverviewStats struct {
	Conversations int     `json:"conversations"`
	Messages      int     `json:"messages"`
	Chunks        int     `json:"chunks"`
	Embeddings    int     `json:"embeddings"`
	LatestImport  *Import `json:"latest_import"`
}
