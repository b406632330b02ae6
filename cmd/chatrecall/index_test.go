package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/chatrecall/internal/embedding"
	"github.com/HendryAvila/chatrecall/internal/ingest"
)

type fakeImporter struct {
	res ingest.Result
	err error
}

func (f fakeImporter) Ingest(context.Context, string, string) (ingest.Result, error) {
	return f.res, f.err
}

type fakeBackfiller struct {
	res    embedding.BackfillResult
	err    error
	called bool
}

func (f *fakeBackfiller) Backfill(context.Context) (embedding.BackfillResult, error) {
	f.called = true
	return f.res, f.err
}

func TestIngestAndEmbed_ReportsBackfillFailure(t *testing.T) {
	imp := fakeImporter{res: ingest.Result{ImportID: "imp-1", Conversations: 2, Chunks: 5}}
	emb := &fakeBackfiller{err: errors.New("rate limited")}

	report, err := ingestAndEmbed(context.Background(), imp, emb, "export.json", cliSourceLabel)
	require.NoError(t, err)
	assert.Equal(t, "imp-1", report.Ingest.ImportID)
	assert.Equal(t, 5, report.Ingest.Chunks)
	assert.Equal(t, "rate limited", report.EmbeddingError)
}

func TestIngestAndEmbed_Success(t *testing.T) {
	imp := fakeImporter{res: ingest.Result{ImportID: "imp-1"}}
	emb := &fakeBackfiller{res: embedding.BackfillResult{Indexed: 5}}

	report, err := ingestAndEmbed(context.Background(), imp, emb, "export.json", cliSourceLabel)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Embeddings.Indexed)
	assert.Empty(t, report.EmbeddingError)
}

func TestIngestAndEmbed_IngestFailureSkipsBackfill(t *testing.T) {
	emb := &fakeBackfiller{}

	_, err := ingestAndEmbed(context.Background(), fakeImporter{err: errors.New("invalid JSON")}, emb, "bad.json", cliSourceLabel)
	require.Error(t, err)
	assert.False(t, emb.called)
}
