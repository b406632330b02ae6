package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/chatrecall/internal/embedding"
	"github.com/HendryAvila/chatrecall/internal/ingest"
	"github.com/HendryAvila/chatrecall/internal/textutil"
)

const cliSourceLabel = "cli"

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Import a chat export and embed new chunks",
	Long: `Import a chat export JSON file into the archive.

Identical content that was already imported is skipped. Conversations that
appear again replace their earlier messages. New chunks are embedded after
the import completes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the full-text index and embed missing chunks",
	Args:  cobra.NoArgs,
	RunE:  runReindex,
}

var rebuildFTSCmd = &cobra.Command{
	Use:   "rebuild-fts",
	Short: "Rebuild only the full-text index from stored chunks",
	Args:  cobra.NoArgs,
	RunE:  runRebuildFTS,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print index counts and the most recent import",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	ingestCmd.Flags().String("file", "", "export file to import")
	ingestCmd.Flags().String("source", cliSourceLabel, "label recorded with the import")
	reindexCmd.Flags().Bool("force", false, "regenerate every embedding")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" && len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return errors.New("missing export file: pass --file <path>")
	}
	source, _ := cmd.Flags().GetString("source")

	ctx := cmd.Context()
	svc, cleanup, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := ingestAndEmbed(ctx, svc.Ingest, svc.Embeddings, path, source)
	if err != nil {
		return err
	}
	if report.EmbeddingError != "" {
		svc.Log.Warn("backfill after ingest failed", "import_id", report.Ingest.ImportID, "error", report.EmbeddingError)
	}
	return printJSON(report)
}

type importer interface {
	Ingest(ctx context.Context, path, label string) (ingest.Result, error)
}

type backfiller interface {
	Backfill(ctx context.Context) (embedding.BackfillResult, error)
}

type ingestReport struct {
	Ingest         ingest.Result            `json:"ingest"`
	Embeddings     embedding.BackfillResult `json:"embeddings"`
	EmbeddingError string                   `json:"embedding_error,omitempty"`
}

// ingestAndEmbed imports path and then embeds missing chunks. The import is
// committed before the backfill starts, so a backfill failure is reported
// in the result instead of failing the command.
func ingestAndEmbed(ctx context.Context, imp importer, emb backfiller, path, source string) (ingestReport, error) {
	res, err := imp.Ingest(ctx, path, source)
	if err != nil {
		return ingestReport{}, err
	}
	report := ingestReport{Ingest: res}
	report.Embeddings, err = emb.Backfill(ctx)
	if err != nil {
		report.EmbeddingError = err.Error()
	}
	return report, nil
}

func runReindex(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")

	ctx := cmd.Context()
	svc, cleanup, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ftsRows, err := svc.Store.RebuildFTS(ctx)
	if err != nil {
		return err
	}
	embed := svc.Embeddings.Backfill
	if force {
		embed = svc.Embeddings.Reindex
	}
	emb, err := embed(ctx)
	if err != nil {
		return err
	}
	return printJSON(struct {
		FTSRows    int                      `json:"fts_rows"`
		Embeddings embedding.BackfillResult `json:"embeddings"`
		Timestamp  string                   `json:"timestamp"`
	}{ftsRows, emb, textutil.NowISO()})
}

func runRebuildFTS(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, cleanup, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := svc.Store.RebuildFTS(ctx)
	if err != nil {
		return err
	}
	return printJSON(struct {
		FTSRows int `json:"fts_rows"`
	}{rows})
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, cleanup, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := svc.Store.OverviewStats(ctx)
	if err != nil {
		return err
	}
	return printJSON(stats)
}
