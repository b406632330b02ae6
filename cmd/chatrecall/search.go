package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/chatrecall/internal/eval"
	"github.com/HendryAvila/chatrecall/internal/search"
	"github.com/HendryAvila/chatrecall/internal/store"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the archive from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Measure retrieval quality against labelled queries",
	Long: `Run every labelled query through hybrid search and report hit rate and
mean reciprocal rank at 10.

The queries file is a JSON array of objects:
  {"query": "...", "expectedAnyOf": ["substring", ...], "filters": {"role": "user"}}`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

func init() {
	f := searchCmd.Flags()
	f.String("mode", string(search.ModeHybrid), "lexical, semantic or hybrid")
	f.Int("top-k", 10, "max results")
	f.String("conversation", "", "only this conversation id")
	f.String("role", "", "only this role")
	f.String("from", "", "only messages at or after this ISO-8601 time")
	f.String("to", "", "only messages at or before this ISO-8601 time")
	f.Bool("json", false, "print hits as JSON")

	evalCmd.Flags().String("queries", "eval/queries.json", "labelled queries file")
	evalCmd.Flags().Bool("json", false, "print the full report as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	modeName, _ := flags.GetString("mode")
	mode, err := search.ParseMode(modeName)
	if err != nil {
		return err
	}
	topK, _ := flags.GetInt("top-k")
	asJSON, _ := flags.GetBool("json")

	var f store.Filters
	f.ConversationID, _ = flags.GetString("conversation")
	f.Role, _ = flags.GetString("role")
	f.DateFrom, _ = flags.GetString("from")
	f.DateTo, _ = flags.GetString("to")

	ctx := cmd.Context()
	svc, cleanup, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	query := strings.Join(args, " ")
	hits, err := svc.Search.Search(ctx, mode, query, f, topK)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(struct {
			Mode  search.Mode  `json:"mode"`
			Query string       `json:"query"`
			Count int          `json:"count"`
			Hits  []search.Hit `json:"hits"`
		}{mode, query, len(hits), hits})
	}

	title := color.New(color.FgCyan, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	if len(hits) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for _, h := range hits {
		fmt.Printf("%d. %s %s\n", h.Rank, title(h.ConversationTitle), dim(fmt.Sprintf("(%s, %s, score %.4f)", h.Role, h.CreatedAt, h.Score)))
		fmt.Printf("   %s\n", strings.ReplaceAll(h.Snippet, "\n", " "))
		fmt.Printf("   %s\n\n", dim("message "+h.MessageID))
	}
	return nil
}

func runEval(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("queries")
	asJSON, _ := cmd.Flags().GetBool("json")

	cases, err := eval.LoadCases(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, cleanup, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := eval.Run(ctx, svc.Search, cases)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(report)
	}

	hit := color.New(color.FgGreen).SprintFunc()
	miss := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()
	for _, d := range report.Details {
		if d.Hit {
			fmt.Printf("%s  #%d  %s\n", hit("HIT "), *d.FirstRelevantRank, d.Query)
		} else {
			fmt.Printf("%s  --  %s\n", miss("MISS"), d.Query)
		}
	}
	fmt.Println()
	fmt.Printf("%s %d\n", bold("Queries:"), report.Metrics.QueryCount)
	fmt.Printf("%s %.3f\n", bold("Hit rate@10:"), report.Metrics.HitRateAt10)
	fmt.Printf("%s %.3f\n", bold("MRR@10:"), report.Metrics.MRRAt10)
	return nil
}
