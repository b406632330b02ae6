// Package eval measures retrieval quality against a set of labelled
// queries: hit rate and mean reciprocal rank over the top hybrid results.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/HendryAvila/chatrecall/internal/search"
	"github.com/HendryAvila/chatrecall/internal/store"
)

// TopK is the cutoff both metrics are computed at.
const TopK = 10

// Case is one labelled query. A result is relevant when its content,
// snippet or conversation title contains any expected substring,
// case-insensitively.
type Case struct {
	Query         string        `json:"query"`
	ExpectedAnyOf []string      `json:"expectedAnyOf"`
	Filters       store.Filters `json:"filters"`
}

// Metrics summarises a run.
type Metrics struct {
	QueryCount  int     `json:"query_count"`
	HitRateAt10 float64 `json:"hit_rate_at_10"`
	MRRAt10     float64 `json:"mrr_at_10"`
}

// Detail is the outcome of one case. FirstRelevantRank is nil on a miss.
type Detail struct {
	Query             string `json:"query"`
	Hit               bool   `json:"hit"`
	FirstRelevantRank *int   `json:"first_relevant_rank"`
}

// Report is the full evaluation output.
type Report struct {
	Metrics Metrics  `json:"metrics"`
	Details []Detail `json:"details"`
}

// Searcher runs hybrid searches.
type Searcher interface {
	Hybrid(ctx context.Context, query string, f store.Filters, topK int) ([]search.Hit, error)
}

// LoadCases reads a JSON array of cases.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("eval: read cases: %w", err)
	}
	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("eval: decode cases: %w", err)
	}
	return cases, nil
}

// Run evaluates every case in order. An empty case list yields zero metrics.
func Run(ctx context.Context, s Searcher, cases []Case) (Report, error) {
	report := Report{Details: make([]Detail, 0, len(cases))}
	var hits int
	var rrSum float64

	for _, c := range cases {
		results, err := s.Hybrid(ctx, c.Query, c.Filters, TopK)
		if err != nil {
			return Report{}, fmt.Errorf("eval: query %q: %w", c.Query, err)
		}

		detail := Detail{Query: c.Query}
		if rank, ok := firstRelevant(results, c.ExpectedAnyOf); ok {
			detail.Hit = true
			detail.FirstRelevantRank = &rank
			hits++
			rrSum += 1 / float64(rank)
		}
		report.Details = append(report.Details, detail)
	}

	total := float64(max(len(cases), 1))
	report.Metrics = Metrics{
		QueryCount:  len(cases),
		HitRateAt10: float64(hits) / total,
		MRRAt10:     rrSum / total,
	}
	return report, nil
}

func firstRelevant(results []search.Hit, expected []string) (int, bool) {
	needles := make([]string, 0, len(expected))
	for _, e := range expected {
		if e = strings.ToLower(e); e != "" {
			needles = append(needles, e)
		}
	}
	for _, r := range results {
		haystack := strings.ToLower(r.Content + "\n" + r.Snippet + "\n" + r.ConversationTitle)
		for _, n := range needles {
			if strings.Contains(haystack, n) {
				return r.Rank, true
			}
		}
	}
	return 0, false
}
