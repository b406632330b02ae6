// Package chunker splits message text into overlapping, boundary-aware
// segments sized for retrieval.
package chunker

import (
	"strings"

	"github.com/HendryAvila/chatrecall/internal/textutil"
)

const (
	DefaultMaxChars     = 1200
	DefaultOverlapChars = 180

	// minBreakRatio is the fraction of the window a soft break must reach
	// before it is preferred over the hard limit.
	minBreakRatio = 0.6
)

// Options controls chunk sizing. Sizes are measured in runes.
type Options struct {
	MaxChars     int
	OverlapChars int
}

// DefaultOptions returns the default sizing.
func DefaultOptions() Options {
	return Options{MaxChars: DefaultMaxChars, OverlapChars: DefaultOverlapChars}
}

// Chunk is one segment of a message.
type Chunk struct {
	Index      int
	Content    string
	TokenCount int
}

// Split cleans text and splits it into chunks. Text that fits within
// MaxChars yields a single chunk; empty text yields none.
func Split(text string, opts Options) []Chunk {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.OverlapChars < 0 {
		opts.OverlapChars = 0
	}

	clean := textutil.CleanDisplayText(text)
	if clean == "" {
		return nil
	}
	runes := []rune(clean)
	if len(runes) <= opts.MaxChars {
		return []Chunk{{Index: 0, Content: clean, TokenCount: textutil.EstimateTokens(clean)}}
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := min(len(runes), start+opts.MaxChars)

		if end < len(runes) {
			if breakAt := lastBreak(runes[start:end]); breakAt >= int(float64(opts.MaxChars)*minBreakRatio) {
				end = start + breakAt + 1
			}
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, Chunk{
				Index:      len(chunks),
				Content:    content,
				TokenCount: textutil.EstimateTokens(content),
			})
		}

		if end >= len(runes) {
			break
		}
		start = max(end-opts.OverlapChars, start+1)
	}
	return chunks
}

// lastBreak returns the offset of the latest newline or space in window,
// or -1. A sentence end (". ") always ends in a space, so it is covered.
func lastBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '\n' || window[i] == ' ' {
			return i
		}
	}
	return -1
}
