package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	chunks := Split("  Hello there, general Kenobi.\r\n", DefaultOptions())

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "Hello there, general Kenobi.", chunks[0].Content)
	assert.Equal(t, 5, chunks[0].TokenCount)
}

func TestSplit_EmptyText(t *testing.T) {
	assert.Empty(t, Split(" \n\r ", DefaultOptions()))
}

func TestSplit_HardCutsReconstructText(t *testing.T) {
	text := strings.Repeat("abcdefghij", 300)
	opts := DefaultOptions()

	chunks := Split(text, opts)
	require.Len(t, chunks, 3)

	var rebuilt strings.Builder
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, len([]rune(c.Content)), opts.MaxChars)
		if i == 0 {
			rebuilt.WriteString(c.Content)
			continue
		}
		prev := chunks[i-1].Content
		assert.Equal(t, prev[len(prev)-opts.OverlapChars:], c.Content[:opts.OverlapChars], "overlap between %d and %d", i-1, i)
		rebuilt.WriteString(c.Content[opts.OverlapChars:])
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplit_PrefersWordBoundaries(t *testing.T) {
	var words []string
	for i := 0; i < 600; i++ {
		words = append(words, fmt.Sprintf("word%04d", i))
	}
	text := strings.Join(words, " ")
	opts := Options{MaxChars: 500, OverlapChars: 80}

	chunks := Split(text, opts)
	require.Greater(t, len(chunks), 2)

	for i, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Content)), opts.MaxChars)
		assert.Contains(t, text, c.Content)
		assert.Equal(t, strings.TrimSpace(c.Content), c.Content)
		if i < len(chunks)-1 {
			assert.Regexp(t, `word\d{4}$`, c.Content, "chunk %d should end on a whole word", i)
		}
	}
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1].Content, "word0599"))
	assert.True(t, strings.HasPrefix(chunks[0].Content, "word0000"))
}

func TestSplit_ForwardProgressWhenOverlapExceedsWindow(t *testing.T) {
	text := strings.Repeat("x", 25)

	chunks := Split(text, Options{MaxChars: 10, OverlapChars: 50})

	require.Len(t, chunks, 16)
	assert.Equal(t, strings.Repeat("x", 10), chunks[15].Content)
}

func TestSplit_MultibyteRunesCountedAsCharacters(t *testing.T) {
	text := strings.Repeat("ü", 1200)

	chunks := Split(text, DefaultOptions())

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Content)
}
