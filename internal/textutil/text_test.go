package textutil

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"human", RoleUser},
		{"USER", RoleUser},
		{" Assistant ", RoleAssistant},
		{"claude", RoleAssistant},
		{"model", RoleAssistant},
		{"system", RoleSystem},
		{"tool", RoleTool},
		{"", RoleUnknown},
		{"narrator", RoleUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeRole(tt.in), "NormalizeRole(%q)", tt.in)
	}
}

func TestCleanDisplayText(t *testing.T) {
	in := "Hello\r\n[object Object],[object Object]\n\n\n\nworld   \n"
	assert.Equal(t, "Hello\n \n\nworld", CleanDisplayText(in))
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Wie installiere ich Docker? a b_c Größe 42 x")
	assert.Equal(t, []string{"wie", "installiere", "ich", "docker", "b_c", "größe", "42"}, got)
	assert.Empty(t, Tokenize("! ? a"))
}

func TestTokenize_KeepsNonDecimalNumbers(t *testing.T) {
	assert.Equal(t, []string{"20", "m²", "10½", "x²y"}, Tokenize("20 m²! 10½ x²y"))
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, "docker* AND install*", FTSQuery("Docker, install!"))
	assert.Equal(t, "", FTSQuery("  - a . "))
}

func TestSnippet_ShortContentReturnedWhole(t *testing.T) {
	assert.Equal(t, "short text", Snippet("  short text ", "text", 320))
}

func TestSnippet_CentersOnFirstMatch(t *testing.T) {
	content := strings.Repeat("filler ", 100) + "needle here " + strings.Repeat("tail ", 100)
	got := Snippet(content, "needle", 100)

	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Contains(t, got, "needle")
	assert.LessOrEqual(t, len([]rune(got)), 106)
}

func TestSnippet_NoMatchTakesHead(t *testing.T) {
	content := strings.Repeat("ä", 400)
	got := Snippet(content, "zzz", 320)
	assert.Equal(t, strings.Repeat("ä", 320)+"...", got)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("one"))
	assert.Equal(t, 13, EstimateTokens(strings.Repeat("word ", 10)))
}

func TestEpochSecondsToISO(t *testing.T) {
	assert.Equal(t, "2023-11-14T22:13:20.000Z", EpochSecondsToISO(1700000000))
	assert.Equal(t, "2023-11-14T22:13:20.500Z", EpochSecondsToISO(1700000000.5))
}

func TestNowISO_UsesClock(t *testing.T) {
	orig := timeNow
	t.Cleanup(func() { timeNow = orig })
	timeNow = func() time.Time { return time.Date(2026, 2, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600)) }

	assert.Equal(t, "2026-02-01T09:00:00.000Z", NowISO())
}
