// Package textutil holds the text helpers shared by parsing, chunking,
// embedding and search: role normalization, message content extraction,
// cleaning, tokenization, FTS5 query construction, snippets and token
// estimates.
package textutil

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Role is a normalized message author role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	RoleUnknown   Role = "unknown"
)

// RoleValues lists every normalized role, for tool enums.
func RoleValues() []string {
	return []string{string(RoleUser), string(RoleAssistant), string(RoleSystem), string(RoleTool), string(RoleUnknown)}
}

// NormalizeRole maps a producer-specific sender label to a Role.
func NormalizeRole(sender string) Role {
	switch strings.ToLower(strings.TrimSpace(sender)) {
	case "human", "user":
		return RoleUser
	case "assistant", "claude", "model":
		return RoleAssistant
	case "system":
		return RoleSystem
	case "tool":
		return RoleTool
	default:
		return RoleUnknown
	}
}

var (
	objectArtifactRe = regexp.MustCompile(`\[object Object\](,\[object Object\])*`)
	blankLinesRe     = regexp.MustCompile(`\n{3,}`)
)

// CleanDisplayText strips serialization artifacts, carriage returns and
// runs of blank lines, then trims.
func CleanDisplayText(s string) string {
	s = objectArtifactRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Tokenize lowercases the cleaned input and splits it into runs of
// letters, numbers and underscores. Single-rune tokens are dropped.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(CleanDisplayText(s)), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_')
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// FTSQuery builds an FTS5 MATCH expression that requires every token as a
// prefix: "docker install" -> "docker* AND install*". Empty when the query
// has no usable tokens.
func FTSQuery(query string) string {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return ""
	}
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t + "*"
	}
	return strings.Join(parts, " AND ")
}

// DefaultSnippetLength is the snippet size in runes.
const DefaultSnippetLength = 320

// Snippet returns up to maxLen runes of content, positioned so the earliest
// matching query term sits about 30% into the window.
func Snippet(content, query string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSnippetLength
	}
	clean := []rune(CleanDisplayText(content))
	if len(clean) <= maxLen {
		return string(clean)
	}

	lower := make([]rune, len(clean))
	for i, r := range clean {
		lower[i] = unicode.ToLower(r)
	}
	index := -1
	for _, term := range Tokenize(query) {
		if i := runeIndex(lower, []rune(term)); i >= 0 && (index < 0 || i < index) {
			index = i
		}
	}

	if index < 0 {
		return strings.TrimSpace(string(clean[:maxLen])) + "..."
	}

	start := max(0, index-int(math.Floor(float64(maxLen)*0.3)))
	end := min(len(clean), start+maxLen)
	prefix, suffix := "", ""
	if start > 0 {
		prefix = "..."
	}
	if end < len(clean) {
		suffix = "..."
	}
	return prefix + strings.TrimSpace(string(clean[start:end])) + suffix
}

// EstimateTokens approximates the token count of text as 1.3 tokens per
// whitespace-separated word, minimum 1. It is not tokenizer output.
func EstimateTokens(text string) int {
	words := len(strings.Fields(CleanDisplayText(text)))
	return max(1, int(math.Round(float64(words)*1.3)))
}

func runeIndex(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
