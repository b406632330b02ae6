package textutil

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Content is the decoded shape of a message "content" field: Text, List or
// Block. A nil Content means the field is absent or carries nothing usable.
type Content interface {
	isContent()
}

// Text is a plain string payload.
type Text string

// List is an ordered list of content items (strings or blocks).
type List []Content

// Block is a typed content object such as {"type":"text","text":"..."}.
type Block struct {
	Type  string
	Text  *string
	Inner Content
	// Parts holds the string elements of a "parts" array.
	Parts []string
}

func (Text) isContent()  {}
func (List) isContent()  {}
func (Block) isContent() {}

// skippedBlockTypes are block kinds that never carry display text.
var skippedBlockTypes = map[string]bool{
	"thinking":     true,
	"tool_use":     true,
	"tool_result":  true,
	"token_budget": true,
	"knowledge":    true,
}

// DecodeContent converts a JSON value into a Content variant.
func DecodeContent(r gjson.Result) Content {
	switch {
	case r.Type == gjson.String:
		return Text(r.String())
	case r.IsArray():
		var list List
		r.ForEach(func(_, item gjson.Result) bool {
			list = append(list, DecodeContent(item))
			return true
		})
		return list
	case r.IsObject():
		b := Block{Type: stringField(r, "type")}
		if t := r.Get("text"); t.Type == gjson.String {
			s := t.String()
			b.Text = &s
		}
		if inner := r.Get("content"); inner.Exists() {
			b.Inner = DecodeContent(inner)
		}
		if parts := r.Get("parts"); parts.IsArray() {
			parts.ForEach(func(_, p gjson.Result) bool {
				if p.Type == gjson.String {
					b.Parts = append(b.Parts, p.String())
				}
				return true
			})
		}
		return b
	default:
		return nil
	}
}

// blockText extracts the display text of one block. Blocks of a skipped
// type yield nothing; nested lists are joined with single newlines.
func blockText(c Content) string {
	b, ok := c.(Block)
	if !ok || skippedBlockTypes[b.Type] {
		return ""
	}
	if b.Text != nil {
		return *b.Text
	}
	switch inner := b.Inner.(type) {
	case Text:
		return string(inner)
	case List:
		return joinNonEmpty(inner, blockText, "\n")
	case Block:
		if inner.Text != nil {
			return *inner.Text
		}
		switch nested := inner.Inner.(type) {
		case Text:
			return string(nested)
		case List:
			return joinNonEmpty(nested, blockText, "\n")
		}
	}
	return ""
}

// listItemText is blockText for top-level list items, which may also be
// bare strings.
func listItemText(c Content) string {
	if t, ok := c.(Text); ok {
		return string(t)
	}
	return blockText(c)
}

func joinNonEmpty(items List, extract func(Content) string, sep string) string {
	var parts []string
	for _, item := range items {
		if s := extract(item); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

// ContentText maps a decoded message content to display text, or "".
func ContentText(c Content) string {
	switch v := c.(type) {
	case List:
		return CleanDisplayText(joinNonEmpty(v, listItemText, "\n\n"))
	case Text:
		return CleanDisplayText(string(v))
	case Block:
		if v.Text != nil {
			return CleanDisplayText(*v.Text)
		}
		if inner, ok := v.Inner.(Text); ok {
			return CleanDisplayText(string(inner))
		}
		if len(v.Parts) > 0 {
			return CleanDisplayText(strings.Join(v.Parts, "\n\n"))
		}
	}
	return ""
}

// fallbackTextFields are generic string fields some exporters use for the
// message body.
var fallbackTextFields = []string{"body", "value", "data", "message_text", "response"}

// ExtractMessageText returns the cleaned display text of a raw message,
// trying in order: the content field, a top-level text field, a nested
// mapping tree and a few generic string fields.
func ExtractMessageText(msg gjson.Result) string {
	if msg.Type == gjson.String {
		return CleanDisplayText(msg.String())
	}
	if !msg.IsObject() {
		return ""
	}

	if text := ContentText(DecodeContent(msg.Get("content"))); text != "" {
		return text
	}
	if t := msg.Get("text"); t.Type == gjson.String {
		return CleanDisplayText(t.String())
	}

	if mapping := msg.Get("mapping"); mapping.IsObject() {
		var parts []string
		mapping.ForEach(func(_, node gjson.Result) bool {
			if node.IsObject() {
				if inner := node.Get("message"); inner.Exists() {
					if s := ExtractMessageText(inner); s != "" {
						parts = append(parts, s)
					}
				}
			}
			return true
		})
		if len(parts) > 0 {
			return CleanDisplayText(strings.Join(parts, "\n\n"))
		}
	}

	for _, field := range fallbackTextFields {
		if v := msg.Get(field); v.Type == gjson.String {
			return CleanDisplayText(v.String())
		}
	}
	return ""
}

func stringField(r gjson.Result, key string) string {
	if v := r.Get(key); v.Type == gjson.String {
		return v.String()
	}
	return ""
}
