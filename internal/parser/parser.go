// Package parser turns chat-export JSON documents into normalized
// conversations. It tolerates several producer schemas by trying an ordered
// list of extraction strategies for every field.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/HendryAvila/chatrecall/internal/textutil"
)

// ErrInvalidJSON is returned when the input is not a JSON document.
var ErrInvalidJSON = errors.New("parser: invalid JSON")

// Message is a normalized message.
type Message struct {
	ID             string
	ConversationID string
	Role           textutil.Role
	Sender         string
	CreatedAt      string
	Position       int
	Content        string
}

// Conversation is a normalized conversation with at least one message.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt string
	UpdatedAt string
	Messages  []Message
}

// Stats counts what the parser saw and kept.
type Stats struct {
	RawConversations    int
	ParsedConversations int
	ParsedMessages      int
	SkippedMessages     int
}

// Result is a parsed export.
type Result struct {
	Conversations []Conversation
	Stats         Stats
}

// Field strategies, tried in order.
var (
	conversationIDFields   = []string{"id", "uuid", "conversation_id"}
	conversationTitleField = []string{"title", "name", "summary"}
	conversationCreated    = []string{"created_at", "create_time"}
	conversationUpdated    = []string{"updated_at", "update_time"}
	messageArrayFields     = []string{"messages", "chat_messages", "conversation"}
	messageIDFields        = []string{"id", "uuid", "message_id"}
	messageSenderFields    = []string{"sender", "role", "author.role"}
	messageCreatedFields   = []string{"created_at", "timestamp", "create_time"}
)

// ParseFile reads and parses the export at path.
func ParseFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("parser: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses an export document.
func Parse(data []byte) (*Result, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)

	raw := conversationCollection(root)
	res := &Result{Stats: Stats{RawConversations: len(raw)}}
	for i, item := range raw {
		conv, skipped := parseConversation(item, i)
		res.Stats.SkippedMessages += skipped
		if len(conv.Messages) == 0 {
			continue
		}
		res.Conversations = append(res.Conversations, conv)
		res.Stats.ParsedMessages += len(conv.Messages)
	}
	res.Stats.ParsedConversations = len(res.Conversations)
	return res, nil
}

// conversationCollection locates the raw conversations: the document
// itself if it is an array, a "conversations" array, the values of a
// "conversations" object, or the document as a single conversation.
func conversationCollection(root gjson.Result) []gjson.Result {
	if root.IsArray() {
		return root.Array()
	}
	if !root.IsObject() {
		return nil
	}
	convs := root.Get("conversations")
	switch {
	case convs.IsArray():
		return convs.Array()
	case convs.IsObject():
		return objectValues(convs)
	}
	if root.Get("messages").IsArray() || root.Get("chat_messages").IsArray() {
		return []gjson.Result{root}
	}
	return nil
}

func parseConversation(raw gjson.Result, index int) (Conversation, int) {
	now := textutil.NowISO()
	conv := Conversation{
		ID:    firstString(raw, conversationIDFields),
		Title: firstString(raw, conversationTitleField),
	}
	if conv.ID == "" {
		conv.ID = "conversation-" + strconv.Itoa(index)
	}
	if conv.Title == "" {
		conv.Title = "Conversation " + strconv.Itoa(index+1)
	}
	conv.CreatedAt = timestamp(raw, conversationCreated, now)
	conv.UpdatedAt = timestamp(raw, conversationUpdated, conv.CreatedAt)

	skipped := 0
	for idx, msg := range messageCollection(raw) {
		var content string
		if msg.IsObject() {
			content = textutil.ExtractMessageText(msg)
		}
		if content == "" {
			skipped++
			continue
		}

		id := firstString(msg, messageIDFields)
		if id == "" {
			id = fmt.Sprintf("%s::message::%d", conv.ID, idx)
		}
		sender := firstString(msg, messageSenderFields)
		if sender == "" {
			sender = "unknown"
		}
		conv.Messages = append(conv.Messages, Message{
			ID:             id,
			ConversationID: conv.ID,
			Role:           textutil.NormalizeRole(sender),
			Sender:         sender,
			CreatedAt:      timestamp(msg, messageCreatedFields, conv.CreatedAt),
			Position:       len(conv.Messages),
			Content:        content,
		})
	}
	return conv, skipped
}

// messageCollection returns the first messages-like array, or the message
// nodes of a "mapping" tree in document order when no array has entries.
func messageCollection(conv gjson.Result) []gjson.Result {
	if !conv.IsObject() {
		return nil
	}
	var msgs []gjson.Result
	for _, field := range messageArrayFields {
		if v := conv.Get(field); v.IsArray() {
			msgs = v.Array()
			break
		}
	}
	if len(msgs) > 0 {
		return msgs
	}

	mapping := conv.Get("mapping")
	if !mapping.IsObject() {
		return nil
	}
	for _, node := range objectValues(mapping) {
		if m := node.Get("message"); node.IsObject() && truthy(m) {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// firstString returns the first field holding a non-blank string.
func firstString(r gjson.Result, fields []string) string {
	for _, f := range fields {
		if v := r.Get(f); v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			return v.String()
		}
	}
	return ""
}

// timestamp returns the first field holding a non-blank string (passed
// through) or a number (epoch seconds, converted to ISO-8601).
func timestamp(r gjson.Result, fields []string, fallback string) string {
	for _, f := range fields {
		v := r.Get(f)
		switch {
		case v.Type == gjson.String && strings.TrimSpace(v.String()) != "":
			return v.String()
		case v.Type == gjson.Number:
			return textutil.EpochSecondsToISO(v.Float())
		}
	}
	return fallback
}

func objectValues(r gjson.Result) []gjson.Result {
	var out []gjson.Result
	r.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v)
		return true
	})
	return out
}

func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return r.String() != ""
	case gjson.Number:
		return r.Float() != 0
	}
	return r.Exists()
}
