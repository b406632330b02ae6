package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/chatrecall/internal/textutil"
)

func mustParse(t *testing.T, doc string) *Result {
	t.Helper()
	res, err := Parse([]byte(doc))
	require.NoError(t, err)
	return res
}

func TestParse_ClaudeStyleArray(t *testing.T) {
	doc := `[
		{
			"uuid": "conv-1",
			"name": "Skin care",
			"created_at": "2024-03-01T10:00:00Z",
			"updated_at": "2024-03-01T11:00:00Z",
			"chat_messages": [
				{"uuid": "m1", "sender": "human", "created_at": "2024-03-01T10:00:00Z", "text": "What helps against acne?"},
				{"uuid": "m2", "sender": "assistant", "content": [
					{"type": "thinking", "thinking": "let me think"},
					{"type": "text", "text": "Salicylic acid can help."},
					{"type": "tool_result", "content": [{"type": "text", "text": "hidden"}]}
				]},
				{"uuid": "m3", "sender": "human", "content": [{"type": "tool_use", "name": "x"}]}
			]
		}
	]`
	res := mustParse(t, doc)

	require.Len(t, res.Conversations, 1)
	conv := res.Conversations[0]
	assert.Equal(t, "conv-1", conv.ID)
	assert.Equal(t, "Skin care", conv.Title)
	assert.Equal(t, "2024-03-01T11:00:00Z", conv.UpdatedAt)

	require.Len(t, conv.Messages, 2)
	assert.Equal(t, textutil.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "human", conv.Messages[0].Sender)
	assert.Equal(t, "Salicylic acid can help.", conv.Messages[1].Content)
	assert.Equal(t, textutil.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, 1, conv.Messages[1].Position)
	assert.Equal(t, "2024-03-01T10:00:00Z", conv.Messages[1].CreatedAt, "falls back to conversation time")

	assert.Equal(t, Stats{RawConversations: 1, ParsedConversations: 1, ParsedMessages: 2, SkippedMessages: 1}, res.Stats)
}

func TestParse_ChatGPTMappingTree(t *testing.T) {
	doc := `{"conversations": [
		{
			"id": "gpt-1",
			"title": "Docker help",
			"create_time": 1700000000,
			"update_time": 1700000100.5,
			"mapping": {
				"root": {"id": "root", "message": null, "children": ["a"]},
				"a": {"id": "a", "message": {
					"id": "msg-a",
					"author": {"role": "user"},
					"create_time": 1700000010,
					"content": {"content_type": "text", "parts": ["How do I install Docker?"]}
				}},
				"b": {"id": "b", "message": {
					"id": "msg-b",
					"author": {"role": "assistant"},
					"content": {"content_type": "text", "parts": ["Use apt.", "Then start it."]}
				}},
				"c": {"id": "c", "message": {"id": "msg-c", "author": {"role": "system"}, "content": {"content_type": "text", "parts": [""]}}}
			}
		}
	]}`
	res := mustParse(t, doc)

	require.Len(t, res.Conversations, 1)
	conv := res.Conversations[0]
	assert.Equal(t, "2023-11-14T22:13:20.000Z", conv.CreatedAt)
	assert.Equal(t, "2023-11-14T22:15:00.500Z", conv.UpdatedAt)

	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "msg-a", conv.Messages[0].ID)
	assert.Equal(t, "user", conv.Messages[0].Sender)
	assert.Equal(t, "2023-11-14T22:13:30.000Z", conv.Messages[0].CreatedAt)
	assert.Equal(t, "Use apt.\n\nThen start it.", conv.Messages[1].Content)
	assert.Equal(t, 1, res.Stats.SkippedMessages)
}

func TestParse_ConversationsObjectAndDefaults(t *testing.T) {
	doc := `{"conversations": {
		"x": {"messages": [{"role": "Model", "content": "hi there"}, "not an object"]},
		"y": {"title": "empty", "messages": []}
	}}`
	res := mustParse(t, doc)

	assert.Equal(t, 2, res.Stats.RawConversations)
	require.Len(t, res.Conversations, 1)
	conv := res.Conversations[0]
	assert.Equal(t, "conversation-0", conv.ID)
	assert.Equal(t, "Conversation 1", conv.Title)
	assert.Equal(t, conv.CreatedAt, conv.UpdatedAt)

	require.Len(t, conv.Messages, 1)
	msg := conv.Messages[0]
	assert.Equal(t, "conversation-0::message::0", msg.ID)
	assert.Equal(t, textutil.RoleAssistant, msg.Role)
	assert.Equal(t, "Model", msg.Sender)
	assert.Equal(t, 1, res.Stats.SkippedMessages)
}

func TestParse_SingleConversationRoot(t *testing.T) {
	doc := `{"id": "solo", "messages": [
		{"content": "first"},
		{"sender": "narrator", "body": "second"}
	]}`
	res := mustParse(t, doc)

	require.Len(t, res.Conversations, 1)
	msgs := res.Conversations[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "unknown", msgs[0].Sender)
	assert.Equal(t, textutil.RoleUnknown, msgs[0].Role)
	assert.Equal(t, "solo::message::1", msgs[1].ID)
	assert.Equal(t, textutil.RoleUnknown, msgs[1].Role)
}

func TestParse_PositionsSkipDroppedMessages(t *testing.T) {
	doc := `[{"id": "c", "messages": [
		{"id": "a", "content": "one"},
		{"id": "b", "content": ""},
		{"id": "c2", "content": "three"}
	]}]`
	res := mustParse(t, doc)

	msgs := res.Conversations[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, 0, msgs[0].Position)
	assert.Equal(t, "c2", msgs[1].ID)
	assert.Equal(t, 1, msgs[1].Position)
}

func TestParse_UnknownShapeYieldsNothing(t *testing.T) {
	res := mustParse(t, `{"version": 1}`)
	assert.Empty(t, res.Conversations)
	assert.Equal(t, Stats{}, res.Stats)
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`[{"id": "broken"`))
	assert.True(t, errors.Is(err, ErrInvalidJSON))
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte("\xef\xbb\xbf"+`[{"id": "c", "messages": [{"content": "hello"}]}]`), 0o644))

	res, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.ParsedMessages)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
