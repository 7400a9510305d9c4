package adapter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/m-mizutani/gleaner/pkg/adapter"
	"github.com/m-mizutani/gt"
)

func TestClaudeChat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/v1/messages")
		gt.Equal(t, r.Header.Get("X-Api-Key"), "test-key")
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "{\"ok\": true}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	client, err := adapter.NewClaude("test-key",
		adapter.WithClaudeBaseURL(srv.URL),
		adapter.WithClaudeModel("claude-test"),
	)
	gt.NoError(t, err)
	gt.Equal(t, client.ModelName(), "claude-test")

	msg, err := client.Chat(context.Background(), "be terse", []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock("hello")),
	})
	gt.NoError(t, err)
	gt.A(t, msg.Content).Length(1)
	gt.Equal(t, msg.Content[0].Text, `{"ok": true}`)

	gt.Equal(t, body["model"], any("claude-test"))
	gt.V(t, body["system"]).NotNil()
}

func TestClaudeRequiresAPIKey(t *testing.T) {
	_, err := adapter.NewClaude("")
	gt.Error(t, err)
}
