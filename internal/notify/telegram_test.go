package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSink_Send(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewTelegramSink(TelegramConfig{IsEnabled: true, BotToken: "TOKEN", ChatID: "42", BaseURL: server.URL}, quietLogger())
	require.NoError(t, sink.Send(context.Background(), payment("201")))

	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Contains(t, got["text"], "Unit 201")
	assert.Contains(t, got["text"], "KES 1500.00")
	assert.Contains(t, got["text"], "Balance: KES 500.00")
}

func TestTelegramSink_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantMsg string
	}{
		{"unauthorized", http.StatusUnauthorized, "invalid bot token"},
		{"bad request", http.StatusBadRequest, "invalid chat ID"},
		{"forbidden", http.StatusForbidden, "blocked"},
		{"server error", http.StatusInternalServerError, "status 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			sink := NewTelegramSink(TelegramConfig{IsEnabled: true, BotToken: "T", ChatID: "1", BaseURL: server.URL}, quietLogger())
			err := sink.Send(context.Background(), payment("101"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestTelegramSink_Config(t *testing.T) {
	disabled := NewTelegramSink(TelegramConfig{}, quietLogger())
	assert.NoError(t, disabled.Send(context.Background(), payment("101")))

	noToken := NewTelegramSink(TelegramConfig{IsEnabled: true, ChatID: "1"}, quietLogger())
	assert.Error(t, noToken.Send(context.Background(), payment("101")))

	noChat := NewTelegramSink(TelegramConfig{IsEnabled: true, BotToken: "T"}, quietLogger())
	assert.Error(t, noChat.Send(context.Background(), payment("101")))
}

func TestFormatPayment_EscapesHTML(t *testing.T) {
	n := payment("101")
	n.TenantName = "<script>"
	assert.Contains(t, formatPayment(n), "&lt;script&gt;")
}
