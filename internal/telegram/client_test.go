package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"groqchat/internal/config"
)

func TestClientSendMessage(t *testing.T) {
	var got sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":77,"chat":{"id":5}}}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(config.TelegramConfig{BotToken: "TOKEN", APIBaseURL: server.URL + "/"}, server.Client())
	id, err := client.SendMessageWithKeyboard(context.Background(), 5, "pick", &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{{{Text: "a", CallbackData: "model:0"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 77 {
		t.Fatalf("expected message id 77, got %d", id)
	}
	if got.ChatID != 5 || got.Text != "pick" || got.ReplyMarkup == nil {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: message is not modified"}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(config.TelegramConfig{BotToken: "T", APIBaseURL: server.URL}, server.Client())
	err := client.EditMessageKeyboard(context.Background(), 1, 2, "x", nil)
	if !errors.Is(err, ErrAPI) {
		t.Fatalf("expected ErrAPI, got %v", err)
	}
	if !strings.Contains(err.Error(), "message is not modified") {
		t.Fatalf("description must be kept, got %v", err)
	}
}

func TestTruncateLongText(t *testing.T) {
	long := strings.Repeat("я", maxMessageLen+10)
	out := []rune(truncate(long))
	if len(out) != maxMessageLen {
		t.Fatalf("expected %d runes, got %d", maxMessageLen, len(out))
	}
	if truncate("short") != "short" {
		t.Fatalf("short text must be unchanged")
	}
}
