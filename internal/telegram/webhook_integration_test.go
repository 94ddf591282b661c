package telegram

import (
	"context"
	"os"
	"testing"
	"time"

	"groqchat/internal/config"
)

func TestTelegramWebhookInfo(t *testing.T) {
	if testing.Short() {
		t.Skip("интеграционный тест пропущен в режиме -short")
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		t.Skip("TELEGRAM_BOT_TOKEN не задан: пропускаем проверку живого Telegram API")
	}
	baseURL := os.Getenv("TELEGRAM_API_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := NewClient(config.TelegramConfig{BotToken: token, APIBaseURL: baseURL}, nil)
	info, err := client.GetWebhookInfo(ctx)
	if err != nil {
		t.Fatalf("getWebhookInfo: %v", err)
	}
	if info.URL == "" {
		t.Fatalf("webhook URL пуст")
	}
	if expected := os.Getenv("EXPECTED_TELEGRAM_WEBHOOK_URL"); expected != "" && info.URL != expected {
		t.Fatalf("webhook URL не совпадает: ожидаем %s, получили %s", expected, info.URL)
	}
	if info.LastErrorMessage != "" {
		t.Fatalf("webhook имеет last_error_message: %s", info.LastErrorMessage)
	}
	if info.LastSynchronizationErrorDate != 0 {
		t.Fatalf("webhook имеет last_synchronization_error_date: %d", info.LastSynchronizationErrorDate)
	}
}
