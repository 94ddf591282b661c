package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"groqchat/internal/config"
)

// ErrAPI ответ Telegram с ok=false или неуспешным статусом.
var ErrAPI = errors.New("telegram api error")

// maxMessageLen лимит Telegram на длину текста сообщения.
const maxMessageLen = 4096

type BotClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboardMarkup) (int64, error)
	EditMessageKeyboard(ctx context.Context, chatID int64, messageID int64, text string, keyboard *InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error
}

type HTTPBotClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.TelegramConfig, httpClient *http.Client) *HTTPBotClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPBotClient{
		token:      cfg.BotToken,
		baseURL:    strings.TrimSuffix(cfg.APIBaseURL, "/"),
		httpClient: httpClient,
	}
}

type sendMessageRequest struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type editMessageRequest struct {
	ChatID      int64                 `json:"chat_id"`
	MessageID   int64                 `json:"message_id"`
	Text        string                `json:"text"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type answerCallbackQueryRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

func (c *HTTPBotClient) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	return c.SendMessageWithKeyboard(ctx, chatID, text, nil)
}

func (c *HTTPBotClient) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboardMarkup) (int64, error) {
	var sent Message
	err := c.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:      chatID,
		Text:        truncate(text),
		ReplyMarkup: keyboard,
	}, &sent)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *HTTPBotClient) EditMessageKeyboard(ctx context.Context, chatID int64, messageID int64, text string, keyboard *InlineKeyboardMarkup) error {
	return c.call(ctx, "editMessageText", editMessageRequest{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        truncate(text),
		ReplyMarkup: keyboard,
	}, nil)
}

func (c *HTTPBotClient) AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackQueryRequest{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	}, nil)
}

// GetWebhookInfo состояние webhook бота, используется для диагностики.
func (c *HTTPBotClient) GetWebhookInfo(ctx context.Context) (WebhookInfo, error) {
	var info WebhookInfo
	err := c.call(ctx, "getWebhookInfo", struct{}{}, &info)
	return info, err
}

// call выполняет метод Bot API и раскладывает result в out (если out != nil).
func (c *HTTPBotClient) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute telegram request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode telegram response (status %d): %w", resp.StatusCode, err)
	}
	if !envelope.Ok || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s: status %d: %s", ErrAPI, method, resp.StatusCode, envelope.Description)
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode telegram result: %w", err)
	}
	return nil
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxMessageLen {
		return text
	}
	return string(runes[:maxMessageLen-1]) + "…"
}
