package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"groqchat/internal/config"
	"groqchat/internal/session"

	openai "github.com/sashabaranov/go-openai"
)

var (
	ErrInvalidModel  = errors.New("model is required")
	ErrEmptyResponse = errors.New("empty response from model")
)

// OpenAIClient ходит в OpenAI-совместимый /chat/completions (Groq, OpenRouter, локальные шлюзы).
type OpenAIClient struct {
	client      *openai.Client
	temperature float32
	logger      *slog.Logger
}

// NewOpenAIClient собирает клиент поверх переданного http.Client:
// таймауты и повторы настраиваются на уровне транспорта.
func NewOpenAIClient(cfg config.CompletionConfig, httpClient *http.Client, logger *slog.Logger) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if req.Model == "" {
		return "", ErrInvalidModel
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    buildMessages(req),
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	if c.logger != nil {
		c.logger.Debug("chat completion done",
			slog.String("model", req.Model),
			slog.Int("history", len(req.History)),
			slog.Int("prompt_tokens", resp.Usage.PromptTokens),
			slog.Int("completion_tokens", resp.Usage.CompletionTokens),
			slog.String("finish_reason", string(resp.Choices[0].FinishReason)))
	}
	return resp.Choices[0].Message.Content, nil
}

// buildMessages раскладывает запрос в порядке system → история → новое сообщение.
func buildMessages(req Request) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	for _, msg := range req.History {
		switch msg.Role() {
		case session.RoleUser:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content()})
		case session.RoleAssistant:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content()})
		}
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Input})
	return messages
}

// statusCode достаёт HTTP-статус из ошибок go-openai, если он есть.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
