package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"groqchat/internal/httpserver"
	"groqchat/internal/llm"
	"groqchat/internal/session"
)

const (
	secretHeader   = "X-Telegram-Bot-Api-Secret-Token"
	callbackPrefix = "model:"
	sessionPrefix  = "tg:"
)

type WebhookDeps struct {
	Conversation  *llm.ConversationService
	Sessions      *session.Manager
	Bot           BotClient
	Logger        *slog.Logger
	WebhookSecret string
}

type WebhookHandler struct {
	conv          *llm.ConversationService
	sessions      *session.Manager
	bot           BotClient
	logger        *slog.Logger
	webhookSecret string
}

func NewWebhookHandler(deps WebhookDeps) *WebhookHandler {
	return &WebhookHandler{
		conv:          deps.Conversation,
		sessions:      deps.Sessions,
		bot:           deps.Bot,
		logger:        deps.Logger,
		webhookSecret: deps.WebhookSecret,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret != "" {
		if secret := r.Header.Get(secretHeader); secret != h.webhookSecret {
			httpserver.WriteJSONError(w, http.StatusForbidden, "forbidden", "invalid webhook secret")
			return
		}
	}

	var upd Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "cannot parse update")
		return
	}

	ctx := r.Context()
	switch {
	case upd.CallbackQuery != nil:
		h.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		h.handleMessage(ctx, upd.Message)
	}

	httpserver.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// sessionFor сессия чата; ключ строится из chat id.
func (h *WebhookHandler) sessionFor(chatID int64) *session.Session {
	sess, created := h.sessions.GetOrCreateWithID(sessionPrefix + strconv.FormatInt(chatID, 10))
	if created {
		h.logger.Debug("telegram session created", slog.Int64("chat_id", chatID))
	}
	return sess
}

func (h *WebhookHandler) handleMessage(ctx context.Context, msg *Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		h.reply(ctx, msg.Chat.ID, "Only text messages are supported. Send /start for help.")
		return
	}
	if strings.HasPrefix(text, "/") {
		h.handleCommand(ctx, msg.Chat.ID, text)
		return
	}
	h.handleText(ctx, msg.Chat.ID, text)
}

func (h *WebhookHandler) handleCommand(ctx context.Context, chatID int64, text string) {
	parts := strings.SplitN(text, " ", 2)
	// В группах команда приходит как /model@botname.
	cmd, _, _ := strings.Cut(parts[0], "@")
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	sess := h.sessionFor(chatID)
	switch cmd {
	case "/start", "/help":
		h.reply(ctx, chatID, fmt.Sprintf(
			"Hi! Just write a message and I will answer.\nCurrent model: %s\n\n/model - choose a model (clears the chat)\n/reset - clear the chat\n/history - show the conversation",
			h.conv.Catalog().Label(sess.Model())))
	case "/model":
		h.handleModel(ctx, chatID, sess, arg)
	case "/reset":
		h.conv.ResetHistory(sess)
		h.reply(ctx, chatID, "Chat cleared.")
	case "/history":
		h.reply(ctx, chatID, formatHistory(sess.History()))
	default:
		h.reply(ctx, chatID, "Unknown command. Try /start")
	}
}

// handleModel без аргумента показывает клавиатуру, с аргументом переключает
// модель по id или названию.
func (h *WebhookHandler) handleModel(ctx context.Context, chatID int64, sess *session.Session, arg string) {
	catalog := h.conv.Catalog()
	if arg == "" {
		if _, err := h.bot.SendMessageWithKeyboard(ctx, chatID, "Choose a model:", modelKeyboard(catalog, sess.Model())); err != nil {
			h.logger.Error("send keyboard failed", slog.String("error", err.Error()))
		}
		return
	}

	model, ok := catalog.ByID(arg)
	if !ok {
		model, ok = catalog.ByLabel(arg)
	}
	if !ok {
		h.reply(ctx, chatID, "Unknown model. Use /model to pick one from the list.")
		return
	}
	h.reply(ctx, chatID, h.switchModel(sess, model))
}

func (h *WebhookHandler) handleCallback(ctx context.Context, cb *CallbackQuery) {
	answer := ""
	defer func() {
		if err := h.bot.AnswerCallbackQuery(ctx, cb.ID, answer); err != nil {
			h.logger.Error("answer callback failed", slog.String("error", err.Error()))
		}
	}()

	if cb.Message == nil {
		return
	}
	raw, ok := strings.CutPrefix(cb.Data, callbackPrefix)
	if !ok {
		answer = "Unsupported action."
		return
	}
	catalog := h.conv.Catalog()
	index, err := strconv.Atoi(raw)
	if err != nil {
		answer = "Unknown model."
		return
	}
	model, ok := catalog.At(index)
	if !ok {
		answer = "Unknown model."
		return
	}

	chatID := cb.Message.Chat.ID
	sess := h.sessionFor(chatID)
	answer = h.switchModel(sess, model)

	err = h.bot.EditMessageKeyboard(ctx, chatID, cb.Message.MessageID, "Choose a model:", modelKeyboard(catalog, sess.Model()))
	if err != nil {
		h.logger.Warn("edit keyboard failed", slog.String("error", err.Error()))
	}
}

func (h *WebhookHandler) switchModel(sess *session.Session, model llm.ModelInfo) string {
	reset, err := h.conv.SelectModel(sess, model.ID)
	if err != nil {
		return "Unknown model."
	}
	if reset {
		return fmt.Sprintf("Model: %s. Chat cleared.", model.Label)
	}
	return fmt.Sprintf("Model: %s.", model.Label)
}

func (h *WebhookHandler) handleText(ctx context.Context, chatID int64, text string) {
	sess := h.sessionFor(chatID)

	reply, err := h.conv.Send(ctx, sess, llm.Submission{Text: text})
	if err != nil {
		h.logger.Warn("telegram exchange failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()))
		h.reply(ctx, chatID, errorText(err))
		return
	}

	answer := reply.Text
	if strings.TrimSpace(answer) == "" {
		answer = "(empty answer)"
	}
	h.reply(ctx, chatID, answer)
}

func (h *WebhookHandler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.bot.SendMessage(ctx, chatID, text); err != nil {
		h.logger.Error("send message failed", slog.String("error", err.Error()))
	}
}

func modelKeyboard(catalog *llm.Catalog, current string) *InlineKeyboardMarkup {
	models := catalog.Models()
	rows := make([][]InlineKeyboardButton, 0, len(models))
	for i, m := range models {
		label := m.Label
		if m.ID == current {
			label = "✅ " + label
		}
		rows = append(rows, []InlineKeyboardButton{{
			Text:         label,
			CallbackData: callbackPrefix + strconv.Itoa(i),
		}})
	}
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

func formatHistory(history []session.Message) string {
	if len(history) == 0 {
		return "The chat is empty."
	}
	var b strings.Builder
	for i, m := range history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if m.Role() == session.RoleUser {
			b.WriteString("🧑 You: ")
		} else {
			b.WriteString("🤖 Bot: ")
		}
		b.WriteString(m.Content())
	}
	return b.String()
}

func errorText(err error) string {
	switch {
	case errors.Is(err, llm.ErrEmptyInput):
		return "Send a non-empty message."
	case errors.Is(err, session.ErrBusy):
		return "Still answering your previous message, please wait."
	case errors.Is(err, llm.ErrStaleReply):
		return "The model was changed while I was answering, so that answer was dropped."
	case errors.Is(err, llm.ErrCompletionTimeout):
		return "The model did not answer in time. Try again."
	default:
		return "The model service failed. Try again later."
	}
}
