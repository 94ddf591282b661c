// Package web отдаёт страницу чата и JSON API поверх менеджера сессий.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"groqchat/internal/httpserver"
	"groqchat/internal/llm"
	"groqchat/internal/middleware"
	"groqchat/internal/session"

	"github.com/go-chi/chi/v5"
)

const (
	cookieName   = "groqchat_session"
	maxFormBytes = 64 << 10
	defaultTitle = "Chatbot (Groq)"
)

type HandlerDeps struct {
	Conversation *llm.ConversationService
	Sessions     *session.Manager
	// Limiter ограничивает частоту отправки сообщений; nil отключает ограничение.
	Limiter *middleware.RateLimiter
	Logger  *slog.Logger
	Title   string
	// SecureCookie выставляет флаг Secure у cookie сессии.
	SecureCookie bool
}

type Handler struct {
	conv     *llm.ConversationService
	sessions *session.Manager
	limiter  *middleware.RateLimiter
	logger   *slog.Logger
	title    string
	secure   bool
}

func NewHandler(deps HandlerDeps) *Handler {
	title := deps.Title
	if title == "" {
		title = defaultTitle
	}
	return &Handler{
		conv:     deps.Conversation,
		sessions: deps.Sessions,
		limiter:  deps.Limiter,
		logger:   deps.Logger,
		title:    title,
		secure:   deps.SecureCookie,
	}
}

// Routes собирает маршруты страницы и API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	submit := func(next http.Handler) http.Handler { return next }
	if h.limiter != nil {
		submit = h.limiter.Middleware(h.clientKey)
	}

	r.Get("/", h.page)
	r.With(submit).Post("/chat", h.postChat)
	r.Post("/model", h.postModel)
	r.Post("/reset", h.postReset)

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", h.apiModels)
		r.Get("/session", h.apiSession)
		r.Put("/session/model", h.apiSelectModel)
		r.Delete("/session/history", h.apiClearHistory)
		r.With(submit).Post("/messages", h.apiSend)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpserver.WriteJSONError(w, http.StatusNotFound, "not_found", "route not found")
	})

	return r
}

// sessionFor находит сессию клиента по cookie или заводит новую.
func (h *Handler) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(cookieName); err == nil {
		id = c.Value
	}

	sess, created := h.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    sess.ID(),
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secure,
			SameSite: http.SameSiteLaxMode,
		})
		h.logger.Debug("session created", slog.String("session", sess.ID()))
	}
	return sess
}

// clientKey ключ лимитера: сессия, если есть cookie, иначе адрес.
func (h *Handler) clientKey(r *http.Request) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return "s:" + c.Value
	}
	return "ip:" + middleware.RemoteIP(r)
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFor(w, r)
	current := sess.Model()

	data := pageData{
		Title:        h.title,
		CurrentModel: current,
		Error:        flashMessages[r.URL.Query().Get("e")],
	}
	for _, m := range h.conv.Catalog().Models() {
		data.Models = append(data.Models, pageModel{Label: m.Label, ID: m.ID, Selected: m.ID == current})
	}
	for _, msg := range sess.History() {
		pm := pageMessage{User: msg.Role() == session.RoleUser, Text: msg.Content()}
		if !pm.User {
			pm.HTML = renderMarkdown(msg.Content())
		}
		data.Messages = append(data.Messages, pm)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplate.Execute(w, data); err != nil {
		h.logger.Error("render page", slog.String("error", err.Error()))
	}
}

func (h *Handler) postChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.redirectHome(w, r, "internal")
		return
	}
	sess := h.sessionFor(w, r)

	_, err := h.conv.Send(r.Context(), sess, llm.Submission{
		Model: r.PostForm.Get("model"),
		Text:  r.PostForm.Get("text"),
	})
	switch {
	case err == nil, errors.Is(err, llm.ErrEmptyInput):
		// Пустой ввод молча игнорируется.
		h.redirectHome(w, r, "")
	default:
		h.logFailure(r, sess, err)
		h.redirectHome(w, r, classify(err).code)
	}
}

func (h *Handler) postModel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.redirectHome(w, r, "internal")
		return
	}
	sess := h.sessionFor(w, r)

	if _, err := h.conv.SelectModel(sess, r.PostForm.Get("model")); err != nil {
		h.redirectHome(w, r, classify(err).code)
		return
	}
	h.redirectHome(w, r, "")
}

func (h *Handler) postReset(w http.ResponseWriter, r *http.Request) {
	h.conv.ResetHistory(h.sessionFor(w, r))
	h.redirectHome(w, r, "")
}

func (h *Handler) redirectHome(w http.ResponseWriter, r *http.Request, code string) {
	target := "/"
	if code != "" {
		target += "?" + url.Values{"e": {code}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

type messageDTO struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionDTO struct {
	ID       string       `json:"id"`
	Model    string       `json:"model"`
	State    string       `json:"state"`
	InFlight bool         `json:"in_flight"`
	History  []messageDTO `json:"history"`
}

type sendRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type sendResponse struct {
	Reply      string       `json:"reply"`
	Model      string       `json:"model"`
	ModelReset bool         `json:"model_reset"`
	History    []messageDTO `json:"history"`
}

type selectModelRequest struct {
	Model string `json:"model"`
}

func toDTO(history []session.Message) []messageDTO {
	out := make([]messageDTO, 0, len(history))
	for _, m := range history {
		out = append(out, messageDTO{Role: string(m.Role()), Content: m.Content(), CreatedAt: m.CreatedAt()})
	}
	return out
}

func sessionView(sess *session.Session) sessionDTO {
	snap := sess.Snapshot()
	state := session.Fresh
	if len(snap.History) > 0 {
		state = session.Active
	}
	return sessionDTO{
		ID:       sess.ID(),
		Model:    snap.Model,
		State:    state.String(),
		InFlight: sess.InFlight(),
		History:  toDTO(snap.History),
	}
}

func (h *Handler) apiModels(w http.ResponseWriter, r *http.Request) {
	catalog := h.conv.Catalog()
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"default": catalog.Default().ID,
		"models":  catalog.Models(),
	})
}

func (h *Handler) apiSession(w http.ResponseWriter, r *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, sessionView(h.sessionFor(w, r)))
}

func (h *Handler) apiSelectModel(w http.ResponseWriter, r *http.Request) {
	var req selectModelRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess := h.sessionFor(w, r)

	if _, err := h.conv.SelectModel(sess, req.Model); err != nil {
		h.writeError(w, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, sessionView(sess))
}

func (h *Handler) apiClearHistory(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFor(w, r)
	h.conv.ResetHistory(sess)
	httpserver.WriteJSON(w, http.StatusOK, sessionView(sess))
}

func (h *Handler) apiSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess := h.sessionFor(w, r)

	reply, err := h.conv.Send(r.Context(), sess, llm.Submission{Model: req.Model, Text: req.Text})
	if err != nil {
		if !errors.Is(err, llm.ErrEmptyInput) {
			h.logFailure(r, sess, err)
		}
		h.writeError(w, err)
		return
	}

	httpserver.WriteJSON(w, http.StatusOK, sendResponse{
		Reply:      reply.Text,
		Model:      reply.Model,
		ModelReset: reply.ModelReset,
		History:    toDTO(reply.History),
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "cannot parse request body")
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	e := classify(err)
	httpserver.WriteJSONError(w, e.status, e.code, e.message)
}

func (h *Handler) logFailure(r *http.Request, sess *session.Session, err error) {
	h.logger.Warn("chat exchange failed",
		slog.String("session", sess.ID()),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()))
}
