package web

import (
	"context"
	"errors"
	"net/http"

	"groqchat/internal/llm"
	"groqchat/internal/session"
)

type apiError struct {
	status  int
	code    string
	message string
}

// classify сопоставляет ошибку обмена с HTTP-статусом и текстом для пользователя.
func classify(err error) apiError {
	var completionErr *llm.CompletionError
	switch {
	case errors.Is(err, llm.ErrEmptyInput):
		return apiError{http.StatusBadRequest, "empty_input", "message is empty"}
	case errors.Is(err, llm.ErrUnknownModel):
		return apiError{http.StatusBadRequest, "unknown_model", "unknown model"}
	case errors.Is(err, session.ErrBusy):
		return apiError{http.StatusConflict, "busy", "previous message is still being answered"}
	case errors.Is(err, llm.ErrStaleReply):
		return apiError{http.StatusConflict, "stale_reply", "model was changed while waiting, the reply was discarded"}
	case errors.Is(err, llm.ErrCompletionTimeout):
		return apiError{http.StatusGatewayTimeout, "timeout", "the model did not answer in time, try again"}
	case errors.Is(err, context.Canceled):
		return apiError{499, "canceled", "request canceled"}
	case errors.As(err, &completionErr):
		return apiError{http.StatusBadGateway, "completion_failed", "the model service failed, try again"}
	default:
		return apiError{http.StatusInternalServerError, "internal", "internal error"}
	}
}

// flashMessages тексты ошибок для HTML-страницы по коду из query.
var flashMessages = map[string]string{
	"unknown_model":     "Unknown model.",
	"busy":              "Still waiting for the previous answer.",
	"stale_reply":       "The model was changed while waiting, the reply was discarded.",
	"timeout":           "The model did not answer in time. Try again.",
	"completion_failed": "The model service failed. Try again.",
	"rate_limited":      "Too many messages, slow down.",
	"internal":          "Something went wrong.",
}
