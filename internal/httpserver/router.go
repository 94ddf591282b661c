package httpserver

import (
	"net/http"

	"groqchat/internal/middleware"

	"log/slog"

	"github.com/go-chi/chi/v5"
)

type RouterDeps struct {
	Logger *slog.Logger
	// Chat страница и JSON API чата, монтируется в корень.
	Chat http.Handler
	// TelegramHandler может быть nil, если бот не настроен.
	TelegramHandler http.Handler
	Metrics         http.Handler
}

// NewRouter собирает chi-роутер с общими middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	if deps.TelegramHandler != nil {
		r.Post("/telegram/webhook", deps.TelegramHandler.ServeHTTP)
	}

	r.Mount("/", deps.Chat)

	return r
}
