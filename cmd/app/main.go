package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"groqchat/internal/config"
	"groqchat/internal/httpserver"
	"groqchat/internal/llm"
	"groqchat/internal/metrics"
	"groqchat/internal/middleware"
	"groqchat/internal/prompts"
	"groqchat/internal/retry"
	"groqchat/internal/session"
	"groqchat/internal/telegram"
	"groqchat/internal/transport"
	"groqchat/internal/web"
)

const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	catalog, err := llm.LoadCatalog(cfg.ModelsFile)
	if err != nil {
		log.Fatalf("failed to load models: %v", err)
	}
	systemPrompt, err := prompts.Resolve(cfg.Prompt.Preset, cfg.Prompt.Text)
	if err != nil {
		log.Fatalf("failed to resolve system prompt: %v", err)
	}

	sessions := session.NewManager(session.ManagerConfig{
		DefaultModel: catalog.Default().ID,
		TTL:          cfg.SessionTTL,
	})
	appMetrics := metrics.New(sessions.Len)

	policy := retry.DefaultPolicy()
	httpClient := transport.NewHTTPClient(cfg.RequestTimeout, &policy, logger)
	completer := llm.NewOpenAIClient(cfg.Completion, httpClient, logger)

	conv := llm.NewConversationService(llm.ConversationServiceConfig{
		Completer:    completer,
		Catalog:      catalog,
		SystemPrompt: systemPrompt,
		Timeout:      cfg.CompletionTimeout,
		Metrics:      appMetrics,
		Logger:       logger,
	})

	chat := web.NewHandler(web.HandlerDeps{
		Conversation: conv,
		Sessions:     sessions,
		Limiter:      middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Logger:       logger,
	})

	var webhookHandler http.Handler
	if cfg.TelegramEnabled() {
		// Bot API без ретраев: повтор sendMessage задублирует сообщение в чате.
		telegramClient := telegram.NewClient(cfg.Telegram, transport.NewHTTPClient(cfg.RequestTimeout, nil, logger))
		webhookHandler = telegram.NewWebhookHandler(telegram.WebhookDeps{
			Conversation:  conv,
			Sessions:      sessions,
			Bot:           telegramClient,
			Logger:        logger,
			WebhookSecret: cfg.Telegram.WebhookSecret,
		})
	}

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Logger:          logger,
		Chat:            chat.Routes(),
		TelegramHandler: webhookHandler,
		Metrics:         appMetrics.Handler(),
	})

	server := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Ответ модели может идти до COMPLETION_TIMEOUT.
		WriteTimeout: cfg.CompletionTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweepSessions(ctx, sessions, logger)

	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("default_model", catalog.Default().ID),
			slog.Bool("telegram", webhookHandler != nil))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// sweepSessions периодически удаляет простаивающие сессии до отмены ctx.
func sweepSessions(ctx context.Context, sessions *session.Manager, logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := sessions.ClearExpired(now); n > 0 {
				logger.Info("expired sessions removed", slog.Int("count", n), slog.Int("active", sessions.Len()))
			}
		}
	}
}

func newLogger(level string) *slog.Logger {
	slogLevel := slog.LevelInfo
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
