package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"groqchat/internal/metrics"
	"groqchat/internal/session"
)

var (
	// ErrEmptyInput пустое сообщение: обмен не выполняется, история не меняется.
	ErrEmptyInput = errors.New("message is empty")
	// ErrUnknownModel модели нет в каталоге.
	ErrUnknownModel = errors.New("unknown model")
	// ErrCompletionTimeout сервис генерации не ответил за отведённое время.
	ErrCompletionTimeout = errors.New("completion timed out")
	// ErrStaleReply ответ пришёл после смены модели и отброшен.
	ErrStaleReply = errors.New("reply discarded: model changed while waiting")
)

// CompletionError сбой сервиса генерации (сеть, авторизация, битый ответ).
type CompletionError struct {
	Model  string
	Status int
	Err    error
}

func (e *CompletionError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("completion failed for %s (status %d): %v", e.Model, e.Status, e.Err)
	}
	return fmt.Sprintf("completion failed for %s: %v", e.Model, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Submission одно событие UI: выбранная модель и текст пользователя.
// Пустая модель означает «оставить текущую».
type Submission struct {
	Model string
	Text  string
}

// Reply результат успешного обмена.
type Reply struct {
	Text       string
	Model      string
	ModelReset bool
	History    []session.Message
}

// ConversationService связывает сессию с сервисом генерации.
// Историю меняет только после успешного ответа: при ошибке в сессии не остаётся
// «осиротевшего» сообщения пользователя.
type ConversationService struct {
	completer    Completer
	catalog      *Catalog
	systemPrompt string
	timeout      time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// ConversationServiceConfig конфигурация для создания ConversationService.
type ConversationServiceConfig struct {
	Completer    Completer
	Catalog      *Catalog
	SystemPrompt string
	Timeout      time.Duration
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// NewConversationService создаёт сервис диалогов.
func NewConversationService(cfg ConversationServiceConfig) *ConversationService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationService{
		completer:    cfg.Completer,
		catalog:      cfg.Catalog,
		systemPrompt: cfg.SystemPrompt,
		timeout:      timeout,
		metrics:      cfg.Metrics,
		logger:       logger,
	}
}

// Catalog возвращает каталог моделей, с которым работает сервис.
func (s *ConversationService) Catalog() *Catalog {
	return s.catalog
}

// SelectModel переключает модель сессии. Возвращает true, если история сброшена.
func (s *ConversationService) SelectModel(sess *session.Session, model string) (bool, error) {
	if !s.catalog.IsValid(model) {
		return false, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	reset := sess.ChangeModel(model)
	if reset {
		s.metrics.ObserveModelReset()
		s.logger.Info("model changed, history cleared",
			slog.String("session", sess.ID()),
			slog.String("model", model))
	}
	return reset, nil
}

// ResetHistory очищает историю, не меняя модель.
func (s *ConversationService) ResetHistory(sess *session.Session) {
	sess.ClearHistory()
}

// Send выполняет один обмен:
//  1. пустой текст отсекается без изменений;
//  2. смена модели сбрасывает историю;
//  3. параллельная отправка по той же сессии отклоняется (session.ErrBusy);
//  4. запрос к модели идёт с таймаутом;
//  5. при ошибке история не меняется;
//  6. если модель сменили, пока ждали ответ, ответ отбрасывается.
func (s *ConversationService) Send(ctx context.Context, sess *session.Session, sub Submission) (Reply, error) {
	text := strings.TrimSpace(sub.Text)
	if text == "" {
		s.metrics.ObserveExchange(metrics.OutcomeEmpty)
		return Reply{}, ErrEmptyInput
	}

	var reset bool
	if sub.Model != "" {
		var err error
		reset, err = s.SelectModel(sess, sub.Model)
		if err != nil {
			return Reply{}, err
		}
	}

	release, err := sess.Begin()
	if err != nil {
		s.metrics.ObserveExchange(metrics.OutcomeBusy)
		return Reply{}, err
	}
	defer release()

	snap := sess.Snapshot()

	answer, err := s.complete(ctx, Request{
		Model:        snap.Model,
		SystemPrompt: s.systemPrompt,
		History:      snap.History,
		Input:        text,
	})
	if err != nil {
		return Reply{}, err
	}

	if err := sess.AppendExchangeAt(snap.Generation, text, answer); err != nil {
		s.metrics.ObserveExchange(metrics.OutcomeStale)
		s.logger.Warn("stale reply dropped",
			slog.String("session", sess.ID()),
			slog.String("requested_model", snap.Model),
			slog.String("current_model", sess.Model()))
		return Reply{}, ErrStaleReply
	}

	s.metrics.ObserveExchange(metrics.OutcomeOK)
	return Reply{
		Text:       answer,
		Model:      snap.Model,
		ModelReset: reset,
		History:    sess.History(),
	}, nil
}

func (s *ConversationService) complete(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	answer, err := s.completer.Complete(callCtx, req)
	s.metrics.ObserveCompletion(req.Model, time.Since(start))
	if err == nil {
		return answer, nil
	}

	// Отмена родительского контекста (клиент ушёл) не считается сбоем модели.
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.metrics.ObserveExchange(metrics.OutcomeFailed)
		return "", ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		s.metrics.ObserveExchange(metrics.OutcomeTimeout)
		s.logger.Warn("completion timeout",
			slog.String("model", req.Model),
			slog.Duration("timeout", s.timeout))
		return "", fmt.Errorf("%w after %s", ErrCompletionTimeout, s.timeout)
	}

	s.metrics.ObserveExchange(metrics.OutcomeFailed)
	s.logger.Error("completion failed",
		slog.String("model", req.Model),
		slog.String("error", err.Error()))
	return "", &CompletionError{Model: req.Model, Status: statusCode(err), Err: err}
}
