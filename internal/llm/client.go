package llm

import (
	"context"

	"groqchat/internal/session"
)

// Request запрос к сервису генерации: системный промпт, история и новое сообщение.
type Request struct {
	Model        string
	SystemPrompt string
	History      []session.Message
	Input        string
}

// Completer минимальный интерфейс сервиса генерации ответа.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc адаптер обычной функции к Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
