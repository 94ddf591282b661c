package retry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Transport http.RoundTripper, который повторяет запрос по Policy.
// Тело запроса буферизуется, чтобы его можно было отправить заново.
// Если попытки кончились на временном статусе, вызывающий получает последний
// ответ как есть: клиент API сам разберёт тело ошибки.
type Transport struct {
	Base   http.RoundTripper
	Policy Policy
	Logger *slog.Logger
}

func NewTransport(base http.RoundTripper, policy Policy, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Policy: policy, Logger: logger}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	payload, err := readRequestBody(req)
	if err != nil {
		return nil, err
	}

	attempt := func(ctx context.Context) (*http.Response, []byte, error) {
		clone := req.Clone(ctx)
		if payload != nil {
			clone.Body = io.NopCloser(bytes.NewReader(payload))
			clone.ContentLength = int64(len(payload))
		}

		resp, err := t.Base.RoundTrip(clone)
		if err != nil {
			return nil, nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("read response body: %w", err)
		}
		return resp, body, nil
	}

	resp, body, err := Do(req.Context(), t.Policy, t.Logger, attempt)
	if err != nil {
		var exhausted *ExhaustedError
		if !errors.As(err, &exhausted) || resp == nil {
			return nil, err
		}
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}

func readRequestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()

	payload, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	return payload, nil
}
