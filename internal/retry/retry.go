// Package retry повторяет HTTP-запросы к внешним API при временных сбоях:
// 408/429/5xx и сетевых обрывах, с экспоненциальной задержкой и джиттером.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	defaultBaseDelay      = 500 * time.Millisecond
	defaultMaxDelay       = 8 * time.Second
	defaultMultiplier     = 2.0
	defaultMaxAttempts    = 4
	defaultJitterFraction = 0.30
	defaultSnippetLimit   = 200
)

type Sleeper func(ctx context.Context, d time.Duration) error

// Policy параметры повторов. Нулевые поля заменяются значениями по умолчанию.
type Policy struct {
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	MaxAttempts    int
	JitterFraction float64
	SnippetLimit   int
	Sleep          Sleeper
	Now            func() time.Time
	Rand           func() float64
}

func DefaultPolicy() Policy {
	return withDefaults(Policy{})
}

// StatusError временный HTTP-статус, после которого пробуем ещё раз.
type StatusError struct {
	StatusCode  int
	BodySnippet string
}

func (e *StatusError) Error() string {
	if e.BodySnippet == "" {
		return fmt.Sprintf("transient status %d", e.StatusCode)
	}
	return fmt.Sprintf("transient status %d: %s", e.StatusCode, e.BodySnippet)
}

// ExhaustedError все попытки исчерпаны; Cause хранит последнюю причину.
type ExhaustedError struct {
	Cause    error
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry attempts exhausted after %d: %v", e.Attempts, e.Cause)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}

// AttemptFunc одна попытка: ответ с уже прочитанным телом.
type AttemptFunc func(ctx context.Context) (*http.Response, []byte, error)

// Do выполняет attempt, пока он возвращает временную ошибку и остались попытки.
// Если последняя попытка закончилась временным статусом, ответ и тело
// возвращаются вместе с *ExhaustedError.
func Do(ctx context.Context, policy Policy, logger *slog.Logger, attempt AttemptFunc) (*http.Response, []byte, error) {
	policy = withDefaults(policy)

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		last := n >= policy.MaxAttempts

		resp, body, err := attempt(ctx)
		if err != nil {
			if !isRetryableNetErr(ctx, err) {
				return resp, body, err
			}
			if last {
				return resp, body, &ExhaustedError{Cause: err, Attempts: n}
			}
			delay := policy.jitter(policy.backoff(n))
			logRetry(logger, retryEvent{attempt: n + 1, max: policy.MaxAttempts, reason: reasonForNetErr(err), delay: delay})
			if err := policy.Sleep(ctx, delay); err != nil {
				return nil, nil, err
			}
			continue
		}
		if resp == nil {
			return nil, nil, errors.New("nil response from http client")
		}
		if !isRetryableStatus(resp.StatusCode) {
			return resp, body, nil
		}

		snippet := bodySnippet(body, policy.SnippetLimit)
		if last {
			return resp, body, &ExhaustedError{
				Cause:    &StatusError{StatusCode: resp.StatusCode, BodySnippet: snippet},
				Attempts: n,
			}
		}

		delay, fromHeader := policy.delayFor(n, resp.Header)
		logRetry(logger, retryEvent{
			attempt:    n + 1,
			max:        policy.MaxAttempts,
			status:     resp.StatusCode,
			reason:     reasonForStatus(resp.StatusCode),
			delay:      delay,
			retryAfter: fromHeader,
			snippet:    snippet,
		})
		if err := policy.Sleep(ctx, delay); err != nil {
			return nil, nil, err
		}
	}
}

func withDefaults(p Policy) Policy {
	if p.BaseDelay == 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.Multiplier == 0 {
		p.Multiplier = defaultMultiplier
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.JitterFraction == 0 {
		p.JitterFraction = defaultJitterFraction
	}
	if p.SnippetLimit == 0 {
		p.SnippetLimit = defaultSnippetLimit
	}
	if p.Sleep == nil {
		p.Sleep = sleepCtx
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Rand == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		p.Rand = rng.Float64
	}
	return p
}

// backoff задержка перед попыткой n+1 без джиттера, ограниченная MaxDelay.
func (p Policy) backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(n-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// jitter сдвигает задержку на ±JitterFraction.
func (p Policy) jitter(delay time.Duration) time.Duration {
	if delay <= 0 || p.JitterFraction <= 0 {
		return delay
	}
	factor := 1 + (p.Rand()*2-1)*p.JitterFraction
	adjusted := float64(delay) * factor
	if adjusted < 0 {
		adjusted = 0
	}
	return time.Duration(adjusted)
}

// delayFor учитывает Retry-After, если сервер его прислал.
func (p Policy) delayFor(n int, header http.Header) (time.Duration, bool) {
	if d, ok := parseRetryAfter(header, p.Now()); ok {
		if d > p.MaxDelay {
			d = p.MaxDelay
		}
		return d, true
	}
	return p.jitter(p.backoff(n)), false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(header http.Header, now time.Time) (time.Duration, bool) {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, true
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func reasonForStatus(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "rate limit"
	case http.StatusRequestTimeout:
		return "timeout"
	default:
		return "upstream 5xx"
	}
}

// isRetryableNetErr: отмена или истечение нашего контекста не повторяем,
// таймаут и обрыв соединения на стороне сети повторяем.
func isRetryableNetErr(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection reset")
}

func reasonForNetErr(err error) string {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "eof"
	case errors.Is(err, syscall.ECONNRESET), strings.Contains(strings.ToLower(err.Error()), "connection reset"):
		return "connection reset"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "network error"
}

type retryEvent struct {
	attempt    int
	max        int
	status     int
	reason     string
	delay      time.Duration
	retryAfter bool
	snippet    string
}

func logRetry(logger *slog.Logger, ev retryEvent) {
	if logger == nil {
		return
	}
	args := []any{
		slog.Int("attempt", ev.attempt),
		slog.Int("max_attempts", ev.max),
		slog.String("reason", ev.reason),
		slog.Duration("retry_in", ev.delay),
		slog.Bool("retry_after_used", ev.retryAfter),
	}
	if ev.status > 0 {
		args = append(args, slog.Int("status", ev.status))
	}
	if ev.snippet != "" {
		args = append(args, slog.String("snippet", ev.snippet))
	}
	logger.Warn("retrying request", args...)
}

func bodySnippet(body []byte, limit int) string {
	if len(body) == 0 || limit <= 0 {
		return ""
	}
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit])
}
