package transport

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"groqchat/internal/retry"
)

// NewHTTPClient возвращает http.Client с таймаутом и пулом соединений.
// Если policy задана, временные сбои (429, 5xx, обрывы) повторяются прозрачно для вызывающего.
func NewHTTPClient(timeout time.Duration, policy *retry.Policy, logger *slog.Logger) *http.Client {
	var rt http.RoundTripper = newBaseTransport()
	if policy != nil {
		rt = retry.NewTransport(rt, *policy, logger)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}

func newBaseTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
