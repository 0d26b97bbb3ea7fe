package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"legaljudge-backend/pkg/logger"

	"go.uber.org/zap"
)

const maxResponseBytes = 32 << 20

// Transport performs bounded, retried HTTP calls to backend services
type Transport struct {
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	tokens         *ServiceTokenSource
}

// TransportOption is a functional option for Transport
type TransportOption func(*Transport)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *Transport) {
		t.httpClient = c
	}
}

// WithRetries sets the attempt count and the first backoff delay
func WithRetries(maxRetries int, initialBackoff time.Duration) TransportOption {
	return func(t *Transport) {
		t.maxRetries = maxRetries
		t.initialBackoff = initialBackoff
	}
}

// WithServiceTokens authenticates every call with a service token
func WithServiceTokens(s *ServiceTokenSource) TransportOption {
	return func(t *Transport) {
		t.tokens = s
	}
}

// NewTransport creates a transport. Per-call timeouts come from each
// adapter, so the default client carries none.
func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{
		httpClient:     &http.Client{},
		maxRetries:     3,
		initialBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.maxRetries < 1 {
		t.maxRetries = 1
	}
	return t
}

// PostJSON sends in as JSON and decodes a 2xx reply into out
func (t *Transport) PostJSON(ctx context.Context, backend, url string, timeout time.Duration, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return Rejected(backend, fmt.Errorf("failed to marshal request: %w", err))
	}
	return t.post(ctx, backend, url, timeout, "application/json", payload, out)
}

// PostBody sends a pre-encoded body and decodes a 2xx JSON reply into out
func (t *Transport) PostBody(ctx context.Context, backend, url string, timeout time.Duration, contentType string, body []byte, out any) error {
	return t.post(ctx, backend, url, timeout, contentType, body, out)
}

func (t *Transport) post(ctx context.Context, backend, url string, timeout time.Duration, contentType string, body []byte, out any) error {
	return t.Retry(ctx, backend, func(ctx context.Context) error {
		return t.attempt(ctx, backend, url, timeout, contentType, body, out)
	})
}

// Retry runs call, repeating it with exponential backoff while it returns
// transient backend errors and attempts remain.
func (t *Transport) Retry(ctx context.Context, backend string, call func(context.Context) error) error {
	var lastErr error
	backoff := t.initialBackoff

	for attempt := 0; attempt < t.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff); err != nil {
				if errors.Is(err, context.Canceled) {
					return fmt.Errorf("%s: %w", backend, err)
				}
				return newError(backend, KindTimeout, fmt.Errorf("deadline reached while backing off: %w", lastErr))
			}
			backoff *= 2
		}

		err := call(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}
		logger.Warn(ctx, "backend call failed",
			zap.String("backend", backend),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", t.maxRetries),
			zap.Error(err),
		)
	}

	return lastErr
}

func (t *Transport) attempt(ctx context.Context, backend, url string, timeout time.Duration, contentType string, body []byte, out any) error {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Rejected(backend, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	if t.tokens != nil {
		token, err := t.tokens.Token()
		if err != nil {
			return Rejected(backend, fmt.Errorf("failed to sign service token: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, backend, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(ctx, backend, err)
	}

	logger.Debug(ctx, "backend replied",
		zap.String("backend", backend),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyStatus(backend, resp.StatusCode, errorDetail(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return Malformed(backend, fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

func transportError(ctx context.Context, backend string, err error) error {
	be, ok := classifyTransport(ctx, backend, err)
	if !ok {
		return fmt.Errorf("%s: %w", backend, ctx.Err())
	}
	return be
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// errorDetail pulls a human-readable message out of an error body
func errorDetail(body []byte) string {
	var payload struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if s, ok := payload.Detail.(string); ok && s != "" {
			return s
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// checkStatus rejects replies whose status field declares an error
func checkStatus(backend, status string) error {
	switch strings.ToLower(status) {
	case "", "success", "ok":
		return nil
	}
	return Rejected(backend, fmt.Errorf("backend status %q", status))
}
