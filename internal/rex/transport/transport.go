// Package transport sends JSON requests to the REX API and classifies the
// responses into a body or one of the package errors.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/rexsync/internal/common"
	"github.com/dmitrijs2005/rexsync/internal/logging"
	"github.com/dmitrijs2005/rexsync/internal/metrics"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// LoginPath is exempt from 401 classification: a 401 there means bad
// credentials, not an expired token.
const LoginPath = "Authentication/login"

const (
	maxResponseBytes = 32 << 20
	maxErrorBody     = 512
)

// Transport is what the REX client needs from the wire.
type Transport interface {
	Do(ctx context.Context, method, path string, body any, token string) (json.RawMessage, error)
}

// Options configure an HTTPTransport. Zero values pick defaults.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int

	// BreakerFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	HTTPClient *http.Client
	Logger     logging.Logger
}

// HTTPTransport is a Transport over net/http with rate limiting and a
// circuit breaker in front of every request.
type HTTPTransport struct {
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[json.RawMessage]
	logger  logging.Logger
}

var _ Transport = (*HTTPTransport)(nil)

// New builds an HTTPTransport. The base URL must be absolute.
func New(opts Options) (*HTTPTransport, error) {
	base := opts.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("%w: base url %q", common.ErrInvalidConfig, opts.BaseURL)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breakerTimeout := opts.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	t := &HTTPTransport{
		baseURL: u,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
	t.breaker = gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:    "rex-api",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return t, nil
}

// countsAsFailure reports whether err says something about the health of
// the REX API. Auth failures, 4xx responses and cancellations do not.
func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return errors.Is(err, ErrTransport)
}

// Do sends one request. token is sent as a bearer token when non-empty.
func (t *HTTPTransport) Do(ctx context.Context, method, path string, body any, token string) (json.RawMessage, error) {
	start := time.Now()
	raw, err := t.breaker.Execute(func() (json.RawMessage, error) {
		return t.do(ctx, method, path, body, token)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}

	metrics.ObserveAPIRequest(path, outcome(err), time.Since(start))
	if err != nil {
		t.logger.Debug(ctx, "rex request failed", "method", method, "path", path, "error", err)
		return nil, err
	}
	return raw, nil
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body any, token string) (json.RawMessage, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %w", ErrTransport, err)
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request: %w", ErrTransport, err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := t.baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if !json.Valid(data) {
			return nil, fmt.Errorf("%w: decode response: invalid JSON", ErrTransport)
		}
		return json.RawMessage(data), nil
	case resp.StatusCode == http.StatusUnauthorized && path != LoginPath:
		return nil, ErrUnauthorized
	default:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: excerpt(data)}
	}
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrServer):
		return "server_error"
	default:
		return "transport_error"
	}
}
