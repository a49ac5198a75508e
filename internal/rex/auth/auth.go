// Package auth obtains REX bearer tokens and keeps the current one in the
// settings store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/rexsync/internal/logging"
	"github.com/dmitrijs2005/rexsync/internal/metrics"
	"github.com/dmitrijs2005/rexsync/internal/rex/transport"
	"github.com/dmitrijs2005/rexsync/internal/settings"
	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"
)

// DefaultTokenLifetime is sent when no lifetime is configured.
const DefaultTokenLifetime = 5

// ErrLoginFailed is returned when no token could be obtained.
var ErrLoginFailed = errors.New("rex login failed")

type loginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	TokenLifetime int    `json:"token_lifetime"`
}

type loginResponse struct {
	Result string `json:"result"`
}

// TokenManager logs in against REX and persists the token it gets back.
type TokenManager struct {
	transport     transport.Transport
	settings      settings.Provider
	tokenLifetime int
	logger        logging.Logger
	group         singleflight.Group
}

// NewTokenManager builds a TokenManager. tokenLifetime <= 0 uses the default.
func NewTokenManager(t transport.Transport, s settings.Provider, tokenLifetime int, logger logging.Logger) *TokenManager {
	if tokenLifetime <= 0 {
		tokenLifetime = DefaultTokenLifetime
	}
	return &TokenManager{
		transport:     t,
		settings:      s,
		tokenLifetime: tokenLifetime,
		logger:        logger,
	}
}

// Token returns the cached token; "" means none is stored.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	return m.settings.Token(ctx)
}

// Login obtains a fresh token and stores it. Concurrent calls share one
// upstream request, which is not cancelled when one of its callers gives up;
// each caller still returns as soon as its own ctx is done.
func (m *TokenManager) Login(ctx context.Context) (string, error) {
	ch := m.group.DoChan("login", func() (any, error) {
		return m.login(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			metrics.LoginsTotal.WithLabelValues("failed").Inc()
			return "", res.Err
		}
		metrics.LoginsTotal.WithLabelValues("ok").Inc()
		return res.Val.(string), nil
	}
}

func (m *TokenManager) login(ctx context.Context) (string, error) {
	creds := m.settings.Credentials()
	req := loginRequest{
		Email:         creds.Username,
		Password:      creds.Password,
		TokenLifetime: m.tokenLifetime,
	}

	raw, err := m.transport.Do(ctx, http.MethodPost, transport.LoginPath, req, "")
	if err != nil {
		m.logger.Warn(ctx, "rex login rejected", "user", creds.Username, "error", err)
		return "", fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	var resp loginResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: malformed response: %w", ErrLoginFailed, err)
	}
	if resp.Result == "" {
		return "", fmt.Errorf("%w: empty token in response", ErrLoginFailed)
	}

	if err := m.settings.SetToken(ctx, resp.Result); err != nil {
		return "", fmt.Errorf("%w: store token: %w", ErrLoginFailed, err)
	}
	m.logger.Info(ctx, "rex login succeeded", "user", creds.Username)
	return resp.Result, nil
}
