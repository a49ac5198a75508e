// Package settings exposes REX credentials, the cached auth token and the
// sync checkpoint. Token and checkpoint live in the metadata table so they
// survive restarts.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/rexsync/internal/repositories/metadata"
)

// Metadata keys.
const (
	KeyAuthToken = "rex_auth_token"
	KeyLastSync  = "last_sync"
)

// Credentials identify the REX account used for login.
type Credentials struct {
	Username string
	Password string
	AgencyID string
}

// Provider is what the REX client and the sync service need from settings.
type Provider interface {
	Credentials() Credentials
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
	LastSync(ctx context.Context) (time.Time, error)
	SetLastSync(ctx context.Context, t time.Time) error
	PollInterval() time.Duration
}

// Store implements Provider over a metadata repository.
type Store struct {
	repo         metadata.Repository
	creds        Credentials
	pollInterval time.Duration
}

var _ Provider = (*Store)(nil)

// NewStore builds a Store. Credentials and poll interval come from configuration.
func NewStore(repo metadata.Repository, creds Credentials, pollInterval time.Duration) *Store {
	return &Store{repo: repo, creds: creds, pollInterval: pollInterval}
}

func (s *Store) Credentials() Credentials {
	return s.creds
}

func (s *Store) PollInterval() time.Duration {
	return s.pollInterval
}

// Token returns the cached token, or "" when none has been stored.
func (s *Store) Token(ctx context.Context) (string, error) {
	v, err := s.repo.Get(ctx, KeyAuthToken)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// SetToken replaces the cached token.
func (s *Store) SetToken(ctx context.Context, token string) error {
	return s.repo.Set(ctx, KeyAuthToken, []byte(token))
}

func (s *Store) ClearToken(ctx context.Context) error {
	return s.repo.Delete(ctx, KeyAuthToken)
}

// LastSync returns the checkpoint, or the zero time if no incremental sync
// has completed yet.
func (s *Store) LastSync(ctx context.Context) (time.Time, error) {
	v, err := s.repo.Get(ctx, KeyLastSync)
	if err != nil {
		return time.Time{}, err
	}
	if len(v) == 0 {
		return time.Time{}, nil
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed %s value %q: %w", KeyLastSync, v, err)
	}
	return time.Unix(sec, 0).UTC(), nil
}

// SetLastSync stores t as epoch seconds.
func (s *Store) SetLastSync(ctx context.Context, t time.Time) error {
	return s.repo.Set(ctx, KeyLastSync, []byte(strconv.FormatInt(t.Unix(), 10)))
}
