package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/rexsync/internal/logging"
	"github.com/dmitrijs2005/rexsync/internal/rex/transport"
	"github.com/goccy/go-json"
)

// Feeds.
const (
	FeedPublished = "published-listings"
	FeedAll       = "listings"
)

// Authenticator provides bearer tokens. *auth.TokenManager implements it.
type Authenticator interface {
	Token(ctx context.Context) (string, error)
	Login(ctx context.Context) (string, error)
}

// Options configure a Client.
type Options struct {
	// Feed is FeedPublished (default) or FeedAll.
	Feed string

	// AgencyID, when set, restricts searches to one agency.
	AgencyID string
}

type Client struct {
	transport transport.Transport
	auth      Authenticator
	feed      string
	agencyID  string
	logger    logging.Logger
}

func New(t transport.Transport, a Authenticator, opts Options, logger logging.Logger) *Client {
	feed := opts.Feed
	if feed == "" {
		feed = FeedPublished
	}
	return &Client{
		transport: t,
		auth:      a,
		feed:      feed,
		agencyID:  opts.AgencyID,
		logger:    logger,
	}
}

// Feed returns the listing collection the client reads from.
func (c *Client) Feed() string {
	return c.feed
}

// AuthenticatedRequest sends a request with the cached token, logging in
// first when none is cached. A token expiry triggers exactly one re-login
// and one retry.
func (c *Client) AuthenticatedRequest(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cached token: %w", err)
	}
	if token == "" {
		if token, err = c.auth.Login(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCouldNotAuthenticate, err)
		}
	}

	raw, err := c.transport.Do(ctx, method, path, body, token)
	if !errors.Is(err, transport.ErrUnauthorized) {
		return raw, err
	}

	c.logger.Info(ctx, "rex token rejected, logging in again", "path", path)
	if token, err = c.auth.Login(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCouldNotAuthenticate, err)
	}

	raw, err = c.transport.Do(ctx, method, path, body, token)
	if errors.Is(err, transport.ErrUnauthorized) {
		return nil, fmt.Errorf("%w: %w", ErrCouldNotAuthenticate, err)
	}
	return raw, err
}
