package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/marcus-crane/explorer/session"
)

var ErrNoToken = errors.New("token: no access token available")

// Issuer hands out fresh app access tokens.
type Issuer interface {
	GetAppToken(ctx context.Context) (string, error)
}

// Alerter is told when a token could not be issued. Optional.
type Alerter interface {
	TokenIssueFailed(err error)
}

type Provider struct {
	store   session.Store
	issuer  Issuer
	alerter Alerter
	group   singleflight.Group
}

func NewProvider(store session.Store, issuer Issuer) *Provider {
	return &Provider{
		store:  store,
		issuer: issuer,
	}
}

func (p *Provider) WithAlerter(a Alerter) *Provider {
	p.alerter = a
	return p
}

// Token returns the session's cached token, or issues and caches a new one.
// Concurrent callers for the same session share a single issuance.
func (p *Provider) Token(ctx context.Context, sessionID string) (string, error) {
	cached, err := p.store.Get(ctx, sessionID, session.TokenKey)
	if err == nil && cached != "" {
		return cached, nil
	}
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		// A broken store shouldn't stop us from getting a token
		slog.Warn("Failed to read cached token",
			slog.String("error", err.Error()),
			slog.String("session", sessionID),
		)
	}

	v, err, _ := p.group.Do(sessionID, func() (any, error) {
		// Shared by every waiter, so one caller going away must not fail the rest
		ctx := context.WithoutCancel(ctx)
		// Someone may have finished issuing while we were waiting
		if cached, err := p.store.Get(ctx, sessionID, session.TokenKey); err == nil && cached != "" {
			return cached, nil
		}
		slog.Debug("No token cached for session so requesting one", slog.String("session", sessionID))
		issued, err := p.issuer.GetAppToken(ctx)
		if err != nil {
			return "", err
		}
		if err := p.store.Set(ctx, sessionID, session.TokenKey, issued); err != nil {
			slog.Error("Failed to cache token",
				slog.String("error", err.Error()),
				slog.String("session", sessionID),
			)
		}
		return issued, nil
	})
	if err != nil {
		if p.alerter != nil {
			p.alerter.TokenIssueFailed(err)
		}
		return "", fmt.Errorf("%w: %w", ErrNoToken, err)
	}
	return v.(string), nil
}

// Invalidate forgets the cached token, typically after the API rejected it.
func (p *Provider) Invalidate(ctx context.Context, sessionID string) error {
	return p.store.Set(ctx, sessionID, session.TokenKey, "")
}

// Release drops everything stored for the session.
func (p *Provider) Release(ctx context.Context, sessionID string) error {
	return p.store.Clear(ctx, sessionID)
}
