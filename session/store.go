// Package session holds values scoped to a single browser session, the way
// sessionStorage would in a browser tab.
package session

import (
	"context"
	"errors"
	"time"
)

// TokenKey is where the bearer token for the streaming API lives.
const TokenKey = "twitchToken"

var ErrNotFound = errors.New("session: value not found")

type Store interface {
	Get(ctx context.Context, sessionID, key string) (string, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Clear(ctx context.Context, sessionID string) error
}

// Sweeper is implemented by stores that do not expire sessions on their own.
type Sweeper interface {
	Sweep(ctx context.Context, idleSince time.Time) (int64, error)
}
