package token

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-crane/explorer/session"
)

type fakeIssuer struct {
	calls atomic.Int32
	token string
	err   error
	delay time.Duration
	// gate, when set, holds issuance until closed or ctx is done
	gate chan struct{}
}

func (f *fakeIssuer) GetAppToken(ctx context.Context) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.token, f.err
}

type fakeAlerter struct {
	errs []error
}

func (f *fakeAlerter) TokenIssueFailed(err error) {
	f.errs = append(f.errs, err)
}

func TestToken_UsesCachedToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := session.NewMemoryStore(10, time.Hour)
	require.NoError(t, store.Set(ctx, "abc", session.TokenKey, "cached"))
	issuer := &fakeIssuer{token: "fresh"}

	got, err := NewProvider(store, issuer).Token(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "cached", got)
	assert.Equal(t, int32(0), issuer.calls.Load())
}

func TestToken_IssuesAndCaches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := session.NewMemoryStore(10, time.Hour)
	issuer := &fakeIssuer{token: "fresh"}
	p := NewProvider(store, issuer)

	got, err := p.Token(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)

	got, err = p.Token(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
	assert.Equal(t, int32(1), issuer.calls.Load())

	cached, err := store.Get(ctx, "abc", session.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "fresh", cached)
}

func TestToken_ConcurrentCallersShareIssuance(t *testing.T) {
	t.Parallel()
	store := session.NewMemoryStore(10, time.Hour)
	issuer := &fakeIssuer{token: "fresh", delay: 50 * time.Millisecond}
	p := NewProvider(store, issuer)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.Token(context.Background(), "abc")
			assert.NoError(t, err)
			assert.Equal(t, "fresh", got)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), issuer.calls.Load())
}

func TestToken_IssueFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := session.NewMemoryStore(10, time.Hour)
	issuer := &fakeIssuer{err: errors.New("twitch is down")}
	alerter := &fakeAlerter{}

	got, err := NewProvider(store, issuer).WithAlerter(alerter).Token(ctx, "abc")
	assert.Empty(t, got)
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Contains(t, err.Error(), "twitch is down")
	assert.Len(t, alerter.errs, 1)

	_, err = store.Get(ctx, "abc", session.TokenKey)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestInvalidate_ForcesNewIssuance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := session.NewMemoryStore(10, time.Hour)
	issuer := &fakeIssuer{token: "fresh"}
	p := NewProvider(store, issuer)

	_, err := p.Token(ctx, "abc")
	require.NoError(t, err)
	require.NoError(t, p.Invalidate(ctx, "abc"))
	_, err = p.Token(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int32(2), issuer.calls.Load())
}

func TestRelease_ClearsSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := session.NewMemoryStore(10, time.Hour)
	p := NewProvider(store, &fakeIssuer{token: "fresh"})

	_, err := p.Token(ctx, "abc")
	require.NoError(t, err)
	require.NoError(t, p.Release(ctx, "abc"))

	_, err = store.Get(ctx, "abc", session.TokenKey)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestToken_CancelledCallerDoesNotFailOthers(t *testing.T) {
	t.Parallel()
	store := session.NewMemoryStore(10, time.Hour)
	issuer := &fakeIssuer{token: "fresh", gate: make(chan struct{})}
	p := NewProvider(store, issuer)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := p.Token(ctx, "abc")
		first <- err
	}()
	require.Eventually(t, func() bool { return issuer.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan string, 1)
	go func() {
		got, err := p.Token(context.Background(), "abc")
		assert.NoError(t, err)
		second <- got
	}()

	cancel()
	// Give a cancellation that leaked into the issuance time to land
	time.Sleep(20 * time.Millisecond)
	close(issuer.gate)

	assert.Equal(t, "fresh", <-second)
	assert.NoError(t, <-first)
	assert.Equal(t, int32(1), issuer.calls.Load())

	cached, err := store.Get(context.Background(), "abc", session.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "fresh", cached)
}
