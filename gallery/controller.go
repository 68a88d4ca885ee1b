package gallery

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/marcus-crane/explorer/twitch"
)

var (
	ErrLoadInFlight    = errors.New("gallery: a load is already in flight")
	ErrDuplicateCursor = errors.New("gallery: cursor has already been loaded")
	ErrExhausted       = errors.New("gallery: no more pages to load")
	ErrAlreadyMounted  = errors.New("gallery: view has already been mounted")
	ErrReleased        = errors.New("gallery: view has been released")
)

type Catalog interface {
	GetTopGames(ctx context.Context, token string, first int) (twitch.Page, error)
	GetMoreTopGames(ctx context.Context, token, cursor string, first int) (twitch.Page, error)
	GetGameViewers(ctx context.Context, games []twitch.Game, token string) ([]twitch.Game, error)
}

type Tokens interface {
	Token(ctx context.Context, sessionID string) (string, error)
	Invalidate(ctx context.Context, sessionID string) error
}

type ChangeKind string

const (
	ChangePage    ChangeKind = "page"
	ChangeViewers ChangeKind = "viewers"
)

// Change describes what moved after a page was appended or enriched.
// Offset is the index of Games[0] within the full gallery. Initial is set
// for changes made by Mount, whose results the caller renders itself.
type Change struct {
	SessionID string
	Kind      ChangeKind
	Offset    int
	Games     []twitch.Game
	Initial   bool
}

type Observer interface {
	GalleryChanged(c Change)
}

type ObserverFunc func(c Change)

func (f ObserverFunc) GalleryChanged(c Change) {
	f(c)
}

// Controller drives a single mounted gallery. Only one load runs at a time
// and a cursor is never requested twice once its page has arrived.
type Controller struct {
	sessionID string
	tokens    Tokens
	catalog   Catalog
	pageSize  int
	observer  Observer

	m        sync.Mutex
	state    State
	consumed map[string]bool
	released bool
}

func NewController(sessionID string, tokens Tokens, catalog Catalog, pageSize int) *Controller {
	return &Controller{
		sessionID: sessionID,
		tokens:    tokens,
		catalog:   catalog,
		pageSize:  pageSize,
		state:     State{Phase: PhaseIdle},
		consumed:  map[string]bool{},
	}
}

func (c *Controller) WithObserver(o Observer) *Controller {
	c.observer = o
	return c
}

func (c *Controller) SessionID() string {
	return c.sessionID
}

func (c *Controller) State() State {
	c.m.Lock()
	defer c.m.Unlock()
	return c.state.Snapshot()
}

func (c *Controller) Loading() bool {
	c.m.Lock()
	defer c.m.Unlock()
	return c.state.Loading
}

func (c *Controller) HasNextPage() bool {
	c.m.Lock()
	defer c.m.Unlock()
	return !c.released && c.state.HasNextPage()
}

// Mount performs the initial load of a freshly created gallery.
func (c *Controller) Mount(ctx context.Context) (State, error) {
	c.m.Lock()
	if c.state.Phase != PhaseIdle {
		c.m.Unlock()
		return c.State(), ErrAlreadyMounted
	}
	c.m.Unlock()
	return c.load(ctx, true)
}

// LoadMore appends the next page to the gallery.
func (c *Controller) LoadMore(ctx context.Context) (State, error) {
	return c.load(ctx, false)
}

// Release marks the gallery as unmounted. Loads still in flight finish but
// their results are dropped.
func (c *Controller) Release() {
	c.m.Lock()
	defer c.m.Unlock()
	c.released = true
}

func (c *Controller) load(ctx context.Context, initial bool) (State, error) {
	c.m.Lock()
	if err := c.canLoad(); err != nil {
		defer c.m.Unlock()
		return c.state.Snapshot(), err
	}
	first := c.state.Pages == 0
	cursor := c.state.Cursor
	c.state = Apply(c.state, LoadStarted{Cursor: cursor})
	c.m.Unlock()

	token, err := c.tokens.Token(ctx, c.sessionID)
	if err != nil {
		slog.Error("Failed to get token for gallery",
			slog.String("error", err.Error()),
			slog.String("session", c.sessionID),
		)
		return c.fail(err)
	}

	var page twitch.Page
	if first {
		page, err = c.catalog.GetTopGames(ctx, token, c.pageSize)
	} else {
		page, err = c.catalog.GetMoreTopGames(ctx, token, cursor, c.pageSize)
	}
	if err != nil {
		if errors.Is(err, twitch.ErrUnauthorized) {
			if err := c.tokens.Invalidate(ctx, c.sessionID); err != nil {
				slog.Error("Failed to invalidate rejected token", slog.String("error", err.Error()))
			}
		}
		slog.Error("Failed to fetch games",
			slog.String("error", err.Error()),
			slog.String("session", c.sessionID),
			slog.String("cursor", cursor),
		)
		return c.fail(err)
	}

	c.m.Lock()
	if c.released {
		defer c.m.Unlock()
		return c.state.Snapshot(), ErrReleased
	}
	if !first {
		c.consumed[cursor] = true
	}
	offset := len(c.state.Games)
	c.state = Apply(c.state, PageLoaded{Games: page.Games, Cursor: page.Cursor})
	accumulated := c.state.Snapshot().Games
	c.m.Unlock()

	c.notify(Change{Kind: ChangePage, Offset: offset, Games: cloneGames(page.Games), Initial: initial})

	enriched, err := c.catalog.GetGameViewers(ctx, accumulated, token)
	if err != nil {
		slog.Error("Failed to fetch viewer counts",
			slog.String("error", err.Error()),
			slog.String("session", c.sessionID),
		)
		return c.fail(err)
	}

	c.m.Lock()
	if c.released {
		defer c.m.Unlock()
		return c.state.Snapshot(), ErrReleased
	}
	c.state = Apply(c.state, ViewersLoaded{Games: enriched})
	snapshot := c.state.Snapshot()
	c.m.Unlock()

	if snapshot.Phase == PhaseFailed {
		slog.Error("Discarded viewer counts", slog.String("error", snapshot.Err.Error()))
		return snapshot, snapshot.Err
	}
	c.notify(Change{Kind: ChangeViewers, Games: cloneGames(snapshot.Games), Initial: initial})
	slog.Debug("Loaded games",
		slog.String("session", c.sessionID),
		slog.Int("games", len(snapshot.Games)),
		slog.Int("pages", snapshot.Pages),
	)
	return snapshot, nil
}

// canLoad must be called with the lock held.
func (c *Controller) canLoad() error {
	if c.released {
		return ErrReleased
	}
	if c.state.Loading {
		return ErrLoadInFlight
	}
	if c.state.Exhausted {
		return ErrExhausted
	}
	if c.state.Pages > 0 && c.consumed[c.state.Cursor] {
		return ErrDuplicateCursor
	}
	return nil
}

func (c *Controller) fail(err error) (State, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.released {
		return c.state.Snapshot(), ErrReleased
	}
	c.state = Apply(c.state, LoadFailed{Err: err})
	return c.state.Snapshot(), err
}

func (c *Controller) notify(change Change) {
	if c.observer == nil {
		return
	}
	change.SessionID = c.sessionID
	c.observer.GalleryChanged(change)
}
