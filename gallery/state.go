package gallery

import (
	"errors"

	"github.com/marcus-crane/explorer/twitch"
)

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseLoaded  Phase = "loaded"
	PhaseFailed  Phase = "failed"
)

var ErrViewerMismatch = errors.New("gallery: viewer counts do not line up with the games shown")

// State is everything the gallery view knows. Games are kept in the order
// they were fetched, which is also the order they are displayed in.
type State struct {
	Games   []twitch.Game `json:"games"`
	Cursor  string        `json:"cursor,omitempty"`
	Loading bool          `json:"loading"`
	Phase   Phase         `json:"phase"`
	// Previous is the phase the gallery was in before its latest load began,
	// so a failed load can tell whether anything had been shown yet.
	Previous  Phase `json:"previous,omitempty"`
	Err       error `json:"-"`
	Exhausted bool  `json:"exhausted"`
	Pages     int   `json:"pages"`
}

func (s State) HasNextPage() bool {
	return !s.Exhausted
}

// Snapshot returns a copy that shares no memory with s.
func (s State) Snapshot() State {
	s.Games = cloneGames(s.Games)
	return s
}

type Event interface {
	isEvent()
}

type LoadStarted struct {
	Cursor string
}

type PageLoaded struct {
	Games  []twitch.Game
	Cursor string
}

type ViewersLoaded struct {
	Games []twitch.Game
}

type LoadFailed struct {
	Err error
}

func (LoadStarted) isEvent()   {}
func (PageLoaded) isEvent()    {}
func (ViewersLoaded) isEvent() {}
func (LoadFailed) isEvent()    {}

// Apply is the gallery's transition function. It never modifies s.
func Apply(s State, e Event) State {
	next := s.Snapshot()
	switch e := e.(type) {
	case LoadStarted:
		next.Previous = s.Phase
		next.Phase = PhaseLoading
		next.Loading = true
		next.Err = nil
	case PageLoaded:
		// Pages are appended as is. Overlapping pages can repeat a game and
		// that repeat is shown.
		next.Games = append(next.Games, e.Games...)
		next.Cursor = e.Cursor
		next.Pages++
		next.Exhausted = e.Cursor == "" || len(e.Games) == 0
	case ViewersLoaded:
		if len(e.Games) != len(s.Games) {
			return Apply(s, LoadFailed{Err: ErrViewerMismatch})
		}
		next.Games = cloneGames(e.Games)
		next.Loading = false
		next.Phase = PhaseLoaded
	case LoadFailed:
		next.Loading = false
		next.Phase = PhaseFailed
		next.Err = e.Err
	}
	return next
}

func cloneGames(games []twitch.Game) []twitch.Game {
	if games == nil {
		return nil
	}
	cloned := make([]twitch.Game, len(games))
	copy(cloned, games)
	return cloned
}
