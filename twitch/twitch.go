package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/marcus-crane/explorer/utils"
)

const (
	defaultBaseURL     = "https://api.twitch.tv"
	defaultAuthURL     = "https://id.twitch.tv"
	topGamesEndpoint   = "/helix/games/top"
	streamsEndpoint    = "/helix/streams"
	tokenEndpoint      = "/oauth2/token"
	streamsPerLookup   = 100
	defaultConcurrency = 8
)

var (
	ErrInvalidCursor    = errors.New("twitch: cursor is no longer valid")
	ErrUnauthorized     = errors.New("twitch: access token was rejected")
	ErrUnexpectedStatus = errors.New("twitch: unexpected status code")
)

// Game is a single entry of the top games listing. Viewers stays nil until
// GetGameViewers has filled it in.
type Game struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BoxArtURL string `json:"box_art_url"`
	IGDBID    string `json:"igdb_id,omitempty"`
	Viewers   *int   `json:"viewers,omitempty"`
}

type Stream struct {
	ID          string `json:"id"`
	UserName    string `json:"user_name"`
	GameID      string `json:"game_id"`
	GameName    string `json:"game_name"`
	Title       string `json:"title"`
	ViewerCount int    `json:"viewer_count"`
}

type Pagination struct {
	Cursor string `json:"cursor,omitempty"`
}

type Response[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Page is one slice of the top games listing along with the cursor
// needed to continue it. An empty Cursor means there is nothing after it.
type Page struct {
	Games  []Game
	Cursor string
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twitch: received status %d", e.StatusCode)
	}
	return fmt.Sprintf("twitch: received status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return ErrUnexpectedStatus
}

type errorResponse struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type Client struct {
	BaseURL      string
	AuthURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	// Concurrency bounds the number of parallel viewer lookups.
	Concurrency int
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		BaseURL:      defaultBaseURL,
		AuthURL:      defaultAuthURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient:   utils.NewHTTPClient(0),
		Concurrency:  defaultConcurrency,
	}
}

func (c *Client) GetTopGames(ctx context.Context, token string, first int) (Page, error) {
	return c.topGames(ctx, token, url.Values{"first": {strconv.Itoa(first)}})
}

func (c *Client) GetMoreTopGames(ctx context.Context, token, cursor string, first int) (Page, error) {
	page, err := c.topGames(ctx, token, url.Values{
		"first": {strconv.Itoa(first)},
		"after": {cursor},
	})
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusBadRequest {
		return Page{}, fmt.Errorf("%w: %s", ErrInvalidCursor, se.Message)
	}
	return page, err
}

func (c *Client) topGames(ctx context.Context, token string, query url.Values) (Page, error) {
	var res Response[Game]
	if err := c.get(ctx, token, topGamesEndpoint, query, &res); err != nil {
		return Page{}, err
	}
	return Page{Games: res.Data, Cursor: res.Pagination.Cursor}, nil
}

// GetGameViewers returns a copy of games with Viewers set to the number of
// people watching the top streams of each game. The result always lines up
// index for index with the input; any failed lookup fails the whole call.
func (c *Client) GetGameViewers(ctx context.Context, games []Game, token string) ([]Game, error) {
	enriched := make([]Game, len(games))
	copy(enriched, games)

	limit := c.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range enriched {
		g.Go(func() error {
			viewers, err := c.gameViewers(ctx, token, enriched[i].ID)
			if err != nil {
				return fmt.Errorf("failed to count viewers for game %s: %w", enriched[i].ID, err)
			}
			enriched[i].Viewers = &viewers
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return enriched, nil
}

func (c *Client) gameViewers(ctx context.Context, token, gameID string) (int, error) {
	var res Response[Stream]
	query := url.Values{
		"game_id": {gameID},
		"first":   {strconv.Itoa(streamsPerLookup)},
	}
	if err := c.get(ctx, token, streamsEndpoint, query, &res); err != nil {
		return 0, err
	}
	viewers := 0
	for _, s := range res.Data {
		viewers += s.ViewerCount
	}
	return viewers, nil
}

func (c *Client) get(ctx context.Context, token, endpoint string, query url.Values, v any) error {
	endpointURL := fmt.Sprintf("%s%s?%s", c.BaseURL, endpoint, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return err
	}
	req.Header = http.Header{
		"Accept":        []string{"application/json"},
		"Authorization": []string{fmt.Sprintf("Bearer %s", token)},
		"Client-Id":     []string{c.ClientID},
		"User-Agent":    []string{utils.UserAgent},
	}
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return newStatusError(res.StatusCode, body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		slog.Debug("Failed to unmarshal Twitch response",
			slog.String("endpoint", endpoint),
			slog.String("body", string(body)),
		)
		return fmt.Errorf("failed to unmarshal %s response: %w", endpoint, err)
	}
	return nil
}

func newStatusError(code int, body []byte) *StatusError {
	var e errorResponse
	// Not every failure carries a JSON body so an empty message is fine
	_ = json.Unmarshal(body, &e)
	return &StatusError{StatusCode: code, Message: e.Message}
}
