package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"

	"github.com/marcus-crane/explorer/gallery"
	"github.com/marcus-crane/explorer/twitch"
)

const (
	marginExpanded  = 215
	marginCollapsed = 25
	viewersPending  = "..."
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static holds the stylesheet and the infinite scroll script.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Colours looks up a placeholder colour for box art that may not have
// loaded yet. A nil Colours leaves the default background in place.
type Colours interface {
	Cached(imageURL string) (string, bool)
}

type Tile struct {
	Index        int
	Key          string
	ID           string
	Name         string
	Image        string
	Width        int
	Height       int
	ViewersLabel string
	Colour       string
}

// PageData is one page load. ViewID names the gallery the page's script
// talks back to.
type PageData struct {
	ViewID          string
	SidebarExpanded bool
	HasNextPage     bool
	Tiles           []Tile
}

func (p PageData) Margin() int {
	if p.SidebarExpanded {
		return marginExpanded
	}
	return marginCollapsed
}

// ViewerUpdate is what the browser needs to refresh a single tile's count.
type ViewerUpdate struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Label string `json:"label"`
}

type Renderer struct {
	tmpl    *template.Template
	colours Colours
}

func New(colours Colours) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl, colours: colours}, nil
}

func (r *Renderer) Page(w io.Writer, viewID string, sidebarExpanded bool, state gallery.State) error {
	return r.tmpl.ExecuteTemplate(w, "page", PageData{
		ViewID:          viewID,
		SidebarExpanded: sidebarExpanded,
		HasNextPage:     state.HasNextPage(),
		Tiles:           r.NewTiles(state.Games, 0),
	})
}

// Tiles renders only the tiles for games, numbered from offset. It is used
// for pages appended after the initial render.
func (r *Renderer) Tiles(w io.Writer, games []twitch.Game, offset int) error {
	return r.tmpl.ExecuteTemplate(w, "tiles", r.NewTiles(games, offset))
}

func (r *Renderer) NewTiles(games []twitch.Game, offset int) []Tile {
	tiles := make([]Tile, 0, len(games))
	for i, g := range games {
		index := offset + i
		image := gallery.ProvideSize(g.BoxArtURL)
		tile := Tile{
			Index:        index,
			Key:          TileKey(index, g.ID),
			ID:           g.ID,
			Name:         g.Name,
			Image:        image,
			Width:        gallery.TileWidth,
			Height:       gallery.TileHeight,
			ViewersLabel: ViewersLabel(g.Viewers),
		}
		if r.colours != nil {
			if colour, ok := r.colours.Cached(image); ok {
				tile.Colour = colour
			}
		}
		tiles = append(tiles, tile)
	}
	return tiles
}

func ViewerUpdates(games []twitch.Game) []ViewerUpdate {
	updates := make([]ViewerUpdate, 0, len(games))
	for i, g := range games {
		updates = append(updates, ViewerUpdate{Index: i, ID: g.ID, Label: ViewersLabel(g.Viewers)})
	}
	return updates
}

// ViewersLabel shows the count with thousands separators, or an ellipsis
// while the count is still unknown. A game nobody is streaming reads the
// same as one not counted yet.
func ViewersLabel(viewers *int) string {
	if viewers == nil || *viewers == 0 {
		return fmt.Sprintf("%s espectadores", viewersPending)
	}
	return fmt.Sprintf("%s espectadores", humanize.Comma(int64(*viewers)))
}

// TileKey identifies a tile by its position as well as its game, since the
// same game can legitimately appear twice.
func TileKey(index int, gameID string) string {
	return strconv.FormatUint(xxhash.Sum64String(strconv.Itoa(index)+":"+gameID), 16)
}
