package render

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-crane/explorer/gallery"
	"github.com/marcus-crane/explorer/twitch"
)

type fakeColours map[string]string

func (f fakeColours) Cached(imageURL string) (string, bool) {
	c, ok := f[imageURL]
	return c, ok
}

func intPtr(i int) *int {
	return &i
}

var testGames = []twitch.Game{
	{ID: "509658", Name: "Just Chatting", BoxArtURL: "https://static-cdn.jtvnw.net/ttv-boxart/509658-{width}x{height}.jpg", Viewers: intPtr(80000)},
	{ID: "33214", Name: "Fortnite", BoxArtURL: "https://static-cdn.jtvnw.net/ttv-boxart/33214-{width}x{height}.jpg"},
}

func parse(t *testing.T, buf *bytes.Buffer) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(buf)
	require.NoError(t, err)
	return doc
}

func TestPage_RendersTiles(t *testing.T) {
	t.Parallel()
	r, err := New(nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	state := gallery.State{Games: testGames, Cursor: "next", Phase: gallery.PhaseLoaded, Pages: 1}
	require.NoError(t, r.Page(&buf, "abc", false, state))
	doc := parse(t, &buf)

	tiles := doc.Find("#top-games .game-content")
	assert.Equal(t, 2, tiles.Length())

	img, ok := tiles.First().Find("img").Attr("src")
	require.True(t, ok)
	assert.Equal(t, "https://static-cdn.jtvnw.net/ttv-boxart/509658-285x380.jpg", img)
	assert.Equal(t, "Just Chatting", tiles.First().Find("h3").Text())
	assert.Equal(t, "80,000 espectadores", tiles.First().Find(".viewers p").Text())
	assert.Equal(t, "... espectadores", tiles.Last().Find(".viewers p").Text())

	view, _ := doc.Find("main").Attr("data-view")
	assert.Equal(t, "abc", view)

	_, exhausted := doc.Find("#sentinel").Attr("data-exhausted")
	assert.False(t, exhausted)
}

func TestPage_SidebarMargin(t *testing.T) {
	t.Parallel()
	r, err := New(nil)
	require.NoError(t, err)

	tests := []struct {
		expanded bool
		want     string
	}{
		{true, "margin-left: 215px"},
		{false, "margin-left: 25px"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		require.NoError(t, r.Page(&buf, "abc", tt.expanded, gallery.State{}))
		style, _ := parse(t, &buf).Find(".content").Attr("style")
		assert.Equal(t, tt.want, style)
	}
}

func TestPage_ExhaustedSentinel(t *testing.T) {
	t.Parallel()
	r, err := New(nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	state := gallery.State{Games: testGames, Phase: gallery.PhaseLoaded, Pages: 1, Exhausted: true}
	require.NoError(t, r.Page(&buf, "abc", false, state))

	_, exhausted := parse(t, &buf).Find("#sentinel").Attr("data-exhausted")
	assert.True(t, exhausted)
}

func TestTiles_OffsetAndColour(t *testing.T) {
	t.Parallel()
	r, err := New(fakeColours{
		"https://static-cdn.jtvnw.net/ttv-boxart/33214-285x380.jpg": "#a970ff",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Tiles(&buf, testGames, 20))
	doc := parse(t, &buf)

	tiles := doc.Find(".game-content")
	require.Equal(t, 2, tiles.Length())
	first, _ := tiles.First().Attr("data-index")
	last, _ := tiles.Last().Attr("data-index")
	assert.Equal(t, "20", first)
	assert.Equal(t, "21", last)

	_, styled := tiles.First().Find(".box-art").Attr("style")
	assert.False(t, styled)
	style, _ := tiles.Last().Find(".box-art").Attr("style")
	assert.True(t, strings.Contains(style, "#a970ff"))
}

func TestTileKey_DuplicateGames(t *testing.T) {
	t.Parallel()
	assert.NotEqual(t, TileKey(0, "33214"), TileKey(1, "33214"))
	assert.Equal(t, TileKey(3, "33214"), TileKey(3, "33214"))
}

func TestViewersLabel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   *int
		want string
	}{
		{nil, "... espectadores"},
		{intPtr(0), "... espectadores"},
		{intPtr(7), "7 espectadores"},
		{intPtr(1234567), "1,234,567 espectadores"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ViewersLabel(tt.in))
	}
}

func TestViewerUpdates(t *testing.T) {
	t.Parallel()
	got := ViewerUpdates(testGames)
	assert.Equal(t, []ViewerUpdate{
		{Index: 0, ID: "509658", Label: "80,000 espectadores"},
		{Index: 1, ID: "33214", Label: "... espectadores"},
	}, got)
}

func TestStatic(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"explorer.css", "explorer.js"} {
		_, err := fs.Stat(Static(), name)
		assert.NoError(t, err, name)
	}
}
