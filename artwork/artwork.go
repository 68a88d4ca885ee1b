package artwork

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	color_extractor "github.com/marekm4/color-extractor"

	"github.com/marcus-crane/explorer/utils"
)

const defaultCacheSize = 2048

var ErrNoColours = errors.New("artwork: no colours could be extracted")

// Palette works out the dominant colour of box art so tiles have something
// close to the real image behind them while it loads.
type Palette struct {
	client *http.Client
	cache  *lru.Cache[string, string]
}

func NewPalette(client *http.Client, size int) (*Palette, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = utils.NewHTTPClient(0)
	}
	return &Palette{client: client, cache: cache}, nil
}

// Cached returns the colour for imageURL if it has been worked out already.
func (p *Palette) Cached(imageURL string) (string, bool) {
	if p == nil {
		return "", false
	}
	return p.cache.Get(imageURL)
}

func (p *Palette) Dominant(ctx context.Context, imageURL string) (string, error) {
	if colour, ok := p.cache.Get(imageURL); ok {
		return colour, nil
	}
	body, err := p.fetch(ctx, imageURL)
	if err != nil {
		return "", err
	}
	colours, err := ExtractColours(body)
	if err != nil {
		return "", err
	}
	p.cache.Add(imageURL, colours[0])
	return colours[0], nil
}

// Warm fills the cache for every url, logging rather than returning failures.
func (p *Palette) Warm(ctx context.Context, imageURLs []string) {
	for _, u := range imageURLs {
		if _, err := p.Dominant(ctx, u); err != nil {
			slog.Debug("Failed to extract dominant colour",
				slog.String("error", err.Error()),
				slog.String("image_url", u),
			)
		}
	}
}

func (p *Palette) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header = http.Header{
		"User-Agent": []string{utils.UserAgent},
	}
	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork: received status %d for %s", res.StatusCode, imageURL)
	}
	return io.ReadAll(res.Body)
}

// ExtractColours returns the dominant colours of a jpeg or png as hex strings,
// most dominant first.
func ExtractColours(body []byte) ([]string, error) {
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var domColours []string
	for _, c := range color_extractor.ExtractColors(img) {
		domColours = append(domColours, colorToHexString(c))
	}
	if len(domColours) == 0 {
		return nil, ErrNoColours
	}
	return domColours, nil
}

func colorToHexString(c color.Color) string {
	r, g, b, a := c.RGBA()
	rgba := color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
	return fmt.Sprintf("#%.2x%.2x%.2x", rgba.R, rgba.G, rgba.B)
}
