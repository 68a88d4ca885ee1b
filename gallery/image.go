package gallery

import (
	"fmt"
	"strings"
)

const (
	TileWidth  = 285
	TileHeight = 380

	sizePlaceholder = "{width}x{height}"
)

// ProvideSize fills in the box art template with the tile dimensions.
func ProvideSize(boxArtURL string) string {
	return strings.Replace(boxArtURL, sizePlaceholder, fmt.Sprintf("%dx%d", TileWidth, TileHeight), 1)
}
