package vis

import (
	"fmt"
	"image"
	"image/draw"
)

// Grid composes tiles into a single image, gridWidth tiles per row in
// row-major order (the same order as the filter indices that produced
// them). An incomplete final row is padded with blank tiles so the grid is
// always rectangular.
func Grid(tiles []Tile, gridWidth, tileWidth, tileHeight int) (*image.RGBA, error) {
	if gridWidth <= 0 {
		return nil, fmt.Errorf("grid width must be positive, got %d", gridWidth)
	}
	if tileWidth <= 0 || tileHeight <= 0 {
		return nil, fmt.Errorf("tile size must be positive, got %dx%d", tileWidth, tileHeight)
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("no tiles to compose")
	}

	rows := (len(tiles) + gridWidth - 1) / gridWidth
	out := image.NewRGBA(image.Rect(0, 0, gridWidth*tileWidth, rows*tileHeight))

	for i := 0; i < rows*gridWidth; i++ {
		var tile Tile
		if i < len(tiles) {
			tile = tiles[i]
		} else {
			tile = BlankTile(tileWidth, tileHeight, "")
		}
		x := (i % gridWidth) * tileWidth
		y := (i / gridWidth) * tileHeight
		dst := image.Rect(x, y, x+tileWidth, y+tileHeight)
		draw.Draw(out, dst, tile.Image, tile.Image.Bounds().Min, draw.Src)
	}
	return out, nil
}

// GridRows reports how many rows Grid will produce for n tiles.
func GridRows(n, gridWidth int) int {
	if gridWidth <= 0 {
		return 0
	}
	return (n + gridWidth - 1) / gridWidth
}
