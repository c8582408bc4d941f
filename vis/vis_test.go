package vis

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoderZ865/WhyteBox/tensor"
)

func mustTensor(t *testing.T, shape []int, data []float64) *tensor.Tensor {
	t.Helper()
	tt, err := tensor.NewTensor(shape, data)
	require.NoError(t, err)
	return tt
}

func TestColormaps(t *testing.T) {
	for name, cm := range map[string]Colormap{
		"heat":      HeatRedBlack,
		"diverging": BlueYellowRed,
		"redgreen":  RedGreen,
		"grayscale": Grayscale,
	} {
		for _, v := range []float64{0, 0.25, 0.5, 0.75, 1} {
			r, g, b := cm(v)
			assert.GreaterOrEqual(t, r, 0.0, name)
			assert.LessOrEqual(t, r, 1.0, name)
			assert.GreaterOrEqual(t, g, 0.0, name)
			assert.LessOrEqual(t, g, 1.0, name)
			assert.GreaterOrEqual(t, b, 0.0, name)
			assert.LessOrEqual(t, b, 1.0, name)
		}
	}

	r, g, b := Grayscale(0.5)
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}

func TestMapToRGBA(t *testing.T) {
	m := mustTensor(t, []int{1, 2}, []float64{0, 1})
	img, err := MapToRGBA(m, Grayscale)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 1), img.Bounds())
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(1, 0))

	_, err = MapToRGBA(mustTensor(t, []int{2, 1, 1}, []float64{1, 2}), Grayscale)
	assert.Error(t, err)
}

func TestBlankTile(t *testing.T) {
	tile := BlankTile(3, 2, "empty")
	assert.Equal(t, "empty", tile.Label)
	assert.Equal(t, image.Rect(0, 0, 3, 2), tile.Image.Bounds())
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, tile.Image.RGBAAt(1, 1))
}

func TestTensorImageRoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	src.SetRGBA(1, 0, color.RGBA{0, 255, 0, 255})
	src.SetRGBA(0, 1, color.RGBA{0, 0, 255, 255})
	src.SetRGBA(1, 1, color.RGBA{255, 255, 255, 255})

	tt, err := TensorFromImage(src)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2, 2}, tt.GetShape())
	assert.InDelta(t, 1.0, tt.GetData()[0], 1e-3)

	back, err := ImageFromTensor(tt)
	require.NoError(t, err)
	assert.Equal(t, src.RGBAAt(0, 0), back.RGBAAt(0, 0))
	assert.Equal(t, src.RGBAAt(1, 1), back.RGBAAt(1, 1))
}

func TestImageFromTensorRejectsBadShapes(t *testing.T) {
	_, err := ImageFromTensor(mustTensor(t, []int{1, 2, 2, 2}, nil))
	assert.Error(t, err)

	_, err = ImageFromTensor(mustTensor(t, []int{4}, nil))
	assert.Error(t, err)
}

func TestDecodeAndResize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))

	img, err := DecodeAndResize(&buf, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())

	_, err = DecodeAndResize(bytes.NewReader([]byte("not an image")), 4, 4)
	assert.Error(t, err)
}

func TestOverlayBlends(t *testing.T) {
	original := image.NewRGBA(image.Rect(0, 0, 4, 4))
	heat := mustTensor(t, []int{2, 2}, []float64{1, 1, 1, 1})

	// alpha 1 on a black image shows the pure colormap output.
	out, err := Overlay(original, heat, 1, HeatRedBlack)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Bounds().Dx())
	px := out.RGBAAt(0, 0)
	assert.Equal(t, uint8(255), px.R)

	// alpha 0 returns the original pixels.
	out, err = Overlay(original, heat, 0, HeatRedBlack)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, out.RGBAAt(0, 0))

	_, err = Overlay(original, heat, 1.5, HeatRedBlack)
	assert.Error(t, err)
}

func TestGridGeometry(t *testing.T) {
	tiles := make([]Tile, 5)
	for i := range tiles {
		tiles[i] = BlankTile(8, 8, "t")
	}

	grid, err := Grid(tiles, 3, 8, 8)
	require.NoError(t, err)
	// 5 tiles in rows of 3 -> 2 rows.
	assert.Equal(t, 24, grid.Bounds().Dx())
	assert.Equal(t, 16, grid.Bounds().Dy())

	assert.Equal(t, 2, GridRows(5, 3))
	assert.Equal(t, 1, GridRows(3, 3))
	assert.Equal(t, 3, GridRows(10, 4))
}

func TestGridPadsIncompleteRow(t *testing.T) {
	white := color.RGBA{255, 255, 255, 255}
	tiles := make([]Tile, 10)
	for i := range tiles {
		img := image.NewRGBA(image.Rect(0, 0, 8, 8))
		draw.Draw(img, img.Bounds(), image.NewUniform(white), image.Point{}, draw.Src)
		tiles[i] = Tile{Label: "t", Image: img}
	}

	grid, err := Grid(tiles, 4, 8, 8)
	require.NoError(t, err)
	assert.Equal(t, 32, grid.Bounds().Dx())
	assert.Equal(t, 24, grid.Bounds().Dy())

	// Last real tile sits at row 2, column 1.
	assert.Equal(t, white, grid.RGBAAt(8, 16))
	// The two remaining cells are blank padding.
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, grid.RGBAAt(16, 16))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, grid.RGBAAt(24, 16))
}
