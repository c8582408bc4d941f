package vis

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/nfnt/resize"

	"github.com/CoderZ865/WhyteBox/tensor"
)

// Tile is one displayable unit of a filter or activation grid.
type Tile struct {
	Label string
	Image *image.RGBA
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// MapToRGBA colorizes a [H, W] tensor through the given ramp. Values are
// clamped to [0, 1] per pixel before colorization.
func MapToRGBA(t *tensor.Tensor, cm Colormap) (*image.RGBA, error) {
	shape := t.GetShape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("colorize expects a 2D map, got shape %v", shape)
	}
	h, w := shape[0], shape[1]
	data := t.GetData()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := cm(data[y*w+x])
			img.SetRGBA(x, y, color.RGBA{clampByte(r), clampByte(g), clampByte(b), 255})
		}
	}
	return img, nil
}

// BlankTile returns an all-black placeholder used when one unit of a batch
// fails without aborting the batch.
func BlankTile(width, height int, label string) Tile {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{0, 0, 0, 255})
		}
	}
	return Tile{Label: label, Image: img}
}

// DecodeAndResize decodes a user-supplied raster image (any registered
// format) and resamples it to the model's input resolution.
func DecodeAndResize(r io.Reader, width, height int) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("invalid image: %w", err)
	}
	return resize.Resize(uint(width), uint(height), img, resize.Bilinear), nil
}

// ResizeImage resamples an already-decoded image.
func ResizeImage(img image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), img, resize.Bilinear)
}

// TensorFromImage converts an image to a [1, 3, H, W] tensor with values
// scaled to [0, 1].
func TensorFromImage(img image.Image) (*tensor.Tensor, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image")
	}

	data := make([]float64, 3*h*w)
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := y*w + x
			data[idx] = float64(r) / 65535.0
			data[plane+idx] = float64(g) / 65535.0
			data[2*plane+idx] = float64(b) / 65535.0
		}
	}
	return tensor.NewTensor([]int{1, 3, h, w}, data)
}

// ImageFromTensor renders a [1, 3, H, W] (or [3, H, W]) tensor with values
// in [0, 1] as an RGBA image, clamping out-of-range pixels.
func ImageFromTensor(t *tensor.Tensor) (*image.RGBA, error) {
	shape := t.GetShape()
	var c, h, w int
	switch {
	case len(shape) == 4 && shape[0] == 1:
		c, h, w = shape[1], shape[2], shape[3]
	case len(shape) == 3:
		c, h, w = shape[0], shape[1], shape[2]
	default:
		return nil, fmt.Errorf("image tensor must be [1, 3, H, W] or [3, H, W], got %v", shape)
	}
	if c != 3 {
		return nil, fmt.Errorf("image tensor must have 3 channels, got %d", c)
	}

	data := t.GetData()
	plane := h * w
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			img.SetRGBA(x, y, color.RGBA{
				clampByte(data[idx]),
				clampByte(data[plane+idx]),
				clampByte(data[2*plane+idx]),
				255,
			})
		}
	}
	return img, nil
}

// Overlay blends a colorized heatmap over the original image:
// out = (1-alpha)*original + alpha*colored, clamped per pixel. The heatmap
// is bilinearly resized to the image's dimensions first and must already be
// normalized to [0, 1].
func Overlay(original image.Image, heatmap *tensor.Tensor, alpha float64, cm Colormap) (*image.RGBA, error) {
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("alpha must be in [0, 1], got %f", alpha)
	}
	bounds := original.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	resized, err := tensor.ResizeBilinear2D(heatmap, h, w)
	if err != nil {
		return nil, fmt.Errorf("failed to resize heatmap: %w", err)
	}
	data := resized.GetData()

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			or, og, ob, _ := original.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			hr, hg, hb := cm(data[y*w+x])
			out.SetRGBA(x, y, color.RGBA{
				clampByte((1-alpha)*float64(or)/65535.0 + alpha*hr),
				clampByte((1-alpha)*float64(og)/65535.0 + alpha*hg),
				clampByte((1-alpha)*float64(ob)/65535.0 + alpha*hb),
				255,
			})
		}
	}
	return out, nil
}
