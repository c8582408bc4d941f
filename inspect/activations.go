package inspect

import (
	"context"
	"fmt"
	"image"

	"github.com/CoderZ865/WhyteBox/model"
	"github.com/CoderZ865/WhyteBox/tensor"
	"github.com/CoderZ865/WhyteBox/vis"
)

// ActivationOptions bounds an activation rendering request.
type ActivationOptions struct {
	// MaxChannels caps how many feature-map channels are rendered.
	MaxChannels int
	// Size is the side length of each rendered tile in pixels.
	Size int
}

func DefaultActivationOptions() ActivationOptions {
	return ActivationOptions{MaxChannels: 16, Size: 64}
}

// Activations runs the image through the model up to and including the
// named layer and renders each feature-map channel as a heat tile. The
// image is resized to the model's input resolution and scaled to [0, 1];
// layers that produce non-spatial output cannot be rendered this way.
func (ins *Inspector) Activations(ctx context.Context, img image.Image, layerName string, opts ActivationOptions) ([]vis.Tile, error) {
	if ins.model == nil {
		return nil, model.ErrModelUnavailable
	}
	if opts.MaxChannels <= 0 || opts.Size <= 0 {
		opts = DefaultActivationOptions()
	}

	scope := newScope()
	defer scope.Release()

	in := ins.model.InputShape()
	resized := vis.ResizeImage(img, in[3], in[2])
	x, err := vis.TensorFromImage(resized)
	if err != nil {
		return nil, fmt.Errorf("activations input: %w", err)
	}
	scope.Track(x)

	act, err := ins.model.ForwardTo(x, layerName)
	if err != nil {
		return nil, err
	}
	scope.Track(act)

	shape := act.GetShape()
	if len(shape) != 4 || shape[0] != 1 {
		return nil, fmt.Errorf("layer %q output has shape %v, not a spatial feature map: %w",
			layerName, shape, model.ErrUnsupportedLayerKind)
	}
	channels, h, w := shape[1], shape[2], shape[3]
	data := act.GetData()

	n := channels
	if n > opts.MaxChannels {
		n = opts.MaxChannels
	}

	tiles := make([]vis.Tile, 0, n)
	for c := 0; c < n; c++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("activations at channel %d: %w", c, ctx.Err())
		default:
		}

		tile, err := channelTile(data[c*h*w:(c+1)*h*w], h, w, layerName, c, opts.Size)
		if err != nil {
			ins.logger.Printf("activations: skipping %s channel %d: %v", layerName, c, err)
			continue
		}
		tiles = append(tiles, tile)
	}
	return tiles, nil
}

func channelTile(plane []float64, h, w int, layerName string, c, size int) (vis.Tile, error) {
	scope := newScope()
	defer scope.Release()

	t, err := scope.NewTensor([]int{h, w}, append([]float64(nil), plane...))
	if err != nil {
		return vis.Tile{}, err
	}

	normalized, err := tensor.NormalizeUnit(t)
	if err != nil {
		return vis.Tile{}, err
	}
	scope.Track(normalized)

	resized, err := tensor.ResizeBilinear2D(normalized, size, size)
	if err != nil {
		return vis.Tile{}, err
	}
	scope.Track(resized)

	img, err := vis.MapToRGBA(resized, vis.RedGreen)
	if err != nil {
		return vis.Tile{}, err
	}
	return vis.Tile{Label: fmt.Sprintf("%s ch %d", layerName, c), Image: img}, nil
}
