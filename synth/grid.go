package synth

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/CoderZ865/WhyteBox/model"
	"github.com/CoderZ865/WhyteBox/vis"
)

// GridOptions controls a whole-layer synthesis batch.
type GridOptions struct {
	// NumFilters is how many filters to synthesize, capped at the layer's
	// channel count. Zero selects the default.
	NumFilters int
	// GridWidth is the number of tiles per row. Zero selects the default.
	GridWidth int
	// Filter configures each individual synthesis run; its Width and
	// Height also set the tile size.
	Filter Options
}

func DefaultGridOptions() GridOptions {
	return GridOptions{
		NumFilters: 8,
		GridWidth:  4,
		Filter:     DefaultOptions(),
	}
}

// VisualizeLayerFilters synthesizes the first NumFilters filters of a layer
// and assembles them into a grid image. A filter whose run fails is
// replaced by a blank tile so one bad filter never loses the rest of the
// batch; cancellation aborts the whole batch.
func (s *Synthesizer) VisualizeLayerFilters(ctx context.Context, layerName string, opts GridOptions) (*image.RGBA, []vis.Tile, error) {
	if s.model == nil {
		return nil, nil, model.ErrModelUnavailable
	}
	d := DefaultGridOptions()
	if opts.NumFilters <= 0 {
		opts.NumFilters = d.NumFilters
	}
	if opts.GridWidth <= 0 {
		opts.GridWidth = d.GridWidth
	}
	opts.Filter = opts.Filter.withDefaults()

	if _, err := s.model.Layer(layerName); err != nil {
		return nil, nil, err
	}
	channels, err := s.channelsAt(layerName)
	if err != nil {
		return nil, nil, err
	}
	n := opts.NumFilters
	if n > channels {
		n = channels
	}

	tiles := make([]vis.Tile, 0, n)
	for f := 0; f < n; f++ {
		label := fmt.Sprintf("%s filter %d", layerName, f)

		synthesized, err := s.VisualizeFilter(ctx, layerName, f, opts.Filter)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, nil, err
			}
			s.logger.Printf("layer grid: blank tile for %s: %v", label, err)
			tiles = append(tiles, vis.BlankTile(opts.Filter.Width, opts.Filter.Height, label))
			continue
		}

		img, err := vis.ImageFromTensor(synthesized)
		synthesized.Release()
		if err != nil {
			s.logger.Printf("layer grid: blank tile for %s: %v", label, err)
			tiles = append(tiles, vis.BlankTile(opts.Filter.Width, opts.Filter.Height, label))
			continue
		}
		tiles = append(tiles, vis.Tile{Label: label, Image: img})
	}

	grid, err := vis.Grid(tiles, opts.GridWidth, opts.Filter.Width, opts.Filter.Height)
	if err != nil {
		return nil, nil, err
	}
	return grid, tiles, nil
}
