package inspect

import (
	"fmt"

	"github.com/CoderZ865/WhyteBox/model"
	"github.com/CoderZ865/WhyteBox/tensor"
	"github.com/CoderZ865/WhyteBox/vis"
)

// FilterOptions bounds a filter-weight rendering request.
type FilterOptions struct {
	// MaxFilters caps how many output filters are rendered.
	MaxFilters int
	// Size is the side length of each rendered tile in pixels.
	Size int
}

func DefaultFilterOptions() FilterOptions {
	return FilterOptions{MaxFilters: 16, Size: 64}
}

// Filters renders the kernel weights of the named layer as grayscale tiles,
// one per output filter, each averaged over its input channels and
// normalized independently. Filters that fail to render are skipped with a
// warning rather than failing the batch.
func (ins *Inspector) Filters(layerName string, opts FilterOptions) ([]vis.Tile, error) {
	if ins.model == nil {
		return nil, model.ErrModelUnavailable
	}
	if opts.MaxFilters <= 0 || opts.Size <= 0 {
		opts = DefaultFilterOptions()
	}

	handle, err := ins.model.Layer(layerName)
	if err != nil {
		return nil, err
	}
	if !handle.Kind.HasKernel() || handle.Weights == nil {
		return nil, fmt.Errorf("layer %q has kind %s: %w", layerName, handle.Kind, model.ErrUnsupportedLayerKind)
	}

	shape := handle.Weights.GetShape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("layer %q weights have shape %v: %w", layerName, shape, model.ErrUnsupportedLayerKind)
	}
	outC, inC, kh, kw := shape[0], shape[1], shape[2], shape[3]

	n := outC
	if n > opts.MaxFilters {
		n = opts.MaxFilters
	}

	tiles := make([]vis.Tile, 0, n)
	for f := 0; f < n; f++ {
		tile, err := ins.filterTile(handle.Weights, f, inC, kh, kw, layerName, opts.Size)
		if err != nil {
			ins.logger.Printf("filters: skipping %s filter %d: %v", layerName, f, err)
			continue
		}
		tiles = append(tiles, tile)
	}
	return tiles, nil
}

func (ins *Inspector) filterTile(weights *tensor.Tensor, f, inC, kh, kw int, layerName string, size int) (vis.Tile, error) {
	scope := newScope()
	defer scope.Release()

	// Average the kernel over input channels to get one plane per filter.
	data := weights.GetData()
	plane := make([]float64, kh*kw)
	base := f * inC * kh * kw
	for c := 0; c < inC; c++ {
		off := base + c*kh*kw
		for i := 0; i < kh*kw; i++ {
			plane[i] += data[off+i]
		}
	}
	for i := range plane {
		plane[i] /= float64(inC)
	}

	t, err := scope.NewTensor([]int{kh, kw}, plane)
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

	img, err := vis.MapToRGBA(resized, vis.Grayscale)
	if err != nil {
		return vis.Tile{}, err
	}
	return vis.Tile{Label: fmt.Sprintf("%s filter %d", layerName, f), Image: img}, nil
}
