// Package vis converts normalized tensor maps into displayable pixel
// buffers: colorization, overlay blending, tile grids and image ingestion.
package vis

// Colormap maps a normalized scalar in [0, 1] to RGB components in [0, 1].
type Colormap func(v float64) (r, g, b float64)

// Each visualization method keeps its own ramp so users can tell at a
// glance which technique produced an image.
var (
	// HeatRedBlack is the GradCAM ramp: black through red.
	HeatRedBlack Colormap = func(v float64) (float64, float64, float64) {
		return v, 0.5 * v, 0
	}

	// BlueYellowRed is the Integrated Gradients ramp: blue for low
	// magnitude through yellow to red for high magnitude.
	BlueYellowRed Colormap = func(v float64) (float64, float64, float64) {
		return v, 0.8 * v, 1 - v
	}

	// RedGreen is the activation-map ramp: green where the channel is
	// quiet, red where it fires.
	RedGreen Colormap = func(v float64) (float64, float64, float64) {
		return v, 1 - v, 0
	}

	// Grayscale renders filter weights without implying polarity.
	Grayscale Colormap = func(v float64) (float64, float64, float64) {
		return v, v, v
	}
)
