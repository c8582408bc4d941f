// Command whytebox demonstrates every explanation the library offers
// against the bundled reference model: top-K prediction, a GradCAM
// overlay, an Integrated Gradients map, filter and activation grids, and
// an activation-maximization run with an optional live dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/CoderZ865/WhyteBox/attribution"
	"github.com/CoderZ865/WhyteBox/inspect"
	"github.com/CoderZ865/WhyteBox/mobilenet"
	"github.com/CoderZ865/WhyteBox/model"
	"github.com/CoderZ865/WhyteBox/predict"
	"github.com/CoderZ865/WhyteBox/synth"
	"github.com/CoderZ865/WhyteBox/utility"
	"github.com/CoderZ865/WhyteBox/vis"
)

func main() {
	var (
		imagePath   = flag.String("image", "", "input image (png/jpeg); a synthetic pattern is used when empty")
		modelPaths  = flag.String("models", "", "comma-separated descriptor JSON files tried in order before the embedded model")
		layerName   = flag.String("layer", "block1_expand", "internal layer to explain")
		classIndex  = flag.Int("class", -1, "class to attribute; -1 uses the top prediction")
		filterIndex = flag.Int("filter", 0, "filter to synthesize")
		steps       = flag.Int("steps", attribution.DefaultSteps, "integrated gradients path steps")
		iterations  = flag.Int("iterations", 150, "activation maximization iterations")
		outDir      = flag.String("out", "out", "directory for rendered PNGs")
		seed        = flag.Int64("seed", 42, "rng seed for weights and noise")
		dashboard   = flag.Bool("dashboard", false, "show the live synthesis dashboard")
	)
	flag.Parse()

	logger := utility.DefaultLogger()
	rng := rand.New(rand.NewSource(*seed))
	ctx := context.Background()

	var paths []string
	if *modelPaths != "" {
		paths = strings.Split(*modelPaths, ",")
	}
	m, strategyIndex, err := model.LoadFirst(mobilenet.Strategies(paths, rng)...)
	if err != nil {
		log.Fatalf("no loadable model: %v", err)
	}
	logger.Printf("loaded model %q via strategy %d", m.Name(), strategyIndex)

	mi := utility.NewModelInspector(m)
	mi.Summary(os.Stdout)
	fmt.Printf("parameters: %d\n\n", mi.CountParameters())

	img, err := loadOrSynthesizeImage(*imagePath)
	if err != nil {
		log.Fatalf("input image: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("output directory: %v", err)
	}

	// Classification.
	helper := predict.NewHelper(m, nil, logger)
	result, err := helper.Predict(img)
	if err != nil {
		log.Fatalf("prediction: %v", err)
	}
	fmt.Println("top predictions:")
	for _, p := range result.TopPredictions {
		fmt.Printf("  %-10s %.4f\n", p.ClassName, p.Probability)
	}
	fmt.Println()

	// GradCAM.
	engine := attribution.NewEngine(m, logger)
	x, err := helper.Preprocess(img)
	if err != nil {
		log.Fatalf("preprocess: %v", err)
	}
	defer x.Release()

	heat, err := engine.Heatmap(ctx, x, *layerName, *classIndex)
	if err != nil {
		log.Fatalf("gradcam: %v", err)
	}
	overlay, err := attribution.ApplyHeatmap(img, heat, 0)
	heat.Release()
	if err != nil {
		log.Fatalf("gradcam overlay: %v", err)
	}
	mustSavePNG(filepath.Join(*outDir, "gradcam.png"), overlay)

	// Integrated Gradients.
	attr, err := engine.Attributions(ctx, x, *classIndex, *steps)
	if err != nil {
		log.Fatalf("integrated gradients: %v", err)
	}
	attrImg, err := attribution.ColorizeAttributions(attr)
	attr.Release()
	if err != nil {
		log.Fatalf("attribution render: %v", err)
	}
	mustSavePNG(filepath.Join(*outDir, "attributions.png"), attrImg)

	// Learned filters and activations.
	inspector := inspect.NewInspector(m, logger)
	filterTiles, err := inspector.Filters(*layerName, inspect.DefaultFilterOptions())
	if err != nil {
		log.Fatalf("filters: %v", err)
	}
	saveTileGrid(filepath.Join(*outDir, "filters.png"), filterTiles, 4, 64, 64)

	actTiles, err := inspector.Activations(ctx, img, *layerName, inspect.DefaultActivationOptions())
	if err != nil {
		log.Fatalf("activations: %v", err)
	}
	saveTileGrid(filepath.Join(*outDir, "activations.png"), actTiles, 4, 64, 64)

	// Activation maximization for one filter, with the optional TUI.
	synthesizer := synth.NewSynthesizer(m, logger, rng)
	opts := synth.DefaultOptions()
	opts.Iterations = *iterations

	var dash *utility.SynthesisDashboard
	if *dashboard {
		dash = utility.NewSynthesisDashboard(*layerName, *filterIndex, opts.Iterations, opts.LearningRate)
		opts.Progress = dash.Update
	} else {
		opts.Progress = func(iteration, total int, objective, best float64) {
			if iteration%25 == 0 || iteration == total {
				logger.Printf("synthesis %d/%d objective=%.5f best=%.5f", iteration, total, objective, best)
			}
		}
	}

	synthesized, err := synthesizer.VisualizeFilter(ctx, *layerName, *filterIndex, opts)
	if dash != nil {
		if err == nil {
			dash.Log("synthesis finished, press q to continue")
			dash.Loop()
		}
		dash.Close()
	}
	if err != nil {
		log.Fatalf("synthesis: %v", err)
	}
	synthImg, err := vis.ImageFromTensor(synthesized)
	synthesized.Release()
	if err != nil {
		log.Fatalf("synthesis render: %v", err)
	}
	mustSavePNG(filepath.Join(*outDir, "synthesized.png"), synthImg)

	// Whole-layer synthesis grid with smaller, faster runs.
	gridOpts := synth.DefaultGridOptions()
	gridOpts.Filter.Iterations = 30
	gridOpts.Filter.Width = 64
	gridOpts.Filter.Height = 64
	layerGrid, _, err := synthesizer.VisualizeLayerFilters(ctx, *layerName, gridOpts)
	if err != nil {
		log.Fatalf("layer synthesis: %v", err)
	}
	mustSavePNG(filepath.Join(*outDir, "layer_filters.png"), layerGrid)

	fmt.Printf("rendered explanations written to %s\n", *outDir)
}

func loadOrSynthesizeImage(path string) (image.Image, error) {
	if path == "" {
		return syntheticImage(mobilenet.InputSize * 4), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return vis.DecodeAndResize(f, mobilenet.InputSize*4, mobilenet.InputSize*4)
}

// syntheticImage draws concentric color rings so every demo artifact has
// visible structure even without a real photograph.
func syntheticImage(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cx, cy := float64(size)/2, float64(size)/2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)-cx, float64(y)-cy) / (float64(size) / 2)
			img.SetRGBA(x, y, color.RGBA{
				uint8(127.5 * (1 + math.Sin(d*8))),
				uint8(127.5 * (1 + math.Cos(d*5))),
				uint8(255 * math.Max(0, 1-d)),
				255,
			})
		}
	}
	return img
}

func saveTileGrid(path string, tiles []vis.Tile, gridWidth, tileW, tileH int) {
	if len(tiles) == 0 {
		log.Printf("no tiles for %s, skipping", path)
		return
	}
	grid, err := vis.Grid(tiles, gridWidth, tileW, tileH)
	if err != nil {
		log.Fatalf("grid for %s: %v", path, err)
	}
	mustSavePNG(path, grid)
}

func mustSavePNG(path string, img image.Image) {
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		log.Fatalf("encode %s: %v", path, err)
	}
}
