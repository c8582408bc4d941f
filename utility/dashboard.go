package utility

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
)

// SynthesisDashboard is a TUI for watching a feature-visualization run:
// the objective curve of the gradient ascent, the best value seen so far,
// and iteration progress. Only the demo binary drives it; the synthesizer
// itself just emits progress callbacks.
type SynthesisDashboard struct {
	grid *ui.Grid

	objectivePlot *widgets.Plot
	progressGauge *widgets.Gauge
	statusList    *widgets.List
	paramList     *widgets.List
	logParagraph  *widgets.Paragraph

	objectiveData []float64
	best          float64
	startTime     time.Time
	renderMutex   sync.Mutex
}

func NewSynthesisDashboard(layerName string, filterIndex, iterations int, learningRate float64) *SynthesisDashboard {
	if err := ui.Init(); err != nil {
		log.Fatalf("failed to initialize termui: %v", err)
	}

	d := &SynthesisDashboard{
		objectiveData: []float64{0, 0},
		startTime:     time.Now(),
	}

	d.objectivePlot = widgets.NewPlot()
	d.objectivePlot.Title = "Objective (filter activation - L2 penalty)"
	d.objectivePlot.Data = [][]float64{d.objectiveData}
	d.objectivePlot.LineColors[0] = ui.ColorMagenta

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Iterations"
	d.progressGauge.BarColor = ui.ColorBlue

	d.statusList = widgets.NewList()
	d.statusList.Title = "Ascent Status"

	d.paramList = widgets.NewList()
	d.paramList.Title = "Run Parameters"
	d.paramList.Rows = []string{
		fmt.Sprintf("Layer: %s", layerName),
		fmt.Sprintf("Filter: %d", filterIndex),
		fmt.Sprintf("Iterations: %d", iterations),
		fmt.Sprintf("Learn Rate: %.4f", learningRate),
	}

	d.logParagraph = widgets.NewParagraph()
	d.logParagraph.Title = "Event Log"

	d.grid = ui.NewGrid()
	termWidth, termHeight := ui.TerminalDimensions()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.5, ui.NewCol(1.0, d.objectivePlot)),
		ui.NewRow(0.3, ui.NewCol(0.5, d.statusList), ui.NewCol(0.5, d.paramList)),
		ui.NewRow(0.2, ui.NewCol(1.0, ui.NewRow(0.5, d.progressGauge), ui.NewRow(0.5, d.logParagraph))),
	)

	return d
}

// downsample averages the history into bins so the curve fits the plot.
func (d *SynthesisDashboard) downsample(data []float64, targetWidth int) []float64 {
	if targetWidth <= 0 || len(data) <= targetWidth {
		return data
	}

	downsampled := make([]float64, targetWidth)
	binSize := float64(len(data)) / float64(targetWidth)

	for i := 0; i < targetWidth; i++ {
		start := int(float64(i) * binSize)
		end := int(float64(i+1) * binSize)
		if end > len(data) {
			end = len(data)
		}
		bin := data[start:end]
		if len(bin) == 0 {
			if i > 0 {
				downsampled[i] = downsampled[i-1]
			}
			continue
		}
		var sum float64
		for _, v := range bin {
			sum += v
		}
		downsampled[i] = sum / float64(len(bin))
	}
	return downsampled
}

// Update appends an objective sample and re-renders. Matches the signature
// of synth.ProgressFunc so it can be passed directly as a callback.
func (d *SynthesisDashboard) Update(iteration, totalIterations int, objective, best float64) {
	d.renderMutex.Lock()
	defer d.renderMutex.Unlock()

	d.objectiveData = append(d.objectiveData, objective)
	d.best = best

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	d.statusList.Rows = []string{
		fmt.Sprintf("Iteration: %d / %d", iteration, totalIterations),
		fmt.Sprintf("Objective: %.6f", objective),
		fmt.Sprintf("Best: %.6f", best),
		fmt.Sprintf("Elapsed: %v", time.Since(d.startTime).Round(time.Second)),
		fmt.Sprintf("Heap Alloc: %d MiB", memStats.Alloc/1024/1024),
	}
	if totalIterations > 0 {
		d.progressGauge.Percent = iteration * 100 / totalIterations
	}
	d.objectivePlot.Data[0] = d.downsample(d.objectiveData, d.objectivePlot.Inner.Dx())

	ui.Render(d.grid)
}

// Log replaces the event-log panel text.
func (d *SynthesisDashboard) Log(message string) {
	d.renderMutex.Lock()
	defer d.renderMutex.Unlock()
	d.logParagraph.Text = message
	ui.Render(d.grid)
}

func (d *SynthesisDashboard) Close() { ui.Close() }

// Loop blocks until the user quits with q or Ctrl-C.
func (d *SynthesisDashboard) Loop() {
	uiEvents := ui.PollEvents()
	for {
		e := <-uiEvents
		if e.ID == "q" || e.ID == "<C-c>" {
			return
		}
	}
}
