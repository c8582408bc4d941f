package utility

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/CoderZ865/WhyteBox/model"
	"github.com/CoderZ865/WhyteBox/tensor"
)

// ModelInspector renders layer tables and parameter counts for a model,
// the textual counterpart of the layer list the UI shows for selection.
type ModelInspector struct {
	model *model.Model
}

func NewModelInspector(m *model.Model) *ModelInspector {
	return &ModelInspector{model: m}
}

// Summary writes a per-layer table with kinds and parameter shapes.
func (mi *ModelInspector) Summary(out io.Writer) {
	fmt.Fprintf(out, "\n--- Model: %s (family %s, input %v) ---\n", mi.model.Name(), mi.model.Family(), mi.model.InputShape())
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Layer\tKind\tType\tParam Shapes\tParam #")
	fmt.Fprintln(w, "-----\t----\t----\t------------\t-------")

	for _, nl := range mi.model.Layers() {
		params := nl.Layer.Parameters()
		count := 0
		shapes := ""
		for i, p := range params {
			count += tensor.Numel(p)
			if i > 0 {
				shapes += " "
			}
			shapes += fmt.Sprintf("%v", p.GetShape())
		}
		if shapes == "" {
			shapes = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", nl.Name, nl.Kind, nl.Layer.Name(), shapes, count)
	}
	w.Flush()

	total := mi.CountParameters()
	fmt.Fprintln(out, "----------------------------------")
	fmt.Fprintf(out, "Total Parameters: %d\n", total)
	fmt.Fprintln(out, "----------------------------------")
}

// CountParameters sums parameter element counts across all layers.
func (mi *ModelInspector) CountParameters() (total int64) {
	for _, nl := range mi.model.Layers() {
		for _, p := range nl.Layer.Parameters() {
			total += int64(tensor.Numel(p))
		}
	}
	return total
}
