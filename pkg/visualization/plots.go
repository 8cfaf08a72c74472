package visualization

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"slicermorph/internal/models"
	"slicermorph/pkg/interpolation"
	"slicermorph/pkg/stl"
)

// LollipopSlots is the number of lollipop vector plots shown side by side
const LollipopSlots = 3

var lollipopColors = [LollipopSlots]color.RGBA{
	{255, 0, 0, 255},
	{0, 255, 0, 255},
	{0, 0, 255, 255},
}

// PlotOptions controls glyph geometry
type PlotOptions struct {
	TubeRadius       float64
	TubeSides        int
	SphereResolution int
	PointRadius      float64
}

// DefaultPlotOptions matches the host plugin's glyph settings
func DefaultPlotOptions() PlotOptions {
	return PlotOptions{
		TubeRadius:       0.7,
		TubeSides:        20,
		SphereResolution: 16,
		PointRadius:      0.5,
	}
}

// Plots owns the scene nodes of the morphometrics plots. Each plot has its
// own handle, created once, so rebuilding a plot replaces its node content
// instead of creating a duplicate.
type Plots struct {
	scene *Scene
	opts  PlotOptions

	Lollipops      [LollipopSlots]Handle
	PointCloud     Handle
	VarianceSphere Handle
	VarianceEllips Handle
	DistanceTable  Handle
	ScatterTable   Handle
	Warp           Handle
}

// NewPlots registers the plot nodes in scene
func NewPlots(scene *Scene, opts PlotOptions) *Plots {
	p := &Plots{scene: scene, opts: opts}
	for i := range p.Lollipops {
		p.Lollipops[i] = scene.AddModel(fmt.Sprintf("Lollipop Vector Plot %d", i+1))
	}
	p.PointCloud = scene.AddModel("Landmark Point Cloud")
	p.VarianceSphere = scene.AddModel("Landmark Variance Sphere")
	p.VarianceEllips = scene.AddModel("Landmark Variance Ellipse")
	p.DistanceTable = scene.AddTable("Procrustes Distance Table")
	p.ScatterTable = scene.AddTable("PCA Scatter Plot Table")
	p.Warp = scene.AddTransform("TPS Transform")
	return p
}

// Lollipop draws one tube per landmark from base to endpoints in the given
// slot. A nil endpoints hides the slot.
func (p *Plots) Lollipop(slot int, base, endpoints mat.Matrix) error {
	if slot < 0 || slot >= LollipopSlots {
		return errors.Errorf("visualization: lollipop slot %d out of range", slot)
	}
	model, err := p.scene.Model(p.Lollipops[slot])
	if err != nil {
		return err
	}
	if endpoints == nil {
		model.Visible = false
		return nil
	}

	rows, _ := base.Dims()
	if er, _ := endpoints.Dims(); er != rows {
		return errors.Errorf("visualization: %d base landmarks but %d endpoints", rows, er)
	}

	magnitude := make([]float64, rows)
	var tris []stl.Triangle
	for l := 0; l < rows; l++ {
		a := rowOf(base, l)
		b := rowOf(endpoints, l)
		magnitude[l] = math.Abs(a[0]-b[0]) + math.Abs(a[1]-b[1]) + math.Abs(a[2]-b[2])
		tris = append(tris, stl.Tube(a, b, p.opts.TubeRadius, p.opts.TubeSides, true)...)
	}

	model.Triangles = tris
	model.TriangleColors = nil
	model.Color = lollipopColors[slot]
	model.Scalars = map[string][]float64{"Magnitude": magnitude}
	model.Visible = true
	return nil
}

// PointCloudPlot shows every landmark of every subject as a small sphere
// coloured by landmark index.
func (p *Plots) PointCloudPlot(set *models.LandmarkSet) error {
	model, err := p.scene.Model(p.PointCloud)
	if err != nil {
		return err
	}

	numLandmarks := set.NumLandmarks()
	var tris []stl.Triangle
	var colors []color.RGBA
	var index []float64
	for s := 0; s < set.NumSubjects(); s++ {
		for l := 0; l < numLandmarks; l++ {
			sphere := stl.Sphere(rowOf(set.Configs[s], l), p.opts.PointRadius, p.opts.SphereResolution)
			tris = append(tris, sphere...)
			colors = appendColor(colors, ColdToHot(indexFraction(l, numLandmarks)), len(sphere))
			index = append(index, float64(l))
		}
	}

	model.Triangles = tris
	model.TriangleColors = colors
	model.Scalars = map[string][]float64{"LM Index": index}
	model.Visible = true
	return nil
}

// DistributionGlyphs places a glyph at each reference landmark sized by the
// landmark variation. Ellipses use the per-axis variation as radii; spheres
// use its mean. The other glyph node is hidden.
func (p *Plots) DistributionGlyphs(reference, variation mat.Matrix, glyphScale float64, ellipse bool) error {
	rows, _ := reference.Dims()
	if vr, _ := variation.Dims(); vr != rows {
		return errors.Errorf("visualization: %d reference landmarks but %d variation rows", rows, vr)
	}

	show, hide := p.VarianceSphere, p.VarianceEllips
	if ellipse {
		show, hide = hide, show
	}
	model, err := p.scene.Model(show)
	if err != nil {
		return err
	}
	hidden, err := p.scene.Model(hide)
	if err != nil {
		return err
	}
	hidden.Visible = false

	var tris []stl.Triangle
	var colors []color.RGBA
	scales := make([]float64, rows)
	for l := 0; l < rows; l++ {
		v := rowOf(variation, l)
		radii := [3]float64{glyphScale * v[0], glyphScale * v[1], glyphScale * v[2]}
		scales[l] = (radii[0] + radii[1] + radii[2]) / 3
		if !ellipse {
			radii = [3]float64{scales[l], scales[l], scales[l]}
		}
		glyph := stl.Ellipsoid(rowOf(reference, l), radii, p.opts.SphereResolution)
		tris = append(tris, glyph...)
		colors = appendColor(colors, ColdToHot(indexFraction(l, rows)), len(glyph))
	}

	model.Triangles = tris
	model.TriangleColors = colors
	model.Scalars = map[string][]float64{"Scales": scales}
	model.Visible = true
	return nil
}

// DistanceTablePlot fills the distance table sorted by increasing distance
func (p *Plots) DistanceTablePlot(ids []string, distances []float64) error {
	table, err := p.scene.Table(p.DistanceTable)
	if err != nil {
		return err
	}
	if len(ids) != len(distances) {
		return errors.Errorf("visualization: %d identifiers for %d distances", len(ids), len(distances))
	}

	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return distances[order[a]] < distances[order[b]] })

	table.Columns = []string{"ID", "Procrustes Distance"}
	table.Rows = table.Rows[:0]
	for _, i := range order {
		table.Rows = append(table.Rows, []string{ids[i], strconv.FormatFloat(distances[i], 'g', -1, 64)})
	}
	return nil
}

// ScatterTablePlot fills the scatter table from a subjects×2 projection
func (p *Plots) ScatterTablePlot(ids []string, projection mat.Matrix, xTitle, yTitle string) error {
	table, err := p.scene.Table(p.ScatterTable)
	if err != nil {
		return err
	}
	rows, _ := projection.Dims()
	if rows != len(ids) {
		return errors.Errorf("visualization: %d identifiers for %d projected subjects", len(ids), rows)
	}

	table.Columns = []string{xTitle, yTitle, "Subject ID"}
	table.Rows = table.Rows[:0]
	for r := 0; r < rows; r++ {
		table.Rows = append(table.Rows, []string{
			strconv.FormatFloat(projection.At(r, 0), 'g', -1, 64),
			strconv.FormatFloat(projection.At(r, 1), 'g', -1, 64),
			ids[r],
		})
	}
	return nil
}

// WarpPlot builds the thin-plate spline taking source landmarks to target
func (p *Plots) WarpPlot(source, target mat.Matrix) (*interpolation.ThinPlateSpline, error) {
	transform, err := p.scene.Transform(p.Warp)
	if err != nil {
		return nil, err
	}
	tps, err := interpolation.NewThinPlateSpline(source, target)
	if err != nil {
		return nil, err
	}
	transform.Warp = tps
	return tps, nil
}

func rowOf(m mat.Matrix, r int) [3]float64 {
	return [3]float64{m.At(r, 0), m.At(r, 1), m.At(r, 2)}
}

func indexFraction(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}

func appendColor(colors []color.RGBA, c color.RGBA, n int) []color.RGBA {
	for i := 0; i < n; i++ {
		colors = append(colors, c)
	}
	return colors
}

// ColdToHot maps t in [0,1] onto a blue → cyan → green → yellow → red ramp
func ColdToHot(t float64) color.RGBA {
	t = math.Max(0, math.Min(1, t))
	stops := [][3]float64{
		{0, 0, 255},
		{0, 255, 255},
		{0, 255, 0},
		{255, 255, 0},
		{255, 0, 0},
	}
	pos := t * float64(len(stops)-1)
	i := int(pos)
	if i >= len(stops)-1 {
		i = len(stops) - 2
	}
	f := pos - float64(i)
	a, b := stops[i], stops[i+1]
	return color.RGBA{
		R: uint8(math.Round(a[0] + (b[0]-a[0])*f)),
		G: uint8(math.Round(a[1] + (b[1]-a[1])*f)),
		B: uint8(math.Round(a[2] + (b[2]-a[2])*f)),
		A: 255,
	}
}
