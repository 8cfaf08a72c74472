// Package visualization holds the display side of the morphometrics tools:
// an explicit scene registry, builders for lollipop, distribution, scatter
// and distance plots, and a software viewer that renders the scene.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	xdraw "golang.org/x/image/draw"

	"slicermorph/pkg/stl"
)

// Camera is an orthographic camera
type Camera struct {
	Position   [3]float64
	FocalPoint [3]float64
	ViewUp     [3]float64

	// ParallelScale is half the viewport height in world units
	ParallelScale float64
}

// Viewer renders the visible models of a Scene with flat shading and a depth
// buffer. Rendering is supersampled and then resampled down to the viewport
// size for smooth edges.
type Viewer struct {
	scene *Scene

	// dimensions of the viewport in pixels
	width  int
	height int

	camera     Camera
	background color.RGBA

	// supersample is the linear oversampling factor used while rasterising
	supersample int
}

// NewViewer creates a viewer on scene with a default camera looking down -z
func NewViewer(scene *Scene, width, height int) *Viewer {
	return &Viewer{
		scene:  scene,
		width:  width,
		height: height,
		camera: Camera{
			Position:      [3]float64{0, 0, 1},
			ViewUp:        [3]float64{0, 1, 0},
			ParallelScale: 1,
		},
		background:  color.RGBA{255, 255, 255, 255},
		supersample: 2,
	}
}

// Size returns the viewport size in pixels
func (v *Viewer) Size() (int, int) { return v.width, v.height }

// Resize changes the viewport size
func (v *Viewer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid viewport size %dx%d", width, height)
	}
	v.width, v.height = width, height
	return nil
}

// Camera returns the current camera
func (v *Viewer) Camera() Camera { return v.camera }

// SetCamera replaces the camera
func (v *Viewer) SetCamera(c Camera) { v.camera = c }

// SaveState records size and camera and returns a function restoring them
func (v *Viewer) SaveState() func() {
	w, h, cam := v.width, v.height, v.camera
	return func() {
		v.width, v.height, v.camera = w, h, cam
	}
}

// ResetCamera frames every visible model, looking along direction with the
// given up vector.
func (v *Viewer) ResetCamera(direction, up [3]float64) {
	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	found := false
	for _, h := range v.scene.Handles(KindModel) {
		m, _ := v.scene.Model(h)
		if !m.Visible {
			continue
		}
		for _, t := range m.Triangles {
			for _, p := range [][3]float32{t.Vertex1, t.Vertex2, t.Vertex3} {
				for c := 0; c < 3; c++ {
					lo[c] = math.Min(lo[c], float64(p[c]))
					hi[c] = math.Max(hi[c], float64(p[c]))
				}
				found = true
			}
		}
	}
	if !found {
		return
	}

	box := r3.Box{Min: stl.Vec(lo), Max: stl.Vec(hi)}
	center := box.Center()
	radius := 0.5 * r3.Norm(box.Size())
	if radius == 0 {
		radius = 1
	}
	d := stl.Unit(stl.Vec(direction))
	v.camera = Camera{
		FocalPoint:    stl.Point(center),
		Position:      stl.Point(r3.Sub(center, r3.Scale(radius*4, d))),
		ViewUp:        up,
		ParallelScale: radius * 1.1,
	}
}

// Render draws the scene at the current size
func (v *Viewer) Render() (image.Image, error) {
	if v.width <= 0 || v.height <= 0 {
		return nil, fmt.Errorf("invalid viewport size %dx%d", v.width, v.height)
	}
	ss := v.supersample
	if ss < 1 {
		ss = 1
	}
	w, h := v.width*ss, v.height*ss

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(canvas.Pix); i += 4 {
		canvas.Pix[i+0] = v.background.R
		canvas.Pix[i+1] = v.background.G
		canvas.Pix[i+2] = v.background.B
		canvas.Pix[i+3] = v.background.A
	}
	depth := make([]float64, w*h)
	for i := range depth {
		depth[i] = math.Inf(1)
	}

	proj, err := newProjection(v.camera, w, h)
	if err != nil {
		return nil, err
	}
	for _, handle := range v.scene.Handles(KindModel) {
		m, _ := v.scene.Model(handle)
		if !m.Visible {
			continue
		}
		for i, t := range m.Triangles {
			c := m.Color
			if m.TriangleColors != nil && i < len(m.TriangleColors) {
				c = m.TriangleColors[i]
			}
			proj.rasterize(canvas, depth, t, c)
		}
	}

	if ss == 1 {
		return canvas, nil
	}
	out := image.NewRGBA(image.Rect(0, 0, v.width, v.height))
	xdraw.CatmullRom.Scale(out, out.Bounds(), canvas, canvas.Bounds(), xdraw.Src, nil)
	return out, nil
}

// projection maps world coordinates to pixel coordinates and depth
type projection struct {
	focal          r3.Vec
	right, up, fwd r3.Vec
	pxPerUnit      float64
	cx, cy         float64
}

func newProjection(c Camera, w, h int) (*projection, error) {
	fwd := stl.Unit(r3.Sub(stl.Vec(c.FocalPoint), stl.Vec(c.Position)))
	right := stl.Unit(r3.Cross(fwd, stl.Vec(c.ViewUp)))
	if fwd == (r3.Vec{}) || right == (r3.Vec{}) {
		return nil, fmt.Errorf("degenerate camera: position %v, focal point %v, view up %v", c.Position, c.FocalPoint, c.ViewUp)
	}
	scale := c.ParallelScale
	if scale <= 0 {
		scale = 1
	}
	return &projection{
		focal:     stl.Vec(c.FocalPoint),
		right:     right,
		up:        r3.Cross(right, fwd),
		fwd:       fwd,
		pxPerUnit: float64(h) / 2 / scale,
		cx:        float64(w) / 2,
		cy:        float64(h) / 2,
	}, nil
}

func (p *projection) project(q [3]float32) (x, y, z float64) {
	d := r3.Sub(vec32(q), p.focal)
	return p.cx + r3.Dot(d, p.right)*p.pxPerUnit, p.cy - r3.Dot(d, p.up)*p.pxPerUnit, r3.Dot(d, p.fwd)
}

func (p *projection) rasterize(img *image.RGBA, depth []float64, t stl.Triangle, c color.RGBA) {
	x0, y0, z0 := p.project(t.Vertex1)
	x1, y1, z1 := p.project(t.Vertex2)
	x2, y2, z2 := p.project(t.Vertex3)

	area := (x1-x0)*(y2-y0) - (x2-x0)*(y1-y0)
	if area == 0 {
		return
	}

	shade := 0.3 + 0.7*math.Abs(r3.Dot(vec32(t.Normal), p.fwd))
	fill := color.RGBA{
		R: uint8(float64(c.R) * shade),
		G: uint8(float64(c.G) * shade),
		B: uint8(float64(c.B) * shade),
		A: 255,
	}

	b := img.Bounds()
	minX := int(math.Max(math.Floor(math.Min(x0, math.Min(x1, x2))), float64(b.Min.X)))
	maxX := int(math.Min(math.Ceil(math.Max(x0, math.Max(x1, x2))), float64(b.Max.X-1)))
	minY := int(math.Max(math.Floor(math.Min(y0, math.Min(y1, y2))), float64(b.Min.Y)))
	maxY := int(math.Min(math.Ceil(math.Max(y0, math.Max(y1, y2))), float64(b.Max.Y-1)))

	w := b.Dx()
	for py := minY; py <= maxY; py++ {
		for px := minX; px <= maxX; px++ {
			sx, sy := float64(px)+0.5, float64(py)+0.5
			w0 := ((x1-sx)*(y2-sy) - (x2-sx)*(y1-sy)) / area
			w1 := ((x2-sx)*(y0-sy) - (x0-sx)*(y2-sy)) / area
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*z0 + w1*z1 + w2*z2
			idx := py*w + px
			if z >= depth[idx] {
				continue
			}
			depth[idx] = z
			img.SetRGBA(px, py, fill)
		}
	}
}

func vec32(p [3]float32) r3.Vec {
	return r3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
}
