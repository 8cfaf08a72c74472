package visualization

import (
	"image/color"
	"sort"

	"github.com/pkg/errors"

	"slicermorph/pkg/interpolation"
	"slicermorph/pkg/stl"
)

// NodeKind distinguishes scene node types
type NodeKind int

const (
	KindModel NodeKind = iota
	KindTable
	KindTransform
)

// Handle identifies one node in a Scene. Handles are the only way to reach a
// node; names are display labels and may repeat.
type Handle struct {
	id   int
	kind NodeKind
}

// Kind returns the node kind the handle was issued for
func (h Handle) Kind() NodeKind { return h.kind }

// Valid reports whether the handle was issued at all
func (h Handle) Valid() bool { return h.id > 0 }

// Model is a displayable mesh
type Model struct {
	Name      string
	Triangles []stl.Triangle

	// Color is used for every triangle unless TriangleColors is set
	Color color.RGBA

	// TriangleColors, when non-nil, colours each triangle individually
	TriangleColors []color.RGBA

	// Scalars are named per-element arrays (e.g. lollipop magnitude per landmark)
	Scalars map[string][]float64

	Visible bool
}

// Table is a labelled grid of cells
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Transform holds a landmark-driven warp
type Transform struct {
	Name string
	Warp *interpolation.ThinPlateSpline
}

type node struct {
	model     *Model
	table     *Table
	transform *Transform
}

// Scene is an explicit registry of display nodes. The caller owns it and
// passes it to whatever builds or renders nodes.
type Scene struct {
	nodes  map[int]*node
	nextID int
}

// NewScene creates an empty scene
func NewScene() *Scene {
	return &Scene{nodes: make(map[int]*node)}
}

func (s *Scene) add(kind NodeKind, n *node) Handle {
	s.nextID++
	s.nodes[s.nextID] = n
	return Handle{id: s.nextID, kind: kind}
}

// AddModel registers an empty, hidden model
func (s *Scene) AddModel(name string) Handle {
	return s.add(KindModel, &node{model: &Model{Name: name}})
}

// AddTable registers an empty table
func (s *Scene) AddTable(name string) Handle {
	return s.add(KindTable, &node{table: &Table{Name: name}})
}

// AddTransform registers an empty transform
func (s *Scene) AddTransform(name string) Handle {
	return s.add(KindTransform, &node{transform: &Transform{Name: name}})
}

func (s *Scene) lookup(h Handle, kind NodeKind) (*node, error) {
	n, ok := s.nodes[h.id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownHandle, "handle %d", h.id)
	}
	if h.kind != kind {
		return nil, errors.Wrapf(ErrWrongKind, "handle %d is kind %d, want %d", h.id, h.kind, kind)
	}
	return n, nil
}

// Model returns the model behind h
func (s *Scene) Model(h Handle) (*Model, error) {
	n, err := s.lookup(h, KindModel)
	if err != nil {
		return nil, err
	}
	return n.model, nil
}

// Table returns the table behind h
func (s *Scene) Table(h Handle) (*Table, error) {
	n, err := s.lookup(h, KindTable)
	if err != nil {
		return nil, err
	}
	return n.table, nil
}

// Transform returns the transform behind h
func (s *Scene) Transform(h Handle) (*Transform, error) {
	n, err := s.lookup(h, KindTransform)
	if err != nil {
		return nil, err
	}
	return n.transform, nil
}

// Remove deletes the node behind h. Later lookups with h fail.
func (s *Scene) Remove(h Handle) {
	delete(s.nodes, h.id)
}

// Clear removes every node
func (s *Scene) Clear() {
	s.nodes = make(map[int]*node)
}

// Handles returns every live handle of the given kind in creation order
func (s *Scene) Handles(kind NodeKind) []Handle {
	var out []Handle
	for id, n := range s.nodes {
		var k NodeKind
		switch {
		case n.model != nil:
			k = KindModel
		case n.table != nil:
			k = KindTable
		default:
			k = KindTransform
		}
		if k == kind {
			out = append(out, Handle{id: id, kind: k})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
