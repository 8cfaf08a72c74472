// Package stl reads and writes binary STL meshes and builds the simple
// primitives (spheres, ellipsoids, tubes) used for landmark plots.
package stl

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// Triangle is one facet of a mesh
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// header is the fixed 80 byte STL header
var header = [80]byte{}

func init() {
	copy(header[:], "slicermorph binary STL")
}

// Write encodes triangles as binary STL
func Write(w io.Writer, triangles []Triangle) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return err
	}
	var attr uint16
	for _, t := range triangles {
		for _, v := range [][3]float32{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		if err := binary.Write(bw, binary.LittleEndian, attr); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveToSTL writes triangles to filename in binary STL format
func SaveToSTL(filename string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", filename)
	}
	if err := Write(file, triangles); err != nil {
		file.Close()
		return errors.Wrapf(err, "failed to write %s", filename)
	}
	return file.Close()
}

// maxPrealloc caps the triangles reserved up front from the header count
const maxPrealloc = 1 << 16

// Read decodes a binary STL stream
func Read(r io.Reader) ([]Triangle, error) {
	br := bufio.NewReader(r)
	var head [80]byte
	if _, err := io.ReadFull(br, head[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read STL header")
	}
	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, errors.Wrap(err, "failed to read triangle count")
	}

	// The count comes from the file; grow by append instead of trusting it
	triangles := make([]Triangle, 0, min(count, maxPrealloc))
	var attr uint16
	for i := uint32(0); i < count; i++ {
		var t Triangle
		for _, v := range []*[3]float32{&t.Normal, &t.Vertex1, &t.Vertex2, &t.Vertex3} {
			if err := binary.Read(br, binary.LittleEndian, v); err != nil {
				return nil, errors.Wrapf(err, "failed to read triangle %d", i)
			}
		}
		if err := binary.Read(br, binary.LittleEndian, &attr); err != nil {
			return nil, errors.Wrapf(err, "failed to read triangle %d", i)
		}
		triangles = append(triangles, t)
	}
	return triangles, nil
}

// LoadSTL reads a binary STL file
func LoadSTL(filename string) ([]Triangle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", filename)
	}
	defer file.Close()
	return Read(file)
}

// NewTriangle builds a facet from three vertices, computing its normal
func NewTriangle(a, b, c [3]float64) Triangle {
	return Triangle{
		Normal:  toFloat32(faceNormal(a, b, c)),
		Vertex1: toFloat32(a),
		Vertex2: toFloat32(b),
		Vertex3: toFloat32(c),
	}
}

// Warp moves every vertex through fn and recomputes the facet normals
func Warp(triangles []Triangle, fn func([3]float64) [3]float64) []Triangle {
	out := make([]Triangle, len(triangles))
	for i, t := range triangles {
		out[i] = NewTriangle(fn(toFloat64(t.Vertex1)), fn(toFloat64(t.Vertex2)), fn(toFloat64(t.Vertex3)))
	}
	return out
}

func faceNormal(a, b, c [3]float64) [3]float64 {
	return Point(Unit(r3.Triangle{Vec(a), Vec(b), Vec(c)}.Normal()))
}

func toFloat32(v [3]float64) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}

func toFloat64(v [3]float32) [3]float64 {
	return [3]float64{float64(v[0]), float64(v[1]), float64(v[2])}
}
